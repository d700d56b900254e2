package speech

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the multimodal model used for transcription.
const DefaultGeminiModel = "gemini-2.0-flash"

const geminiInstruction = "Transcribe this recording verbatim. Return only the spoken words, with no commentary, labels or timestamps."

// GeminiTranscriber transcribes audio with a multimodal Gemini model.
type GeminiTranscriber struct {
	models *genai.Models
	model  string
	cfg    Config
}

// NewGemini creates a Gemini transcriber.
func NewGemini(ctx context.Context, cfg Config) (*GeminiTranscriber, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiTranscriber{models: client.Models, model: modelName, cfg: cfg}, nil
}

// Transcribe sends the recording inline with a transcription instruction.
func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if err := checkAudio(audio); err != nil {
		return "", err
	}

	timeout := g.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mimeType := audio.ContentType
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	instruction := geminiInstruction
	if g.cfg.Language != "" {
		instruction += " The speaker uses language code " + g.cfg.Language + "."
	}

	parts := []*genai.Part{
		genai.NewPartFromText(instruction),
		genai.NewPartFromBytes(audio.Data, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %w", ErrTranscription, err)
	}
	return finish(resp.Text())
}
