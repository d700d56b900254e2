package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultWhisperURL is the OpenAI API base.
	DefaultWhisperURL = "https://api.openai.com/v1"
	// DefaultWhisperModel is the hosted Whisper model.
	DefaultWhisperModel = openai.Whisper1
)

// WhisperTranscriber calls the OpenAI audio transcription endpoint.
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(cfg Config) *WhisperTranscriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if baseURL := strings.TrimRight(cfg.BaseURL, "/"); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultWhisperModel
	}
	return &WhisperTranscriber{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    modelName,
		language: cfg.Language,
	}
}

// Transcribe uploads the recording and returns the recognised text.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if err := checkAudio(audio); err != nil {
		return "", err
	}

	filename := audio.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio.Data),
		Language: w.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: API error (%d): %s", ErrTranscription, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("%w: request failed: %w", ErrTranscription, err)
	}
	return finish(resp.Text)
}
