// Package speech turns recorded audio into text through a hosted
// speech-to-text engine.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTranscription wraps every transcription failure.
	ErrTranscription = errors.New("transcription failed")
	// ErrEmptyTranscript is returned when the engine heard nothing.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultTimeout bounds a single transcription call.
const DefaultTimeout = 30 * time.Second

// Audio is one recorded utterance.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// Config selects and configures a transcription backend.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Language string // ISO-639-1 hint, optional
	Timeout  time.Duration
}

// New returns the transcriber for cfg.Provider.
func New(ctx context.Context, cfg Config) (Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s transcription API key is required", cfg.Provider)
	}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewWhisper(cfg), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s (supported: openai, gemini)", cfg.Provider)
	}
}

// checkAudio rejects input that must not reach the network.
func checkAudio(audio Audio) error {
	if len(audio.Data) == 0 {
		return fmt.Errorf("%w: no audio data", ErrTranscription)
	}
	return nil
}

// finish normalizes an engine's text output.
func finish(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %w", ErrTranscription, ErrEmptyTranscript)
	}
	return text, nil
}
