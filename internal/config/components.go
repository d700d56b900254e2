package config

import (
	"log/slog"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/llm"
	"github.com/josephgoksu/voiceboard/internal/notion"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
	"github.com/josephgoksu/voiceboard/internal/speech"
)

// LLMConfig returns the interpretation engine settings.
func (c *AppConfig) LLMConfig() llm.Config {
	return llm.Config{
		Provider: llm.Provider(c.Engine.Provider),
		Model:    c.Engine.Model,
		APIKey:   c.Engine.APIKey,
		BaseURL:  c.Engine.BaseURL,
		Timeout:  c.Engine.Timeout,
	}
}

// SpeechConfig returns the transcription settings.
func (c *AppConfig) SpeechConfig() speech.Config {
	return speech.Config{
		Provider: c.Transcription.Provider,
		Model:    c.Transcription.Model,
		APIKey:   c.Transcription.APIKey,
		BaseURL:  c.Transcription.BaseURL,
		Language: c.Transcription.Language,
		Timeout:  c.Transcription.Timeout,
	}
}

// NotionConfig returns the task store settings.
func (c *AppConfig) NotionConfig(logger *slog.Logger) notion.Config {
	return notion.Config{
		APIKey:       c.Store.APIKey,
		DatabaseID:   c.Store.DatabaseID,
		BaseURL:      c.Store.BaseURL,
		Version:      c.Store.Version,
		Timeout:      c.Store.Timeout,
		MaxRetries:   c.Store.MaxRetries,
		Properties:   c.Store.Properties,
		StatusLabels: c.Store.StatusLabels,
		Logger:       logger,
	}
}

// ApplierOptions returns the reconciler policies. gate may be nil.
func (c *AppConfig) ApplierOptions(gate reconcile.Gate) reconcile.Options {
	return reconcile.Options{
		Refresh:         reconcile.RefreshMode(c.Reconcile.Refresh),
		AllowDuplicates: !c.Reconcile.Dedupe,
		Reposition:      reconcile.RepositionPolicy(c.Reconcile.Reposition),
		Assignee:        reconcile.AssigneePolicy(c.Reconcile.Assignee),
		Gate:            gate,
	}
}

// DirectoryPolicy returns how a failed user directory read is handled.
func (c *AppConfig) DirectoryPolicy() board.FailSoft {
	return board.FailSoft(c.Reconcile.Directory)
}
