package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/llm"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
)

func resetViperForTest(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, name := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"NOTION_API_KEY", "NOTION_DATABASE_ID", "XDG_DATA_HOME",
	} {
		t.Setenv(name, "")
	}
	viper.Set("dataDir", "/tmp/vb")
}

func TestLoad_Defaults(t *testing.T) {
	resetViperForTest(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vb", cfg.DataDir)
	assert.Equal(t, llm.ProviderOpenAI, cfg.Engine.Provider)
	assert.Equal(t, llm.DefaultModelForProvider(llm.ProviderOpenAI), cfg.Engine.Model)
	assert.Equal(t, 30*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
	assert.Equal(t, 30*time.Second, cfg.Store.Timeout)
	assert.Zero(t, cfg.Store.MaxRetries)
	assert.Equal(t, "operation", cfg.Reconcile.Refresh)
	assert.True(t, cfg.Reconcile.Dedupe)
	assert.Equal(t, filepath.Join("/tmp/vb", "policies"), cfg.Policy.Dir)
	assert.Equal(t, filepath.Join("/tmp/vb", "prompts"), cfg.Prompts.Dir)
	assert.True(t, cfg.Journal.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 750*time.Millisecond, cfg.Watch.Debounce)

	opts := cfg.ApplierOptions(nil)
	assert.Equal(t, reconcile.RefreshPerOperation, opts.Refresh)
	assert.False(t, opts.AllowDuplicates)
	assert.Equal(t, board.FailSoftEmptyOnError, cfg.DirectoryPolicy())
}

func TestLoad_ProviderNativeEnv(t *testing.T) {
	resetViperForTest(t)
	t.Setenv("NOTION_API_KEY", "secret_abc")
	t.Setenv("NOTION_DATABASE_ID", "db-1")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret_abc", cfg.Store.APIKey)
	assert.Equal(t, "db-1", cfg.Store.DatabaseID)
	assert.Equal(t, "sk-env", cfg.Engine.APIKey)
	assert.Equal(t, "sk-env", cfg.Transcription.APIKey)
	assert.NoError(t, cfg.Validate(Needs{Store: true, Engine: true, Transcription: true}))
}

func TestLoad_ConfigBeatsEnv(t *testing.T) {
	resetViperForTest(t)
	t.Setenv("NOTION_API_KEY", "from-env")
	viper.Set("store.apiKey", "from-config")
	viper.Set("store.properties.status", "Stage")
	viper.Set("store.statusLabels.done", "Shipped")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-config", cfg.Store.APIKey)
	assert.Equal(t, "Stage", cfg.Store.Properties.Status)
	assert.Equal(t, "Shipped", cfg.Store.StatusLabels.Done)
}

func TestLoad_InvalidProvider(t *testing.T) {
	resetViperForTest(t)
	viper.Set("llm.provider", "palm")

	_, err := Load()
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "llm.provider", cerr.Key)
}

func TestValidate_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
		needs Needs
		key   string
	}{
		{
			name:  "store api key",
			setup: func() { viper.Set("store.databaseId", "db") },
			needs: Needs{Store: true},
			key:   "store.apiKey",
		},
		{
			name:  "store database id",
			setup: func() { viper.Set("store.apiKey", "k") },
			needs: Needs{Store: true},
			key:   "store.databaseId",
		},
		{
			name:  "engine key",
			setup: func() {},
			needs: Needs{Engine: true},
			key:   "llm.apiKey",
		},
		{
			name:  "transcription key",
			setup: func() { viper.Set("llm.provider", "anthropic"); viper.Set("llm.apiKeys.anthropic", "k") },
			needs: Needs{Engine: true, Transcription: true},
			key:   "transcription.apiKey",
		},
		{
			name:  "bad refresh mode",
			setup: func() { viper.Set("reconcile.refresh", "sometimes") },
			needs: Needs{},
			key:   "reconcile.refresh",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViperForTest(t)
			tt.setup()

			cfg, err := Load()
			require.NoError(t, err)
			err = cfg.Validate(tt.needs)
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.key, cerr.Key)
		})
	}
}

func TestValidate_OllamaNeedsNoKey(t *testing.T) {
	resetViperForTest(t)
	viper.Set("llm.provider", "ollama")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultOllamaURL, cfg.Engine.BaseURL)
	assert.NoError(t, cfg.Validate(Needs{Engine: true}))
}

func TestValidate_OnlyNeededSections(t *testing.T) {
	resetViperForTest(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate(Needs{}))
}

func TestConfigurationError_Hint(t *testing.T) {
	err := &ConfigurationError{Key: "store.apiKey", Reason: "is required"}
	assert.Contains(t, err.Error(), "NOTION_API_KEY")
}

func TestResolveAPIKey(t *testing.T) {
	resetViperForTest(t)
	t.Setenv("GOOGLE_API_KEY", "google")
	assert.Equal(t, "google", ResolveAPIKey(llm.ProviderGemini))

	t.Setenv("GEMINI_API_KEY", "gemini")
	assert.Equal(t, "gemini", ResolveAPIKey(llm.ProviderGemini))

	viper.Set("llm.apiKeys.gemini", "configured")
	assert.Equal(t, "configured", ResolveAPIKey(llm.ProviderGemini))

	t.Setenv("OPENAI_API_KEY", "env")
	viper.Set("llm.apiKey", "legacy")
	assert.Equal(t, "legacy", ResolveAPIKey(llm.ProviderOpenAI))
	assert.Empty(t, ResolveAPIKey(llm.ProviderOllama))
}

func TestDataDir(t *testing.T) {
	resetViperForTest(t)
	viper.Set("dataDir", "")
	t.Setenv("XDG_DATA_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "voiceboard"), DataDir())

	t.Setenv("XDG_DATA_HOME", "")
	prev := HomeDir
	HomeDir = func() (string, error) { return "/home/ana", nil }
	t.Cleanup(func() { HomeDir = prev })
	assert.Equal(t, filepath.Join("/home/ana", ".voiceboard"), DataDir())
}
