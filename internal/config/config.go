// Package config loads VoiceBoard settings from viper (flags, VOICEBOARD_* env
// vars, .voiceboard.yaml) and provider-native env vars, and validates them
// before any remote call is made.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/josephgoksu/voiceboard/internal/board"
	"github.com/josephgoksu/voiceboard/internal/llm"
	"github.com/josephgoksu/voiceboard/internal/notion"
	"github.com/josephgoksu/voiceboard/internal/policy"
	"github.com/josephgoksu/voiceboard/internal/reconcile"
	"github.com/josephgoksu/voiceboard/internal/speech"
)

// Defaults.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultWatchDebounce  = 750 * time.Millisecond
	DefaultLogFormat      = "text"
	DefaultPromptsDirName = "prompts"
)

// ConfigurationError is a missing or invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
	if hint, ok := envHints[e.Key]; ok {
		msg += fmt.Sprintf(" (set %s or %s)", e.Key, hint)
	}
	return msg
}

var envHints = map[string]string{
	"store.apiKey":         "NOTION_API_KEY",
	"store.databaseId":     "NOTION_DATABASE_ID",
	"llm.apiKey":           "the provider's API key env var",
	"transcription.apiKey": "OPENAI_API_KEY / GEMINI_API_KEY",
}

// AppConfig is the complete, resolved configuration.
type AppConfig struct {
	DataDir   string
	Verbose   bool
	LogFormat string

	Engine       EngineConfig
	Transcription TranscriptionConfig
	Store         StoreConfig
	Reconcile     ReconcileConfig
	Policy        PolicyConfig
	Prompts       PromptsConfig
	Journal       JournalConfig
	Telemetry     TelemetryConfig
	Watch         WatchConfig
}

// EngineConfig configures the interpretation engine (llm.*).
type EngineConfig struct {
	Provider string        `mapstructure:"provider" validate:"required,oneof=openai anthropic gemini ollama"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"apiKey"`
	BaseURL  string        `mapstructure:"baseURL" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// TranscriptionConfig configures the speech-to-text engine (transcription.*).
type TranscriptionConfig struct {
	Provider string        `mapstructure:"provider" validate:"required,oneof=openai gemini"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"apiKey" validate:"required"`
	BaseURL  string        `mapstructure:"baseURL" validate:"omitempty,url"`
	Language string        `mapstructure:"language" validate:"omitempty,len=2"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// StoreConfig configures the Notion task store (store.*).
type StoreConfig struct {
	APIKey       string               `mapstructure:"apiKey" validate:"required"`
	DatabaseID   string               `mapstructure:"databaseId" validate:"required"`
	BaseURL      string               `mapstructure:"baseURL" validate:"omitempty,url"`
	Version      string               `mapstructure:"version"`
	Timeout      time.Duration        `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries   int                  `mapstructure:"maxRetries" validate:"gte=0,lte=10"`
	Properties   notion.PropertyNames `mapstructure:"properties"`
	StatusLabels notion.StatusLabels  `mapstructure:"statusLabels"`
}

// ReconcileConfig selects the reconciler policies (reconcile.*).
type ReconcileConfig struct {
	Refresh    string `mapstructure:"refresh" validate:"oneof=operation batch"`
	Dedupe     bool   `mapstructure:"dedupe"`
	Reposition string `mapstructure:"reposition" validate:"oneof=noop-when-unsupported fail-when-unsupported"`
	Assignee   string `mapstructure:"assignee" validate:"oneof=skip-unknown fail-unknown"`
	Directory  string `mapstructure:"directory" validate:"oneof=empty-on-error propagate"`
}

// PolicyConfig locates the Rego policies (policy.*).
type PolicyConfig struct {
	Dir     string `mapstructure:"dir"`
	Package string `mapstructure:"package"`
}

// PromptsConfig locates prompt overrides (prompts.*).
type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// JournalConfig controls the run journal (journal.*).
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TelemetryConfig controls usage telemetry (telemetry.*).
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"apiKey"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// WatchConfig tunes the inbox watcher (watch.*).
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gt=0"`
}

// Load resolves the configuration from viper and the environment. It does not
// check credentials; call Validate with the needs of the command.
func Load() (*AppConfig, error) {
	dataDir := DataDir()

	provider := stringOr("llm.provider", llm.DefaultProvider)
	engineProvider, err := llm.ValidateProvider(provider)
	if err != nil {
		return nil, &ConfigurationError{Key: "llm.provider", Reason: err.Error()}
	}
	baseURL := viperString("llm.baseURL")
	if baseURL == "" && engineProvider == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}

	trProvider := strings.ToLower(stringOr("transcription.provider", speech.ProviderOpenAI))
	trModel := viperString("transcription.model")
	if trModel == "" {
		trModel = defaultTranscriptionModel(trProvider)
	}

	cfg := &AppConfig{
		DataDir:   dataDir,
		Verbose:   viper.GetBool("verbose"),
		LogFormat: stringOr("log.format", DefaultLogFormat),
		Engine: EngineConfig{
			Provider: string(engineProvider),
			Model:    stringOr("llm.model", llm.DefaultModelForProvider(string(engineProvider))),
			APIKey:   resolveEngineKey(engineProvider),
			BaseURL:  baseURL,
			Timeout:  durationOr("llm.timeout", DefaultTimeout),
		},
		Transcription: TranscriptionConfig{
			Provider: trProvider,
			Model:    trModel,
			APIKey:   resolveTranscriptionKey(trProvider),
			BaseURL:  viperString("transcription.baseURL"),
			Language: viperString("transcription.language"),
			Timeout:  durationOr("transcription.timeout", DefaultTimeout),
		},
		Store: StoreConfig{
			APIKey:     storeKey("store.apiKey", "NOTION_API_KEY"),
			DatabaseID: storeKey("store.databaseId", "NOTION_DATABASE_ID"),
			BaseURL:    viperString("store.baseURL"),
			Version:    stringOr("store.version", notion.DefaultVersion),
			Timeout:    durationOr("store.timeout", DefaultTimeout),
			MaxRetries: intOr("store.maxRetries", 0),
		},
		Reconcile: ReconcileConfig{
			Refresh:    stringOr("reconcile.refresh", string(reconcile.RefreshPerOperation)),
			Dedupe:     boolOr("reconcile.dedupe", true),
			Reposition: stringOr("reconcile.reposition", string(reconcile.RepositionNoopWhenUnsupported)),
			Assignee:   stringOr("reconcile.assignee", string(reconcile.AssigneeSkipUnknown)),
			Directory:  stringOr("reconcile.directory", string(board.FailSoftEmptyOnError)),
		},
		Policy: PolicyConfig{
			Dir:     stringOr("policy.dir", filepath.Join(dataDir, policy.DefaultPoliciesDir)),
			Package: stringOr("policy.package", policy.DefaultPolicyPackage),
		},
		Prompts: PromptsConfig{
			Dir: stringOr("prompts.dir", filepath.Join(dataDir, DefaultPromptsDirName)),
		},
		Journal: JournalConfig{
			Enabled: boolOr("journal.enabled", true),
			Path:    stringOr("journal.path", dataDir),
		},
		Telemetry: TelemetryConfig{
			Enabled:  boolOr("telemetry.enabled", false),
			APIKey:   viperString("telemetry.apiKey"),
			Endpoint: viperString("telemetry.endpoint"),
		},
		Watch: WatchConfig{
			Debounce: durationOr("watch.debounce", DefaultWatchDebounce),
		},
	}

	if err := viper.UnmarshalKey("store.properties", &cfg.Store.Properties); err != nil {
		return nil, &ConfigurationError{Key: "store.properties", Reason: err.Error()}
	}
	if err := viper.UnmarshalKey("store.statusLabels", &cfg.Store.StatusLabels); err != nil {
		return nil, &ConfigurationError{Key: "store.statusLabels", Reason: err.Error()}
	}
	return cfg, nil
}

func defaultTranscriptionModel(provider string) string {
	if provider == speech.ProviderGemini {
		return speech.DefaultGeminiModel
	}
	return speech.DefaultWhisperModel
}

// Needs lists which remote services a command will call.
type Needs struct {
	Store         bool
	Engine        bool
	Transcription bool
}

// Validate checks the always-required settings plus the sections named by needs.
// The first problem is returned as a *ConfigurationError.
func (c *AppConfig) Validate(needs Needs) error {
	v := newValidator()

	type section struct {
		prefix string
		value  any
	}
	sections := []section{
		{"", struct {
			DataDir   string `mapstructure:"dataDir" validate:"required"`
			LogFormat string `mapstructure:"log.format" validate:"oneof=text json"`
		}{c.DataDir, c.LogFormat}},
		{"reconcile", c.Reconcile},
		{"telemetry", c.Telemetry},
		{"watch", c.Watch},
	}
	if needs.Store {
		sections = append(sections, section{"store", c.Store})
	}
	if needs.Engine {
		sections = append(sections, section{"llm", c.Engine})
	}
	if needs.Transcription {
		sections = append(sections, section{"transcription", c.Transcription})
	}

	for _, s := range sections {
		if err := v.Struct(s.value); err != nil {
			return toConfigurationError(s.prefix, err)
		}
	}

	if needs.Engine && c.Engine.APIKey == "" && llm.RequiresAPIKey(llm.Provider(c.Engine.Provider)) {
		return &ConfigurationError{Key: "llm.apiKey", Reason: fmt.Sprintf("is required for provider %s", c.Engine.Provider)}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})
	return v
}

func toConfigurationError(prefix string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigurationError{Key: prefix, Reason: err.Error()}
	}
	fe := verrs[0]
	key := fe.Field()
	if prefix != "" {
		key = prefix + "." + key
	}
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "oneof":
		reason = fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "url":
		reason = fmt.Sprintf("must be a URL, got %q", fe.Value())
	case "gt":
		reason = fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		reason = fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
	}
	return &ConfigurationError{Key: key, Reason: reason}
}

func stringOr(key, def string) string {
	if v := viperString(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return def
}

func intOr(key string, def int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return def
}

func boolOr(key string, def bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return def
}
