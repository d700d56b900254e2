package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/josephgoksu/voiceboard/internal/llm"
)

// ResolveAPIKey returns the key for provider: per-provider config key
// (llm.apiKeys.<provider>), then the provider's own env var. For OpenAI the
// legacy llm.apiKey is honoured before the env var.
func ResolveAPIKey(provider llm.Provider) string {
	if key := viperString(fmt.Sprintf("llm.apiKeys.%s", provider)); key != "" {
		return key
	}

	envKey := providerEnvKey(provider)
	if provider == llm.ProviderOpenAI {
		if legacy := viperString("llm.apiKey"); legacy != "" {
			return legacy
		}
	}
	return envKey
}

// resolveEngineKey is the interpretation engine key. An explicit llm.apiKey
// applies to whichever provider is configured.
func resolveEngineKey(provider llm.Provider) string {
	if key := ResolveAPIKey(provider); key != "" {
		return key
	}
	return viperString("llm.apiKey")
}

// resolveTranscriptionKey prefers transcription.apiKey and falls back to the
// provider's shared key.
func resolveTranscriptionKey(provider string) string {
	if key := viperString("transcription.apiKey"); key != "" {
		return key
	}
	return ResolveAPIKey(llm.Provider(provider))
}

func providerEnvKey(provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return env("OPENAI_API_KEY")
	case llm.ProviderAnthropic:
		return env("ANTHROPIC_API_KEY")
	case llm.ProviderGemini:
		if key := env("GEMINI_API_KEY"); key != "" {
			return key
		}
		return env("GOOGLE_API_KEY")
	default:
		return ""
	}
}

// storeKey resolves a store setting from config, then from its provider-native env var.
func storeKey(key, envVar string) string {
	if v := viperString(key); v != "" {
		return v
	}
	return env(envVar)
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func viperString(key string) string {
	if viper.IsSet(key) {
		return strings.TrimSpace(viper.GetString(key))
	}
	return ""
}
