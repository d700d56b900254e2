package llm

import "time"

// Provider constants
const (
	// DefaultProvider is the default LLM provider
	DefaultProvider = ProviderOpenAI

	// ProviderOpenAI represents the OpenAI provider
	ProviderOpenAI = "openai"

	// ProviderOllama represents the Ollama provider
	ProviderOllama = "ollama"

	// ProviderAnthropic represents the Anthropic provider
	ProviderAnthropic = "anthropic"

	// ProviderGemini represents the Google Gemini provider
	ProviderGemini = "gemini"
)

// DefaultOllamaURL is the default URL for Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// DefaultTimeout bounds a single completion round-trip.
const DefaultTimeout = 30 * time.Second

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-5-mini",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderGemini:    "gemini-2.0-flash",
	ProviderOllama:    "llama3.2",
}

// DefaultModelForProvider returns the default model ID for a given provider.
func DefaultModelForProvider(provider string) string {
	return defaultModels[provider]
}

// RequiresAPIKey reports whether the provider needs a credential. Ollama runs locally.
func RequiresAPIKey(provider Provider) bool {
	return provider != ProviderOllama
}
