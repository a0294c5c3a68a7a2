package ai

import (
	"fmt"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) (Runtime, error)

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	// Common
	Model       string
	HTTPTimeout time.Duration
	// Gemini
	APIKey   string
	Endpoint string
	// Ollama
	Host string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
	return f(cfg)
}

// NeedsAPIKey reports whether provider authenticates with an API key.
func NeedsAPIKey(provider string) bool { return provider == ProviderGemini }

// init registers built-in runtimes.
func init() {
	RegisterRuntime(ProviderGemini, func(c RuntimeConfig) (Runtime, error) {
		gc, err := NewGeminiClient(c.APIKey, c.Model, c.HTTPTimeout, WithGeminiEndpoint(c.Endpoint))
		if err != nil {
			return nil, err
		}
		return gc, nil
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) (Runtime, error) {
		return NewOllamaClient(c.Host, c.Model, c.HTTPTimeout), nil
	})
}
