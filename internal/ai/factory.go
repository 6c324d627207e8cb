package ai

import (
	"context"
	"strings"

	"github.com/suPer8Hu/helpdesk-triage/internal/config"
)

// NewRegistryFromConfig registers every backend the service knows about.
// Backends without credentials still register; their factory returns
// ErrNotConfigured.
func NewRegistryFromConfig(cfg config.Config) *Registry {
	reg := NewRegistry()

	reg.Register("ollama", KindLocal, func(_ context.Context, model string) (Provider, error) {
		return NewOllamaProvider(cfg.Ollama.BaseURL, pick(model, cfg.Ollama.Model)), nil
	})
	reg.Register("openai", KindRemote, func(_ context.Context, model string) (Provider, error) {
		p, err := NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, pick(model, cfg.OpenAI.Model))
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	reg.Register("gemini", KindRemote, func(_ context.Context, model string) (Provider, error) {
		p, err := NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, pick(model, cfg.Gemini.Model))
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	reg.Register("anthropic", KindRemote, func(_ context.Context, model string) (Provider, error) {
		p, err := NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, pick(model, cfg.Anthropic.Model))
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	reg.Register("openrouter", KindRemote, func(_ context.Context, model string) (Provider, error) {
		o := cfg.OpenRouter
		if strings.TrimSpace(o.APIKey) == "" {
			return nil, ErrNotConfigured
		}
		return NewOpenRouterProvider(o.BaseURL, o.APIKey, pick(model, o.Model), o.SiteURL, o.AppName), nil
	})

	return reg
}

func pick(model, fallback string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return fallback
}
