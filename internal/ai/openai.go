package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// OpenAIProvider speaks the OpenAI chat completions API. Any compatible
// endpoint works by overriding BaseURL, which is how Gemini is reached.
type OpenAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	return newOpenAICompatible("openai", apiKey, baseURL, model)
}

// NewGeminiProvider uses Gemini's OpenAI-compatible endpoint.
func NewGeminiProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = geminiOpenAIBaseURL
	}
	return newOpenAICompatible("gemini", apiKey, baseURL, model)
}

func newOpenAICompatible(name, apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIProvider{name: name, model: model, client: openai.NewClientWithConfig(cfg)}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error) {
	o := applyOptions(opts)
	req := openai.ChatCompletionRequest{Model: p.model, MaxTokens: o.MaxTokens}
	if o.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(p.name + ": empty response")
	}
	return stripThinking(resp.Choices[0].Message.Content), nil
}
