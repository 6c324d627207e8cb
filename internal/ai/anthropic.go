package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func NewAnthropicProvider(apiKey, baseURL, model string) (*AnthropicProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrNotConfigured)
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	m := anthropic.ModelClaude3_5SonnetLatest
	if model != "" {
		m = anthropic.Model(model)
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     m,
		maxTokens: 1024,
	}, nil
}

// The Messages API has no JSON mode; WithJSON prefills the reply with "{"
// so the model continues an object.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error) {
	o := applyOptions(opts)
	system, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
	}
	if o.MaxTokens > 0 {
		params.MaxTokens = int64(o.MaxTokens)
	}
	if system = strings.TrimSpace(system); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	lastRole := ""
	for _, m := range rest {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		lastRole = m.Role
		switch m.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
		}
	}
	if len(params.Messages) == 0 {
		return "", errors.New("anthropic: no messages")
	}
	prefill := ""
	if o.JSON && lastRole != RoleAssistant {
		prefill = "{"
		params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(prefill)))
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var out strings.Builder
	out.WriteString(prefill)
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(b.Text)
		}
	}
	return out.String(), nil
}
