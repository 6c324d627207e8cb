package ai

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a single chat-completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error)
}

// ErrNotConfigured is returned by a factory whose credentials are missing.
// Callers treat it as "skip this backend", not as a failure.
var ErrNotConfigured = errors.New("ai provider not configured")

// ChatOptions are per-call hints. Backends apply the ones their API supports.
type ChatOptions struct {
	// JSON asks for a reply that is a single JSON object.
	JSON      bool
	MaxTokens int
}

type ChatOption func(*ChatOptions)

func WithJSON() ChatOption {
	return func(o *ChatOptions) { o.JSON = true }
}

func WithMaxTokens(n int) ChatOption {
	return func(o *ChatOptions) { o.MaxTokens = n }
}

func applyOptions(opts []ChatOption) ChatOptions {
	var o ChatOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func splitSystem(messages []Message) (system string, rest []Message) {
	rest = make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinking drops the <think> preamble reasoning models put before their
// answer; its braces would otherwise confuse JSON extraction.
func stripThinking(s string) string {
	if !strings.Contains(s, "<think>") {
		return s
	}
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
