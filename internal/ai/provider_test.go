package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/helpdesk-triage/internal/config"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"action\":\"answer\"}"}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama2")
	reply, err := p.Chat(context.Background(), []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"answer"}`, reply)
	assert.False(t, got.Stream)
	assert.Equal(t, "llama2", got.Model)
	assert.Len(t, got.Messages, 2)
	assert.Empty(t, got.Format)
	assert.Nil(t, got.Options)
}

func TestOllamaProvider_JSONModeAndThinking(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"<think>maybe {\"action\":\"x\"}</think>\n{\"action\":\"troubleshoot\"}"}}`))
	}))
	defer srv.Close()

	reply, err := NewOllamaProvider(srv.URL, "qwen3").Chat(context.Background(),
		[]Message{{Role: RoleUser, Content: "vpn"}}, WithJSON(), WithMaxTokens(256))
	require.NoError(t, err)
	assert.Equal(t, `{"action":"troubleshoot"}`, reply)
	assert.Equal(t, "json", got.Format)
	require.NotNil(t, got.Options)
	assert.Equal(t, 256, got.Options.NumPredict)
}

func TestOllamaProvider_MissingModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"mistral\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "mistral").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "try pulling it first")
}

func TestOpenRouterProvider_Chat(t *testing.T) {
	var got openRouterChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "IT Helpdesk Bot", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"action\":\"answer\"}"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL+"/", "or-key", "meta-llama/llama-3-8b-instruct", "", "")
	reply, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, WithJSON())
	require.NoError(t, err)
	assert.Equal(t, `{"action":"answer"}`, reply)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenRouterProvider_UpstreamErrorWithStatus200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"upstream rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenRouterProvider(srv.URL, "or-key", "m", "", "").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream rate limited")
}

func TestOllamaProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "").Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[1,2]"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", srv.URL, "gpt-3.5-turbo")
	require.NoError(t, err)

	reply, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "steps"}})
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", reply)
	assert.NotContains(t, body, "response_format")

	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "classify"}}, WithJSON())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
}

func TestAnthropicProvider_Chat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"{\"action\":"},{"type":"text","text":"\"answer\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider("sk-ant-test", srv.URL+"/", "claude-3-5-haiku-latest")
	require.NoError(t, err)

	reply, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "classify"},
		{Role: RoleUser, Content: "vpn down"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"answer"}`, reply)
	assert.NotNil(t, body["system"])
	assert.Len(t, body["messages"], 1)
}

func TestAnthropicProvider_JSONPrefill(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"\"action\":\"answer\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider("sk-ant-test", srv.URL+"/", "claude-3-5-haiku-latest")
	require.NoError(t, err)

	reply, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "vpn down"}}, WithJSON())
	require.NoError(t, err)
	assert.Equal(t, `{"action":"answer"}`, reply)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
}

func TestRegistry_UnconfiguredBackends(t *testing.T) {
	reg := NewRegistryFromConfig(config.Config{})

	for _, name := range []string{"openai", "gemini", "anthropic", "openrouter"} {
		p, kind, err := reg.Get(context.Background(), name, "")
		assert.True(t, errors.Is(err, ErrNotConfigured), name)
		// an untyped nil, so a p != nil check holds
		assert.True(t, p == nil, name)
		assert.Equal(t, KindRemote, kind, name)
	}

	p, kind, err := reg.Get(context.Background(), "OLLAMA", "")
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)
	assert.Equal(t, KindLocal, kind)
	assert.Equal(t, "local", kind.String())

	_, _, err = reg.Get(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Equal(t, []string{"anthropic", "gemini", "ollama", "openai", "openrouter"}, reg.Names())
}

func TestRegistry_ModelOverride(t *testing.T) {
	reg := NewRegistryFromConfig(config.Config{Ollama: config.OllamaConfig{Model: "llama3"}})

	p, _, err := reg.Get(context.Background(), "ollama", "")
	require.NoError(t, err)
	assert.Equal(t, "llama3", p.(*OllamaProvider).Model)

	p, _, err = reg.Get(context.Background(), "ollama", "phi3")
	require.NoError(t, err)
	assert.Equal(t, "phi3", p.(*OllamaProvider).Model)
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripThinking("<think>\nfirst {x}\n</think>\n{\"a\":1}"))
	assert.Equal(t, "plain", stripThinking("plain"))
}
