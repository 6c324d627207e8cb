package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"gemini", "openai", "ollama"}, cfg.AI.Priority)
	assert.Equal(t, 10*time.Second, cfg.AI.RemoteTimeout)
	assert.Equal(t, 30*time.Second, cfg.AI.LocalTimeout)
	assert.Equal(t, time.Hour, cfg.Chat.SessionTTL)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.Equal(t, 5, cfg.Chat.MaxAttempts)
	assert.True(t, cfg.Chat.SerializePerUser)
	assert.Equal(t, 30*24*time.Hour, cfg.Mapping.TTL)
	assert.Equal(t, 15, cfg.KB.Weights.KeywordExact)
	assert.Equal(t, 5, cfg.KB.Weights.Threshold)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AI_PRIORITY", "Ollama, openai")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	t.Setenv("CHAT_MAX_ATTEMPTS", "3")
	t.Setenv("AI_REMOTE_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"ollama", "openai"}, cfg.AI.Priority)
	assert.Equal(t, "http://ollama:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 3, cfg.Chat.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.AI.RemoteTimeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := []byte("ai:\n  priority: [anthropic, ollama]\nkb:\n  weights:\n    threshold: 8\nmapping:\n  mirror: database\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"anthropic", "ollama"}, cfg.AI.Priority)
	assert.Equal(t, 8, cfg.KB.Weights.Threshold)
	assert.Equal(t, 15, cfg.KB.Weights.KeywordExact)
	assert.Equal(t, "database", cfg.Mapping.Mirror)
}
