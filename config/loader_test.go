package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Chat.MaxTurns)
	assert.Equal(t, "fixed_count", cfg.Chat.Policy)
	assert.Equal(t, 6, cfg.Chat.JudgeWindow)
	assert.Equal(t, "memory", cfg.Session.Type)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
chat:
  participants: [researcher, planner]
  max_turns: 5
  policy: convergence
  judge_model: gpt-4o-mini
session:
  type: redis
  redis:
    addr: localhost:6379
    key_prefix: "chat:"
    ttl: 24h
summary:
  snippet_max_chars: 400
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"researcher", "planner"}, cfg.Chat.Participants)
	assert.Equal(t, 5, cfg.Chat.MaxTurns)
	assert.Equal(t, "convergence", cfg.Chat.Policy)
	assert.Equal(t, "redis", cfg.Session.Type)
	assert.Equal(t, "localhost:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Session.Redis.TTL)
	assert.Equal(t, 400, cfg.Summary.SnippetMaxChars)
	// 未覆盖的字段保持默认值
	assert.Equal(t, 3000, cfg.Summary.TranscriptTokenBudget)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  max_turns: 5\n"), 0o600))

	t.Setenv("AGENTCHAT_CHAT_MAX_TURNS", "8")
	t.Setenv("AGENTCHAT_CHAT_PARTICIPANTS", "a, b, c")
	t.Setenv("AGENTCHAT_SESSION_MAX_IDLE", "30m")
	t.Setenv("AGENTCHAT_CHAT_REQUESTS_PER_SECOND", "2.5")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Chat.MaxTurns)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Chat.Participants)
	assert.Equal(t, 30*time.Minute, cfg.Session.MaxIdle)
	assert.Equal(t, 2.5, cfg.Chat.RequestsPerSecond)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Chat.MaxTurns)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max turns", func(c *Config) { c.Chat.MaxTurns = 0 }},
		{"unknown policy", func(c *Config) { c.Chat.Policy = "vibes" }},
		{"unknown store", func(c *Config) { c.Session.Type = "postgres" }},
		{"redis without addr", func(c *Config) { c.Session.Type = "redis" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if len(c.Chat.Participants) == 0 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.Error(t, err)
}
