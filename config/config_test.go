package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tutormesh/collab"
	"github.com/hupe1980/tutormesh/logging"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderMock, cfg.Provider)
	assert.False(t, cfg.Persistent())
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, 60*time.Second, cfg.CallTimeout)
	assert.Equal(t, collab.StyleParallel, cfg.CollabStyle)
	assert.Equal(t, collab.DefaultMaxAgents, cfg.CollabMaxAgents)
	assert.Equal(t, logging.LogLevelInfo, cfg.LogLevel)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TUTOR_DB_PATH", "/tmp/tutor.db")
	t.Setenv("TUTOR_PROVIDER", "Anthropic")
	t.Setenv("TUTOR_MODEL", "claude-test")
	t.Setenv("TUTOR_USE_AI_ROUTING", "yes")
	t.Setenv("TUTOR_CALL_TIMEOUT", "15s")
	t.Setenv("TUTOR_COLLAB_STYLE", "debate")
	t.Setenv("TUTOR_COLLAB_MAX_AGENTS", "2")
	t.Setenv("TUTOR_LOG_LEVEL", "debug")
	t.Setenv("TUTOR_LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Persistent())
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.True(t, cfg.UseAIRouting)
	assert.Equal(t, 15*time.Second, cfg.CallTimeout)
	assert.Equal(t, collab.StyleDebate, cfg.CollabStyle)
	assert.Equal(t, 2, cfg.CollabMaxAgents)
	assert.Equal(t, logging.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown provider":    {"TUTOR_PROVIDER": "llama"},
		"provider w/o model":  {"TUTOR_PROVIDER": "openai"},
		"bad style":           {"TUTOR_COLLAB_STYLE": "chorus"},
		"bad level":           {"TUTOR_LOG_LEVEL": "loud"},
		"non-positive agents": {"TUTOR_COLLAB_MAX_AGENTS": "0"},
		"bad format":          {"TUTOR_LOG_FORMAT": "xml"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_OverridesApplyBeforeValidation(t *testing.T) {
	t.Setenv("TUTOR_PROVIDER", "openai")

	_, err := Load()
	require.Error(t, err)

	cfg, err := Load(func(c *Config) { c.Model = "gpt-test" })
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", cfg.Model)
}
