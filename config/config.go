// Package config provides application configuration read from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/tutormesh/collab"
	"github.com/hupe1980/tutormesh/logging"
)

// Supported completion providers.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config holds all application configuration.
type Config struct {
	DBPath     string // empty = in-memory stores
	AgentsFile string

	Provider  string
	Model     string
	APIKey    string
	MaxTokens int

	UseAIRouting bool
	HistoryLimit int
	CallTimeout  time.Duration

	CollabStyle     collab.Style
	CollabMaxAgents int

	LogLevel  logging.LogLevel
	LogFormat string
}

// Load reads configuration from environment variables. Overrides run after
// the environment is read and before validation.
func Load(overrides ...func(c *Config)) (*Config, error) {
	cfg := &Config{
		DBPath:          getEnv("TUTOR_DB_PATH", ""),
		AgentsFile:      getEnv("TUTOR_AGENTS_FILE", ""),
		Provider:        strings.ToLower(getEnv("TUTOR_PROVIDER", ProviderMock)),
		Model:           getEnv("TUTOR_MODEL", ""),
		APIKey:          getEnv("TUTOR_API_KEY", ""),
		MaxTokens:       getEnvInt("TUTOR_MAX_TOKENS", 1024),
		UseAIRouting:    getEnvBool("TUTOR_USE_AI_ROUTING", false),
		HistoryLimit:    getEnvInt("TUTOR_HISTORY_LIMIT", 10),
		CallTimeout:     getEnvDuration("TUTOR_CALL_TIMEOUT", 60*time.Second),
		CollabMaxAgents: getEnvInt("TUTOR_COLLAB_MAX_AGENTS", collab.DefaultMaxAgents),
		LogFormat:       strings.ToLower(getEnv("TUTOR_LOG_FORMAT", "text")),
	}

	style, err := collab.ParseStyle(getEnv("TUTOR_COLLAB_STYLE", string(collab.StyleParallel)))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: TUTOR_COLLAB_STYLE: %w", err)
	}
	cfg.CollabStyle = style

	level, err := logging.ParseLevel(getEnv("TUTOR_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: TUTOR_LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	for _, fn := range overrides {
		fn(cfg)
	}
	cfg.Provider = strings.ToLower(cfg.Provider)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges and provider requirements.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMock:
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		if c.Model == "" {
			return fmt.Errorf("TUTOR_MODEL is required for provider %q", c.Provider)
		}
	default:
		return fmt.Errorf("TUTOR_PROVIDER must be one of mock, openai, anthropic, gemini; got %q", c.Provider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("TUTOR_MAX_TOKENS must be > 0")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("TUTOR_HISTORY_LIMIT must be > 0")
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("TUTOR_CALL_TIMEOUT cannot be negative")
	}
	if !c.CollabStyle.Valid() {
		return fmt.Errorf("TUTOR_COLLAB_STYLE %q is not supported", c.CollabStyle)
	}
	if c.CollabMaxAgents <= 0 {
		return fmt.Errorf("TUTOR_COLLAB_MAX_AGENTS must be > 0")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("TUTOR_LOG_FORMAT must be text or json")
	}
	return nil
}

// Persistent reports whether a database file is configured.
func (c *Config) Persistent() bool { return c.DBPath != "" }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
