package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pixil98/go-errors"
	"github.com/rs/zerolog"
)

const defaultSystemPrompt = "You are the game master of a cooperative dungeon crawl. Be vivid but brief. When asked for JSON, answer with JSON only."

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"./gptdungeon.db"`

	DefaultProvider string        `env:"DEFAULT_PROVIDER" envDefault:"openai"`
	DefaultModel    string        `env:"DEFAULT_MODEL" envDefault:"gpt-4o-mini"`
	SystemPrompt    string        `env:"SYSTEM_PROMPT"`
	OpenAIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL"`
	OllamaHost      string        `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	ContentTimeout  time.Duration `env:"CONTENT_TIMEOUT" envDefault:"20s"`

	ActionTimeout       time.Duration `env:"ACTION_TIMEOUT" envDefault:"30s"`
	IdleCleanupDelay    time.Duration `env:"IDLE_CLEANUP_DELAY" envDefault:"30s"`
	GameEndCleanupDelay time.Duration `env:"GAME_END_CLEANUP_DELAY" envDefault:"60s"`
	MaxPartySize        int           `env:"MAX_PARTY_SIZE" envDefault:"4"`

	EventBus         string        `env:"EVENT_BUS" envDefault:"local"`
	NatsHost         string        `env:"NATS_HOST" envDefault:"127.0.0.1"`
	NatsPort         int           `env:"NATS_PORT" envDefault:"4222"`
	NatsStartTimeout time.Duration `env:"NATS_START_TIMEOUT" envDefault:"10s"`

	EventRate  float64 `env:"EVENT_RATE" envDefault:"5"`
	EventBurst int     `env:"EVENT_BURST" envDefault:"10"`

	ExportEnabled bool   `env:"EXPORT_ENABLED" envDefault:"false"`
	ExportFile    string `env:"EXPORT_FILE" envDefault:"./gptdungeon-chronicles.txt"`

	GMUser string `env:"GM_USER"`
	GMPass string `env:"GM_PASS"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// FromEnv parses and validates the configuration.
func FromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	el := errors.NewErrorList()

	switch strings.ToLower(c.DefaultProvider) {
	case "openai", "ollama":
	default:
		el.Add(fmt.Errorf("DEFAULT_PROVIDER must be openai or ollama, got %q", c.DefaultProvider))
	}
	switch c.EventBus {
	case "local", "nats":
	default:
		el.Add(fmt.Errorf("EVENT_BUS must be local or nats, got %q", c.EventBus))
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		el.Add(fmt.Errorf("DATABASE_PATH is required"))
	}
	if c.ActionTimeout <= 0 {
		el.Add(fmt.Errorf("ACTION_TIMEOUT must be positive"))
	}
	if c.IdleCleanupDelay <= 0 || c.GameEndCleanupDelay <= 0 {
		el.Add(fmt.Errorf("cleanup delays must be positive"))
	}
	if c.MaxPartySize < 1 {
		el.Add(fmt.Errorf("MAX_PARTY_SIZE must be at least 1"))
	}
	if c.EventRate <= 0 || c.EventBurst < 1 {
		el.Add(fmt.Errorf("EVENT_RATE and EVENT_BURST must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		el.Add(fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.ExportEnabled && strings.TrimSpace(c.ExportFile) == "" {
		el.Add(fmt.Errorf("EXPORT_FILE is required when EXPORT_ENABLED is set"))
	}

	return el.Err()
}
