package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// ErrMissingCredential is returned by Validate when the selected LLM provider has no credential.
var ErrMissingCredential = errors.New("missing llm credential")

// Config holds runtime configuration. Only the provider credential is required.
type Config struct {
	// Server
	Port           int           `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"0s"` // 0 disables the timeout middleware

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// LLM
	LLMProvider   string        `env:"LLM_PROVIDER" envDefault:"gemini"` // "gemini", "openai" or "vertex"
	GoogleAPIKey  string        `env:"GOOGLE_API_KEY"`
	OpenAIKey     string        `env:"OPENAI_API_KEY"`
	LLMModel      string        `env:"LLM_MODEL"` // empty selects the provider default
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"0s"`
	VertexProject string        `env:"VERTEX_PROJECT_ID"`
	VertexRegion  string        `env:"VERTEX_REGION" envDefault:"us-central1"`

	// Sessions
	SessionStore  string        `env:"SESSION_STORE" envDefault:"memory"` // "memory" or "redis"
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	Greeting      string        `env:"GREETING"`

	// Events
	EventsProvider string `env:"EVENTS_PROVIDER" envDefault:"none"` // "none" or "nats"
	NATSURL        string `env:"NATS_URL"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}

// Validate checks that the credential for the selected provider is present.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "gemini":
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY is required when LLM_PROVIDER=gemini", ErrMissingCredential)
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required when LLM_PROVIDER=openai", ErrMissingCredential)
		}
	case "vertex":
		if c.VertexProject == "" {
			return fmt.Errorf("%w: VERTEX_PROJECT_ID is required when LLM_PROVIDER=vertex", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: gemini, openai, vertex)", c.LLMProvider)
	}
	return nil
}
