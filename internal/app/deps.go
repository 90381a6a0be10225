package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"doc-chat/internal/answer"
	"doc-chat/internal/config"
	"doc-chat/internal/events"
	"doc-chat/internal/extract"
	"doc-chat/internal/llm"
	"doc-chat/internal/logger"
	"doc-chat/internal/session"
)

// ErrServiceInit wraps failures to construct a backing service client (LLM, Redis, NATS).
var ErrServiceInit = errors.New("service initialization failed")

// Deps bundles common runtime dependencies for the server and the terminal chat.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	LLM      llm.Client
	Store    session.Store
	Events   events.Publisher
	Sessions *session.Controller

	closers []func() error
}

// Build loads .env (if present), config, and shared components.
func Build(ctx context.Context) (Deps, error) {
	if err := LoadDotEnv(); err != nil {
		return Deps{}, err
	}
	cfg := config.Load()
	return BuildWith(ctx, cfg, logger.New(cfg.LogLevel))
}

// LoadDotEnv loads .env from the working directory. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// BuildWith validates cfg and wires every component. Errors wrap config.ErrMissingCredential
// when the provider credential is absent, or ErrServiceInit when a client cannot be created.
func BuildWith(ctx context.Context, cfg config.Config, log *slog.Logger) (Deps, error) {
	if err := cfg.Validate(); err != nil {
		return Deps{}, err
	}
	deps := Deps{Config: cfg, Log: log}

	llmClient, closeLLM, err := buildLLM(ctx, cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("%w: llm: %w", ErrServiceInit, err)
	}
	deps.LLM = llmClient
	deps.addCloser(closeLLM)

	st, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("%w: session store: %w", ErrServiceInit, err)
	}
	deps.Store = st
	deps.addCloser(closeStore)

	pub, err := buildEvents(cfg, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("%w: events: %w", ErrServiceInit, err)
	}
	deps.Events = pub
	deps.addCloser(pub.Close)

	gen := answer.NewGenerator(llmClient, log, cfg.LLMTimeout)
	deps.Sessions = session.NewController(st, extract.PDF{}, gen, pub, log, cfg.Greeting)
	return deps, nil
}

func (d *Deps) addCloser(fn func() error) {
	if fn != nil {
		d.closers = append(d.closers, fn)
	}
}

// Close releases connections in reverse order of creation.
func (d Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildLLM(ctx context.Context, cfg config.Config, log *slog.Logger) (llm.Client, func() error, error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := llm.NewGeminiClient(cfg.GoogleAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		log.Info("using Gemini LLM client", "model", client.Model())
		return client, nil, nil
	case "openai":
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.LLMModel)
		return client, nil, nil
	case "vertex":
		client, err := llm.NewVertexClient(ctx, cfg.VertexProject, cfg.VertexRegion, cfg.LLMModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Vertex AI client: %w", err)
		}
		log.Info("using Vertex AI LLM client", "project", cfg.VertexProject, "region", cfg.VertexRegion)
		return client, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: gemini, openai, vertex)", cfg.LLMProvider)
	}
}

func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (session.Store, func() error, error) {
	switch cfg.SessionStore {
	case "memory", "":
		log.Info("using in-memory session store", "ttl", cfg.SessionTTL)
		return session.NewMemoryStore(cfg.SessionTTL), nil, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("REDIS_ADDR is required when SESSION_STORE=redis")
		}
		rs, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using Redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
		return rs, rs.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid SESSION_STORE: %s (valid options: memory, redis)", cfg.SessionStore)
	}
}

func buildEvents(cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	switch cfg.EventsProvider {
	case "none", "":
		return events.NewNoOp(), nil
	case "nats":
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("NATS_URL is required when EVENTS_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("doc-chat"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("publishing session events to NATS", "subject_prefix", events.SubjectPrefix)
		return events.NewNATS(log, nc), nil
	default:
		return nil, fmt.Errorf("invalid EVENTS_PROVIDER: %s (valid options: none, nats)", cfg.EventsProvider)
	}
}
