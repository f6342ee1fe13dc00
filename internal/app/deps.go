package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"
	"github.com/redis/go-redis/v9"

	"pdf-assistant/internal/cache"
	"pdf-assistant/internal/config"
	"pdf-assistant/internal/convert"
	"pdf-assistant/internal/embeddings"
	"pdf-assistant/internal/generate"
	"pdf-assistant/internal/history"
	"pdf-assistant/internal/httputil"
	"pdf-assistant/internal/llm"
	"pdf-assistant/internal/logger"
	"pdf-assistant/internal/pdftext"
	"pdf-assistant/internal/pipeline"
	"pdf-assistant/internal/queue"
	"pdf-assistant/internal/session"
	"pdf-assistant/internal/store"
	"pdf-assistant/internal/translate"
)

// Deps bundles the runtime dependencies of the API server.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Pipeline  pipeline.Pipeline
	Gate      *session.Gate
	Sessions  session.Store
	Recorder  history.Recorder
	Store     store.Store        // nil unless STORE_PROVIDER=postgres
	Translate *translate.Service // nil without an LLM
	Convert   *convert.Service
	Generator *generate.Generator
	// TrustedProxies parsed from TRUSTED_PROXIES.
	TrustedProxies []netip.Prefix

	closers []func() error
}

// RecorderDeps bundles the dependencies of the history recorder worker.
type RecorderDeps struct {
	Config config.Config
	Log    *slog.Logger
	Queue  queue.Queue
	Store  store.Store
}

// Close releases connections opened by Build.
func (d Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && d.Log != nil {
			d.Log.Warn("close failed", "err", err)
		}
	}
}

// LoadEnv reads a .env file if one exists.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// Build loads env, config, and shared components for the API server.
func Build() (Deps, error) {
	if err := LoadEnv(); err != nil {
		return Deps{}, err
	}
	cfg := config.Load()
	log := logger.New("server", cfg.LogLevel)
	deps := Deps{Config: cfg, Log: log}

	proxies, err := httputil.ParseProxies(cfg.TrustedProxies)
	if err != nil {
		return Deps{}, err
	}
	deps.TrustedProxies = proxies

	var rdb *redis.Client
	if cfg.SessionProvider == "redis" || cfg.CacheProvider == "redis" {
		client, err := buildRedis(cfg)
		if err != nil {
			return Deps{}, fmt.Errorf("failed to initialize redis: %w", err)
		}
		rdb = client
		deps.closers = append(deps.closers, client.Close)
	}

	sessions, err := buildSessionStore(cfg, log, rdb)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize session store: %w", err)
	}
	deps.Sessions = sessions
	deps.Gate = session.NewGate(cfg.AccessCode, sessions, cfg.SessionTTL, cfg.LoginRate)
	if deps.Gate.Enabled() {
		log.Info("access gate enabled", "ttl", deps.Gate.TTL())
	}

	llmClient, err := buildLLM(cfg, log)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	deps.Pipeline, err = buildPipeline(cfg, log, llmClient, rdb)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	deps.Recorder, err = buildRecorder(cfg, log, &deps)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize recorder: %w", err)
	}

	if cfg.StoreProvider == "postgres" {
		st, err := buildStore(cfg, log)
		if err != nil {
			deps.Close()
			return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
		}
		deps.Store = st
		deps.closers = append(deps.closers, st.Close)
	}

	converter, err := convert.NewLibreOffice(cfg.ConverterCommand, cfg.ConvertTimeout)
	if err != nil {
		deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize converter: %w", err)
	}
	deps.Convert = &convert.Service{Converter: converter, TempDir: cfg.ConvertTempDir}

	deps.Generator = &generate.Generator{LLM: llmClient}
	if llmClient != nil {
		deps.Translate = &translate.Service{
			Extractor:  pdftext.Reader{},
			Translator: &translate.LLMTranslator{LLM: llmClient, Model: cfg.LLMModel},
			MaxChars:   cfg.TranslateMaxChars,
		}
	} else {
		log.Warn("OPENAI_API_KEY not set; translation and generation disabled")
	}

	return deps, nil
}

// BuildRecorder loads config and the queue and store the recorder worker needs.
func BuildRecorder() (RecorderDeps, error) {
	if err := LoadEnv(); err != nil {
		return RecorderDeps{}, err
	}
	cfg := config.Load()
	log := logger.New("recorder", cfg.LogLevel)

	if cfg.QueueProvider != "nats" {
		return RecorderDeps{}, fmt.Errorf("invalid QUEUE_PROVIDER: %s (the recorder requires nats)", cfg.QueueProvider)
	}
	if cfg.StoreProvider != "postgres" {
		return RecorderDeps{}, fmt.Errorf("invalid STORE_PROVIDER: %s (the recorder requires postgres)", cfg.StoreProvider)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return RecorderDeps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	st, err := buildStore(cfg, log)
	if err != nil {
		return RecorderDeps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	return RecorderDeps{Config: cfg, Log: log, Queue: q, Store: st}, nil
}

func buildRedis(cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func buildSessionStore(cfg config.Config, log *slog.Logger, rdb *redis.Client) (session.Store, error) {
	switch cfg.SessionProvider {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis client required when SESSION_PROVIDER=redis")
		}
		log.Info("using Redis session store")
		return session.NewRedisStore(rdb), nil
	default:
		return nil, fmt.Errorf("invalid SESSION_PROVIDER: %s (valid options: memory, redis)", cfg.SessionProvider)
	}
}

func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	if cfg.OpenAIKey == "" {
		return nil, nil
	}
	client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	log.Info("using OpenAI LLM client", "model", cfg.LLMModel)
	return client, nil
}

func buildPipeline(cfg config.Config, log *slog.Logger, client llm.Client, rdb *redis.Client) (pipeline.Pipeline, error) {
	switch cfg.PipelineProvider {
	case "", "stub":
		log.Info("using stub pipeline")
		return pipeline.Stub{}, nil
	case "openai":
		if client == nil {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when PIPELINE_PROVIDER=openai")
		}
		embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		var c cache.Cache = cache.NewNoOpCache()
		if cfg.CacheProvider == "redis" {
			c = cache.NewRedisCacheFromClient(rdb)
			log.Info("using Redis result cache", "ttl_seconds", cfg.CacheTTL)
		}
		log.Info("using assistant pipeline", "embedding_model", cfg.EmbeddingModel)
		return &pipeline.Assistant{
			Extractor: pdftext.Reader{},
			LLM:       client,
			Embedder:  embedder,
			Cache:     c,
			CacheTTL:  time.Duration(cfg.CacheTTL) * time.Second,
			Log:       log,
		}, nil
	default:
		return nil, fmt.Errorf("invalid PIPELINE_PROVIDER: %s (valid options: stub, openai)", cfg.PipelineProvider)
	}
}

func buildRecorder(cfg config.Config, log *slog.Logger, deps *Deps) (history.Recorder, error) {
	switch cfg.QueueProvider {
	case "", "none":
		return history.NopRecorder{}, nil
	case "nats":
		q, nc, err := connectNATS(cfg, log)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, func() error { nc.Close(); return nil })
		return &history.QueueRecorder{Queue: q}, nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: none, nats)", cfg.QueueProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	q, _, err := connectNATS(cfg, log)
	return q, err
}

func connectNATS(cfg config.Config, log *slog.Logger) (queue.Queue, *nats.Conn, error) {
	if cfg.QueueURL == "" {
		return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
	}
	nc, err := nats.Connect(cfg.QueueURL, nats.Name("pdf-assistant"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("using NATS queue")
	return queue.NewNATS(log, nc), nc, nil
}

func buildStore(cfg config.Config, log *slog.Logger) (*store.PostgresStore, error) {
	if cfg.DBURL == "" {
		return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
	}
	db, err := store.NewPostgres(cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
	}
	log.Info("using Postgres store")
	return db, nil
}
