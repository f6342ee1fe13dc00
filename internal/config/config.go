package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	units "github.com/docker/go-units"
)

const defaultMaxUploadSize = 10 * 1000 * 1000

// accessCodeFallbacks are older names the access code has been deployed under.
var accessCodeFallbacks = []string{"APP_ACCESS_CODE", "LOGIN_CODE"}

// Config holds server runtime configuration.
type Config struct {
	// Server
	Port           int           `env:"PORT" envDefault:"8000"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	HealthPort     int           `env:"HEALTH_PORT" envDefault:"8081"` // recorder worker health server

	// Upload limits, human readable ("10MB", "512kB")
	MaxUploadSizeRaw string `env:"MAX_UPLOAD_SIZE" envDefault:"10MB"`
	MaxUploadSize    int64

	// Access control
	APIKey          string        `env:"API_KEY"`
	AccessCode      string        `env:"ACCESS_CODE"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"15m"`
	LoginRate       int           `env:"LOGIN_RATE" envDefault:"5"` // attempts per minute per client
	SessionProvider string        `env:"SESSION_PROVIDER" envDefault:"memory"` // "memory" or "redis"
	// Proxies (IPs or CIDRs) allowed to name the client in X-Forwarded-For / X-Real-IP
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
	// Browser origins allowed by CORS; empty disables CORS headers
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Redis (sessions and result cache)
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"none"` // "none" or "redis"
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"3600"` // seconds

	// Pipeline & LLM
	PipelineProvider string `env:"PIPELINE_PROVIDER" envDefault:"stub"` // "stub" or "openai"
	OpenAIKey        string `env:"OPENAI_API_KEY"`
	LLMModel         string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel   string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// History
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"none"` // "none" or "nats"
	QueueURL      string `env:"QUEUE_URL"`
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"none"` // "none" or "postgres"
	DBURL         string `env:"DB_URL"`

	// Conversion & translation
	ConverterCommand  string        `env:"CONVERTER_COMMAND" envDefault:"soffice --headless"`
	ConvertTempDir    string        `env:"CONVERT_TEMP_DIR"`
	ConvertTimeout    time.Duration `env:"CONVERT_TIMEOUT" envDefault:"2m"`
	TranslateMaxChars int           `env:"TRANSLATE_MAX_CHARS" envDefault:"20000"`
}

// ClientConfig holds CLI client configuration.
type ClientConfig struct {
	BackendURL  string        `env:"BACKEND_URL" envDefault:"http://localhost:8000"`
	APIKey      string        `env:"API_KEY"`
	AccessCode  string        `env:"ACCESS_CODE"`
	Timeout     time.Duration `env:"CLIENT_TIMEOUT" envDefault:"120s"`
	MaxAttempts int           `env:"CLIENT_MAX_ATTEMPTS" envDefault:"3"`
	RetryBase   time.Duration `env:"CLIENT_RETRY_BASE" envDefault:"500ms"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	if cfg.AccessCode == "" {
		cfg.AccessCode = lookupFallback(accessCodeFallbacks)
	}
	cfg.MaxUploadSize = parseSize(cfg.MaxUploadSizeRaw)
	return cfg
}

// LoadClient reads client configuration from environment variables with defaults.
func LoadClient() ClientConfig {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	if cfg.AccessCode == "" {
		cfg.AccessCode = lookupFallback(accessCodeFallbacks)
	}
	return cfg
}

func parseSize(raw string) int64 {
	size, err := units.FromHumanSize(raw)
	if err != nil || size <= 0 {
		slog.Warn("invalid MAX_UPLOAD_SIZE; using default", "value", raw, "err", err)
		return defaultMaxUploadSize
	}
	return size
}

func lookupFallback(names []string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
