// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all application configuration.
type Config struct {
	Port          string        `env:"PORT" envDefault:"8080"`
	FrontendURL   string        `env:"FRONTEND_URL"`
	DBPath        string        `env:"DB_PATH" envDefault:"./data/skinconsult.db"`
	CatalogPath   string        `env:"CATALOG_PATH" envDefault:"./data/catalog.json"`
	KnowledgeDir  string        `env:"KNOWLEDGE_DIR" envDefault:"./data/knowledge"`
	ProductDomain string        `env:"PRODUCT_DOMAIN" envDefault:"https://www.dermalab.it"`
	BrandName     string        `env:"BRAND_NAME" envDefault:"DermaLab"`
	TurnTimeout   time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`

	LLM        LLMConfig
	Session    SessionConfig
	Retrieval  RetrievalConfig
	RateLimit  RateLimitConfig
	Transcript TranscriptConfig

	MaxRequestBodySize int64  `env:"MAX_REQUEST_BODY_SIZE" envDefault:"16777216"`
	SnapshotExportPath string `env:"SNAPSHOT_EXPORT_PATH" envDefault:"./data/exports/snapshots.ndjson"`
}

// LLMConfig configures the text completion gateway.
type LLMConfig struct {
	APIKey          string        `env:"OPENAI_API_KEY"`
	BaseURL         string        `env:"OPENAI_BASE_URL"`
	Model           string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature     float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxOutputTokens int           `env:"LLM_MAX_OUTPUT_TOKENS" envDefault:"1024"`
	MaxAttempts     int           `env:"LLM_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay  time.Duration `env:"LLM_RETRY_BASE_DELAY" envDefault:"500ms"`
	RequestTimeout  time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether a model is configured.
func (c LLMConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// SessionConfig controls in-memory session retention.
type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"60m"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
}

// RetrievalConfig selects the knowledge source.
type RetrievalConfig struct {
	// GRPCAddr enables the remote provider; the lexical index is the fallback.
	GRPCAddr string `env:"RAG_GRPC_ADDR"`
	TopK     int    `env:"RAG_TOP_K" envDefault:"3"`
}

// RateLimitConfig holds per-visitor throttling for send-message.
type RateLimitConfig struct {
	RequestsPerWindow int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	WindowDuration    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// TranscriptConfig controls NDJSON conversation logging.
type TranscriptConfig struct {
	Enabled       bool   `env:"TRANSCRIPT_LOG_ENABLED" envDefault:"true"`
	Dir           string `env:"TRANSCRIPT_LOG_DIR" envDefault:"./data/logs/conversations"`
	GlobalEnabled bool   `env:"TRANSCRIPT_LOG_GLOBAL_ENABLED" envDefault:"false"`
	GlobalPath    string `env:"TRANSCRIPT_LOG_GLOBAL_PATH" envDefault:"./data/logs/conversations/all.ndjson"`
	QueueSize     int    `env:"TRANSCRIPT_LOG_QUEUE_SIZE" envDefault:"1000"`
}

// Load reads configuration from environment variables. Loading a .env file
// is left to the caller.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ProductDomain = strings.TrimRight(cfg.ProductDomain, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	if u, err := url.Parse(c.ProductDomain); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PRODUCT_DOMAIN must be an absolute URL, got %q", c.ProductDomain))
	}
	if c.TurnTimeout <= 0 {
		errs = append(errs, errors.New("TURN_TIMEOUT must be > 0"))
	}
	if c.LLM.MaxAttempts <= 0 {
		errs = append(errs, errors.New("LLM_MAX_ATTEMPTS must be > 0"))
	}
	if c.LLM.MaxOutputTokens <= 0 {
		errs = append(errs, errors.New("LLM_MAX_OUTPUT_TOKENS must be > 0"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, errors.New("LLM_TEMPERATURE must be within [0, 2]"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be > 0"))
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be > 0"))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("RAG_TOP_K must be > 0"))
	}
	if c.RateLimit.RequestsPerWindow < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be >= 0"))
	}
	if c.RateLimit.WindowDuration <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be > 0"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be > 0"))
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		errs = append(errs, errors.New("TRANSCRIPT_LOG_DIR cannot be empty"))
	}
	if c.Transcript.QueueSize <= 0 {
		errs = append(errs, errors.New("TRANSCRIPT_LOG_QUEUE_SIZE must be > 0"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the chat widget.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}
