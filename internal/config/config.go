package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	pkgRetry "github.com/futig/medical-chatbot/internal/pkg/retry"
	"github.com/joho/godotenv"
)

// Vector store backends
const (
	VectorStorePinecone = "pinecone"
	VectorStorePgvector = "pgvector"
	VectorStoreChromem  = "chromem"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr     string        `env:"SERVER_ADDR" envDefault:":8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"90s"`

	// Provider credentials
	GroqAPIKey     string `env:"GROQ_API_KEY,notEmpty"`
	PineconeAPIKey string `env:"PINECONE_API_KEY"`

	// External service configurations
	LLMCfg         LLMConfig         `envPrefix:"LLM_"`
	EmbeddingCfg   EmbeddingConfig   `envPrefix:"EMBEDDING_"`
	VectorStoreCfg VectorStoreConfig `envPrefix:"VECTOR_STORE_"`

	// Conversation history
	HistoryCfg HistoryConfig `envPrefix:"HISTORY_"`

	// Session cookie
	SessionCfg SessionConfig `envPrefix:"SESSION_"`

	// Longest accepted question, in characters
	MaxQuestionLength int `env:"MAX_QUESTION_LENGTH" envDefault:"2000"`

	// Ingestion
	IngestCfg IngestConfig `envPrefix:"INGEST_"`

	// Prompts file (YAML); built-in prompts are used when it is missing
	PromptsFile string `env:"PROMPTS_FILE" envDefault:"configs/prompts.yaml"`
	Prompts     Prompts

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Environment (set from flag, not from env var)
	Environment string
}

type LLMConfig struct {
	HTTPClientConfig
	Model       string  `env:"MODEL" envDefault:"llama3-8b-8192"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0"`
	MaxTokens   int     `env:"MAX_TOKENS" envDefault:"512"`
}

type EmbeddingConfig struct {
	HTTPClientConfig
	Model       string               `env:"MODEL" envDefault:"sentence-transformers/all-MiniLM-L6-v2"`
	Dimension   int                  `env:"DIMENSION" envDefault:"384"`
	BatchSize   int                  `env:"BATCH_SIZE" envDefault:"64"`
	Concurrency int                  `env:"CONCURRENCY" envDefault:"4"`
	Retry       pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type VectorStoreConfig struct {
	Type      string               `env:"TYPE" envDefault:"pinecone"`
	IndexName string               `env:"INDEX_NAME" envDefault:"medical-chatbot"`
	Pinecone  PineconeConfig       `envPrefix:"PINECONE_"`
	Postgres  PostgresConfig       `envPrefix:"PG_"`
	Chromem   ChromemConfig        `envPrefix:"CHROMEM_"`
	Retry     pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type PineconeConfig struct {
	HTTPClientConfig
	Cloud      string `env:"CLOUD" envDefault:"aws"`
	Region     string `env:"REGION" envDefault:"us-east-1"`
	APIVersion string `env:"API_VERSION" envDefault:"2024-07"`
	UpsertSize int    `env:"UPSERT_BATCH_SIZE" envDefault:"100"`

	// Index creation is asynchronous; readiness is polled until ReadyTimeout.
	ReadyTimeout      time.Duration `env:"READY_TIMEOUT" envDefault:"2m"`
	ReadyPollInterval time.Duration `env:"READY_POLL_INTERVAL" envDefault:"2s"`
}

type PostgresConfig struct {
	DatabaseURL       string        `env:"DATABASE_URL"`
	MaxConns          int           `env:"MAX_CONNS" envDefault:"10"`
	MinConns          int           `env:"MIN_CONNS" envDefault:"1"`
	MaxConnLifetime   time.Duration `env:"MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime   time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"30m"`
	HealthCheckPeriod time.Duration `env:"HEALTH_CHECK_PERIOD" envDefault:"1m"`
	QueryTimeout      time.Duration `env:"QUERY_TIMEOUT" envDefault:"10s"`
}

type ChromemConfig struct {
	// Path is the persistence directory; empty keeps the index in memory.
	Path     string `env:"PATH" envDefault:"./chromemdb"`
	Compress bool   `env:"COMPRESS" envDefault:"false"`
}

type HistoryConfig struct {
	TTL             time.Duration `env:"TTL" envDefault:"24h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
	MaxTurns        int           `env:"MAX_TURNS" envDefault:"0"` // 0 = unbounded
}

type SessionConfig struct {
	CookieName   string `env:"COOKIE_NAME" envDefault:"chat_session"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`
}

type IngestConfig struct {
	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"500"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"20"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"60s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"60s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

// LoadConfig reads .env.<environment> (if present) and the process
// environment. Missing credentials fail here, before anything is served.
func LoadConfig(environment string) (*Config, error) {
	envFile := getEnvFile(environment)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	return parse(environment)
}

func parse(environment string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = environment
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	prompts, err := LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	cfg.Prompts = *prompts

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLMCfg.Url == "" {
		cfg.LLMCfg.Url = "https://api.groq.com/openai/v1"
	}
	if cfg.LLMCfg.Token == "" {
		cfg.LLMCfg.Token = cfg.GroqAPIKey
	}
	if cfg.EmbeddingCfg.Url == "" {
		cfg.EmbeddingCfg.Url = "http://localhost:8081/v1"
	}
	if cfg.VectorStoreCfg.Pinecone.Url == "" {
		cfg.VectorStoreCfg.Pinecone.Url = "https://api.pinecone.io"
	}
	if cfg.VectorStoreCfg.Pinecone.Token == "" {
		cfg.VectorStoreCfg.Pinecone.Token = cfg.PineconeAPIKey
	}
	cfg.VectorStoreCfg.Type = strings.ToLower(cfg.VectorStoreCfg.Type)
}

func validateConfig(cfg *Config) error {
	var errors []string

	switch cfg.VectorStoreCfg.Type {
	case VectorStorePinecone:
		if cfg.PineconeAPIKey == "" {
			errors = append(errors, "PINECONE_API_KEY is required when VECTOR_STORE_TYPE=pinecone")
		}
	case VectorStorePgvector:
		if cfg.VectorStoreCfg.Postgres.DatabaseURL == "" {
			errors = append(errors, "VECTOR_STORE_PG_DATABASE_URL is required when VECTOR_STORE_TYPE=pgvector")
		}
	case VectorStoreChromem:
	default:
		errors = append(errors, fmt.Sprintf("VECTOR_STORE_TYPE must be one of pinecone, pgvector, chromem, got %q", cfg.VectorStoreCfg.Type))
	}

	if cfg.EmbeddingCfg.Dimension < 1 {
		errors = append(errors, fmt.Sprintf("EMBEDDING_DIMENSION must be positive, got %d", cfg.EmbeddingCfg.Dimension))
	}

	if cfg.EmbeddingCfg.BatchSize < 1 || cfg.EmbeddingCfg.BatchSize > 2048 {
		errors = append(errors, fmt.Sprintf("EMBEDDING_BATCH_SIZE must be between 1 and 2048, got %d", cfg.EmbeddingCfg.BatchSize))
	}

	if cfg.IngestCfg.ChunkSize < 1 {
		errors = append(errors, fmt.Sprintf("INGEST_CHUNK_SIZE must be positive, got %d", cfg.IngestCfg.ChunkSize))
	}

	if cfg.IngestCfg.ChunkOverlap < 0 || cfg.IngestCfg.ChunkOverlap >= cfg.IngestCfg.ChunkSize {
		errors = append(errors, fmt.Sprintf("INGEST_CHUNK_OVERLAP must be between 0 and INGEST_CHUNK_SIZE(%d), got %d", cfg.IngestCfg.ChunkSize, cfg.IngestCfg.ChunkOverlap))
	}

	if cfg.MaxQuestionLength < 1 {
		errors = append(errors, fmt.Sprintf("MAX_QUESTION_LENGTH must be positive, got %d", cfg.MaxQuestionLength))
	}

	if cfg.RequestTimeout <= cfg.LLMCfg.RequestTimeout {
		errors = append(errors, fmt.Sprintf("REQUEST_TIMEOUT (%s) must be longer than LLM_TIMEOUT (%s)", cfg.RequestTimeout, cfg.LLMCfg.RequestTimeout))
	}

	if cfg.HistoryCfg.MaxTurns < 0 {
		errors = append(errors, fmt.Sprintf("HISTORY_MAX_TURNS must not be negative, got %d", cfg.HistoryCfg.MaxTurns))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development", "":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
