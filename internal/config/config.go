package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "DOCQA"

// Embedding and generation backends.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"3"`

	ChunkSize     int     `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap  int     `envconfig:"CHUNK_OVERLAP" default:"200"`
	TopK          int     `envconfig:"TOP_K" default:"3"`
	MinSimilarity float64 `envconfig:"MIN_SIMILARITY" default:"0"`

	EmbeddingProvider    string `envconfig:"EMBEDDING_PROVIDER" default:"hash"`
	EmbeddingModel       string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions  int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`
	EmbeddingBatchSize   int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"64"`
	EmbeddingConcurrency int    `envconfig:"EMBEDDING_CONCURRENCY" default:"4"`

	LLMProvider    string        `envconfig:"LLM_PROVIDER" default:"ollama"`
	LLMTemperature float32       `envconfig:"LLM_TEMPERATURE" default:"0.3"`
	LLMMaxTokens   int           `envconfig:"LLM_MAX_TOKENS" default:"512"`
	LLMTimeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	OllamaURL   string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel string `envconfig:"OLLAMA_MODEL" default:"llama3"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	MaxUploadBytes int64   `envconfig:"MAX_UPLOAD_BYTES" default:"20971520"`
	AskRateLimit   float64 `envconfig:"ASK_RATE_LIMIT" default:"0"`
	AskRateBurst   int     `envconfig:"ASK_RATE_BURST" default:"5"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docqa-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN        string  `envconfig:"SENTRY_DSN"`
	Environment      string  `envconfig:"ENVIRONMENT" default:"development"`
	TracesSampleRate float64 `envconfig:"TRACES_SAMPLE_RATE" default:"0"`
}

// Load reads .env when present and then the DOCQA_ environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	c.EmbeddingProvider = strings.ToLower(strings.TrimSpace(c.EmbeddingProvider))
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("%s_DATABASE_URL is required", envPrefix)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%s_CHUNK_SIZE must be positive, got %d", envPrefix, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%s_CHUNK_OVERLAP must be in [0, %d), got %d", envPrefix, c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%s_TOP_K must be positive, got %d", envPrefix, c.TopK)
	}
	if c.MinSimilarity < 0 {
		c.MinSimilarity = 0
	}

	switch c.EmbeddingProvider {
	case ProviderHash, ProviderOllama:
	case ProviderOpenAI:
		if !c.HasOpenAI() {
			return fmt.Errorf("%s_OPENAI_API_KEY is required for the openai embedding provider", envPrefix)
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", c.EmbeddingProvider)
	}

	switch c.LLMProvider {
	case ProviderOllama:
	case ProviderOpenAI:
		if !c.HasOpenAI() {
			return fmt.Errorf("%s_OPENAI_API_KEY is required for the openai llm provider", envPrefix)
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
