package admin

import (
	"context"
	"fmt"
	"log"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/embedding"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/ollama"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/ranking"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/repository/sqlite"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
)

// app is the wired service graph of the daemon.
type app struct {
	rag     *service.RAGService
	encoder *embedding.Encoder
	close   func()
}

// openStore connects to the configured database, applying migrations
// unless migrate is false.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (service.SegmentStore, func(), error) {
	dialect, err := database.DialectOf(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	if migrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	switch dialect {
	case database.DialectSQLite:
		db, err := database.OpenSQLite(ctx, database.SQLitePath(cfg.DatabaseURL))
		if err != nil {
			return nil, nil, err
		}
		log.Println("connected to database (sqlite)")
		store := sqlite.NewStore(db)
		return store, func() { _ = store.Close() }, nil
	default:
		pool, err := database.NewPool(ctx, database.Config{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Println("connected to database")
		return repository.NewStore(pool), pool.Close, nil
	}
}

func newOllamaClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClient(ollama.Config{
		BaseURL:             cfg.OllamaURL,
		Model:               cfg.OllamaModel,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		Timeout:             cfg.LLMTimeout,
		Temperature:         float64(cfg.LLMTemperature),
		MaxTokens:           cfg.LLMMaxTokens,
	})
}

func newOpenAIClient(cfg *config.Config) (*openai.Client, error) {
	return openai.NewClient(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      openaisdk.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.OpenAIModel,
		Temperature:         float64(cfg.LLMTemperature),
		MaxTokens:           cfg.LLMMaxTokens,
		Timeout:             cfg.LLMTimeout,
	})
}

// embeddingLoader selects the embedding model for the configured provider.
func embeddingLoader(cfg *config.Config) (embedding.Loader, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		return newOllamaClient(cfg).EmbeddingLoader(), nil
	case config.ProviderOpenAI:
		client, err := newOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		return client.EmbeddingLoader(), nil
	default:
		return embedding.HashingLoader(cfg.EmbeddingDimensions), nil
	}
}

// generator selects the generation backend for the configured provider.
func generator(cfg *config.Config) (service.Generator, error) {
	if cfg.LLMProvider == config.ProviderOpenAI {
		client, err := newOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return newOllamaClient(cfg), nil
}

// documentArchive returns the S3 archive when configured, or nil.
func documentArchive(ctx context.Context, cfg *config.Config) (service.DocumentArchive, error) {
	if !cfg.HasS3() {
		return nil, nil
	}
	archive, err := storage.NewS3Archive(ctx, storage.S3ArchiveConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	return archive, nil
}

func buildApp(ctx context.Context, cfg *config.Config, migrate bool) (*app, error) {
	segmenter, err := service.NewSegmenter(service.ChunkConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	load, err := embeddingLoader(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := generator(cfg)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}

	archive, err := documentArchive(ctx, cfg)
	if err != nil {
		closeStore()
		return nil, err
	}

	encoder := embedding.NewEncoder(load, embedding.Config{
		BatchSize:   cfg.EmbeddingBatchSize,
		Concurrency: cfg.EmbeddingConcurrency,
	})

	rag := service.NewRAGService(service.RAGDeps{
		Store:     store,
		Extractor: extract.NewPDFExtractor(),
		Segmenter: segmenter,
		Encoder:   encoder,
		Ranker:    ranking.NewLinearRanker(cfg.MinSimilarity),
		Generator: gen,
		Archive:   archive,
	}, cfg.TopK)

	return &app{rag: rag, encoder: encoder, close: closeStore}, nil
}
