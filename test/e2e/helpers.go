//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/cli/client"
	"github.com/cloo-solutions/docqa/internal/embedding"
	"github.com/cloo-solutions/docqa/internal/ranking"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	Archive    *storage.S3Archive
	API        *client.APIClient
	HTTPClient *http.Client
}

// textExtractor treats the upload bytes as the text of a single page.
type textExtractor struct{}

func (textExtractor) Pages(ctx context.Context, data []byte) ([]string, error) {
	return []string{string(data)}, nil
}

// fixedGenerator always returns the same answer.
type fixedGenerator struct{}

func (fixedGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return "Cats are mammals.", nil
}

// SetupE2EEnv starts Postgres and RustFS containers and a server over them
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	archive, err := storage.NewS3Archive(ctx, storage.S3ArchiveConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "test-documents",
		UsePathStyle:    true,
		URLExpiry:       5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to create S3 archive: %v", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	segmenter, err := service.NewSegmenter(service.DefaultChunkConfig())
	if err != nil {
		t.Fatalf("failed to create segmenter: %v", err)
	}

	svc := service.NewRAGService(service.RAGDeps{
		Store:     repository.NewStore(pool),
		Extractor: textExtractor{},
		Segmenter: segmenter,
		Encoder:   embedding.NewEncoder(embedding.HashingLoader(0), embedding.Config{}),
		Ranker:    ranking.NewLinearRanker(0),
		Generator: fixedGenerator{},
		Archive:   archive,
	}, service.DefaultTopK)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(svc),
		QAHandler:       handlers.NewQAHandler(svc),
	}))

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		Server:     srv,
		Archive:    archive,
		API:        client.NewAPIClient(srv.URL),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
}
