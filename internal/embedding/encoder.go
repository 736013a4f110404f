// Package embedding maps text to fixed-length vectors through a lazily
// loaded, process-wide model.
package embedding

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Model produces embeddings of a fixed dimension. Implementations must be
// safe for concurrent use.
type Model interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Loader initializes a Model. It is called at most once per successful load.
type Loader func(ctx context.Context) (Model, error)

// Config controls batch encoding.
type Config struct {
	BatchSize   int
	Concurrency int
}

type loaded struct {
	model Model
}

// Encoder exposes encode operations over a model that is loaded on first use.
// Concurrent first callers share a single load; a failed load is retried by
// the next caller.
type Encoder struct {
	load  Loader
	cfg   Config
	mu    sync.Mutex
	ready atomic.Pointer[loaded]
}

// NewEncoder creates an Encoder. The loader is not invoked until the first
// encode or Warm call.
func NewEncoder(load Loader, cfg Config) *Encoder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Encoder{load: load, cfg: cfg}
}

func (e *Encoder) model(ctx context.Context) (Model, error) {
	if l := e.ready.Load(); l != nil {
		return l.model, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if l := e.ready.Load(); l != nil {
		return l.model, nil
	}

	m, err := e.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding model: %w", err)
	}
	if m.Dimension() <= 0 {
		return nil, fmt.Errorf("embedding model %s reports dimension %d: %w", m.Name(), m.Dimension(), domain.ErrDimensionMismatch)
	}
	e.ready.Store(&loaded{model: m})
	log.Printf("embedding model loaded: %s (dimension %d)", m.Name(), m.Dimension())
	return m, nil
}

// Warm loads the model ahead of the first request.
func (e *Encoder) Warm(ctx context.Context) error {
	_, err := e.model(ctx)
	return err
}

// EncodeOne encodes a single text. Blank input yields a nil vector and no error.
func (e *Encoder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		log.Printf("no text for embedding")
		return nil, nil
	}

	m, err := e.model(ctx)
	if err != nil {
		return nil, err
	}

	vectors, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding model %s returned %d vectors for 1 input", m.Name(), len(vectors))
	}
	if err := checkDimension(m, vectors[0]); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EncodeMany encodes texts in batches. The result has the same length and
// order as texts.
func (e *Encoder) EncodeMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	m, err := e.model(ctx)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		g.Go(func() error {
			batch := texts[start:end]
			vectors, err := m.Embed(gctx, batch)
			if err != nil {
				return fmt.Errorf("failed to embed batch [%d:%d]: %w", start, end, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedding model %s returned %d vectors for %d inputs", m.Name(), len(vectors), len(batch))
			}
			for i, v := range vectors {
				if err := checkDimension(m, v); err != nil {
					return err
				}
				out[start+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func checkDimension(m Model, v []float32) error {
	if len(v) != m.Dimension() {
		return fmt.Errorf("embedding model %s returned %d values, expected %d: %w",
			m.Name(), len(v), m.Dimension(), domain.ErrDimensionMismatch)
	}
	return nil
}
