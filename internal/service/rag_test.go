package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/embedding"
	"github.com/cloo-solutions/docqa/internal/ranking"
	"github.com/cloo-solutions/docqa/internal/repository/sqlite"
)

// MockSegmentStore is a mock implementation of SegmentStore
type MockSegmentStore struct {
	mock.Mock
}

func (m *MockSegmentStore) CreateDocument(ctx context.Context, filename string, fileType domain.FileType, contentType string) (*domain.Document, error) {
	args := m.Called(ctx, filename, fileType, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockSegmentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockSegmentStore) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockSegmentStore) DeleteDocument(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSegmentStore) AddChunk(ctx context.Context, documentID, text string, index int, embedding []float32) error {
	args := m.Called(ctx, documentID, text, index, embedding)
	return args.Error(0)
}

func (m *MockSegmentStore) CandidateChunks(ctx context.Context) ([]domain.Candidate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Candidate), args.Error(1)
}

func (m *MockSegmentStore) ReplaceSelection(ctx context.Context, documentIDs []string) error {
	args := m.Called(ctx, documentIDs)
	return args.Error(0)
}

func (m *MockSegmentStore) ListSelection(ctx context.Context) ([]*domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Pages(ctx context.Context, data []byte) ([]string, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEncoder) EncodeMany(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Put(ctx context.Context, key, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockArchive) DownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockArchive) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type testDeps struct {
	store     *MockSegmentStore
	extractor *MockExtractor
	encoder   *MockEncoder
	generator *MockGenerator
	archive   *MockArchive
}

func (d *testDeps) assertExpectations(t *testing.T) {
	d.store.AssertExpectations(t)
	d.extractor.AssertExpectations(t)
	d.encoder.AssertExpectations(t)
	d.generator.AssertExpectations(t)
	d.archive.AssertExpectations(t)
}

func newTestSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	seg, err := NewSegmenter(DefaultChunkConfig())
	require.NoError(t, err)
	return seg
}

func newMockedService(t *testing.T, withArchive bool) (*RAGService, *testDeps) {
	t.Helper()
	d := &testDeps{
		store:     new(MockSegmentStore),
		extractor: new(MockExtractor),
		encoder:   new(MockEncoder),
		generator: new(MockGenerator),
		archive:   new(MockArchive),
	}
	deps := RAGDeps{
		Store:     d.store,
		Extractor: d.extractor,
		Segmenter: newTestSegmenter(t),
		Encoder:   d.encoder,
		Ranker:    ranking.NewLinearRanker(0),
		Generator: d.generator,
	}
	if withArchive {
		deps.Archive = d.archive
	}
	return NewRAGService(deps, 3), d
}

var pdfBytes = []byte("%PDF-1.4 test")

func TestRAGService_Ingest_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input IngestInput
		want  error
	}{
		{
			name:  "unsupported format",
			input: IngestInput{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
			want:  domain.ErrUnsupportedFormat,
		},
		{
			name:  "empty payload",
			input: IngestInput{Filename: "empty.pdf", ContentType: "application/pdf"},
			want:  domain.ErrEmptyPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newMockedService(t, true)

			doc, err := svc.Ingest(context.Background(), tt.input)

			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			d.assertExpectations(t)
		})
	}
}

func TestRAGService_Ingest_NoText(t *testing.T) {
	svc, d := newMockedService(t, true)
	d.extractor.On("Pages", mock.Anything, pdfBytes).Return([]string{"", "  \n "}, nil)

	doc, err := svc.Ingest(context.Background(), IngestInput{Filename: "scan.pdf", ContentType: "application/pdf", Data: pdfBytes})

	require.NoError(t, err)
	assert.Nil(t, doc)
	d.store.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.encoder.AssertNotCalled(t, "EncodeMany", mock.Anything, mock.Anything)
	d.assertExpectations(t)
}

func TestRAGService_Ingest_UnreadableDocument(t *testing.T) {
	svc, d := newMockedService(t, false)
	d.extractor.On("Pages", mock.Anything, pdfBytes).Return(nil, errors.New("malformed xref"))

	doc, err := svc.Ingest(context.Background(), IngestInput{Filename: "bad.pdf", ContentType: "application/pdf", Data: pdfBytes})

	require.NoError(t, err)
	assert.Nil(t, doc)
	d.store.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.assertExpectations(t)
}

func TestRAGService_Ingest_CanceledWhileReading(t *testing.T) {
	svc, d := newMockedService(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.extractor.On("Pages", mock.Anything, pdfBytes).Return(nil, errors.New("read interrupted"))

	_, err := svc.Ingest(ctx, IngestInput{Filename: "bad.pdf", ContentType: "application/pdf", Data: pdfBytes})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRAGService_Ingest_Success(t *testing.T) {
	svc, d := newMockedService(t, true)
	ctx := context.Background()
	doc := &domain.Document{ID: "doc-1", Filename: "cats.pdf", FileType: domain.FileTypePDF, ContentType: "application/pdf"}

	d.extractor.On("Pages", mock.Anything, pdfBytes).Return([]string{"cats are mammals", "", "dogs are loyal"}, nil)
	d.store.On("CreateDocument", mock.Anything, "cats.pdf", domain.FileTypePDF, "application/pdf").Return(doc, nil)
	d.encoder.On("EncodeMany", mock.Anything, []string{"cats are mammals", "dogs are loyal"}).
		Return([][]float32{{1, 0}, {0, 1}}, nil)
	d.store.On("AddChunk", mock.Anything, "doc-1", "cats are mammals", 0, []float32{1, 0}).Return(nil)
	d.store.On("AddChunk", mock.Anything, "doc-1", "dogs are loyal", 1, []float32{0, 1}).Return(nil)
	d.archive.On("Put", mock.Anything, "documents/doc-1.pdf", "application/pdf", pdfBytes).Return(nil)

	got, err := svc.Ingest(ctx, IngestInput{Filename: "cats.pdf", ContentType: "application/pdf", Data: pdfBytes})

	require.NoError(t, err)
	assert.Equal(t, doc, got)
	d.assertExpectations(t)
}

func TestRAGService_Ingest_ArchiveFailureIsNotFatal(t *testing.T) {
	svc, d := newMockedService(t, true)
	doc := &domain.Document{ID: "doc-1", Filename: "cats.pdf", FileType: domain.FileTypePDF}

	d.extractor.On("Pages", mock.Anything, pdfBytes).Return([]string{"cats"}, nil)
	d.store.On("CreateDocument", mock.Anything, "cats.pdf", domain.FileTypePDF, "application/pdf").Return(doc, nil)
	d.encoder.On("EncodeMany", mock.Anything, []string{"cats"}).Return([][]float32{{1}}, nil)
	d.store.On("AddChunk", mock.Anything, "doc-1", "cats", 0, []float32{1}).Return(nil)
	d.archive.On("Put", mock.Anything, "documents/doc-1.pdf", "application/pdf", pdfBytes).Return(errors.New("bucket gone"))

	got, err := svc.Ingest(context.Background(), IngestInput{Filename: "cats.pdf", ContentType: "application/pdf", Data: pdfBytes})

	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.ID)
	d.assertExpectations(t)
}

func TestRAGService_Ingest_RemovesPartialDocument(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *testDeps)
	}{
		{
			name: "encoding fails",
			setup: func(d *testDeps) {
				d.encoder.On("EncodeMany", mock.Anything, []string{"cats"}).Return(nil, errors.New("model unavailable"))
			},
		},
		{
			name: "chunk persistence fails",
			setup: func(d *testDeps) {
				d.encoder.On("EncodeMany", mock.Anything, []string{"cats"}).Return([][]float32{{1}}, nil)
				d.store.On("AddChunk", mock.Anything, "doc-1", "cats", 0, []float32{1}).Return(errors.New("connection reset"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newMockedService(t, true)
			doc := &domain.Document{ID: "doc-1", Filename: "cats.pdf", FileType: domain.FileTypePDF}

			d.extractor.On("Pages", mock.Anything, pdfBytes).Return([]string{"cats"}, nil)
			d.store.On("CreateDocument", mock.Anything, "cats.pdf", domain.FileTypePDF, "application/pdf").Return(doc, nil)
			d.store.On("DeleteDocument", mock.Anything, "doc-1").Return(nil)
			tt.setup(d)

			got, err := svc.Ingest(context.Background(), IngestInput{Filename: "cats.pdf", ContentType: "application/pdf", Data: pdfBytes})

			assert.Error(t, err)
			assert.Nil(t, got)
			d.archive.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			d.assertExpectations(t)
		})
	}
}

func TestRAGService_Select(t *testing.T) {
	t.Run("duplicates collapse", func(t *testing.T) {
		svc, d := newMockedService(t, false)
		d.store.On("ReplaceSelection", mock.Anything, []string{"a", "b"}).Return(nil)

		require.NoError(t, svc.Select(context.Background(), []string{"a", "b", "a"}))
		d.assertExpectations(t)
	})

	t.Run("clear", func(t *testing.T) {
		svc, d := newMockedService(t, false)
		d.store.On("ReplaceSelection", mock.Anything, []string{}).Return(nil)

		require.NoError(t, svc.ClearSelection(context.Background()))
		d.assertExpectations(t)
	})

	t.Run("unknown document", func(t *testing.T) {
		svc, d := newMockedService(t, false)
		d.store.On("ReplaceSelection", mock.Anything, []string{"missing"}).Return(domain.ErrDocumentNotFound)

		err := svc.Select(context.Background(), []string{"missing"})
		assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))
		d.assertExpectations(t)
	})
}

func TestRAGService_Answer_BlankQuestion(t *testing.T) {
	store := new(MockSegmentStore)
	generator := new(MockGenerator)
	svc := NewRAGService(RAGDeps{
		Store:     store,
		Segmenter: newTestSegmenter(t),
		Encoder:   embedding.NewEncoder(embedding.HashingLoader(0), embedding.Config{}),
		Ranker:    ranking.NewLinearRanker(0),
		Generator: generator,
	}, 3)

	answer, err := svc.Answer(context.Background(), "   \t\n")

	require.NoError(t, err)
	assert.Equal(t, CannotProcessAnswer, answer.Text)
	assert.Empty(t, answer.Sources)
	assert.False(t, answer.ProcessedAt.IsZero())
	store.AssertNotCalled(t, "CandidateChunks", mock.Anything)
	generator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestRAGService_Answer_GenerationFailure(t *testing.T) {
	svc, d := newMockedService(t, false)
	candidates := []domain.Candidate{
		{ChunkID: "c1", DocumentID: "d1", Filename: "a.pdf", Text: "alpha", Embedding: []float32{1, 0}},
		{ChunkID: "c2", DocumentID: "d2", Filename: "b.pdf", Text: "beta", Embedding: []float32{1, 1}},
	}
	d.encoder.On("EncodeOne", mock.Anything, "q").Return([]float32{1, 0}, nil)
	d.store.On("CandidateChunks", mock.Anything).Return(candidates, nil)
	d.generator.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "alpha\n\nbeta") && strings.Contains(prompt, "Question: q")
	})).Return("", &domain.GenerationError{Backend: "ollama", StatusCode: 503, Body: "overloaded"})

	answer, err := svc.Answer(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t,
		GenerationFailedAnswer+"\n\nSources:\n- a.pdf (Similarity: 1.0000)\n- b.pdf (Similarity: 0.7071)",
		answer.Text)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "c1", answer.Sources[0].ChunkID)
	d.assertExpectations(t)
}

func TestRAGService_Answer_StorageFailure(t *testing.T) {
	svc, d := newMockedService(t, false)
	d.encoder.On("EncodeOne", mock.Anything, "q").Return([]float32{1}, nil)
	d.store.On("CandidateChunks", mock.Anything).Return(nil, errors.New("database is down"))

	answer, err := svc.Answer(context.Background(), "q")

	assert.Error(t, err)
	assert.Nil(t, answer)
	d.generator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestRAGService_Answer_DimensionMismatch(t *testing.T) {
	svc, d := newMockedService(t, false)
	d.encoder.On("EncodeOne", mock.Anything, "q").Return([]float32{1, 0, 0}, nil)
	d.store.On("CandidateChunks", mock.Anything).Return([]domain.Candidate{
		{ChunkID: "c1", Embedding: []float32{1, 0}},
	}, nil)

	_, err := svc.Answer(context.Background(), "q")

	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestRAGService_Documents(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", Filename: "cats.pdf", FileType: domain.FileTypePDF}

	t.Run("download without archive", func(t *testing.T) {
		svc, d := newMockedService(t, false)

		_, err := svc.DownloadURL(context.Background(), "doc-1")
		assert.True(t, errors.Is(err, domain.ErrArchiveNotConfigured))
		d.assertExpectations(t)
	})

	t.Run("download", func(t *testing.T) {
		svc, d := newMockedService(t, true)
		d.store.On("GetDocument", mock.Anything, "doc-1").Return(doc, nil)
		d.archive.On("DownloadURL", mock.Anything, "documents/doc-1.pdf").Return("https://s3/doc-1", nil)

		url, err := svc.DownloadURL(context.Background(), "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "https://s3/doc-1", url)
		d.assertExpectations(t)
	})

	t.Run("delete removes archived copy", func(t *testing.T) {
		svc, d := newMockedService(t, true)
		d.store.On("GetDocument", mock.Anything, "doc-1").Return(doc, nil)
		d.store.On("DeleteDocument", mock.Anything, "doc-1").Return(nil)
		d.archive.On("Delete", mock.Anything, "documents/doc-1.pdf").Return(errors.New("already gone"))

		require.NoError(t, svc.DeleteDocument(context.Background(), "doc-1"))
		d.assertExpectations(t)
	})

	t.Run("delete unknown", func(t *testing.T) {
		svc, d := newMockedService(t, true)
		d.store.On("GetDocument", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

		err := svc.DeleteDocument(context.Background(), "missing")
		assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))
		d.assertExpectations(t)
	})
}

// pagesByName returns the text registered for an upload's bytes.
type pagesByName map[string][]string

func (p pagesByName) Pages(ctx context.Context, data []byte) ([]string, error) {
	return p[string(data)], nil
}

func TestRAGService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "docqa.db"))
	require.NoError(t, err)
	defer store.Close()

	generator := new(MockGenerator)
	svc := NewRAGService(RAGDeps{
		Store: store,
		Extractor: pagesByName{
			"pdf-1": {"cats are mammals"},
			"pdf-2": {"rockets use fuel"},
		},
		Segmenter: newTestSegmenter(t),
		Encoder:   embedding.NewEncoder(embedding.HashingLoader(0), embedding.Config{}),
		Ranker:    ranking.NewLinearRanker(0),
		Generator: generator,
	}, 3)

	doc1, err := svc.Ingest(ctx, IngestInput{Filename: "cats.pdf", ContentType: "application/pdf", Data: []byte("pdf-1")})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	doc2, err := svc.Ingest(ctx, IngestInput{Filename: "rockets.pdf", ContentType: "application/pdf", Data: []byte("pdf-2")})
	require.NoError(t, err)

	chunks, err := store.ListChunks(ctx, doc1.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)

	t.Run("relevant document ranks first", func(t *testing.T) {
		generator.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "cats are mammals") && !strings.Contains(prompt, "rockets")
		})).Return("Cats are mammals.", nil).Once()

		answer, err := svc.Answer(ctx, "what is a mammal")
		require.NoError(t, err)
		require.Len(t, answer.Sources, 1)
		assert.Equal(t, doc1.ID, answer.Sources[0].DocumentID)
		assert.Equal(t, "Cats are mammals.\n\nSources:\n- cats.pdf (Similarity: 0.7071)", answer.Text)
		generator.AssertExpectations(t)
	})

	t.Run("selection excludes relevant document", func(t *testing.T) {
		require.NoError(t, svc.Select(ctx, []string{doc2.ID}))

		answer, err := svc.Answer(ctx, "what is a mammal")
		require.NoError(t, err)
		assert.Equal(t, NoRelevantAnswer, answer.Text)
		assert.Empty(t, answer.Sources)

		selected, err := svc.ListSelection(ctx)
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, doc2.ID, selected[0].ID)
	})

	t.Run("clearing selection restores all documents", func(t *testing.T) {
		require.NoError(t, svc.ClearSelection(ctx))
		generator.On("Complete", mock.Anything, mock.Anything).Return("Cats are mammals.", nil).Once()

		answer, err := svc.Answer(ctx, "what is a mammal")
		require.NoError(t, err)
		require.Len(t, answer.Sources, 1)
		assert.Equal(t, doc1.ID, answer.Sources[0].DocumentID)
	})

	t.Run("stored vector scores one against itself", func(t *testing.T) {
		enc := embedding.NewEncoder(embedding.HashingLoader(0), embedding.Config{})
		vec, err := enc.EncodeOne(ctx, "cats are mammals")
		require.NoError(t, err)

		score, err := ranking.CosineSimilarity(vec, chunks[0].Embedding)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, score, 1e-6)
	})

	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, doc2.ID, docs[0].ID)
}
