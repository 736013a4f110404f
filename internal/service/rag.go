package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/ranking"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// DefaultTopK is the number of chunks used to ground an answer.
const DefaultTopK = 3

// SegmentStore persists documents, their chunks and the active selection.
type SegmentStore interface {
	CreateDocument(ctx context.Context, filename string, fileType domain.FileType, contentType string) (*domain.Document, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	AddChunk(ctx context.Context, documentID, text string, index int, embedding []float32) error
	CandidateChunks(ctx context.Context) ([]domain.Candidate, error)
	ReplaceSelection(ctx context.Context, documentIDs []string) error
	ListSelection(ctx context.Context) ([]*domain.Document, error)
}

// TextExtractor returns the plain text pages of a document.
type TextExtractor interface {
	Pages(ctx context.Context, data []byte) ([]string, error)
}

// VectorEncoder maps text into the embedding space. EncodeOne returns a nil
// vector for blank input.
type VectorEncoder interface {
	EncodeOne(ctx context.Context, text string) ([]float32, error)
	EncodeMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator completes a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DocumentArchive keeps the original uploaded bytes.
type DocumentArchive interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	DownloadURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// RAGDeps groups the collaborators of RAGService. Archive is optional.
type RAGDeps struct {
	Store     SegmentStore
	Extractor TextExtractor
	Segmenter *Segmenter
	Encoder   VectorEncoder
	Ranker    ranking.Ranker
	Generator Generator
	Archive   DocumentArchive
}

// IngestInput is an uploaded document.
type IngestInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Answer is the outcome of a question.
type Answer struct {
	Question    string
	Text        string
	Sources     []domain.Source
	ProcessedAt time.Time
}

// RAGService ingests documents and answers questions grounded on them.
type RAGService struct {
	store     SegmentStore
	extractor TextExtractor
	segmenter *Segmenter
	encoder   VectorEncoder
	ranker    ranking.Ranker
	generator Generator
	archive   DocumentArchive
	topK      int
}

// NewRAGService creates a RAGService. A topK of zero or less uses DefaultTopK.
func NewRAGService(deps RAGDeps, topK int) *RAGService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RAGService{
		store:     deps.Store,
		extractor: deps.Extractor,
		segmenter: deps.Segmenter,
		encoder:   deps.Encoder,
		ranker:    deps.Ranker,
		generator: deps.Generator,
		archive:   deps.Archive,
		topK:      topK,
	}
}

// Ingest stores a document with its embedded chunks. It returns a nil
// document and nil error when the document carries no extractable text.
func (s *RAGService) Ingest(ctx context.Context, input IngestInput) (doc *domain.Document, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.Ingest", telemetry.SpanAttributes{
		Filename:  input.Filename,
		Operation: "ingest",
	})
	defer span.End()
	defer func() { span.SetError(err) }()

	fileType, err := domain.DetectFileType(input.ContentType, input.Filename)
	if err != nil {
		return nil, err
	}
	if len(input.Data) == 0 {
		return nil, domain.ErrEmptyPayload
	}

	pages, err := s.extractor.Pages(ctx, input.Data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("could not read %s: %v", input.Filename, err)
		return nil, nil
	}

	segments := s.segmenter.SegmentPages(pages)
	if len(segments) == 0 {
		log.Printf("no text chunks extracted from %s", input.Filename)
		return nil, nil
	}

	doc, err = s.store.CreateDocument(ctx, input.Filename, fileType, input.ContentType)
	if err != nil {
		return nil, err
	}
	span.SetTag("document_id", doc.ID)

	if err := s.storeChunks(ctx, doc, segments); err != nil {
		s.discard(ctx, doc)
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.Put(ctx, doc.ArchiveKey(), input.ContentType, input.Data); err != nil {
			log.Printf("archive: failed to store %s: %v", doc.ID, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	log.Printf("ingested %s as %s (%d chunks)", input.Filename, doc.ID, len(segments))
	return doc, nil
}

func (s *RAGService) storeChunks(ctx context.Context, doc *domain.Document, segments []Segment) error {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	vectors, err := s.encoder.EncodeMany(ctx, texts)
	if err != nil {
		return err
	}

	for i, seg := range segments {
		if err := s.store.AddChunk(ctx, doc.ID, seg.Text, seg.Index, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

// discard removes a partially ingested document.
func (s *RAGService) discard(ctx context.Context, doc *domain.Document) {
	if err := s.store.DeleteDocument(context.WithoutCancel(ctx), doc.ID); err != nil {
		log.Printf("failed to remove partially ingested document %s: %v", doc.ID, err)
		telemetry.CaptureError(ctx, err)
	}
}

// Select replaces the active selection. An empty list clears it.
func (s *RAGService) Select(ctx context.Context, documentIDs []string) error {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.Select", telemetry.SpanAttributes{
		Operation: "select",
	})
	defer span.End()

	seen := make(map[string]struct{}, len(documentIDs))
	ids := make([]string, 0, len(documentIDs))
	for _, id := range documentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if err := s.store.ReplaceSelection(ctx, ids); err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			span.SetError(err)
		}
		return err
	}
	return nil
}

// ClearSelection makes every document eligible again.
func (s *RAGService) ClearSelection(ctx context.Context) error {
	return s.Select(ctx, nil)
}

// ListSelection returns the selected documents.
func (s *RAGService) ListSelection(ctx context.Context) ([]*domain.Document, error) {
	return s.store.ListSelection(ctx)
}

// ListDocuments returns all documents, most recent first.
func (s *RAGService) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	return s.store.ListDocuments(ctx)
}

func (s *RAGService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// DeleteDocument removes a document with its chunks. The archived copy is
// removed best-effort.
func (s *RAGService) DeleteDocument(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.DeleteDocument", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}

	if s.archive != nil {
		if err := s.archive.Delete(ctx, doc.ArchiveKey()); err != nil {
			log.Printf("archive: failed to delete %s: %v", doc.ID, err)
		}
	}
	return nil
}

// DownloadURL returns a time-limited link to the archived document.
func (s *RAGService) DownloadURL(ctx context.Context, id string) (string, error) {
	if s.archive == nil {
		return "", domain.ErrArchiveNotConfigured
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return s.archive.DownloadURL(ctx, doc.ArchiveKey())
}

// Answer answers question from the chunks of the active selection.
func (s *RAGService) Answer(ctx context.Context, question string) (answer *Answer, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()
	defer func() { span.SetError(err) }()

	answer = &Answer{
		Question: question,
		Sources:  []domain.Source{},
	}
	defer func() {
		if answer != nil {
			answer.ProcessedAt = time.Now().UTC()
		}
	}()

	query, err := s.encoder.EncodeOne(ctx, question)
	if err != nil {
		return nil, err
	}
	if query == nil {
		answer.Text = CannotProcessAnswer
		return answer, nil
	}

	candidates, err := s.store.CandidateChunks(ctx)
	if err != nil {
		return nil, err
	}

	results, err := s.ranker.Rank(query, candidates, s.topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Printf("no relevant chunks found")
		answer.Text = NoRelevantAnswer
		return answer, nil
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Candidate.Text
		answer.Sources = append(answer.Sources, r.Source())
	}

	generated, genErr := s.generator.Complete(ctx, BuildPrompt(question, strings.Join(texts, "\n\n")))
	if genErr != nil {
		log.Printf("generation failed: %v", genErr)
		telemetry.CaptureError(ctx, genErr)
		generated = GenerationFailedAnswer
	}

	answer.Text = FormatAnswer(generated, answer.Sources)
	return answer, nil
}
