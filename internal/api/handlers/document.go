package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

// multipartMemory is the part of an upload kept in memory before spilling to disk.
const multipartMemory = 8 << 20

type DocumentService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]*domain.Document, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	DownloadURL(ctx context.Context, id string) (string, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	FileType    string `json:"file_type"`
	ContentType string `json:"content_type"`
	CreatedAt   string `json:"created_at"`
}

type DocumentListResponse struct {
	Documents []*DocumentResponse `json:"documents"`
	Total     int                 `json:"total"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Filename:    d.Filename,
		FileType:    string(d.FileType),
		ContentType: d.ContentType,
		CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func documentsToResponse(docs []*domain.Document) DocumentListResponse {
	out := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentToResponse(d))
	}
	return DocumentListResponse{Documents: out, Total: len(out)}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	doc, err := h.svc.Ingest(r.Context(), service.IngestInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if doc == nil {
		api.HandleError(w, domain.ErrNothingToIngest)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, documentsToResponse(docs))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.DownloadURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, DownloadURLResponse{URL: url})
}
