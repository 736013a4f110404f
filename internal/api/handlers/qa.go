package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

type QAService interface {
	Select(ctx context.Context, documentIDs []string) error
	ClearSelection(ctx context.Context) error
	ListSelection(ctx context.Context) ([]*domain.Document, error)
	Answer(ctx context.Context, question string) (*service.Answer, error)
}

type QAHandler struct {
	svc QAService
}

func NewQAHandler(svc QAService) *QAHandler {
	return &QAHandler{svc: svc}
}

type SelectDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

type SelectDocumentsResponse struct {
	DocumentIDs []string `json:"document_ids"`
	Total       int      `json:"total"`
}

type AskRequest struct {
	Question string `json:"question"`
}

type SourceResponse struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Filename   string  `json:"filename"`
	Similarity float64 `json:"similarity"`
}

type AskResponse struct {
	Question    string           `json:"question"`
	Answer      string           `json:"answer"`
	Sources     []SourceResponse `json:"sources"`
	ProcessedAt string           `json:"processed_at"`
}

func (h *QAHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := make([]string, 0, len(req.DocumentIDs))
	seen := make(map[string]struct{}, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; id == "" || dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		api.HandleError(w, domain.ErrEmptySelection)
		return
	}

	if err := h.svc.Select(r.Context(), ids); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SelectDocumentsResponse{DocumentIDs: ids, Total: len(ids)})
}

func (h *QAHandler) Selection(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListSelection(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, documentsToResponse(docs))
}

func (h *QAHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearSelection(r.Context()); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QAHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		api.HandleError(w, domain.ErrEmptyQuestion)
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sources := make([]SourceResponse, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		sources = append(sources, SourceResponse{
			DocumentID: src.DocumentID,
			ChunkID:    src.ChunkID,
			Filename:   src.Filename,
			Similarity: src.Score,
		})
	}

	api.Success(w, http.StatusOK, AskResponse{
		Question:    answer.Question,
		Answer:      answer.Text,
		Sources:     sources,
		ProcessedAt: answer.ProcessedAt.UTC().Format(time.RFC3339Nano),
	})
}
