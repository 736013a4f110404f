package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Ingest(ctx context.Context, input service.IngestInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) DeleteDocument(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func newTestDocument(id, filename string) *domain.Document {
	return domain.NewDocument(id, filename, domain.FileTypePDF, "application/pdf",
		time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func multipartUpload(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestDocumentHandler_Upload(t *testing.T) {
	pdf := []byte("%PDF-1.4 cats")

	t.Run("created", func(t *testing.T) {
		svc := new(MockDocumentService)
		svc.On("Ingest", mock.Anything, service.IngestInput{
			Filename: "cats.pdf", ContentType: "application/pdf", Data: pdf,
		}).Return(newTestDocument("doc-1", "cats.pdf"), nil)

		w := httptest.NewRecorder()
		NewDocumentHandler(svc).Upload(w, multipartUpload(t, "cats.pdf", "application/pdf", pdf))

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp DocumentResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "doc-1", resp.ID)
		assert.Equal(t, "cats.pdf", resp.Filename)
		assert.Equal(t, "pdf", resp.FileType)
		assert.Equal(t, "2025-03-01T12:00:00Z", resp.CreatedAt)
		svc.AssertExpectations(t)
	})

	t.Run("nothing to ingest", func(t *testing.T) {
		svc := new(MockDocumentService)
		svc.On("Ingest", mock.Anything, mock.Anything).Return(nil, nil)

		w := httptest.NewRecorder()
		NewDocumentHandler(svc).Upload(w, multipartUpload(t, "scan.pdf", "application/pdf", pdf))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, domain.ErrCodeUnprocessable, decodeError(t, w).Code)
	})

	t.Run("unsupported format", func(t *testing.T) {
		svc := new(MockDocumentService)
		svc.On("Ingest", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedFormat)

		w := httptest.NewRecorder()
		NewDocumentHandler(svc).Upload(w, multipartUpload(t, "notes.txt", "text/plain", []byte("hi")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "unsupported file format", decodeError(t, w).Error)
	})

	t.Run("missing file", func(t *testing.T) {
		svc := new(MockDocumentService)
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("other", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		w := httptest.NewRecorder()
		NewDocumentHandler(svc).Upload(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
	})

	t.Run("not multipart", func(t *testing.T) {
		svc := new(MockDocumentService)
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", bytes.NewReader(pdf))
		req.Header.Set("Content-Type", "application/pdf")

		w := httptest.NewRecorder()
		NewDocumentHandler(svc).Upload(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDocumentHandler_List(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("ListDocuments", mock.Anything).Return([]*domain.Document{
		newTestDocument("doc-2", "b.pdf"),
		newTestDocument("doc-1", "a.pdf"),
	}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(svc).List(w, httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp DocumentListResponse
	decodeData(t, w, &resp)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "doc-2", resp.Documents[0].ID)
}

func TestDocumentHandler_List_Empty(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("ListDocuments", mock.Anything).Return([]*domain.Document{}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(svc).List(w, httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.JSONEq(t, `{"data":{"documents":[],"total":0}}`, w.Body.String())
}

func TestDocumentHandler_Get(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("GetDocument", mock.Anything, "doc-1").Return(newTestDocument("doc-1", "a.pdf"), nil)
	svc.On("GetDocument", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)
	h := NewDocumentHandler(svc)

	w := httptest.NewRecorder()
	h.Get(w, withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil), "id", "doc-1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Get(w, withURLParam(httptest.NewRequest(http.MethodGet, "/documents/missing", nil), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_Delete(t *testing.T) {
	svc := new(MockDocumentService)
	svc.On("DeleteDocument", mock.Anything, "doc-1").Return(nil)
	svc.On("DeleteDocument", mock.Anything, "missing").Return(domain.ErrDocumentNotFound)
	h := NewDocumentHandler(svc)

	w := httptest.NewRecorder()
	h.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/documents/doc-1", nil), "id", "doc-1"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/documents/missing", nil), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_Download(t *testing.T) {
	t.Run("presigned", func(t *testing.T) {
		svc := new(MockDocumentService)
		svc.On("DownloadURL", mock.Anything, "doc-1").Return("https://s3.local/doc-1?sig", nil)

		w := httptest.NewRecorder()
		NewDocumentHandler(svc).Download(w, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "doc-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp DownloadURLResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "https://s3.local/doc-1?sig", resp.URL)
	})

	t.Run("archive not configured", func(t *testing.T) {
		svc := new(MockDocumentService)
		svc.On("DownloadURL", mock.Anything, "doc-1").Return("", domain.ErrArchiveNotConfigured)

		w := httptest.NewRecorder()
		NewDocumentHandler(svc).Download(w, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "doc-1"))

		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})
}
