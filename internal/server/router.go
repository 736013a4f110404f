package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
)

const defaultMaxBodyBytes int64 = 20 << 20

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	QAHandler       *handlers.QAHandler
	MaxBodyBytes    int64
	AskRatePerSec   float64
	AskRateBurst    int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBody))

	status := func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	}
	r.Get("/", status)
	r.Get("/health", status)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/upload", cfg.DocumentHandler.Upload)
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
		r.Get("/{id}/download", cfg.DocumentHandler.Download)
	})

	r.Route("/qa", func(r chi.Router) {
		r.Post("/documents", cfg.QAHandler.Select)
		r.Get("/documents", cfg.QAHandler.Selection)
		r.Delete("/documents", cfg.QAHandler.ClearSelection)
		r.With(middleware.RateLimit(cfg.AskRatePerSec, cfg.AskRateBurst)).Post("/ask", cfg.QAHandler.Ask)
	})

	return r
}
