package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/lighting-importer/internal/importer"
	"github.com/maltedev/lighting-importer/internal/models"
)

const maxBodyBytes = 1 << 20

// Importer runs the extraction pipeline for the HTTP layer.
type Importer interface {
	Import(ctx context.Context, urls []string, opts importer.RunOptions) (*models.ImportResult, error)
	Extract(ctx context.Context, url string, opts importer.RunOptions) (*models.ProductRecord, error)
}

// DuplicateCleaner removes older products that share an article.
type DuplicateCleaner interface {
	DeleteDuplicateArticles(ctx context.Context) (int64, error)
}

// OutboxStats reports relay backlog for the health check.
type OutboxStats interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadLetterCount(ctx context.Context) (int64, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains HTTP handlers for the import API.
type Handlers struct {
	importer Importer
	cleaner  DuplicateCleaner
	outbox   OutboxStats
	db       Pinger
	maxURLs  int
	logger   *slog.Logger
}

type Option func(*Handlers)

func WithCleaner(c DuplicateCleaner) Option {
	return func(h *Handlers) { h.cleaner = c }
}

func WithOutboxStats(s OutboxStats) Option {
	return func(h *Handlers) { h.outbox = s }
}

func WithDB(db Pinger) Option {
	return func(h *Handlers) { h.db = db }
}

// NewHandlers creates handlers. maxURLs caps the size of one import request.
func NewHandlers(imp Importer, maxURLs int, logger *slog.Logger, opts ...Option) *Handlers {
	h := &Handlers{
		importer: imp,
		maxURLs:  maxURLs,
		logger:   logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the API under the given router.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/import", h.Import)
		r.Post("/import/preview", h.Preview)
		r.Post("/products/cleanup-duplicates", h.CleanupDuplicates)
	})
}

// ImportOptions are per-request pipeline switches.
type ImportOptions struct {
	UseLLM *bool `json:"useLlm,omitempty"`
}

// ImportRequest is the batch entry point body.
type ImportRequest struct {
	URLs    []string      `json:"urls"`
	Options ImportOptions `json:"options"`
}

func (o ImportOptions) runOptions() importer.RunOptions {
	return importer.RunOptions{SkipLLM: o.UseLLM != nil && !*o.UseLLM}
}

// Import handles POST /api/v1/import.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		h.respondError(w, http.StatusBadRequest, "urls is required")
		return
	}
	if h.maxURLs > 0 && len(urls) > h.maxURLs {
		h.respondError(w, http.StatusBadRequest, "too many urls in one batch")
		return
	}

	result, err := h.importer.Import(r.Context(), urls, req.Options.runOptions())
	if err != nil {
		if errors.Is(err, importer.ErrNoStore) {
			h.respondError(w, http.StatusServiceUnavailable, "product store is not configured")
			return
		}
		h.logger.Error("import failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "import failed")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

type PreviewRequest struct {
	URL     string        `json:"url"`
	Options ImportOptions `json:"options"`
}

// Preview runs the pipeline for one URL without storing the record.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	record, err := h.importer.Extract(r.Context(), req.URL, req.Options.runOptions())
	if err != nil {
		h.logger.Warn("preview failed", "url", req.URL, "error", err)
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// CleanupDuplicates handles POST /api/v1/products/cleanup-duplicates.
func (h *Handlers) CleanupDuplicates(w http.ResponseWriter, r *http.Request) {
	if h.cleaner == nil {
		h.respondError(w, http.StatusServiceUnavailable, "product store is not configured")
		return
	}

	deleted, err := h.cleaner.DeleteDuplicateArticles(r.Context())
	if err != nil {
		h.logger.Error("duplicate cleanup failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "duplicate cleanup failed")
		return
	}

	h.logger.Info("duplicate products removed", "deleted", deleted)
	h.respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// Health reports database reachability and outbox backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			health["status"] = "error"
			health["message"] = "database unreachable"
			h.respondJSON(w, http.StatusServiceUnavailable, health)
			return
		}
		health["database"] = "ok"
	} else {
		health["database"] = "not configured"
	}

	if h.outbox != nil {
		pendingCount, _ := h.outbox.GetPendingCount(r.Context())
		deadLetterCount, _ := h.outbox.GetDeadLetterCount(r.Context())
		health["outbox"] = map[string]interface{}{
			"pending":     pendingCount,
			"dead_letter": deadLetterCount,
		}

		if pendingCount > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
