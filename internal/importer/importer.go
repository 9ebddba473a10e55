package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/lighting-importer/internal/assembler"
	"github.com/maltedev/lighting-importer/internal/fetcher"
	"github.com/maltedev/lighting-importer/internal/metrics"
	"github.com/maltedev/lighting-importer/internal/models"
	"github.com/maltedev/lighting-importer/internal/parser"
)

const (
	DefaultWorkers = 6
	MaxWorkers     = 8
)

// ErrNoStore is returned by Import when the service was built without WithStore.
var ErrNoStore = errors.New("product store is not configured")

// PageFetcher downloads one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Result, error)
}

// Enhancer fills fields the extractors missed. Its errors are never fatal.
type Enhancer interface {
	Enhance(ctx context.Context, page *parser.Page) (models.RawFields, error)
}

// ProductStore persists assembled records.
type ProductStore interface {
	Insert(ctx context.Context, p *models.ProductRecord) (uuid.UUID, error)
}

// enhanceable are the fields worth an LLM call when the extractors miss
// any of them. Feature flags are absent: the model only fills those as a
// side effect of a call made for one of these.
var enhanceable = append([]string{
	models.FieldName, models.FieldPrice, models.FieldBrand, models.FieldArticle,
	models.FieldLampCount, models.FieldSocketType, models.FieldLampPower, models.FieldLampType,
	models.FieldStyle, models.FieldColor, models.FieldCollection,
	models.FieldBrandCountry, models.FieldManufacturerCountry,
}, models.DimensionFields...)

// Service runs the fetch, normalize, extract and assemble pipeline.
type Service struct {
	fetcher   PageFetcher
	extractor *parser.Extractor
	enhancer  Enhancer
	store     ProductStore
	workers   int
	logger    *slog.Logger
}

// RunOptions are per-request switches. The zero value uses every
// configured collaborator.
type RunOptions struct {
	SkipLLM bool
}

type Option func(*Service)

// WithEnhancer enables LLM-assisted extraction.
func WithEnhancer(e Enhancer) Option {
	return func(s *Service) { s.enhancer = e }
}

// WithStore enables Import. Without a store only Extract works.
func WithStore(store ProductStore) Option {
	return func(s *Service) { s.store = store }
}

// WithWorkers sets how many URLs are processed at once. Values are clamped to 1..8.
func WithWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// NewService creates a service with the default worker count.
func NewService(f PageFetcher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		fetcher:   f,
		extractor: parser.NewExtractor(logger),
		workers:   DefaultWorkers,
		logger:    logger.With("component", "importer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.workers > MaxWorkers {
		s.workers = MaxWorkers
	}
	return s
}

// HasStore reports whether Import can persist records.
func (s *Service) HasStore() bool {
	return s.store != nil
}

// Extract runs the full pipeline for one URL without storing anything.
func (s *Service) Extract(ctx context.Context, rawURL string, opts RunOptions) (*models.ProductRecord, error) {
	res, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	page, err := parser.Normalize(res.HTML, res.FinalURL)
	if err != nil {
		return nil, err
	}

	fields := s.extractor.Extract(page)

	if s.enhancer != nil && !opts.SkipLLM {
		if missing := fields.Missing(enhanceable...); len(missing) > 0 {
			s.enhance(ctx, page, fields, missing)
		}
	}

	return assembler.Assemble(fields, res.FinalURL)
}

func (s *Service) enhance(ctx context.Context, page *parser.Page, fields models.RawFields, missing []string) {
	extra, err := s.enhancer.Enhance(ctx, page)
	if err != nil {
		s.logger.Warn("llm enhancement skipped", "url", page.URL.String(), "error", err)
		return
	}

	merged := fields.Merge(extra)
	s.logger.Debug("llm enhancement merged",
		"url", page.URL.String(),
		"missing", missing,
		"merged", merged)
}

// Import processes a batch with a bounded worker pool. Every URL ends up
// either imported or in FailedURLs; one failure never stops the batch.
// The only error returned is ErrNoStore.
func (s *Service) Import(ctx context.Context, urls []string, opts RunOptions) (*models.ImportResult, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}

	start := time.Now()
	logger := s.logger.With("batch_id", uuid.New())
	metrics.BatchSize.Observe(float64(len(urls)))
	logger.Info("import started", "urls", len(urls), "workers", s.workers, "skip_llm", opts.SkipLLM)

	failures := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, u := range urls {
		g.Go(func() error {
			failures[i] = s.importOne(ctx, logger, strings.TrimSpace(u), opts)
			return nil
		})
	}
	g.Wait()

	result := &models.ImportResult{FailedURLs: []models.FailedURL{}}
	for i, err := range failures {
		if err == nil {
			result.Imported++
			continue
		}
		result.Failed++
		result.FailedURLs = append(result.FailedURLs, models.FailedURL{URL: urls[i], Reason: err.Error()})
	}

	logger.Info("import finished",
		"imported", result.Imported,
		"failed", result.Failed,
		"duration", time.Since(start))

	return result, nil
}

func (s *Service) importOne(ctx context.Context, logger *slog.Logger, rawURL string, opts RunOptions) error {
	if err := ctx.Err(); err != nil {
		metrics.URLsProcessed.WithLabelValues(outcome(err)).Inc()
		return fmt.Errorf("import cancelled: %w", err)
	}

	record, err := s.Extract(ctx, rawURL, opts)
	if err != nil {
		metrics.URLsProcessed.WithLabelValues(outcome(err)).Inc()
		logger.Warn("product extraction failed", "url", rawURL, "error", err)
		return err
	}

	id, err := s.store.Insert(ctx, record)
	if err != nil {
		metrics.URLsProcessed.WithLabelValues("store_error").Inc()
		logger.Error("failed to store product", "url", rawURL, "error", err)
		return fmt.Errorf("store product: %w", err)
	}

	metrics.URLsProcessed.WithLabelValues("imported").Inc()
	logger.Info("product imported",
		"id", id,
		"url", rawURL,
		"name", record.Name,
		"price", record.Price.String())
	return nil
}

func outcome(err error) string {
	var (
		fetchErr *fetcher.FetchError
		parseErr *parser.ParseError
		asmErr   *assembler.AssemblyError
	)
	switch {
	case errors.As(err, &fetchErr):
		if fetchErr.Timeout() {
			return "fetch_timeout"
		}
		return "fetch_error"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &asmErr):
		return "assembly_error"
	}
	return "cancelled"
}
