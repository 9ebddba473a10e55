package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/lighting-importer/internal/metrics"
)

const relaySource = "lighting-importer"

// StreamPublisher is the part of the Redis client the relay writes through.
type StreamPublisher interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// EventStore is the outbox side of the relay.
type EventStore interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
}

// Relay moves committed outbox events onto Redis streams. Delivery is at
// least once: an event is marked processed only after XADD succeeded.
type Relay struct {
	streams   StreamPublisher
	events    EventStore
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxLen    int64
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// StreamMaxLen trims each stream to about this many entries. Zero keeps everything.
	StreamMaxLen int64
}

// NewRelay creates a relay reading the outbox of db.
func NewRelay(db *DB, streams StreamPublisher, logger *slog.Logger, config RelayConfig) *Relay {
	return newRelay(NewOutboxRepository(db), streams, logger, config)
}

func newRelay(events EventStore, streams StreamPublisher, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &Relay{
		streams:   streams,
		events:    events,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		maxLen:    config.StreamMaxLen,
	}
}

// Start drains the outbox every poll interval until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.interval,
		"batch_size", r.batchSize,
		"stream_max_len", r.maxLen)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if n, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("failed to drain outbox", "error", err)
		} else if n > 0 {
			r.logger.Info("events published", "count", n)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain publishes due events batch by batch until a batch comes back short
// or publishes nothing, and returns how many events reached Redis.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		published, fetched, err := r.relayBatch(ctx)
		total += published
		if err != nil {
			return total, err
		}
		if fetched < r.batchSize || published == 0 {
			return total, nil
		}
	}
}

func (r *Relay) relayBatch(ctx context.Context) (published, fetched int, err error) {
	events, err := r.events.GetPending(ctx, r.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return published, len(events), err
		}
		if err := r.relay(ctx, event); err != nil {
			metrics.OutboxEvents.WithLabelValues("failed").Inc()
			r.logger.Warn("event not published",
				"event_id", event.ID,
				"event_type", event.EventType,
				"aggregate_id", event.AggregateID,
				"retry_count", event.RetryCount,
				"error", err)
			continue
		}
		metrics.OutboxEvents.WithLabelValues("published").Inc()
		published++
	}

	return published, len(events), nil
}

func (r *Relay) relay(ctx context.Context, event *OutboxEvent) error {
	values, err := streamValues(event)
	if err == nil {
		err = r.publish(ctx, event.TargetStream, values)
	}
	if err != nil {
		if markErr := r.events.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to mark event as failed", "event_id", event.ID, "error", markErr)
		}
		return err
	}

	if err := r.events.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, stream string, values map[string]interface{}) error {
	if stream == "" {
		stream = CatalogImportStream
	}
	args := &redis.XAddArgs{Stream: stream, Values: values}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if _, err := r.streams.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// streamValues flattens an event into stream entry fields. PRODUCT_IMPORTED
// events also expose the product's key fields so consumers can filter
// without decoding the payload.
func streamValues(event *OutboxEvent) (map[string]interface{}, error) {
	if !json.Valid(event.Payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidEvent)
	}

	values := map[string]interface{}{
		"event_id":       event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"source":         relaySource,
		"retry_count":    strconv.Itoa(event.RetryCount),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339),
		"payload":        string(event.Payload),
	}

	if event.EventType != EventProductImported {
		return values, nil
	}

	var p productImportedPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrInvalidEvent, event.EventType, err)
	}
	values["product_id"] = p.ID.String()
	values["name"] = p.Name
	values["brand"] = p.Brand
	values["article"] = p.Article
	values["price"] = p.Price
	values["product_type"] = string(p.ProductType)
	values["in_stock"] = strconv.FormatBool(p.InStock)
	values["source_url"] = p.SourceURL
	values["imported_at"] = p.ImportedAt

	return values, nil
}

// GetPendingCount returns the number of events still waiting for delivery.
func (r *Relay) GetPendingCount(ctx context.Context) (int64, error) {
	return r.events.CountByStatus(ctx, OutboxStatusPending, OutboxStatusFailed)
}

// GetDeadLetterCount returns the number of events that ran out of retries.
func (r *Relay) GetDeadLetterCount(ctx context.Context) (int64, error) {
	return r.events.CountByStatus(ctx, OutboxStatusDeadLetter)
}
