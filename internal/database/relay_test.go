package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStreams struct {
	mock.Mock
}

func (m *MockStreams) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if err := mockArgs.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("1700000000000-0")
	}
	return cmd
}

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockEventStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockEventStore) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	return m.Called(ctx, id, err).Error(0)
}

func (m *MockEventStore) CountByStatus(ctx context.Context, statuses ...string) (int64, error) {
	args := m.Called(ctx, statuses)
	return args.Get(0).(int64), args.Error(1)
}

// importedEvent builds the outbox event ProductStore.Insert would write.
func importedEvent(t *testing.T, article string) *OutboxEvent {
	t.Helper()
	event, err := productImportedEvent(uuid.New(), testRecord(article))
	require.NoError(t, err)
	event.ID = uuid.New()
	event.CreatedAt = time.Date(2025, 3, 14, 9, 31, 0, 0, time.UTC)
	return event
}

func entryValues(args *redis.XAddArgs) map[string]interface{} {
	values, _ := args.Values.(map[string]interface{})
	return values
}

func forArticle(article string) interface{} {
	return mock.MatchedBy(func(args *redis.XAddArgs) bool {
		return entryValues(args)["article"] == article
	})
}

func TestStreamValues_ProductImported(t *testing.T) {
	event := importedEvent(t, "A1234PL-5WH")

	values, err := streamValues(event)
	require.NoError(t, err)

	assert.Equal(t, event.ID.String(), values["event_id"])
	assert.Equal(t, EventProductImported, values["event_type"])
	assert.Equal(t, AggregateProduct, values["aggregate_type"])
	assert.Equal(t, event.AggregateID, values["aggregate_id"])
	assert.Equal(t, event.AggregateID, values["product_id"])
	assert.Equal(t, "lighting-importer", values["source"])
	assert.Equal(t, "0", values["retry_count"])
	assert.Equal(t, "2025-03-14T09:31:00Z", values["created_at"])

	assert.Equal(t, "Люстра Arte Lamp Como A1234PL-5WH", values["name"])
	assert.Equal(t, "Arte Lamp", values["brand"])
	assert.Equal(t, "A1234PL-5WH", values["article"])
	assert.Equal(t, "12500.50", values["price"])
	assert.Equal(t, "ceiling_chandelier", values["product_type"])
	assert.Equal(t, "true", values["in_stock"])
	assert.Equal(t, "https://shop.example/p/A1234PL-5WH", values["source_url"])
	assert.Equal(t, "2025-03-14T09:30:00Z", values["imported_at"])
	assert.JSONEq(t, string(event.Payload), values["payload"].(string))
}

func TestStreamValues_OtherEventTypes(t *testing.T) {
	event := &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: AggregateProduct,
		AggregateID:   uuid.NewString(),
		EventType:     "PRODUCTS_DEDUPLICATED",
		Payload:       json.RawMessage(`{"deleted":3}`),
	}

	values, err := streamValues(event)
	require.NoError(t, err)
	assert.Equal(t, `{"deleted":3}`, values["payload"])
	assert.NotContains(t, values, "product_id")
	assert.NotContains(t, values, "article")
}

func TestStreamValues_BadPayload(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   string
	}{
		{"not json", "PRODUCTS_DEDUPLICATED", `{"deleted":`},
		{"product id is not a uuid", EventProductImported, `{"id":"A1234PL","name":"Люстра"}`},
		{"wrong field type", EventProductImported, `{"in_stock":"yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := streamValues(&OutboxEvent{
				ID:        uuid.New(),
				EventType: tt.eventType,
				Payload:   json.RawMessage(tt.payload),
			})
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestRelay_Drain(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("publishes imported products with trimming", func(t *testing.T) {
		streams := new(MockStreams)
		events := new(MockEventStore)
		relay := newRelay(events, streams, logger, RelayConfig{BatchSize: 10, StreamMaxLen: 5000})

		como, bella := importedEvent(t, "COMO-5"), importedEvent(t, "BELLA-39123")
		events.On("GetPending", ctx, 10).Return([]*OutboxEvent{como, bella}, nil).Once()

		for _, event := range []*OutboxEvent{como, bella} {
			streams.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				return args.Stream == CatalogImportStream &&
					args.MaxLen == 5000 && args.Approx &&
					entryValues(args)["event_id"] == event.ID.String()
			})).Return(nil).Once()
			events.On("MarkProcessed", ctx, event.ID).Return(nil).Once()
		}

		published, err := relay.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, published)

		streams.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("failed publish is marked and the batch continues", func(t *testing.T) {
		streams := new(MockStreams)
		events := new(MockEventStore)
		relay := newRelay(events, streams, logger, RelayConfig{BatchSize: 10})

		como, bella := importedEvent(t, "COMO-5"), importedEvent(t, "BELLA-39123")
		events.On("GetPending", ctx, 10).Return([]*OutboxEvent{como, bella}, nil).Once()

		streams.On("XAdd", ctx, forArticle("COMO-5")).Return(errors.New("READONLY replica")).Once()
		events.On("MarkFailed", ctx, como.ID, mock.MatchedBy(func(err error) bool {
			return err.Error() == "failed to publish to redis: READONLY replica"
		})).Return(nil).Once()

		streams.On("XAdd", ctx, forArticle("BELLA-39123")).Return(nil).Once()
		events.On("MarkProcessed", ctx, bella.ID).Return(nil).Once()

		published, err := relay.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, published)

		streams.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("undecodable payload never reaches redis", func(t *testing.T) {
		streams := new(MockStreams)
		events := new(MockEventStore)
		relay := newRelay(events, streams, logger, RelayConfig{BatchSize: 10})

		broken := importedEvent(t, "COMO-5")
		broken.Payload = json.RawMessage(`{"id":42}`)
		events.On("GetPending", ctx, 10).Return([]*OutboxEvent{broken}, nil).Once()
		events.On("MarkFailed", ctx, broken.ID, mock.MatchedBy(func(err error) bool {
			return errors.Is(err, ErrInvalidEvent)
		})).Return(nil).Once()

		published, err := relay.Drain(ctx)
		require.NoError(t, err)
		assert.Zero(t, published)

		streams.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
		events.AssertExpectations(t)
	})

	t.Run("keeps fetching while batches are full", func(t *testing.T) {
		streams := new(MockStreams)
		events := new(MockEventStore)
		relay := newRelay(events, streams, logger, RelayConfig{BatchSize: 1})

		first, second := importedEvent(t, "A1"), importedEvent(t, "B2")
		events.On("GetPending", ctx, 1).Return([]*OutboxEvent{first}, nil).Once()
		events.On("GetPending", ctx, 1).Return([]*OutboxEvent{second}, nil).Once()
		events.On("GetPending", ctx, 1).Return([]*OutboxEvent{}, nil).Once()
		streams.On("XAdd", ctx, mock.Anything).Return(nil).Twice()
		events.On("MarkProcessed", ctx, first.ID).Return(nil).Once()
		events.On("MarkProcessed", ctx, second.ID).Return(nil).Once()

		published, err := relay.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, published)

		events.AssertExpectations(t)
		streams.AssertExpectations(t)
	})

	t.Run("outbox read error", func(t *testing.T) {
		events := new(MockEventStore)
		relay := newRelay(events, new(MockStreams), logger, RelayConfig{BatchSize: 10})

		events.On("GetPending", ctx, 10).Return(nil, errors.New("connection refused")).Once()

		_, err := relay.Drain(ctx)
		assert.ErrorContains(t, err, "failed to get pending events")
	})
}

func TestRelay_StartStopsOnCancel(t *testing.T) {
	events := new(MockEventStore)
	relay := newRelay(events, new(MockStreams), slog.Default(), RelayConfig{
		PollInterval: 20 * time.Millisecond,
		BatchSize:    10,
	})
	events.On("GetPending", mock.Anything, 10).Return([]*OutboxEvent{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- relay.Start(ctx)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on context cancellation")
	}
	events.AssertCalled(t, "GetPending", mock.Anything, 10)
}

func TestRelay_Counts(t *testing.T) {
	ctx := context.Background()
	events := new(MockEventStore)
	relay := newRelay(events, new(MockStreams), slog.Default(), RelayConfig{})

	events.On("CountByStatus", ctx, []string{OutboxStatusPending, OutboxStatusFailed}).Return(int64(7), nil)
	events.On("CountByStatus", ctx, []string{OutboxStatusDeadLetter}).Return(int64(0), errors.New("db down"))

	pending, err := relay.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pending)

	_, err = relay.GetDeadLetterCount(ctx)
	assert.EqualError(t, err, "db down")

	events.AssertExpectations(t)
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		retries int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{9, 300 * time.Second},
		{40, 300 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, retryBackoff(tt.retries), "retries=%d", tt.retries)
	}
}

func TestRelay_DrainStoredProducts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	store := NewProductStore(db)
	id, err := store.Insert(ctx, testRecord("A1234PL-5WH"))
	require.NoError(t, err)

	streams := new(MockStreams)
	streams.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		values := entryValues(args)
		return args.Stream == CatalogImportStream &&
			values["product_id"] == id.String() &&
			values["price"] == "12500.50"
	})).Return(nil).Once()

	relay := NewRelay(db, streams, slog.Default(), RelayConfig{BatchSize: 10})
	published, err := relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	streams.AssertExpectations(t)

	pending, err := relay.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}
