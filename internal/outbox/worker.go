package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	relayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_relayed_total",
		Help: "Booking events relayed from the outbox table, by event type.",
	}, []string{"event_type"})
	relayFailTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_fail_total",
		Help: "Outbox publish failures after exhausting retries.",
	})
	relayLagSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_lag_seconds",
		Help: "Age of the oldest relayed outbox event in the last batch.",
	})
)

// WorkerConfig defines tunables for the relay loop.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	RetryMax     int
	RetryBackoff time.Duration
}

type natsPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Worker relays committed booking events from the outbox table to NATS.
// A batch is marked published only after every event in it was delivered,
// so delivery is at least once.
type Worker struct {
	db        *sql.DB
	publisher natsPublisher
	logger    *zap.Logger
	cfg       WorkerConfig
	tracer    trace.Tracer
}

// NewWorker constructs a relay worker. publisher is usually a *nats.Conn.
func NewWorker(db *sql.DB, publisher natsPublisher, logger *zap.Logger, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		db:        db,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		tracer:    otel.Tracer("booking.outbox.relay"),
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.db == nil || w.publisher == nil {
		return errors.New("outbox worker requires database and NATS connection")
	}
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.RelayOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("outbox batch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type record struct {
	ID        int64
	Topic     string
	EventID   string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// RelayOnce publishes one batch and returns how many events were relayed.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	ctx, span := w.tracer.Start(ctx, "outbox.batch")
	defer span.End()

	tx, err := w.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	records, err := w.loadPending(ctx, tx)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("outbox.batch_size", len(records)))
	if len(records) == 0 {
		return 0, tx.Commit()
	}

	ids := make([]int64, 0, len(records))
	var maxLag float64
	for _, rec := range records {
		if err := w.publishWithRetry(ctx, rec); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		ids = append(ids, rec.ID)
		relayedTotal.WithLabelValues(rec.EventType).Inc()
		if lag := time.Since(rec.CreatedAt).Seconds(); lag > maxLag {
			maxLag = lag
		}
	}
	relayLagSeconds.Set(maxLag)

	if err := markPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(ids), nil
}

func (w *Worker) loadPending(ctx context.Context, tx *sql.Tx) ([]record, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, topic, event_id, event_type, payload, created_at FROM outbox WHERE published = false ORDER BY id LIMIT $1 FOR UPDATE SKIP LOCKED`, w.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("select outbox: %w", err)
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.EventID, &rec.EventType, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return records, nil
}

func markPublished(ctx context.Context, tx *sql.Tx, ids []int64) error {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("UPDATE outbox SET published = true WHERE id IN (%s)", strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func (w *Worker) publishWithRetry(ctx context.Context, rec record) error {
	ctx, span := w.tracer.Start(ctx, "outbox.publish", trace.WithAttributes(
		attribute.Int64("outbox.id", rec.ID),
		attribute.String("event.type", rec.EventType),
	))
	defer span.End()
	if rec.Topic == "" {
		return fmt.Errorf("outbox record %d missing topic", rec.ID)
	}

	msg := nats.NewMsg(rec.Topic)
	msg.Data = rec.Payload
	if rec.EventID != "" {
		msg.Header.Set(nats.MsgIdHdr, rec.EventID)
	}
	if rec.EventType != "" {
		msg.Header.Set("x-event-type", rec.EventType)
	}
	if sc := span.SpanContext(); sc.IsValid() {
		msg.Header.Set("traceparent", fmt.Sprintf("00-%s-%s-01", sc.TraceID(), sc.SpanID()))
	}

	for attempt := 1; ; attempt++ {
		err := w.publisher.PublishMsg(msg)
		if err == nil {
			return nil
		}
		w.logger.Warn("publish failed", zap.Error(err), zap.Int("attempt", attempt), zap.Int64("outbox_id", rec.ID))
		if attempt >= w.cfg.RetryMax {
			relayFailTotal.Inc()
			return fmt.Errorf("publish outbox %d: %w", rec.ID, err)
		}
		select {
		case <-time.After(time.Duration(attempt*attempt) * w.cfg.RetryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
