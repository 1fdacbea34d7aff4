// Package postgres provides PostgreSQL infrastructure components: the schema
// migrations and the transactional outbox that relays converted messages to
// Redpanda.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DeadLetterTopic receives entries that exhausted their retries.
const DeadLetterTopic = "hl7.dead.letter"

// OutboxEntry represents a message to be published via the outbox
type OutboxEntry struct {
	ID            int64
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       json.RawMessage
	KafkaTopic    string
	KafkaKey      string
	Headers       map[string]string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	RetryCount    int
	LastError     *string
}

// OutboxConfig holds configuration for the outbox relay
type OutboxConfig struct {
	// BatchSize is the number of entries to process per batch
	BatchSize int
	// PollInterval is how often to poll for new entries
	PollInterval time.Duration
	// MaxRetries is the maximum retries before moving to dead letter
	MaxRetries int
	// DeadLetterTopic receives entries past MaxRetries
	DeadLetterTopic string
}

// DefaultOutboxConfig returns sensible defaults
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		BatchSize:       100,
		PollInterval:    100 * time.Millisecond,
		MaxRetries:      5,
		DeadLetterTopic: DeadLetterTopic,
	}
}

// Publisher delivers a single outbox entry to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// PublishedFunc is called after an entry has been delivered and marked.
type PublishedFunc func(ctx context.Context, entry *OutboxEntry)

// Outbox polls unprocessed entries and publishes them.
type Outbox struct {
	pool        *pgxpool.Pool
	config      OutboxConfig
	publisher   Publisher
	logger      *zap.Logger
	tracer      trace.Tracer
	onPublished PublishedFunc

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutbox creates a new outbox relay
func NewOutbox(pool *pgxpool.Pool, publisher Publisher, cfg OutboxConfig, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeadLetterTopic == "" {
		cfg.DeadLetterTopic = DeadLetterTopic
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Outbox{
		pool:      pool,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("outbox"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// OnPublished registers a callback run after each successful delivery.
// It must be set before Start.
func (o *Outbox) OnPublished(fn PublishedFunc) {
	o.onPublished = fn
}

// WriteEntry writes an outbox entry within a transaction.
// It must run in the same transaction as the domain change it announces.
func WriteEntry(ctx context.Context, tx pgx.Tx, entry *OutboxEntry) error {
	headers, err := encodeHeaders(entry.Headers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO outbox (aggregate_id, aggregate_type, event_type, payload, kafka_topic, kafka_key, headers)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err = tx.QueryRow(ctx, query,
		entry.AggregateID,
		entry.AggregateType,
		entry.EventType,
		[]byte(entry.Payload),
		entry.KafkaTopic,
		entry.KafkaKey,
		headers,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write outbox entry: %w", err)
	}
	return nil
}

// Start begins polling and processing outbox entries
func (o *Outbox) Start() {
	go o.processLoop()
	o.logger.Info("outbox relay started",
		zap.Int("batch_size", o.config.BatchSize),
		zap.Duration("poll_interval", o.config.PollInterval))
}

// Stop gracefully stops the relay
func (o *Outbox) Stop() {
	o.cancel()
	<-o.done
	o.logger.Info("outbox relay stopped")
}

func (o *Outbox) processLoop() {
	defer close(o.done)

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.ProcessBatch(o.ctx); err != nil {
				o.logger.Error("outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch of pending entries. Rows are locked with
// SKIP LOCKED for the lifetime of the transaction so several relays can run
// side by side. It returns the number of entries delivered.
func (o *Outbox) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := o.tracer.Start(ctx, "outbox_process_batch")
	defer span.End()

	tx, err := o.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	entries, err := fetchEntries(ctx, tx, `
		SELECT id, aggregate_id, aggregate_type, event_type, payload,
		       kafka_topic, kafka_key, headers, created_at, retry_count, last_error
		FROM outbox
		WHERE processed_at IS NULL
		  AND retry_count < $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, o.config.MaxRetries, o.config.BatchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	span.SetAttributes(attribute.Int("batch_size", len(entries)))

	var delivered []*OutboxEntry
	for _, entry := range entries {
		if err := o.processEntry(ctx, tx, entry); err != nil {
			o.logger.Warn("outbox entry not delivered",
				zap.Int64("id", entry.ID),
				zap.String("topic", entry.KafkaTopic),
				zap.Int("retry_count", entry.RetryCount+1),
				zap.Error(err))
			continue
		}
		delivered = append(delivered, entry)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("commit: %w", err)
	}

	if o.onPublished != nil {
		for _, entry := range delivered {
			o.onPublished(ctx, entry)
		}
	}
	return len(delivered), nil
}

func (o *Outbox) processEntry(ctx context.Context, tx pgx.Tx, entry *OutboxEntry) error {
	ctx, span := o.tracer.Start(ctx, "outbox_process_entry",
		trace.WithAttributes(
			attribute.Int64("entry_id", entry.ID),
			attribute.String("event_type", entry.EventType),
			attribute.String("aggregate_id", entry.AggregateID),
		))
	defer span.End()

	if err := o.publisher.Publish(ctx, entry.KafkaTopic, entry.KafkaKey, entry.Payload, entry.Headers); err != nil {
		_, updateErr := tx.Exec(ctx, `
			UPDATE outbox
			SET retry_count = retry_count + 1, last_error = $1, updated_at = NOW()
			WHERE id = $2
		`, err.Error(), entry.ID)
		if updateErr != nil {
			o.logger.Error("failed to update retry count", zap.Error(updateErr))
		}
		span.RecordError(err)
		return fmt.Errorf("publish failed: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE outbox
		SET processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, entry.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark processed: %w", err)
	}

	o.logger.Debug("outbox entry published",
		zap.Int64("id", entry.ID),
		zap.String("topic", entry.KafkaTopic))
	return nil
}

// MoveToDeadLetter publishes entries that exceeded MaxRetries to the dead
// letter topic and marks them processed.
func (o *Outbox) MoveToDeadLetter(ctx context.Context) (int64, error) {
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	entries, err := fetchEntries(ctx, tx, `
		SELECT id, aggregate_id, aggregate_type, event_type, payload,
		       kafka_topic, kafka_key, headers, created_at, retry_count, last_error
		FROM outbox
		WHERE processed_at IS NULL
		  AND retry_count >= $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, o.config.MaxRetries, o.config.BatchSize)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, entry := range entries {
		payload, err := deadLetterPayload(entry)
		if err != nil {
			o.logger.Error("failed to build dead letter payload", zap.Int64("id", entry.ID), zap.Error(err))
			continue
		}
		if err := o.publisher.Publish(ctx, o.config.DeadLetterTopic, entry.KafkaKey, payload, entry.Headers); err != nil {
			o.logger.Error("failed to publish to dead letter", zap.Int64("id", entry.ID), zap.Error(err))
			continue
		}
		if _, err := tx.Exec(ctx, "UPDATE outbox SET processed_at = NOW(), updated_at = NOW() WHERE id = $1", entry.ID); err != nil {
			o.logger.Error("failed to mark dead letter entry", zap.Int64("id", entry.ID), zap.Error(err))
			continue
		}
		count++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return count, nil
}

// CleanupProcessed removes processed entries older than the given age
func (o *Outbox) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := o.pool.Exec(ctx, `
		DELETE FROM outbox
		WHERE processed_at IS NOT NULL
		  AND processed_at < $1
	`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	return result.RowsAffected(), nil
}

// OutboxStats summarizes the outbox table.
type OutboxStats struct {
	Pending       int64
	Processed     int64
	Failed        int64
	OldestPending *time.Time
}

// GetStats returns current outbox statistics
func (o *Outbox) GetStats(ctx context.Context) (*OutboxStats, error) {
	stats := &OutboxStats{}
	err := o.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE processed_at IS NULL AND retry_count < $1),
			COUNT(*) FILTER (WHERE processed_at IS NOT NULL AND processed_at > NOW() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE processed_at IS NULL AND retry_count >= $1),
			MIN(created_at) FILTER (WHERE processed_at IS NULL)
		FROM outbox
	`, o.config.MaxRetries).Scan(&stats.Pending, &stats.Processed, &stats.Failed, &stats.OldestPending)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func fetchEntries(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]*OutboxEntry, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		entry := &OutboxEntry{}
		var payload, headers []byte
		err := rows.Scan(
			&entry.ID, &entry.AggregateID, &entry.AggregateType,
			&entry.EventType, &payload, &entry.KafkaTopic,
			&entry.KafkaKey, &headers, &entry.CreatedAt, &entry.RetryCount, &entry.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		entry.Payload = payload
		if entry.Headers, err = decodeHeaders(headers); err != nil {
			return nil, fmt.Errorf("entry %d: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func encodeHeaders(h map[string]string) ([]byte, error) {
	if len(h) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}
	return b, nil
}

func decodeHeaders(b []byte) (map[string]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var h map[string]string
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, fmt.Errorf("decode headers: %w", err)
	}
	if len(h) == 0 {
		return nil, nil
	}
	return h, nil
}

// deadLetterEnvelope wraps an undeliverable entry with its delivery history.
type deadLetterEnvelope struct {
	OriginalTopic string          `json:"original_topic"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func deadLetterPayload(entry *OutboxEntry) ([]byte, error) {
	env := deadLetterEnvelope{
		OriginalTopic: entry.KafkaTopic,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		Payload:       entry.Payload,
		RetryCount:    entry.RetryCount,
		CreatedAt:     entry.CreatedAt,
	}
	if entry.LastError != nil {
		env.LastError = *entry.LastError
	}
	return json.Marshal(env)
}
