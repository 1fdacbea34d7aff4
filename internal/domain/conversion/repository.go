package conversion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/infrastructure/postgres"
)

// ErrNotFound is returned when no events exist for a conversion id.
var ErrNotFound = errors.New("conversion not found")

// Store persists conversion records.
type Store interface {
	// Save appends the record's uncommitted events and writes the outbox
	// entries in the same transaction.
	Save(ctx context.Context, rec *Record, outbox ...*postgres.OutboxEntry) error
	Load(ctx context.Context, id string) (*Record, error)
	GetEvents(ctx context.Context, id string) ([]*Event, error)
}

// Repository is the Postgres event store for conversion records.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

// Save persists new events for a record together with its outbox entries.
func (r *Repository) Save(ctx context.Context, rec *Record, outbox ...*postgres.OutboxEntry) error {
	changes := rec.Changes()
	if len(changes) == 0 && len(outbox) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	base := rec.Version() - len(changes)
	for i, event := range changes {
		event.Version = base + i + 1
		if err := insertEvent(ctx, tx, event); err != nil {
			return fmt.Errorf("insert %s: %w", event.EventType, err)
		}
	}
	for _, entry := range outbox {
		if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("conversion saved",
		zap.String("conversion_id", rec.ID()),
		zap.Int("events", len(changes)),
		zap.Int("outbox", len(outbox)))
	rec.ClearChanges()
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, event *Event) error {
	query := `
		INSERT INTO conversion_events
		(id, aggregate_id, aggregate_type, event_type, event_data, version, timestamp, control_id, order_event, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Exec(ctx, query,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		string(event.EventType),
		[]byte(event.EventData),
		event.Version,
		event.Timestamp,
		event.ControlID,
		event.OrderEvent,
		event.CorrelationID,
	)
	return err
}

// Load rebuilds a record from its events.
func (r *Repository) Load(ctx context.Context, id string) (*Record, error) {
	events, err := r.GetEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	return rebuild(id, events)
}

func rebuild(id string, events []*Event) (*Record, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec := NewRecord(id)
	if err := rec.LoadFromHistory(events); err != nil {
		return nil, fmt.Errorf("replay %s: %w", id, err)
	}
	return rec, nil
}

// GetEvents retrieves all events for a record in version order.
func (r *Repository) GetEvents(ctx context.Context, id string) ([]*Event, error) {
	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, version, timestamp,
		       control_id, order_event, correlation_id
		FROM conversion_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var eventType string
		var data []byte
		err := rows.Scan(
			&e.ID, &e.AggregateID, &e.AggregateType, &eventType, &data, &e.Version,
			&e.Timestamp, &e.ControlID, &e.OrderEvent, &e.CorrelationID,
		)
		if err != nil {
			return nil, err
		}
		e.EventType = EventType(eventType)
		e.EventData = data
		events = append(events, e)
	}
	return events, rows.Err()
}
