// Package outbox implements the transactional outbox: services write events
// in the same database transaction as the state change they describe, and a
// background Publisher best-effort relays pending rows to Kafka. This is
// explicitly not a guaranteed-delivery pipeline — see SPEC_FULL.md §2 and
// §5 Non-goals; a stuck event simply gets retried up to maxAttempts and then
// parked as failed for operator attention.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mercuriabank/backend/internal/common/logger"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

const maxAttempts = 5

type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Topic       string
	Payload     map[string]interface{}
	Status      Status
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

type Repository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewRepository(db *sql.DB, log *logger.Logger) *Repository {
	return &Repository{db: db, logger: log}
}

// SaveEvent persists event as part of the caller's transaction, so the event
// is durable if and only if the state change it describes is.
func (r *Repository) SaveEvent(ctx context.Context, tx *sql.Tx, event *OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	event.Status = StatusPending
	query := `
		INSERT INTO outbox_events (aggregate_id, event_type, topic, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return tx.QueryRowContext(ctx, query, event.AggregateID, event.EventType, event.Topic, payload, event.Status).
		Scan(&event.ID, &event.CreatedAt)
}

// GetPendingEvents returns up to limit events still eligible for delivery,
// oldest first, excluding rows that exhausted maxAttempts.
func (r *Repository) GetPendingEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, topic, payload, status, attempts, COALESCE(last_error, ''), created_at, published_at
		FROM outbox_events
		WHERE status = $1 AND attempts < $2
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, StatusPending, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Topic, &payload, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *Repository) MarkAsPublished(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = $1, published_at = NOW() WHERE id = $2`,
		StatusPublished, id)
	return err
}

func (r *Repository) MarkAsFailed(ctx context.Context, id string, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = $1, last_error = $2 WHERE id = $3`,
		StatusFailed, reason, id)
	return err
}

func (r *Repository) IncrementAttempt(ctx context.Context, id string, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET attempts = attempts + 1, last_error = $1 WHERE id = $2`,
		reason, id)
	return err
}

// Publisher polls for pending events on an interval and relays them to
// Kafka, marking each as published or bumping its attempt count on failure.
type Publisher struct {
	repo     *Repository
	producer *kafka.Writer
	logger   *logger.Logger
	interval time.Duration
	stop     chan struct{}
}

func NewPublisher(repo *Repository, producer *kafka.Writer, log *logger.Logger, interval time.Duration) *Publisher {
	return &Publisher{repo: repo, producer: producer, logger: log, interval: interval, stop: make(chan struct{})}
}

// Run polls until ctx is canceled or Stop is called.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.publishBatch(ctx)
		}
	}
}

func (p *Publisher) Stop() {
	close(p.stop)
}

func (p *Publisher) publishBatch(ctx context.Context) {
	events, err := p.repo.GetPendingEvents(ctx, 100)
	if err != nil {
		p.logger.Errorf("failed to load pending outbox events: %v", err)
		return
	}

	for _, event := range events {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			p.logger.Errorf("failed to marshal outbox event %s: %v", event.ID, err)
			continue
		}

		msg := kafka.Message{
			Topic: event.Topic,
			Key:   []byte(event.AggregateID),
			Value: payload,
		}

		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = p.producer.WriteMessages(writeCtx, msg)
		cancel()

		if err != nil {
			if event.Attempts+1 >= maxAttempts {
				if markErr := p.repo.MarkAsFailed(ctx, event.ID, err.Error()); markErr != nil {
					p.logger.Errorf("failed to mark outbox event %s as failed: %v", event.ID, markErr)
				}
				continue
			}
			if incErr := p.repo.IncrementAttempt(ctx, event.ID, err.Error()); incErr != nil {
				p.logger.Errorf("failed to increment outbox event %s attempt: %v", event.ID, incErr)
			}
			continue
		}

		if err := p.repo.MarkAsPublished(ctx, event.ID); err != nil {
			p.logger.Errorf("failed to mark outbox event %s as published: %v", event.ID, err)
		}
	}
}
