package payments

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mercuriabank/backend/internal/common/db"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/pkg/outbox"
)

type Repository struct {
	db         *db.DB
	outboxRepo *outbox.Repository
	logger     *logger.Logger
}

func NewRepository(database *db.DB, outboxRepo *outbox.Repository, log *logger.Logger) *Repository {
	return &Repository{db: database, outboxRepo: outboxRepo, logger: log}
}

func (r *Repository) Create(ctx context.Context, intent *PaymentIntent) (*PaymentIntent, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_intents (user_id, wallet_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, intent.UserID, intent.WalletID, intent.Amount, intent.Currency, intent.Status).
		Scan(&intent.ID, &intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return intent, nil
}

func (r *Repository) GetByIDForUser(ctx context.Context, id, userID string) (*PaymentIntent, error) {
	return scanIntent(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, wallet_id, amount, currency, status, hold_id, created_at, updated_at
		FROM payment_intents
		WHERE id = $1 AND user_id = $2
	`, id, userID))
}

// SetHoldID records the hold the orchestrator just created, so a retried
// confirm call sees intent.HoldID populated and skips re-creating it.
func (r *Repository) SetHoldID(ctx context.Context, id, holdID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE payment_intents SET hold_id = $2, updated_at = now() WHERE id = $1`, id, holdID)
	if err != nil {
		return fmt.Errorf("failed to record hold id: %w", err)
	}
	return nil
}

func (r *Repository) SetStatus(ctx context.Context, id string, status Status) error {
	_, err := r.db.ExecContext(ctx, `UPDATE payment_intents SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update payment intent status: %w", err)
	}
	return nil
}

// SetStatusWithEvent updates the intent's status and writes event in the
// same transaction, so a transition and its outbox event are atomic (same
// pattern as internal/wallet's service.go). event may be nil, in which case
// this degrades to a plain transactional status update.
func (r *Repository) SetStatusWithEvent(ctx context.Context, id string, status Status, event *outbox.OutboxEvent) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE payment_intents SET status = $2, updated_at = now() WHERE id = $1`, id, status); err != nil {
			return fmt.Errorf("failed to update payment intent status: %w", err)
		}
		if event == nil {
			return nil
		}
		event.AggregateID = id
		return r.outboxRepo.SaveEvent(ctx, tx, event)
	})
}

func scanIntent(row *sql.Row) (*PaymentIntent, error) {
	var intent PaymentIntent
	var holdID sql.NullString
	if err := row.Scan(&intent.ID, &intent.UserID, &intent.WalletID, &intent.Amount, &intent.Currency, &intent.Status, &holdID, &intent.CreatedAt, &intent.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan payment intent: %w", err)
	}
	intent.HoldID = holdID.String
	return &intent, nil
}
