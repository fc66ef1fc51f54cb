package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/db"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/money"
)

type Repository struct {
	db     *db.DB
	logger *logger.Logger
}

func NewRepository(database *db.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     database,
		logger: log,
	}
}

func (r *Repository) CreateWallet(ctx context.Context, wallet *Wallet) (*Wallet, error) {
	query := `
		INSERT INTO wallets (owner_user_id, currency, balance, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		wallet.OwnerUserID,
		wallet.Currency,
		wallet.Balance.String(),
		wallet.Status,
	).Scan(&wallet.ID, &wallet.CreatedAt, &wallet.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	r.logger.Infof("wallet created: %s for owner %s", wallet.ID, wallet.OwnerUserID)
	return wallet, nil
}

func (r *Repository) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	query := `
		SELECT id, owner_user_id, currency, balance, status, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`
	return scanWallet(r.db.QueryRowContext(ctx, query, id))
}

// GetWalletByOwnerAndCurrency backs the idempotent-create-wallet semantics:
// a second create_wallet call with the same owner+currency returns the
// existing wallet instead of erroring.
func (r *Repository) GetWalletByOwnerAndCurrency(ctx context.Context, ownerUserID, currency string) (*Wallet, error) {
	query := `
		SELECT id, owner_user_id, currency, balance, status, created_at, updated_at
		FROM wallets
		WHERE owner_user_id = $1 AND currency = $2
	`
	return scanWallet(r.db.QueryRowContext(ctx, query, ownerUserID, currency))
}

// GetWalletForUpdate locks the wallet row for the duration of the caller's
// transaction; this plus the unique idempotency constraint on ledger_entries
// is the entire concurrency story for balance mutations (spec §5).
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *sql.Tx, walletID string) (*Wallet, error) {
	query := `
		SELECT id, owner_user_id, currency, balance, status, created_at, updated_at
		FROM wallets
		WHERE id = $1
		FOR UPDATE
	`
	return scanWallet(tx.QueryRowContext(ctx, query, walletID))
}

func (r *Repository) GetWalletByOwnerForUpdate(ctx context.Context, tx *sql.Tx, walletID, ownerUserID string) (*Wallet, error) {
	query := `
		SELECT id, owner_user_id, currency, balance, status, created_at, updated_at
		FROM wallets
		WHERE id = $1 AND owner_user_id = $2
		FOR UPDATE
	`
	return scanWallet(tx.QueryRowContext(ctx, query, walletID, ownerUserID))
}

func (r *Repository) UpdateBalanceWithLock(ctx context.Context, tx *sql.Tx, walletID string, newBalance money.Money) error {
	query := `
		UPDATE wallets
		SET balance = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := tx.ExecContext(ctx, query, newBalance.String(), walletID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apierr.NotFound("wallet not found")
	}

	return nil
}

func scanWallet(row *sql.Row) (*Wallet, error) {
	wallet := &Wallet{}
	var balance string
	err := row.Scan(
		&wallet.ID,
		&wallet.OwnerUserID,
		&wallet.Currency,
		&balance,
		&wallet.Status,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("wallet not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	parsed, err := money.Parse(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid stored balance: %w", err)
	}
	wallet.Balance = parsed

	return wallet, nil
}

// FindLedgerEntryByIdempotencyKey implements the "already applied" half of
// the credit/debit idempotency check: if a ledger entry already exists for
// (wallet_id, idempotency_key), the caller should treat the operation as
// already done and return the current wallet state rather than re-applying.
func (r *Repository) FindLedgerEntryByIdempotencyKey(ctx context.Context, tx *sql.Tx, walletID, idempotencyKey string) (*LedgerEntry, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `
		SELECT id, wallet_id, type, amount, idempotency_key, metadata, created_at
		FROM ledger_entries
		WHERE wallet_id = $1 AND idempotency_key = $2
	`
	row := tx.QueryRowContext(ctx, query, walletID, idempotencyKey)
	entry, err := scanLedgerEntry(row)
	if err == sql.ErrNoRows || (err != nil && isNotFound(err)) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func isNotFound(err error) bool {
	apiErr := apierr.As(err)
	return apiErr != nil && apiErr.Kind == apierr.KindNotFound
}

func (r *Repository) CreateLedgerEntryTx(ctx context.Context, tx *sql.Tx, entry *LedgerEntry) (*LedgerEntry, error) {
	var metadataJSON []byte
	var err error

	if entry.Details != nil {
		metadataJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	var idemKey *string
	if entry.IdempotencyKey != "" {
		idemKey = &entry.IdempotencyKey
	}

	query := `
		INSERT INTO ledger_entries (wallet_id, type, amount, idempotency_key, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err = tx.QueryRowContext(
		ctx,
		query,
		entry.WalletID,
		entry.Type,
		entry.Amount.String(),
		idemKey,
		metadataJSON,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return entry, nil
}

func scanLedgerEntry(row *sql.Row) (*LedgerEntry, error) {
	entry := &LedgerEntry{}
	var amount string
	var metadataJSON []byte
	var idemKey sql.NullString

	err := row.Scan(&entry.ID, &entry.WalletID, &entry.Type, &amount, &idemKey, &metadataJSON, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("ledger entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	parsed, err := money.Parse(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount: %w", err)
	}
	entry.Amount = parsed
	entry.IdempotencyKey = idemKey.String

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return entry, nil
}

// ListLedgerEntries returns entries for walletID older than the cursor
// (a ledger entry id), newest-first, for the statement pagination endpoint.
func (r *Repository) ListLedgerEntries(ctx context.Context, walletID, cursor string, limit int) ([]LedgerEntry, error) {
	var rows *sql.Rows
	var err error

	if cursor != "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, wallet_id, type, amount, idempotency_key, metadata, created_at
			FROM ledger_entries
			WHERE wallet_id = $1
			  AND (created_at, id) < (SELECT created_at, id FROM ledger_entries WHERE id = $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, walletID, cursor, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT id, wallet_id, type, amount, idempotency_key, metadata, created_at
			FROM ledger_entries
			WHERE wallet_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, walletID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var entry LedgerEntry
		var amount string
		var metadataJSON []byte
		var idemKey sql.NullString

		if err := rows.Scan(&entry.ID, &entry.WalletID, &entry.Type, &amount, &idemKey, &metadataJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		parsed, err := money.Parse(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount: %w", err)
		}
		entry.Amount = parsed
		entry.IdempotencyKey = idemKey.String
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Details); err != nil {
				r.logger.Warnf("failed to unmarshal ledger entry metadata: %v", err)
			}
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Hold persistence

func (r *Repository) FindHoldByIdempotencyKey(ctx context.Context, tx *sql.Tx, walletID, idempotencyKey string) (*Hold, error) {
	query := `
		SELECT id, wallet_id, amount, status, idempotency_key, reference, details, ledger_entry_id, created_at, updated_at
		FROM holds
		WHERE wallet_id = $1 AND idempotency_key = $2
	`
	row := tx.QueryRowContext(ctx, query, walletID, idempotencyKey)
	hold, err := scanHold(row)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return hold, nil
}

func (r *Repository) GetHoldForUpdate(ctx context.Context, tx *sql.Tx, holdID string) (*Hold, error) {
	query := `
		SELECT id, wallet_id, amount, status, idempotency_key, reference, details, ledger_entry_id, created_at, updated_at
		FROM holds
		WHERE id = $1
		FOR UPDATE
	`
	return scanHold(tx.QueryRowContext(ctx, query, holdID))
}

func (r *Repository) GetHold(ctx context.Context, holdID string) (*Hold, error) {
	query := `
		SELECT id, wallet_id, amount, status, idempotency_key, reference, details, ledger_entry_id, created_at, updated_at
		FROM holds
		WHERE id = $1
	`
	return scanHold(r.db.QueryRowContext(ctx, query, holdID))
}

func (r *Repository) CreateHoldTx(ctx context.Context, tx *sql.Tx, hold *Hold) (*Hold, error) {
	var detailsJSON []byte
	var err error
	if hold.Details != nil {
		detailsJSON, err = json.Marshal(hold.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal hold details: %w", err)
		}
	}

	query := `
		INSERT INTO holds (wallet_id, amount, status, idempotency_key, reference, details, ledger_entry_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err = tx.QueryRowContext(
		ctx, query,
		hold.WalletID, hold.Amount.String(), hold.Status, hold.IdempotencyKey, hold.Reference, detailsJSON, nullableString(hold.LedgerEntryID),
	).Scan(&hold.ID, &hold.CreatedAt, &hold.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create hold: %w", err)
	}
	return hold, nil
}

func (r *Repository) UpdateHoldStatusTx(ctx context.Context, tx *sql.Tx, holdID string, status HoldStatus, ledgerEntryID string) error {
	query := `
		UPDATE holds
		SET status = $1, ledger_entry_id = COALESCE($2, ledger_entry_id), updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	result, err := tx.ExecContext(ctx, query, status, nullableString(ledgerEntryID), holdID)
	if err != nil {
		return fmt.Errorf("failed to update hold status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apierr.NotFound("hold not found")
	}
	return nil
}

func scanHold(row *sql.Row) (*Hold, error) {
	hold := &Hold{}
	var amount string
	var detailsJSON []byte
	var reference, ledgerEntryID sql.NullString

	err := row.Scan(&hold.ID, &hold.WalletID, &amount, &hold.Status, &hold.IdempotencyKey, &reference, &detailsJSON, &ledgerEntryID, &hold.CreatedAt, &hold.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("hold not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan hold: %w", err)
	}

	parsed, err := money.Parse(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount: %w", err)
	}
	hold.Amount = parsed
	hold.Reference = reference.String
	hold.LedgerEntryID = ledgerEntryID.String

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &hold.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hold details: %w", err)
		}
	}

	return hold, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Transfer persistence

func (r *Repository) FindTransferByIdempotencyKey(ctx context.Context, tx *sql.Tx, idempotencyKey string) (*Transfer, error) {
	query := `
		SELECT id, user_id, source_wallet_id, target_wallet_id, amount, currency, status, idempotency_key,
		       COALESCE(failure_reason, ''), COALESCE(external_reference, ''),
		       COALESCE(ledger_debit_entry_id, ''), COALESCE(ledger_credit_entry_id, ''),
		       created_at, updated_at
		FROM transfers
		WHERE idempotency_key = $1
	`
	row := tx.QueryRowContext(ctx, query, idempotencyKey)
	transfer, err := scanTransfer(row)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return transfer, nil
}

func (r *Repository) CreateTransferTx(ctx context.Context, tx *sql.Tx, t *Transfer) (*Transfer, error) {
	query := `
		INSERT INTO transfers (user_id, source_wallet_id, target_wallet_id, amount, currency, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRowContext(ctx, query, t.UserID, t.SourceWalletID, t.TargetWalletID, t.Amount.String(), t.Currency, t.Status, t.IdempotencyKey).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}
	return t, nil
}

func (r *Repository) CompleteTransferTx(ctx context.Context, tx *sql.Tx, transferID, debitEntryID, creditEntryID string) error {
	query := `
		UPDATE transfers
		SET status = $1, ledger_debit_entry_id = $2, ledger_credit_entry_id = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`
	_, err := tx.ExecContext(ctx, query, TransferStatusCompleted, debitEntryID, creditEntryID, transferID)
	return err
}

// FailTransferTx records a transfer as failed without ever touching a
// wallet balance or writing a ledger entry (spec §3: "for status=failed,
// neither exists").
func (r *Repository) FailTransferTx(ctx context.Context, tx *sql.Tx, transferID, reason string) error {
	query := `
		UPDATE transfers
		SET status = $1, failure_reason = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	_, err := tx.ExecContext(ctx, query, TransferStatusFailed, reason, transferID)
	return err
}

// SumLedgerEntriesByWallet backs the reconciliation endpoint: re-derive the
// balance independently of the wallets.balance column (spec §4.2 "reconcile").
func (r *Repository) SumLedgerEntriesByWallet(ctx context.Context, walletID string) (credits, debits money.Money, count int, err error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0),
			COUNT(*)
		FROM ledger_entries
		WHERE wallet_id = $1
	`
	var creditStr, debitStr string
	if err = r.db.QueryRowContext(ctx, query, walletID).Scan(&creditStr, &debitStr, &count); err != nil {
		return money.Money{}, money.Money{}, 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	if credits, err = money.Parse(creditStr); err != nil {
		return money.Money{}, money.Money{}, 0, fmt.Errorf("invalid summed credits: %w", err)
	}
	if debits, err = money.Parse(debitStr); err != nil {
		return money.Money{}, money.Money{}, 0, fmt.Errorf("invalid summed debits: %w", err)
	}
	return credits, debits, count, nil
}

func scanTransfer(row *sql.Row) (*Transfer, error) {
	t := &Transfer{}
	var amount string
	err := row.Scan(&t.ID, &t.UserID, &t.SourceWalletID, &t.TargetWalletID, &amount, &t.Currency, &t.Status, &t.IdempotencyKey,
		&t.FailureReason, &t.ExternalReference, &t.LedgerDebitEntryID, &t.LedgerCreditEntryID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierr.NotFound("transfer not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}
	parsed, err := money.Parse(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount: %w", err)
	}
	t.Amount = parsed
	return t, nil
}
