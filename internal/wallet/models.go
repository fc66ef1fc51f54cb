package wallet

import (
	"encoding/json"
	"time"

	"github.com/mercuriabank/backend/internal/money"
)

type Wallet struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	Balance     money.Money `json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	WalletStatusActive = "active"
	WalletStatusFrozen = "frozen"
)

type EntryType string

const (
	EntryTypeCredit EntryType = "credit"
	EntryTypeDebit  EntryType = "debit"
)

// LedgerEntry is the append-only record of a single balance movement; the
// unique (wallet_id, idempotency_key) constraint is what makes credit/debit
// calls safe to retry. The wire field is "details" per spec §9's ambiguity
// resolution (the source's "metadata" name collided with a reserved ORM
// attribute); "metadata" is still accepted as an input alias.
type LedgerEntry struct {
	ID             string                 `json:"id"`
	WalletID       string                 `json:"wallet_id"`
	Type           EntryType              `json:"type"`
	Amount         money.Money            `json:"amount"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "active"
	HoldStatusCaptured HoldStatus = "captured"
	HoldStatusReleased HoldStatus = "released"
)

// Hold implements the two-phase reservation spec §4.2 describes: create
// withdraws funds immediately via a debit ledger entry, capture leaves them
// withdrawn, release credits them back.
type Hold struct {
	ID             string                 `json:"id"`
	WalletID       string                 `json:"wallet_id"`
	Amount         money.Money            `json:"amount"`
	Status         HoldStatus             `json:"status"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Reference      string                 `json:"reference,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	LedgerEntryID  string                 `json:"ledger_entry_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusReversed  TransferStatus = "reversed"
)

// Transfer records a single debit+credit pair across two wallets. Its
// idempotency key is globally unique, unlike ledger-entry keys which are
// only unique per wallet.
type Transfer struct {
	ID                  string         `json:"id"`
	UserID              string         `json:"user_id"`
	SourceWalletID      string         `json:"source_wallet_id"`
	TargetWalletID      string         `json:"target_wallet_id"`
	Amount              money.Money    `json:"amount"`
	Currency            string         `json:"currency"`
	Status              TransferStatus `json:"status"`
	IdempotencyKey      string         `json:"idempotency_key"`
	FailureReason       string         `json:"failure_reason,omitempty"`
	ExternalReference   string         `json:"external_reference,omitempty"`
	LedgerDebitEntryID  string         `json:"ledger_debit_entry_id,omitempty"`
	LedgerCreditEntryID string         `json:"ledger_credit_entry_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type CreateWalletRequest struct {
	OwnerUserID     string `json:"owner_user_id"`
	Currency        string `json:"currency"`
	AllowAdditional bool   `json:"allow_additional,omitempty"`
}

// MoneyMovementRequest backs credit/debit. Details accepts either wire key
// per spec §9; UnmarshalJSON folds "metadata" into Details when "details" is
// absent.
type MoneyMovementRequest struct {
	Amount         string                 `json:"amount"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Details        map[string]interface{} `json:"-"`
}

func (r *MoneyMovementRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount         string                 `json:"amount"`
		IdempotencyKey string                 `json:"idempotency_key"`
		Details        map[string]interface{} `json:"details,omitempty"`
		Metadata       map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Amount = raw.Amount
	r.IdempotencyKey = raw.IdempotencyKey
	if raw.Details != nil {
		r.Details = raw.Details
	} else {
		r.Details = raw.Metadata
	}
	return nil
}

type CreateHoldRequest struct {
	Amount         string                 `json:"amount"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Reference      string                 `json:"reference,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

type HoldActionRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TransferRequest is the body of POST /wallets/{id}/transfers; the source
// wallet id comes from the path, not the body.
type TransferRequest struct {
	SourceWalletID string `json:"-"`
	TargetWalletID string `json:"target_wallet_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
	Description    string `json:"description,omitempty"`
}

type WalletResponse struct {
	Wallet *Wallet `json:"wallet"`
}

type BalanceResponse struct {
	ID       string      `json:"id"`
	Currency string      `json:"currency"`
	Balance  money.Money `json:"balance"`
}

type LedgerEntriesResponse struct {
	WalletID   string        `json:"wallet_id"`
	Entries    []LedgerEntry `json:"entries"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type ReconciliationStatus string

const (
	ReconciliationBalanced      ReconciliationStatus = "balanced"
	ReconciliationDriftDetected ReconciliationStatus = "drift_detected"
)

// ReconciliationResponse lets an operator re-derive a wallet's balance from
// its ledger independently of the stored column (spec §4.2 "reconcile").
type ReconciliationResponse struct {
	WalletID       string               `json:"wallet_id"`
	StoredBalance  money.Money          `json:"stored_balance"`
	LedgerBalance  money.Money          `json:"ledger_balance"`
	Delta          money.Money          `json:"delta"`
	EntryCount     int                  `json:"entry_count"`
	Status         ReconciliationStatus `json:"status"`
}

type HoldResponse struct {
	Hold *Hold `json:"hold"`
}

// TransferResponse matches spec §6's POST .../transfers 201 body: the
// transfer row plus both wallets' post-transfer snapshots.
type TransferResponse struct {
	Transfer     *Transfer `json:"transfer"`
	SourceWallet *Wallet   `json:"source_wallet"`
	TargetWallet *Wallet   `json:"target_wallet"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// Kafka event payloads, published through the transactional outbox.
type WalletCreatedEvent struct {
	WalletID    string    `json:"wallet_id"`
	OwnerUserID string    `json:"owner_user_id"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

type BalanceUpdatedEvent struct {
	WalletID      string    `json:"wallet_id"`
	EntryType     EntryType `json:"entry_type"`
	Amount        string    `json:"amount"`
	BalanceBefore string    `json:"balance_before"`
	BalanceAfter  string    `json:"balance_after"`
	Timestamp     time.Time `json:"timestamp"`
}

type HoldEvent struct {
	HoldID    string     `json:"hold_id"`
	WalletID  string     `json:"wallet_id"`
	Status    HoldStatus `json:"status"`
	Amount    string     `json:"amount"`
	Timestamp time.Time  `json:"timestamp"`
}

type TransferCompletedEvent struct {
	TransferID     string    `json:"transfer_id"`
	SourceWalletID string    `json:"source_wallet_id"`
	TargetWalletID string    `json:"target_wallet_id"`
	Amount         string    `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}
