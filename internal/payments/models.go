// Package payments implements the Payment Intent Orchestrator (spec §4.4):
// a state machine coordinating a Risk Evaluator call and a two-phase Wallet
// hold (create, capture, release) behind idempotent confirm/cancel
// operations. Grounded on original_source's
// services/payments_service/app/routes/payment_intents.py and models/
// payment_intent.py, restructured into the teacher's repository/service/
// handler layering (internal/wallet is the closest sibling: another
// state-carrying, row-locked domain with outbox-published events).
package payments

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusReview    Status = "review"
	StatusCanceled  Status = "canceled"
)

// PaymentIntent is the orchestrator's own state, separate from anything the
// Wallet Ledger Core persists: HoldID is set once a hold has been created
// so confirm can be retried without creating a second hold.
type PaymentIntent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	WalletID  string    `json:"wallet_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    Status    `json:"status"`
	HoldID    string    `json:"hold_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateIntentRequest struct {
	WalletID string `json:"wallet_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// ConfirmIntentRequest is currently empty on the wire; the field is kept so
// a future confirmation detail (e.g. a 3DS challenge result) has somewhere
// to land without changing the route shape.
type ConfirmIntentRequest struct{}

type IntentResponse struct {
	Intent *PaymentIntent `json:"intent"`
}
