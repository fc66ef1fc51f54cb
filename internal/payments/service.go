package payments

import (
	"context"
	"fmt"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/riskclient"
	"github.com/mercuriabank/backend/pkg/outbox"
)

// RepositoryInterface is the persistence contract Service depends on.
type RepositoryInterface interface {
	Create(ctx context.Context, intent *PaymentIntent) (*PaymentIntent, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*PaymentIntent, error)
	SetHoldID(ctx context.Context, id, holdID string) error
	SetStatus(ctx context.Context, id string, status Status) error
	SetStatusWithEvent(ctx context.Context, id string, status Status, event *outbox.OutboxEvent) error
}

// WalletClientInterface lets tests substitute a fake Wallet without
// standing up the Wallet Ledger Core's HTTP surface.
type WalletClientInterface interface {
	EnsureHold(ctx context.Context, walletID, intentID, authHeader, amount string) (string, error)
	CaptureHold(ctx context.Context, walletID, holdID, intentID, authHeader string) error
	ReleaseHold(ctx context.Context, walletID, holdID, intentID, authHeader string) error
}

// RiskClientInterface mirrors riskclient.Client's Evaluate signature so
// tests can substitute a deterministic risk decision.
type RiskClientInterface interface {
	Evaluate(ctx context.Context, req riskclient.EvaluationRequest, idempotencyKey string) (*riskclient.EvaluationResponse, error)
}

// RiskContext carries the request-derived signals _evaluate_risk folds
// into the risk payload's metadata; the handler builds this from headers
// and connection info, since the service layer has no HTTP concept.
type RiskContext struct {
	ClientIP    string
	IPCountry   string
	UserCountry string
	EmailDomain string
	UserAgent   string
}

func (rc RiskContext) metadata(walletID string) map[string]interface{} {
	meta := map[string]interface{}{"wallet_id": walletID}
	if rc.ClientIP != "" {
		meta["client_ip"] = rc.ClientIP
	}
	if rc.IPCountry != "" {
		meta["ip_country"] = rc.IPCountry
	}
	if rc.UserCountry != "" {
		meta["user_country"] = rc.UserCountry
	}
	if rc.EmailDomain != "" {
		meta["email_domain"] = rc.EmailDomain
	}
	if rc.UserAgent != "" {
		meta["user_agent"] = rc.UserAgent
	}
	return meta
}

type Service struct {
	repo   RepositoryInterface
	wallet WalletClientInterface
	risk   RiskClientInterface
	logger *logger.Logger
}

func NewService(repo RepositoryInterface, wallet WalletClientInterface, risk RiskClientInterface, log *logger.Logger) *Service {
	return &Service{repo: repo, wallet: wallet, risk: risk, logger: log}
}

func (s *Service) Create(ctx context.Context, userID string, req *CreateIntentRequest) (*PaymentIntent, error) {
	intent := &PaymentIntent{
		UserID:   userID,
		WalletID: req.WalletID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   StatusPending,
	}
	return s.repo.Create(ctx, intent)
}

func (s *Service) Get(ctx context.Context, id, userID string) (*PaymentIntent, error) {
	intent, err := s.repo.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, apierr.NotFound("payment intent not found")
	}
	return intent, nil
}

// Confirm implements payment_intents.py's confirm_intent: idempotent on a
// non-pending intent, a risk decline/review transitions to a soft or hard
// terminal state and returns an error instead of proceeding, and only an
// approve decision drives the wallet hold through ensure -> capture.
func (s *Service) Confirm(ctx context.Context, id, userID, authHeader string, riskCtx RiskContext) (*PaymentIntent, error) {
	intent, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if intent.Status != StatusPending {
		return intent, nil
	}

	decision, err := s.evaluateRisk(ctx, intent, riskCtx)
	if err != nil {
		return nil, err
	}

	switch decision {
	case riskclient.DecisionDecline:
		event := &outbox.OutboxEvent{EventType: "payments.intent.declined", Topic: "payments.intent.declined", Payload: intentPayload(intent, StatusDeclined)}
		if err := s.repo.SetStatusWithEvent(ctx, id, StatusDeclined, event); err != nil {
			return nil, err
		}
		return nil, apierr.Forbidden("payment declined by risk engine")
	case riskclient.DecisionReview:
		event := &outbox.OutboxEvent{EventType: "payments.intent.review", Topic: "payments.intent.review", Payload: intentPayload(intent, StatusReview)}
		if err := s.repo.SetStatusWithEvent(ctx, id, StatusReview, event); err != nil {
			return nil, err
		}
		return nil, apierr.Conflict("payment pending manual review")
	}

	holdID, err := s.ensureHold(ctx, intent, authHeader)
	if err != nil {
		return nil, err
	}

	if err := s.wallet.CaptureHold(ctx, intent.WalletID, holdID, intent.ID, authHeader); err != nil {
		return nil, err
	}

	event := &outbox.OutboxEvent{EventType: "payments.intent.confirmed", Topic: "payments.intent.confirmed", Payload: intentPayload(intent, StatusConfirmed)}
	if err := s.repo.SetStatusWithEvent(ctx, id, StatusConfirmed, event); err != nil {
		return nil, err
	}

	s.logger.Infof("payment intent %s confirmed", id)
	return s.Get(ctx, id, userID)
}

func (s *Service) evaluateRisk(ctx context.Context, intent *PaymentIntent, riskCtx RiskContext) (riskclient.Decision, error) {
	req := riskclient.EvaluationRequest{
		EventType: "payment_intent_confirm",
		SubjectID: intent.ID,
		UserID:    intent.UserID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Metadata:  riskCtx.metadata(intent.WalletID),
	}
	result, err := s.risk.Evaluate(ctx, req, "pi-risk-"+intent.ID)
	if err != nil {
		return "", err
	}
	return result.Decision, nil
}

// ensureHold skips creating a hold when intent.HoldID is already set, so a
// confirm retried after a crash between hold-create and capture doesn't
// double-reserve funds.
func (s *Service) ensureHold(ctx context.Context, intent *PaymentIntent, authHeader string) (string, error) {
	if intent.HoldID != "" {
		return intent.HoldID, nil
	}

	holdID, err := s.wallet.EnsureHold(ctx, intent.WalletID, intent.ID, authHeader, intent.Amount)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetHoldID(ctx, intent.ID, holdID); err != nil {
		return "", fmt.Errorf("failed to record hold id: %w", err)
	}
	return holdID, nil
}

// Cancel implements cancel_intent: idempotent once canceled, a 409 from any
// other terminal state, and a hold release only when a hold was actually
// created.
func (s *Service) Cancel(ctx context.Context, id, userID, authHeader string) (*PaymentIntent, error) {
	intent, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if intent.Status == StatusCanceled {
		return intent, nil
	}
	if intent.Status != StatusPending && intent.Status != StatusReview {
		return nil, apierr.Conflict("intent can no longer be canceled")
	}

	if intent.HoldID != "" {
		if err := s.wallet.ReleaseHold(ctx, intent.WalletID, intent.HoldID, intent.ID, authHeader); err != nil {
			return nil, err
		}
	}

	event := &outbox.OutboxEvent{EventType: "payments.intent.canceled", Topic: "payments.intent.canceled", Payload: intentPayload(intent, StatusCanceled)}
	if err := s.repo.SetStatusWithEvent(ctx, id, StatusCanceled, event); err != nil {
		return nil, err
	}

	return s.Get(ctx, id, userID)
}

// intentPayload builds the outbox event body describing the intent's new
// status, mirroring internal/wallet's toMap-style event payloads.
func intentPayload(intent *PaymentIntent, status Status) map[string]interface{} {
	return map[string]interface{}{
		"intent_id": intent.ID,
		"user_id":   intent.UserID,
		"wallet_id": intent.WalletID,
		"amount":    intent.Amount,
		"currency":  intent.Currency,
		"status":    string(status),
	}
}
