// Package riskclient is the outbound HTTP client for the Risk Evaluator
// (spec §4.3), shared by the Wallet Ledger Core's optional debit check and
// the Payment Intent Orchestrator's confirm step. Grounded on the teacher's
// transaction.Service HTTP-client idiom (internal/transaction/service.go),
// stripped of mTLS per SPEC_FULL.md's explicit drop of the service-mesh
// trust boundary.
package riskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/config"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionDecline Decision = "decline"
)

// EvaluationRequest is the wire body of POST /evaluations.
type EvaluationRequest struct {
	EventType string                 `json:"event_type"`
	SubjectID string                 `json:"subject_id"`
	UserID    string                 `json:"user_id"`
	Amount    string                 `json:"amount"`
	Currency  string                 `json:"currency"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type EvaluationResponse struct {
	ID              string    `json:"id"`
	Decision        Decision  `json:"decision"`
	RiskScore       float64   `json:"risk_score"`
	TriggeredRules  []string  `json:"triggered_rules"`
	CreatedAt       time.Time `json:"created_at"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg config.RiskClientConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Evaluate calls POST /evaluations. Per spec §4.3: a 5xx or transport
// failure surfaces as UpstreamUnavailable (502), a 4xx as Conflict
// ("EvaluationFailed"), and any decision outside the known set as
// UpstreamUnavailable.
func (c *Client) Evaluate(ctx context.Context, req EvaluationRequest, idempotencyKey string) (*EvaluationResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamUnavailable, "risk evaluator unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apierr.Wrap(apierr.KindUpstreamUnavailable, "risk evaluator returned server error", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(resp.Body)
		return nil, apierr.Conflict(fmt.Sprintf("risk evaluation failed: %s", string(detail)))
	}

	var out EvaluationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode risk evaluation response: %w", err)
	}

	switch out.Decision {
	case DecisionApprove, DecisionReview, DecisionDecline:
	default:
		return nil, apierr.Wrap(apierr.KindUpstreamUnavailable, "risk evaluator returned an unknown decision", fmt.Errorf("decision %q", out.Decision))
	}

	return &out, nil
}
