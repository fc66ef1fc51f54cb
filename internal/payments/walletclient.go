package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/config"
)

// WalletClient drives the Wallet Ledger Core's two-phase hold API on the
// orchestrator's behalf, grounded on payment_intents.py's
// _post_wallet_with_retry/_ensure_hold/_capture_hold/_release_hold: linear
// backoff (backoff_seconds * attempt) across a fixed retry budget, with the
// caller's bearer token forwarded so Wallet enforces the same ownership
// check it would on a direct call.
type WalletClient struct {
	baseURL             string
	httpClient          *http.Client
	retryAttempts       int
	retryBackoffSeconds float64
}

func NewWalletClient(cfg config.WalletClientConfig) *WalletClient {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &WalletClient{
		baseURL:             cfg.BaseURL,
		httpClient:          &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		retryAttempts:       attempts,
		retryBackoffSeconds: cfg.RetryBackoffSeconds,
	}
}

type holdEnvelope struct {
	Hold struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"hold"`
}

// EnsureHold creates the wallet hold backing intent confirmation. It always
// POSTs under idempotency key pi-hold-{intentID}, so a replay returns the
// hold Wallet already created; skipping the call when intent.HoldID is
// already set is done by Service.ensureHold, not here.
func (c *WalletClient) EnsureHold(ctx context.Context, walletID, intentID, authHeader, amount string) (string, error) {
	payload := map[string]interface{}{
		"amount":          amount,
		"idempotency_key": "pi-hold-" + intentID,
		"reference":       "pi-" + intentID,
		"details":         map[string]interface{}{"payment_intent_id": intentID, "type": "payment_hold"},
	}
	url := fmt.Sprintf("%s/api/v1/wallets/%s/holds", c.baseURL, walletID)

	var out holdEnvelope
	if err := c.postWithRetry(ctx, url, payload, authHeader, "hold_create", &out); err != nil {
		return "", err
	}
	if out.Hold.ID == "" {
		return "", apierr.UpstreamUnavailable("wallet hold response missing id")
	}
	return out.Hold.ID, nil
}

func (c *WalletClient) CaptureHold(ctx context.Context, walletID, holdID, intentID, authHeader string) error {
	payload := map[string]interface{}{"idempotency_key": "pi-hold-capture-" + intentID}
	url := fmt.Sprintf("%s/api/v1/wallets/%s/holds/%s/capture", c.baseURL, walletID, holdID)

	var out holdEnvelope
	if err := c.postWithRetry(ctx, url, payload, authHeader, "hold_capture", &out); err != nil {
		return err
	}
	if out.Hold.Status != "captured" && out.Hold.Status != "released" {
		return apierr.UpstreamUnavailable(fmt.Sprintf("unexpected wallet hold state (%s)", out.Hold.Status))
	}
	return nil
}

func (c *WalletClient) ReleaseHold(ctx context.Context, walletID, holdID, intentID, authHeader string) error {
	payload := map[string]interface{}{"idempotency_key": "pi-hold-release-" + intentID}
	url := fmt.Sprintf("%s/api/v1/wallets/%s/holds/%s/release", c.baseURL, walletID, holdID)

	var out holdEnvelope
	if err := c.postWithRetry(ctx, url, payload, authHeader, "hold_release", &out); err != nil {
		return err
	}
	if out.Hold.Status != "released" {
		return apierr.UpstreamUnavailable(fmt.Sprintf("unexpected wallet hold release state (%s)", out.Hold.Status))
	}
	return nil
}

// postWithRetry retries up to retryAttempts times with linear backoff,
// decoding the response body into out on the first response under 400.
// Transport errors and 5xx responses are retried; a 4xx response returns a
// Conflict at once without retrying, and a canceled or expired context
// surfaces as UpstreamTimeout. Exhaustion surfaces as a Conflict naming the
// operation and the last failure reason, exactly matching the message shape
// the orchestrator's HTTP clients expect.
func (c *WalletClient) postWithRetry(ctx context.Context, url string, payload interface{}, authHeader, operation string, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet request: %w", err)
	}

	lastReason := "unknown"
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build wallet request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return apierr.Wrap(apierr.KindUpstreamTimeout, fmt.Sprintf("wallet %s failed (timeout)", operation), err)
			}
			lastReason = "network"
		} else {
			if resp.StatusCode < 400 {
				decodeErr := json.NewDecoder(resp.Body).Decode(out)
				resp.Body.Close()
				if decodeErr != nil {
					return fmt.Errorf("failed to decode wallet response: %w", decodeErr)
				}
				return nil
			}
			if resp.StatusCode < 500 {
				resp.Body.Close()
				return apierr.Conflict(fmt.Sprintf("Wallet %s failed (status_%d)", operation, resp.StatusCode))
			}
			lastReason = fmt.Sprintf("status_%d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt < c.retryAttempts {
			wait := time.Duration(c.retryBackoffSeconds * float64(attempt) * float64(time.Second))
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return apierr.Wrap(apierr.KindUpstreamTimeout, fmt.Sprintf("wallet %s failed (timeout)", operation), ctx.Err())
			}
		}
	}

	return apierr.Conflict(fmt.Sprintf("Wallet %s failed (%s)", operation, lastReason))
}
