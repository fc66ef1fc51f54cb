package payments

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/middleware"
)

// ServiceInterface is the contract the handler depends on.
type ServiceInterface interface {
	Create(ctx context.Context, userID string, req *CreateIntentRequest) (*PaymentIntent, error)
	Get(ctx context.Context, id, userID string) (*PaymentIntent, error)
	Confirm(ctx context.Context, id, userID, authHeader string, riskCtx RiskContext) (*PaymentIntent, error)
	Cancel(ctx context.Context, id, userID, authHeader string) (*PaymentIntent, error)
}

type Handler struct {
	service ServiceInterface
	logger  *logger.Logger
}

func NewHandler(service ServiceInterface, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	subject := middleware.Subject(r.Context())
	if subject == "" {
		middleware.WriteError(w, r, apierr.Unauthenticated("missing subject"))
		return
	}

	var req CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}
	if err := ValidateCreateIntentRequest(&req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	intent, err := h.service.Create(r.Context(), subject, &req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, IntentResponse{Intent: intent})
}

func (h *Handler) GetIntent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	subject := middleware.Subject(r.Context())

	intent, err := h.service.Get(r.Context(), id, subject)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, IntentResponse{Intent: intent})
}

// ConfirmIntent forwards the caller's bearer token to the Wallet Ledger
// Core (so hold operations enforce the same ownership check a direct call
// would) and folds the risk-relevant headers payment_intents.py reads into
// a RiskContext.
func (h *Handler) ConfirmIntent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	subject := middleware.Subject(r.Context())
	authHeader := middleware.AuthorizationFromContext(r.Context())

	riskCtx := RiskContext{
		ClientIP:    clientIP(r),
		IPCountry:   r.Header.Get("X-Risk-Ip-Country"),
		UserCountry: r.Header.Get("X-User-Country"),
		EmailDomain: r.Header.Get("X-User-Email-Domain"),
		UserAgent:   r.Header.Get("User-Agent"),
	}

	intent, err := h.service.Confirm(r.Context(), id, subject, authHeader, riskCtx)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, IntentResponse{Intent: intent})
}

func (h *Handler) CancelIntent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	subject := middleware.Subject(r.Context())
	authHeader := middleware.AuthorizationFromContext(r.Context())

	intent, err := h.service.Cancel(r.Context(), id, subject, authHeader)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, IntentResponse{Intent: intent})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
