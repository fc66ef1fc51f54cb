package wallet

import (
	"net/http"

	"github.com/mercuriabank/backend/internal/common/middleware"
	"github.com/mercuriabank/backend/internal/tokenvalidator"
)

// RegisterInternalRoutes exposes service-to-service endpoints with no bearer
// auth: wallet reads for the Payment Intent Orchestrator. Hold lifecycle
// calls the orchestrator drives go through the public, bearer-protected
// surface below with the orchestrator forwarding the client's token
// (middleware.AuthorizationFromContext), matching the rest of the public API.
func (h *Handler) RegisterInternalRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /internal/v1/wallets/{id}", h.GetWalletInternal)
}

// RegisterRoutes exposes the public, bearer-token-protected wallet API
// (spec §6 "Wallet HTTP surface").
func (h *Handler) RegisterRoutes(mux *http.ServeMux, validator *tokenvalidator.Validator) {
	auth := middleware.Auth(validator, "access", "wallet_access")

	mux.Handle("POST /api/v1/wallets", auth(http.HandlerFunc(h.CreateWallet)))
	mux.Handle("GET /api/v1/wallets/{id}", auth(http.HandlerFunc(h.GetWallet)))
	mux.Handle("GET /api/v1/wallets/{id}/balance", auth(http.HandlerFunc(h.GetBalance)))
	mux.Handle("GET /api/v1/wallets/{id}/reconciliation", auth(http.HandlerFunc(h.Reconciliation)))
	mux.Handle("POST /api/v1/wallets/{id}/credit", auth(http.HandlerFunc(h.Credit)))
	mux.Handle("POST /api/v1/wallets/{id}/debit", auth(http.HandlerFunc(h.Debit)))
	mux.Handle("GET /api/v1/wallets/{id}/statements", auth(http.HandlerFunc(h.ListStatements)))
	mux.Handle("POST /api/v1/wallets/{id}/transfers", auth(http.HandlerFunc(h.Transfer)))
	mux.Handle("POST /api/v1/wallets/{id}/holds", auth(http.HandlerFunc(h.CreateHold)))
	mux.Handle("GET /api/v1/wallets/{id}/holds/{holdId}", auth(http.HandlerFunc(h.GetHold)))
	mux.Handle("POST /api/v1/wallets/{id}/holds/{holdId}/capture", auth(http.HandlerFunc(h.CaptureHold)))
	mux.Handle("POST /api/v1/wallets/{id}/holds/{holdId}/release", auth(http.HandlerFunc(h.ReleaseHold)))
}
