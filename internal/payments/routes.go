package payments

import (
	"net/http"

	"github.com/mercuriabank/backend/internal/common/middleware"
	"github.com/mercuriabank/backend/internal/tokenvalidator"
)

// RegisterRoutes exposes the public, bearer-token-protected payment intent
// API (spec §6's payments HTTP surface).
func (h *Handler) RegisterRoutes(mux *http.ServeMux, validator *tokenvalidator.Validator) {
	auth := middleware.Auth(validator, "access")

	mux.Handle("POST /api/v1/payments/intents", auth(http.HandlerFunc(h.CreateIntent)))
	mux.Handle("GET /api/v1/payments/intents/{id}", auth(http.HandlerFunc(h.GetIntent)))
	mux.Handle("POST /api/v1/payments/intents/{id}/confirm", auth(http.HandlerFunc(h.ConfirmIntent)))
	mux.Handle("POST /api/v1/payments/intents/{id}/cancel", auth(http.HandlerFunc(h.CancelIntent)))
}
