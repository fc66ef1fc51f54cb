package identity

import (
	"net/http"

	"github.com/mercuriabank/backend/internal/common/middleware"
	"github.com/mercuriabank/backend/internal/tokenvalidator"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux, validator *tokenvalidator.Validator) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/auth/jwks", h.JWKS)

	auth := middleware.Auth(validator, "access")
	mux.Handle("GET /api/v1/auth/me", auth(http.HandlerFunc(h.Me)))
}
