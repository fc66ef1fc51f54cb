package identity

import (
	"encoding/json"
	"net/http"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/middleware"
)

type Handler struct {
	service *Service
	keys    *KeyManager
	logger  *logger.Logger
}

func NewHandler(service *Service, keys *KeyManager, log *logger.Logger) *Handler {
	return &Handler{service: service, keys: keys, logger: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}

	tokens, err := h.service.Register(r.Context(), &req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, tokens)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}

	tokens, err := h.service.Login(r.Context(), &req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}

	tokens, err := h.service.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject := middleware.Subject(r.Context())
	if subject == "" {
		middleware.WriteError(w, r, apierr.Unauthenticated("missing subject"))
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), subject)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, UserResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt})
}

// JWKS publishes the process's signing key for every other service's
// tokenvalidator to fetch and cache.
func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	doc, err := h.keys.JWKS()
	if err != nil {
		middleware.WriteError(w, r, apierr.Wrap(apierr.KindInternal, "failed to build jwks", err))
		return
	}
	h.respondJSON(w, http.StatusOK, doc)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
