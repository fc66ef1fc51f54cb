package risk

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/middleware"
)

type ServiceInterface interface {
	Evaluate(ctx context.Context, req *EvaluationRequest, idempotencyKey string) (*EvaluationResponse, error)
	GetEvaluation(ctx context.Context, id string) (*EvaluationResponse, error)
	ListRules(ctx context.Context) ([]Rule, error)
}

type Handler struct {
	service ServiceInterface
	logger  *logger.Logger
}

func NewHandler(service ServiceInterface, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Evaluate handles POST /evaluations, the service-to-service contract
// internal/riskclient.Client calls.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}
	if err := ValidateEvaluationRequest(&req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	resp, err := h.service.Evaluate(r.Context(), &req, idempotencyKey)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp, err := h.service.GetEvaluation(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if resp == nil {
		middleware.WriteError(w, r, apierr.NotFound("evaluation not found"))
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, RuleResponse{Rules: rules})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
