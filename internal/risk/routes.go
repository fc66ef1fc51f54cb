package risk

import "net/http"

// RegisterRoutes exposes the Risk Evaluator's service-to-service surface.
// Unlike Wallet and Identity, Risk has no end-user-facing routes and no
// bearer-token boundary: callers are other services on the private network,
// matching original_source's FastAPI app (no auth dependency on these
// routes at all).
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /evaluations", h.Evaluate)
	mux.HandleFunc("GET /evaluations/{id}", h.GetEvaluation)
	mux.HandleFunc("GET /rules", h.ListRules)
}
