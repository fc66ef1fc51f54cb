package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/middleware"
)

// ServiceInterface is the contract the handler depends on, letting tests
// substitute a fake without standing up a Postgres-backed Service.
type ServiceInterface interface {
	CreateWallet(ctx context.Context, req *CreateWalletRequest) (*Wallet, bool, error)
	GetWallet(ctx context.Context, walletID string) (*Wallet, error)
	GetBalance(ctx context.Context, walletID string) (*BalanceResponse, error)
	Reconcile(ctx context.Context, walletID string) (*ReconciliationResponse, error)
	Credit(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error)
	Debit(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error)
	CreateHold(ctx context.Context, walletID, ownerUserID string, req *CreateHoldRequest) (*Hold, error)
	CaptureHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error)
	ReleaseHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error)
	GetHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error)
	ListLedgerEntries(ctx context.Context, walletID, cursor string, limit int) (*LedgerEntriesResponse, error)
	Transfer(ctx context.Context, ownerUserID string, req *TransferRequest) (*TransferResponse, error)
}

type Handler struct {
	service ServiceInterface
	logger  *logger.Logger
}

func NewHandler(service ServiceInterface, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	subject := middleware.Subject(r.Context())
	if subject == "" {
		middleware.WriteError(w, r, apierr.Unauthenticated("missing subject"))
		return
	}

	var req CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}
	req.OwnerUserID = subject

	wallet, created, err := h.service.CreateWallet(r.Context(), &req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, WalletResponse{Wallet: wallet})
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")
	subject := middleware.Subject(r.Context())

	wallet, err := h.service.GetWallet(r.Context(), walletID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if wallet.OwnerUserID != subject {
		middleware.WriteError(w, r, apierr.NotFound("wallet not found"))
		return
	}

	h.respondJSON(w, http.StatusOK, WalletResponse{Wallet: wallet})
}

// GetWalletInternal serves service-to-service reads with no ownership
// check; it's reachable only from the internal mux (no public route).
func (h *Handler) GetWalletInternal(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")

	wallet, err := h.service.GetWallet(r.Context(), walletID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, WalletResponse{Wallet: wallet})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")
	subject := middleware.Subject(r.Context())

	wallet, err := h.service.GetWallet(r.Context(), walletID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if wallet.OwnerUserID != subject {
		middleware.WriteError(w, r, apierr.NotFound("wallet not found"))
		return
	}

	balance, err := h.service.GetBalance(r.Context(), walletID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, balance)
}

func (h *Handler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")
	subject := middleware.Subject(r.Context())

	wallet, err := h.service.GetWallet(r.Context(), walletID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if wallet.OwnerUserID != subject {
		middleware.WriteError(w, r, apierr.NotFound("wallet not found"))
		return
	}

	report, err := h.service.Reconcile(r.Context(), walletID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	h.moneyMovement(w, r, h.service.Credit)
}

func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	h.moneyMovement(w, r, h.service.Debit)
}

func (h *Handler) moneyMovement(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string, *MoneyMovementRequest) (*Wallet, error)) {
	walletID := r.PathValue("id")
	subject := middleware.Subject(r.Context())

	var req MoneyMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}

	wallet, err := op(r.Context(), walletID, subject, &req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, WalletResponse{Wallet: wallet})
}

func (h *Handler) CreateHold(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")
	subject := middleware.Subject(r.Context())

	var req CreateHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}

	hold, err := h.service.CreateHold(r.Context(), walletID, subject, &req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, HoldResponse{Hold: hold})
}

func (h *Handler) CaptureHold(w http.ResponseWriter, r *http.Request) {
	holdID := r.PathValue("holdId")
	subject := middleware.Subject(r.Context())

	hold, err := h.service.CaptureHold(r.Context(), holdID, subject)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, HoldResponse{Hold: hold})
}

func (h *Handler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	holdID := r.PathValue("holdId")
	subject := middleware.Subject(r.Context())

	hold, err := h.service.ReleaseHold(r.Context(), holdID, subject)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, HoldResponse{Hold: hold})
}

func (h *Handler) GetHold(w http.ResponseWriter, r *http.Request) {
	holdID := r.PathValue("holdId")
	subject := middleware.Subject(r.Context())

	hold, err := h.service.GetHold(r.Context(), holdID, subject)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, HoldResponse{Hold: hold})
}

func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	walletID := r.PathValue("id")
	subject := middleware.Subject(r.Context())

	wallet, err := h.service.GetWallet(r.Context(), walletID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if wallet.OwnerUserID != subject {
		middleware.WriteError(w, r, apierr.NotFound("wallet not found"))
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := parsePositiveInt(limitStr); err == nil {
			limit = l
		}
	}

	entries, err := h.service.ListLedgerEntries(r.Context(), walletID, cursor, limit)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	sourceWalletID := r.PathValue("id")
	subject := middleware.Subject(r.Context())

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, apierr.Validation("invalid request body"))
		return
	}
	req.SourceWalletID = sourceWalletID

	resp, err := h.service.Transfer(r.Context(), subject, &req)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 200 {
		return 0, apierr.Validation("invalid limit")
	}
	return n, nil
}
