package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/middleware"
	"github.com/mercuriabank/backend/internal/money"
)

// MockService is a hand-rolled ServiceInterface stand-in: each method
// delegates to an optional func field so each test only wires up what it
// exercises.
type MockService struct {
	CreateWalletFunc      func(ctx context.Context, req *CreateWalletRequest) (*Wallet, bool, error)
	GetWalletFunc         func(ctx context.Context, walletID string) (*Wallet, error)
	GetBalanceFunc        func(ctx context.Context, walletID string) (*BalanceResponse, error)
	ReconcileFunc         func(ctx context.Context, walletID string) (*ReconciliationResponse, error)
	CreditFunc            func(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error)
	DebitFunc             func(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error)
	CreateHoldFunc        func(ctx context.Context, walletID, ownerUserID string, req *CreateHoldRequest) (*Hold, error)
	CaptureHoldFunc       func(ctx context.Context, holdID, ownerUserID string) (*Hold, error)
	ReleaseHoldFunc       func(ctx context.Context, holdID, ownerUserID string) (*Hold, error)
	GetHoldFunc           func(ctx context.Context, holdID, ownerUserID string) (*Hold, error)
	ListLedgerEntriesFunc func(ctx context.Context, walletID, cursor string, limit int) (*LedgerEntriesResponse, error)
	TransferFunc          func(ctx context.Context, ownerUserID string, req *TransferRequest) (*TransferResponse, error)
}

func (m *MockService) CreateWallet(ctx context.Context, req *CreateWalletRequest) (*Wallet, bool, error) {
	if m.CreateWalletFunc != nil {
		return m.CreateWalletFunc(ctx, req)
	}
	return nil, false, fmt.Errorf("CreateWalletFunc not set")
}

func (m *MockService) GetWallet(ctx context.Context, walletID string) (*Wallet, error) {
	if m.GetWalletFunc != nil {
		return m.GetWalletFunc(ctx, walletID)
	}
	return nil, fmt.Errorf("GetWalletFunc not set")
}

func (m *MockService) GetBalance(ctx context.Context, walletID string) (*BalanceResponse, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, walletID)
	}
	return nil, fmt.Errorf("GetBalanceFunc not set")
}

func (m *MockService) Reconcile(ctx context.Context, walletID string) (*ReconciliationResponse, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, walletID)
	}
	return nil, fmt.Errorf("ReconcileFunc not set")
}

func (m *MockService) Credit(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error) {
	if m.CreditFunc != nil {
		return m.CreditFunc(ctx, walletID, ownerUserID, req)
	}
	return nil, fmt.Errorf("CreditFunc not set")
}

func (m *MockService) Debit(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error) {
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, walletID, ownerUserID, req)
	}
	return nil, fmt.Errorf("DebitFunc not set")
}

func (m *MockService) CreateHold(ctx context.Context, walletID, ownerUserID string, req *CreateHoldRequest) (*Hold, error) {
	if m.CreateHoldFunc != nil {
		return m.CreateHoldFunc(ctx, walletID, ownerUserID, req)
	}
	return nil, fmt.Errorf("CreateHoldFunc not set")
}

func (m *MockService) CaptureHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error) {
	if m.CaptureHoldFunc != nil {
		return m.CaptureHoldFunc(ctx, holdID, ownerUserID)
	}
	return nil, fmt.Errorf("CaptureHoldFunc not set")
}

func (m *MockService) ReleaseHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error) {
	if m.ReleaseHoldFunc != nil {
		return m.ReleaseHoldFunc(ctx, holdID, ownerUserID)
	}
	return nil, fmt.Errorf("ReleaseHoldFunc not set")
}

func (m *MockService) GetHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error) {
	if m.GetHoldFunc != nil {
		return m.GetHoldFunc(ctx, holdID, ownerUserID)
	}
	return nil, fmt.Errorf("GetHoldFunc not set")
}

func (m *MockService) ListLedgerEntries(ctx context.Context, walletID, cursor string, limit int) (*LedgerEntriesResponse, error) {
	if m.ListLedgerEntriesFunc != nil {
		return m.ListLedgerEntriesFunc(ctx, walletID, cursor, limit)
	}
	return nil, fmt.Errorf("ListLedgerEntriesFunc not set")
}

func (m *MockService) Transfer(ctx context.Context, ownerUserID string, req *TransferRequest) (*TransferResponse, error) {
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, ownerUserID, req)
	}
	return nil, fmt.Errorf("TransferFunc not set")
}

var _ ServiceInterface = (*MockService)(nil)

func TestHandler_CreateWallet(t *testing.T) {
	log := logger.New("test")

	mock := &MockService{
		CreateWalletFunc: func(ctx context.Context, req *CreateWalletRequest) (*Wallet, bool, error) {
			if req.OwnerUserID != "user-123" {
				t.Errorf("expected owner to be set from subject, got %s", req.OwnerUserID)
			}
			return &Wallet{ID: "wallet-1", OwnerUserID: req.OwnerUserID, Currency: req.Currency, Balance: money.Zero}, true, nil
		},
	}
	h := NewHandler(mock, log)

	body, _ := json.Marshal(CreateWalletRequest{Currency: "USD"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets", bytes.NewReader(body))
	req = req.WithContext(middleware.WithSubject(req.Context(), "user-123"))
	rec := httptest.NewRecorder()

	h.CreateWallet(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp WalletResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Wallet.ID != "wallet-1" {
		t.Errorf("expected wallet-1, got %s", resp.Wallet.ID)
	}
}

func TestHandler_GetWallet_ForbidsOtherOwners(t *testing.T) {
	log := logger.New("test")
	amount, _ := money.Parse("10.00")

	mock := &MockService{
		GetWalletFunc: func(ctx context.Context, walletID string) (*Wallet, error) {
			return &Wallet{ID: walletID, OwnerUserID: "someone-else", Balance: amount}, nil
		},
	}
	h := NewHandler(mock, log)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/wallet-1", nil)
	req.SetPathValue("id", "wallet-1")
	req = req.WithContext(middleware.WithSubject(req.Context(), "user-123"))
	rec := httptest.NewRecorder()

	h.GetWallet(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Credit(t *testing.T) {
	log := logger.New("test")
	balance, _ := money.Parse("50.00")

	mock := &MockService{
		CreditFunc: func(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error) {
			if req.Amount != "50.00" || req.IdempotencyKey != "key-1" {
				t.Errorf("unexpected request: %+v", req)
			}
			return &Wallet{ID: walletID, Balance: balance}, nil
		},
	}
	h := NewHandler(mock, log)

	body, _ := json.Marshal(MoneyMovementRequest{Amount: "50.00", IdempotencyKey: "key-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/wallet-1/credit", bytes.NewReader(body))
	req.SetPathValue("id", "wallet-1")
	rec := httptest.NewRecorder()

	h.Credit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_CreateHold_ReturnsConflictOnInsufficientBalance(t *testing.T) {
	log := logger.New("test")

	mock := &MockService{
		CreateHoldFunc: func(ctx context.Context, walletID, ownerUserID string, req *CreateHoldRequest) (*Hold, error) {
			return nil, apierr.Conflict("insufficient balance")
		},
	}
	h := NewHandler(mock, log)

	body, _ := json.Marshal(CreateHoldRequest{Amount: "50.00", IdempotencyKey: "hold-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/wallet-1/holds", bytes.NewReader(body))
	req.SetPathValue("id", "wallet-1")
	rec := httptest.NewRecorder()

	h.CreateHold(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected insufficient balance to map to 409, got %d", rec.Code)
	}
}

func TestHandler_Transfer(t *testing.T) {
	log := logger.New("test")

	mock := &MockService{
		TransferFunc: func(ctx context.Context, ownerUserID string, req *TransferRequest) (*TransferResponse, error) {
			return &TransferResponse{Transfer: &Transfer{ID: "transfer-1", Status: TransferStatusCompleted}}, nil
		},
	}
	h := NewHandler(mock, log)

	body, _ := json.Marshal(TransferRequest{SourceWalletID: "a", TargetWalletID: "b", Amount: "10.00", IdempotencyKey: "t-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/transfer", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Transfer(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp TransferResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Transfer == nil || resp.Transfer.Status != TransferStatusCompleted {
		t.Errorf("expected completed transfer, got %+v", resp.Transfer)
	}
}
