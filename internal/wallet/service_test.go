package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/mercuriabank/backend/internal/common/config"
	"github.com/mercuriabank/backend/internal/common/db"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/redis"
	"github.com/mercuriabank/backend/internal/money"
	"github.com/mercuriabank/backend/pkg/outbox"
)

func setupTestService(t *testing.T) (*Service, *Repository, *db.DB) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbCfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            "5432",
		User:            "postgres",
		Password:        "postgres",
		DBName:          "mercuria_wallet_test",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}

	log := logger.New("test")
	database, err := db.Connect(dbCfg, log)
	if err != nil {
		t.Skipf("cannot connect to database: %v", err)
		return nil, nil, nil
	}

	schema := `
	CREATE EXTENSION IF NOT EXISTS pgcrypto;

	CREATE TABLE IF NOT EXISTS wallets (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_user_id VARCHAR(255) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		balance NUMERIC(18, 2) NOT NULL DEFAULT 0.00,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_wallet_owner_currency UNIQUE (owner_user_id, currency)
	);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		wallet_id UUID NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
		type VARCHAR(10) NOT NULL,
		amount NUMERIC(18, 2) NOT NULL,
		idempotency_key VARCHAR(255),
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_ledger_wallet_idem UNIQUE (wallet_id, idempotency_key)
	);

	CREATE TABLE IF NOT EXISTS holds (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		wallet_id UUID NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
		amount NUMERIC(18, 2) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		idempotency_key VARCHAR(255) NOT NULL,
		reference VARCHAR(255),
		details JSONB,
		ledger_entry_id UUID REFERENCES ledger_entries(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_wallet_hold_idem UNIQUE (wallet_id, idempotency_key)
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id VARCHAR(255) NOT NULL,
		source_wallet_id UUID NOT NULL REFERENCES wallets(id),
		target_wallet_id UUID NOT NULL REFERENCES wallets(id),
		amount NUMERIC(18, 2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		idempotency_key VARCHAR(255) NOT NULL,
		failure_reason TEXT,
		external_reference VARCHAR(255),
		ledger_debit_entry_id UUID REFERENCES ledger_entries(id),
		ledger_credit_entry_id UUID REFERENCES ledger_entries(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_wallet_transfer_idem UNIQUE (idempotency_key)
	);

	CREATE TABLE IF NOT EXISTS outbox_events (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		aggregate_id VARCHAR(255) NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		topic VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ
	);

	TRUNCATE wallets, ledger_entries, holds, transfers, outbox_events CASCADE;
	`

	if _, err := database.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	redisCfg := config.RedisConfig{Addr: "localhost:6379", DB: 0}
	redisClient, err := redis.Connect(redisCfg, log)
	if err != nil {
		t.Skipf("cannot connect to redis: %v", err)
		return nil, nil, nil
	}

	repo := NewRepository(database, log)
	outboxRepo := outbox.NewRepository(database.DB, log)
	service := NewService(repo, outboxRepo, redisClient, database, log)

	return service, repo, database
}

func cleanupTestService(database *db.DB) {
	if database == nil {
		return
	}
	_, _ = database.Exec("TRUNCATE wallets, ledger_entries, holds, transfers, outbox_events CASCADE")
	database.Close()
}

func mustCreateWallet(t *testing.T, service *Service, owner, currency string) *Wallet {
	t.Helper()
	wallet, _, err := service.CreateWallet(context.Background(), &CreateWalletRequest{OwnerUserID: owner, Currency: currency})
	if err != nil {
		t.Fatalf("unexpected error creating wallet: %v", err)
	}
	return wallet
}

func TestService_CreateWallet_IsIdempotentUnlessAllowAdditional(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	req := &CreateWalletRequest{OwnerUserID: "user-1", Currency: "USD"}

	first, created, err := service.CreateWallet(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected first create to report created=true")
	}

	second, created, err := service.CreateWallet(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error on repeat create: %v", err)
	}
	if created {
		t.Error("expected repeat create to report created=false")
	}
	if first.ID != second.ID {
		t.Errorf("expected same wallet on repeat create, got %s and %s", first.ID, second.ID)
	}

	third, created, err := service.CreateWallet(ctx, &CreateWalletRequest{OwnerUserID: "user-1", Currency: "USD", AllowAdditional: true})
	if err != nil {
		t.Fatalf("unexpected error on allow_additional create: %v", err)
	}
	if !created || third.ID == first.ID {
		t.Error("expected allow_additional to create a second distinct wallet")
	}
}

func TestService_CreditThenDebit(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	wallet := mustCreateWallet(t, service, "user-2", "USD")

	credited, err := service.Credit(ctx, wallet.ID, wallet.OwnerUserID, &MoneyMovementRequest{Amount: "100.00", IdempotencyKey: "credit-1"})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	want, _ := money.Parse("100.00")
	if credited.Balance.Cmp(want) != 0 {
		t.Errorf("expected balance 100.00, got %s", credited.Balance)
	}

	debited, err := service.Debit(ctx, wallet.ID, wallet.OwnerUserID, &MoneyMovementRequest{Amount: "40.00", IdempotencyKey: "debit-1"})
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	want, _ = money.Parse("60.00")
	if debited.Balance.Cmp(want) != 0 {
		t.Errorf("expected balance 60.00, got %s", debited.Balance)
	}
}

func TestService_Credit_RepeatedIdempotencyKeyDoesNotDoubleApply(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	wallet := mustCreateWallet(t, service, "user-3", "USD")

	req := &MoneyMovementRequest{Amount: "25.00", IdempotencyKey: "dup-key"}
	if _, err := service.Credit(ctx, wallet.ID, wallet.OwnerUserID, req); err != nil {
		t.Fatalf("first credit failed: %v", err)
	}
	second, err := service.Credit(ctx, wallet.ID, wallet.OwnerUserID, req)
	if err != nil {
		t.Fatalf("repeat credit failed: %v", err)
	}

	want, _ := money.Parse("25.00")
	if second.Balance.Cmp(want) != 0 {
		t.Errorf("expected balance unchanged at 25.00 after repeat, got %s", second.Balance)
	}
}

func TestService_Credit_WrongOwnerIsNotFound(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	wallet := mustCreateWallet(t, service, "user-owner", "USD")

	_, err := service.Credit(ctx, wallet.ID, "someone-else", &MoneyMovementRequest{Amount: "10.00", IdempotencyKey: "k1"})
	if err == nil {
		t.Fatal("expected not-found error for mismatched owner")
	}
}

func TestService_Debit_InsufficientBalance(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	wallet := mustCreateWallet(t, service, "user-4", "USD")

	_, err := service.Debit(ctx, wallet.ID, wallet.OwnerUserID, &MoneyMovementRequest{Amount: "1.00", IdempotencyKey: "debit-fail"})
	if err == nil {
		t.Fatal("expected insufficient balance error")
	}
}

func TestService_HoldLifecycle_CreateThenCapture(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	wallet := mustCreateWallet(t, service, "user-5", "USD")
	if _, err := service.Credit(ctx, wallet.ID, wallet.OwnerUserID, &MoneyMovementRequest{Amount: "100.00", IdempotencyKey: "fund"}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	hold, err := service.CreateHold(ctx, wallet.ID, wallet.OwnerUserID, &CreateHoldRequest{Amount: "30.00", IdempotencyKey: "hold-1"})
	if err != nil {
		t.Fatalf("create hold failed: %v", err)
	}

	after, err := service.GetWallet(ctx, wallet.ID)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	want, _ := money.Parse("70.00")
	if after.Balance.Cmp(want) != 0 {
		t.Errorf("expected balance 70.00 after hold, got %s", after.Balance)
	}

	captured, err := service.CaptureHold(ctx, hold.ID, wallet.OwnerUserID)
	if err != nil {
		t.Fatalf("capture hold failed: %v", err)
	}
	if captured.Status != HoldStatusCaptured {
		t.Errorf("expected status captured, got %s", captured.Status)
	}
}

func TestService_HoldLifecycle_CreateThenRelease(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	wallet := mustCreateWallet(t, service, "user-6", "USD")
	if _, err := service.Credit(ctx, wallet.ID, wallet.OwnerUserID, &MoneyMovementRequest{Amount: "100.00", IdempotencyKey: "fund"}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	hold, err := service.CreateHold(ctx, wallet.ID, wallet.OwnerUserID, &CreateHoldRequest{Amount: "30.00", IdempotencyKey: "hold-2"})
	if err != nil {
		t.Fatalf("create hold failed: %v", err)
	}

	released, err := service.ReleaseHold(ctx, hold.ID, wallet.OwnerUserID)
	if err != nil {
		t.Fatalf("release hold failed: %v", err)
	}
	if released.Status != HoldStatusReleased {
		t.Errorf("expected status released, got %s", released.Status)
	}

	replay, err := service.ReleaseHold(ctx, hold.ID, wallet.OwnerUserID)
	if err != nil {
		t.Fatalf("replayed release should be a no-op, got error: %v", err)
	}
	if replay.Status != HoldStatusReleased {
		t.Errorf("expected replay status released, got %s", replay.Status)
	}

	after, err := service.GetWallet(ctx, wallet.ID)
	if err != nil {
		t.Fatalf("get wallet failed: %v", err)
	}
	want, _ := money.Parse("100.00")
	if after.Balance.Cmp(want) != 0 {
		t.Errorf("expected balance restored to 100.00, got %s", after.Balance)
	}
}

func TestService_Transfer(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	source := mustCreateWallet(t, service, "user-7", "USD")
	target := mustCreateWallet(t, service, "user-8", "USD")
	if _, err := service.Credit(ctx, source.ID, source.OwnerUserID, &MoneyMovementRequest{Amount: "50.00", IdempotencyKey: "fund"}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	resp, err := service.Transfer(ctx, source.OwnerUserID, &TransferRequest{
		SourceWalletID: source.ID,
		TargetWalletID: target.ID,
		Amount:         "20.00",
		Currency:       "USD",
		IdempotencyKey: "transfer-1",
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if resp.Transfer.Status != TransferStatusCompleted {
		t.Errorf("expected status completed, got %s", resp.Transfer.Status)
	}

	wantSource, _ := money.Parse("30.00")
	wantTarget, _ := money.Parse("20.00")
	if resp.SourceWallet.Balance.Cmp(wantSource) != 0 {
		t.Errorf("expected source balance 30.00, got %s", resp.SourceWallet.Balance)
	}
	if resp.TargetWallet.Balance.Cmp(wantTarget) != 0 {
		t.Errorf("expected target balance 20.00, got %s", resp.TargetWallet.Balance)
	}

	replay, err := service.Transfer(ctx, source.OwnerUserID, &TransferRequest{
		SourceWalletID: source.ID,
		TargetWalletID: target.ID,
		Amount:         "20.00",
		Currency:       "USD",
		IdempotencyKey: "transfer-1",
	})
	if err != nil {
		t.Fatalf("replayed transfer failed: %v", err)
	}
	if replay.SourceWallet.Balance.Cmp(wantSource) != 0 {
		t.Errorf("expected replay source balance unchanged at 30.00, got %s", replay.SourceWallet.Balance)
	}
}

func TestService_Transfer_InsufficientFundsRecordsFailedTransfer(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	source := mustCreateWallet(t, service, "user-9", "USD")
	target := mustCreateWallet(t, service, "user-10", "USD")

	resp, err := service.Transfer(ctx, source.OwnerUserID, &TransferRequest{
		SourceWalletID: source.ID,
		TargetWalletID: target.ID,
		Amount:         "20.00",
		Currency:       "USD",
		IdempotencyKey: "transfer-fail",
	})
	if err == nil {
		t.Fatal("expected insufficient-funds error")
	}
	if resp == nil || resp.Transfer == nil || resp.Transfer.Status != TransferStatusFailed {
		t.Fatalf("expected a persisted failed transfer row, got %+v", resp)
	}
}

func TestService_Reconcile_ReportsBalanced(t *testing.T) {
	service, _, database := setupTestService(t)
	if service == nil {
		return
	}
	defer cleanupTestService(database)

	ctx := context.Background()
	wallet := mustCreateWallet(t, service, "user-11", "USD")
	if _, err := service.Credit(ctx, wallet.ID, wallet.OwnerUserID, &MoneyMovementRequest{Amount: "100.00", IdempotencyKey: "c1"}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if _, err := service.Debit(ctx, wallet.ID, wallet.OwnerUserID, &MoneyMovementRequest{Amount: "40.00", IdempotencyKey: "d1"}); err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	report, err := service.Reconcile(ctx, wallet.ID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Status != ReconciliationBalanced {
		t.Errorf("expected balanced, got %s (delta %s)", report.Status, report.Delta)
	}
	if !report.Delta.IsZero() {
		t.Errorf("expected zero delta, got %s", report.Delta)
	}
}
