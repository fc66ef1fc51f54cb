package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/mercuriabank/backend/internal/common/config"
	"github.com/mercuriabank/backend/internal/common/db"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/money"
)

func setupTestDB(t *testing.T) (*Repository, *db.DB) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := config.DatabaseConfig{
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
	database, err := db.Connect(cfg, log)
	if err != nil {
		t.Skipf("cannot connect to database: %v", err)
		return nil, nil
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

	TRUNCATE wallets, ledger_entries CASCADE;
	`

	if _, err := database.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return NewRepository(database, log), database
}

func cleanupTestDB(database *db.DB) {
	if database == nil {
		return
	}
	_, _ = database.Exec("TRUNCATE wallets, ledger_entries CASCADE")
	database.Close()
}

func TestRepository_CreateAndGetWallet(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(database)

	ctx := context.Background()
	wallet := &Wallet{OwnerUserID: "owner-1", Currency: "USD", Balance: money.Zero, Status: WalletStatusActive}

	created, err := repo.CreateWallet(ctx, wallet)
	if err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected wallet ID to be set")
	}

	fetched, err := repo.GetWallet(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to get wallet: %v", err)
	}
	if fetched.OwnerUserID != "owner-1" {
		t.Errorf("expected owner-1, got %s", fetched.OwnerUserID)
	}
}

func TestRepository_GetWallet_NotFound(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(database)

	_, err := repo.GetWallet(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err == nil {
		t.Fatal("expected not found error")
	}
}

func TestRepository_GetWalletForUpdate_LocksRow(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(database)

	ctx := context.Background()
	wallet, err := repo.CreateWallet(ctx, &Wallet{OwnerUserID: "owner-2", Currency: "USD", Balance: money.Zero, Status: WalletStatusActive})
	if err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}
	defer tx.Rollback()

	locked, err := repo.GetWalletForUpdate(ctx, tx, wallet.ID)
	if err != nil {
		t.Fatalf("failed to lock wallet: %v", err)
	}
	if locked.ID != wallet.ID {
		t.Errorf("expected locked wallet %s, got %s", wallet.ID, locked.ID)
	}
}

func TestRepository_LedgerEntryIdempotency(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(database)

	ctx := context.Background()
	wallet, err := repo.CreateWallet(ctx, &Wallet{OwnerUserID: "owner-3", Currency: "USD", Balance: money.Zero, Status: WalletStatusActive})
	if err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}
	defer tx.Rollback()

	amount, _ := money.Parse("10.00")
	entry := &LedgerEntry{WalletID: wallet.ID, Type: EntryTypeCredit, Amount: amount, IdempotencyKey: "key-1"}
	if _, err := repo.CreateLedgerEntryTx(ctx, tx, entry); err != nil {
		t.Fatalf("failed to create ledger entry: %v", err)
	}

	found, err := repo.FindLedgerEntryByIdempotencyKey(ctx, tx, wallet.ID, "key-1")
	if err != nil {
		t.Fatalf("failed to find ledger entry: %v", err)
	}
	if found == nil {
		t.Fatal("expected to find ledger entry by idempotency key")
	}

	notFound, err := repo.FindLedgerEntryByIdempotencyKey(ctx, tx, wallet.ID, "key-missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notFound != nil {
		t.Error("expected no ledger entry for unused idempotency key")
	}
}
