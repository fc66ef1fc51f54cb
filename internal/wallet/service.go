package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/db"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/redis"
	"github.com/mercuriabank/backend/internal/money"
	"github.com/mercuriabank/backend/internal/riskclient"
	"github.com/mercuriabank/backend/pkg/outbox"
)

// Service implements the Wallet Ledger Core: append-only ledger entries
// under row locks, two-phase holds, and transfers, all serialized by
// Postgres row locks and unique idempotency constraints rather than
// distributed locking.
type Service struct {
	repo             *Repository
	outboxRepo       *outbox.Repository
	redis            *redis.Client
	db               *db.DB
	logger           *logger.Logger
	riskClient       *riskclient.Client
	riskCheckEnabled bool
}

func NewService(repo *Repository, outboxRepo *outbox.Repository, redisClient *redis.Client, database *db.DB, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		outboxRepo: outboxRepo,
		redis:      redisClient,
		db:         database,
		logger:     log,
	}
}

// WithRiskCheck turns on the optional risk coupling on raw debits (spec
// §4.2); off by default, wired only when the deployment config enables it.
func (s *Service) WithRiskCheck(client *riskclient.Client, enabled bool) *Service {
	s.riskClient = client
	s.riskCheckEnabled = enabled
	return s
}

func toMap(v interface{}) map[string]interface{} {
	b, _ := json.Marshal(v)
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	return m
}

// CreateWallet returns the existing (owner, currency) wallet unless the
// caller explicitly requested an additional one, per spec §4.2. created
// reports whether a new row was inserted, so the handler can answer 201 vs
// 200.
func (s *Service) CreateWallet(ctx context.Context, req *CreateWalletRequest) (w *Wallet, created bool, err error) {
	if err := ValidateCreateWalletRequest(req); err != nil {
		return nil, false, err
	}

	if !req.AllowAdditional {
		if existing, _ := s.repo.GetWalletByOwnerAndCurrency(ctx, req.OwnerUserID, req.Currency); existing != nil {
			return existing, false, nil
		}
	}

	var result *Wallet
	txErr := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		wallet := &Wallet{
			OwnerUserID: req.OwnerUserID,
			Currency:    req.Currency,
			Balance:     money.Zero,
			Status:      WalletStatusActive,
		}

		query := `
			INSERT INTO wallets (owner_user_id, currency, balance, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowContext(ctx, query, wallet.OwnerUserID, wallet.Currency, wallet.Balance.String(), wallet.Status).
			Scan(&wallet.ID, &wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
			return apierr.Wrap(apierr.KindInternal, "failed to create wallet", err)
		}
		result = wallet

		outboxEvent := &outbox.OutboxEvent{
			AggregateID: result.ID,
			EventType:   "wallet.created",
			Topic:       "wallet.created",
			Payload: toMap(WalletCreatedEvent{
				WalletID:    result.ID,
				OwnerUserID: result.OwnerUserID,
				Currency:    result.Currency,
				CreatedAt:   result.CreatedAt,
			}),
		}
		return s.outboxRepo.SaveEvent(ctx, tx, outboxEvent)
	})
	if txErr != nil {
		return nil, false, txErr
	}

	s.logger.Infof("wallet created: %s for owner %s", result.ID, result.OwnerUserID)
	return result, true, nil
}

// GetWallet reads a wallet, preferring a cached balance when present
// (read-through cache, invalidated on every mutation).
func (s *Service) GetWallet(ctx context.Context, walletID string) (*Wallet, error) {
	wallet, err := s.repo.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	if cached, err := s.redis.GetCachedWalletBalance(ctx, walletID); err == nil && cached != "" {
		if parsed, err := money.Parse(cached); err == nil {
			wallet.Balance = parsed
			return wallet, nil
		}
	}

	if err := s.redis.CacheWalletBalance(ctx, walletID, wallet.Balance.String(), 10*time.Minute); err != nil {
		s.logger.Warnf("failed to cache balance: %v", err)
	}

	return wallet, nil
}

// GetBalance backs GET /{id}/balance.
func (s *Service) GetBalance(ctx context.Context, walletID string) (*BalanceResponse, error) {
	wallet, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{ID: wallet.ID, Currency: wallet.Currency, Balance: wallet.Balance}, nil
}

// Reconcile re-derives a wallet's balance from its ledger independently of
// the stored balance column (spec §4.2 "reconcile", property 1 in §8).
func (s *Service) Reconcile(ctx context.Context, walletID string) (*ReconciliationResponse, error) {
	wallet, err := s.repo.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	credits, debits, count, err := s.repo.SumLedgerEntriesByWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	ledgerBalance := credits.Sub(debits)
	delta := wallet.Balance.Sub(ledgerBalance)

	status := ReconciliationBalanced
	if !delta.IsZero() {
		status = ReconciliationDriftDetected
	}

	return &ReconciliationResponse{
		WalletID:      walletID,
		StoredBalance: wallet.Balance,
		LedgerBalance: ledgerBalance,
		Delta:         delta,
		EntryCount:    count,
		Status:        status,
	}, nil
}

// applyMoneyChange is the single code path credit and debit share: lock the
// wallet row, validate ownership, check for an existing ledger entry under
// this idempotency key (return current state if found), otherwise check
// status and balance and apply the change atomically. Grounded on original_source's wallet_service
// _apply_money_change.
func (s *Service) applyMoneyChange(ctx context.Context, walletID, ownerUserID string, entryType EntryType, amount money.Money, idempotencyKey string, details map[string]interface{}) (*Wallet, error) {
	var result *Wallet

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		wallet, err := s.repo.GetWalletForUpdate(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if wallet.OwnerUserID != ownerUserID {
			return apierr.NotFound("wallet not found")
		}

		if idempotencyKey != "" {
			existing, err := s.repo.FindLedgerEntryByIdempotencyKey(ctx, tx, walletID, idempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				result = wallet
				return nil
			}
		}

		if wallet.Status != WalletStatusActive {
			return apierr.Conflict("wallet is not active")
		}

		var newBalance money.Money
		if entryType == EntryTypeDebit {
			if !wallet.Balance.GreaterThanOrEqual(amount) {
				return apierr.Conflict("insufficient balance")
			}
			newBalance = wallet.Balance.Sub(amount)
		} else {
			newBalance = wallet.Balance.Add(amount)
		}

		if err := s.repo.UpdateBalanceWithLock(ctx, tx, walletID, newBalance); err != nil {
			return err
		}

		entry := &LedgerEntry{
			WalletID:       walletID,
			Type:           entryType,
			Amount:         amount,
			IdempotencyKey: idempotencyKey,
			Details:        details,
		}
		if _, err := s.repo.CreateLedgerEntryTx(ctx, tx, entry); err != nil {
			return err
		}

		outboxEvent := &outbox.OutboxEvent{
			AggregateID: walletID,
			EventType:   "wallet.balance_updated",
			Topic:       "wallet.balance_updated",
			Payload: toMap(BalanceUpdatedEvent{
				WalletID:      walletID,
				EntryType:     entryType,
				Amount:        amount.String(),
				BalanceBefore: wallet.Balance.String(),
				BalanceAfter:  newBalance.String(),
				Timestamp:     time.Now(),
			}),
		}
		if err := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
			return err
		}

		wallet.Balance = newBalance
		result = wallet
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.redis.InvalidateWalletBalance(ctx, walletID)
	return result, nil
}

func (s *Service) Credit(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error) {
	amount, err := ValidateAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return nil, apierr.Validation("idempotency_key is required")
	}
	return s.applyMoneyChange(ctx, walletID, ownerUserID, EntryTypeCredit, amount, req.IdempotencyKey, req.Details)
}

// Debit runs the optional risk coupling (spec §4.2) before touching the
// ledger: approve proceeds, review returns 409, decline returns 403.
func (s *Service) Debit(ctx context.Context, walletID, ownerUserID string, req *MoneyMovementRequest) (*Wallet, error) {
	amount, err := ValidateAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return nil, apierr.Validation("idempotency_key is required")
	}

	if s.riskCheckEnabled && s.riskClient != nil {
		if err := s.evaluateDebitRisk(ctx, walletID, ownerUserID, amount, req.IdempotencyKey); err != nil {
			return nil, err
		}
	}

	return s.applyMoneyChange(ctx, walletID, ownerUserID, EntryTypeDebit, amount, req.IdempotencyKey, req.Details)
}

func (s *Service) evaluateDebitRisk(ctx context.Context, walletID, ownerUserID string, amount money.Money, idempotencyKey string) error {
	wallet, err := s.repo.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}

	evaluation, err := s.riskClient.Evaluate(ctx, riskclient.EvaluationRequest{
		EventType: "wallet_transaction",
		SubjectID: walletID,
		UserID:    ownerUserID,
		Amount:    amount.String(),
		Currency:  wallet.Currency,
	}, "wallet-debit-risk-"+walletID+"-"+idempotencyKey)
	if err != nil {
		return err
	}

	switch evaluation.Decision {
	case riskclient.DecisionApprove:
		return nil
	case riskclient.DecisionReview:
		return apierr.Conflict("debit is under risk review")
	case riskclient.DecisionDecline:
		return apierr.Forbidden("debit declined by risk evaluation")
	default:
		return apierr.Unavailable("risk evaluator returned an unknown decision")
	}
}

// CreateHold reserves amount by debiting immediately; the funds leave the
// spendable balance on creation, not on capture (spec §4.2).
func (s *Service) CreateHold(ctx context.Context, walletID, ownerUserID string, req *CreateHoldRequest) (*Hold, error) {
	amount, err := ValidateAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return nil, apierr.Validation("idempotency_key is required")
	}

	var result *Hold
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		wallet, err := s.repo.GetWalletForUpdate(ctx, tx, walletID)
		if err != nil {
			return err
		}

		existing, err := s.repo.FindHoldByIdempotencyKey(ctx, tx, walletID, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		if wallet.OwnerUserID != ownerUserID {
			return apierr.NotFound("wallet not found")
		}
		if wallet.Status != WalletStatusActive {
			return apierr.Conflict("wallet is not active")
		}
		if !wallet.Balance.GreaterThanOrEqual(amount) {
			return apierr.Conflict("insufficient balance")
		}

		newBalance := wallet.Balance.Sub(amount)
		if err := s.repo.UpdateBalanceWithLock(ctx, tx, walletID, newBalance); err != nil {
			return err
		}

		holdDetails := map[string]interface{}{"type": "hold", "hold_reference": req.Reference}
		entry := &LedgerEntry{
			WalletID: walletID,
			Type:     EntryTypeDebit,
			Amount:   amount,
			Details:  holdDetails,
		}
		if _, err := s.repo.CreateLedgerEntryTx(ctx, tx, entry); err != nil {
			return err
		}

		hold := &Hold{
			WalletID:       walletID,
			Amount:         amount,
			Status:         HoldStatusActive,
			IdempotencyKey: req.IdempotencyKey,
			Reference:      req.Reference,
			Details:        req.Details,
			LedgerEntryID:  entry.ID,
		}
		if _, err := s.repo.CreateHoldTx(ctx, tx, hold); err != nil {
			return err
		}

		outboxEvent := &outbox.OutboxEvent{
			AggregateID: walletID,
			EventType:   "wallet.hold_created",
			Topic:       "wallet.hold_created",
			Payload: toMap(HoldEvent{
				HoldID: hold.ID, WalletID: walletID, Status: hold.Status, Amount: amount.String(), Timestamp: time.Now(),
			}),
		}
		if err := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
			return err
		}

		result = hold
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.redis.InvalidateWalletBalance(ctx, walletID)
	return result, nil
}

func (s *Service) requireHoldOwnership(ctx context.Context, holdID, ownerUserID string) (*Hold, error) {
	hold, err := s.repo.GetHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.repo.GetWallet(ctx, hold.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.OwnerUserID != ownerUserID {
		return nil, apierr.NotFound("hold not found")
	}
	return hold, nil
}

// CaptureHold marks a hold captured; the funds stay withdrawn, no further
// ledger movement is needed.
func (s *Service) CaptureHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error) {
	if _, err := s.requireHoldOwnership(ctx, holdID, ownerUserID); err != nil {
		return nil, err
	}

	var result *Hold
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		hold, err := s.repo.GetHoldForUpdate(ctx, tx, holdID)
		if err != nil {
			return err
		}
		if hold.Status == HoldStatusCaptured || hold.Status == HoldStatusReleased {
			result = hold
			return nil
		}
		if hold.Status != HoldStatusActive {
			return apierr.Conflict("hold is not active")
		}

		if err := s.repo.UpdateHoldStatusTx(ctx, tx, holdID, HoldStatusCaptured, ""); err != nil {
			return err
		}
		hold.Status = HoldStatusCaptured

		outboxEvent := &outbox.OutboxEvent{
			AggregateID: hold.WalletID,
			EventType:   "wallet.hold_captured",
			Topic:       "wallet.hold_captured",
			Payload: toMap(HoldEvent{
				HoldID: hold.ID, WalletID: hold.WalletID, Status: hold.Status, Amount: hold.Amount.String(), Timestamp: time.Now(),
			}),
		}
		if err := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
			return err
		}

		result = hold
		return nil
	})
	return result, err
}

// ReleaseHold credits the held amount back to the wallet.
func (s *Service) ReleaseHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error) {
	if _, err := s.requireHoldOwnership(ctx, holdID, ownerUserID); err != nil {
		return nil, err
	}

	var result *Hold
	var walletID string
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		hold, err := s.repo.GetHoldForUpdate(ctx, tx, holdID)
		if err != nil {
			return err
		}
		walletID = hold.WalletID
		if hold.Status == HoldStatusReleased {
			result = hold
			return nil
		}
		if hold.Status != HoldStatusActive {
			return apierr.Conflict("hold is not active")
		}

		wallet, err := s.repo.GetWalletForUpdate(ctx, tx, hold.WalletID)
		if err != nil {
			return err
		}
		newBalance := wallet.Balance.Add(hold.Amount)
		if err := s.repo.UpdateBalanceWithLock(ctx, tx, hold.WalletID, newBalance); err != nil {
			return err
		}

		entry := &LedgerEntry{
			WalletID: hold.WalletID,
			Type:     EntryTypeCredit,
			Amount:   hold.Amount,
			Details:  map[string]interface{}{"reason": "hold_release", "hold_release_of": hold.ID},
		}
		if _, err := s.repo.CreateLedgerEntryTx(ctx, tx, entry); err != nil {
			return err
		}

		if err := s.repo.UpdateHoldStatusTx(ctx, tx, holdID, HoldStatusReleased, entry.ID); err != nil {
			return err
		}
		hold.Status = HoldStatusReleased

		outboxEvent := &outbox.OutboxEvent{
			AggregateID: hold.WalletID,
			EventType:   "wallet.hold_released",
			Topic:       "wallet.hold_released",
			Payload: toMap(HoldEvent{
				HoldID: hold.ID, WalletID: hold.WalletID, Status: hold.Status, Amount: hold.Amount.String(), Timestamp: time.Now(),
			}),
		}
		if err := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
			return err
		}

		result = hold
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.redis.InvalidateWalletBalance(ctx, walletID)
	return result, nil
}

func (s *Service) GetHold(ctx context.Context, holdID, ownerUserID string) (*Hold, error) {
	return s.requireHoldOwnership(ctx, holdID, ownerUserID)
}

func (s *Service) ListLedgerEntries(ctx context.Context, walletID, cursor string, limit int) (*LedgerEntriesResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.repo.ListLedgerEntries(ctx, walletID, cursor, limit)
	if err != nil {
		return nil, err
	}
	resp := &LedgerEntriesResponse{WalletID: walletID, Entries: entries}
	if len(entries) == limit {
		resp.NextCursor = entries[len(entries)-1].ID
	}
	return resp, nil
}

// Transfer moves funds between two wallets atomically, locking them in a
// fixed order (lexicographic by ID) to avoid deadlocking concurrent
// transfers that touch the same wallet pair in opposite directions. On
// insufficient funds the transfer is persisted as failed rather than simply
// erroring, per spec §3/§8 property 5.
func (s *Service) Transfer(ctx context.Context, ownerUserID string, req *TransferRequest) (*TransferResponse, error) {
	amount, err := ValidateAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return nil, apierr.Validation("idempotency_key is required")
	}
	if req.SourceWalletID == req.TargetWalletID {
		return nil, apierr.Validation("source and target wallet must differ")
	}

	firstID, secondID := req.SourceWalletID, req.TargetWalletID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	var result *Transfer
	var sourceSnapshot, targetSnapshot *Wallet
	var failure error
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		first, err := s.repo.GetWalletForUpdate(ctx, tx, firstID)
		if err != nil {
			return err
		}
		second, err := s.repo.GetWalletForUpdate(ctx, tx, secondID)
		if err != nil {
			return err
		}

		if existing, err := s.repo.FindTransferByIdempotencyKey(ctx, tx, req.IdempotencyKey); err != nil {
			return err
		} else if existing != nil {
			if existing.UserID != ownerUserID {
				return apierr.Forbidden("idempotency key belongs to another user")
			}
			result = existing
			sourceSnapshot, _ = s.repo.GetWallet(ctx, existing.SourceWalletID)
			targetSnapshot, _ = s.repo.GetWallet(ctx, existing.TargetWalletID)
			return nil
		}

		source, target := first, second
		if firstID != req.SourceWalletID {
			source, target = second, first
		}

		if source.OwnerUserID != ownerUserID {
			return apierr.NotFound("wallet not found")
		}
		if req.Currency != "" && (req.Currency != source.Currency || req.Currency != target.Currency) {
			return apierr.Validation("currency mismatch between transfer and wallets")
		}
		if source.Currency != target.Currency {
			return apierr.Validation("source and target wallet currencies differ")
		}

		transfer := &Transfer{
			UserID:         ownerUserID,
			SourceWalletID: req.SourceWalletID,
			TargetWalletID: req.TargetWalletID,
			Amount:         amount,
			Currency:       source.Currency,
			Status:         TransferStatusPending,
			IdempotencyKey: req.IdempotencyKey,
		}
		if _, err := s.repo.CreateTransferTx(ctx, tx, transfer); err != nil {
			return err
		}

		if err := s.publishTransferCreated(ctx, tx, transfer); err != nil {
			return err
		}

		if source.Status != WalletStatusActive || target.Status != WalletStatusActive || !source.Balance.GreaterThanOrEqual(amount) {
			reason := "insufficient balance"
			if source.Status != WalletStatusActive {
				reason = "source wallet is not active"
			} else if target.Status != WalletStatusActive {
				reason = "target wallet is not active"
			}
			if err := s.repo.FailTransferTx(ctx, tx, transfer.ID, reason); err != nil {
				return err
			}
			transfer.Status = TransferStatusFailed
			transfer.FailureReason = reason
			if err := s.publishTransferTerminal(ctx, tx, transfer); err != nil {
				return err
			}
			result = transfer
			sourceSnapshot, targetSnapshot = source, target
			failure = apierr.Conflict(reason)
			return nil
		}

		newSourceBalance := source.Balance.Sub(amount)
		newTargetBalance := target.Balance.Add(amount)

		if err := s.repo.UpdateBalanceWithLock(ctx, tx, req.SourceWalletID, newSourceBalance); err != nil {
			return err
		}
		if err := s.repo.UpdateBalanceWithLock(ctx, tx, req.TargetWalletID, newTargetBalance); err != nil {
			return err
		}

		transferDetails := map[string]interface{}{"reason": "transfer", "transfer_id": transfer.ID}
		debitEntry := &LedgerEntry{
			WalletID:       req.SourceWalletID,
			Type:           EntryTypeDebit,
			Amount:         amount,
			IdempotencyKey: fmt.Sprintf("wallet-transfer-debit-%s", transfer.ID),
			Details:        transferDetails,
		}
		if _, err := s.repo.CreateLedgerEntryTx(ctx, tx, debitEntry); err != nil {
			return err
		}
		creditEntry := &LedgerEntry{
			WalletID:       req.TargetWalletID,
			Type:           EntryTypeCredit,
			Amount:         amount,
			IdempotencyKey: fmt.Sprintf("wallet-transfer-credit-%s", transfer.ID),
			Details:        transferDetails,
		}
		if _, err := s.repo.CreateLedgerEntryTx(ctx, tx, creditEntry); err != nil {
			return err
		}

		if err := s.repo.CompleteTransferTx(ctx, tx, transfer.ID, debitEntry.ID, creditEntry.ID); err != nil {
			return err
		}
		transfer.Status = TransferStatusCompleted
		transfer.LedgerDebitEntryID = debitEntry.ID
		transfer.LedgerCreditEntryID = creditEntry.ID

		if err := s.publishTransferTerminal(ctx, tx, transfer); err != nil {
			return err
		}

		source.Balance = newSourceBalance
		target.Balance = newTargetBalance
		sourceSnapshot, targetSnapshot = source, target
		result = transfer
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.redis.InvalidateWalletBalance(ctx, req.SourceWalletID)
	s.redis.InvalidateWalletBalance(ctx, req.TargetWalletID)

	// A failed-for-insufficient-funds transfer commits its failed row (and
	// terminal outbox event) above, then surfaces as a 409 here with the
	// transfer and wallet snapshots still attached to the response.
	if failure != nil {
		return &TransferResponse{Transfer: result, SourceWallet: sourceSnapshot, TargetWallet: targetSnapshot}, failure
	}

	return &TransferResponse{Transfer: result, SourceWallet: sourceSnapshot, TargetWallet: targetSnapshot}, nil
}

func (s *Service) publishTransferCreated(ctx context.Context, tx *sql.Tx, t *Transfer) error {
	return s.outboxRepo.SaveEvent(ctx, tx, &outbox.OutboxEvent{
		AggregateID: t.ID,
		EventType:   "wallet.transfer.created",
		Topic:       "wallet.transfer.created",
		Payload: toMap(TransferCompletedEvent{
			TransferID: t.ID, SourceWalletID: t.SourceWalletID, TargetWalletID: t.TargetWalletID,
			Amount: t.Amount.String(), Timestamp: time.Now(),
		}),
	})
}

func (s *Service) publishTransferTerminal(ctx context.Context, tx *sql.Tx, t *Transfer) error {
	eventType := "wallet.transfer.completed"
	if t.Status == TransferStatusFailed {
		eventType = "wallet.transfer.failed"
	}
	return s.outboxRepo.SaveEvent(ctx, tx, &outbox.OutboxEvent{
		AggregateID: t.ID,
		EventType:   eventType,
		Topic:       eventType,
		Payload: toMap(TransferCompletedEvent{
			TransferID: t.ID, SourceWalletID: t.SourceWalletID, TargetWalletID: t.TargetWalletID,
			Amount: t.Amount.String(), Timestamp: time.Now(),
		}),
	})
}
