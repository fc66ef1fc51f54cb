package payments

import (
	"strings"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/money"
)

// ValidateCreateIntentRequest mirrors wallet.ValidateAmount/
// ValidateCreateWalletRequest's shape: the orchestrator accepts whatever
// currency the Wallet Ledger Core would, since the intent ultimately
// resolves to a hold against that same wallet.
func ValidateCreateIntentRequest(req *CreateIntentRequest) error {
	if strings.TrimSpace(req.WalletID) == "" {
		return apierr.Validation("wallet_id is required")
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		return apierr.Validation("currency is required")
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, "invalid amount format", err)
	}
	if !amount.IsPositive() {
		return apierr.Validation("amount must be greater than zero")
	}

	return nil
}
