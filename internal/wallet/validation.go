package wallet

import (
	"regexp"
	"strings"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/money"
)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

var supportedCurrencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
	"JPY": true,
	"IDR": true,
}

func ValidateCreateWalletRequest(req *CreateWalletRequest) error {
	if req.OwnerUserID == "" {
		return apierr.Validation("owner_user_id is required")
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		return apierr.Validation("currency is required")
	}
	if !currencyRegex.MatchString(req.Currency) {
		return apierr.Validation("currency must be a 3-letter code")
	}
	if !supportedCurrencies[req.Currency] {
		return apierr.Validation("currency " + req.Currency + " is not supported")
	}

	return nil
}

// ValidateAmount parses amount as money and rejects non-positive values;
// every credit/debit/hold/transfer amount passes through here.
func ValidateAmount(amount string) (money.Money, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return money.Money{}, apierr.Validation("amount is required")
	}

	parsed, err := money.Parse(amount)
	if err != nil {
		return money.Money{}, apierr.Wrap(apierr.KindValidation, "invalid amount format", err)
	}

	if !parsed.IsPositive() {
		return money.Money{}, apierr.Validation("amount must be greater than zero")
	}

	return parsed, nil
}
