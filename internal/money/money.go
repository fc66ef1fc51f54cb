// Package money implements fixed-point currency arithmetic at the scale the
// ledger persists, NUMERIC(18,2). The teacher's wallet service did this with
// big.Float over strings at scale 4, which loses exactness on repeated
// add/subtract; shopspring/decimal (used for the same purpose across the
// wallet-domain examples, e.g. brave-intl/bat-go and LerianStudio/midaz)
// gives us exact decimal arithmetic instead.
package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const Scale = 2

// Money is a non-negative-or-signed amount at Scale decimal places.
type Money struct {
	d decimal.Decimal
}

var Zero = Money{d: decimal.Zero}

// Parse validates and parses a decimal string amount, rejecting more than
// Scale fractional digits so stored amounts always match NUMERIC(18,2).
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -Scale {
		return Money{}, fmt.Errorf("amount %q has more than %d decimal places", s, Scale)
	}
	return Money{d: d.Round(Scale)}, nil
}

// FromDecimal wraps an already-validated decimal value, rounding to Scale.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

func (m Money) Decimal() decimal.Decimal {
	return m.d
}

func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d).Round(Scale)}
}

func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d).Round(Scale)}
}

// Cmp returns -1, 0, or 1 as m is less than, equal to, or greater than other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// GreaterThanOrEqual reports whether m >= other, used for the "sufficient
// balance" check on debits and holds.
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.d.Cmp(other.d) >= 0
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
