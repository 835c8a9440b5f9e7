package filament

import "github.com/shopspring/decimal"

// Wallet and ledger quantities are stored as NUMERIC(14, 4).
const (
	QuantityScale     = 4
	QuantityIntDigits = 10
)

var quantityLimit = decimal.New(1, QuantityIntDigits)

// FitsColumn reports whether d can be stored without rounding or overflow.
func FitsColumn(d decimal.Decimal) bool {
	if !d.Truncate(QuantityScale).Equal(d) {
		return false
	}
	return d.Abs().LessThan(quantityLimit)
}
