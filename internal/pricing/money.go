package pricing

import "github.com/shopspring/decimal"

const (
	// MoneyScale is the number of places totals are kept at.
	MoneyScale int32 = 2
	// OfferScale keeps half-penny amounts alive while discounts accumulate.
	OfferScale int32 = 3
)

// Zero is the additive identity at money scale.
var Zero = decimal.Zero

// ToMoney truncates toward zero at money scale.
func ToMoney(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(MoneyScale)
}

// Format renders an amount as a fixed two-place string.
func Format(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}
