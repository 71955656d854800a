package pricing

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Engine applies an ordered list of offer rules. Earlier rules have first claim
// on items. Rules are immutable; each evaluation builds fresh Offers.
type Engine struct {
	rules  []OfferRule
	logger zerolog.Logger
}

// NewEngine copies rules in their configured order.
func NewEngine(rules []OfferRule, logger zerolog.Logger) *Engine {
	copied := make([]OfferRule, len(rules))
	copy(copied, rules)
	return &Engine{rules: copied, logger: logger}
}

// Rules returns the configured rules in order.
func (e *Engine) Rules() []OfferRule {
	out := make([]OfferRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Discount aggregates the outcome of every offer for one basket.
type Discount struct {
	// Total is kept at OfferScale; callers truncate when subtracting from money.
	Total     decimal.Decimal
	Applied   []OfferResult
	Remaining ItemCounts
}

// TotalDiscount evaluates every rule against the basket's current counts.
func (e *Engine) TotalDiscount(b *Basket) (Discount, error) {
	if b == nil {
		return Discount{}, ErrMissingBasket
	}
	if b.catalogue == nil {
		return Discount{}, errNoCatalogue
	}
	return e.Evaluate(b.ItemCounts(), PricesFrom(b.catalogue))
}

// Evaluate threads counts through each rule in order and sums the discounts.
// A rule reporting ErrInvalidOffer is skipped; any other error aborts.
func (e *Engine) Evaluate(counts ItemCounts, prices PriceFunc) (Discount, error) {
	out := Discount{Total: Zero}
	remaining := counts.Clone()
	for _, rule := range e.rules {
		offer := NewOffer(rule)
		amount, err := offer.Apply(remaining, prices)
		if errors.Is(err, ErrInvalidOffer) {
			e.logger.Warn().Err(err).Str("offer", rule.Label()).Msg("skip offer")
			continue
		}
		if err != nil {
			return Discount{}, fmt.Errorf("offer %s: %w", rule.Label(), err)
		}
		res, _ := offer.Result()
		out.Total = out.Total.Add(amount)
		remaining = res.Remaining
		if res.Consumed {
			out.Applied = append(out.Applied, res)
		}
	}
	out.Remaining = remaining
	return out, nil
}
