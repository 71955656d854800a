package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceFunc resolves the unit price of a product code.
type PriceFunc func(code string) (decimal.Decimal, error)

// PricesFrom adapts a catalogue into a PriceFunc.
func PricesFrom(c Catalogue) PriceFunc {
	return func(code string) (decimal.Decimal, error) {
		p, err := c.Get(code)
		if err != nil {
			return Zero, err
		}
		return p.Price(), nil
	}
}

// OfferRule is an immutable "buy TriggerQty of TriggerCode, get BenefitQty of
// BenefitCode at Fraction off" definition. Fraction 1 means free, 0.5 half price.
type OfferRule struct {
	Name        string
	Description string
	TriggerCode string
	TriggerQty  int
	BenefitCode string
	BenefitQty  int
	Fraction    decimal.Decimal
}

// Label names the rule for logs and responses.
func (r OfferRule) Label() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return fmt.Sprintf("%s:%d>%s:%d@%s", r.TriggerCode, r.TriggerQty, r.BenefitCode, r.BenefitQty, r.Fraction)
}

// Validate reports ErrInvalidOffer for rules that cannot be evaluated.
func (r OfferRule) Validate() error {
	switch {
	case strings.TrimSpace(r.TriggerCode) == "":
		return fmt.Errorf("%s: trigger code is required: %w", r.Label(), ErrInvalidOffer)
	case strings.TrimSpace(r.BenefitCode) == "":
		return fmt.Errorf("%s: benefit code is required: %w", r.Label(), ErrInvalidOffer)
	case r.TriggerQty < 1:
		return fmt.Errorf("%s: trigger quantity must be at least 1: %w", r.Label(), ErrInvalidOffer)
	case r.BenefitQty < 1:
		return fmt.Errorf("%s: benefit quantity must be at least 1: %w", r.Label(), ErrInvalidOffer)
	case r.Fraction.IsNegative() || r.Fraction.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("%s: discount fraction must be within [0, 1]: %w", r.Label(), ErrInvalidOffer)
	}
	return nil
}

// OfferResult is the outcome of evaluating one rule against a set of item counts.
type OfferResult struct {
	Rule         OfferRule
	Discount     decimal.Decimal
	Applications int
	// Remaining holds the counts left for the next offer in sequence.
	Remaining ItemCounts
	// Consumed is true when the rule claimed at least one set of items.
	Consumed bool
}

// Apply evaluates the rule as many times as the counts allow. The input counts are
// never modified; the counts left after matching are returned in Remaining.
func (r OfferRule) Apply(counts ItemCounts, prices PriceFunc) (OfferResult, error) {
	remaining := counts.Clone()
	if err := r.Validate(); err != nil {
		return OfferResult{Rule: r, Discount: Zero, Remaining: remaining}, err
	}

	discount := Zero
	applications := 0
	var perApplication decimal.Decimal
	for r.applicable(remaining) {
		if applications == 0 {
			price, err := prices(r.BenefitCode)
			if err != nil {
				return OfferResult{Rule: r, Discount: Zero, Remaining: counts.Clone()}, err
			}
			perApplication = r.Fraction.Mul(price).Truncate(OfferScale).
				Mul(decimal.NewFromInt(int64(r.BenefitQty))).Truncate(OfferScale)
		}
		remaining[r.TriggerCode] -= r.TriggerQty
		remaining[r.BenefitCode] -= r.BenefitQty
		discount = discount.Add(perApplication)
		applications++
	}

	return OfferResult{
		Rule:         r,
		Discount:     discount,
		Applications: applications,
		Remaining:    remaining,
		Consumed:     applications > 0,
	}, nil
}

func (r OfferRule) applicable(counts ItemCounts) bool {
	trigger, ok := counts[r.TriggerCode]
	if !ok {
		return false
	}
	benefit, ok := counts[r.BenefitCode]
	if !ok {
		return false
	}
	if trigger < r.TriggerQty {
		return false
	}
	// Both roles draw from the same pool when the codes match.
	if r.BenefitCode == r.TriggerCode {
		return benefit-r.TriggerQty >= r.BenefitQty
	}
	return benefit >= r.BenefitQty
}

// Offer is a single-use evaluation of a rule for one checkout. The first Apply
// computes the result; later calls return it unchanged and never decrement again.
type Offer struct {
	rule   OfferRule
	result *OfferResult
	err    error
}

// NewOffer prepares a fresh evaluation of rule.
func NewOffer(rule OfferRule) *Offer {
	return &Offer{rule: rule}
}

// Rule returns the underlying definition.
func (o *Offer) Rule() OfferRule { return o.rule }

// Applied reports whether Apply has run.
func (o *Offer) Applied() bool { return o.result != nil }

// Apply returns the accumulated discount for this checkout.
func (o *Offer) Apply(counts ItemCounts, prices PriceFunc) (decimal.Decimal, error) {
	if o.result == nil {
		res, err := o.rule.Apply(counts, prices)
		o.result, o.err = &res, err
	}
	return o.result.Discount, o.err
}

// RemainingItemCounts returns the counts left after Apply, or nil before it has run.
func (o *Offer) RemainingItemCounts() ItemCounts {
	if o.result == nil {
		return nil
	}
	return o.result.Remaining.Clone()
}

// Result returns the cached evaluation, if any.
func (o *Offer) Result() (OfferResult, bool) {
	if o.result == nil {
		return OfferResult{}, false
	}
	return *o.result, true
}
