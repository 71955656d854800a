package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier charges Charge for any discounted subtotal strictly below Threshold.
type Tier struct {
	Threshold decimal.Decimal
	Charge    decimal.Decimal
}

// Delivery evaluates the delivery charge for a basket from an ascending tier table.
type Delivery struct {
	tiers        []Tier
	freeAboveTop bool
}

// NewDelivery validates the tier table. Thresholds must be strictly ascending and
// neither thresholds nor charges may be negative.
func NewDelivery(tiers []Tier, freeAboveTop bool) (*Delivery, error) {
	out := make([]Tier, 0, len(tiers))
	for i, t := range tiers {
		if t.Threshold.IsNegative() || t.Charge.IsNegative() {
			return nil, fmt.Errorf("tier %d: negative amount: %w", i, ErrInvalidDeliveryTable)
		}
		if i > 0 && !t.Threshold.GreaterThan(tiers[i-1].Threshold) {
			return nil, fmt.Errorf("tier %d: threshold %s not above %s: %w", i, t.Threshold, tiers[i-1].Threshold, ErrInvalidDeliveryTable)
		}
		out = append(out, t)
	}
	return &Delivery{tiers: out, freeAboveTop: freeAboveTop}, nil
}

// Tiers returns a copy of the configured table.
func (d *Delivery) Tiers() []Tier {
	out := make([]Tier, len(d.tiers))
	copy(out, d.tiers)
	return out
}

// FreeAboveTop reports whether delivery is free once the top threshold is met.
func (d *Delivery) FreeAboveTop() bool { return d.freeAboveTop }

// Charge returns the delivery charge for the basket's offer-discounted subtotal.
// An empty basket ships for nothing.
func (d *Delivery) Charge(b *Basket) (decimal.Decimal, error) {
	if b == nil {
		return Zero, ErrMissingBasket
	}
	if b.Count() == 0 {
		return Zero, nil
	}
	discounted, err := b.Total(false, true)
	if err != nil {
		return Zero, err
	}
	return d.ChargeFor(discounted), nil
}

// ChargeFor maps a discounted subtotal to its charge. A subtotal equal to a threshold
// does not take that tier's charge.
func (d *Delivery) ChargeFor(subtotal decimal.Decimal) decimal.Decimal {
	for _, t := range d.tiers {
		if subtotal.LessThan(t.Threshold) {
			return t.Charge
		}
	}
	if d.freeAboveTop || len(d.tiers) == 0 {
		return Zero
	}
	return d.tiers[len(d.tiers)-1].Charge
}

// Saving describes the next cheaper delivery band a customer could reach.
type Saving struct {
	SpendMore decimal.Decimal
	Charge    decimal.Decimal
}

// NextSaving reports how much more must be spent for the delivery charge to drop,
// and what it would drop to. ok is false when no cheaper band exists.
func (d *Delivery) NextSaving(subtotal decimal.Decimal) (Saving, bool) {
	current := d.ChargeFor(subtotal)
	for _, t := range d.tiers {
		if !subtotal.LessThan(t.Threshold) {
			continue
		}
		next := d.ChargeFor(t.Threshold)
		if next.LessThan(current) {
			return Saving{SpendMore: t.Threshold.Sub(subtotal), Charge: next}, true
		}
	}
	return Saving{}, false
}
