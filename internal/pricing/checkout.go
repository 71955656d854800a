package pricing

import (
	"github.com/shopspring/decimal"
)

// Summary aggregates the computed checkout components. Money fields are at money
// scale and satisfy Total = Subtotal - Discount + Delivery.
type Summary struct {
	Counts   ItemCounts
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Delivery decimal.Decimal
	Total    decimal.Decimal
	// Offers lists the rules that claimed items, in evaluation order.
	Offers []OfferResult
	// NextSaving is set when spending more would lower the delivery charge.
	NextSaving *Saving
}

// Checkout composes basket subtotal, offer discount and delivery charge.
func Checkout(b *Basket) (Summary, error) {
	if b == nil {
		return Summary{}, ErrMissingBasket
	}
	out := Summary{Counts: b.ItemCounts(), Subtotal: Zero, Discount: Zero, Delivery: Zero, Total: Zero}
	if b.Count() == 0 {
		return out, nil
	}

	subtotal, err := b.Total(false, false)
	if err != nil {
		return Summary{}, err
	}
	discounted, err := b.Total(false, true)
	if err != nil {
		return Summary{}, err
	}
	total, err := b.Total(true, true)
	if err != nil {
		return Summary{}, err
	}
	out.Subtotal = subtotal
	out.Discount = subtotal.Sub(discounted)
	out.Total = total

	if b.delivery != nil {
		charge, err := b.delivery.Charge(b)
		if err != nil {
			return Summary{}, err
		}
		out.Delivery = charge
		if saving, ok := b.delivery.NextSaving(discounted); ok {
			out.NextSaving = &saving
		}
	}
	if b.offers != nil {
		discount, err := b.offers.TotalDiscount(b)
		if err != nil {
			return Summary{}, err
		}
		out.Offers = discount.Applied
	}
	return out, nil
}
