package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/acme-checkout/internal/catalog"
)

// Catalogue resolves product codes. *catalog.Catalogue satisfies it.
type Catalogue interface {
	Get(code string) (catalog.Product, error)
}

// ItemCounts maps a product code to the quantity held.
type ItemCounts map[string]int

// Clone returns an independent copy.
func (c ItemCounts) Clone() ItemCounts {
	out := make(ItemCounts, len(c))
	for code, qty := range c {
		out[code] = qty
	}
	return out
}

// Basket is an ordered multiset of product codes for a single checkout.
// It is not safe for concurrent use; build one per request.
type Basket struct {
	catalogue Catalogue
	delivery  *Delivery
	offers    *Engine
	codes     []string
}

// NewBasket wires a basket to its collaborators. A nil delivery or offer engine
// contributes nothing to Total.
func NewBasket(catalogue Catalogue, delivery *Delivery, offers *Engine) *Basket {
	return &Basket{catalogue: catalogue, delivery: delivery, offers: offers}
}

// Add appends a code. Codes are resolved against the catalogue when totals are computed.
func (b *Basket) Add(code string) *Basket {
	b.codes = append(b.codes, code)
	return b
}

// AddCounts adds qty copies of every code, in sorted code order.
func (b *Basket) AddCounts(counts ItemCounts) *Basket {
	for _, code := range sortedCodes(counts) {
		for i := 0; i < counts[code]; i++ {
			b.Add(code)
		}
	}
	return b
}

// Empty removes every code.
func (b *Basket) Empty() *Basket {
	b.codes = nil
	return b
}

// Count reports the number of items held.
func (b *Basket) Count() int {
	return len(b.codes)
}

// Codes returns the held codes in insertion order.
func (b *Basket) Codes() []string {
	out := make([]string, len(b.codes))
	copy(out, b.codes)
	return out
}

// ItemCounts returns a fresh quantity-per-code snapshot.
func (b *Basket) ItemCounts() ItemCounts {
	counts := make(ItemCounts, len(b.codes))
	for _, code := range b.codes {
		counts[code]++
	}
	return counts
}

// Total sums catalogue prices, optionally subtracting offer discounts and adding the
// delivery charge. Delivery is evaluated on the discounted subtotal. An empty basket
// totals zero for every flag combination.
func (b *Basket) Total(includeDelivery, includeOffers bool) (decimal.Decimal, error) {
	if len(b.codes) == 0 {
		return Zero, nil
	}
	sum, err := b.subtotal()
	if err != nil {
		return Zero, err
	}
	if includeOffers && b.offers != nil {
		discount, err := b.offers.TotalDiscount(b)
		if err != nil {
			return Zero, fmt.Errorf("apply offers: %w", err)
		}
		sum = ToMoney(sum.Sub(discount.Total))
	}
	if includeDelivery && b.delivery != nil {
		charge, err := b.delivery.Charge(b)
		if err != nil {
			return Zero, fmt.Errorf("delivery charge: %w", err)
		}
		sum = sum.Add(charge)
	}
	return sum, nil
}

func (b *Basket) subtotal() (decimal.Decimal, error) {
	if b.catalogue == nil {
		return Zero, errNoCatalogue
	}
	sum := Zero
	for _, code := range b.codes {
		p, err := b.catalogue.Get(code)
		if err != nil {
			return Zero, err
		}
		sum = sum.Add(p.Price())
	}
	return ToMoney(sum), nil
}

func sortedCodes(counts ItemCounts) []string {
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
