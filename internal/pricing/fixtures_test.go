package pricing

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/acme-checkout/internal/catalog"
)

func acmeCatalogue(t *testing.T) *catalog.Catalogue {
	t.Helper()
	c, skipped := catalog.Build(catalog.DefaultDefinitions(), zerolog.Nop())
	require.Empty(t, skipped)
	return c
}

func acmeDelivery(t *testing.T, freeAboveTop bool) *Delivery {
	t.Helper()
	d, err := NewDelivery([]Tier{
		{Threshold: dec("50"), Charge: dec("4.95")},
		{Threshold: dec("90"), Charge: dec("2.95")},
	}, freeAboveTop)
	require.NoError(t, err)
	return d
}

func redHalfPrice() OfferRule {
	return OfferRule{
		Name:        "red-bogohp",
		TriggerCode: "R01", TriggerQty: 1,
		BenefitCode: "R01", BenefitQty: 1,
		Fraction: dec("0.5"),
	}
}

func acmeBasket(t *testing.T, codes ...string) *Basket {
	t.Helper()
	b := NewBasket(acmeCatalogue(t), acmeDelivery(t, true), NewEngine([]OfferRule{redHalfPrice()}, zerolog.Nop()))
	for _, code := range codes {
		b.Add(code)
	}
	return b
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
