package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelfReferentialOffer(t *testing.T) {
	prices := PricesFrom(acmeCatalogue(t))
	rule := redHalfPrice()

	res, err := rule.Apply(ItemCounts{"R01": 1}, prices)
	require.NoError(t, err)
	require.True(t, res.Discount.IsZero())
	require.False(t, res.Consumed)
	require.Equal(t, ItemCounts{"R01": 1}, res.Remaining)

	res, err = rule.Apply(ItemCounts{"R01": 2}, prices)
	require.NoError(t, err)
	require.Equal(t, 1, res.Applications)
	require.Equal(t, "16.475", res.Discount.String())
	require.Equal(t, ItemCounts{"R01": 0}, res.Remaining)
	require.True(t, res.Consumed)
}

func TestOfferRepeatsWithinBasket(t *testing.T) {
	prices := PricesFrom(acmeCatalogue(t))

	res, err := redHalfPrice().Apply(ItemCounts{"R01": 4, "B01": 1}, prices)
	require.NoError(t, err)
	require.Equal(t, 2, res.Applications)
	require.Equal(t, "32.95", res.Discount.String())
	require.Equal(t, ItemCounts{"R01": 0, "B01": 1}, res.Remaining)

	res, err = redHalfPrice().Apply(ItemCounts{"R01": 3}, prices)
	require.NoError(t, err)
	require.Equal(t, 1, res.Applications)
	require.Equal(t, ItemCounts{"R01": 1}, res.Remaining)
}

func TestBuyTwoGetTwoFree(t *testing.T) {
	prices := PricesFrom(acmeCatalogue(t))
	rule := OfferRule{TriggerCode: "B01", TriggerQty: 2, BenefitCode: "B01", BenefitQty: 2, Fraction: dec("1")}

	res, err := rule.Apply(ItemCounts{"B01": 3}, prices)
	require.NoError(t, err)
	require.False(t, res.Consumed)

	res, err = rule.Apply(ItemCounts{"B01": 4}, prices)
	require.NoError(t, err)
	require.Equal(t, "15.9", res.Discount.String())
}

func TestCrossProductOffer(t *testing.T) {
	prices := PricesFrom(acmeCatalogue(t))
	rule := OfferRule{TriggerCode: "R01", TriggerQty: 1, BenefitCode: "B01", BenefitQty: 1, Fraction: dec("1")}

	res, err := rule.Apply(ItemCounts{"R01": 1}, prices)
	require.NoError(t, err)
	require.False(t, res.Consumed)

	res, err = rule.Apply(ItemCounts{"R01": 2, "B01": 1}, prices)
	require.NoError(t, err)
	require.Equal(t, 1, res.Applications)
	require.Equal(t, "7.95", res.Discount.String())
	require.Equal(t, ItemCounts{"R01": 1, "B01": 0}, res.Remaining)
}

func TestRuleApplyLeavesInputUntouched(t *testing.T) {
	counts := ItemCounts{"R01": 4}
	_, err := redHalfPrice().Apply(counts, PricesFrom(acmeCatalogue(t)))
	require.NoError(t, err)
	require.Equal(t, ItemCounts{"R01": 4}, counts)
}

func TestOfferIsSingleUse(t *testing.T) {
	prices := PricesFrom(acmeCatalogue(t))
	offer := NewOffer(redHalfPrice())
	require.False(t, offer.Applied())
	require.Nil(t, offer.RemainingItemCounts())

	first, err := offer.Apply(ItemCounts{"R01": 4}, prices)
	require.NoError(t, err)
	require.True(t, offer.Applied())
	remaining := offer.RemainingItemCounts()

	second, err := offer.Apply(ItemCounts{"R01": 4}, prices)
	require.NoError(t, err)
	require.True(t, first.Equal(second))
	require.Equal(t, remaining, offer.RemainingItemCounts())
	require.Equal(t, ItemCounts{"R01": 0}, offer.RemainingItemCounts())

	// Later calls ignore new input entirely.
	third, err := offer.Apply(ItemCounts{"R01": 10}, prices)
	require.NoError(t, err)
	require.True(t, first.Equal(third))
}

func TestOfferRuleValidate(t *testing.T) {
	bad := []OfferRule{
		{TriggerCode: "", TriggerQty: 1, BenefitCode: "R01", BenefitQty: 1, Fraction: dec("0.5")},
		{TriggerCode: "R01", TriggerQty: 0, BenefitCode: "R01", BenefitQty: 1, Fraction: dec("0.5")},
		{TriggerCode: "R01", TriggerQty: 1, BenefitCode: "R01", BenefitQty: 0, Fraction: dec("0.5")},
		{TriggerCode: "R01", TriggerQty: 1, BenefitCode: "R01", BenefitQty: 1, Fraction: dec("1.5")},
		{TriggerCode: "R01", TriggerQty: 1, BenefitCode: "R01", BenefitQty: 1, Fraction: dec("-0.1")},
	}
	for _, rule := range bad {
		require.ErrorIs(t, rule.Validate(), ErrInvalidOffer, rule.Label())
		_, err := rule.Apply(ItemCounts{"R01": 5}, PricesFrom(acmeCatalogue(t)))
		require.ErrorIs(t, err, ErrInvalidOffer)
	}
	require.NoError(t, redHalfPrice().Validate())
}

func TestOfferLabel(t *testing.T) {
	require.Equal(t, "red-bogohp", redHalfPrice().Label())
	rule := redHalfPrice()
	rule.Name = ""
	require.Equal(t, "R01:1>R01:1@0.5", rule.Label())
}
