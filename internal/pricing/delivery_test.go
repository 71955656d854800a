package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChargeForThresholds(t *testing.T) {
	free := acmeDelivery(t, true)
	floor := acmeDelivery(t, false)

	cases := []struct {
		subtotal string
		free     string
		floor    string
	}{
		{"0.01", "4.95", "4.95"},
		{"49.99", "4.95", "4.95"},
		{"50.00", "2.95", "2.95"},
		{"89.99", "2.95", "2.95"},
		{"90.00", "0.00", "2.95"},
		{"250.00", "0.00", "2.95"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.free, Format(free.ChargeFor(dec(tc.subtotal))), "free policy, subtotal %s", tc.subtotal)
		require.Equal(t, tc.floor, Format(floor.ChargeFor(dec(tc.subtotal))), "floor policy, subtotal %s", tc.subtotal)
	}
}

func TestChargeRequiresBasket(t *testing.T) {
	_, err := acmeDelivery(t, true).Charge(nil)
	require.ErrorIs(t, err, ErrMissingBasket)
}

func TestChargeEmptyBasket(t *testing.T) {
	b := acmeBasket(t)
	charge, err := b.delivery.Charge(b)
	require.NoError(t, err)
	require.True(t, charge.IsZero())
}

func TestEmptyTableIsFree(t *testing.T) {
	d, err := NewDelivery(nil, false)
	require.NoError(t, err)
	require.True(t, d.ChargeFor(dec("10")).IsZero())
}

func TestNewDeliveryRejectsBadTables(t *testing.T) {
	_, err := NewDelivery([]Tier{
		{Threshold: dec("90"), Charge: dec("2.95")},
		{Threshold: dec("50"), Charge: dec("4.95")},
	}, true)
	require.ErrorIs(t, err, ErrInvalidDeliveryTable)

	_, err = NewDelivery([]Tier{
		{Threshold: dec("50"), Charge: dec("4.95")},
		{Threshold: dec("50"), Charge: dec("2.95")},
	}, true)
	require.ErrorIs(t, err, ErrInvalidDeliveryTable)

	_, err = NewDelivery([]Tier{{Threshold: dec("50"), Charge: dec("-1")}}, true)
	require.ErrorIs(t, err, ErrInvalidDeliveryTable)
}

func TestNextSaving(t *testing.T) {
	free := acmeDelivery(t, true)

	saving, ok := free.NextSaving(dec("32.90"))
	require.True(t, ok)
	require.Equal(t, "17.10", Format(saving.SpendMore))
	require.Equal(t, "2.95", Format(saving.Charge))

	saving, ok = free.NextSaving(dec("60.00"))
	require.True(t, ok)
	require.Equal(t, "30.00", Format(saving.SpendMore))
	require.Equal(t, "0.00", Format(saving.Charge))

	_, ok = free.NextSaving(dec("95.00"))
	require.False(t, ok)

	_, ok = acmeDelivery(t, false).NextSaving(dec("60.00"))
	require.False(t, ok)
}
