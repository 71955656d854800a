package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/acme-checkout/internal/pricing"
)

const sampleRules = `
products:
  - code: R01
    title: Red Widget
    price: 32.95
  - code: B01
    title: Blue Widget
    price: "7.95"
delivery:
  tiers:
    - threshold: 40
      charge: 3.50
  free_above_top: false
offers:
  - name: blue-b2g2
    trigger: B01
    trigger_qty: 2
    benefit: B01
    benefit_qty: 2
    fraction: 1
`

func TestParse(t *testing.T) {
	set, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	require.Len(t, set.Products, 2)
	require.Equal(t, "32.95", set.Products[0].Price)
	require.Len(t, set.Tiers, 1)
	require.Equal(t, "3.5", set.Tiers[0].Charge.String())
	require.False(t, set.FreeAboveTop)
	require.Len(t, set.Offers, 1)
	require.Equal(t, "B01", set.Offers[0].BenefitCode)
	require.Equal(t, 2, set.Offers[0].BenefitQty)
	require.Equal(t, "1", set.Offers[0].Fraction.String())
}

func TestParseFallsBackToDefaults(t *testing.T) {
	set, err := Parse([]byte("delivery:\n  free_above_top: false\n"))
	require.NoError(t, err)
	require.Len(t, set.Products, 3)
	require.Len(t, set.Tiers, 2)
	require.False(t, set.FreeAboveTop)
	require.Len(t, set.Offers, 1)
}

func TestParseEmptyOfferListDisablesOffers(t *testing.T) {
	set, err := Parse([]byte("offers: []\n"))
	require.NoError(t, err)
	require.Empty(t, set.Offers)
}

func TestParseRejectsInvalidRules(t *testing.T) {
	_, err := Parse([]byte("delivery:\n  tiers:\n    - {threshold: 90, charge: 2.95}\n    - {threshold: 50, charge: 4.95}\n"))
	require.ErrorIs(t, err, pricing.ErrInvalidDeliveryTable)

	_, err = Parse([]byte("offers:\n  - {trigger: R01, trigger_qty: 0, benefit: R01, benefit_qty: 1, fraction: 0.5}\n"))
	require.ErrorIs(t, err, pricing.ErrInvalidOffer)

	_, err = Parse([]byte("offers:\n  - {trigger: R01, trigger_qty: 1, benefit: R01, benefit_qty: 1, fraction: half}\n"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o600))
	set, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, set.Products, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestOverrides(t *testing.T) {
	free := false
	set, err := Overrides{
		Tiers:        "40:3.50, 80:1.50",
		FreeAboveTop: &free,
		Offers:       "R01:1>R01:1@0.5, G01>B01@1",
	}.Apply(Default())
	require.NoError(t, err)
	require.Len(t, set.Tiers, 2)
	require.Equal(t, "80", set.Tiers[1].Threshold.String())
	require.False(t, set.FreeAboveTop)
	require.Len(t, set.Offers, 2)
	require.Equal(t, "G01", set.Offers[1].TriggerCode)
	require.Equal(t, 1, set.Offers[1].TriggerQty)
	require.Equal(t, "B01", set.Offers[1].BenefitCode)

	unchanged, err := Overrides{}.Apply(Default())
	require.NoError(t, err)
	require.Equal(t, Default().FreeAboveTop, unchanged.FreeAboveTop)
	require.Len(t, unchanged.Offers, 1)
}

func TestLoadAppliesOverrides(t *testing.T) {
	set, err := Load("", Overrides{Offers: "G01>B01@1"})
	require.NoError(t, err)
	require.Len(t, set.Products, len(Default().Products))
	require.Len(t, set.Offers, 1)
	require.Equal(t, "G01", set.Offers[0].TriggerCode)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o600))
	set, err = Load(path, Overrides{Tiers: "20:9.00"})
	require.NoError(t, err)
	require.Len(t, set.Products, 2)
	require.Len(t, set.Tiers, 1)
	require.Equal(t, "9", set.Tiers[0].Charge.String())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), Overrides{})
	require.Error(t, err)
	_, err = Load("", Overrides{Tiers: "bogus"})
	require.Error(t, err)
}

func TestParseTiersAndOffersErrors(t *testing.T) {
	_, err := ParseTiers("50-4.95")
	require.Error(t, err)
	_, err = ParseTiers("fifty:4.95")
	require.Error(t, err)
	_, err = ParseOffers("R01:1>R01:1")
	require.Error(t, err)
	_, err = ParseOffers("R01:1@0.5")
	require.Error(t, err)
	_, err = ParseOffers("R01:x>R01:1@0.5")
	require.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := Default().Fingerprint()
	require.Len(t, a, 12)
	require.Equal(t, a, Default().Fingerprint())

	changed := Default()
	changed.FreeAboveTop = false
	require.NotEqual(t, a, changed.Fingerprint())
}
