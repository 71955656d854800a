package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/acme-checkout/internal/catalog"
	"github.com/noah-isme/acme-checkout/internal/config"
)

func quote(t *testing.T, args ...string) output {
	t.Helper()
	return quoteWith(t, &config.Config{}, args...)
}

func quoteWith(t *testing.T, cfg *config.Config, args ...string) output {
	t.Helper()
	opts, err := parseFlags(args, cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, run(&buf, opts, zerolog.Nop()))
	var out output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestQuoteDefaults(t *testing.T) {
	out := quote(t, "R01", "G01")
	require.Equal(t, "57.90", out.Subtotal)
	require.Equal(t, "2.95", out.Delivery)
	require.Equal(t, "60.85", out.Total)
	require.Equal(t, map[string]int{"R01": 1, "G01": 1}, out.Basket)
}

func TestQuoteFlags(t *testing.T) {
	out := quote(t, "-no-offers", "R01", "R01")
	require.Equal(t, "0.00", out.Discount)
	require.Equal(t, "68.85", out.Total)

	out = quote(t, "-no-delivery", "R01", "R01")
	require.Equal(t, "0.00", out.Delivery)
	require.Equal(t, "49.42", out.Total)
}

func TestQuoteRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("offers: []\ndelivery:\n  tiers:\n    - {threshold: 10, charge: 1.00}\n"), 0o600))
	out := quote(t, "-rules", path, "R01", "R01")
	require.Equal(t, "0.00", out.Discount)
	require.Equal(t, "0.00", out.Delivery)
	require.Equal(t, "65.90", out.Total)
}

func TestQuoteEnvironmentOverrides(t *testing.T) {
	free := false
	cfg := &config.Config{DeliveryTiers: "200:1.00", DeliveryFreeAboveTop: &free, Offers: "G01>B01@1"}
	out := quoteWith(t, cfg, "G01", "B01", "R01", "R01")
	require.Equal(t, "98.80", out.Subtotal)
	require.Equal(t, "7.95", out.Discount)
	require.Equal(t, "1.00", out.Delivery)
	require.Equal(t, "91.85", out.Total)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("offers: []\n"), 0o600))
	cfg = &config.Config{RulesFile: path, DeliveryTiers: "100:4.00"}
	out = quoteWith(t, cfg, "R01", "R01")
	require.Equal(t, "0.00", out.Discount)
	require.Equal(t, "4.00", out.Delivery)
	require.Equal(t, "69.90", out.Total)

	opts, err := parseFlags([]string{"R01"}, &config.Config{Offers: "nonsense"})
	require.NoError(t, err)
	require.Error(t, run(&bytes.Buffer{}, opts, zerolog.Nop()))
}

func TestQuoteUnknownProduct(t *testing.T) {
	opts, err := parseFlags([]string{"Z99"}, &config.Config{})
	require.NoError(t, err)
	err = run(&bytes.Buffer{}, opts, zerolog.Nop())
	require.ErrorIs(t, err, catalog.ErrUnknownProduct)
}
