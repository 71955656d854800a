// Package rules loads the product range, delivery tiers and offer rules a
// checkout is priced against.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/acme-checkout/internal/catalog"
	"github.com/noah-isme/acme-checkout/internal/pricing"
)

// Set is a fully parsed rule set.
type Set struct {
	Products     []catalog.Definition
	Tiers        []pricing.Tier
	FreeAboveTop bool
	Offers       []pricing.OfferRule
}

type fileSet struct {
	Products []catalog.Definition `yaml:"products"`
	Delivery struct {
		Tiers []struct {
			Threshold string `yaml:"threshold"`
			Charge    string `yaml:"charge"`
		} `yaml:"tiers"`
		FreeAboveTop *bool `yaml:"free_above_top"`
	} `yaml:"delivery"`
	Offers []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Trigger     string `yaml:"trigger"`
		TriggerQty  int    `yaml:"trigger_qty"`
		Benefit     string `yaml:"benefit"`
		BenefitQty  int    `yaml:"benefit_qty"`
		Fraction    string `yaml:"fraction"`
	} `yaml:"offers"`
}

// Default returns the Acme Widget Co. rules: three widgets, delivery at 4.95 under
// 50 and 2.95 under 90, free from 90, and buy one red widget get the second half price.
func Default() Set {
	return Set{
		Products: catalog.DefaultDefinitions(),
		Tiers: []pricing.Tier{
			{Threshold: decimal.RequireFromString("50"), Charge: decimal.RequireFromString("4.95")},
			{Threshold: decimal.RequireFromString("90"), Charge: decimal.RequireFromString("2.95")},
		},
		FreeAboveTop: true,
		Offers: []pricing.OfferRule{{
			Name:        "red-bogohp",
			Description: "Buy one red widget, get the second half price",
			TriggerCode: "R01",
			TriggerQty:  1,
			BenefitCode: "R01",
			BenefitQty:  1,
			Fraction:    decimal.RequireFromString("0.5"),
		}},
	}
}

// LoadFile reads a YAML rule set from disk.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read rules: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a YAML rule set. Sections left out fall back to Default.
func Parse(data []byte) (Set, error) {
	var raw fileSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Set{}, fmt.Errorf("decode rules: %w", err)
	}
	set := Default()
	if len(raw.Products) > 0 {
		set.Products = raw.Products
	}
	if len(raw.Delivery.Tiers) > 0 {
		tiers := make([]pricing.Tier, 0, len(raw.Delivery.Tiers))
		for i, t := range raw.Delivery.Tiers {
			tier, err := parseTier(t.Threshold, t.Charge)
			if err != nil {
				return Set{}, fmt.Errorf("delivery tier %d: %w", i, err)
			}
			tiers = append(tiers, tier)
		}
		set.Tiers = tiers
	}
	if raw.Delivery.FreeAboveTop != nil {
		set.FreeAboveTop = *raw.Delivery.FreeAboveTop
	}
	if raw.Offers != nil {
		offers := make([]pricing.OfferRule, 0, len(raw.Offers))
		for i, o := range raw.Offers {
			fraction, err := decimal.NewFromString(strings.TrimSpace(o.Fraction))
			if err != nil {
				return Set{}, fmt.Errorf("offer %d: fraction %q: %w", i, o.Fraction, err)
			}
			offers = append(offers, pricing.OfferRule{
				Name:        o.Name,
				Description: o.Description,
				TriggerCode: strings.TrimSpace(o.Trigger),
				TriggerQty:  o.TriggerQty,
				BenefitCode: strings.TrimSpace(o.Benefit),
				BenefitQty:  o.BenefitQty,
				Fraction:    fraction,
			})
		}
		set.Offers = offers
	}
	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}

// Overrides replaces parts of a set from flat configuration strings. Tiers use
// "50:4.95,90:2.95"; offers use "R01:1>R01:1@0.5,B01:2>B01:2@1".
type Overrides struct {
	Tiers        string
	FreeAboveTop *bool
	Offers       string
}

// Apply returns a copy of s with the non-empty overrides applied.
func (o Overrides) Apply(s Set) (Set, error) {
	if strings.TrimSpace(o.Tiers) != "" {
		tiers, err := ParseTiers(o.Tiers)
		if err != nil {
			return Set{}, err
		}
		s.Tiers = tiers
	}
	if o.FreeAboveTop != nil {
		s.FreeAboveTop = *o.FreeAboveTop
	}
	if strings.TrimSpace(o.Offers) != "" {
		offers, err := ParseOffers(o.Offers)
		if err != nil {
			return Set{}, err
		}
		s.Offers = offers
	}
	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Load reads the rule file at path, or the defaults when path is empty, and
// applies o on top.
func Load(path string, o Overrides) (Set, error) {
	set := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return Set{}, err
		}
		set = loaded
	}
	return o.Apply(set)
}

// Validate checks the delivery table and every offer rule.
func (s Set) Validate() error {
	if _, err := pricing.NewDelivery(s.Tiers, s.FreeAboveTop); err != nil {
		return err
	}
	for _, o := range s.Offers {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint is a short stable digest of the set, used to namespace cached quotes.
func (s Set) Fingerprint() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

// ParseTiers reads "threshold:charge" pairs separated by commas.
func ParseTiers(value string) ([]pricing.Tier, error) {
	var tiers []pricing.Tier
	for _, part := range splitList(value) {
		threshold, charge, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("delivery tier %q: want threshold:charge", part)
		}
		tier, err := parseTier(threshold, charge)
		if err != nil {
			return nil, fmt.Errorf("delivery tier %q: %w", part, err)
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

// ParseOffers reads "TRIGGER:qty>BENEFIT:qty@fraction" rules separated by commas.
func ParseOffers(value string) ([]pricing.OfferRule, error) {
	var offers []pricing.OfferRule
	for _, part := range splitList(value) {
		rule, err := parseOffer(part)
		if err != nil {
			return nil, fmt.Errorf("offer %q: %w", part, err)
		}
		offers = append(offers, rule)
	}
	return offers, nil
}

func parseOffer(value string) (pricing.OfferRule, error) {
	body, fraction, ok := strings.Cut(value, "@")
	if !ok {
		return pricing.OfferRule{}, errors.New("missing @fraction")
	}
	trigger, benefit, ok := strings.Cut(body, ">")
	if !ok {
		return pricing.OfferRule{}, errors.New("missing >benefit")
	}
	triggerCode, triggerQty, err := parseCodeQty(trigger)
	if err != nil {
		return pricing.OfferRule{}, err
	}
	benefitCode, benefitQty, err := parseCodeQty(benefit)
	if err != nil {
		return pricing.OfferRule{}, err
	}
	f, err := decimal.NewFromString(strings.TrimSpace(fraction))
	if err != nil {
		return pricing.OfferRule{}, fmt.Errorf("fraction: %w", err)
	}
	return pricing.OfferRule{
		TriggerCode: triggerCode,
		TriggerQty:  triggerQty,
		BenefitCode: benefitCode,
		BenefitQty:  benefitQty,
		Fraction:    f,
	}, nil
}

func parseCodeQty(value string) (string, int, error) {
	code, qty, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return strings.TrimSpace(value), 1, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return "", 0, fmt.Errorf("quantity %q: %w", qty, err)
	}
	return strings.TrimSpace(code), n, nil
}

func parseTier(threshold, charge string) (pricing.Tier, error) {
	t, err := decimal.NewFromString(strings.TrimSpace(threshold))
	if err != nil {
		return pricing.Tier{}, fmt.Errorf("threshold %q: %w", threshold, err)
	}
	c, err := decimal.NewFromString(strings.TrimSpace(charge))
	if err != nil {
		return pricing.Tier{}, fmt.Errorf("charge %q: %w", charge, err)
	}
	return pricing.Tier{Threshold: t, Charge: c}, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
