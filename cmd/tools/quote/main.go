// Command quote prices a basket of product codes from the command line.
//
//	quote [-rules rules.yaml] [-no-offers] [-no-delivery] R01 R01 G01
//
// RULES_FILE, DELIVERY_TIERS, DELIVERY_FREE_ABOVE_TOP and OFFERS are read
// from the environment (or .env) exactly as the API server reads them.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/acme-checkout/internal/catalog"
	"github.com/noah-isme/acme-checkout/internal/config"
	"github.com/noah-isme/acme-checkout/internal/obs"
	"github.com/noah-isme/acme-checkout/internal/pricing"
	"github.com/noah-isme/acme-checkout/internal/rules"
)

type options struct {
	rulesFile  string
	overrides  rules.Overrides
	noOffers   bool
	noDelivery bool
	codes      []string
}

type output struct {
	Basket   map[string]int `json:"basket"`
	Subtotal string         `json:"subtotal"`
	Discount string         `json:"discount"`
	Delivery string         `json:"delivery"`
	Total    string         `json:"total"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "quote:", err)
		os.Exit(1)
	}
	logger := obs.NewLoggerTo(os.Stderr, cfg.Obs.LogFormat, cfg.Obs.LogLevel)

	opts, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse flags")
	}
	if err := run(os.Stdout, opts, logger); err != nil {
		logger.Fatal().Err(err).Msg("quote")
	}
}

// parseFlags starts from cfg's rule settings; -rules replaces the file only.
func parseFlags(args []string, cfg *config.Config) (options, error) {
	opts := options{
		rulesFile: cfg.RulesFile,
		overrides: rules.Overrides{
			Tiers:        cfg.DeliveryTiers,
			FreeAboveTop: cfg.DeliveryFreeAboveTop,
			Offers:       cfg.Offers,
		},
	}
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.StringVar(&opts.rulesFile, "rules", opts.rulesFile, "YAML rule set (products, delivery, offers)")
	fs.BoolVar(&opts.noOffers, "no-offers", false, "price without offers")
	fs.BoolVar(&opts.noDelivery, "no-delivery", false, "price without delivery")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.codes = fs.Args()
	return opts, nil
}

func run(w io.Writer, opts options, logger zerolog.Logger) error {
	set, err := rules.Load(opts.rulesFile, opts.overrides)
	if err != nil {
		return err
	}
	catalogue, _ := catalog.Build(set.Products, logger)
	delivery, err := pricing.NewDelivery(set.Tiers, set.FreeAboveTop)
	if err != nil {
		return err
	}
	if opts.noDelivery {
		delivery = nil
	}
	var engine *pricing.Engine
	if !opts.noOffers {
		engine = pricing.NewEngine(set.Offers, logger)
	}

	basket := pricing.NewBasket(catalogue, delivery, engine)
	for _, code := range opts.codes {
		basket.Add(code)
	}
	summary, err := pricing.Checkout(basket)
	if err != nil {
		return err
	}
	logger.Debug().Int("items", basket.Count()).Int("offers", len(summary.Offers)).Msg("priced basket")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{
		Basket:   map[string]int(summary.Counts),
		Subtotal: pricing.Format(summary.Subtotal),
		Discount: pricing.Format(summary.Discount),
		Delivery: pricing.Format(summary.Delivery),
		Total:    pricing.Format(summary.Total),
	}); err != nil {
		return fmt.Errorf("write quote: %w", err)
	}
	return nil
}

