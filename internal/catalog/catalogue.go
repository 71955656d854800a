package catalog

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrDuplicateCode is returned when two definitions share a product code.
var ErrDuplicateCode = errors.New("product code already in catalogue")

// Catalogue is an in-memory, read-only product store keyed by code.
// It is safe for concurrent reads once built.
type Catalogue struct {
	products map[string]Product
	order    []string
}

// New builds a catalogue from already-validated products.
func New(products ...Product) (*Catalogue, error) {
	c := &Catalogue{products: make(map[string]Product, len(products))}
	for _, p := range products {
		if err := c.add(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Build validates each definition and assembles a catalogue. Invalid or duplicate
// definitions are logged and skipped so a bad record never takes checkout down; the
// skipped errors are returned for callers that want to report them.
func Build(defs []Definition, logger zerolog.Logger) (*Catalogue, []error) {
	c := &Catalogue{products: make(map[string]Product, len(defs))}
	var skipped []error
	for _, def := range defs {
		p, err := NewProduct(def)
		if err == nil {
			err = c.add(p)
		}
		if err != nil {
			title := def.Title
			if title == "" {
				title = "INVALID TITLE"
			}
			logger.Error().Err(err).Str("code", def.Code).Str("title", title).Msg("skip catalogue item")
			skipped = append(skipped, err)
		}
	}
	logger.Debug().Int("products", len(c.order)).Int("skipped", len(skipped)).Msg("catalogue built")
	return c, skipped
}

func (c *Catalogue) add(p Product) error {
	if _, exists := c.products[p.Code()]; exists {
		return fmt.Errorf("%s: %w", p.Code(), ErrDuplicateCode)
	}
	c.products[p.Code()] = p
	c.order = append(c.order, p.Code())
	return nil
}

// Get resolves a product by code.
func (c *Catalogue) Get(code string) (Product, error) {
	if c != nil {
		if p, ok := c.products[code]; ok {
			return p, nil
		}
	}
	return Product{}, &UnknownProductError{Code: code}
}

// List returns every product in the order it was added.
func (c *Catalogue) List() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.products[code])
	}
	return out
}

// Len reports the number of products held.
func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// DefaultDefinitions is the Acme Widget Co. range.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Code: "R01", Title: "Red Widget", Price: "32.95", Description: "Buy one, get one 50% off"},
		{Code: "G01", Title: "Green Widget", Price: "24.95"},
		{Code: "B01", Title: "Blue Widget", Price: "7.95"},
	}
}
