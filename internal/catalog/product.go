package catalog

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// MaxCodeLength bounds the product reference code.
	MaxCodeLength = 10
	// MaxTitleLength bounds the display title.
	MaxTitleLength = 30
	// MaxDescriptionLength bounds the optional description.
	MaxDescriptionLength = 100
	// PriceScale is the number of decimal places a product price may carry.
	PriceScale = 2
)

// ErrUnknownProduct is matched by UnknownProductError through errors.Is.
var ErrUnknownProduct = errors.New("unknown product")

// UnknownProductError reports a code missing from the catalogue.
type UnknownProductError struct {
	Code string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("unknown product %q", e.Code)
}

// Is lets callers match with errors.Is(err, ErrUnknownProduct).
func (e *UnknownProductError) Is(target error) bool {
	return target == ErrUnknownProduct
}

// InvalidProductDefinitionError is returned by NewProduct when a field breaks its bounds.
type InvalidProductDefinitionError struct {
	Code   string
	Field  string
	Reason string
}

func (e *InvalidProductDefinitionError) Error() string {
	code := e.Code
	if code == "" {
		code = "?"
	}
	return fmt.Sprintf("invalid product %s: %s %s", code, e.Field, e.Reason)
}

// Product is an immutable catalogue record.
type Product struct {
	code        string
	title       string
	price       decimal.Decimal
	description string
}

// Definition is the raw, unvalidated form of a product as read from config.
type Definition struct {
	Code        string `yaml:"code" json:"code"`
	Title       string `yaml:"title" json:"title"`
	Price       string `yaml:"price" json:"price"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// NewProduct validates a definition and returns the product it describes.
// Price is taken as a string so no binary float ever touches it.
func NewProduct(def Definition) (Product, error) {
	code := strings.TrimSpace(def.Code)
	title := strings.TrimSpace(def.Title)
	invalid := func(field, reason string) error {
		return &InvalidProductDefinitionError{Code: code, Field: field, Reason: reason}
	}

	if code == "" {
		return Product{}, invalid("code", "is required")
	}
	if utf8.RuneCountInString(code) > MaxCodeLength {
		return Product{}, invalid("code", fmt.Sprintf("cannot be longer than %d characters", MaxCodeLength))
	}
	if title == "" {
		return Product{}, invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return Product{}, invalid("title", fmt.Sprintf("cannot be longer than %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(def.Description) > MaxDescriptionLength {
		return Product{}, invalid("description", fmt.Sprintf("cannot be longer than %d characters", MaxDescriptionLength))
	}
	price, err := decimal.NewFromString(strings.TrimSpace(def.Price))
	if err != nil {
		return Product{}, invalid("price", "must be a numeric value")
	}
	if price.IsNegative() {
		return Product{}, invalid("price", "cannot be negative")
	}
	// 50.455 would silently round at money scale.
	if !price.Equal(price.Truncate(PriceScale)) {
		return Product{}, invalid("price", fmt.Sprintf("cannot have more than %d decimal places", PriceScale))
	}

	return Product{
		code:        code,
		title:       title,
		price:       price.Truncate(PriceScale),
		description: def.Description,
	}, nil
}

// MustProduct is NewProduct for fixtures; it panics on an invalid definition.
func MustProduct(code, title, price, description string) Product {
	p, err := NewProduct(Definition{Code: code, Title: title, Price: price, Description: description})
	if err != nil {
		panic(err)
	}
	return p
}

func (p Product) Code() string { return p.code }

func (p Product) Title() string { return p.title }

func (p Product) Price() decimal.Decimal { return p.price }

func (p Product) Description() string { return p.description }

// View is the JSON representation of a product.
type View struct {
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Price       string  `json:"price"`
	Description *string `json:"description,omitempty"`
}

// View renders the product with its price as a fixed two-place string.
func (p Product) View() View {
	v := View{Code: p.code, Title: p.title, Price: p.price.StringFixed(PriceScale)}
	if p.description != "" {
		d := p.description
		v.Description = &d
	}
	return v
}
