package pricing

import "errors"

var (
	// ErrMissingBasket means a calculator was invoked without a basket. It indicates a wiring bug.
	ErrMissingBasket = errors.New("pricing: no basket provided")
	// ErrInvalidOffer is returned for an offer rule that cannot be evaluated.
	ErrInvalidOffer = errors.New("pricing: invalid offer rule")
	// ErrInvalidDeliveryTable is returned when tiers are unordered or negative.
	ErrInvalidDeliveryTable = errors.New("pricing: invalid delivery table")

	errNoCatalogue = errors.New("pricing: basket has no catalogue")
)
