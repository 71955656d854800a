package checkout

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/acme-checkout/internal/catalog"
	"github.com/noah-isme/acme-checkout/internal/common"
	"github.com/noah-isme/acme-checkout/internal/obs"
	"github.com/noah-isme/acme-checkout/internal/pricing"
	"github.com/noah-isme/acme-checkout/internal/resilience"
)

// Input is a basket to price. Items and Codes may be combined; Codes keep their order.
type Input struct {
	Items map[string]int `json:"items" validate:"omitempty,max=50,dive,keys,required,max=10,endkeys,min=1,max=100"`
	Codes []string       `json:"codes" validate:"omitempty,max=500,dive,required,max=10"`
}

// Limits on a single quote request. The validate tags on Input mirror them.
const (
	MaxLineItems = 50
	MaxCodes     = 500
	MaxQuantity  = 100
)

// check enforces Input's limits for callers that bypass the HTTP validator.
func (in Input) check() error {
	fields := map[string]string{}
	if len(in.Items) > MaxLineItems {
		fields["items"] = "max"
	}
	if len(in.Codes) > MaxCodes {
		fields["codes"] = "max"
	}
	for code, qty := range in.Items {
		switch {
		case code == "":
			fields["items"] = "required"
		case qty < 1:
			fields["items["+code+"]"] = "min"
		case qty > MaxQuantity:
			fields["items["+code+"]"] = "max"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	appErr := common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, errInvalidInput)
	appErr.Details = map[string]any{"fields": fields}
	return appErr
}

// AppliedOffer describes one offer that claimed items.
type AppliedOffer struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Applications int    `json:"applications"`
	Discount     string `json:"discount"`
}

// DeliverySaving tells the customer how to lower their delivery charge.
type DeliverySaving struct {
	SpendMore string `json:"spendMore"`
	Charge    string `json:"charge"`
}

// Quote is the priced basket returned to callers. Money is fixed two-place strings.
type Quote struct {
	QuoteID            string          `json:"quoteId"`
	Basket             map[string]int  `json:"basket"`
	Subtotal           string          `json:"subtotal"`
	Discount           string          `json:"discount"`
	Delivery           string          `json:"delivery"`
	Total              string          `json:"total"`
	Currency           string          `json:"currency"`
	Offers             []AppliedOffer  `json:"offers"`
	NextDeliverySaving *DeliverySaving `json:"nextDeliverySaving,omitempty"`
}

// Service prices baskets against a fixed catalogue and rule set. Every call builds
// its own basket and offers so the service is safe for concurrent use.
type Service struct {
	Catalogue *catalog.Catalogue
	Delivery  *pricing.Delivery
	Offers    *pricing.Engine
	Currency  string
	Cache     *Cache
	Logger    zerolog.Logger
	NewID     func() string

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	quotesOnce sync.Once
	quotes     metric.Int64Counter
}

// ErrNotConfigured is returned when the service is missing a collaborator.
var ErrNotConfigured = errors.New("checkout service not configured")

var errInvalidInput = errors.New("basket exceeds quote limits")

// Quote prices the basket described by in.
func (s *Service) Quote(ctx context.Context, in Input) (Quote, error) {
	if s == nil || s.Catalogue == nil || s.Delivery == nil || s.Offers == nil {
		return Quote{}, ErrNotConfigured
	}
	if err := in.check(); err != nil {
		return Quote{}, err
	}
	ctx, span := s.tracer().Start(ctx, "checkout.quote")
	defer span.End()

	basket := pricing.NewBasket(s.Catalogue, s.Delivery, s.Offers)
	for _, code := range in.Codes {
		basket.Add(code)
	}
	basket.AddCounts(pricing.ItemCounts(in.Items))
	counts := basket.ItemCounts()
	span.SetAttributes(attribute.Int("checkout.items", basket.Count()))
	if obs.BasketItems != nil {
		obs.BasketItems.Observe(float64(basket.Count()))
	}

	quote, hit := s.cached(ctx, counts)
	if !hit {
		summary, err := pricing.Checkout(basket)
		if err != nil {
			s.record(ctx, "error")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Quote{}, translate(err)
		}
		quote = s.render(summary)
		if s.Cache != nil && len(counts) > 0 {
			if err := s.Cache.SetJSON(ctx, quoteKey(counts), quote); err != nil && !errors.Is(err, resilience.ErrOpenCircuit) {
				s.Logger.Warn().Err(err).Msg("cache quote")
			}
		}
		for _, o := range summary.Offers {
			if obs.OfferApplicationsTotal != nil {
				obs.OfferApplicationsTotal.WithLabelValues(o.Rule.Label()).Add(float64(o.Applications))
			}
		}
	}
	quote.QuoteID = s.newID()
	span.SetAttributes(attribute.String("checkout.total", quote.Total), attribute.Bool("checkout.cached", hit))
	s.record(ctx, "ok")
	s.Logger.Debug().
		Str("quote_id", quote.QuoteID).
		Int("items", basket.Count()).
		Str("total", quote.Total).
		Bool("cached", hit).
		Msg("checkout quote")
	return quote, nil
}

func (s *Service) cached(ctx context.Context, counts pricing.ItemCounts) (Quote, bool) {
	if s.Cache == nil || len(counts) == 0 {
		return Quote{}, false
	}
	var q Quote
	ok, err := s.Cache.GetJSON(ctx, quoteKey(counts), &q)
	if err != nil {
		if !errors.Is(err, resilience.ErrOpenCircuit) {
			s.Logger.Warn().Err(err).Msg("read cached quote")
		}
		return Quote{}, false
	}
	return q, ok
}

func (s *Service) render(summary pricing.Summary) Quote {
	q := Quote{
		Basket:   map[string]int(summary.Counts),
		Subtotal: pricing.Format(summary.Subtotal),
		Discount: pricing.Format(summary.Discount),
		Delivery: pricing.Format(summary.Delivery),
		Total:    pricing.Format(summary.Total),
		Currency: s.Currency,
		Offers:   make([]AppliedOffer, 0, len(summary.Offers)),
	}
	for _, o := range summary.Offers {
		q.Offers = append(q.Offers, AppliedOffer{
			Name:         o.Rule.Label(),
			Description:  o.Rule.Description,
			Applications: o.Applications,
			Discount:     o.Discount.StringFixed(pricing.OfferScale),
		})
	}
	if summary.NextSaving != nil {
		q.NextDeliverySaving = &DeliverySaving{
			SpendMore: pricing.Format(summary.NextSaving.SpendMore),
			Charge:    pricing.Format(summary.NextSaving.Charge),
		}
	}
	return q
}

func (s *Service) record(ctx context.Context, result string) {
	if obs.CheckoutQuotesTotal != nil {
		obs.CheckoutQuotesTotal.WithLabelValues(result).Inc()
	}
	s.quotesOnce.Do(func() {
		counter, err := s.meter().Int64Counter("checkout.quotes",
			metric.WithDescription("Checkout quotes computed, by result."))
		if err != nil {
			s.Logger.Warn().Err(err).Msg("create quote counter")
			return
		}
		s.quotes = counter
	})
	if s.quotes == nil {
		return
	}
	s.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (s *Service) tracer() trace.Tracer {
	if s.TracerProvider != nil {
		return s.TracerProvider.Tracer("checkout")
	}
	return otel.Tracer("checkout")
}

func (s *Service) meter() metric.Meter {
	if s.MeterProvider != nil {
		return s.MeterProvider.Meter("checkout")
	}
	return otel.Meter("checkout")
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func translate(err error) error {
	var unknown *catalog.UnknownProductError
	switch {
	case errors.As(err, &unknown):
		appErr := common.NewAppError("UNKNOWN_PRODUCT", "unknown product code", http.StatusUnprocessableEntity, err)
		appErr.Details = map[string]any{"code": unknown.Code}
		return appErr
	case errors.Is(err, pricing.ErrMissingBasket):
		return common.NewAppError("INTERNAL", "pricing not configured", http.StatusInternalServerError, err)
	default:
		return err
	}
}

// sortedCodes gives a canonical ordering for cache keys.
func sortedCodes(counts pricing.ItemCounts) []string {
	out := make([]string, 0, len(counts))
	for code := range counts {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
