package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutQuotesTotal counts checkout quotes by result.
	CheckoutQuotesTotal *prometheus.CounterVec
	// OfferApplicationsTotal counts how often each offer was applied to a basket.
	OfferApplicationsTotal *prometheus.CounterVec
	// BasketItems observes the number of items in quoted baskets.
	BasketItems prometheus.Histogram
	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers checkout Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_quotes_total",
			Help:      "Count of checkout quotes by outcome.",
		}, []string{"result"})
		OfferApplicationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_applications_total",
			Help:      "Count of offer applications by offer.",
		}, []string{"offer"})
		BasketItems = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_basket_items",
			Help:      "Number of items in quoted baskets.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 500},
		})
		RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		})

		mustRegisterCollector(reg, CheckoutQuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutQuotesTotal = v
			}
		})
		mustRegisterCollector(reg, OfferApplicationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OfferApplicationsTotal = v
			}
		})
		mustRegisterCollector(reg, BasketItems, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				BasketItems = v
			}
		})
		mustRegisterCollector(reg, RateLimitedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				RateLimitedTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
