package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/acme-checkout/internal/catalog"
	"github.com/noah-isme/acme-checkout/internal/checkout"
	"github.com/noah-isme/acme-checkout/internal/config"
	"github.com/noah-isme/acme-checkout/internal/health"
	"github.com/noah-isme/acme-checkout/internal/obs"
	"github.com/noah-isme/acme-checkout/internal/pricing"
	"github.com/noah-isme/acme-checkout/internal/ratelimit"
	"github.com/noah-isme/acme-checkout/internal/resilience"
	"github.com/noah-isme/acme-checkout/internal/rules"
)

// Dependencies holds the shared, immutable collaborators built at startup.
type Dependencies struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Rules       rules.Set
	Catalogue   *catalog.Catalogue
	Delivery    *pricing.Delivery
	Offers      *pricing.Engine
	Redis       *redis.Client
	Validator   *validator.Validate
	Limiter     ratelimit.Limiter
	Checkout    *checkout.Service
	HTTPMetrics *obs.HTTPMetrics

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

var _ health.Checker = (*Dependencies)(nil)

// LoadRules reads the rule file named by cfg, or the defaults, and applies
// environment overrides on top.
func LoadRules(cfg *config.Config) (rules.Set, error) {
	return rules.Load(cfg.RulesFile, rules.Overrides{
		Tiers:        cfg.DeliveryTiers,
		FreeAboveTop: cfg.DeliveryFreeAboveTop,
		Offers:       cfg.Offers,
	})
}

// Build wires every dependency described by cfg. Redis is optional; without it
// quotes are not cached, idempotency is off and rate limits are held in memory.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	set, err := LoadRules(cfg)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	catalogue, skipped := catalog.Build(set.Products, logger)
	if catalogue.Len() == 0 {
		return nil, fmt.Errorf("catalogue is empty (%d definitions skipped)", len(skipped))
	}
	delivery, err := pricing.NewDelivery(set.Tiers, set.FreeAboveTop)
	if err != nil {
		return nil, err
	}
	offers := pricing.NewEngine(set.Offers, logger)

	d := &Dependencies{
		Config:         cfg,
		Logger:         logger,
		Rules:          set,
		Catalogue:      catalogue,
		Delivery:       delivery,
		Offers:         offers,
		Validator:      validator.New(validator.WithRequiredStructEnabled()),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}

	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d.Redis = client
	}

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)
		d.HTTPMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	switch cfg.RateLimitStrategy {
	case "fixed":
		fixed, err := ratelimit.NewFixed(d.Redis, "ratelimit")
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.Limiter = fixed
	default:
		if d.Redis != nil {
			d.Limiter = ratelimit.Sliding{Client: d.Redis, Prefix: "ratelimit:"}
		} else {
			// the sliding window needs redis sorted sets
			fixed, _ := ratelimit.NewFixed(nil, "ratelimit")
			d.Limiter = fixed
		}
	}

	cacheBreaker := resilience.NewBreaker(resilience.Options{
		Target:       "quote_cache",
		MinRequests:  cfg.BreakerMinRequests,
		FailureRatio: cfg.BreakerFailureRatio,
		OpenFor:      cfg.BreakerOpenFor,
		Logger:       logger,
	})
	d.Checkout = &checkout.Service{
		Catalogue: catalogue,
		Delivery:  delivery,
		Offers:    offers,
		Currency:  cfg.CurrencyCode,
		Cache:     checkout.NewCache(d.Redis, cfg.QuoteCacheTTL, "rules-"+set.Fingerprint()).WithBreaker(cacheBreaker),
		Logger:    logger,

		TracerProvider: d.TracerProvider,
		MeterProvider:  d.MeterProvider,
	}

	logger.Info().
		Int("products", catalogue.Len()).
		Int("skipped_products", len(skipped)).
		Int("delivery_tiers", len(set.Tiers)).
		Int("offers", len(set.Offers)).
		Bool("redis", d.Redis != nil).
		Str("rate_limit", cfg.RateLimitStrategy).
		Msg("dependencies ready")
	return d, nil
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if cfg.Obs.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis tracing: %w", err)
		}
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// PingRedis reports redis reachability, or health.ErrDisabled without redis.
func (d *Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return health.ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// CatalogueReady fails when no product can be priced.
func (d *Dependencies) CatalogueReady() error {
	if d.Catalogue == nil || d.Catalogue.Len() == 0 {
		return errors.New("catalogue empty")
	}
	return nil
}

// Close releases network resources.
func (d *Dependencies) Close() error {
	if d == nil || d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}
