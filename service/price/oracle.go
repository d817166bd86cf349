package price

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/presale/service/metrics"
	"github.com/shopspring/decimal"
)

// ErrAllSourcesUnavailable is returned when every source failed or returned
// a non-positive price.
var ErrAllSourcesUnavailable = errors.New("all price sources unavailable")

// Oracle queries sources in a fixed order and returns the first usable quote.
// It never caches and never retries a source within one call.
type Oracle struct {
	sources  []Source
	fallback decimal.Decimal
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewOracle creates an oracle over sources. fallback is the documented price
// used by QuoteOrFallback in degraded mode. If m is nil, no metrics are recorded.
func NewOracle(sources []Source, fallback decimal.Decimal, m *metrics.Metrics, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		sources:  sources,
		fallback: fallback,
		metrics:  m,
		logger:   logger.With("component", "price_oracle"),
		now:      time.Now,
	}
}

// Quote returns the first quote with a positive price, or ErrAllSourcesUnavailable.
func (o *Oracle) Quote(ctx context.Context) (Quote, error) {
	var errs []error

	for _, src := range o.sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		q, err := src.Fetch(ctx)
		duration := time.Since(start).Seconds()

		if err == nil && !q.Valid() {
			err = fmt.Errorf("non-positive price %s", q.Price)
		}

		if err != nil {
			o.logger.WarnContext(ctx, "price source failed",
				"source", src.Name(),
				"duration_seconds", duration,
				"error", err,
			)
			if o.metrics != nil {
				o.metrics.RecordPriceSourceAttempt(src.Name(), "error", duration)
			}
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}

		if o.metrics != nil {
			o.metrics.RecordPriceSourceAttempt(src.Name(), "success", duration)
			o.metrics.RecordQuotePrice(src.Name(), q.Price.InexactFloat64())
		}
		o.logger.DebugContext(ctx, "price quote fetched",
			"source", q.Source,
			"price", q.Price.String(),
			"change_24h", q.Change24h.String(),
		)
		return q, nil
	}

	if len(errs) == 0 {
		return Quote{}, ErrAllSourcesUnavailable
	}
	return Quote{}, fmt.Errorf("%w: %w", ErrAllSourcesUnavailable, errors.Join(errs...))
}

// QuoteOrFallback returns a live quote, or the fixed fallback price flagged as
// Degraded when every source failed.
func (o *Oracle) QuoteOrFallback(ctx context.Context) Quote {
	q, err := o.Quote(ctx)
	if err == nil {
		return q
	}

	o.logger.WarnContext(ctx, "using fallback SOL price",
		"fallback_price", o.fallback.String(),
		"error", err,
	)
	if o.metrics != nil {
		o.metrics.RecordPriceFallback()
	}

	return Quote{
		Price:      o.fallback,
		Change24h:  decimal.Zero,
		Source:     FallbackSource,
		ObservedAt: o.now().UTC(),
		Degraded:   true,
	}
}

// Sources returns the configured source names in priority order.
func (o *Oracle) Sources() []string {
	names := make([]string, len(o.sources))
	for i, s := range o.sources {
		names[i] = s.Name()
	}
	return names
}
