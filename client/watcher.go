package client

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultPriceInterval is how often the watcher refreshes the quote.
const DefaultPriceInterval = 5 * time.Second

// PriceFetcher fetches the live SOL/USD quote.
type PriceFetcher interface {
	Price(ctx context.Context) (*Price, error)
}

// PriceWatcher polls the quote on a fixed interval and keeps the last one.
type PriceWatcher struct {
	fetcher  PriceFetcher
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	latest  *Price
	lastErr error
}

// NewPriceWatcher creates a watcher. A non-positive interval uses DefaultPriceInterval.
func NewPriceWatcher(fetcher PriceFetcher, interval time.Duration, logger *slog.Logger) *PriceWatcher {
	if interval <= 0 {
		interval = DefaultPriceInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &PriceWatcher{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger.With("component", "price_watcher"),
	}
}

// Run fetches immediately and then on every tick until ctx is done, calling
// fn (if non-nil) with each result. A failed fetch keeps the previous quote.
func (w *PriceWatcher) Run(ctx context.Context, fn func(*Price, error)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx, fn)
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("price watcher stopped")
			return
		case <-ticker.C:
			w.refresh(ctx, fn)
		}
	}
}

func (w *PriceWatcher) refresh(ctx context.Context, fn func(*Price, error)) {
	p, err := w.fetcher.Price(ctx)
	if ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	if err != nil {
		w.lastErr = err
	} else {
		w.latest = p
		w.lastErr = nil
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("price refresh failed", "error", err)
	}
	if fn != nil {
		fn(p, err)
	}
}

// Latest returns the most recent quote (nil before the first success) and
// the error of the most recent fetch.
func (w *PriceWatcher) Latest() (*Price, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest, w.lastErr
}
