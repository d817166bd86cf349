package price

import (
	"time"

	"github.com/shopspring/decimal"
)

// FallbackSource is the Source name carried by a degraded quote.
const FallbackSource = "fallback"

// Quote is a single SOL/USD price observation.
type Quote struct {
	Price      decimal.Decimal
	Change24h  decimal.Decimal
	Source     string
	ObservedAt time.Time

	// Degraded is set only on the fixed fallback quote used when every
	// source failed.
	Degraded bool
}

// Valid reports whether the quote carries a usable price.
func (q Quote) Valid() bool {
	return q.Price.IsPositive()
}
