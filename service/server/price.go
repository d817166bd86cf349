package server

import (
	"log/slog"
	"net/http"
	"time"
)

type priceData struct {
	Price       float64   `json:"price"`
	Change24h   float64   `json:"change24h"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type priceResponse struct {
	Success bool       `json:"success"`
	Data    *priceData `json:"data"`
	Error   string     `json:"error,omitempty"`
}

// handleSOLPrice returns a handler that reports the live SOL/USD quote.
// GET /api/sol-price
func handleSOLPrice(oracle QuoteSource, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := oracle.Quote(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to fetch SOL price", "error", err)
			writeJSON(w, priceResponse{Success: false, Error: err.Error()}, http.StatusInternalServerError)
			return
		}

		writeJSON(w, priceResponse{
			Success: true,
			Data: &priceData{
				Price:       q.Price.InexactFloat64(),
				Change24h:   q.Change24h.InexactFloat64(),
				Source:      q.Source,
				LastUpdated: q.ObservedAt.UTC(),
			},
		}, http.StatusOK)
	})
}

type legacyPriceResponse struct {
	Price          float64   `json:"price"`
	PriceChange24h float64   `json:"priceChange24h"`
	LastUpdated    time.Time `json:"lastUpdated"`
	Source         string    `json:"source"`
}

// handleLegacySOLPrice returns a handler for the deprecated price shape.
// GET /api/solana-price
func handleLegacySOLPrice(oracle QuoteSource, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Deprecation", "true")
		w.Header().Set("Link", `</api/sol-price>; rel="successor-version"`)

		q, err := oracle.Quote(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to fetch Solana price", "error", err)
			writeJSON(w, map[string]string{
				"error":   "Failed to fetch Solana price",
				"message": err.Error(),
			}, http.StatusInternalServerError)
			return
		}

		writeJSON(w, legacyPriceResponse{
			Price:          q.Price.InexactFloat64(),
			PriceChange24h: q.Change24h.InexactFloat64(),
			LastUpdated:    q.ObservedAt.UTC(),
			Source:         q.Source,
		}, http.StatusOK)
	})
}
