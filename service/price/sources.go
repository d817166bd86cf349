package price

import (
	"fmt"
	"net/http"
	"time"
)

// Source names.
const (
	SourceBinance       = "binance"
	SourceCoinLore      = "coinlore"
	SourceCryptoCompare = "cryptocompare"
	SourceCoinGecko     = "coingecko"
)

// DefaultSourceConfigs returns the fixed priority list of SOL/USD feeds.
func DefaultSourceConfigs(timeout time.Duration) []SourceConfig {
	return []SourceConfig{
		{
			Name:       SourceBinance,
			URL:        "https://api.binance.com/api/v3/ticker/24hr?symbol=SOLUSDT",
			PriceExpr:  ".lastPrice",
			ChangeExpr: ".priceChangePercent",
			Timeout:    timeout,
		},
		{
			// CoinLore id 48543 is SOL.
			Name:       SourceCoinLore,
			URL:        "https://api.coinlore.net/api/ticker/?id=48543",
			PriceExpr:  ".[0].price_usd",
			ChangeExpr: ".[0].percent_change_24h",
			Timeout:    timeout,
		},
		{
			Name:      SourceCryptoCompare,
			URL:       "https://min-api.cryptocompare.com/data/price?fsym=SOL&tsyms=USD",
			PriceExpr: ".USD",
			Timeout:   timeout,
		},
		{
			Name:           SourceCoinGecko,
			URL:            "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd&include_24hr_change=true&include_last_updated_at=true",
			PriceExpr:      ".solana.usd",
			ChangeExpr:     ".solana.usd_24h_change",
			ObservedAtExpr: ".solana.last_updated_at",
			Timeout:        timeout,
		},
	}
}

// NewSources builds HTTP sources from configs, in order.
func NewSources(configs []SourceConfig, httpClient *http.Client) ([]Source, error) {
	sources := make([]Source, 0, len(configs))
	for _, cfg := range configs {
		s, err := NewHTTPSource(cfg, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to build price source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// NewDefaultSources builds the default priority list.
func NewDefaultSources(timeout time.Duration, httpClient *http.Client) ([]Source, error) {
	return NewSources(DefaultSourceConfigs(timeout), httpClient)
}

// LegacySourceConfigs returns the order served by the deprecated quote route:
// CoinGecko, then CoinLore, then Binance.
func LegacySourceConfigs(timeout time.Duration) []SourceConfig {
	byName := make(map[string]SourceConfig)
	for _, cfg := range DefaultSourceConfigs(timeout) {
		byName[cfg.Name] = cfg
	}
	return []SourceConfig{byName[SourceCoinGecko], byName[SourceCoinLore], byName[SourceBinance]}
}
