package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderTreasuryKey is the value shipped in example env files. It is
// treated the same as an unset key.
const PlaceholderTreasuryKey = "your_secure_private_key_here"

// Config holds all application configuration loaded from environment variables.
// Mint and treasury key are deliberately not required here: their absence is
// reported per purchase request as a configuration error.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string
	BaseURL    string

	// Optional infrastructure. Empty values disable the feature.
	DatabaseURL string
	NATSURL     string

	// Solana configuration
	SolanaRPCURL       string
	TokenMintAddress   string
	TokenSymbol        string
	TokenDecimals      int
	TreasuryPrivateKey string

	// Pricing configuration
	TokenPriceUSD       decimal.Decimal
	FallbackSOLPriceUSD decimal.Decimal
	PriceSourceTimeout  time.Duration
	MinPurchaseSOL      decimal.Decimal
	MaxPurchaseSOL      decimal.Decimal

	// Presale schedule
	PresaleLiveAt time.Time
	PresaleEndsAt time.Time

	// Temporal configuration
	TemporalEnabled   bool
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Confirmation polling
	ConfirmationPollInterval time.Duration
	ConfirmationMaxAttempts  int
}

// Load reads configuration from environment variables and validates all fields.
// Every problem is collected so a misconfigured deployment reports them all at once.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.BaseURL = getEnvOrDefault("BASE_URL", "http://localhost:3000")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	cfg.TokenMintAddress = os.Getenv("TOKEN_MINT_ADDRESS")
	cfg.TokenSymbol = getEnvOrDefault("TOKEN_SYMBOL", "SUSTEXA")
	cfg.TreasuryPrivateKey = os.Getenv("TREASURY_PRIVATE_KEY")

	decimals, err := parseInt("TOKEN_DECIMALS", 9)
	if err != nil {
		errs = append(errs, err)
	} else if decimals < 0 || decimals > 18 {
		errs = append(errs, fmt.Errorf("TOKEN_DECIMALS must be between 0 and 18, got %d", decimals))
	} else {
		cfg.TokenDecimals = decimals
	}

	// Pricing configuration
	if cfg.TokenPriceUSD, err = parseDecimal("TOKEN_PRICE_USD", "0.002"); err != nil {
		errs = append(errs, err)
	} else if !cfg.TokenPriceUSD.IsPositive() {
		errs = append(errs, fmt.Errorf("TOKEN_PRICE_USD must be positive"))
	}

	if cfg.FallbackSOLPriceUSD, err = parseDecimal("FALLBACK_SOL_PRICE_USD", "150"); err != nil {
		errs = append(errs, err)
	} else if !cfg.FallbackSOLPriceUSD.IsPositive() {
		errs = append(errs, fmt.Errorf("FALLBACK_SOL_PRICE_USD must be positive"))
	}

	if cfg.PriceSourceTimeout, err = parseDuration("PRICE_SOURCE_TIMEOUT", "5s"); err != nil {
		errs = append(errs, err)
	}

	if cfg.MinPurchaseSOL, err = parseDecimal("MIN_PURCHASE_SOL", "0.1"); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxPurchaseSOL, err = parseDecimal("MAX_PURCHASE_SOL", "1"); err != nil {
		errs = append(errs, err)
	}
	if cfg.MinPurchaseSOL.GreaterThan(cfg.MaxPurchaseSOL) {
		errs = append(errs, fmt.Errorf("MIN_PURCHASE_SOL (%s) cannot be greater than MAX_PURCHASE_SOL (%s)",
			cfg.MinPurchaseSOL, cfg.MaxPurchaseSOL))
	}

	// Presale schedule
	if cfg.PresaleLiveAt, err = parseTime("PRESALE_LIVE_AT", "2025-07-10T20:00:00+02:00"); err != nil {
		errs = append(errs, err)
	}
	if cfg.PresaleEndsAt, err = parseTime("PRESALE_ENDS_AT", "2025-08-15T20:00:00+02:00"); err != nil {
		errs = append(errs, err)
	}
	if !cfg.PresaleLiveAt.IsZero() && !cfg.PresaleEndsAt.IsZero() && !cfg.PresaleLiveAt.Before(cfg.PresaleEndsAt) {
		errs = append(errs, fmt.Errorf("PRESALE_LIVE_AT (%s) must be before PRESALE_ENDS_AT (%s)",
			cfg.PresaleLiveAt.Format(time.RFC3339), cfg.PresaleEndsAt.Format(time.RFC3339)))
	}

	// Temporal configuration
	if cfg.TemporalEnabled, err = parseBool("TEMPORAL_ENABLED", false); err != nil {
		errs = append(errs, err)
	}
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "presale-purchases")

	// Confirmation polling
	if cfg.ConfirmationPollInterval, err = parseDuration("CONFIRMATION_POLL_INTERVAL", "2s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.ConfirmationMaxAttempts, err = parseInt("CONFIRMATION_MAX_ATTEMPTS", 45); err != nil {
		errs = append(errs, err)
	} else if cfg.ConfirmationMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("CONFIRMATION_MAX_ATTEMPTS must be at least 1"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks a Config built without Load, e.g. in tests.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if !c.TokenPriceUSD.IsPositive() {
		errs = append(errs, fmt.Errorf("TokenPriceUSD must be positive"))
	}

	if !c.FallbackSOLPriceUSD.IsPositive() {
		errs = append(errs, fmt.Errorf("FallbackSOLPriceUSD must be positive"))
	}

	if c.PriceSourceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PriceSourceTimeout must be positive"))
	}

	if c.MinPurchaseSOL.GreaterThan(c.MaxPurchaseSOL) {
		errs = append(errs, fmt.Errorf("MinPurchaseSOL cannot be greater than MaxPurchaseSOL"))
	}

	if !c.PresaleLiveAt.Before(c.PresaleEndsAt) {
		errs = append(errs, fmt.Errorf("PresaleLiveAt must be before PresaleEndsAt"))
	}

	if c.TemporalEnabled && (c.TemporalHost == "" || c.TemporalNamespace == "" || c.TemporalTaskQueue == "") {
		errs = append(errs, fmt.Errorf("TemporalHost, TemporalNamespace and TemporalTaskQueue are required when Temporal is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// HasTreasuryKey reports whether a usable (non-placeholder) treasury key is configured.
func (c *Config) HasTreasuryKey() bool {
	return c.TreasuryPrivateKey != "" && c.TreasuryPrivateKey != PlaceholderTreasuryKey
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

// parseDecimal parses an exact decimal from an environment variable or uses a default.
func parseDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvOrDefault(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, value, err)
	}
	return d, nil
}

// parseTime parses an RFC 3339 timestamp from an environment variable or uses a default.
func parseTime(key, defaultValue string) (time.Time, error) {
	value := getEnvOrDefault(key, defaultValue)
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid RFC 3339 time %q: %w", key, value, err)
	}
	return t, nil
}
