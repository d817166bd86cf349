package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/itchyny/gojq"
	"github.com/shopspring/decimal"
)

const (
	userAgent       = "Mozilla/5.0 (compatible; SOL-Price-Fetcher/1.0)"
	maxResponseSize = 1 << 20
)

// Source is one external price feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Quote, error)
}

// SourceConfig describes a REST price feed declaratively. The jq expressions
// run against the decoded JSON payload.
type SourceConfig struct {
	Name string
	URL  string

	// PriceExpr must yield a number or numeric string.
	PriceExpr string
	// ChangeExpr yields the 24h change in percent. Empty means zero.
	ChangeExpr string
	// ObservedAtExpr yields a unix timestamp in seconds. Empty means "now".
	ObservedAtExpr string

	Timeout time.Duration
}

// HTTPSource fetches a quote from a JSON REST endpoint.
type HTTPSource struct {
	cfg        SourceConfig
	price      *gojq.Code
	change     *gojq.Code
	observedAt *gojq.Code
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPSource compiles the source's expressions. A nil httpClient uses a
// client without its own timeout; the per-request context bounds each call.
func NewHTTPSource(cfg SourceConfig, httpClient *http.Client) (*HTTPSource, error) {
	if cfg.Name == "" || cfg.URL == "" {
		return nil, fmt.Errorf("price source requires a name and URL")
	}
	if cfg.PriceExpr == "" {
		return nil, fmt.Errorf("price source %s: price expression is required", cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	s := &HTTPSource{cfg: cfg, httpClient: httpClient, now: time.Now}

	var err error
	if s.price, err = compile(cfg.PriceExpr); err != nil {
		return nil, fmt.Errorf("price source %s: %w", cfg.Name, err)
	}
	if cfg.ChangeExpr != "" {
		if s.change, err = compile(cfg.ChangeExpr); err != nil {
			return nil, fmt.Errorf("price source %s: %w", cfg.Name, err)
		}
	}
	if cfg.ObservedAtExpr != "" {
		if s.observedAt, err = compile(cfg.ObservedAtExpr); err != nil {
			return nil, fmt.Errorf("price source %s: %w", cfg.Name, err)
		}
	}

	return s, nil
}

// Name returns the source identifier.
func (s *HTTPSource) Name() string {
	return s.cfg.Name
}

// Fetch performs exactly one bounded request and parses the payload.
func (s *HTTPSource) Fetch(ctx context.Context) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return s.parse(ctx, payload)
}

func (s *HTTPSource) parse(ctx context.Context, payload interface{}) (Quote, error) {
	price, err := evalDecimal(ctx, s.price, payload)
	if err != nil {
		return Quote{}, fmt.Errorf("price: %w", err)
	}

	quote := Quote{
		Price:      price,
		Change24h:  decimal.Zero,
		Source:     s.cfg.Name,
		ObservedAt: s.now().UTC(),
	}

	if s.change != nil {
		// A missing change figure is not worth discarding a good price.
		if change, err := evalDecimal(ctx, s.change, payload); err == nil {
			quote.Change24h = change
		}
	}

	if s.observedAt != nil {
		if ts, err := evalDecimal(ctx, s.observedAt, payload); err == nil && ts.IsPositive() {
			quote.ObservedAt = time.Unix(ts.IntPart(), 0).UTC()
		}
	}

	return quote, nil
}

func compile(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression %q: %w", expr, err)
	}
	return code, nil
}

var errNoValue = errors.New("expression produced no value")

// evalDecimal runs code against payload and converts the first result.
func evalDecimal(ctx context.Context, code *gojq.Code, payload interface{}) (decimal.Decimal, error) {
	iter := code.RunWithContext(ctx, payload)
	v, ok := iter.Next()
	if !ok {
		return decimal.Zero, errNoValue
	}
	if err, isErr := v.(error); isErr {
		return decimal.Zero, err
	}

	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case *big.Int:
		return decimal.NewFromBigInt(n, 0), nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, fmt.Errorf("not a number: %q", n)
		}
		return d, nil
	case nil:
		return decimal.Zero, errNoValue
	default:
		return decimal.Zero, fmt.Errorf("unexpected value type %T", v)
	}
}
