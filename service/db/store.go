package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/brojonat/presale/service/metrics"
	"github.com/brojonat/presale/service/phase"
)

//go:embed schema.sql
var Schema string

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid purchase status transition")
)

// Purchase statuses.
const (
	StatusPrepared  = "prepared"
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// IsTerminal reports whether no further transitions are allowed from status.
func IsTerminal(status string) bool {
	return status == StatusConfirmed || status == StatusFailed || status == StatusExpired
}

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If m is nil, no metrics are recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) record(operation, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
}

// Purchase is one prepared purchase and its lifecycle.
type Purchase struct {
	ID              uuid.UUID       `json:"id"`
	BuyerAddress    string          `json:"buyerAddress"`
	SolAmount       decimal.Decimal `json:"solAmount"`
	TokenAmount     decimal.Decimal `json:"tokenAmount"`
	Lamports        int64           `json:"lamports"`
	TokenUnits      int64           `json:"tokenUnits"`
	QuotePrice      decimal.Decimal `json:"quotePrice"`
	QuoteSource     string          `json:"quoteSource"`
	Degraded        bool            `json:"degraded"`
	RecentBlockhash string          `json:"recentBlockhash"`
	Signature       *string         `json:"signature,omitempty"`
	Status          string          `json:"status"`
	FailureReason   *string         `json:"failureReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CreatePurchaseParams contains the parameters for recording a prepared purchase.
type CreatePurchaseParams struct {
	BuyerAddress    string
	SolAmount       decimal.Decimal
	TokenAmount     decimal.Decimal
	Lamports        int64
	TokenUnits      int64
	QuotePrice      decimal.Decimal
	QuoteSource     string
	Degraded        bool
	RecentBlockhash string
}

const purchaseColumns = `id::text, buyer_address, sol_amount::text, token_amount::text,
	lamports, token_units, quote_price::text, quote_source, degraded, recent_blockhash,
	signature, status, failure_reason, created_at, updated_at`

// CreatePurchase records a prepared purchase with a new ID.
func (s *Store) CreatePurchase(ctx context.Context, params CreatePurchaseParams) (*Purchase, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO purchases (
			id, buyer_address, sol_amount, token_amount, lamports, token_units,
			quote_price, quote_source, degraded, recent_blockhash, status
		) VALUES ($1::uuid, $2, $3::numeric, $4::numeric, $5, $6, $7::numeric, $8, $9, $10, $11)
		RETURNING `+purchaseColumns,
		uuid.New().String(),
		params.BuyerAddress,
		params.SolAmount.String(),
		params.TokenAmount.String(),
		params.Lamports,
		params.TokenUnits,
		params.QuotePrice.String(),
		params.QuoteSource,
		params.Degraded,
		params.RecentBlockhash,
		StatusPrepared,
	)
	p, err := scanPurchase(row)
	s.record("insert", "purchases", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}
	return p, nil
}

// GetPurchase retrieves a purchase by ID.
func (s *Store) GetPurchase(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1::uuid`, id.String())
	p, err := scanPurchase(row)
	s.record("select", "purchases", start, err)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPurchasesByBuyer returns a buyer's purchases, newest first.
func (s *Store) ListPurchasesByBuyer(ctx context.Context, buyer string, limit int32) ([]*Purchase, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE buyer_address = $1
		ORDER BY created_at DESC
		LIMIT $2`, buyer, limit)
	if err != nil {
		s.record("select", "purchases", start, err)
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			s.record("select", "purchases", start, err)
			return nil, err
		}
		purchases = append(purchases, p)
	}
	err = rows.Err()
	s.record("select", "purchases", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}

// MarkPurchaseSubmitted attaches the buyer's transaction signature. Only a
// prepared purchase can be submitted.
func (s *Store) MarkPurchaseSubmitted(ctx context.Context, id uuid.UUID, signature string) (*Purchase, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		UPDATE purchases
		SET signature = $2, status = $3, updated_at = NOW()
		WHERE id = $1::uuid AND status = $4
		RETURNING `+purchaseColumns,
		id.String(), signature, StatusSubmitted, StatusPrepared,
	)
	p, err := scanPurchase(row)
	s.record("update", "purchases", start, err)
	if errors.Is(err, ErrNotFound) {
		return nil, s.explainMissing(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark purchase submitted: %w", err)
	}
	return p, nil
}

// UpdatePurchaseStatus moves a non-terminal purchase to status.
func (s *Store) UpdatePurchaseStatus(ctx context.Context, id uuid.UUID, status string, reason *string) (*Purchase, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		UPDATE purchases
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1::uuid AND status NOT IN ($4, $5, $6)
		RETURNING `+purchaseColumns,
		id.String(), status, pgtextFromStringPtr(reason),
		StatusConfirmed, StatusFailed, StatusExpired,
	)
	p, err := scanPurchase(row)
	s.record("update", "purchases", start, err)
	if errors.Is(err, ErrNotFound) {
		return nil, s.explainMissing(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update purchase status: %w", err)
	}
	return p, nil
}

// explainMissing distinguishes an unknown ID from a refused transition.
func (s *Store) explainMissing(ctx context.Context, id uuid.UUID) error {
	existing, err := s.GetPurchase(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: purchase %s is %s", ErrInvalidTransition, id, existing.Status)
}

// GetSetting returns a presale setting, or phase.ErrSettingNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM presale_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		s.record("select", "presale_settings", start, nil)
		return "", fmt.Errorf("%w: %s", phase.ErrSettingNotFound, key)
	}
	s.record("select", "presale_settings", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// InitSetting stores value unless key is already set, and returns the
// stored value either way.
func (s *Store) InitSetting(ctx context.Context, key, value string) (string, error) {
	start := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO presale_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING`, key, value)
	s.record("insert", "presale_settings", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to init setting %s: %w", key, err)
	}
	return s.GetSetting(ctx, key)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (*Purchase, error) {
	var (
		p                      Purchase
		id, sol, tokens, quote string
		signature, failure     pgtype.Text
	)
	err := row.Scan(
		&id, &p.BuyerAddress, &sol, &tokens,
		&p.Lamports, &p.TokenUnits, &quote, &p.QuoteSource, &p.Degraded, &p.RecentBlockhash,
		&signature, &p.Status, &failure, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase: %w", err)
	}

	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid purchase id %q: %w", id, err)
	}
	if p.SolAmount, err = decimal.NewFromString(sol); err != nil {
		return nil, fmt.Errorf("invalid sol_amount %q: %w", sol, err)
	}
	if p.TokenAmount, err = decimal.NewFromString(tokens); err != nil {
		return nil, fmt.Errorf("invalid token_amount %q: %w", tokens, err)
	}
	if p.QuotePrice, err = decimal.NewFromString(quote); err != nil {
		return nil, fmt.Errorf("invalid quote_price %q: %w", quote, err)
	}
	p.Signature = stringPtrFromPgtext(signature)
	p.FailureReason = stringPtrFromPgtext(failure)
	return &p, nil
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
