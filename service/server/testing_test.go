package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/presale/service/config"
	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/phase"
	"github.com/brojonat/presale/service/price"
	"github.com/brojonat/presale/service/purchase"
	"github.com/brojonat/presale/service/solana"
	"github.com/brojonat/presale/service/temporal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubSource returns a fixed quote or error.
type stubSource struct {
	name  string
	price string
	err   error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) (price.Quote, error) {
	if s.err != nil {
		return price.Quote{}, s.err
	}
	return price.Quote{
		Price:      decimal.RequireFromString(s.price),
		Change24h:  decimal.RequireFromString("-1.25"),
		Source:     s.name,
		ObservedAt: time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC),
	}, nil
}

// fakeLedger serves a fixed blockhash and reports no existing accounts.
type fakeLedger struct {
	err error
}

func (l *fakeLedger) LatestBlockhash(ctx context.Context) (solanago.Hash, uint64, error) {
	if l.err != nil {
		return solanago.Hash{}, 0, l.err
	}
	return solanago.HashFromBytes([]byte("server-test-blockhash-32-bytes!!")), 100, nil
}

func (l *fakeLedger) AccountExists(ctx context.Context, account solanago.PublicKey) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return false, nil
}

// memoryStore is an in-memory PurchaseStore.
type memoryStore struct {
	mu        sync.Mutex
	purchases map[uuid.UUID]*db.Purchase
	createErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{purchases: make(map[uuid.UUID]*db.Purchase)}
}

func (s *memoryStore) CreatePurchase(ctx context.Context, params db.CreatePurchaseParams) (*db.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	now := time.Now().UTC()
	p := &db.Purchase{
		ID:              uuid.New(),
		BuyerAddress:    params.BuyerAddress,
		SolAmount:       params.SolAmount,
		TokenAmount:     params.TokenAmount,
		Lamports:        params.Lamports,
		TokenUnits:      params.TokenUnits,
		QuotePrice:      params.QuotePrice,
		QuoteSource:     params.QuoteSource,
		Degraded:        params.Degraded,
		RecentBlockhash: params.RecentBlockhash,
		Status:          db.StatusPrepared,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.purchases[p.ID] = p
	return p, nil
}

func (s *memoryStore) GetPurchase(ctx context.Context, id uuid.UUID) (*db.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) ListPurchasesByBuyer(ctx context.Context, buyer string, limit int32) ([]*db.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*db.Purchase
	for _, p := range s.purchases {
		if p.BuyerAddress == buyer && int32(len(out)) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memoryStore) MarkPurchaseSubmitted(ctx context.Context, id uuid.UUID, signature string) (*db.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if p.Status != db.StatusPrepared {
		return nil, errors.Join(db.ErrInvalidTransition, errors.New("purchase "+id.String()+" is "+p.Status))
	}
	p.Status = db.StatusSubmitted
	p.Signature = &signature
	return p, nil
}

type serverFixture struct {
	cfg       *config.Config
	treasury  solanago.PrivateKey
	buyer     solanago.PublicKey
	mint      solanago.PublicKey
	sources   []price.Source
	ledger    *fakeLedger
	store     *memoryStore
	confirmer *temporal.MockConfirmer
	liveAt    time.Time
	endsAt    time.Time
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	treasury, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	buyer, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	mint, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	cfg := &config.Config{
		BaseURL:                  "http://localhost:3000",
		TokenMintAddress:         mint.PublicKey().String(),
		TokenSymbol:              "SUSTEXA",
		TokenDecimals:            9,
		TreasuryPrivateKey:       treasury.String(),
		TokenPriceUSD:            decimal.RequireFromString("0.002"),
		FallbackSOLPriceUSD:      decimal.RequireFromString("150"),
		MinPurchaseSOL:           decimal.RequireFromString("0.1"),
		MaxPurchaseSOL:           decimal.RequireFromString("1"),
		ConfirmationPollInterval: 2 * time.Second,
		ConfirmationMaxAttempts:  45,
	}

	return &serverFixture{
		cfg:       cfg,
		treasury:  treasury,
		buyer:     buyer.PublicKey(),
		mint:      mint.PublicKey(),
		sources:   []price.Source{&stubSource{name: "binance", price: "200"}},
		ledger:    &fakeLedger{},
		store:     newMemoryStore(),
		confirmer: temporal.NewMockConfirmer(),
		liveAt:    time.Now().Add(-time.Hour),
		endsAt:    time.Now().Add(time.Hour),
	}
}

func (f *serverFixture) server(t *testing.T) *Server {
	t.Helper()
	controller, err := phase.NewController(f.liveAt, f.endsAt)
	require.NoError(t, err)

	oracle := price.NewOracle(f.sources, f.cfg.FallbackSOLPriceUSD, nil, testLogger())
	builder := solana.NewBuilder(f.ledger, solana.BuilderConfig{
		MintAddress:   f.cfg.TokenMintAddress,
		TokenDecimals: int32(f.cfg.TokenDecimals),
		TreasuryKey:   f.cfg.TreasuryPrivateKey,
	}, testLogger())

	deps := Dependencies{
		Oracle:    oracle,
		Validator: purchase.NewValidator(f.cfg.TokenPriceUSD),
		Builder:   builder,
		Phase:     controller,
	}
	if f.store != nil {
		deps.Store = f.store
	}
	if f.confirmer != nil {
		deps.Confirmer = f.confirmer
	}
	return New(":0", f.cfg, deps, nil, testLogger())
}
