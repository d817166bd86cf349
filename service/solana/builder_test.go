package solana

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builderFixture struct {
	treasury solana.PrivateKey
	buyer    solana.PublicKey
	mint     solana.PublicKey
	ledger   *mockLedger
	builder  *Builder
}

func newBuilderFixture(t *testing.T) *builderFixture {
	t.Helper()
	f := &builderFixture{
		treasury: newKey(t),
		buyer:    newKey(t).PublicKey(),
		mint:     newKey(t).PublicKey(),
		ledger: &mockLedger{
			blockhash: solana.HashFromBytes([]byte("recent-blockhash-for-tests-32byt")),
			lastValid: 1234,
			existing:  map[solana.PublicKey]bool{},
		},
	}
	f.builder = NewBuilder(f.ledger, BuilderConfig{
		MintAddress:   f.mint.String(),
		TokenDecimals: 9,
		TreasuryKey:   f.treasury.String(),
	}, discardLogger())
	return f
}

func (f *builderFixture) request() BuildRequest {
	return BuildRequest{
		BuyerAddress: f.buyer.String(),
		SolAmount:    decimal.RequireFromString("0.5"),
		TokenAmount:  decimal.RequireFromString("37500"),
	}
}

func TestBuild_CreatesTokenAccountWhenMissing(t *testing.T) {
	f := newBuilderFixture(t)

	prepared, err := f.builder.Build(context.Background(), f.request())
	require.NoError(t, err)

	assert.True(t, prepared.CreatesTokenAccount)
	assert.Equal(t, uint64(500_000_000), prepared.Lamports)
	assert.Equal(t, uint64(37_500_000_000_000), prepared.TokenUnits)
	assert.Equal(t, uint64(1234), prepared.LastValidBlockHeight)
	assert.Equal(t, f.ledger.blockhash.String(), prepared.RecentBlockhash)

	buyerATA, _, err := solana.FindAssociatedTokenAddress(f.buyer, f.mint)
	require.NoError(t, err)
	assert.Equal(t, buyerATA.String(), prepared.BuyerTokenAccount)

	summary, err := Inspect(prepared.Encoded)
	require.NoError(t, err)

	require.Len(t, summary.Instructions, 3)
	assert.Equal(t, KindCreateTokenAccount, summary.Instructions[0].Kind)
	assert.Equal(t, KindSOLTransfer, summary.Instructions[1].Kind)
	assert.Equal(t, uint64(500_000_000), summary.Instructions[1].Amount)
	assert.Equal(t, KindTokenTransfer, summary.Instructions[2].Kind)
	assert.Equal(t, uint64(37_500_000_000_000), summary.Instructions[2].Amount)

	// SOL goes buyer -> treasury
	assert.Equal(t, []string{f.buyer.String(), f.treasury.PublicKey().String()}, summary.Instructions[1].Accounts)

	// Tokens go treasury ATA -> buyer ATA, authorized by the treasury
	treasuryATA, _, err := solana.FindAssociatedTokenAddress(f.treasury.PublicKey(), f.mint)
	require.NoError(t, err)
	assert.Equal(t, []string{treasuryATA.String(), buyerATA.String(), f.treasury.PublicKey().String()}, summary.Instructions[2].Accounts)
}

func TestBuild_SkipsTokenAccountWhenPresent(t *testing.T) {
	f := newBuilderFixture(t)
	buyerATA, _, err := solana.FindAssociatedTokenAddress(f.buyer, f.mint)
	require.NoError(t, err)
	f.ledger.existing[buyerATA] = true

	prepared, err := f.builder.Build(context.Background(), f.request())
	require.NoError(t, err)
	assert.False(t, prepared.CreatesTokenAccount)

	summary, err := Inspect(prepared.Encoded)
	require.NoError(t, err)
	require.Len(t, summary.Instructions, 2)
	assert.Equal(t, KindSOLTransfer, summary.Instructions[0].Kind)
	assert.Equal(t, KindTokenTransfer, summary.Instructions[1].Kind)
}

func TestBuild_OnlyTreasurySigns(t *testing.T) {
	f := newBuilderFixture(t)

	prepared, err := f.builder.Build(context.Background(), f.request())
	require.NoError(t, err)

	tx, err := DecodeTransaction(prepared.Encoded)
	require.NoError(t, err)

	assert.Equal(t, f.buyer, tx.Message.AccountKeys[0], "buyer pays fees")
	require.Equal(t, uint8(2), tx.Message.Header.NumRequiredSignatures)
	require.Len(t, tx.Signatures, 2)

	assert.Equal(t, solana.Signature{}, tx.Signatures[0], "buyer slot must be empty")
	assert.NotEqual(t, solana.Signature{}, tx.Signatures[1])

	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, tx.Signatures[1].Verify(f.treasury.PublicKey(), msg))

	missing := MissingSigners(tx)
	assert.Equal(t, []solana.PublicKey{f.buyer}, missing)
}

func TestBuild_SameInputsSameTransaction(t *testing.T) {
	f := newBuilderFixture(t)

	first, err := f.builder.Build(context.Background(), f.request())
	require.NoError(t, err)
	second, err := f.builder.Build(context.Background(), f.request())
	require.NoError(t, err)

	assert.Equal(t, first.Encoded, second.Encoded)
}

func TestBuild_FloorsFractionalUnits(t *testing.T) {
	f := newBuilderFixture(t)
	req := f.request()
	req.SolAmount = decimal.RequireFromString("0.1234567899")

	prepared, err := f.builder.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(123_456_789), prepared.Lamports)
}

func TestBuild_Errors(t *testing.T) {
	ledgerDown := errors.New("connection refused")

	tests := []struct {
		name    string
		mutate  func(f *builderFixture, req *BuildRequest)
		wantErr error
		noProbe bool
	}{
		{
			name: "mint not configured",
			mutate: func(f *builderFixture, req *BuildRequest) {
				f.builder.cfg.MintAddress = ""
			},
			wantErr: ErrMintNotConfigured,
			noProbe: true,
		},
		{
			name: "mint not a public key",
			mutate: func(f *builderFixture, req *BuildRequest) {
				f.builder.cfg.MintAddress = "not-a-mint"
			},
			wantErr: ErrMintNotConfigured,
			noProbe: true,
		},
		{
			name: "treasury key missing",
			mutate: func(f *builderFixture, req *BuildRequest) {
				f.builder.cfg.TreasuryKey = ""
			},
			wantErr: ErrTreasuryCredentialMissing,
			noProbe: true,
		},
		{
			name: "treasury key placeholder",
			mutate: func(f *builderFixture, req *BuildRequest) {
				f.builder.cfg.TreasuryKey = "your_secure_private_key_here"
			},
			wantErr: ErrTreasuryCredentialMissing,
			noProbe: true,
		},
		{
			name: "treasury key malformed",
			mutate: func(f *builderFixture, req *BuildRequest) {
				f.builder.cfg.TreasuryKey = "definitely not a key"
			},
			wantErr: ErrTreasuryCredentialMalformed,
			noProbe: true,
		},
		{
			name: "buyer address invalid",
			mutate: func(f *builderFixture, req *BuildRequest) {
				req.BuyerAddress = "0OIl"
			},
			wantErr: ErrInvalidBuyerAddress,
			noProbe: true,
		},
		{
			name: "amount rounds to zero",
			mutate: func(f *builderFixture, req *BuildRequest) {
				req.SolAmount = decimal.RequireFromString("0.0000000001")
			},
			wantErr: ErrAmountOutOfRange,
			noProbe: true,
		},
		{
			name: "account probe fails",
			mutate: func(f *builderFixture, req *BuildRequest) {
				f.ledger.existsErr = ledgerDown
			},
			wantErr: ErrLedgerUnavailable,
		},
		{
			name: "blockhash fetch fails",
			mutate: func(f *builderFixture, req *BuildRequest) {
				f.ledger.blockhashErr = ledgerDown
			},
			wantErr: ErrLedgerUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBuilderFixture(t)
			req := f.request()
			tt.mutate(f, &req)

			prepared, err := f.builder.Build(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, prepared)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.noProbe {
				assert.Zero(t, f.ledger.existsCalls, "ledger must not be queried")
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	f := newBuilderFixture(t)
	require.NoError(t, f.builder.Preflight())

	addr, err := f.builder.TreasuryAddress()
	require.NoError(t, err)
	assert.Equal(t, f.treasury.PublicKey(), addr)

	f.builder.cfg.MintAddress = ""
	assert.ErrorIs(t, f.builder.Preflight(), ErrMintNotConfigured)

	f.builder.cfg.MintAddress = f.mint.String()
	f.builder.cfg.TreasuryKey = "your_secure_private_key_here"
	assert.ErrorIs(t, f.builder.Preflight(), ErrTreasuryCredentialMissing)

	f.builder.cfg.TreasuryKey = "not a key"
	_, err = f.builder.TreasuryAddress()
	assert.ErrorIs(t, err, ErrTreasuryCredentialMalformed)
	assert.Zero(t, f.ledger.existsCalls)
}
