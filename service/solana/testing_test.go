package solana

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// mockLedger implements Ledger with canned answers.
type mockLedger struct {
	blockhash    solana.Hash
	lastValid    uint64
	blockhashErr error

	existing  map[solana.PublicKey]bool
	existsErr error

	existsCalls int
}

func (m *mockLedger) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	if m.blockhashErr != nil {
		return solana.Hash{}, 0, m.blockhashErr
	}
	return m.blockhash, m.lastValid, nil
}

func (m *mockLedger) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	m.existsCalls++
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.existing[account], nil
}
