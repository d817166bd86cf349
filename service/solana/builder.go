package solana

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Ledger is what the Builder needs from the chain.
type Ledger interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
}

// BuilderConfig holds the token and treasury settings used for every purchase.
type BuilderConfig struct {
	MintAddress   string
	TokenDecimals int32
	// TreasuryKey is the raw secret; it is parsed on each Build so a bad key
	// surfaces as a per-request configuration error.
	TreasuryKey string
}

// Builder prepares purchase transactions: the buyer pays SOL to the treasury
// and the treasury's token account pays out the purchased tokens.
type Builder struct {
	ledger Ledger
	cfg    BuilderConfig
	logger *slog.Logger
}

// NewBuilder creates a transaction builder.
func NewBuilder(ledger Ledger, cfg BuilderConfig, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		ledger: ledger,
		cfg:    cfg,
		logger: logger.With("component", "tx_builder"),
	}
}

// Preflight reports a missing or unusable mint or treasury key without
// touching the ledger.
func (b *Builder) Preflight() error {
	_, _, err := b.credentials()
	return err
}

// TreasuryAddress returns the treasury public key, or an error if the key is
// not usable.
func (b *Builder) TreasuryAddress() (solana.PublicKey, error) {
	_, key, err := b.credentials()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

func (b *Builder) credentials() (solana.PublicKey, solana.PrivateKey, error) {
	if b.cfg.MintAddress == "" {
		return solana.PublicKey{}, nil, ErrMintNotConfigured
	}
	mint, err := solana.PublicKeyFromBase58(b.cfg.MintAddress)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("%w: invalid mint %q: %v", ErrMintNotConfigured, b.cfg.MintAddress, err)
	}

	key, err := ParseTreasuryKey(b.cfg.TreasuryKey)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return mint, key, nil
}

// Build composes [create buyer ATA] → SOL transfer → token transfer, signs it
// with the treasury key only, and returns it base64 encoded. Nothing is
// submitted.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*PreparedTransaction, error) {
	mint, treasuryKey, err := b.credentials()
	if err != nil {
		return nil, err
	}
	treasury := treasuryKey.PublicKey()

	buyer, err := solana.PublicKeyFromBase58(req.BuyerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBuyerAddress, err)
	}

	lamports, err := ToBaseUnits(req.SolAmount, LamportsDecimals)
	if err != nil {
		return nil, err
	}
	tokenUnits, err := ToBaseUnits(req.TokenAmount, b.cfg.TokenDecimals)
	if err != nil {
		return nil, err
	}
	if lamports == 0 || tokenUnits == 0 {
		return nil, fmt.Errorf("%w: amount rounds down to zero base units", ErrAmountOutOfRange)
	}

	buyerATA, _, err := solana.FindAssociatedTokenAddress(buyer, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive buyer token account: %w", err)
	}
	treasuryATA, _, err := solana.FindAssociatedTokenAddress(treasury, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive treasury token account: %w", err)
	}

	exists, err := b.ledger.AccountExists(ctx, buyerATA)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	instructions := make([]solana.Instruction, 0, 3)
	if !exists {
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(buyer, buyer, mint).Build(),
		)
	}
	instructions = append(instructions,
		system.NewTransferInstruction(lamports, buyer, treasury).Build(),
		token.NewTransferInstruction(tokenUnits, treasuryATA, buyerATA, treasury, []solana.PublicKey{}).Build(),
	)

	blockhash, lastValid, err := b.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(buyer))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble transaction: %w", err)
	}

	if err := SignFor(tx, treasuryKey); err != nil {
		return nil, fmt.Errorf("failed to co-sign with treasury: %w", err)
	}

	encoded, err := EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	b.logger.InfoContext(ctx, "purchase transaction prepared",
		"buyer", buyer.String(),
		"lamports", lamports,
		"token_units", tokenUnits,
		"creates_token_account", !exists,
		"blockhash", blockhash.String(),
	)

	return &PreparedTransaction{
		Encoded:              encoded,
		RecentBlockhash:      blockhash.String(),
		LastValidBlockHeight: lastValid,
		BuyerTokenAccount:    buyerATA.String(),
		CreatesTokenAccount:  !exists,
		Lamports:             lamports,
		TokenUnits:           tokenUnits,
	}, nil
}
