package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"

	presalesolana "github.com/brojonat/presale/service/solana"
)

// keyLoader loads the wallet's secret key. It returns an error wrapping
// ErrNotFound when the wallet is absent.
type keyLoader func() (solana.PrivateKey, error)

// keySigner is the connect/approve/sign/submit flow shared by providers
// that hold a local key.
type keySigner struct {
	name      string
	load      keyLoader
	approve   Approver
	submitter Submitter
	logger    *slog.Logger

	mu  sync.Mutex
	key solana.PrivateKey
}

func newKeySigner(name string, load keyLoader, approve Approver, submitter Submitter, logger *slog.Logger) *keySigner {
	if logger == nil {
		logger = slog.Default()
	}
	if approve == nil {
		approve = AutoApprove
	}
	return &keySigner{
		name:      name,
		load:      load,
		approve:   approve,
		submitter: submitter,
		logger:    logger.With("component", "wallet", "wallet", name),
	}
}

func (s *keySigner) Name() string {
	return s.name
}

func (s *keySigner) Connect(ctx context.Context) (solana.PublicKey, error) {
	key, err := s.load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "wallet not available", "error", err)
		} else {
			s.logger.WarnContext(ctx, "wallet could not be loaded", "error", err)
		}
		return solana.PublicKey{}, err
	}

	pub := key.PublicKey()
	ok, err := s.approve(ctx, fmt.Sprintf("Connect %s wallet %s?", s.name, ShortenAddress(pub.String())))
	if err != nil {
		return solana.PublicKey{}, normalizeApproval(err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "connection declined")
		return solana.PublicKey{}, fmt.Errorf("%w: connection cancelled by user", ErrUserRejected)
	}

	s.mu.Lock()
	s.key = key
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "wallet connected", "address", pub.String())
	return pub, nil
}

func (s *keySigner) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		s.logger.DebugContext(ctx, "disconnect without connection")
		return nil
	}
	for i := range s.key {
		s.key[i] = 0
	}
	s.key = nil
	s.logger.InfoContext(ctx, "wallet disconnected")
	return nil
}

func (s *keySigner) connected() (solana.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return nil, ErrNotConnected
	}
	return s.key, nil
}

func (s *keySigner) SignAndSubmit(ctx context.Context, encoded string) (string, error) {
	key, err := s.connected()
	if err != nil {
		return "", err
	}
	if s.submitter == nil {
		return "", errors.New("wallet has no ledger submitter")
	}

	tx, err := presalesolana.DecodeTransaction(encoded)
	if err != nil {
		return "", err
	}
	summary, err := presalesolana.Summarize(tx)
	if err != nil {
		return "", fmt.Errorf("failed to inspect transaction: %w", err)
	}

	ok, err := s.approve(ctx, describe(summary))
	if err != nil {
		return "", normalizeApproval(err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "transaction declined")
		return "", fmt.Errorf("%w: transaction cancelled by user", ErrUserRejected)
	}

	if err := presalesolana.SignFor(tx, key); err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if missing := presalesolana.MissingSigners(tx); len(missing) > 0 {
		return "", fmt.Errorf("transaction still needs signatures from %v", missing)
	}

	sig, err := s.submitter.SendTransaction(ctx, tx)
	if err != nil {
		err = normalize(err)
		if IsCancellation(err) {
			s.logger.InfoContext(ctx, "submission not completed", "reason", err)
		} else {
			s.logger.ErrorContext(ctx, "submission failed", "error", err)
		}
		return "", err
	}

	s.logger.InfoContext(ctx, "transaction submitted", "signature", sig.String())
	return sig.String(), nil
}

func normalizeApproval(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	return fmt.Errorf("approval failed: %w", err)
}

// describe renders what the user is about to approve.
func describe(s *presalesolana.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Approve transaction paid by %s:", ShortenAddress(s.FeePayer))
	for _, inst := range s.Instructions {
		switch inst.Kind {
		case presalesolana.KindCreateTokenAccount:
			b.WriteString("\n  - create token account")
		case presalesolana.KindSOLTransfer:
			fmt.Fprintf(&b, "\n  - pay %s SOL", presalesolana.FromBaseUnits(inst.Amount, presalesolana.LamportsDecimals))
		case presalesolana.KindTokenTransfer:
			fmt.Fprintf(&b, "\n  - receive %d token base units", inst.Amount)
		default:
			fmt.Fprintf(&b, "\n  - unrecognized instruction for %s", inst.Program)
		}
	}
	return b.String()
}
