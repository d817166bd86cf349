package wallet

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

// Provider is a wallet that can hold the buyer's key, approve and sign.
type Provider interface {
	Name() string
	// Detect reports whether the wallet is available in the environment.
	Detect() bool
	Connect(ctx context.Context) (solana.PublicKey, error)
	// Disconnect forgets the key. It is best-effort.
	Disconnect(ctx context.Context) error
	// SignAndSubmit signs a base64 transaction for the connected account and
	// submits it, returning the transaction signature.
	SignAndSubmit(ctx context.Context, encoded string) (string, error)
}

// Environment is what providers probe to detect and load wallets.
type Environment interface {
	Getenv(key string) string
	ReadFile(path string) ([]byte, error)
	UserHomeDir() (string, error)
}

// OSEnvironment reads the real process environment and filesystem.
type OSEnvironment struct{}

func (OSEnvironment) Getenv(key string) string            { return os.Getenv(key) }
func (OSEnvironment) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (OSEnvironment) UserHomeDir() (string, error)         { return os.UserHomeDir() }

// Approver asks the user to approve prompt. Returning false declines.
type Approver func(ctx context.Context, prompt string) (bool, error)

// AutoApprove approves every prompt.
func AutoApprove(context.Context, string) (bool, error) { return true, nil }

// Submitter sends a fully signed transaction to the ledger.
type Submitter interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Detect returns the first provider available in the environment.
func Detect(providers ...Provider) (Provider, error) {
	for _, p := range providers {
		if p.Detect() {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// ByName returns the provider called name, which must also be detected.
func ByName(name string, providers ...Provider) (Provider, error) {
	for _, p := range providers {
		if p.Name() != name {
			continue
		}
		if !p.Detect() {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown wallet %q", name)
}

// Names lists provider names in order.
func Names(providers ...Provider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return names
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
