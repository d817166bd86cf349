package wallet

import (
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	presalesolana "github.com/brojonat/presale/service/solana"
)

const (
	SecretEnvName = "secret-env"
	SecretEnvVar  = "PRESALE_WALLET_SECRET"
)

// SecretEnvProvider signs with a secret key exported from a browser wallet
// and held in PRESALE_WALLET_SECRET.
type SecretEnvProvider struct {
	*keySigner
	env Environment
}

// NewSecretEnvProvider creates a provider reading PRESALE_WALLET_SECRET.
func NewSecretEnvProvider(env Environment, approve Approver, submitter Submitter, logger *slog.Logger) *SecretEnvProvider {
	p := &SecretEnvProvider{env: env}
	p.keySigner = newKeySigner(SecretEnvName, p.loadKey, approve, submitter, logger)
	return p
}

func (p *SecretEnvProvider) Detect() bool {
	return p.env.Getenv(SecretEnvVar) != ""
}

func (p *SecretEnvProvider) loadKey() (solana.PrivateKey, error) {
	raw := p.env.Getenv(SecretEnvVar)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrNotFound, SecretEnvVar)
	}
	key, err := presalesolana.ParseSecretKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountLocked, err)
	}
	return key, nil
}

// DefaultProviders returns every provider in preference order.
func DefaultProviders(env Environment, approve Approver, submitter Submitter, logger *slog.Logger) []Provider {
	return []Provider{
		NewKeypairFileProvider(env, approve, submitter, logger),
		NewSecretEnvProvider(env, approve, submitter, logger),
	}
}
