package wallet

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gagliardetto/solana-go"

	presalesolana "github.com/brojonat/presale/service/solana"
)

const (
	KeypairFileName = "keypair-file"
	KeypairPathEnv  = "PRESALE_KEYPAIR_PATH"
)

// KeypairFileProvider signs with a Solana CLI keypair file: a JSON array of
// the 64 secret key bytes.
type KeypairFileProvider struct {
	*keySigner
	env Environment
}

// NewKeypairFileProvider creates a provider reading PRESALE_KEYPAIR_PATH, or
// ~/.config/solana/id.json when unset.
func NewKeypairFileProvider(env Environment, approve Approver, submitter Submitter, logger *slog.Logger) *KeypairFileProvider {
	p := &KeypairFileProvider{env: env}
	p.keySigner = newKeySigner(KeypairFileName, p.loadKey, approve, submitter, logger)
	return p
}

// Path returns the keypair file location.
func (p *KeypairFileProvider) Path() (string, error) {
	if path := p.env.Getenv(KeypairPathEnv); path != "" {
		return path, nil
	}
	home, err := p.env.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	return filepath.Join(home, ".config", "solana", "id.json"), nil
}

func (p *KeypairFileProvider) Detect() bool {
	path, err := p.Path()
	if err != nil {
		return false
	}
	_, err = p.env.ReadFile(path)
	return err == nil
}

func (p *KeypairFileProvider) loadKey() (solana.PrivateKey, error) {
	path, err := p.Path()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	raw, err := p.env.ReadFile(path)
	if isNotExist(err) {
		return nil, fmt.Errorf("%w: no keypair at %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountLocked, err)
	}

	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("%w: keypair file is not a JSON byte array: %v", ErrAccountLocked, err)
	}
	secret := make([]byte, 0, len(ints))
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: keypair byte %d out of range", ErrAccountLocked, v)
		}
		secret = append(secret, byte(v))
	}

	if err := presalesolana.ValidateSecretKey(secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountLocked, err)
	}
	return solana.PrivateKey(secret), nil
}
