package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/brojonat/presale/service/config"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Per-encoding failures, joined into ErrTreasuryCredentialMalformed when every
// encoding fails.
var (
	ErrBase58Credential = errors.New("not a base58 secret key")
	ErrBase64Credential = errors.New("not a base64 secret key")
)

// ParseTreasuryKey parses the custodial treasury secret. An empty value or
// the example placeholder counts as missing.
func ParseTreasuryKey(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == config.PlaceholderTreasuryKey {
		return nil, ErrTreasuryCredentialMissing
	}
	key, err := ParseSecretKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTreasuryCredentialMalformed, err)
	}
	return key, nil
}

// ParseSecretKey decodes a 64-byte ed25519 secret key, trying base58 first
// (wallet export format) and then base64.
func ParseSecretKey(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)

	key, err58 := decodeBase58Key(raw)
	if err58 == nil {
		return key, nil
	}

	key, err64 := decodeBase64Key(raw)
	if err64 == nil {
		return key, nil
	}

	return nil, errors.Join(err58, err64)
}

func decodeBase58Key(raw string) (solana.PrivateKey, error) {
	b, err := base58.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBase58Credential, err)
	}
	if err := checkKeypair(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBase58Credential, err)
	}
	return solana.PrivateKey(b), nil
}

func decodeBase64Key(raw string) (solana.PrivateKey, error) {
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBase64Credential, err)
	}
	if err := checkKeypair(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBase64Credential, err)
	}
	return solana.PrivateKey(b), nil
}

// checkKeypair verifies b is seed||public with a public half derived from the seed.
func checkKeypair(b []byte) error {
	if len(b) != ed25519.PrivateKeySize {
		return fmt.Errorf("expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	derived := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return errors.New("public key does not match secret seed")
	}
	return nil
}

// ValidateSecretKey checks raw secret key bytes from any source.
func ValidateSecretKey(b []byte) error {
	return checkKeypair(b)
}
