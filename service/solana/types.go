package solana

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Builder failure modes. All but ErrLedgerUnavailable and ErrInvalidBuyerAddress
// are configuration problems.
var (
	ErrMintNotConfigured           = errors.New("token mint address not configured")
	ErrTreasuryCredentialMissing   = errors.New("treasury private key not configured")
	ErrTreasuryCredentialMalformed = errors.New("invalid treasury private key format")
	ErrLedgerUnavailable           = errors.New("ledger unavailable")
	ErrInvalidBuyerAddress         = errors.New("invalid buyer address")
	ErrAmountOutOfRange            = errors.New("amount out of range")
	ErrNotASigner                  = errors.New("key is not a required signer of this transaction")
)

// BuildRequest is a validated purchase handed to the Builder.
type BuildRequest struct {
	BuyerAddress string
	SolAmount    decimal.Decimal
	TokenAmount  decimal.Decimal
}

// PreparedTransaction is a treasury co-signed purchase transaction awaiting
// the buyer's signature.
type PreparedTransaction struct {
	// Encoded is the base64 wire transaction with the buyer's signature slot zeroed.
	Encoded string `json:"serializedTransaction"`

	// RecentBlockhash and LastValidBlockHeight bound the transaction's lifetime.
	RecentBlockhash      string `json:"recentBlockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`

	BuyerTokenAccount   string `json:"buyerTokenAccount"`
	CreatesTokenAccount bool   `json:"createsTokenAccount"`
	Lamports            uint64 `json:"lamports"`
	TokenUnits          uint64 `json:"tokenUnits"`
}

// Confirmation statuses reported by SignatureStatus.
const (
	StatusUnknown   = "unknown"
	StatusProcessed = "processed"
	StatusConfirmed = "confirmed"
	StatusFinalized = "finalized"
	StatusFailed    = "failed"
)

// SignatureStatus is the ledger's view of a submitted transaction.
type SignatureStatus struct {
	Signature string  `json:"signature"`
	Status    string  `json:"status"`
	Slot      uint64  `json:"slot"`
	Err       *string `json:"err,omitempty"`
}

// Landed reports whether the transaction reached at least confirmed commitment.
func (s *SignatureStatus) Landed() bool {
	return s.Status == StatusConfirmed || s.Status == StatusFinalized
}
