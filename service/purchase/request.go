package purchase

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brojonat/presale/service/solana"
)

// Request validation failures.
var (
	ErrMissingParameters = errors.New("missing required parameters")
	ErrInvalidAmount     = errors.New("amounts must be positive")
	ErrInvalidQuote      = errors.New("quote price must be positive")
	ErrPresaleInactive   = errors.New("presale is not active")
)

// Request is a buyer's purchase intent as sent by the client.
type Request struct {
	BuyerAddress string          `json:"userPublicKey"`
	NativeAmount decimal.Decimal `json:"solAmount"`
	TokenAmount  decimal.Decimal `json:"tokenAmount"`
}

// CheckComplete rejects requests with an absent or zero field, then
// negative amounts.
func (r Request) CheckComplete() error {
	if r.BuyerAddress == "" || r.NativeAmount.IsZero() || r.TokenAmount.IsZero() {
		return ErrMissingParameters
	}
	if r.NativeAmount.IsNegative() || r.TokenAmount.IsNegative() {
		return fmt.Errorf("%w: solAmount=%s tokenAmount=%s", ErrInvalidAmount, r.NativeAmount, r.TokenAmount)
	}
	return nil
}

// BuildRequest converts a validated request for the transaction builder.
func (r Request) BuildRequest() solana.BuildRequest {
	return solana.BuildRequest{
		BuyerAddress: r.BuyerAddress,
		SolAmount:    r.NativeAmount,
		TokenAmount:  r.TokenAmount,
	}
}
