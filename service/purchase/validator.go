package purchase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brojonat/presale/service/price"
)

// DefaultTolerance is the accepted relative deviation between the claimed
// and expected SOL amount.
var DefaultTolerance = decimal.RequireFromString("0.005")

// PriceMismatchError reports a claimed SOL amount outside tolerance.
type PriceMismatchError struct {
	Expected  decimal.Decimal
	Received  decimal.Decimal
	Tolerance decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("Price calculation mismatch. Expected: %s SOL, Received: %s SOL",
		e.Expected.StringFixed(6), e.Received.StringFixed(6))
}

// Validator checks claimed SOL amounts against the token price and a quote.
type Validator struct {
	tokenPriceUSD decimal.Decimal
	tolerance     decimal.Decimal
}

// NewValidator creates a validator for a fixed USD token price.
func NewValidator(tokenPriceUSD decimal.Decimal) *Validator {
	return &Validator{
		tokenPriceUSD: tokenPriceUSD,
		tolerance:     DefaultTolerance,
	}
}

// TokenPriceUSD returns the configured token price.
func (v *Validator) TokenPriceUSD() decimal.Decimal {
	return v.tokenPriceUSD
}

// Expected returns the SOL amount tokenAmount costs at quote.
func (v *Validator) Expected(tokenAmount decimal.Decimal, quote price.Quote) (decimal.Decimal, error) {
	if !quote.Valid() {
		return decimal.Zero, fmt.Errorf("%w: got %s from %s", ErrInvalidQuote, quote.Price, quote.Source)
	}
	expectedUSD := tokenAmount.Mul(v.tokenPriceUSD)
	return expectedUSD.Div(quote.Price), nil
}

// Validate accepts claimed iff |claimed - expected| <= expected × tolerance.
func (v *Validator) Validate(claimed, tokenAmount decimal.Decimal, quote price.Quote) error {
	if !claimed.IsPositive() || !tokenAmount.IsPositive() {
		return fmt.Errorf("%w: solAmount=%s tokenAmount=%s", ErrInvalidAmount, claimed, tokenAmount)
	}

	expected, err := v.Expected(tokenAmount, quote)
	if err != nil {
		return err
	}

	tolerance := expected.Mul(v.tolerance)
	if claimed.Sub(expected).Abs().GreaterThan(tolerance) {
		return &PriceMismatchError{
			Expected:  expected,
			Received:  claimed,
			Tolerance: tolerance,
		}
	}
	return nil
}

// TokensFor returns how many tokens nativeAmount SOL buys at quote:
// sol × price / tokenPrice.
func (v *Validator) TokensFor(nativeAmount decimal.Decimal, quote price.Quote) (decimal.Decimal, error) {
	if !quote.Valid() {
		return decimal.Zero, fmt.Errorf("%w: got %s from %s", ErrInvalidQuote, quote.Price, quote.Source)
	}
	if !v.tokenPriceUSD.IsPositive() {
		return decimal.Zero, fmt.Errorf("token price must be positive, got %s", v.tokenPriceUSD)
	}
	return nativeAmount.Mul(quote.Price).Div(v.tokenPriceUSD), nil
}

// USDValue returns the USD value of nativeAmount SOL at quote.
func USDValue(nativeAmount decimal.Decimal, quote price.Quote) decimal.Decimal {
	return nativeAmount.Mul(quote.Price)
}
