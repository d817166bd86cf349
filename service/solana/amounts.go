package solana

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsDecimals is the precision of SOL: 1 SOL = 10^9 lamports.
const LamportsDecimals = 9

// ToBaseUnits converts a decimal amount to the smallest unit at the given
// precision, rounding down.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", ErrAmountOutOfRange, amount)
	}
	units := amount.Shift(decimals).Floor().BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits at %d decimals", ErrAmountOutOfRange, amount, decimals)
	}
	return units.Uint64(), nil
}

// FromBaseUnits converts smallest units back to a decimal amount.
func FromBaseUnits(units uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -decimals)
}
