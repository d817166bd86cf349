package wallet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("wallet not found")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrUserRejected      = errors.New("request rejected by user")
	ErrAccountLocked     = errors.New("wallet account locked or unreadable")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// LedgerError is a submission failure not attributable to the user.
type LedgerError struct {
	Message string
	Err     error
}

func (e *LedgerError) Error() string {
	return "ledger rejected transaction: " + e.Message
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

var (
	insufficientPhrases = []string{"insufficient"}
	rejectionPhrases    = []string{"rejected", "cancelled", "canceled", "denied"}
)

// normalize maps a raw submission error onto the wallet error set.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, p := range insufficientPhrases {
		if strings.Contains(msg, p) {
			return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
	}
	for _, p := range rejectionPhrases {
		if strings.Contains(msg, p) {
			return fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
	}
	return &LedgerError{Message: err.Error(), Err: err}
}

// IsCancellation reports whether err is a user decision rather than a
// failure. Cancellations are logged at info, not error.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrUserRejected) || errors.Is(err, ErrInsufficientFunds)
}

// UserMessage returns the notification text for a wallet error.
func UserMessage(err error) string {
	var ledgerErr *LedgerError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return "Insufficient SOL balance for this transaction"
	case errors.Is(err, ErrUserRejected):
		return "Transaction was cancelled by user"
	case errors.Is(err, ErrNotFound):
		return "No supported wallet found. Set PRESALE_KEYPAIR_PATH or PRESALE_WALLET_SECRET."
	case errors.Is(err, ErrNotConnected):
		return "Wallet not connected"
	case errors.Is(err, ErrAccountLocked):
		return "Please create or unlock your wallet account first."
	case errors.As(err, &ledgerErr):
		return "Transaction failed: " + ledgerErr.Message
	default:
		return err.Error()
	}
}

// ShortenAddress renders an address as its first and last four characters.
func ShortenAddress(address string) string {
	const keep = 4
	if len(address) <= 2*keep {
		return address
	}
	return address[:keep] + "..." + address[len(address)-keep:]
}
