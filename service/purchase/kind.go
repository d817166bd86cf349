package purchase

import (
	"errors"
	"net/http"

	"github.com/brojonat/presale/service/price"
	"github.com/brojonat/presale/service/solana"
	"github.com/brojonat/presale/service/wallet"
)

// Kind classifies purchase failures for status codes, metrics and wording.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindValidation        Kind = "validation"
	KindPresaleInactive   Kind = "presale_inactive"
	KindOracleUnavailable Kind = "oracle_unavailable"
	KindWallet            Kind = "wallet"
	KindLedger            Kind = "ledger"
	KindInternal          Kind = "internal"
)

// Classify maps an error from any purchase stage to its Kind.
func Classify(err error) Kind {
	var mismatch *PriceMismatchError
	var ledgerErr *wallet.LedgerError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, solana.ErrMintNotConfigured),
		errors.Is(err, solana.ErrTreasuryCredentialMissing),
		errors.Is(err, solana.ErrTreasuryCredentialMalformed):
		return KindConfiguration
	case errors.Is(err, ErrPresaleInactive):
		return KindPresaleInactive
	case errors.As(err, &mismatch),
		errors.Is(err, ErrMissingParameters),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, solana.ErrInvalidBuyerAddress),
		errors.Is(err, solana.ErrAmountOutOfRange):
		return KindValidation
	case errors.Is(err, ErrInvalidQuote),
		errors.Is(err, price.ErrAllSourcesUnavailable):
		return KindOracleUnavailable
	case errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, wallet.ErrUserRejected),
		errors.Is(err, wallet.ErrAccountLocked),
		errors.Is(err, wallet.ErrInsufficientFunds):
		return KindWallet
	case errors.Is(err, solana.ErrLedgerUnavailable),
		errors.As(err, &ledgerErr):
		return KindLedger
	default:
		return KindInternal
	}
}

// HTTPStatus returns the response status for failures of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindWallet:
		return http.StatusBadRequest
	case KindPresaleInactive:
		return http.StatusForbidden
	case KindOracleUnavailable, KindLedger:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
