package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/price"
	"github.com/brojonat/presale/service/purchase"
	"github.com/brojonat/presale/service/solana"
	"github.com/brojonat/presale/service/wallet"
)

// Purchase amount failures, worded for display.
var (
	ErrInvalidAmount    = errors.New("please enter a valid amount")
	ErrBelowMinimum     = errors.New("amount below minimum")
	ErrAboveMaximum     = errors.New("amount above maximum")
	ErrPriceUnavailable = errors.New("SOL price not available, please wait a moment and try again")
)

// API is the part of the presale service the Purchaser talks to.
type API interface {
	Price(ctx context.Context) (*Price, error)
	PreparePurchase(ctx context.Context, req purchase.Request) (*PreparedPurchase, error)
	ReportSubmission(ctx context.Context, purchaseID, signature string) (*Submission, error)
	GetPurchase(ctx context.Context, purchaseID string) (*db.Purchase, error)
}

// BalanceReader reads an account's SOL balance in lamports.
type BalanceReader interface {
	Balance(ctx context.Context, account solanago.PublicKey) (uint64, error)
}

// Signer signs and submits a prepared transaction for the connected account.
type Signer interface {
	Name() string
	SignAndSubmit(ctx context.Context, encoded string) (string, error)
}

// Limits bounds a single purchase.
type Limits struct {
	MinSOL        decimal.Decimal
	MaxSOL        decimal.Decimal
	TokenPriceUSD decimal.Decimal
}

// DefaultLimits returns the presale's purchase bounds.
func DefaultLimits() Limits {
	return Limits{
		MinSOL:        decimal.RequireFromString("0.1"),
		MaxSOL:        decimal.RequireFromString("1"),
		TokenPriceUSD: decimal.RequireFromString("0.002"),
	}
}

// Estimate is what a SOL amount buys at a quote.
type Estimate struct {
	SolAmount   decimal.Decimal
	TokenAmount decimal.Decimal
	USDValue    decimal.Decimal
	Price       *Price
}

// Receipt is a submitted purchase.
type Receipt struct {
	Estimate
	Signature  string
	PurchaseID string
	WorkflowID string
	Record     TransactionRecord
}

// Purchaser runs the buyer side of a purchase: price, balance check,
// preparation, signing, history and submission report.
type Purchaser struct {
	api       API
	balances  BalanceReader
	state     *State
	limits    Limits
	validator *purchase.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewPurchaser creates a Purchaser. balances may be nil to skip the balance check.
func NewPurchaser(api API, balances BalanceReader, state *State, limits Limits, logger *slog.Logger) *Purchaser {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Purchaser{
		api:       api,
		balances:  balances,
		state:     state,
		limits:    limits,
		validator: purchase.NewValidator(limits.TokenPriceUSD),
		logger:    logger.With("component", "purchaser"),
		now:       time.Now,
	}
}

// CheckAmount enforces the purchase bounds on solAmount.
func (p *Purchaser) CheckAmount(solAmount decimal.Decimal) error {
	switch {
	case !solAmount.IsPositive():
		return ErrInvalidAmount
	case solAmount.LessThan(p.limits.MinSOL):
		return fmt.Errorf("%w: minimum amount should be %s SOL", ErrBelowMinimum, p.limits.MinSOL)
	case p.limits.MaxSOL.IsPositive() && solAmount.GreaterThan(p.limits.MaxSOL):
		return fmt.Errorf("%w: maximum amount should be %s SOL", ErrAboveMaximum, p.limits.MaxSOL)
	}
	return nil
}

// Estimate prices solAmount at the server's live quote.
func (p *Purchaser) Estimate(ctx context.Context, solAmount decimal.Decimal) (*Estimate, error) {
	quote, err := p.api.Price(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "price unavailable", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	return p.estimateAt(solAmount, quote)
}

func (p *Purchaser) estimateAt(solAmount decimal.Decimal, quote *Price) (*Estimate, error) {
	q := price.Quote{Price: quote.Price, Source: quote.Source}
	if !q.Valid() {
		return nil, ErrPriceUnavailable
	}
	tokens, err := p.validator.TokensFor(solAmount, q)
	if err != nil {
		return nil, err
	}
	if !tokens.IsPositive() {
		return nil, errors.New("token amount calculation error")
	}
	return &Estimate{
		SolAmount:   solAmount,
		TokenAmount: tokens,
		USDValue:    purchase.USDValue(solAmount, q),
		Price:       quote,
	}, nil
}

// Buy purchases tokens worth solAmount SOL for buyer, signing with signer.
// Successful purchases are recorded in the buyer's local history.
func (p *Purchaser) Buy(ctx context.Context, signer Signer, buyer solanago.PublicKey, solAmount decimal.Decimal) (*Receipt, error) {
	if err := p.CheckAmount(solAmount); err != nil {
		return nil, err
	}

	est, err := p.Estimate(ctx, solAmount)
	if err != nil {
		return nil, err
	}

	if err := p.checkBalance(ctx, buyer, solAmount); err != nil {
		return nil, err
	}

	prepared, err := p.api.PreparePurchase(ctx, purchase.Request{
		BuyerAddress: buyer.String(),
		NativeAmount: solAmount,
		TokenAmount:  est.TokenAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare purchase: %w", err)
	}

	signature, err := signer.SignAndSubmit(ctx, prepared.Encoded)
	if err != nil {
		if wallet.IsCancellation(err) {
			p.logger.InfoContext(ctx, "purchase cancelled", "wallet", signer.Name(), "reason", err)
		} else {
			p.logger.ErrorContext(ctx, "purchase submission failed", "wallet", signer.Name(), "error", err)
		}
		return nil, err
	}

	receipt := &Receipt{
		Estimate:   *est,
		Signature:  signature,
		PurchaseID: prepared.PurchaseID,
	}

	// Without a server-side audit row nothing will confirm the purchase later.
	status := TransactionSuccess
	if prepared.PurchaseID != "" {
		status = TransactionPending
		sub, err := p.api.ReportSubmission(ctx, prepared.PurchaseID, signature)
		if err != nil {
			p.logger.WarnContext(ctx, "failed to report submission",
				"purchase_id", prepared.PurchaseID,
				"signature", signature,
				"error", err,
			)
		} else {
			receipt.WorkflowID = sub.WorkflowID
		}
	}

	receipt.Record = TransactionRecord{
		Signature:   signature,
		PurchaseID:  prepared.PurchaseID,
		SolAmount:   solAmount,
		TokenAmount: est.TokenAmount,
		USDValue:    est.USDValue,
		Timestamp:   p.now().UTC(),
		Status:      status,
	}
	if p.state != nil {
		if err := p.state.AddTransaction(buyer.String(), receipt.Record); err != nil {
			p.logger.ErrorContext(ctx, "failed to save transaction history", "signature", signature, "error", err)
		}
	}

	p.logger.InfoContext(ctx, "purchase submitted",
		"buyer", buyer.String(),
		"signature", signature,
		"purchase_id", prepared.PurchaseID,
		"sol_amount", solAmount.String(),
		"token_amount", est.TokenAmount.String(),
	)
	return receipt, nil
}

func (p *Purchaser) checkBalance(ctx context.Context, buyer solanago.PublicKey, solAmount decimal.Decimal) error {
	if p.balances == nil {
		return nil
	}

	lamports, err := p.balances.Balance(ctx, buyer)
	if err != nil {
		// The ledger rejects an underfunded transaction anyway.
		p.logger.WarnContext(ctx, "unable to fetch wallet balance", "buyer", buyer.String(), "error", err)
		return nil
	}

	balance := solana.FromBaseUnits(lamports, solana.LamportsDecimals)
	if solAmount.GreaterThan(balance) {
		return fmt.Errorf("%w: you have %s SOL", wallet.ErrInsufficientFunds, balance.StringFixed(4))
	}
	return nil
}

// RefreshHistory resolves account's pending records against the server's
// audit log and returns how many changed.
func (p *Purchaser) RefreshHistory(ctx context.Context, account string) (int, error) {
	if p.state == nil {
		return 0, nil
	}

	changed := 0
	for _, rec := range p.state.History(account) {
		if rec.Status != TransactionPending || rec.PurchaseID == "" {
			continue
		}

		remote, err := p.api.GetPurchase(ctx, rec.PurchaseID)
		if err != nil {
			return changed, fmt.Errorf("failed to look up purchase %s: %w", rec.PurchaseID, err)
		}

		status, ok := historyStatus(remote.Status)
		if !ok {
			continue
		}
		found, err := p.state.UpdateTransactionStatus(account, rec.Signature, status)
		if err != nil {
			return changed, err
		}
		if found {
			changed++
		}
	}
	return changed, nil
}

// historyStatus maps a terminal audit status onto a history status.
func historyStatus(status string) (TransactionStatus, bool) {
	switch status {
	case db.StatusConfirmed:
		return TransactionSuccess, true
	case db.StatusFailed, db.StatusExpired:
		return TransactionFailed, true
	default:
		return "", false
	}
}
