package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/brojonat/presale/service/config"
	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/metrics"
	"github.com/brojonat/presale/service/phase"
	"github.com/brojonat/presale/service/purchase"
	"github.com/brojonat/presale/service/solana"
)

type prepareResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*solana.PreparedTransaction
	PurchaseID    string  `json:"purchaseId,omitempty"`
	QuotePrice    float64 `json:"quotePrice"`
	QuoteSource   string  `json:"quoteSource"`
	DegradedPrice bool    `json:"degradedPrice"`
}

// handlePreparePurchase returns a handler that validates a purchase against a
// live quote and returns a treasury co-signed transaction for the buyer to sign.
// POST /api/purchase-tokens
func handlePreparePurchase(
	oracle QuoteSource,
	validator *purchase.Validator,
	builder TransactionBuilder,
	controller *phase.Controller,
	store PurchaseStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) http.Handler {
	logger = logger.With("component", "purchase")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		reject := func(req purchase.Request, err error) {
			kind := purchase.Classify(err)
			if m != nil {
				m.RecordPurchaseRejected(string(kind))
			}
			status := kind.HTTPStatus()
			if status >= http.StatusInternalServerError {
				logger.ErrorContext(ctx, "purchase preparation failed",
					"kind", kind,
					"buyer", req.BuyerAddress,
					"error", err,
				)
			} else {
				logger.InfoContext(ctx, "purchase rejected",
					"kind", kind,
					"buyer", req.BuyerAddress,
					"error", err,
				)
			}
			writeJSON(w, purchaseErrorBody(err, kind), status)
		}

		var req purchase.Request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := req.CheckComplete(); err != nil {
			reject(req, err)
			return
		}
		if !controller.Current().PresaleActive {
			reject(req, purchase.ErrPresaleInactive)
			return
		}
		if err := builder.Preflight(); err != nil {
			reject(req, err)
			return
		}

		quote := oracle.QuoteOrFallback(ctx)
		if err := validator.Validate(req.NativeAmount, req.TokenAmount, quote); err != nil {
			reject(req, err)
			return
		}

		prepared, err := builder.Build(ctx, req.BuildRequest())
		if err != nil {
			reject(req, err)
			return
		}

		resp := prepareResponse{
			Success:             true,
			Message:             "Transaction prepared successfully",
			PreparedTransaction: prepared,
			QuotePrice:          quote.Price.InexactFloat64(),
			QuoteSource:         quote.Source,
			DegradedPrice:       quote.Degraded,
		}

		if store != nil {
			p, err := store.CreatePurchase(ctx, db.CreatePurchaseParams{
				BuyerAddress:    req.BuyerAddress,
				SolAmount:       req.NativeAmount,
				TokenAmount:     req.TokenAmount,
				Lamports:        int64(prepared.Lamports),
				TokenUnits:      int64(prepared.TokenUnits),
				QuotePrice:      quote.Price,
				QuoteSource:     quote.Source,
				Degraded:        quote.Degraded,
				RecentBlockhash: prepared.RecentBlockhash,
			})
			if err != nil {
				// The transaction is still valid without an audit row.
				logger.ErrorContext(ctx, "failed to record purchase", "buyer", req.BuyerAddress, "error", err)
			} else {
				resp.PurchaseID = p.ID.String()
			}
		}

		if m != nil {
			m.RecordPurchasePrepared(prepared.CreatesTokenAccount, quote.Degraded)
		}

		logger.InfoContext(ctx, "purchase prepared",
			"buyer", req.BuyerAddress,
			"sol_amount", req.NativeAmount.String(),
			"token_amount", req.TokenAmount.String(),
			"quote_source", quote.Source,
			"degraded_price", quote.Degraded,
			"creates_token_account", prepared.CreatesTokenAccount,
			"purchase_id", resp.PurchaseID,
		)

		writeJSON(w, resp, http.StatusOK)
	})
}

// purchaseErrorBody renders a purchase failure with the wording clients expect.
func purchaseErrorBody(err error, kind purchase.Kind) map[string]string {
	switch {
	case errors.Is(err, purchase.ErrMissingParameters):
		return map[string]string{"error": "Missing required parameters"}
	case errors.Is(err, solana.ErrMintNotConfigured):
		return map[string]string{"error": "Token mint address not configured"}
	case errors.Is(err, solana.ErrTreasuryCredentialMissing):
		return map[string]string{"error": "Treasury private key not configured. Please set TREASURY_PRIVATE_KEY in environment variables."}
	case errors.Is(err, solana.ErrTreasuryCredentialMalformed):
		return map[string]string{"error": "Invalid treasury private key format"}
	}

	switch kind {
	case purchase.KindInternal, purchase.KindLedger:
		return map[string]string{
			"error":   "Failed to process token purchase",
			"details": err.Error(),
		}
	default:
		return map[string]string{"error": err.Error()}
	}
}

// handlePurchaseInfo returns a handler that describes the purchase endpoint.
// GET /api/purchase-tokens
func handlePurchaseInfo(cfg *config.Config, validator *purchase.Validator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"message":    "Token purchase API endpoint",
			"tokenPrice": validator.TokenPriceUSD().InexactFloat64(),
		}
		if cfg != nil {
			resp["mintAddress"] = cfg.TokenMintAddress
			resp["tokenSymbol"] = cfg.TokenSymbol
			resp["baseUrl"] = cfg.BaseURL
			resp["minPurchaseSol"] = cfg.MinPurchaseSOL.InexactFloat64()
			resp["maxPurchaseSol"] = cfg.MaxPurchaseSOL.InexactFloat64()
		}
		writeJSON(w, resp, http.StatusOK)
	})
}
