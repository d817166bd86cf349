package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/brojonat/presale/service/config"
	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/phase"
	"github.com/brojonat/presale/service/temporal"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxSignatureLength = 100     // Signatures are 88 chars
	defaultListLimit   = 20
	maxListLimit       = 100
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handlePhase returns a handler that reports the presale phase.
// GET /api/v1/presale/phase
func handlePhase(controller *phase.Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := controller.Current()
		writeJSON(w, phaseResponse{
			State:         state,
			TimeLeftLabel: state.TimeLeft.String(),
		}, http.StatusOK)
	})
}

type phaseResponse struct {
	phase.State
	TimeLeftLabel string `json:"timeLeftLabel"`
}

// handleGetPurchase returns a handler that retrieves one purchase.
// GET /api/v1/purchases/{id}
func handleGetPurchase(store PurchaseStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, "invalid purchase id", http.StatusBadRequest)
			return
		}

		p, err := store.GetPurchase(r.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "purchase not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get purchase", "purchase_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, p, http.StatusOK)
	})
}

// handleListPurchases returns a handler that lists a buyer's purchases, newest first.
// GET /api/v1/purchases?buyer={address}&limit={n}
func handleListPurchases(store PurchaseStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buyer := r.URL.Query().Get("buyer")
		if err := validateAddress(buyer); err != nil {
			logger.DebugContext(r.Context(), "invalid buyer", "buyer", buyer, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit := defaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxListLimit {
				writeError(w, fmt.Sprintf("invalid limit: must be between 1 and %d", maxListLimit), http.StatusBadRequest)
				return
			}
			limit = n
		}

		purchases, err := store.ListPurchasesByBuyer(r.Context(), buyer, int32(limit))
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list purchases", "buyer", buyer, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if purchases == nil {
			purchases = []*db.Purchase{}
		}

		writeJSON(w, map[string]interface{}{
			"buyer":     buyer,
			"purchases": purchases,
			"count":     len(purchases),
		}, http.StatusOK)
	})
}

// handleSubmitPurchase returns a handler that records the buyer's submitted
// signature and starts background confirmation.
// POST /api/v1/purchases/{id}/submission
func handleSubmitPurchase(store PurchaseStore, confirmer temporal.Confirmer, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, "invalid purchase id", http.StatusBadRequest)
			return
		}

		var req struct {
			Signature string `json:"signature"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateSignature(req.Signature); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := store.MarkPurchaseSubmitted(r.Context(), id, req.Signature)
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeError(w, "purchase not found", http.StatusNotFound)
			return
		case errors.Is(err, db.ErrInvalidTransition):
			writeError(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			logger.ErrorContext(r.Context(), "failed to record submission", "purchase_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "purchase submitted",
			"purchase_id", id,
			"buyer", p.BuyerAddress,
			"signature", req.Signature,
		)

		resp := map[string]interface{}{"purchase": p}
		if confirmer != nil {
			input := temporal.ConfirmPurchaseInput{
				PurchaseID:   id.String(),
				BuyerAddress: p.BuyerAddress,
				Signature:    req.Signature,
				SubmittedAt:  time.Now().UTC(),
			}
			if cfg != nil {
				input.PollInterval = cfg.ConfirmationPollInterval
				input.MaxAttempts = cfg.ConfirmationMaxAttempts
			}
			workflowID, err := confirmer.StartConfirmPurchase(r.Context(), input)
			if err != nil {
				// The submission stays recorded either way.
				logger.ErrorContext(r.Context(), "failed to start confirmation", "purchase_id", id, "error", err)
			} else {
				resp["workflowId"] = workflowID
			}
		}

		writeJSON(w, resp, http.StatusAccepted)
	})
}

// decodeJSON decodes a size-limited request body.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errorf("request body too large: maximum size is 1MB")
		}
		return errorf("invalid request body: must be valid JSON")
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// validateSignature validates a transaction signature's format.
func validateSignature(signature string) error {
	if signature == "" {
		return errorf("signature is required")
	}
	if len(signature) > maxSignatureLength {
		return errorf("signature too long: maximum length is %d characters", maxSignatureLength)
	}
	if !validAddressRegex.MatchString(signature) {
		return errorf("invalid signature format: must contain only valid base58 characters")
	}
	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
