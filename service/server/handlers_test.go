package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/price"
	"github.com/brojonat/presale/service/solana"
)

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSOLPrice(t *testing.T) {
	t.Run("first usable source wins", func(t *testing.T) {
		f := newServerFixture(t)
		f.sources = []price.Source{
			&stubSource{name: "binance", err: errors.New("status 451")},
			&stubSource{name: "coinlore", price: "0"},
			&stubSource{name: "cryptocompare", price: "187.5"},
		}
		rec := doRequest(t, f.server(t).Handler(), http.MethodGet, "/api/sol-price", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		data := body["data"].(map[string]interface{})
		assert.Equal(t, 187.5, data["price"])
		assert.Equal(t, -1.25, data["change24h"])
		assert.Equal(t, "cryptocompare", data["source"])
		assert.Equal(t, "2025-07-20T12:00:00Z", data["lastUpdated"])
	})

	t.Run("all sources failing", func(t *testing.T) {
		f := newServerFixture(t)
		f.sources = []price.Source{&stubSource{name: "binance", err: errors.New("timeout")}}
		rec := doRequest(t, f.server(t).Handler(), http.MethodGet, "/api/sol-price", "")

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Nil(t, body["data"])
		assert.Contains(t, body["error"], "all price sources unavailable")
	})
}

func TestLegacySOLPrice(t *testing.T) {
	t.Run("deprecated shape", func(t *testing.T) {
		f := newServerFixture(t)
		rec := doRequest(t, f.server(t).Handler(), http.MethodGet, "/api/solana-price", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get("Deprecation"))
		assert.Equal(t, `</api/sol-price>; rel="successor-version"`, rec.Header().Get("Link"))

		body := decodeBody(t, rec)
		assert.Equal(t, 200.0, body["price"])
		assert.Equal(t, -1.25, body["priceChange24h"])
		assert.Equal(t, "binance", body["source"])
		assert.Contains(t, body, "lastUpdated")
	})

	t.Run("all sources failing", func(t *testing.T) {
		f := newServerFixture(t)
		f.sources = nil
		rec := doRequest(t, f.server(t).Handler(), http.MethodGet, "/api/solana-price", "")

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "true", rec.Header().Get("Deprecation"))
		body := decodeBody(t, rec)
		assert.Equal(t, "Failed to fetch Solana price", body["error"])
		assert.NotEmpty(t, body["message"])
	})
}

func TestPreparePurchase(t *testing.T) {
	// At 200 USD/SOL and 0.002 USD/token, 50000 tokens cost 0.5 SOL.
	purchaseBody := func(buyer, sol, tokens string) string {
		return `{"userPublicKey":"` + buyer + `","solAmount":` + sol + `,"tokenAmount":` + tokens + `}`
	}

	tests := []struct {
		name       string
		setup      func(*serverFixture)
		body       func(*serverFixture) string
		wantStatus int
		check      func(*testing.T, *serverFixture, map[string]interface{})
	}{
		{
			name: "prepares treasury signed transaction",
			body: func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.5", "50000") },
			wantStatus: http.StatusOK,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, "Transaction prepared successfully", body["message"])
				assert.Equal(t, false, body["degradedPrice"])
				assert.Equal(t, "binance", body["quoteSource"])
				assert.Equal(t, true, body["createsTokenAccount"])

				summary, err := solana.Inspect(body["serializedTransaction"].(string))
				require.NoError(t, err)
				assert.Equal(t, f.buyer.String(), summary.FeePayer)
				require.Len(t, summary.Instructions, 3)
				assert.Equal(t, solana.KindSOLTransfer, summary.Instructions[1].Kind)
				assert.Equal(t, uint64(500_000_000), summary.Instructions[1].Amount)

				id, err := uuid.Parse(body["purchaseId"].(string))
				require.NoError(t, err)
				stored, ok := f.store.purchases[id]
				require.True(t, ok)
				assert.Equal(t, db.StatusPrepared, stored.Status)
				assert.Equal(t, int64(500_000_000), stored.Lamports)
				assert.True(t, stored.QuotePrice.Equal(decimal.NewFromInt(200)))
			},
		},
		{
			name:       "accepts amount within tolerance",
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.502", "50000") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "accepts string amounts",
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), `"0.5"`, `"50000"`) },
			wantStatus: http.StatusOK,
		},
		{
			name: "degraded price when every source fails",
			setup: func(f *serverFixture) {
				f.sources = []price.Source{&stubSource{name: "binance", err: errors.New("down")}}
			},
			// 50000 × 0.002 / 150
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.666667", "50000") },
			wantStatus: http.StatusOK,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Equal(t, true, body["degradedPrice"])
				assert.Equal(t, price.FallbackSource, body["quoteSource"])
				assert.Equal(t, 150.0, body["quotePrice"])
			},
		},
		{
			name: "audit failure does not block preparation",
			setup: func(f *serverFixture) {
				f.store.createErr = errors.New("db down")
			},
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.5", "50000") },
			wantStatus: http.StatusOK,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.NotContains(t, body, "purchaseId")
			},
		},
		{
			name:       "missing parameters",
			body:       func(f *serverFixture) string { return `{"userPublicKey":"` + f.buyer.String() + `","solAmount":0.5}` },
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Equal(t, "Missing required parameters", body["error"])
			},
		},
		{
			name:       "malformed json",
			body:       func(f *serverFixture) string { return `{"userPublicKey":` },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "price mismatch",
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.45", "50000") },
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Equal(t, "Price calculation mismatch. Expected: 0.500000 SOL, Received: 0.450000 SOL", body["error"])
			},
		},
		{
			name:       "invalid buyer address",
			body:       func(f *serverFixture) string { return purchaseBody("not-a-key", "0.5", "50000") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "presale not active",
			setup: func(f *serverFixture) {
				f.liveAt = time.Now().Add(time.Hour)
				f.endsAt = time.Now().Add(2 * time.Hour)
			},
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.5", "50000") },
			wantStatus: http.StatusForbidden,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Equal(t, "presale is not active", body["error"])
			},
		},
		{
			name:       "mint not configured",
			setup:      func(f *serverFixture) { f.cfg.TokenMintAddress = "" },
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.5", "50000") },
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Equal(t, "Token mint address not configured", body["error"])
			},
		},
		{
			name:       "placeholder treasury key",
			setup:      func(f *serverFixture) { f.cfg.TreasuryPrivateKey = "your_secure_private_key_here" },
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.5", "50000") },
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Contains(t, body["error"], "Treasury private key not configured")
			},
		},
		{
			name:       "malformed treasury key",
			setup:      func(f *serverFixture) { f.cfg.TreasuryPrivateKey = "%%%" },
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.5", "50000") },
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Equal(t, "Invalid treasury private key format", body["error"])
			},
		},
		{
			name:       "ledger unavailable",
			setup:      func(f *serverFixture) { f.ledger.err = errors.New("429 too many requests") },
			body:       func(f *serverFixture) string { return purchaseBody(f.buyer.String(), "0.5", "50000") },
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, f *serverFixture, body map[string]interface{}) {
				assert.Equal(t, "Failed to process token purchase", body["error"])
				assert.Contains(t, body["details"], "ledger unavailable")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			rec := doRequest(t, f.server(t).Handler(), http.MethodPost, "/api/purchase-tokens", tt.body(f))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, f, decodeBody(t, rec))
			}
		})
	}
}

func TestPreparePurchase_WithoutStore(t *testing.T) {
	f := newServerFixture(t)
	f.store = nil
	body := `{"userPublicKey":"` + f.buyer.String() + `","solAmount":0.5,"tokenAmount":50000}`

	rec := doRequest(t, f.server(t).Handler(), http.MethodPost, "/api/purchase-tokens", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decodeBody(t, rec), "purchaseId")
}

func TestPurchaseInfo(t *testing.T) {
	f := newServerFixture(t)
	rec := doRequest(t, f.server(t).Handler(), http.MethodGet, "/api/purchase-tokens", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Token purchase API endpoint", body["message"])
	assert.Equal(t, 0.002, body["tokenPrice"])
	assert.Equal(t, f.mint.String(), body["mintAddress"])
	assert.Equal(t, 0.1, body["minPurchaseSol"])
	assert.Equal(t, 1.0, body["maxPurchaseSol"])
}

func TestPhase(t *testing.T) {
	f := newServerFixture(t)
	rec := doRequest(t, f.server(t).Handler(), http.MethodGet, "/api/v1/presale/phase", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ending-countdown", body["phase"])
	assert.Equal(t, "Presale ends in", body["title"])
	assert.Equal(t, true, body["isPresaleActive"])
	assert.Contains(t, body, "timeLeft")
	assert.Regexp(t, `^\d+d \d{2}h \d{2}m \d{2}s$`, body["timeLeftLabel"])
}

func TestSubmitPurchase(t *testing.T) {
	sig := "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

	prepare := func(t *testing.T, f *serverFixture) uuid.UUID {
		p, err := f.store.CreatePurchase(t.Context(), db.CreatePurchaseParams{
			BuyerAddress: f.buyer.String(),
			SolAmount:    decimal.RequireFromString("0.5"),
			TokenAmount:  decimal.RequireFromString("50000"),
		})
		require.NoError(t, err)
		return p.ID
	}

	t.Run("records submission and starts confirmation", func(t *testing.T) {
		f := newServerFixture(t)
		id := prepare(t, f)

		rec := doRequest(t, f.server(t).Handler(), http.MethodPost,
			"/api/v1/purchases/"+id.String()+"/submission", `{"signature":"`+sig+`"}`)

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "confirm-purchase-"+id.String(), body["workflowId"])

		input, ok := f.confirmer.Started(id.String())
		require.True(t, ok)
		assert.Equal(t, sig, input.Signature)
		assert.Equal(t, f.buyer.String(), input.BuyerAddress)
		assert.Equal(t, 2*time.Second, input.PollInterval)
		assert.Equal(t, 45, input.MaxAttempts)
		assert.Equal(t, db.StatusSubmitted, f.store.purchases[id].Status)
	})

	t.Run("second submission conflicts", func(t *testing.T) {
		f := newServerFixture(t)
		id := prepare(t, f)
		h := f.server(t).Handler()

		first := doRequest(t, h, http.MethodPost, "/api/v1/purchases/"+id.String()+"/submission", `{"signature":"`+sig+`"}`)
		require.Equal(t, http.StatusAccepted, first.Code)
		second := doRequest(t, h, http.MethodPost, "/api/v1/purchases/"+id.String()+"/submission", `{"signature":"`+sig+`"}`)
		assert.Equal(t, http.StatusConflict, second.Code)
		assert.Equal(t, 1, f.confirmer.StartCount())
	})

	t.Run("confirmation start failure still accepts", func(t *testing.T) {
		f := newServerFixture(t)
		f.confirmer.SetStartError(errors.New("temporal unavailable"))
		id := prepare(t, f)

		rec := doRequest(t, f.server(t).Handler(), http.MethodPost,
			"/api/v1/purchases/"+id.String()+"/submission", `{"signature":"`+sig+`"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.NotContains(t, decodeBody(t, rec), "workflowId")
	})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown purchase", "/api/v1/purchases/" + uuid.NewString() + "/submission", `{"signature":"` + sig + `"}`, http.StatusNotFound},
		{"invalid id", "/api/v1/purchases/abc/submission", `{"signature":"` + sig + `"}`, http.StatusBadRequest},
		{"missing signature", "/api/v1/purchases/" + uuid.NewString() + "/submission", `{}`, http.StatusBadRequest},
		{"non base58 signature", "/api/v1/purchases/" + uuid.NewString() + "/submission", `{"signature":"0OIl"}`, http.StatusBadRequest},
		{"malformed body", "/api/v1/purchases/" + uuid.NewString() + "/submission", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t)
			rec := doRequest(t, f.server(t).Handler(), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetAndListPurchases(t *testing.T) {
	f := newServerFixture(t)
	p, err := f.store.CreatePurchase(t.Context(), db.CreatePurchaseParams{
		BuyerAddress: f.buyer.String(),
		SolAmount:    decimal.RequireFromString("0.5"),
		TokenAmount:  decimal.RequireFromString("50000"),
	})
	require.NoError(t, err)
	h := f.server(t).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/v1/purchases/"+p.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, p.ID.String(), body["id"])
	assert.Equal(t, "prepared", body["status"])

	rec = doRequest(t, h, http.MethodGet, "/api/v1/purchases/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/purchases?buyer="+f.buyer.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, 1.0, body["count"])

	rec = doRequest(t, h, http.MethodGet, "/api/v1/purchases?buyer="+f.buyer.String()+"&limit=500", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/purchases", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr string
	}{
		{"valid", "11111111111111111111111111111111", ""},
		{"empty", "", "address is required"},
		{"too long", strings.Repeat("A", 101), "address too long"},
		{"control characters", "abc\x00def", "control characters"},
		{"sql injection", "abc'; DROP TABLE purchases;--", "invalid address format"},
		{"non base58", "0OIl", "invalid address format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddress(tt.address)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
