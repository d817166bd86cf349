package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natspkg "github.com/brojonat/presale/service/nats"
	"github.com/brojonat/presale/service/phase"
	"github.com/brojonat/presale/service/purchase"
)

const (
	testBuyer      = "7EcDhSYGxXyscszYEp35KHN8vvw3svAuLKTzXwCFLtV"
	testPurchaseID = "3f6c7f1e-9a7c-4b43-9a57-1c0f3e7f5a11"
	testSignature  = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
)

func writeJSONResponse(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestPrice_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/sol-price", r.URL.Path)

		writeJSONResponse(t, w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"price":       187.42,
				"change24h":   -2.5,
				"source":      "binance",
				"lastUpdated": "2025-07-20T12:00:00Z",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	p, err := client.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "187.42", p.Price.String())
	assert.Equal(t, "-2.5", p.Change24h.String())
	assert.Equal(t, "binance", p.Source)
	assert.Equal(t, 2025, p.LastUpdated.Year())
}

func TestPrice_AllSourcesFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(t, w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"data":    nil,
			"error":   "all price sources unavailable",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Price(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "all price sources unavailable")
}

func TestPreparePurchase_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/purchase-tokens", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testBuyer, body["userPublicKey"])
		assert.Equal(t, "0.5", body["solAmount"])
		assert.Equal(t, "50000", body["tokenAmount"])

		writeJSONResponse(t, w, http.StatusOK, map[string]interface{}{
			"success":               true,
			"message":               "Transaction prepared successfully",
			"serializedTransaction": "AQID",
			"recentBlockhash":       "hash",
			"createsTokenAccount":   true,
			"lamports":              500000000,
			"purchaseId":            testPurchaseID,
			"quotePrice":            200,
			"quoteSource":           "binance",
			"degradedPrice":         false,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	prepared, err := client.PreparePurchase(context.Background(), purchase.Request{
		BuyerAddress: testBuyer,
		NativeAmount: decimal.RequireFromString("0.5"),
		TokenAmount:  decimal.RequireFromString("50000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "AQID", prepared.Encoded)
	assert.Equal(t, testPurchaseID, prepared.PurchaseID)
	assert.True(t, prepared.CreatesTokenAccount)
	assert.Equal(t, uint64(500000000), prepared.Lamports)
	assert.Equal(t, "binance", prepared.QuoteSource)
}

func TestPreparePurchase_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        map[string]string
		wantStatus  int
		wantMessage string
		wantDetails string
	}{
		{
			name:        "price mismatch",
			status:      http.StatusBadRequest,
			body:        map[string]string{"error": "price mismatch: expected 0.5 SOL, received 0.6 SOL"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "price mismatch: expected 0.5 SOL, received 0.6 SOL",
		},
		{
			name:        "presale inactive",
			status:      http.StatusForbidden,
			body:        map[string]string{"error": "presale is not active"},
			wantStatus:  http.StatusForbidden,
			wantMessage: "presale is not active",
		},
		{
			name:        "internal with details",
			status:      http.StatusInternalServerError,
			body:        map[string]string{"error": "Failed to process token purchase", "details": "boom"},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to process token purchase",
			wantDetails: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSONResponse(t, w, tt.status, tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL, nil, nil)
			_, err := client.PreparePurchase(context.Background(), purchase.Request{BuyerAddress: testBuyer})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantDetails, apiErr.Details)
		})
	}
}

func TestPreparePurchase_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.PreparePurchase(context.Background(), purchase.Request{BuyerAddress: testBuyer})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestReportSubmission(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/purchases/"+testPurchaseID+"/submission", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testSignature, body["signature"])

		writeJSONResponse(t, w, http.StatusAccepted, map[string]interface{}{
			"purchase": map[string]interface{}{
				"id":           testPurchaseID,
				"buyerAddress": testBuyer,
				"status":       "submitted",
				"signature":    testSignature,
			},
			"workflowId": "confirm-purchase-" + testPurchaseID,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	sub, err := client.ReportSubmission(context.Background(), testPurchaseID, testSignature)
	require.NoError(t, err)
	require.NotNil(t, sub.Purchase)
	assert.Equal(t, testPurchaseID, sub.Purchase.ID.String())
	assert.Equal(t, "submitted", sub.Purchase.Status)
	assert.Equal(t, "confirm-purchase-"+testPurchaseID, sub.WorkflowID)
}

func TestReportSubmission_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(t, w, http.StatusConflict, map[string]string{"error": "invalid status transition"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ReportSubmission(context.Background(), testPurchaseID, testSignature)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status transition")
}

func TestPhase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/presale/phase", r.URL.Path)
		writeJSONResponse(t, w, http.StatusOK, map[string]interface{}{
			"phase":           "ending-countdown",
			"title":           "Presale ends in",
			"timeLeft":        map[string]int{"days": 1, "hours": 2, "minutes": 3, "seconds": 4},
			"isPresaleActive": true,
			"timeLeftLabel":   "1d 2h 3m 4s",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	status, err := client.Phase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, phase.EndingCountdown, status.Phase)
	assert.True(t, status.PresaleActive)
	assert.Equal(t, int64(1), status.TimeLeft.Days)
	assert.Equal(t, "1d 2h 3m 4s", status.TimeLeftLabel)
}

func TestListPurchases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/purchases", r.URL.Path)
		assert.Equal(t, testBuyer, r.URL.Query().Get("buyer"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		writeJSONResponse(t, w, http.StatusOK, map[string]interface{}{
			"buyer": testBuyer,
			"purchases": []map[string]interface{}{
				{"id": testPurchaseID, "buyerAddress": testBuyer, "status": "confirmed", "solAmount": "0.5"},
			},
			"count": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	purchases, err := client.ListPurchases(context.Background(), testBuyer, 5)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "confirmed", purchases[0].Status)
	assert.Equal(t, "0.5", purchases[0].SolAmount.String())
}

func TestGetPurchase_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(t, w, http.StatusNotFound, map[string]string{"error": "purchase not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetPurchase(context.Background(), testPurchaseID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purchase not found")
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil, nil)
	assert.NoError(t, client.Health(context.Background()))
}

func TestStreamPurchases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/purchases/"+testBuyer, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: connected\ndata: {\"buyer\":\"%s\"}\n\n", testBuyer)
		fmt.Fprintf(w, ": keepalive\n\n")
		fmt.Fprintf(w, "event: purchase\ndata: {\"purchase_id\":\"%s\",\"buyer_address\":\"%s\",\"status\":\"confirmed\",\"sol_amount\":\"0.5\",\"token_amount\":\"50000\"}\n\n", testPurchaseID, testBuyer)
		fmt.Fprintf(w, "event: purchase\ndata: not json\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	var events []natspkg.PurchaseEvent
	err := client.StreamPurchases(context.Background(), testBuyer, func(e natspkg.PurchaseEvent) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, testPurchaseID, events[0].PurchaseID)
	assert.Equal(t, "confirmed", events[0].Status)
}

func TestStreamPurchases_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.StreamPurchases(context.Background(), testBuyer, func(natspkg.PurchaseEvent) error {
		t.Fatal("no purchase events expected")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to subscribe")
}
