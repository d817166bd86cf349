package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brojonat/presale/service/db"
	natspkg "github.com/brojonat/presale/service/nats"
	"github.com/brojonat/presale/service/phase"
	"github.com/brojonat/presale/service/purchase"
	"github.com/brojonat/presale/service/solana"
)

// Price is the canonical SOL/USD quote reported by the server.
type Price struct {
	Price       decimal.Decimal `json:"price"`
	Change24h   decimal.Decimal `json:"change24h"`
	Source      string          `json:"source"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// PreparedPurchase is a treasury co-signed transaction awaiting the buyer's signature.
type PreparedPurchase struct {
	Message string `json:"message"`
	solana.PreparedTransaction
	PurchaseID    string          `json:"purchaseId,omitempty"`
	QuotePrice    decimal.Decimal `json:"quotePrice"`
	QuoteSource   string          `json:"quoteSource"`
	DegradedPrice bool            `json:"degradedPrice"`
}

// PurchaseInfo describes the purchase endpoint.
type PurchaseInfo struct {
	Message        string          `json:"message"`
	TokenPrice     decimal.Decimal `json:"tokenPrice"`
	MintAddress    string          `json:"mintAddress"`
	TokenSymbol    string          `json:"tokenSymbol"`
	BaseURL        string          `json:"baseUrl"`
	MinPurchaseSOL decimal.Decimal `json:"minPurchaseSol"`
	MaxPurchaseSOL decimal.Decimal `json:"maxPurchaseSol"`
}

// PhaseStatus is the server's current presale phase.
type PhaseStatus struct {
	phase.State
	TimeLeftLabel string `json:"timeLeftLabel"`
}

// Submission is the server's acknowledgement of a submitted purchase.
type Submission struct {
	Purchase   *db.Purchase `json:"purchase"`
	WorkflowID string       `json:"workflowId,omitempty"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("request failed: %s: %s", e.Message, e.Details)
	}
	return fmt.Sprintf("request failed: %s", e.Message)
}

// Client is the HTTP client for the presale service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new presale service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Price fetches the live SOL/USD quote.
func (c *Client) Price(ctx context.Context) (*Price, error) {
	var response struct {
		Success bool   `json:"success"`
		Data    *Price `json:"data"`
		Error   string `json:"error"`
	}
	if err := c.doJSON(ctx, "GET", "/api/sol-price", nil, http.StatusOK, &response); err != nil {
		return nil, err
	}
	if !response.Success || response.Data == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: response.Error}
	}

	c.logger.Debug("price fetched", "price", response.Data.Price.String(), "source", response.Data.Source)
	return response.Data, nil
}

// PurchaseInfo fetches the purchase endpoint description.
func (c *Client) PurchaseInfo(ctx context.Context) (*PurchaseInfo, error) {
	var info PurchaseInfo
	if err := c.doJSON(ctx, "GET", "/api/purchase-tokens", nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// PreparePurchase asks the server to validate req and build the purchase
// transaction.
func (c *Client) PreparePurchase(ctx context.Context, req purchase.Request) (*PreparedPurchase, error) {
	var prepared PreparedPurchase
	if err := c.doJSON(ctx, "POST", "/api/purchase-tokens", req, http.StatusOK, &prepared); err != nil {
		return nil, err
	}
	if prepared.Encoded == "" {
		return nil, fmt.Errorf("server returned no transaction")
	}

	c.logger.Debug("purchase prepared",
		"buyer", req.BuyerAddress,
		"purchase_id", prepared.PurchaseID,
		"creates_token_account", prepared.CreatesTokenAccount,
	)
	return &prepared, nil
}

// ReportSubmission tells the server the buyer submitted purchaseID with signature.
func (c *Client) ReportSubmission(ctx context.Context, purchaseID, signature string) (*Submission, error) {
	path := fmt.Sprintf("/api/v1/purchases/%s/submission", url.PathEscape(purchaseID))
	body := map[string]string{"signature": signature}

	var sub Submission
	if err := c.doJSON(ctx, "POST", path, body, http.StatusAccepted, &sub); err != nil {
		return nil, err
	}

	c.logger.Debug("submission reported", "purchase_id", purchaseID, "workflow_id", sub.WorkflowID)
	return &sub, nil
}

// Phase fetches the current presale phase.
func (c *Client) Phase(ctx context.Context) (*PhaseStatus, error) {
	var status PhaseStatus
	if err := c.doJSON(ctx, "GET", "/api/v1/presale/phase", nil, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetPurchase retrieves one purchase from the audit log.
func (c *Client) GetPurchase(ctx context.Context, purchaseID string) (*db.Purchase, error) {
	var p db.Purchase
	path := "/api/v1/purchases/" + url.PathEscape(purchaseID)
	if err := c.doJSON(ctx, "GET", path, nil, http.StatusOK, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPurchases retrieves a buyer's purchases, newest first. A zero limit
// uses the server default.
func (c *Client) ListPurchases(ctx context.Context, buyer string, limit int) ([]*db.Purchase, error) {
	q := url.Values{}
	q.Set("buyer", buyer)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Purchases []*db.Purchase `json:"purchases"`
	}
	if err := c.doJSON(ctx, "GET", "/api/v1/purchases?"+q.Encode(), nil, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Purchases, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// StreamPurchases follows the server's purchase event stream for buyer and
// calls fn for every event until ctx is cancelled, the stream ends, or fn
// returns an error.
func (c *Client) StreamPurchases(ctx context.Context, buyer string, fn func(natspkg.PurchaseEvent) error) error {
	u := fmt.Sprintf("%s/api/v1/stream/purchases/%s", c.baseURL, url.PathEscape(buyer))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No timeout for streaming
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent, currentData string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line ends an event
		if line == "" {
			if err := c.dispatchEvent(currentEvent, currentData, fn); err != nil {
				return err
			}
			currentEvent = ""
			currentData = ""
			continue
		}

		if strings.HasPrefix(line, "event:") {
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			currentData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("error reading event stream: %w", err)
	}
	return nil
}

func (c *Client) dispatchEvent(eventType, data string, fn func(natspkg.PurchaseEvent) error) error {
	switch eventType {
	case "purchase":
		var event natspkg.PurchaseEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.logger.Warn("malformed purchase event", "error", err)
			return nil
		}
		return fn(event)

	case "error":
		var errInfo struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &errInfo); err != nil {
			return fmt.Errorf("server error: %s", data)
		}
		return fmt.Errorf("server error: %s", errInfo.Error)

	case "connected":
		c.logger.Debug("event stream connected", "data", data)
		return nil

	default:
		return nil
	}
}

// doJSON sends body (if any) as JSON and decodes a wantStatus response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error   string `json:"error"`
		Details string `json:"details"`
		Message string `json:"message"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	details := errResp.Details
	if details == "" {
		details = errResp.Message
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error,
		Details:    details,
	}
}
