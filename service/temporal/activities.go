package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/metrics"
	natspkg "github.com/brojonat/presale/service/nats"
	"github.com/brojonat/presale/service/solana"
)

// ConfirmPurchaseInput contains the input parameters for tracking a submitted purchase.
type ConfirmPurchaseInput struct {
	PurchaseID   string        `json:"purchase_id"`
	BuyerAddress string        `json:"buyer_address"`
	Signature    string        `json:"signature"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxAttempts  int           `json:"max_attempts"`
}

// ConfirmPurchaseResult contains the terminal outcome of a purchase.
type ConfirmPurchaseResult struct {
	PurchaseID string  `json:"purchase_id"`
	Signature  string  `json:"signature"`
	Status     string  `json:"status"`
	Attempts   int     `json:"attempts"`
	Slot       uint64  `json:"slot,omitempty"`
	Reason     *string `json:"reason,omitempty"`
	Published  bool    `json:"published"`
}

// CheckSignatureInput contains parameters for the CheckSignature activity.
type CheckSignatureInput struct {
	Signature string `json:"signature"`
}

// RecordStatusInput contains parameters for the RecordStatus activity.
type RecordStatusInput struct {
	PurchaseID  string    `json:"purchase_id"`
	Status      string    `json:"status"`
	Reason      *string   `json:"reason,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// RecordStatusResult carries the stored purchase as an event ready to publish.
type RecordStatusResult struct {
	Event *natspkg.PurchaseEvent `json:"event"`
}

// PublishEventInput contains parameters for the PublishEvent activity.
type PublishEventInput struct {
	Event *natspkg.PurchaseEvent `json:"event"`
}

// StoreInterface defines the database operations needed by activities.
type StoreInterface interface {
	UpdatePurchaseStatus(ctx context.Context, id uuid.UUID, status string, reason *string) (*db.Purchase, error)
}

// SolanaClientInterface defines the ledger operations needed by activities.
type SolanaClientInterface interface {
	SignatureStatus(ctx context.Context, signature string) (*solana.SignatureStatus, error)
}

// PublisherInterface defines the event publishing operations needed by activities.
type PublisherInterface interface {
	PublishPurchase(ctx context.Context, event *natspkg.PurchaseEvent) error
}

// Activities holds the dependencies for confirmation activities.
type Activities struct {
	store     StoreInterface
	solana    SolanaClientInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance. publisher and m may be
// nil, in which case events and metrics are skipped.
func NewActivities(
	store StoreInterface,
	solanaClient SolanaClientInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:     store,
		solana:    solanaClient,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

func (a *Activities) recordDuration(activity string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, time.Since(start).Seconds())
	}
}

// CheckSignature asks the ledger for the status of a submitted signature.
func (a *Activities) CheckSignature(ctx context.Context, input CheckSignatureInput) (*solana.SignatureStatus, error) {
	defer a.recordDuration("CheckSignature", time.Now())

	status, err := a.solana.SignatureStatus(ctx, input.Signature)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to check signature",
			"signature", input.Signature,
			"error", err,
		)
		return nil, fmt.Errorf("failed to check signature: %w", err)
	}

	a.logger.DebugContext(ctx, "checked signature",
		"signature", input.Signature,
		"status", status.Status,
		"slot", status.Slot,
	)
	return status, nil
}

// RecordStatus moves the purchase to a terminal status in the audit log.
// A purchase that is already terminal is left alone and reported as is.
func (a *Activities) RecordStatus(ctx context.Context, input RecordStatusInput) (*RecordStatusResult, error) {
	defer a.recordDuration("RecordStatus", time.Now())

	id, err := uuid.Parse(input.PurchaseID)
	if err != nil {
		return nil, fmt.Errorf("invalid purchase id %q: %w", input.PurchaseID, err)
	}

	p, err := a.store.UpdatePurchaseStatus(ctx, id, input.Status, input.Reason)
	if err != nil {
		if errors.Is(err, db.ErrInvalidTransition) {
			a.logger.WarnContext(ctx, "purchase already terminal",
				"purchase_id", input.PurchaseID,
				"status", input.Status,
				"error", err,
			)
			return &RecordStatusResult{}, nil
		}
		a.logger.ErrorContext(ctx, "failed to record purchase status",
			"purchase_id", input.PurchaseID,
			"status", input.Status,
			"error", err,
		)
		return nil, fmt.Errorf("failed to record purchase status: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordPurchaseStatus(p.Status)
		if !input.SubmittedAt.IsZero() {
			a.metrics.RecordWorkflowDuration(p.Status, time.Since(input.SubmittedAt).Seconds())
		}
	}

	a.logger.InfoContext(ctx, "purchase status recorded",
		"purchase_id", input.PurchaseID,
		"buyer", p.BuyerAddress,
		"status", p.Status,
	)
	return &RecordStatusResult{Event: natspkg.FromPurchase(p)}, nil
}

// PublishEvent publishes a purchase event. It is a no-op without a publisher.
func (a *Activities) PublishEvent(ctx context.Context, input PublishEventInput) (bool, error) {
	defer a.recordDuration("PublishEvent", time.Now())

	if a.publisher == nil || input.Event == nil {
		return false, nil
	}
	if err := a.publisher.PublishPurchase(ctx, input.Event); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish purchase event",
			"purchase_id", input.Event.PurchaseID,
			"error", err,
		)
		return false, fmt.Errorf("failed to publish purchase event: %w", err)
	}
	return true, nil
}
