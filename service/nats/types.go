package nats

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brojonat/presale/service/db"
)

// PurchaseEvent is a purchase status change, published to
// "purchases.{buyer_address}" in JetStream.
type PurchaseEvent struct {
	PurchaseID   string          `json:"purchase_id"`
	BuyerAddress string          `json:"buyer_address"`
	Status       string          `json:"status"`
	Signature    string          `json:"signature,omitempty"`
	SolAmount    decimal.Decimal `json:"sol_amount"`
	TokenAmount  decimal.Decimal `json:"token_amount"`
	Reason       string          `json:"reason,omitempty"`
	PublishedAt  time.Time       `json:"published_at"`
}

// Subject returns the JetStream subject for events about buyer.
func Subject(buyer string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, buyer)
}

// FromPurchase converts a stored purchase to an event for publishing.
func FromPurchase(p *db.Purchase) *PurchaseEvent {
	event := &PurchaseEvent{
		PurchaseID:   p.ID.String(),
		BuyerAddress: p.BuyerAddress,
		Status:       p.Status,
		SolAmount:    p.SolAmount,
		TokenAmount:  p.TokenAmount,
		PublishedAt:  time.Now().UTC(),
	}
	if p.Signature != nil {
		event.Signature = *p.Signature
	}
	if p.FailureReason != nil {
		event.Reason = *p.FailureReason
	}
	return event
}
