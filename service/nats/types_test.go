package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/presale/service/db"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "purchases.Buyer111", Subject("Buyer111"))
}

func TestFromPurchase(t *testing.T) {
	sig := "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"
	reason := "transaction failed on chain"
	p := &db.Purchase{
		ID:            uuid.New(),
		BuyerAddress:  "Buyer111",
		Status:        db.StatusFailed,
		SolAmount:     decimal.RequireFromString("0.25"),
		TokenAmount:   decimal.RequireFromString("18750"),
		Signature:     &sig,
		FailureReason: &reason,
	}

	event := FromPurchase(p)
	assert.Equal(t, p.ID.String(), event.PurchaseID)
	assert.Equal(t, "Buyer111", event.BuyerAddress)
	assert.Equal(t, db.StatusFailed, event.Status)
	assert.Equal(t, sig, event.Signature)
	assert.Equal(t, reason, event.Reason)
	assert.True(t, p.SolAmount.Equal(event.SolAmount))
	assert.WithinDuration(t, time.Now(), event.PublishedAt, 5*time.Second)

	p.Signature, p.FailureReason = nil, nil
	event = FromPurchase(p)
	assert.Empty(t, event.Signature)
	assert.Empty(t, event.Reason)
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()

	require.NoError(t, m.PublishPurchase(ctx, &PurchaseEvent{BuyerAddress: "a", Status: "prepared"}))
	require.NoError(t, m.PublishPurchase(ctx, &PurchaseEvent{BuyerAddress: "b", Status: "prepared"}))
	assert.Len(t, m.GetPublishedEvents(), 2)
	assert.Len(t, m.GetPublishedEventsForBuyer("a"), 1)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishPurchase(ctx, &PurchaseEvent{BuyerAddress: "a"}))
	assert.Len(t, m.GetPublishedEvents(), 2)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}
