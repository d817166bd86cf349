package temporal

import (
	"context"
	"sync"
)

// MockConfirmer is a mock implementation of Confirmer for testing.
type MockConfirmer struct {
	mu       sync.Mutex
	started  map[string]ConfirmPurchaseInput // map[workflowID]input
	startErr error
}

// NewMockConfirmer creates a new MockConfirmer.
func NewMockConfirmer() *MockConfirmer {
	return &MockConfirmer{
		started: make(map[string]ConfirmPurchaseInput),
	}
}

// StartConfirmPurchase records that a confirmation was started.
func (m *MockConfirmer) StartConfirmPurchase(ctx context.Context, input ConfirmPurchaseInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return "", m.startErr
	}

	id := confirmWorkflowID(input.PurchaseID)
	m.started[id] = input
	return id, nil
}

// SetStartError makes StartConfirmPurchase return an error.
func (m *MockConfirmer) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// Started returns the input a purchase's confirmation was started with.
func (m *MockConfirmer) Started(purchaseID string) (ConfirmPurchaseInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	input, ok := m.started[confirmWorkflowID(purchaseID)]
	return input, ok
}

// StartCount returns the number of started confirmations.
func (m *MockConfirmer) StartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}
