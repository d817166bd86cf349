package temporal

import "context"

// Confirmer starts background confirmation of submitted purchases.
// Each purchase gets one workflow, keyed by purchase ID.
type Confirmer interface {
	// StartConfirmPurchase starts tracking a submitted purchase and returns
	// the workflow ID.
	StartConfirmPurchase(ctx context.Context, input ConfirmPurchaseInput) (string, error)
}
