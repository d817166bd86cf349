package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/solana"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 45
)

var a *Activities // for type-safe activity invocation

// ConfirmPurchaseWorkflow follows a submitted purchase until the ledger
// reports it landed, failed, or the attempt budget runs out.
//
// The workflow performs these steps:
// 1. Poll the signature status (CheckSignature activity), sleeping between attempts
// 2. Record the terminal status in the audit log (RecordStatus activity)
// 3. Publish the resulting purchase event (PublishEvent activity)
//
// A failed status check counts as an attempt; publishing failures are logged
// and do not fail the workflow.
func ConfirmPurchaseWorkflow(ctx workflow.Context, input ConfirmPurchaseInput) (*ConfirmPurchaseResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ConfirmPurchaseWorkflow started",
		"purchase_id", input.PurchaseID,
		"signature", input.Signature,
	)

	if input.PollInterval <= 0 {
		input.PollInterval = DefaultPollInterval
	}
	if input.MaxAttempts <= 0 {
		input.MaxAttempts = DefaultMaxAttempts
	}

	result := &ConfirmPurchaseResult{
		PurchaseID: input.PurchaseID,
		Signature:  input.Signature,
		Status:     db.StatusExpired,
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Status checks are retried by the loop itself.
	checkCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporalsdk.RetryPolicy{MaximumAttempts: 1},
	})

	for result.Attempts < input.MaxAttempts {
		result.Attempts++

		var status *solana.SignatureStatus
		err := workflow.ExecuteActivity(checkCtx, a.CheckSignature, CheckSignatureInput{Signature: input.Signature}).Get(ctx, &status)
		switch {
		case err != nil:
			logger.Warn("signature check failed", "attempt", result.Attempts, "error", err)
		case status.Status == solana.StatusFailed:
			result.Status = db.StatusFailed
			result.Slot = status.Slot
			result.Reason = status.Err
		case status.Landed():
			result.Status = db.StatusConfirmed
			result.Slot = status.Slot
		}
		if result.Status != db.StatusExpired {
			break
		}

		if result.Attempts < input.MaxAttempts {
			if err := workflow.Sleep(ctx, input.PollInterval); err != nil {
				return result, fmt.Errorf("confirmation interrupted: %w", err)
			}
		}
	}

	if result.Status == db.StatusExpired {
		reason := fmt.Sprintf("not confirmed after %d attempts", result.Attempts)
		result.Reason = &reason
	}

	var recorded *RecordStatusResult
	err := workflow.ExecuteActivity(ctx, a.RecordStatus, RecordStatusInput{
		PurchaseID:  input.PurchaseID,
		Status:      result.Status,
		Reason:      result.Reason,
		SubmittedAt: input.SubmittedAt,
	}).Get(ctx, &recorded)
	if err != nil {
		return result, fmt.Errorf("failed to record purchase status: %w", err)
	}

	if recorded != nil && recorded.Event != nil {
		var published bool
		err = workflow.ExecuteActivity(ctx, a.PublishEvent, PublishEventInput{Event: recorded.Event}).Get(ctx, &published)
		if err != nil {
			logger.Error("failed to publish purchase event", "purchase_id", input.PurchaseID, "error", err)
		}
		result.Published = published
	}

	logger.Info("ConfirmPurchaseWorkflow completed",
		"purchase_id", input.PurchaseID,
		"status", result.Status,
		"attempts", result.Attempts,
	)
	return result, nil
}
