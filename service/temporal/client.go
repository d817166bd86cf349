package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Confirmer that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartConfirmPurchase starts the confirmation workflow for a submitted
// purchase and returns the workflow ID. Starting twice for the same purchase
// returns the running workflow.
func (c *Client) StartConfirmPurchase(ctx context.Context, input ConfirmPurchaseInput) (string, error) {
	id := confirmWorkflowID(input.PurchaseID)

	c.logger.Debug("starting confirmation workflow",
		"purchase_id", input.PurchaseID,
		"signature", input.Signature,
		"workflow_id", id,
	)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: time.Hour,
		Memo: map[string]interface{}{
			"buyer_address": input.BuyerAddress,
			"signature":     input.Signature,
			"created_by":    "presale",
		},
	}, ConfirmPurchaseWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start confirmation workflow",
			"purchase_id", input.PurchaseID,
			"workflow_id", id,
			"error", err,
		)
		return "", fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.Info("confirmation workflow started",
		"purchase_id", input.PurchaseID,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return run.GetID(), nil
}

// AwaitConfirmation blocks until the confirmation workflow for a purchase finishes.
func (c *Client) AwaitConfirmation(ctx context.Context, purchaseID string) (*ConfirmPurchaseResult, error) {
	run := c.client.GetWorkflow(ctx, confirmWorkflowID(purchaseID), "")
	var result ConfirmPurchaseResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("confirmation workflow failed: %w", err)
	}
	return &result, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

func confirmWorkflowID(purchaseID string) string {
	return "confirm-purchase-" + purchaseID
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
