package temporal

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/presale/service/metrics"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// DefaultMaxConcurrency bounds concurrent confirmation activities and
// workflow tasks per worker.
const DefaultMaxConcurrency = 10

// WorkerConfig wires the confirmation worker to Temporal and its dependencies.
type WorkerConfig struct {
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	// MaxConcurrency defaults to DefaultMaxConcurrency.
	MaxConcurrency int

	Store        StoreInterface
	SolanaClient SolanaClientInterface
	Publisher    PublisherInterface // Optional: if nil, events are not published
	Metrics      *metrics.Metrics   // Optional: if nil, no metrics will be recorded
	Logger       *slog.Logger
}

func (c WorkerConfig) validate() error {
	var errs []error
	if c.TaskQueue == "" {
		errs = append(errs, errors.New("task queue is required"))
	}
	if c.Store == nil {
		errs = append(errs, errors.New("purchase store is required"))
	}
	if c.SolanaClient == nil {
		errs = append(errs, errors.New("solana client is required"))
	}
	return errors.Join(errs...)
}

// Worker runs ConfirmPurchaseWorkflow and its activities on one task queue.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker dials Temporal and registers the confirmation workflow.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	logger := config.Logger.With("component", "temporal_worker", "task_queue", config.TaskQueue)

	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     config.MaxConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: config.MaxConcurrency,
	})

	activities := NewActivities(config.Store, config.SolanaClient, config.Publisher, config.Metrics, logger)
	w.RegisterWorkflow(ConfirmPurchaseWorkflow)
	w.RegisterActivity(activities.CheckSignature)
	w.RegisterActivity(activities.RecordStatus)
	w.RegisterActivity(activities.PublishEvent)

	logger.Info("confirmation worker ready",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"max_concurrency", config.MaxConcurrency,
		"publishes_events", config.Publisher != nil,
	)

	return &Worker{client: c, worker: w, logger: logger}, nil
}

// Start blocks until Stop is called, the process is interrupted, or the
// worker fails.
func (w *Worker) Start() error {
	if err := w.worker.Run(worker.InterruptCh()); err != nil {
		return fmt.Errorf("confirmation worker stopped: %w", err)
	}
	w.logger.Info("confirmation worker stopped")
	return nil
}

// Stop stops polling and closes the Temporal connection.
func (w *Worker) Stop() {
	w.worker.Stop()
	w.client.Close()
}
