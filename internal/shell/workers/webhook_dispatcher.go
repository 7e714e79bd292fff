package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/metrics"
)

// DeliveryStore is the part of the store the dispatcher needs.
type DeliveryStore interface {
	ListDueWebhookDeliveries(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error)
	UpdateWebhookDelivery(ctx context.Context, d *domain.WebhookDelivery) error
}

// DispatcherConfig configures the webhook dispatcher.
type DispatcherConfig struct {
	// Interval is the time between dispatch cycles, and the base retry delay.
	// Default: 15 seconds.
	Interval time.Duration

	// Timeout bounds a single delivery attempt.
	// Default: 10 seconds.
	Timeout time.Duration

	// MaxAttempts is how many attempts a delivery gets before it is failed.
	// Default: 5.
	MaxAttempts int

	// BatchSize is the number of due deliveries loaded per cycle.
	// Default: 20.
	BatchSize int

	// MaxConcurrent is the maximum number of deliveries sent at once.
	// Default: 4.
	MaxConcurrent int
}

// DefaultDispatcherConfig returns the default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Interval:      15 * time.Second,
		Timeout:       10 * time.Second,
		MaxAttempts:   5,
		BatchSize:     20,
		MaxConcurrent: 4,
	}
}

// Dispatcher periodically sends pending webhook deliveries and records the
// outcome of each attempt.
type Dispatcher struct {
	store   DeliveryStore
	poster  Poster
	config  DispatcherConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a webhook dispatcher. A nil poster sends over HTTP
// with the configured timeout.
func NewDispatcher(s DeliveryStore, poster Poster, config DispatcherConfig, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.BatchSize == 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if poster == nil {
		poster = NewHTTPPoster(config.Timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		store:   s,
		poster:  poster,
		config:  config,
		metrics: m,
		logger:  logger.With("component", "webhook_dispatcher"),
		now:     time.Now,
	}
}

// Start begins the dispatcher background goroutine.
func (d *Dispatcher) Start() {
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.wg.Add(1)
	go d.run()

	d.logger.Info("webhook dispatcher started",
		"interval", d.config.Interval,
		"max_attempts", d.config.MaxAttempts,
		"max_concurrent", d.config.MaxConcurrent,
	)
}

// Stop cancels in-flight deliveries and waits for the loop to exit.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	// Deliver anything queued while we were down
	d.runCycle(d.ctx)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.runCycle(d.ctx)
		}
	}
}

// DispatchNow runs one cycle synchronously and returns how many deliveries
// were attempted.
func (d *Dispatcher) DispatchNow(ctx context.Context) int {
	return d.runCycle(ctx)
}

func (d *Dispatcher) runCycle(ctx context.Context) int {
	due, err := d.store.ListDueWebhookDeliveries(ctx, d.now().UTC(), d.config.BatchSize)
	if err != nil {
		d.logger.Error("failed to list due webhook deliveries", "error", err)
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	d.logger.Debug("dispatching webhooks", "count", len(due))

	// Use a semaphore to limit concurrent deliveries
	sem := make(chan struct{}, d.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range due {
		wg.Add(1)
		go func(delivery domain.WebhookDelivery) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			d.deliver(ctx, delivery)
		}(due[i])
	}

	wg.Wait()
	return len(due)
}

// deliver makes one attempt and persists the result.
func (d *Dispatcher) deliver(ctx context.Context, delivery domain.WebhookDelivery) {
	logger := d.logger.With("delivery_id", delivery.ID, "form_id", delivery.FormID)

	attemptCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	err := d.poster.Post(attemptCtx, delivery)
	cancel()

	if ctx.Err() != nil {
		// Shutting down; the delivery stays due and is retried on restart.
		return
	}

	now := d.now().UTC()
	var outcome string
	if err == nil {
		delivery = delivery.Delivered(now)
		outcome = metrics.OutcomeDelivered
		logger.Info("webhook delivered", "attempts", delivery.Attempts)
	} else {
		delivery = delivery.Retry(now, err.Error(), d.config.MaxAttempts, d.config.Interval)
		if delivery.Status == domain.DeliveryFailed {
			outcome = metrics.OutcomeFailed
			logger.Warn("webhook delivery failed permanently", "attempts", delivery.Attempts, "error", err)
		} else {
			outcome = metrics.OutcomeRetry
			logger.Warn("webhook delivery failed, will retry",
				"attempts", delivery.Attempts,
				"next_attempt_at", delivery.NextAttemptAt,
				"error", err,
			)
		}
	}
	d.metrics.WebhookDelivery(outcome)

	if err := d.store.UpdateWebhookDelivery(ctx, &delivery); err != nil {
		logger.Error("failed to update webhook delivery", "error", err)
	}
}
