package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/lessonsync-api/internal/models"
	"github.com/noah-isme/lessonsync-api/pkg/jobs"
)

// DispatcherConfig tunes asynchronous delivery.
type DispatcherConfig struct {
	Workers       int
	Retries       int
	RetryDelay    time.Duration
	RatePerSecond float64
	Logger        *zap.Logger
	// OnResult observes every final delivery outcome.
	OnResult func(kind models.NotificationKind, delivered bool)
}

// Dispatcher fans notifications out to a Notifier through a rate-limited worker queue.
// Enqueueing never blocks on the sink, so callers can dispatch right after a commit.
type Dispatcher struct {
	notifier Notifier
	limiter  *rate.Limiter
	queue    *jobs.Queue[models.Notification]
	onResult func(kind models.NotificationKind, delivered bool)
	retries  int
	logger   *zap.Logger
	seq      atomic.Uint64
}

// NewDispatcher builds a dispatcher. Call Start before Dispatch.
func NewDispatcher(notifier Notifier, cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	d := &Dispatcher{
		notifier: notifier,
		limiter:  rate.NewLimiter(limit, burst),
		onResult: cfg.OnResult,
		retries:  cfg.Retries,
		logger:   cfg.Logger,
	}
	d.queue = jobs.NewQueue("notifications", d.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     cfg.Logger,
		OnDrop: func(jobID string, err error) {
			cfg.Logger.Warn("notification dropped", zap.String("job_id", jobID), zap.Error(err))
		},
	})
	return d
}

func (d *Dispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop delivers what is already queued and then returns.
func (d *Dispatcher) Stop() { d.queue.Stop() }

// Dispatch queues one notification per recipient already resolved on n.
func (d *Dispatcher) Dispatch(n models.Notification) error {
	job := jobs.Job[models.Notification]{
		ID:      fmt.Sprintf("%s:%s:%d", n.Kind, n.RecipientID, d.seq.Add(1)),
		Payload: n,
	}
	if err := d.queue.Enqueue(job); err != nil {
		d.report(n.Kind, false)
		return err
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, job jobs.Job[models.Notification]) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := d.notifier.Notify(ctx, job.Payload); err != nil {
		if job.Attempt >= d.retries {
			d.report(job.Payload.Kind, false)
		}
		return err
	}
	d.report(job.Payload.Kind, true)
	return nil
}

func (d *Dispatcher) report(kind models.NotificationKind, delivered bool) {
	if d.onResult != nil {
		d.onResult(kind, delivered)
	}
}
