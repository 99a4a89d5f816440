package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/linkup/internal/logging"
)

// Handler performs the side effect of a job, e.g. issuing a passcode and
// mailing it.
type Handler func(ctx context.Context, job Job) error

// RetryPolicy bounds redelivery of failing jobs.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy allows five attempts with delays of 3s, 6s, 12s and 24s
// between them.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: 3 * time.Second}

// Delay returns the wait after the attempt-th failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

// DispatcherOptions tune a Dispatcher. Zero values select defaults.
type DispatcherOptions struct {
	Workers         int
	Policy          RetryPolicy
	PollWait        time.Duration
	PromoteInterval time.Duration
	JobTimeout      time.Duration
}

// Dispatcher consumes jobs from a Backend and runs them through a Handler,
// rescheduling failures with exponential backoff.
type Dispatcher struct {
	backend Backend
	handler Handler
	logger  logging.Logger
	opts    DispatcherOptions
	now     func() time.Time
}

// NewDispatcher returns a Dispatcher; call Run to start it.
func NewDispatcher(backend Backend, handler Handler, logger logging.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = DefaultRetryPolicy
	}
	if opts.PollWait <= 0 {
		opts.PollWait = time.Second
	}
	if opts.PromoteInterval <= 0 {
		opts.PromoteInterval = time.Second
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	return &Dispatcher{
		backend: backend,
		handler: handler,
		logger:  logger.With("module", "notify"),
		opts:    opts,
		now:     time.Now,
	}
}

// Run processes jobs until ctx is cancelled. A job already being handled is
// allowed to finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info(ctx, "dispatcher started", "workers", d.opts.Workers)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.promoteLoop(ctx)
	}()

	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.workLoop(ctx)
		}()
	}

	wg.Wait()
	d.logger.Info(context.Background(), "dispatcher stopped")
	return nil
}

func (d *Dispatcher) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(d.opts.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.backend.PromoteDue(ctx, d.now())
			if err != nil && ctx.Err() == nil {
				d.logger.Error(ctx, "promote delayed jobs", "error", err)
			}
			if n > 0 {
				d.logger.Debug(ctx, "promoted delayed jobs", "count", n)
			}
		}
	}
}

func (d *Dispatcher) workLoop(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := d.backend.Dequeue(ctx, d.opts.PollWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			d.logger.Error(ctx, "dequeue", "error", err)
			d.sleep(ctx, d.opts.PollWait)
			continue
		}
		if job == nil {
			continue
		}
		d.Process(context.WithoutCancel(ctx), *job)
	}
}

func (d *Dispatcher) sleep(ctx context.Context, t time.Duration) {
	timer := time.NewTimer(t)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Process runs a single job and records its outcome: completed jobs are
// dropped, failures are rescheduled until the policy is exhausted and then
// parked as failed.
func (d *Dispatcher) Process(ctx context.Context, job Job) {
	log := d.logger.With("job_id", job.ID, "intent", string(job.Intent), "user_id", job.UserID)

	hctx, cancel := context.WithTimeout(ctx, d.opts.JobTimeout)
	err := d.handler(hctx, job)
	cancel()

	job.Attempt++
	if err == nil {
		log.Info(ctx, "job completed", "attempt", job.Attempt)
		if aerr := d.backend.Ack(ctx, job); aerr != nil {
			log.Error(ctx, "release completed job", "error", aerr)
		}
		return
	}

	if job.Attempt >= d.opts.Policy.MaxAttempts {
		log.Error(ctx, "job failed permanently", "attempt", job.Attempt, "error", err)
		if ferr := d.backend.Fail(ctx, job, err.Error()); ferr != nil {
			log.Error(ctx, "park failed job", "error", ferr)
		}
		return
	}

	delay := d.opts.Policy.Delay(job.Attempt)
	log.Warn(ctx, "job failed, retrying", "attempt", job.Attempt, "retry_in", delay.String(), "error", err)
	if rerr := d.backend.Retry(ctx, job, d.now().Add(delay)); rerr != nil {
		log.Error(ctx, "reschedule job", "error", rerr)
	}
}
