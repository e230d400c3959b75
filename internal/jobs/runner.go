package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Reschedule asks the runner to run the job again after a delay.
// Non-nil Args replace the job's arguments for the next run.
type Reschedule struct {
	After time.Duration
	Args  any
}

// HandlerFunc processes one claimed job. Returning a Reschedule queues
// another run; returning an error retries on the error ladder until
// attempts run out. Delivery is at least once.
type HandlerFunc func(ctx context.Context, job *Job) (*Reschedule, error)

const (
	defaultPollInterval = 5 * time.Second
	defaultWorkers      = 4
	claimBatchSize      = 32
)

// Runner polls for due jobs and dispatches them to registered handlers
// on a bounded worker pool.
type Runner struct {
	store    *Store
	handlers map[string]HandlerFunc
	interval time.Duration
	workers  int
	log      *slog.Logger
}

func NewRunner(store *Store, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:    store,
		handlers: make(map[string]HandlerFunc),
		interval: defaultPollInterval,
		workers:  defaultWorkers,
		log:      log.With("component", "jobs"),
	}
}

// WithPollInterval overrides how often the runner looks for due jobs.
func (r *Runner) WithPollInterval(d time.Duration) *Runner {
	if d > 0 {
		r.interval = d
	}
	return r
}

// WithWorkers overrides the worker pool size.
func (r *Runner) WithWorkers(n int) *Runner {
	if n > 0 {
		r.workers = n
	}
	return r
}

// Register binds a handler to a job kind. Claiming a kind without a
// handler fails the job.
func (r *Runner) Register(kind string, h HandlerFunc) {
	r.handlers[kind] = h
}

// Run polls until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Error("job poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims all currently due jobs and processes them, returning
// how many were dispatched.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	claimed, err := r.store.claimDue(claimBatchSize)
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	p := pool.New().WithMaxGoroutines(r.workers)
	for _, job := range claimed {
		p.Go(func() {
			r.dispatch(ctx, job)
		})
	}
	p.Wait()
	return len(claimed), nil
}

func (r *Runner) dispatch(ctx context.Context, job *Job) {
	handler, ok := r.handlers[job.Kind]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
		if ferr := r.store.failed(job, err, retryDelay(job.Attempt)); ferr != nil {
			r.log.Error("record job failure", "job_id", job.ID, "error", ferr)
		}
		return
	}

	resched, err := handler(ctx, job)
	switch {
	case err != nil:
		r.log.Warn("job handler failed", "job_id", job.ID, "kind", job.Kind,
			"attempt", job.Attempt, "error", err)
		if ferr := r.store.failed(job, err, retryDelay(job.Attempt)); ferr != nil {
			r.log.Error("record job failure", "job_id", job.ID, "error", ferr)
		}
	case resched != nil:
		var args json.RawMessage
		if resched.Args != nil {
			raw, merr := json.Marshal(resched.Args)
			if merr != nil {
				r.log.Error("encode reschedule args", "job_id", job.ID, "error", merr)
				return
			}
			args = raw
		}
		if rerr := r.store.reschedule(job, resched.After, args); rerr != nil {
			r.log.Error("reschedule job", "job_id", job.ID, "error", rerr)
		}
	default:
		if cerr := r.store.complete(job); cerr != nil {
			r.log.Error("complete job", "job_id", job.ID, "error", cerr)
		}
	}
}

// retryDelay spaces out handler-error retries: one minute per prior
// attempt, capped at an hour.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * time.Minute
	if d > time.Hour {
		return time.Hour
	}
	return d
}
