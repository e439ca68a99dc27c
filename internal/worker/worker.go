// Package worker implements the Worker (W) component: the loop that drains
// claimable events from the Queue Store and invokes the processor callback
// supplied by the harness's embedder.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mentionflow/harness/internal/chatplatform"
	"github.com/mentionflow/harness/internal/queue"
	"github.com/mentionflow/harness/internal/trigger"
)

// Context is the shared record of handles passed to every processor
// invocation: the chat client, the database-backed queue store, and a
// handle for spawning sibling tasks within the harness's structured
// concurrency scope.
type Context struct {
	Chat  chatplatform.Client
	Store Store
	Spawn func(task func(context.Context) error)
}

// Store is the subset of the Queue Store a worker depends on. Defined here,
// rather than depending on *queue.PostgresStore directly, so tests can
// supply a fake.
type Store interface {
	Claim(ctx context.Context, maxAttempts int, leaseDuration time.Duration) (*queue.Event, error)
	Complete(ctx context.Context, id queue.EventID, processed bool) error
	Sweep(ctx context.Context, maxAttempts int, maxAge time.Duration) (int, error)
}

// Processor handles one claimed event. A non-nil error is treated uniformly
// as retryable; the worker does not distinguish transient from permanent
// failure.
type Processor func(ctx context.Context, hctx *Context, event *queue.Event) error

// Params are the per-worker tunables from spec.md §4.3/§6, all overridable
// by the harness's configuration layer.
type Params struct {
	WorkerID      int
	BaseSleep     time.Duration
	MinJitter     time.Duration
	MaxJitter     time.Duration
	BatchCap      int
	MaxAttempts   int
	LeaseDuration time.Duration
	MaxAge        time.Duration
}

// DefaultParams returns the spec's default tunables for worker index id.
func DefaultParams(id int) Params {
	return Params{
		WorkerID:      id,
		BaseSleep:     60 * time.Second,
		MinJitter:     -15 * time.Second,
		MaxJitter:     15 * time.Second,
		BatchCap:      20,
		MaxAttempts:   3,
		LeaseDuration: 10 * time.Minute,
		MaxAge:        60 * time.Minute,
	}
}

// Worker drains claimable events and invokes the processor. It is staggered
// against its cohort by a random initial sleep (every worker but worker 0)
// and woken through the shared Trigger Channel.
type Worker struct {
	params    Params
	store     Store
	trigger   *trigger.Chan
	hctx      *Context
	processor Processor
	logger    *slog.Logger
	rng       *rand.Rand
}

// New returns a Worker. hctx is shared across the whole cohort.
func New(params Params, store Store, tc *trigger.Chan, hctx *Context, processor Processor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		params:    params,
		store:     store,
		trigger:   tc,
		hctx:      hctx,
		processor: processor,
		logger:    logger.With(slog.Int("worker_id", params.WorkerID)),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano() + int64(params.WorkerID))), //nolint:gosec
	}
}

// Run blocks in the worker loop until ctx is cancelled, at which point it
// returns ctx.Err(). Callers run it as one sibling of an errgroup.
func (w *Worker) Run(ctx context.Context) error {
	if w.params.WorkerID != 0 {
		if err := w.sleep(ctx, time.Duration(w.rng.Int63n(int64(w.params.BaseSleep)))); err != nil {
			return err
		}
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wake := w.trigger.Wait(ctx, w.waitDuration())
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.workStep(ctx)

		if wake == trigger.TimedOut {
			if _, err := w.store.Sweep(ctx, w.params.MaxAttempts, w.params.MaxAge); err != nil {
				w.logger.Error("sweep failed", slog.Any("error", err))
			}
		}
	}
}

func (w *Worker) waitDuration() time.Duration {
	jitterRange := int64(w.params.MaxJitter - w.params.MinJitter)
	if jitterRange <= 0 {
		return w.params.BaseSleep
	}

	jitter := w.params.MinJitter + time.Duration(w.rng.Int63n(jitterRange))

	return w.params.BaseSleep + jitter
}

func (w *Worker) workStep(ctx context.Context) {
	for i := 0; i < w.params.BatchCap; i++ {
		event, err := w.store.Claim(ctx, w.params.MaxAttempts, w.params.LeaseDuration)
		if err != nil {
			w.logger.Error("claim failed", slog.Any("error", err))

			return
		}

		if event == nil {
			return
		}

		if err := w.processor(ctx, w.hctx, event); err != nil {
			w.logger.Warn("processor failed, leaving event to expire",
				slog.Int64("event_id", int64(event.ID)),
				slog.Int("attempts", event.Attempts),
				slog.Any("error", err),
			)

			return
		}

		if err := w.store.Complete(ctx, event.ID, true); err != nil && !errors.Is(err, queue.ErrEventNotFound) {
			w.logger.Error("complete failed",
				slog.Int64("event_id", int64(event.ID)),
				slog.Any("error", err),
			)

			return
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep exposes a one-shot sweep for callers (e.g. the admin API's
// POST /admin/sweep) that want to trigger it out of band from a worker's
// own timeout wakeup.
func Sweep(ctx context.Context, store Store, maxAttempts int, maxAge time.Duration) (int, error) {
	return store.Sweep(ctx, maxAttempts, maxAge)
}
