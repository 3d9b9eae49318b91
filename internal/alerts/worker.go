package alerts

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/constants"
	"github.com/JoahanSP/SECURENET/internal/metrics"
)

// Deliverer pushes one alert to a human.
type Deliverer interface {
	Deliver(ctx context.Context, job Job) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, job Job) error

func (f DelivererFunc) Deliver(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// WorkerOptions configure the worker loop.
type WorkerOptions struct {
	PollInterval time.Duration // fallback wake-up when no signal arrives
	ErrorBackoff time.Duration // pause after a failed iteration
}

// Worker drains the queue on a single goroutine. Each job is delivered
// synchronously before the next one is popped, so at most one delivery is
// in flight.
type Worker struct {
	queue     *Queue
	deliverer Deliverer
	metrics   *metrics.Registry
	log       zerolog.Logger
	opts      WorkerOptions

	// pop is swapped in tests to fail an iteration
	pop func() (Job, bool)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewWorker creates a stopped worker.
func NewWorker(queue *Queue, deliverer Deliverer, m *metrics.Registry, opts WorkerOptions, log zerolog.Logger) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.DefaultPollIntervalSeconds * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = constants.DefaultErrorBackoffSeconds * time.Second
	}
	return &Worker{
		queue:     queue,
		deliverer: deliverer,
		metrics:   m,
		log:       log.With().Str("component", "alert-worker").Logger(),
		opts:      opts,
		pop:       queue.Pop,
		done:      make(chan struct{}),
	}
}

// Start launches the loop. Calling Start on a running worker does nothing.
// After Stop, Start blocks until the previous loop has finished its
// in-flight delivery.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	if w.cancel != nil {
		<-w.done
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	go w.run(ctx, w.done)
	w.log.Info().
		Dur("poll_interval", w.opts.PollInterval).
		Dur("error_backoff", w.opts.ErrorBackoff).
		Msg("alert worker started")
}

// Stop ends scheduling of new iterations. A delivery already in flight
// runs to completion; use Done to wait for it.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.cancel()
	w.running = false
}

// Done is closed when the loop has exited.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		if err := w.iterate(ctx); err != nil {
			w.log.Error().Err(err).Dur("backoff", w.opts.ErrorBackoff).Msg("alert worker iteration failed")
			if !sleep(ctx, w.opts.ErrorBackoff) {
				break
			}
		}
	}
	w.log.Info().Int("pending", w.queue.Len()).Msg("alert worker stopped")
}

func (w *Worker) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	job, ok := w.pop()
	if !ok {
		w.wait(ctx)
		return nil
	}
	w.process(ctx, job)
	return nil
}

// wait blocks until an enqueue signal, the poll interval or cancellation.
func (w *Worker) wait(ctx context.Context) {
	t := time.NewTimer(w.opts.PollInterval)
	defer t.Stop()
	select {
	case <-w.queue.Ready():
	case <-t.C:
	case <-ctx.Done():
	}
}

// process delivers one job. Errors and panics end with the job dropped.
func (w *Worker) process(ctx context.Context, job Job) {
	start := time.Now()
	log := w.log.With().Str("job_id", job.ID.String()).Str("path", job.Path).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("alert delivery panicked, job dropped")
			w.metrics.AlertDelivery(metrics.ResultDropped, time.Since(start))
		}
	}()

	// shutdown must not cut a half-sent alert
	err := w.deliverer.Deliver(context.WithoutCancel(ctx), job)
	took := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("took", took).Msg("alert delivery failed, job dropped")
		w.metrics.AlertDelivery(metrics.ResultFailed, took)
		return
	}
	log.Info().Dur("took", took).Dur("queued_for", start.Sub(job.EnqueuedAt)).Msg("alert delivered")
	w.metrics.AlertDelivery(metrics.ResultDelivered, took)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
