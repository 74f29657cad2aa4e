// internal/simulator/runner.go
package simulator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// Origin tags events the runner enqueues.
const Origin = "simulator"

// Enqueuer accepts typed events; the ingest dispatcher satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev telemetry.Event, origin string) error
}

// Runner plays generated events into the ingest loop at a fixed pace. Only
// one run is live at a time; starting a new one cancels the previous.
type Runner struct {
	sink     Enqueuer
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{} // closed when the live run exits
}

func NewRunner(sink Enqueuer, interval time.Duration, log *slog.Logger) *Runner {
	return &Runner{
		sink:     sink,
		interval: interval,
		now:      time.Now,
		log:      log.With(slog.String("component", "simulator")),
	}
}

// Start generates the run for kind and plays it in the background. It
// returns the number of samples the run will emit. ctx bounds the whole
// run, so callers serving a request should detach it first.
func (r *Runner) Start(ctx context.Context, kind string, seconds int) (int, error) {
	events, err := Events(kind, seconds, r.now().UTC())
	if err != nil {
		return 0, err
	}
	samples := 0
	for _, ev := range events {
		if _, ok := ev.(telemetry.CalculusUpdate); !ok {
			samples++
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// The previous run may still be mid-Enqueue; wait so none of its
	// events can land behind this run's.
	r.stopLocked()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	go func() {
		defer close(done)
		defer cancel()
		if err := r.Play(runCtx, events); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("simulation run aborted", slog.String("type", kind), slog.Any("error", err))
			return
		}
		r.log.Info("simulation run finished", slog.String("type", kind), slog.Int("samples", samples))
	}()
	r.log.Info("simulation run started", slog.String("type", kind), slog.Int("samples", samples))
	return samples, nil
}

// Stop cancels the live run, if any, and returns once it has exited. No
// event of that run is enqueued after Stop returns.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Runner) stopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel, r.done = nil, nil
}

// Play enqueues events in order. A flux sample or storm sample waits one
// interval after its predecessor; calculus updates follow their sample
// immediately.
func (r *Runner) Play(ctx context.Context, events []telemetry.Event) error {
	var tick <-chan time.Time
	if r.interval > 0 {
		t := time.NewTicker(r.interval)
		defer t.Stop()
		tick = t.C
	}
	first := true
	for _, ev := range events {
		if _, calc := ev.(telemetry.CalculusUpdate); !calc && !first && tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		first = false
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.sink.Enqueue(ctx, ev, Origin); err != nil {
			return err
		}
	}
	return nil
}
