// Package ingest serialises every producer (upstream feed, data endpoint,
// local simulator) through one event loop in front of the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// Applier is the store side of the loop.
type Applier interface {
	Apply(telemetry.Event) error
}

// Recorder receives ingest counters.
type Recorder interface {
	SampleIngested(metric, source string)
	FrameRejected(origin, reason string)
}

type item struct {
	ev     telemetry.Event
	origin string
	done   chan error // nil unless the producer waits for the result
}

// ErrStopped is returned to producers once Run has exited.
var ErrStopped = errors.New("ingest: dispatcher stopped")

type Dispatcher struct {
	store   Applier
	rec     Recorder
	log     *slog.Logger
	queue   chan item
	stopped chan struct{}
}

func NewDispatcher(store Applier, rec Recorder, log *slog.Logger, size int) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		store:   store,
		rec:     rec,
		log:     log.With(slog.String("component", "dispatcher")),
		queue:   make(chan item, size),
		stopped: make(chan struct{}),
	}
}

// Submit decodes a raw frame and queues it. Frames that fail to decode are
// counted, logged, and dropped; the error is returned to the caller.
func (d *Dispatcher) Submit(ctx context.Context, raw []byte, origin string) error {
	ev, err := telemetry.Decode(raw)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, telemetry.ErrUnknownType) {
			reason = "unknown_type"
		}
		d.reject(origin, reason, err)
		return err
	}
	return d.Enqueue(ctx, ev, origin)
}

// Enqueue queues a typed event, blocking while the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, ev telemetry.Event, origin string) error {
	if d.isStopped() {
		return ErrStopped
	}
	select {
	case d.queue <- item{ev: ev, origin: origin}:
		return nil
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return fmt.Errorf("enqueue %T: %w", ev, ctx.Err())
	}
}

// Dispatch queues ev behind everything already queued and waits until the
// loop has applied it, returning the store's verdict.
func (d *Dispatcher) Dispatch(ctx context.Context, ev telemetry.Event, origin string) error {
	if d.isStopped() {
		return ErrStopped
	}
	done := make(chan error, 1)
	select {
	case d.queue <- item{ev: ev, origin: origin, done: done}:
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return fmt.Errorf("enqueue %T: %w", ev, ctx.Err())
	}
	select {
	case err := <-done:
		return err
	case <-d.stopped:
		select {
		case err := <-done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return fmt.Errorf("await %T: %w", ev, ctx.Err())
	}
}

// Run applies queued events in arrival order until ctx is cancelled. It
// must be called at most once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)
	d.log.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return ctx.Err()
		case it := <-d.queue:
			d.apply(it)
		}
	}
}

func (d *Dispatcher) isStopped() bool {
	select {
	case <-d.stopped:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) apply(it item) {
	err := d.store.Apply(it.ev)
	if it.done != nil {
		it.done <- err
	}
	if err != nil {
		d.reject(it.origin, "rejected", err)
		return
	}
	d.record(it.ev)
}

func (d *Dispatcher) reject(origin, reason string, err error) {
	d.log.Warn("dropping frame", slog.String("origin", origin), slog.String("reason", reason), slog.Any("error", err))
	if d.rec != nil {
		d.rec.FrameRejected(origin, reason)
	}
}

func (d *Dispatcher) record(ev telemetry.Event) {
	if d.rec == nil {
		return
	}
	switch e := ev.(type) {
	case telemetry.FluxSample:
		d.rec.SampleIngested(string(telemetry.MetricFlux), string(e.Point.Source))
	case telemetry.FluxHistory:
		for _, p := range e.Points {
			d.rec.SampleIngested(string(telemetry.MetricFlux), string(p.Source))
		}
	case telemetry.SpaceWeatherSample:
		src := e.Source
		if src == "" {
			src = telemetry.SourceReal
		}
		for _, m := range telemetry.SpaceWeatherMetrics {
			if e.Fields.Metric(m) != nil {
				d.rec.SampleIngested(string(m), string(src))
			}
		}
	case telemetry.SpaceWeatherHistory:
		for _, m := range telemetry.SpaceWeatherMetrics {
			for range e.Series(m) {
				d.rec.SampleIngested(string(m), string(telemetry.SourceReal))
			}
		}
	case telemetry.CalculusUpdate, telemetry.RegionsUpdate, telemetry.ConnectionChange,
		telemetry.SimulationTrigger, telemetry.SimulationRevert:
	}
}
