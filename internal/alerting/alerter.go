// internal/alerting/alerter.go
package alerting

import (
	"context"
	"log/slog"

	"github.com/vedantsgith/Helios-Watch/internal/anomaly"
	"github.com/vedantsgith/Helios-Watch/internal/store"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// Sink is one notification channel for tier-change alerts.
type Sink interface {
	Name() string
	Publish(ctx context.Context, alert telemetry.Alert) error
}

// Recorder counts publish outcomes per sink.
type Recorder interface {
	AlertPublished(sink string, err error)
}

// Alerter turns store snapshots into alerts and fans them out to every
// sink. Detection runs on the caller's goroutine; publishing happens in
// Run so a slow broker never stalls the store.
type Alerter struct {
	detector *anomaly.Detector
	sinks    []Sink
	rec      Recorder
	log      *slog.Logger
	queue    chan []telemetry.Alert
}

func NewAlerter(detector *anomaly.Detector, rec Recorder, log *slog.Logger, sinks ...Sink) *Alerter {
	return &Alerter{
		detector: detector,
		sinks:    sinks,
		rec:      rec,
		log:      log.With(slog.String("component", "alerter")),
		queue:    make(chan []telemetry.Alert, 64),
	}
}

// Observe checks a snapshot for tier changes and queues any alerts. It is
// meant to be passed to store.Subscribe.
func (a *Alerter) Observe(snap store.Snapshot) {
	obs := anomaly.Observation{
		Timestamp: snap.UpdatedAt,
		Readings:  snap.Current,
		Seen:      snap.Seen,
		Overlaid:  make(map[telemetry.Metric]bool, len(snap.Overlay.Metrics)),
	}
	for _, m := range snap.Overlay.Metrics {
		obs.Overlaid[m] = true
	}
	alerts := a.detector.Check(obs)
	if len(alerts) == 0 {
		return
	}
	select {
	case a.queue <- alerts:
	default:
		a.log.Warn("alert queue full, dropping alerts", slog.Int("count", len(alerts)))
	}
}

// Run publishes queued alerts until ctx is cancelled.
func (a *Alerter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alerts := <-a.queue:
			a.ProcessAlerts(ctx, alerts)
		}
	}
}

// ProcessAlerts sends alerts via every configured sink
func (a *Alerter) ProcessAlerts(ctx context.Context, alerts []telemetry.Alert) {
	if len(alerts) == 0 {
		return
	}

	a.log.Debug("processing alerts", slog.Int("count", len(alerts)))
	for _, alert := range alerts {
		for _, sink := range a.sinks {
			err := sink.Publish(ctx, alert)
			if err != nil {
				a.log.Error("publish alert", slog.String("sink", sink.Name()), slog.String("alert", alert.ID), slog.Any("error", err))
			}
			if a.rec != nil {
				a.rec.AlertPublished(sink.Name(), err)
			}
		}
	}
}

// Broadcaster is the dashboard side of HubSink.
type Broadcaster interface {
	BroadcastAlert(alert interface{})
}

// HubSink pushes alerts to connected dashboards.
type HubSink struct {
	Hub Broadcaster
}

func (HubSink) Name() string { return "websocket" }

func (s HubSink) Publish(_ context.Context, alert telemetry.Alert) error {
	s.Hub.BroadcastAlert(alert)
	return nil
}
