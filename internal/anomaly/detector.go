// internal/anomaly/detector.go
package anomaly

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// Observation is what the detector needs from a store snapshot.
type Observation struct {
	Timestamp time.Time
	Readings  telemetry.Readings
	Overlaid  map[telemetry.Metric]bool
	Seen      map[telemetry.Metric]bool // metrics that have received at least one reading
}

// Detector remembers the last tier of each metric and reports changes.
type Detector struct {
	mu   sync.Mutex
	last map[telemetry.Metric]Tier
	log  *slog.Logger
}

func NewDetector(log *slog.Logger) *Detector {
	return &Detector{
		last: make(map[telemetry.Metric]Tier),
		log:  log.With(slog.String("component", "detector")),
	}
}

// Check classifies the observation and returns one alert per metric whose
// tier changed since the previous call. The first reading of a metric only
// alerts when it is already above nominal.
func (d *Detector) Check(obs Observation) []telemetry.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	var alerts []telemetry.Alert
	for _, m := range telemetry.Metrics {
		if !obs.Seen[m] {
			continue
		}
		tier := Classify(m, obs.Readings.Value(m))
		prev, known := d.last[m]
		d.last[m] = tier
		if known && prev.Label == tier.Label {
			continue
		}
		if !known && tier.Severity == SeverityNominal {
			continue
		}

		prevLabel := ""
		if known {
			prevLabel = prev.Label
		}
		alert := telemetry.Alert{
			ID:        uuid.NewString(),
			Timestamp: obs.Timestamp,
			Metric:    m,
			Tier:      tier.Label,
			Previous:  prevLabel,
			Severity:  int(tier.Severity),
			Value:     tier.Value,
			Simulated: obs.Overlaid[m],
			Message:   message(tier, prevLabel),
		}
		alerts = append(alerts, alert)
		d.log.Info("tier change", slog.String("metric", string(m)), slog.String("from", prevLabel),
			slog.String("to", tier.Label), slog.Float64("value", tier.Value), slog.Bool("simulated", alert.Simulated))
	}
	return alerts
}

func message(t Tier, prev string) string {
	if prev == "" {
		return fmt.Sprintf("%s reading %g classified %s", t.Metric, t.Value, t.Label)
	}
	return fmt.Sprintf("%s moved from %s to %s at %g", t.Metric, prev, t.Label, t.Value)
}
