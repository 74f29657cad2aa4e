package anomaly

import (
	"math"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// Severity ranks tiers across metrics. Every metric has exactly four tiers,
// one per severity.
type Severity int

const (
	SeverityNominal Severity = iota // quiet / normal
	SeverityElevated
	SeverityCritical // critical / storm
	SeverityExtreme
)

func (s Severity) String() string {
	switch s {
	case SeverityNominal:
		return "nominal"
	case SeverityElevated:
		return "elevated"
	case SeverityCritical:
		return "critical"
	case SeverityExtreme:
		return "extreme"
	}
	return "unknown"
}

// Tier is the classified state of one metric's reading.
type Tier struct {
	Metric   telemetry.Metric `json:"metric"`
	Label    string           `json:"label"`
	Severity Severity         `json:"severity"`
	Value    float64          `json:"value"`
}

type scale struct {
	labels [4]string
	bounds [3]float64 // inclusive lower bound of tiers 1..3
}

var scales = map[telemetry.Metric]scale{
	telemetry.MetricFlux:   {[4]string{"quiet", "C", "M", "X"}, [3]float64{1e-6, 1e-5, 1e-4}},
	telemetry.MetricWind:   {[4]string{"normal", "warning", "critical", "extreme"}, [3]float64{500, 700, 900}},
	telemetry.MetricKp:     {[4]string{"quiet", "unsettled", "storm", "extreme"}, [3]float64{5, 6, 8}},
	telemetry.MetricProton: {[4]string{"normal", "minor", "moderate", "strong"}, [3]float64{10, 100, 1000}},
}

// Classify maps a reading onto its tier using half-open intervals. NaN
// classifies as the lowest tier; unknown metrics return a zero Tier.
func Classify(m telemetry.Metric, value float64) Tier {
	sc, ok := scales[m]
	if !ok {
		return Tier{Metric: m, Value: value}
	}
	sev := SeverityNominal
	if !math.IsNaN(value) {
		for i, b := range sc.bounds {
			if value >= b {
				sev = Severity(i + 1)
			}
		}
	}
	return Tier{Metric: m, Label: sc.labels[sev], Severity: sev, Value: value}
}

// ClassifyAll classifies every metric of r in priority order.
func ClassifyAll(r telemetry.Readings) []Tier {
	tiers := make([]Tier, 0, len(telemetry.Metrics))
	for _, m := range telemetry.Metrics {
		tiers = append(tiers, Classify(m, r.Value(m)))
	}
	return tiers
}

// Forecast returns the most severe tier across all four metrics. Ties go
// to the earlier metric in flux, wind, Kp, proton order.
func Forecast(r telemetry.Readings) Tier {
	var worst Tier
	for i, t := range ClassifyAll(r) {
		if i == 0 || t.Severity > worst.Severity {
			worst = t
		}
	}
	return worst
}
