package calculus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pts(step time.Duration, values ...float64) []telemetry.Sample {
	out := make([]telemetry.Sample, len(values))
	for i, v := range values {
		out[i] = telemetry.Sample{Timestamp: t0.Add(time.Duration(i) * step), Value: v}
	}
	return out
}

func TestSlope(t *testing.T) {
	assert.Zero(t, Slope(nil))
	assert.Zero(t, Slope(pts(time.Minute, 1e-6)))
	assert.Zero(t, Slope(pts(0, 1e-6, 2e-6)))
	assert.InDelta(t, 1e-6, Slope(pts(time.Minute, 1e-6, 2e-6)), 1e-18)
	// 30 s apart doubles the per-minute rate
	assert.InDelta(t, 2e-6, Slope(pts(30*time.Second, 5e-6, 1e-6, 2e-6)), 1e-18)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name    string
		points  []telemetry.Sample
		status  string
		details string
		warning bool
	}{
		{"no data", nil, StatusStable, "No Data", false},
		{"calm", pts(time.Minute, 1e-7, 1e-7), StatusStable, "Calm", false},
		{"x class", pts(time.Minute, 2e-4, 1e-4), StatusXClassFlare, "MAJOR EVENT IN PROGRESS", true},
		{"m class", pts(time.Minute, 1e-5, 1e-5), StatusMClassFlare, "Moderate Flare Ongoing", true},
		{"rising fast", pts(time.Minute, 1e-6, 2e-6), StatusRapidIntensification, "Early Warning: Flux Rising Fast", true},
		{"rising slowly", pts(time.Minute, 1e-6, 1.05e-6), StatusStable, "Calm", false},
		{"cooling", pts(time.Minute, 5e-6, 4e-6), StatusStable, "Flux Decay (Cooling)", false},
		{"falling but quiet", pts(time.Minute, 9e-7, 5e-7), StatusStable, "Calm", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Analyze(tt.points)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.details, res.Details)
			assert.Equal(t, tt.warning, res.IsWarning)
			assert.Equal(t, DerivativeWarning, res.Threshold)
			assert.Equal(t, EngineType, res.EngineType)
		})
	}
}
