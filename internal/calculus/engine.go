// internal/calculus/engine.go
package calculus

import (
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

const (
	// DerivativeWarning is the flux slope, in W/m²/min, above which a
	// rising curve is flagged before it crosses a class limit.
	DerivativeWarning = 1e-7
	MClassLimit       = 1e-5
	XClassLimit       = 1e-4

	decaySlope = -1e-8
	decayFloor = 1e-6

	EngineType = "HYBRID (Calculus + Threshold)"
)

// Status labels produced by Analyze.
const (
	StatusStable               = "STABLE"
	StatusXClassFlare          = "X_CLASS_FLARE"
	StatusMClassFlare          = "M_CLASS_FLARE"
	StatusRapidIntensification = "RAPID_INTENSIFICATION"
)

// Slope returns the rate of change between the last two points in
// W/m²/min. Fewer than two points, or two points sharing a timestamp,
// give zero.
func Slope(points []telemetry.Sample) float64 {
	if len(points) < 2 {
		return 0
	}
	p1, p2 := points[len(points)-2], points[len(points)-1]
	minutes := p2.Timestamp.Sub(p1.Timestamp).Minutes()
	if minutes == 0 {
		return 0
	}
	return (p2.Value - p1.Value) / minutes
}

// Analyze combines the absolute class limits with the derivative warning.
// Class limits win over the slope check; a falling curve above C-class is
// reported as cooling but is not a warning.
func Analyze(points []telemetry.Sample) telemetry.CalculusResult {
	res := telemetry.CalculusResult{
		Threshold:  DerivativeWarning,
		Status:     StatusStable,
		Details:    "Calm",
		EngineType: EngineType,
	}
	if len(points) == 0 {
		res.Details = "No Data"
		return res
	}

	flux := points[len(points)-1].Value
	res.Slope = Slope(points)

	switch {
	case flux >= XClassLimit:
		res.Status, res.Details, res.IsWarning = StatusXClassFlare, "MAJOR EVENT IN PROGRESS", true
	case flux >= MClassLimit:
		res.Status, res.Details, res.IsWarning = StatusMClassFlare, "Moderate Flare Ongoing", true
	case res.Slope > DerivativeWarning:
		res.Status, res.Details, res.IsWarning = StatusRapidIntensification, "Early Warning: Flux Rising Fast", true
	case res.Slope < decaySlope && flux > decayFloor:
		res.Details = "Flux Decay (Cooling)"
	}
	return res
}
