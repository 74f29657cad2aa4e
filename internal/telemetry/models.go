// internal/telemetry/models.go
package telemetry

import (
	"math"
	"time"
)

// Metric names one of the four classified telemetry channels.
type Metric string

const (
	MetricFlux   Metric = "flux"   // GOES X-ray flux, W/m²
	MetricWind   Metric = "wind"   // solar wind speed, km/s
	MetricKp     Metric = "kp"     // planetary K index, 0-9
	MetricProton Metric = "proton" // >=10 MeV integral proton flux, pfu
)

// Metrics lists every metric in display priority order.
var Metrics = []Metric{MetricFlux, MetricWind, MetricKp, MetricProton}

// SpaceWeatherMetrics is the group delivered together by multi-metric samples.
var SpaceWeatherMetrics = []Metric{MetricWind, MetricKp, MetricProton}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricFlux, MetricWind, MetricKp, MetricProton:
		return true
	}
	return false
}

// Source tells real feed data apart from simulation overlays.
type Source string

const (
	SourceReal       Source = "real"
	SourceSimulation Source = "simulation"
)

// ParseSource maps wire values onto a Source. Anything that is not
// explicitly a simulation ("noaa", "real", "") is real data.
func ParseSource(s string) Source {
	if s == string(SourceSimulation) {
		return SourceSimulation
	}
	return SourceReal
}

// Sample is one timestamped reading of a single metric.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Source    Source    `json:"source"`
	ClassType string    `json:"class_type,omitempty"` // flare class as reported by the backend
}

// Valid reports whether the sample can enter a series.
func (s Sample) Valid() bool {
	return !s.Timestamp.IsZero() && finite(s.Value)
}

// Simulated is shorthand for s.Source == SourceSimulation.
func (s Sample) Simulated() bool { return s.Source == SourceSimulation }

// Readings holds the latest scalar per channel, regardless of source.
type Readings struct {
	Flux       float64 `json:"flux"`
	WindSpeed  float64 `json:"wind_speed"`
	Temp       float64 `json:"temp"`
	Density    float64 `json:"density"`
	KpIndex    float64 `json:"kp_index"`
	ProtonFlux float64 `json:"proton_flux"`
}

// Value returns the reading for a classified metric.
func (r Readings) Value(m Metric) float64 {
	switch m {
	case MetricFlux:
		return r.Flux
	case MetricWind:
		return r.WindSpeed
	case MetricKp:
		return r.KpIndex
	case MetricProton:
		return r.ProtonFlux
	}
	return 0
}

// With returns a copy of r with metric m set to v.
func (r Readings) With(m Metric, v float64) Readings {
	switch m {
	case MetricFlux:
		r.Flux = v
	case MetricWind:
		r.WindSpeed = v
	case MetricKp:
		r.KpIndex = v
	case MetricProton:
		r.ProtonFlux = v
	}
	return r
}

// SpaceWeatherFields carries the optional fields of a multi-metric sample.
// Nil means the field was absent on the wire.
type SpaceWeatherFields struct {
	WindSpeed  *float64 `json:"wind_speed,omitempty"`
	Temp       *float64 `json:"temp,omitempty"`
	Density    *float64 `json:"density,omitempty"`
	KpIndex    *float64 `json:"kp_index,omitempty"`
	ProtonFlux *float64 `json:"proton_flux,omitempty"`
}

// Metric returns the field for a classified metric in the group.
func (f SpaceWeatherFields) Metric(m Metric) *float64 {
	switch m {
	case MetricWind:
		return f.WindSpeed
	case MetricKp:
		return f.KpIndex
	case MetricProton:
		return f.ProtonFlux
	}
	return nil
}

// Empty reports whether no field is present.
func (f SpaceWeatherFields) Empty() bool {
	return f.WindSpeed == nil && f.Temp == nil && f.Density == nil && f.KpIndex == nil && f.ProtonFlux == nil
}

// Valid reports whether every present field is finite.
func (f SpaceWeatherFields) Valid() bool {
	for _, v := range []*float64{f.WindSpeed, f.Temp, f.Density, f.KpIndex, f.ProtonFlux} {
		if v != nil && !finite(*v) {
			return false
		}
	}
	return true
}

// CalculusResult is the backend's derivative analysis, stored verbatim.
type CalculusResult struct {
	Slope      float64 `json:"slope"` // W/m²/min
	IsWarning  bool    `json:"is_warning"`
	Threshold  float64 `json:"threshold"`
	Status     string  `json:"status"` // e.g. RAPID_INTENSIFICATION
	Details    string  `json:"details"`
	EngineType string  `json:"engine_type"`
}

// DefaultCalculus is what the dashboard shows before the first analysis.
func DefaultCalculus() CalculusResult {
	return CalculusResult{
		Threshold:  1e-7,
		Status:     "STABLE",
		Details:    "System Normal",
		EngineType: "Loading...",
	}
}

// ActiveRegion is a numbered sunspot region with a heliographic position.
type ActiveRegion struct {
	RegionNumber int     `json:"region_number"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ClassType    string  `json:"class_type"`
}

// User is the authenticated dashboard operator.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// ConnectionStatus is the advisory state of the upstream feed.
type ConnectionStatus string

const (
	StatusOnline     ConnectionStatus = "online"
	StatusOffline    ConnectionStatus = "offline"
	StatusConnecting ConnectionStatus = "connecting"
)

// Valid reports whether s is one of the three known states.
func (s ConnectionStatus) Valid() bool {
	return s == StatusOnline || s == StatusOffline || s == StatusConnecting
}

// Alert - Structure for sending tier-change notifications
type Alert struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Metric    Metric    `json:"metric"`
	Tier      string    `json:"tier"`
	Previous  string    `json:"previous"`
	Severity  int       `json:"severity"`
	Value     float64   `json:"value"`
	Simulated bool      `json:"simulated"`
	Message   string    `json:"message"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
