// internal/simulator/generator.go
package simulator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vedantsgith/Helios-Watch/internal/calculus"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// ErrUnknownEvent is returned for event types the generator cannot produce.
var ErrUnknownEvent = errors.New("unknown simulation type")

const (
	baseFlux = 1e-7 // quiet sun
	riseFrac = 0.2
	noise    = 0.05
)

var flarePeaks = map[string]float64{
	"C": 5e-6,
	"M": 2e-5,
	"X": 5e-4,
}

type stormProfile struct {
	wind, kp, proton float64
}

var (
	stormBase  = stormProfile{wind: 400, kp: 2, proton: 1}
	stormPeaks = map[string]stormProfile{
		"G1": {wind: 550, kp: 5, proton: 15},
		"G2": {wind: 650, kp: 6, proton: 150},
		"G3": {wind: 800, kp: 7, proton: 1500},
		"G4": {wind: 950, kp: 8, proton: 15000},
		"G5": {wind: 1100, kp: 9, proton: 150000},
	}
)

// IsFlare reports whether kind names a flare class.
func IsFlare(kind string) bool {
	_, ok := flarePeaks[strings.ToUpper(kind)]
	return ok
}

// IsStorm reports whether kind names a geomagnetic storm level.
func IsStorm(kind string) bool {
	_, ok := stormPeaks[strings.ToUpper(kind)]
	return ok
}

// envelope rises linearly over the first 20% of the run and decays
// linearly over the rest.
func envelope(i, n int) float64 {
	progress := float64(i) / float64(n)
	if progress < riseFrac {
		return progress / riseFrac
	}
	return 1 - (progress-riseFrac)/(1-riseFrac)
}

func ripple(v float64, i int) float64 {
	return v + v*noise*math.Sin(float64(i))
}

// GenerateFlare returns one flux sample per second for a flare of the given
// class, tagged as simulation data.
func GenerateFlare(class string, seconds int, start time.Time) ([]telemetry.Sample, error) {
	class = strings.ToUpper(class)
	peak, ok := flarePeaks[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, class)
	}
	points := make([]telemetry.Sample, 0, max(seconds, 0))
	for i := 0; i < seconds; i++ {
		points = append(points, telemetry.Sample{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Value:     ripple(baseFlux+peak*envelope(i, seconds), i),
			Source:    telemetry.SourceSimulation,
			ClassType: class,
		})
	}
	return points, nil
}

// GenerateStorm returns one multi-metric sample per second for a storm of
// the given G level. Wind, Kp and proton flux follow the flare envelope
// between their quiet baselines and the level's peaks.
func GenerateStorm(level string, seconds int, start time.Time) ([]telemetry.SpaceWeatherSample, error) {
	level = strings.ToUpper(level)
	peak, ok := stormPeaks[level]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, level)
	}
	out := make([]telemetry.SpaceWeatherSample, 0, max(seconds, 0))
	for i := 0; i < seconds; i++ {
		f := envelope(i, seconds)
		wind := ripple(stormBase.wind+(peak.wind-stormBase.wind)*f, i)
		kp := math.Min(9, stormBase.kp+(peak.kp-stormBase.kp)*f)
		proton := ripple(stormBase.proton+(peak.proton-stormBase.proton)*f, i)
		out = append(out, telemetry.SpaceWeatherSample{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Source:    telemetry.SourceSimulation,
			Fields: telemetry.SpaceWeatherFields{
				WindSpeed:  &wind,
				KpIndex:    &kp,
				ProtonFlux: &proton,
			},
		})
	}
	return out, nil
}

// Events expands a simulation request into the event stream a run plays.
// Flares interleave a calculus update after every flux sample.
func Events(kind string, seconds int, start time.Time) ([]telemetry.Event, error) {
	switch {
	case IsFlare(kind):
		points, err := GenerateFlare(kind, seconds, start)
		if err != nil {
			return nil, err
		}
		events := make([]telemetry.Event, 0, 2*len(points))
		for i, p := range points {
			events = append(events,
				telemetry.FluxSample{Point: p},
				telemetry.CalculusUpdate{Result: calculus.Analyze(points[max(0, i-1) : i+1])},
			)
		}
		return events, nil
	case IsStorm(kind):
		samples, err := GenerateStorm(kind, seconds, start)
		if err != nil {
			return nil, err
		}
		events := make([]telemetry.Event, len(samples))
		for i, s := range samples {
			events[i] = s
		}
		return events, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
}
