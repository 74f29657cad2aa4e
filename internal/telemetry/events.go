package telemetry

import "time"

// Event is one inbound message from a producer. The concrete types below
// are the complete set; consumers switch over them exhaustively.
type Event interface {
	event()
}

// FluxHistory seeds the flux series with an ordered snapshot.
type FluxHistory struct {
	Points []Sample
}

// FluxSample is a single X-ray flux reading.
type FluxSample struct {
	Point Sample
}

// SpaceWeatherSample carries wind, Kp, and proton readings sharing one
// timestamp, plus plasma temperature and density.
type SpaceWeatherSample struct {
	Timestamp time.Time
	Fields    SpaceWeatherFields
	Source    Source
}

// SpaceWeatherHistory seeds the wind, Kp, and proton series.
type SpaceWeatherHistory struct {
	Wind   []Sample
	Kp     []Sample
	Proton []Sample
}

// Series returns the history for one metric of the group.
func (h SpaceWeatherHistory) Series(m Metric) []Sample {
	switch m {
	case MetricWind:
		return h.Wind
	case MetricKp:
		return h.Kp
	case MetricProton:
		return h.Proton
	}
	return nil
}

// CalculusUpdate replaces the latest derivative analysis.
type CalculusUpdate struct {
	Result CalculusResult
}

// RegionsUpdate replaces the active sunspot region list.
type RegionsUpdate struct {
	Regions []ActiveRegion
}

// ConnectionChange reports an upstream connect or disconnect.
type ConnectionChange struct {
	Status ConnectionStatus
}

// SimulationTrigger marks an overlay active ahead of its synthetic samples.
type SimulationTrigger struct {
	EventType string
	Level     string
}

// SimulationRevert restores every display series to its real series. It
// travels the same queue as samples so it lands after anything a stopped
// simulation already queued.
type SimulationRevert struct{}

func (FluxHistory) event()         {}
func (FluxSample) event()          {}
func (SpaceWeatherSample) event()  {}
func (SpaceWeatherHistory) event() {}
func (CalculusUpdate) event()      {}
func (RegionsUpdate) event()       {}
func (ConnectionChange) event()    {}
func (SimulationTrigger) event()   {}
func (SimulationRevert) event()    {}
