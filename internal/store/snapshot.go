package store

import (
	"time"

	"github.com/vedantsgith/Helios-Watch/internal/storage"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// Overlay describes the simulation overlay at snapshot time.
type Overlay struct {
	Active    bool               `json:"active"`
	EventType string             `json:"event_type,omitempty"`
	Level     string             `json:"level,omitempty"`
	Since     time.Time          `json:"since,omitempty"`
	Metrics   []telemetry.Metric `json:"metrics"`
}

// Affects reports whether m currently shows simulation data.
func (o Overlay) Affects(m telemetry.Metric) bool {
	for _, om := range o.Metrics {
		if om == m {
			return true
		}
	}
	return false
}

// Snapshot is an immutable view of the store after one mutation. The series
// pointers are shared with the store but never modified.
type Snapshot struct {
	Version   uint64
	UpdatedAt time.Time
	Real      map[telemetry.Metric]*storage.Series
	Display   map[telemetry.Metric]*storage.Series
	Current   telemetry.Readings
	Seen      map[telemetry.Metric]bool
	Overlay   Overlay
	Calculus  telemetry.CalculusResult
	Regions   []telemetry.ActiveRegion
	Status    telemetry.ConnectionStatus
	Session   *telemetry.User
}

// Series returns the real or display series of m.
func (s Snapshot) Series(m telemetry.Metric, display bool) *storage.Series {
	if display {
		return s.Display[m]
	}
	return s.Real[m]
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:   s.version,
		UpdatedAt: s.updated,
		Real:      make(map[telemetry.Metric]*storage.Series, len(s.real)),
		Display:   make(map[telemetry.Metric]*storage.Series, len(s.display)),
		Current:   s.current,
		Seen:      make(map[telemetry.Metric]bool, len(s.seen)),
		Calculus:  s.calculus,
		Regions:   s.regions,
		Status:    s.status,
		Overlay: Overlay{
			Active:    s.overlay.active,
			EventType: s.overlay.eventType,
			Level:     s.overlay.level,
			Since:     s.overlay.since,
			Metrics:   []telemetry.Metric{},
		},
	}
	for m, series := range s.real {
		snap.Real[m] = series
	}
	for m, series := range s.display {
		snap.Display[m] = series
	}
	for m, ok := range s.seen {
		snap.Seen[m] = ok
	}
	for _, m := range telemetry.Metrics {
		if s.overlay.metrics[m] {
			snap.Overlay.Metrics = append(snap.Overlay.Metrics, m)
		}
	}
	if s.session != nil {
		u := *s.session
		snap.Session = &u
	}
	return snap
}
