// internal/storage/series.go
package storage

import (
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// DefaultRetention keeps six hours of minute cadence data.
const DefaultRetention = 360

// Series is a bounded, FIFO-evicting sequence of samples for one metric.
// A Series is never modified after construction: Append returns a new
// value, so a *Series handed to a reader stays consistent forever.
type Series struct {
	buffer   []telemetry.Sample
	capacity int
}

// NewSeries builds a series holding the newest capacity samples of points.
// A non-positive capacity falls back to DefaultRetention.
func NewSeries(capacity int, points []telemetry.Sample) *Series {
	if capacity <= 0 {
		capacity = DefaultRetention
	}
	if len(points) > capacity {
		points = points[len(points)-capacity:]
	}
	buf := make([]telemetry.Sample, len(points), capacity)
	copy(buf, points)
	return &Series{buffer: buf, capacity: capacity}
}

// Append returns a new series with point added, dropping the oldest
// element when the series is full.
func (s *Series) Append(point telemetry.Sample) *Series {
	start := 0
	if len(s.buffer) >= s.capacity {
		// Remove the oldest element
		start = len(s.buffer) - s.capacity + 1
	}
	buf := make([]telemetry.Sample, 0, s.capacity)
	buf = append(buf, s.buffer[start:]...)
	buf = append(buf, point)
	return &Series{buffer: buf, capacity: s.capacity}
}

func (s *Series) Len() int { return len(s.buffer) }

func (s *Series) Cap() int { return s.capacity }

// Last returns the newest sample.
func (s *Series) Last() (telemetry.Sample, bool) {
	if len(s.buffer) == 0 {
		return telemetry.Sample{}, false
	}
	return s.buffer[len(s.buffer)-1], true
}

// Recent returns a copy of the newest count samples, oldest first. A
// non-positive or oversized count returns everything.
func (s *Series) Recent(count int) []telemetry.Sample {
	if count <= 0 || count > len(s.buffer) {
		count = len(s.buffer)
	}
	// Return a copy so callers can't reach the backing array
	result := make([]telemetry.Sample, count)
	copy(result, s.buffer[len(s.buffer)-count:])
	return result
}

// Samples returns a copy of every sample, oldest first.
func (s *Series) Samples() []telemetry.Sample {
	return s.Recent(0)
}

// Equal reports whether both series hold the same samples in the same order.
func (s *Series) Equal(o *Series) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil || len(s.buffer) != len(o.buffer) {
		return false
	}
	for i := range s.buffer {
		a, b := s.buffer[i], o.buffer[i]
		if !a.Timestamp.Equal(b.Timestamp) || a.Value != b.Value || a.Source != b.Source || a.ClassType != b.ClassType {
			return false
		}
	}
	return true
}
