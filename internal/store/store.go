// Package store holds the telemetry reconciliation store: the single
// authoritative state shared by the feed, the simulation controls, and
// every dashboard client.
//
// Each metric keeps two series. The real series only ever receives real
// samples. The display series is what clients render; it is either the real
// series itself or a copy extended with simulation samples. A real sample
// for a metric always resets that metric's display series to the real one,
// so a simulation overlay never outlives the next real arrival.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vedantsgith/Helios-Watch/internal/storage"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

var (
	// ErrInvalidSample is returned for payloads rejected without any
	// state change.
	ErrInvalidSample = errors.New("invalid sample")
	// ErrUnknownEvent is returned by Apply for event types it does not handle.
	ErrUnknownEvent = errors.New("unknown event")
)

// Overlay event types recorded when a simulation sample arrives without a
// prior trigger.
const (
	EventFlare       = "flare"
	EventCME         = "cme"
	EventGeomagnetic = "geomagnetic"
	EventRadiation   = "radiation"
)

// EventTypeFor returns the overlay event type associated with a metric.
func EventTypeFor(m telemetry.Metric) string {
	switch m {
	case telemetry.MetricWind:
		return EventCME
	case telemetry.MetricKp:
		return EventGeomagnetic
	case telemetry.MetricProton:
		return EventRadiation
	}
	return EventFlare
}

type overlayState struct {
	active    bool
	eventType string
	level     string
	since     time.Time
	metrics   map[telemetry.Metric]bool
	gen       uint64
	stop      func() bool
}

type subscriber struct {
	mu   sync.Mutex
	fn   func(Snapshot)
	last uint64
}

func (sub *subscriber) deliver(snap Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if snap.Version <= sub.last {
		return
	}
	sub.last = snap.Version
	sub.fn(snap)
}

// Store is safe for concurrent use. Mutations are serialised; readers and
// subscribers only ever see complete snapshots.
type Store struct {
	mu             sync.Mutex
	retention      int
	now            func() time.Time
	overlayTimeout time.Duration
	afterFunc      func(time.Duration, func()) func() bool

	real     map[telemetry.Metric]*storage.Series
	display  map[telemetry.Metric]*storage.Series
	current  telemetry.Readings
	seen     map[telemetry.Metric]bool
	overlay  overlayState
	calculus telemetry.CalculusResult
	regions  []telemetry.ActiveRegion
	status   telemetry.ConnectionStatus
	session  *telemetry.User
	version  uint64
	updated  time.Time

	subMu   sync.RWMutex
	subs    map[int]*subscriber
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithRetention sets the maximum number of samples per series.
func WithRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithClock replaces time.Now, used for timestamp-less samples.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOverlayTimeout reverts an overlay that is still active d after it
// started. Zero disables the timer.
func WithOverlayTimeout(d time.Duration) Option {
	return func(s *Store) { s.overlayTimeout = d }
}

// WithAfterFunc replaces time.AfterFunc for the overlay timer.
func WithAfterFunc(fn func(time.Duration, func()) func() bool) Option {
	return func(s *Store) { s.afterFunc = fn }
}

// New returns an empty store with connection status "connecting".
func New(opts ...Option) *Store {
	s := &Store{
		retention: storage.DefaultRetention,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool { return time.AfterFunc(d, f).Stop },
		real:      make(map[telemetry.Metric]*storage.Series),
		display:   make(map[telemetry.Metric]*storage.Series),
		seen:      make(map[telemetry.Metric]bool),
		calculus:  telemetry.DefaultCalculus(),
		status:    telemetry.StatusConnecting,
		subs:      make(map[int]*subscriber),
	}
	for _, o := range opts {
		o(s)
	}
	for _, m := range telemetry.Metrics {
		s.real[m] = storage.NewSeries(s.retention, nil)
		s.display[m] = s.real[m]
	}
	s.overlay.metrics = make(map[telemetry.Metric]bool)
	s.updated = s.now()
	return s
}

// Retention returns the configured per-series capacity.
func (s *Store) Retention() int { return s.retention }

// Subscribe registers fn to receive a snapshot after every completed
// mutation. Versions delivered to one subscriber only ever increase. fn
// must not mutate the store synchronously.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &subscriber{fn: fn}
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Snapshot returns the current read model.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IngestBulkHistory replaces the flux series with points, truncated to the
// retention window, and cancels any simulation overlay. All points are
// treated as real data.
func (s *Store) IngestBulkHistory(points []telemetry.Sample) error {
	seeded, err := realSamples(points)
	if err != nil {
		return fmt.Errorf("flux history: %w", err)
	}

	s.mu.Lock()
	s.clearOverlayLocked()
	s.seedLocked(telemetry.MetricFlux, seeded)
	s.commitLocked()
	return nil
}

// IngestMultiMetricHistory replaces the wind, Kp, and proton series that
// are present in h and cancels any simulation overlay.
func (s *Store) IngestMultiMetricHistory(h telemetry.SpaceWeatherHistory) error {
	seeded := make(map[telemetry.Metric][]telemetry.Sample)
	for _, m := range telemetry.SpaceWeatherMetrics {
		points := h.Series(m)
		if points == nil {
			continue
		}
		clean, err := realSamples(points)
		if err != nil {
			return fmt.Errorf("%s history: %w", m, err)
		}
		seeded[m] = clean
	}
	if len(seeded) == 0 {
		return fmt.Errorf("%w: empty space weather history", ErrInvalidSample)
	}

	s.mu.Lock()
	s.clearOverlayLocked()
	for _, m := range telemetry.SpaceWeatherMetrics {
		if points, ok := seeded[m]; ok {
			s.seedLocked(m, points)
		}
	}
	s.commitLocked()
	return nil
}

// IngestSample applies one sample of metric m. Real samples extend the real
// series and snap the display series back to it; simulation samples extend
// only the display series and activate the overlay.
func (s *Store) IngestSample(m telemetry.Metric, p telemetry.Sample) error {
	if !m.Valid() {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidSample, m)
	}
	if !p.Valid() {
		return fmt.Errorf("%w: %s sample needs a timestamp and a finite value", ErrInvalidSample, m)
	}
	if p.Source != telemetry.SourceSimulation {
		p.Source = telemetry.SourceReal
	}

	s.mu.Lock()
	s.applyLocked(m, p)
	if !p.Simulated() {
		s.status = telemetry.StatusOnline
	}
	s.commitLocked()
	return nil
}

// IngestMultiMetricSample applies the present wind, Kp, and proton fields
// as one atomic update sharing ts. Absent fields keep their previous
// reading. A zero ts is replaced by the store clock.
func (s *Store) IngestMultiMetricSample(ts time.Time, f telemetry.SpaceWeatherFields, src telemetry.Source) error {
	if f.Empty() {
		return fmt.Errorf("%w: no space weather fields", ErrInvalidSample)
	}
	if !f.Valid() {
		return fmt.Errorf("%w: non-finite space weather field", ErrInvalidSample)
	}
	if src != telemetry.SourceSimulation {
		src = telemetry.SourceReal
	}

	s.mu.Lock()
	if ts.IsZero() {
		ts = s.now()
	}
	for _, m := range telemetry.SpaceWeatherMetrics {
		v := f.Metric(m)
		if v == nil {
			continue
		}
		s.applyLocked(m, telemetry.Sample{Timestamp: ts, Value: *v, Source: src})
	}
	if f.Temp != nil {
		s.current.Temp = *f.Temp
	}
	if f.Density != nil {
		s.current.Density = *f.Density
	}
	if src == telemetry.SourceReal {
		s.status = telemetry.StatusOnline
	}
	s.commitLocked()
	return nil
}

// SetCalculusResult replaces the latest backend derivative analysis.
func (s *Store) SetCalculusResult(r telemetry.CalculusResult) {
	s.mu.Lock()
	s.calculus = r
	s.commitLocked()
}

// SetRegions replaces the active region list.
func (s *Store) SetRegions(regions []telemetry.ActiveRegion) {
	cp := make([]telemetry.ActiveRegion, len(regions))
	copy(cp, regions)

	s.mu.Lock()
	s.regions = cp
	s.commitLocked()
}

// TriggerSimulation marks an overlay active ahead of the synthetic samples
// a simulation producer is about to send.
func (s *Store) TriggerSimulation(eventType, level string) {
	s.mu.Lock()
	if !s.overlay.active {
		s.activateOverlayLocked()
	}
	s.overlay.eventType = eventType
	s.overlay.level = level
	s.commitLocked()
}

// RevertSimulation points every overlaid display series back at its real
// series and clears the overlay. It reports whether an overlay was active.
func (s *Store) RevertSimulation() bool {
	s.mu.Lock()
	was := s.overlay.active
	s.clearOverlayLocked()
	s.commitLocked()
	return was
}

// SetConnectionStatus records the advisory upstream status.
func (s *Store) SetConnectionStatus(status telemetry.ConnectionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: connection status %q", ErrInvalidSample, status)
	}
	s.mu.Lock()
	s.status = status
	s.commitLocked()
	return nil
}

// SetSession replaces the logged-in user; nil logs out.
func (s *Store) SetSession(u *telemetry.User) {
	var cp *telemetry.User
	if u != nil {
		v := *u
		cp = &v
	}
	s.mu.Lock()
	s.session = cp
	s.commitLocked()
}

// Apply dispatches a decoded feed event to the matching operation.
func (s *Store) Apply(ev telemetry.Event) error {
	switch e := ev.(type) {
	case telemetry.FluxHistory:
		return s.IngestBulkHistory(e.Points)
	case telemetry.FluxSample:
		return s.IngestSample(telemetry.MetricFlux, e.Point)
	case telemetry.SpaceWeatherSample:
		return s.IngestMultiMetricSample(e.Timestamp, e.Fields, e.Source)
	case telemetry.SpaceWeatherHistory:
		return s.IngestMultiMetricHistory(e)
	case telemetry.CalculusUpdate:
		s.SetCalculusResult(e.Result)
		return nil
	case telemetry.RegionsUpdate:
		s.SetRegions(e.Regions)
		return nil
	case telemetry.ConnectionChange:
		return s.SetConnectionStatus(e.Status)
	case telemetry.SimulationTrigger:
		s.TriggerSimulation(e.EventType, e.Level)
		return nil
	case telemetry.SimulationRevert:
		s.RevertSimulation()
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func (s *Store) applyLocked(m telemetry.Metric, p telemetry.Sample) {
	if p.Simulated() {
		s.display[m] = s.display[m].Append(p)
		if !s.overlay.active {
			s.activateOverlayLocked()
			s.overlay.eventType = EventTypeFor(m)
			s.overlay.level = p.ClassType
		}
		s.overlay.metrics[m] = true
	} else {
		s.real[m] = s.real[m].Append(p)
		s.display[m] = s.real[m]
		s.releaseMetricLocked(m)
	}
	s.current = s.current.With(m, p.Value)
	s.seen[m] = true
}

func (s *Store) seedLocked(m telemetry.Metric, points []telemetry.Sample) {
	s.real[m] = storage.NewSeries(s.retention, points)
	s.display[m] = s.real[m]
	if last, ok := s.real[m].Last(); ok {
		s.current = s.current.With(m, last.Value)
		s.seen[m] = true
	}
}

func (s *Store) activateOverlayLocked() {
	s.overlay.active = true
	s.overlay.since = s.now()
	s.overlay.gen++
	if s.overlayTimeout > 0 {
		gen := s.overlay.gen
		s.overlay.stop = s.afterFunc(s.overlayTimeout, func() { s.expireOverlay(gen) })
	}
}

// releaseMetricLocked drops m from the overlay after a real arrival. The
// overlay ends once no overlaid metric is left.
func (s *Store) releaseMetricLocked(m telemetry.Metric) {
	if !s.overlay.active {
		return
	}
	delete(s.overlay.metrics, m)
	if len(s.overlay.metrics) == 0 {
		s.clearOverlayLocked()
	}
}

func (s *Store) clearOverlayLocked() {
	for m := range s.overlay.metrics {
		s.display[m] = s.real[m]
	}
	if s.overlay.stop != nil {
		s.overlay.stop()
	}
	s.overlay = overlayState{
		metrics: make(map[telemetry.Metric]bool),
		gen:     s.overlay.gen + 1,
	}
}

func (s *Store) expireOverlay(gen uint64) {
	s.mu.Lock()
	if !s.overlay.active || s.overlay.gen != gen {
		s.mu.Unlock()
		return
	}
	s.clearOverlayLocked()
	s.commitLocked()
}

// commitLocked publishes the new state and releases s.mu.
func (s *Store) commitLocked() {
	s.version++
	s.updated = s.now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.subMu.RLock()
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.deliver(snap)
	}
}

func realSamples(points []telemetry.Sample) ([]telemetry.Sample, error) {
	out := make([]telemetry.Sample, len(points))
	for i, p := range points {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: point %d needs a timestamp and a finite value", ErrInvalidSample, i)
		}
		p.Source = telemetry.SourceReal
		out[i] = p
	}
	return out, nil
}
