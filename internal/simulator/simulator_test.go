package simulator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedantsgith/Helios-Watch/internal/anomaly"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerateFlareShape(t *testing.T) {
	points, err := GenerateFlare("x", 60, start)
	require.NoError(t, err)
	require.Len(t, points, 60)

	assert.Equal(t, start, points[0].Timestamp)
	assert.Equal(t, start.Add(59*time.Second), points[59].Timestamp)
	assert.InDelta(t, baseFlux, points[0].Value, 1e-12)

	peak := 0
	for i, p := range points {
		assert.True(t, p.Simulated())
		assert.Equal(t, "X", p.ClassType)
		if p.Value > points[peak].Value {
			peak = i
		}
	}
	assert.InDelta(t, 12, peak, 3)
	assert.Equal(t, "X", anomaly.Classify(telemetry.MetricFlux, points[peak].Value).Label)
}

func TestGenerateRejectsUnknownTypes(t *testing.T) {
	_, err := GenerateFlare("Z", 10, start)
	assert.ErrorIs(t, err, ErrUnknownEvent)
	_, err = GenerateStorm("G9", 10, start)
	assert.ErrorIs(t, err, ErrUnknownEvent)
	_, err = Events("tsunami", 10, start)
	assert.ErrorIs(t, err, ErrUnknownEvent)

	points, err := GenerateFlare("C", 0, start)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestGenerateStormReachesLevel(t *testing.T) {
	samples, err := GenerateStorm("G4", 30, start)
	require.NoError(t, err)
	require.Len(t, samples, 30)

	var maxKp float64
	for _, s := range samples {
		assert.Equal(t, telemetry.SourceSimulation, s.Source)
		require.NotNil(t, s.Fields.KpIndex)
		assert.LessOrEqual(t, *s.Fields.KpIndex, 9.0)
		maxKp = max(maxKp, *s.Fields.KpIndex)
	}
	assert.Equal(t, "extreme", anomaly.Classify(telemetry.MetricKp, maxKp).Label)
}

func TestFlareEventsInterleaveCalculus(t *testing.T) {
	events, err := Events("M", 10, start)
	require.NoError(t, err)
	require.Len(t, events, 20)

	_, ok := events[0].(telemetry.FluxSample)
	assert.True(t, ok)
	first := events[1].(telemetry.CalculusUpdate).Result
	assert.Zero(t, first.Slope)
	rising := events[3].(telemetry.CalculusUpdate).Result
	assert.Greater(t, rising.Slope, 0.0)
}

type recorder struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *recorder) Enqueue(_ context.Context, ev telemetry.Event, origin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if origin != Origin {
		panic(origin)
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunnerPlaysEveryEvent(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, time.Millisecond, quiet())
	r.now = func() time.Time { return start }

	n, err := r.Start(context.Background(), "C", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.Eventually(t, func() bool { return rec.len() == 10 }, time.Second, time.Millisecond)
	r.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, start, rec.events[0].(telemetry.FluxSample).Point.Timestamp)
}

func TestRunnerStartReplacesRun(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, time.Hour, quiet())

	_, err := r.Start(context.Background(), "X", 60)
	require.NoError(t, err)
	// the first run emits its first sample then waits on the ticker
	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, time.Millisecond)

	_, err = r.Start(context.Background(), "G1", 60)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.len() == 3 }, time.Second, time.Millisecond)
	r.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	_, ok := rec.events[2].(telemetry.SpaceWeatherSample)
	assert.True(t, ok)
}

func TestPlayStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, time.Hour, quiet())
	events, err := Events("G2", 3, start)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Play(ctx, events) }()
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, rec.len())
}

// slowSink accepts every event after a short delay, whatever the context.
type slowSink struct {
	recorder
}

func (s *slowSink) Enqueue(ctx context.Context, ev telemetry.Event, origin string) error {
	time.Sleep(time.Millisecond)
	return s.recorder.Enqueue(ctx, ev, origin)
}

func TestRunnerNeverInterleavesRuns(t *testing.T) {
	sink := &slowSink{}
	r := NewRunner(sink, 0, quiet())

	_, err := r.Start(context.Background(), "X", 60)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sink.len() >= 1 }, time.Second, time.Millisecond)

	_, err = r.Start(context.Background(), "G1", 3)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		_, ok := sink.events[len(sink.events)-1].(telemetry.SpaceWeatherSample)
		return ok
	}, time.Second, time.Millisecond)
	r.Stop()
	stopped := sink.len()

	sink.mu.Lock()
	storm := false
	for _, ev := range sink.events {
		_, isStorm := ev.(telemetry.SpaceWeatherSample)
		if storm {
			assert.True(t, isStorm, "flare event %T after the storm run began", ev)
		}
		storm = storm || isStorm
	}
	sink.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, sink.len(), "events enqueued after Stop returned")
}
