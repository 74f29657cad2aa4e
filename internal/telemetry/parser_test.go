package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataUpdate(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"data_update","payload":{"timestamp":"2026-03-01T12:00:00Z","flux":2e-4,"class_type":"X","source":"noaa"}}`))
	require.NoError(t, err)

	fs, ok := ev.(FluxSample)
	require.True(t, ok)
	assert.Equal(t, 2e-4, fs.Point.Value)
	assert.Equal(t, SourceReal, fs.Point.Source)
	assert.Equal(t, "X", fs.Point.ClassType)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), fs.Point.Timestamp)
}

func TestDecodeSimulatedDataUpdate(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"data_update","payload":{"timestamp":"2026-03-01T12:00:00.250","flux":1e-4,"class_type":"X","source":"simulation"}}`))
	require.NoError(t, err)
	fs := ev.(FluxSample)
	assert.True(t, fs.Point.Simulated())
	assert.Equal(t, 250*time.Millisecond, time.Duration(fs.Point.Timestamp.Nanosecond()))
}

func TestDecodeHistoryUpdate(t *testing.T) {
	for name, raw := range map[string]string{
		"wrapped": `{"type":"history_update","payload":{"history":[{"timestamp":"2026-03-01 12:00:00.000","flux":1e-7,"class_type":"Quiet","source":"noaa"},{"timestamp":"2026-03-01T12:01:00Z","flux":3e-6,"class_type":"C","source":"noaa"}]}}`,
		"bare":    `{"type":"history_update","payload":[{"timestamp":"2026-03-01 12:00:00.000","flux":1e-7},{"timestamp":"2026-03-01T12:01:00Z","flux":3e-6}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(raw))
			require.NoError(t, err)
			h := ev.(FluxHistory)
			require.Len(t, h.Points, 2)
			assert.Equal(t, 3e-6, h.Points[1].Value)
			assert.Equal(t, time.Minute, h.Points[1].Timestamp.Sub(h.Points[0].Timestamp))
		})
	}
}

func TestDecodeTelemetryAliases(t *testing.T) {
	snake, err := Decode([]byte(`{"type":"telemetry_update","payload":{"wind_speed":600,"temp":100000,"density":5,"kp_index":5,"proton_flux":12}}`))
	require.NoError(t, err)
	camel, err := Decode([]byte(`{"type":"telemetry_update","payload":{"windSpeed":600,"temp":100000,"density":5,"kpIndex":5,"protonFlux":12}}`))
	require.NoError(t, err)

	assert.Equal(t, snake, camel)
	sw := snake.(SpaceWeatherSample)
	assert.Equal(t, SourceReal, sw.Source)
	assert.True(t, sw.Timestamp.IsZero())
	require.NotNil(t, sw.Fields.WindSpeed)
	assert.Equal(t, 600.0, *sw.Fields.WindSpeed)
}

func TestDecodeTelemetrySimulation(t *testing.T) {
	for _, raw := range []string{
		`{"type":"telemetry_simulation","payload":{"wind_speed":950}}`,
		`{"type":"telemetry_update","payload":{"wind_speed":950,"source":"simulation"}}`,
	} {
		ev, err := Decode([]byte(raw))
		require.NoError(t, err)
		sw := ev.(SpaceWeatherSample)
		assert.Equal(t, SourceSimulation, sw.Source)
		assert.Nil(t, sw.Fields.KpIndex)
	}
}

func TestDecodeTelemetryHistory(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"telemetry_history","payload":{
		"wind":[{"timestamp":"2026-03-01 12:00:00.000","value":420.5}],
		"kp":[{"timestamp":"2026-03-01 12:00:00.000","value":3.33},{"timestamp":"2026-03-01 15:00:00.000","value":4}],
		"proton":[]}}`))
	require.NoError(t, err)
	h := ev.(SpaceWeatherHistory)
	assert.Len(t, h.Wind, 1)
	assert.Len(t, h.Kp, 2)
	assert.NotNil(t, h.Proton)
	assert.Empty(t, h.Proton)
}

func TestDecodeCalculusAndRegions(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"calculus_update","payload":{"slope":2.5e-7,"is_warning":true,"threshold":1e-7,"status":"RAPID_INTENSIFICATION","details":"Early Warning: Flux Rising Fast","engine_type":"HYBRID (Calculus + Threshold)"}}`))
	require.NoError(t, err)
	c := ev.(CalculusUpdate).Result
	assert.True(t, c.IsWarning)
	assert.Equal(t, "RAPID_INTENSIFICATION", c.Status)
	assert.Equal(t, 1e-7, c.Threshold)

	ev, err = Decode([]byte(`{"type":"regions_update","payload":{"regions":[{"region_number":3514,"latitude":-12,"longitude":40,"class_type":"Beta-Gamma"},{"region_number":null,"latitude":5,"longitude":-60}]}}`))
	require.NoError(t, err)
	r := ev.(RegionsUpdate).Regions
	require.Len(t, r, 2)
	assert.Equal(t, 3514, r[0].RegionNumber)
	assert.Equal(t, 0, r[1].RegionNumber)
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]struct {
		raw  string
		want error
	}{
		"not json":            {`{`, ErrMalformed},
		"no payload":          {`{"type":"data_update"}`, ErrMalformed},
		"unknown type":        {`{"type":"heartbeat","payload":{}}`, ErrUnknownType},
		"flux missing":        {`{"type":"data_update","payload":{"timestamp":"2026-03-01T12:00:00Z"}}`, ErrMalformed},
		"flux is string":      {`{"type":"data_update","payload":{"timestamp":"2026-03-01T12:00:00Z","flux":"high"}}`, ErrMalformed},
		"timestamp missing":   {`{"type":"data_update","payload":{"flux":1e-6}}`, ErrMalformed},
		"bad timestamp":       {`{"type":"data_update","payload":{"timestamp":"yesterday","flux":1e-6}}`, ErrMalformed},
		"one bad history row": {`{"type":"history_update","payload":{"history":[{"timestamp":"2026-03-01T12:00:00Z","flux":1e-6},{"timestamp":"2026-03-01T12:01:00Z"}]}}`, ErrMalformed},
		"empty telemetry":     {`{"type":"telemetry_update","payload":{"engine":"x"}}`, ErrMalformed},
		"kp not a number":     {`{"type":"telemetry_update","payload":{"wind_speed":500,"kp_index":"5"}}`, ErrMalformed},
		"calculus no slope":   {`{"type":"calculus_update","payload":{"status":"STABLE"}}`, ErrMalformed},
		"warning not bool":    {`{"type":"calculus_update","payload":{"slope":0,"is_warning":"yes"}}`, ErrMalformed},
		"region no position":  {`{"type":"regions_update","payload":{"regions":[{"region_number":1}]}}`, ErrMalformed},
		"wind history scalar": {`{"type":"telemetry_history","payload":{"wind":5}}`, ErrMalformed},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.raw))
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseSource(t *testing.T) {
	assert.Equal(t, SourceSimulation, ParseSource("simulation"))
	assert.Equal(t, SourceReal, ParseSource("noaa"))
	assert.Equal(t, SourceReal, ParseSource(""))
}
