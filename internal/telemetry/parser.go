// internal/telemetry/parser.go
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformed marks a payload that is missing a required field or
	// carries a value of the wrong shape.
	ErrMalformed = errors.New("malformed payload")
	// ErrUnknownType marks an envelope whose type is not handled.
	ErrUnknownType = errors.New("unknown message type")
)

// Message types used by the backend feed.
const (
	TypeHistoryUpdate       = "history_update"
	TypeDataUpdate          = "data_update"
	TypeTelemetryUpdate     = "telemetry_update"
	TypeTelemetrySimulation = "telemetry_simulation"
	TypeTelemetryHistory    = "telemetry_history"
	TypeCalculusUpdate      = "calculus_update"
	TypeRegionsUpdate       = "regions_update"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode turns one feed frame into a typed Event. Nothing is partially
// decoded: any malformed element rejects the whole frame.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, fmt.Errorf("%w: %s has no payload", ErrMalformed, env.Type)
	}

	switch env.Type {
	case TypeHistoryUpdate:
		return decodeFluxHistory(env.Payload)
	case TypeDataUpdate:
		obj, err := object(env.Payload)
		if err != nil {
			return nil, err
		}
		p, err := fluxPoint(obj)
		if err != nil {
			return nil, err
		}
		return FluxSample{Point: p}, nil
	case TypeTelemetryUpdate, TypeTelemetrySimulation:
		obj, err := object(env.Payload)
		if err != nil {
			return nil, err
		}
		return spaceWeather(obj, env.Type == TypeTelemetrySimulation)
	case TypeTelemetryHistory:
		return decodeSpaceWeatherHistory(env.Payload)
	case TypeCalculusUpdate:
		obj, err := object(env.Payload)
		if err != nil {
			return nil, err
		}
		return calculus(obj)
	case TypeRegionsUpdate:
		return decodeRegions(env.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func object(raw json.RawMessage) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformed)
	}
	return obj, nil
}

func list(raw json.RawMessage) ([]interface{}, error) {
	var arr []interface{}
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("%w: expected an array", ErrMalformed)
	}
	return arr, nil
}

func decodeFluxHistory(raw json.RawMessage) (Event, error) {
	var items []interface{}
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		arr, err := list(raw)
		if err != nil {
			return nil, err
		}
		items = arr
	} else {
		obj, err := object(raw)
		if err != nil {
			return nil, err
		}
		arr, ok := obj["history"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: history is not an array", ErrMalformed)
		}
		items = arr
	}

	points := make([]Sample, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: history[%d] is not an object", ErrMalformed, i)
		}
		p, err := fluxPoint(obj)
		if err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		points = append(points, p)
	}
	return FluxHistory{Points: points}, nil
}

func fluxPoint(obj map[string]interface{}) (Sample, error) {
	ts, err := timestamp(obj, true)
	if err != nil {
		return Sample{}, err
	}
	v, ok, err := number(obj, "flux", "value")
	if err != nil {
		return Sample{}, err
	}
	if !ok {
		return Sample{}, fmt.Errorf("%w: flux missing", ErrMalformed)
	}
	p := Sample{
		Timestamp: ts,
		Value:     v,
		Source:    ParseSource(str(obj, "source")),
		ClassType: str(obj, "class_type", "classType"),
	}
	if !p.Valid() {
		return Sample{}, fmt.Errorf("%w: flux is not finite", ErrMalformed)
	}
	return p, nil
}

func spaceWeather(obj map[string]interface{}, simulated bool) (Event, error) {
	var f SpaceWeatherFields
	fields := []struct {
		dst  **float64
		keys []string
	}{
		{&f.WindSpeed, []string{"wind_speed", "windSpeed"}},
		{&f.Temp, []string{"temp", "temperature"}},
		{&f.Density, []string{"density"}},
		{&f.KpIndex, []string{"kp_index", "kpIndex"}},
		{&f.ProtonFlux, []string{"proton_flux", "protonFlux"}},
	}
	for _, fd := range fields {
		v, ok, err := number(obj, fd.keys...)
		if err != nil {
			return nil, err
		}
		if ok {
			val := v
			*fd.dst = &val
		}
	}
	if f.Empty() {
		return nil, fmt.Errorf("%w: no space weather fields", ErrMalformed)
	}
	if !f.Valid() {
		return nil, fmt.Errorf("%w: non-finite space weather field", ErrMalformed)
	}

	ts, err := timestamp(obj, false)
	if err != nil {
		return nil, err
	}
	src := ParseSource(str(obj, "source"))
	if simulated {
		src = SourceSimulation
	}
	return SpaceWeatherSample{Timestamp: ts, Fields: f, Source: src}, nil
}

func decodeSpaceWeatherHistory(raw json.RawMessage) (Event, error) {
	obj, err := object(raw)
	if err != nil {
		return nil, err
	}
	var h SpaceWeatherHistory
	dst := map[string]*[]Sample{"wind": &h.Wind, "kp": &h.Kp, "proton": &h.Proton}
	for key, out := range dst {
		v, present := obj[key]
		if !present || v == nil {
			continue
		}
		arr, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an array", ErrMalformed, key)
		}
		samples := make([]Sample, 0, len(arr))
		for i, it := range arr {
			entry, ok := it.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] is not an object", ErrMalformed, key, i)
			}
			ts, err := timestamp(entry, true)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			val, ok, err := number(entry, "value")
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] value missing", ErrMalformed, key, i)
			}
			s := Sample{Timestamp: ts, Value: val, Source: ParseSource(str(entry, "source"))}
			if !s.Valid() {
				return nil, fmt.Errorf("%w: %s[%d] value is not finite", ErrMalformed, key, i)
			}
			samples = append(samples, s)
		}
		*out = samples
	}
	return h, nil
}

func calculus(obj map[string]interface{}) (Event, error) {
	slope, ok, err := number(obj, "slope")
	if err != nil {
		return nil, err
	}
	if !ok || !finite(slope) {
		return nil, fmt.Errorf("%w: slope missing", ErrMalformed)
	}
	threshold, _, err := number(obj, "threshold")
	if err != nil {
		return nil, err
	}
	res := CalculusResult{
		Slope:      slope,
		Threshold:  threshold,
		Status:     str(obj, "status"),
		Details:    str(obj, "details"),
		EngineType: str(obj, "engine_type", "engineType"),
	}
	if v, present := obj["is_warning"]; present && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: is_warning is not a boolean", ErrMalformed)
		}
		res.IsWarning = b
	}
	return CalculusUpdate{Result: res}, nil
}

func decodeRegions(raw json.RawMessage) (Event, error) {
	obj, err := object(raw)
	if err != nil {
		return nil, err
	}
	arr, ok := obj["regions"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: regions is not an array", ErrMalformed)
	}
	regions := make([]ActiveRegion, 0, len(arr))
	for i, it := range arr {
		entry, ok := it.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: regions[%d] is not an object", ErrMalformed, i)
		}
		lat, okLat, err := number(entry, "latitude")
		if err != nil {
			return nil, err
		}
		lon, okLon, err := number(entry, "longitude")
		if err != nil {
			return nil, err
		}
		if !okLat || !okLon {
			return nil, fmt.Errorf("%w: regions[%d] has no position", ErrMalformed, i)
		}
		num, _, err := number(entry, "region_number", "regionNumber")
		if err != nil {
			return nil, err
		}
		regions = append(regions, ActiveRegion{
			RegionNumber: int(num),
			Latitude:     lat,
			Longitude:    lon,
			ClassType:    str(entry, "class_type", "classType"),
		})
	}
	return RegionsUpdate{Regions: regions}, nil
}

// number returns the first present key's value. A present key holding
// something other than a number is an error; null counts as absent.
func number(obj map[string]interface{}, keys ...string) (float64, bool, error) {
	for _, k := range keys {
		v, present := obj[k]
		if !present || v == nil {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			return 0, false, fmt.Errorf("%w: %s is not a number", ErrMalformed, k)
		}
		return f, true, nil
	}
	return 0, false, nil
}

func str(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			return s
		}
	}
	return ""
}

func timestamp(obj map[string]interface{}, required bool) (time.Time, error) {
	raw := str(obj, "timestamp", "time_tag")
	if raw == "" {
		if required {
			return time.Time{}, fmt.Errorf("%w: timestamp missing", ErrMalformed)
		}
		return time.Time{}, nil
	}
	t, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ParseTimestamp accepts the RFC 3339 and NOAA timestamp forms seen on the
// feed. Zone-less forms are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, s)
}
