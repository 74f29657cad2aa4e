// internal/api/view.go
package api

import (
	"time"

	"github.com/vedantsgith/Helios-Watch/internal/anomaly"
	"github.com/vedantsgith/Helios-Watch/internal/store"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

// StateView is the JSON read model sent to dashboards, both on /api/state
// and as the payload of "state" socket messages.
type StateView struct {
	Version   uint64                                  `json:"version"`
	UpdatedAt time.Time                               `json:"updated_at"`
	Status    telemetry.ConnectionStatus              `json:"status"`
	Current   telemetry.Readings                      `json:"current"`
	Tiers     []anomaly.Tier                          `json:"tiers"`
	Forecast  anomaly.Tier                            `json:"forecast"`
	Overlay   store.Overlay                           `json:"overlay"`
	Calculus  telemetry.CalculusResult                `json:"calculus"`
	Regions   []telemetry.ActiveRegion                `json:"regions"`
	Series    map[telemetry.Metric][]telemetry.Sample `json:"series"`
	User      *telemetry.User                         `json:"user"`
}

// NewStateView renders snap. Series carry the last limit display samples
// of each metric; limit <= 0 means all of them.
func NewStateView(snap store.Snapshot, limit int) StateView {
	v := StateView{
		Version:   snap.Version,
		UpdatedAt: snap.UpdatedAt,
		Status:    snap.Status,
		Current:   snap.Current,
		Tiers:     anomaly.ClassifyAll(snap.Current),
		Forecast:  anomaly.Forecast(snap.Current),
		Overlay:   snap.Overlay,
		Calculus:  snap.Calculus,
		Regions:   snap.Regions,
		Series:    make(map[telemetry.Metric][]telemetry.Sample, len(telemetry.Metrics)),
		User:      snap.Session,
	}
	if v.Regions == nil {
		v.Regions = []telemetry.ActiveRegion{}
	}
	for _, m := range telemetry.Metrics {
		v.Series[m] = snap.Series(m, true).Recent(limit)
	}
	return v
}
