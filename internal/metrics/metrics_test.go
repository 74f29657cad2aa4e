package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.SampleIngested("flux", "real")
	m.SampleIngested("flux", "real")
	m.FrameRejected("feed", "malformed")
	m.AlertPublished("kafka", nil)
	m.AlertPublished("kafka", errors.New("broker down"))
	m.StoreCommitted(12, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.samplesIngested.WithLabelValues("flux", "real")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesRejected.WithLabelValues("feed", "malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsPublished.WithLabelValues("kafka", "error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.storeVersion))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overlayActive))

	m.StoreCommitted(13, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.overlayActive))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ClientConnected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "helios_ws_clients 1")
}
