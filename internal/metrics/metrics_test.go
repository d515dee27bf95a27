package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordProviderCall("perception", nil, 20*time.Millisecond)
	m.RecordProviderCall("perception", errors.New("timeout"), time.Second)
	m.RecordTransition("perception", "validation")
	m.RecordCandidate("accepted")
	m.RecordCandidate("rejected")
	m.RecordCandidate("rejected")
	m.RecordValidation(false)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.RecordBookingConflict()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("perception", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("perception", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("perception", "validation")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Candidates.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationRuns.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingConflicts))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordProviderCall("generation", nil, time.Second)
		m.RecordTransition("a", "b")
		m.RecordCandidate("accepted")
		m.RecordValidation(true)
		m.RecordDispatch("kafka", nil)
		m.SetCircuitBreakerState("perception", 2)
		m.SessionOpened()
		m.SessionClosed()
		m.RecordBookingConflict()
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordDispatch("file", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `gmpsched_dispatch_published_total{exporter="file",status="success"} 1`), body)
}
