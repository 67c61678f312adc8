package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector(3)
	c.Requests.Inc()
	c.Failures.WithLabelValues("invalid_path").Inc()
	c.Failures.WithLabelValues("invalid_path").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Requests))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Failures.WithLabelValues("invalid_path")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Workers))
}

func TestHandlerExposesSeries(t *testing.T) {
	c := NewCollector(1)
	c.Scored.Inc()
	c.TemporalProb.Observe(0.97)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "scorer_scored_total 1"))
	assert.True(t, strings.Contains(body, "scorer_temporal_probability_count 1"))
}
