package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/pkg/cache"
)

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordCacheLookup("hit")
	c.RecordCacheLookup("hit")
	c.RecordCacheLookup("stale")
	c.RecordUpstreamCall("success", 120*time.Millisecond)
	c.RecordTransition(domain.StatusOpen, domain.StatusSettingUp)
	c.RecordSweep(time.Second, ports.SweepResult{Scanned: 4, Refreshed: 2, Skipped: 1, Failed: 1})
	c.RecordHTTPRequest("POST", "/api/v1/sessions", 201, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamCalls.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("open", "setting_up")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sweepSessions.WithLabelValues("refreshed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sweepSessions.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("POST", "/api/v1/sessions", "201")))
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}

func TestPrometheusCollector_ObserveResolverCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)
	collector.ObserveResolverCache(func() cache.Stats {
		return cache.Stats{TotalKeys: 7, Expired: 2}
	})

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		if len(mf.GetMetric()) == 1 && mf.GetMetric()[0].GetGauge() != nil {
			values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 7.0, values["collabstream_resolver_cache_entries"])
	assert.Equal(t, 2.0, values["collabstream_resolver_cache_stale_entries"])
}
