package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.ObserveLookup("as_info", true)
	r.ObserveLookup("as_info", true)
	r.ObserveLookup("as_info", false)

	require.Equal(t, 2.0, testutil.ToFloat64(r.Lookups.WithLabelValues("as_info", ResultHit)))
	require.Equal(t, 1.0, testutil.ToFloat64(r.Lookups.WithLabelValues("as_info", ResultMiss)))

	var nilReg *Registry
	require.NotPanics(t, func() { nilReg.ObserveLookup("as_info", true) })
}

func TestHandler_ExposesMetrics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.LoadsTotal.Inc()
	r.IndexedASNs.Set(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "as2org_loads_total 1")
	require.Contains(t, string(body), "as2org_indexed_asns 3")
}
