package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

type Registry struct {
	reg *prometheus.Registry

	// Load
	LoadsTotal      prometheus.Counter
	LoadFailures    *prometheus.CounterVec
	LoadDurationSec prometheus.Histogram
	RecordsParsed   *prometheus.CounterVec
	DuplicateKeys   *prometheus.CounterVec
	IndexedASNs     prometheus.Gauge
	IndexedOrgs     prometheus.Gauge
	DanglingASNs    prometheus.Gauge
	SnapshotAgeSec  prometheus.Gauge

	// Queries
	Lookups *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	loads := prometheus.NewCounter(prometheus.CounterOpts{Name: "as2org_loads_total"})
	loadFailures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "as2org_load_failures_total"}, []string{"stage"})
	loadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "as2org_load_duration_seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	parsed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "as2org_records_parsed_total"}, []string{"kind"})
	dups := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "as2org_duplicate_keys_total"}, []string{"kind"})
	asns := prometheus.NewGauge(prometheus.GaugeOpts{Name: "as2org_indexed_asns"})
	orgs := prometheus.NewGauge(prometheus.GaugeOpts{Name: "as2org_indexed_orgs"})
	dangling := prometheus.NewGauge(prometheus.GaugeOpts{Name: "as2org_dangling_asns"})
	age := prometheus.NewGauge(prometheus.GaugeOpts{Name: "as2org_snapshot_age_seconds"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "as2org_lookups_total"}, []string{"op", "result"})

	r.MustRegister(loads, loadFailures, loadDuration, parsed, dups, asns, orgs, dangling, age, lookups)
	return &Registry{
		reg:             r,
		LoadsTotal:      loads,
		LoadFailures:    loadFailures,
		LoadDurationSec: loadDuration,
		RecordsParsed:   parsed,
		DuplicateKeys:   dups,
		IndexedASNs:     asns,
		IndexedOrgs:     orgs,
		DanglingASNs:    dangling,
		SnapshotAgeSec:  age,
		Lookups:         lookups,
	}
}

// ObserveLookup counts one query of op.
func (r *Registry) ObserveLookup(op string, hit bool) {
	if r == nil {
		return
	}
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	r.Lookups.WithLabelValues(op, result).Inc()
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
