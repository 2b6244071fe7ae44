package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geolynx/internal/cache"
)

var (
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geolynx_cache_hits_total",
		Help: "Total metadata cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geolynx_cache_misses_total",
		Help: "Total metadata cache misses, expired entries included",
	})
	CacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geolynx_cache_evictions_total",
		Help: "Total entries evicted to stay within capacity",
	})
	CacheExpirationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geolynx_cache_expirations_total",
		Help: "Total entries dropped after their ttl",
	})
	LookupAbsentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geolynx_lookup_absent_total",
		Help: "Total lookups that returned no record, by source",
	}, []string{"source"})
	ExtractionFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geolynx_extraction_failures_total",
		Help: "Total malformed fields skipped while assembling metadata",
	}, []string{"source", "field"})
	AssembleDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geolynx_assemble_duration_ms",
		Help:    "Metadata assembly duration in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 50},
	})
)

func init() {
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(CacheExpirationsTotal)
	prometheus.MustRegister(LookupAbsentTotal)
	prometheus.MustRegister(ExtractionFailuresTotal)
	prometheus.MustRegister(AssembleDurationMs)
}

// CacheObserver forwards cache traffic to the counters above.
type CacheObserver struct{}

func (CacheObserver) CacheHit()  { CacheHitsTotal.Inc() }
func (CacheObserver) CacheMiss() { CacheMissesTotal.Inc() }

func (CacheObserver) CacheEvicted(reason cache.EvictReason) {
	switch reason {
	case cache.ReasonCapacity:
		CacheEvictionsTotal.Inc()
	case cache.ReasonExpired:
		CacheExpirationsTotal.Inc()
	}
}

var entriesOnce sync.Once

// RegisterCacheEntries exposes the current cache size as geolynx_cache_entries.
// Only the first call registers.
func RegisterCacheEntries(size func() int) {
	entriesOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "geolynx_cache_entries",
			Help: "Entries currently held by the metadata cache",
		}, func() float64 { return float64(size()) }))
	})
}

// Handler serves the registered metrics for Prometheus to scrape.
func Handler() http.Handler { return promhttp.Handler() }
