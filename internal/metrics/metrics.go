// Package metrics exposes Prometheus instrumentation for the patch
// extraction pipeline. Counters cover granule I/O and patch extraction;
// an optional HTTP listener serves them during long batch runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	granulesOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goespatch_granules_opened_total",
			Help: "Total number of ABI granule files opened.",
		},
	)

	granuleSearchMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goespatch_granule_search_misses_total",
			Help: "Granule lookups that found no file within tolerance.",
		},
	)

	openGranules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "goespatch_open_granules",
			Help: "Currently open granule file handles.",
		},
	)

	patchesExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "goespatch_patches_extracted_total",
			Help: "Total number of image patches extracted.",
		},
	)

	timestepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "goespatch_timestep_duration_seconds",
			Help:    "Wall time to sample one lightning-grid time step.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(granulesOpened)
	prometheus.MustRegister(granuleSearchMisses)
	prometheus.MustRegister(openGranules)
	prometheus.MustRegister(patchesExtracted)
	prometheus.MustRegister(timestepDuration)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncGranulesOpened records a granule open and bumps the open-handle gauge.
func IncGranulesOpened() {
	granulesOpened.Inc()
	openGranules.Inc()
}

// DecOpenGranules records a granule close.
func DecOpenGranules() {
	openGranules.Dec()
}

// IncGranuleSearchMisses records a lookup that missed the tolerance window.
func IncGranuleSearchMisses() {
	granuleSearchMisses.Inc()
}

// AddPatchesExtracted records extracted patches.
func AddPatchesExtracted(n int) {
	patchesExtracted.Add(float64(n))
}

// ObserveTimestepDuration records the wall time of one time step.
func ObserveTimestepDuration(seconds float64) {
	timestepDuration.Observe(seconds)
}
