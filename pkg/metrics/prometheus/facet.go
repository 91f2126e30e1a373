// Package prometheus provides the Prometheus-backed implementation of the
// facets engine metric interface.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/facetfs/pkg/facet"
	"github.com/marmos91/facetfs/pkg/metrics"
)

// facetMetrics is the Prometheus implementation of facet.Metrics.
type facetMetrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	nodesCreated   prometheus.Counter
	analyzeBatches *prometheus.CounterVec
	analyzedPaths  *prometheus.CounterVec
	getMisses      prometheus.Counter
	searches       prometheus.Counter
}

// NewFacetMetrics creates a Prometheus-backed facet.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); a nil
// Metrics makes the engine install its no-op implementation.
func NewFacetMetrics() facet.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &facetMetrics{
		cacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "facetfs_node_cache_hits_total",
			Help: "Total node resolutions served from the cache",
		}),
		cacheMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "facetfs_node_cache_misses_total",
			Help: "Total node resolutions that fell back to the store",
		}),
		nodesCreated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "facetfs_nodes_created_total",
			Help: "Total fs nodes materialized in the store",
		}),
		analyzeBatches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "facetfs_analyze_batches_total",
				Help: "Total analysis batches by extraction mode",
			},
			[]string{"mode"}, // "full", "partial"
		),
		analyzedPaths: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "facetfs_analyzed_paths_total",
				Help: "Total paths analyzed by extraction mode",
			},
			[]string{"mode"},
		),
		getMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "facetfs_get_misses_total",
			Help: "Total requested paths a read found no stored record for",
		}),
		searches: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "facetfs_search_queries_total",
			Help: "Total metadata search queries",
		}),
	}
}

func mode(partial bool) string {
	if partial {
		return "partial"
	}
	return "full"
}

func (m *facetMetrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *facetMetrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *facetMetrics) NodeCreated() {
	if m == nil {
		return
	}
	m.nodesCreated.Inc()
}

func (m *facetMetrics) AnalyzeBatch(partial bool, size int) {
	if m == nil {
		return
	}
	m.analyzeBatches.WithLabelValues(mode(partial)).Inc()
	m.analyzedPaths.WithLabelValues(mode(partial)).Add(float64(size))
}

func (m *facetMetrics) GetMiss(count int) {
	if m == nil {
		return
	}
	m.getMisses.Add(float64(count))
}

func (m *facetMetrics) SearchQuery() {
	if m == nil {
		return
	}
	m.searches.Inc()
}
