// Package metrics holds the Prometheus collectors shared by the caches, the
// invalidation path and the request surfaces.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: cache (alias, beanprop, namespace, configreg), result (hit, miss)
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batislens",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	// Labels: cache, scope (entry, project, all)
	cacheClearsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batislens",
		Subsystem: "cache",
		Name:      "clears_total",
		Help:      "Cache invalidations by cache and scope",
	}, []string{"cache", "scope"})

	// Labels: trigger (clean_build, project_removed, source_changed, ...)
	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batislens",
		Subsystem: "invalidation",
		Name:      "events_total",
		Help:      "Change records applied by trigger",
	}, []string{"trigger"})

	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batislens",
		Subsystem: "validate",
		Name:      "diagnostics_total",
		Help:      "Diagnostics reported by problem kind",
	}, []string{"kind"})

	validationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "batislens",
		Subsystem: "validate",
		Name:      "file_seconds",
		Help:      "Time spent validating one file",
		Buckets:   prometheus.DefBuckets,
	})

	// Labels: kind (proposal kind, or none)
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batislens",
		Subsystem: "complete",
		Name:      "requests_total",
		Help:      "Completion requests by resolved proposal kind",
	}, []string{"kind"})
)

func CacheHit(cache string)  { cacheLookupsTotal.WithLabelValues(cache, "hit").Inc() }
func CacheMiss(cache string) { cacheLookupsTotal.WithLabelValues(cache, "miss").Inc() }

func CacheClear(cache, scope string) { cacheClearsTotal.WithLabelValues(cache, scope).Inc() }

func Invalidation(trigger string) { invalidationsTotal.WithLabelValues(trigger).Inc() }

func Diagnostic(kind string) { diagnosticsTotal.WithLabelValues(kind).Inc() }

// ValidationDuration records seconds spent validating one file.
func ValidationDuration(seconds float64) { validationSeconds.Observe(seconds) }

func Completion(kind string) { completionsTotal.WithLabelValues(kind).Inc() }
