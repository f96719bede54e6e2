package ogm

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// statementsTotal counts executed statements by shape and outcome
	statementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ogm",
		Name:      "statements_total",
		Help:      "Total statements sent to the executor by shape and result",
	}, []string{"shape", "result"})

	// statementDuration tracks executor latency
	statementDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ogm",
		Name:      "statement_duration_seconds",
		Help:      "Statement execution duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ogm",
		Name:      "cache_hits_total",
		Help:      "Association cache hits",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ogm",
		Name:      "cache_misses_total",
		Help:      "Association cache misses",
	})

	// cascadeVisits counts records entered by dependent deletion
	cascadeVisits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ogm",
		Name:      "cascade_visits_total",
		Help:      "Records visited while destroying dependents",
	})
)

// RegisterMetrics registers the package collectors with reg. Collectors
// count whether or not they are registered. Registering twice is not an
// error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{statementsTotal, statementDuration, cacheHits, cacheMisses, cascadeVisits} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
