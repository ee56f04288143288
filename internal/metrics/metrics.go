// Registers:
//
//	#hedgeflow_hedges_executed_total
//	#hedgeflow_hedge_failures_total
//	#hedgeflow_stage_duration_seconds
//	#go_* and process_* system metrics
//
// Exposed through Handler, mounted on /metrics by the server.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once           sync.Once
	registry       *prometheus.Registry
	hedgesExecuted *prometheus.CounterVec
	hedgeFailures  *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
)

func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		hedgesExecuted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedgeflow_hedges_executed_total",
				Help: "Number of put purchases completed",
			},
			[]string{"asset"},
		)

		hedgeFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hedgeflow_hedge_failures_total",
				Help: "Number of hedge runs aborted, by failing stage",
			},
			[]string{"stage"},
		)

		stageDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hedgeflow_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		)

		registry.MustRegister(hedgesExecuted, hedgeFailures, stageDuration)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the registered metrics. Init is called if needed.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncrementExecuted increases the executed hedge counter for an asset.
func IncrementExecuted(asset string) {
	if hedgesExecuted != nil {
		hedgesExecuted.WithLabelValues(asset).Inc()
	}
}

// IncrementFailure increases the failure counter for the stage that aborted.
func IncrementFailure(stage string) {
	if hedgeFailures != nil {
		hedgeFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	if stageDuration != nil {
		stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}
