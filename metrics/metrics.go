package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "goe_report_"

	resultSuccess  = "success"
	resultError    = "error"
	resultCanceled = "canceled"
)

var (
	registerOnce sync.Once

	reportTotal   *prometheus.CounterVec
	reportLatency *prometheus.HistogramVec

	retrievalErrors   *prometheus.CounterVec
	retrievalFailover prometheus.Counter
	pollAttempts      prometheus.Histogram

	reportDays prometheus.Gauge
)

// Init registers the collectors with the default registry. Safe to call more
// than once; recorders call it themselves so tests need no setup.
func Init() {
	registerOnce.Do(func() {
		reportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reports_total",
				Help: "Total report runs by result and failed stage",
			},
			[]string{"result", "stage"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_duration_seconds",
				Help:    "Report run duration in seconds",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"result"},
		)
		retrievalErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "retrieval_errors_total",
				Help: "Retrieval failures by protocol stage and error kind",
			},
			[]string{"stage", "kind"},
		)
		retrievalFailover = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "retrieval_failover_total",
				Help: "Local API failures retried against the cloud API",
			},
		)
		pollAttempts = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_attempts",
				Help:    "Status requests needed per export",
				Buckets: prometheus.LinearBuckets(1, 3, 10),
			},
		)
		reportDays = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_report_days",
				Help: "Number of days with charging in the last generated report",
			},
		)

		prometheus.MustRegister(
			reportTotal,
			reportLatency,
			retrievalErrors,
			retrievalFailover,
			pollAttempts,
			reportDays,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func ObserveReport(stage string, err error, duration time.Duration, days int) {
	Init()
	result := resultLabel(err)
	if err == nil {
		stage = ""
		reportDays.Set(float64(days))
	}
	reportTotal.WithLabelValues(result, stage).Inc()
	reportLatency.WithLabelValues(result).Observe(duration.Seconds())
}

func RecordRetrievalError(stage, kind string) {
	Init()
	retrievalErrors.WithLabelValues(stage, kind).Inc()
}

func RecordFailover() {
	Init()
	retrievalFailover.Inc()
}

func ObservePollAttempts(n int) {
	if n <= 0 {
		return
	}
	Init()
	pollAttempts.Observe(float64(n))
}

// resultLabel keeps runs abandoned by the caller apart from vendor failures.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, context.Canceled):
		return resultCanceled
	default:
		return resultError
	}
}
