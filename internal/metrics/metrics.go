package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	cronRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coprox_cron_runs_total",
			Help: "Cron config runs by outcome",
		},
		[]string{"config", "outcome"},
	)

	cronRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coprox_cron_run_duration_seconds",
			Help:    "Wall time of a cron config run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"config"},
	)

	scriptRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coprox_script_runs_total",
			Help: "Script attempts by outcome",
		},
		[]string{"config", "script", "outcome"},
	)

	scheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coprox_scheduled_jobs",
		Help: "Cron configs currently registered with the scheduler",
	})
)

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func ObserveHTTP(method, path string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func ObserveRun(config string, success bool, d time.Duration) {
	cronRunsTotal.WithLabelValues(config, outcome(success)).Inc()
	cronRunDuration.WithLabelValues(config).Observe(d.Seconds())
}

func ObserveScript(config, script string, success bool) {
	scriptRunsTotal.WithLabelValues(config, script, outcome(success)).Inc()
}

func SetScheduledJobs(n int) {
	scheduledJobs.Set(float64(n))
}
