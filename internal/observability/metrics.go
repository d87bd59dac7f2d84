package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ookd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ookd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	txTransmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ookd",
			Subsystem: "tx",
			Name:      "transmissions_total",
			Help:      "Transmissions by driver, mode and outcome.",
		},
		[]string{"driver", "mode", "outcome"},
	)
	txTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ookd",
			Subsystem: "tx",
			Name:      "time_milliseconds",
			Help:      "Measured TX time in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000},
		},
		[]string{"driver"},
	)
	rxCandidates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ookd",
			Subsystem: "rx",
			Name:      "candidates_total",
			Help:      "Picode candidates heard by the receiver.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, txTransmissions, txTime, rxCandidates)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordTX(driver, mode, outcome string, millis int) {
	RegisterMetrics()
	txTransmissions.WithLabelValues(driver, mode, outcome).Inc()
	if millis > 0 {
		txTime.WithLabelValues(driver).Observe(float64(millis))
	}
}

func RecordRX() {
	RegisterMetrics()
	rxCandidates.Inc()
}
