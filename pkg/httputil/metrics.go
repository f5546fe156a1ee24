package httputil

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per endpoint request counters and latencies.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg, if not nil.
// Collectors already registered with reg are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptoless",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of API requests by endpoint and status code.",
	}, []string{"endpoint", "method", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cryptoless",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of API requests by endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method"})

	if reg != nil {
		requests = register(reg, requests).(*prometheus.CounterVec)
		duration = register(reg, duration).(*prometheus.HistogramVec)
	}
	return &Metrics{requests, duration}
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
	}
	return c
}

func (m *Metrics) observe(req Request, status int, elapsed time.Duration) {
	name := req.Name
	if len(name) <= 0 {
		name = req.Path
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(name, req.Method, code).Inc()
	m.duration.WithLabelValues(name, req.Method).Observe(elapsed.Seconds())
}
