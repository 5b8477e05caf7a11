package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	packagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tensorwire",
			Subsystem: "transfer",
			Name:      "packages_sent_total",
			Help:      "Packages sent, by message code.",
		},
		[]string{"node", "code", "dst"},
	)
	packagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tensorwire",
			Subsystem: "transfer",
			Name:      "packages_received_total",
			Help:      "Packages received, by message code.",
		},
		[]string{"node", "code", "src"},
	)
	elementsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tensorwire",
			Subsystem: "transfer",
			Name:      "payload_elements_sent_total",
			Help:      "Payload elements sent, by message code.",
		},
		[]string{"node", "code", "dst"},
	)
	elementsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tensorwire",
			Subsystem: "transfer",
			Name:      "payload_elements_received_total",
			Help:      "Payload elements received, by message code.",
		},
		[]string{"node", "code", "src"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tensorwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tensorwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			packagesSent, packagesReceived,
			elementsSent, elementsReceived,
			httpRequests, httpDuration,
		)
	})
}

func RecordPackageSent(node, code string, dst int32, elements int) {
	RegisterMetrics()
	dstLabel := strconv.Itoa(int(dst))
	packagesSent.WithLabelValues(node, code, dstLabel).Inc()
	elementsSent.WithLabelValues(node, code, dstLabel).Add(float64(elements))
}

func RecordPackageReceived(node, code string, src int32, elements int) {
	RegisterMetrics()
	srcLabel := strconv.Itoa(int(src))
	packagesReceived.WithLabelValues(node, code, srcLabel).Inc()
	elementsReceived.WithLabelValues(node, code, srcLabel).Add(float64(elements))
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
