package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Frame directions.
const (
	Inbound  = "in"
	Outbound = "out"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ibwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibwire",
			Subsystem: "wire",
			Name:      "frames_total",
			Help:      "Frames moved over the gateway socket.",
		},
		[]string{"direction"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibwire",
			Subsystem: "wire",
			Name:      "bytes_total",
			Help:      "Payload bytes moved over the gateway socket, prefixes included.",
		},
		[]string{"direction"},
	)
	pendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ibwire",
			Subsystem: "requests",
			Name:      "pending",
			Help:      "Requests awaiting a terminal reply.",
		},
	)
	requestOutcomes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ibwire",
			Subsystem: "requests",
			Name:      "duration_seconds",
			Help:      "Time from issue to resolution by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibwire",
			Subsystem: "connection",
			Name:      "transitions_total",
			Help:      "Connection state transitions.",
		},
		[]string{"from", "to"},
	)
	handshakes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ibwire",
			Subsystem: "connection",
			Name:      "handshake_duration_seconds",
			Help:      "Time from dial to ready or failure.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"success"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ibwire",
			Subsystem: "supervisor",
			Name:      "attempts_total",
			Help:      "Supervised connect attempts.",
		},
		[]string{"success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			frames, frameBytes,
			pendingRequests, requestOutcomes,
			stateTransitions, handshakes, reconnects,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFrame counts one frame of n bytes in direction.
func RecordFrame(direction string, n int) {
	RegisterMetrics()
	frames.WithLabelValues(direction).Inc()
	frameBytes.WithLabelValues(direction).Add(float64(n))
}

func AddPendingRequests(delta int) {
	RegisterMetrics()
	pendingRequests.Add(float64(delta))
}

func RecordRequest(outcome string, duration time.Duration) {
	RegisterMetrics()
	requestOutcomes.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordStateTransition(from, to string) {
	RegisterMetrics()
	stateTransitions.WithLabelValues(from, to).Inc()
}

func RecordHandshake(duration time.Duration, success bool) {
	RegisterMetrics()
	handshakes.WithLabelValues(strconv.FormatBool(success)).Observe(duration.Seconds())
}

func RecordConnectAttempt(success bool) {
	RegisterMetrics()
	reconnects.WithLabelValues(strconv.FormatBool(success)).Inc()
}
