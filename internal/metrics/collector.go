package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// Collector records transfer protocol and HTTP metrics.
type Collector struct {
	// transfer metrics
	transfersStarted  prometheus.Counter
	transfersActive   prometheus.Gauge
	transfersFinished *prometheus.CounterVec
	transferDuration  *prometheus.HistogramVec
	relocationErrors  *prometheus.CounterVec
	speechDegraded    prometheus.Counter

	// credential metrics
	credentialsIssued *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer, namespace, logger)
}

// NewCollectorWith creates a collector on an explicit registerer.
func NewCollectorWith(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.transfersStarted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_started_total",
		Help:      "Total number of transfers started",
	})

	c.transfersActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "transfers_active",
		Help:      "Number of transfers currently in flight",
	})

	c.transfersFinished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_finished_total",
			Help:      "Total number of transfers reaching a terminal state",
		},
		[]string{"final_state"},
	)

	c.transferDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Wall time from start to terminal state",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"final_state"},
	)

	c.relocationErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relocation_failures_total",
			Help:      "Total number of failed caller relocation attempts",
		},
		[]string{"code"},
	)

	c.speechDegraded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "speech_degraded_total",
		Help:      "Total number of transfers whose summary was not spoken",
	})

	c.credentialsIssued = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_issued_total",
			Help:      "Total number of room credentials minted",
		},
		[]string{"role"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// TransferStarted records a new transfer.
func (c *Collector) TransferStarted() {
	c.transfersStarted.Inc()
	c.transfersActive.Inc()
}

// TransferFinished records a transfer reaching a terminal state.
func (c *Collector) TransferFinished(state types.TransferState, elapsed time.Duration) {
	c.transfersActive.Dec()
	c.transfersFinished.WithLabelValues(string(state)).Inc()
	c.transferDuration.WithLabelValues(string(state)).Observe(elapsed.Seconds())
}

// RelocationFailed records one failed caller relocation attempt.
func (c *Collector) RelocationFailed(code types.ErrorCode) {
	c.relocationErrors.WithLabelValues(string(code)).Inc()
}

// SpeechDegraded records a transfer that fell back to manual summary delivery.
func (c *Collector) SpeechDegraded() {
	c.speechDegraded.Inc()
}

// RecordCredentialIssued records a minted credential by role (agent, caller).
func (c *Collector) RecordCredentialIssued(role string) {
	c.credentialsIssued.WithLabelValues(role).Inc()
}

// RecordHTTPRequest records one handled HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// statusCode buckets an HTTP status code into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
