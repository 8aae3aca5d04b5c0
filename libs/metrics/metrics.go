package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics covers calls to the remote API and the optimistic mutations
// layered on top of them.
type ClientMetrics struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	retriesTotal   *prometheus.CounterVec
	mutationsTotal *prometheus.CounterVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptremind",
			Subsystem: "calendar_api",
			Name:      "requests_total",
			Help:      "Calls to the remote API by endpoint and status code",
		}, []string{"endpoint", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apptremind",
			Subsystem: "calendar_api",
			Name:      "request_seconds",
			Help:      "Latency of remote API calls including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptremind",
			Subsystem: "calendar_api",
			Name:      "retries_total",
			Help:      "Automatic retries by reason (rate_limit, auth_refresh)",
		}, []string{"reason"}),
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptremind",
			Subsystem: "calendar",
			Name:      "optimistic_mutations_total",
			Help:      "Optimistic cache mutations by kind and outcome (committed, rolled_back)",
		}, []string{"kind", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency, m.retriesTotal, m.mutationsTotal)
	return m
}

// ObserveRequest records one logical API call. status 0 means no response.
func (m *ClientMetrics) ObserveRequest(endpoint string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(endpoint, label).Inc()
	m.requestLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *ClientMetrics) ObserveRetry(reason string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(reason).Inc()
}

func (m *ClientMetrics) ObserveMutation(kind string, committed bool) {
	if m == nil {
		return
	}
	outcome := "committed"
	if !committed {
		outcome = "rolled_back"
	}
	m.mutationsTotal.WithLabelValues(kind, outcome).Inc()
}
