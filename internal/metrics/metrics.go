package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dnakit"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class.",
		},
		[]string{"route", "code"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to the booking backend by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Row actions by kind and outcome.",
		},
		[]string{"action", "outcome"},
	)

	degradedRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_rows_total",
			Help:      "Rows rendered with a placeholder or dropped, by reason.",
		},
		[]string{"reason"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, upstreamRequests, actions, degradedRows)
	})
}

// IncHTTP counts a served request.
func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

// IncUpstream counts a backend call.
func IncUpstream(endpoint, outcome string) {
	upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

// IncAction counts an action outcome.
func IncAction(action, outcome string) {
	actions.WithLabelValues(action, outcome).Inc()
}

// IncDegraded counts a row that lost data during reconciliation.
func IncDegraded(reason string) {
	degradedRows.WithLabelValues(reason).Inc()
}
