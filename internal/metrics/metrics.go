// Package metrics holds the Prometheus collectors of the service
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry all keygate collectors are registered with
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// LoginsTotal counts login attempts by result and reason
	LoginsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "keygate_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"result", "reason"},
	)

	// LoginDuration observes the time spent deciding a login
	LoginDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keygate_login_duration_seconds",
			Help:    "Duration of login requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// VersionConflicts counts optimistic locking conflicts that caused a retry
	VersionConflicts = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "keygate_version_conflicts_total",
			Help: "Number of concurrent modifications detected on license keys",
		},
	)

	// AdminOperations counts successful administrative mutations
	AdminOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "keygate_admin_operations_total",
			Help: "Number of administrative operations by kind",
		},
		[]string{"operation"},
	)

	// KeysCreated counts issued license keys
	KeysCreated = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "keygate_keys_created_total",
			Help: "Number of issued license keys",
		},
	)
)

// Login result label values
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// ObserveLogin records one finished login attempt
func ObserveLogin(result, reason string, started time.Time) {
	LoginsTotal.WithLabelValues(result, reason).Inc()
	LoginDuration.Observe(time.Since(started).Seconds())
}

// Handler serves the metrics of Registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
