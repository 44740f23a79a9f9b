// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafevdbmembers",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cafevdbmembers",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	folderOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafevdbmembers",
			Subsystem: "groupfolders",
			Name:      "operations_total",
			Help:      "Group folder mutations issued by the reconciliation.",
		},
		[]string{"operation"},
	)

	groupSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafevdbmembers",
			Subsystem: "groupfolders",
			Name:      "group_syncs_total",
			Help:      "Project group synchronizations by result.",
		},
		[]string{"result"},
	)

	cloudRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cafevdbmembers",
			Subsystem: "cloud",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests sent to the cloud instance.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"method", "status"},
	)

	registrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cafevdbmembers",
			Subsystem: "registration",
			Name:      "submissions_total",
			Help:      "Accepted public project registrations.",
		},
	)
)

func init() {
	Registry.MustRegister(httpRequests, httpDuration, folderOperations, groupSyncs, cloudRequests, registrations)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest observes one handled request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCloudRequest observes one request to the cloud. A zero status
// marks a transport failure.
func RecordCloudRequest(method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	cloudRequests.WithLabelValues(method, label).Observe(duration.Seconds())
}

// RecordFolderOperation counts one group folder mutation.
func RecordFolderOperation(operation string) {
	folderOperations.WithLabelValues(operation).Inc()
}

// RecordGroupSync counts one project group synchronization.
func RecordGroupSync(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	groupSyncs.WithLabelValues(result).Inc()
}

// RecordRegistration counts an accepted registration.
func RecordRegistration() {
	registrations.Inc()
}
