package prometrics

import (
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Standard registers every metric the application emits and returns them
// keyed for observability provider wiring.
func Standard(r Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
			"HTTP requests by route and status code.", "method", "route", "status"),
		observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
			"Calls to external systems such as the payment gateway.", "peer", "endpoint", "outcome"),
		observability.MInventoryConflicts: r.Counter(string(observability.MInventoryConflicts),
			"Reservations rejected for missing or insufficient stock.", "reason"),
		observability.MEventsDispatched: r.Counter(string(observability.MEventsDispatched),
			"Domain events handed to subscribers.", "event", "outcome"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
			"HTTP request latency in seconds.", prometheus.DefBuckets, "method", "route", "status"),
		observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
			"Latency of external calls in seconds.", prometheus.DefBuckets, "peer", "endpoint"),
	}
	return counters, histograms
}
