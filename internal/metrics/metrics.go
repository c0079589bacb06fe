package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the client collectors
	Registry = prometheus.NewRegistry()

	chainCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_client",
			Subsystem: "chain",
			Name:      "calls_total",
			Help:      "Read-only contract calls issued through the gateway.",
		},
		[]string{"contract", "method", "result"},
	)

	chainSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_client",
			Subsystem: "chain",
			Name:      "transactions_total",
			Help:      "Transactions submitted through the gateway.",
		},
		[]string{"contract", "method", "result"},
	)

	confirmationWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rental_client",
			Subsystem: "chain",
			Name:      "confirmation_wait_seconds",
			Help:      "Time from submission until the requested confirmation depth.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"confirmations"},
	)

	flows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_client",
			Subsystem: "orchestrator",
			Name:      "flows_total",
			Help:      "Flow status transitions by state.",
		},
		[]string{"flow", "state"},
	)

	pollFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_client",
			Subsystem: "poller",
			Name:      "failures_total",
			Help:      "Background refreshes that failed and kept the previous snapshot.",
		},
		[]string{"poller"},
	)

	fetchItemFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rental_client",
			Subsystem: "fetcher",
			Name:      "item_failures_total",
			Help:      "Items skipped in batch enumerations.",
		},
		[]string{"entity"},
	)

	statusAnomalies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rental_client",
			Subsystem: "fetcher",
			Name:      "agreement_status_anomalies_total",
			Help:      "Observed agreement status changes outside the allowed order.",
		},
	)
)

func init() {
	Registry.MustRegister(
		chainCalls,
		chainSends,
		confirmationWait,
		flows,
		pollFailures,
		fetchItemFailures,
		statusAnomalies,
	)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func RecordCall(contract, method string, err error) {
	chainCalls.WithLabelValues(contract, method, result(err)).Inc()
}

func RecordSend(contract, method string, err error) {
	chainSends.WithLabelValues(contract, method, result(err)).Inc()
}

func ObserveConfirmationWait(confirmations string, seconds float64) {
	confirmationWait.WithLabelValues(confirmations).Observe(seconds)
}

func RecordFlow(flow, state string) {
	flows.WithLabelValues(flow, state).Inc()
}

func RecordPollFailure(poller string) {
	pollFailures.WithLabelValues(poller).Inc()
}

func RecordFetchItemFailure(entity string) {
	fetchItemFailures.WithLabelValues(entity).Inc()
}

func RecordStatusAnomaly() {
	statusAnomalies.Inc()
}

// Handler exposes the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
