package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ticketwatch"

var lookupFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "identity",
		Name:      "lookup_failures_total",
		Help:      "Total store lookup failures treated as resolution misses",
	},
)

func recordLookupFailure() {
	lookupFailures.Inc()
}
