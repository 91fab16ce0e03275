package tickets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ticketwatch"

var (
	sweepRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "sweep_runs_total",
			Help:      "Total SLA sweep executions",
		},
	)

	sweepBreaches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "breaches_total",
			Help:      "Total tickets transitioned to breached",
		},
	)

	sweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "sweep_failures_total",
			Help:      "Total per-ticket failures during SLA sweeps",
		},
	)
)

func recordSweepRun()     { sweepRuns.Inc() }
func recordSweepBreach()  { sweepBreaches.Inc() }
func recordSweepFailure() { sweepFailures.Inc() }
