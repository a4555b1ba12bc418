package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "armada"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	settlementActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_actions_total",
			Help:      "Settlement actions by outcome (ok, rejected, partial, error).",
		},
		[]string{"action", "outcome"},
	)

	ledgerAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_adjustments_total",
			Help:      "Ledger entries written by reason.",
		},
		[]string{"reason"},
	)

	dependencyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_failures_total",
			Help:      "Side effects that failed after a status write.",
		},
		[]string{"step"},
	)

	schedulerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		},
		[]string{"job", "result"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by result (sent, retry, failed).",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			settlementActions,
			ledgerAdjustments,
			dependencyFailures,
			schedulerRuns,
			notificationsSent,
		)
	})
}

func IncHTTP(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func IncSettlement(action, outcome string) {
	settlementActions.WithLabelValues(action, outcome).Inc()
}

func IncLedger(reason string) {
	ledgerAdjustments.WithLabelValues(reason).Inc()
}

func IncDependencyFailure(step string) {
	dependencyFailures.WithLabelValues(step).Inc()
}

func IncSchedulerRun(job, result string) {
	schedulerRuns.WithLabelValues(job, result).Inc()
}

func IncNotification(result string) {
	notificationsSent.WithLabelValues(result).Inc()
}
