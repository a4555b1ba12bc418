package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/bookings/{id}/finish", 200)
		IncNotification("sent")
		IncSchedulerRun("promote", "ok")
	})
}

func TestSettlementCounters(t *testing.T) {
	before := testutil.ToFloat64(settlementActions.WithLabelValues("finish", "partial"))
	IncSettlement("finish", "partial")
	assert.Equal(t, before+1, testutil.ToFloat64(settlementActions.WithLabelValues("finish", "partial")))

	before = testutil.ToFloat64(dependencyFailures.WithLabelValues("ledger"))
	IncDependencyFailure("ledger")
	assert.Equal(t, before+1, testutil.ToFloat64(dependencyFailures.WithLabelValues("ledger")))

	before = testutil.ToFloat64(ledgerAdjustments.WithLabelValues("late_fee"))
	IncLedger("late_fee")
	assert.Equal(t, before+1, testutil.ToFloat64(ledgerAdjustments.WithLabelValues("late_fee")))
}
