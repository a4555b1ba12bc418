package database

import (
	"context"
	"testing"

	"armada/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditTrail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entries := []*models.AuditEntry{
		{BookingID: 5, Action: models.ActionConfirm, FromStatus: models.StatusPending, ToStatus: models.StatusConfirmed, ActorID: 1, ActorName: "anna"},
		{
			BookingID: 5, Action: models.ActionFinish, FromStatus: models.StatusOngoing, ToStatus: models.StatusCompleted,
			Amount: -300_000, ActorID: 1, ActorName: "anna", FailedSteps: models.StepLedger,
		},
		{BookingID: 6, Action: models.ActionCancel, FromStatus: models.StatusPending, ToStatus: models.StatusCancelled, Note: "no-show"},
	}
	for _, e := range entries {
		require.NoError(t, db.AppendAudit(ctx, e))
		assert.NotZero(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}

	trail, err := db.GetAuditTrail(ctx, 5)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.ActionConfirm, trail[0].Action)
	assert.Equal(t, int64(-300_000), trail[1].Amount)
	assert.Equal(t, models.StepLedger, trail[1].FailedSteps)

	empty, err := db.GetAuditTrail(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
