package database

import (
	"context"
	"testing"
	"time"

	"armada/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{Kind: "late_fee", BookingID: 100, Payload: `{"title":"late"}`}
	require.NoError(t, db.CreateOutboxTask(ctx, task))
	assert.Equal(t, models.TaskStatusPending, task.Status)

	tasks, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(100), tasks[0].BookingID)

	// retry in the future hides the task
	next := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusRetry, "telegram down", &next))
	tasks, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil))

	errMsg := "chat not found"
	require.NoError(t, db.CreateOutboxTask(ctx, &models.OutboxTask{
		Kind: "partial_failure", BookingID: 101, Payload: "{}", Status: models.TaskStatusFailed, LastError: &errMsg,
	}))
	failed, err := db.GetFailedOutboxTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].LastError)
	assert.Equal(t, errMsg, *failed[0].LastError)

	var retries int
	var processed *time.Time
	require.NoError(t, db.QueryRow(`SELECT retry_count, processed_at FROM notification_queue WHERE id = ?`, task.ID).Scan(&retries, &processed))
	assert.Equal(t, 1, retries)
	assert.NotNil(t, processed)
}
