package scheduler

import (
	"errors"
	"testing"
	"time"

	"dropwatch/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func waitForTask(t *testing.T, tm *TaskManager, taskID string) *models.CheckTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, exists := tm.GetTask(taskID)
		require.True(t, exists)
		if task.IsCompleted() {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task did not complete in time")
	return nil
}

func TestTaskManagerCompletesTask(t *testing.T) {
	result := &models.ExtractedPrice{Price: decimal.RequireFromString("19.99"), Currency: "USD"}
	tm := NewTaskManager(func(productID int64) (*models.ExtractedPrice, error) {
		require.Equal(t, int64(7), productID)
		return result, nil
	}, 2)
	defer tm.Stop()

	task := tm.SubmitTask(7)
	done := waitForTask(t, tm, task.ID)

	require.Equal(t, models.TaskStatusCompleted, done.Status)
	require.True(t, done.Result.Price.Equal(result.Price))
	require.Empty(t, done.Error)
}

func TestTaskManagerFailsTask(t *testing.T) {
	tm := NewTaskManager(func(productID int64) (*models.ExtractedPrice, error) {
		return nil, errors.New("no price could be extracted from the page")
	}, 2)
	defer tm.Stop()

	task := tm.SubmitTask(7)
	done := waitForTask(t, tm, task.ID)

	require.Equal(t, models.TaskStatusFailed, done.Status)
	require.Contains(t, done.Error, "no price")
	require.Nil(t, done.Result)
}

func TestTaskManagerCleanup(t *testing.T) {
	tm := NewTaskManager(func(productID int64) (*models.ExtractedPrice, error) {
		return &models.ExtractedPrice{Price: decimal.RequireFromString("1.00"), Currency: "USD"}, nil
	}, 1)
	defer tm.Stop()

	task := tm.SubmitTask(1)
	waitForTask(t, tm, task.ID)

	tm.CleanupOldTasks(0)
	_, exists := tm.GetTask(task.ID)
	require.False(t, exists)
}

func TestTaskManagerStats(t *testing.T) {
	tm := NewTaskManager(func(productID int64) (*models.ExtractedPrice, error) {
		return &models.ExtractedPrice{Price: decimal.RequireFromString("1.00"), Currency: "USD"}, nil
	}, 3)
	defer tm.Stop()

	task := tm.SubmitTask(1)
	waitForTask(t, tm, task.ID)

	stats := tm.Stats()
	require.Equal(t, 1, stats["total_tasks"])
	require.Equal(t, 3, stats["max_workers"])
}
