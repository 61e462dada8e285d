package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCheckTaskLifecycle(t *testing.T) {
	task := NewCheckTask(42)

	require.Equal(t, int64(42), task.ProductID)
	require.Equal(t, TaskStatusQueued, task.Status)
	require.True(t, task.IsActive())
	require.False(t, task.IsCompleted())
	require.Zero(t, task.Duration())

	task.Start()
	require.Equal(t, TaskStatusProcessing, task.Status)
	require.True(t, task.IsActive())

	result := &ExtractedPrice{Price: decimal.RequireFromString("9.99"), Currency: "USD"}
	task.Complete(result)
	require.Equal(t, TaskStatusCompleted, task.Status)
	require.False(t, task.IsActive())
	require.True(t, task.IsCompleted())
	require.Equal(t, result, task.Result)
}

func TestCheckTaskFail(t *testing.T) {
	task := NewCheckTask(1)
	task.Start()
	task.Fail("queue full")

	require.Equal(t, TaskStatusFailed, task.Status)
	require.True(t, task.IsCompleted())
	require.Equal(t, "queue full", task.Error)
	require.Nil(t, task.Result)
}

func TestTaskIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task := NewCheckTask(1)
		require.False(t, seen[task.ID])
		seen[task.ID] = true
	}
}
