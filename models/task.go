package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// TaskStatus represents the status of an async check task.
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// CheckTask represents an async on-demand price check.
type CheckTask struct {
	ID          string          `json:"id"`
	ProductID   int64           `json:"product_id"`
	Status      TaskStatus      `json:"status"`
	Message     string          `json:"message"`
	Result      *ExtractedPrice `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewCheckTask creates a queued check task for a product.
func NewCheckTask(productID int64) *CheckTask {
	return &CheckTask{
		ID:        generateTaskID(),
		ProductID: productID,
		Status:    TaskStatusQueued,
		Message:   "Task queued for processing",
		CreatedAt: time.Now(),
	}
}

// Start marks the task as processing.
func (t *CheckTask) Start() {
	t.Status = TaskStatusProcessing
	t.Message = "Checking price..."
	now := time.Now()
	t.StartedAt = &now
}

// Complete marks the task as completed with the extraction result.
func (t *CheckTask) Complete(result *ExtractedPrice) {
	t.Status = TaskStatusCompleted
	t.Message = "Price check completed"
	t.Result = result
	now := time.Now()
	t.CompletedAt = &now
}

// Fail marks the task as failed.
func (t *CheckTask) Fail(reason string) {
	t.Status = TaskStatusFailed
	t.Message = "Price check failed"
	t.Error = reason
	now := time.Now()
	t.CompletedAt = &now
}

// IsCompleted returns true if the task is in a final state.
func (t *CheckTask) IsCompleted() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// IsActive returns true if the task is still queued or running.
func (t *CheckTask) IsActive() bool {
	return t.Status == TaskStatusQueued || t.Status == TaskStatusProcessing
}

// Duration returns how long the task has been (or was) running.
func (t *CheckTask) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(*t.StartedAt)
}

func generateTaskID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return "task_" + time.Now().Format("20060102150405") + "_" + hex.EncodeToString(buf)
}
