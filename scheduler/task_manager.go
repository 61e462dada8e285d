package scheduler

import (
	"log"
	"sync"
	"time"

	"dropwatch/models"
)

// CheckFunc performs an on-demand price check for one product.
type CheckFunc func(productID int64) (*models.ExtractedPrice, error)

// TaskManager manages async on-demand price check tasks.
type TaskManager struct {
	tasks      map[string]*models.CheckTask
	taskQueue  chan *models.CheckTask
	checkFunc  CheckFunc
	maxWorkers int

	mutex    sync.RWMutex
	workers  int
	stopChan chan struct{}
}

// NewTaskManager creates a task manager and starts its dispatch loop.
func NewTaskManager(checkFunc CheckFunc, maxWorkers int) *TaskManager {
	tm := &TaskManager{
		tasks:      make(map[string]*models.CheckTask),
		taskQueue:  make(chan *models.CheckTask, 100),
		checkFunc:  checkFunc,
		maxWorkers: maxWorkers,
		stopChan:   make(chan struct{}),
	}

	go tm.processTasks()
	log.Printf("Task manager started with %d max workers", maxWorkers)
	return tm
}

// SubmitTask queues a new check task for a product.
func (tm *TaskManager) SubmitTask(productID int64) *models.CheckTask {
	task := models.NewCheckTask(productID)

	tm.mutex.Lock()
	tm.tasks[task.ID] = task
	tm.mutex.Unlock()

	select {
	case tm.taskQueue <- task:
		log.Printf("Task %s submitted for product %d", task.ID, productID)
	default:
		task.Fail("Task queue is full")
		log.Printf("Failed to submit task %s - queue full", task.ID)
	}

	return task
}

// GetTask returns a task by ID.
func (tm *TaskManager) GetTask(taskID string) (*models.CheckTask, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	task, exists := tm.tasks[taskID]
	return task, exists
}

// CleanupOldTasks removes finished tasks older than maxAge.
func (tm *TaskManager) CleanupOldTasks(maxAge time.Duration) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for taskID, task := range tm.tasks {
		if task.IsCompleted() && task.CreatedAt.Before(cutoff) {
			delete(tm.tasks, taskID)
		}
	}
}

func (tm *TaskManager) processTasks() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case task := <-tm.taskQueue:
			tm.mutex.Lock()
			if tm.workers < tm.maxWorkers {
				tm.workers++
				tm.mutex.Unlock()
				go tm.worker(task)
			} else {
				tm.mutex.Unlock()
				// At capacity: wait briefly, then requeue.
				go func() {
					time.Sleep(time.Second)
					select {
					case tm.taskQueue <- task:
					default:
						task.Fail("System overloaded, unable to process task")
					}
				}()
			}

		case <-ticker.C:
			tm.CleanupOldTasks(time.Hour)

		case <-tm.stopChan:
			log.Println("Task manager stopped")
			return
		}
	}
}

func (tm *TaskManager) worker(task *models.CheckTask) {
	defer func() {
		tm.mutex.Lock()
		tm.workers--
		tm.mutex.Unlock()
	}()

	task.Start()

	result, err := tm.checkFunc(task.ProductID)
	if err != nil {
		task.Fail(err.Error())
		return
	}

	task.Complete(result)
	log.Printf("Task %s completed in %v", task.ID, task.Duration())
}

// Stop stops the task manager's dispatch loop.
func (tm *TaskManager) Stop() {
	close(tm.stopChan)
}

// Stats returns task manager statistics for monitoring endpoints.
func (tm *TaskManager) Stats() map[string]interface{} {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	statusCounts := make(map[string]int)
	for _, task := range tm.tasks {
		statusCounts[string(task.Status)]++
	}

	return map[string]interface{}{
		"total_tasks":     len(tm.tasks),
		"active_workers":  tm.workers,
		"max_workers":     tm.maxWorkers,
		"queue_size":      len(tm.taskQueue),
		"tasks_by_status": statusCounts,
	}
}
