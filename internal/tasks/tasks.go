// ABOUTME: Bounded in-memory queue of fleet tasks with lifecycle state.
// ABOUTME: Tasks are queued via the API and cancelled or inspected by id.

package tasks

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the task id is unknown.
var ErrNotFound = errors.New("task not found")

// ErrQueueFull indicates the queue has reached its configured capacity.
var ErrQueueFull = errors.New("task queue has reached maximum capacity")

// Task is one unit of fleet work. Status moves queued -> cancelled for now;
// execution states are reserved for the scheduler.
type Task struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Priority      string         `json:"priority"`
	AssignedAgent string         `json:"assignedAgent,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	Timeout       int            `json:"timeout"`
	RetryLimit    int            `json:"retryLimit"`
	Status        string         `json:"status"`
	Progress      int            `json:"progress"`
	CreatedAt     time.Time      `json:"createdAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}

// Spec is the caller-supplied portion of a task. Name and Type are
// required; everything else has defaults.
type Spec struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Priority      string         `json:"priority"`
	AssignedAgent string         `json:"assignedAgent"`
	Parameters    map[string]any `json:"parameters"`
	Timeout       int            `json:"timeout"`
	RetryLimit    int            `json:"retryLimit"`
}

// Queue holds tasks by id up to a fixed capacity. limit <= 0 disables the
// cap.
type Queue struct {
	mu     sync.RWMutex
	byID   map[string]*Task
	limit  int
	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty Queue with the given capacity.
func New(limit int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		byID:   make(map[string]*Task),
		limit:  limit,
		logger: logger.With("component", "tasks"),
		now:    time.Now,
	}
}

// Create queues a new task from the spec, applying defaults for priority,
// timeout, and retry limit. Returns ErrQueueFull at capacity.
func (q *Queue) Create(spec Spec) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.byID) >= q.limit {
		return nil, ErrQueueFull
	}

	task := &Task{
		ID:            uuid.New().String(),
		Name:          spec.Name,
		Type:          spec.Type,
		Priority:      spec.Priority,
		AssignedAgent: spec.AssignedAgent,
		Parameters:    spec.Parameters,
		Timeout:       spec.Timeout,
		RetryLimit:    spec.RetryLimit,
		Status:        "queued",
		CreatedAt:     q.now(),
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	if task.Timeout == 0 {
		task.Timeout = 3600
	}
	if task.RetryLimit == 0 {
		task.RetryLimit = 3
	}

	q.byID[task.ID] = task
	q.logger.Info("task queued", "id", task.ID, "name", task.Name, "type", task.Type)

	out := *task
	return &out, nil
}

// Get returns a copy of the task, or ErrNotFound.
func (q *Queue) Get(id string) (*Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, ok := q.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *task
	return &out, nil
}

// List returns a copy of every task, in no particular order.
func (q *Queue) List() []Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Task, 0, len(q.byID))
	for _, task := range q.byID {
		out = append(out, *task)
	}
	return out
}

// Cancel marks the task cancelled and stamps its completion time. The task
// stays in the queue for inspection.
func (q *Queue) Cancel(id string) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	task.Status = "cancelled"
	done := q.now()
	task.CompletedAt = &done
	q.logger.Info("task cancelled", "id", id, "name", task.Name)

	out := *task
	return &out, nil
}

// Len returns the number of tasks currently held.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.byID)
}
