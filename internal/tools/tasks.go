// Package tools holds the in-process stand-ins for the external systems a
// plan can touch: the task board, the analytics platform, and the email
// outbox. They are deliberately small and safe for concurrent use so tests
// and scenario runs need no network.
package tools

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rook/internal/logging"
)

// Task is one board task.
type Task struct {
	ID       string         `json:"task_id"`
	Title    string         `json:"task"`
	Assignee string         `json:"assignee,omitempty"`
	Due      string         `json:"due,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// TaskStore is the in-memory task board.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

// NewTaskStore returns an empty board.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: map[string]*Task{}}
}

// Create adds a task. A provided ID is honored so replayed plans stay
// stable; otherwise one is minted.
func (s *TaskStore) Create(t Task) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Title == "" {
		t.Title = "Auto-created task"
	}
	if _, exists := s.tasks[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	copied := t
	s.tasks[t.ID] = &copied
	logging.Tasks("created task %s (%q) assignee=%s", t.ID, t.Title, t.Assignee)
	return t
}

// Reassign moves a task to a new assignee.
func (s *TaskStore) Reassign(taskID, to string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %s not found", taskID)
	}
	t.Assignee = to
	logging.Tasks("reassigned task %s to %s", taskID, to)
	return *t, nil
}

// FindByAssignee returns the ID of the first task held by assignee, in
// creation order, or "".
func (s *TaskStore) FindByAssignee(assignee string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if s.tasks[id].Assignee == assignee {
			return id
		}
	}
	return ""
}

// All returns a creation-ordered snapshot of the board.
func (s *TaskStore) All() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tasks[id])
	}
	return out
}
