// Package lifecycle enforces the task status state machine. Time entry
// bookkeeping is a side effect of the transition itself: callers ask for a
// transition and the ledger follows, so no call site can forget it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wochagonnadu/taskbot/internal/events"
	"github.com/wochagonnadu/taskbot/internal/observability"
	"github.com/wochagonnadu/taskbot/internal/store"
)

var ErrInvalidTransition = errors.New("invalid task status transition")

const lockStripes = 64

// Service serializes transitions per task so two concurrent starts cannot
// both open a time entry.
type Service struct {
	store   store.Store
	bus     *events.Bus
	metrics *observability.Metrics
	now     func() time.Time

	locks [lockStripes]sync.Mutex
}

func NewService(st store.Store, bus *events.Bus) *Service {
	return &Service{store: st, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

// SetNow overrides the clock, for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// SetMetrics enables store failure counting. metrics may be nil.
func (s *Service) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

func (s *Service) lock(taskID int64) *sync.Mutex {
	return &s.locks[taskID%lockStripes]
}

func (s *Service) countStoreError(op string) {
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
}

// Start moves a task from not_started to in_progress and opens a time
// entry for the actor stamped with the current instant.
func (s *Service) Start(ctx context.Context, taskID, actorID int64) (store.Task, error) {
	mu := s.lock(taskID)
	mu.Lock()
	defer mu.Unlock()

	task, err := s.store.TaskByID(ctx, taskID)
	if err != nil {
		s.countStoreError("task_load")
		return store.Task{}, fmt.Errorf("load task: %w", err)
	}
	if task.Status != store.TaskNotStarted {
		return store.Task{}, fmt.Errorf("start task %d in status %q: %w", taskID, task.Status, ErrInvalidTransition)
	}

	status := store.TaskInProgress
	task, err = s.store.UpdateTask(ctx, taskID, store.TaskUpdate{Status: &status})
	if err != nil {
		s.countStoreError("task_update")
		return store.Task{}, fmt.Errorf("update task status: %w", err)
	}

	now := s.now()
	workerID := actorID
	if task.AssigneeID != nil {
		workerID = *task.AssigneeID
	}
	if _, err := s.store.CreateTimeEntry(ctx, store.TimeEntry{
		TaskID:    taskID,
		UserID:    workerID,
		WorkDate:  now.Truncate(24 * time.Hour),
		StartTime: now,
		Status:    store.TimeEntryStarted,
	}); err != nil {
		s.countStoreError("time_entry_open")
		return store.Task{}, fmt.Errorf("open time entry: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.TaskStarted, TaskID: taskID, Title: task.Title, ActorID: actorID})
	}
	return task, nil
}

// Complete moves a task from in_progress to completed and closes the most
// recent open time entry if one exists. A missing open entry leaves a gap
// in the ledger but does not fail the transition.
func (s *Service) Complete(ctx context.Context, taskID, actorID int64) (store.Task, error) {
	mu := s.lock(taskID)
	mu.Lock()
	defer mu.Unlock()

	task, err := s.store.TaskByID(ctx, taskID)
	if err != nil {
		s.countStoreError("task_load")
		return store.Task{}, fmt.Errorf("load task: %w", err)
	}
	if task.Status != store.TaskInProgress {
		return store.Task{}, fmt.Errorf("complete task %d in status %q: %w", taskID, task.Status, ErrInvalidTransition)
	}

	status := store.TaskCompleted
	task, err = s.store.UpdateTask(ctx, taskID, store.TaskUpdate{Status: &status})
	if err != nil {
		s.countStoreError("task_update")
		return store.Task{}, fmt.Errorf("update task status: %w", err)
	}

	entry, err := s.store.OpenTimeEntry(ctx, taskID)
	switch {
	case err == nil:
		if err := s.store.CloseTimeEntry(ctx, entry.ID, s.now()); err != nil {
			s.countStoreError("time_entry_close")
			return store.Task{}, fmt.Errorf("close time entry: %w", err)
		}
	case errors.Is(err, store.ErrNotFound):
		// Accepted gap: completion proceeds without a matching close.
	default:
		s.countStoreError("time_entry_find")
		return store.Task{}, fmt.Errorf("find open time entry: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.TaskCompleted, TaskID: taskID, Title: task.Title, ActorID: actorID})
	}
	return task, nil
}
