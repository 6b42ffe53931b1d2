package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wochagonnadu/taskbot/internal/events"
	"github.com/wochagonnadu/taskbot/internal/observability"
	"github.com/wochagonnadu/taskbot/internal/store"
)

func setup(t *testing.T) (*Service, *store.MemoryStore, store.Task, store.User) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	tg := int64(100)
	worker, err := st.CreateUser(ctx, store.User{TelegramID: &tg})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	task, err := st.CreateTask(ctx, store.Task{Title: "Ship report", CreatorID: worker.ID, AssigneeID: &worker.ID})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return NewService(st, events.NewBus()), st, task, worker
}

func TestStartOpensExactlyOneTimeEntry(t *testing.T) {
	ctx := context.Background()
	svc, st, task, worker := setup(t)

	updated, err := svc.Start(ctx, task.ID, worker.ID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if updated.Status != store.TaskInProgress {
		t.Fatalf("status = %q, want in_progress", updated.Status)
	}

	entries, _ := st.ListTimeEntries(ctx, task.ID)
	if len(entries) != 1 {
		t.Fatalf("time entries = %d, want 1", len(entries))
	}
	if entries[0].EndTime != nil || entries[0].Status != store.TimeEntryStarted {
		t.Fatalf("entry should be open and started: %+v", entries[0])
	}
	if entries[0].UserID != worker.ID {
		t.Fatalf("entry user = %d, want assignee %d", entries[0].UserID, worker.ID)
	}
}

func TestStartRejectsWrongStatus(t *testing.T) {
	ctx := context.Background()
	svc, st, task, worker := setup(t)

	if _, err := svc.Start(ctx, task.ID, worker.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_, err := svc.Start(ctx, task.ID, worker.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Start() error = %v, want ErrInvalidTransition", err)
	}

	got, _ := st.TaskByID(ctx, task.ID)
	if got.Status != store.TaskInProgress {
		t.Fatalf("failed transition must leave status unchanged, got %q", got.Status)
	}
}

func TestCompleteClosesOpenEntry(t *testing.T) {
	ctx := context.Background()
	svc, st, task, worker := setup(t)

	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	svc.SetNow(func() time.Time { return base })
	if _, err := svc.Start(ctx, task.ID, worker.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	svc.SetNow(func() time.Time { return base.Add(90 * time.Minute) })
	updated, err := svc.Complete(ctx, task.ID, worker.ID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if updated.Status != store.TaskCompleted {
		t.Fatalf("status = %q, want completed", updated.Status)
	}

	entries, _ := st.ListTimeEntries(ctx, task.ID)
	if len(entries) != 1 {
		t.Fatalf("time entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.EndTime == nil || entry.Status != store.TimeEntryCompleted {
		t.Fatalf("entry should be closed: %+v", entry)
	}
	if got := entry.EndTime.Sub(entry.StartTime); got != 90*time.Minute {
		t.Fatalf("tracked duration = %v, want 90m", got)
	}
}

func TestCompleteRejectsWrongStatus(t *testing.T) {
	ctx := context.Background()
	svc, st, task, worker := setup(t)

	_, err := svc.Complete(ctx, task.ID, worker.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Complete() from not_started error = %v, want ErrInvalidTransition", err)
	}
	got, _ := st.TaskByID(ctx, task.ID)
	if got.Status != store.TaskNotStarted {
		t.Fatalf("failed transition must leave status unchanged, got %q", got.Status)
	}
}

func TestCompleteWithoutOpenEntryStillProceeds(t *testing.T) {
	ctx := context.Background()
	svc, st, task, worker := setup(t)

	// Force in_progress directly, bypassing Start, so no entry exists.
	status := store.TaskInProgress
	if _, err := st.UpdateTask(ctx, task.ID, store.TaskUpdate{Status: &status}); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	updated, err := svc.Complete(ctx, task.ID, worker.ID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if updated.Status != store.TaskCompleted {
		t.Fatalf("status = %q, want completed", updated.Status)
	}
}

func TestPostponedOnlyReachableByDirectAssignment(t *testing.T) {
	// Documents the anomaly: postponed is a declared status, but neither
	// Start nor Complete can ever produce it.
	ctx := context.Background()
	svc, st, task, worker := setup(t)

	postponed := store.TaskPostponed
	if _, err := st.UpdateTask(ctx, task.ID, store.TaskUpdate{Status: &postponed}); err != nil {
		t.Fatalf("direct field assignment error = %v", err)
	}
	if _, err := svc.Start(ctx, task.ID, worker.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Start() from postponed error = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Complete(ctx, task.ID, worker.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Complete() from postponed error = %v, want ErrInvalidTransition", err)
	}
}

func TestConcurrentStartsOpenOneEntry(t *testing.T) {
	ctx := context.Background()
	svc, st, task, worker := setup(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Start(ctx, task.ID, worker.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successful starts = %d, want 1", succeeded)
	}
	entries, _ := st.ListTimeEntries(ctx, task.ID)
	if len(entries) != 1 {
		t.Fatalf("time entries = %d, want 1", len(entries))
	}
}

func TestTransitionsPublishEvents(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	bus := events.NewBus()
	svc := NewService(st, bus)

	tg := int64(5)
	worker, _ := st.CreateUser(ctx, store.User{TelegramID: &tg})
	task, _ := st.CreateTask(ctx, store.Task{Title: "t", CreatorID: worker.ID, AssigneeID: &worker.ID})

	ch, cancel := bus.Subscribe()
	defer cancel()

	if _, err := svc.Start(ctx, task.ID, worker.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := svc.Complete(ctx, task.ID, worker.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	want := []events.Type{events.TaskStarted, events.TaskCompleted}
	for _, wantType := range want {
		select {
		case event := <-ch:
			if event.Type != wantType {
				t.Fatalf("event type = %q, want %q", event.Type, wantType)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing %q event", wantType)
		}
	}
}

func TestStoreFailuresAreCounted(t *testing.T) {
	ctx := context.Background()
	svc, _, task, worker := setup(t)
	metrics := observability.NewMetrics("test")
	svc.SetMetrics(metrics)

	if _, err := svc.Start(ctx, task.ID+1000, worker.ID); err == nil {
		t.Fatal("Start() on a missing task should fail")
	}
	if got := testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("task_load")); got != 1 {
		t.Fatalf("task_load store errors = %v, want 1", got)
	}

	// A clean transition adds nothing.
	if _, err := svc.Start(ctx, task.ID, worker.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("task_load")); got != 1 {
		t.Fatalf("task_load store errors after clean start = %v, want 1", got)
	}
}
