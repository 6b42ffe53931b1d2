package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func int64Ptr(v int64) *int64 { return &v }

func TestMemoryStoreUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.CreateUser(ctx, User{TelegramID: int64Ptr(100), FullName: "Alice"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("store should assign an id")
	}
	if created.Role != RoleUser {
		t.Fatalf("default role = %q, want %q", created.Role, RoleUser)
	}

	if _, err := s.CreateUser(ctx, User{TelegramID: int64Ptr(100)}); err == nil {
		t.Fatalf("duplicate telegram_id should be rejected")
	}

	got, err := s.UserByTelegramID(ctx, 100)
	if err != nil {
		t.Fatalf("UserByTelegramID() error = %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("UserByTelegramID id = %d, want %d", got.ID, created.ID)
	}

	if _, err := s.UserByTelegramID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown telegram id error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreUpdateStructsOnlyTouchSetFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	user, _ := s.CreateUser(ctx, User{TelegramID: int64Ptr(1), Username: "alice", FullName: "Alice"})
	role := RoleAdmin
	updated, err := s.UpdateUser(ctx, user.ID, UserUpdate{Role: &role})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if updated.Role != RoleAdmin {
		t.Fatalf("Role = %q, want admin", updated.Role)
	}
	if updated.Username != "alice" || updated.FullName != "Alice" {
		t.Fatalf("unset fields must not change: %+v", updated)
	}
	if updated.ID != user.ID || !updated.CreatedAt.Equal(user.CreatedAt) {
		t.Fatalf("id/created_at must be immutable")
	}
}

func TestMemoryStoreTaskFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	creator, _ := s.CreateUser(ctx, User{TelegramID: int64Ptr(1)})
	worker, _ := s.CreateUser(ctx, User{TelegramID: int64Ptr(2)})

	mk := func(status TaskStatus, assignee *int64) Task {
		task, err := s.CreateTask(ctx, Task{Title: "t", Status: status, CreatorID: creator.ID, AssigneeID: assignee})
		if err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
		return task
	}
	mk(TaskNotStarted, &worker.ID)
	mk(TaskInProgress, &worker.ID)
	mk(TaskCompleted, &worker.ID)
	mk(TaskNotStarted, nil)

	active, err := s.ListTasks(ctx, TaskFilter{
		AssigneeID: &worker.ID,
		Statuses:   []TaskStatus{TaskNotStarted, TaskInProgress},
	})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active tasks = %d, want 2", len(active))
	}

	none, err := s.ListTasks(ctx, TaskFilter{Statuses: []TaskStatus{TaskPostponed}})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("no match should return empty slice, got %d rows", len(none))
	}
}

func TestMemoryStoreTasksForAssigneeEagerNames(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	creator, _ := s.CreateUser(ctx, User{TelegramID: int64Ptr(1)})
	worker, _ := s.CreateUser(ctx, User{TelegramID: int64Ptr(2)})
	client, _ := s.CreateClient(ctx, "Acme")
	project, _ := s.CreateProject(ctx, Project{Name: "Rollout", ClientID: &client.ID})

	if _, err := s.CreateTask(ctx, Task{
		Title: "Ship report", CreatorID: creator.ID, AssigneeID: &worker.ID,
		ClientID: &client.ID, ProjectID: &project.ID,
	}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	done := TaskCompleted
	completed, _ := s.CreateTask(ctx, Task{Title: "Old", CreatorID: creator.ID, AssigneeID: &worker.ID})
	if _, err := s.UpdateTask(ctx, completed.ID, TaskUpdate{Status: &done}); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	rows, err := s.TasksForAssignee(ctx, worker.ID, true)
	if err != nil {
		t.Fatalf("TasksForAssignee() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("active rows = %d, want 1", len(rows))
	}
	if rows[0].ClientName != "Acme" || rows[0].ProjectName != "Rollout" {
		t.Fatalf("relations not loaded: %+v", rows[0])
	}

	all, err := s.TasksForAssignee(ctx, worker.ID, false)
	if err != nil {
		t.Fatalf("TasksForAssignee() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all rows = %d, want 2", len(all))
	}
}

func TestMemoryStoreSingleOpenTimeEntry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	creator, _ := s.CreateUser(ctx, User{TelegramID: int64Ptr(1)})
	task, _ := s.CreateTask(ctx, Task{Title: "t", CreatorID: creator.ID})

	now := time.Now().UTC()
	entry, err := s.CreateTimeEntry(ctx, TimeEntry{
		TaskID: task.ID, UserID: creator.ID, WorkDate: now, StartTime: now, Status: TimeEntryStarted,
	})
	if err != nil {
		t.Fatalf("CreateTimeEntry() error = %v", err)
	}

	if _, err := s.CreateTimeEntry(ctx, TimeEntry{
		TaskID: task.ID, UserID: creator.ID, WorkDate: now, StartTime: now, Status: TimeEntryStarted,
	}); err == nil {
		t.Fatalf("second open entry for the same task should be rejected")
	}

	open, err := s.OpenTimeEntry(ctx, task.ID)
	if err != nil {
		t.Fatalf("OpenTimeEntry() error = %v", err)
	}
	if open.ID != entry.ID {
		t.Fatalf("open entry id = %d, want %d", open.ID, entry.ID)
	}

	end := now.Add(time.Hour)
	if err := s.CloseTimeEntry(ctx, entry.ID, end); err != nil {
		t.Fatalf("CloseTimeEntry() error = %v", err)
	}
	if _, err := s.OpenTimeEntry(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after close OpenTimeEntry error = %v, want ErrNotFound", err)
	}

	entries, _ := s.ListTimeEntries(ctx, task.ID)
	if len(entries) != 1 || entries[0].Status != TimeEntryCompleted || entries[0].EndTime == nil {
		t.Fatalf("closed entry not recorded: %+v", entries)
	}
}

func TestMemoryStoreInvitations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	inv, err := s.CreateInvitation(ctx, Invitation{Code: "123456", ExpiresAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateInvitation() error = %v", err)
	}
	if _, err := s.CreateInvitation(ctx, Invitation{Code: "123456", ExpiresAt: time.Now().Add(time.Hour)}); err == nil {
		t.Fatalf("duplicate codes should be rejected")
	}

	if err := s.MarkInvitationUsed(ctx, inv.ID); err != nil {
		t.Fatalf("MarkInvitationUsed() error = %v", err)
	}
	got, err := s.InvitationByCode(ctx, "123456")
	if err != nil {
		t.Fatalf("InvitationByCode() error = %v", err)
	}
	if !got.Used {
		t.Fatalf("invitation should be marked used")
	}
}

func TestNewFallsBackToMemory(t *testing.T) {
	s, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("empty DATABASE_URL should yield the in-memory store, got %T", s)
	}
}
