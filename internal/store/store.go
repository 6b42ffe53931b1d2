package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("record not found in store")

// Store persists the six entity families. Single-row reads return
// ErrNotFound when nothing matches; list reads return empty slices.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id int64, upd UserUpdate) (User, error)

	CreateClient(ctx context.Context, name string) (Client, error)
	ClientByID(ctx context.Context, id int64) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)

	CreateProject(ctx context.Context, project Project) (Project, error)
	ProjectByID(ctx context.Context, id int64) (Project, error)
	ListProjects(ctx context.Context, clientID *int64) ([]Project, error)
	UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (Project, error)

	CreateTask(ctx context.Context, task Task) (Task, error)
	TaskByID(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (Task, error)
	// TasksForAssignee eagerly resolves client and project names.
	TasksForAssignee(ctx context.Context, userID int64, onlyActive bool) ([]TaskWithRelations, error)

	CreateTimeEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	// OpenTimeEntry returns the most recently created entry with a null
	// end time for the task, or ErrNotFound.
	OpenTimeEntry(ctx context.Context, taskID int64) (TimeEntry, error)
	// CloseTimeEntry stamps the end time and flips the entry status to
	// completed.
	CloseTimeEntry(ctx context.Context, id int64, endTime time.Time) error
	ListTimeEntries(ctx context.Context, taskID int64) ([]TimeEntry, error)

	CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
	InvitationByCode(ctx context.Context, code string) (Invitation, error)
	MarkInvitationUsed(ctx context.Context, id int64) error

	SaveWorkReport(ctx context.Context, report WorkReport) (WorkReport, error)
	SaveProjectReport(ctx context.Context, report ProjectReport) (ProjectReport, error)
	SaveClientReport(ctx context.Context, report ClientReport) (ClientReport, error)

	Close() error
}

// New creates a postgres-backed store when configured, otherwise in-memory.
func New(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

func userFallbackName(telegramID int64) string {
	return fmt.Sprintf("User %d", telegramID)
}

func errDuplicate(table, constraint string) error {
	return fmt.Errorf("%s: duplicate %s", table, constraint)
}
