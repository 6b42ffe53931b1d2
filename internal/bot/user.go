package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wochagonnadu/taskbot/internal/auth"
	"github.com/wochagonnadu/taskbot/internal/lifecycle"
	"github.com/wochagonnadu/taskbot/internal/observability"
	"github.com/wochagonnadu/taskbot/internal/store"
	"github.com/wochagonnadu/taskbot/internal/transport"
)

// User-surface callback data.
const (
	cbTaskPrefix     = "task:"
	cbStartPrefix    = "start_task:"
	cbCompletePrefix = "complete_task:"
	cbTaskList       = "tasks_list"
)

// User dispatches updates arriving on the executor surface. Unknown
// identities are offered invite-code entry at /start and otherwise ignored.
type User struct {
	store     store.Store
	gate      *auth.Gate
	lifecycle *lifecycle.Service
	sender    transport.Sender
	metrics   *observability.Metrics

	mu          sync.Mutex
	pendingCode map[int64]bool
}

func NewUser(st store.Store, gate *auth.Gate, lc *lifecycle.Service, sender transport.Sender, metrics *observability.Metrics) *User {
	return &User{
		store:       st,
		gate:        gate,
		lifecycle:   lc,
		sender:      sender,
		metrics:     metrics,
		pendingCode: make(map[int64]bool),
	}
}

func (u *User) HandleUpdate(ctx context.Context, upd transport.Update) error {
	if upd.From() == 0 {
		return nil
	}
	countUpdate(u.metrics, surfaceUser, upd)

	var err error
	switch {
	case upd.Message != nil:
		err = u.handleMessage(ctx, upd)
	case upd.Callback != nil:
		err = u.handleCallback(ctx, upd)
	}
	countError(u.metrics, surfaceUser, err)
	return err
}

func (u *User) handleMessage(ctx context.Context, upd transport.Update) error {
	from := upd.From()
	text := strings.TrimSpace(upd.Message.Text)

	if u.awaitingCode(from) && !strings.HasPrefix(text, "/") {
		return u.redeemCode(ctx, upd, text)
	}

	outcome, err := u.gate.Resolve(ctx, from, false)
	if err != nil {
		return err
	}
	if !outcome.Authorized() {
		if text == "/start" {
			u.setAwaitingCode(from, true)
			return reply(ctx, u.sender, upd, "Welcome! Enter your invite code to get access.", nil)
		}
		return nil
	}
	u.setAwaitingCode(from, false)

	switch text {
	case "/start":
		return reply(ctx, u.sender, upd,
			fmt.Sprintf("Hello, %s! Use /tasks to see your tasks.", outcome.User.DisplayName()), nil)
	case "/tasks":
		return u.sendTaskList(ctx, upd, *outcome.User)
	default:
		return reply(ctx, u.sender, upd, "Use /tasks to see your tasks.", nil)
	}
}

func (u *User) handleCallback(ctx context.Context, upd transport.Update) error {
	from := upd.From()
	data := upd.Callback.Data

	outcome, err := u.gate.Resolve(ctx, from, false)
	if err != nil {
		return err
	}
	if !outcome.Authorized() {
		return nil
	}
	user := *outcome.User

	switch {
	case data == cbTaskList:
		return u.sendTaskList(ctx, upd, user)
	case strings.HasPrefix(data, cbTaskPrefix):
		if id, ok := parseTaskID(data, cbTaskPrefix); ok {
			return u.sendTaskDetail(ctx, upd, user, id, "")
		}
	case strings.HasPrefix(data, cbStartPrefix):
		if id, ok := parseTaskID(data, cbStartPrefix); ok {
			return u.transition(ctx, upd, user, id, u.lifecycle.Start, "Task started, the timer is running.")
		}
	case strings.HasPrefix(data, cbCompletePrefix):
		if id, ok := parseTaskID(data, cbCompletePrefix); ok {
			return u.transition(ctx, upd, user, id, u.lifecycle.Complete, "Task completed, nice work!")
		}
	}
	return nil
}

func (u *User) sendTaskList(ctx context.Context, upd transport.Update, user store.User) error {
	tasks, err := u.store.TasksForAssignee(ctx, user.ID, true)
	if err != nil {
		return fmt.Errorf("list tasks for user %d: %w", user.ID, err)
	}
	if len(tasks) == 0 {
		return reply(ctx, u.sender, upd, "You have no open tasks. Enjoy the quiet!", nil)
	}
	var kb transport.InlineKeyboard
	for _, task := range tasks {
		label := fmt.Sprintf("%s %s", statusDot(task.Status), task.Title)
		kb = append(kb, transport.Row(transport.Button{
			Text: label,
			Data: cbTaskPrefix + strconv.FormatInt(task.ID, 10),
		}))
	}
	return reply(ctx, u.sender, upd, fmt.Sprintf("Your open tasks (%d):", len(tasks)), kb)
}

func (u *User) sendTaskDetail(ctx context.Context, upd transport.Update, user store.User, taskID int64, notice string) error {
	task, err := u.store.TaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reply(ctx, u.sender, upd, "That task no longer exists.", nil)
		}
		return fmt.Errorf("load task %d: %w", taskID, err)
	}
	if task.AssigneeID == nil || *task.AssigneeID != user.ID {
		return reply(ctx, u.sender, upd, "That task is not assigned to you.", nil)
	}

	var b strings.Builder
	if notice != "" {
		b.WriteString(notice + "\n\n")
	}
	fmt.Fprintf(&b, "%s\n", task.Title)
	fmt.Fprintf(&b, "Status: %s\n", task.Status.Label())
	if task.ClientID != nil {
		if client, err := u.store.ClientByID(ctx, *task.ClientID); err == nil {
			fmt.Fprintf(&b, "Client: %s\n", client.Name)
		}
	}
	if task.ProjectID != nil {
		if project, err := u.store.ProjectByID(ctx, *task.ProjectID); err == nil {
			fmt.Fprintf(&b, "Project: %s\n", project.Name)
		}
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", task.Description)
	}
	if task.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", task.DueDate.Format("02.01.2006 15:04"))
	}

	id := strconv.FormatInt(task.ID, 10)
	var kb transport.InlineKeyboard
	switch task.Status {
	case store.TaskNotStarted:
		kb = append(kb, transport.Row(transport.Button{Text: "▶️ Start", Data: cbStartPrefix + id}))
	case store.TaskInProgress:
		kb = append(kb, transport.Row(transport.Button{Text: "✅ Complete", Data: cbCompletePrefix + id}))
	}
	kb = append(kb, transport.Row(transport.Button{Text: "⬅️ Back to list", Data: cbTaskList}))
	return reply(ctx, u.sender, upd, b.String(), kb)
}

func (u *User) transition(ctx context.Context, upd transport.Update, user store.User, taskID int64,
	apply func(context.Context, int64, int64) (store.Task, error), notice string) error {
	task, err := u.store.TaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reply(ctx, u.sender, upd, "That task no longer exists.", nil)
		}
		return fmt.Errorf("load task %d: %w", taskID, err)
	}
	if task.AssigneeID == nil || *task.AssigneeID != user.ID {
		return reply(ctx, u.sender, upd, "That task is not assigned to you.", nil)
	}

	if _, err := apply(ctx, taskID, user.ID); err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			return u.sendTaskDetail(ctx, upd, user, taskID, "The task already moved on, here is its current state.")
		}
		return fmt.Errorf("transition task %d: %w", taskID, err)
	}
	return u.sendTaskDetail(ctx, upd, user, taskID, notice)
}

func (u *User) redeemCode(ctx context.Context, upd transport.Update, code string) error {
	from := upd.From()
	user, err := u.gate.RedeemInviteCode(ctx, from, code, upd.Message.From.Username, upd.Message.From.FullName())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrCodeInvalid):
			return reply(ctx, u.sender, upd, "That code is not valid, check it and try again.", nil)
		case errors.Is(err, auth.ErrCodeExpired):
			return reply(ctx, u.sender, upd, "That code has expired, ask your manager for a new one.", nil)
		case errors.Is(err, auth.ErrCodeUsed):
			return reply(ctx, u.sender, upd, "That code was already used, ask your manager for a new one.", nil)
		case errors.Is(err, auth.ErrAlreadyMember):
			u.setAwaitingCode(from, false)
			return reply(ctx, u.sender, upd, "You already have access. Use /tasks to see your tasks.", nil)
		}
		return err
	}
	u.setAwaitingCode(from, false)
	return reply(ctx, u.sender, upd,
		fmt.Sprintf("Welcome aboard, %s! Use /tasks to see your tasks.", user.DisplayName()), nil)
}

func (u *User) awaitingCode(from int64) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pendingCode[from]
}

func (u *User) setAwaitingCode(from int64, pending bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if pending {
		u.pendingCode[from] = true
		return
	}
	delete(u.pendingCode, from)
}

func statusDot(status store.TaskStatus) string {
	switch status {
	case store.TaskInProgress:
		return "🔄"
	case store.TaskCompleted:
		return "✅"
	case store.TaskPostponed:
		return "⏸"
	default:
		return "⏳"
	}
}

func parseTaskID(data, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(data, prefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
