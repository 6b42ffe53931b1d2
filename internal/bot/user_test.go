package bot

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/wochagonnadu/taskbot/internal/auth"
	"github.com/wochagonnadu/taskbot/internal/lifecycle"
	"github.com/wochagonnadu/taskbot/internal/store"
	"github.com/wochagonnadu/taskbot/internal/transport"
)

type capturingSender struct {
	messages  []transport.OutMessage
	documents []transport.Document
}

func (c *capturingSender) Send(_ context.Context, msg transport.OutMessage) error {
	c.messages = append(c.messages, msg)
	return nil
}

func (c *capturingSender) SendDocument(_ context.Context, doc transport.Document) error {
	c.documents = append(c.documents, doc)
	return nil
}

func (c *capturingSender) lastText(t *testing.T) string {
	t.Helper()
	if len(c.messages) == 0 {
		t.Fatal("no messages sent")
	}
	return c.messages[len(c.messages)-1].Text
}

func messageUpdate(from, chat int64, text string) transport.Update {
	return transport.Update{Message: &transport.Message{
		From: transport.UserRef{ID: from, FirstName: "Test"},
		Chat: transport.ChatRef{ID: chat},
		Text: text,
	}}
}

func callbackUpdate(from, chat int64, data string) transport.Update {
	return transport.Update{Callback: &transport.Callback{
		ID:   "cb",
		From: transport.UserRef{ID: from},
		Message: &transport.Message{
			MessageID: 42,
			Chat:      transport.ChatRef{ID: chat},
		},
		Data: data,
	}}
}

func newUserBot(t *testing.T) (*User, store.Store, *capturingSender, *auth.Gate) {
	t.Helper()
	st := store.NewMemoryStore()
	gate := auth.NewGate(st, "master-secret", 24*time.Hour)
	sender := &capturingSender{}
	bot := NewUser(st, gate, lifecycle.NewService(st, nil), sender, nil)
	return bot, st, sender, gate
}

func int64Ptr(v int64) *int64 { return &v }

func TestUserUnknownIdentityIsSilentWithoutStart(t *testing.T) {
	bot, _, sender, _ := newUserBot(t)

	if err := bot.HandleUpdate(context.Background(), messageUpdate(900, 900, "hello")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(sender.messages) != 0 {
		t.Fatalf("stranger without /start should get nothing, sent %d", len(sender.messages))
	}
}

func TestUserStartPromptsForInviteCodeAndRedeems(t *testing.T) {
	bot, st, sender, gate := newUserBot(t)
	ctx := context.Background()

	inv, err := gate.GenerateInviteCode(ctx)
	if err != nil {
		t.Fatalf("GenerateInviteCode: %v", err)
	}

	if err := bot.HandleUpdate(ctx, messageUpdate(900, 900, "/start")); err != nil {
		t.Fatalf("/start: %v", err)
	}
	if !strings.Contains(sender.lastText(t), "invite code") {
		t.Fatalf("expected an invite-code prompt, got %q", sender.lastText(t))
	}

	if err := bot.HandleUpdate(ctx, messageUpdate(900, 900, "000000")); err != nil {
		t.Fatalf("wrong code: %v", err)
	}
	if !strings.Contains(sender.lastText(t), "not valid") {
		t.Fatalf("expected a rejection, got %q", sender.lastText(t))
	}

	if err := bot.HandleUpdate(ctx, messageUpdate(900, 900, inv.Code)); err != nil {
		t.Fatalf("valid code: %v", err)
	}
	if !strings.Contains(sender.lastText(t), "Welcome aboard") {
		t.Fatalf("expected a welcome, got %q", sender.lastText(t))
	}

	user, err := st.UserByTelegramID(ctx, 900)
	if err != nil {
		t.Fatalf("redeemed user missing: %v", err)
	}
	if user.Role != store.RoleUser {
		t.Fatalf("redeemed role = %q, want user", user.Role)
	}
	stored, err := st.InvitationByCode(ctx, inv.Code)
	if err != nil {
		t.Fatalf("InvitationByCode: %v", err)
	}
	if !stored.Used {
		t.Fatal("invitation should be marked used")
	}
}

func TestUserTaskFlowStartAndComplete(t *testing.T) {
	bot, st, sender, _ := newUserBot(t)
	ctx := context.Background()

	exec, err := st.CreateUser(ctx, store.User{TelegramID: int64Ptr(200), FullName: "Eve Executor", Role: store.RoleUser})
	if err != nil {
		t.Fatalf("seed executor: %v", err)
	}
	task, err := st.CreateTask(ctx, store.Task{
		Title:      "Fix login page",
		Status:     store.TaskNotStarted,
		CreatorID:  exec.ID,
		AssigneeID: &exec.ID,
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	if err := bot.HandleUpdate(ctx, messageUpdate(200, 200, "/tasks")); err != nil {
		t.Fatalf("/tasks: %v", err)
	}
	list := sender.messages[len(sender.messages)-1]
	if len(list.Keyboard) != 1 {
		t.Fatalf("task list keyboard rows = %d, want 1", len(list.Keyboard))
	}
	taskData := list.Keyboard[0][0].Data
	if taskData != "task:"+strconv.FormatInt(task.ID, 10) {
		t.Fatalf("task button data = %q", taskData)
	}

	if err := bot.HandleUpdate(ctx, callbackUpdate(200, 200, taskData)); err != nil {
		t.Fatalf("task detail: %v", err)
	}
	detail := sender.messages[len(sender.messages)-1]
	if detail.MessageID != 42 {
		t.Fatal("callback reply should edit the originating message")
	}
	if !strings.Contains(detail.Text, "Not started") {
		t.Fatalf("detail text: %q", detail.Text)
	}

	if err := bot.HandleUpdate(ctx, callbackUpdate(200, 200, "start_task:"+strconv.FormatInt(task.ID, 10))); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, err := st.TaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if got.Status != store.TaskInProgress {
		t.Fatalf("status after start = %q", got.Status)
	}
	if _, err := st.OpenTimeEntry(ctx, task.ID); err != nil {
		t.Fatalf("expected an open time entry: %v", err)
	}

	if err := bot.HandleUpdate(ctx, callbackUpdate(200, 200, "complete_task:"+strconv.FormatInt(task.ID, 10))); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err = st.TaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if got.Status != store.TaskCompleted {
		t.Fatalf("status after complete = %q", got.Status)
	}
	if _, err := st.OpenTimeEntry(ctx, task.ID); err == nil {
		t.Fatal("time entry should be closed after completion")
	}
}

func TestUserCannotTouchForeignTask(t *testing.T) {
	bot, st, sender, _ := newUserBot(t)
	ctx := context.Background()

	owner, err := st.CreateUser(ctx, store.User{TelegramID: int64Ptr(200), FullName: "Owner", Role: store.RoleUser})
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if _, err := st.CreateUser(ctx, store.User{TelegramID: int64Ptr(300), FullName: "Other", Role: store.RoleUser}); err != nil {
		t.Fatalf("seed intruder: %v", err)
	}
	task, err := st.CreateTask(ctx, store.Task{
		Title:      "Private work",
		Status:     store.TaskNotStarted,
		CreatorID:  owner.ID,
		AssigneeID: &owner.ID,
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	if err := bot.HandleUpdate(ctx, callbackUpdate(300, 300, "start_task:"+strconv.FormatInt(task.ID, 10))); err != nil {
		t.Fatalf("foreign start: %v", err)
	}
	if !strings.Contains(sender.lastText(t), "not assigned to you") {
		t.Fatalf("expected a denial, got %q", sender.lastText(t))
	}
	got, err := st.TaskByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if got.Status != store.TaskNotStarted {
		t.Fatalf("foreign press must not change status, got %q", got.Status)
	}
}

func TestUserEmptyTaskList(t *testing.T) {
	bot, st, sender, _ := newUserBot(t)
	ctx := context.Background()

	if _, err := st.CreateUser(ctx, store.User{TelegramID: int64Ptr(200), FullName: "Idle", Role: store.RoleUser}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := bot.HandleUpdate(ctx, messageUpdate(200, 200, "/tasks")); err != nil {
		t.Fatalf("/tasks: %v", err)
	}
	if !strings.Contains(sender.lastText(t), "no open tasks") {
		t.Fatalf("expected the empty-list message, got %q", sender.lastText(t))
	}
}
