// Package notify delivers chat notifications: assignment pings when a task
// is created and twice-daily digests of each executor's open work.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/wochagonnadu/taskbot/internal/events"
	"github.com/wochagonnadu/taskbot/internal/observability"
	"github.com/wochagonnadu/taskbot/internal/store"
	"github.com/wochagonnadu/taskbot/internal/transport"
)

// Digest kinds.
const (
	DigestMorning = "morning"
	DigestEvening = "evening"
)

// Notifier sends messages through the user-facing chat surface. bus and
// metrics may be nil.
type Notifier struct {
	store   store.Store
	sender  transport.Sender
	bus     *events.Bus
	metrics *observability.Metrics
}

func NewNotifier(st store.Store, sender transport.Sender, bus *events.Bus, metrics *observability.Metrics) *Notifier {
	return &Notifier{store: st, sender: sender, bus: bus, metrics: metrics}
}

// TaskAssigned pings the assignee of a freshly created task. It is a no-op
// when the task has no assignee, the assignee has no chat identity, or the
// creator assigned the task to themselves.
func (n *Notifier) TaskAssigned(ctx context.Context, taskID int64) error {
	task, err := n.store.TaskByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task %d: %w", taskID, err)
	}
	if task.AssigneeID == nil {
		return nil
	}
	if *task.AssigneeID == task.CreatorID {
		return nil
	}
	assignee, err := n.store.UserByID(ctx, *task.AssigneeID)
	if err != nil {
		return fmt.Errorf("load assignee %d: %w", *task.AssigneeID, err)
	}
	if assignee.TelegramID == nil {
		return nil
	}

	// Dynamic fields are escaped so a title like "v1.0 [hotfix]" survives
	// MarkdownV2 parsing on the chat side.
	var b strings.Builder
	b.WriteString("📋 You have a new task\\!\n\n")
	fmt.Fprintf(&b, "*%s*\n", transport.EscapeMarkdown(task.Title))
	if task.ClientID != nil {
		if client, err := n.store.ClientByID(ctx, *task.ClientID); err == nil {
			fmt.Fprintf(&b, "Client: %s\n", transport.EscapeMarkdown(client.Name))
		}
	}
	if task.ProjectID != nil {
		if project, err := n.store.ProjectByID(ctx, *task.ProjectID); err == nil {
			fmt.Fprintf(&b, "Project: %s\n", transport.EscapeMarkdown(project.Name))
		}
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", transport.EscapeMarkdown(task.Description))
	}
	if task.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", transport.EscapeMarkdown(task.DueDate.Format("02.01.2006 15:04")))
	}

	err = n.sender.Send(ctx, transport.OutMessage{
		ChatID:    *assignee.TelegramID,
		Text:      b.String(),
		ParseMode: transport.ParseModeMarkdownV2,
	})
	n.observe("assignment", err)
	if err != nil {
		return fmt.Errorf("notify assignee %d: %w", assignee.ID, err)
	}
	n.publish(task, "assignment")
	return nil
}

// SendDigest walks every registered user with a chat identity and sends the
// morning or evening summary of their open tasks. A failed delivery to one
// recipient is logged and does not stop the rest.
func (n *Notifier) SendDigest(ctx context.Context, kind string) error {
	users, err := n.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, user := range users {
		if user.TelegramID == nil {
			continue
		}
		tasks, err := n.store.TasksForAssignee(ctx, user.ID, true)
		if err != nil {
			log.Printf("notify: digest for user %d: %v", user.ID, err)
			n.observe(kind, err)
			continue
		}
		if len(tasks) == 0 {
			continue
		}
		err = n.sender.Send(ctx, transport.OutMessage{
			ChatID:    *user.TelegramID,
			Text:      digestText(kind, tasks),
			ParseMode: transport.ParseModeMarkdownV2,
		})
		n.observe(kind, err)
		if err != nil {
			log.Printf("notify: digest to user %d: %v", user.ID, err)
			continue
		}
		if n.bus != nil {
			n.bus.Publish(events.Event{
				Type:   events.NotificationSent,
				Detail: kind,
			})
		}
	}
	return nil
}

// digestText renders a MarkdownV2 digest body, so literal punctuation in the
// template is pre-escaped and dynamic fields go through EscapeMarkdown.
func digestText(kind string, tasks []store.TaskWithRelations) string {
	var b strings.Builder
	switch kind {
	case DigestEvening:
		b.WriteString("🌆 The workday is wrapping up\\. Your open tasks:\n")
	default:
		b.WriteString("☀️ Good morning\\! Your tasks for today:\n")
	}
	for i, task := range tasks {
		fmt.Fprintf(&b, "\n%d\\. *%s* \\[%s\\]", i+1, transport.EscapeMarkdown(task.Title), task.Status.Label())
		if task.ProjectName != "" {
			fmt.Fprintf(&b, " \\(%s\\)", transport.EscapeMarkdown(task.ProjectName))
		}
		if task.DueDate != nil {
			fmt.Fprintf(&b, ", due %s", transport.EscapeMarkdown(task.DueDate.Format("02.01 15:04")))
		}
	}
	if kind == DigestEvening {
		b.WriteString("\n\nPlease update their statuses before you leave\\.")
	}
	return b.String()
}

func (n *Notifier) observe(kind string, err error) {
	if n.metrics == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	n.metrics.Notifications.WithLabelValues(kind, outcome).Inc()
}

func (n *Notifier) publish(task store.Task, detail string) {
	if n.bus == nil {
		return
	}
	n.bus.Publish(events.Event{
		Type:   events.NotificationSent,
		TaskID: task.ID,
		Title:  task.Title,
		Detail: detail,
	})
}
