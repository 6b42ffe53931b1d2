// Package wizard implements the conversational task-creation flow: a
// per-identity session registry that walks an admin through selecting a
// client, project, title, description, due date/time and executor before
// creating the task.
package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wochagonnadu/taskbot/internal/events"
	"github.com/wochagonnadu/taskbot/internal/store"
	"github.com/wochagonnadu/taskbot/internal/transport"
)

// State identifies a wizard step.
type State string

const (
	StateSelectClient   State = "select_client"
	StateNewClient      State = "new_client"
	StateSelectProject  State = "select_project"
	StateNewProject     State = "new_project"
	StateTitle          State = "title"
	StateDescription    State = "description"
	StateDueDate        State = "due_date"
	StateSelectTime     State = "select_time"
	StateSelectExecutor State = "select_executor"
	StateConfirm        State = "confirm"
)

// Outcome values reported when a session ends.
const (
	OutcomeCreated   = "created"
	OutcomeCancelled = "cancelled"
)

const maxTitleLen = 255

// Callback data exchanged with the chat surface.
const (
	cbSelectClient   = "sel_client:"
	cbNewClient      = "new_client"
	cbSelectProject  = "sel_proj:"
	cbNewProject     = "new_project"
	cbSkipDesc       = "skip_description"
	cbDatePrefix     = "date_"
	cbSkipDate       = "skip_date"
	cbTimePrefix     = "time_"
	cbCancelTime     = "cancel_time"
	cbSelectExecutor = "sel_executor:"
	cbConfirm        = "confirm_task"
	cbCancel         = "cancel_task"
)

// Session holds the partially collected task for one admin identity.
type Session struct {
	ID         uuid.UUID
	ExternalID int64
	State      State

	ClientID     int64
	ClientName   string
	ProjectID    int64
	ProjectName  string
	Title        string
	Description  string
	DueDay       time.Time
	DueDate      *time.Time
	AssigneeID   int64
	AssigneeName string

	StartedAt time.Time
}

// Prompt is the next message the chat surface should render.
type Prompt struct {
	Text     string
	Keyboard transport.InlineKeyboard
}

// Result is the outcome of feeding one input into a session.
type Result struct {
	Prompt  Prompt
	Created *store.Task
	Done    bool
	Outcome string
}

// Notifier is told about a freshly created task so the assignee can be
// pinged. Delivery problems are handled inside the notifier.
type Notifier interface {
	TaskAssigned(ctx context.Context, taskID int64) error
}

// Manager owns all active sessions, at most one per external identity.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	store    store.Store
	notifier Notifier
	bus      *events.Bus
	loc      *time.Location
	now      func() time.Time
}

// NewManager builds a session manager. notifier and bus may be nil.
func NewManager(st store.Store, notifier Notifier, bus *events.Bus, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		sessions: make(map[int64]*Session),
		store:    st,
		notifier: notifier,
		bus:      bus,
		loc:      loc,
		now:      time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

// Active reports whether externalID has a session in flight.
func (m *Manager) Active(externalID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[externalID]
	return ok
}

// ActiveCount returns the number of sessions in flight.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Begin starts a fresh session for externalID, replacing any existing one.
func (m *Manager) Begin(ctx context.Context, externalID int64) (Result, error) {
	prompt, err := m.clientPrompt(ctx)
	if err != nil {
		return Result{}, err
	}
	sess := &Session{
		ID:         uuid.New(),
		ExternalID: externalID,
		State:      StateSelectClient,
		StartedAt:  m.now(),
	}
	m.mu.Lock()
	m.sessions[externalID] = sess
	m.mu.Unlock()
	return Result{Prompt: prompt}, nil
}

// Cancel tears down the session for externalID, if any.
func (m *Manager) Cancel(externalID int64) Result {
	m.mu.Lock()
	_, ok := m.sessions[externalID]
	delete(m.sessions, externalID)
	m.mu.Unlock()
	if !ok {
		return Result{Done: true}
	}
	return Result{
		Prompt:  Prompt{Text: "Task creation cancelled."},
		Done:    true,
		Outcome: OutcomeCancelled,
	}
}

// HandleText feeds a free-text message into the session. Typing a name at
// the client or project step registers it on the spot, same as pressing the
// "new" button first. States that only accept button presses treat text as a
// cancellation.
func (m *Manager) HandleText(ctx context.Context, externalID int64, text string) (Result, error) {
	sess := m.session(externalID)
	if sess == nil {
		return Result{Done: true}, nil
	}
	text = strings.TrimSpace(text)
	switch sess.State {
	case StateSelectClient, StateNewClient:
		return m.createClient(ctx, sess, text)
	case StateSelectProject, StateNewProject:
		return m.createProject(ctx, sess, text)
	case StateTitle:
		return m.setTitle(ctx, sess, text)
	case StateDescription:
		return m.setDescription(ctx, sess, text)
	default:
		return m.Cancel(externalID), nil
	}
}

// HandleCallback feeds a button press into the session.
func (m *Manager) HandleCallback(ctx context.Context, externalID int64, data string) (Result, error) {
	sess := m.session(externalID)
	if sess == nil {
		return Result{Done: true}, nil
	}
	if data == cbCancel || data == cbCancelTime {
		return m.Cancel(externalID), nil
	}

	switch sess.State {
	case StateSelectClient:
		if data == cbNewClient {
			sess.State = StateNewClient
			return Result{Prompt: Prompt{Text: "Enter the new client's name:"}}, nil
		}
		if id, ok := parseID(data, cbSelectClient); ok {
			return m.selectClient(ctx, sess, id)
		}
	case StateSelectProject:
		if data == cbNewProject {
			sess.State = StateNewProject
			return Result{Prompt: Prompt{Text: "Enter the new project's name:"}}, nil
		}
		if id, ok := parseID(data, cbSelectProject); ok {
			return m.selectProject(ctx, sess, id)
		}
	case StateDescription:
		if data == cbSkipDesc {
			sess.Description = ""
			return m.datePrompt(sess)
		}
	case StateDueDate:
		if data == cbSkipDate {
			sess.DueDate = nil
			return m.executorPrompt(ctx, sess)
		}
		if day, ok := strings.CutPrefix(data, cbDatePrefix); ok {
			return m.selectDate(sess, day)
		}
	case StateSelectTime:
		if slot, ok := strings.CutPrefix(data, cbTimePrefix); ok {
			return m.selectTime(ctx, sess, slot)
		}
	case StateSelectExecutor:
		if id, ok := parseID(data, cbSelectExecutor); ok {
			return m.selectExecutor(ctx, sess, id)
		}
	case StateConfirm:
		if data == cbConfirm {
			return m.confirm(ctx, sess)
		}
	}
	return m.Cancel(externalID), nil
}

func (m *Manager) session(externalID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[externalID]
}

func (m *Manager) clientPrompt(ctx context.Context) (Prompt, error) {
	clients, err := m.store.ListClients(ctx)
	if err != nil {
		return Prompt{}, fmt.Errorf("list clients: %w", err)
	}
	var kb transport.InlineKeyboard
	for _, c := range clients {
		kb = append(kb, transport.Row(transport.Button{
			Text: c.Name,
			Data: cbSelectClient + strconv.FormatInt(c.ID, 10),
		}))
	}
	kb = append(kb,
		transport.Row(transport.Button{Text: "➕ New client", Data: cbNewClient}),
		transport.Row(transport.Button{Text: "❌ Cancel", Data: cbCancel}),
	)
	return Prompt{Text: "Pick a client for the new task:", Keyboard: kb}, nil
}

func (m *Manager) selectClient(ctx context.Context, sess *Session, id int64) (Result, error) {
	client, err := m.store.ClientByID(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load client %d: %w", id, err)
	}
	sess.ClientID = client.ID
	sess.ClientName = client.Name
	return m.projectPrompt(ctx, sess)
}

func (m *Manager) createClient(ctx context.Context, sess *Session, name string) (Result, error) {
	if name == "" {
		return Result{Prompt: Prompt{Text: "The client name cannot be empty. Enter the new client's name:"}}, nil
	}
	client, err := m.store.CreateClient(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("create client: %w", err)
	}
	sess.ClientID = client.ID
	sess.ClientName = client.Name
	return m.projectPrompt(ctx, sess)
}

func (m *Manager) projectPrompt(ctx context.Context, sess *Session) (Result, error) {
	projects, err := m.store.ListProjects(ctx, &sess.ClientID)
	if err != nil {
		return Result{}, fmt.Errorf("list projects for client %d: %w", sess.ClientID, err)
	}
	var kb transport.InlineKeyboard
	for _, p := range projects {
		kb = append(kb, transport.Row(transport.Button{
			Text: p.Name,
			Data: cbSelectProject + strconv.FormatInt(p.ID, 10),
		}))
	}
	kb = append(kb,
		transport.Row(transport.Button{Text: "➕ New project", Data: cbNewProject}),
		transport.Row(transport.Button{Text: "❌ Cancel", Data: cbCancel}),
	)
	sess.State = StateSelectProject
	return Result{Prompt: Prompt{
		Text:     fmt.Sprintf("Client: %s\nPick a project:", sess.ClientName),
		Keyboard: kb,
	}}, nil
}

func (m *Manager) selectProject(ctx context.Context, sess *Session, id int64) (Result, error) {
	project, err := m.store.ProjectByID(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load project %d: %w", id, err)
	}
	sess.ProjectID = project.ID
	sess.ProjectName = project.Name
	sess.State = StateTitle
	return Result{Prompt: Prompt{Text: "Enter the task title:"}}, nil
}

func (m *Manager) createProject(ctx context.Context, sess *Session, name string) (Result, error) {
	if name == "" {
		return Result{Prompt: Prompt{Text: "The project name cannot be empty. Enter the new project's name:"}}, nil
	}
	project, err := m.store.CreateProject(ctx, store.Project{
		Name:     name,
		ClientID: &sess.ClientID,
		Status:   store.ProjectActive,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create project: %w", err)
	}
	sess.ProjectID = project.ID
	sess.ProjectName = project.Name
	sess.State = StateTitle
	return Result{Prompt: Prompt{Text: "Enter the task title:"}}, nil
}

func (m *Manager) setTitle(ctx context.Context, sess *Session, title string) (Result, error) {
	if title == "" {
		return Result{Prompt: Prompt{Text: "The title cannot be empty. Enter the task title:"}}, nil
	}
	if len(title) > maxTitleLen {
		return Result{Prompt: Prompt{
			Text: fmt.Sprintf("The title is too long (over %d characters). Enter a shorter title:", maxTitleLen),
		}}, nil
	}
	sess.Title = title
	sess.State = StateDescription
	kb := transport.InlineKeyboard{
		transport.Row(transport.Button{Text: "Skip", Data: cbSkipDesc}),
		transport.Row(transport.Button{Text: "❌ Cancel", Data: cbCancel}),
	}
	return Result{Prompt: Prompt{Text: "Enter a description, or skip it:", Keyboard: kb}}, nil
}

func (m *Manager) setDescription(ctx context.Context, sess *Session, text string) (Result, error) {
	sess.Description = text
	return m.datePrompt(sess)
}

func (m *Manager) datePrompt(sess *Session) (Result, error) {
	days := NextWorkdays(m.now().In(m.loc), 6)
	var row []transport.Button
	var kb transport.InlineKeyboard
	for _, day := range days {
		row = append(row, transport.Button{
			Text: day.Format(dueDisplayLayout),
			Data: cbDatePrefix + day.Format(dueDateLayout),
		})
		if len(row) == 3 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	kb = append(kb,
		transport.Row(transport.Button{Text: "Without a due date", Data: cbSkipDate}),
		transport.Row(transport.Button{Text: "❌ Cancel", Data: cbCancel}),
	)
	sess.State = StateDueDate
	return Result{Prompt: Prompt{Text: "Pick a due date:", Keyboard: kb}}, nil
}

func (m *Manager) selectDate(sess *Session, day string) (Result, error) {
	parsed, err := time.ParseInLocation(dueDateLayout, day, m.loc)
	if err != nil {
		return m.Cancel(sess.ExternalID), nil
	}
	sess.DueDay = parsed
	var row []transport.Button
	var kb transport.InlineKeyboard
	for _, slot := range TimeSlots() {
		row = append(row, transport.Button{Text: slot, Data: cbTimePrefix + slot})
		if len(row) == 3 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	kb = append(kb, transport.Row(transport.Button{Text: "❌ Cancel", Data: cbCancelTime}))
	sess.State = StateSelectTime
	return Result{Prompt: Prompt{
		Text:     fmt.Sprintf("Due date: %s\nPick a time:", sess.DueDay.Format(dueDateLayout)),
		Keyboard: kb,
	}}, nil
}

func (m *Manager) selectTime(ctx context.Context, sess *Session, slot string) (Result, error) {
	parsed, err := time.ParseInLocation("15:04", slot, m.loc)
	if err != nil {
		return m.Cancel(sess.ExternalID), nil
	}
	due := time.Date(
		sess.DueDay.Year(), sess.DueDay.Month(), sess.DueDay.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, m.loc,
	)
	sess.DueDate = &due
	return m.executorPrompt(ctx, sess)
}

func (m *Manager) executorPrompt(ctx context.Context, sess *Session) (Result, error) {
	users, err := m.store.ListUsers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		res := m.Cancel(sess.ExternalID)
		res.Prompt.Text = "No executors are registered yet, task creation cancelled."
		return res, nil
	}
	var kb transport.InlineKeyboard
	for _, u := range users {
		kb = append(kb, transport.Row(transport.Button{
			Text: u.DisplayName(),
			Data: cbSelectExecutor + strconv.FormatInt(u.ID, 10),
		}))
	}
	kb = append(kb, transport.Row(transport.Button{Text: "❌ Cancel", Data: cbCancel}))
	sess.State = StateSelectExecutor
	return Result{Prompt: Prompt{Text: "Pick an executor:", Keyboard: kb}}, nil
}

func (m *Manager) selectExecutor(ctx context.Context, sess *Session, id int64) (Result, error) {
	user, err := m.store.UserByID(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load user %d: %w", id, err)
	}
	sess.AssigneeID = user.ID
	sess.AssigneeName = user.DisplayName()
	sess.State = StateConfirm

	var b strings.Builder
	b.WriteString("New task:\n")
	fmt.Fprintf(&b, "Client: %s\n", sess.ClientName)
	fmt.Fprintf(&b, "Project: %s\n", sess.ProjectName)
	fmt.Fprintf(&b, "Title: %s\n", sess.Title)
	if sess.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", sess.Description)
	}
	if sess.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", sess.DueDate.Format("02.01.2006 15:04"))
	}
	fmt.Fprintf(&b, "Executor: %s", sess.AssigneeName)

	kb := transport.InlineKeyboard{
		transport.Row(
			transport.Button{Text: "✅ Create", Data: cbConfirm},
			transport.Button{Text: "❌ Cancel", Data: cbCancel},
		),
	}
	return Result{Prompt: Prompt{Text: b.String(), Keyboard: kb}}, nil
}

func (m *Manager) confirm(ctx context.Context, sess *Session) (Result, error) {
	var creatorID int64
	if creator, err := m.store.UserByTelegramID(ctx, sess.ExternalID); err == nil {
		creatorID = creator.ID
	}
	created, err := m.store.CreateTask(ctx, store.Task{
		Title:       sess.Title,
		Description: sess.Description,
		Status:      store.TaskNotStarted,
		ClientID:    &sess.ClientID,
		ProjectID:   &sess.ProjectID,
		AssigneeID:  &sess.AssigneeID,
		CreatorID:   creatorID,
		DueDate:     sess.DueDate,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create task: %w", err)
	}

	m.mu.Lock()
	delete(m.sessions, sess.ExternalID)
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type:    events.TaskCreated,
			TaskID:  created.ID,
			Title:   created.Title,
			ActorID: sess.ExternalID,
			At:      m.now(),
		})
	}
	if m.notifier != nil {
		// Delivery problems are logged by the notifier and never undo
		// the created task.
		_ = m.notifier.TaskAssigned(ctx, created.ID)
	}

	return Result{
		Prompt:  Prompt{Text: fmt.Sprintf("Task %q created and assigned to %s.", created.Title, sess.AssigneeName)},
		Created: &created,
		Done:    true,
		Outcome: OutcomeCreated,
	}, nil
}

func parseID(data, prefix string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
