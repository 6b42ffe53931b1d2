package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wochagonnadu/taskbot/internal/auth"
	"github.com/wochagonnadu/taskbot/internal/observability"
	"github.com/wochagonnadu/taskbot/internal/report"
	"github.com/wochagonnadu/taskbot/internal/store"
	"github.com/wochagonnadu/taskbot/internal/transport"
	"github.com/wochagonnadu/taskbot/internal/wizard"
)

// Admin menu callback data.
const (
	cbAdminEmployees     = "admin_employees"
	cbAdminInvite        = "admin_invite"
	cbAdminClients       = "admin_clients"
	cbAdminProjects      = "admin_projects"
	cbAdminReports       = "admin_reports"
	cbAdminNewTask       = "admin_new_task"
	cbAdminAddClient     = "admin_add_client"
	cbAdminAddProject    = "admin_add_project"
	cbAdminProjCliPrefix = "admin_projcli:"
	cbReportPrefix       = "report:"
)

// pendingInput marks what the next free-text message from an admin means.
type pendingInput struct {
	kind     string // "client" or "project"
	clientID int64  // for "project"
}

// Admin dispatches updates arriving on the management surface. Identities
// that fail the admin check are offered master-key entry once and otherwise
// ignored.
type Admin struct {
	store   store.Store
	gate    *auth.Gate
	wizard  *wizard.Manager
	reports *report.Generator
	sender  transport.Sender
	metrics *observability.Metrics

	mu           sync.Mutex
	pendingKey   map[int64]bool
	pendingInput map[int64]pendingInput
}

func NewAdmin(st store.Store, gate *auth.Gate, wiz *wizard.Manager, reports *report.Generator, sender transport.Sender, metrics *observability.Metrics) *Admin {
	return &Admin{
		store:        st,
		gate:         gate,
		wizard:       wiz,
		reports:      reports,
		sender:       sender,
		metrics:      metrics,
		pendingKey:   make(map[int64]bool),
		pendingInput: make(map[int64]pendingInput),
	}
}

func (a *Admin) HandleUpdate(ctx context.Context, upd transport.Update) error {
	if upd.From() == 0 {
		return nil
	}
	countUpdate(a.metrics, surfaceAdmin, upd)

	var err error
	switch {
	case upd.Message != nil:
		err = a.handleMessage(ctx, upd)
	case upd.Callback != nil:
		err = a.handleCallback(ctx, upd)
	}
	countError(a.metrics, surfaceAdmin, err)
	return err
}

func (a *Admin) handleMessage(ctx context.Context, upd transport.Update) error {
	from := upd.From()
	text := strings.TrimSpace(upd.Message.Text)

	if a.awaitingKey(from) {
		return a.redeemKey(ctx, upd, text)
	}

	outcome, err := a.gate.Resolve(ctx, from, true)
	if err != nil {
		return err
	}
	if !outcome.Authorized() {
		if text == "/start" {
			a.setAwaitingKey(from, true)
			return reply(ctx, a.sender, upd, "This is the management console. Enter the master key to continue.", nil)
		}
		return nil
	}

	if a.wizard.Active(from) {
		if text == "/cancel" {
			res := a.wizard.Cancel(from)
			a.syncWizardMetrics(res.Outcome)
			return reply(ctx, a.sender, upd, res.Prompt.Text, res.Prompt.Keyboard)
		}
		res, err := a.wizard.HandleText(ctx, from, text)
		if err != nil {
			return a.wizardFailure(ctx, upd, err)
		}
		a.syncWizardMetrics(res.Outcome)
		return reply(ctx, a.sender, upd, res.Prompt.Text, res.Prompt.Keyboard)
	}

	if input, ok := a.peekPendingInput(from); ok && !strings.HasPrefix(text, "/") {
		return a.applyPendingInput(ctx, upd, input, text)
	}
	a.clearPendingInput(from)

	switch text {
	case "/start", "/menu":
		return a.sendMenu(ctx, upd, outcome.User.DisplayName())
	case "/new_task":
		return a.startWizard(ctx, upd)
	case "/cancel":
		return reply(ctx, a.sender, upd, "Nothing to cancel.", nil)
	default:
		return reply(ctx, a.sender, upd, "I did not understand that. Use /menu.", nil)
	}
}

func (a *Admin) handleCallback(ctx context.Context, upd transport.Update) error {
	from := upd.From()
	data := upd.Callback.Data

	outcome, err := a.gate.Resolve(ctx, from, true)
	if err != nil {
		return err
	}
	if !outcome.Authorized() {
		return nil
	}
	// Any button press supersedes a half-finished name entry.
	a.clearPendingInput(from)

	if a.wizard.Active(from) && !strings.HasPrefix(data, "admin_") && !strings.HasPrefix(data, cbReportPrefix) {
		res, err := a.wizard.HandleCallback(ctx, from, data)
		if err != nil {
			return a.wizardFailure(ctx, upd, err)
		}
		a.syncWizardMetrics(res.Outcome)
		return reply(ctx, a.sender, upd, res.Prompt.Text, res.Prompt.Keyboard)
	}

	switch {
	case data == cbAdminEmployees:
		return a.sendEmployees(ctx, upd)
	case data == cbAdminInvite:
		return a.sendInviteCode(ctx, upd)
	case data == cbAdminClients:
		return a.sendClients(ctx, upd)
	case data == cbAdminProjects:
		return a.sendProjects(ctx, upd)
	case data == cbAdminReports:
		return a.sendReportMenu(ctx, upd)
	case data == cbAdminNewTask:
		return a.startWizard(ctx, upd)
	case data == cbAdminAddClient:
		a.setPendingInput(from, pendingInput{kind: "client"})
		return reply(ctx, a.sender, upd, "Enter the new client's name:", nil)
	case data == cbAdminAddProject:
		return a.sendProjectClientChoice(ctx, upd)
	case strings.HasPrefix(data, cbAdminProjCliPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbAdminProjCliPrefix), 10, 64)
		if err != nil {
			return nil
		}
		a.setPendingInput(from, pendingInput{kind: "project", clientID: id})
		return reply(ctx, a.sender, upd, "Enter the new project's name:", nil)
	case strings.HasPrefix(data, cbReportPrefix):
		return a.sendReport(ctx, upd, strings.TrimPrefix(data, cbReportPrefix))
	}
	return nil
}

func (a *Admin) sendMenu(ctx context.Context, upd transport.Update, name string) error {
	kb := transport.InlineKeyboard{
		transport.Row(
			transport.Button{Text: "👥 Employees", Data: cbAdminEmployees},
			transport.Button{Text: "🔑 Invite code", Data: cbAdminInvite},
		),
		transport.Row(
			transport.Button{Text: "🏢 Clients", Data: cbAdminClients},
			transport.Button{Text: "📁 Projects", Data: cbAdminProjects},
		),
		transport.Row(
			transport.Button{Text: "📊 Reports", Data: cbAdminReports},
			transport.Button{Text: "📋 New task", Data: cbAdminNewTask},
		),
	}
	return reply(ctx, a.sender, upd, fmt.Sprintf("Hello, %s! What would you like to do?", name), kb)
}

func (a *Admin) startWizard(ctx context.Context, upd transport.Update) error {
	res, err := a.wizard.Begin(ctx, upd.From())
	if err != nil {
		return a.wizardFailure(ctx, upd, err)
	}
	a.syncWizardMetrics("")
	return reply(ctx, a.sender, upd, res.Prompt.Text, res.Prompt.Keyboard)
}

func (a *Admin) wizardFailure(ctx context.Context, upd transport.Update, err error) error {
	if sendErr := reply(ctx, a.sender, upd, "Something went wrong, please try again.", nil); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

func (a *Admin) sendEmployees(ctx context.Context, upd transport.Update) error {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return reply(ctx, a.sender, upd, "No employees are registered yet.", nil)
	}
	var b strings.Builder
	b.WriteString("Employees:\n")
	for _, u := range users {
		tasks, err := a.store.TasksForAssignee(ctx, u.ID, true)
		if err != nil {
			return fmt.Errorf("active tasks for user %d: %w", u.ID, err)
		}
		fmt.Fprintf(&b, "\n• %s (%s): %d active task(s)", u.DisplayName(), u.Role, len(tasks))
	}
	return reply(ctx, a.sender, upd, b.String(), nil)
}

func (a *Admin) sendInviteCode(ctx context.Context, upd transport.Update) error {
	inv, err := a.gate.GenerateInviteCode(ctx)
	if err != nil {
		return fmt.Errorf("generate invite code: %w", err)
	}
	text := fmt.Sprintf("Invite code: %s\nValid until %s.", inv.Code, inv.ExpiresAt.Format("02.01.2006 15:04"))
	return reply(ctx, a.sender, upd, text, nil)
}

func (a *Admin) sendClients(ctx context.Context, upd transport.Update) error {
	clients, err := a.store.ListClients(ctx)
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}
	kb := transport.InlineKeyboard{
		transport.Row(transport.Button{Text: "➕ Add client", Data: cbAdminAddClient}),
	}
	if len(clients) == 0 {
		return reply(ctx, a.sender, upd, "No clients yet.", kb)
	}
	var b strings.Builder
	b.WriteString("Clients:\n")
	for _, c := range clients {
		fmt.Fprintf(&b, "\n• %s", c.Name)
	}
	return reply(ctx, a.sender, upd, b.String(), kb)
}

func (a *Admin) sendProjects(ctx context.Context, upd transport.Update) error {
	projects, err := a.store.ListProjects(ctx, nil)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	kb := transport.InlineKeyboard{
		transport.Row(transport.Button{Text: "➕ Add project", Data: cbAdminAddProject}),
	}
	if len(projects) == 0 {
		return reply(ctx, a.sender, upd, "No projects yet.", kb)
	}
	var b strings.Builder
	b.WriteString("Projects:\n")
	for _, p := range projects {
		fmt.Fprintf(&b, "\n• %s (%s)", p.Name, p.Status)
	}
	return reply(ctx, a.sender, upd, b.String(), kb)
}

func (a *Admin) sendProjectClientChoice(ctx context.Context, upd transport.Update) error {
	clients, err := a.store.ListClients(ctx)
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}
	if len(clients) == 0 {
		return reply(ctx, a.sender, upd, "Add a client first, then create its project.", nil)
	}
	var kb transport.InlineKeyboard
	for _, c := range clients {
		kb = append(kb, transport.Row(transport.Button{
			Text: c.Name,
			Data: cbAdminProjCliPrefix + strconv.FormatInt(c.ID, 10),
		}))
	}
	return reply(ctx, a.sender, upd, "Which client is the new project for?", kb)
}

func (a *Admin) applyPendingInput(ctx context.Context, upd transport.Update, input pendingInput, name string) error {
	if name == "" {
		return reply(ctx, a.sender, upd, "The name cannot be empty, try again.", nil)
	}
	from := upd.From()
	switch input.kind {
	case "client":
		client, err := a.store.CreateClient(ctx, name)
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		a.clearPendingInput(from)
		return reply(ctx, a.sender, upd, fmt.Sprintf("Client %q added.", client.Name), nil)
	case "project":
		project, err := a.store.CreateProject(ctx, store.Project{
			Name:     name,
			ClientID: &input.clientID,
			Status:   store.ProjectActive,
		})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		a.clearPendingInput(from)
		return reply(ctx, a.sender, upd, fmt.Sprintf("Project %q added.", project.Name), nil)
	}
	a.clearPendingInput(from)
	return nil
}

func (a *Admin) peekPendingInput(from int64) (pendingInput, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	in, ok := a.pendingInput[from]
	return in, ok
}

func (a *Admin) setPendingInput(from int64, in pendingInput) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingInput[from] = in
}

func (a *Admin) clearPendingInput(from int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pendingInput, from)
}

func (a *Admin) sendReportMenu(ctx context.Context, upd transport.Update) error {
	kb := transport.InlineKeyboard{
		transport.Row(
			transport.Button{Text: "Week", Data: cbReportPrefix + string(report.PeriodWeek)},
			transport.Button{Text: "Month", Data: cbReportPrefix + string(report.PeriodMonth)},
		),
		transport.Row(
			transport.Button{Text: "Quarter", Data: cbReportPrefix + string(report.PeriodQuarter)},
			transport.Button{Text: "Year", Data: cbReportPrefix + string(report.PeriodYear)},
		),
	}
	return reply(ctx, a.sender, upd, "Pick a report period:", kb)
}

func (a *Admin) sendReport(ctx context.Context, upd transport.Update, raw string) error {
	period, err := report.ParsePeriod(raw)
	if err != nil {
		return reply(ctx, a.sender, upd, "Unknown report period.", nil)
	}
	data, filename, err := a.reports.Generate(ctx, period)
	if err != nil {
		if sendErr := reply(ctx, a.sender, upd, "Could not build the report, please try again.", nil); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	}
	return a.sender.SendDocument(ctx, transport.Document{
		ChatID:   upd.ChatID(),
		Filename: filename,
		Caption:  fmt.Sprintf("Report for the last %s", period),
		Data:     data,
	})
}

func (a *Admin) redeemKey(ctx context.Context, upd transport.Update, key string) error {
	from := upd.From()
	user, err := a.gate.RedeemMasterKey(ctx, from, key, upd.Message.From.Username, upd.Message.From.FullName())
	if err != nil {
		if errors.Is(err, auth.ErrWrongMasterKey) {
			return reply(ctx, a.sender, upd, "That key is not right, try again.", nil)
		}
		return err
	}
	a.setAwaitingKey(from, false)
	return a.sendMenu(ctx, upd, user.DisplayName())
}

func (a *Admin) awaitingKey(from int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingKey[from]
}

func (a *Admin) setAwaitingKey(from int64, pending bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pending {
		a.pendingKey[from] = true
		return
	}
	delete(a.pendingKey, from)
}

func (a *Admin) syncWizardMetrics(outcome string) {
	if a.metrics == nil {
		return
	}
	a.metrics.WizardSessions.Set(float64(a.wizard.ActiveCount()))
	if outcome != "" {
		a.metrics.WizardOutcomes.WithLabelValues(outcome).Inc()
	}
}
