// Package report builds xlsx workbooks summarizing clients, projects,
// employees and tasks over a trailing period, and records snapshot rows in
// the store as it goes.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wochagonnadu/taskbot/internal/store"
)

// Period selects the trailing window a report covers.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// ErrUnknownPeriod is returned for a period outside week/month/quarter/year.
var ErrUnknownPeriod = fmt.Errorf("unknown report period")

// ParsePeriod validates a period string.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return Period(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// Days returns the window length in days.
func (p Period) Days() int {
	switch p {
	case PeriodMonth:
		return 30
	case PeriodQuarter:
		return 90
	case PeriodYear:
		return 365
	default:
		return 7
	}
}

// Sheet names, in workbook order.
const (
	sheetClients   = "Clients"
	sheetProjects  = "Projects"
	sheetEmployees = "Employees"
	sheetTasks     = "Tasks"
)

// Generator renders workbooks from the store.
type Generator struct {
	store store.Store
	now   func() time.Time
}

func NewGenerator(st store.Store) *Generator {
	return &Generator{store: st, now: time.Now}
}

// SetNow overrides the clock, for tests.
func (g *Generator) SetNow(now func() time.Time) { g.now = now }

// Generate builds the workbook for the period and returns the xlsx bytes
// together with a suggested filename.
func (g *Generator) Generate(ctx context.Context, period Period) ([]byte, string, error) {
	now := g.now()
	since := now.AddDate(0, 0, -period.Days())

	clients, err := g.store.ListClients(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list clients: %w", err)
	}
	projects, err := g.store.ListProjects(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("list projects: %w", err)
	}
	users, err := g.store.ListUsers(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list users: %w", err)
	}
	tasks, err := g.store.ListTasks(ctx, store.TaskFilter{CreatedFrom: &since})
	if err != nil {
		return nil, "", fmt.Errorf("list tasks: %w", err)
	}

	minutesByTask := make(map[int64]int, len(tasks))
	minutesByUser := make(map[int64]int)
	for _, task := range tasks {
		entries, err := g.store.ListTimeEntries(ctx, task.ID)
		if err != nil {
			return nil, "", fmt.Errorf("list time entries for task %d: %w", task.ID, err)
		}
		for _, entry := range entries {
			if entry.EndTime == nil {
				continue
			}
			minutes := int(entry.EndTime.Sub(entry.StartTime).Minutes())
			minutesByTask[task.ID] += minutes
			minutesByUser[entry.UserID] += minutes
		}
	}

	agg := aggregate(clients, projects, users, tasks)

	f := excelize.NewFile()
	defer f.Close()
	if err := writeSheets(f, agg, minutesByTask, minutesByUser); err != nil {
		return nil, "", err
	}

	if err := g.saveSnapshots(ctx, now, agg, minutesByUser); err != nil {
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("render workbook: %w", err)
	}
	filename := fmt.Sprintf("report_%s_%s.xlsx", period, now.Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

type aggregated struct {
	clients  []store.Client
	projects []store.Project
	users    []store.User
	tasks    []store.Task

	clientNames  map[int64]string
	projectNames map[int64]string
	userNames    map[int64]string

	tasksByClient    map[int64]int
	doneByClient     map[int64]int
	projectsByClient map[int64]int
	tasksByProject   map[int64]int
	doneByProject    map[int64]int
	tasksByUser      map[int64]int
	doneByUser       map[int64]int
}

func aggregate(clients []store.Client, projects []store.Project, users []store.User, tasks []store.Task) aggregated {
	agg := aggregated{
		clients:  clients,
		projects: projects,
		users:    users,
		tasks:    tasks,

		clientNames:  make(map[int64]string, len(clients)),
		projectNames: make(map[int64]string, len(projects)),
		userNames:    make(map[int64]string, len(users)),

		tasksByClient:    make(map[int64]int),
		doneByClient:     make(map[int64]int),
		projectsByClient: make(map[int64]int),
		tasksByProject:   make(map[int64]int),
		doneByProject:    make(map[int64]int),
		tasksByUser:      make(map[int64]int),
		doneByUser:       make(map[int64]int),
	}
	for _, c := range clients {
		agg.clientNames[c.ID] = c.Name
	}
	for _, p := range projects {
		agg.projectNames[p.ID] = p.Name
		if p.ClientID != nil {
			agg.projectsByClient[*p.ClientID]++
		}
	}
	for _, u := range users {
		agg.userNames[u.ID] = u.DisplayName()
	}
	for _, t := range tasks {
		done := t.Status == store.TaskCompleted
		if t.ClientID != nil {
			agg.tasksByClient[*t.ClientID]++
			if done {
				agg.doneByClient[*t.ClientID]++
			}
		}
		if t.ProjectID != nil {
			agg.tasksByProject[*t.ProjectID]++
			if done {
				agg.doneByProject[*t.ProjectID]++
			}
		}
		if t.AssigneeID != nil {
			agg.tasksByUser[*t.AssigneeID]++
			if done {
				agg.doneByUser[*t.AssigneeID]++
			}
		}
	}
	return agg
}

func writeSheets(f *excelize.File, agg aggregated, minutesByTask, minutesByUser map[int64]int) error {
	if err := f.SetSheetName(f.GetSheetName(0), sheetClients); err != nil {
		return fmt.Errorf("rename first sheet: %w", err)
	}
	for _, name := range []string{sheetProjects, sheetEmployees, sheetTasks} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	writeRow := func(sheet string, row int, values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}
	writeHeader := func(sheet string, titles ...any) error {
		if err := writeRow(sheet, 1, titles...); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(titles), 1)
		if err != nil {
			return err
		}
		return f.SetCellStyle(sheet, "A1", last, headerStyle)
	}

	if err := writeHeader(sheetClients, "ID", "Name", "Projects", "Tasks", "Completed"); err != nil {
		return err
	}
	for i, c := range agg.clients {
		if err := writeRow(sheetClients, i+2,
			c.ID, c.Name, agg.projectsByClient[c.ID], agg.tasksByClient[c.ID], agg.doneByClient[c.ID],
		); err != nil {
			return err
		}
	}

	if err := writeHeader(sheetProjects, "ID", "Name", "Client", "Status", "Tasks", "Completed"); err != nil {
		return err
	}
	for i, p := range agg.projects {
		clientName := ""
		if p.ClientID != nil {
			clientName = agg.clientNames[*p.ClientID]
		}
		if err := writeRow(sheetProjects, i+2,
			p.ID, p.Name, clientName, p.Status, agg.tasksByProject[p.ID], agg.doneByProject[p.ID],
		); err != nil {
			return err
		}
	}

	if err := writeHeader(sheetEmployees, "ID", "Name", "Role", "Tasks", "Completed", "Minutes worked"); err != nil {
		return err
	}
	for i, u := range agg.users {
		if err := writeRow(sheetEmployees, i+2,
			u.ID, u.DisplayName(), string(u.Role), agg.tasksByUser[u.ID], agg.doneByUser[u.ID], minutesByUser[u.ID],
		); err != nil {
			return err
		}
	}

	if err := writeHeader(sheetTasks, "ID", "Title", "Status", "Client", "Project", "Executor", "Created", "Due", "Minutes"); err != nil {
		return err
	}
	for i, t := range agg.tasks {
		var clientName, projectName, executor, due string
		if t.ClientID != nil {
			clientName = agg.clientNames[*t.ClientID]
		}
		if t.ProjectID != nil {
			projectName = agg.projectNames[*t.ProjectID]
		}
		if t.AssigneeID != nil {
			executor = agg.userNames[*t.AssigneeID]
		}
		if t.DueDate != nil {
			due = t.DueDate.Format("02.01.2006 15:04")
		}
		if err := writeRow(sheetTasks, i+2,
			t.ID, t.Title, string(t.Status), clientName, projectName, executor,
			t.CreatedAt.Format("02.01.2006"), due, minutesByTask[t.ID],
		); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) saveSnapshots(ctx context.Context, now time.Time, agg aggregated, minutesByUser map[int64]int) error {
	for _, u := range agg.users {
		if _, err := g.store.SaveWorkReport(ctx, store.WorkReport{
			UserID:         u.ID,
			ReportDate:     now,
			TasksTotal:     agg.tasksByUser[u.ID],
			TasksCompleted: agg.doneByUser[u.ID],
			MinutesWorked:  minutesByUser[u.ID],
		}); err != nil {
			return fmt.Errorf("save work report for user %d: %w", u.ID, err)
		}
	}
	for _, p := range agg.projects {
		if _, err := g.store.SaveProjectReport(ctx, store.ProjectReport{
			ProjectID:      p.ID,
			ReportDate:     now,
			TasksTotal:     agg.tasksByProject[p.ID],
			TasksCompleted: agg.doneByProject[p.ID],
		}); err != nil {
			return fmt.Errorf("save project report for project %d: %w", p.ID, err)
		}
	}
	for _, c := range agg.clients {
		if _, err := g.store.SaveClientReport(ctx, store.ClientReport{
			ClientID:       c.ID,
			ReportDate:     now,
			ProjectsTotal:  agg.projectsByClient[c.ID],
			TasksTotal:     agg.tasksByClient[c.ID],
			TasksCompleted: agg.doneByClient[c.ID],
		}); err != nil {
			return fmt.Errorf("save client report for client %d: %w", c.ID, err)
		}
	}
	return nil
}
