package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wochagonnadu/taskbot/internal/store"
)

func int64Ptr(v int64) *int64 { return &v }

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"week", "month", "quarter", "year"} {
		if _, err := ParsePeriod(s); err != nil {
			t.Fatalf("ParsePeriod(%q): %v", s, err)
		}
	}
	if _, err := ParsePeriod("decade"); err == nil {
		t.Fatal("expected an error for an unknown period")
	}
}

func TestPeriodDays(t *testing.T) {
	got := map[Period]int{
		PeriodWeek:    PeriodWeek.Days(),
		PeriodMonth:   PeriodMonth.Days(),
		PeriodQuarter: PeriodQuarter.Days(),
		PeriodYear:    PeriodYear.Days(),
	}
	want := map[Period]int{PeriodWeek: 7, PeriodMonth: 30, PeriodQuarter: 90, PeriodYear: 365}
	for p, days := range want {
		if got[p] != days {
			t.Fatalf("%s = %d days, want %d", p, got[p], days)
		}
	}
}

func TestGenerateProducesFourSheets(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	adminTG := int64(100)
	admin, err := st.CreateUser(ctx, store.User{TelegramID: &adminTG, FullName: "Ada Admin", Role: store.RoleAdmin})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	execTG := int64(200)
	exec, err := st.CreateUser(ctx, store.User{TelegramID: &execTG, FullName: "Eve Executor", Role: store.RoleUser})
	if err != nil {
		t.Fatalf("seed executor: %v", err)
	}
	client, err := st.CreateClient(ctx, "Acme")
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	project, err := st.CreateProject(ctx, store.Project{Name: "Website", ClientID: &client.ID, Status: store.ProjectActive})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	task, err := st.CreateTask(ctx, store.Task{
		Title:      "Fix login page",
		Status:     store.TaskCompleted,
		CreatorID:  admin.ID,
		AssigneeID: &exec.ID,
		ClientID:   &client.ID,
		ProjectID:  &project.ID,
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	start := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	entry, err := st.CreateTimeEntry(ctx, store.TimeEntry{
		TaskID:    task.ID,
		UserID:    exec.ID,
		WorkDate:  start.Truncate(24 * time.Hour),
		StartTime: start,
		Status:    store.TimeEntryStarted,
	})
	if err != nil {
		t.Fatalf("seed time entry: %v", err)
	}
	if err := st.CloseTimeEntry(ctx, entry.ID, end); err != nil {
		t.Fatalf("close time entry: %v", err)
	}

	gen := NewGenerator(st)
	gen.SetNow(func() time.Time { return time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC) })

	data, filename, err := gen.Generate(ctx, PeriodWeek)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filename != "report_week_2025-03-05.xlsx" {
		t.Fatalf("filename = %q", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open generated workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{"Clients", "Projects", "Employees", "Tasks"}
	if len(sheets) != len(want) {
		t.Fatalf("sheets = %v, want %v", sheets, want)
	}
	for i, name := range want {
		if sheets[i] != name {
			t.Fatalf("sheet %d = %q, want %q", i, sheets[i], name)
		}
	}

	rows, err := f.GetRows("Tasks")
	if err != nil {
		t.Fatalf("read Tasks sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Tasks sheet has %d rows, want header plus one task", len(rows))
	}
	if rows[1][1] != "Fix login page" {
		t.Fatalf("task row title = %q", rows[1][1])
	}
	if rows[1][8] != "90" {
		t.Fatalf("task row minutes = %q, want 90", rows[1][8])
	}

	empRows, err := f.GetRows("Employees")
	if err != nil {
		t.Fatalf("read Employees sheet: %v", err)
	}
	if len(empRows) != 3 {
		t.Fatalf("Employees sheet has %d rows, want header plus two users", len(empRows))
	}
}

func TestGenerateExcludesTasksOutsideWindow(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	adminTG := int64(100)
	admin, err := st.CreateUser(ctx, store.User{TelegramID: &adminTG, FullName: "Ada Admin", Role: store.RoleAdmin})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if _, err := st.CreateTask(ctx, store.Task{
		Title:      "Recent",
		Status:     store.TaskNotStarted,
		CreatorID:  admin.ID,
		AssigneeID: int64Ptr(admin.ID),
	}); err != nil {
		t.Fatalf("seed task: %v", err)
	}

	gen := NewGenerator(st)
	// A clock a year in the future leaves the weekly window empty.
	gen.SetNow(func() time.Time { return time.Now().AddDate(1, 0, 0) })

	data, _, err := gen.Generate(ctx, PeriodWeek)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Tasks")
	if err != nil {
		t.Fatalf("read Tasks sheet: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Tasks sheet has %d rows, want header only", len(rows))
	}
}
