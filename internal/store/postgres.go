package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS clients (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			client_id BIGINT REFERENCES clients(id),
			description TEXT NOT NULL DEFAULT '',
			start_date DATE NULL,
			end_date DATE NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'not_started',
			creator_id BIGINT NOT NULL REFERENCES users(id),
			assignee_id BIGINT REFERENCES users(id),
			client_id BIGINT REFERENCES clients(id),
			project_id BIGINT REFERENCES projects(id),
			due_date TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee_status ON tasks (assignee_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks (created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS task_times (
			id BIGSERIAL PRIMARY KEY,
			task_id BIGINT NOT NULL REFERENCES tasks(id),
			user_id BIGINT NOT NULL REFERENCES users(id),
			work_date DATE NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NULL,
			status TEXT NOT NULL DEFAULT 'started',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_task_times_one_open
			ON task_times (task_id) WHERE end_time IS NULL;`,
		`CREATE TABLE IF NOT EXISTS invitations (
			id BIGSERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			is_used BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS work_reports (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			report_date DATE NOT NULL,
			tasks_total INTEGER NOT NULL DEFAULT 0,
			tasks_completed INTEGER NOT NULL DEFAULT 0,
			minutes_worked INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS project_reports (
			id BIGSERIAL PRIMARY KEY,
			project_id BIGINT NOT NULL REFERENCES projects(id),
			report_date DATE NOT NULL,
			tasks_total INTEGER NOT NULL DEFAULT 0,
			tasks_completed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS client_reports (
			id BIGSERIAL PRIMARY KEY,
			client_id BIGINT NOT NULL REFERENCES clients(id),
			report_date DATE NOT NULL,
			projects_total INTEGER NOT NULL DEFAULT 0,
			tasks_total INTEGER NOT NULL DEFAULT 0,
			tasks_completed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (telegram_id, username, full_name, role, created_at)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		user.TelegramID, user.Username, user.FullName, string(user.Role), user.CreatedAt,
	)
	if err := row.Scan(&user.ID); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

const userColumns = `id, telegram_id, username, full_name, role, created_at`

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UserByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id=$1`, telegramID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user by telegram id: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0, 8)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (User, error) {
	set, args := buildSet(map[string]any{
		"username":  strPtrArg(upd.Username),
		"full_name": strPtrArg(upd.FullName),
		"role":      rolePtrArg(upd.Role),
	})
	if set == "" {
		return s.UserByID(ctx, id)
	}
	args = append(args, id)
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET `+set+` WHERE id=$`+itoa(len(args))+` RETURNING `+userColumns, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreateClient(ctx context.Context, name string) (Client, error) {
	now := time.Now().UTC()
	client := Client{Name: name, CreatedAt: now, UpdatedAt: now}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO clients (name, created_at, updated_at) VALUES ($1,$2,$3) RETURNING id`,
		client.Name, client.CreatedAt, client.UpdatedAt,
	)
	if err := row.Scan(&client.ID); err != nil {
		return Client{}, fmt.Errorf("insert client: %w", err)
	}
	return client, nil
}

func (s *PostgresStore) ClientByID(ctx context.Context, id int64) (Client, error) {
	var client Client
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM clients WHERE id=$1`, id)
	if err := row.Scan(&client.ID, &client.Name, &client.CreatedAt, &client.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

func (s *PostgresStore) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at, updated_at FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	out := make([]Client, 0, 8)
	for rows.Next() {
		var client Client
		if err := rows.Scan(&client.ID, &client.Name, &client.CreatedAt, &client.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client row: %w", err)
		}
		out = append(out, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client rows: %w", err)
	}
	return out, nil
}

const projectColumns = `id, name, client_id, description, start_date, end_date, status, created_at, updated_at`

func (s *PostgresStore) CreateProject(ctx context.Context, project Project) (Project, error) {
	now := time.Now().UTC()
	if project.Status == "" {
		project.Status = ProjectActive
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	row := s.pool.QueryRow(ctx,
		`INSERT INTO projects (name, client_id, description, start_date, end_date, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		project.Name, project.ClientID, project.Description, project.StartDate,
		project.EndDate, project.Status, project.CreatedAt, project.UpdatedAt,
	)
	if err := row.Scan(&project.ID); err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return project, nil
}

func (s *PostgresStore) ProjectByID(ctx context.Context, id int64) (Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, clientID *int64) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := []any{}
	if clientID != nil {
		query += ` WHERE client_id=$1`
		args = append(args, *clientID)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]Project, 0, 8)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		out = append(out, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (Project, error) {
	set, args := buildSet(map[string]any{
		"name":        strPtrArg(upd.Name),
		"description": strPtrArg(upd.Description),
		"status":      strPtrArg(upd.Status),
		"start_date":  timePtrArg(upd.StartDate),
		"end_date":    timePtrArg(upd.EndDate),
	})
	if set == "" {
		return s.ProjectByID(ctx, id)
	}
	args = append(args, time.Now().UTC())
	set += `, updated_at=$` + itoa(len(args))
	args = append(args, id)
	row := s.pool.QueryRow(ctx,
		`UPDATE projects SET `+set+` WHERE id=$`+itoa(len(args))+` RETURNING `+projectColumns, args...)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

const taskColumns = `id, title, description, status, creator_id, assignee_id, client_id, project_id, due_date, created_at, updated_at`

func (s *PostgresStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	now := time.Now().UTC()
	if task.Status == "" {
		task.Status = TaskNotStarted
	}
	task.CreatedAt = now
	task.UpdatedAt = now
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (title, description, status, creator_id, assignee_id, client_id, project_id, due_date, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		task.Title, task.Description, string(task.Status), task.CreatorID, task.AssigneeID,
		task.ClientID, task.ProjectID, task.DueDate, task.CreatedAt, task.UpdatedAt,
	)
	if err := row.Scan(&task.ID); err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) TaskByID(ctx context.Context, id int64) (Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	where := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return `$` + itoa(len(args))
	}
	if filter.AssigneeID != nil {
		where = append(where, `assignee_id=`+arg(*filter.AssigneeID))
	}
	if filter.ClientID != nil {
		where = append(where, `client_id=`+arg(*filter.ClientID))
	}
	if filter.ProjectID != nil {
		where = append(where, `project_id=`+arg(*filter.ProjectID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		where = append(where, `status = ANY(`+arg(statuses)+`)`)
	}
	if filter.CreatedFrom != nil {
		where = append(where, `created_at >= `+arg(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		where = append(where, `created_at <= `+arg(*filter.CreatedTo))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0, 8)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (Task, error) {
	set, args := buildSet(map[string]any{
		"title":       strPtrArg(upd.Title),
		"description": strPtrArg(upd.Description),
		"status":      statusPtrArg(upd.Status),
		"assignee_id": int64PtrArg(upd.AssigneeID),
		"due_date":    timePtrArg(upd.DueDate),
	})
	if set == "" {
		return s.TaskByID(ctx, id)
	}
	args = append(args, time.Now().UTC())
	set += `, updated_at=$` + itoa(len(args))
	args = append(args, id)
	row := s.pool.QueryRow(ctx,
		`UPDATE tasks SET `+set+` WHERE id=$`+itoa(len(args))+` RETURNING `+taskColumns, args...)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) TasksForAssignee(ctx context.Context, userID int64, onlyActive bool) ([]TaskWithRelations, error) {
	query := `SELECT t.id, t.title, t.description, t.status, t.creator_id, t.assignee_id,
	                 t.client_id, t.project_id, t.due_date, t.created_at, t.updated_at,
	                 COALESCE(c.name, ''), COALESCE(p.name, '')
	            FROM tasks t
	            LEFT JOIN clients c ON c.id = t.client_id
	            LEFT JOIN projects p ON p.id = t.project_id
	           WHERE t.assignee_id=$1`
	args := []any{userID}
	if onlyActive {
		query += ` AND t.status = ANY($2)`
		args = append(args, []string{string(TaskNotStarted), string(TaskInProgress)})
	}
	query += ` ORDER BY t.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks for assignee: %w", err)
	}
	defer rows.Close()

	out := make([]TaskWithRelations, 0, 8)
	for rows.Next() {
		var (
			row    TaskWithRelations
			status string
		)
		if err := rows.Scan(
			&row.ID, &row.Title, &row.Description, &status, &row.CreatorID, &row.AssigneeID,
			&row.ClientID, &row.ProjectID, &row.DueDate, &row.CreatedAt, &row.UpdatedAt,
			&row.ClientName, &row.ProjectName,
		); err != nil {
			return nil, fmt.Errorf("scan assignee task row: %w", err)
		}
		row.Status = TaskStatus(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignee task rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateTimeEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO task_times (task_id, user_id, work_date, start_time, end_time, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		entry.TaskID, entry.UserID, entry.WorkDate, entry.StartTime, entry.EndTime,
		entry.Status, entry.CreatedAt,
	)
	if err := row.Scan(&entry.ID); err != nil {
		return TimeEntry{}, fmt.Errorf("insert time entry: %w", err)
	}
	return entry, nil
}

const timeEntryColumns = `id, task_id, user_id, work_date, start_time, end_time, status, created_at`

func (s *PostgresStore) OpenTimeEntry(ctx context.Context, taskID int64) (TimeEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+timeEntryColumns+` FROM task_times
		  WHERE task_id=$1 AND end_time IS NULL ORDER BY id DESC LIMIT 1`, taskID)
	entry, err := scanTimeEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TimeEntry{}, ErrNotFound
		}
		return TimeEntry{}, fmt.Errorf("get open time entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) CloseTimeEntry(ctx context.Context, id int64, endTime time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE task_times SET end_time=$1, status=$2 WHERE id=$3`,
		endTime, TimeEntryCompleted, id)
	if err != nil {
		return fmt.Errorf("close time entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListTimeEntries(ctx context.Context, taskID int64) ([]TimeEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+timeEntryColumns+` FROM task_times WHERE task_id=$1 ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	out := make([]TimeEntry, 0, 4)
	for rows.Next() {
		entry, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry row: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time entry rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error) {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO invitations (code, expires_at, is_used, created_at)
		 VALUES ($1,$2,$3,$4) RETURNING id`,
		inv.Code, inv.ExpiresAt, inv.Used, inv.CreatedAt,
	)
	if err := row.Scan(&inv.ID); err != nil {
		return Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) InvitationByCode(ctx context.Context, code string) (Invitation, error) {
	var inv Invitation
	row := s.pool.QueryRow(ctx,
		`SELECT id, code, expires_at, is_used, created_at FROM invitations WHERE code=$1`, code)
	if err := row.Scan(&inv.ID, &inv.Code, &inv.ExpiresAt, &inv.Used, &inv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invitation{}, ErrNotFound
		}
		return Invitation{}, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) MarkInvitationUsed(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE invitations SET is_used=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("mark invitation used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveWorkReport(ctx context.Context, report WorkReport) (WorkReport, error) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO work_reports (user_id, report_date, tasks_total, tasks_completed, minutes_worked, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		report.UserID, report.ReportDate, report.TasksTotal, report.TasksCompleted,
		report.MinutesWorked, report.CreatedAt,
	)
	if err := row.Scan(&report.ID); err != nil {
		return WorkReport{}, fmt.Errorf("insert work report: %w", err)
	}
	return report, nil
}

func (s *PostgresStore) SaveProjectReport(ctx context.Context, report ProjectReport) (ProjectReport, error) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO project_reports (project_id, report_date, tasks_total, tasks_completed, created_at)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		report.ProjectID, report.ReportDate, report.TasksTotal, report.TasksCompleted, report.CreatedAt,
	)
	if err := row.Scan(&report.ID); err != nil {
		return ProjectReport{}, fmt.Errorf("insert project report: %w", err)
	}
	return report, nil
}

func (s *PostgresStore) SaveClientReport(ctx context.Context, report ClientReport) (ClientReport, error) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO client_reports (client_id, report_date, projects_total, tasks_total, tasks_completed, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		report.ClientID, report.ReportDate, report.ProjectsTotal, report.TasksTotal,
		report.TasksCompleted, report.CreatedAt,
	)
	if err := row.Scan(&report.ID); err != nil {
		return ClientReport{}, fmt.Errorf("insert client report: %w", err)
	}
	return report, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user User
		role string
	)
	if err := row.Scan(&user.ID, &user.TelegramID, &user.Username, &user.FullName, &role, &user.CreatedAt); err != nil {
		return User{}, err
	}
	user.Role = Role(role)
	return user, nil
}

func scanProject(row pgx.Row) (Project, error) {
	var project Project
	if err := row.Scan(
		&project.ID, &project.Name, &project.ClientID, &project.Description,
		&project.StartDate, &project.EndDate, &project.Status,
		&project.CreatedAt, &project.UpdatedAt,
	); err != nil {
		return Project{}, err
	}
	return project, nil
}

func scanTask(row pgx.Row) (Task, error) {
	var (
		task   Task
		status string
	)
	if err := row.Scan(
		&task.ID, &task.Title, &task.Description, &status, &task.CreatorID,
		&task.AssigneeID, &task.ClientID, &task.ProjectID, &task.DueDate,
		&task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return Task{}, err
	}
	task.Status = TaskStatus(status)
	return task, nil
}

func scanTimeEntry(row pgx.Row) (TimeEntry, error) {
	var entry TimeEntry
	if err := row.Scan(
		&entry.ID, &entry.TaskID, &entry.UserID, &entry.WorkDate, &entry.StartTime,
		&entry.EndTime, &entry.Status, &entry.CreatedAt,
	); err != nil {
		return TimeEntry{}, err
	}
	return entry, nil
}

// buildSet renders "col=$1, col2=$2" for the non-nil values only, keeping
// argument order stable for tests.
func buildSet(cols map[string]any) (string, []any) {
	names := make([]string, 0, len(cols))
	for name, v := range cols {
		if v == nil {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, cols[name])
		parts = append(parts, name+`=$`+itoa(len(args)))
	}
	return strings.Join(parts, ", "), args
}

func strPtrArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64PtrArg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func timePtrArg(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

func rolePtrArg(v *Role) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func statusPtrArg(v *TaskStatus) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
