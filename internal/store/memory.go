package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a simple in-process store for local/dev use and tests.
// It assigns ids from a single counter and mirrors the postgres store's
// invariants, including the one-open-time-entry-per-task rule.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64

	users          map[int64]User
	clients        map[int64]Client
	projects       map[int64]Project
	tasks          map[int64]Task
	timeEntries    map[int64]TimeEntry
	invitations    map[int64]Invitation
	workReports    map[int64]WorkReport
	projectReports map[int64]ProjectReport
	clientReports  map[int64]ClientReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:          make(map[int64]User),
		clients:        make(map[int64]Client),
		projects:       make(map[int64]Project),
		tasks:          make(map[int64]Task),
		timeEntries:    make(map[int64]TimeEntry),
		invitations:    make(map[int64]Invitation),
		workReports:    make(map[int64]WorkReport),
		projectReports: make(map[int64]ProjectReport),
		clientReports:  make(map[int64]ClientReport),
	}
}

func (s *MemoryStore) allocate() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.TelegramID != nil {
		for _, existing := range s.users {
			if existing.TelegramID != nil && *existing.TelegramID == *user.TelegramID {
				return User{}, errDuplicate("users", "telegram_id")
			}
		}
	}
	user.ID = s.allocate()
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) UserByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) UserByTelegramID(_ context.Context, telegramID int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.TelegramID != nil && *user.TelegramID == telegramID {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, id int64, upd UserUpdate) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.Username != nil {
		user.Username = *upd.Username
	}
	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	s.users[id] = user
	return user, nil
}

func (s *MemoryStore) CreateClient(_ context.Context, name string) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	client := Client{ID: s.allocate(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.clients[client.ID] = client
	return client, nil
}

func (s *MemoryStore) ClientByID(_ context.Context, id int64) (Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return client, nil
}

func (s *MemoryStore) ListClients(_ context.Context) ([]Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Client, 0, len(s.clients))
	for _, client := range s.clients {
		out = append(out, client)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateProject(_ context.Context, project Project) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	project.ID = s.allocate()
	if project.Status == "" {
		project.Status = ProjectActive
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	s.projects[project.ID] = project
	return project, nil
}

func (s *MemoryStore) ProjectByID(_ context.Context, id int64) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return project, nil
}

func (s *MemoryStore) ListProjects(_ context.Context, clientID *int64) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, project := range s.projects {
		if clientID != nil && (project.ClientID == nil || *project.ClientID != *clientID) {
			continue
		}
		out = append(out, project)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, id int64, upd ProjectUpdate) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	if upd.Name != nil {
		project.Name = *upd.Name
	}
	if upd.Description != nil {
		project.Description = *upd.Description
	}
	if upd.Status != nil {
		project.Status = *upd.Status
	}
	if upd.StartDate != nil {
		project.StartDate = upd.StartDate
	}
	if upd.EndDate != nil {
		project.EndDate = upd.EndDate
	}
	project.UpdatedAt = time.Now().UTC()
	s.projects[id] = project
	return project, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	task.ID = s.allocate()
	if task.Status == "" {
		task.Status = TaskNotStarted
	}
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = task
	return task, nil
}

func (s *MemoryStore) TaskByID(_ context.Context, id int64) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return task, nil
}

func (s *MemoryStore) ListTasks(_ context.Context, filter TaskFilter) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if !matchTask(task, filter) {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchTask(task Task, filter TaskFilter) bool {
	if filter.AssigneeID != nil && (task.AssigneeID == nil || *task.AssigneeID != *filter.AssigneeID) {
		return false
	}
	if filter.ClientID != nil && (task.ClientID == nil || *task.ClientID != *filter.ClientID) {
		return false
	}
	if filter.ProjectID != nil && (task.ProjectID == nil || *task.ProjectID != *filter.ProjectID) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if task.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CreatedFrom != nil && task.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && task.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func (s *MemoryStore) UpdateTask(_ context.Context, id int64, upd TaskUpdate) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	if upd.Title != nil {
		task.Title = *upd.Title
	}
	if upd.Description != nil {
		task.Description = *upd.Description
	}
	if upd.Status != nil {
		task.Status = *upd.Status
	}
	if upd.AssigneeID != nil {
		task.AssigneeID = upd.AssigneeID
	}
	if upd.DueDate != nil {
		task.DueDate = upd.DueDate
	}
	task.UpdatedAt = time.Now().UTC()
	s.tasks[id] = task
	return task, nil
}

func (s *MemoryStore) TasksForAssignee(_ context.Context, userID int64, onlyActive bool) ([]TaskWithRelations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskWithRelations, 0, 4)
	for _, task := range s.tasks {
		if task.AssigneeID == nil || *task.AssigneeID != userID {
			continue
		}
		if onlyActive && !task.Status.Active() {
			continue
		}
		row := TaskWithRelations{Task: task}
		if task.ClientID != nil {
			if client, ok := s.clients[*task.ClientID]; ok {
				row.ClientName = client.Name
			}
		}
		if task.ProjectID != nil {
			if project, ok := s.projects[*task.ProjectID]; ok {
				row.ProjectName = project.Name
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateTimeEntry(_ context.Context, entry TimeEntry) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.EndTime == nil {
		for _, existing := range s.timeEntries {
			if existing.TaskID == entry.TaskID && existing.EndTime == nil {
				return TimeEntry{}, errDuplicate("task_times", "open entry")
			}
		}
	}
	entry.ID = s.allocate()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.timeEntries[entry.ID] = entry
	return entry, nil
}

func (s *MemoryStore) OpenTimeEntry(_ context.Context, taskID int64) (TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *TimeEntry
	for id := range s.timeEntries {
		entry := s.timeEntries[id]
		if entry.TaskID != taskID || entry.EndTime != nil {
			continue
		}
		if latest == nil || entry.ID > latest.ID {
			latest = &entry
		}
	}
	if latest == nil {
		return TimeEntry{}, ErrNotFound
	}
	return *latest, nil
}

func (s *MemoryStore) CloseTimeEntry(_ context.Context, id int64, endTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.timeEntries[id]
	if !ok {
		return ErrNotFound
	}
	entry.EndTime = &endTime
	entry.Status = TimeEntryCompleted
	s.timeEntries[id] = entry
	return nil
}

func (s *MemoryStore) ListTimeEntries(_ context.Context, taskID int64) ([]TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TimeEntry, 0, 4)
	for _, entry := range s.timeEntries {
		if entry.TaskID == taskID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateInvitation(_ context.Context, inv Invitation) (Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.invitations {
		if existing.Code == inv.Code {
			return Invitation{}, errDuplicate("invitations", "code")
		}
	}
	inv.ID = s.allocate()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	s.invitations[inv.ID] = inv
	return inv, nil
}

func (s *MemoryStore) InvitationByCode(_ context.Context, code string) (Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invitations {
		if inv.Code == code {
			return inv, nil
		}
	}
	return Invitation{}, ErrNotFound
}

func (s *MemoryStore) MarkInvitationUsed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return ErrNotFound
	}
	inv.Used = true
	s.invitations[id] = inv
	return nil
}

func (s *MemoryStore) SaveWorkReport(_ context.Context, report WorkReport) (WorkReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report.ID = s.allocate()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	s.workReports[report.ID] = report
	return report, nil
}

func (s *MemoryStore) SaveProjectReport(_ context.Context, report ProjectReport) (ProjectReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report.ID = s.allocate()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	s.projectReports[report.ID] = report
	return report, nil
}

func (s *MemoryStore) SaveClientReport(_ context.Context, report ClientReport) (ClientReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report.ID = s.allocate()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	s.clientReports[report.ID] = report
	return report, nil
}

func (s *MemoryStore) Close() error { return nil }
