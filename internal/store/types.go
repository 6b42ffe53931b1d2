package store

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	// TaskPostponed is declared for labeling but is not a target of any
	// validated transition; it can only appear via a direct status update.
	TaskPostponed TaskStatus = "postponed"
)

// ValidTaskStatuses are the statuses reachable through the documented flow.
var ValidTaskStatuses = []TaskStatus{TaskNotStarted, TaskInProgress, TaskCompleted}

func (s TaskStatus) Active() bool {
	return s == TaskNotStarted || s == TaskInProgress
}

// Label renders a status for chat messages.
func (s TaskStatus) Label() string {
	switch s {
	case TaskNotStarted:
		return "⏳ Not started"
	case TaskInProgress:
		return "🔄 In progress"
	case TaskCompleted:
		return "✅ Completed"
	case TaskPostponed:
		return "⏸ Postponed"
	default:
		return string(s)
	}
}

const (
	ProjectActive    = "active"
	ProjectCompleted = "completed"
)

const (
	TimeEntryStarted   = "started"
	TimeEntryCompleted = "completed"
)

type User struct {
	ID         int64      `json:"id"`
	TelegramID *int64     `json:"telegram_id,omitempty"`
	Username   string     `json:"username,omitempty"`
	FullName   string     `json:"full_name,omitempty"`
	Role       Role       `json:"role"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DisplayName prefers the full name, then the username, then the raw id.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	if u.TelegramID != nil {
		return userFallbackName(*u.TelegramID)
	}
	return "Unknown user"
}

type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Project struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	ClientID    *int64     `json:"client_id,omitempty"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	CreatorID   int64      `json:"creator_id"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
	ClientID    *int64     `json:"client_id,omitempty"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskWithRelations carries the client and project names alongside the task
// for list views that would otherwise need two extra lookups per row.
type TaskWithRelations struct {
	Task
	ClientName  string `json:"client_name,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
}

type TimeEntry struct {
	ID        int64      `json:"id"`
	TaskID    int64      `json:"task_id"`
	UserID    int64      `json:"user_id"`
	WorkDate  time.Time  `json:"work_date"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

func (e TimeEntry) Open() bool {
	return e.EndTime == nil
}

type Invitation struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// Report rows are write-once snapshots, never updated in place.

type WorkReport struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	ReportDate     time.Time `json:"report_date"`
	TasksTotal     int       `json:"tasks_total"`
	TasksCompleted int       `json:"tasks_completed"`
	MinutesWorked  int       `json:"minutes_worked"`
	CreatedAt      time.Time `json:"created_at"`
}

type ProjectReport struct {
	ID             int64     `json:"id"`
	ProjectID      int64     `json:"project_id"`
	ReportDate     time.Time `json:"report_date"`
	TasksTotal     int       `json:"tasks_total"`
	TasksCompleted int       `json:"tasks_completed"`
	CreatedAt      time.Time `json:"created_at"`
}

type ClientReport struct {
	ID             int64     `json:"id"`
	ClientID       int64     `json:"client_id"`
	ReportDate     time.Time `json:"report_date"`
	ProjectsTotal  int       `json:"projects_total"`
	TasksTotal     int       `json:"tasks_total"`
	TasksCompleted int       `json:"tasks_completed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Update structs enumerate only the mutable fields of each entity; nil
// means "leave unchanged". Ids and creation timestamps are not writable.

type UserUpdate struct {
	Username *string
	FullName *string
	Role     *Role
}

type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *string
	StartDate   *time.Time
	EndDate     *time.Time
}

type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	AssigneeID  *int64
	DueDate     *time.Time
}

// TaskFilter narrows ListTasks; zero values match everything.
type TaskFilter struct {
	AssigneeID  *int64
	ClientID    *int64
	ProjectID   *int64
	Statuses    []TaskStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
