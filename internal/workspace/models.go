// Package workspace defines the shared workspace snapshot and its entities.
package workspace

type TaskStatus string

const (
	TaskToStart TaskStatus = "TO_START"
	TaskOngoing TaskStatus = "ONGOING"
	TaskBlocked TaskStatus = "BLOCKED"
	TaskDone    TaskStatus = "DONE"
)

type NotificationType string

const (
	NotificationProjectCreated  NotificationType = "PROJECT_CREATED"
	NotificationTaskAdded       NotificationType = "TASK_ADDED"
	NotificationTaskClosed      NotificationType = "TASK_CLOSED"
	NotificationReportSubmitted NotificationType = "REPORT_SUBMITTED"
)

// Snapshot is the full workspace state at one instant. A snapshot handed out
// by the state store must be treated as read-only; writers Clone first.
type Snapshot struct {
	Users         []User         `json:"users"`
	Teams         []Team         `json:"teams"`
	Meetings      []Meeting      `json:"meetings"`
	Reports       []WeeklyReport `json:"weeklyReports"`
	Notes         []Note         `json:"notes"`
	WorkingGroups []WorkingGroup `json:"workingGroups"`
	Notifications []Notification `json:"notifications"`
	CurrentUserID string         `json:"currentUserId,omitempty"`
	Theme         string         `json:"theme,omitempty"`
	LLMConfig     *LLMConfig     `json:"llmConfig,omitempty"`
	LastUpdated   int64          `json:"lastUpdated"`
}

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Title     string `json:"title,omitempty"`
	ManagerID string `json:"managerId,omitempty"`
	Role      string `json:"role"`
}

func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ManagerID string    `json:"managerId"`
	Projects  []Project `json:"projects"`
}

type Project struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	ManagerID    string         `json:"managerId,omitempty"`
	Members      []Member       `json:"members"`
	Tasks        []Task         `json:"tasks"`
	Context      []ContextLayer `json:"context,omitempty"`
	Dependencies []Dependency   `json:"dependencies,omitempty"`
}

type Member struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type ContextLayer struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Dependency struct {
	Name   string `json:"name"`
	Owner  string `json:"owner,omitempty"`
	Status string `json:"status,omitempty"`
}

type Task struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	AssigneeID string     `json:"assigneeId,omitempty"`
	DueDate    string     `json:"dueDate,omitempty"`
}

type Health struct {
	Team     string `json:"team,omitempty"`
	Project  string `json:"project,omitempty"`
	Personal string `json:"personal,omitempty"`
}

type WeeklyReport struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	WeekOf       string `json:"weekOf"`
	Health       Health `json:"health"`
	Achievements string `json:"achievements,omitempty"`
	Challenges   string `json:"challenges,omitempty"`
	NextSteps    string `json:"nextSteps,omitempty"`
	UpdatedAt    int64  `json:"updatedAt"`
}

type Meeting struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Date        string       `json:"date,omitempty"`
	Attendees   []string     `json:"attendees"`
	ActionItems []ActionItem `json:"actionItems"`
}

type ActionItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	OwnerID     string `json:"ownerId,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	Status      string `json:"status,omitempty"`
}

type Note struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Title     string      `json:"title"`
	Blocks    []NoteBlock `json:"blocks"`
	UpdatedAt int64       `json:"updatedAt,omitempty"`
}

type NoteBlock struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type WorkingGroup struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	MemberIDs []string       `json:"memberIds"`
	ProjectID string         `json:"projectId,omitempty"`
	Sessions  []GroupSession `json:"sessions"`
}

type GroupSession struct {
	ID          string          `json:"id"`
	Date        string          `json:"date,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	ActionItems []ActionItem    `json:"actionItems"`
	Checklist   []ChecklistItem `json:"checklist"`
}

type ChecklistItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Subtitle  string           `json:"subtitle"`
	Timestamp int64            `json:"timestamp"`
	Read      bool             `json:"read"`
	Data      NotificationData `json:"data"`
}

// NotificationData identifies the entity a notification refers to.
type NotificationData struct {
	TeamID    string `json:"teamId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	ReportID  string `json:"reportId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	WeekOf    string `json:"weekOf,omitempty"`
}

type LLMConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint,omitempty"`
}
