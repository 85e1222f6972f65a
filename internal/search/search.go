package search

import (
	"strings"

	"teamsync/api/internal/workspace"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTask   ResultType = "task"
	ResultNote   ResultType = "note"
	ResultReport ResultType = "report"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	UserID    string     `json:"userId,omitempty"`
	TeamID    string     `json:"teamId,omitempty"`
	ProjectID string     `json:"projectId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	AssigneeID  string `json:"assigneeId"`
	TeamID      string `json:"teamId"`
	TeamName    string `json:"teamName"`
	ProjectID   string `json:"projectId"`
	ProjectName string `json:"projectName"`
}

// NoteRecord is the data we index for a note. Body joins the note's blocks.
type NoteRecord struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// ReportRecord is the data we index for a weekly report.
type ReportRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	WeekOf   string `json:"weekOf"`
	Body     string `json:"body"`
}

// Records is everything searchable in one snapshot.
type Records struct {
	Tasks   []TaskRecord
	Notes   []NoteRecord
	Reports []ReportRecord
}

func RecordsFrom(s workspace.Snapshot) Records {
	var out Records
	for _, team := range s.Teams {
		for _, project := range team.Projects {
			for _, task := range project.Tasks {
				out.Tasks = append(out.Tasks, TaskRecord{
					ID:          task.ID,
					Title:       task.Title,
					Status:      string(task.Status),
					AssigneeID:  task.AssigneeID,
					TeamID:      team.ID,
					TeamName:    team.Name,
					ProjectID:   project.ID,
					ProjectName: project.Name,
				})
			}
		}
	}
	for _, note := range s.Notes {
		blocks := make([]string, 0, len(note.Blocks))
		for _, block := range note.Blocks {
			if strings.TrimSpace(block.Content) != "" {
				blocks = append(blocks, block.Content)
			}
		}
		out.Notes = append(out.Notes, NoteRecord{
			ID:     note.ID,
			UserID: note.UserID,
			Title:  note.Title,
			Body:   strings.Join(blocks, "\n"),
		})
	}
	for _, report := range s.Reports {
		name := report.UserID
		if user, ok := s.User(report.UserID); ok && user.DisplayName() != "" {
			name = user.DisplayName()
		}
		body := strings.TrimSpace(strings.Join([]string{report.Achievements, report.Challenges, report.NextSteps}, "\n"))
		out.Reports = append(out.Reports, ReportRecord{
			ID:       report.ID,
			UserID:   report.UserID,
			UserName: name,
			WeekOf:   report.WeekOf,
			Body:     body,
		})
	}
	return out
}

// allowed returns the result keys a viewer may see, keyed by type and id.
func (r Records) allowed() map[ResultType]map[string]struct{} {
	out := map[ResultType]map[string]struct{}{
		ResultTask:   {},
		ResultNote:   {},
		ResultReport: {},
	}
	for _, task := range r.Tasks {
		out[ResultTask][task.ID] = struct{}{}
	}
	for _, note := range r.Notes {
		out[ResultNote][note.ID] = struct{}{}
	}
	for _, report := range r.Reports {
		out[ResultReport][report.ID] = struct{}{}
	}
	return out
}
