package search

import (
	"strings"
	"unicode/utf8"
)

const snippetRunes = 120

// Memory searches a fixed set of records by case-insensitive term
// matching. Every term must occur in the record for it to match.
type Memory struct {
	records Records
}

func NewMemory(records Records) *Memory {
	return &Memory{records: records}
}

func (m *Memory) Healthy() bool { return true }

func (m *Memory) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}

	var matches []Result
	if q.FilterType == "" || q.FilterType == ResultTask {
		for _, task := range m.records.Tasks {
			if matchAll(terms, task.Title, task.ProjectName, task.TeamName) {
				matches = append(matches, Result{
					Type:      ResultTask,
					ID:        task.ID,
					Title:     task.Title,
					Snippet:   task.ProjectName + " in " + task.TeamName,
					UserID:    task.AssigneeID,
					TeamID:    task.TeamID,
					ProjectID: task.ProjectID,
				})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultNote {
		for _, note := range m.records.Notes {
			if matchAll(terms, note.Title, note.Body) {
				matches = append(matches, Result{
					Type:    ResultNote,
					ID:      note.ID,
					Title:   note.Title,
					Snippet: snippet(note.Body, terms[0]),
					UserID:  note.UserID,
				})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultReport {
		for _, report := range m.records.Reports {
			if matchAll(terms, report.UserName, report.WeekOf, report.Body) {
				matches = append(matches, Result{
					Type:    ResultReport,
					ID:      report.ID,
					Title:   report.UserName + ", week of " + report.WeekOf,
					Snippet: snippet(report.Body, terms[0]),
					UserID:  report.UserID,
				})
			}
		}
	}

	return paginate(matches, q.Offset, q.Limit), len(matches), nil
}

func matchAll(terms []string, fields ...string) bool {
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// snippet cuts text down to a window that starts near the first occurrence
// of term.
func snippet(text, term string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	lower := strings.ToLower(text)
	from := 0
	if at := strings.Index(lower, term); at > 0 && utf8.RuneCountInString(lower) == len(runes) {
		from = max(utf8.RuneCountInString(lower[:at])-snippetRunes/4, 0)
	}
	to := min(from+snippetRunes, len(runes))
	out := string(runes[from:to])
	if from > 0 {
		out = "…" + out
	}
	if to < len(runes) {
		out += "…"
	}
	return out
}

func paginate(results []Result, offset, limit int) []Result {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []Result{}
	}
	results = results[offset:]
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}
