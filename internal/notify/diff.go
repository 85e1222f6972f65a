// Package notify turns entity-level transitions into notification records.
//
// The diff functions are pure: they compare two versions of a collection and
// return typed events without touching either input. Rendering events into
// notifications and inserting them into a snapshot happens in the caller's
// mutation so that an entity write and its notifications commit together.
package notify

import "teamsync/api/internal/workspace"

// Event is a detected transition worth notifying about.
type Event struct {
	Type        workspace.NotificationType
	TeamID      string
	TeamName    string
	ProjectID   string
	ProjectName string
	TaskID      string
	TaskTitle   string
	ReportID    string
	UserID      string
	UserName    string
	WeekOf      string
}

// DiffTeam compares a stored team with its updated version. A nil original
// means the team is new, so every project in updated counts as created.
//
// Only projects new to the team, tasks new to an existing project and tasks
// moving into DONE produce events. Other status changes, including reopening
// a DONE task, are ignored.
func DiffTeam(original *workspace.Team, updated workspace.Team) []Event {
	var events []Event
	originalProjects := map[string]workspace.Project{}
	if original != nil {
		for _, project := range original.Projects {
			originalProjects[project.ID] = project
		}
	}

	for _, project := range updated.Projects {
		before, existed := originalProjects[project.ID]
		if !existed {
			events = append(events, Event{
				Type:        workspace.NotificationProjectCreated,
				TeamID:      updated.ID,
				TeamName:    updated.Name,
				ProjectID:   project.ID,
				ProjectName: project.Name,
			})
			continue
		}

		beforeTasks := make(map[string]workspace.Task, len(before.Tasks))
		for _, task := range before.Tasks {
			beforeTasks[task.ID] = task
		}
		for _, task := range project.Tasks {
			prior, existed := beforeTasks[task.ID]
			switch {
			case !existed:
				events = append(events, taskEvent(workspace.NotificationTaskAdded, updated, project, task))
			case prior.Status != workspace.TaskDone && task.Status == workspace.TaskDone:
				events = append(events, taskEvent(workspace.NotificationTaskClosed, updated, project, task))
			}
		}
	}
	return events
}

// DiffTeams runs DiffTeam for every team in next, matching teams by id.
// Teams that disappeared produce no events.
func DiffTeams(prev, next []workspace.Team) []Event {
	byID := make(map[string]workspace.Team, len(prev))
	for _, team := range prev {
		byID[team.ID] = team
	}

	var events []Event
	for _, team := range next {
		if original, ok := byID[team.ID]; ok {
			events = append(events, DiffTeam(&original, team)...)
			continue
		}
		events = append(events, DiffTeam(nil, team)...)
	}
	return events
}

// ReportSubmitted is emitted on every report save, create or update alike.
func ReportSubmitted(report workspace.WeeklyReport, owner workspace.User) Event {
	name := owner.DisplayName()
	if name == "" {
		name = report.UserID
	}
	return Event{
		Type:     workspace.NotificationReportSubmitted,
		ReportID: report.ID,
		UserID:   report.UserID,
		UserName: name,
		WeekOf:   report.WeekOf,
	}
}

// PreserveHiddenProjects re-attaches projects of original that are missing
// from incoming and that hidden reports as invisible to the editor. An editor
// who only sees part of a team therefore cannot drop projects they never saw.
func PreserveHiddenProjects(original, incoming workspace.Team, hidden func(workspace.Project) bool) workspace.Team {
	present := make(map[string]struct{}, len(incoming.Projects))
	for _, project := range incoming.Projects {
		present[project.ID] = struct{}{}
	}

	out := incoming.Clone()
	for _, project := range original.Projects {
		if _, ok := present[project.ID]; ok {
			continue
		}
		if hidden(project) {
			out.Projects = append(out.Projects, project.Clone())
		}
	}
	return out
}

func taskEvent(kind workspace.NotificationType, team workspace.Team, project workspace.Project, task workspace.Task) Event {
	return Event{
		Type:        kind,
		TeamID:      team.ID,
		TeamName:    team.Name,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		TaskID:      task.ID,
		TaskTitle:   task.Title,
		UserID:      task.AssigneeID,
	}
}
