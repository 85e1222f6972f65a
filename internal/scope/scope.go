// Package scope derives the part of a workspace snapshot a given user is
// allowed to see, based on the reporting lines in the org chart.
package scope

import (
	"teamsync/api/internal/rbac"
	"teamsync/api/internal/workspace"
)

// IDSet is a set of user ids.
type IDSet map[string]struct{}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) HasAny(ids ...string) bool {
	for _, id := range ids {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// Subordinates returns every user that reports to rootID directly or
// transitively. rootID itself is only included when the manager graph
// loops back to it. Each id is visited at most once, so cycles terminate.
func Subordinates(users []workspace.User, rootID string) IDSet {
	reports := make(map[string][]string, len(users))
	for _, user := range users {
		if user.ManagerID == "" {
			continue
		}
		reports[user.ManagerID] = append(reports[user.ManagerID], user.ID)
	}

	visited := IDSet{rootID: {}}
	out := IDSet{}
	queue := []string{rootID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range reports[current] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			out[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return out
}

// AccessibleIDs is the viewer plus everyone below them in the org chart.
func AccessibleIDs(users []workspace.User, viewerID string) IDSet {
	ids := Subordinates(users, viewerID)
	ids[viewerID] = struct{}{}
	return ids
}

// Resolve returns the view of s that viewerID is authorized to see. An
// empty viewer and administrators get the whole snapshot, while an id that
// names no user sees nothing but metadata. The input is never modified.
func Resolve(s workspace.Snapshot, viewerID string) workspace.Snapshot {
	s = workspace.Normalize(s)
	if viewerID == "" {
		return s
	}
	viewer, ok := s.User(viewerID)
	if !ok {
		return withoutContent(s)
	}
	if rbac.Can(rbac.Normalize(viewer.Role), rbac.ActionSeeAll) {
		return s
	}

	accessible := AccessibleIDs(s.Users, viewer.ID)
	out := s
	out.Users = filter(s.Users, func(u workspace.User) bool {
		return accessible.Has(u.ID)
	})
	out.Reports = filter(s.Reports, func(r workspace.WeeklyReport) bool {
		return accessible.Has(r.UserID)
	})
	out.Notes = filter(s.Notes, func(n workspace.Note) bool {
		return accessible.Has(n.UserID)
	})
	out.WorkingGroups = filter(s.WorkingGroups, func(g workspace.WorkingGroup) bool {
		return workingGroupVisible(s, viewer.ID, g)
	})
	out.Meetings = filter(s.Meetings, func(m workspace.Meeting) bool {
		return meetingVisible(accessible, m)
	})
	out.Teams = visibleTeams(s.Teams, viewer.ID, accessible)
	out.Notifications = filter(s.Notifications, func(n workspace.Notification) bool {
		return NotificationVisible(s, viewer, accessible, n)
	})
	return out
}

func withoutContent(s workspace.Snapshot) workspace.Snapshot {
	s.Users = []workspace.User{}
	s.Teams = []workspace.Team{}
	s.Meetings = []workspace.Meeting{}
	s.Reports = []workspace.WeeklyReport{}
	s.Notes = []workspace.Note{}
	s.WorkingGroups = []workspace.WorkingGroup{}
	s.Notifications = []workspace.Notification{}
	return s
}

func workingGroupVisible(s workspace.Snapshot, viewerID string, group workspace.WorkingGroup) bool {
	for _, memberID := range group.MemberIDs {
		if memberID == viewerID {
			return true
		}
	}
	if group.ProjectID == "" {
		return false
	}
	team, project, ok := s.ProjectOwner(group.ProjectID)
	if !ok {
		return false
	}
	return project.ManagerID == viewerID || project.HasMember(viewerID) || team.ManagerID == viewerID
}

func meetingVisible(accessible IDSet, meeting workspace.Meeting) bool {
	if accessible.HasAny(meeting.Attendees...) {
		return true
	}
	for _, item := range meeting.ActionItems {
		if accessible.Has(item.OwnerID) {
			return true
		}
	}
	return false
}

func projectVisible(accessible IDSet, project workspace.Project) bool {
	if project.ManagerID != "" && accessible.Has(project.ManagerID) {
		return true
	}
	for _, member := range project.Members {
		if accessible.Has(member.UserID) {
			return true
		}
	}
	return false
}

func visibleTeams(teams []workspace.Team, viewerID string, accessible IDSet) []workspace.Team {
	out := make([]workspace.Team, 0, len(teams))
	for _, team := range teams {
		if team.ManagerID == viewerID {
			out = append(out, team)
			continue
		}
		projects := filter(team.Projects, func(p workspace.Project) bool {
			return projectVisible(accessible, p)
		})
		if len(projects) == 0 {
			continue
		}
		team.Projects = projects
		out = append(out, team)
	}
	return out
}

// NotificationVisible applies the per-type notification rule for a
// non-admin viewer.
func NotificationVisible(s workspace.Snapshot, viewer workspace.User, accessible IDSet, n workspace.Notification) bool {
	switch n.Type {
	case workspace.NotificationProjectCreated:
		if rbac.Normalize(viewer.Role) == rbac.RoleManager {
			return true
		}
		team, ok := s.Team(n.Data.TeamID)
		return ok && team.ManagerID == viewer.ID
	case workspace.NotificationTaskAdded, workspace.NotificationTaskClosed:
		return true
	default:
		return n.Data.UserID != "" && accessible.Has(n.Data.UserID)
	}
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// ProjectVisible reports whether viewerID can see project inside team. It
// mirrors the team filter of Resolve: unknown viewers and administrators see
// everything and team managers see their whole team.
func ProjectVisible(s workspace.Snapshot, viewerID string, team workspace.Team, project workspace.Project) bool {
	viewer, ok := s.User(viewerID)
	if !ok || rbac.Can(rbac.Normalize(viewer.Role), rbac.ActionSeeAll) {
		return true
	}
	if team.ManagerID == viewer.ID {
		return true
	}
	return projectVisible(AccessibleIDs(s.Users, viewer.ID), project)
}
