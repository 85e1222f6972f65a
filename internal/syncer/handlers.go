package syncer

import (
	"context"
	"fmt"
	"slices"

	"teamsync/api/internal/notify"
	"teamsync/api/internal/scope"
	"teamsync/api/internal/util"
	"teamsync/api/internal/workspace"
)

// SaveUser creates or replaces a user. A manager assignment that would make
// the user report to themselves, directly or through others, is rejected.
func (c *Coordinator) SaveUser(ctx context.Context, user workspace.User) (workspace.User, error) {
	if user.ID == "" {
		user.ID = util.NewID("usr")
	}
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		if user.ManagerID != "" {
			if user.ManagerID == user.ID || scope.Subordinates(s.Users, user.ID).Has(user.ManagerID) {
				return s, nil, fmt.Errorf("save user %s: %w", user.ID, ErrManagerCycle)
			}
		}
		s.Users = workspace.Upsert(s.Users, user, workspace.UserID)
		return s, nil, nil
	})
	return user, err
}

// DeleteUser removes a user. Their direct reports move up to the removed
// user's own manager so the reporting chain above them stays intact.
func (c *Coordinator) DeleteUser(ctx context.Context, userID string) error {
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		removed, ok := s.User(userID)
		if !ok {
			return s, nil, fmt.Errorf("delete user %s: %w", userID, ErrNotFound)
		}
		s.Users, _ = workspace.Remove(s.Users, userID, workspace.UserID)
		for i := range s.Users {
			if s.Users[i].ManagerID == userID {
				s.Users[i].ManagerID = removed.ManagerID
			}
		}
		return s, nil, nil
	})
	return err
}

// SaveTeam stores team. Projects of the stored team that are missing from
// team and invisible to the signed-in user are kept, so an editor with a
// partial view cannot remove what they cannot see. New projects, new tasks
// and completed tasks produce notifications.
func (c *Coordinator) SaveTeam(ctx context.Context, team workspace.Team) (workspace.Team, error) {
	team = withTeamIDs(team.Clone())
	var stored workspace.Team
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		stored = team
		if original, ok := s.Team(team.ID); ok {
			editor := s.CurrentUserID
			stored = notify.PreserveHiddenProjects(original, team, func(p workspace.Project) bool {
				return !scope.ProjectVisible(s, editor, original, p)
			})
		}
		s.Teams = workspace.Upsert(s.Teams, stored, workspace.TeamID)
		return s, nil, nil
	})
	return stored, err
}

func (c *Coordinator) DeleteTeam(ctx context.Context, teamID string) error {
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		var ok bool
		s.Teams, ok = workspace.Remove(s.Teams, teamID, workspace.TeamID)
		if !ok {
			return s, nil, fmt.Errorf("delete team %s: %w", teamID, ErrNotFound)
		}
		return s, nil, nil
	})
	return err
}

// SaveReport stores a weekly report and always announces it, whether the
// report is new or a resubmission.
func (c *Coordinator) SaveReport(ctx context.Context, report workspace.WeeklyReport) (workspace.WeeklyReport, error) {
	if report.ID == "" {
		report.ID = util.NewID("rpt")
	}
	report.UpdatedAt = c.now().UnixMilli()
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		owner, _ := s.User(report.UserID)
		s.Reports = workspace.Upsert(s.Reports, report, workspace.ReportID)
		return s, []notify.Event{notify.ReportSubmitted(report, owner)}, nil
	})
	return report, err
}

func (c *Coordinator) DeleteReport(ctx context.Context, reportID string) error {
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		var ok bool
		s.Reports, ok = workspace.Remove(s.Reports, reportID, workspace.ReportID)
		if !ok {
			return s, nil, fmt.Errorf("delete report %s: %w", reportID, ErrNotFound)
		}
		return s, nil, nil
	})
	return err
}

func (c *Coordinator) SaveMeeting(ctx context.Context, meeting workspace.Meeting) (workspace.Meeting, error) {
	if meeting.ID == "" {
		meeting.ID = util.NewID("mtg")
	}
	meeting.ActionItems = slices.Clone(meeting.ActionItems)
	for i := range meeting.ActionItems {
		if meeting.ActionItems[i].ID == "" {
			meeting.ActionItems[i].ID = util.NewID("act")
		}
	}
	_, err := c.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
		s.Meetings = workspace.Upsert(s.Meetings, meeting, workspace.MeetingID)
		return s
	})
	return meeting, err
}

func (c *Coordinator) DeleteMeeting(ctx context.Context, meetingID string) error {
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		var ok bool
		s.Meetings, ok = workspace.Remove(s.Meetings, meetingID, workspace.MeetingID)
		if !ok {
			return s, nil, fmt.Errorf("delete meeting %s: %w", meetingID, ErrNotFound)
		}
		return s, nil, nil
	})
	return err
}

func (c *Coordinator) SaveNote(ctx context.Context, note workspace.Note) (workspace.Note, error) {
	if note.ID == "" {
		note.ID = util.NewID("note")
	}
	note.UpdatedAt = c.now().UnixMilli()
	_, err := c.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
		s.Notes = workspace.Upsert(s.Notes, note, workspace.NoteID)
		return s
	})
	return note, err
}

func (c *Coordinator) DeleteNote(ctx context.Context, noteID string) error {
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		var ok bool
		s.Notes, ok = workspace.Remove(s.Notes, noteID, workspace.NoteID)
		if !ok {
			return s, nil, fmt.Errorf("delete note %s: %w", noteID, ErrNotFound)
		}
		return s, nil, nil
	})
	return err
}

func (c *Coordinator) SaveWorkingGroup(ctx context.Context, group workspace.WorkingGroup) (workspace.WorkingGroup, error) {
	if group.ID == "" {
		group.ID = util.NewID("wg")
	}
	group.Sessions = slices.Clone(group.Sessions)
	for i := range group.Sessions {
		if group.Sessions[i].ID == "" {
			group.Sessions[i].ID = util.NewID("ses")
		}
	}
	_, err := c.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
		s.WorkingGroups = workspace.Upsert(s.WorkingGroups, group, workspace.WorkingGroupID)
		return s
	})
	return group, err
}

func (c *Coordinator) DeleteWorkingGroup(ctx context.Context, groupID string) error {
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		var ok bool
		s.WorkingGroups, ok = workspace.Remove(s.WorkingGroups, groupID, workspace.WorkingGroupID)
		if !ok {
			return s, nil, fmt.Errorf("delete working group %s: %w", groupID, ErrNotFound)
		}
		return s, nil, nil
	})
	return err
}

// MarkNotificationRead flags one notification as read without reordering.
func (c *Coordinator) MarkNotificationRead(ctx context.Context, notificationID string) error {
	_, err := c.commit(ctx, func(s workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		var ok bool
		s.Notifications, ok = notify.MarkRead(s.Notifications, notificationID)
		if !ok {
			return s, nil, fmt.Errorf("mark notification %s read: %w", notificationID, ErrNotFound)
		}
		return s, nil, nil
	})
	return err
}

func (c *Coordinator) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
		s.Notifications = notify.MarkAllRead(s.Notifications)
		return s
	})
	return err
}

func (c *Coordinator) SetTheme(ctx context.Context, theme string) error {
	_, err := c.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
		s.Theme = theme
		return s
	})
	return err
}

func (c *Coordinator) SetLLMConfig(ctx context.Context, cfg workspace.LLMConfig) error {
	_, err := c.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
		s.LLMConfig = &cfg
		return s
	})
	return err
}

func withTeamIDs(team workspace.Team) workspace.Team {
	if team.ID == "" {
		team.ID = util.NewID("team")
	}
	for i := range team.Projects {
		project := &team.Projects[i]
		if project.ID == "" {
			project.ID = util.NewID("prj")
		}
		for j := range project.Tasks {
			if project.Tasks[j].ID == "" {
				project.Tasks[j].ID = util.NewID("task")
			}
		}
	}
	return team
}
