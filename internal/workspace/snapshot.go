package workspace

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Empty returns a snapshot with every collection initialised.
func Empty() Snapshot {
	return Normalize(Snapshot{})
}

// Decode parses a persisted snapshot and normalizes it. Older payloads that
// predate notifications or working groups load with empty collections.
func Decode(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return Normalize(snapshot), nil
}

func Encode(snapshot Snapshot) ([]byte, error) {
	data, err := json.Marshal(Normalize(snapshot))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Normalize fills every optional collection, including nested ones, with an
// empty slice so consumers never have to nil-check. Nested collections are
// fixed up in fresh slices, so the backing arrays of s are never written and
// a snapshot shared between goroutines may be normalized concurrently.
func Normalize(s Snapshot) Snapshot {
	s.Users = nonNil(s.Users)
	s.Teams = normalizeEach(s.Teams, func(team *Team) {
		team.Projects = normalizeEach(team.Projects, func(project *Project) {
			project.Members = nonNil(project.Members)
			project.Tasks = nonNil(project.Tasks)
		})
	})
	s.Meetings = normalizeEach(s.Meetings, func(meeting *Meeting) {
		meeting.Attendees = nonNil(meeting.Attendees)
		meeting.ActionItems = nonNil(meeting.ActionItems)
	})
	s.Reports = nonNil(s.Reports)
	s.Notes = normalizeEach(s.Notes, func(note *Note) {
		note.Blocks = nonNil(note.Blocks)
	})
	s.WorkingGroups = normalizeEach(s.WorkingGroups, func(group *WorkingGroup) {
		group.MemberIDs = nonNil(group.MemberIDs)
		group.Sessions = normalizeEach(group.Sessions, func(session *GroupSession) {
			session.ActionItems = nonNil(session.ActionItems)
			session.Checklist = nonNil(session.Checklist)
		})
	})
	s.Notifications = nonNil(s.Notifications)
	return s
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// normalizeEach applies fix to every element of a copy of items.
func normalizeEach[T any](items []T, fix func(*T)) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := range out {
		fix(&out[i])
	}
	return out
}

// Clone returns a deep copy that shares no backing arrays with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Users = slices.Clone(s.Users)
	out.Teams = make([]Team, len(s.Teams))
	for i, team := range s.Teams {
		out.Teams[i] = team.Clone()
	}
	out.Meetings = make([]Meeting, len(s.Meetings))
	for i, meeting := range s.Meetings {
		meeting.Attendees = slices.Clone(meeting.Attendees)
		meeting.ActionItems = slices.Clone(meeting.ActionItems)
		out.Meetings[i] = meeting
	}
	out.Reports = slices.Clone(s.Reports)
	out.Notes = make([]Note, len(s.Notes))
	for i, note := range s.Notes {
		note.Blocks = slices.Clone(note.Blocks)
		out.Notes[i] = note
	}
	out.WorkingGroups = make([]WorkingGroup, len(s.WorkingGroups))
	for i, group := range s.WorkingGroups {
		group.MemberIDs = slices.Clone(group.MemberIDs)
		sessions := make([]GroupSession, len(group.Sessions))
		for j, session := range group.Sessions {
			session.ActionItems = slices.Clone(session.ActionItems)
			session.Checklist = slices.Clone(session.Checklist)
			sessions[j] = session
		}
		group.Sessions = sessions
		out.WorkingGroups[i] = group
	}
	out.Notifications = slices.Clone(s.Notifications)
	if s.LLMConfig != nil {
		cfg := *s.LLMConfig
		out.LLMConfig = &cfg
	}
	return Normalize(out)
}

func (t Team) Clone() Team {
	projects := make([]Project, len(t.Projects))
	for i, project := range t.Projects {
		projects[i] = project.Clone()
	}
	t.Projects = projects
	return t
}

func (p Project) Clone() Project {
	p.Members = slices.Clone(p.Members)
	p.Tasks = slices.Clone(p.Tasks)
	p.Context = slices.Clone(p.Context)
	p.Dependencies = slices.Clone(p.Dependencies)
	return p
}

func (s Snapshot) User(id string) (User, bool) {
	if id == "" {
		return User{}, false
	}
	for _, user := range s.Users {
		if user.ID == id {
			return user, true
		}
	}
	return User{}, false
}

func (s Snapshot) Team(id string) (Team, bool) {
	for _, team := range s.Teams {
		if team.ID == id {
			return team, true
		}
	}
	return Team{}, false
}

// ProjectOwner returns the team containing the project with the given id.
func (s Snapshot) ProjectOwner(projectID string) (Team, Project, bool) {
	for _, team := range s.Teams {
		for _, project := range team.Projects {
			if project.ID == projectID {
				return team, project, true
			}
		}
	}
	return Team{}, Project{}, false
}

func (p Project) HasMember(userID string) bool {
	for _, member := range p.Members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}
