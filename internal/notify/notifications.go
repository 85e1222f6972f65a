package notify

import (
	"fmt"

	"teamsync/api/internal/workspace"
)

// Render converts events into unread notifications stamped with timestamp.
// The returned slice keeps the order of events.
func Render(events []Event, newID func() string, timestamp int64) []workspace.Notification {
	out := make([]workspace.Notification, 0, len(events))
	for _, event := range events {
		title, subtitle := describe(event)
		out = append(out, workspace.Notification{
			ID:        newID(),
			Type:      event.Type,
			Title:     title,
			Subtitle:  subtitle,
			Timestamp: timestamp,
			Data: workspace.NotificationData{
				TeamID:    event.TeamID,
				ProjectID: event.ProjectID,
				TaskID:    event.TaskID,
				ReportID:  event.ReportID,
				UserID:    event.UserID,
				WeekOf:    event.WeekOf,
			},
		})
	}
	return out
}

func describe(event Event) (string, string) {
	switch event.Type {
	case workspace.NotificationProjectCreated:
		return fmt.Sprintf("New project: %s", event.ProjectName), fmt.Sprintf("Team %s", event.TeamName)
	case workspace.NotificationTaskAdded:
		return fmt.Sprintf("New task: %s", event.TaskTitle), fmt.Sprintf("%s in team %s", event.ProjectName, event.TeamName)
	case workspace.NotificationTaskClosed:
		return fmt.Sprintf("Task completed: %s", event.TaskTitle), fmt.Sprintf("%s in team %s", event.ProjectName, event.TeamName)
	case workspace.NotificationReportSubmitted:
		return "Weekly report submitted", fmt.Sprintf("%s for the week of %s", event.UserName, event.WeekOf)
	default:
		return string(event.Type), ""
	}
}

// Prepend puts fresh in front of existing so the sequence stays
// most-recent-first. Neither input is modified.
func Prepend(existing, fresh []workspace.Notification) []workspace.Notification {
	out := make([]workspace.Notification, 0, len(existing)+len(fresh))
	out = append(out, fresh...)
	return append(out, existing...)
}

// MarkRead flags the notification with id as read. Order is preserved and
// the second result is false when no notification matched.
func MarkRead(items []workspace.Notification, id string) ([]workspace.Notification, bool) {
	out := make([]workspace.Notification, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == id {
			out[i].Read = true
			return out, true
		}
	}
	return out, false
}

func MarkAllRead(items []workspace.Notification) []workspace.Notification {
	out := make([]workspace.Notification, len(items))
	copy(out, items)
	for i := range out {
		out[i].Read = true
	}
	return out
}

func UnreadCount(items []workspace.Notification) int {
	count := 0
	for _, item := range items {
		if !item.Read {
			count++
		}
	}
	return count
}
