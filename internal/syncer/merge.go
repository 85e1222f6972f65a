package syncer

import "teamsync/api/internal/workspace"

// Merge decides whether incoming replaces current. incoming wins only when
// its LastUpdated is strictly greater; equal timestamps keep current. When
// incoming wins, the session-owned fields (signed-in user, theme and model
// configuration) are carried over from current so that a sync can never sign
// the user out or flip their preferences.
func Merge(current, incoming workspace.Snapshot) (workspace.Snapshot, bool) {
	if incoming.LastUpdated <= current.LastUpdated {
		return current, false
	}
	merged := incoming
	merged.CurrentUserID = current.CurrentUserID
	merged.Theme = current.Theme
	merged.LLMConfig = current.LLMConfig
	return workspace.Normalize(merged), true
}
