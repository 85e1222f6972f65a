package workspace

// Upsert replaces the element sharing item's id, or appends item when no
// element matches. The input slice is not modified.
func Upsert[T any](items []T, item T, id func(T) string) []T {
	out := make([]T, 0, len(items)+1)
	replaced := false
	for _, existing := range items {
		if !replaced && id(existing) == id(item) {
			out = append(out, item)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

// Remove returns items without the element whose id matches. The second
// result reports whether anything was removed.
func Remove[T any](items []T, target string, id func(T) string) ([]T, bool) {
	out := make([]T, 0, len(items))
	removed := false
	for _, existing := range items {
		if id(existing) == target {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	return out, removed
}

func UserID(u User) string { return u.ID }
func TeamID(t Team) string { return t.ID }
func ProjectID(p Project) string { return p.ID }
func TaskID(t Task) string { return t.ID }
func ReportID(r WeeklyReport) string { return r.ID }
func MeetingID(m Meeting) string { return m.ID }
func NoteID(n Note) string { return n.ID }
func WorkingGroupID(g WorkingGroup) string { return g.ID }
