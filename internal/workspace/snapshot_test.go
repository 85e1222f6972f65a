package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDefaultsMissingCollections(t *testing.T) {
	legacy := []byte(`{"users":[{"id":"u1","firstName":"Ada","role":"EMPLOYEE"}],"teams":[{"id":"t1","name":"Core","managerId":"u1","projects":[{"id":"p1","name":"API"}]}],"lastUpdated":42}`)

	snapshot, err := Decode(legacy)
	require.NoError(t, err)

	assert.NotNil(t, snapshot.Notifications)
	assert.NotNil(t, snapshot.WorkingGroups)
	assert.NotNil(t, snapshot.Notes)
	assert.NotNil(t, snapshot.Meetings)
	assert.NotNil(t, snapshot.Teams[0].Projects[0].Tasks)
	assert.NotNil(t, snapshot.Teams[0].Projects[0].Members)
	assert.Equal(t, int64(42), snapshot.LastUpdated)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	require.Error(t, err)
}

func TestCloneSharesNoState(t *testing.T) {
	original := Normalize(Snapshot{
		Teams: []Team{{
			ID: "t1",
			Projects: []Project{{
				ID:    "p1",
				Tasks: []Task{{ID: "k1", Status: TaskOngoing}},
			}},
		}},
		Meetings:  []Meeting{{ID: "m1", Attendees: []string{"u1"}}},
		LLMConfig: &LLMConfig{Provider: "local", Model: "small"},
	})

	clone := original.Clone()
	clone.Teams[0].Projects[0].Tasks[0].Status = TaskDone
	clone.Meetings[0].Attendees[0] = "u2"
	clone.LLMConfig.Model = "large"

	assert.Equal(t, TaskOngoing, original.Teams[0].Projects[0].Tasks[0].Status)
	assert.Equal(t, "u1", original.Meetings[0].Attendees[0])
	assert.Equal(t, "small", original.LLMConfig.Model)
}

func TestNormalizeLeavesInputUntouched(t *testing.T) {
	teams := []Team{{ID: "t1", Projects: []Project{{ID: "p1"}}}}
	groups := []WorkingGroup{{ID: "g1", Sessions: []GroupSession{{ID: "s1"}}}}
	input := Snapshot{
		Teams:         teams,
		Meetings:      []Meeting{{ID: "m1"}},
		Notes:         []Note{{ID: "n1"}},
		WorkingGroups: groups,
	}

	got := Normalize(input)

	assert.NotNil(t, got.Teams[0].Projects[0].Tasks)
	assert.NotNil(t, got.Meetings[0].Attendees)
	assert.NotNil(t, got.WorkingGroups[0].Sessions[0].Checklist)
	assert.Nil(t, teams[0].Projects[0].Tasks)
	assert.Nil(t, teams[0].Projects[0].Members)
	assert.Nil(t, input.Meetings[0].Attendees)
	assert.Nil(t, input.Notes[0].Blocks)
	assert.Nil(t, groups[0].MemberIDs)
	assert.Nil(t, groups[0].Sessions[0].ActionItems)
}

func TestUpsertAndRemove(t *testing.T) {
	users := []User{{ID: "a", FirstName: "A"}, {ID: "b", FirstName: "B"}}

	updated := Upsert(users, User{ID: "b", FirstName: "Bee"}, UserID)
	require.Len(t, updated, 2)
	assert.Equal(t, "Bee", updated[1].FirstName)
	assert.Equal(t, "B", users[1].FirstName)

	appended := Upsert(users, User{ID: "c"}, UserID)
	assert.Len(t, appended, 3)

	remaining, removed := Remove(users, "a", UserID)
	assert.True(t, removed)
	assert.Equal(t, []User{{ID: "b", FirstName: "B"}}, remaining)

	_, removed = Remove(users, "zzz", UserID)
	assert.False(t, removed)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", User{FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
	assert.Equal(t, "Ada", User{FirstName: "Ada"}.DisplayName())
	assert.Equal(t, "Lovelace", User{LastName: "Lovelace"}.DisplayName())
}
