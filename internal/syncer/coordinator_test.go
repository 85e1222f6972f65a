package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamsync/api/internal/workspace"
)

func TestMergeAdoptsOnlyStrictlyNewer(t *testing.T) {
	cases := []struct {
		name     string
		current  int64
		incoming int64
		adopt    bool
	}{
		{name: "older", current: 200, incoming: 100, adopt: false},
		{name: "equal", current: 200, incoming: 200, adopt: false},
		{name: "newer", current: 200, incoming: 201, adopt: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			current := workspace.Snapshot{LastUpdated: tc.current, Users: []workspace.User{{ID: "local"}}}
			incoming := workspace.Snapshot{LastUpdated: tc.incoming, Users: []workspace.User{{ID: "remote"}}}

			got, adopted := Merge(current, incoming)

			assert.Equal(t, tc.adopt, adopted)
			if tc.adopt {
				assert.Equal(t, "remote", got.Users[0].ID)
				assert.Equal(t, tc.incoming, got.LastUpdated)
			} else {
				assert.Equal(t, current, got)
			}
		})
	}
}

func TestMergePreservesSessionFields(t *testing.T) {
	current := workspace.Snapshot{
		CurrentUserID: "carol",
		Theme:         "dark",
		LLMConfig:     &workspace.LLMConfig{Provider: "local", Model: "small"},
		LastUpdated:   1,
	}
	incoming := workspace.Snapshot{
		CurrentUserID: "mallory",
		Theme:         "light",
		LLMConfig:     &workspace.LLMConfig{Provider: "hosted", Model: "huge"},
		Teams:         []workspace.Team{{ID: "t1"}},
		LastUpdated:   2,
	}

	got, adopted := Merge(current, incoming)

	require.True(t, adopted)
	assert.Equal(t, "carol", got.CurrentUserID)
	assert.Equal(t, "dark", got.Theme)
	assert.Equal(t, current.LLMConfig, got.LLMConfig)
	assert.Equal(t, "t1", got.Teams[0].ID)
}

func TestBootstrapAdoptsNewerRemoteAndPersists(t *testing.T) {
	local := orgSnapshot(100)
	local.CurrentUserID = "carol"
	local.Theme = "dark"
	central := orgSnapshot(200)
	central.CurrentUserID = "alice"
	central.Theme = "light"
	central.Teams = []workspace.Team{{ID: "t1", Name: "Core"}}
	f := newFixture(local, central)

	require.NoError(t, f.coord.Bootstrap(context.Background()))

	got := f.coord.Snapshot()
	assert.Equal(t, int64(200), got.LastUpdated)
	assert.Equal(t, "carol", got.CurrentUserID)
	assert.Equal(t, "dark", got.Theme)
	require.Len(t, got.Teams, 1)
	assert.Equal(t, got, f.local.saved(), "merged snapshot persisted locally")

	status := f.coord.Status()
	assert.True(t, status.Online)
	assert.True(t, status.DataUpdated)
	assert.False(t, status.LastSynced.IsZero())
}

func TestBootstrapKeepsNewerLocalAndPushesIt(t *testing.T) {
	local := orgSnapshot(300)
	f := newFixture(local, orgSnapshot(200))

	require.NoError(t, f.coord.Bootstrap(context.Background()))

	assert.Equal(t, int64(300), f.coord.Snapshot().LastUpdated)
	assert.Equal(t, 1, f.remote.pushCount())
	assert.False(t, f.coord.Status().DataUpdated)
}

func TestBootstrapOffline(t *testing.T) {
	f := newFixture(orgSnapshot(100), orgSnapshot(200))
	f.remote.setOffline(true)

	require.NoError(t, f.coord.Bootstrap(context.Background()))

	assert.Equal(t, int64(100), f.coord.Snapshot().LastUpdated)
	assert.False(t, f.coord.Status().Online)
}

func TestBootstrapUnreadableLocalStartsEmpty(t *testing.T) {
	f := newFixture(workspace.Snapshot{}, workspace.Snapshot{})
	f.local.loadErr = errors.New("disk on fire")
	f.remote.setOffline(true)

	require.NoError(t, f.coord.Bootstrap(context.Background()))

	assert.Equal(t, workspace.Empty(), f.coord.Snapshot())
}

func TestPollOfflineLeavesSnapshotUntouched(t *testing.T) {
	f := newFixture(orgSnapshot(100), orgSnapshot(50))
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))
	before := f.coord.Snapshot()

	f.remote.setOffline(true)
	f.remote.set(orgSnapshot(900))
	f.coord.Poll(ctx)

	assert.Equal(t, before, f.coord.Snapshot())
	assert.False(t, f.coord.Status().Online)

	f.remote.setOffline(false)
	f.coord.Poll(ctx)

	assert.Equal(t, int64(900), f.coord.Snapshot().LastUpdated)
	assert.True(t, f.coord.Status().Online)
}

func TestPollWithNoNewerRemoteKeepsNotifications(t *testing.T) {
	f := newFixture(workspace.Snapshot{}, workspace.Snapshot{})
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))
	_, err := f.coord.SaveReport(ctx, workspace.WeeklyReport{UserID: "carol", WeekOf: "2026-10-12"})
	require.NoError(t, err)
	before := f.coord.Snapshot().Notifications
	require.Len(t, before, 1)

	stale := f.coord.Snapshot()
	stale.Notifications = nil
	f.remote.set(stale)
	f.coord.Poll(ctx)

	assert.Equal(t, before, f.coord.Snapshot().Notifications)
}

func TestPollDoesNotOverwriteMutationMadeDuringFetch(t *testing.T) {
	f := newFixture(orgSnapshot(100), orgSnapshot(100))
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))

	f.remote.set(orgSnapshot(5_000))
	f.remote.beforeReply = func() {
		_, err := f.coord.SaveNote(ctx, workspace.Note{ID: "n-local", UserID: "carol"})
		require.NoError(t, err)
	}
	f.coord.Poll(ctx)

	got := f.coord.Snapshot()
	assert.Equal(t, int64(10_000), got.LastUpdated)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "n-local", got.Notes[0].ID)
}

func TestApplyMutationStampsStrictlyIncreasing(t *testing.T) {
	f := newFixture(workspace.Snapshot{}, workspace.Snapshot{})
	ctx := context.Background()

	var stamps []int64
	for i := 0; i < 3; i++ {
		next, err := f.coord.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
			s.Theme = "dark"
			return s
		})
		require.NoError(t, err)
		stamps = append(stamps, next.LastUpdated)
	}

	assert.Equal(t, []int64{10_000, 10_001, 10_002}, stamps)
	assert.Equal(t, int64(10_002), f.local.saved().LastUpdated)
	assert.Equal(t, 3, f.remote.pushCount())
}

func TestApplyMutationConcurrentWritersLoseNothing(t *testing.T) {
	f := newFixture(workspace.Snapshot{}, workspace.Snapshot{})
	ctx := context.Background()
	f.remote.setOffline(true)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
				s.Notes = append(s.Notes, workspace.Note{ID: fmt.Sprintf("note-%d", i)})
				return s
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got := f.coord.Snapshot()
	assert.Len(t, got.Notes, 10)
	assert.Equal(t, int64(10_009), got.LastUpdated)
	assert.Equal(t, got.LastUpdated, f.local.saved().LastUpdated)
	assert.Len(t, f.local.saved().Notes, 10)
}

func TestApplyMutationDoesNotLeakWritesIntoPreviousSnapshot(t *testing.T) {
	f := newFixture(workspace.Snapshot{Teams: []workspace.Team{{ID: "t1", Projects: []workspace.Project{{ID: "p1"}}}}}, workspace.Snapshot{})
	ctx := context.Background()
	f.remote.setOffline(true)
	require.NoError(t, f.coord.Bootstrap(ctx))
	before := f.coord.Snapshot()

	_, err := f.coord.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
		s.Teams[0].Projects[0].Name = "renamed"
		return s
	})
	require.NoError(t, err)

	assert.Equal(t, "", before.Teams[0].Projects[0].Name)
	assert.Equal(t, "renamed", f.coord.Snapshot().Teams[0].Projects[0].Name)
}

func TestApplyMutationPersistFailureSkipsMutation(t *testing.T) {
	f := newFixture(workspace.Snapshot{}, workspace.Snapshot{})
	f.local.saveErr = errors.New("read-only filesystem")
	before := f.coord.Snapshot()

	_, err := f.coord.ApplyMutation(context.Background(), func(s workspace.Snapshot) workspace.Snapshot {
		s.Theme = "dark"
		return s
	})

	require.Error(t, err)
	assert.Equal(t, before, f.coord.Snapshot())
	assert.Equal(t, 0, f.remote.pushCount())
}

func TestApplyMutationOfflinePushMarksOffline(t *testing.T) {
	f := newFixture(workspace.Snapshot{}, workspace.Snapshot{})
	f.remote.setOffline(true)
	ctx := context.Background()

	_, err := f.coord.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot { return s })
	require.NoError(t, err)
	assert.False(t, f.coord.Status().Online)

	f.remote.setOffline(false)
	f.coord.Poll(ctx)
	assert.Equal(t, 1, f.remote.pushCount(), "next poll delivers the pending snapshot")
	assert.True(t, f.coord.Status().Online)
}

func TestLoginInstallsCentralSnapshotWithUser(t *testing.T) {
	local := orgSnapshot(100)
	local.Theme = "dark"
	central := orgSnapshot(20_000)
	central.Teams = []workspace.Team{{ID: "t-central"}}
	f := newFixture(local, central)
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))
	epoch := f.coord.Status().SessionEpoch

	got, err := f.coord.Login(ctx, "carol")
	require.NoError(t, err)

	assert.Equal(t, "carol", got.CurrentUserID)
	assert.Equal(t, "dark", got.Theme)
	assert.Equal(t, int64(20_001), got.LastUpdated)
	assert.Equal(t, "t-central", got.Teams[0].ID)
	assert.Equal(t, got, f.local.saved())
	assert.False(t, f.coord.Status().DataUpdated, "pre-login signal cleared")
	assert.Equal(t, epoch+1, f.coord.Status().SessionEpoch)
}

func TestLoginFallsBackToCurrentWhenOffline(t *testing.T) {
	f := newFixture(orgSnapshot(100), workspace.Snapshot{})
	f.remote.setOffline(true)
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))

	got, err := f.coord.Login(ctx, "dave")
	require.NoError(t, err)

	assert.Equal(t, "dave", got.CurrentUserID)
	assert.Equal(t, int64(10_000), got.LastUpdated)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(orgSnapshot(100), orgSnapshot(100))
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))

	_, err := f.coord.Login(ctx, "ghost")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "", f.coord.Snapshot().CurrentUserID)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(orgSnapshot(100), orgSnapshot(100))
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))
	_, err := f.coord.Login(ctx, "alice")
	require.NoError(t, err)
	epoch := f.coord.Status().SessionEpoch

	require.NoError(t, f.coord.Logout(ctx))

	assert.Equal(t, "", f.coord.Snapshot().CurrentUserID)
	assert.Equal(t, "", f.local.saved().CurrentUserID)
	assert.Equal(t, epoch+1, f.coord.Status().SessionEpoch)
}

func TestStartPollsUntilStopped(t *testing.T) {
	f := newFixture(orgSnapshot(100), orgSnapshot(100), func(o *Options) {
		o.PollInterval = 5 * time.Millisecond
	})
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))
	require.NoError(t, f.coord.Start(ctx))
	assert.ErrorIs(t, f.coord.Start(ctx), ErrAlreadyStarted)

	f.remote.set(orgSnapshot(700))
	require.Eventually(t, func() bool {
		return f.coord.Snapshot().LastUpdated == 700
	}, 2*time.Second, 5*time.Millisecond)

	f.coord.Stop()
	f.coord.Stop()
	fetches := f.remote.fetchCount()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, fetches, f.remote.fetchCount(), "no polling after Stop")
	assert.True(t, f.local.unsubscribed)
	assert.False(t, f.coord.Status().DataUpdated)
}

func TestLocalUpdatesAdoptedWhenNewer(t *testing.T) {
	f := newFixture(orgSnapshot(100), workspace.Snapshot{})
	f.remote.setOffline(true)
	ctx := context.Background()
	require.NoError(t, f.coord.Bootstrap(ctx))
	require.NoError(t, f.coord.Start(ctx))
	defer f.coord.Stop()

	older := orgSnapshot(50)
	older.CurrentUserID = "bob"
	f.local.emit(older)
	assert.Equal(t, int64(100), f.coord.Snapshot().LastUpdated)

	newer := orgSnapshot(150)
	newer.CurrentUserID = "bob"
	f.local.emit(newer)
	assert.Equal(t, int64(150), f.coord.Snapshot().LastUpdated)
	assert.Equal(t, "bob", f.coord.Snapshot().CurrentUserID)
}

func TestDataUpdatedSignalAutoClears(t *testing.T) {
	f := newFixture(orgSnapshot(100), orgSnapshot(200), func(o *Options) {
		o.UpdatedSignal = 20 * time.Millisecond
	})

	require.NoError(t, f.coord.Bootstrap(context.Background()))
	assert.True(t, f.coord.Status().DataUpdated)

	require.Eventually(t, func() bool {
		return !f.coord.Status().DataUpdated
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStoreSubscribersSeeAdoptedSnapshots(t *testing.T) {
	f := newFixture(orgSnapshot(100), orgSnapshot(300))
	var seen []int64
	unsubscribe := f.coord.Store().Subscribe(func(s workspace.Snapshot) {
		seen = append(seen, s.LastUpdated)
	})
	defer unsubscribe()

	require.NoError(t, f.coord.Bootstrap(context.Background()))

	assert.Equal(t, []int64{100, 300}, seen)
}
