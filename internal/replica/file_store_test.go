package replica

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamsync/api/internal/workspace"
)

func TestFileStoreLoadMissingReturnsEmpty(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "workspace.json"), zerolog.Nop())
	require.NoError(t, err)

	snapshot, err := store.LoadLocal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, workspace.Empty(), snapshot)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.json")
	store, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	want := workspace.Normalize(workspace.Snapshot{
		Teams:       []workspace.Team{{ID: "t1", Name: "Core", Projects: []workspace.Project{{ID: "p1"}}}},
		LLMConfig:   &workspace.LLMConfig{Provider: "local", Model: "small"},
		LastUpdated: 99,
	})
	require.NoError(t, store.SaveLocal(ctx, want))

	got, err := store.LoadLocal(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStoreSubscribeSeesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.json")
	reader, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)
	writer, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)

	received := make(chan workspace.Snapshot, 8)
	unsubscribe, err := reader.SubscribeLocalUpdates(context.Background(), func(snapshot workspace.Snapshot) {
		received <- snapshot
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, writer.SaveLocal(context.Background(), workspace.Snapshot{LastUpdated: 5}))

	select {
	case snapshot := <-received:
		assert.Equal(t, int64(5), snapshot.LastUpdated)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replica update")
	}
}

func TestFileStoreUnsubscribeStopsWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.json")
	store, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)

	unsubscribe, err := store.SubscribeLocalUpdates(context.Background(), func(workspace.Snapshot) {})
	require.NoError(t, err)
	unsubscribe()
	unsubscribe()
}
