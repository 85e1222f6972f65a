package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"teamsync/api/internal/remote"
	"teamsync/api/internal/search"
	"teamsync/api/internal/store"
	"teamsync/api/internal/workspace"
)

const testToken = "test-sync-token"

type fakeStore struct {
	mu       sync.Mutex
	snapshot workspace.Snapshot
	writes   []store.WriteRecord
	pingErr  error
}

func (f *fakeStore) GetSnapshot(context.Context) (workspace.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return workspace.Normalize(f.snapshot), nil
}

func (f *fakeStore) SaveSnapshot(_ context.Context, snapshot workspace.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	accepted := snapshot.LastUpdated > f.snapshot.LastUpdated
	f.writes = append([]store.WriteRecord{{
		ID:          int64(len(f.writes) + 1),
		LastUpdated: snapshot.LastUpdated,
		Accepted:    accepted,
		WrittenAt:   time.Now(),
	}}, f.writes...)
	if !accepted {
		return store.ErrStaleSnapshot
	}
	f.snapshot = snapshot
	return nil
}

func (f *fakeStore) RecentWrites(_ context.Context, limit int) ([]store.WriteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit < len(f.writes) {
		return f.writes[:limit], nil
	}
	return f.writes, nil
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

type fakeArchive struct {
	mu       sync.Mutex
	archived []int64
	err      error
}

func (f *fakeArchive) Archive(_ context.Context, snapshot workspace.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, snapshot.LastUpdated)
	return nil
}

func newTestServer(t *testing.T, fs *fakeStore, archive *fakeArchive) http.Handler {
	t.Helper()
	var a archiver
	if archive != nil {
		a = archive
	}
	svc := New(fs, a, search.NewService(nil, zerolog.Nop()), zerolog.Nop())
	return NewHTTPServer(svc, testToken, zerolog.Nop()).Handler()
}

func doRequest(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set(remote.SyncTokenHeader, testToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func orgSnapshot(lastUpdated int64) workspace.Snapshot {
	return workspace.Normalize(workspace.Snapshot{
		Users: []workspace.User{
			{ID: "admin", FirstName: "Ada", Role: "ADMIN"},
			{ID: "bob", FirstName: "Bob", Role: "MANAGER"},
			{ID: "carol", FirstName: "Carol", ManagerID: "bob", Role: "EMPLOYEE"},
			{ID: "dave", FirstName: "Dave", Role: "EMPLOYEE"},
		},
		Reports: []workspace.WeeklyReport{
			{ID: "r-carol", UserID: "carol", WeekOf: "2026-10-12", Achievements: "shipped the importer"},
			{ID: "r-dave", UserID: "dave", WeekOf: "2026-10-12", Achievements: "shipped billing"},
		},
		LastUpdated: lastUpdated,
	})
}
