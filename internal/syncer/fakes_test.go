package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"teamsync/api/internal/remote"
	"teamsync/api/internal/workspace"
)

type fakeLocal struct {
	mu           sync.Mutex
	snapshot     workspace.Snapshot
	loadErr      error
	saveErr      error
	saves        int
	subscriber   func(workspace.Snapshot)
	unsubscribed bool
}

func (f *fakeLocal) LoadLocal(context.Context) (workspace.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return workspace.Snapshot{}, f.loadErr
	}
	return workspace.Normalize(f.snapshot), nil
}

func (f *fakeLocal) SaveLocal(_ context.Context, snapshot workspace.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.snapshot = snapshot
	f.saves++
	return nil
}

func (f *fakeLocal) SubscribeLocalUpdates(_ context.Context, fn func(workspace.Snapshot)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriber = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subscriber = nil
		f.unsubscribed = true
	}, nil
}

func (f *fakeLocal) emit(snapshot workspace.Snapshot) {
	f.mu.Lock()
	fn := f.subscriber
	f.mu.Unlock()
	if fn != nil {
		fn(workspace.Normalize(snapshot))
	}
}

func (f *fakeLocal) saved() workspace.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

// fakeRemote behaves like the central server: it keeps a pushed snapshot
// only when it is strictly newer.
type fakeRemote struct {
	mu          sync.Mutex
	snapshot    workspace.Snapshot
	offline     bool
	pushErr     error
	fetches     int
	pushes      []workspace.Snapshot
	beforeReply func()
}

func (f *fakeRemote) FetchRemote(context.Context) (workspace.Snapshot, bool) {
	f.mu.Lock()
	f.fetches++
	hook := f.beforeReply
	f.beforeReply = nil
	snapshot, offline := f.snapshot, f.offline
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if offline {
		return workspace.Snapshot{}, false
	}
	return workspace.Normalize(snapshot), true
}

func (f *fakeRemote) PushRemote(_ context.Context, snapshot workspace.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return fmt.Errorf("dial central: connection refused")
	}
	if f.pushErr != nil {
		return f.pushErr
	}
	if snapshot.LastUpdated <= f.snapshot.LastUpdated {
		return remote.ErrStale
	}
	f.snapshot = snapshot
	f.pushes = append(f.pushes, snapshot)
	return nil
}

func (f *fakeRemote) set(snapshot workspace.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snapshot
}

func (f *fakeRemote) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeRemote) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

type fixture struct {
	local  *fakeLocal
	remote *fakeRemote
	coord  *Coordinator
}

// newFixture uses a frozen clock at t=10s, so stamps come from the
// monotonic bump once the snapshot has caught up with it.
func newFixture(local, central workspace.Snapshot, opts ...func(*Options)) *fixture {
	l := &fakeLocal{snapshot: local}
	r := &fakeRemote{snapshot: central}
	var counter int
	var idMu sync.Mutex
	options := Options{
		PollInterval:  time.Hour,
		UpdatedSignal: time.Hour,
		Logger:        zerolog.Nop(),
		Now:           func() time.Time { return time.UnixMilli(10_000) },
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			counter++
			return fmt.Sprintf("n%d", counter)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &fixture{local: l, remote: r, coord: New(l, r, options)}
}

func orgSnapshot(lastUpdated int64) workspace.Snapshot {
	return workspace.Normalize(workspace.Snapshot{
		Users: []workspace.User{
			{ID: "admin", FirstName: "Ada", Role: "ADMIN"},
			{ID: "alice", FirstName: "Alice", Role: "MANAGER"},
			{ID: "bob", FirstName: "Bob", ManagerID: "alice", Role: "MANAGER"},
			{ID: "carol", FirstName: "Carol", LastName: "Diaz", ManagerID: "bob", Role: "EMPLOYEE"},
			{ID: "dave", FirstName: "Dave", Role: "EMPLOYEE"},
		},
		LastUpdated: lastUpdated,
	})
}
