// Package replica persists the client-side copy of the workspace snapshot and
// tells a client when another local process rewrote it.
package replica

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"teamsync/api/internal/workspace"
)

// FileStore keeps the snapshot as a JSON file. Writes go through a temp file
// and a rename so readers never observe a partial snapshot.
type FileStore struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create replica dir: %w", err)
	}
	return &FileStore{path: path, logger: logger}, nil
}

// LoadLocal returns the stored snapshot, or an empty one when nothing has
// been saved yet.
func (s *FileStore) LoadLocal(context.Context) (workspace.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return workspace.Empty(), nil
	}
	if err != nil {
		return workspace.Snapshot{}, fmt.Errorf("read replica: %w", err)
	}
	return workspace.Decode(data)
}

func (s *FileStore) SaveLocal(_ context.Context, snapshot workspace.Snapshot) error {
	data, err := workspace.Encode(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create replica temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write replica: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close replica temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace replica: %w", err)
	}
	return nil
}

// SubscribeLocalUpdates watches the replica file and calls fn with every
// snapshot written to it, including this process's own writes. The returned
// function stops the watcher and waits for the watch goroutine to exit.
func (s *FileStore) SubscribeLocalUpdates(ctx context.Context, fn func(workspace.Snapshot)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create replica watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch replica dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				snapshot, err := s.LoadLocal(ctx)
				if err != nil {
					s.logger.Debug().Err(err).Str("path", s.path).Msg("skip unreadable replica update")
					continue
				}
				fn(snapshot)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Str("path", s.path).Msg("replica watcher error")
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = watcher.Close()
			<-done
		})
	}, nil
}
