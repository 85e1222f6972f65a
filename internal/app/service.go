package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"teamsync/api/internal/scope"
	"teamsync/api/internal/search"
	"teamsync/api/internal/store"
	"teamsync/api/internal/workspace"
)

const archiveTimeout = 30 * time.Second

type snapshotStore interface {
	GetSnapshot(context.Context) (workspace.Snapshot, error)
	SaveSnapshot(context.Context, workspace.Snapshot) error
	RecentWrites(context.Context, int) ([]store.WriteRecord, error)
	Ping(context.Context) error
}

type archiver interface {
	Archive(context.Context, workspace.Snapshot) error
}

// Service owns the central copy of the workspace. Writers offer whole
// snapshots and the newest LastUpdated wins.
type Service struct {
	store   snapshotStore
	archive archiver
	search  *search.Service
	logger  zerolog.Logger
}

// New builds the service. archive may be nil when no object storage is
// configured.
func New(dataStore snapshotStore, archive archiver, searchService *search.Service, logger zerolog.Logger) *Service {
	return &Service{
		store:   dataStore,
		archive: archive,
		search:  searchService,
		logger:  logger,
	}
}

// Bootstrap primes the search index with the stored snapshot.
func (s *Service) Bootstrap(ctx context.Context) error {
	snapshot, err := s.store.GetSnapshot(ctx)
	if err != nil {
		return err
	}
	centralLastUpdated.Set(float64(snapshot.LastUpdated))
	s.search.Index(snapshot)
	s.logger.Info().Int64("last_updated", snapshot.LastUpdated).Int("users", len(snapshot.Users)).Msg("central snapshot loaded")
	return nil
}

func (s *Service) Snapshot(ctx context.Context) (workspace.Snapshot, error) {
	return s.store.GetSnapshot(ctx)
}

// PutSnapshot stores snapshot when it is strictly newer than the central
// copy. Accepted snapshots are archived and reindexed; failures there are
// logged and do not fail the write.
func (s *Service) PutSnapshot(ctx context.Context, snapshot workspace.Snapshot) error {
	if snapshot.LastUpdated <= 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "lastUpdated must be positive", nil)
	}
	snapshot = workspace.Normalize(snapshot)

	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		if errors.Is(err, store.ErrStaleSnapshot) {
			snapshotWrites.WithLabelValues("stale").Inc()
			current, getErr := s.store.GetSnapshot(ctx)
			if getErr != nil {
				return err
			}
			return domainError(http.StatusConflict, "STALE_SNAPSHOT", "Central snapshot is newer", map[string]any{
				"lastUpdated": current.LastUpdated,
			})
		}
		snapshotWrites.WithLabelValues("error").Inc()
		return err
	}
	snapshotWrites.WithLabelValues("accepted").Inc()
	centralLastUpdated.Set(float64(snapshot.LastUpdated))
	s.logger.Info().Int64("last_updated", snapshot.LastUpdated).Msg("central snapshot replaced")

	if s.archive != nil {
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := s.archive.Archive(archiveCtx, snapshot); err != nil {
			s.logger.Warn().Err(err).Int64("last_updated", snapshot.LastUpdated).Msg("archive snapshot")
		}
	}
	s.search.Index(snapshot)
	return nil
}

// View returns the central snapshot as seen by viewerID.
func (s *Service) View(ctx context.Context, viewerID string) (workspace.Snapshot, error) {
	snapshot, err := s.store.GetSnapshot(ctx)
	if err != nil {
		return workspace.Snapshot{}, err
	}
	return scope.Resolve(snapshot, viewerID), nil
}

func (s *Service) Search(ctx context.Context, viewerID string, q search.Query) (search.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return search.Response{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "q is required", nil)
	}
	switch q.FilterType {
	case "", search.ResultTask, search.ResultNote, search.ResultReport:
	default:
		return search.Response{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "unknown result type", map[string]any{"type": q.FilterType})
	}
	snapshot, err := s.store.GetSnapshot(ctx)
	if err != nil {
		return search.Response{}, err
	}
	return s.search.Search(snapshot, viewerID, q), nil
}

func (s *Service) History(ctx context.Context, limit int) ([]store.WriteRecord, error) {
	records, err := s.store.RecentWrites(ctx, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []store.WriteRecord{}
	}
	return records, nil
}

// Ping checks the health of service dependencies.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
