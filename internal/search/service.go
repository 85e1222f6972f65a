package search

import (
	"github.com/rs/zerolog"

	"teamsync/api/internal/scope"
	"teamsync/api/internal/workspace"
)

// maxWindow caps how many hits are requested from the index before scope
// filtering.
const maxWindow = 1000

// Service is the facade that tries the index first and falls back to an
// in-memory scan of the viewer's resolved snapshot. Results never include an
// entity the viewer cannot see.
type Service struct {
	index  Indexer
	logger zerolog.Logger
}

// Indexer is a Searcher that can be fed with snapshot records.
type Indexer interface {
	Searcher
	Reindex(Records) error
}

// NewService creates a search service. index may be nil when no search
// server is configured.
func NewService(index Indexer, logger zerolog.Logger) *Service {
	return &Service{index: index, logger: logger}
}

// Search runs q for viewerID against snapshot.
func (s *Service) Search(snapshot workspace.Snapshot, viewerID string, q Query) Response {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	visible := RecordsFrom(scope.Resolve(snapshot, viewerID))

	if s.index != nil && s.index.Healthy() {
		window := q
		window.Offset = 0
		window.Limit = min((q.Offset+q.Limit)*4, maxWindow)
		results, _, err := s.index.Search(window)
		if err == nil {
			filtered := filterAllowed(results, visible.allowed())
			return Response{
				Results: nonNil(paginate(filtered, q.Offset, q.Limit)),
				Total:   len(filtered),
				Query:   q.Text,
			}
		}
		s.logger.Warn().Err(err).Msg("index search failed, falling back to in-memory search")
	}

	results, total, _ := NewMemory(visible).Search(q)
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Index mirrors snapshot into the search index without blocking the caller.
func (s *Service) Index(snapshot workspace.Snapshot) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	records := RecordsFrom(snapshot)
	go func() {
		if err := s.index.Reindex(records); err != nil {
			s.logger.Warn().Err(err).Int64("last_updated", snapshot.LastUpdated).Msg("reindex snapshot")
		}
	}()
}

func filterAllowed(results []Result, allowed map[ResultType]map[string]struct{}) []Result {
	out := make([]Result, 0, len(results))
	for _, result := range results {
		if _, ok := allowed[result.Type][result.ID]; ok {
			out = append(out, result)
		}
	}
	return out
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
