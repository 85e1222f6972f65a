package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
)

const (
	idxTasks   = "teamsync_tasks"
	idxNotes   = "teamsync_notes"
	idxReports = "teamsync_reports"
)

var errUnhealthy = errors.New("meilisearch unhealthy")

// Meili implements Searcher via Meilisearch and mirrors the searchable part
// of the central snapshot into three indexes.
type Meili struct {
	client  meili.ServiceManager
	logger  zerolog.Logger
	healthy atomic.Bool
	done    chan struct{}

	// indexed tracks the ids currently stored per index so that a reindex can
	// delete entities that disappeared from the snapshot.
	mu      sync.Mutex
	indexed map[string]map[string]struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is not an error; the client keeps probing and the
// service falls back to in-memory search meanwhile.
func NewMeili(url, apiKey string, logger zerolog.Logger) *Meili {
	m := &Meili{
		client:  meili.New(url, meili.WithAPIKey(apiKey)),
		logger:  logger.With().Str("component", "meilisearch").Logger(),
		done:    make(chan struct{}),
		indexed: map[string]map[string]struct{}{},
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxTasks,
			filterable: []string{"teamId", "projectId", "assigneeId", "status"},
			searchable: []string{"title", "projectName", "teamName"},
		},
		{
			uid:        idxNotes,
			filterable: []string{"userId"},
			searchable: []string{"title", "body"},
		},
		{
			uid:        idxReports,
			filterable: []string{"userId", "weekOf"},
			searchable: []string{"userName", "weekOf", "body"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.logger.Debug().Err(err).Str("index", idx.uid).Msg("create index (may already exist)")
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn().Err(err).Str("index", idx.uid).Msg("update filterable attributes")
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.Warn().Err(err).Str("index", idx.uid).Msg("update searchable attributes")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info().Msg("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the indexes selected by q.FilterType and concatenates the
// hits in task, note, report order.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errUnhealthy
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	targets := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxTasks, ResultTask},
		{idxNotes, ResultNote},
		{idxReports, ResultReport},
	}
	var queries []*meili.SearchRequest
	for _, target := range targets {
		if q.FilterType != "" && q.FilterType != target.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              target.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

// Reindex makes the indexes match records: every record is upserted and ids
// indexed earlier but absent from records are deleted.
func (m *Meili) Reindex(records Records) error {
	if !m.healthy.Load() {
		return errUnhealthy
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	errs = append(errs, replaceIndex(m, idxTasks, records.Tasks, func(r TaskRecord) string { return r.ID }))
	errs = append(errs, replaceIndex(m, idxNotes, records.Notes, func(r NoteRecord) string { return r.ID }))
	errs = append(errs, replaceIndex(m, idxReports, records.Reports, func(r ReportRecord) string { return r.ID }))
	return errors.Join(errs...)
}

func replaceIndex[T any](m *Meili, uid string, records []T, id func(T) string) error {
	index := m.client.Index(uid)
	current := make(map[string]struct{}, len(records))
	for _, record := range records {
		current[id(record)] = struct{}{}
	}

	if len(records) > 0 {
		if _, err := index.AddDocuments(records, nil); err != nil {
			return fmt.Errorf("index %s: %w", uid, err)
		}
	}
	for stale := range m.indexed[uid] {
		if _, ok := current[stale]; ok {
			continue
		}
		if _, err := index.DeleteDocument(stale, nil); err != nil {
			return fmt.Errorf("delete %s from %s: %w", stale, uid, err)
		}
	}
	m.indexed[uid] = current
	return nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxTasks:
		return ResultTask
	case idxNotes:
		return ResultNote
	case idxReports:
		return ResultReport
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp, ID: decodeString(hit, "id")}
	switch rtyp {
	case ResultTask:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = decodeString(hit, "projectName") + " in " + decodeString(hit, "teamName")
		r.UserID = decodeString(hit, "assigneeId")
		r.TeamID = decodeString(hit, "teamId")
		r.ProjectID = decodeString(hit, "projectId")
	case ResultNote:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
		r.UserID = decodeString(hit, "userId")
	case ResultReport:
		r.Title = decodeString(hit, "userName") + ", week of " + decodeString(hit, "weekOf")
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
		r.UserID = decodeString(hit, "userId")
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
