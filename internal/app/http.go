package app

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"teamsync/api/internal/remote"
	"teamsync/api/internal/search"
	"teamsync/api/internal/util"
	"teamsync/api/internal/workspace"
)

// maxSnapshotBytes bounds the body of a snapshot push.
const maxSnapshotBytes = 32 << 20

type HTTPServer struct {
	service   *Service
	syncToken string
	logger    zerolog.Logger
	metrics   http.Handler
}

func NewHTTPServer(service *Service, syncToken string, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		service:   service,
		syncToken: syncToken,
		logger:    logger,
		metrics:   promhttp.Handler(),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.metrics.ServeHTTP(w, r)
		return
	}

	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid sync token", nil)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/snapshot":
		snapshot, err := s.service.Snapshot(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)

	case r.Method == http.MethodPut && r.URL.Path == "/api/snapshot":
		var snapshot workspace.Snapshot
		if err := decodeBody(http.MaxBytesReader(w, r.Body, maxSnapshotBytes), &snapshot); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.PutSnapshot(r.Context(), snapshot); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "lastUpdated": snapshot.LastUpdated})

	case r.Method == http.MethodGet && r.URL.Path == "/api/view":
		view, err := s.service.View(r.Context(), strings.TrimSpace(r.URL.Query().Get("userId")))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case r.Method == http.MethodGet && r.URL.Path == "/api/search":
		query := r.URL.Query()
		q := search.Query{
			Text:       query.Get("q"),
			FilterType: search.ResultType(query.Get("type")),
			Limit:      clampInt(query.Get("limit"), 20, 1, 100),
			Offset:     clampInt(query.Get("offset"), 0, 0, 10_000),
		}
		resp, err := s.service.Search(r.Context(), strings.TrimSpace(query.Get("userId")), q)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case r.Method == http.MethodGet && r.URL.Path == "/api/history":
		records, err := s.service.History(r.Context(), clampInt(r.URL.Query().Get("limit"), 50, 1, 200))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"writes": records})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) authorized(r *http.Request) bool {
	if s.syncToken == "" {
		return true
	}
	given := r.Header.Get(remote.SyncTokenHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.syncToken)) == 1
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("Cache-Control", "no-store")
		writer.Header().Set("Content-Type", "application/json")
		writer.Header().Set("X-Request-ID", id)

		next.ServeHTTP(writer, r)

		elapsed := time.Since(started)
		route := routeLabel(r.URL.Path)
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(writer.status)).Inc()
		httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// routeLabel keeps metric cardinality bounded.
func routeLabel(path string) string {
	switch path {
	case "/api/health", "/api/ready", "/api/snapshot", "/api/view", "/api/search", "/api/history", "/metrics":
		return path
	default:
		return "other"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func clampInt(raw string, fallback, lo, hi int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return min(max(value, lo), hi)
}
