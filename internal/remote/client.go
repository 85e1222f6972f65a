// Package remote talks to the central copy of the workspace over HTTP.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"teamsync/api/internal/workspace"
)

// SyncTokenHeader carries the shared secret accepted by the central server.
const SyncTokenHeader = "x-teamsync-sync-token"

// ErrStale is returned by Push when the central copy is already newer.
var ErrStale = errors.New("central snapshot is newer")

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
	fetches singleflight.Group
}

func New(baseURL, token string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 8 * time.Second},
		logger:  logger,
	}
}

// FetchRemote returns the central snapshot. The boolean is false when the
// server is unreachable or answers with anything but a snapshot; ordinary
// network failures are logged, never returned. Concurrent callers share one
// request; it is bounded by the client timeout rather than by any one
// caller's context, and a caller whose ctx ends stops waiting on its own.
func (c *Client) FetchRemote(ctx context.Context) (workspace.Snapshot, bool) {
	shared := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan("snapshot", func() (any, error) {
		snapshot, ok := c.fetch(shared)
		return fetchResult{snapshot: snapshot, ok: ok}, nil
	})
	select {
	case <-ctx.Done():
		c.logger.Debug().Err(ctx.Err()).Msg("fetch abandoned by caller")
		return workspace.Snapshot{}, false
	case res := <-ch:
		result := res.Val.(fetchResult)
		return result.snapshot, result.ok
	}
}

type fetchResult struct {
	snapshot workspace.Snapshot
	ok       bool
}

func (c *Client) fetch(ctx context.Context) (workspace.Snapshot, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/snapshot", nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("build fetch request")
		return workspace.Snapshot{}, false
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", c.baseURL).Msg("central copy unreachable")
		return workspace.Snapshot{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Msg("central copy fetch rejected")
		return workspace.Snapshot{}, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Debug().Err(err).Msg("read central snapshot")
		return workspace.Snapshot{}, false
	}
	snapshot, err := workspace.Decode(body)
	if err != nil {
		c.logger.Warn().Err(err).Msg("central snapshot malformed")
		return workspace.Snapshot{}, false
	}
	return snapshot, true
}

// PushRemote offers snapshot to the central copy, which keeps it only when
// it is strictly newer than its own.
func (c *Client) PushRemote(ctx context.Context, snapshot workspace.Snapshot) error {
	data, err := workspace.Encode(snapshot)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/snapshot", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push snapshot: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		return ErrStale
	default:
		return fmt.Errorf("push snapshot: unexpected status %d", resp.StatusCode)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set(SyncTokenHeader, c.token)
	}
}
