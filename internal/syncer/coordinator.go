// Package syncer keeps a client's workspace replica in step with the central
// copy and is the only path through which local writes reach the snapshot.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"teamsync/api/internal/notify"
	"teamsync/api/internal/remote"
	"teamsync/api/internal/scope"
	"teamsync/api/internal/statestore"
	"teamsync/api/internal/util"
	"teamsync/api/internal/workspace"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyStarted = errors.New("coordinator already started")
	ErrManagerCycle   = errors.New("manager assignment would create a reporting cycle")
)

// LocalStore persists this client's replica.
type LocalStore interface {
	LoadLocal(context.Context) (workspace.Snapshot, error)
	SaveLocal(context.Context, workspace.Snapshot) error
	SubscribeLocalUpdates(context.Context, func(workspace.Snapshot)) (func(), error)
}

// Remote reaches the central copy. FetchRemote reports false when the
// central copy cannot be reached.
type Remote interface {
	FetchRemote(context.Context) (workspace.Snapshot, bool)
	PushRemote(context.Context, workspace.Snapshot) error
}

// Updater derives the next snapshot from the current one. It receives a
// private deep copy and may modify it freely.
type Updater func(workspace.Snapshot) workspace.Snapshot

// Status is the connectivity surface shown to the user.
type Status struct {
	Online       bool
	LastSynced   time.Time
	DataUpdated  bool
	SessionEpoch int
}

type Options struct {
	PollInterval  time.Duration
	UpdatedSignal time.Duration
	Logger        zerolog.Logger
	Now           func() time.Time
	NewID         func() string
}

type Coordinator struct {
	local  LocalStore
	remote Remote
	store  *statestore.Store

	pollInterval  time.Duration
	updatedSignal time.Duration
	logger        zerolog.Logger
	now           func() time.Time
	newID         func() string

	statusMu     sync.RWMutex
	status       Status
	signalTimer  *time.Timer
	signalSerial int

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

func New(local LocalStore, remote Remote, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.UpdatedSignal <= 0 {
		opts.UpdatedSignal = 4 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return util.NewID("ntf") }
	}
	return &Coordinator{
		local:         local,
		remote:        remote,
		store:         statestore.New(workspace.Empty()),
		pollInterval:  opts.PollInterval,
		updatedSignal: opts.UpdatedSignal,
		logger:        opts.Logger,
		now:           opts.Now,
		newID:         opts.NewID,
	}
}

// Store exposes the state store for read access and subscriptions. Every
// coordinator write is a Store.Update, so the store lock is never held
// across a network call. Listeners run on the writer's goroutine and must
// not write back through the coordinator.
func (c *Coordinator) Store() *statestore.Store {
	return c.store
}

func (c *Coordinator) Snapshot() workspace.Snapshot {
	return c.store.Get()
}

// Bootstrap installs the local replica and then reconciles it with the
// central copy. The local snapshot is readable from Store as soon as it is
// loaded, before the fetch completes.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	local, err := c.local.LoadLocal(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("local replica unreadable, starting empty")
		local = workspace.Empty()
	}
	c.store.Replace(local)
	c.logger.Debug().Int64("last_updated", local.LastUpdated).Msg("local replica loaded")

	c.Poll(ctx)
	return nil
}

// Poll fetches the central copy once and applies the merge policy against
// the snapshot held when the fetch returns. A failed fetch only flips the
// connectivity flag.
func (c *Coordinator) Poll(ctx context.Context) {
	incoming, ok := c.remote.FetchRemote(ctx)
	if !ok {
		c.setOnline(false)
		pollTotal.WithLabelValues("offline").Inc()
		c.logger.Debug().Msg("central copy unreachable")
		return
	}
	c.markSynced()
	c.reconcile(ctx, incoming)
}

func (c *Coordinator) reconcile(ctx context.Context, incoming workspace.Snapshot) {
	var current workspace.Snapshot
	_, adopted := c.store.Update(func(held workspace.Snapshot) (workspace.Snapshot, bool) {
		current = held
		merged, adopted := Merge(held, incoming)
		if !adopted {
			return held, false
		}
		if err := c.local.SaveLocal(ctx, merged); err != nil {
			c.logger.Warn().Err(err).Msg("persist adopted snapshot")
		}
		return merged, true
	})

	if adopted {
		pollTotal.WithLabelValues("adopted").Inc()
		c.logger.Info().
			Int64("local", current.LastUpdated).
			Int64("remote", incoming.LastUpdated).
			Msg("adopted central snapshot")
		c.raiseDataUpdated()
		return
	}

	pollTotal.WithLabelValues("kept").Inc()
	if current.LastUpdated > incoming.LastUpdated {
		c.push(ctx, current)
	}
}

// ApplyMutation is the only sanctioned path for local writes. It derives the
// next snapshot, adds notifications for the transitions it contains, stamps
// a fresh LastUpdated, persists and installs the result, and offers it to
// the central copy.
func (c *Coordinator) ApplyMutation(ctx context.Context, updater Updater) (workspace.Snapshot, error) {
	return c.commit(ctx, func(current workspace.Snapshot) (workspace.Snapshot, []notify.Event, error) {
		return updater(current), nil, nil
	})
}

type change func(current workspace.Snapshot) (workspace.Snapshot, []notify.Event, error)

func (c *Coordinator) commit(ctx context.Context, fn change) (workspace.Snapshot, error) {
	var (
		fresh   []workspace.Notification
		failure error
		result  = "committed"
	)
	next, committed := c.store.Update(func(prev workspace.Snapshot) (workspace.Snapshot, bool) {
		next, extra, err := fn(prev.Clone())
		if err != nil {
			result, failure = "rejected", err
			return prev, false
		}
		next = workspace.Normalize(next)

		events := append(notify.DiffTeams(prev.Teams, next.Teams), extra...)
		stamp := c.nextStamp(prev.LastUpdated)
		fresh = notify.Render(events, c.newID, stamp)
		next.Notifications = notify.Prepend(next.Notifications, fresh)
		next.LastUpdated = stamp

		if err := c.local.SaveLocal(ctx, next); err != nil {
			result, failure = "failed", fmt.Errorf("persist mutation: %w", err)
			return prev, false
		}
		return next, true
	})
	mutationTotal.WithLabelValues(result).Inc()
	if !committed {
		return next, failure
	}

	for _, n := range fresh {
		notificationsEmitted.WithLabelValues(string(n.Type)).Inc()
	}
	c.push(ctx, next)
	return next, nil
}

// nextStamp returns the wall clock in milliseconds, bumped past prev when
// the clock has not moved on.
func (c *Coordinator) nextStamp(prev int64) int64 {
	stamp := c.now().UnixMilli()
	if stamp <= prev {
		stamp = prev + 1
	}
	return stamp
}

func (c *Coordinator) push(ctx context.Context, snapshot workspace.Snapshot) {
	err := c.remote.PushRemote(ctx, snapshot)
	switch {
	case err == nil:
		pushTotal.WithLabelValues("ok").Inc()
		c.markSynced()
	case errors.Is(err, remote.ErrStale):
		pushTotal.WithLabelValues("stale").Inc()
		c.setOnline(true)
		c.logger.Info().Int64("last_updated", snapshot.LastUpdated).Msg("central copy is newer, local push dropped")
	default:
		pushTotal.WithLabelValues("error").Inc()
		c.setOnline(false)
		c.logger.Debug().Err(err).Msg("push deferred to next poll")
	}
}

// Login signs userID in. It starts from the central copy when reachable and
// from the current snapshot otherwise.
func (c *Coordinator) Login(ctx context.Context, userID string) (workspace.Snapshot, error) {
	incoming, ok := c.remote.FetchRemote(ctx)
	if ok {
		c.markSynced()
	} else {
		c.setOnline(false)
	}

	var failure error
	next, committed := c.store.Update(func(current workspace.Snapshot) (workspace.Snapshot, bool) {
		base := current
		if ok {
			base = incoming
		}
		if _, found := base.User(userID); !found {
			failure = fmt.Errorf("login %s: user %w", userID, ErrNotFound)
			return current, false
		}
		next := base
		next.CurrentUserID = userID
		next.Theme = current.Theme
		next.LLMConfig = current.LLMConfig
		next.LastUpdated = c.nextStamp(max(current.LastUpdated, base.LastUpdated))
		next = workspace.Normalize(next)

		if err := c.local.SaveLocal(ctx, next); err != nil {
			failure = fmt.Errorf("persist login: %w", err)
			return current, false
		}
		return next, true
	})
	if !committed {
		return next, failure
	}

	c.resetSession()
	c.logger.Info().Str("user_id", userID).Msg("signed in")
	return next, nil
}

// Logout clears the signed-in user and resets all session state.
func (c *Coordinator) Logout(ctx context.Context) error {
	_, err := c.ApplyMutation(ctx, func(s workspace.Snapshot) workspace.Snapshot {
		s.CurrentUserID = ""
		return s
	})
	if err != nil {
		return err
	}
	c.resetSession()
	c.logger.Info().Msg("signed out")
	return nil
}

// Start subscribes to local replica updates and begins polling the central
// copy every poll interval. Stop must be called to release both.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	unsubscribe, err := c.local.SubscribeLocalUpdates(ctx, c.onLocalUpdate)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe local updates: %w", err)
	}
	c.cancel = cancel
	c.unsubscribe = unsubscribe

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Poll(ctx)
			}
		}
	}()
	return nil
}

// Stop ends polling, drops the local subscription and waits for an
// in-flight poll to finish. It is safe to call more than once.
func (c *Coordinator) Stop() {
	c.lifecycleMu.Lock()
	cancel, unsubscribe := c.cancel, c.unsubscribe
	c.cancel, c.unsubscribe = nil, nil
	c.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
	unsubscribe()

	c.statusMu.Lock()
	if c.signalTimer != nil {
		c.signalTimer.Stop()
		c.signalTimer = nil
	}
	c.status.DataUpdated = false
	c.statusMu.Unlock()
}

// onLocalUpdate adopts a snapshot written by another consumer of the same
// replica. Those writers share this session, so the snapshot is taken whole.
func (c *Coordinator) onLocalUpdate(snapshot workspace.Snapshot) {
	_, adopted := c.store.Update(func(current workspace.Snapshot) (workspace.Snapshot, bool) {
		return snapshot, snapshot.LastUpdated > current.LastUpdated
	})
	if adopted {
		c.logger.Debug().Int64("last_updated", snapshot.LastUpdated).Msg("adopted local replica update")
	}
}

func (c *Coordinator) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// View is the snapshot as seen by viewerID.
func (c *Coordinator) View(viewerID string) workspace.Snapshot {
	return scope.Resolve(c.store.Get(), viewerID)
}

// CurrentView is the snapshot as seen by the signed-in user.
func (c *Coordinator) CurrentView() workspace.Snapshot {
	snapshot := c.store.Get()
	return scope.Resolve(snapshot, snapshot.CurrentUserID)
}

// UnreadCount counts unread notifications visible to viewerID.
func (c *Coordinator) UnreadCount(viewerID string) int {
	return notify.UnreadCount(c.View(viewerID).Notifications)
}

func (c *Coordinator) setOnline(online bool) {
	c.statusMu.Lock()
	c.status.Online = online
	c.statusMu.Unlock()
	if online {
		onlineGauge.Set(1)
	} else {
		onlineGauge.Set(0)
	}
}

func (c *Coordinator) markSynced() {
	c.statusMu.Lock()
	c.status.Online = true
	c.status.LastSynced = c.now()
	c.statusMu.Unlock()
	onlineGauge.Set(1)
}

// raiseDataUpdated sets the transient DataUpdated flag and schedules it to
// clear. A newer signal supersedes the pending clear of an older one.
func (c *Coordinator) raiseDataUpdated() {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.status.DataUpdated = true
	c.signalSerial++
	serial := c.signalSerial
	if c.signalTimer != nil {
		c.signalTimer.Stop()
	}
	c.signalTimer = time.AfterFunc(c.updatedSignal, func() {
		c.statusMu.Lock()
		defer c.statusMu.Unlock()
		if c.signalSerial == serial {
			c.status.DataUpdated = false
		}
	})
}

func (c *Coordinator) resetSession() {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.status.DataUpdated = false
	c.status.SessionEpoch++
	c.signalSerial++
	if c.signalTimer != nil {
		c.signalTimer.Stop()
		c.signalTimer = nil
	}
}
