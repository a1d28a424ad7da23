package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/canonical"
	"github.com/five82/bulwark/internal/clock"
	"github.com/five82/bulwark/internal/draft"
	"github.com/five82/bulwark/internal/scheduler"
	"github.com/five82/bulwark/internal/sections"
	"github.com/five82/bulwark/internal/session"
	"github.com/five82/bulwark/internal/snapshot"
	"github.com/five82/bulwark/internal/views"
)

var (
	// ErrSaveInFlight is returned by Save while the same section is saving.
	ErrSaveInFlight = errors.New("dashboard: save already in flight")
	// ErrNoSession is returned when no authorized admin context exists.
	ErrNoSession = errors.New("dashboard: no valid admin session")
	// ErrNothingToSave is returned by Save when no edit is registered.
	ErrNothingToSave = errors.New("dashboard: no pending edit")
	// ErrUnknownSection is returned for section keys outside sections.Keys.
	ErrUnknownSection = errors.New("dashboard: unknown section")
)

// API is the admin API surface the coordinator reads and writes.
type API interface {
	GetConfig(ctx context.Context) (adminapi.Config, error)
	GetAnalytics(ctx context.Context) (adminapi.Analytics, error)
	GetEvents(ctx context.Context, hours int) (adminapi.Events, error)
	GetBans(ctx context.Context) (adminapi.Bans, error)
	GetMaze(ctx context.Context) (adminapi.Maze, error)
	GetCDP(ctx context.Context) (adminapi.CDP, error)
	GetCDPEvents(ctx context.Context, hours, limit int) (adminapi.CDPEvents, error)
	GetMonitoring(ctx context.Context, hours, limit int) (adminapi.Monitoring, error)
	UpdateConfig(ctx context.Context, patch adminapi.ConfigPatch) (adminapi.SaveResult, error)
	BanIP(ctx context.Context, ip string, durationSeconds int) error
	UnbanIP(ctx context.Context, ip string) error
}

// Session reports and restores the admin session.
type Session interface {
	HasValidAPIContext() bool
	AdminContext() *session.AdminContext
	Restore(ctx context.Context) (session.State, error)
	Invalidate()
}

// Options configure a Coordinator. API and Session are required.
type Options struct {
	API     API
	Session Session
	// Clock drives timestamps and auto-refresh. Defaults to clock.Real().
	Clock clock.Clock
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
	// InitialView defaults to views.Default.
	InitialView views.View
	// Intervals override scheduler.DefaultIntervals.
	Intervals map[views.View]time.Duration
	// MaxAge lets a scheduled tick refetch a fresh view once its data is at
	// least this old. Views without an entry are refetched only when stale.
	MaxAge map[views.View]time.Duration
	// EventsHours is the event window for monitoring fetches. Default 24.
	EventsHours int
	// CDPEventsLimit caps CDP events. Default 500.
	CDPEventsLimit int
	// MonitoringLimit caps monitoring summary rows. Default 10.
	MonitoringLimit int
	// Hidden starts with auto-refresh paused.
	Hidden bool
	// OnUnauthorized runs after the session is dropped for an auth failure.
	OnUnauthorized func()
	// OnChange runs after every observable state change, outside any lock.
	OnChange func()
}

// Coordinator owns the console state. Safe for concurrent use.
type Coordinator struct {
	api             API
	session         Session
	clock           clock.Clock
	logger          *zap.Logger
	maxAge          map[views.View]time.Duration
	eventsHours     int
	cdpEventsLimit  int
	monitoringLimit int
	onUnauthorized  func()
	onChange        func()
	scheduler       *scheduler.Scheduler

	mu         sync.RWMutex
	active     views.View
	machine    *views.Machine
	cache      *snapshot.Cache
	drafts     *draft.Store
	edits      map[draft.Section]sections.Section
	saving     map[draft.Section]bool
	saveErrors map[draft.Section]string
	// seq orders loads and saves. loadedBy and savedAt hold the seq of the
	// request that last stored each snapshot and each section baseline.
	seq      uint64
	loadedBy map[snapshot.Kind]uint64
	savedAt  map[draft.Section]uint64
}

// New builds a Coordinator with every view stale and auto-refresh idle.
func New(ctx context.Context, opts Options) (*Coordinator, error) {
	if opts.API == nil {
		return nil, errors.New("dashboard requires an admin API")
	}
	if opts.Session == nil {
		return nil, errors.New("dashboard requires a session")
	}
	c := &Coordinator{
		api:             opts.API,
		session:         opts.Session,
		clock:           opts.Clock,
		logger:          opts.Logger,
		maxAge:          opts.MaxAge,
		eventsHours:     opts.EventsHours,
		cdpEventsLimit:  opts.CDPEventsLimit,
		monitoringLimit: opts.MonitoringLimit,
		onUnauthorized:  opts.OnUnauthorized,
		onChange:        opts.OnChange,
		active:          views.Normalize(string(opts.InitialView)),
		edits:           make(map[draft.Section]sections.Section),
		saving:          make(map[draft.Section]bool),
		saveErrors:      make(map[draft.Section]string),
		loadedBy:        make(map[snapshot.Kind]uint64),
		savedAt:         make(map[draft.Section]uint64),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.eventsHours <= 0 {
		c.eventsHours = 24
	}
	if c.cdpEventsLimit <= 0 {
		c.cdpEventsLimit = 500
	}
	if c.monitoringLimit <= 0 {
		c.monitoringLimit = 10
	}
	c.machine = views.NewMachine(views.WithNow(c.clock.Now))
	c.cache = snapshot.NewCache(c.clock.Now)
	c.drafts = draft.NewStore(sections.DraftDefaults())

	sched, err := scheduler.New(scheduler.Options{
		ActiveView: c.ActiveView,
		Refresh: func(ctx context.Context, view views.View) error {
			return c.Refresh(ctx, view, ReasonScheduled)
		},
		Authorized: c.session.HasValidAPIContext,
		Clock:      c.clock,
		Intervals:  opts.Intervals,
		Context:    ctx,
		Hidden:     opts.Hidden,
		Logger:     c.logger.Named("scheduler"),
	})
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	c.scheduler = sched
	return c, nil
}

// Start restores the session and, when it is live, loads the active view
// and arms auto-refresh. An unauthenticated session calls OnUnauthorized.
func (c *Coordinator) Start(ctx context.Context) error {
	state, err := c.session.Restore(ctx)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if !state.Authenticated {
		c.logger.Info("no admin session")
		c.unauthorized()
		return nil
	}
	refreshErr := c.Refresh(ctx, c.ActiveView(), ReasonSessionRestored)
	c.scheduler.Schedule()
	return refreshErr
}

// Stop disarms auto-refresh for good.
func (c *Coordinator) Stop() {
	c.scheduler.Stop()
}

// Refresh loads view. Unforced reasons return early when the view is fresh.
func (c *Coordinator) Refresh(ctx context.Context, view views.View, reason Reason) error {
	view = views.Normalize(string(view))
	if !c.session.HasValidAPIContext() {
		return ErrNoSession
	}

	c.mu.Lock()
	if !c.needsFetchLocked(view, reason) {
		c.mu.Unlock()
		c.logger.Debug("refresh skipped", zap.String("view", string(view)), zap.String("reason", string(reason)))
		return nil
	}
	since := c.machine.BeginLoad(view)
	c.seq++
	seq := c.seq
	c.mu.Unlock()
	c.changed()

	started := c.clock.Now()
	payloads, err := fetchAll(ctx, c.resources(view, reason))

	var updated []string
	fresh := false
	c.mu.Lock()
	if err != nil {
		c.machine.Fail(view, err.Error())
	} else {
		for kind, payload := range payloads {
			stored, changed := c.storeLocked(kind, payload, seq)
			if !stored {
				delete(payloads, kind)
			}
			if changed {
				updated = append(updated, string(kind))
			}
		}
		if cfg, ok := payloads[snapshot.Config].(adminapi.Config); ok {
			c.rebaselineLocked(cfg, seq)
		}
		fresh = c.machine.Succeed(view, since, isEmpty(view, c.cache))
	}
	c.mu.Unlock()
	c.changed()

	fields := []zap.Field{
		zap.String("view", string(view)),
		zap.String("reason", string(reason)),
		zap.Duration("elapsed", c.clock.Now().Sub(started)),
	}
	if err != nil {
		c.logger.Warn("refresh failed", append(fields, zap.Error(err))...)
		c.checkAuth(err)
		return fmt.Errorf("refresh %s: %w", view, err)
	}
	if !fresh {
		c.logger.Debug("view invalidated during refresh", fields...)
	}
	if len(updated) == 0 {
		c.logger.Debug("snapshot unchanged", fields...)
		return nil
	}
	sort.Strings(updated)
	fields = append(fields, zap.Strings("updated", updated))
	c.logger.Debug("refresh complete", fields...)
	return nil
}

func (c *Coordinator) needsFetchLocked(view views.View, reason Reason) bool {
	if reason.Forced() {
		return true
	}
	status := c.machine.Status(view)
	if status.Stale {
		return true
	}
	if limit, ok := c.maxAge[view]; ok && limit > 0 && !status.UpdatedAt.IsZero() {
		return status.Age(c.clock.Now()) >= limit
	}
	return false
}

// storeLocked caches payload unless a request ordered after seq already
// stored kind. changed reports whether the cached content differs.
func (c *Coordinator) storeLocked(kind snapshot.Kind, payload any, seq uint64) (stored, changed bool) {
	if c.loadedBy[kind] > seq {
		return false, false
	}
	c.loadedBy[kind] = seq
	return true, c.cache.Set(kind, payload)
}

// rebaselineLocked accepts server values as known-good, except for sections
// whose registered edit is still unsaved and sections saved after seq, which
// cfg predates. Clean edits are dropped.
func (c *Coordinator) rebaselineLocked(cfg adminapi.Config, seq uint64) {
	for _, s := range sections.FromConfig(cfg) {
		key := s.Key()
		if c.savedAt[key] > seq {
			continue
		}
		if edit, ok := c.edits[key]; ok {
			if c.drafts.IsDirty(key, edit) {
				continue
			}
			delete(c.edits, key)
		}
		c.drafts.Set(key, s)
	}
}

// SetActiveView switches the active tab and re-arms auto-refresh for its
// interval. Callers follow up with a tab-mount Refresh.
func (c *Coordinator) SetActiveView(view views.View) views.View {
	view = views.Normalize(string(view))
	c.mu.Lock()
	changed := c.active != view
	c.active = view
	c.mu.Unlock()
	if changed {
		c.scheduler.ActiveViewChanged()
		c.changed()
	}
	return view
}

// Activate switches to view and loads it if stale.
func (c *Coordinator) Activate(ctx context.Context, view views.View) error {
	return c.Refresh(ctx, c.SetActiveView(view), ReasonTabMount)
}

// ActiveView returns the active tab.
func (c *Coordinator) ActiveView() views.View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Status returns the state of view.
func (c *Coordinator) Status(view views.View) views.ViewStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.machine.Status(view)
}

// Invalidate marks the views mapped by scope stale.
func (c *Coordinator) Invalidate(scope views.Scope) []views.View {
	c.mu.Lock()
	affected := c.machine.Invalidate(scope)
	c.mu.Unlock()
	c.changed()
	return affected
}

// DismissError clears the error banner of view. The view stays stale until
// a refresh succeeds.
func (c *Coordinator) DismissError(view views.View) {
	c.mu.Lock()
	c.machine.ClearError(view)
	c.mu.Unlock()
	c.changed()
}

// FetchedAt returns when the payload of kind was last stored.
func (c *Coordinator) FetchedAt(kind snapshot.Kind) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.FetchedAt(kind)
}

// Snapshot returns the latest payload of kind.
func (c *Coordinator) Snapshot(kind snapshot.Kind) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cache.Get(kind)
	if !ok {
		return nil, false
	}
	return canonical.CloneAny(v), true
}

// SnapshotOf is the typed form of Coordinator.Snapshot.
func SnapshotOf[T any](c *Coordinator, kind snapshot.Kind) (T, bool) {
	var zero T
	v, ok := c.Snapshot(kind)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// ScheduleAutoRefresh arms the refresh timer for the active view.
func (c *Coordinator) ScheduleAutoRefresh() {
	c.scheduler.Schedule()
}

// CancelAutoRefresh clears the refresh timer.
func (c *Coordinator) CancelAutoRefresh() {
	c.scheduler.Cancel()
}

// SetVisible pauses auto-refresh while the console is hidden.
func (c *Coordinator) SetVisible(visible bool) {
	c.scheduler.SetVisible(visible)
	c.changed()
}

// AutoRefreshPending reports whether a refresh timer is armed.
func (c *Coordinator) AutoRefreshPending() bool {
	return c.scheduler.Pending()
}

// Interval returns the auto-refresh cadence of view.
func (c *Coordinator) Interval(view views.View) time.Duration {
	return c.scheduler.Interval(view)
}

// Now returns the coordinator clock's time.
func (c *Coordinator) Now() time.Time {
	return c.clock.Now()
}

func (c *Coordinator) checkAuth(err error) {
	if adminapi.IsUnauthorized(err) {
		c.unauthorized()
	}
}

func (c *Coordinator) unauthorized() {
	c.session.Invalidate()
	c.scheduler.SessionInvalidated()
	c.logger.Warn("admin session rejected")
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	c.changed()
}

func (c *Coordinator) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
