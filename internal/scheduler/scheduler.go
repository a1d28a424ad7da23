// Package scheduler re-arms a single auto-refresh timer for the active view,
// pausing while the console is hidden or the session is invalid.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/bulwark/internal/clock"
	"github.com/five82/bulwark/internal/views"
)

// DefaultIntervals holds the per-view auto-refresh cadence.
var DefaultIntervals = map[views.View]time.Duration{
	views.Monitoring: 30 * time.Second,
	views.IPBans:     45 * time.Second,
	views.Status:     60 * time.Second,
	views.Config:     60 * time.Second,
	views.Tuning:     60 * time.Second,
}

// RefreshFunc performs one scheduled refresh of view.
type RefreshFunc func(ctx context.Context, view views.View) error

// Options configure a Scheduler. ActiveView and Refresh are required; every
// other field has a documented default.
type Options struct {
	// ActiveView reports the view whose interval drives the next tick.
	ActiveView func() views.View
	// Refresh runs when a timer fires.
	Refresh RefreshFunc
	// Authorized gates arming. Nil means always authorized.
	Authorized func() bool
	// Clock defaults to clock.Real().
	Clock clock.Clock
	// Intervals default to DefaultIntervals. Views missing from the map use
	// the monitoring interval.
	Intervals map[views.View]time.Duration
	// Context is passed to Refresh. Defaults to context.Background().
	Context context.Context
	// Hidden starts the scheduler in the not-visible state.
	Hidden bool
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// Scheduler owns at most one pending refresh timer.
//
// Lock order: Scheduler calls ActiveView and Authorized while holding its own
// lock, so those callbacks must never call back into the Scheduler.
type Scheduler struct {
	clock      clock.Clock
	intervals  map[views.View]time.Duration
	activeView func() views.View
	authorized func() bool
	refresh    RefreshFunc
	ctx        context.Context
	logger     *zap.Logger

	mu      sync.Mutex
	visible bool
	stopped bool
	timer   clock.Timer
	gen     uint64
}

// New validates opts and returns an idle Scheduler. Nothing is armed until
// Schedule is called.
func New(opts Options) (*Scheduler, error) {
	if opts.ActiveView == nil {
		return nil, errors.New("scheduler requires an active view source")
	}
	if opts.Refresh == nil {
		return nil, errors.New("scheduler requires a refresh func")
	}
	s := &Scheduler{
		clock:      opts.Clock,
		intervals:  opts.Intervals,
		activeView: opts.ActiveView,
		authorized: opts.Authorized,
		refresh:    opts.Refresh,
		ctx:        opts.Context,
		logger:     opts.Logger,
		visible:    !opts.Hidden,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if len(s.intervals) == 0 {
		s.intervals = DefaultIntervals
	}
	if s.authorized == nil {
		s.authorized = func() bool { return true }
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Interval returns the refresh cadence of view.
func (s *Scheduler) Interval(view views.View) time.Duration {
	if d, ok := s.intervals[view]; ok && d > 0 {
		return d
	}
	if d, ok := s.intervals[views.Monitoring]; ok && d > 0 {
		return d
	}
	return DefaultIntervals[views.Monitoring]
}

// Schedule cancels any pending timer and, when the session is authorized and
// the console visible, arms exactly one timer for the active view.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	if s.stopped || !s.visible || !s.authorized() {
		return
	}
	view := s.activeView()
	interval := s.Interval(view)
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(interval, func() { s.fire(gen, view) })
	s.logger.Debug("auto refresh armed",
		zap.String("view", string(view)),
		zap.Duration("interval", interval))
}

// Cancel clears the pending timer, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// SetVisible records console visibility: hidden cancels, visible schedules.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	changed := s.visible != visible
	s.visible = visible
	s.mu.Unlock()

	if visible {
		if changed {
			s.Schedule()
		}
		return
	}
	s.Cancel()
}

// Visible reports the last recorded visibility.
func (s *Scheduler) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// ActiveViewChanged re-arms with the new view's interval.
func (s *Scheduler) ActiveViewChanged() {
	s.Schedule()
}

// SessionInvalidated cancels the pending timer. Authorized gates re-arming
// until the session is valid again.
func (s *Scheduler) SessionInvalidated() {
	s.Cancel()
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Stop cancels the pending timer and refuses to arm again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelLocked()
}

func (s *Scheduler) cancelLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
}

func (s *Scheduler) fire(gen uint64, view views.View) {
	s.mu.Lock()
	if gen != s.gen || s.timer == nil {
		// superseded by a later Schedule or Cancel
		s.mu.Unlock()
		return
	}
	s.timer = nil
	run := !s.stopped && s.visible && s.authorized()
	s.mu.Unlock()

	if run {
		if err := s.refresh(s.ctx, view); err != nil {
			s.logger.Warn("scheduled refresh failed",
				zap.String("view", string(view)),
				zap.Error(err))
		}
	}
	s.Schedule()
}
