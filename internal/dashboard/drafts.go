package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/canonical"
	"github.com/five82/bulwark/internal/draft"
	"github.com/five82/bulwark/internal/sections"
	"github.com/five82/bulwark/internal/snapshot"
	"github.com/five82/bulwark/internal/views"
)

// Edit registers the operator's current form value for its section.
func (c *Coordinator) Edit(s sections.Section) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.edits[s.Key()] = s
	delete(c.saveErrors, s.Key())
	c.mu.Unlock()
	c.changed()
}

// Discard drops the registered edit of key; Draft falls back to the baseline.
func (c *Coordinator) Discard(key draft.Section) {
	c.mu.Lock()
	delete(c.edits, key)
	delete(c.saveErrors, key)
	c.mu.Unlock()
	c.changed()
}

// Draft returns the registered edit of key, or its baseline.
func (c *Coordinator) Draft(key draft.Section) sections.Section {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if edit, ok := c.edits[key]; ok {
		return edit
	}
	return c.baselineLocked(key)
}

// Baseline returns the last known-good value of key.
func (c *Coordinator) Baseline(key draft.Section) sections.Section {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baselineLocked(key)
}

func (c *Coordinator) baselineLocked(key draft.Section) sections.Section {
	fallback := sections.Default(key)
	if s, ok := c.drafts.Get(key, fallback).(sections.Section); ok {
		return s
	}
	return fallback
}

// Dirty reports whether key has an unsaved edit.
func (c *Coordinator) Dirty(key draft.Section) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirtyLocked(key)
}

func (c *Coordinator) dirtyLocked(key draft.Section) bool {
	edit, ok := c.edits[key]
	if !ok {
		return false
	}
	return c.drafts.IsDirtyOr(key, edit, sections.Default(key))
}

// Saving reports whether a save of key is in flight.
func (c *Coordinator) Saving(key draft.Section) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saving[key]
}

// CanSave reports whether the save control of key should be enabled.
func (c *Coordinator) CanSave(key draft.Section) bool {
	if !c.session.HasValidAPIContext() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.saving[key] || !c.dirtyLocked(key) {
		return false
	}
	return c.edits[key].Validate() == nil
}

// Save persists the registered edit of key. Validation failures are returned
// without a request and leave view state untouched. On success the edit
// becomes the baseline, the section's scope goes stale and the active view
// is refreshed.
func (c *Coordinator) Save(ctx context.Context, key draft.Section) error {
	if sections.Default(key) == nil {
		return fmt.Errorf("save %s: %w", key, ErrUnknownSection)
	}

	c.mu.Lock()
	edit, ok := c.edits[key]
	switch {
	case !ok:
		c.mu.Unlock()
		return fmt.Errorf("save %s: %w", key, ErrNothingToSave)
	case c.saving[key]:
		c.mu.Unlock()
		return fmt.Errorf("save %s: %w", key, ErrSaveInFlight)
	}
	if err := edit.Validate(); err != nil {
		c.saveErrors[key] = err.Error()
		c.mu.Unlock()
		c.changed()
		return err
	}
	if !c.session.HasValidAPIContext() {
		c.mu.Unlock()
		return fmt.Errorf("save %s: %w", key, ErrNoSession)
	}
	c.saving[key] = true
	delete(c.saveErrors, key)
	c.mu.Unlock()
	c.changed()

	result, err := c.api.UpdateConfig(ctx, edit.Patch())

	c.mu.Lock()
	delete(c.saving, key)
	if err != nil {
		c.saveErrors[key] = err.Error()
		c.mu.Unlock()
		c.changed()
		c.logger.Warn("save failed", zap.String("section", string(key)), zap.Error(err))
		c.checkAuth(err)
		return fmt.Errorf("save %s: %w", key, err)
	}
	c.seq++
	c.savedAt[key] = c.seq
	c.drafts.Set(key, edit)
	if current, ok := c.edits[key]; ok && canonical.Equal(current, edit) {
		delete(c.edits, key)
	}
	configChanged := false
	if len(result.Config) > 0 {
		_, configChanged = c.storeLocked(snapshot.Config, result.Config, c.seq)
		for _, v := range configViews {
			c.machine.MarkEmpty(v, isEmpty(v, c.cache))
		}
	}
	affected := c.machine.Invalidate(edit.Scope())
	active := c.active
	c.mu.Unlock()
	c.changed()

	c.logger.Info("section saved",
		zap.String("section", string(key)),
		zap.String("scope", string(edit.Scope())),
		zap.Int("invalidated", len(affected)),
		zap.Bool("config_changed", configChanged))

	c.refreshAfterWrite(ctx, active, ReasonConfigSave)
	return nil
}

// SaveError returns the last save or validation error of key.
func (c *Coordinator) SaveError(key draft.Section) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveErrors[key]
}

// BanIP bans ip for durationSeconds, marks the ban list stale and refreshes
// the active view.
func (c *Coordinator) BanIP(ctx context.Context, ip string, durationSeconds int) error {
	if durationSeconds < sections.MinBanSeconds || durationSeconds > sections.MaxBanSeconds {
		return &sections.ValidationError{
			Section: "ban",
			Field:   "duration",
			Reason: fmt.Sprintf("must be between %d and %d seconds, got %d",
				sections.MinBanSeconds, sections.MaxBanSeconds, durationSeconds),
		}
	}
	return c.write(ctx, ReasonBanSave, func(ctx context.Context) error {
		return c.api.BanIP(ctx, ip, durationSeconds)
	})
}

// UnbanIP lifts the ban on ip, marks the ban list stale and refreshes the
// active view.
func (c *Coordinator) UnbanIP(ctx context.Context, ip string) error {
	return c.write(ctx, ReasonUnbanSave, func(ctx context.Context) error {
		return c.api.UnbanIP(ctx, ip)
	})
}

func (c *Coordinator) write(ctx context.Context, reason Reason, do func(context.Context) error) error {
	if !c.session.HasValidAPIContext() {
		return fmt.Errorf("%s: %w", reason, ErrNoSession)
	}
	if err := do(ctx); err != nil {
		c.logger.Warn("write failed", zap.String("reason", string(reason)), zap.Error(err))
		c.checkAuth(err)
		return fmt.Errorf("%s: %w", reason, err)
	}
	c.mu.Lock()
	c.machine.Invalidate(views.ScopeIPBans)
	active := c.active
	c.mu.Unlock()
	c.changed()

	c.refreshAfterWrite(ctx, active, reason)
	return nil
}

// refreshAfterWrite reloads the active view. Its failure shows on the view.
func (c *Coordinator) refreshAfterWrite(ctx context.Context, view views.View, reason Reason) {
	if err := c.Refresh(ctx, view, reason); err != nil {
		c.logger.Debug("post-write refresh failed", zap.String("view", string(view)), zap.Error(err))
	}
}

// State is an atomic read model of the console.
type State struct {
	Active        views.View
	Authenticated bool
	Views         map[views.View]views.ViewStatus
	Dirty         map[draft.Section]bool
	Saving        map[draft.Section]bool
	SaveErrors    map[draft.Section]string
	Config        adminapi.Config
}

// State returns every readout taken under one lock.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := State{
		Active:        c.active,
		Authenticated: c.session.HasValidAPIContext(),
		Views:         c.machine.All(),
		Dirty:         make(map[draft.Section]bool),
		Saving:        make(map[draft.Section]bool),
		SaveErrors:    make(map[draft.Section]string),
	}
	for _, key := range sections.Keys() {
		if c.dirtyLocked(key) {
			st.Dirty[key] = true
		}
	}
	for key, v := range c.saving {
		st.Saving[key] = v
	}
	for key, v := range c.saveErrors {
		st.SaveErrors[key] = v
	}
	if cfg, ok := snapshot.Typed[adminapi.Config](c.cache, snapshot.Config); ok {
		st.Config = canonical.Clone(cfg)
	}
	return st
}
