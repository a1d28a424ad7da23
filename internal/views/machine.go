package views

import "time"

// ViewStatus is the read model of one view.
type ViewStatus struct {
	Loading   bool
	Error     string
	Empty     bool
	Stale     bool
	UpdatedAt time.Time
}

// HasError reports whether the last load failed.
func (s ViewStatus) HasError() bool {
	return s.Error != ""
}

// Age returns how long ago the view last settled, or zero when it never did.
func (s ViewStatus) Age(now time.Time) time.Duration {
	if s.UpdatedAt.IsZero() {
		return 0
	}
	return now.Sub(s.UpdatedAt)
}

// Epoch counts the invalidations of one view. BeginLoad hands out the
// current value; Succeed compares it to tell whether data went stale while
// the load was in flight.
type Epoch uint64

// Machine records load outcomes per view. It never initiates I/O; the
// coordinator reports what happened. Loads of one view may overlap: the view
// reads as loading until the last of them settles. Machine is not safe for
// concurrent use.
type Machine struct {
	now      func() time.Time
	status   map[View]ViewStatus
	epochs   map[View]Epoch
	inflight map[View]int
}

// Option customizes a Machine.
type Option func(*Machine)

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine returns a Machine with every view stale and idle.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		now:      time.Now,
		status:   make(map[View]ViewStatus, len(all)),
		epochs:   make(map[View]Epoch, len(all)),
		inflight: make(map[View]int, len(all)),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, v := range all {
		m.status[v] = ViewStatus{Stale: true}
	}
	return m
}

// BeginLoad marks view as loading, clears its error and returns the epoch
// to pass to Succeed. Staleness is kept: only a confirmed success clears it.
func (m *Machine) BeginLoad(view View) Epoch {
	v := resolve(view)
	m.inflight[v]++
	m.update(v, func(s *ViewStatus) {
		s.Loading = true
		s.Error = ""
	})
	return m.epochs[v]
}

// Succeed records a successful load that began at since and reports whether
// the view is now fresh. When an Invalidate hit the view after the load
// began, the load's data predates the change: the view is left stale so the
// next refresh fetches again.
func (m *Machine) Succeed(view View, since Epoch, empty bool) bool {
	v := resolve(view)
	fresh := m.epochs[v] == since
	pending := m.settle(v)
	now := m.now()
	m.update(v, func(s *ViewStatus) {
		s.Loading = pending
		s.Error = ""
		s.Stale = !fresh
		s.Empty = empty
		s.UpdatedAt = now
	})
	return fresh
}

// Fail records a failed load. The view stays stale so the next refresh
// attempts it again. An empty message is recorded as "refresh failed". While
// another load of the view is still in flight the error is dropped: that
// load decides what the view shows.
func (m *Machine) Fail(view View, message string) {
	if message == "" {
		message = "refresh failed"
	}
	v := resolve(view)
	if m.settle(v) {
		return
	}
	now := m.now()
	m.update(v, func(s *ViewStatus) {
		s.Loading = false
		s.Error = message
		s.UpdatedAt = now
	})
}

// settle retires one in-flight load of v and reports whether others remain.
func (m *Machine) settle(v View) bool {
	if m.inflight[v] > 0 {
		m.inflight[v]--
	}
	return m.inflight[v] > 0
}

// MarkEmpty sets the empty flag from a predicate over the latest snapshots.
func (m *Machine) MarkEmpty(view View, empty bool) {
	m.update(view, func(s *ViewStatus) {
		s.Empty = empty
	})
}

// ClearError drops the error banner of view without touching anything else.
func (m *Machine) ClearError(view View) {
	m.update(view, func(s *ViewStatus) {
		s.Error = ""
	})
}

// Invalidate marks every view mapped by scope stale and advances its epoch.
// Loading and error are untouched. It returns the views it marked.
func (m *Machine) Invalidate(scope Scope) []View {
	affected := Resolve(scope)
	for _, v := range affected {
		m.epochs[v]++
		m.update(v, func(s *ViewStatus) {
			s.Stale = true
		})
	}
	return affected
}

// Status returns the status of view; unknown views read as Default.
func (m *Machine) Status(view View) ViewStatus {
	return m.status[resolve(view)]
}

// IsStale reports whether view needs a refetch.
func (m *Machine) IsStale(view View) bool {
	return m.Status(view).Stale
}

// All returns a copy of every view status.
func (m *Machine) All() map[View]ViewStatus {
	out := make(map[View]ViewStatus, len(m.status))
	for v, s := range m.status {
		out[v] = s
	}
	return out
}

func (m *Machine) update(view View, fn func(*ViewStatus)) {
	v := resolve(view)
	s := m.status[v]
	fn(&s)
	m.status[v] = s
}

func resolve(view View) View {
	if view.Valid() {
		return view
	}
	return Default
}
