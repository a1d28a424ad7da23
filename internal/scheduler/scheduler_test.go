package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/five82/bulwark/internal/clock"
	"github.com/five82/bulwark/internal/views"
)

type harness struct {
	clock      *clock.Fake
	sched      *Scheduler
	active     views.View
	authorized bool
	calls      []views.View
	failWith   error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:      clock.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		active:     views.Monitoring,
		authorized: true,
	}
	s, err := New(Options{
		Clock:      h.clock,
		ActiveView: func() views.View { return h.active },
		Authorized: func() bool { return h.authorized },
		Refresh: func(_ context.Context, v views.View) error {
			h.calls = append(h.calls, v)
			return h.failWith
		},
	})
	require.NoError(t, err)
	h.sched = s
	return h
}

func TestNew_RequiresCallbacks(t *testing.T) {
	_, err := New(Options{Refresh: func(context.Context, views.View) error { return nil }})
	require.Error(t, err)
	_, err = New(Options{ActiveView: func() views.View { return views.Monitoring }})
	require.Error(t, err)
}

func TestSchedule_FiresAtActiveInterval(t *testing.T) {
	h := newHarness(t)
	h.sched.Schedule()
	require.True(t, h.sched.Pending())

	h.clock.Advance(29 * time.Second)
	require.Empty(t, h.calls)

	h.clock.Advance(time.Second)
	require.Equal(t, []views.View{views.Monitoring}, h.calls)
	require.Equal(t, 1, h.clock.PendingTimers(), "tick must re-arm")
}

func TestSchedule_RefreshErrorStillRearms(t *testing.T) {
	h := newHarness(t)
	h.failWith = errors.New("boom")
	h.sched.Schedule()

	h.clock.Advance(90 * time.Second)
	require.Len(t, h.calls, 3)
	require.True(t, h.sched.Pending())
}

func TestSchedule_ActiveViewChangeUsesNewInterval(t *testing.T) {
	h := newHarness(t)
	h.sched.Schedule()
	h.clock.Advance(10 * time.Second)

	h.active = views.Status
	h.sched.ActiveViewChanged()
	require.Equal(t, 1, h.clock.PendingTimers())

	h.clock.Advance(59 * time.Second)
	require.Empty(t, h.calls)
	h.clock.Advance(time.Second)
	require.Equal(t, []views.View{views.Status}, h.calls)
}

func TestSchedule_NotArmedWhenUnauthorized(t *testing.T) {
	h := newHarness(t)
	h.authorized = false
	h.sched.Schedule()
	require.False(t, h.sched.Pending())
	require.Zero(t, h.clock.PendingTimers())
}

func TestSessionInvalidated_StopsUntilReauthenticated(t *testing.T) {
	h := newHarness(t)
	h.sched.Schedule()
	h.authorized = false
	h.sched.SessionInvalidated()
	require.False(t, h.sched.Pending())

	h.clock.Advance(5 * time.Minute)
	require.Empty(t, h.calls)

	h.authorized = true
	h.sched.Schedule()
	h.clock.Advance(30 * time.Second)
	require.Len(t, h.calls, 1)
}

func TestSetVisible_HiddenThenVisibleArmsExactlyOne(t *testing.T) {
	h := newHarness(t)
	h.sched.Schedule()
	h.clock.Advance(20 * time.Second)

	h.sched.SetVisible(false)
	require.False(t, h.sched.Pending())
	h.clock.Advance(time.Minute)
	require.Empty(t, h.calls, "no refresh while hidden")

	h.sched.SetVisible(true)
	require.Equal(t, 1, h.clock.PendingTimers())
	h.sched.SetVisible(true)
	require.Equal(t, 1, h.clock.PendingTimers())

	h.clock.Advance(30 * time.Second)
	require.Equal(t, []views.View{views.Monitoring}, h.calls, "exactly one refresh after becoming visible")
}

func TestStop_RefusesToArm(t *testing.T) {
	h := newHarness(t)
	h.sched.Schedule()
	h.sched.Stop()
	h.sched.Schedule()
	require.False(t, h.sched.Pending())
	require.Zero(t, h.clock.PendingTimers())
}

func TestSupersededTimerIgnored(t *testing.T) {
	h := newHarness(t)
	h.sched.Schedule()
	require.NotNil(t, h.sched.timer)

	// Simulate a timer whose Stop lost the race: invoke its callback after
	// a newer Schedule.
	staleGen := h.sched.gen
	h.sched.Schedule()
	h.sched.fire(staleGen, views.Monitoring)
	require.Empty(t, h.calls)
	require.Equal(t, 1, h.clock.PendingTimers())
}

func TestInterval_FallsBackToMonitoring(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, 30*time.Second, h.sched.Interval(views.View("unknown")))
	require.Equal(t, 45*time.Second, h.sched.Interval(views.IPBans))
}

func TestNeverMoreThanOnePendingTimer(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(42))
	all := views.All()

	for i := 0; i < 2000; i++ {
		switch rng.Intn(7) {
		case 0:
			h.sched.Schedule()
		case 1:
			h.sched.Cancel()
		case 2:
			h.sched.SetVisible(false)
		case 3:
			h.sched.SetVisible(true)
		case 4:
			h.active = all[rng.Intn(len(all))]
			h.sched.ActiveViewChanged()
		case 5:
			h.authorized = rng.Intn(4) != 0
			if !h.authorized {
				h.sched.SessionInvalidated()
			}
		case 6:
			h.clock.Advance(time.Duration(rng.Intn(90)) * time.Second)
		}
		require.LessOrEqual(t, h.clock.PendingTimers(), 1, "step %d", i)
		if h.sched.Pending() {
			require.Equal(t, 1, h.clock.PendingTimers(), "step %d", i)
		}
	}
}
