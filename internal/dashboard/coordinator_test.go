package dashboard

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/adminapi/adminapitest"
	"github.com/five82/bulwark/internal/clock"
	"github.com/five82/bulwark/internal/sections"
	"github.com/five82/bulwark/internal/session"
	"github.com/five82/bulwark/internal/snapshot"
	"github.com/five82/bulwark/internal/views"
)

var monitoringPaths = []string{
	"/admin/analytics",
	"/admin/events",
	"/admin/ban",
	"/admin/maze",
	"/admin/cdp",
	"/admin/cdp/events",
	"/admin/monitoring",
	"/admin/config",
}

type fixture struct {
	server       *adminapitest.Server
	clock        *clock.Fake
	session      *session.Controller
	coord        *Coordinator
	unauthorized atomic.Int32
	changes      atomic.Int32
}

func serverConfig() map[string]any {
	return map[string]any{
		"maze_enabled":               true,
		"maze_auto_ban":              true,
		"maze_auto_ban_threshold":    50,
		"rate_limit":                 80,
		"robots_enabled":             true,
		"robots_crawl_delay":         2,
		"admin_config_write_enabled": true,
	}
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		server: adminapitest.New(t),
		clock:  clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.server.SetConfig(serverConfig())
	client := f.server.Client(t)
	f.session = session.NewController(client)

	opts := Options{
		API:            client,
		Session:        f.session,
		Clock:          f.clock,
		OnUnauthorized: func() { f.unauthorized.Add(1) },
		OnChange:       func() { f.changes.Add(1) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	coord, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(coord.Stop)
	f.coord = coord
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.coord.Start(testContext(t)))
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// heldAPI delivers a held GetConfig or GetBans response only once released,
// after the server has answered. Writes landing in between are newer than
// the held payload.
type heldAPI struct {
	API
	mu    sync.Mutex
	gates map[string]*heldGate
}

type heldGate struct {
	fetched chan struct{}
	release chan struct{}
}

// hold holds the next response of name ("config" or "bans").
func (h *heldAPI) hold(name string) (fetched <-chan struct{}, release func()) {
	g := &heldGate{fetched: make(chan struct{}), release: make(chan struct{})}
	h.mu.Lock()
	if h.gates == nil {
		h.gates = map[string]*heldGate{}
	}
	h.gates[name] = g
	h.mu.Unlock()
	var once sync.Once
	return g.fetched, func() { once.Do(func() { close(g.release) }) }
}

func (h *heldAPI) wait(ctx context.Context, name string) {
	h.mu.Lock()
	g := h.gates[name]
	delete(h.gates, name)
	h.mu.Unlock()
	if g == nil {
		return
	}
	close(g.fetched)
	select {
	case <-g.release:
	case <-ctx.Done():
	}
}

func (h *heldAPI) GetConfig(ctx context.Context) (adminapi.Config, error) {
	cfg, err := h.API.GetConfig(ctx)
	h.wait(ctx, "config")
	return cfg, err
}

func (h *heldAPI) GetBans(ctx context.Context) (adminapi.Bans, error) {
	bans, err := h.API.GetBans(ctx)
	h.wait(ctx, "bans")
	return bans, err
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitErr(t *testing.T, ch <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)

	server := adminapitest.New(t)
	_, err = New(context.Background(), Options{API: server.Client(t)})
	require.Error(t, err)
}

func TestNew_EveryViewStartsStale(t *testing.T) {
	f := newFixture(t, nil)
	for _, v := range views.All() {
		status := f.coord.Status(v)
		require.True(t, status.Stale, v)
		require.False(t, status.Loading, v)
		require.True(t, status.UpdatedAt.IsZero(), v)
	}
	require.Equal(t, views.Monitoring, f.coord.ActiveView())
	require.False(t, f.coord.AutoRefreshPending())
}

func TestStart_InitialMonitoringActivationFetches(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	for _, path := range monitoringPaths {
		require.Equal(t, 1, f.server.Calls(http.MethodGet, path), path)
	}
	status := f.coord.Status(views.Monitoring)
	require.False(t, status.Stale)
	require.False(t, status.Loading)
	require.Empty(t, status.Error)
	require.Equal(t, f.clock.Now(), status.UpdatedAt)
	require.True(t, status.Empty)
	require.True(t, f.coord.AutoRefreshPending())
	require.Equal(t, 1, f.clock.PendingTimers())
	require.Positive(t, f.changes.Load())
}

func TestStart_UnauthenticatedCallsHookWithoutFetching(t *testing.T) {
	f := newFixture(t, nil)
	f.server.RequireLogin("secret")
	f.start(t)

	require.Equal(t, int32(1), f.unauthorized.Load())
	require.Equal(t, 1, f.server.TotalCalls())
	require.False(t, f.coord.AutoRefreshPending())
	require.ErrorIs(t, f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual), ErrNoSession)
	require.True(t, f.coord.Status(views.Monitoring).Stale)
}

func TestRefresh_TabMountOnFreshViewUsesSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.server.ResetCalls()

	require.NoError(t, f.coord.Activate(testContext(t), views.Monitoring))
	require.Zero(t, f.server.TotalCalls())

	require.NoError(t, f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual))
	require.Equal(t, len(monitoringPaths), f.server.TotalCalls())
}

func TestRefresh_EmptyPredicates(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	require.True(t, f.coord.Status(views.Monitoring).Empty)

	f.server.SetBans(adminapi.Ban{IP: "203.0.113.9", Reason: "honeypot", Expires: f.clock.Now().Unix() + 3600})
	require.NoError(t, f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual))
	require.False(t, f.coord.Status(views.Monitoring).Empty)

	require.NoError(t, f.coord.Activate(testContext(t), views.IPBans))
	require.False(t, f.coord.Status(views.IPBans).Empty)

	bans, ok := SnapshotOf[adminapi.Bans](f.coord, snapshot.Bans)
	require.True(t, ok)
	require.Len(t, bans.Bans, 1)

	require.NoError(t, f.coord.Activate(testContext(t), views.Status))
	require.False(t, f.coord.Status(views.Status).Empty)
}

func TestRefresh_FailureKeepsStaleAndPriorSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	f.server.SetBans(adminapi.Ban{IP: "198.51.100.7", Reason: "rate_limit"})
	f.start(t)

	f.coord.Invalidate(views.ScopeMonitoring)
	f.server.Fail(http.MethodGet, "/admin/maze", http.StatusInternalServerError)

	err := f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual)
	require.Error(t, err)

	status := f.coord.Status(views.Monitoring)
	require.True(t, status.Stale)
	require.False(t, status.Loading)
	require.Contains(t, status.Error, "500")

	bans, ok := SnapshotOf[adminapi.Bans](f.coord, snapshot.Bans)
	require.True(t, ok)
	require.Len(t, bans.Bans, 1)
	require.Zero(t, f.unauthorized.Load())

	f.server.Recover(http.MethodGet, "/admin/maze")
	require.NoError(t, f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual))
	status = f.coord.Status(views.Monitoring)
	require.False(t, status.Stale)
	require.Empty(t, status.Error)
}

func TestScheduledTick_FailureRearmsAndRetries(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.coord.Invalidate(views.ScopeMonitoring)
	f.server.Fail(http.MethodGet, "/admin/analytics", http.StatusBadGateway)
	f.server.ResetCalls()

	f.clock.Advance(30 * time.Second)
	require.Equal(t, 1, f.server.Calls(http.MethodGet, "/admin/analytics"))
	require.Zero(t, f.server.Calls(http.MethodGet, "/admin/config"), "scheduled monitoring load skips config")
	require.True(t, f.coord.Status(views.Monitoring).HasError())
	require.True(t, f.coord.AutoRefreshPending())

	f.server.Recover(http.MethodGet, "/admin/analytics")
	f.clock.Advance(30 * time.Second)
	require.Equal(t, 2, f.server.Calls(http.MethodGet, "/admin/analytics"))
	require.False(t, f.coord.Status(views.Monitoring).Stale)
	require.Equal(t, 1, f.clock.PendingTimers())
}

func TestScheduledTick_MaxAgeRefetchesFreshView(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.MaxAge = map[views.View]time.Duration{views.Monitoring: 20 * time.Second}
	})
	f.start(t)
	f.server.ResetCalls()

	f.clock.Advance(30 * time.Second)
	require.Equal(t, len(monitoringPaths)-1, f.server.TotalCalls())
	require.Zero(t, f.server.Calls(http.MethodGet, "/admin/config"))
}

func TestSave_MazeThresholdScenario(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.Tuning })
	f.start(t)
	require.Equal(t, 50, f.coord.Baseline(sections.KeyMaze).(sections.Maze).Threshold)
	require.False(t, f.coord.Dirty(sections.KeyMaze))

	edit := f.coord.Draft(sections.KeyMaze).(sections.Maze)
	edit.Threshold = 75
	f.coord.Edit(edit)
	require.True(t, f.coord.Dirty(sections.KeyMaze))
	require.True(t, f.coord.CanSave(sections.KeyMaze))

	edit.Threshold = 50
	f.coord.Edit(edit)
	require.False(t, f.coord.Dirty(sections.KeyMaze), "typing back the saved value is clean")

	edit.Threshold = 75
	f.coord.Edit(edit)
	require.NoError(t, f.coord.Save(testContext(t), sections.KeyMaze))

	require.EqualValues(t, 75, f.server.LastPatch()["maze_auto_ban_threshold"])
	require.Equal(t, "adminapitest-csrf", f.server.LastCSRF())
	require.False(t, f.coord.Dirty(sections.KeyMaze))
	require.Equal(t, 75, f.coord.Baseline(sections.KeyMaze).(sections.Maze).Threshold)

	require.False(t, f.coord.Status(views.Tuning).Stale, "active view refreshed")
	require.True(t, f.coord.Status(views.Status).Stale)
	require.True(t, f.coord.Status(views.Config).Stale)
	require.False(t, f.coord.Saving(sections.KeyMaze))
}

func TestSave_ScopedWriteLeavesMonitoringFreshAndUnfetched(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	require.NoError(t, f.coord.Activate(testContext(t), views.Tuning))

	edit := f.coord.Draft(sections.KeyMaze).(sections.Maze)
	edit.Threshold = 120
	f.coord.Edit(edit)
	require.NoError(t, f.coord.Save(testContext(t), sections.KeyMaze))

	require.False(t, f.coord.Status(views.Monitoring).Stale)
	require.True(t, f.coord.Status(views.Status).Stale)
	require.True(t, f.coord.Status(views.Config).Stale)

	f.coord.SetActiveView(views.Monitoring)
	f.server.ResetCalls()
	f.clock.Advance(30 * time.Second)
	require.Zero(t, f.server.TotalCalls())
	require.True(t, f.coord.AutoRefreshPending())
}

func TestSave_AllScopeStalesEveryOtherView(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	require.NoError(t, f.coord.Activate(testContext(t), views.IPBans))

	f.coord.Edit(sections.RateLimit{Value: 150})
	require.NoError(t, f.coord.Save(testContext(t), sections.KeyRateLimit))

	require.False(t, f.coord.Status(views.IPBans).Stale)
	for _, v := range []views.View{views.Monitoring, views.Status, views.Config, views.Tuning} {
		require.True(t, f.coord.Status(v).Stale, v)
	}
}

func TestSave_ValidationNeverReachesNetwork(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.Tuning })
	f.start(t)
	before := f.coord.State().Views
	f.server.ResetCalls()

	f.coord.Edit(sections.Maze{Enabled: true, Threshold: 1})
	require.False(t, f.coord.CanSave(sections.KeyMaze))

	err := f.coord.Save(testContext(t), sections.KeyMaze)
	var verr *sections.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Zero(t, f.server.TotalCalls())
	require.Equal(t, before, f.coord.State().Views)
	require.NotEmpty(t, f.coord.SaveError(sections.KeyMaze))
	require.True(t, f.coord.Dirty(sections.KeyMaze))
}

func TestSave_FailureKeepsEditAndReenables(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.Tuning })
	f.start(t)
	f.server.Fail(http.MethodPost, "/admin/config", http.StatusInternalServerError)

	f.coord.Edit(sections.Robots{Enabled: false, CrawlDelay: 10})
	err := f.coord.Save(testContext(t), sections.KeyRobots)
	require.Error(t, err)

	require.True(t, f.coord.Dirty(sections.KeyRobots))
	require.Equal(t, sections.Robots{Enabled: false, CrawlDelay: 10}, f.coord.Draft(sections.KeyRobots))
	require.True(t, f.coord.CanSave(sections.KeyRobots))
	require.NotEmpty(t, f.coord.SaveError(sections.KeyRobots))
	require.False(t, f.coord.Status(views.Tuning).Stale)

	f.server.Recover(http.MethodPost, "/admin/config")
	require.NoError(t, f.coord.Save(testContext(t), sections.KeyRobots))
	require.Empty(t, f.coord.SaveError(sections.KeyRobots))
}

func TestSave_SecondSaveWhileInFlightIsRejected(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.Tuning })
	f.start(t)
	release := f.server.Block(http.MethodPost, "/admin/config")
	t.Cleanup(release)

	f.coord.Edit(sections.Maze{Enabled: true, AutoBan: true, Threshold: 90})
	done := make(chan error, 1)
	go func() { done <- f.coord.Save(context.Background(), sections.KeyMaze) }()

	require.Eventually(t, func() bool { return f.coord.Saving(sections.KeyMaze) }, 2*time.Second, 5*time.Millisecond)
	require.ErrorIs(t, f.coord.Save(testContext(t), sections.KeyMaze), ErrSaveInFlight)
	require.False(t, f.coord.CanSave(sections.KeyMaze))
	require.True(t, f.coord.State().Saving[sections.KeyMaze])

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("save did not complete")
	}
	require.Equal(t, 1, f.server.Calls(http.MethodPost, "/admin/config"))
}

func TestSave_Errors(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	require.ErrorIs(t, f.coord.Save(testContext(t), sections.KeyMaze), ErrNothingToSave)
	require.ErrorIs(t, f.coord.Save(testContext(t), "bogus"), ErrUnknownSection)

	f.coord.Edit(sections.Maze{Threshold: 60})
	f.session.Invalidate()
	require.ErrorIs(t, f.coord.Save(testContext(t), sections.KeyMaze), ErrNoSession)
	require.False(t, f.coord.CanSave(sections.KeyMaze))
}

func TestRefresh_ConfigFetchProtectsDirtyEdits(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.Config })
	f.start(t)

	f.coord.Edit(sections.Maze{Enabled: true, AutoBan: true, Threshold: 75})
	f.coord.Edit(sections.Robots{Enabled: true, CrawlDelay: 2})

	cfg := serverConfig()
	cfg["maze_auto_ban_threshold"] = 60
	cfg["robots_crawl_delay"] = 9
	f.server.SetConfig(cfg)
	require.NoError(t, f.coord.Refresh(testContext(t), views.Config, ReasonManual))

	require.Equal(t, 50, f.coord.Baseline(sections.KeyMaze).(sections.Maze).Threshold, "dirty edit keeps its baseline")
	require.Equal(t, 75, f.coord.Draft(sections.KeyMaze).(sections.Maze).Threshold)
	require.True(t, f.coord.Dirty(sections.KeyMaze))

	require.Equal(t, 9, f.coord.Draft(sections.KeyRobots).(sections.Robots).CrawlDelay, "clean edit follows the server")
	require.False(t, f.coord.Dirty(sections.KeyRobots))

	f.coord.Discard(sections.KeyMaze)
	require.False(t, f.coord.Dirty(sections.KeyMaze))
	require.Equal(t, 50, f.coord.Draft(sections.KeyMaze).(sections.Maze).Threshold)
}

func TestBanAndUnban_InvalidateBansAndRefreshActive(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.IPBans })
	f.start(t)
	require.True(t, f.coord.Status(views.IPBans).Empty)

	require.NoError(t, f.coord.BanIP(testContext(t), "192.0.2.44", 3600))
	require.Len(t, f.server.Bans(), 1)
	require.False(t, f.coord.Status(views.IPBans).Stale)
	require.False(t, f.coord.Status(views.IPBans).Empty)
	require.Equal(t, "adminapitest-csrf", f.server.LastCSRF())

	require.NoError(t, f.coord.UnbanIP(testContext(t), "192.0.2.44"))
	require.Empty(t, f.server.Bans())
	require.True(t, f.coord.Status(views.IPBans).Empty)

	f.server.ResetCalls()
	var verr *sections.ValidationError
	require.ErrorAs(t, f.coord.BanIP(testContext(t), "192.0.2.44", 5), &verr)
	require.Zero(t, f.server.TotalCalls())
}

func TestBan_FromOtherViewLeavesIPBansStale(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	require.NoError(t, f.coord.Activate(testContext(t), views.IPBans))
	require.NoError(t, f.coord.Activate(testContext(t), views.Monitoring))

	require.NoError(t, f.coord.BanIP(testContext(t), "192.0.2.10", 600))
	require.True(t, f.coord.Status(views.IPBans).Stale)
	require.False(t, f.coord.Status(views.Monitoring).Stale)
}

func TestUnauthorized_DropsSessionAndCancelsScheduler(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	require.True(t, f.coord.AutoRefreshPending())

	f.server.ExpireSession()
	err := f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual)
	require.True(t, adminapi.IsUnauthorized(err))
	require.Equal(t, int32(1), f.unauthorized.Load())
	require.False(t, f.session.HasValidAPIContext())
	require.False(t, f.coord.AutoRefreshPending())
	require.Zero(t, f.clock.PendingTimers())

	f.coord.ScheduleAutoRefresh()
	require.False(t, f.coord.AutoRefreshPending())
}

func TestVisibility_HiddenThenVisibleArmsExactlyOneTimer(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Hidden = true })
	f.start(t)
	require.False(t, f.coord.AutoRefreshPending())
	require.Zero(t, f.clock.PendingTimers())

	f.coord.SetVisible(true)
	require.Equal(t, 1, f.clock.PendingTimers())
	f.coord.SetVisible(true)
	require.Equal(t, 1, f.clock.PendingTimers())

	f.coord.SetVisible(false)
	require.Zero(t, f.clock.PendingTimers())
	f.coord.SetVisible(true)
	require.Equal(t, 1, f.clock.PendingTimers())
}

func TestSetActiveView_RearmsWithNewInterval(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	require.Equal(t, views.Config, f.coord.SetActiveView("config"))
	require.Equal(t, 1, f.clock.PendingTimers())
	require.Equal(t, 60*time.Second, f.coord.Interval(views.Config))

	f.server.ResetCalls()
	f.clock.Advance(59 * time.Second)
	require.Zero(t, f.server.TotalCalls())
	f.clock.Advance(time.Second)
	require.Equal(t, 1, f.server.Calls(http.MethodGet, "/admin/config"), "config view is still stale")

	require.Equal(t, views.Monitoring, f.coord.SetActiveView("nonsense"))
}

func TestState_IsConsistentSnapshot(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.Tuning })
	f.start(t)
	f.coord.Edit(sections.CDP{Enabled: true, AutoBan: false, Threshold: 0.6})

	st := f.coord.State()
	require.Equal(t, views.Tuning, st.Active)
	require.True(t, st.Authenticated)
	require.Len(t, st.Views, len(views.All()))
	require.True(t, st.Dirty[sections.KeyCDP])
	require.False(t, st.Dirty[sections.KeyMaze])
	require.Equal(t, 50, st.Config.Int("maze_auto_ban_threshold", 0))

	st.Config["maze_auto_ban_threshold"] = 1
	require.Equal(t, 50, f.coord.State().Config.Int("maze_auto_ban_threshold", 0))
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	f := newFixture(t, nil)
	f.server.SetBans(adminapi.Ban{IP: "203.0.113.1"})
	f.start(t)

	bans, ok := SnapshotOf[adminapi.Bans](f.coord, snapshot.Bans)
	require.True(t, ok)
	bans.Bans[0].IP = "mutated"

	again, _ := SnapshotOf[adminapi.Bans](f.coord, snapshot.Bans)
	require.Equal(t, "203.0.113.1", again.Bans[0].IP)

	_, ok = f.coord.Snapshot("nope")
	require.False(t, ok)
}

func TestRefresh_SaveDuringConfigFetchKeepsSavedValue(t *testing.T) {
	var held *heldAPI
	f := newFixture(t, func(o *Options) {
		o.InitialView = views.Tuning
		held = &heldAPI{API: o.API}
		o.API = held
	})
	f.start(t)

	fetched, release := held.hold("config")
	t.Cleanup(release)
	done := make(chan error, 1)
	go func() { done <- f.coord.Refresh(context.Background(), views.Tuning, ReasonManual) }()
	waitFor(t, fetched, "config fetch")

	edit := f.coord.Draft(sections.KeyMaze).(sections.Maze)
	edit.Threshold = 75
	f.coord.Edit(edit)
	require.NoError(t, f.coord.Save(testContext(t), sections.KeyMaze))

	release()
	require.NoError(t, waitErr(t, done, "held refresh"))

	require.Equal(t, 75, f.coord.Baseline(sections.KeyMaze).(sections.Maze).Threshold, "pre-save read must not rebaseline")
	require.Equal(t, 75, f.coord.Draft(sections.KeyMaze).(sections.Maze).Threshold)
	require.False(t, f.coord.Dirty(sections.KeyMaze))
	require.Equal(t, 75, f.coord.State().Config.Int("maze_auto_ban_threshold", 0), "pre-save payload must not replace the saved config")
	status := f.coord.Status(views.Tuning)
	require.True(t, status.Stale, "a load that straddled a save leaves the view stale")
	require.False(t, status.Loading)

	f.server.ResetCalls()
	f.clock.Advance(60 * time.Second)
	require.Equal(t, 1, f.server.Calls(http.MethodGet, "/admin/config"), "next tick refetches")
	require.False(t, f.coord.Status(views.Tuning).Stale)
	require.Equal(t, 75, f.coord.Baseline(sections.KeyMaze).(sections.Maze).Threshold)
}

func TestRefresh_BanDuringBansFetchIsNotLost(t *testing.T) {
	var held *heldAPI
	f := newFixture(t, func(o *Options) {
		o.InitialView = views.IPBans
		held = &heldAPI{API: o.API}
		o.API = held
	})
	f.start(t)
	require.True(t, f.coord.Status(views.IPBans).Empty)

	fetched, release := held.hold("bans")
	t.Cleanup(release)
	done := make(chan error, 1)
	go func() { done <- f.coord.Refresh(context.Background(), views.IPBans, ReasonManual) }()
	waitFor(t, fetched, "bans fetch")

	require.NoError(t, f.coord.BanIP(testContext(t), "192.0.2.9", 600))
	release()
	require.NoError(t, waitErr(t, done, "held refresh"))

	bans, ok := SnapshotOf[adminapi.Bans](f.coord, snapshot.Bans)
	require.True(t, ok)
	require.Len(t, bans.Bans, 1, "older ban list must not replace the post-write one")
	status := f.coord.Status(views.IPBans)
	require.True(t, status.Stale)
	require.False(t, status.Empty)

	f.server.ResetCalls()
	f.clock.Advance(45 * time.Second)
	require.Equal(t, 1, f.server.Calls(http.MethodGet, "/admin/ban"))
	require.False(t, f.coord.Status(views.IPBans).Stale)
}

func TestRefresh_ManualOverlappingScheduledTick(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.coord.Invalidate(views.ScopeMonitoring)
	release := f.server.Block(http.MethodGet, "/admin/analytics")
	t.Cleanup(release)
	f.server.ResetCalls()

	tick := make(chan struct{})
	go func() {
		f.clock.Advance(30 * time.Second)
		close(tick)
	}()
	require.Eventually(t, func() bool {
		return f.server.Calls(http.MethodGet, "/admin/analytics") == 1
	}, 2*time.Second, 5*time.Millisecond)

	manual := make(chan error, 1)
	go func() { manual <- f.coord.Refresh(context.Background(), views.Monitoring, ReasonManual) }()
	require.Eventually(t, func() bool {
		return f.server.Calls(http.MethodGet, "/admin/analytics") == 2
	}, 2*time.Second, 5*time.Millisecond)

	status := f.coord.Status(views.Monitoring)
	require.True(t, status.Loading)
	require.Empty(t, status.Error)

	release()
	waitFor(t, tick, "scheduled tick")
	require.NoError(t, waitErr(t, manual, "manual refresh"))

	status = f.coord.Status(views.Monitoring)
	require.False(t, status.Loading)
	require.False(t, status.Stale)
	require.Empty(t, status.Error)
	require.Equal(t, 1, f.clock.PendingTimers(), "overlap must not arm a second timer")
}

func TestRefresh_OlderFailureDoesNotMaskNewerLoad(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	release := f.server.Block(http.MethodGet, "/admin/analytics")
	t.Cleanup(release)
	f.server.ResetCalls()

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- f.coord.Refresh(ctx, views.Monitoring, ReasonManual) }()
	require.Eventually(t, func() bool {
		return f.server.Calls(http.MethodGet, "/admin/analytics") == 1
	}, 2*time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- f.coord.Refresh(context.Background(), views.Monitoring, ReasonManual) }()
	require.Eventually(t, func() bool {
		return f.server.Calls(http.MethodGet, "/admin/analytics") == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.Error(t, waitErr(t, first, "cancelled refresh"))
	status := f.coord.Status(views.Monitoring)
	require.True(t, status.Loading, "the newer load is still running")
	require.Empty(t, status.Error)

	release()
	require.NoError(t, waitErr(t, second, "second refresh"))
	status = f.coord.Status(views.Monitoring)
	require.False(t, status.Loading)
	require.False(t, status.Stale)
	require.Empty(t, status.Error)
}

func TestRefresh_LogsWhetherSnapshotsChanged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, func(o *Options) { o.Logger = zap.New(core) })
	f.start(t)

	complete := logs.FilterMessage("refresh complete").TakeAll()
	require.Len(t, complete, 1)
	require.Contains(t, complete[0].ContextMap()["updated"], "analytics")

	require.NoError(t, f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual))
	require.Equal(t, 1, logs.FilterMessage("snapshot unchanged").Len())
	require.Zero(t, logs.FilterMessage("refresh complete").Len())

	f.server.SetBans(adminapi.Ban{IP: "203.0.113.8", Reason: "manual"})
	require.NoError(t, f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual))
	complete = logs.FilterMessage("refresh complete").TakeAll()
	require.Len(t, complete, 1)
	require.Equal(t, []any{"analytics", "bans"}, complete[0].ContextMap()["updated"])
}

func TestSave_LogsConfigChange(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, func(o *Options) {
		o.InitialView = views.Tuning
		o.Logger = zap.New(core)
	})
	f.start(t)

	f.coord.Edit(sections.RateLimit{Value: 120})
	require.NoError(t, f.coord.Save(testContext(t), sections.KeyRateLimit))
	saved := logs.FilterMessage("section saved").TakeAll()
	require.Len(t, saved, 1)
	require.Equal(t, true, saved[0].ContextMap()["config_changed"])
}

func TestFetchedAt_TracksLastStore(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.Config })
	_, ok := f.coord.FetchedAt(snapshot.Config)
	require.False(t, ok)

	f.start(t)
	at, ok := f.coord.FetchedAt(snapshot.Config)
	require.True(t, ok)
	require.Equal(t, f.clock.Now(), at)

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.coord.Refresh(testContext(t), views.Config, ReasonManual))
	at, _ = f.coord.FetchedAt(snapshot.Config)
	require.Equal(t, f.clock.Now(), at)
}

func TestDismissError_ClearsBannerKeepsStale(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.server.Fail(http.MethodGet, "/admin/analytics", http.StatusBadGateway)
	require.Error(t, f.coord.Refresh(testContext(t), views.Monitoring, ReasonManual))
	require.True(t, f.coord.Status(views.Monitoring).HasError())

	before := f.changes.Load()
	f.coord.DismissError(views.Monitoring)
	status := f.coord.Status(views.Monitoring)
	require.False(t, status.HasError())
	require.True(t, status.Stale)
	require.Greater(t, f.changes.Load(), before)
}

func TestSave_RemarksEmptyConfigViews(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.InitialView = views.Status })
	f.server.SetConfig(map[string]any{})
	f.start(t)
	require.True(t, f.coord.Status(views.Status).Empty)

	require.NoError(t, f.coord.Activate(testContext(t), views.Monitoring))
	f.coord.Edit(sections.RateLimit{Value: 120})
	require.NoError(t, f.coord.Save(testContext(t), sections.KeyRateLimit))

	status := f.coord.Status(views.Status)
	require.False(t, status.Empty)
	require.True(t, status.Stale)
}
