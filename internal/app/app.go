package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/config"
	"github.com/five82/bulwark/internal/dashboard"
	"github.com/five82/bulwark/internal/logging"
	"github.com/five82/bulwark/internal/prefs"
	"github.com/five82/bulwark/internal/session"
	"github.com/five82/bulwark/internal/snapshot"
	"github.com/five82/bulwark/internal/ui"
	"github.com/five82/bulwark/internal/views"
)

// Options configure the Bulwark console. Empty overrides keep the config
// file value.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/bulwark/prefs.toml
	AdminURL   string
	LogLevel   string
	LogPath    string
	// APIKey signs in when no session can be restored.
	APIKey string
	// PromptKey asks the operator for an API key when APIKey is empty. It
	// runs before the TUI owns the terminal. Nil skips the prompt.
	PromptKey func() (string, error)
}

// console is the wired object graph shared by Run and Check.
type console struct {
	cfg         config.Config
	prefs       prefs.Prefs
	logger      *zap.Logger
	client      *adminapi.Client
	session     *session.Controller
	coordinator *dashboard.Coordinator
	notifier    *ui.Notifier
}

// Run boots the console TUI until the context is cancelled or the operator
// quits.
func Run(ctx context.Context, opts Options) error {
	c, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.signIn(ctx, opts); err != nil {
		return err
	}

	return ui.Run(ui.Options{
		Context:    ctx,
		Console:    c.coordinator,
		Notifier:   c.notifier,
		Logger:     c.logger.Named("ui"),
		Endpoint:   c.client.Endpoint(),
		ThemeName:  c.prefs.Theme,
		PrefsPath:  opts.PrefsPath,
		BanSeconds: c.cfg.BanSeconds,
		Login:      c.login,
		Logout:     c.logout,
	})
}

// Check signs in, loads the monitoring view once and writes a summary to w.
// It fails when the view cannot be loaded.
func Check(ctx context.Context, opts Options, w io.Writer) error {
	c, err := build(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.signIn(ctx, opts); err != nil {
		return err
	}
	if !c.session.HasValidAPIContext() {
		return fmt.Errorf("check %s: %w", c.client.Endpoint(), session.ErrUnauthenticated)
	}
	if err := c.coordinator.Refresh(ctx, views.Monitoring, dashboard.ReasonManual); err != nil {
		return fmt.Errorf("check %s: %w", c.client.Endpoint(), err)
	}
	writeSummary(w, c.client.Endpoint(), c.coordinator)
	return nil
}

func build(ctx context.Context, opts Options) (*console, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	logger, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	client, err := adminapi.NewClient(cfg.AdminURL, adminapi.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("init admin client: %w", err)
	}

	sess := session.NewController(client, session.WithLogger(logger.Named("session")))
	notifier := ui.NewNotifier()

	coord, err := dashboard.New(ctx, dashboard.Options{
		API:             client,
		Session:         sess,
		Logger:          logger.Named("dashboard"),
		InitialView:     views.Normalize(userPrefs.LastView),
		Intervals:       cfg.Refresh,
		MaxAge:          cfg.MaxAge,
		EventsHours:     cfg.EventsHours,
		CDPEventsLimit:  cfg.CDPEventsLimit,
		MonitoringLimit: cfg.MonitoringLimit,
		OnUnauthorized: func() {
			logger.Warn("admin session rejected", zap.String("endpoint", client.Endpoint()))
		},
		OnChange: notifier.Notify,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("init dashboard: %w", err)
	}

	logger.Info("console configured",
		zap.String("endpoint", client.Endpoint()),
		zap.String("initial_view", string(coord.ActiveView())),
	)

	return &console{
		cfg:         cfg,
		prefs:       userPrefs,
		logger:      logger,
		client:      client,
		session:     sess,
		coordinator: coord,
		notifier:    notifier,
	}, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if v := strings.TrimSpace(opts.AdminURL); v != "" {
		cfg.AdminURL = v
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(opts.LogPath); v != "" {
		if expanded, err := config.ExpandPath(v); err == nil {
			v = expanded
		}
		cfg.LogPath = v
	}
}

// signIn restores the session, falling back to an API key from opts or the
// prompt. An unreachable admin API is fatal. Declining the prompt starts the
// console signed out.
func (c *console) signIn(ctx context.Context, opts Options) error {
	state, err := c.session.Restore(ctx)
	if err != nil {
		return fmt.Errorf("reach admin API at %s: %w", c.client.Endpoint(), err)
	}
	if state.Authenticated {
		return nil
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" && opts.PromptKey != nil {
		apiKey, err = opts.PromptKey()
		if err != nil {
			return fmt.Errorf("read api key: %w", err)
		}
		apiKey = strings.TrimSpace(apiKey)
	}
	if apiKey == "" {
		c.logger.Info("starting signed out")
		return nil
	}

	if _, err := c.session.Login(ctx, apiKey); err != nil {
		return fmt.Errorf("sign in to %s: %w", c.client.Endpoint(), err)
	}
	c.logger.Info("signed in", zap.String("endpoint", c.client.Endpoint()))
	return nil
}

// login backs the TUI sign-in prompt: a fresh session resumes auto-refresh.
func (c *console) login(ctx context.Context, apiKey string) error {
	if _, err := c.session.Login(ctx, apiKey); err != nil {
		if errors.Is(err, session.ErrUnauthenticated) {
			return errors.New("sign in rejected: check the API key")
		}
		return fmt.Errorf("sign in: %w", err)
	}
	return c.coordinator.Start(ctx)
}

// logout backs the TUI sign-out key. Auto-refresh stops even when the server
// call fails; the local session is dropped either way.
func (c *console) logout(ctx context.Context) error {
	err := c.session.Logout(ctx)
	c.coordinator.CancelAutoRefresh()
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	c.logger.Info("signed out", zap.String("endpoint", c.client.Endpoint()))
	return nil
}

func (c *console) close() {
	c.coordinator.Stop()
	_ = c.logger.Sync()
}

func writeSummary(w io.Writer, endpoint string, coord *dashboard.Coordinator) {
	status := coord.Status(views.Monitoring)
	fmt.Fprintf(w, "endpoint     %s\n", endpoint)
	fmt.Fprintf(w, "session      signed in\n")

	if analytics, ok := dashboard.SnapshotOf[adminapi.Analytics](coord, snapshot.Analytics); ok {
		fmt.Fprintf(w, "active bans  %d\n", analytics.BanCount)
		fmt.Fprintf(w, "test mode    %t\n", analytics.TestMode)
	}
	if events, ok := dashboard.SnapshotOf[adminapi.Events](coord, snapshot.Events); ok {
		keys := make([]string, 0, len(events.EventCounts))
		for k := range events.EventCounts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "events       %s=%d\n", k, events.EventCounts[k])
		}
	}
	if status.Empty {
		fmt.Fprintln(w, "activity     none")
	}
}
