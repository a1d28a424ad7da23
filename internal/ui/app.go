package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/bulwark/internal/dashboard"
	"github.com/five82/bulwark/internal/draft"
	"github.com/five82/bulwark/internal/prefs"
	"github.com/five82/bulwark/internal/sections"
	"github.com/five82/bulwark/internal/snapshot"
	"github.com/five82/bulwark/internal/views"
)

// Console is the dashboard surface the UI drives. *dashboard.Coordinator
// satisfies it.
type Console interface {
	Start(ctx context.Context) error
	State() dashboard.State
	Snapshot(kind snapshot.Kind) (any, bool)
	Activate(ctx context.Context, view views.View) error
	Refresh(ctx context.Context, view views.View, reason dashboard.Reason) error
	SetVisible(visible bool)
	AutoRefreshPending() bool
	Interval(view views.View) time.Duration
	Now() time.Time
	FetchedAt(kind snapshot.Kind) (time.Time, bool)
	DismissError(view views.View)

	Draft(key draft.Section) sections.Section
	Edit(s sections.Section)
	Discard(key draft.Section)
	CanSave(key draft.Section) bool
	Save(ctx context.Context, key draft.Section) error

	BanIP(ctx context.Context, ip string, durationSeconds int) error
	UnbanIP(ctx context.Context, ip string) error
}

// Options configures the UI.
type Options struct {
	Context  context.Context
	Console  Console
	Notifier *Notifier
	Logger   *zap.Logger
	// Endpoint is shown in the header.
	Endpoint  string
	ThemeName string
	PrefsPath string
	// BanSeconds is the ban length used when the prompt gives none.
	BanSeconds int
	// Login backs the sign-in prompt. Nil disables it.
	Login LoginFunc
	// Logout backs the sign-out key. Nil disables it.
	Logout LogoutFunc
}

const defaultBanSeconds = 3600

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx        context.Context
	console    Console
	notifier   *Notifier
	logger     *zap.Logger
	endpoint   string
	prefsPath  string
	banSeconds int
	login      LoginFunc
	logout     LogoutFunc
	keys       keyMap

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool
	spinner  spinner.Model
	help     help.Model

	// Data state
	state dashboard.State
	now   time.Time

	// Footer notice
	notice    string
	noticeErr bool
	noticeAt  time.Time

	tuning      tuningState
	bans        banState
	loginPrompt loginState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	banSeconds := opts.BanSeconds
	if banSeconds <= 0 {
		banSeconds = defaultBanSeconds
	}

	theme := GetTheme(themeName)
	spin := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	spin.Style = theme.Styles().InfoText

	m := Model{
		ctx:         ctx,
		console:     opts.Console,
		notifier:    notifier,
		logger:      logger,
		endpoint:    opts.Endpoint,
		prefsPath:   prefsPath,
		banSeconds:  banSeconds,
		login:       opts.Login,
		logout:      opts.Logout,
		keys:        DefaultKeyMap(),
		theme:       theme,
		spinner:     spin,
		help:        help.New(),
		tuning:      newTuningState(),
		bans:        newBanState(),
		loginPrompt: newLoginState(),
	}
	if m.console != nil {
		m.state = m.console.State()
		m.now = m.console.Now()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.notifier.wait(m.ctx),
		m.spinner.Tick,
		clockCmd(),
	}
	if m.console != nil {
		cmds = append(cmds, startCmd(m.ctx, m.console))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tea.FocusMsg:
		m.console.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.console.SetVisible(false)
		return m, nil

	case changedMsg:
		m.sync()
		return m, m.notifier.wait(m.ctx)

	case clockMsg:
		m.now = m.console.Now()
		return m, clockCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startedMsg:
		if msg.err != nil {
			m.setNotice(msg.err.Error(), true)
		} else if !m.console.State().Authenticated {
			m.setNotice(signInHint, true)
		}
		m.sync()
		return m, nil

	case actionMsg:
		switch {
		case errors.Is(msg.err, dashboard.ErrNoSession):
			m.setNotice(signInHint, true)
		case msg.err != nil:
			m.setNotice(msg.err.Error(), true)
		case msg.done != "":
			m.setNotice(msg.done, false)
		}
		m.sync()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// sync re-reads the dashboard state.
func (m *Model) sync() {
	m.state = m.console.State()
	m.now = m.console.Now()
	m.bans.clamp(len(m.banList()))
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.noticeAt = m.console.Now()
}

func (m Model) activeNotice() (string, bool) {
	if m.notice == "" || m.now.Sub(m.noticeAt) > NoticeTTL {
		return "", false
	}
	return m.notice, m.noticeErr
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	// Open inputs take every key except ctrl+c.
	if msg.String() != "ctrl+c" {
		if m.tuning.editing {
			return m.handleTuningInput(msg)
		}
		if m.bans.prompting {
			return m.handleBanPrompt(msg)
		}
		if m.loginPrompt.prompting {
			return m.handleLoginPrompt(msg)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = m.theme.Styles().InfoText
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.NextView):
		return m.switchView(m.offsetView(1))

	case key.Matches(msg, m.keys.PrevView):
		return m.switchView(m.offsetView(-1))

	case key.Matches(msg, m.keys.Refresh):
		return m, refreshCmd(m.ctx, m.console, m.state.Active)

	case key.Matches(msg, m.keys.Login):
		return m.openLogin()

	case key.Matches(msg, m.keys.Logout):
		return m.signOut()

	case key.Matches(msg, m.keys.Cancel) && m.state.Views[m.state.Active].HasError():
		m.console.DismissError(m.state.Active)
		m.sync()
		return m, nil
	}

	for i, binding := range m.keys.viewKeys() {
		if key.Matches(msg, binding) {
			return m.switchView(views.All()[i])
		}
	}

	// View-specific keys
	switch m.state.Active {
	case views.Tuning:
		return m.handleTuningKey(msg)
	case views.IPBans:
		return m.handleBansKey(msg)
	}

	return m, nil
}

// offsetView returns the view delta tabs away from the active one.
func (m Model) offsetView(delta int) views.View {
	all := views.All()
	idx := 0
	for i, v := range all {
		if v == m.state.Active {
			idx = i
			break
		}
	}
	return all[(idx+delta+len(all))%len(all)]
}

// switchView shows view at once and lets the coordinator decide whether the
// tab-mount needs a fetch.
func (m Model) switchView(view views.View) (tea.Model, tea.Cmd) {
	if view == m.state.Active {
		return m, nil
	}
	m.state.Active = view
	m.savePrefs()
	return m, activateCmd(m.ctx, m.console, view)
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	p := prefs.Prefs{Theme: m.theme.Name, LastView: string(m.state.Active)}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.logger.Warn("save prefs failed", zap.Error(err))
	}
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderContent renders the body of the active view.
func (m Model) renderContent() string {
	var b strings.Builder
	if m.loginPrompt.prompting {
		b.WriteString(m.renderLogin())
	}
	status := m.state.Views[m.state.Active]
	if status.HasError() {
		b.WriteString(m.theme.Styles().DangerText.Render("Last refresh failed: " + status.Error))
		b.WriteString("\n\n")
	}

	switch m.state.Active {
	case views.Monitoring:
		b.WriteString(m.renderMonitoring())
	case views.IPBans:
		b.WriteString(m.renderBans())
	case views.Status:
		b.WriteString(m.renderStatus())
	case views.Config:
		b.WriteString(m.renderConfig())
	case views.Tuning:
		b.WriteString(m.renderTuning())
	}
	return b.String()
}

// Run starts the Bubble Tea program. Focus reporting drives auto-refresh
// visibility.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
