package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// LoginFunc exchanges an admin API key for a session and resumes the
// dashboard.
type LoginFunc func(ctx context.Context, apiKey string) error

// LogoutFunc ends the admin session and stops auto-refresh.
type LogoutFunc func(ctx context.Context) error

const signInHint = "Not signed in. Press L to sign in."

type loginState struct {
	prompting bool
	input     textinput.Model
}

func newLoginState() loginState {
	input := textinput.New()
	input.Prompt = "api key> "
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.CharLimit = 256
	return loginState{input: input}
}

func loginCmd(ctx context.Context, login LoginFunc, apiKey string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if err := login(ctx, apiKey); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{done: "Signed in"}
	}
}

func logoutCmd(ctx context.Context, logout LogoutFunc) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if err := logout(ctx); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{done: "Signed out"}
	}
}

func (m Model) signOut() (tea.Model, tea.Cmd) {
	switch {
	case m.logout == nil:
		m.setNotice("Sign-out is not available here.", true)
		return m, nil
	case !m.state.Authenticated:
		m.setNotice("Already signed out.", false)
		return m, nil
	}
	return m, logoutCmd(m.ctx, m.logout)
}

func (m Model) openLogin() (tea.Model, tea.Cmd) {
	if m.login == nil {
		m.setNotice("Sign-in is not available here; restart bulwark.", true)
		return m, nil
	}
	m.loginPrompt.prompting = true
	m.loginPrompt.input.SetValue("")
	return m, m.loginPrompt.input.Focus()
}

func (m Model) handleLoginPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.loginPrompt.prompting = false
		m.loginPrompt.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		apiKey := strings.TrimSpace(m.loginPrompt.input.Value())
		m.loginPrompt.prompting = false
		m.loginPrompt.input.SetValue("")
		m.loginPrompt.input.Blur()
		if apiKey == "" {
			return m, nil
		}
		return m, loginCmd(m.ctx, m.login, apiKey)
	}
	var cmd tea.Cmd
	m.loginPrompt.input, cmd = m.loginPrompt.input.Update(msg)
	return m, cmd
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	return m.loginPrompt.input.View() + "\n" +
		styles.FaintText.Render("enter to sign in, esc to cancel") + "\n\n"
}
