package ui

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/snapshot"
	"github.com/five82/bulwark/internal/views"
)

type banState struct {
	selected  int
	prompting bool
	input     textinput.Model
}

func newBanState() banState {
	input := textinput.New()
	input.Prompt = "ban> "
	input.Placeholder = "203.0.113.7 1h"
	input.CharLimit = 64
	return banState{input: input}
}

// clamp keeps the selection inside a list of n rows.
func (s *banState) clamp(n int) {
	if s.selected >= n {
		s.selected = n - 1
	}
	if s.selected < 0 {
		s.selected = 0
	}
}

func (m Model) banList() []adminapi.Ban {
	if m.console == nil {
		return nil
	}
	bans, _ := typed[adminapi.Bans](m.console, snapshot.Bans)
	return bans.Bans
}

func (m Model) handleBansKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := m.banList()
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.bans.selected < len(list)-1 {
			m.bans.selected++
		}
	case key.Matches(msg, m.keys.Up):
		if m.bans.selected > 0 {
			m.bans.selected--
		}
	case key.Matches(msg, m.keys.Ban):
		m.bans.prompting = true
		m.bans.input.SetValue("")
		return m, m.bans.input.Focus()
	case key.Matches(msg, m.keys.Unban):
		if len(list) == 0 {
			return m, nil
		}
		m.bans.clamp(len(list))
		return m, unbanCmd(m.ctx, m.console, list[m.bans.selected].IP)
	}
	return m, nil
}

func (m Model) handleBanPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.bans.prompting = false
		m.bans.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		ip, seconds, err := parseBanInput(m.bans.input.Value(), m.banSeconds)
		if err != nil {
			m.setNotice(err.Error(), true)
			return m, nil
		}
		m.bans.prompting = false
		m.bans.input.Blur()
		return m, banCmd(m.ctx, m.console, ip, seconds)
	}
	var cmd tea.Cmd
	m.bans.input, cmd = m.bans.input.Update(msg)
	return m, cmd
}

// parseBanInput reads "IP [DURATION]". DURATION is whole seconds or a Go
// duration such as 90m; it defaults to fallback seconds.
func parseBanInput(raw string, fallback int) (string, int, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 || len(fields) > 2 {
		return "", 0, fmt.Errorf("enter an IP and an optional duration")
	}
	ip := fields[0]
	if net.ParseIP(ip) == nil {
		return "", 0, fmt.Errorf("invalid IP address %q", ip)
	}
	if len(fields) == 1 {
		return ip, fallback, nil
	}
	if n, err := strconv.Atoi(fields[1]); err == nil {
		return ip, n, nil
	}
	d, err := time.ParseDuration(fields[1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid duration %q", fields[1])
	}
	return ip, int(d / time.Second), nil
}

func (m Model) renderBans() string {
	styles := m.theme.Styles()
	status := m.state.Views[views.IPBans]
	list := m.banList()

	var b strings.Builder
	if m.bans.prompting {
		b.WriteString(m.bans.input.View())
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("enter to ban (default %s), esc to cancel", formatSeconds(m.banSeconds))))
		b.WriteString("\n\n")
	}

	switch {
	case len(list) == 0 && status.Loading:
		b.WriteString(styles.MutedText.Render("Loading bans..."))
		return b.String()
	case len(list) == 0:
		b.WriteString(styles.MutedText.Render("No active bans. Press b to ban an IP."))
		return b.String()
	}

	b.WriteString(styles.MutedText.Render(fmt.Sprintf("%s  %s  %s  %s",
		padRight("IP", 40), padRight("REASON", 18), padRight("EXPIRES", 16), "SIGNALS")))
	b.WriteString("\n")
	for i, ban := range list {
		signals := ""
		if ban.Fingerprint != nil {
			signals = strings.Join(ban.Fingerprint.Signals, ",")
		}
		row := fmt.Sprintf("%s  %s  %s  %s",
			padRight(truncate(ban.IP, 40), 40),
			padRight(truncate(ban.Reason, 18), 18),
			padRight(remaining(ban.ExpiresAt(), m.now), 16),
			truncate(signals, 30),
		)
		if i == m.bans.selected {
			b.WriteString(styles.Selected.Render(row))
		} else {
			b.WriteString(styles.Text.Render(row))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(plural(len(list), "ban") + " · b ban · u unban selected"))
	return b.String()
}
