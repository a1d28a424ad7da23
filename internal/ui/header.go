package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/bulwark/internal/views"
)

// viewState names the badge a view carries. Loading wins over error so a
// retry in flight is visible; error wins over stale.
func viewState(s views.ViewStatus) string {
	switch {
	case s.Loading:
		return statusLoading
	case s.HasError():
		return statusError
	case s.Stale:
		return statusStale
	case s.Empty:
		return statusEmpty
	default:
		return statusFresh
	}
}

var compactBadges = map[string]string{
	statusLoading: "…",
	statusError:   "!",
	statusStale:   "~",
	statusEmpty:   "∅",
}

// renderHeader renders the logo, endpoint, session and refresh state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newSurface(m.theme.Surface)

	parts := []string{bg.text("bulwark", styles.Logo)}
	if m.endpoint != "" {
		parts = append(parts, bg.text(m.endpoint, styles.MutedText))
	}

	if m.state.Authenticated {
		parts = append(parts, bg.text("signed in", styles.SuccessText))
	} else {
		parts = append(parts, bg.text("signed out", styles.DangerText))
	}

	active := m.state.Views[m.state.Active]
	switch {
	case active.Loading:
		parts = append(parts, m.spinner.View()+bg.text(" loading", styles.InfoText))
	case !active.UpdatedAt.IsZero():
		parts = append(parts, bg.text("updated "+ago(active.UpdatedAt, m.now), styles.MutedText))
	}

	if interval := m.console.Interval(m.state.Active); interval > 0 {
		if m.console.AutoRefreshPending() {
			parts = append(parts, bg.text("auto "+interval.String(), styles.FaintText))
		} else {
			parts = append(parts, bg.text("auto paused", styles.WarningText))
		}
	}

	return styles.Header.Width(m.width).Render(bg.line(parts, "  ", 0))
}

// renderTabs renders one tab per view. Non-fresh views carry a badge.
func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	bg := newSurface(m.theme.Surface)
	compact := m.width > 0 && m.width < LayoutCompactWidth

	tabs := make([]string, 0, len(views.All()))
	for i, v := range views.All() {
		label := fmt.Sprintf("%d %s", i+1, v.Label())
		style := styles.Tab
		if v == m.state.Active {
			style = styles.ActiveTab
		}
		tab := style.Render(label)

		if state := viewState(m.state.Views[v]); state != statusFresh {
			text := state
			if compact {
				text = compactBadges[state]
			}
			tab += styles.StatusStyle(state).Render(text)
		}
		if v == views.Tuning && len(m.state.Dirty) > 0 {
			tab += styles.StatusStyle(statusDirty).Render(fmt.Sprintf("%d", len(m.state.Dirty)))
		}
		tabs = append(tabs, tab)
	}
	return bg.line(tabs, " ", m.width)
}

// renderFooter shows the current notice, or the short help.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	var content string
	if notice, isErr := m.activeNotice(); notice != "" {
		style := styles.SuccessText
		if isErr {
			style = styles.DangerText
		}
		content = style.Render(notice)
	} else {
		content = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return lipgloss.NewStyle().Width(m.width).Render(strings.TrimRight(content, " "))
}
