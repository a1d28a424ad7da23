package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/snapshot"
	"github.com/five82/bulwark/internal/views"
)

// typed reads a snapshot and asserts its payload type.
func typed[T any](console Console, kind snapshot.Kind) (T, bool) {
	var zero T
	raw, ok := console.Snapshot(kind)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

func (m Model) renderMonitoring() string {
	styles := m.theme.Styles()
	status := m.state.Views[views.Monitoring]

	analytics, hasAnalytics := typed[adminapi.Analytics](m.console, snapshot.Analytics)
	events, _ := typed[adminapi.Events](m.console, snapshot.Events)
	maze, _ := typed[adminapi.Maze](m.console, snapshot.Maze)
	cdp, _ := typed[adminapi.CDP](m.console, snapshot.CDP)

	if !hasAnalytics {
		if status.Loading {
			return styles.MutedText.Render("Loading monitoring data...")
		}
		return styles.MutedText.Render("No monitoring data yet. Press r to refresh.")
	}

	var b strings.Builder
	b.WriteString(m.renderTotals(analytics, events))
	b.WriteString("\n\n")

	if status.Empty {
		b.WriteString(styles.MutedText.Render("No recent activity."))
		b.WriteString("\n")
		return b.String()
	}

	panels := []string{
		m.renderPanel("Top offenders", topIPLines(events.TopIPs)),
		m.renderPanel("Maze", mazeLines(maze)),
		m.renderPanel("Automation", cdpLines(cdp)),
	}
	if m.width >= LayoutWideWidth {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	} else {
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, panels...))
	}
	b.WriteString("\n")
	b.WriteString(m.renderPanel("Recent events", m.eventLines(events.RecentEvents)))
	return b.String()
}

func (m Model) renderTotals(analytics adminapi.Analytics, events adminapi.Events) string {
	styles := m.theme.Styles()
	parts := []string{
		styles.Text.Render(fmt.Sprintf("Active bans %s", count(int64(analytics.BanCount)))),
	}
	if analytics.TestMode {
		parts = append(parts, styles.WarningText.Render("TEST MODE"))
	}
	if analytics.FailMode != "" {
		parts = append(parts, styles.MutedText.Render("fail "+analytics.FailMode))
	}

	keys := make([]string, 0, len(events.EventCounts))
	for k := range events.EventCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, styles.MutedText.Render(fmt.Sprintf("%s %s", k, count(events.EventCounts[k]))))
	}
	return strings.Join(parts, "   ")
}

func (m Model) renderPanel(title string, lines []string) string {
	styles := m.theme.Styles()
	body := styles.AccentText.Bold(true).Render(title)
	if len(lines) == 0 {
		body += "\n" + styles.FaintText.Render("none")
	} else {
		body += "\n" + strings.Join(lines, "\n")
	}
	return styles.Panel.Render(body)
}

func topIPLines(top []adminapi.IPCount) []string {
	lines := make([]string, 0, TopListLimit)
	for i, entry := range top {
		if i == TopListLimit {
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s", padRight(entry.IP, 18), count(entry.Count)))
	}
	return lines
}

func mazeLines(maze adminapi.Maze) []string {
	lines := []string{
		fmt.Sprintf("hits %s", count(int64(maze.TotalHits))),
		fmt.Sprintf("crawlers %s", count(int64(maze.UniqueCrawlers))),
		fmt.Sprintf("auto-bans %s", count(int64(maze.AutoBans))),
	}
	for i, c := range maze.TopCrawlers {
		if i == TopListLimit {
			break
		}
		lines = append(lines, fmt.Sprintf("  %s %s", padRight(c.IP, 16), count(int64(c.Hits))))
	}
	return lines
}

func cdpLines(cdp adminapi.CDP) []string {
	lines := []string{
		fmt.Sprintf("detections %s", count(int64(cdp.Stats.TotalDetections))),
		fmt.Sprintf("auto-bans %s", count(int64(cdp.Stats.AutoBans))),
	}
	signals := make([]string, 0, len(cdp.FingerprintStats))
	for k := range cdp.FingerprintStats {
		signals = append(signals, k)
	}
	sort.Strings(signals)
	for _, k := range signals {
		lines = append(lines, fmt.Sprintf("  %s %s", padRight(k, 16), count(int64(cdp.FingerprintStats[k]))))
	}
	return lines
}

func (m Model) eventLines(events []adminapi.Event) []string {
	lines := make([]string, 0, RecentEventsLimit)
	for i, e := range events {
		if i == RecentEventsLimit {
			break
		}
		detail := e.Reason
		if detail == "" {
			detail = e.Outcome
		}
		lines = append(lines, fmt.Sprintf("%s  %s  %s  %s",
			padRight(ago(e.Time(), m.now), 16),
			padRight(e.Event, 12),
			padRight(e.IP, 18),
			truncate(detail, 40),
		))
	}
	return lines
}
