package ui

import (
	"fmt"
	"strings"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/canonical"
	"github.com/five82/bulwark/internal/sections"
	"github.com/five82/bulwark/internal/snapshot"
)

type statusRow struct {
	label string
	value string
}

// statusRows summarizes the protections a config document turns on.
func statusRows(cfg adminapi.Config) []statusRow {
	return []statusRow{
		{"Test mode", onOff(cfg.Bool("test_mode", false))},
		{"Admin config writes", onOff(cfg.Bool("admin_config_write_enabled", true))},
		{"Edge integration", sections.NormalizeEdgeMode(cfg.String("edge_integration_mode", ""))},
		{"Rate limit", fmt.Sprintf("%s req/min", count(int64(cfg.Int("rate_limit", 0))))},
		{"JS verification", onOff(cfg.Bool("js_required_enforced", true))},
		{"Proof of work", onOff(cfg.Bool("pow_enabled", false))},
		{"Maze", onOff(cfg.Bool("maze_enabled", false))},
		{"Maze auto-ban", onOff(cfg.Bool("maze_auto_ban", false))},
		{"CDP detection", onOff(cfg.Bool("cdp_detection_enabled", false))},
		{"Honeypot", onOff(cfg.Bool("honeypot_enabled", true))},
		{"Robots.txt", onOff(cfg.Bool("robots_enabled", true))},
		{"Challenge puzzle", onOff(cfg.Bool("challenge_puzzle_enabled", true))},
		{"AI training bots", blocked(cfg.Bool("ai_policy_block_training", cfg.Bool("robots_block_ai_training", true)))},
	}
}

func (m Model) renderStatus() string {
	styles := m.theme.Styles()
	if len(m.state.Config) == 0 {
		return styles.MutedText.Render("No configuration loaded yet.")
	}

	var b strings.Builder
	for _, row := range statusRows(m.state.Config) {
		b.WriteString(styles.MutedText.Render(padRight(row.label, 22)))
		b.WriteString(styles.Text.Render(row.value))
		b.WriteString("\n")
	}
	if fail := m.state.Config.String("fail_mode", ""); fail != "" {
		b.WriteString(styles.MutedText.Render(padRight("Fail mode", 22)))
		b.WriteString(styles.Text.Render(fail))
		b.WriteString("\n")
	}
	if at, ok := m.console.FetchedAt(snapshot.Config); ok {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render(padRight("Config fetched", 22) + ago(at, m.now)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderConfig lists the server baseline of every section. Sections with
// pending edits are marked; their edits live on the tuning view.
func (m Model) renderConfig() string {
	styles := m.theme.Styles()
	if len(m.state.Config) == 0 {
		return styles.MutedText.Render("No configuration loaded yet.")
	}

	var b strings.Builder
	for _, s := range sections.FromConfig(m.state.Config) {
		marker := "   "
		if m.state.Dirty[s.Key()] {
			marker = styles.StatusStyle(statusDirty).Render(" * ")
		}
		b.WriteString(marker)
		b.WriteString(styles.AccentText.Render(padRight(string(s.Key()), 17)))
		b.WriteString(styles.Text.Render(truncate(canonical.String(s), max(m.width-23, 40))))
		b.WriteString("\n")
	}
	return b.String()
}
