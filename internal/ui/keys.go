package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the console.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	NextView   key.Binding
	PrevView   key.Binding
	Refresh    key.Binding
	Login      key.Binding
	Logout     key.Binding

	// View switching
	ViewMonitoring key.Binding
	ViewIPBans     key.Binding
	ViewStatus     key.Binding
	ViewConfig     key.Binding
	ViewTuning     key.Binding

	// Navigation
	Up   key.Binding
	Down key.Binding

	// Tuning form
	Edit    key.Binding
	Toggle  key.Binding
	Save    key.Binding
	Discard key.Binding

	// IP bans
	Ban   key.Binding
	Unban key.Binding

	// Prompts
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		NextView: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		PrevView: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh view"),
		),
		Login: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Sign in"),
		),
		Logout: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "Sign out"),
		),

		ViewMonitoring: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Monitoring"),
		),
		ViewIPBans: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "IP bans"),
		),
		ViewStatus: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Status"),
		),
		ViewConfig: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Config"),
		),
		ViewTuning: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "Tuning"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "Move down"),
		),

		Edit: key.NewBinding(
			key.WithKeys("enter", "e"),
			key.WithHelp("enter", "Edit field"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "Toggle option"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Save section"),
		),
		Discard: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Discard edits"),
		),

		Ban: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Ban IP"),
		),
		Unban: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Unban selected"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel / dismiss error"),
		),
	}
}

// ShortHelp implements help.KeyMap for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextView, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap. Each group is one overlay section.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextView, k.PrevView, k.ViewMonitoring, k.ViewIPBans, k.ViewStatus, k.ViewConfig, k.ViewTuning},
		{k.Up, k.Down, k.Edit, k.Toggle, k.Save, k.Discard},
		{k.Ban, k.Unban, k.Confirm, k.Cancel},
		{k.Refresh, k.Login, k.Logout, k.CycleTheme, k.Help, k.Quit},
	}
}

// viewKeys maps the view switching bindings to their views in display order.
func (k keyMap) viewKeys() []key.Binding {
	return []key.Binding{k.ViewMonitoring, k.ViewIPBans, k.ViewStatus, k.ViewConfig, k.ViewTuning}
}
