// Package ui provides the terminal console for the Bulwark admin client.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. It owns no dashboard state of its own: every
// frame is rendered from a dashboard.State snapshot and the typed payloads in
// the coordinator's snapshot cache. Key presses translate into coordinator
// calls issued as tea.Cmd so network I/O never blocks the event loop.
//
// # Package Structure
//
//   - app.go: Model, Options, Init/Update/View and the key dispatcher
//   - commands.go: messages and the tea.Cmd wrappers around coordinator calls
//   - notify.go: coalescing bridge from coordinator change hooks to the program
//   - header.go: header line and the tab bar with per-view badges
//   - monitoring.go, bans.go, status.go: read-only view bodies
//   - tuning.go: the editable tuning form and its dirty markers
//   - login.go: sign-in prompt for a session that expired or was never opened
//   - format.go: relative times and counts rendered with go-humanize
//   - theme.go, style_helpers.go, keys.go, help.go, layout.go: presentation
//
// # Event Flow
//
//  1. Init starts the coordinator (session restore plus the first fetch) and
//     subscribes to change notifications.
//  2. The coordinator fires OnChange after every observable change. The
//     Notifier coalesces those into a single pending changedMsg.
//  3. Each changedMsg re-reads dashboard.State and re-arms the subscription.
//  4. Focus and blur events pause and resume auto-refresh.
//
// # Key Bindings
//
//   - 1-5, tab, shift+tab: switch view (a tab-mount refresh follows)
//   - r: manual refresh of the active view
//   - L: sign in with an admin API key
//   - j/k: move the selection in the tuning form or the ban list
//   - enter: edit the selected tuning field, s: save, x: discard
//   - b: ban an IP, u: unban the selected ban
//   - T: cycle theme, ?: help, q or ctrl+c: quit
package ui
