// Package app is the composition root for the Bulwark console.
//
// # Overview
//
// This package wires configuration, logging, the admin API client, the
// session controller, the dashboard coordinator and the UI together. Run
// starts the interactive console. Check performs a single monitoring load
// and prints a summary, for scripts and health probes.
//
// # Startup
//
//  1. Load ~/.config/bulwark/config.toml and apply flag overrides
//  2. Open the JSON log file (an empty log path discards)
//  3. Load UI preferences (theme and last view)
//  4. Build the admin client and session controller
//  5. Build the dashboard coordinator on the last view
//  6. Restore the admin session, signing in with the API key if needed
//  7. Start the TUI and block until the operator quits or ctx is cancelled
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()           Read console config
//	       ├─────> logging.New()           zap JSON logger
//	       ├─────> adminapi.NewClient()    Cookie-jar HTTP client
//	       ├─────> session.NewController() Session + CSRF token
//	       ├─────> dashboard.New()         Views, drafts, scheduler
//	       ├─────> signIn()                Restore or log in
//	       └─────> ui.Run()                Start TUI (blocks)
//
// The coordinator reports every state change through ui.Notifier, which
// coalesces bursts so the TUI re-reads state at most once per frame.
//
// # Sessions
//
// The admin session is a cookie held only by this process. When no session
// can be restored, Options.APIKey is used, then Options.PromptKey. With
// neither the console starts signed out and the operator can sign in from
// the TUI later; a successful sign-in restarts auto-refresh.
//
// # Error Handling
//
// Fatal errors (returned from Run and Check):
//   - Invalid configuration or log level
//   - Admin API unreachable while restoring the session
//   - A rejected API key
//
// Recoverable errors (shown in the UI, auto-refresh continues):
//   - Failed view refreshes
//   - Rejected saves and ban writes
//   - A session that expires mid-run
package app
