// Package dashboard coordinates view state, section drafts, snapshots and
// auto-refresh for the admin console.
//
// # Overview
//
// A Coordinator is the single owner of the per-view state machine, the
// draft store and the snapshot cache. Every refresh, save and ban goes
// through it, and each call applies its state transitions under one lock so
// readers never observe a view between BeginLoad and its outcome.
//
// # Refresh
//
// Refresh(ctx, view, reason) fetches every resource the view renders in
// parallel. Scheduled ticks and tab mounts are skipped when the view is not
// stale; manual refreshes and post-write refreshes always fetch. A failed
// fetch records an error on the view and keeps the previous snapshots so the
// last good data stays on screen.
//
// # Drafts
//
// The operator's in-progress form values are registered with Edit. A section
// is dirty when its registered value fingerprints differently from the last
// known-good baseline. Config fetches re-baseline sections, except those
// whose registered edit is still dirty, so a background refresh never
// overwrites work in progress.
//
// # Writes
//
// Save validates locally, posts the section patch, accepts the result as the
// new baseline and invalidates the section's scope. Only the active view is
// refreshed right away; other affected views stay stale until they are next
// shown or polled. Each section has its own saving flag; a second Save while
// one is in flight returns ErrSaveInFlight.
//
// # Sessions
//
// Any authorization failure drops the session, cancels auto-refresh and
// calls the OnUnauthorized hook.
package dashboard
