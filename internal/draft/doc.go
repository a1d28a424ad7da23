// Package draft tracks the last synchronized value of every editable
// configuration section and answers whether an operator's edit differs from it.
//
// # Fingerprints
//
// Each baseline is stored together with its canonical fingerprint
// (see package canonical). Dirtiness is a single string comparison:
//
//	store.Set("maze", Maze{Threshold: 50})
//	store.IsDirty("maze", Maze{Threshold: 50}) // false
//	store.IsDirty("maze", Maze{Threshold: 75}) // true
//
// Because fingerprints ignore key order and treat null fields as absent, a
// server that reorders or omits optional fields does not produce false
// "unsaved changes" signals.
//
// # Baseline policy
//
// A section that was never set is dirty under IsDirty. Callers that want a
// compile-time default to act as the baseline use IsDirtyOr and pass the
// default explicitly, so the policy is visible at each call site.
//
// # Copies
//
// Set and Get copy through the canonical codec. A caller mutating a
// value it received, or a value it passed to Set, cannot reach the stored
// baseline.
//
// # Concurrency
//
// Store is safe for concurrent use. Reads take a shared lock; Set takes the
// exclusive lock only to swap the entry, after fingerprinting.
package draft
