// Package sections defines the independently savable parts of the server
// configuration.
//
// Each section is a small value type with JSON tags so its canonical
// fingerprint is stable. A section knows the config keys it writes (Patch),
// the local bounds checks it must pass before any request is made (Validate)
// and the views that go stale when it is saved (Scope).
//
// FromConfig reads every section out of a server config document; Defaults
// returns the values used before the first config load.
package sections
