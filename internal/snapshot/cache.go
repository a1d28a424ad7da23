// Package snapshot keeps the latest fetched payload per resource kind.
package snapshot

import (
	"time"

	"github.com/five82/bulwark/internal/canonical"
)

// Kind names a remote resource.
type Kind string

const (
	Analytics  Kind = "analytics"
	Events     Kind = "events"
	Bans       Kind = "bans"
	Maze       Kind = "maze"
	CDP        Kind = "cdp"
	CDPEvents  Kind = "cdpEvents"
	Monitoring Kind = "monitoring"
	Config     Kind = "config"
)

var kinds = []Kind{Analytics, Events, Bans, Maze, CDP, CDPEvents, Monitoring, Config}

// Kinds returns every known resource kind.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

type entry struct {
	value     any
	digest    uint64
	fetchedAt time.Time
}

// Cache stores one payload per kind, replaced wholesale on each successful
// fetch. Cache is not safe for concurrent use; its owner serializes access.
type Cache struct {
	now     func() time.Time
	entries map[Kind]entry
}

// NewCache returns an empty Cache. A nil now uses time.Now.
func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{now: now, entries: make(map[Kind]entry)}
}

// Set stores value for kind and reports whether its content differs from the
// previous payload. Unknown kinds are ignored.
func (c *Cache) Set(kind Kind, value any) bool {
	if !kind.Valid() {
		return false
	}
	digest := canonical.Digest(canonical.String(value))
	prev, had := c.entries[kind]
	c.entries[kind] = entry{value: value, digest: digest, fetchedAt: c.now()}
	return !had || prev.digest != digest
}

// Get returns the stored payload for kind.
func (c *Cache) Get(kind Kind) (any, bool) {
	e, ok := c.entries[kind]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// FetchedAt returns when kind was last stored.
func (c *Cache) FetchedAt(kind Kind) (time.Time, bool) {
	e, ok := c.entries[kind]
	return e.fetchedAt, ok
}

// Typed returns the payload for kind when it holds a T.
func Typed[T any](c *Cache, kind Kind) (T, bool) {
	var zero T
	v, ok := c.Get(kind)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
