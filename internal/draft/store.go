package draft

import (
	"sync"

	"github.com/five82/bulwark/internal/canonical"
)

// Section names an independently savable configuration unit.
type Section string

type entry struct {
	value       any
	fingerprint string
}

// Store holds the last synchronized value of every section together with its
// canonical fingerprint. The zero value is ready to use.
type Store struct {
	mu       sync.RWMutex
	sections map[Section]entry
}

// NewStore returns a Store seeded with the given baselines.
func NewStore(initial map[Section]any) *Store {
	s := &Store{}
	for section, value := range initial {
		s.Set(section, value)
	}
	return s
}

// Set replaces the known-good value of section. Call it only when a fresh
// authoritative value is accepted: an initial load or a confirmed save.
func (s *Store) Set(section Section, value any) {
	stored := canonical.CloneAny(value)
	fingerprint := canonical.String(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sections == nil {
		s.sections = make(map[Section]entry)
	}
	s.sections[section] = entry{value: stored, fingerprint: fingerprint}
}

// Get returns a deep copy of the stored value, or a deep copy of fallback when
// section was never set.
func (s *Store) Get(section Section, fallback any) any {
	s.mu.RLock()
	e, ok := s.sections[section]
	s.mu.RUnlock()
	if !ok {
		return canonical.CloneAny(fallback)
	}
	return canonical.CloneAny(e.value)
}

// Fingerprint returns the stored fingerprint of section.
func (s *Store) Fingerprint(section Section) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sections[section]
	return e.fingerprint, ok
}

// IsDirty reports whether current differs from the stored baseline. A section
// without a baseline is dirty: there is nothing to compare against.
func (s *Store) IsDirty(section Section, current any) bool {
	fingerprint, ok := s.Fingerprint(section)
	if !ok {
		return true
	}
	return canonical.String(current) != fingerprint
}

// IsDirtyOr is IsDirty with an explicit baseline for sections that were never
// set. Callers use it where a compile-time default is an acceptable stand-in
// for the server value.
func (s *Store) IsDirtyOr(section Section, current, fallback any) bool {
	fingerprint, ok := s.Fingerprint(section)
	if !ok {
		fingerprint = canonical.String(fallback)
	}
	return canonical.String(current) != fingerprint
}
