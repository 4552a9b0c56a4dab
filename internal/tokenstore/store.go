// Package tokenstore keeps the session's credentials in one of two backends:
// an ephemeral one for session-only logins and a persistent one for
// "remember me". A value is never held by both.
package tokenstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nexahealth/nexa/pkg/domain"
)

// Store holds a single value under key across the two backends.
type Store struct {
	mu         sync.Mutex
	ephemeral  Backend
	persistent Backend
	key        string
}

// New returns a store for key.
func New(ephemeral, persistent Backend, key string) *Store {
	return &Store{ephemeral: ephemeral, persistent: persistent, key: key}
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }

// Get reads the ephemeral backend first and falls back to the persistent one.
func (s *Store) Get() (string, bool) {
	v, _, ok := s.Lookup()
	return v, ok
}

// Lookup is Get that also reports which backend holds the value.
func (s *Store) Lookup() (string, domain.Persistence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.ephemeral.Get(s.key); ok && v != "" {
		return v, domain.Ephemeral, true
	}
	if v, ok := s.persistent.Get(s.key); ok && v != "" {
		return v, domain.Remembered, true
	}
	return "", domain.Ephemeral, false
}

// Set writes value to the persistent backend when remember is true and to the
// ephemeral backend otherwise. The other backend is cleared first.
func (s *Store) Set(value string, remember bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, other := s.ephemeral, s.persistent
	if remember {
		target, other = s.persistent, s.ephemeral
	}
	if err := other.Delete(s.key); err != nil {
		return fmt.Errorf("tokenstore.Set(%s): %w", s.key, err)
	}
	if err := target.Set(s.key, value); err != nil {
		return fmt.Errorf("tokenstore.Set(%s): %w", s.key, err)
	}
	return nil
}

// SetAs writes value with the given persistence.
func (s *Store) SetAs(value string, p domain.Persistence) error {
	return s.Set(value, p == domain.Remembered)
}

// CompareAndSwap replaces old with value in whichever backend holds it. It
// writes nothing and reports false when the store no longer holds old, as
// after a logout or a new login.
func (s *Store) CompareAndSwap(old, value string) (domain.Persistence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, p := s.ephemeral, domain.Ephemeral
	cur, ok := s.ephemeral.Get(s.key)
	if !ok || cur == "" {
		target, p = s.persistent, domain.Remembered
		cur, ok = s.persistent.Get(s.key)
	}
	if !ok || cur != old {
		return domain.Ephemeral, false, nil
	}
	if err := target.Set(s.key, value); err != nil {
		return p, false, fmt.Errorf("tokenstore.CompareAndSwap(%s): %w", s.key, err)
	}
	return p, true, nil
}

// Clear removes the value from both backends. Clearing an empty store is a
// no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.ephemeral.Delete(s.key), s.persistent.Delete(s.key))
}
