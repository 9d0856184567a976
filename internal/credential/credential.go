// Package credential tracks whether a usable API credential is
// currently selected and provides the port for selecting one.
package credential

import (
	"context"
	"errors"
	"os"
	"sync"
)

// ErrNoCredential is returned when a selector cannot produce a credential.
var ErrNoCredential = errors.New("credential: no credential available")

// Selector is the host-environment interaction for choosing a
// credential. Select blocks until the interaction completes and returns
// the chosen key. It gives no guarantee the key is actually valid.
type Selector interface {
	Select(ctx context.Context) (string, error)
}

// EnvSelector selects a credential by re-reading an environment
// variable, so a key updated between calls takes effect without a
// restart.
type EnvSelector struct {
	envVar string
}

// NewEnvSelector creates a selector reading the given environment
// variable. An empty name defaults to GEMINI_API_KEY.
func NewEnvSelector(envVar string) *EnvSelector {
	if envVar == "" {
		envVar = "GEMINI_API_KEY"
	}
	return &EnvSelector{envVar: envVar}
}

// Select returns the current value of the environment variable.
func (s *EnvSelector) Select(_ context.Context) (string, error) {
	key := os.Getenv(s.envVar)
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

// Compile-time check that EnvSelector implements Selector.
var _ Selector = (*EnvSelector)(nil)

// StaticSelector always returns a fixed key. Useful for tests and for
// deployments where the key is supplied once via configuration.
type StaticSelector struct {
	key string
}

// NewStaticSelector creates a selector returning the given key.
func NewStaticSelector(key string) *StaticSelector {
	return &StaticSelector{key: key}
}

// Select returns the fixed key.
func (s *StaticSelector) Select(_ context.Context) (string, error) {
	if s.key == "" {
		return "", ErrNoCredential
	}
	return s.key, nil
}

// Compile-time check that StaticSelector implements Selector.
var _ Selector = (*StaticSelector)(nil)

// Store is the process-wide credential selection state: the currently
// selected key and whether it is considered usable. A remote
// credential-rejection invalidates the selection; it must then be
// re-acquired before the next video generation attempt.
type Store struct {
	mu       sync.RWMutex
	key      string
	selected bool
}

// NewStore creates a Store. A non-empty initial key starts selected.
func NewStore(initialKey string) *Store {
	return &Store{
		key:      initialKey,
		selected: initialKey != "",
	}
}

// Selected reports whether a usable credential is currently selected.
func (s *Store) Selected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Key returns the currently selected credential.
func (s *Store) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// SetKey stores a newly selected credential and marks it selected.
func (s *Store) SetKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.selected = key != ""
}

// MarkSelected flags the current credential as usable without
// re-verifying it. The key itself is left unchanged.
func (s *Store) MarkSelected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = true
}

// Invalidate resets the selection after a remote credential rejection.
// The key is kept so the caller can inspect it, but it is no longer
// considered usable.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = false
}
