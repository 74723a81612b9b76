package config

import "sync"

// Store holds the active configuration and allows the watcher to swap it in
// place while the server runs. Handlers read a snapshot per request.
type Store struct {
	mu      sync.RWMutex
	current Config
}

// NewStore wraps an initial configuration.
func NewStore(cfg Config) *Store {
	return &Store{current: cfg}
}

// Current returns the active configuration snapshot.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in a freshly loaded configuration.
func (s *Store) Replace(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = cfg
}
