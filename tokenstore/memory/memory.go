// Package memory provides an in-process token store. It is the default
// backend when none is configured and the workhorse of the test suite;
// credentials do not survive a process restart.
package memory

import (
	"context"
	"sync"

	"github.com/loopchat/authkit/tokenstore"
)

// Store holds the credential pair behind a mutex.
type Store struct {
	mu   sync.Mutex
	pair *tokenstore.Pair
}

var _ tokenstore.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) Read(_ context.Context) (*tokenstore.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return nil, nil
	}
	p := *s.pair
	return &p, nil
}

func (s *Store) Write(_ context.Context, pair tokenstore.Pair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = &pair
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = nil
	return nil
}
