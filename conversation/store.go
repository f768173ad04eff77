package conversation

import (
	"sort"
	"sync"

	"github.com/hupe1980/ifai/model"
)

// DefaultID is the id Get uses for an empty id.
const DefaultID = "default"

// Store is a process-local registry of sessions keyed by id. Sessions built
// by the store share one provider and one set of session options. It is
// safe for concurrent access.
type Store struct {
	provider model.Provider
	optFns   []func(o *SessionOptions)

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store whose sessions talk to provider.
func NewStore(provider model.Provider, optFns ...func(o *SessionOptions)) *Store {
	return &Store{
		provider: provider,
		optFns:   optFns,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating it lazily. An empty id stands
// for DefaultID, so repeated calls return the same session; use Create("")
// for a fresh session with a random id.
func (s *Store) Get(id string) *Session {
	if id == "" {
		id = DefaultID
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	return s.createLocked(id)
}

// Lookup returns the session for id without creating it.
func (s *Store) Lookup(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Create forces the creation (or replacement) of the session for id. An
// empty id gets a random one.
func (s *Store) Create(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(id)
}

// Delete removes the session for id. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// IDs returns the ids of all stored sessions in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// createLocked builds and stores a session; caller must hold the write lock.
func (s *Store) createLocked(id string) *Session {
	fns := make([]func(o *SessionOptions), 0, len(s.optFns)+1)
	fns = append(fns, s.optFns...)
	fns = append(fns, func(o *SessionOptions) { o.ID = id })
	sess := NewSession(s.provider, fns...)
	s.sessions[sess.ID()] = sess
	return sess
}
