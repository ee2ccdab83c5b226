// Package session keeps per-visitor dashboard state.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Resolve picks the selection for items: previous if it is still offered,
// otherwise the first item. It returns "" only when items is empty.
func Resolve(items []string, previous string) string {
	if len(items) == 0 {
		return ""
	}
	if previous != "" {
		for _, it := range items {
			if it == previous {
				return previous
			}
		}
	}
	return items[0]
}

// State is what one session remembers between page loads.
type State struct {
	ID       string
	Selected string
	LastSeen time.Time
}

// Store holds session state in memory with idle expiry.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*State
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*State),
	}
}

// Get returns a copy of the session state for id, creating a new session
// (with a fresh ID) when id is unknown or expired.
func (s *Store) Get(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	st, ok := s.sessions[id]
	if !ok {
		st = &State{ID: uuid.NewString()}
		s.sessions[st.ID] = st
	}
	st.LastSeen = now
	return *st
}

// Select stores the chosen item for id. Unknown ids are ignored.
func (s *Store) Select(id, item string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[id]; ok {
		st.Selected = item
		st.LastSeen = s.now()
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) pruneLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, st := range s.sessions {
		if now.Sub(st.LastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
