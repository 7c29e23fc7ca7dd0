package session

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Defaults are applied to every session the store creates.
type Defaults struct {
	MaxParticipants int
	StrokeThrottle  time.Duration
}

// Store maps session ids to their shared state. Sessions are created on
// first use and live until the process exits. A Store is owned by the hub
// goroutine and is not safe for concurrent use.
type Store struct {
	sessions map[string]*State
	defaults Defaults
	now      func() time.Time
}

func NewStore(defaults Defaults) *Store {
	return &Store{
		sessions: make(map[string]*State),
		defaults: defaults,
		now:      time.Now,
	}
}

// Create registers a new session under id, or under a fresh uuid when id
// is empty.
func (s *Store) Create(id string) (*State, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.sessions[id]; exists {
		return nil, ErrSessionExists
	}
	st := newState(id, s.defaults, s.now)
	s.sessions[id] = st
	return st, nil
}

// SetClock replaces the time source of sessions created afterwards.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Get(id string) (*State, bool) {
	st, ok := s.sessions[id]
	return st, ok
}

// GetOrCreate returns the session, creating it lazily.
func (s *Store) GetOrCreate(id string) (*State, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if st, ok := s.sessions[id]; ok {
		return st, nil
	}
	return s.Create(id)
}

func (s *Store) Len() int { return len(s.sessions) }

// IDs lists session ids in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
