package server

import (
	"sort"
	"sync"
)

// Store owns every live GameSession, keyed by join code. The single
// mutex serializes all mutation of a session and its participants;
// update closures run while it is held.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*GameSession
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*GameSession),
	}
}

func (s *Store) Create(session *GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.Code]; exists {
		return errCodeCollision
	}
	s.sessions[session.Code] = session
	return nil
}

func (s *Store) FindByCode(code string) (*GameSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[code]
	return session, ok
}

func (s *Store) ExistsByCode(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[code]
	return ok
}

// Update runs fn against the session under the store lock. An error
// from fn aborts the update and is returned unchanged, so a rejected
// command never leaves partial state behind.
func (s *Store) Update(code string, fn func(session *GameSession) error) (*GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[code]
	if !ok {
		return nil, errSessionNotFound
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Save replaces the stored session wholesale, last writer wins.
func (s *Store) Save(session *GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Code]; !ok {
		return errSessionNotFound
	}
	s.sessions[session.Code] = session
	return nil
}

func (s *Store) Remove(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
}

func (s *Store) CountParticipants(code string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[code]
	if !ok {
		return 0, false
	}
	return len(session.Participants), true
}

// RemoveWhere deletes every session the predicate approves, under the
// store lock, and returns the removed codes.
func (s *Store) RemoveWhere(expired func(session *GameSession) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make([]string, 0)
	for code, session := range s.sessions {
		if expired(session) {
			delete(s.sessions, code)
			removed = append(removed, code)
		}
	}
	return removed
}

func (s *Store) ListSummaries() []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]SessionSummary, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, SessionSummary{
			Code:         session.Code,
			Status:       session.Status,
			Participants: len(session.Participants),
			CurrentRound: session.CurrentRound,
			TotalRounds:  session.TotalRounds,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Code < list[j].Code
	})
	return list
}
