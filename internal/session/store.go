package session

import (
	"sync"
	"time"
)

// Store holds every live rendezvous session in memory. Records are
// created on first touch, resolved at most once, and leave the map
// either through a destructive read (TakeTerminal) or through Sweep.
// Nothing is ever persisted; a process restart is equivalent to every
// session expiring at once.
type Store struct {
	mu       sync.RWMutex
	timeout  time.Duration
	sessions map[string]*Session
}

func NewStore(timeout time.Duration) *Store {
	return &Store{
		timeout:  timeout,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns a copy of the session, creating an unresolved
// record stamped with the current time if this is the first touch.
func (s *Store) GetOrCreate(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreateLocked(id)
}

func (s *Store) getOrCreateLocked(id string) *Session {
	if rec, ok := s.sessions[id]; ok {
		return rec
	}
	rec := &Session{ID: id, CreatedAt: time.Now()}
	s.sessions[id] = rec
	return rec
}

// SetSuccess resolves the session with an authorization code and
// returns the stored outcome. The first terminal write wins: a
// duplicate provider callback is a no-op and gets the original value
// back, so every delivery path reports the same code.
func (s *Store) SetSuccess(id, code string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(id)
	if !rec.Outcome.Terminal() {
		rec.Outcome = Outcome{Status: Succeeded, Code: code}
	}
	return rec.Outcome
}

// SetFailure resolves the session with a provider error message.
// Same first-write-wins semantics as SetSuccess.
func (s *Store) SetFailure(id, message string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(id)
	if !rec.Outcome.Terminal() {
		rec.Outcome = Outcome{Status: Failed, Err: message}
	}
	return rec.Outcome
}

// Peek returns the session's current outcome without consuming it.
// This is the push path's copy-semantics read: a WebSocket delivery is
// a courtesy copy and must leave the record in place for pollers.
func (s *Store) Peek(id string) (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	if !ok {
		return Outcome{}, false
	}
	return rec.Outcome, true
}

// TakeTerminal is the poll path's move-semantics read. If the session
// is unknown it reports found=false. If the outcome is terminal the
// record is removed and the outcome returned; the map delete happens
// under the lock, so of any number of concurrent takers exactly one
// observes the terminal value and the rest see not-found. A pending
// session is returned as-is without mutation.
func (s *Store) TakeTerminal(id string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return Outcome{}, false
	}
	if rec.Outcome.Terminal() {
		delete(s.sessions, id)
	}
	return rec.Outcome, true
}

// Sweep removes every session older than the timeout and returns the
// evicted ids so the caller can drop their notification channels.
// There is no background timer: handlers sweep before touching the
// store, so staleness is bounded by the next request rather than by
// wall clock.
func (s *Store) Sweep(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, rec := range s.sessions {
		if now.Sub(rec.CreatedAt) > s.timeout {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	return expired
}

// Len reports the number of live sessions, resolved or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
