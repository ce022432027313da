// Package session tracks the live, in-memory handle binding a user to an
// active conversational context and backend capability. Sessions expire by a
// lazy sweep run before each processed unit; no background timer exists.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Capability tags which backend a session is bound to.
type Capability string

const (
	// CapabilityText is the plain text-generation backend.
	CapabilityText Capability = "text"
	// CapabilityMultimodal is the vision/audio-capable backend.
	CapabilityMultimodal Capability = "multimodal"
)

// Session binds a user to an active conversation context.
type Session struct {
	ID         string
	Capability Capability
	LastActive time.Time
}

// Store is an owned map of per-user sessions. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	expiry   time.Duration
	logger   *slog.Logger
	sessions map[int64]*Session
}

// NewStore creates a Store whose sessions expire after the given idle
// duration.
func NewStore(log *slog.Logger, expiry time.Duration) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		expiry:   expiry,
		logger:   log.With(slog.String("service", "session")),
		sessions: make(map[int64]*Session),
	}
}

// Acquire returns the user's existing session when it is live and bound to
// the required capability; otherwise any stale or mismatched session is
// discarded and a fresh one is created.
func (s *Store) Acquire(userID int64, capability Capability, now time.Time) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[userID]; ok {
		expired := now.Sub(existing.LastActive) > s.expiry
		if !expired && existing.Capability == capability {
			return existing
		}
		delete(s.sessions, userID)
	}
	created := &Session{
		ID:         uuid.NewString(),
		Capability: capability,
		LastActive: now,
	}
	s.sessions[userID] = created
	return created
}

// Touch records activity for the user's session, if one exists.
func (s *Store) Touch(userID int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[userID]; ok {
		existing.LastActive = now
	}
}

// Release drops the user's session immediately.
func (s *Store) Release(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Sweep evicts every session idle for longer than the expiry threshold. The
// durable history log is untouched.
func (s *Store) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, existing := range s.sessions {
		if now.Sub(existing.LastActive) > s.expiry {
			delete(s.sessions, userID)
			s.logger.Info("cleaned up in-memory session", slog.Int64("user_id", userID))
		}
	}
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
