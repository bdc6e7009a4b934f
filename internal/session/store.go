package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/early-design-app/internal/observability"
)

// Store keeps live sessions in memory and expires those idle for longer
// than the TTL.
type Store struct {
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	retired  map[string]struct{} // weather identities of removed sessions
	release  ReleaseFunc
}

// ReleaseFunc is called with a weather file identity once no live session
// uses it anymore.
type ReleaseFunc func(ctx context.Context, identity string)

// NewStore creates an empty store. A nil clock uses real time.
func NewStore(ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		ttl:      ttl,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]*Session),
		retired:  make(map[string]struct{}),
	}
}

// OnRelease registers fn to be called by Sweep for every weather file left
// behind by expired sessions.
func (s *Store) OnRelease(fn ReleaseFunc) {
	s.mu.Lock()
	s.release = fn
	s.mu.Unlock()
}

// Get returns the live session with the given id and marks it as used.
func (s *Store) Get(id string) (*Session, bool) {
	now := s.clock.Now()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && s.expired(sess, now) {
		s.removeLocked(id, sess)
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

// Create starts a new session with a random id.
func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString(), s.clock.Now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	return sess
}

// GetOrCreate returns the session for id, or a new one when id is unknown
// or expired. The flag reports whether a session was created.
func (s *Store) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess, false
		}
	}
	return s.Create(), true
}

// Len is the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were removed. The
// weather files they leave unused are handed to the release func.
func (s *Store) Sweep(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			s.removeLocked(id, sess)
			removed++
		}
	}
	s.metrics.ActiveSessions.Set(float64(len(s.sessions)))

	var unused []string
	if len(s.retired) > 0 {
		inUse := make(map[string]bool, len(s.sessions))
		for _, sess := range s.sessions {
			inUse[sess.Snapshot().Identity] = true
		}
		for id := range s.retired {
			if !inUse[id] {
				unused = append(unused, id)
			}
		}
		clear(s.retired)
	}
	release := s.release
	s.mu.Unlock()

	if release != nil {
		for _, id := range unused {
			release(ctx, id)
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until the context is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.Sweep(ctx); n > 0 {
				s.logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

func (s *Store) removeLocked(id string, sess *Session) {
	delete(s.sessions, id)
	if identity := sess.Snapshot().Identity; identity != "" {
		s.retired[identity] = struct{}{}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.idleSince()) > s.ttl
}
