package operations

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kgquery/internal/graph"
	"kgquery/internal/query"
)

// SessionStore keeps sessions keyed by a random UUID
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	build    graph.BuildOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionStore creates a store whose sessions start with a graph built
// from build
func NewSessionStore(build graph.BuildOptions, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		build:    build,
		logger:   logger.Named("sessions"),
		now:      time.Now,
	}
}

// Create starts a new session
func (s *SessionStore) Create() (*Session, error) {
	g, err := graph.Build(s.build)
	if err != nil {
		return nil, NewOperationError("create session", "", err)
	}
	now := s.now()
	sess := &Session{
		ID:       uuid.NewString(),
		Workflow: query.NewSession(),
		Created:  now,
		graph:    g,
		lastSeen: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session", sess.ID), zap.Int("triples", g.Len()))
	return sess, nil
}

// Get returns the session with id
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.touch(s.now())
	}
	return sess, ok
}

// GetOrCreate returns the session with id, creating a fresh one when id is
// empty or unknown
func (s *SessionStore) GetOrCreate(id string) (*Session, error) {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess, nil
		}
	}
	return s.Create()
}

// Delete forgets a session
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops sessions idle for longer than maxIdle and returns how many
// were removed
func (s *SessionStore) Prune(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("pruned idle sessions", zap.Int("removed", removed), zap.Duration("max_idle", maxIdle))
	}
	return removed
}

func (s *SessionStore) String() string {
	return fmt.Sprintf("SessionStore(%d)", s.Len())
}
