package operations

import (
	"sync"
	"time"

	"kgquery/internal/graph"
	"kgquery/internal/query"
)

// Operations provides a unified interface for all business operations
type Operations struct {
	Sessions  *SessionStore
	Graph     *GraphOps
	Query     *QueryOps
	Translate *TranslateOps
	Visual    *VisualOps
}

// Session is one user's workspace: a private graph plus the query workflow
// state
type Session struct {
	ID       string
	Workflow *query.Session
	Created  time.Time

	mu       sync.RWMutex
	graph    *graph.Graph
	lastSeen time.Time
}

// Graph returns the session's current graph
func (s *Session) Graph() *graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

func (s *Session) setGraph(g *graph.Graph) {
	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns when the session was last used
func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// SubmitResult is a workflow outcome plus the session's editor text
type SubmitResult struct {
	query.Outcome
	Editor string
}

// OperationError represents an error from an operation
type OperationError struct {
	Operation string
	Entity    string
	Cause     error
}

func (e *OperationError) Error() string {
	if e.Entity != "" {
		return e.Operation + " failed for " + e.Entity + ": " + e.Cause.Error()
	}
	return e.Operation + " failed: " + e.Cause.Error()
}

func (e *OperationError) Unwrap() error { return e.Cause }

// NewOperationError creates a new operation error
func NewOperationError(operation, entity string, cause error) error {
	return &OperationError{
		Operation: operation,
		Entity:    entity,
		Cause:     cause,
	}
}
