package query

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Action is what the user did to submit a query
type Action int

const (
	// Auto is an implicit submission, e.g. the editor changed
	Auto Action = iota
	// Run is an explicit execute
	Run
	// Confirm grants confirmation for a destructive query and runs it
	Confirm
)

func (a Action) String() string {
	switch a {
	case Run:
		return "run"
	case Confirm:
		return "confirm"
	}
	return "auto"
}

// ParseAction maps "auto", "run" or "confirm" to an Action; empty means Auto
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "run":
		return Run, nil
	case "confirm":
		return Confirm, nil
	}
	return Auto, fmt.Errorf("unknown action %q", s)
}

// Status says whether a submission executed or what it is waiting for
type Status int

const (
	Executed Status = iota
	AwaitingRun
	NeedsConfirmation
)

func (s Status) String() string {
	switch s {
	case AwaitingRun:
		return "awaiting_run"
	case NeedsConfirmation:
		return "needs_confirmation"
	}
	return "executed"
}

// Outcome is the result of a submission. Envelope is nil unless Status is
// Executed.
type Outcome struct {
	Query    string
	Kind     Kind
	Status   Status
	Envelope Envelope
}

// Session is per-user workflow state: the confirmation flag, the editor
// text and the last outcome
type Session struct {
	mu        sync.Mutex
	confirmed bool
	editor    string
	last      *Outcome
}

// NewSession creates a session whose editor holds DefaultQuery
func NewSession() *Session {
	return &Session{editor: DefaultQuery}
}

// Confirm grants confirmation for the pending destructive submission. It
// reports false and grants nothing when the last outcome is not waiting for
// confirmation.
func (s *Session) Confirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.Status != NeedsConfirmation {
		return false
	}
	s.confirmed = true
	return true
}

// Confirmed reports the confirmation flag
func (s *Session) Confirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

// Editor returns the current editor text
func (s *Session) Editor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

// SetEditor replaces the editor text
func (s *Session) SetEditor(text string) {
	s.mu.Lock()
	s.editor = text
	s.mu.Unlock()
}

// Last returns the most recent outcome, or nil
func (s *Session) Last() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Coordinator gates queries by kind before handing them to the executor
type Coordinator struct {
	exec   *Executor
	logger *zap.Logger
}

// NewCoordinator creates a coordinator
func NewCoordinator(exec *Executor, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{exec: exec, logger: logger.Named("coordinator")}
}

// Submit classifies q and decides whether to run it. Reads always run.
// Destructive queries run only once the session is confirmed, and the
// confirmation is cleared after they run whatever the result. Everything
// else runs only on an explicit Run or Confirm. A confirmation never
// outlives a non-destructive submission.
func (c *Coordinator) Submit(ctx context.Context, sess *Session, src DataSource, q string, act Action) Outcome {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := Outcome{Query: q, Kind: Classify(q)}
	switch out.Kind {
	case Read:
		sess.confirmed = false
		out.Envelope = c.exec.Execute(ctx, src, q)
		out.Status = Executed

	case Destructive:
		if act == Auto {
			out.Status = AwaitingRun
			break
		}
		if act == Confirm {
			sess.confirmed = true
		}
		if !sess.confirmed {
			out.Status = NeedsConfirmation
			break
		}
		func() {
			defer func() { sess.confirmed = false }()
			out.Envelope = c.exec.Execute(ctx, src, q)
		}()
		out.Status = Executed

	default:
		sess.confirmed = false
		if act == Auto {
			out.Status = AwaitingRun
			break
		}
		out.Envelope = c.exec.Execute(ctx, src, q)
		out.Status = Executed
	}

	c.logger.Debug("query submitted",
		zap.Stringer("kind", out.Kind),
		zap.Stringer("action", act),
		zap.Stringer("status", out.Status))
	sess.last = &out
	return out
}
