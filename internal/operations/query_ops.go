package operations

import (
	"context"

	"kgquery/internal/query"
)

// QueryOps runs editor text through the confirmation workflow
type QueryOps struct {
	coordinator *query.Coordinator
}

// NewQueryOps creates a new QueryOps instance
func NewQueryOps(coordinator *query.Coordinator) *QueryOps {
	return &QueryOps{coordinator: coordinator}
}

// Submit stores q as the session's editor text and hands it to the
// coordinator against the session's current graph
func (q *QueryOps) Submit(ctx context.Context, sess *Session, text string, act query.Action) SubmitResult {
	sess.Workflow.SetEditor(text)
	out := q.coordinator.Submit(ctx, sess.Workflow, sess.Graph(), text, act)
	return SubmitResult{Outcome: out, Editor: text}
}

// Sample resets the session's editor to the sample query and returns it
func (q *QueryOps) Sample(sess *Session) string {
	sess.Workflow.SetEditor(query.DefaultQuery)
	return query.DefaultQuery
}

// Editor returns the session's editor text
func (q *QueryOps) Editor(sess *Session) string {
	return sess.Workflow.Editor()
}

// Last returns the session's most recent outcome, or nil
func (q *QueryOps) Last(sess *Session) *query.Outcome {
	return sess.Workflow.Last()
}
