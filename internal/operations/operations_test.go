package operations

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kgquery/internal/graph"
	"kgquery/internal/nl2sparql"
	"kgquery/internal/query"
	"kgquery/internal/visualize"
)

type stubCompleter struct {
	answer string
	err    error
}

func (s *stubCompleter) Complete(context.Context, string) (string, error) {
	return s.answer, s.err
}

func newTestOps(t *testing.T, completer *stubCompleter) *Operations {
	t.Helper()
	opts := Options{
		Build:  graph.DefaultBuildOptions(),
		Viz:    visualize.Options{TempDir: t.TempDir()},
		Logger: zap.NewNop(),
	}
	if completer != nil {
		opts.Translator = nl2sparql.New(completer, "OPENAI_API_KEY", zap.NewNop())
	}
	return New(opts)
}

func TestSessionStore(t *testing.T) {
	ops := newTestOps(t, nil)

	sess, err := ops.Sessions.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, 34, sess.Graph().Len())
	assert.Equal(t, query.DefaultQuery, sess.Workflow.Editor())

	got, ok := ops.Sessions.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	again, err := ops.Sessions.GetOrCreate(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, again)

	fresh, err := ops.Sessions.GetOrCreate("unknown")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, fresh.ID)
	assert.Equal(t, 2, ops.Sessions.Len())

	ops.Sessions.Delete(fresh.ID)
	_, ok = ops.Sessions.Get(fresh.ID)
	assert.False(t, ok)
}

func TestSessionStorePrune(t *testing.T) {
	ops := newTestOps(t, nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ops.Sessions.now = func() time.Time { return now }

	old, err := ops.Sessions.Create()
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	recent, err := ops.Sessions.Create()
	require.NoError(t, err)

	assert.Equal(t, 1, ops.Sessions.Prune(time.Hour))
	_, ok := ops.Sessions.Get(old.ID)
	assert.False(t, ok)
	_, ok = ops.Sessions.Get(recent.ID)
	assert.True(t, ok)
}

func TestSessionsAreIsolated(t *testing.T) {
	ops := newTestOps(t, nil)
	ctx := context.Background()
	a, err := ops.Sessions.Create()
	require.NoError(t, err)
	b, err := ops.Sessions.Create()
	require.NoError(t, err)

	res := ops.Query.Submit(ctx, a, `INSERT DATA { ex:Person99 a foaf:Person ; foaf:name "Zed" . }`, query.Run)
	require.Equal(t, query.Executed, res.Status)
	_, failed := res.Envelope.(*query.Failure)
	require.False(t, failed)

	assert.Equal(t, 7, ops.Graph.Stats(a).People)
	assert.Equal(t, 6, ops.Graph.Stats(b).People)
}

func TestRebuild(t *testing.T) {
	ops := newTestOps(t, nil)
	sess, err := ops.Sessions.Create()
	require.NoError(t, err)
	before := sess.Graph()

	stats, err := ops.Graph.Rebuild(sess, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.People)
	assert.Equal(t, 3, stats.Companies)
	assert.Equal(t, 3*2+10*5, stats.Triples)
	assert.NotSame(t, before, sess.Graph())

	_, err = ops.Graph.Rebuild(sess, 31, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrSizeOutOfRange))
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "rebuild graph", opErr.Operation)
	assert.Equal(t, 10, ops.Graph.Stats(sess).People, "failed rebuild keeps the previous graph")
}

func TestSubmitUpdatesEditor(t *testing.T) {
	ops := newTestOps(t, nil)
	sess, err := ops.Sessions.Create()
	require.NoError(t, err)
	ctx := context.Background()

	q := "DELETE WHERE { ex:Person1 ?p ?o }"
	res := ops.Query.Submit(ctx, sess, q, query.Run)
	assert.Equal(t, query.NeedsConfirmation, res.Status)
	assert.Equal(t, q, res.Editor)
	assert.Equal(t, q, ops.Query.Editor(sess))
	assert.Equal(t, 34, sess.Graph().Len())

	res = ops.Query.Submit(ctx, sess, q, query.Confirm)
	require.Equal(t, query.Executed, res.Status)
	success, ok := res.Envelope.(*query.Success)
	require.True(t, ok)
	assert.Equal(t, query.InfoExecuted, success.Info)
	assert.Len(t, success.Rows, 5)
	assert.False(t, sess.Workflow.Confirmed())

	last := ops.Query.Last(sess)
	require.NotNil(t, last)
	assert.Equal(t, query.Destructive, last.Kind)

	assert.Equal(t, query.DefaultQuery, ops.Query.Sample(sess))
	assert.Equal(t, query.DefaultQuery, ops.Query.Editor(sess))
}

func TestTranslate(t *testing.T) {
	completer := &stubCompleter{answer: "```sparql\nPREFIX ex: <http://example.org/>\nSELECT ?n WHERE { ?p foaf:name ?n }\n```"}
	ops := newTestOps(t, completer)
	sess, err := ops.Sessions.Create()
	require.NoError(t, err)
	ctx := context.Background()

	q, err := ops.Translate.Question(ctx, sess, "who is there?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT ?n WHERE { ?p foaf:name ?n }", q)
	assert.Equal(t, q, ops.Query.Editor(sess))
	assert.Nil(t, ops.Query.Last(sess), "translation does not run the query")

	completer.err = errors.New("rate limited")
	_, err = ops.Translate.Question(ctx, sess, "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, q, ops.Query.Editor(sess), "editor unchanged on failure")
}

func TestTranslateWithoutCredential(t *testing.T) {
	ops := newTestOps(t, nil)
	sess, err := ops.Sessions.Create()
	require.NoError(t, err)

	_, err = ops.Translate.Question(context.Background(), sess, "who works where?")
	var cfgErr *nl2sparql.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.EnvVar)

	_, err = ops.Translate.Question(context.Background(), sess, "   ")
	assert.ErrorIs(t, err, nl2sparql.ErrEmptyQuestion)
}

func TestExportAndVisualize(t *testing.T) {
	ops := newTestOps(t, nil)
	sess, err := ops.Sessions.Create()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ops.Graph.Export(sess, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 34)
	assert.Contains(t, buf.String(), "<http://example.org/Person1> <http://xmlns.com/foaf/0.1/knows> <http://example.org/Person2> .")

	net := ops.Visual.Network(sess)
	assert.NotEmpty(t, net.Nodes)
	assert.Len(t, net.Edges, 34)

	page, err := ops.Visual.Render(sess)
	require.NoError(t, err)
	assert.Contains(t, page, "vis-network")
	assert.Contains(t, ops.Graph.Prefixes(sess), "PREFIX foaf:")
}
