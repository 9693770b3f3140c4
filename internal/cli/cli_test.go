package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kgquery/internal/graph"
	"kgquery/internal/llm"
	"kgquery/internal/nl2sparql"
	"kgquery/internal/operations"
	"kgquery/internal/query"
)

func newTestCLI(t *testing.T) (*CLI, *bytes.Buffer) {
	t.Helper()
	c, err := NewCLI(operations.NewWithDefaults(), nil)
	require.NoError(t, err)
	var out bytes.Buffer
	c.SetOutput(&out)
	return c, &out
}

type stubCompleter struct{ answer string }

func (s stubCompleter) Complete(context.Context, string) (string, error) { return s.answer, nil }

func newTestCLIWith(t *testing.T, completer llm.Completer) (*CLI, *bytes.Buffer) {
	t.Helper()
	ops := operations.New(operations.Options{
		Build:      graph.DefaultBuildOptions(),
		Translator: nl2sparql.New(completer, "OPENAI_API_KEY", zap.NewNop()),
	})
	c, err := NewCLI(ops, nil)
	require.NoError(t, err)
	var out bytes.Buffer
	c.SetOutput(&out)
	return c, &out
}

func feed(c *CLI, lines ...string) bool {
	for _, l := range lines {
		if c.handleLine(context.Background(), l) {
			return true
		}
	}
	return false
}

func TestSemicolonSubmitsRead(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, "SELECT ?c WHERE {", "  ?c a ex:Company", "}", ";")

	assert.Empty(t, c.buffer)
	assert.Contains(t, out.String(), "SELECT")
	assert.Contains(t, out.String(), "Query executed.")
	assert.Contains(t, out.String(), "Company1")
	assert.Contains(t, out.String(), "2 rows")
	assert.Equal(t, "SELECT ?c WHERE {\n  ?c a ex:Company\n}", c.ops.Query.Editor(c.sess))
}

func TestPredicateListSpansLines(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, "SELECT ?n WHERE {", "  ?p a foaf:Person ;")
	assert.Len(t, c.buffer, 2)
	assert.Empty(t, out.String())

	feed(c, "     foaf:name ?n .", "}", "")
	assert.Empty(t, c.buffer)
	assert.NotContains(t, out.String(), "❌")
	assert.Contains(t, out.String(), "Query executed.")
	assert.Contains(t, out.String(), "6 rows")
}

func TestBlankLineSubmitsAndWritesWait(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, `INSERT DATA { ex:Person42 a foaf:Person ; foaf:name "Quinn" . }`, "")

	assert.Contains(t, out.String(), "Use /run")
	assert.Equal(t, 6, c.ops.Graph.Stats(c.sess).People)

	out.Reset()
	feed(c, "/run")
	assert.Contains(t, out.String(), "Quinn")
	assert.Equal(t, 7, c.ops.Graph.Stats(c.sess).People)
}

func TestRunSubmitsBuffer(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, "INSERT DATA {", `  ex:Person43 a foaf:Person ; foaf:name "Rory" .`, "}", "/run")
	assert.Contains(t, out.String(), "Rory")
	assert.Empty(t, c.buffer)
}

func TestConfirmFlow(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, "/run DELETE WHERE { ?p ex:age ?a }")
	assert.Contains(t, out.String(), "/confirm")
	assert.Equal(t, 34, c.sess.Graph().Len())

	out.Reset()
	feed(c, "/confirm")
	assert.Contains(t, out.String(), "Query executed.")
	assert.Equal(t, 28, c.sess.Graph().Len())
	assert.False(t, c.sess.Workflow.Confirmed())
}

func TestFailureIsShown(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, "SELECT ?x WHERE { ?x ;", "")
	assert.Contains(t, out.String(), "❌")
}

func TestRebuildCommand(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, "/rebuild 8 3")
	assert.Contains(t, out.String(), "Graph rebuilt!")
	assert.Equal(t, 8, c.ops.Graph.Stats(c.sess).People)

	out.Reset()
	feed(c, "/rebuild 40 3")
	assert.Contains(t, out.String(), "graph size out of range")

	out.Reset()
	feed(c, "/rebuild eight 3")
	assert.Contains(t, out.String(), "people must be a number")
}

func TestAskWithoutKey(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, "/ask who is the oldest?")
	assert.Contains(t, out.String(), "OPENAI_API_KEY not found in environment or .env")
	assert.Equal(t, query.DefaultQuery, c.ops.Query.Editor(c.sess))
}

func TestAskSubmitsTranslation(t *testing.T) {
	answer := "```sparql\nSELECT ?c WHERE { ?c a ex:Company }\n```"
	c, out := newTestCLIWith(t, stubCompleter{answer: answer})
	feed(c, "/ask which companies are there?")

	s := out.String()
	assert.Contains(t, s, "Query executed.")
	assert.Contains(t, s, "Company1")
	assert.Equal(t, "SELECT ?c WHERE { ?c a ex:Company }", c.ops.Query.Editor(c.sess))
	require.NotNil(t, c.ops.Query.Last(c.sess))
	assert.Equal(t, query.Executed, c.ops.Query.Last(c.sess).Status)
}

func TestAskLeavesWriteAwaitingRun(t *testing.T) {
	c, out := newTestCLIWith(t, stubCompleter{answer: `INSERT DATA { ex:Person9 a foaf:Person }`})
	feed(c, "/ask add a person")

	assert.Contains(t, out.String(), "Use /run")
	assert.Equal(t, 6, c.ops.Graph.Stats(c.sess).People)
}

func TestFileCommands(t *testing.T) {
	c, out := newTestCLI(t)
	dir := t.TempDir()

	viz := filepath.Join(dir, "graph.html")
	feed(c, "/viz "+viz)
	data, err := os.ReadFile(viz)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vis-network")

	nt := filepath.Join(dir, "graph.nt")
	feed(c, "/export "+nt)
	data, err = os.ReadFile(nt)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 34)
	assert.Contains(t, out.String(), "Graph exported to")
}

func TestMiscCommands(t *testing.T) {
	c, out := newTestCLI(t)
	feed(c, "/stats", "/show", "/prefixes", "/help")
	s := out.String()
	assert.Contains(t, s, "Triples:    34")
	assert.Contains(t, s, "LIMIT 20")
	assert.Contains(t, s, "PREFIX ex: <http://example.org/>")
	assert.Contains(t, s, "/confirm")

	out.Reset()
	feed(c, "/bogus")
	assert.Contains(t, out.String(), "unknown command: /bogus")

	out.Reset()
	feed(c, "/explore")
	assert.Contains(t, out.String(), "no result to explore")

	assert.True(t, feed(c, "/exit"))
}

func TestRenderTable(t *testing.T) {
	res := &query.Success{
		Vars: []string{"person", "age"},
		Rows: []query.Row{
			{"person": query.Value("http://example.org/Person1"), "age": query.Value("30")},
			{"person": query.Value("http://example.org/Person2"), "age": query.Absent},
		},
	}
	out := RenderTable(res)
	assert.Contains(t, out, "person")
	assert.Contains(t, out, "Person1")
	assert.NotContains(t, out, "http://example.org/")
	assert.Contains(t, out, "30")
}

func TestExplorerModel(t *testing.T) {
	res := &query.Success{
		Vars: []string{"name", "age"},
		Rows: []query.Row{
			{"name": query.Value("Alice"), "age": query.Value("30")},
			{"name": query.Value("Bob"), "age": query.Absent},
		},
	}
	m := newExplorerModel(res)
	require.Len(t, m.list.Items(), 2)
	assert.Equal(t, "Alice", m.list.Items()[0].(list.DefaultItem).Title())

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(explorerModel)
	assert.Equal(t, 0, m.detail)
	assert.Contains(t, m.View(), "Alice")

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(explorerModel)
	assert.Equal(t, -1, m.detail)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
