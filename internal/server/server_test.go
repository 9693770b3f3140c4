package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kgquery/internal/graph"
	"kgquery/internal/nl2sparql"
	"kgquery/internal/operations"
	"kgquery/internal/visualize"
)

type stubCompleter struct{ answer string }

func (s stubCompleter) Complete(context.Context, string) (string, error) { return s.answer, nil }

func newTestServer(t *testing.T, token string) (*httptest.Server, *http.Client) {
	t.Helper()
	ops := operations.New(operations.Options{
		Build:      graph.DefaultBuildOptions(),
		Translator: nl2sparql.New(stubCompleter{answer: "```sparql\nSELECT ?c WHERE { ?c a ex:Company }\n```"}, "OPENAI_API_KEY", zap.NewNop()),
		Viz:        visualize.Options{TempDir: t.TempDir()},
		Logger:     zap.NewNop(),
	})
	ts := httptest.NewServer(NewServer("127.0.0.1:0", token, ops, zap.NewNop()).Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return ts, &http.Client{Jar: jar}
}

func postJSON(t *testing.T, c *http.Client, u string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := c.Post(u, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestStatus(t *testing.T) {
	ts, c := newTestServer(t, "")
	resp, err := c.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
}

func TestTokenRequired(t *testing.T) {
	ts, c := newTestServer(t, "secret")

	resp, err := c.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueryReadRunsOnAuto(t *testing.T) {
	ts, c := newTestServer(t, "")
	resp, out := postJSON(t, c, ts.URL+"/api/query", map[string]string{
		"query": "SELECT ?c WHERE { ?c a ex:Company } ORDER BY ?c",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SELECT", out["kind"])
	assert.Equal(t, "executed", out["status"])

	result := out["result"].(map[string]any)
	assert.Equal(t, "Query executed.", result["info"])
	rows := result["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "http://example.org/Company1", rows[0].(map[string]any)["c"])
}

func TestQueryUnboundIsNull(t *testing.T) {
	ts, c := newTestServer(t, "")
	_, out := postJSON(t, c, ts.URL+"/api/query", map[string]string{
		"query":  `INSERT DATA { ex:Person7 a foaf:Person ; foaf:name "Nobody" . }`,
		"action": "run",
	})
	require.Equal(t, "executed", out["status"])

	rows := out["result"].(map[string]any)["rows"].([]any)
	require.Len(t, rows, 7)
	var found bool
	for _, r := range rows {
		row := r.(map[string]any)
		if row["name"] == "Nobody" {
			found = true
			v, present := row["age"]
			assert.True(t, present)
			assert.Nil(t, v)
		}
	}
	assert.True(t, found)
}

func TestDestructiveNeedsConfirmation(t *testing.T) {
	ts, c := newTestServer(t, "")
	q := "DELETE WHERE { ?p ex:worksAt ?c }"

	_, out := postJSON(t, c, ts.URL+"/api/query", map[string]string{"query": q, "action": "run"})
	assert.Equal(t, "DELETE", out["kind"])
	assert.Equal(t, "needs_confirmation", out["status"])
	assert.NotContains(t, out, "result")

	_, out = postJSON(t, c, ts.URL+"/api/query", map[string]string{"query": q, "action": "confirm"})
	assert.Equal(t, "executed", out["status"])
	rows := out["result"].(map[string]any)["rows"].([]any)
	for _, r := range rows {
		assert.Nil(t, r.(map[string]any)["company"])
	}

	_, out = postJSON(t, c, ts.URL+"/api/query", map[string]string{"query": q, "action": "run"})
	assert.Equal(t, "needs_confirmation", out["status"], "confirmation is single use")
}

func TestQueryFailure(t *testing.T) {
	ts, c := newTestServer(t, "")
	_, out := postJSON(t, c, ts.URL+"/api/query", map[string]string{"query": "SELECT ?x WHERE {"})
	assert.Equal(t, "executed", out["status"])
	result := out["result"].(map[string]any)
	assert.NotEmpty(t, result["error"])
	assert.NotContains(t, result, "rows")

	resp, _ := postJSON(t, c, ts.URL+"/api/query", map[string]string{"query": "SELECT *", "action": "force"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionsAreSeparate(t *testing.T) {
	ts, c := newTestServer(t, "")
	other := &http.Client{}

	_, out := postJSON(t, c, ts.URL+"/api/rebuild", map[string]int{"people": 12, "companies": 4})
	assert.Equal(t, "Graph rebuilt!", out["message"])

	_, mine := getJSON(t, c, ts.URL+"/api/graph")
	_, theirs := getJSON(t, other, ts.URL+"/api/graph")
	assert.EqualValues(t, 12, mine["stats"].(map[string]any)["people"])
	assert.EqualValues(t, 6, theirs["stats"].(map[string]any)["people"])
	assert.NotEqual(t, mine["session"], theirs["session"])
}

func TestRebuildOutOfRange(t *testing.T) {
	ts, c := newTestServer(t, "")
	resp, out := postJSON(t, c, ts.URL+"/api/rebuild", map[string]int{"people": 1, "companies": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "graph size out of range")
}

func TestTranslateStoresEditor(t *testing.T) {
	ts, c := newTestServer(t, "")
	_, out := postJSON(t, c, ts.URL+"/api/translate", map[string]string{"question": "list companies"})
	assert.Equal(t, "SELECT ?c WHERE { ?c a ex:Company }", out["query"])

	outcome, ok := out["outcome"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "executed", outcome["status"])
	assert.Equal(t, "SELECT", outcome["kind"])

	_, state := getJSON(t, c, ts.URL+"/api/query")
	assert.Equal(t, out["query"], state["editor"])
	last, ok := state["last"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "executed", last["status"])

	resp, out := postJSON(t, c, ts.URL+"/api/translate", map[string]string{"question": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please type a question.", out["error"])
}

func TestExport(t *testing.T) {
	ts, c := newTestServer(t, "")
	resp, err := c.Get(ts.URL + "/api/graph/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 34, strings.Count(string(body), " .\n"))
}

func TestIndexPage(t *testing.T) {
	ts, c := newTestServer(t, "")
	body := getBody(t, c, ts.URL+"/")
	assert.Contains(t, body, "Knowledge Graph with SPARQL")
	assert.Contains(t, body, "Current People Data")
	assert.Contains(t, body, "Query executed.")

	form := url.Values{"query": {"DELETE WHERE { ?s ?p ?o }"}, "action": {"run"}}
	resp, err := c.PostForm(ts.URL+"/run", form)
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), "Confirm DELETE/UPDATE")
	assert.Contains(t, string(page), "This will modify the graph!")

	resp, err = c.PostForm(ts.URL+"/translate", url.Values{"question": {""}})
	require.NoError(t, err)
	page, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), "Please type a question.")
}

func TestTranslateFormRunsRead(t *testing.T) {
	ts, c := newTestServer(t, "")
	resp, err := c.PostForm(ts.URL+"/translate", url.Values{"question": {"which companies are there?"}})
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "SELECT ?c WHERE { ?c a ex:Company }")
	assert.Contains(t, string(page), "Query executed.")
	assert.Contains(t, string(page), "Company1")
}

func TestCORSOnlyForAllowedOrigins(t *testing.T) {
	ops := operations.NewWithDefaults()
	srv := NewServer("127.0.0.1:0", "", ops, zap.NewNop())
	srv.AllowOrigins("http://localhost:3000/")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/translate", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := preflight("https://evil.example")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = preflight("null")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	resp = preflight("http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestCORSWildcardHasNoCredentials(t *testing.T) {
	srv := NewServer("127.0.0.1:0", "", operations.NewWithDefaults(), zap.NewNop())
	srv.AllowOrigins("*")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://tool.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestStatusReportsLastPing(t *testing.T) {
	ts, c := newTestServer(t, "")
	_, first := getJSON(t, c, ts.URL+"/api/status")
	_, second := getJSON(t, c, ts.URL+"/api/status")

	firstPing, err := time.Parse(time.RFC3339Nano, first["last_ping"].(string))
	require.NoError(t, err)
	secondPing, err := time.Parse(time.RFC3339Nano, second["last_ping"].(string))
	require.NoError(t, err)
	assert.True(t, secondPing.After(firstPing), "second ping reports the first request")
}

func TestVisualizePage(t *testing.T) {
	ts, c := newTestServer(t, "")
	body := getBody(t, c, ts.URL+"/visualize")
	assert.Contains(t, body, "vis.Network")
	assert.Contains(t, body, "lit_0")
}

func getJSON(t *testing.T, c *http.Client, u string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := c.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getBody(t *testing.T, c *http.Client, u string) string {
	t.Helper()
	resp, err := c.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
