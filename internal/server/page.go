package server

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"kgquery/internal/graph"
	"kgquery/internal/operations"
	"kgquery/internal/query"
)

type pageData struct {
	Editor    string
	Question  string
	Kind      string
	Notice    string
	Success   string
	Warning   string
	Error     string
	NeedsConf bool
	Result    *query.Success
	Stats     graph.Stats
	People    int
	Companies int
	Bounds    [4]int
	Sample    string
	Tip       string
	ShowViz   bool
	VizHeight int
	SessionID string
}

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"cell": func(row query.Row, v string) string { return row[v].String() },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Knowledge Graph with SPARQL</title>
<style>
  body { font-family: sans-serif; margin: 0; display: flex; }
  aside { width: 300px; padding: 1em; background: #f4f4f6; min-height: 100vh; }
  main { flex: 1; padding: 1em 2em; }
  textarea { width: 100%; height: 200px; font-family: monospace; }
  input[type=text] { width: 70%; }
  pre { background: #eee; padding: .5em; overflow-x: auto; }
  table { border-collapse: collapse; }
  td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
  .success { color: #1b7a2f; } .warning { color: #a66300; } .error { color: #b00020; }
  .notice { color: #335; }
</style>
</head>
<body>
<aside>
  <h3>Graph Config</h3>
  <form method="post" action="/rebuild">
    <label>Number of people: <output id="pv">{{.People}}</output><br>
    <input type="range" name="people" min="{{index .Bounds 0}}" max="{{index .Bounds 1}}" value="{{.People}}" oninput="pv.value=this.value"></label><br>
    <label>Number of companies: <output id="cv">{{.Companies}}</output><br>
    <input type="range" name="companies" min="{{index .Bounds 2}}" max="{{index .Bounds 3}}" value="{{.Companies}}" oninput="cv.value=this.value"></label><br>
    <button type="submit">Rebuild Graph</button>
  </form>
  <p>{{.Stats.Triples}} triples, {{.Stats.People}} people, {{.Stats.Companies}} companies</p>
  <p><a href="/api/graph/export">Download N-Triples</a></p>
  <hr>
  <h4>Sample SPARQL</h4>
  <pre>{{.Sample}}</pre>
  <form method="post" action="/sample"><button type="submit">Load sample</button></form>
</aside>
<main>
  <h1>Knowledge Graph with SPARQL</h1>
  {{with .Success}}<p class="success">{{.}}</p>{{end}}
  {{with .Warning}}<p class="warning">{{.}}</p>{{end}}
  {{with .Error}}<p class="error">{{.}}</p>{{end}}

  <h2>Ask in Natural Language</h2>
  <form method="post" action="/translate">
    <input type="text" name="question" value="{{.Question}}" placeholder="e.g. Show all people older than 30">
    <button type="submit">Convert to SPARQL</button>
  </form>

  <h2>SPARQL Editor</h2>
  <form method="post" action="/run">
    <textarea name="query">{{.Editor}}</textarea><br>
    {{with .Kind}}<small>Detected: {{.}}</small><br>{{end}}
    <button type="submit" name="action" value="run">Execute Query</button>
    {{if .NeedsConf}}<button type="submit" name="action" value="confirm">Confirm DELETE/UPDATE</button>{{end}}
  </form>
  {{with .Notice}}<p class="notice">{{.}}</p>{{end}}

  {{with .Result}}
  {{with .Info}}<p class="success">{{.}}</p>{{end}}
  {{if .Rows}}
  <h3>Current People Data</h3>
  <table>
    <tr>{{range .Vars}}<th>{{.}}</th>{{end}}</tr>
    {{$vars := .Vars}}
    {{range .Rows}}{{$row := .}}<tr>{{range $vars}}<td>{{cell $row .}}</td>{{end}}</tr>{{end}}
  </table>
  {{end}}
  {{end}}

  <h2>Graph Visualization</h2>
  {{if .ShowViz}}
  <iframe src="/visualize" width="100%" height="{{.VizHeight}}" style="border:0"></iframe>
  {{else}}
  <form method="get" action="/"><input type="hidden" name="viz" value="1"><button type="submit">Visualize Graph</button></form>
  {{end}}

  <hr>
  <p class="notice">{{.Tip}}</p>
</main>
</body>
</html>
`))

func (s *Server) newPage(sess *operations.Session) *pageData {
	stats := s.ops.Graph.Stats(sess)
	return &pageData{
		Editor:    s.ops.Query.Editor(sess),
		Stats:     stats,
		People:    clamp(stats.People, graph.MinPeople, graph.MaxPeople),
		Companies: clamp(stats.Companies, graph.MinCompanies, graph.MaxCompanies),
		Bounds:    [4]int{graph.MinPeople, graph.MaxPeople, graph.MinCompanies, graph.MaxCompanies},
		Sample:    query.DefaultQuery,
		Tip:       msgAutoExecuteTip,
		VizHeight: 720,
		SessionID: sess.ID,
	}
}

// withOutcome fills the page from a submission outcome
func (p *pageData) withOutcome(out query.Outcome) {
	p.Kind = out.Kind.String()
	p.Notice = statusMessage(out.Status)
	p.NeedsConf = out.Status == query.NeedsConfirmation
	if p.NeedsConf {
		p.Warning = msgModifiesGraph
		p.Notice = ""
	}
	switch env := out.Envelope.(type) {
	case *query.Failure:
		p.Error = env.Message
	case *query.Success:
		p.Result = env
	}
}

func (s *Server) render(w http.ResponseWriter, page *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
	}
}

// handleIndex shows the UI. A read query in the editor runs on every load,
// the same way it would on any other submission.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page := s.newPage(sess)
	res := s.ops.Query.Submit(r.Context(), sess, page.Editor, query.Auto)
	page.withOutcome(res.Outcome)
	page.ShowViz = r.URL.Query().Get("viz") != ""
	s.render(w, page)
}

func (s *Server) formSession(w http.ResponseWriter, r *http.Request) (*operations.Session, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return nil, false
	}
	sess, err := s.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

// handleRunForm submits the editor with the pressed button's action
func (s *Server) handleRunForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.formSession(w, r)
	if !ok {
		return
	}
	act, err := query.ParseAction(r.PostFormValue("action"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := s.ops.Query.Submit(r.Context(), sess, r.PostFormValue("query"), act)
	page := s.newPage(sess)
	page.withOutcome(res.Outcome)
	s.render(w, page)
}

// handleTranslateForm puts the translated query into the editor and submits
// it; reads run at once, writes wait for Run
func (s *Server) handleTranslateForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.formSession(w, r)
	if !ok {
		return
	}
	question := r.PostFormValue("question")

	q, err := s.ops.Translate.Question(r.Context(), sess, question)
	if err != nil {
		page := s.newPage(sess)
		page.Question = question
		_, msg := translateError(err)
		if msg == msgEmptyQuestion {
			page.Warning = msg
		} else {
			page.Error = msg
		}
		s.render(w, page)
		return
	}

	res := s.ops.Query.Submit(r.Context(), sess, q, query.Auto)
	page := s.newPage(sess)
	page.Question = question
	page.withOutcome(res.Outcome)
	s.render(w, page)
}

// handleRebuildForm rebuilds the graph from the sidebar sliders
func (s *Server) handleRebuildForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.formSession(w, r)
	if !ok {
		return
	}
	people, err1 := strconv.Atoi(r.PostFormValue("people"))
	companies, err2 := strconv.Atoi(r.PostFormValue("companies"))

	var msg string
	var rebuildErr error
	if err1 != nil || err2 != nil {
		rebuildErr = errors.New("people and companies must be numbers")
	} else if _, err := s.ops.Graph.Rebuild(sess, people, companies); err != nil {
		rebuildErr = err
	} else {
		msg = msgRebuilt
	}

	page := s.newPage(sess)
	page.Success = msg
	if rebuildErr != nil {
		page.Error = rebuildErr.Error()
	}
	s.render(w, page)
}

// handleSampleForm resets the editor to the sample query
func (s *Server) handleSampleForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.formSession(w, r)
	if !ok {
		return
	}
	s.ops.Query.Sample(sess)
	page := s.newPage(sess)
	res := s.ops.Query.Submit(r.Context(), sess, page.Editor, query.Auto)
	page.withOutcome(res.Outcome)
	s.render(w, page)
}

// handleVisualize serves the interactive network page for the session graph
func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	html, err := s.ops.Visual.Render(sess)
	if err != nil {
		s.logger.Error("failed to render network", zap.String("session", sess.ID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
