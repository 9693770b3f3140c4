package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kgquery/internal/graph"
	"kgquery/internal/nl2sparql"
	"kgquery/internal/operations"
	"kgquery/internal/query"
	"kgquery/internal/visualize"
)

// User-facing notices
const (
	msgRebuilt        = "Graph rebuilt!"
	msgEmptyQuestion  = "Please type a question."
	msgModifiesGraph  = "This will modify the graph! Confirm to execute."
	msgPressRun       = "Press Run to execute this query."
	msgAutoExecuteTip = "SELECT executes automatically. INSERT/DELETE/UPDATE modify the graph and need an explicit run."
)

type queryRequest struct {
	Query  string `json:"query"`
	Action string `json:"action"`
}

type queryResponse struct {
	Session string         `json:"session"`
	Query   string         `json:"query"`
	Kind    string         `json:"kind"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Result  query.Envelope `json:"result,omitempty"`
}

func newQueryResponse(sess *operations.Session, out query.Outcome) queryResponse {
	return queryResponse{
		Session: sess.ID,
		Query:   out.Query,
		Kind:    out.Kind.String(),
		Status:  out.Status.String(),
		Message: statusMessage(out.Status),
		Result:  out.Envelope,
	}
}

func statusMessage(status query.Status) string {
	switch status {
	case query.NeedsConfirmation:
		return msgModifiesGraph
	case query.AwaitingRun:
		return msgPressRun
	}
	return ""
}

// handleStatus returns server status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	s.mu.Lock()
	lastPing := s.lastPing
	s.lastPing = now
	started := s.started
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sessions":  s.ops.Sessions.Len(),
		"uptime":    now.Sub(started).Round(time.Second).String(),
		"last_ping": lastPing.Format(time.RFC3339Nano),
		"timestamp": now.Unix(),
	})
}

// handleQuery submits a query on POST and reports the last outcome on GET
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		resp := map[string]any{"session": sess.ID, "editor": s.ops.Query.Editor(sess)}
		if last := s.ops.Query.Last(sess); last != nil {
			resp["last"] = newQueryResponse(sess, *last)
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodPost:
		var req queryRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
			return
		}
		act, err := query.ParseAction(req.Action)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res := s.ops.Query.Submit(r.Context(), sess, req.Query, act)
		writeJSON(w, http.StatusOK, newQueryResponse(sess, res.Outcome))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTranslate converts a question to SPARQL, stores it in the editor and
// submits it the way the editor would
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	q, err := s.ops.Translate.Question(r.Context(), sess, req.Question)
	if err != nil {
		status, msg := translateError(err)
		s.logger.Warn("translation failed", zap.String("session", sess.ID), zap.Error(err))
		writeError(w, status, msg)
		return
	}
	res := s.ops.Query.Submit(r.Context(), sess, q, query.Auto)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sess.ID,
		"query":   q,
		"outcome": newQueryResponse(sess, res.Outcome),
	})
}

func translateError(err error) (int, string) {
	var cfgErr *nl2sparql.ConfigError
	switch {
	case errors.Is(err, nl2sparql.ErrEmptyQuestion):
		return http.StatusBadRequest, msgEmptyQuestion
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable, cfgErr.Error()
	}
	return http.StatusBadGateway, err.Error()
}

// handleRebuild replaces the session graph with a new random one
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		People    int `json:"people"`
		Companies int `json:"companies"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	stats, err := s.ops.Graph.Rebuild(sess, req.People, req.Companies)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrSizeOutOfRange) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sess.ID,
		"message": msgRebuilt,
		"stats":   stats,
	})
}

// handleGraph returns the session graph as a network plus summary counts
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Session  string             `json:"session"`
		Stats    graph.Stats        `json:"stats"`
		Prefixes string             `json:"prefixes"`
		Network  *visualize.Network `json:"network"`
	}{
		Session:  sess.ID,
		Stats:    s.ops.Graph.Stats(sess),
		Prefixes: s.ops.Graph.Prefixes(sess),
		Network:  s.ops.Visual.Network(sess),
	})
}

// handleExport streams the session graph as N-Triples
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/n-triples; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="graph.nt"`)
	if err := s.ops.Graph.Export(sess, w); err != nil {
		s.logger.Error("export failed", zap.String("session", sess.ID), zap.Error(err))
	}
}
