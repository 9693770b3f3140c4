package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	mcp "github.com/metoro-io/mcp-golang"

	"kgquery/internal/graph"
	"kgquery/internal/operations"
	"kgquery/internal/query"
)

// Tools binds the MCP tool handlers to one session; a stdio server has a
// single client.
type Tools struct {
	ops  *operations.Operations
	sess *operations.Session
}

// NewTools creates the tool set with a fresh session
func NewTools(ops *operations.Operations) (*Tools, error) {
	sess, err := ops.Sessions.Create()
	if err != nil {
		return nil, err
	}
	return &Tools{ops: ops, sess: sess}, nil
}

// RunSPARQLArgs are the arguments of run_sparql
type RunSPARQLArgs struct {
	Query   string `json:"query" jsonschema:"required,description=SPARQL query or update; PREFIX lines for foaf/ex/rdf/rdfs/xsd are implied"`
	Confirm bool   `json:"confirm" jsonschema:"description=Set to true to allow a DELETE/UPDATE query to modify the graph"`
}

// TranslateArgs are the arguments of translate_question
type TranslateArgs struct {
	Question string `json:"question" jsonschema:"required,description=Natural-language question about people and companies"`
}

// RebuildArgs are the arguments of rebuild_graph
type RebuildArgs struct {
	People    int `json:"people" jsonschema:"required,description=Number of people (2-30)"`
	Companies int `json:"companies" jsonschema:"required,description=Number of companies (1-10)"`
}

// Register adds every tool to server
func (t *Tools) Register(server *mcp.Server) error {
	// Query tools
	if err := server.RegisterTool(
		"run_sparql",
		"Run a SPARQL query against the knowledge graph. SELECT runs directly; DELETE/UPDATE require confirm=true. After any update the current people table is returned.",
		t.RunSPARQL,
	); err != nil {
		return err
	}
	if err := server.RegisterTool(
		"translate_question",
		"Translate a natural-language question into SPARQL without running it",
		t.Translate,
	); err != nil {
		return err
	}

	// Graph tools
	if err := server.RegisterTool(
		"rebuild_graph",
		"Replace the knowledge graph with a new random one of the given size",
		t.Rebuild,
	); err != nil {
		return err
	}
	if err := server.RegisterTool(
		"graph_stats",
		"Count the triples, people and companies in the knowledge graph",
		t.Stats,
	); err != nil {
		return err
	}
	if err := server.RegisterTool(
		"graph_network",
		"Return the knowledge graph as visualization nodes and edges",
		t.Network,
	); err != nil {
		return err
	}
	return server.RegisterTool(
		"export_graph",
		"Return the knowledge graph as N-Triples",
		t.Export,
	)
}

// RunSPARQL submits a query; confirm grants confirmation for a destructive one
func (t *Tools) RunSPARQL(args RunSPARQLArgs) (*mcp.ToolResponse, error) {
	act := query.Run
	if args.Confirm {
		act = query.Confirm
	}
	res := t.ops.Query.Submit(context.Background(), t.sess, args.Query, act)

	switch res.Status {
	case query.NeedsConfirmation:
		return text(fmt.Sprintf("%s query not executed: this will modify the graph. Call run_sparql again with confirm=true.", res.Kind)), nil
	case query.AwaitingRun:
		return text(fmt.Sprintf("%s query not executed.", res.Kind)), nil
	}

	if failure, ok := res.Envelope.(*query.Failure); ok {
		return nil, failure
	}
	return jsonText(res.Envelope)
}

// Translate turns a question into SPARQL
func (t *Tools) Translate(args TranslateArgs) (*mcp.ToolResponse, error) {
	q, err := t.ops.Translate.Question(context.Background(), t.sess, args.Question)
	if err != nil {
		return nil, err
	}
	return text(q), nil
}

// Rebuild replaces the graph
func (t *Tools) Rebuild(args RebuildArgs) (*mcp.ToolResponse, error) {
	stats, err := t.ops.Graph.Rebuild(t.sess, args.People, args.Companies)
	if err != nil {
		return nil, err
	}
	return jsonText(struct {
		Message string      `json:"message"`
		Stats   graph.Stats `json:"stats"`
	}{"Graph rebuilt!", stats})
}

// Stats summarises the graph
func (t *Tools) Stats(struct{}) (*mcp.ToolResponse, error) {
	return jsonText(t.ops.Graph.Stats(t.sess))
}

// Network returns the visualization nodes and edges
func (t *Tools) Network(struct{}) (*mcp.ToolResponse, error) {
	return jsonText(t.ops.Visual.Network(t.sess))
}

// Export returns the graph as N-Triples
func (t *Tools) Export(struct{}) (*mcp.ToolResponse, error) {
	var buf bytes.Buffer
	if err := t.ops.Graph.Export(t.sess, &buf); err != nil {
		return nil, err
	}
	return text(buf.String()), nil
}

func text(s string) *mcp.ToolResponse {
	return mcp.NewToolResponse(mcp.NewTextContent(s))
}

func jsonText(v any) (*mcp.ToolResponse, error) {
	// Format as JSON for better structure
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return text(string(data)), nil
}
