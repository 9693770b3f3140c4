package operations

import (
	"io"

	"go.uber.org/zap"

	"kgquery/internal/graph"
	"kgquery/internal/rdf"
)

// GraphOps handles rebuilding and inspecting a session's graph
type GraphOps struct {
	logger *zap.Logger
}

// NewGraphOps creates a new GraphOps instance
func NewGraphOps(logger *zap.Logger) *GraphOps {
	return &GraphOps{logger: logger.Named("graph")}
}

// Rebuild replaces the session's graph with a freshly generated one. The
// build uses a random seed, so two rebuilds of the same size differ.
func (g *GraphOps) Rebuild(sess *Session, people, companies int) (graph.Stats, error) {
	return g.RebuildWith(sess, graph.BuildOptions{People: people, Companies: companies})
}

// RebuildWith replaces the session's graph using explicit build options
func (g *GraphOps) RebuildWith(sess *Session, opts graph.BuildOptions) (graph.Stats, error) {
	built, err := graph.Build(opts)
	if err != nil {
		return graph.Stats{}, NewOperationError("rebuild graph", sess.ID, err)
	}
	sess.setGraph(built)

	stats := built.Stats()
	g.logger.Info("graph rebuilt",
		zap.String("session", sess.ID),
		zap.Int("people", opts.People),
		zap.Int("companies", opts.Companies),
		zap.Int("triples", stats.Triples))
	return stats, nil
}

// Stats summarises the session's graph
func (g *GraphOps) Stats(sess *Session) graph.Stats {
	return sess.Graph().Stats()
}

// Triples returns every triple of the session's graph in insertion order
func (g *GraphOps) Triples(sess *Session) []rdf.Triple {
	return sess.Graph().Triples()
}

// Export writes the session's graph as N-Triples
func (g *GraphOps) Export(sess *Session, w io.Writer) error {
	if err := rdf.WriteNTriples(w, sess.Graph().Triples()); err != nil {
		return NewOperationError("export graph", sess.ID, err)
	}
	return nil
}

// Prefixes returns the PREFIX declarations queries against the session's
// graph may assume
func (g *GraphOps) Prefixes(sess *Session) string {
	return sess.Graph().PrefixDeclarations()
}
