package operations

import (
	"go.uber.org/zap"

	"kgquery/internal/graph"
	"kgquery/internal/nl2sparql"
	"kgquery/internal/query"
	"kgquery/internal/visualize"
)

// Options wires the operations layer
type Options struct {
	// Build sizes the graph every new session starts with
	Build      graph.BuildOptions
	Translator *nl2sparql.Translator
	Viz        visualize.Options
	Logger     *zap.Logger
}

// New creates a new Operations instance with all sub-operations
func New(opts Options) *Operations {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Translator == nil {
		opts.Translator = nl2sparql.New(nil, "OPENAI_API_KEY", logger)
	}
	coordinator := query.NewCoordinator(query.NewExecutor(logger), logger)

	ops := &Operations{
		Sessions:  NewSessionStore(opts.Build, logger),
		Graph:     NewGraphOps(logger),
		Query:     NewQueryOps(coordinator),
		Translate: NewTranslateOps(opts.Translator),
		Visual:    NewVisualOps(opts.Viz),
	}

	return ops
}

// NewWithDefaults creates Operations with the default graph and no LLM
// credential
func NewWithDefaults() *Operations {
	return New(Options{Build: graph.DefaultBuildOptions(), Viz: visualize.DefaultOptions()})
}
