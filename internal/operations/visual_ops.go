package operations

import (
	"kgquery/internal/visualize"
)

// VisualOps renders a session's graph as an interactive network
type VisualOps struct {
	options visualize.Options
}

// NewVisualOps creates a new VisualOps instance
func NewVisualOps(options visualize.Options) *VisualOps {
	return &VisualOps{options: options}
}

// Network converts the session's graph into nodes and edges
func (v *VisualOps) Network(sess *Session) *visualize.Network {
	return visualize.Build(sess.Graph().Triples())
}

// Render returns a self-contained HTML page for the session's graph
func (v *VisualOps) Render(sess *Session) (string, error) {
	html, err := visualize.Render(v.Network(sess), v.options)
	if err != nil {
		return "", NewOperationError("render graph", sess.ID, err)
	}
	return html, nil
}
