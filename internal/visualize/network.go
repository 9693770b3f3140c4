// Package visualize converts triples into a directed node/edge network and
// renders it as a self-contained interactive HTML page.
package visualize

import (
	"fmt"

	"kgquery/internal/rdf"
)

// Node is a vertex of the network
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Shape string `json:"shape,omitempty"`
}

// Edge is a directed, titled connection
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Title string `json:"title"`
}

// Network is the renderable form of a graph
type Network struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Build walks triples in order. Subjects and IRI or blank objects become one
// node per identifier labelled with its short name. Every literal object
// gets its own box node lit_<n>, numbered in encounter order, so equal
// literals are never merged.
func Build(triples []rdf.Triple) *Network {
	net := &Network{Nodes: []Node{}, Edges: []Edge{}}
	added := make(map[string]bool)
	literals := 0

	addNode := func(t rdf.Term) string {
		id := t.String()
		if !added[id] {
			net.Nodes = append(net.Nodes, Node{ID: id, Label: rdf.ShortName(id)})
			added[id] = true
		}
		return id
	}

	for _, t := range triples {
		from := addNode(t.Subject)
		title := rdf.ShortName(string(t.Predicate))

		if t.Object.Kind() == rdf.KindLiteral {
			id := fmt.Sprintf("lit_%d", literals)
			literals++
			net.Nodes = append(net.Nodes, Node{ID: id, Label: t.Object.String(), Shape: "box"})
			net.Edges = append(net.Edges, Edge{From: from, To: id, Title: title})
			continue
		}
		to := addNode(t.Object)
		net.Edges = append(net.Edges, Edge{From: from, To: to, Title: title})
	}
	return net
}
