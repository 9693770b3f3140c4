// Package graph holds the in-memory knowledge graph that queries run
// against, and the builder that fills it with synthetic people and
// companies.
package graph

import (
	"context"
	"sort"
	"sync"

	"kgquery/internal/rdf"
	"kgquery/internal/sparql"
)

type entry struct {
	triple rdf.Triple
	seq    uint64
}

// Graph is a deduplicated set of triples indexed by subject, predicate and
// object. It is safe for concurrent use.
type Graph struct {
	mu      sync.RWMutex
	ns      *rdf.Namespaces
	triples map[string]*entry
	next    uint64

	bySubject   map[string]map[string]struct{}
	byPredicate map[string]map[string]struct{}
	byObject    map[string]map[string]struct{}
}

// New creates an empty graph with the default namespace bindings
func New() *Graph {
	return &Graph{
		ns:          rdf.DefaultNamespaces(),
		triples:     make(map[string]*entry),
		bySubject:   make(map[string]map[string]struct{}),
		byPredicate: make(map[string]map[string]struct{}),
		byObject:    make(map[string]map[string]struct{}),
	}
}

// Namespaces returns the graph's prefix bindings
func (g *Graph) Namespaces() *rdf.Namespaces {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ns.Clone()
}

// Bind adds a prefix binding used when parsing queries
func (g *Graph) Bind(prefix, namespace string) {
	g.mu.Lock()
	g.ns.Bind(prefix, namespace)
	g.mu.Unlock()
}

// Len returns the number of triples
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.triples)
}

// Add inserts triples, ignoring ones already present. It returns the number
// of triples actually added.
func (g *Graph) Add(triples ...rdf.Triple) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.add(triples)
}

// Remove deletes triples and returns how many were present
func (g *Graph) Remove(triples ...rdf.Triple) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remove(triples)
}

// Clear removes every triple; namespace bindings are kept
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clear()
}

// Match returns the triples matching a pattern in insertion order. A nil
// term matches anything.
func (g *Graph) Match(s, p, o rdf.Term) []rdf.Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.match(s, p, o)
}

// Triples returns every triple in insertion order
func (g *Graph) Triples() []rdf.Triple {
	return g.Match(nil, nil, nil)
}

// Query evaluates a SELECT, ASK or CONSTRUCT query under a read lock
func (g *Graph) Query(ctx context.Context, text string) (*sparql.Results, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sparql.Run(ctx, &view{g: g}, text)
}

// Update applies a SPARQL update under the write lock
func (g *Graph) Update(ctx context.Context, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sparql.Update(ctx, &view{g: g}, text)
}

// PrefixDeclarations renders the graph's bindings as PREFIX lines, one per
// binding, for display above sample queries.
func (g *Graph) PrefixDeclarations() string {
	var out string
	for _, b := range g.Namespaces().Bindings() {
		out += "PREFIX " + b.Prefix + ": <" + b.Namespace + ">\n"
	}
	return out
}

func (g *Graph) add(triples []rdf.Triple) int {
	n := 0
	for _, t := range triples {
		k := t.Key()
		if _, ok := g.triples[k]; ok {
			continue
		}
		g.next++
		g.triples[k] = &entry{triple: t, seq: g.next}
		index(g.bySubject, t.Subject.Key(), k)
		index(g.byPredicate, t.Predicate.Key(), k)
		index(g.byObject, t.Object.Key(), k)
		n++
	}
	return n
}

func (g *Graph) remove(triples []rdf.Triple) int {
	n := 0
	for _, t := range triples {
		k := t.Key()
		if _, ok := g.triples[k]; !ok {
			continue
		}
		delete(g.triples, k)
		unindex(g.bySubject, t.Subject.Key(), k)
		unindex(g.byPredicate, t.Predicate.Key(), k)
		unindex(g.byObject, t.Object.Key(), k)
		n++
	}
	return n
}

func (g *Graph) clear() {
	g.triples = make(map[string]*entry)
	g.bySubject = make(map[string]map[string]struct{})
	g.byPredicate = make(map[string]map[string]struct{})
	g.byObject = make(map[string]map[string]struct{})
}

func (g *Graph) match(s, p, o rdf.Term) []rdf.Triple {
	// start from the smallest index that applies
	var candidates map[string]struct{}
	full := true
	for _, c := range []struct {
		term rdf.Term
		idx  map[string]map[string]struct{}
	}{{s, g.bySubject}, {p, g.byPredicate}, {o, g.byObject}} {
		if c.term == nil {
			continue
		}
		set := c.idx[c.term.Key()]
		if full || len(set) < len(candidates) {
			candidates = set
			full = false
		}
	}

	var hits []*entry
	consider := func(e *entry) {
		t := e.triple
		if (s == nil || rdf.Equal(t.Subject, s)) &&
			(p == nil || rdf.Equal(t.Predicate, p)) &&
			(o == nil || rdf.Equal(t.Object, o)) {
			hits = append(hits, e)
		}
	}
	if full {
		for _, e := range g.triples {
			consider(e)
		}
	} else {
		for k := range candidates {
			consider(g.triples[k])
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	out := make([]rdf.Triple, len(hits))
	for i, e := range hits {
		out[i] = e.triple
	}
	return out
}

func index(idx map[string]map[string]struct{}, term, key string) {
	set, ok := idx[term]
	if !ok {
		set = make(map[string]struct{})
		idx[term] = set
	}
	set[key] = struct{}{}
}

func unindex(idx map[string]map[string]struct{}, term, key string) {
	set := idx[term]
	delete(set, key)
	if len(set) == 0 {
		delete(idx, term)
	}
}

// view exposes the graph to the query engine without taking the lock; the
// caller holds it for the duration of the query or update.
type view struct {
	g *Graph
}

func (v *view) Match(s, p, o rdf.Term) []rdf.Triple { return v.g.match(s, p, o) }
func (v *view) Namespaces() *rdf.Namespaces         { return v.g.ns }
func (v *view) Add(triples ...rdf.Triple) int       { return v.g.add(triples) }
func (v *view) Remove(triples ...rdf.Triple) int    { return v.g.remove(triples) }
func (v *view) Clear()                              { v.g.clear() }
