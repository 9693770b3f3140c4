package graph

import (
	"errors"
	"fmt"

	"kgquery/internal/rdf"
)

// Size bounds accepted by Build
const (
	MinPeople    = 2
	MaxPeople    = 30
	MinCompanies = 1
	MaxCompanies = 10

	DefaultPeople    = 6
	DefaultCompanies = 2
	DefaultSeed      = 42
)

// Vocabulary of the synthetic graph
const (
	FOAFPerson rdf.IRI = rdf.FOAFNS + "Person"
	FOAFName   rdf.IRI = rdf.FOAFNS + "name"
	FOAFKnows  rdf.IRI = rdf.FOAFNS + "knows"
	ExCompany  rdf.IRI = rdf.ExampleNS + "Company"
	ExAge      rdf.IRI = rdf.ExampleNS + "age"
	ExWorksAt  rdf.IRI = rdf.ExampleNS + "worksAt"
)

// ErrSizeOutOfRange is returned when a requested graph size is outside the
// accepted bounds
var ErrSizeOutOfRange = errors.New("graph size out of range")

// BuildOptions controls the synthetic graph
type BuildOptions struct {
	People    int
	Companies int
	// Seed makes the build reproducible; zero picks a random seed
	Seed int64
}

// DefaultBuildOptions returns the size of the graph a new session starts with
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{People: DefaultPeople, Companies: DefaultCompanies, Seed: DefaultSeed}
}

// Validate checks the requested sizes
func (o BuildOptions) Validate() error {
	if o.People < MinPeople || o.People > MaxPeople {
		return fmt.Errorf("%w: people must be between %d and %d, got %d", ErrSizeOutOfRange, MinPeople, MaxPeople, o.People)
	}
	if o.Companies < MinCompanies || o.Companies > MaxCompanies {
		return fmt.Errorf("%w: companies must be between %d and %d, got %d", ErrSizeOutOfRange, MinCompanies, MaxCompanies, o.Companies)
	}
	return nil
}

// Stats summarises a graph
type Stats struct {
	Triples    int `json:"triples"`
	Subjects   int `json:"subjects"`
	Predicates int `json:"predicates"`
	People     int `json:"people"`
	Companies  int `json:"companies"`
}

// Stats counts triples, distinct subjects and predicates, and typed people
// and companies
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{
		Triples:    len(g.triples),
		Subjects:   len(g.bySubject),
		Predicates: len(g.byPredicate),
		People:     len(g.match(nil, rdf.RDFType, FOAFPerson)),
		Companies:  len(g.match(nil, rdf.RDFType, ExCompany)),
	}
}
