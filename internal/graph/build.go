package graph

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"kgquery/internal/rdf"
)

// Build generates a graph of companies and people. Companies get a type and
// a fake label; each person gets a type, a fake name, an age in [18,75] and
// an employer, and knows the next person in a ring.
func Build(opts BuildOptions) (*Graph, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	faker := gofakeit.New(opts.Seed)
	g := New()

	companies := make([]rdf.IRI, 0, opts.Companies)
	for i := 1; i <= opts.Companies; i++ {
		c := rdf.IRI(fmt.Sprintf("%sCompany%d", rdf.ExampleNS, i))
		g.Add(
			rdf.Triple{Subject: c, Predicate: rdf.RDFType, Object: ExCompany},
			rdf.Triple{Subject: c, Predicate: rdf.RDFSLabel, Object: rdf.NewString(faker.Company())},
		)
		companies = append(companies, c)
	}

	people := make([]rdf.IRI, 0, opts.People)
	for i := 1; i <= opts.People; i++ {
		p := rdf.IRI(fmt.Sprintf("%sPerson%d", rdf.ExampleNS, i))
		g.Add(
			rdf.Triple{Subject: p, Predicate: rdf.RDFType, Object: FOAFPerson},
			rdf.Triple{Subject: p, Predicate: FOAFName, Object: rdf.NewString(faker.Name())},
			rdf.Triple{Subject: p, Predicate: ExAge, Object: rdf.NewInteger(int64(faker.Number(18, 75)))},
			rdf.Triple{Subject: p, Predicate: ExWorksAt, Object: companies[faker.Number(0, len(companies)-1)]},
		)
		people = append(people, p)
	}

	for i, p := range people {
		g.Add(rdf.Triple{Subject: p, Predicate: FOAFKnows, Object: people[(i+1)%len(people)]})
	}
	return g, nil
}

// MustBuild is Build for options known to be valid
func MustBuild(opts BuildOptions) *Graph {
	g, err := Build(opts)
	if err != nil {
		panic(err)
	}
	return g
}
