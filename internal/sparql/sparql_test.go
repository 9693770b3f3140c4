package sparql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgquery/internal/rdf"
)

// memStore is a minimal MutableStore for exercising the engine
type memStore struct {
	triples []rdf.Triple
}

func (m *memStore) Match(s, p, o rdf.Term) []rdf.Triple {
	var out []rdf.Triple
	for _, t := range m.triples {
		if (s == nil || rdf.Equal(s, t.Subject)) &&
			(p == nil || rdf.Equal(p, t.Predicate)) &&
			(o == nil || rdf.Equal(o, t.Object)) {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) Namespaces() *rdf.Namespaces { return rdf.DefaultNamespaces() }

func (m *memStore) Add(triples ...rdf.Triple) int {
	n := 0
	for _, t := range triples {
		if len(m.Match(t.Subject, t.Predicate, t.Object)) == 0 {
			m.triples = append(m.triples, t)
			n++
		}
	}
	return n
}

func (m *memStore) Remove(triples ...rdf.Triple) int {
	n := 0
	for _, t := range triples {
		for i, x := range m.triples {
			if x.Key() == t.Key() {
				m.triples = append(m.triples[:i], m.triples[i+1:]...)
				n++
				break
			}
		}
	}
	return n
}

func (m *memStore) Clear() { m.triples = nil }

const (
	ex   = rdf.ExampleNS
	foaf = rdf.FOAFNS
)

func people() *memStore {
	st := &memStore{}
	person := func(id, name string, age int64, company string) {
		s := rdf.IRI(ex + id)
		st.Add(
			rdf.Triple{Subject: s, Predicate: rdf.RDFType, Object: rdf.IRI(foaf + "Person")},
			rdf.Triple{Subject: s, Predicate: rdf.IRI(foaf + "name"), Object: rdf.NewString(name)},
		)
		if age > 0 {
			st.Add(rdf.Triple{Subject: s, Predicate: rdf.IRI(ex + "age"), Object: rdf.NewInteger(age)})
		}
		if company != "" {
			st.Add(rdf.Triple{Subject: s, Predicate: rdf.IRI(ex + "worksAt"), Object: rdf.IRI(ex + company)})
		}
	}
	person("Person1", "Alice", 30, "Company1")
	person("Person2", "Bob", 45, "Company2")
	person("Person3", "Carol", 0, "Company1")
	person("Person4", "Dave", 22, "")
	st.Add(
		rdf.Triple{Subject: rdf.IRI(ex + "Person1"), Predicate: rdf.IRI(foaf + "knows"), Object: rdf.IRI(ex + "Person2")},
		rdf.Triple{Subject: rdf.IRI(ex + "Company1"), Predicate: rdf.RDFSLabel, Object: rdf.NewString("Acme")},
	)
	return st
}

func column(res *Results, name string) []string {
	idx := -1
	for i, v := range res.Vars {
		if v == name {
			idx = i
		}
	}
	var out []string
	for _, r := range res.Rows {
		if r[idx] == nil {
			out = append(out, "<unbound>")
			continue
		}
		out = append(out, r[idx].String())
	}
	return out
}

func TestSelectWithOptional(t *testing.T) {
	res, err := Run(context.Background(), people(), `
		SELECT ?person ?name ?age ?company WHERE {
		  ?person a foaf:Person .
		  ?person foaf:name ?name .
		  OPTIONAL { ?person ex:age ?age . }
		  OPTIONAL { ?person ex:worksAt ?company . }
		} LIMIT 20`)
	require.NoError(t, err)

	assert.Equal(t, []string{"person", "name", "age", "company"}, res.Vars)
	require.Len(t, res.Rows, 4)
	assert.Equal(t, []string{"Alice", "Bob", "Carol", "Dave"}, column(res, "name"))
	assert.Equal(t, []string{"30", "45", "<unbound>", "22"}, column(res, "age"))
	assert.Equal(t, "<unbound>", column(res, "company")[3])
}

func TestFilterAndOrder(t *testing.T) {
	res, err := Run(context.Background(), people(), `
		PREFIX foaf: <http://xmlns.com/foaf/0.1/>
		SELECT ?name WHERE {
		  ?p foaf:name ?name ; ex:age ?age .
		  FILTER(?age >= 25 && !CONTAINS(LCASE(?name), "x"))
		} ORDER BY DESC(?age)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Alice"}, column(res, "name"))
}

func TestSelectStarSkipsBlankVariables(t *testing.T) {
	res, err := Run(context.Background(), people(), `SELECT * WHERE { ?p ex:worksAt _:c . ?p foaf:name ?n }`)
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "n"}, res.Vars)
	assert.Len(t, res.Rows, 3)
}

func TestUnionAndMinus(t *testing.T) {
	st := people()

	res, err := Run(context.Background(), st, `
		SELECT ?x WHERE {
		  { ?x ex:worksAt ex:Company2 } UNION { ?x rdfs:label "Acme" }
		}`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ex + "Person2", ex + "Company1"}, column(res, "x"))

	res, err = Run(context.Background(), st, `
		SELECT ?name WHERE {
		  ?p foaf:name ?name .
		  MINUS { ?p ex:worksAt ?c }
		}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dave"}, column(res, "name"))
}

func TestNotExistsAndBind(t *testing.T) {
	res, err := Run(context.Background(), people(), `
		SELECT ?name ?next WHERE {
		  ?p foaf:name ?name ; ex:age ?age .
		  FILTER NOT EXISTS { ?p foaf:knows ?other }
		  BIND(?age + 1 AS ?next)
		} ORDER BY ?name`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Dave"}, column(res, "name"))
	assert.Equal(t, []string{"46", "23"}, column(res, "next"))
}

func TestAggregates(t *testing.T) {
	res, err := Run(context.Background(), people(), `
		SELECT ?company (COUNT(?p) AS ?n) WHERE {
		  ?p ex:worksAt ?company
		} GROUP BY ?company HAVING (COUNT(?p) > 1)`)
	require.NoError(t, err)
	assert.Equal(t, []string{ex + "Company1"}, column(res, "company"))
	assert.Equal(t, []string{"2"}, column(res, "n"))

	res, err = Run(context.Background(), people(), `
		SELECT (AVG(?age) AS ?avg) (MAX(?age) AS ?max) (COUNT(*) AS ?all) WHERE { ?p ex:age ?age }`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	f, ok := res.Rows[0][0].(rdf.Literal).Float()
	require.True(t, ok)
	assert.InDelta(t, 32.333, f, 0.01)
	assert.Equal(t, "45", res.Rows[0][1].String())
	assert.Equal(t, "3", res.Rows[0][2].String())
}

func TestCountOverEmptyResultIsZero(t *testing.T) {
	res, err := Run(context.Background(), people(), `SELECT (COUNT(?x) AS ?n) WHERE { ?x ex:missing ?y }`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "0", res.Rows[0][0].String())
}

func TestDistinctLimitOffset(t *testing.T) {
	res, err := Run(context.Background(), people(), `
		SELECT DISTINCT ?c WHERE { ?p ex:worksAt ?c } ORDER BY ?c`)
	require.NoError(t, err)
	assert.Equal(t, []string{ex + "Company1", ex + "Company2"}, column(res, "c"))

	res, err = Run(context.Background(), people(), `
		SELECT ?name WHERE { ?p foaf:name ?name } ORDER BY ?name LIMIT 2 OFFSET 1`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carol"}, column(res, "name"))
}

func TestAsk(t *testing.T) {
	res, err := Run(context.Background(), people(), `ASK { ex:Person1 foaf:knows ex:Person2 }`)
	require.NoError(t, err)
	assert.Equal(t, FormAsk, res.Form)
	assert.True(t, res.Boolean)
	assert.Equal(t, []string{"ask"}, res.Vars)
	assert.Equal(t, "true", res.Rows[0][0].String())

	res, err = Run(context.Background(), people(), `ASK { ex:Person2 foaf:knows ex:Person1 }`)
	require.NoError(t, err)
	assert.False(t, res.Boolean)
}

func TestConstruct(t *testing.T) {
	res, err := Run(context.Background(), people(), `
		CONSTRUCT { ?c ex:employs ?p } WHERE { ?p ex:worksAt ?c }`)
	require.NoError(t, err)
	assert.Equal(t, []string{"subject", "predicate", "object"}, res.Vars)
	require.Len(t, res.Triples, 3)
	assert.Equal(t, rdf.IRI(ex+"employs"), res.Triples[0].Predicate)
	assert.Len(t, res.Rows, 3)
}

func TestUpdateForms(t *testing.T) {
	ctx := context.Background()
	st := people()

	require.NoError(t, Update(ctx, st, `INSERT DATA { ex:Person5 a foaf:Person ; foaf:name "Eve" ; ex:age 51 }`))
	res, err := Run(ctx, st, `SELECT ?age WHERE { ex:Person5 ex:age ?age }`)
	require.NoError(t, err)
	assert.Equal(t, []string{"51"}, column(res, "age"))

	require.NoError(t, Update(ctx, st, `
		DELETE { ?p ex:age ?old } INSERT { ?p ex:age ?new }
		WHERE { ?p foaf:name "Eve" ; ex:age ?old . BIND(?old + 1 AS ?new) }`))
	res, err = Run(ctx, st, `SELECT ?age WHERE { ex:Person5 ex:age ?age }`)
	require.NoError(t, err)
	assert.Equal(t, []string{"52"}, column(res, "age"))

	require.NoError(t, Update(ctx, st, `DELETE WHERE { ex:Person5 ?p ?o }`))
	assert.Empty(t, st.Match(rdf.IRI(ex+"Person5"), nil, nil))

	require.NoError(t, Update(ctx, st, `DELETE DATA { ex:Person1 foaf:knows ex:Person2 } ; CLEAR DEFAULT`))
	assert.Empty(t, st.triples)
}

func TestSyntaxErrors(t *testing.T) {
	for _, q := range []string{
		`SELECT ?x WHERE { ?x foaf:name }`,
		`SELECT ?x WHERE { ?x nope:name ?y }`,
		`SELEKT ?x WHERE { ?x ?p ?o }`,
		`SELECT ?x WHERE { ?x ?p "open }`,
		`SELECT ?x WHERE { ?x ?p ?o } LIMIT many`,
	} {
		_, err := Run(context.Background(), people(), q)
		assert.Error(t, err, q)
	}

	_, err := Run(context.Background(), people(), `SELECT ?x WHERE { ?x foaf:name }`)
	var se *SyntaxError
	assert.ErrorAs(t, err, &se)
}

func TestUpdateRejectsVariablesInData(t *testing.T) {
	err := Update(context.Background(), people(), `INSERT DATA { ?s foaf:name "x" }`)
	assert.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, people(), `SELECT * WHERE { ?s ?p ?o }`)
	assert.ErrorIs(t, err, context.Canceled)
}
