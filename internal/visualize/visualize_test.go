package visualize

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgquery/internal/rdf"
)

const ex = rdf.ExampleNS

func TestBuild(t *testing.T) {
	name := rdf.IRI(rdf.FOAFNS + "name")
	knows := rdf.IRI(rdf.FOAFNS + "knows")
	triples := []rdf.Triple{
		{Subject: rdf.IRI(ex + "Person1"), Predicate: name, Object: rdf.NewString("Ann")},
		{Subject: rdf.IRI(ex + "Person1"), Predicate: knows, Object: rdf.IRI(ex + "Person2")},
		{Subject: rdf.IRI(ex + "Person2"), Predicate: name, Object: rdf.NewString("Ann")},
		{Subject: rdf.IRI(ex + "Person2"), Predicate: rdf.RDFType, Object: rdf.BlankNode("b0")},
	}

	net := Build(triples)

	assert.Equal(t, []Node{
		{ID: ex + "Person1", Label: "Person1"},
		{ID: "lit_0", Label: "Ann", Shape: "box"},
		{ID: ex + "Person2", Label: "Person2"},
		{ID: "lit_1", Label: "Ann", Shape: "box"},
		{ID: "b0", Label: "b0"},
	}, net.Nodes)
	assert.Equal(t, []Edge{
		{From: ex + "Person1", To: "lit_0", Title: "name"},
		{From: ex + "Person1", To: ex + "Person2", Title: "knows"},
		{From: ex + "Person2", To: "lit_1", Title: "name"},
		{From: ex + "Person2", To: "b0", Title: "type"},
	}, net.Edges)
}

func TestShortNameLabels(t *testing.T) {
	assert.Equal(t, "type", rdf.ShortName(rdf.RDFNS+"type"))
	assert.Equal(t, "Person1", rdf.ShortName("http://example.org/Person1/"))
	assert.Equal(t, "urn:x", rdf.ShortName("urn:x"))
}

func TestRenderRemovesArtifact(t *testing.T) {
	dir := t.TempDir()
	net := Build([]rdf.Triple{
		{Subject: rdf.IRI(ex + "a"), Predicate: rdf.IRI(ex + "rel"), Object: rdf.IRI(ex + "b")},
	})

	html, err := Render(net, Options{Height: "500px", Width: "80%", TempDir: dir})
	require.NoError(t, err)

	assert.Contains(t, html, "vis-network")
	assert.Contains(t, html, "height: 500px")
	assert.Contains(t, html, `"title":"rel"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRenderEscapesLabels(t *testing.T) {
	net := Build([]rdf.Triple{
		{Subject: rdf.IRI(ex + "a"), Predicate: rdf.IRI(ex + "note"), Object: rdf.NewString("</script><b>")},
	})
	html, err := Render(net, Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.NotContains(t, html, "</script><b>")
}
