package rdf

import "strings"

// Well-known namespaces
const (
	RDFNS     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS    = "http://www.w3.org/2000/01/rdf-schema#"
	XSDNS     = "http://www.w3.org/2001/XMLSchema#"
	OWLNS     = "http://www.w3.org/2002/07/owl#"
	FOAFNS    = "http://xmlns.com/foaf/0.1/"
	ExampleNS = "http://example.org/"
	SchemaNS  = "https://schema.org/"
	DCTermsNS = "http://purl.org/dc/terms/"
	SKOSNS    = "http://www.w3.org/2004/02/skos/core#"
)

// Frequently used IRIs
const (
	RDFType   IRI = RDFNS + "type"
	RDFSLabel IRI = RDFSNS + "label"

	XSDString             IRI = XSDNS + "string"
	XSDInteger            IRI = XSDNS + "integer"
	XSDInt                IRI = XSDNS + "int"
	XSDLong               IRI = XSDNS + "long"
	XSDShort              IRI = XSDNS + "short"
	XSDNonNegativeInteger IRI = XSDNS + "nonNegativeInteger"
	XSDPositiveInteger    IRI = XSDNS + "positiveInteger"
	XSDDecimal            IRI = XSDNS + "decimal"
	XSDDouble             IRI = XSDNS + "double"
	XSDFloat              IRI = XSDNS + "float"
	XSDBoolean            IRI = XSDNS + "boolean"
	XSDDateTime           IRI = XSDNS + "dateTime"
	RDFLangString         IRI = RDFNS + "langString"
)

// Binding associates a prefix with a namespace IRI
type Binding struct {
	Prefix    string
	Namespace string
}

// Namespaces is an ordered set of prefix bindings
type Namespaces struct {
	bindings []Binding
}

// DefaultNamespaces returns the bindings every graph starts with
func DefaultNamespaces() *Namespaces {
	ns := &Namespaces{}
	ns.Bind("rdf", RDFNS)
	ns.Bind("rdfs", RDFSNS)
	ns.Bind("xsd", XSDNS)
	ns.Bind("owl", OWLNS)
	ns.Bind("foaf", FOAFNS)
	ns.Bind("ex", ExampleNS)
	ns.Bind("schema", SchemaNS)
	ns.Bind("dcterms", DCTermsNS)
	ns.Bind("skos", SKOSNS)
	return ns
}

// Bind adds or replaces a prefix binding
func (n *Namespaces) Bind(prefix, namespace string) {
	for i, b := range n.bindings {
		if b.Prefix == prefix {
			n.bindings[i].Namespace = namespace
			return
		}
	}
	n.bindings = append(n.bindings, Binding{Prefix: prefix, Namespace: namespace})
}

// Lookup returns the namespace bound to prefix
func (n *Namespaces) Lookup(prefix string) (string, bool) {
	for _, b := range n.bindings {
		if b.Prefix == prefix {
			return b.Namespace, true
		}
	}
	return "", false
}

// Bindings returns a copy of the bindings in declaration order
func (n *Namespaces) Bindings() []Binding {
	out := make([]Binding, len(n.bindings))
	copy(out, n.bindings)
	return out
}

// Clone returns an independent copy
func (n *Namespaces) Clone() *Namespaces {
	return &Namespaces{bindings: n.Bindings()}
}

// Compact renders iri as prefix:local when a binding covers it
func (n *Namespaces) Compact(iri IRI) string {
	s := string(iri)
	best := ""
	bestPrefix := ""
	for _, b := range n.bindings {
		if strings.HasPrefix(s, b.Namespace) && len(b.Namespace) > len(best) {
			best = b.Namespace
			bestPrefix = b.Prefix
		}
	}
	if best == "" {
		return "<" + s + ">"
	}
	return bestPrefix + ":" + strings.TrimPrefix(s, best)
}

// ShortName returns the human-readable tail of an identifier: the part after
// the last '#', otherwise the last path segment, otherwise the whole string.
func ShortName(id string) string {
	if i := strings.LastIndex(id, "#"); i >= 0 {
		return id[i+1:]
	}
	trimmed := strings.TrimRight(id, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return id
}
