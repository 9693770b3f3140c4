// Package rdf holds the small RDF data model used by the graph and the
// query engine: terms, triples and namespace bindings.
package rdf

import (
	"strconv"
	"strings"
)

// TermKind distinguishes the three kinds of RDF term
type TermKind int

const (
	KindIRI TermKind = iota
	KindLiteral
	KindBlank
)

// Term is an IRI, a Literal or a BlankNode
type Term interface {
	Kind() TermKind
	// String returns the textual value shown in result rows
	String() string
	// Key returns a string that is unique per distinct term
	Key() string
}

// IRI is a resource identifier
type IRI string

func (i IRI) Kind() TermKind { return KindIRI }
func (i IRI) String() string { return string(i) }
func (i IRI) Key() string    { return "<" + string(i) + ">" }

// BlankNode is an anonymous resource
type BlankNode string

func (b BlankNode) Kind() TermKind { return KindBlank }
func (b BlankNode) String() string { return string(b) }
func (b BlankNode) Key() string    { return "_:" + string(b) }

// Literal is a lexical value with an optional datatype or language tag
type Literal struct {
	Lexical  string
	Datatype IRI
	Lang     string
}

func (l Literal) Kind() TermKind { return KindLiteral }
func (l Literal) String() string { return l.Lexical }

func (l Literal) Key() string {
	k := strconv.Quote(l.Lexical)
	if l.Lang != "" {
		return k + "@" + strings.ToLower(l.Lang)
	}
	if l.Datatype != "" && l.Datatype != XSDString {
		return k + "^^<" + string(l.Datatype) + ">"
	}
	return k
}

// NewString returns a plain string literal
func NewString(s string) Literal {
	return Literal{Lexical: s}
}

// NewLangString returns a language-tagged literal
func NewLangString(s, lang string) Literal {
	return Literal{Lexical: s, Lang: lang}
}

// NewInteger returns an xsd:integer literal
func NewInteger(n int64) Literal {
	return Literal{Lexical: strconv.FormatInt(n, 10), Datatype: XSDInteger}
}

// NewDecimal returns an xsd:decimal literal
func NewDecimal(f float64) Literal {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return Literal{Lexical: s, Datatype: XSDDecimal}
}

// NewDouble returns an xsd:double literal
func NewDouble(f float64) Literal {
	return Literal{Lexical: strconv.FormatFloat(f, 'E', -1, 64), Datatype: XSDDouble}
}

// NewBoolean returns an xsd:boolean literal
func NewBoolean(b bool) Literal {
	return Literal{Lexical: strconv.FormatBool(b), Datatype: XSDBoolean}
}

// IsNumeric reports whether the literal has one of the xsd numeric datatypes
func (l Literal) IsNumeric() bool {
	switch l.Datatype {
	case XSDInteger, XSDDecimal, XSDDouble, XSDFloat, XSDInt, XSDLong,
		XSDShort, XSDNonNegativeInteger, XSDPositiveInteger:
		return true
	}
	return false
}

// Float returns the numeric value of a numeric literal
func (l Literal) Float() (float64, bool) {
	if !l.IsNumeric() {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(l.Lexical), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Equal reports whether two terms are the same RDF term
func Equal(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}
