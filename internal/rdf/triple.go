package rdf

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Triple is a single subject-predicate-object statement
type Triple struct {
	Subject   Term
	Predicate IRI
	Object    Term
}

// Key identifies the triple within a set
func (t Triple) Key() string {
	return t.Subject.Key() + " " + t.Predicate.Key() + " " + t.Object.Key()
}

// Validate checks the positional constraints on each term
func (t Triple) Validate() error {
	if t.Subject == nil || t.Object == nil || t.Predicate == "" {
		return fmt.Errorf("incomplete triple")
	}
	if t.Subject.Kind() == KindLiteral {
		return fmt.Errorf("literal %q cannot be a subject", t.Subject.String())
	}
	return nil
}

// NTriple renders the triple as one N-Triples line without the newline
func (t Triple) NTriple() string {
	return formatNT(t.Subject) + " " + formatNT(t.Predicate) + " " + formatNT(t.Object) + " ."
}

func formatNT(term Term) string {
	switch v := term.(type) {
	case IRI:
		return "<" + string(v) + ">"
	case BlankNode:
		return "_:" + string(v)
	case Literal:
		s := `"` + escapeNT(v.Lexical) + `"`
		if v.Lang != "" {
			return s + "@" + v.Lang
		}
		if v.Datatype != "" && v.Datatype != XSDString {
			return s + "^^<" + string(v.Datatype) + ">"
		}
		return s
	}
	return ""
}

var ntEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func escapeNT(s string) string {
	return ntEscaper.Replace(s)
}

// WriteNTriples serializes triples in N-Triples format
func WriteNTriples(w io.Writer, triples []Triple) error {
	bw := bufio.NewWriter(w)
	for _, t := range triples {
		if _, err := bw.WriteString(t.NTriple() + "\n"); err != nil {
			return fmt.Errorf("failed to write triple: %w", err)
		}
	}
	return bw.Flush()
}
