// Package query decides how a SPARQL string is handled: it classifies the
// query, gates destructive ones behind confirmation and runs them against a
// data source, returning a uniform result envelope.
package query

import "strings"

// Kind is the apparent intent of a query string
type Kind int

const (
	Unknown Kind = iota
	Read
	Construct
	Insert
	Destructive
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "SELECT"
	case Construct:
		return "CONSTRUCT"
	case Insert:
		return "INSERT"
	case Destructive:
		return "DELETE"
	}
	return "UNKNOWN"
}

var kindPrefixes = []struct {
	kind     Kind
	prefixes []string
}{
	{Read, []string{"select"}},
	{Construct, []string{"construct"}},
	{Insert, []string{"insert", "create"}},
	{Destructive, []string{"delete", "update", "with", "modify"}},
}

// Classify inspects the start of the trimmed, lower-cased query. It never
// fails; anything unrecognised is Unknown.
func Classify(q string) Kind {
	q = strings.ToLower(strings.TrimSpace(q))
	for _, kp := range kindPrefixes {
		for _, p := range kp.prefixes {
			if strings.HasPrefix(q, p) {
				return kp.kind
			}
		}
	}
	return Unknown
}

// isWrite reports whether the executor should route q to the data source's
// update operation. This is narrower than the classifier: "with", "create"
// and "modify" go to the query operation.
func isWrite(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	for _, p := range []string{"insert", "delete", "update"} {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}
