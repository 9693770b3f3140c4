package sparql

import "kgquery/internal/rdf"

// Form is the kind of a parsed query
type Form int

const (
	FormSelect Form = iota
	FormAsk
	FormConstruct
)

func (f Form) String() string {
	switch f {
	case FormSelect:
		return "SELECT"
	case FormAsk:
		return "ASK"
	case FormConstruct:
		return "CONSTRUCT"
	}
	return "UNKNOWN"
}

// Query is a parsed SELECT, ASK or CONSTRUCT query
type Query struct {
	Form       Form
	Distinct   bool
	Star       bool
	Projection []Projection
	Template   []TriplePattern
	Where      *Group
	GroupBy    []Projection
	Having     []Expr
	OrderBy    []OrderCondition
	Limit      int // -1 when absent
	Offset     int
}

// Projection is a selected variable, optionally computed from an expression
type Projection struct {
	Var  string
	Expr Expr
}

// OrderCondition is one ORDER BY key
type OrderCondition struct {
	Expr       Expr
	Descending bool
}

// Node is a triple-pattern position: either a variable or a constant term
type Node struct {
	Var  string
	Term rdf.Term
}

// IsVar reports whether the node is a variable
func (n Node) IsVar() bool { return n.Var != "" }

// TriplePattern is a triple whose positions may be variables
type TriplePattern struct {
	S, P, O Node
}

// Pattern is an element of a group graph pattern
type Pattern interface {
	isPattern()
}

// Group is a { ... } group graph pattern
type Group struct {
	Elements []Pattern
}

// BGP is a basic graph pattern
type BGP struct {
	Triples []TriplePattern
}

// Optional is OPTIONAL { ... }
type Optional struct {
	Group *Group
}

// Union is { ... } UNION { ... } [UNION ...]
type Union struct {
	Alternatives []*Group
}

// Minus is MINUS { ... }
type Minus struct {
	Group *Group
}

// Filter is FILTER(expr)
type Filter struct {
	Expr Expr
}

// Bind is BIND(expr AS ?var)
type Bind struct {
	Expr Expr
	Var  string
}

func (*Group) isPattern()    {}
func (*BGP) isPattern()      {}
func (*Optional) isPattern() {}
func (*Union) isPattern()    {}
func (*Minus) isPattern()    {}
func (*Filter) isPattern()   {}
func (*Bind) isPattern()     {}

// Expr is a filter or projection expression
type Expr interface {
	isExpr()
}

// VarExpr references a variable
type VarExpr struct{ Name string }

// TermExpr is a constant
type TermExpr struct{ Term rdf.Term }

// BinaryExpr applies a binary operator
type BinaryExpr struct {
	Op   string
	L, R Expr
}

// UnaryExpr applies !, - or +
type UnaryExpr struct {
	Op string
	X  Expr
}

// CallExpr invokes a built-in function or cast
type CallExpr struct {
	Name string
	Args []Expr
}

// InExpr is X [NOT] IN (list)
type InExpr struct {
	X    Expr
	List []Expr
	Not  bool
}

// ExistsExpr is [NOT] EXISTS { ... }
type ExistsExpr struct {
	Group *Group
	Not   bool
}

// AggregateExpr is COUNT, SUM, AVG, MIN, MAX, SAMPLE or GROUP_CONCAT
type AggregateExpr struct {
	Name      string
	Arg       Expr // nil for COUNT(*)
	Distinct  bool
	Separator string
}

func (*VarExpr) isExpr()       {}
func (*TermExpr) isExpr()      {}
func (*BinaryExpr) isExpr()    {}
func (*UnaryExpr) isExpr()     {}
func (*CallExpr) isExpr()      {}
func (*InExpr) isExpr()        {}
func (*ExistsExpr) isExpr()    {}
func (*AggregateExpr) isExpr() {}

// UpdateOp is a single operation of an update request
type UpdateOp interface {
	isUpdate()
}

// InsertData is INSERT DATA { ... }
type InsertData struct {
	Triples []TriplePattern
}

// DeleteData is DELETE DATA { ... }
type DeleteData struct {
	Triples []TriplePattern
}

// DeleteWhere is DELETE WHERE { ... }
type DeleteWhere struct {
	Patterns []TriplePattern
}

// Modify is [WITH <g>] DELETE { ... } INSERT { ... } WHERE { ... }
type Modify struct {
	With   rdf.IRI
	Delete []TriplePattern
	Insert []TriplePattern
	Where  *Group
}

// Clear is CLEAR DEFAULT | ALL
type Clear struct{}

func (*InsertData) isUpdate()  {}
func (*DeleteData) isUpdate()  {}
func (*DeleteWhere) isUpdate() {}
func (*Modify) isUpdate()      {}
func (*Clear) isUpdate()       {}

// containsAggregate reports whether e uses an aggregate function
func containsAggregate(e Expr) bool {
	switch x := e.(type) {
	case *AggregateExpr:
		return true
	case *BinaryExpr:
		return containsAggregate(x.L) || containsAggregate(x.R)
	case *UnaryExpr:
		return containsAggregate(x.X)
	case *CallExpr:
		for _, a := range x.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *InExpr:
		if containsAggregate(x.X) {
			return true
		}
		for _, a := range x.List {
			if containsAggregate(a) {
				return true
			}
		}
	}
	return false
}
