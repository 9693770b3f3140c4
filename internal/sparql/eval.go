// Package sparql implements the subset of SPARQL 1.1 query and update used
// against the in-memory knowledge graph: SELECT, ASK and CONSTRUCT with
// OPTIONAL, UNION, MINUS, FILTER, BIND, grouping and aggregates, and the
// INSERT/DELETE update forms.
package sparql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"kgquery/internal/rdf"
)

// Store is the read side of a triple store. A nil argument to Match is a
// wildcard.
type Store interface {
	Match(s, p, o rdf.Term) []rdf.Triple
	Namespaces() *rdf.Namespaces
}

// MutableStore is a Store that accepts updates
type MutableStore interface {
	Store
	Add(triples ...rdf.Triple) int
	Remove(triples ...rdf.Triple) int
	Clear()
}

// Results holds the outcome of a query. Rows are positionally aligned with
// Vars; a nil cell is an unbound variable.
type Results struct {
	Form    Form
	Vars    []string
	Rows    [][]rdf.Term
	Triples []rdf.Triple
	Boolean bool
}

// Binding maps variable names to terms
type Binding map[string]rdf.Term

func (b Binding) clone() Binding {
	out := make(Binding, len(b)+2)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// compatible reports whether two bindings agree on all shared variables
func (b Binding) compatible(o Binding) bool {
	for k, v := range b {
		if ov, ok := o[k]; ok && !rdf.Equal(v, ov) {
			return false
		}
	}
	return true
}

// Run parses and evaluates text against st
func Run(ctx context.Context, st Store, text string) (*Results, error) {
	q, err := ParseQuery(text, st.Namespaces())
	if err != nil {
		return nil, err
	}
	return Evaluate(ctx, st, q)
}

// Evaluate runs a parsed query against st
func Evaluate(ctx context.Context, st Store, q *Query) (*Results, error) {
	ev := &evaluator{ctx: ctx, st: st}
	sols, err := ev.evalGroup(q.Where, Binding{})
	if err != nil {
		return nil, err
	}

	switch q.Form {
	case FormAsk:
		res := &Results{Form: FormAsk, Vars: []string{"ask"}, Boolean: len(sols) > 0}
		res.Rows = [][]rdf.Term{{rdf.NewBoolean(res.Boolean)}}
		return res, nil

	case FormConstruct:
		rows := make([]row, len(sols))
		for i, s := range sols {
			rows[i] = row{b: s}
		}
		rows, err = ev.order(rows, q.OrderBy)
		if err != nil {
			return nil, err
		}
		rows = slice(rows, q.Offset, q.Limit)
		triples := construct(q.Template, rows)
		res := &Results{Form: FormConstruct, Vars: []string{"subject", "predicate", "object"}, Triples: triples}
		for _, t := range triples {
			res.Rows = append(res.Rows, []rdf.Term{t.Subject, t.Predicate, t.Object})
		}
		return res, nil
	}

	return ev.selectResults(q, sols)
}

type row struct {
	b     Binding
	group []Binding
}

type evaluator struct {
	ctx context.Context
	st  Store
}

func (ev *evaluator) selectResults(q *Query, sols []Binding) (*Results, error) {
	aggregated := len(q.GroupBy) > 0 || len(q.Having) > 0
	for _, p := range q.Projection {
		if p.Expr != nil && containsAggregate(p.Expr) {
			aggregated = true
		}
	}
	if aggregated && q.Star {
		return nil, fmt.Errorf("SELECT * is not allowed with GROUP BY")
	}

	var rows []row
	if aggregated {
		var err error
		rows, err = ev.group(q, sols)
		if err != nil {
			return nil, err
		}
	} else {
		rows = make([]row, len(sols))
		for i, s := range sols {
			rows[i] = row{b: s}
		}
	}

	// computed projections
	for i := range rows {
		for _, p := range q.Projection {
			if p.Expr == nil {
				continue
			}
			if _, exists := rows[i].b[p.Var]; exists {
				continue
			}
			v, err := ev.eval(p.Expr, rows[i].b, rows[i].group)
			if err == nil && v != nil {
				rows[i].b[p.Var] = v
			}
		}
	}

	rows, err := ev.order(rows, q.OrderBy)
	if err != nil {
		return nil, err
	}

	vars := projectedVars(q)
	if aggregated {
		for _, p := range q.Projection {
			if p.Expr == nil && !groupedVar(q, p.Var) {
				return nil, fmt.Errorf("variable ?%s is not grouped", p.Var)
			}
		}
	}

	res := &Results{Form: FormSelect, Vars: vars}
	seen := make(map[string]bool)
	for _, r := range rows {
		cells := make([]rdf.Term, len(vars))
		for i, v := range vars {
			cells[i] = r.b[v]
		}
		if q.Distinct {
			k := rowKey(cells)
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		res.Rows = append(res.Rows, cells)
	}
	res.Rows = slice(res.Rows, q.Offset, q.Limit)
	return res, nil
}

func groupedVar(q *Query, name string) bool {
	for _, g := range q.GroupBy {
		if g.Var == name {
			return true
		}
	}
	return false
}

func rowKey(cells []rdf.Term) string {
	var sb strings.Builder
	for _, c := range cells {
		if c == nil {
			sb.WriteString("\x00")
		} else {
			sb.WriteString(c.Key())
		}
		sb.WriteString("\x01")
	}
	return sb.String()
}

func slice[T any](rows []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// projectedVars lists result columns; SELECT * uses pattern variables in
// order of first appearance, skipping blank-node variables.
func projectedVars(q *Query) []string {
	if !q.Star {
		vars := make([]string, len(q.Projection))
		for i, p := range q.Projection {
			vars[i] = p.Var
		}
		return vars
	}
	var vars []string
	seen := make(map[string]bool)
	add := func(n Node) {
		if n.IsVar() && !strings.HasPrefix(n.Var, "_:") && !seen[n.Var] {
			seen[n.Var] = true
			vars = append(vars, n.Var)
		}
	}
	var walk func(g *Group)
	walk = func(g *Group) {
		for _, el := range g.Elements {
			switch x := el.(type) {
			case *BGP:
				for _, t := range x.Triples {
					add(t.S)
					add(t.P)
					add(t.O)
				}
			case *Group:
				walk(x)
			case *Optional:
				walk(x.Group)
			case *Union:
				for _, alt := range x.Alternatives {
					walk(alt)
				}
			case *Bind:
				add(Node{Var: x.Var})
			}
		}
	}
	walk(q.Where)
	return vars
}

func (ev *evaluator) group(q *Query, sols []Binding) ([]row, error) {
	type bucket struct {
		key  Binding
		rows []Binding
	}
	var order []string
	buckets := make(map[string]*bucket)

	for _, s := range sols {
		key := Binding{}
		cells := make([]rdf.Term, len(q.GroupBy))
		for i, g := range q.GroupBy {
			v, err := ev.eval(g.Expr, s, nil)
			if err != nil {
				v = nil
			}
			cells[i] = v
			if g.Var != "" && v != nil {
				key[g.Var] = v
			}
		}
		k := rowKey(cells)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{key: key}
			buckets[k] = b
			order = append(order, k)
		}
		b.rows = append(b.rows, s)
	}

	// an aggregate query without GROUP BY always yields one group
	if len(order) == 0 && len(q.GroupBy) == 0 {
		buckets[""] = &bucket{key: Binding{}}
		order = append(order, "")
	}

	var rows []row
	for _, k := range order {
		b := buckets[k]
		r := row{b: b.key, group: b.rows}
		if r.group == nil {
			r.group = []Binding{}
		}
		keep := true
		for _, h := range q.Having {
			ok, err := ev.ebv(h, r.b, r.group)
			if err != nil || !ok {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (ev *evaluator) order(rows []row, conds []OrderCondition) ([]row, error) {
	if len(conds) == 0 {
		return rows, nil
	}
	keys := make([][]rdf.Term, len(rows))
	for i, r := range rows {
		keys[i] = make([]rdf.Term, len(conds))
		for j, c := range conds {
			v, err := ev.eval(c.Expr, r.b, r.group)
			if err == nil {
				keys[i][j] = v
			}
		}
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for j, c := range conds {
			cmp := orderCompare(keys[idx[a]][j], keys[idx[b]][j])
			if cmp == 0 {
				continue
			}
			if c.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	out := make([]row, len(rows))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out, nil
}

func (ev *evaluator) evalGroup(g *Group, seed Binding) ([]Binding, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	sols := []Binding{seed.clone()}
	var filters []Expr

	for _, el := range g.Elements {
		var err error
		switch x := el.(type) {
		case *BGP:
			sols, err = ev.evalBGP(x, sols)
		case *Group:
			sols, err = ev.joinGroup(x, sols)
		case *Optional:
			sols, err = ev.leftJoin(x.Group, sols)
		case *Union:
			sols, err = ev.union(x, sols)
		case *Minus:
			sols, err = ev.minus(x.Group, sols)
		case *Filter:
			filters = append(filters, x.Expr)
		case *Bind:
			for _, s := range sols {
				if _, bound := s[x.Var]; bound {
					return nil, fmt.Errorf("BIND variable ?%s is already in scope", x.Var)
				}
				if v, e := ev.eval(x.Expr, s, nil); e == nil && v != nil {
					s[x.Var] = v
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if len(filters) == 0 {
		return sols, nil
	}
	out := sols[:0]
	for _, s := range sols {
		keep := true
		for _, f := range filters {
			ok, err := ev.ebv(f, s, nil)
			if err != nil || !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out, nil
}

func (ev *evaluator) joinGroup(g *Group, sols []Binding) ([]Binding, error) {
	var out []Binding
	for _, s := range sols {
		sub, err := ev.evalGroup(g, s)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func (ev *evaluator) leftJoin(g *Group, sols []Binding) ([]Binding, error) {
	var out []Binding
	for _, s := range sols {
		sub, err := ev.evalGroup(g, s)
		if err != nil {
			return nil, err
		}
		if len(sub) == 0 {
			out = append(out, s)
			continue
		}
		out = append(out, sub...)
	}
	return out, nil
}

func (ev *evaluator) union(u *Union, sols []Binding) ([]Binding, error) {
	var out []Binding
	for _, s := range sols {
		for _, alt := range u.Alternatives {
			sub, err := ev.evalGroup(alt, s)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

func (ev *evaluator) minus(g *Group, sols []Binding) ([]Binding, error) {
	removed, err := ev.evalGroup(g, Binding{})
	if err != nil {
		return nil, err
	}
	var out []Binding
	for _, s := range sols {
		drop := false
		for _, m := range removed {
			if sharesVar(s, m) && s.compatible(m) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, s)
		}
	}
	return out, nil
}

func sharesVar(a, b Binding) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

func (ev *evaluator) evalBGP(bgp *BGP, sols []Binding) ([]Binding, error) {
	pending := make([]TriplePattern, len(bgp.Triples))
	copy(pending, bgp.Triples)

	for len(pending) > 0 {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		// pick the pattern with the most positions already fixed
		best, bestScore := 0, -1
		for i, tp := range pending {
			score := boundScore(tp, sols)
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		tp := pending[best]
		pending = append(pending[:best], pending[best+1:]...)

		var next []Binding
		for _, s := range sols {
			sub := resolveNode(tp.S, s)
			pred := resolveNode(tp.P, s)
			obj := resolveNode(tp.O, s)
			for _, t := range ev.st.Match(sub, pred, obj) {
				nb, ok := extend(s, tp, t)
				if ok {
					next = append(next, nb)
				}
			}
		}
		sols = next
		if len(sols) == 0 {
			return nil, nil
		}
	}
	return sols, nil
}

func boundScore(tp TriplePattern, sols []Binding) int {
	var sample Binding
	if len(sols) > 0 {
		sample = sols[0]
	}
	score := 0
	for _, n := range []Node{tp.S, tp.P, tp.O} {
		if !n.IsVar() {
			score += 2
		} else if _, ok := sample[n.Var]; ok {
			score += 2
		}
	}
	return score
}

func resolveNode(n Node, b Binding) rdf.Term {
	if !n.IsVar() {
		return n.Term
	}
	return b[n.Var]
}

func extend(b Binding, tp TriplePattern, t rdf.Triple) (Binding, bool) {
	nb := b.clone()
	assign := func(n Node, v rdf.Term) bool {
		if !n.IsVar() {
			return true
		}
		if cur, ok := nb[n.Var]; ok {
			return rdf.Equal(cur, v)
		}
		nb[n.Var] = v
		return true
	}
	if !assign(tp.S, t.Subject) || !assign(tp.P, t.Predicate) || !assign(tp.O, t.Object) {
		return nil, false
	}
	return nb, true
}

// construct instantiates a template once per solution, minting fresh blank
// nodes for each instantiation and skipping triples with unbound positions.
func construct(tmpl []TriplePattern, rows []row) []rdf.Triple {
	var out []rdf.Triple
	seen := make(map[string]bool)
	for i, r := range rows {
		for _, t := range instantiate(tmpl, r.b, fmt.Sprintf("c%d", i)) {
			if k := t.Key(); !seen[k] {
				seen[k] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func instantiate(tmpl []TriplePattern, b Binding, scope string) []rdf.Triple {
	var out []rdf.Triple
	resolve := func(n Node) rdf.Term {
		if n.IsVar() {
			return b[n.Var]
		}
		if bn, ok := n.Term.(rdf.BlankNode); ok {
			return rdf.BlankNode(scope + "_" + string(bn))
		}
		return n.Term
	}
	for _, tp := range tmpl {
		s, p, o := resolve(tp.S), resolve(tp.P), resolve(tp.O)
		if s == nil || p == nil || o == nil {
			continue
		}
		pred, ok := p.(rdf.IRI)
		if !ok {
			continue
		}
		t := rdf.Triple{Subject: s, Predicate: pred, Object: o}
		if t.Validate() != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}
