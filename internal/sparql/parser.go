package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"kgquery/internal/rdf"
)

var builtinArity = map[string][2]int{
	"BOUND":       {1, 1},
	"STR":         {1, 1},
	"LANG":        {1, 1},
	"DATATYPE":    {1, 1},
	"REGEX":       {2, 3},
	"CONTAINS":    {2, 2},
	"STRSTARTS":   {2, 2},
	"STRENDS":     {2, 2},
	"LCASE":       {1, 1},
	"UCASE":       {1, 1},
	"STRLEN":      {1, 1},
	"ISIRI":       {1, 1},
	"ISURI":       {1, 1},
	"ISLITERAL":   {1, 1},
	"ISBLANK":     {1, 1},
	"ISNUMERIC":   {1, 1},
	"IF":          {3, 3},
	"COALESCE":    {1, -1},
	"SAMETERM":    {2, 2},
	"LANGMATCHES": {2, 2},
	"ABS":         {1, 1},
	"ROUND":       {1, 1},
	"CEIL":        {1, 1},
	"FLOOR":       {1, 1},
	"CONCAT":      {0, -1},
	"SUBSTR":      {2, 3},
	"REPLACE":     {3, 4},
}

var aggregateNames = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
	"SAMPLE": true, "GROUP_CONCAT": true,
}

type parser struct {
	toks       []token
	i          int
	ns         *rdf.Namespaces
	base       string
	inTemplate bool
}

func newParser(text string, ns *rdf.Namespaces) (*parser, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		ns = rdf.DefaultNamespaces()
	}
	return &parser{toks: toks, ns: ns.Clone()}, nil
}

// ParseQuery parses a SELECT, ASK or CONSTRUCT query. Prefixes not declared
// in the query are resolved against ns.
func ParseQuery(text string, ns *rdf.Namespaces) (*Query, error) {
	p, err := newParser(text, ns)
	if err != nil {
		return nil, err
	}
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	var q *Query
	t := p.peek()
	switch {
	case t.isWord("SELECT"):
		q, err = p.parseSelect()
	case t.isWord("ASK"):
		q, err = p.parseAsk()
	case t.isWord("CONSTRUCT"):
		q, err = p.parseConstruct()
	case t.isWord("DESCRIBE"):
		return nil, p.errorf(t, "DESCRIBE queries are not supported")
	default:
		return nil, p.errorf(t, "expected SELECT, ASK or CONSTRUCT, found %s", t)
	}
	if err != nil {
		return nil, err
	}
	if err := p.parseModifiers(q); err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s after query", t)
	}
	return q, nil
}

// ParseUpdate parses a sequence of update operations separated by ';'
func ParseUpdate(text string, ns *rdf.Namespaces) ([]UpdateOp, error) {
	p, err := newParser(text, ns)
	if err != nil {
		return nil, err
	}

	var ops []UpdateOp
	for {
		if err := p.parsePrologue(); err != nil {
			return nil, err
		}
		if p.peek().kind == tokEOF {
			break
		}
		op, err := p.parseUpdateOp()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)

		if p.peek().isPunct(";") {
			p.advance()
			continue
		}
		if t := p.peek(); t.kind != tokEOF {
			return nil, p.errorf(t, "unexpected %s after update operation", t)
		}
		break
	}
	if len(ops) == 0 {
		return nil, &SyntaxError{Pos: 0, Msg: "empty update"}
	}
	return ops, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n < len(p.toks) {
		return p.toks[p.i+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(s string) error {
	t := p.advance()
	if !t.isPunct(s) {
		return p.errorf(t, "expected %q, found %s", s, t)
	}
	return nil
}

func (p *parser) expectWord(w string) error {
	t := p.advance()
	if !t.isWord(w) {
		return p.errorf(t, "expected %s, found %s", w, t)
	}
	return nil
}

func (p *parser) expectVar() (string, error) {
	t := p.advance()
	if t.kind != tokVar {
		return "", p.errorf(t, "expected variable, found %s", t)
	}
	return t.text, nil
}

func (p *parser) parsePrologue() error {
	for {
		t := p.peek()
		switch {
		case t.isWord("PREFIX"):
			p.advance()
			name := p.advance()
			if name.kind != tokPName || !strings.HasSuffix(name.text, ":") {
				return p.errorf(name, "expected prefix name, found %s", name)
			}
			iri := p.advance()
			if iri.kind != tokIRI {
				return p.errorf(iri, "expected IRI, found %s", iri)
			}
			p.ns.Bind(strings.TrimSuffix(name.text, ":"), p.resolve(iri.text))
		case t.isWord("BASE"):
			p.advance()
			iri := p.advance()
			if iri.kind != tokIRI {
				return p.errorf(iri, "expected IRI, found %s", iri)
			}
			p.base = iri.text
		default:
			return nil
		}
	}
}

func (p *parser) resolve(iri string) string {
	if p.base != "" && !strings.Contains(iri, ":") {
		return p.base + iri
	}
	return iri
}

func (p *parser) expandPName(t token) (rdf.IRI, error) {
	idx := strings.Index(t.text, ":")
	prefix, local := t.text[:idx], t.text[idx+1:]
	ns, ok := p.ns.Lookup(prefix)
	if !ok {
		return "", p.errorf(t, "unknown prefix %q", prefix)
	}
	return rdf.IRI(ns + local), nil
}

func (p *parser) parseSelect() (*Query, error) {
	p.advance()
	q := &Query{Form: FormSelect, Limit: -1}
	if t := p.peek(); t.isWord("DISTINCT") || t.isWord("REDUCED") {
		p.advance()
		q.Distinct = t.isWord("DISTINCT")
	}

	for {
		t := p.peek()
		if t.kind == tokVar {
			p.advance()
			q.Projection = append(q.Projection, Projection{Var: t.text})
			continue
		}
		if t.isPunct("(") {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectWord("AS"); err != nil {
				return nil, err
			}
			v, err := p.expectVar()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			q.Projection = append(q.Projection, Projection{Var: v, Expr: e})
			continue
		}
		if t.isPunct("*") && !q.Star && len(q.Projection) == 0 {
			p.advance()
			q.Star = true
			continue
		}
		break
	}
	if !q.Star && len(q.Projection) == 0 {
		return nil, p.errorf(p.peek(), "expected projection, found %s", p.peek())
	}

	where, err := p.parseWhere()
	if err != nil {
		return nil, err
	}
	q.Where = where
	return q, nil
}

func (p *parser) parseAsk() (*Query, error) {
	p.advance()
	where, err := p.parseWhere()
	if err != nil {
		return nil, err
	}
	return &Query{Form: FormAsk, Where: where, Limit: -1}, nil
}

func (p *parser) parseConstruct() (*Query, error) {
	p.advance()
	q := &Query{Form: FormConstruct, Limit: -1}

	if p.peek().isWord("WHERE") {
		// CONSTRUCT WHERE { bgp } uses the pattern as its own template
		p.advance()
		tmpl, err := p.parseTemplate(false)
		if err != nil {
			return nil, err
		}
		q.Template = tmpl
		q.Where = &Group{Elements: []Pattern{&BGP{Triples: tmpl}}}
		return q, nil
	}

	tmpl, err := p.parseTemplate(true)
	if err != nil {
		return nil, err
	}
	q.Template = tmpl
	where, err := p.parseWhere()
	if err != nil {
		return nil, err
	}
	q.Where = where
	return q, nil
}

func (p *parser) parseWhere() (*Group, error) {
	for p.peek().isWord("FROM") {
		p.advance()
		if p.peek().isWord("NAMED") {
			p.advance()
		}
		if _, err := p.parseIRI(); err != nil {
			return nil, err
		}
	}
	if p.peek().isWord("WHERE") {
		p.advance()
	}
	return p.parseGroup()
}

func (p *parser) parseIRI() (rdf.IRI, error) {
	t := p.advance()
	switch t.kind {
	case tokIRI:
		return rdf.IRI(p.resolve(t.text)), nil
	case tokPName:
		return p.expandPName(t)
	}
	return "", p.errorf(t, "expected IRI, found %s", t)
}

func (p *parser) parseModifiers(q *Query) error {
	if p.peek().isWord("GROUP") {
		p.advance()
		if err := p.expectWord("BY"); err != nil {
			return err
		}
		for {
			t := p.peek()
			if t.kind == tokVar {
				p.advance()
				q.GroupBy = append(q.GroupBy, Projection{Var: t.text, Expr: &VarExpr{Name: t.text}})
				continue
			}
			if t.isPunct("(") {
				p.advance()
				e, err := p.parseExpr()
				if err != nil {
					return err
				}
				proj := Projection{Expr: e}
				if p.peek().isWord("AS") {
					p.advance()
					if proj.Var, err = p.expectVar(); err != nil {
						return err
					}
				}
				if err := p.expectPunct(")"); err != nil {
					return err
				}
				q.GroupBy = append(q.GroupBy, proj)
				continue
			}
			if p.isCallStart() {
				e, err := p.parsePrimary()
				if err != nil {
					return err
				}
				q.GroupBy = append(q.GroupBy, Projection{Expr: e})
				continue
			}
			break
		}
		if len(q.GroupBy) == 0 {
			return p.errorf(p.peek(), "expected GROUP BY condition")
		}
	}

	if p.peek().isWord("HAVING") {
		p.advance()
		for p.peek().isPunct("(") || p.isCallStart() {
			e, err := p.parsePrimary()
			if err != nil {
				return err
			}
			q.Having = append(q.Having, e)
		}
		if len(q.Having) == 0 {
			return p.errorf(p.peek(), "expected HAVING condition")
		}
	}

	if p.peek().isWord("ORDER") {
		p.advance()
		if err := p.expectWord("BY"); err != nil {
			return err
		}
		for {
			t := p.peek()
			if t.isWord("ASC") || t.isWord("DESC") {
				p.advance()
				if !p.peek().isPunct("(") {
					return p.errorf(p.peek(), "expected '(' after %s", strings.ToUpper(t.text))
				}
				e, err := p.parsePrimary()
				if err != nil {
					return err
				}
				q.OrderBy = append(q.OrderBy, OrderCondition{Expr: e, Descending: t.isWord("DESC")})
				continue
			}
			if t.kind == tokVar {
				p.advance()
				q.OrderBy = append(q.OrderBy, OrderCondition{Expr: &VarExpr{Name: t.text}})
				continue
			}
			if t.isPunct("(") || p.isCallStart() {
				e, err := p.parsePrimary()
				if err != nil {
					return err
				}
				q.OrderBy = append(q.OrderBy, OrderCondition{Expr: e})
				continue
			}
			break
		}
		if len(q.OrderBy) == 0 {
			return p.errorf(p.peek(), "expected ORDER BY condition")
		}
	}

	for i := 0; i < 2; i++ {
		t := p.peek()
		if !t.isWord("LIMIT") && !t.isWord("OFFSET") {
			break
		}
		p.advance()
		n := p.advance()
		if n.kind != tokInteger {
			return p.errorf(n, "expected integer after %s", strings.ToUpper(t.text))
		}
		v, err := strconv.Atoi(n.text)
		if err != nil {
			return p.errorf(n, "invalid %s value %s", strings.ToUpper(t.text), n.text)
		}
		if t.isWord("LIMIT") {
			q.Limit = v
		} else {
			q.Offset = v
		}
	}
	return nil
}

// isCallStart reports whether the next tokens begin a function call
func (p *parser) isCallStart() bool {
	t := p.peek()
	if t.kind != tokWord {
		return false
	}
	name := strings.ToUpper(t.text)
	_, builtin := builtinArity[name]
	return (builtin || aggregateNames[name]) && p.peekAt(1).isPunct("(")
}

func (p *parser) parseGroup() (*Group, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	if t := p.peek(); t.isWord("SELECT") {
		return nil, p.errorf(t, "subqueries are not supported")
	}

	g := &Group{}
	var bgp *BGP
	flush := func() {
		if bgp != nil {
			g.Elements = append(g.Elements, bgp)
			bgp = nil
		}
	}

	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return nil, p.errorf(t, "unterminated group pattern")
		case t.isPunct("}"):
			p.advance()
			flush()
			return g, nil
		case t.isPunct("."):
			p.advance()
		case t.isWord("OPTIONAL"):
			p.advance()
			flush()
			sub, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			g.Elements = append(g.Elements, &Optional{Group: sub})
		case t.isWord("MINUS"):
			p.advance()
			flush()
			sub, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			g.Elements = append(g.Elements, &Minus{Group: sub})
		case t.isWord("FILTER"):
			p.advance()
			flush()
			e, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			g.Elements = append(g.Elements, &Filter{Expr: e})
		case t.isWord("BIND"):
			p.advance()
			flush()
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectWord("AS"); err != nil {
				return nil, err
			}
			v, err := p.expectVar()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			g.Elements = append(g.Elements, &Bind{Expr: e, Var: v})
		case t.isWord("GRAPH") || t.isWord("SERVICE") || t.isWord("VALUES"):
			return nil, p.errorf(t, "%s is not supported", strings.ToUpper(t.text))
		case t.isPunct("{"):
			flush()
			sub, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			alts := []*Group{sub}
			for p.peek().isWord("UNION") {
				p.advance()
				next, err := p.parseGroup()
				if err != nil {
					return nil, err
				}
				alts = append(alts, next)
			}
			if len(alts) > 1 {
				g.Elements = append(g.Elements, &Union{Alternatives: alts})
			} else {
				g.Elements = append(g.Elements, sub)
			}
		default:
			triples, err := p.parseTriplesSameSubject()
			if err != nil {
				return nil, err
			}
			if bgp == nil {
				bgp = &BGP{}
			}
			bgp.Triples = append(bgp.Triples, triples...)
		}
	}
}

// parseTemplate parses { triples } for CONSTRUCT, INSERT and DELETE. When
// keepBlanks is set blank nodes stay terms so each solution gets fresh ones.
func (p *parser) parseTemplate(keepBlanks bool) ([]TriplePattern, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	prev := p.inTemplate
	p.inTemplate = keepBlanks
	defer func() { p.inTemplate = prev }()

	var out []TriplePattern
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return nil, p.errorf(t, "unterminated template")
		case t.isPunct("}"):
			p.advance()
			return out, nil
		case t.isPunct("."):
			p.advance()
		case t.isWord("GRAPH"):
			return nil, p.errorf(t, "named graphs are not supported")
		default:
			triples, err := p.parseTriplesSameSubject()
			if err != nil {
				return nil, err
			}
			out = append(out, triples...)
		}
	}
}

func (p *parser) parseTriplesSameSubject() ([]TriplePattern, error) {
	subj, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if subj.Term != nil && subj.Term.Kind() == rdf.KindLiteral {
		return nil, p.errorf(p.toks[p.i-1], "literal cannot be a subject")
	}

	var out []TriplePattern
	for {
		verb, err := p.parseVerb()
		if err != nil {
			return nil, err
		}
		for {
			obj, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			out = append(out, TriplePattern{S: subj, P: verb, O: obj})
			if !p.peek().isPunct(",") {
				break
			}
			p.advance()
		}
		if !p.peek().isPunct(";") {
			return out, nil
		}
		for p.peek().isPunct(";") {
			p.advance()
		}
		if t := p.peek(); t.isPunct(".") || t.isPunct("}") || t.kind == tokEOF {
			return out, nil
		}
	}
}

func (p *parser) parseVerb() (Node, error) {
	t := p.peek()
	if t.kind == tokWord && t.text == "a" {
		p.advance()
		return Node{Term: rdf.RDFType}, nil
	}
	if t.kind == tokVar {
		p.advance()
		return Node{Var: t.text}, nil
	}
	iri, err := p.parseIRI()
	if err != nil {
		return Node{}, err
	}
	return Node{Term: iri}, nil
}

func (p *parser) parseNode() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokVar:
		p.advance()
		return Node{Var: t.text}, nil
	case tokIRI, tokPName:
		iri, err := p.parseIRI()
		if err != nil {
			return Node{}, err
		}
		return Node{Term: iri}, nil
	case tokBlank:
		p.advance()
		if p.inTemplate {
			return Node{Term: rdf.BlankNode(t.text)}, nil
		}
		return Node{Var: "_:" + t.text}, nil
	}
	if t.isPunct("[") {
		return Node{}, p.errorf(t, "blank node property lists are not supported")
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return Node{}, err
	}
	return Node{Term: lit}, nil
}

func (p *parser) parseLiteral() (rdf.Literal, error) {
	t := p.advance()
	switch t.kind {
	case tokString:
		next := p.peek()
		if next.kind == tokLangTag {
			p.advance()
			return rdf.NewLangString(t.text, next.text), nil
		}
		if next.isPunct("^^") {
			p.advance()
			dt, err := p.parseIRI()
			if err != nil {
				return rdf.Literal{}, err
			}
			if dt == rdf.XSDString {
				return rdf.NewString(t.text), nil
			}
			return rdf.Literal{Lexical: t.text, Datatype: dt}, nil
		}
		return rdf.NewString(t.text), nil
	case tokInteger:
		return rdf.Literal{Lexical: t.text, Datatype: rdf.XSDInteger}, nil
	case tokDecimal:
		return rdf.Literal{Lexical: t.text, Datatype: rdf.XSDDecimal}, nil
	case tokDouble:
		return rdf.Literal{Lexical: t.text, Datatype: rdf.XSDDouble}, nil
	case tokWord:
		if t.isWord("true") || t.isWord("false") {
			return rdf.NewBoolean(t.isWord("true")), nil
		}
	case tokPunct:
		if (t.text == "-" || t.text == "+") && isNumberToken(p.peek()) {
			n, err := p.parseLiteral()
			if err != nil {
				return rdf.Literal{}, err
			}
			if t.text == "-" {
				n.Lexical = "-" + n.Lexical
			}
			return n, nil
		}
	}
	return rdf.Literal{}, p.errorf(t, "expected term, found %s", t)
}

func isNumberToken(t token) bool {
	return t.kind == tokInteger || t.kind == tokDecimal || t.kind == tokDouble
}

func (p *parser) parseUpdateOp() (UpdateOp, error) {
	t := p.peek()
	switch {
	case t.isWord("INSERT"):
		p.advance()
		if p.peek().isWord("DATA") {
			p.advance()
			tmpl, err := p.parseDataBlock()
			if err != nil {
				return nil, err
			}
			return &InsertData{Triples: tmpl}, nil
		}
		return p.parseModify("", nil)

	case t.isWord("DELETE"):
		p.advance()
		if p.peek().isWord("DATA") {
			p.advance()
			tmpl, err := p.parseDataBlock()
			if err != nil {
				return nil, err
			}
			if err := p.noBlanks(tmpl); err != nil {
				return nil, err
			}
			return &DeleteData{Triples: tmpl}, nil
		}
		if p.peek().isWord("WHERE") {
			p.advance()
			tmpl, err := p.parseTemplate(false)
			if err != nil {
				return nil, err
			}
			return &DeleteWhere{Patterns: tmpl}, nil
		}
		del, err := p.parseTemplate(false)
		if err != nil {
			return nil, err
		}
		if err := p.noBlanks(del); err != nil {
			return nil, err
		}
		if !p.peek().isWord("INSERT") {
			return p.finishModify(&Modify{Delete: del})
		}
		p.advance()
		return p.parseModify("", del)

	case t.isWord("WITH"):
		p.advance()
		g, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		next := p.peek()
		if next.isWord("DELETE") {
			p.advance()
			del, err := p.parseTemplate(false)
			if err != nil {
				return nil, err
			}
			if err := p.noBlanks(del); err != nil {
				return nil, err
			}
			if !p.peek().isWord("INSERT") {
				return p.finishModify(&Modify{With: g, Delete: del})
			}
			p.advance()
			return p.parseModify(g, del)
		}
		if next.isWord("INSERT") {
			p.advance()
			return p.parseModify(g, nil)
		}
		return nil, p.errorf(next, "expected DELETE or INSERT after WITH, found %s", next)

	case t.isWord("CLEAR"):
		p.advance()
		if p.peek().isWord("SILENT") {
			p.advance()
		}
		target := p.advance()
		if !target.isWord("DEFAULT") && !target.isWord("ALL") {
			return nil, p.errorf(target, "only CLEAR DEFAULT and CLEAR ALL are supported")
		}
		return &Clear{}, nil
	}
	return nil, p.errorf(t, "expected INSERT, DELETE, WITH or CLEAR, found %s", t)
}

// parseModify parses the INSERT template and WHERE clause of a modify operation
func (p *parser) parseModify(with rdf.IRI, del []TriplePattern) (UpdateOp, error) {
	ins, err := p.parseTemplate(true)
	if err != nil {
		return nil, err
	}
	return p.finishModify(&Modify{With: with, Delete: del, Insert: ins})
}

func (p *parser) finishModify(m *Modify) (UpdateOp, error) {
	for p.peek().isWord("USING") {
		p.advance()
		if p.peek().isWord("NAMED") {
			p.advance()
		}
		if _, err := p.parseIRI(); err != nil {
			return nil, err
		}
	}
	if err := p.expectWord("WHERE"); err != nil {
		return nil, err
	}
	where, err := p.parseGroup()
	if err != nil {
		return nil, err
	}
	m.Where = where
	return m, nil
}

func (p *parser) parseDataBlock() ([]TriplePattern, error) {
	start := p.peek()
	tmpl, err := p.parseTemplate(true)
	if err != nil {
		return nil, err
	}
	for _, tp := range tmpl {
		if tp.S.IsVar() || tp.P.IsVar() || tp.O.IsVar() {
			return nil, p.errorf(start, "variables are not allowed in DATA blocks")
		}
	}
	return tmpl, nil
}

func (p *parser) noBlanks(tmpl []TriplePattern) error {
	for _, tp := range tmpl {
		for _, n := range []Node{tp.S, tp.O} {
			if n.Term != nil && n.Term.Kind() == rdf.KindBlank || strings.HasPrefix(n.Var, "_:") {
				return &SyntaxError{Msg: "blank nodes are not allowed in DELETE templates"}
			}
		}
	}
	return nil
}

// Expressions

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().isPunct("||") {
		p.advance()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: "||", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.peek().isPunct("&&") {
		p.advance()
		r, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: "&&", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseRelational() (Expr, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokPunct {
		switch t.text {
		case "=", "!=", "<", ">", "<=", ">=":
			p.advance()
			r, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &BinaryExpr{Op: t.text, L: l, R: r}, nil
		}
	}
	not := false
	if t.isWord("NOT") && p.peekAt(1).isWord("IN") {
		p.advance()
		not = true
	}
	if p.peek().isWord("IN") {
		p.advance()
		list, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &InExpr{X: l, List: list, Not: not}, nil
	}
	return l, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.isPunct("+") && !t.isPunct("-") {
			return l, nil
		}
		p.advance()
		r, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: t.text, L: l, R: r}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.isPunct("*") && !t.isPunct("/") {
			return l, nil
		}
		p.advance()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: t.text, L: l, R: r}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	t := p.peek()
	if t.isPunct("!") || t.isPunct("-") || t.isPunct("+") {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: t.text, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokPunct:
		if t.isPunct("(") {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	case tokVar:
		p.advance()
		return &VarExpr{Name: t.text}, nil
	case tokString, tokInteger, tokDecimal, tokDouble:
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &TermExpr{Term: lit}, nil
	case tokIRI, tokPName:
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		if p.peek().isPunct("(") {
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return &CallExpr{Name: string(iri), Args: args}, nil
		}
		return &TermExpr{Term: iri}, nil
	case tokWord:
		return p.parseWordExpr()
	}
	return nil, p.errorf(t, "expected expression, found %s", t)
}

func (p *parser) parseWordExpr() (Expr, error) {
	t := p.advance()
	name := strings.ToUpper(t.text)
	switch name {
	case "TRUE", "FALSE":
		return &TermExpr{Term: rdf.NewBoolean(name == "TRUE")}, nil
	case "NOT":
		if err := p.expectWord("EXISTS"); err != nil {
			return nil, err
		}
		g, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &ExistsExpr{Group: g, Not: true}, nil
	case "EXISTS":
		g, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &ExistsExpr{Group: g}, nil
	}

	if aggregateNames[name] {
		return p.parseAggregate(t, name)
	}

	arity, ok := builtinArity[name]
	if !ok {
		return nil, p.errorf(t, "unknown function %s", t.text)
	}
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	if len(args) < arity[0] || (arity[1] >= 0 && len(args) > arity[1]) {
		return nil, p.errorf(t, "wrong number of arguments to %s", name)
	}
	if name == "BOUND" {
		if _, ok := args[0].(*VarExpr); !ok {
			return nil, p.errorf(t, "BOUND requires a variable")
		}
	}
	return &CallExpr{Name: name, Args: args}, nil
}

func (p *parser) parseAggregate(t token, name string) (Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	agg := &AggregateExpr{Name: name, Separator: " "}
	if p.peek().isWord("DISTINCT") {
		p.advance()
		agg.Distinct = true
	}
	if p.peek().isPunct("*") {
		if name != "COUNT" {
			return nil, p.errorf(t, "only COUNT accepts *")
		}
		p.advance()
	} else {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		agg.Arg = arg
	}
	if name == "GROUP_CONCAT" && p.peek().isPunct(";") {
		p.advance()
		if err := p.expectWord("SEPARATOR"); err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		sep := p.advance()
		if sep.kind != tokString {
			return nil, p.errorf(sep, "expected separator string")
		}
		agg.Separator = sep.text
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return agg, nil
}

func (p *parser) parseArgList() ([]Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []Expr
	if p.peek().isPunct(")") {
		p.advance()
		return args, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		t := p.advance()
		if t.isPunct(")") {
			return args, nil
		}
		if !t.isPunct(",") {
			return nil, p.errorf(t, "expected ',' or ')', found %s", t)
		}
	}
}
