package sparql

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"kgquery/internal/rdf"
)

// errType is raised for expressions applied to terms of the wrong kind.
// Filters treat it as false; projections and BIND leave the variable unbound.
var errType = errors.New("type error")

func (ev *evaluator) ebv(e Expr, b Binding, group []Binding) (bool, error) {
	v, err := ev.eval(e, b, group)
	if err != nil {
		return false, err
	}
	return effectiveBool(v)
}

// effectiveBool computes the effective boolean value of a term
func effectiveBool(t rdf.Term) (bool, error) {
	lit, ok := t.(rdf.Literal)
	if !ok {
		return false, errType
	}
	switch {
	case lit.Datatype == rdf.XSDBoolean:
		return lit.Lexical == "true" || lit.Lexical == "1", nil
	case lit.IsNumeric():
		f, ok := lit.Float()
		if !ok {
			return false, nil
		}
		return f != 0 && !math.IsNaN(f), nil
	case isStringLiteral(lit):
		return lit.Lexical != "", nil
	}
	return false, errType
}

func isStringLiteral(l rdf.Literal) bool {
	return l.Datatype == "" || l.Datatype == rdf.XSDString || l.Lang != ""
}

func (ev *evaluator) eval(e Expr, b Binding, group []Binding) (rdf.Term, error) {
	switch x := e.(type) {
	case *VarExpr:
		v, ok := b[x.Name]
		if !ok {
			return nil, fmt.Errorf("unbound variable ?%s", x.Name)
		}
		return v, nil

	case *TermExpr:
		return x.Term, nil

	case *AggregateExpr:
		if group == nil {
			return nil, fmt.Errorf("aggregate %s outside of a grouped query", x.Name)
		}
		return ev.aggregate(x, group)

	case *UnaryExpr:
		return ev.evalUnary(x, b, group)

	case *BinaryExpr:
		return ev.evalBinary(x, b, group)

	case *InExpr:
		v, err := ev.eval(x.X, b, group)
		if err != nil {
			return nil, err
		}
		found := false
		for _, item := range x.List {
			iv, err := ev.eval(item, b, group)
			if err != nil {
				continue
			}
			if eq, err := termsEqual(v, iv); err == nil && eq {
				found = true
				break
			}
		}
		return rdf.NewBoolean(found != x.Not), nil

	case *ExistsExpr:
		sols, err := ev.evalGroup(x.Group, b)
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean((len(sols) > 0) != x.Not), nil

	case *CallExpr:
		return ev.evalCall(x, b, group)
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

func (ev *evaluator) evalUnary(x *UnaryExpr, b Binding, group []Binding) (rdf.Term, error) {
	v, err := ev.eval(x.X, b, group)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "!":
		bv, err := effectiveBool(v)
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean(!bv), nil
	case "-":
		return arith("-", rdf.NewInteger(0), v)
	}
	if lit, ok := v.(rdf.Literal); !ok || !lit.IsNumeric() {
		return nil, errType
	}
	return v, nil
}

func (ev *evaluator) evalBinary(x *BinaryExpr, b Binding, group []Binding) (rdf.Term, error) {
	switch x.Op {
	case "||":
		l, lerr := ev.ebv(x.L, b, group)
		if lerr == nil && l {
			return rdf.NewBoolean(true), nil
		}
		r, rerr := ev.ebv(x.R, b, group)
		if rerr == nil && r {
			return rdf.NewBoolean(true), nil
		}
		if lerr != nil {
			return nil, lerr
		}
		if rerr != nil {
			return nil, rerr
		}
		return rdf.NewBoolean(false), nil
	case "&&":
		l, lerr := ev.ebv(x.L, b, group)
		if lerr == nil && !l {
			return rdf.NewBoolean(false), nil
		}
		r, rerr := ev.ebv(x.R, b, group)
		if rerr == nil && !r {
			return rdf.NewBoolean(false), nil
		}
		if lerr != nil {
			return nil, lerr
		}
		if rerr != nil {
			return nil, rerr
		}
		return rdf.NewBoolean(true), nil
	}

	l, err := ev.eval(x.L, b, group)
	if err != nil {
		return nil, err
	}
	r, err := ev.eval(x.R, b, group)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case "=", "!=":
		eq, err := termsEqual(l, r)
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean(eq == (x.Op == "=")), nil
	case "<", ">", "<=", ">=":
		cmp, err := compareValues(l, r)
		if err != nil {
			return nil, err
		}
		var res bool
		switch x.Op {
		case "<":
			res = cmp < 0
		case ">":
			res = cmp > 0
		case "<=":
			res = cmp <= 0
		case ">=":
			res = cmp >= 0
		}
		return rdf.NewBoolean(res), nil
	}
	return arith(x.Op, l, r)
}

// numeric type promotion: integer < decimal < double
func numericRank(dt rdf.IRI) int {
	switch dt {
	case rdf.XSDDouble, rdf.XSDFloat:
		return 2
	case rdf.XSDDecimal:
		return 1
	}
	return 0
}

func arith(op string, l, r rdf.Term) (rdf.Term, error) {
	ll, lok := l.(rdf.Literal)
	rl, rok := r.(rdf.Literal)
	if !lok || !rok || !ll.IsNumeric() || !rl.IsNumeric() {
		return nil, errType
	}
	a, _ := ll.Float()
	c, _ := rl.Float()
	rank := max(numericRank(ll.Datatype), numericRank(rl.Datatype))

	var v float64
	switch op {
	case "+":
		v = a + c
	case "-":
		v = a - c
	case "*":
		v = a * c
	case "/":
		if c == 0 && rank < 2 {
			return nil, errors.New("division by zero")
		}
		v = a / c
		if rank == 0 {
			rank = 1
		}
	default:
		return nil, fmt.Errorf("unknown operator %s", op)
	}
	return numericLiteral(v, rank), nil
}

func numericLiteral(v float64, rank int) rdf.Literal {
	switch rank {
	case 0:
		return rdf.NewInteger(int64(v))
	case 1:
		return rdf.NewDecimal(v)
	}
	return rdf.NewDouble(v)
}

// termsEqual implements RDFterm-equal with value comparison for numbers
func termsEqual(l, r rdf.Term) (bool, error) {
	ll, lok := l.(rdf.Literal)
	rl, rok := r.(rdf.Literal)
	if lok && rok {
		if ll.IsNumeric() && rl.IsNumeric() {
			a, _ := ll.Float()
			b, _ := rl.Float()
			return a == b, nil
		}
		if ll.Datatype == rdf.XSDBoolean && rl.Datatype == rdf.XSDBoolean {
			a, _ := effectiveBool(ll)
			b, _ := effectiveBool(rl)
			return a == b, nil
		}
	}
	return rdf.Equal(l, r), nil
}

// compareValues orders numbers, strings and booleans; other combinations
// are a type error
func compareValues(l, r rdf.Term) (int, error) {
	ll, lok := l.(rdf.Literal)
	rl, rok := r.(rdf.Literal)
	if !lok || !rok {
		return 0, errType
	}
	switch {
	case ll.IsNumeric() && rl.IsNumeric():
		a, _ := ll.Float()
		b, _ := rl.Float()
		return cmpFloat(a, b), nil
	case isStringLiteral(ll) && isStringLiteral(rl):
		return strings.Compare(ll.Lexical, rl.Lexical), nil
	case ll.Datatype == rl.Datatype && ll.Datatype != "":
		return strings.Compare(ll.Lexical, rl.Lexical), nil
	}
	return 0, errType
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// orderCompare is the total order used by ORDER BY: unbound, blank nodes,
// IRIs, then literals
func orderCompare(a, b rdf.Term) int {
	rank := func(t rdf.Term) int {
		if t == nil {
			return 0
		}
		switch t.Kind() {
		case rdf.KindBlank:
			return 1
		case rdf.KindIRI:
			return 2
		}
		return 3
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	if a == nil {
		return 0
	}
	if ra == 3 {
		if c, err := compareValues(a, b); err == nil {
			return c
		}
	}
	return strings.Compare(a.String(), b.String())
}

func stringArg(t rdf.Term) (rdf.Literal, error) {
	lit, ok := t.(rdf.Literal)
	if !ok || !isStringLiteral(lit) {
		return rdf.Literal{}, errType
	}
	return lit, nil
}

// withLexical keeps the language tag or datatype of src on a derived string
func withLexical(src rdf.Literal, s string) rdf.Literal {
	return rdf.Literal{Lexical: s, Datatype: src.Datatype, Lang: src.Lang}
}

func (ev *evaluator) evalCall(x *CallExpr, b Binding, group []Binding) (rdf.Term, error) {
	switch x.Name {
	case "BOUND":
		_, ok := b[x.Args[0].(*VarExpr).Name]
		return rdf.NewBoolean(ok), nil
	case "IF":
		cond, err := ev.ebv(x.Args[0], b, group)
		if err != nil {
			return nil, err
		}
		if cond {
			return ev.eval(x.Args[1], b, group)
		}
		return ev.eval(x.Args[2], b, group)
	case "COALESCE":
		for _, a := range x.Args {
			if v, err := ev.eval(a, b, group); err == nil && v != nil {
				return v, nil
			}
		}
		return nil, errors.New("no COALESCE argument is bound")
	}

	args := make([]rdf.Term, len(x.Args))
	for i, a := range x.Args {
		v, err := ev.eval(a, b, group)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch x.Name {
	case "STR":
		if args[0].Kind() == rdf.KindBlank {
			return nil, errType
		}
		return rdf.NewString(args[0].String()), nil
	case "LANG":
		lit, ok := args[0].(rdf.Literal)
		if !ok {
			return nil, errType
		}
		return rdf.NewString(lit.Lang), nil
	case "DATATYPE":
		lit, ok := args[0].(rdf.Literal)
		if !ok {
			return nil, errType
		}
		switch {
		case lit.Lang != "":
			return rdf.RDFLangString, nil
		case lit.Datatype == "":
			return rdf.XSDString, nil
		}
		return lit.Datatype, nil
	case "ISIRI", "ISURI":
		return rdf.NewBoolean(args[0].Kind() == rdf.KindIRI), nil
	case "ISLITERAL":
		return rdf.NewBoolean(args[0].Kind() == rdf.KindLiteral), nil
	case "ISBLANK":
		return rdf.NewBoolean(args[0].Kind() == rdf.KindBlank), nil
	case "ISNUMERIC":
		lit, ok := args[0].(rdf.Literal)
		return rdf.NewBoolean(ok && lit.IsNumeric()), nil
	case "SAMETERM":
		return rdf.NewBoolean(rdf.Equal(args[0], args[1])), nil
	case "LANGMATCHES":
		tag, err := stringArg(args[0])
		if err != nil {
			return nil, err
		}
		rng, err := stringArg(args[1])
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean(langMatches(tag.Lexical, rng.Lexical)), nil
	case "STRLEN":
		s, err := stringArg(args[0])
		if err != nil {
			return nil, err
		}
		return rdf.NewInteger(int64(len([]rune(s.Lexical)))), nil
	case "LCASE", "UCASE":
		s, err := stringArg(args[0])
		if err != nil {
			return nil, err
		}
		if x.Name == "LCASE" {
			return withLexical(s, strings.ToLower(s.Lexical)), nil
		}
		return withLexical(s, strings.ToUpper(s.Lexical)), nil
	case "CONTAINS", "STRSTARTS", "STRENDS":
		a, err := stringArg(args[0])
		if err != nil {
			return nil, err
		}
		c, err := stringArg(args[1])
		if err != nil {
			return nil, err
		}
		switch x.Name {
		case "CONTAINS":
			return rdf.NewBoolean(strings.Contains(a.Lexical, c.Lexical)), nil
		case "STRSTARTS":
			return rdf.NewBoolean(strings.HasPrefix(a.Lexical, c.Lexical)), nil
		}
		return rdf.NewBoolean(strings.HasSuffix(a.Lexical, c.Lexical)), nil
	case "CONCAT":
		var sb strings.Builder
		for _, a := range args {
			s, err := stringArg(a)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s.Lexical)
		}
		return rdf.NewString(sb.String()), nil
	case "SUBSTR":
		return substr(args)
	case "REGEX":
		s, err := stringArg(args[0])
		if err != nil {
			return nil, err
		}
		re, err := compileRegex(args[1:])
		if err != nil {
			return nil, err
		}
		return rdf.NewBoolean(re.MatchString(s.Lexical)), nil
	case "REPLACE":
		s, err := stringArg(args[0])
		if err != nil {
			return nil, err
		}
		flags := args[3:]
		re, err := compileRegex(append([]rdf.Term{args[1]}, flags...))
		if err != nil {
			return nil, err
		}
		repl, err := stringArg(args[2])
		if err != nil {
			return nil, err
		}
		return withLexical(s, re.ReplaceAllString(s.Lexical, repl.Lexical)), nil
	case "ABS", "ROUND", "CEIL", "FLOOR":
		lit, ok := args[0].(rdf.Literal)
		if !ok || !lit.IsNumeric() {
			return nil, errType
		}
		f, _ := lit.Float()
		switch x.Name {
		case "ABS":
			f = math.Abs(f)
		case "ROUND":
			f = math.Floor(f + 0.5)
		case "CEIL":
			f = math.Ceil(f)
		case "FLOOR":
			f = math.Floor(f)
		}
		return numericLiteral(f, numericRank(lit.Datatype)), nil
	}

	return cast(rdf.IRI(x.Name), args)
}

func substr(args []rdf.Term) (rdf.Term, error) {
	s, err := stringArg(args[0])
	if err != nil {
		return nil, err
	}
	startLit, ok := args[1].(rdf.Literal)
	if !ok || !startLit.IsNumeric() {
		return nil, errType
	}
	start, _ := startLit.Float()
	runes := []rune(s.Lexical)
	from := int(math.Round(start)) - 1
	to := len(runes)
	if len(args) == 3 {
		lenLit, ok := args[2].(rdf.Literal)
		if !ok || !lenLit.IsNumeric() {
			return nil, errType
		}
		n, _ := lenLit.Float()
		to = from + int(math.Round(n))
	}
	from = max(from, 0)
	to = min(to, len(runes))
	if from >= to {
		return withLexical(s, ""), nil
	}
	return withLexical(s, string(runes[from:to])), nil
}

func compileRegex(args []rdf.Term) (*regexp.Regexp, error) {
	pat, err := stringArg(args[0])
	if err != nil {
		return nil, err
	}
	prefix := ""
	if len(args) > 1 {
		flags, err := stringArg(args[1])
		if err != nil {
			return nil, err
		}
		for _, f := range flags.Lexical {
			switch f {
			case 'i', 'm', 's':
				prefix += string(f)
			case 'x':
			default:
				return nil, fmt.Errorf("unsupported regex flag %q", f)
			}
		}
	}
	expr := pat.Lexical
	if prefix != "" {
		expr = "(?" + prefix + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return re, nil
}

func langMatches(tag, rng string) bool {
	if rng == "*" {
		return tag != ""
	}
	tag, rng = strings.ToLower(tag), strings.ToLower(rng)
	return tag == rng || strings.HasPrefix(tag, rng+"-")
}

// cast implements the xsd constructor functions
func cast(dt rdf.IRI, args []rdf.Term) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("cast to %s takes one argument", dt)
	}
	src := args[0]
	if src.Kind() == rdf.KindBlank {
		return nil, errType
	}
	lex := strings.TrimSpace(src.String())

	switch dt {
	case rdf.XSDString:
		return rdf.NewString(src.String()), nil
	case rdf.XSDInteger, rdf.XSDInt, rdf.XSDLong:
		if lit, ok := src.(rdf.Literal); ok && lit.IsNumeric() {
			f, _ := lit.Float()
			return rdf.Literal{Lexical: strconv.FormatInt(int64(f), 10), Datatype: dt}, nil
		}
		n, err := strconv.ParseInt(lex, 10, 64)
		if err != nil {
			return nil, errType
		}
		return rdf.Literal{Lexical: strconv.FormatInt(n, 10), Datatype: dt}, nil
	case rdf.XSDDecimal, rdf.XSDDouble, rdf.XSDFloat:
		f, err := strconv.ParseFloat(lex, 64)
		if err != nil {
			return nil, errType
		}
		if dt == rdf.XSDDecimal {
			return rdf.NewDecimal(f), nil
		}
		return rdf.Literal{Lexical: rdf.NewDouble(f).Lexical, Datatype: dt}, nil
	case rdf.XSDBoolean:
		if lit, ok := src.(rdf.Literal); ok && lit.IsNumeric() {
			f, _ := lit.Float()
			return rdf.NewBoolean(f != 0), nil
		}
		switch lex {
		case "true", "1":
			return rdf.NewBoolean(true), nil
		case "false", "0":
			return rdf.NewBoolean(false), nil
		}
		return nil, errType
	case rdf.XSDDateTime:
		return rdf.Literal{Lexical: lex, Datatype: dt}, nil
	}
	return nil, fmt.Errorf("unknown function <%s>", dt)
}
