package sparql

import (
	"fmt"
	"sort"
	"strings"

	"kgquery/internal/rdf"
)

// aggregate evaluates an aggregate over the solutions of one group
func (ev *evaluator) aggregate(a *AggregateExpr, group []Binding) (rdf.Term, error) {
	if a.Arg == nil {
		// COUNT(*)
		if !a.Distinct {
			return rdf.NewInteger(int64(len(group))), nil
		}
		seen := make(map[string]bool)
		for _, s := range group {
			seen[bindingKey(s)] = true
		}
		return rdf.NewInteger(int64(len(seen))), nil
	}

	var values []rdf.Term
	seen := make(map[string]bool)
	for _, s := range group {
		v, err := ev.eval(a.Arg, s, nil)
		if err != nil || v == nil {
			continue
		}
		if a.Distinct {
			if seen[v.Key()] {
				continue
			}
			seen[v.Key()] = true
		}
		values = append(values, v)
	}

	switch a.Name {
	case "COUNT":
		return rdf.NewInteger(int64(len(values))), nil
	case "SUM", "AVG":
		var sum rdf.Term = rdf.NewInteger(0)
		for _, v := range values {
			next, err := arith("+", sum, v)
			if err != nil {
				return nil, err
			}
			sum = next
		}
		if a.Name == "SUM" {
			return sum, nil
		}
		if len(values) == 0 {
			return rdf.NewInteger(0), nil
		}
		return arith("/", sum, rdf.NewInteger(int64(len(values))))
	case "MIN", "MAX":
		if len(values) == 0 {
			return nil, fmt.Errorf("%s over an empty group", a.Name)
		}
		best := values[0]
		for _, v := range values[1:] {
			c := orderCompare(v, best)
			if (a.Name == "MIN" && c < 0) || (a.Name == "MAX" && c > 0) {
				best = v
			}
		}
		return best, nil
	case "SAMPLE":
		if len(values) == 0 {
			return nil, fmt.Errorf("SAMPLE over an empty group")
		}
		return values[0], nil
	case "GROUP_CONCAT":
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = v.String()
		}
		return rdf.NewString(strings.Join(parts, a.Separator)), nil
	}
	return nil, fmt.Errorf("unknown aggregate %s", a.Name)
}

func bindingKey(b Binding) string {
	keys := make([]string, 0, len(b))
	for k, v := range b {
		keys = append(keys, k+"="+v.Key())
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x01")
}
