package sparql

import (
	"context"
	"fmt"

	"kgquery/internal/rdf"
)

// Update parses and applies an update request to st. Operations run in
// order; a failing operation stops the request but earlier ones stay applied.
func Update(ctx context.Context, st MutableStore, text string) error {
	ops, err := ParseUpdate(text, st.Namespaces())
	if err != nil {
		return err
	}
	return Apply(ctx, st, ops)
}

// Apply runs parsed update operations against st
func Apply(ctx context.Context, st MutableStore, ops []UpdateOp) error {
	ev := &evaluator{ctx: ctx, st: st}
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ev.apply(st, op, i); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) apply(st MutableStore, op UpdateOp, seq int) error {
	switch x := op.(type) {
	case *InsertData:
		st.Add(instantiate(x.Triples, Binding{}, fmt.Sprintf("u%d", seq))...)
		return nil

	case *DeleteData:
		st.Remove(instantiate(x.Triples, Binding{}, "")...)
		return nil

	case *DeleteWhere:
		where := &Group{Elements: []Pattern{&BGP{Triples: x.Patterns}}}
		sols, err := ev.evalGroup(where, Binding{})
		if err != nil {
			return err
		}
		var del []rdf.Triple
		for _, s := range sols {
			del = append(del, instantiate(x.Patterns, s, "")...)
		}
		st.Remove(del...)
		return nil

	case *Modify:
		sols, err := ev.evalGroup(x.Where, Binding{})
		if err != nil {
			return err
		}
		var del, ins []rdf.Triple
		for i, s := range sols {
			del = append(del, instantiate(x.Delete, s, "")...)
			ins = append(ins, instantiate(x.Insert, s, fmt.Sprintf("u%d_%d", seq, i))...)
		}
		st.Remove(del...)
		st.Add(ins...)
		return nil

	case *Clear:
		st.Clear()
		return nil
	}
	return fmt.Errorf("unsupported update operation %T", op)
}
