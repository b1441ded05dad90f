package vm

import (
	"reflect"
	"unicode/utf8"
)

// registerBuiltins installs the candidates every fresh registry starts with.
func registerBuiltins(r *Registry) {
	b := builtinRegistrar{r}

	// Generic number operators over the coercion engine.
	for _, op := range Ops() {
		op := op
		b.add(NumberClass, op.String(), []*Class{NumberClass}, Generic, func(recv Value, args []Value) (Value, error) {
			return Combine(op, recv, args[0])
		})
	}

	// Same-kind specializations skip the promotion lookup.
	for _, class := range []*Class{IntegerClass, LongClass, FloatClass, DoubleClass} {
		for _, op := range Ops() {
			fn, kind, name := binaryFor(op, class.Kind, class.Kind), class.Kind, op.String()
			b.add(class, name, []*Class{class}, Specialized, func(recv Value, args []Value) (Value, error) {
				if Classify(recv) != kind || Classify(args[0]) != kind {
					return nil, noApplicable(name, ClassOf(recv), classesOf(args))
				}
				return fn(recv, args[0])
			})
		}
	}

	b.add(ObjectClass, "equals", []*Class{ObjectClass}, Generic, func(recv Value, args []Value) (Value, error) {
		return valuesEqual(recv, args[0]), nil
	})
	b.add(ObjectClass, "toString", nil, Generic, func(recv Value, _ []Value) (Value, error) {
		return FormatValue(recv), nil
	})
	b.add(ObjectClass, "is", []*Class{ObjectClass}, Generic, func(recv Value, args []Value) (Value, error) {
		return identical(recv, args[0]), nil
	})

	b.add(NullObjectClass, "equals", []*Class{ObjectClass}, Generic, func(_ Value, args []Value) (Value, error) {
		return Classify(args[0]) == KindNull, nil
	})
	b.add(NullObjectClass, "toString", nil, Generic, func(Value, []Value) (Value, error) {
		return "null", nil
	})
	b.add(NullObjectClass, "is", []*Class{ObjectClass}, Generic, func(_ Value, args []Value) (Value, error) {
		return Classify(args[0]) == KindNull, nil
	})

	b.add(StringClass, "plus", []*Class{ObjectClass}, Generic, func(recv Value, args []Value) (Value, error) {
		s, ok := recv.(string)
		if !ok {
			return nil, noApplicable("plus", ClassOf(recv), classesOf(args))
		}
		return s + FormatValue(args[0]), nil
	})
	b.add(StringClass, "length", nil, Generic, func(recv Value, _ []Value) (Value, error) {
		s, ok := recv.(string)
		if !ok {
			return nil, noApplicable("length", ClassOf(recv), nil)
		}
		return int32(utf8.RuneCountInString(s)), nil
	})
}

type builtinRegistrar struct {
	r *Registry
}

func (b builtinRegistrar) add(class *Class, name string, params []*Class, rank Rank, fn Invoker) {
	c := NewCandidate(name, class, params, rank, fn)
	c.builtin = true
	b.r.Register(class, name, c)
}

// valuesEqual compares numbers of the same kind by value and everything else
// by identity or host equality.
func valuesEqual(a, b Value) bool {
	ka, kb := Classify(a), Classify(b)
	if ka == KindNull || kb == KindNull {
		return ka == kb
	}
	if ka.IsNumeric() || kb.IsNumeric() {
		if ka != kb {
			return false
		}
		c, err := Combine(OpCompare, a, b)
		return err == nil && c.(int32) == 0
	}
	return identical(a, b)
}

func identical(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
