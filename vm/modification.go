package vm

import "sync/atomic"

// NumberMathModification tracks which number operators user code has
// redefined. While an operator is unmodified for a receiver kind, the
// runtime may compute it inline instead of dispatching through a call site.
type NumberMathModification struct {
	flags [numOps][numKinds]atomic.Bool
}

// check marks the flags touched by registering cand on class. Registering on
// Number or Object affects every numeric kind.
func (m *NumberMathModification) check(class *Class, cand *Candidate) {
	op, ok := OpByName(cand.Name)
	if !ok {
		return
	}
	switch {
	case class == NumberClass || class == ObjectClass:
		for k := 0; k < numKinds; k++ {
			m.flags[op][k].Store(true)
		}
	case class.Loader == BootLoader && class.Kind.IsNumeric():
		m.flags[op][class.Kind].Store(true)
	}
}

// Modified reports whether op has a user definition for receivers of kind k.
func (m *NumberMathModification) Modified(op Op, k Kind) bool {
	if !k.IsNumeric() || int(op) >= numOps {
		return true
	}
	return m.flags[op][k].Load()
}

// Any reports whether any operator has been modified for any kind.
func (m *NumberMathModification) Any() bool {
	for op := range m.flags {
		for k := range m.flags[op] {
			if m.flags[op][k].Load() {
				return true
			}
		}
	}
	return false
}

func (m *NumberMathModification) reset() {
	for op := range m.flags {
		for k := range m.flags[op] {
			m.flags[op][k].Store(false)
		}
	}
}
