package vm

import "strings"

// Rank orders candidates of equal applicability.
type Rank uint8

const (
	// Generic candidates accept boxed supertypes such as Number.
	Generic Rank = iota
	// Specialized candidates are written for exact runtime classes and win
	// over generic ones.
	Specialized
)

func (r Rank) String() string {
	if r == Specialized {
		return "specialized"
	}
	return "generic"
}

// Invoker is the entry point of a candidate.
type Invoker func(receiver Value, args []Value) (Value, error)

// Candidate is one resolvable implementation of a method. Candidates are
// immutable once registered; a later registration for the same signature
// supersedes an earlier one only through resolution order, never by
// mutation.
type Candidate struct {
	Name     string
	Receiver *Class
	Params   []*Class
	Rank     Rank
	Fn       Invoker

	seq     uint64 // registration order, assigned by the registry
	builtin bool
}

// NewCandidate builds a candidate. A nil receiver class is filled in with the
// class it is registered on.
func NewCandidate(name string, receiver *Class, params []*Class, rank Rank, fn Invoker) *Candidate {
	return &Candidate{
		Name:     name,
		Receiver: receiver,
		Params:   append([]*Class(nil), params...),
		Rank:     rank,
		Fn:       fn,
	}
}

// Arity is the number of declared parameters, excluding the receiver.
func (c *Candidate) Arity() int {
	return len(c.Params)
}

// Seq is the registration sequence number; lower registered first.
func (c *Candidate) Seq() uint64 {
	return c.seq
}

// Builtin reports whether the candidate was installed by the runtime itself.
func (c *Candidate) Builtin() bool {
	return c.builtin
}

// Invoke runs the candidate.
func (c *Candidate) Invoke(receiver Value, args []Value) (Value, error) {
	return c.Fn(receiver, args)
}

// distance returns the summed lineage distance from the runtime classes to
// the declared ones, or ok=false if the candidate does not apply. Zero means
// every class matched exactly.
func (c *Candidate) distance(receiver *Class, args []*Class) (int, bool) {
	if len(args) != len(c.Params) {
		return 0, false
	}
	total := receiver.Distance(c.Receiver)
	if total < 0 {
		return 0, false
	}
	for i, p := range c.Params {
		a := args[i]
		if a == NullObjectClass && p != NullObjectClass {
			// null is assignable to any parameter, but never exactly.
			total++
			continue
		}
		d := a.Distance(p)
		if d < 0 {
			return 0, false
		}
		total += d
	}
	return total, true
}

func (c *Candidate) sameSignature(o *Candidate) bool {
	if c.Receiver != o.Receiver || len(c.Params) != len(o.Params) {
		return false
	}
	for i := range c.Params {
		if c.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

func (c *Candidate) String() string {
	var b strings.Builder
	if c.Receiver != nil {
		b.WriteString(c.Receiver.Name)
		b.WriteByte('.')
	}
	b.WriteString(c.Name)
	b.WriteByte('(')
	for i, p := range c.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
	}
	b.WriteByte(')')
	return b.String()
}
