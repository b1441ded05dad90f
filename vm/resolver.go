package vm

import "sync/atomic"

// Resolver finds the most specific candidate for a call. It is the slow path
// behind every call site.
type Resolver struct {
	registry      *Registry
	consultations atomic.Uint64
}

// NewResolver creates a resolver over r.
func NewResolver(r *Registry) *Resolver {
	return &Resolver{registry: r}
}

// Registry returns the registry the resolver reads.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Consultations returns how many resolutions have been attempted.
func (r *Resolver) Consultations() uint64 {
	return r.consultations.Load()
}

// Resolve classifies the receiver and arguments and resolves name against
// their exact classes. The returned stamp records the table generations the
// answer depends on.
func (r *Resolver) Resolve(name string, receiver Value, args []Value) (*Candidate, Stamp, error) {
	return r.ResolveClasses(name, ClassOf(receiver), classesOf(args))
}

// ResolveClasses resolves name for already classified operands.
func (r *Resolver) ResolveClasses(name string, receiver *Class, args []*Class) (*Candidate, Stamp, error) {
	r.consultations.Add(1)

	cands, stamp := r.candidates(name, receiver)
	if best := selectCandidate(cands, receiver, args); best != nil {
		return best, stamp, nil
	}
	return nil, stamp, noApplicable(name, receiver, append([]*Class(nil), args...))
}

// candidates gathers every candidate named name across the lineage of
// receiver, nearest class first. The result is cached on the receiver's
// table and reused while none of the lineage tables has changed.
func (r *Resolver) candidates(name string, receiver *Class) ([]*Candidate, Stamp) {
	mt := r.registry.Table(receiver)
	if e, ok := mt.walked.Load(name); ok {
		we := e.(*walkedEntry)
		if we.stamp.Current() {
			return we.candidates, we.stamp
		}
	}

	// Generations are captured before the methods are read.
	stamp := r.registry.stamp(receiver)
	var out []*Candidate
	for _, tg := range stamp {
		out = append(out, tg.table.Lookup(name)...)
	}
	mt.walked.Store(name, &walkedEntry{stamp: stamp, candidates: out})
	return out, stamp
}

// selectCandidate picks the winner among applicable candidates:
//
//  1. a Specialized candidate matching every exact class;
//  2. otherwise the smallest summed lineage distance, Specialized before
//     Generic at equal distance.
//
// A later registration with an identical signature supersedes an earlier
// one. Distinct signatures that are equally specific resolve to the first
// registered.
func selectCandidate(cands []*Candidate, receiver *Class, args []*Class) *Candidate {
	var exact, best *Candidate
	bestDist := 0
	for _, c := range cands {
		d, ok := c.distance(receiver, args)
		if !ok {
			continue
		}
		if d == 0 && c.Rank == Specialized {
			if exact == nil || c.seq > exact.seq {
				exact = c
			}
			continue
		}
		if exact != nil {
			continue
		}
		switch {
		case best == nil || d < bestDist:
			best, bestDist = c, d
		case d > bestDist:
		case c.Rank > best.Rank:
			best = c
		case c.Rank < best.Rank:
		case c.sameSignature(best):
			if c.seq > best.seq {
				best = c
			}
		case c.seq < best.seq:
			best = c
		}
	}
	if exact != nil {
		return exact
	}
	return best
}
