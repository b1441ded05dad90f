package vm

import "sync/atomic"

// Inline caching for call sites
//
// Each static call location owns one CallSite. The site keeps a short chain
// of guards, each pairing the exact classes of one call shape with the
// candidate resolved for it:
//
//	Empty -> Monomorphic -> Polymorphic (2..MaxChain) -> Megamorphic
//
// The chain lives in an immutable siteState published through an atomic
// pointer. Readers walk whatever state they loaded; writers build a new
// state and compare-and-swap it in. A guard is never changed once
// published.
//
// Guards carry the generations of every method table their answer depended
// on. A guard whose classes match but whose stamp is stale empties the whole
// site, which then re-resolves once.

// CacheState represents the current state of a call site.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No guards yet
	CacheMonomorphic                   // One guard
	CachePolymorphic                   // 2..MaxChain guards
	CacheMegamorphic                   // Too many shapes, use the shared cache
)

var cacheStateNames = [...]string{"empty", "monomorphic", "polymorphic", "megamorphic"}

func (s CacheState) String() string {
	if int(s) < len(cacheStateNames) {
		return cacheStateNames[s]
	}
	return "state(?)"
}

// MaxPICEntries is the default guard chain limit. Cog VM uses 6 entries.
const MaxPICEntries = 6

type guard struct {
	receiver  *Class
	args      []*Class
	candidate *Candidate
	stamp     Stamp
}

func (g *guard) matches(receiver *Class, args []Value) bool {
	if g.receiver != receiver || len(g.args) != len(args) {
		return false
	}
	for i, a := range args {
		if g.args[i] != ClassOf(a) {
			return false
		}
	}
	return true
}

func (g *guard) sameShape(o *guard) bool {
	if g.receiver != o.receiver || len(g.args) != len(o.args) {
		return false
	}
	for i := range g.args {
		if g.args[i] != o.args[i] {
			return false
		}
	}
	return true
}

type siteState struct {
	state  CacheState
	guards []*guard
}

var (
	emptySite       = &siteState{state: CacheEmpty}
	megamorphicSite = &siteState{state: CacheMegamorphic}
)

func stateFor(guards []*guard) *siteState {
	switch len(guards) {
	case 0:
		return emptySite
	case 1:
		return &siteState{state: CacheMonomorphic, guards: guards}
	}
	return &siteState{state: CachePolymorphic, guards: guards}
}

// CallSite caches dispatch for one call location. It is safe for use by
// multiple goroutines.
type CallSite struct {
	Name  string
	Index int

	rt    *Runtime
	state atomic.Pointer[siteState]

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
}

func newCallSite(rt *Runtime, name string, index int) *CallSite {
	cs := &CallSite{Name: name, Index: index, rt: rt}
	cs.state.Store(emptySite)
	return cs
}

// Call dispatches Name on receiver with args. Resolution and invocation
// errors are returned unchanged; nothing about a failed call is cached.
func (cs *CallSite) Call(receiver Value, args ...Value) (Value, error) {
	st := cs.state.Load()
	recv := ClassOf(receiver)

	if st.state == CacheMegamorphic {
		return cs.callMegamorphic(recv, receiver, args)
	}

	for i, g := range st.guards {
		if !g.matches(recv, args) {
			continue
		}
		if !g.stamp.Current() {
			return cs.invalidated(st, recv, receiver, args, false)
		}
		cs.hits.Add(1)
		if i > 0 && cs.rt.cfg.ReorderHits {
			cs.promote(st, i)
		}
		return g.candidate.Invoke(receiver, args)
	}

	cs.misses.Add(1)
	g, err := cs.resolve(recv, args)
	if err != nil {
		return nil, err
	}
	cs.install(g)
	return g.candidate.Invoke(receiver, args)
}

// CallSafe is Call for the null-safe operator: a null receiver yields null
// without dispatching.
func (cs *CallSite) CallSafe(receiver Value, args ...Value) (Value, error) {
	if Classify(receiver) == KindNull {
		return nil, nil
	}
	return cs.Call(receiver, args...)
}

func (cs *CallSite) resolve(recv *Class, args []Value) (*guard, error) {
	argClasses := classesOf(args)
	cand, stamp, err := cs.rt.resolver.ResolveClasses(cs.Name, recv, argClasses)
	if err != nil {
		return nil, err
	}
	return &guard{receiver: recv, args: argClasses, candidate: cand, stamp: stamp}, nil
}

// invalidated drops every guard and re-resolves the call once. When the
// stale answer came from the shared cache, the fresh one replaces it there
// so other megamorphic sites keep their state.
func (cs *CallSite) invalidated(st *siteState, recv *Class, receiver Value, args []Value, shared bool) (Value, error) {
	cs.invalidations.Add(1)
	cs.misses.Add(1)
	if cs.state.CompareAndSwap(st, emptySite) {
		logger().Debugf("call site %d %s: %s -> %s (stale guard)", cs.Index, cs.Name, st.state, CacheEmpty)
	}

	g, err := cs.resolve(recv, args)
	if err != nil {
		return nil, err
	}
	if shared {
		cs.rt.shared.store(g)
	}
	cs.install(g)
	return g.candidate.Invoke(receiver, args)
}

// install adds g to the chain, going megamorphic when the chain would grow
// past the configured limit. Stale guards are dropped on the way.
func (cs *CallSite) install(g *guard) {
	for {
		cur := cs.state.Load()
		if cur.state == CacheMegamorphic {
			cs.rt.shared.store(g)
			return
		}

		guards := make([]*guard, 0, len(cur.guards)+1)
		for _, old := range cur.guards {
			if old.stamp.Current() && !old.sameShape(g) {
				guards = append(guards, old)
			}
		}
		guards = append(guards, g)

		var next *siteState
		if len(guards) > cs.rt.cfg.MaxChain {
			next = megamorphicSite
		} else {
			next = stateFor(guards)
		}
		if !cs.state.CompareAndSwap(cur, next) {
			continue
		}

		if next.state != cur.state {
			logger().Debugf("call site %d %s: %s -> %s", cs.Index, cs.Name, cur.state, next.state)
		}
		if next.state == CacheMegamorphic {
			for _, seed := range guards {
				if seed.stamp.Current() {
					cs.rt.shared.store(seed)
				}
			}
		}
		return
	}
}

// promote moves the guard at index i to the front. Losing the race to
// another writer is harmless.
func (cs *CallSite) promote(st *siteState, i int) {
	guards := make([]*guard, 0, len(st.guards))
	guards = append(guards, st.guards[i])
	guards = append(guards, st.guards[:i]...)
	guards = append(guards, st.guards[i+1:]...)
	cs.state.CompareAndSwap(st, stateFor(guards))
}

func (cs *CallSite) callMegamorphic(recv *Class, receiver Value, args []Value) (Value, error) {
	cand, found, stale := cs.rt.shared.lookup(cs.Name, recv, args)
	switch {
	case found:
		cs.hits.Add(1)
		return cand.Invoke(receiver, args)
	case stale:
		return cs.invalidated(megamorphicSite, recv, receiver, args, true)
	}

	cs.misses.Add(1)
	cand, err := cs.rt.shared.resolve(cs.rt.resolver, cs.Name, recv, classesOf(args))
	if err != nil {
		return nil, err
	}
	return cand.Invoke(receiver, args)
}

// State returns the current cache state.
func (cs *CallSite) State() CacheState {
	return cs.state.Load().state
}

// Size returns the number of guards in the chain.
func (cs *CallSite) Size() int {
	return len(cs.state.Load().guards)
}

// Hits returns the number of calls answered from a cache.
func (cs *CallSite) Hits() uint64 {
	return cs.hits.Load()
}

// Misses returns the number of calls that needed the resolver or the shared
// cache's slow path.
func (cs *CallSite) Misses() uint64 {
	return cs.misses.Load()
}

// Invalidations returns how often a stale guard emptied the site.
func (cs *CallSite) Invalidations() uint64 {
	return cs.invalidations.Load()
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (cs *CallSite) HitRate() float64 {
	hits, misses := cs.Hits(), cs.Misses()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) * 100 / float64(total)
}

// Reset clears the site back to the empty state.
func (cs *CallSite) Reset() {
	cs.state.Store(emptySite)
	cs.hits.Store(0)
	cs.misses.Store(0)
	cs.invalidations.Store(0)
}
