package vm

import (
	"sort"
	"sync"
	"sync/atomic"
)

// MethodTable holds the candidates one class answers, keyed by method name.
//
// The candidate map is an immutable snapshot replaced wholesale on every
// change, so readers never lock. Registrants serialise on mu. The
// generation counter moves after a new snapshot is published; readers load
// the generation before the snapshot, so a reader that saw old methods can
// only have recorded an old generation.
type MethodTable struct {
	class *Class

	generation atomic.Uint64
	mu         sync.Mutex
	methods    atomic.Pointer[methodSet]

	// walked caches the candidates collected across the class lineage, per
	// method name. Entries are only trusted while their stamp is current.
	walked sync.Map // string -> *walkedEntry
}

type methodSet map[string][]*Candidate

type walkedEntry struct {
	stamp      Stamp
	candidates []*Candidate
}

var emptyMethods = methodSet{}

func newMethodTable(class *Class) *MethodTable {
	mt := &MethodTable{class: class}
	mt.methods.Store(&emptyMethods)
	return mt
}

// Class returns the class the table belongs to.
func (mt *MethodTable) Class() *Class {
	return mt.class
}

// Generation returns the current generation.
func (mt *MethodTable) Generation() uint64 {
	return mt.generation.Load()
}

// Lookup returns the candidates registered directly on this class under name,
// in registration order. The slice must not be modified.
func (mt *MethodTable) Lookup(name string) []*Candidate {
	return (*mt.methods.Load())[name]
}

// Names returns the method names defined on this class, sorted.
func (mt *MethodTable) Names() []string {
	ms := *mt.methods.Load()
	names := make([]string, 0, len(ms))
	for n := range ms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CandidateCount returns the number of candidates across all names.
func (mt *MethodTable) CandidateCount() int {
	n := 0
	for _, cs := range *mt.methods.Load() {
		n += len(cs)
	}
	return n
}

func (mt *MethodTable) snapshot() methodSet {
	return *mt.methods.Load()
}

func (mt *MethodTable) add(c *Candidate) uint64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	old := *mt.methods.Load()
	next := make(methodSet, len(old)+1)
	for n, cs := range old {
		next[n] = cs
	}
	list := make([]*Candidate, len(old[c.Name]), len(old[c.Name])+1)
	copy(list, old[c.Name])
	next[c.Name] = append(list, c)
	mt.methods.Store(&next)
	return mt.generation.Add(1)
}

func (mt *MethodTable) remove(name string) (int, uint64) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	old := *mt.methods.Load()
	n := len(old[name])
	if n == 0 {
		return 0, mt.generation.Load()
	}
	next := make(methodSet, len(old))
	for k, cs := range old {
		if k != name {
			next[k] = cs
		}
	}
	mt.methods.Store(&next)
	return n, mt.generation.Add(1)
}

// replace swaps in a whole new method set. The generation moves before and
// after publication: existing guards are stale before the new methods are
// visible, and anything resolved against the old set in between is stale
// again afterwards.
func (mt *MethodTable) replace(next methodSet) uint64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.generation.Add(1)
	mt.methods.Store(&next)
	return mt.generation.Add(1)
}

func (mt *MethodTable) invalidate() uint64 {
	return mt.generation.Add(1)
}

// ---------------------------------------------------------------------------
// Stamp
// ---------------------------------------------------------------------------

type tableGen struct {
	table *MethodTable
	gen   uint64
}

// Stamp records the generation of every table a resolution depended on.
type Stamp []tableGen

// Current reports whether none of the recorded tables has moved on.
func (s Stamp) Current() bool {
	for _, tg := range s {
		if tg.table.generation.Load() != tg.gen {
			return false
		}
	}
	return true
}

// DependsOn reports whether the stamp includes the table of class c.
func (s Stamp) DependsOn(c *Class) bool {
	for _, tg := range s {
		if tg.table.class == c {
			return true
		}
	}
	return false
}
