package vm

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Registry: process-wide method tables
// ---------------------------------------------------------------------------

// ChangeKind says what happened to a method table.
type ChangeKind uint8

const (
	ChangeRegister ChangeKind = iota
	ChangeRemove
	ChangeInvalidate
	ChangeRedefine
	ChangeReset
	ChangeUnload
)

var changeNames = [...]string{"register", "remove", "invalidate", "redefine", "reset", "unload"}

func (k ChangeKind) String() string {
	if int(k) < len(changeNames) {
		return changeNames[k]
	}
	return "change(?)"
}

// ChangeEvent is delivered to listeners after a table changed. Class is nil
// for registry-wide events.
type ChangeEvent struct {
	Kind       ChangeKind
	Class      *Class
	Name       string
	Generation uint64
}

// ChangeListener observes registry changes. Listeners run synchronously on
// the goroutine that made the change.
type ChangeListener func(ChangeEvent)

type listener struct {
	fn ChangeListener
}

type tableKey struct {
	loader uuid.UUID
	name   string
}

type tableIndex map[tableKey]*MethodTable

// Registry maps classes to method tables. Tables are partitioned by defining
// loader: the same class name under two loaders yields two tables.
//
// Invalidation is pull-based. Invalidate only moves a table's generation;
// call sites notice on their next use.
type Registry struct {
	mu    sync.Mutex // serialises index writers
	index atomic.Pointer[tableIndex]
	seq   atomic.Uint64

	listenerMu sync.Mutex
	listeners  atomic.Pointer[[]*listener]

	mods NumberMathModification
}

func newRegistry() *Registry {
	r := &Registry{}
	idx := tableIndex{}
	r.index.Store(&idx)
	r.listeners.Store(&[]*listener{})
	return r
}

// NewRegistry creates a registry populated with the builtin candidates.
func NewRegistry() *Registry {
	r := newRegistry()
	registerBuiltins(r)
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry, creating it on first
// use.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func keyOf(c *Class) tableKey {
	var id uuid.UUID
	if c.Loader != nil {
		id = c.Loader.ID
	}
	return tableKey{loader: id, name: c.Name}
}

// lookupTable returns the table for c without creating one.
func (r *Registry) lookupTable(c *Class) (*MethodTable, bool) {
	mt, ok := (*r.index.Load())[keyOf(c)]
	return mt, ok
}

// Table returns the method table of c, creating an empty one if needed.
func (r *Registry) Table(c *Class) *MethodTable {
	if mt, ok := r.lookupTable(c); ok {
		return mt
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.index.Load()
	key := keyOf(c)
	if mt, ok := old[key]; ok {
		return mt
	}
	next := make(tableIndex, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	mt := newMethodTable(c)
	next[key] = mt
	r.index.Store(&next)
	return mt
}

// Register adds a candidate to class under name and returns the registered
// copy. The candidate's receiver defaults to class.
func (r *Registry) Register(class *Class, name string, cand *Candidate) *Candidate {
	cp := *cand
	cp.Name = name
	if cp.Receiver == nil {
		cp.Receiver = class
	}
	cp.Params = append([]*Class(nil), cand.Params...)
	cp.seq = r.seq.Add(1)

	gen := r.Table(class).add(&cp)
	if !cp.builtin {
		r.mods.check(class, &cp)
		logger().Debugf("registered %s on %s (generation %d)", cp.String(), class.QualifiedName(), gen)
	}
	r.notify(ChangeEvent{Kind: ChangeRegister, Class: class, Name: name, Generation: gen})
	return &cp
}

// RegisterFunc is shorthand for registering a new candidate.
func (r *Registry) RegisterFunc(class *Class, name string, params []*Class, rank Rank, fn Invoker) *Candidate {
	return r.Register(class, name, NewCandidate(name, class, params, rank, fn))
}

// Remove drops every candidate registered on class under name.
func (r *Registry) Remove(class *Class, name string) int {
	mt, ok := r.lookupTable(class)
	if !ok {
		return 0
	}
	n, gen := mt.remove(name)
	if n > 0 {
		logger().Debugf("removed %d candidate(s) %s from %s", n, name, class.QualifiedName())
		r.notify(ChangeEvent{Kind: ChangeRemove, Class: class, Name: name, Generation: gen})
	}
	return n
}

// Lookup returns the candidates registered directly on class under name.
func (r *Registry) Lookup(class *Class, name string) []*Candidate {
	mt, ok := r.lookupTable(class)
	if !ok {
		return nil
	}
	return mt.Lookup(name)
}

// Invalidate moves the generation of class's table so every guard that
// depends on it is stale at its next use. The class-loading layer calls this
// before the new method set becomes visible.
func (r *Registry) Invalidate(class *Class) uint64 {
	gen := r.Table(class).invalidate()
	logger().Debugf("invalidated %s (generation %d)", class.QualifiedName(), gen)
	r.notify(ChangeEvent{Kind: ChangeInvalidate, Class: class, Generation: gen})
	return gen
}

// Redefine replaces every method of class in one step, invalidating before
// the new set is published.
func (r *Registry) Redefine(class *Class, methods map[string][]*Candidate) uint64 {
	next := make(methodSet, len(methods))
	for name, cands := range methods {
		list := make([]*Candidate, 0, len(cands))
		for _, c := range cands {
			cp := *c
			cp.Name = name
			if cp.Receiver == nil {
				cp.Receiver = class
			}
			cp.Params = append([]*Class(nil), c.Params...)
			cp.seq = r.seq.Add(1)
			if !cp.builtin {
				r.mods.check(class, &cp)
			}
			list = append(list, &cp)
		}
		next[name] = list
	}
	gen := r.Table(class).replace(next)
	logger().Debugf("redefined %s with %d method name(s) (generation %d)", class.QualifiedName(), len(next), gen)
	r.notify(ChangeEvent{Kind: ChangeRedefine, Class: class, Generation: gen})
	return gen
}

// TableSnapshot is a point-in-time view of one table. Methods must not be
// modified.
type TableSnapshot struct {
	Class      *Class
	Generation uint64
	Methods    map[string][]*Candidate
}

// Snapshot returns every table as of now, sorted by qualified class name.
// Registrations made after the call are not visible in the result.
func (r *Registry) Snapshot() []TableSnapshot {
	idx := *r.index.Load()
	out := make([]TableSnapshot, 0, len(idx))
	for _, mt := range idx {
		gen := mt.Generation()
		out = append(out, TableSnapshot{Class: mt.class, Generation: gen, Methods: mt.snapshot()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Class.QualifiedName() < out[j].Class.QualifiedName()
	})
	return out
}

// Each calls fn for every table in a snapshot until fn returns false.
func (r *Registry) Each(fn func(TableSnapshot) bool) {
	for _, ts := range r.Snapshot() {
		if !fn(ts) {
			return
		}
	}
}

// Reset discards every registration and restores the builtins. Old tables
// are retired by moving their generations, so guards that captured them
// re-resolve against the new tables.
func (r *Registry) Reset() {
	fresh := NewRegistry()

	r.mu.Lock()
	old := *r.index.Load()
	r.index.Store(fresh.index.Load())
	r.mu.Unlock()

	for _, mt := range old {
		mt.invalidate()
	}
	r.mods.reset()
	logger().Infof("registry reset, retired %d table(s)", len(old))
	r.notify(ChangeEvent{Kind: ChangeReset})
}

// UnloadLoader drops every table belonging to classes of loader l and
// retires them. It returns the number of tables dropped.
func (r *Registry) UnloadLoader(l *Loader) int {
	r.mu.Lock()
	old := *r.index.Load()
	next := make(tableIndex, len(old))
	var dropped []*MethodTable
	for k, v := range old {
		if k.loader == l.ID {
			dropped = append(dropped, v)
			continue
		}
		next[k] = v
	}
	r.index.Store(&next)
	r.mu.Unlock()

	for _, mt := range dropped {
		mt.invalidate()
	}
	logger().Debugf("unloaded loader %s, dropped %d table(s)", l.Name, len(dropped))
	r.notify(ChangeEvent{Kind: ChangeUnload})
	return len(dropped)
}

// AddChangeListener registers fn and returns a function that removes it.
func (r *Registry) AddChangeListener(fn ChangeListener) (remove func()) {
	l := &listener{fn: fn}

	r.listenerMu.Lock()
	old := *r.listeners.Load()
	next := make([]*listener, len(old), len(old)+1)
	copy(next, old)
	next = append(next, l)
	r.listeners.Store(&next)
	r.listenerMu.Unlock()

	return func() {
		r.listenerMu.Lock()
		defer r.listenerMu.Unlock()
		cur := *r.listeners.Load()
		out := make([]*listener, 0, len(cur))
		for _, x := range cur {
			if x != l {
				out = append(out, x)
			}
		}
		r.listeners.Store(&out)
	}
}

func (r *Registry) notify(ev ChangeEvent) {
	for _, l := range *r.listeners.Load() {
		l.fn(ev)
	}
}

// Modifications exposes the number-operator modification flags.
func (r *Registry) Modifications() *NumberMathModification {
	return &r.mods
}

// stamp ensures a table exists for every class in the lineage of c and
// records their generations, in lineage order.
func (r *Registry) stamp(c *Class) Stamp {
	lineage := c.Lineage()
	s := make(Stamp, len(lineage))
	for i, k := range lineage {
		mt := r.Table(k)
		s[i] = tableGen{table: mt, gen: mt.Generation()}
	}
	return s
}

func logger() commonlog.Logger {
	return commonlog.GetLogger("pica.vm")
}
