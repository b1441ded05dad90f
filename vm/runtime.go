package vm

import "sync"

// Config tunes call-site caching.
type Config struct {
	// MaxChain is the number of guards a call site keeps before it goes
	// megamorphic.
	MaxChain int
	// MegamorphicCacheSize bounds the shared cache used by megamorphic
	// sites.
	MegamorphicCacheSize int
	// ReorderHits moves a hit guard to the front of its chain.
	ReorderHits bool
}

// DefaultConfig returns the default tuning.
func DefaultConfig() *Config {
	return &Config{
		MaxChain:             MaxPICEntries,
		MegamorphicCacheSize: DefaultMegamorphicCacheSize,
	}
}

// Runtime ties a registry to the resolver and caches that read it.
type Runtime struct {
	cfg      Config
	registry *Registry
	resolver *Resolver
	shared   *MegamorphicCache

	arithSites [numOps]*CallSite

	mu     sync.Mutex
	tables []*SiteTable
}

// RuntimeStats summarises a runtime's dispatch activity.
type RuntimeStats struct {
	Sites              ICStats
	SiteTables         int
	Consultations      uint64
	MegamorphicEntries int
	MethodTables       int
}

// NewRuntime creates a runtime over the process-wide default registry. A
// nil cfg means DefaultConfig.
func NewRuntime(cfg *Config) *Runtime {
	return NewRuntimeWithRegistry(DefaultRegistry(), cfg)
}

// NewRuntimeWithRegistry creates a runtime over reg.
func NewRuntimeWithRegistry(reg *Registry, cfg *Config) *Runtime {
	c := *DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.MaxChain <= 0 {
		c.MaxChain = MaxPICEntries
	}
	if c.MegamorphicCacheSize <= 0 {
		c.MegamorphicCacheSize = DefaultMegamorphicCacheSize
	}

	rt := &Runtime{
		cfg:      c,
		registry: reg,
		resolver: NewResolver(reg),
		shared:   NewMegamorphicCache(c.MegamorphicCacheSize),
	}
	for _, op := range Ops() {
		rt.arithSites[op] = newCallSite(rt, op.String(), -1)
	}
	return rt
}

// Config returns the effective configuration.
func (rt *Runtime) Config() Config {
	return rt.cfg
}

// Registry returns the registry the runtime dispatches against.
func (rt *Runtime) Registry() *Registry {
	return rt.registry
}

// Resolver returns the runtime's resolver.
func (rt *Runtime) Resolver() *Resolver {
	return rt.resolver
}

// Megamorphic returns the cache shared by the runtime's megamorphic sites.
func (rt *Runtime) Megamorphic() *MegamorphicCache {
	return rt.shared
}

// NewSiteTable creates call sites for a compiled unit, one per name, indexed
// in order.
func (rt *Runtime) NewSiteTable(unit string, names ...string) *SiteTable {
	t := &SiteTable{Unit: unit, sites: make([]*CallSite, len(names))}
	for i, name := range names {
		t.sites[i] = newCallSite(rt, name, i)
	}

	rt.mu.Lock()
	rt.tables = append(rt.tables, t)
	rt.mu.Unlock()
	return t
}

// Invoke resolves and calls name without a call site. Every call consults
// the resolver.
func (rt *Runtime) Invoke(name string, receiver Value, args ...Value) (Value, error) {
	cand, _, err := rt.resolver.Resolve(name, receiver, args)
	if err != nil {
		return nil, err
	}
	return cand.Invoke(receiver, args)
}

// Arith applies a number operator. While no user candidate redefines op for
// the left operand's kind, the result is computed inline; otherwise the call
// goes through the operator's call site.
func (rt *Runtime) Arith(op Op, left, right Value) (Value, error) {
	a, b := ClassifyPair(left, right)
	if a.IsNumeric() && b.IsNumeric() && !rt.registry.mods.Modified(op, a) {
		return binaryFor(op, a, b)(left, right)
	}
	return rt.arithSites[op].Call(left, right)
}

// SiteTables returns every site table the runtime has created.
func (rt *Runtime) SiteTables() []*SiteTable {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]*SiteTable(nil), rt.tables...)
}

// Stats collects statistics across every site table the runtime created.
func (rt *Runtime) Stats() RuntimeStats {
	tables := rt.SiteTables()

	methodTables := 0
	rt.registry.Each(func(TableSnapshot) bool {
		methodTables++
		return true
	})
	return RuntimeStats{
		Sites:              CollectICStats(tables...),
		SiteTables:         len(tables),
		Consultations:      rt.resolver.Consultations(),
		MegamorphicEntries: rt.shared.Len(),
		MethodTables:       methodTables,
	}
}
