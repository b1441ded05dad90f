package vm

// SiteTable holds the call sites of one compiled unit, indexed by call
// location. Site(i) returns the same *CallSite for the lifetime of the
// table, so repeated executions of a location share one cache.
type SiteTable struct {
	Unit  string
	sites []*CallSite
}

// Len returns the number of call sites.
func (t *SiteTable) Len() int {
	return len(t.sites)
}

// Site returns the call site at index i.
func (t *SiteTable) Site(i int) *CallSite {
	return t.sites[i]
}

// Sites returns every call site in index order. The slice must not be
// modified.
func (t *SiteTable) Sites() []*CallSite {
	return t.sites
}

// Stats returns aggregate statistics for the sites in the table.
func (t *SiteTable) Stats() ICStats {
	var stats ICStats
	collectFromSites(t.sites, &stats)
	stats.finish()
	return stats
}

// HitRate returns the aggregate hit rate for all sites.
func (t *SiteTable) HitRate() float64 {
	return t.Stats().HitRate
}

// Reset clears every site in the table.
func (t *SiteTable) Reset() {
	for _, cs := range t.sites {
		cs.Reset()
	}
}

// ICStats holds aggregate inline cache statistics.
type ICStats struct {
	TotalCallSites  int     // Total number of call sites
	Monomorphic     int     // Call sites in monomorphic state
	Polymorphic     int     // Call sites in polymorphic state
	Megamorphic     int     // Call sites in megamorphic state
	Empty           int     // Call sites never used or just invalidated
	TotalHits       uint64  // Total cache hits
	TotalMisses     uint64  // Total cache misses
	Invalidations   uint64  // Stale guards detected
	HitRate         float64 // Overall hit rate percentage
	MonomorphicRate float64 // Percentage of non-empty call sites that are monomorphic
}

// CollectICStats gathers inline cache statistics across site tables.
func CollectICStats(tables ...*SiteTable) ICStats {
	var stats ICStats
	for _, t := range tables {
		collectFromSites(t.sites, &stats)
	}
	stats.finish()
	return stats
}

func collectFromSites(sites []*CallSite, stats *ICStats) {
	for _, cs := range sites {
		stats.TotalCallSites++
		switch cs.State() {
		case CacheMonomorphic:
			stats.Monomorphic++
		case CachePolymorphic:
			stats.Polymorphic++
		case CacheMegamorphic:
			stats.Megamorphic++
		case CacheEmpty:
			stats.Empty++
		}
		stats.TotalHits += cs.Hits()
		stats.TotalMisses += cs.Misses()
		stats.Invalidations += cs.Invalidations()
	}
}

func (s *ICStats) finish() {
	total := s.TotalHits + s.TotalMisses
	if total > 0 {
		s.HitRate = float64(s.TotalHits) * 100 / float64(total)
	}
	nonEmpty := s.TotalCallSites - s.Empty
	if nonEmpty > 0 {
		s.MonomorphicRate = float64(s.Monomorphic) * 100 / float64(nonEmpty)
	}
}
