// Package profile captures dispatch profiles from a runtime: which call
// sites went monomorphic, polymorphic or megamorphic, and how the method
// tables looked at the time. Profiles travel as canonical CBOR and can be
// kept in a SQLite history.
package profile

import (
	"sort"
	"time"

	"github.com/chazu/pica/vm"
)

// Version is the profile format version written by Capture.
const Version = 1

// Snapshot is one captured dispatch profile.
type Snapshot struct {
	Version   int    `cbor:"1,keyasint"`
	Source    string `cbor:"2,keyasint"`
	CreatedAt int64  `cbor:"3,keyasint"` // unix nanoseconds

	Summary Summary        `cbor:"4,keyasint"`
	Sites   []SiteProfile  `cbor:"5,keyasint,omitempty"`
	Tables  []TableProfile `cbor:"6,keyasint,omitempty"`
}

// Summary aggregates the call sites of a snapshot.
type Summary struct {
	CallSites          int    `cbor:"1,keyasint"`
	Monomorphic        int    `cbor:"2,keyasint"`
	Polymorphic        int    `cbor:"3,keyasint"`
	Megamorphic        int    `cbor:"4,keyasint"`
	Empty              int    `cbor:"5,keyasint"`
	Hits               uint64 `cbor:"6,keyasint"`
	Misses             uint64 `cbor:"7,keyasint"`
	Invalidations      uint64 `cbor:"8,keyasint"`
	Consultations      uint64 `cbor:"9,keyasint"`
	MegamorphicEntries int    `cbor:"10,keyasint"`
}

// SiteProfile describes one call site.
type SiteProfile struct {
	Unit          string `cbor:"1,keyasint"`
	Index         int    `cbor:"2,keyasint"`
	Name          string `cbor:"3,keyasint"`
	State         string `cbor:"4,keyasint"`
	Guards        int    `cbor:"5,keyasint"`
	Hits          uint64 `cbor:"6,keyasint"`
	Misses        uint64 `cbor:"7,keyasint"`
	Invalidations uint64 `cbor:"8,keyasint"`
}

// TableProfile describes one method table.
type TableProfile struct {
	Class      string          `cbor:"1,keyasint"`
	Loader     string          `cbor:"2,keyasint"`
	Generation uint64          `cbor:"3,keyasint"`
	Methods    []MethodProfile `cbor:"4,keyasint,omitempty"`
}

// MethodProfile counts the candidates registered under one name.
type MethodProfile struct {
	Name       string `cbor:"1,keyasint"`
	Candidates int    `cbor:"2,keyasint"`
}

// Capture records the current state of every site table rt created and of
// every method table in its registry.
func Capture(rt *vm.Runtime, source string) *Snapshot {
	stats := rt.Stats()
	s := &Snapshot{
		Version:   Version,
		Source:    source,
		CreatedAt: time.Now().UnixNano(),
		Summary: Summary{
			CallSites:          stats.Sites.TotalCallSites,
			Monomorphic:        stats.Sites.Monomorphic,
			Polymorphic:        stats.Sites.Polymorphic,
			Megamorphic:        stats.Sites.Megamorphic,
			Empty:              stats.Sites.Empty,
			Hits:               stats.Sites.TotalHits,
			Misses:             stats.Sites.TotalMisses,
			Invalidations:      stats.Sites.Invalidations,
			Consultations:      stats.Consultations,
			MegamorphicEntries: stats.MegamorphicEntries,
		},
	}

	for _, t := range rt.SiteTables() {
		for _, cs := range t.Sites() {
			s.Sites = append(s.Sites, SiteProfile{
				Unit:          t.Unit,
				Index:         cs.Index,
				Name:          cs.Name,
				State:         cs.State().String(),
				Guards:        cs.Size(),
				Hits:          cs.Hits(),
				Misses:        cs.Misses(),
				Invalidations: cs.Invalidations(),
			})
		}
	}

	rt.Registry().Each(func(ts vm.TableSnapshot) bool {
		tp := TableProfile{
			Class:      ts.Class.Name,
			Generation: ts.Generation,
		}
		if ts.Class.Loader != nil {
			tp.Loader = ts.Class.Loader.Name
		}
		for name, cands := range ts.Methods {
			tp.Methods = append(tp.Methods, MethodProfile{Name: name, Candidates: len(cands)})
		}
		sort.Slice(tp.Methods, func(i, j int) bool {
			return tp.Methods[i].Name < tp.Methods[j].Name
		})
		s.Tables = append(s.Tables, tp)
		return true
	})
	return s
}

// Time returns the capture time.
func (s *Snapshot) Time() time.Time {
	return time.Unix(0, s.CreatedAt)
}

// HitRate returns the aggregate hit rate as a percentage (0-100).
func (s *Snapshot) HitRate() float64 {
	total := s.Summary.Hits + s.Summary.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Summary.Hits) * 100 / float64(total)
}

// SitesIn returns the call sites in the given state.
func (s *Snapshot) SitesIn(state vm.CacheState) []SiteProfile {
	var out []SiteProfile
	for _, sp := range s.Sites {
		if sp.State == state.String() {
			out = append(out, sp)
		}
	}
	return out
}
