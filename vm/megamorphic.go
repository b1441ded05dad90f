package vm

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultMegamorphicCacheSize bounds the shared cache when no size is
// configured.
const DefaultMegamorphicCacheSize = 4096

// MegamorphicCache is the process-wide table that megamorphic call sites
// share instead of keeping their own guards. Entries are keyed by
// OperationKey and validated by stamp on every hit. When the table is full
// it is cleared and refilled on demand.
type MegamorphicCache struct {
	mu       sync.RWMutex
	buckets  map[uint64][]*sharedEntry
	size     int
	capacity int

	flight singleflight.Group
}

type sharedEntry struct {
	key       *OperationKey
	candidate *Candidate
	stamp     Stamp
}

// NewMegamorphicCache creates a cache holding at most capacity entries.
func NewMegamorphicCache(capacity int) *MegamorphicCache {
	if capacity <= 0 {
		capacity = DefaultMegamorphicCacheSize
	}
	return &MegamorphicCache{
		buckets:  make(map[uint64][]*sharedEntry),
		capacity: capacity,
	}
}

// lookup finds the entry for a live call. stale is true when an entry
// exists but one of the tables it depended on has changed.
func (mc *MegamorphicCache) lookup(name string, receiver *Class, args []Value) (cand *Candidate, found, stale bool) {
	h := hashCall(name, receiver, args)

	mc.mu.RLock()
	defer mc.mu.RUnlock()
	for _, e := range mc.buckets[h] {
		if !e.key.matches(name, receiver, args) {
			continue
		}
		if !e.stamp.Current() {
			return nil, false, true
		}
		return e.candidate, true, false
	}
	return nil, false, false
}

// resolve resolves a call through r and caches the answer. Concurrent misses
// for the same key share one resolution.
func (mc *MegamorphicCache) resolve(r *Resolver, name string, receiver *Class, args []*Class) (*Candidate, error) {
	key := NewOperationKey(name, receiver, args)
	v, err, _ := mc.flight.Do(key.String(), func() (interface{}, error) {
		if cand, ok := mc.get(key); ok {
			return cand, nil
		}
		cand, stamp, err := r.ResolveClasses(name, receiver, args)
		if err != nil {
			return nil, err
		}
		mc.put(&sharedEntry{key: key, candidate: cand, stamp: stamp})
		return cand, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Candidate), nil
}

// store seeds the cache from a call-site guard.
func (mc *MegamorphicCache) store(g *guard) {
	key := NewOperationKey(g.candidate.Name, g.receiver, g.args)
	mc.put(&sharedEntry{key: key, candidate: g.candidate, stamp: g.stamp})
}

func (mc *MegamorphicCache) get(key *OperationKey) (*Candidate, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	for _, e := range mc.buckets[key.Hash()] {
		if e.key.Equal(key) && e.stamp.Current() {
			return e.candidate, true
		}
	}
	return nil, false
}

func (mc *MegamorphicCache) put(e *sharedEntry) {
	h := e.key.Hash()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	bucket := mc.buckets[h]
	for i, old := range bucket {
		if old.key.Equal(e.key) {
			next := make([]*sharedEntry, len(bucket))
			copy(next, bucket)
			next[i] = e
			mc.buckets[h] = next
			return
		}
	}
	if mc.size >= mc.capacity {
		logger().Debugf("megamorphic cache full at %d entries, clearing", mc.size)
		mc.buckets = make(map[uint64][]*sharedEntry)
		mc.size = 0
		bucket = nil
	}
	next := make([]*sharedEntry, len(bucket), len(bucket)+1)
	copy(next, bucket)
	mc.buckets[h] = append(next, e)
	mc.size++
}

// Len returns the number of cached entries.
func (mc *MegamorphicCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.size
}

// Capacity returns the maximum number of entries.
func (mc *MegamorphicCache) Capacity() int {
	return mc.capacity
}

// Clear drops every entry.
func (mc *MegamorphicCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.buckets = make(map[uint64][]*sharedEntry)
	mc.size = 0
}
