package index

import (
	"errors"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/nbed-digital/continuum/api"
)

var ErrNotFound = errors.New("index entry not found")

// Linkage identifies which tag set of an entry a filter value is matched
// against. LinkTag is the entry's own tag; the other three are the resource
// linkage arrays.
type Linkage int

const (
	LinkTag Linkage = iota
	LinkIndicators
	LinkComponents
	LinkConsiderations
)

// Store is the read interface over the two build-time artifacts: the search
// index and the consideration count map. Implementations are immutable after
// load except for Swap, which atomically replaces the whole snapshot.
type Store interface {
	// Entries returns all index entries in ordinal order.
	// Callers must not mutate the returned slice.
	Entries() []api.IndexEntry
	// Entry returns the entry with the given id, or ErrNotFound.
	Entry(id string) (api.IndexEntry, error)
	// Counts returns the consideration count map. Never nil.
	Counts() *api.CountMap
	// CategoryBits returns the ordinals of all entries in a category.
	CategoryBits(c api.Category) *roaring.Bitmap
	// TypeBits returns the ordinals of all resources with the given type.
	TypeBits(resourceType string) *roaring.Bitmap
	// LinkageBits returns the ordinals of entries whose tags of the given
	// linkage kind share the prefix.
	LinkageBits(kind Linkage, tagPrefix string) *roaring.Bitmap
}

// MemoryStore holds the artifacts in RAM with roaring posting bitmaps for
// category, resource type and tag linkage lookups.
type MemoryStore struct {
	mu sync.RWMutex

	entries []api.IndexEntry
	byID    map[string]uint32 // entry id -> ordinal
	counts  *api.CountMap

	categories map[api.Category]*roaring.Bitmap
	types      map[string]*roaring.Bitmap
	// linkage[kind]: exact tag -> ordinals. Prefix queries union all
	// matching keys; tag sets are small (hundreds) so a scan is fine.
	linkage [4]map[string]*roaring.Bitmap
}

// NewMemoryStore returns an empty store. Queries against it match nothing,
// which is the degraded state after a failed artifact load.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset(nil, nil)
	return s
}

// NewMemoryStoreWith builds a store from the given artifacts.
func NewMemoryStoreWith(entries []api.IndexEntry, counts *api.CountMap) *MemoryStore {
	s := &MemoryStore{}
	s.reset(entries, counts)
	return s
}

// Swap atomically replaces the store contents. Used by the content watcher
// after a rebuild.
func (s *MemoryStore) Swap(entries []api.IndexEntry, counts *api.CountMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(entries, counts)
}

// reset rebuilds every posting bitmap. Must be called with s.mu held (or
// before the store is shared).
func (s *MemoryStore) reset(entries []api.IndexEntry, counts *api.CountMap) {
	if counts == nil {
		counts = api.NewCountMap()
	}
	s.entries = entries
	s.counts = counts
	s.byID = make(map[string]uint32, len(entries))
	s.categories = make(map[api.Category]*roaring.Bitmap)
	s.types = make(map[string]*roaring.Bitmap)
	for k := range s.linkage {
		s.linkage[k] = make(map[string]*roaring.Bitmap)
	}

	for i := range entries {
		e := &entries[i]
		ord := uint32(i)
		s.byID[e.ID] = ord
		addBit(s.categories, e.Category, ord)
		if e.Category == api.CategoryResource && e.Type != "" {
			addBit(s.types, e.Type, ord)
		}
		if e.Tag != "" {
			addBit(s.linkage[LinkTag], e.Tag, ord)
		}
		for _, t := range e.Indicators {
			addBit(s.linkage[LinkIndicators], t, ord)
		}
		for _, t := range e.Components {
			addBit(s.linkage[LinkComponents], t, ord)
		}
		for _, t := range e.Considerations {
			addBit(s.linkage[LinkConsiderations], t, ord)
		}
	}
}

func addBit[K comparable](m map[K]*roaring.Bitmap, key K, ord uint32) {
	bm, ok := m[key]
	if !ok {
		bm = roaring.New()
		m[key] = bm
	}
	bm.Add(ord)
}

// Entries implements Store.
func (s *MemoryStore) Entries() []api.IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// Entry implements Store.
func (s *MemoryStore) Entry(id string) (api.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ord, ok := s.byID[id]
	if !ok {
		return api.IndexEntry{}, ErrNotFound
	}
	return s.entries[ord], nil
}

// Counts implements Store.
func (s *MemoryStore) Counts() *api.CountMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// CategoryBits implements Store.
func (s *MemoryStore) CategoryBits(c api.Category) *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bm, ok := s.categories[c]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// TypeBits implements Store.
func (s *MemoryStore) TypeBits(resourceType string) *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bm, ok := s.types[resourceType]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// LinkageBits implements Store.
func (s *MemoryStore) LinkageBits(kind Linkage, tagPrefix string) *roaring.Bitmap {
	out := roaring.New()
	if tagPrefix == "" {
		return out
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for tag, bm := range s.linkage[kind] {
		if strings.HasPrefix(tag, tagPrefix) {
			out.Or(bm)
		}
	}
	return out
}
