package data

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/TomasB/geoalloc/internal/ipaddr"
	"lukechampine.com/uint128"
)

// MemoryBackend keeps records in process memory, indexed per family by
// range start.
//
// When several ranges contain a point, the one loaded first wins.
type MemoryBackend struct {
	mu  sync.RWMutex
	idx map[ipaddr.Family]*familyIndex
}

// familyIndex holds entries sorted by start. maxEnd[i] is the largest end
// among entries[0..i], which bounds the backward scan in find.
type familyIndex struct {
	entries []indexEntry
	maxEnd  []uint128.Uint128
}

type indexEntry struct {
	start uint128.Uint128
	end   uint128.Uint128
	seq   int
	rec   Record
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{idx: map[ipaddr.Family]*familyIndex{}}
}

// ReplaceAll builds a fresh index and swaps it in.
func (m *MemoryBackend) ReplaceAll(_ context.Context, records []Record) error {
	next := map[ipaddr.Family]*familyIndex{}
	for seq, r := range records {
		fam := r.Start.Family()
		fi, ok := next[fam]
		if !ok {
			fi = &familyIndex{}
			next[fam] = fi
		}
		fi.entries = append(fi.entries, indexEntry{
			start: r.Start.Value(),
			end:   r.End.Value(),
			seq:   seq,
			rec:   r,
		})
	}

	for _, fi := range next {
		slices.SortStableFunc(fi.entries, func(a, b indexEntry) int {
			return a.start.Cmp(b.start)
		})
		fi.maxEnd = make([]uint128.Uint128, len(fi.entries))
		for i, e := range fi.entries {
			fi.maxEnd[i] = e.end
			if i > 0 && fi.maxEnd[i-1].Cmp(e.end) > 0 {
				fi.maxEnd[i] = fi.maxEnd[i-1]
			}
		}
	}

	m.mu.Lock()
	m.idx = next
	m.mu.Unlock()
	return nil
}

// FindContaining returns the earliest-loaded record containing point.
func (m *MemoryBackend) FindContaining(_ context.Context, point ipaddr.Address) (Record, bool, error) {
	m.mu.RLock()
	fi := m.idx[point.Family()]
	m.mu.RUnlock()

	if fi == nil {
		return Record{}, false, nil
	}
	e, ok := fi.find(point.Value())
	if !ok {
		return Record{}, false, nil
	}
	return e.rec, true, nil
}

// Len returns the number of indexed records.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, fi := range m.idx {
		n += len(fi.entries)
	}
	return n
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}

func (fi *familyIndex) find(x uint128.Uint128) (indexEntry, bool) {
	// first entry whose start is beyond x
	i := sort.Search(len(fi.entries), func(i int) bool {
		return fi.entries[i].start.Cmp(x) > 0
	})

	best := -1
	for j := i - 1; j >= 0 && fi.maxEnd[j].Cmp(x) >= 0; j-- {
		e := fi.entries[j]
		if e.end.Cmp(x) < 0 {
			continue
		}
		if best < 0 || e.seq < fi.entries[best].seq {
			best = j
		}
	}
	if best < 0 {
		return indexEntry{}, false
	}
	return fi.entries[best], true
}
