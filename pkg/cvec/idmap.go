package cvec

import (
	"fmt"

	"github.com/cvecdb/cvec/internal/diag"
)

// idMapBuckets is the fixed hash-table modulus (a prime, per
// SPEC_FULL.md §4.4): 10,007 buckets, each the head of a chain.
const idMapBuckets = 10007

// maxChainWalk bounds how many links a lookup will follow before
// concluding the chain is corrupt rather than looping forever.
const maxChainWalk = 1000

// idMapEntry records where a vector's record lives in the store file.
type idMapEntry struct {
	id        uint64
	offset    int64
	dimension uint32
	timestamp uint64
	deleted   bool
	next      int32 // index into idMap.entries, or -1
}

// idMap is an open hash table with separate chaining over a fixed prime
// modulus, mirroring the identifier map described in SPEC_FULL.md §4.4.
// It is rebuilt from the store file on every Open and is never itself
// persisted.
type idMap struct {
	buckets [idMapBuckets]int32 // head entry index, or -1
	entries []idMapEntry
	log     diag.Logger
}

func newIDMap(log diag.Logger) *idMap {
	m := &idMap{log: log}
	for i := range m.buckets {
		m.buckets[i] = -1
	}
	if m.log == nil {
		m.log = diag.Discard
	}
	return m
}

func hashID(id uint64) uint64 { return id % idMapBuckets }

// Put inserts an entry for id. If id is already present and live, the
// caller is expected to have checked that first (Insert rejects
// duplicates): Put itself always appends a fresh entry and makes it the
// bucket head, leaving any older entries for the same id in the chain.
func (m *idMap) Put(id uint64, offset int64, dim uint32, ts uint64) {
	e := idMapEntry{id: id, offset: offset, dimension: dim, timestamp: ts}
	idx := int32(len(m.entries))
	b := hashID(id)
	e.next = m.buckets[b]
	m.entries = append(m.entries, e)
	m.buckets[b] = idx
}

// Get looks up the live entry for id. ok is false if no live entry
// exists. A chain walk exceeding maxChainWalk is treated as corruption:
// it is reported via the diagnostic logger and Get returns not-found
// rather than spinning forever on a cyclic or oversized chain.
func (m *idMap) Get(id uint64) (idMapEntry, bool) {
	b := hashID(id)
	idx := m.buckets[b]
	steps := 0
	for idx >= 0 {
		steps++
		if steps > maxChainWalk {
			m.log.Error("hash chain exceeds safety bound, treating as corrupt", "id", id, "bucket", b)
			return idMapEntry{}, false
		}
		e := m.entries[idx]
		if e.id == id && !e.deleted {
			return e, true
		}
		idx = e.next
	}
	return idMapEntry{}, false
}

// MarkDeleted flags the live entry for id as deleted. Returns false if no
// live entry was found.
func (m *idMap) MarkDeleted(id uint64) bool {
	b := hashID(id)
	idx := m.buckets[b]
	steps := 0
	for idx >= 0 {
		steps++
		if steps > maxChainWalk {
			m.log.Error("hash chain exceeds safety bound while deleting", "id", id, "bucket", b)
			return false
		}
		if m.entries[idx].id == id && !m.entries[idx].deleted {
			m.entries[idx].deleted = true
			return true
		}
		idx = m.entries[idx].next
	}
	return false
}

// Len returns the number of live (undeleted) entries.
func (m *idMap) Len() int {
	n := 0
	for _, e := range m.entries {
		if !e.deleted {
			n++
		}
	}
	return n
}

// All iterates every live entry, calling fn for each. Used by the
// brute-force search fallback.
func (m *idMap) All(fn func(idMapEntry)) {
	for _, e := range m.entries {
		if !e.deleted {
			fn(e)
		}
	}
}

// checkIntegrity reports whether the map looks self-consistent: every
// bucket head and chain link must stay within range. It does not mutate
// anything; it exists so Open can surface a clearly corrupt map rather
// than silently misbehaving.
func (m *idMap) checkIntegrity() error {
	for b, head := range m.buckets {
		steps := 0
		idx := head
		for idx >= 0 {
			steps++
			if steps > maxChainWalk {
				return fmt.Errorf("cvec: %w: hash chain at bucket %d exceeds safety bound", ErrCorrupt, b)
			}
			if int(idx) >= len(m.entries) {
				return fmt.Errorf("cvec: %w: hash chain at bucket %d points out of range", ErrCorrupt, b)
			}
			idx = m.entries[idx].next
		}
	}
	return nil
}
