package regalloc

import (
	"fmt"

	"github.com/google/btree"
)

// pregAllocDegree is the B-tree branching factor used for every PReg's
// allocation map. 32 keeps node fan-out well above cache-line-friendly
// binary search thresholds without growing tree height for the range
// counts a single function's register pressure realistically produces.
const pregAllocDegree = 32

// pregEntry is one occupant of a PReg's allocation map: the CodeRange it
// holds and the LiveRange it belongs to. LR.Invalid() marks a fixed
// reservation (spec.md §3 "PhysReg record") rather than a bundle's range;
// such an entry is never evicted.
type pregEntry struct {
	Key CodeRange
	LR  LiveRangeIndex
}

// PRegAllocMap is an ordered map from CodeRange to the LiveRange
// occupying it, keyed by the overlap comparator of spec.md §3/§4.2. It
// wraps github.com/google/btree's generic BTreeG: the donor's Rust
// original used a BTreeMap with the same comparator and relied on a
// pull-style cursor for the merge-sweep in try-allocate; btree.BTreeG
// exposes only push-style Ascend callbacks, so PRegAllocMap instead
// offers a peekFrom/insert/remove surface built on repeated
// AscendGreaterOrEqual seeks (see DESIGN.md for the resulting complexity
// trade-off).
type PRegAllocMap struct {
	tree *btree.BTreeG[pregEntry]
}

// NewPRegAllocMap creates an empty allocation map.
func NewPRegAllocMap() *PRegAllocMap {
	return &PRegAllocMap{
		tree: btree.NewG(pregAllocDegree, func(a, b pregEntry) bool {
			return a.Key.Less(b.Key)
		}),
	}
}

// Len returns the number of occupied ranges.
func (m *PRegAllocMap) Len() int { return m.tree.Len() }

// Insert records that r is now occupied by lr. Precondition: r does not
// overlap any range already present (spec.md §4.2); violating this is a
// programmer bug in the caller, not a recoverable condition, so it
// panics rather than silently overwriting — google/btree's
// ReplaceOrInsert would otherwise treat the overlap as "same key" and
// clobber the existing occupant.
func (m *PRegAllocMap) Insert(r CodeRange, lr LiveRangeIndex) {
	if existing, ok := m.tree.Get(pregEntry{Key: r}); ok {
		panic(fmt.Sprintf("PRegAllocMap.Insert: %s overlaps existing occupant %s (lr %d)", r, existing.Key, existing.LR))
	}

	m.tree.ReplaceOrInsert(pregEntry{Key: r, LR: lr})
}

// Remove deletes the unique entry overlapping r (which, by invariant (1),
// is the entry equal to r under the overlap comparator).
func (m *PRegAllocMap) Remove(r CodeRange) {
	m.tree.Delete(pregEntry{Key: r})
}

// peekFrom returns the first stored entry not Less than key (i.e. the
// first entry that overlaps key or lies entirely after it), without
// removing it.
func (m *PRegAllocMap) peekFrom(key CodeRange) (pregEntry, bool) {
	var found pregEntry

	ok := false

	m.tree.AscendGreaterOrEqual(pregEntry{Key: key}, func(item pregEntry) bool {
		found = item
		ok = true

		return false
	})

	return found, ok
}

// Overlapping calls fn with every entry overlapping r, in ascending
// order, stopping early once an entry starts at or after r.To. Used by
// the too-many-live-regs scan (spec.md §4.7 step 5), which needs every
// occupant over one range rather than a single peek.
func (m *PRegAllocMap) Overlapping(r CodeRange, fn func(pregEntry)) {
	m.tree.AscendGreaterOrEqual(pregEntry{Key: r}, func(item pregEntry) bool {
		if item.Key.From >= r.To {
			return false
		}

		if item.Key.To <= r.From {
			return true
		}

		fn(item)

		return true
	})
}

// PhysReg is the per-register bookkeeping the core owns: its class,
// whether it is stack-class (never a real allocation target), and its
// allocation map.
type PhysReg struct {
	Class       RegClass
	IsStack     bool
	Allocations *PRegAllocMap
}
