package regalloc

import mapset "github.com/deckarep/golang-set/v2"

// AllocRegResultKind tags the outcome of one try_to_allocate_bundle_to_reg
// attempt (spec.md §4.3).
type AllocRegResultKind uint8

const (
	AllocRegAllocated AllocRegResultKind = iota
	AllocRegConflict
	AllocRegConflictWithFixed
	AllocRegConflictHighCost
)

// AllocRegResult is the tagged outcome of try_to_allocate_bundle_to_reg.
type AllocRegResult struct {
	Kind AllocRegResultKind

	// Allocated
	Allocation Allocation

	// Conflict
	ConflictBundles    []LiveBundleIndex
	FirstConflictPoint ProgPoint

	// ConflictWithFixed
	MaxConflictWeight uint32
	ConflictPoint     ProgPoint
}

// tryToAllocateBundleToReg attempts to place every range of bundle into
// reg's allocation map (spec.md §4.3). maxAllowableCost, if non-nil,
// lets the caller bail out early (AllocRegConflictHighCost) as soon as
// the running maximum conflict weight exceeds a cost it already knows it
// can beat with a different candidate register.
func (e *Env) tryToAllocateBundleToReg(bundle LiveBundleIndex, reg PRegIndex, maxAllowableCost *uint32) AllocRegResult {
	bundleRanges := e.bundles[bundle.Index()].Ranges
	preg := e.pregs[reg.Index()]

	conflictSet := mapset.NewThreadUnsafeSet[LiveBundleIndex]()

	var (
		conflicts         []LiveBundleIndex
		maxConflictWeight uint32
		firstConflict     *ProgPoint
	)

	// cursor starts at the first bundle range's From: every stored PReg
	// entry strictly before that point can never overlap any bundle
	// range, since bundle ranges are sorted and non-overlapping.
	cursor := CodeRange{From: bundleRanges[0].Range.From, To: bundleRanges[0].Range.From}

	for _, entry := range bundleRanges {
		key := entry.Range

		for {
			hit, ok := preg.Allocations.peekFrom(cursor)
			if !ok {
				// No more PReg allocations at or after cursor: nothing
				// left can possibly conflict with this or any later
				// bundle range.
				if len(conflicts) > 0 {
					return AllocRegResult{Kind: AllocRegConflict, ConflictBundles: conflicts, FirstConflictPoint: *firstConflict}
				}

				return e.allocateBundleToReg(bundle, reg)
			}

			if hit.Key.Less(key) {
				// This occupant lies entirely before the current bundle
				// range (it belongs to an earlier gap): skip past it and
				// keep scanning for the next occupant at or after key.
				cursor = CodeRange{From: hit.Key.To, To: hit.Key.To}
				continue
			}

			if key.Less(hit.Key) {
				// The next PReg occupant starts after this bundle range
				// ends: no conflict for this range, move to the next one.
				break
			}

			// Overlap: record the conflict and advance the cursor past
			// this occupant, then keep scanning in case more than one
			// occupant overlaps this same bundle range.
			cursor = CodeRange{From: hit.Key.To, To: hit.Key.To}

			if hit.LR.Invalid() {
				// A fixed reservation: this PReg is not evictable here.
				return AllocRegResult{
					Kind:              AllocRegConflictWithFixed,
					MaxConflictWeight: maxConflictWeight,
					ConflictPoint:     hit.Key.From,
				}
			}

			conflictBundle := e.ranges[hit.LR.Index()].Bundle
			if !conflictSet.Contains(conflictBundle) {
				conflictSet.Add(conflictBundle)
				conflicts = append(conflicts, conflictBundle)

				if w := e.bundles[conflictBundle.Index()].CachedSpillWeight(); w > maxConflictWeight {
					maxConflictWeight = w
				}

				if maxAllowableCost != nil && maxConflictWeight > *maxAllowableCost {
					return AllocRegResult{Kind: AllocRegConflictHighCost}
				}
			}

			if firstConflict == nil {
				p := ProgPoint(maxUint32(uint32(hit.Key.From), uint32(key.From)))
				firstConflict = &p
			}
		}
	}

	if len(conflicts) > 0 {
		return AllocRegResult{Kind: AllocRegConflict, ConflictBundles: conflicts, FirstConflictPoint: *firstConflict}
	}

	return e.allocateBundleToReg(bundle, reg)
}

// allocateBundleToReg commits bundle to reg: records the Allocation and
// inserts every range into reg's allocation map (spec.md §4.3
// "Allocated" side effect).
func (e *Env) allocateBundleToReg(bundle LiveBundleIndex, reg PRegIndex) AllocRegResult {
	p := PReg{RegIndex: int32(reg), Class: e.pregs[reg.Index()].Class}
	alloc := AllocationReg(p)
	e.bundles[bundle.Index()].Allocation = alloc

	for _, entry := range e.bundles[bundle.Index()].Ranges {
		e.pregs[reg.Index()].Allocations.Insert(entry.Range, entry.Index)
	}

	return AllocRegResult{Kind: AllocRegAllocated, Allocation: alloc}
}

func maxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}

	return b
}
