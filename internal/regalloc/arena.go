package regalloc

// The core never holds a pointer into another entity's arena across a
// mutation boundary; every cross-entity reference is a plain numeric
// index. This removes the aliasing hazards that would otherwise plague
// split-and-requeue, which mutates several arenas in the same call
// (spec.md §5, §9 "Arena + handle").

// VRegIndex indexes into Env.vregs.
type VRegIndex int32

// Invalid reports whether this is the sentinel "no vreg" value.
func (v VRegIndex) Invalid() bool { return v < 0 }

// InvalidVRegIndex is the sentinel value for "no virtual register".
const InvalidVRegIndex VRegIndex = -1

// PRegIndex indexes into Env.pregs and MachineEnv's per-class register
// lists. It is numerically identical to PReg.Index() for every PReg
// actually registered with an Env.
type PRegIndex int32

// Invalid reports whether this is the sentinel "no preg" value.
func (p PRegIndex) Invalid() bool { return p < 0 }

// InvalidPRegIndex is the sentinel value for "no physical register".
const InvalidPRegIndex PRegIndex = -1

// LiveRangeIndex indexes into Env.ranges. The sentinel invalid value,
// stored as the payload of a PReg allocation-map entry, denotes a fixed
// reservation (e.g. a call clobber) rather than a bundle's range; such an
// entry may never be evicted (spec.md §3 "PhysReg record").
type LiveRangeIndex int32

// Invalid reports whether this is the sentinel "no live range" / "fixed
// reservation" value.
func (l LiveRangeIndex) Invalid() bool { return l < 0 }

// InvalidLiveRangeIndex is the sentinel value used both for "no live
// range" and, in a PReg allocation map, for a fixed reservation.
const InvalidLiveRangeIndex LiveRangeIndex = -1

// LiveBundleIndex indexes into Env.bundles.
type LiveBundleIndex int32

// Invalid reports whether this is the sentinel "no bundle" value.
func (b LiveBundleIndex) Invalid() bool { return b < 0 }

// InvalidLiveBundleIndex is the sentinel value for "no bundle".
const InvalidLiveBundleIndex LiveBundleIndex = -1

// SpillSetIndex indexes into Env.spillsets.
type SpillSetIndex int32

// Invalid reports whether this is the sentinel "no spillset" value.
func (s SpillSetIndex) Invalid() bool { return s < 0 }

// InvalidSpillSetIndex is the sentinel value for "no spillset".
const InvalidSpillSetIndex SpillSetIndex = -1

// BlockIndex identifies a basic block by position in the function's
// reverse postorder (or whatever order CFGInfo was built in).
type BlockIndex int32

// createLiveRange appends a new, empty LiveRange to the arena and returns
// its handle. Bundles and ranges are never freed: the arena only grows
// (spec.md §3 "Lifecycles").
func (e *Env) createLiveRange(r CodeRange) LiveRangeIndex {
	idx := LiveRangeIndex(len(e.ranges))
	e.ranges = append(e.ranges, &LiveRange{
		Range: r,
		VReg:  InvalidVRegIndex,
		Bundle: InvalidLiveBundleIndex,
	})

	return idx
}

// createBundle appends a new, empty LiveBundle to the arena and returns
// its handle.
func (e *Env) createBundle() LiveBundleIndex {
	idx := LiveBundleIndex(len(e.bundles))
	e.bundles = append(e.bundles, &LiveBundle{
		Spillset:   InvalidSpillSetIndex,
		Allocation: Allocation{},
	})

	return idx
}
