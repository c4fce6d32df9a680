package regalloc

// LiveRangeFlag is a bitset of per-range sticky properties.
type LiveRangeFlag uint8

const (
	// LiveRangeStartsAtDef marks a range whose first use is a Def. It is
	// monotonic: once set it is never cleared, even by splitting or
	// trimming (spec.md §3 invariant 5, §4.5, §4.6). This keeps a def
	// anchored at the front of whatever range it ends up in, so that
	// trimming can never strand a definition.
	LiveRangeStartsAtDef LiveRangeFlag = 1 << iota
)

// LiveRange is a maximal interval over which one VReg must hold its
// value, plus the sorted list of Operand occurrences inside it (spec.md
// §3).
type LiveRange struct {
	Range  CodeRange
	VReg   VRegIndex
	Bundle LiveBundleIndex
	Uses   []Use

	usesSpillWeight SpillWeight
	flags           LiveRangeFlag
}

// SetFlag sets (and never clears) a LiveRangeFlag.
func (r *LiveRange) SetFlag(f LiveRangeFlag) { r.flags |= f }

// HasFlag reports whether f is set.
func (r *LiveRange) HasFlag(f LiveRangeFlag) bool { return r.flags&f != 0 }

// UsesSpillWeight returns the cached sum of this range's use weights,
// populated by recomputeRangeProperties.
func (r *LiveRange) UsesSpillWeight() SpillWeight { return r.usesSpillWeight }

// LiveRangeListEntry is one (range, handle) pair inside a LiveBundle's or
// VReg's range list. The range is duplicated here (rather than looked up
// through the handle every time) so that bundle-range iteration doesn't
// need an arena lookup per step, matching the donor's LiveRangeListEntry.
type LiveRangeListEntry struct {
	Range CodeRange
	Index LiveRangeIndex
}

// recomputeRangeProperties recomputes a range's cached uses-spill-weight
// and, if its first use is a Def, sets StartsAtDef (spec.md §4.5).
func (e *Env) recomputeRangeProperties(lr LiveRangeIndex) {
	r := e.ranges[lr.Index()]

	var w SpillWeight
	for _, u := range r.Uses {
		w += SpillWeight(u.Weight)
	}

	r.usesSpillWeight = w

	if len(r.Uses) > 0 && r.Uses[0].Operand.Kind == OperandDef {
		r.SetFlag(LiveRangeStartsAtDef)
	}
}

// Index is a convenience accessor mirroring PReg/VReg's Index() so
// handles can be used uniformly as slice subscripts.
func (l LiveRangeIndex) Index() int { return int(l) }

// Index mirrors LiveRangeIndex.Index for VRegIndex.
func (v VRegIndex) Index() int { return int(v) }

// Index mirrors LiveRangeIndex.Index for LiveBundleIndex.
func (b LiveBundleIndex) Index() int { return int(b) }

// Index mirrors LiveRangeIndex.Index for PRegIndex.
func (p PRegIndex) Index() int { return int(p) }

// Index mirrors LiveRangeIndex.Index for SpillSetIndex.
func (s SpillSetIndex) Index() int { return int(s) }

// Index mirrors LiveRangeIndex.Index for BlockIndex.
func (b BlockIndex) Index() int { return int(b) }
