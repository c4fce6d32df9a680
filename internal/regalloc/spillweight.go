package regalloc

// SpillWeight is an accumulator of per-use weights. It is kept as a
// plain float32 (rather than bit-punned into a u32 as upstream
// regalloc2 does for its no_std build) since this port always has the
// Go float type available.
type SpillWeight float32

// ZeroSpillWeight is the additive identity.
const ZeroSpillWeight SpillWeight = 0

// ToUint32 truncates the accumulated weight to an integer spill-weight
// value, as used in bundle priority and conflict-cost comparisons.
func (w SpillWeight) ToUint32() uint32 {
	if w < 0 {
		return 0
	}

	return uint32(w)
}

// Spill-weight constants from spec.md §4.5 / §6. A minimal bundle is
// never split (spec.md §8), so it always outweighs every splittable
// bundle; a minimal+fixed bundle (one pinned to a specific register)
// outweighs even that, since evicting it cannot help (the fixed use will
// immediately re-conflict). Ordering:
//
//	MINIMAL_FIXED_BUNDLE_SPILL_WEIGHT > MINIMAL_BUNDLE_SPILL_WEIGHT > BUNDLE_MAX_NORMAL_SPILL_WEIGHT >= 0
const (
	MinimalFixedBundleSpillWeight uint32 = 2_000_000
	MinimalBundleSpillWeight      uint32 = 1_000_000
	BundleMaxNormalSpillWeight    uint32 = 1_000
)

// spillWeightFromConstraint estimates the cost of forcing one operand
// with the given constraint into a register, at the given approximate
// loop depth. It is the same estimator the original uses for
// move_cost in the split-vs-evict decision (spec.md §4.7 step 4): one
// register-to-register move costs more the deeper the loop it sits in,
// and a def generally costs a bit more to force than a use since it
// also blocks reuse of the source location.
func spillWeightFromConstraint(c OperandConstraintKind, loopDepth int, isDef bool) SpillWeight {
	base := SpillWeight(1)

	switch c {
	case ConstraintAny:
		base = 1
	case ConstraintReg, ConstraintFixedReg, ConstraintReuse:
		base = 2
	case ConstraintStack, ConstraintFixedStack:
		base = 1
	}

	if isDef {
		base += 1
	}

	// Uses nested ever deeper inside loops are exponentially more costly
	// to re-materialize via a move, mirroring the loop-depth weighting
	// the original allocator applies when ranking split candidates.
	for i := 0; i < loopDepth && i < 8; i++ {
		base *= 4
	}

	return base
}
