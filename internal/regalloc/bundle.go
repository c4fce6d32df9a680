package regalloc

// LiveBundle is a set of non-overlapping LiveRanges allocated together
// (spec.md §3, GLOSSARY). Ranges are pairwise non-overlapping and sorted
// by From.
type LiveBundle struct {
	Ranges     []LiveRangeListEntry
	Spillset   SpillSetIndex
	Allocation Allocation
	Prio       uint32

	cachedSpillWeight uint32
	cachedMinimal     bool
	cachedFixed       bool
	cachedStack       bool
}

// CachedSpillWeight returns the spill weight computed by the last call
// to recomputeBundleProperties.
func (b *LiveBundle) CachedSpillWeight() uint32 { return b.cachedSpillWeight }

// setCachedSpillWeightAndProps stores the result of one
// recomputeBundleProperties pass.
func (b *LiveBundle) setCachedSpillWeightAndProps(weight uint32, minimal, fixed, stack bool) {
	b.cachedSpillWeight = weight
	b.cachedMinimal = minimal
	b.cachedFixed = fixed
	b.cachedStack = stack
}

// start returns the ProgPoint at which this bundle's first range begins.
func (b *LiveBundle) start() ProgPoint { return b.Ranges[0].Range.From }

// end returns the ProgPoint at which this bundle's last range ends.
func (b *LiveBundle) end() ProgPoint { return b.Ranges[len(b.Ranges)-1].Range.To }

// minimalBundle reports whether bundle is minimal: its cached flag from
// the last recomputeBundleProperties call (spec.md §4.5, §8 — "a minimal
// bundle is never split").
func (e *Env) minimalBundle(bundle LiveBundleIndex) bool {
	return e.bundles[bundle.Index()].cachedMinimal
}

// bundleSpillWeight returns a bundle's cached spill weight.
func (e *Env) bundleSpillWeight(bundle LiveBundleIndex) uint32 {
	return e.bundles[bundle.Index()].cachedSpillWeight
}

// maximumSpillWeightInBundleSet returns the maximum cached spill weight
// across a set of bundles, used as the conservative upper bound on
// eviction cost (spec.md §3 invariant 4).
func (e *Env) maximumSpillWeightInBundleSet(bundles []LiveBundleIndex) uint32 {
	var m uint32
	for _, b := range bundles {
		if w := e.bundles[b.Index()].cachedSpillWeight; w > m {
			m = w
		}
	}

	return m
}

// recomputeBundleProperties recomputes prio, minimal/fixed/stack and the
// cached spill weight for bundle (spec.md §4.5). It is idempotent
// (spec.md §8): calling it twice in a row without intervening mutation
// yields the same cached values.
func (e *Env) recomputeBundleProperties(bundle LiveBundleIndex) {
	b := e.bundles[bundle.Index()]
	b.Prio = e.computeBundlePrio(bundle)

	firstRangeIdx := b.Ranges[0].Index
	firstRange := e.ranges[firstRangeIdx.Index()]

	var minimal, fixed, stack bool

	if firstRange.VReg.Invalid() {
		// A range with no VReg is a fixed reservation masquerading as a
		// bundle (never actually queued in practice, but defensively
		// treated as minimal+fixed like the donor).
		minimal = true
		fixed = true
	} else {
		for _, u := range firstRange.Uses {
			if u.Operand.Constraint.Kind == ConstraintFixedReg {
				fixed = true
			}

			if u.Operand.Constraint.Kind == ConstraintStack {
				stack = true
			}

			if fixed && stack {
				break
			}
		}

		bundleStart := b.start()
		bundleEnd := b.end()
		// Minimal iff the bundle spans at most one instruction: its
		// start and the instruction just before its end point are the
		// same instruction. A bundle could span one ProgPoint
		// (X.Before..X.After) or two (X.Before..X+1.Before); both are
		// minimal.
		minimal = bundleStart.Inst() == bundleEnd.Prev().Inst()
	}

	var spillWeight uint32

	switch {
	case minimal && fixed:
		spillWeight = MinimalFixedBundleSpillWeight
	case minimal && !fixed:
		spillWeight = MinimalBundleSpillWeight
	default:
		var total SpillWeight
		for _, entry := range b.Ranges {
			total += e.ranges[entry.Index.Index()].UsesSpillWeight()
		}

		if b.Prio > 0 {
			finalWeight := total.ToUint32() / b.Prio
			if finalWeight > BundleMaxNormalSpillWeight {
				finalWeight = BundleMaxNormalSpillWeight
			}

			spillWeight = finalWeight
		} else {
			spillWeight = 0
		}
	}

	b.setCachedSpillWeightAndProps(spillWeight, minimal, fixed, stack)
}

// computeBundlePrio derives a queue priority from the bundle's total live
// length in ProgPoints: longer-lived bundles are processed first, which
// tends to place the hardest-to-place values before the registers around
// them fill up.
func (e *Env) computeBundlePrio(bundle LiveBundleIndex) uint32 {
	b := e.bundles[bundle.Index()]

	var total uint32
	for _, entry := range b.Ranges {
		total += uint32(entry.Range.To) - uint32(entry.Range.From)
	}

	return total
}
