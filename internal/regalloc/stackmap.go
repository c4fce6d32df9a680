package regalloc

import "sort"

// ComputeStackmaps walks every reference-typed VReg's ranges against its
// recorded safepoints and emits a (ProgPoint, SpillSlot) pair for each
// safepoint the VReg is live over (spec.md §4.8). Precondition: every
// range has a resolved allocation (ProcessBundles returned nil and the
// out-of-scope spill-slot assignment pass has since run); it panics if a
// ref-typed value is live at a safepoint without a stack allocation,
// since that is a correctness bug in the caller, not a recoverable
// condition (spec.md §7).
func (e *Env) ComputeStackmaps() {
	refVRegs := e.Func.RefTypeVRegs()
	if len(refVRegs) == 0 {
		return
	}

	for _, v := range refVRegs {
		vidx := v.Index()

		safepoints := make([]ProgPoint, len(e.safepointsPerVReg[vidx]))
		for i, inst := range e.safepointsPerVReg[vidx] {
			safepoints[i] = ProgPointBefore(inst)
		}

		sort.Slice(safepoints, func(i, j int) bool { return safepoints[i] < safepoints[j] })

		// The VReg's range list is maintained lazily (append-only during
		// splitting, spec.md §9); the out-of-scope post-allocation sweep
		// that normally restores From-order has not run in this
		// standalone package, so sort a local copy rather than assuming
		// e.vregs[vidx].Ranges is already ordered.
		ranges := append([]LiveRangeListEntry(nil), e.vregs[vidx].Ranges...)
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Range.From < ranges[j].Range.From })

		safepointIdx := 0
		for _, entry := range ranges {
			r := entry.Range
			alloc := e.getAllocForRange(entry.Index)

			for safepointIdx < len(safepoints) && safepoints[safepointIdx] < r.To {
				if safepoints[safepointIdx] < r.From {
					safepointIdx++
					continue
				}

				slot, ok := alloc.AsStack()
				if !ok {
					panic("regalloc: reference-typed value not in a spill slot at a safepoint")
				}

				e.safepointSlots = append(e.safepointSlots, SafepointSlot{Point: safepoints[safepointIdx], Slot: slot})
				safepointIdx++
			}
		}
	}

	sort.Slice(e.safepointSlots, func(i, j int) bool {
		if e.safepointSlots[i].Point != e.safepointSlots[j].Point {
			return e.safepointSlots[i].Point < e.safepointSlots[j].Point
		}

		return e.safepointSlots[i].Slot < e.safepointSlots[j].Slot
	})
}
