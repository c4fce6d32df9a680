package regalloc

import "testing"

// TestComputeStackmapsNoRefVRegs covers the trivial case: a function with
// no reference-typed VRegs produces no safepoint slots at all, and must
// not panic even though no allocation has run.
func TestComputeStackmapsNoRefVRegs(t *testing.T) {
	fn := &fakeFunction{numInsts: 2}
	env := NewEnv(fn, flatCFG(2), testMachine(RegClassInt, 1), 1)

	env.ComputeStackmaps()

	if got := len(env.SafepointSlots()); got != 0 {
		t.Fatalf("expected no safepoint slots, got %d", got)
	}
}

// TestComputeStackmapsMultipleRefVRegsSorted covers spec.md §4.8's
// ordering guarantee: safepoint slots from two independent ref-typed
// VRegs come back sorted by ProgPoint first, then by slot.
func TestComputeStackmapsMultipleRefVRegsSorted(t *testing.T) {
	fn := &fakeFunction{numInsts: 4}
	env := NewEnv(fn, flatCFG(4), testMachine(RegClassInt, 1), 1)
	env.ConfigurePReg(PReg{RegIndex: 0, Class: RegClassInt}, false)

	ptrA := VReg{RegIndex: 0, Class: RegClassInt}
	ptrB := VReg{RegIndex: 1, Class: RegClassInt}
	fn.refs = []VReg{ptrA, ptrB}

	vidxA := env.CreateVReg(ptrA, true)
	vidxB := env.CreateVReg(ptrB, true)

	rA := CodeRange{From: ProgPointAfter(0), To: ProgPointAfter(3)}
	lrA := env.CreateLiveRange(vidxA, rA, []Use{anyUse(ProgPointAfter(0), ptrA, OperandDef)})
	ssA := env.CreateSpillSet(RegClassInt, InvalidPReg)
	bundleA := env.CreateBundle(ssA, []LiveRangeListEntry{{Range: rA, Index: lrA}}, InvalidPReg)

	rB := CodeRange{From: ProgPointAfter(0), To: ProgPointAfter(3)}
	lrB := env.CreateLiveRange(vidxB, rB, []Use{anyUse(ProgPointAfter(0), ptrB, OperandDef)})
	ssB := env.CreateSpillSet(RegClassInt, InvalidPReg)
	bundleB := env.CreateBundle(ssB, []LiveRangeListEntry{{Range: rB, Index: lrB}}, InvalidPReg)

	env.SetSafepoints(vidxA, []Inst{1, 2})
	env.SetSafepoints(vidxB, []Inst{1})

	env.AssignAllocation(bundleA, AllocationStack(SpillSlot(3)))
	env.AssignAllocation(bundleB, AllocationStack(SpillSlot(1)))

	env.ComputeStackmaps()

	slots := env.SafepointSlots()
	if len(slots) != 3 {
		t.Fatalf("expected 3 safepoint slots, got %d: %+v", len(slots), slots)
	}

	// At Inst 1, both A (slot 3) and B (slot 1) are live: B's lower slot
	// must sort first.
	if slots[0].Point != ProgPointBefore(1) || slots[0].Slot != 1 {
		t.Fatalf("unexpected first slot: %+v", slots[0])
	}

	if slots[1].Point != ProgPointBefore(1) || slots[1].Slot != 3 {
		t.Fatalf("unexpected second slot: %+v", slots[1])
	}

	if slots[2].Point != ProgPointBefore(2) || slots[2].Slot != 3 {
		t.Fatalf("unexpected third slot: %+v", slots[2])
	}
}
