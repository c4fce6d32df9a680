package regalloc

import (
	"errors"
	"testing"
)

// TestTrivialAllocate covers the first scenario of spec.md §8: a single
// bundle with no conflict gets the one available register.
func TestTrivialAllocate(t *testing.T) {
	e := newTestEnv(4, 1, RegClassInt)

	b := addBundle(e, 0, RegClassInt, ProgPointAfter(0), ProgPointBefore(3), []Use{
		regUse(ProgPointAfter(0), VReg{RegIndex: 0, Class: RegClassInt}, OperandDef),
		regUse(ProgPointBefore(2), VReg{RegIndex: 0, Class: RegClassInt}, OperandUse),
	})

	if err := e.ProcessBundles(); err != nil {
		t.Fatalf("ProcessBundles: %v", err)
	}

	alloc := e.BundleAllocation(b)

	reg, ok := alloc.AsReg()
	if !ok {
		t.Fatalf("expected a register allocation, got %+v", alloc)
	}

	if reg.RegIndex != 0 {
		t.Fatalf("expected preg 0, got %d", reg.RegIndex)
	}

	if e.Stats.ProcessBundleRegSuccessCount != 1 {
		t.Fatalf("expected one reg success, got %d", e.Stats.ProcessBundleRegSuccessCount)
	}
}

// TestEvictByWeight covers spec.md §8 scenario 2: a minimal bundle
// conflicts with an already-placed normal bundle on the sole register of
// its class. A minimal bundle's spill weight always dominates a normal
// bundle's (spillweight.go), so process_bundle evicts the occupant
// rather than trying to split the unsplittable minimal bundle.
func TestEvictByWeight(t *testing.T) {
	e := newTestEnv(6, 1, RegClassInt)

	// A long-lived, low-weight bundle: one def, one use far away, so its
	// computed spill weight stays well under MinimalBundleSpillWeight.
	victim := addBundle(e, 0, RegClassInt, ProgPointAfter(0), ProgPointBefore(5), []Use{
		regUse(ProgPointAfter(0), VReg{RegIndex: 0, Class: RegClassInt}, OperandDef),
		regUse(ProgPointBefore(4), VReg{RegIndex: 0, Class: RegClassInt}, OperandUse),
	})

	// A minimal bundle (spans one instruction) whose range overlaps the
	// victim's, forcing a conflict on the only preg.
	minimal := addBundle(e, 1, RegClassInt, ProgPointAfter(2), ProgPointBefore(3), []Use{
		regUse(ProgPointAfter(2), VReg{RegIndex: 1, Class: RegClassInt}, OperandDef),
	})

	if err := e.ProcessBundles(); err != nil {
		t.Fatalf("ProcessBundles: %v", err)
	}

	if !e.minimalBundle(minimal) {
		t.Fatalf("expected bundle to be classified minimal")
	}

	if e.Stats.EvictBundleEvents == 0 {
		t.Fatalf("expected at least one eviction, got none")
	}

	minAlloc := e.BundleAllocation(minimal)
	if _, ok := minAlloc.AsReg(); !ok {
		t.Fatalf("expected the minimal bundle to end up in a register, got %+v", minAlloc)
	}

	// The victim is requeued by the eviction and later split around the
	// minimal bundle; where its pieces end up is not checked here.
	_ = victim
}

// TestTieChoosesSplit covers spec.md §8 scenario 3: two structurally
// identical, non-minimal bundles contend for the same single register.
// Their spill weights tie, and process_bundle's split condition
// (ourWeight <= bestEvictCost) favors splitting over evicting on a tie.
func TestTieChoosesSplit(t *testing.T) {
	e := newTestEnv(6, 1, RegClassInt)

	mkUses := func(idx int32) []Use {
		v := VReg{RegIndex: idx, Class: RegClassInt}
		return []Use{
			regUse(ProgPointAfter(0), v, OperandDef),
			regUse(ProgPointBefore(3), v, OperandUse),
		}
	}

	first := addBundle(e, 0, RegClassInt, ProgPointAfter(0), ProgPointBefore(4), mkUses(0))
	second := addBundle(e, 1, RegClassInt, ProgPointAfter(0), ProgPointBefore(4), mkUses(1))

	// Drain just the first entry (the earlier-inserted, identical-prio
	// bundle wins queue order), leaving it holding the register.
	bundle, hint, ok := e.allocationQueue.Pop()
	if !ok || bundle != first {
		t.Fatalf("expected to pop the first bundle first, got %d ok=%v", bundle, ok)
	}

	if err := e.processBundle(bundle, hint); err != nil {
		t.Fatalf("processBundle(first): %v", err)
	}

	if _, ok := e.BundleAllocation(first).AsReg(); !ok {
		t.Fatalf("expected first bundle allocated to a register")
	}

	bundle, hint, ok = e.allocationQueue.Pop()
	if !ok || bundle != second {
		t.Fatalf("expected to pop the second bundle next, got %d ok=%v", bundle, ok)
	}

	splitsBefore := e.Stats.Splits
	evictsBefore := e.Stats.EvictBundleEvents

	if err := e.processBundle(bundle, hint); err != nil {
		t.Fatalf("processBundle(second): %v", err)
	}

	if e.Stats.Splits != splitsBefore+1 {
		t.Fatalf("expected exactly one split, got %d -> %d", splitsBefore, e.Stats.Splits)
	}

	if e.Stats.EvictBundleEvents != evictsBefore {
		t.Fatalf("expected no eviction on the tie, got %d -> %d", evictsBefore, e.Stats.EvictBundleEvents)
	}

	if alloc := e.BundleAllocation(second); alloc.Kind != AllocNone {
		t.Fatalf("expected the split original bundle to still be unresolved, got %+v", alloc)
	}
}

// TestFixedReservationForcesSplit covers spec.md §8 scenario 4: a fixed
// reservation (e.g. a call clobber) occupies the sole register over a
// sub-span of a normal bundle. A fixed occupant is never evictable
// (tryalloc.go AllocRegConflictWithFixed), so process_bundle must split
// the bundle around it instead.
func TestFixedReservationForcesSplit(t *testing.T) {
	e := newTestEnv(6, 1, RegClassInt)

	reserveFixed(e, 0, CodeRange{From: ProgPointBefore(2), To: ProgPointAfter(2)})

	v := VReg{RegIndex: 0, Class: RegClassInt}
	addBundle(e, 0, RegClassInt, ProgPointAfter(0), ProgPointBefore(5), []Use{
		regUse(ProgPointAfter(0), v, OperandDef),
		regUse(ProgPointBefore(4), v, OperandUse),
	})

	if err := e.ProcessBundles(); err != nil {
		t.Fatalf("ProcessBundles: %v", err)
	}

	if e.Stats.Splits == 0 {
		t.Fatalf("expected the bundle to be split around the fixed reservation")
	}

	if e.Stats.EvictBundleEvents != 0 {
		t.Fatalf("a fixed reservation must never be evicted, got %d eviction events", e.Stats.EvictBundleEvents)
	}
}

// TestMinimalSaturationTooManyLiveRegs covers spec.md §8 scenario 5: the
// sole register of a class is already consumed by a fixed reservation
// spanning a minimal bundle's entire range, so there is provably no
// eviction that could make room. ProcessBundles must return
// ErrTooManyLiveRegs rather than loop or panic.
func TestMinimalSaturationTooManyLiveRegs(t *testing.T) {
	e := newTestEnv(3, 1, RegClassInt)

	reserveFixed(e, 0, CodeRange{From: ProgPointAfter(0), To: ProgPointBefore(1)})

	v := VReg{RegIndex: 0, Class: RegClassInt}
	addBundle(e, 0, RegClassInt, ProgPointAfter(0), ProgPointBefore(1), []Use{
		regUse(ProgPointAfter(0), v, OperandDef),
	})

	err := e.ProcessBundles()
	if err == nil {
		t.Fatalf("expected ErrTooManyLiveRegs, got nil")
	}

	var allocErr *AllocError
	if !errors.As(err, &allocErr) {
		t.Fatalf("expected *AllocError, got %T: %v", err, err)
	}

	if allocErr.Code != "TOO_MANY_LIVE_REGS" {
		t.Fatalf("expected TOO_MANY_LIVE_REGS, got %s", allocErr.Code)
	}

	if allocErr.Category != CategoryCapacity {
		t.Fatalf("expected CategoryCapacity, got %s", allocErr.Category)
	}
}

// TestStackmapScenario covers spec.md §8 scenario 6: a reference-typed
// value with no register preference (ConstraintAny on every use) is
// deferred straight to the stack phase; once the caller assigns it a
// slot and ComputeStackmaps runs, the safepoint resolves to that slot.
func TestStackmapScenario(t *testing.T) {
	fn := &fakeFunction{numInsts: 3}
	cfg := flatCFG(3)
	machine := testMachine(RegClassInt, 1)

	env := NewEnv(fn, cfg, machine, 1)
	env.ConfigurePReg(PReg{RegIndex: 0, Class: RegClassInt}, false)

	ptr := VReg{RegIndex: 0, Class: RegClassInt}
	vidx := env.CreateVReg(ptr, true)
	fn.refs = []VReg{ptr}

	r := CodeRange{From: ProgPointAfter(0), To: ProgPointAfter(2)}
	lr := env.CreateLiveRange(vidx, r, []Use{
		anyUse(ProgPointAfter(0), ptr, OperandDef),
		anyUse(ProgPointBefore(2), ptr, OperandUse),
	})

	ss := env.CreateSpillSet(RegClassInt, InvalidPReg)
	bundle := env.CreateBundle(ss, []LiveRangeListEntry{{Range: r, Index: lr}}, InvalidPReg)

	env.SetSafepoints(vidx, []Inst{1})

	if err := env.ProcessBundles(); err != nil {
		t.Fatalf("ProcessBundles: %v", err)
	}

	spilled := env.SpilledBundles()
	if len(spilled) != 1 || spilled[0] != bundle {
		t.Fatalf("expected the bundle deferred to the stack phase, got %+v", spilled)
	}

	if alloc := env.BundleAllocation(bundle); alloc.Kind != AllocNone {
		t.Fatalf("expected no allocation yet, got %+v", alloc)
	}

	env.AssignAllocation(bundle, AllocationStack(SpillSlot(7)))
	env.ComputeStackmaps()

	slots := env.SafepointSlots()
	if len(slots) != 1 {
		t.Fatalf("expected exactly one safepoint slot, got %d", len(slots))
	}

	if slots[0].Point != ProgPointBefore(1) || slots[0].Slot != 7 {
		t.Fatalf("unexpected safepoint slot: %+v", slots[0])
	}
}
