// Package regalloc implements the core allocation loop of a
// backtracking, priority-driven register allocator in the IonMonkey /
// regalloc2 lineage: given live ranges already grouped into bundles, it
// decides per bundle whether to assign a physical register, evict
// conflicting bundles, split and requeue, or send the bundle to the
// stack, and finally emits stackmaps for reference-typed values.
//
// Liveness analysis, CFG analysis, move insertion, spill-slot
// assignment, diagnostics, serialization, a checker, and a CLI are all
// deliberately out of scope here; this package consumes them only
// through the Function, CFGInfo and MachineEnv contracts in
// external.go.
package regalloc

import "fmt"

// Env owns every arena and drives the allocation loop. It is the
// exclusive owner of all mutable state for the duration of one
// ProcessBundles call (spec.md §5): no operation blocks, yields, or
// touches another Env.
type Env struct {
	Func    Function
	CFG     *CFGInfo
	Machine *MachineEnv

	vregs     []*VRegData
	pregs     []*PhysReg
	ranges    []*LiveRange
	bundles   []*LiveBundle
	spillsets []*SpillSet

	allocationQueue *AllocationQueue
	spilledBundles  []LiveBundleIndex
	safepointSlots  []SafepointSlot

	// safepointsPerVReg maps a VRegIndex to the instructions at which a
	// GC safepoint occurs while that VReg is live (spec.md §4.8). It is
	// populated by the out-of-scope liveness analysis and handed in via
	// SetSafepoints.
	safepointsPerVReg map[VRegIndex][]Inst

	Stats Stats
}

// NewEnv constructs an Env over the given external contracts and the
// given number of physical registers (indexed 0..numPRegs-1, matching
// MachineEnv's PReg.Index() space).
func NewEnv(fn Function, cfg *CFGInfo, machine *MachineEnv, numPRegs int) *Env {
	pregs := make([]*PhysReg, numPRegs)
	for i := range pregs {
		pregs[i] = &PhysReg{Allocations: NewPRegAllocMap()}
	}

	return &Env{
		Func:              fn,
		CFG:               cfg,
		Machine:           machine,
		pregs:             pregs,
		allocationQueue:   NewAllocationQueue(),
		safepointsPerVReg: make(map[VRegIndex][]Inst),
	}
}

// ConfigurePReg registers one physical register's class and stack-ness.
// Callers populate every PReg referenced anywhere in the bundles/uses
// they build before calling ProcessBundles.
func (e *Env) ConfigurePReg(p PReg, isStack bool) {
	e.pregs[p.Index()].Class = p.Class
	e.pregs[p.Index()].IsStack = isStack
}

// CreateVReg registers a new VReg and returns its dense index. v.Index()
// must equal the returned index (callers choose VReg.RegIndex
// themselves, typically 0..N-1).
func (e *Env) CreateVReg(v VReg, isRef bool) VRegIndex {
	idx := v.Index()
	for int(idx) >= len(e.vregs) {
		e.vregs = append(e.vregs, nil)
	}

	e.vregs[idx.Index()] = &VRegData{Class: v.Class, IsRef: isRef}

	return idx
}

// CreateLiveRange allocates a new LiveRange for vreg and returns its
// handle. Exported so that the (out-of-scope) liveness analysis feeding
// this package can build the initial bundles; split-and-requeue uses the
// unexported createLiveRange directly since it runs inside the package.
func (e *Env) CreateLiveRange(vreg VRegIndex, r CodeRange, uses []Use) LiveRangeIndex {
	idx := e.createLiveRange(r)
	lr := e.ranges[idx.Index()]
	lr.VReg = vreg
	lr.Uses = uses
	e.recomputeRangeProperties(idx)

	e.vregs[vreg.Index()].Ranges = append(e.vregs[vreg.Index()].Ranges, LiveRangeListEntry{Range: r, Index: idx})

	return idx
}

// CreateBundle allocates a new LiveBundle made of the given ranges
// (already sorted, non-overlapping) sharing spillset ss, assigns each
// range's Bundle back-pointer, recomputes its cached properties, and
// enqueues it. Exported for the same reason as CreateLiveRange.
func (e *Env) CreateBundle(ss SpillSetIndex, ranges []LiveRangeListEntry, hint PReg) LiveBundleIndex {
	idx := e.createBundle()
	b := e.bundles[idx.Index()]
	b.Spillset = ss
	b.Ranges = ranges

	for _, entry := range ranges {
		e.ranges[entry.Index.Index()].Bundle = idx
	}

	e.recomputeBundleProperties(idx)
	e.allocationQueue.Insert(idx, int(b.Prio), hint)

	return idx
}

// CreateSpillSet registers a new SpillSet and returns its handle.
func (e *Env) CreateSpillSet(class RegClass, hint PReg) SpillSetIndex {
	idx := SpillSetIndex(len(e.spillsets))
	e.spillsets = append(e.spillsets, &SpillSet{
		Class:       class,
		RegHint:     hint,
		SpillBundle: InvalidLiveBundleIndex,
	})

	return idx
}

// SetSafepoints records, for vreg, the instructions at which it is live
// across a GC safepoint (spec.md §4.8). Called by the out-of-scope
// liveness analysis before ProcessBundles.
func (e *Env) SetSafepoints(vreg VRegIndex, insts []Inst) {
	e.safepointsPerVReg[vreg] = insts
}

// SpilledBundles returns the bundles deferred to the (out-of-scope)
// stack phase: bundles whose requirement was Requirement::Any and no
// spill bundle yet existed for their spillset (spec.md §4.7 step 3),
// plus every spill bundle created while trimming split margins.
func (e *Env) SpilledBundles() []LiveBundleIndex {
	return e.spilledBundles
}

// SpillSetRequired reports whether ss's Required flag was set (spec.md
// §4.7 step 3): a downstream spill-slot-assignment pass must reserve a
// slot for it.
func (e *Env) SpillSetRequired(ss SpillSetIndex) bool {
	return e.spillsets[ss.Index()].Required
}

// BundleAllocation returns the final Allocation recorded for a bundle.
func (e *Env) BundleAllocation(bundle LiveBundleIndex) Allocation {
	return e.bundles[bundle.Index()].Allocation
}

// AssignAllocation records alloc as bundle's final placement. It exists
// for the out-of-scope spill-slot-assignment pass (spec.md §4.7 step 3,
// §6): ProcessBundles leaves every bundle in SpilledBundles() with
// Allocation still AllocNone, and the enclosing compiler is the one that
// knows how stack slots are laid out, so it needs a way to write the
// slot it picked back onto the bundle before ComputeStackmaps runs.
func (e *Env) AssignAllocation(bundle LiveBundleIndex, alloc Allocation) {
	e.bundles[bundle.Index()].Allocation = alloc
}

// VRegLiveRanges returns the live ranges recorded for vreg, in the
// lazy, append-only order described by spec.md §9 "Lazy VReg range
// list" (not necessarily sorted by From if the vreg was split).
func (e *Env) VRegLiveRanges(vreg VRegIndex) []LiveRangeListEntry {
	return e.vregs[vreg.Index()].Ranges
}

// RangeBundle returns the bundle a live range currently belongs to,
// following any split-and-requeue surgery that moved it since it was
// created. Exported alongside AssignAllocation so a caller can resolve
// a VReg's final location per range without reaching into the core's
// arenas directly.
func (e *Env) RangeBundle(lr LiveRangeIndex) LiveBundleIndex {
	return e.ranges[lr.Index()].Bundle
}

// getAllocForRange returns the allocation that applies to one LiveRange:
// its owning bundle's Allocation, if the bundle itself was assigned a
// register or is otherwise resolved; this is used by the stackmap
// emitter (spec.md §4.8), which runs after every bundle has either a
// register or (via its required spillset) a resolved stack slot.
func (e *Env) getAllocForRange(lr LiveRangeIndex) Allocation {
	bundle := e.ranges[lr.Index()].Bundle
	if bundle.Invalid() {
		return Allocation{}
	}

	return e.bundles[bundle.Index()].Allocation
}

// ProcessBundles drains the allocation queue exactly once, as the main
// entry point of the core (spec.md §3 "Lifecycles", §5). It terminates
// when the queue is empty, or returns ErrTooManyLiveRegs the first time
// that terminal condition is detected (spec.md §7), or ErrAllocatorStalled
// if one bundle exceeds the 100*NumInsts() retry cap.
func (e *Env) ProcessBundles() error {
	for {
		bundle, hint, ok := e.allocationQueue.Pop()
		if !ok {
			break
		}

		e.Stats.ProcessBundleCount++

		if err := e.processBundle(bundle, hint); err != nil {
			return err
		}
	}

	e.Stats.FinalLiveRangeCount = len(e.ranges)
	e.Stats.FinalBundleCount = len(e.bundles)
	e.Stats.SpillBundleCount = len(e.spilledBundles)

	return nil
}

// SafepointSlot is one (ProgPoint, SpillSlot) pair emitted by
// ComputeStackmaps.
type SafepointSlot struct {
	Point ProgPoint
	Slot  SpillSlot
}

func (s SafepointSlot) String() string {
	return fmt.Sprintf("%s -> slot%d", s.Point, s.Slot)
}

// SafepointSlots returns the final, sorted stackmap entries computed by
// ComputeStackmaps.
func (e *Env) SafepointSlots() []SafepointSlot {
	return e.safepointSlots
}
