package regalloc

// fakeFunction is a minimal Function for tests that don't need a real
// reference-type set.
type fakeFunction struct {
	numInsts int
	refs     []VReg
}

func (f *fakeFunction) NumInsts() int        { return f.numInsts }
func (f *fakeFunction) RefTypeVRegs() []VReg { return f.refs }

// flatCFG places every instruction of a numInsts-long program into one
// block at loop depth 0 — enough for every test that doesn't exercise
// loop-aware split hoisting directly.
func flatCFG(numInsts int) *CFGInfo {
	insnBlock := make([]BlockIndex, numInsts)

	return &CFGInfo{
		InsnBlock:       insnBlock,
		ApproxLoopDepth: []uint32{0},
		BlockEntry:      []ProgPoint{ProgPointBefore(Inst(0))},
	}
}

// testMachine builds a MachineEnv with numRegs preferred (and no
// non-preferred) registers of one class.
func testMachine(class RegClass, numRegs int) *MachineEnv {
	env := &MachineEnv{}

	for i := 0; i < numRegs; i++ {
		env.PreferredRegsByClass[class] = append(env.PreferredRegsByClass[class], PReg{RegIndex: int32(i), Class: class})
	}

	return env
}

// newTestEnv wires together a fakeFunction, a flat CFG and a
// single-class register file of the requested size.
func newTestEnv(numInsts, numRegs int, class RegClass) *Env {
	fn := &fakeFunction{numInsts: numInsts}
	cfg := flatCFG(numInsts)
	machine := testMachine(class, numRegs)

	env := NewEnv(fn, cfg, machine, numRegs)

	for i := 0; i < numRegs; i++ {
		env.ConfigurePReg(PReg{RegIndex: int32(i), Class: class}, false)
	}

	return env
}

func weightFor(kind OperandKind) uint32 {
	if kind == OperandDef {
		return 2
	}

	return 1
}

// regUse builds an ordinary register-constrained Use.
func regUse(pos ProgPoint, vreg VReg, kind OperandKind) Use {
	return Use{
		Pos:     pos,
		Operand: Operand{VReg: vreg, Kind: kind, Constraint: OperandConstraint{Kind: ConstraintReg}},
		Weight:  weightFor(kind),
	}
}

// anyUse builds a Use with no register preference, which
// compute_requirement resolves to RequirementAny (spec.md §4.7 step 3).
func anyUse(pos ProgPoint, vreg VReg, kind OperandKind) Use {
	return Use{
		Pos:     pos,
		Operand: Operand{VReg: vreg, Kind: kind, Constraint: OperandConstraint{Kind: ConstraintAny}},
		Weight:  weightFor(kind),
	}
}

// addBundle registers a new VReg with one contiguous live range over
// [from, to) and the given uses, wrapped in its own fresh bundle and
// spillset, and returns the bundle's handle.
func addBundle(e *Env, idx int32, class RegClass, from, to ProgPoint, uses []Use) LiveBundleIndex {
	vreg := VReg{RegIndex: idx, Class: class}
	vidx := e.CreateVReg(vreg, false)
	lr := e.CreateLiveRange(vidx, CodeRange{From: from, To: to}, uses)
	ss := e.CreateSpillSet(class, InvalidPReg)

	return e.CreateBundle(ss, []LiveRangeListEntry{{Range: CodeRange{From: from, To: to}, Index: lr}}, InvalidPReg)
}

// reserveFixed directly occupies reg over r with a fixed reservation
// (spec.md §3 "PhysReg record"), bypassing the queue entirely — the way
// a call-clobber or ABI-mandated register would be recorded before
// allocation starts.
func reserveFixed(e *Env, reg PRegIndex, r CodeRange) {
	e.pregs[reg.Index()].Allocations.Insert(r, InvalidLiveRangeIndex)
}
