// Command ionalloc-demo exercises the register allocator end to end: it
// emits x64 assembly for a small synthetic function through the
// internal/codegen liveness bridge, then drives internal/regalloc
// directly over a tiny hand-built function to print the resulting
// stackmap for a reference-typed value.
package main

import (
	"fmt"

	"github.com/orizon-lang/ionalloc/internal/codegen"
	"github.com/orizon-lang/ionalloc/internal/lir"
	"github.com/orizon-lang/ionalloc/internal/regalloc"
)

func main() {
	fmt.Println("=== ionalloc-demo: x64 emission through the liveness bridge ===")
	emitDemo()

	fmt.Println()
	fmt.Println("=== ionalloc-demo: direct Env run with a stackmap ===")
	stackmapDemo()
}

// emitDemo builds a small function with enough simultaneous values to
// put real pressure on the integer register file, then emits it.
func emitDemo() {
	var insns []lir.Insn

	for i := 1; i <= 10; i++ {
		insns = append(insns, lir.Mov{Src: fmt.Sprintf("%d", i), Dst: fmt.Sprintf("%%v%d", i)})
	}

	acc := "%v1"

	for i := 2; i <= 10; i++ {
		next := fmt.Sprintf("%%acc%d", i)
		insns = append(insns, lir.Add{Dst: next, LHS: acc, RHS: fmt.Sprintf("%%v%d", i)})
		acc = next
	}

	insns = append(insns, lir.Ret{Src: acc})

	module := &lir.Module{
		Name: "demo_module",
		Functions: []*lir.Function{
			{
				Name:   "sum_ten",
				Blocks: []*lir.BasicBlock{{Label: "entry", Insns: insns}},
			},
		},
	}

	asm, err := codegen.EmitX64WithRegisterAllocation(module)
	if err != nil {
		fmt.Println("emit failed:", err)
		return
	}

	fmt.Print(asm)
}

// demoFunction is a minimal regalloc.Function exposing one reference-
// typed VReg, for exercising ComputeStackmaps directly.
type demoFunction struct {
	numInsts int
	refs     []regalloc.VReg
}

func (f *demoFunction) NumInsts() int             { return f.numInsts }
func (f *demoFunction) RefTypeVRegs() []regalloc.VReg { return f.refs }

// stackmapDemo builds one reference-typed VReg live across a call (the
// safepoint). Its def and use carry no register preference
// (ConstraintAny), so process_bundle defers it straight to the spill
// path; the demo then plays the role of the out-of-scope spill-slot
// assignment pass before asking ComputeStackmaps for its slot.
func stackmapDemo() {
	const (
		instLoad Inst = iota
		instCall
		instUse
		numInsts
	)

	fn := &demoFunction{numInsts: int(numInsts)}

	cfg := &regalloc.CFGInfo{
		InsnBlock:       []regalloc.BlockIndex{0, 0, 0},
		ApproxLoopDepth: []uint32{0},
		BlockEntry:      []regalloc.ProgPoint{regalloc.ProgPointBefore(regalloc.Inst(instLoad))},
	}

	machine := &regalloc.MachineEnv{}
	machine.PreferredRegsByClass[regalloc.RegClassInt] = []regalloc.PReg{{RegIndex: 0, Class: regalloc.RegClassInt}}
	machine.NonPreferredRegsByClass[regalloc.RegClassInt] = []regalloc.PReg{{RegIndex: 1, Class: regalloc.RegClassInt}}

	env := regalloc.NewEnv(fn, cfg, machine, 2)
	env.ConfigurePReg(regalloc.PReg{RegIndex: 0, Class: regalloc.RegClassInt}, false)
	env.ConfigurePReg(regalloc.PReg{RegIndex: 1, Class: regalloc.RegClassInt}, false)

	ptrVReg := regalloc.VReg{RegIndex: 0, Class: regalloc.RegClassInt}
	vidx := env.CreateVReg(ptrVReg, true)
	fn.refs = []regalloc.VReg{ptrVReg}

	uses := []regalloc.Use{
		{
			Pos: regalloc.ProgPointAfter(regalloc.Inst(instLoad)),
			Operand: regalloc.Operand{
				VReg: ptrVReg, Kind: regalloc.OperandDef,
				Constraint: regalloc.OperandConstraint{Kind: regalloc.ConstraintAny},
			},
			Weight: 2,
		},
		{
			Pos: regalloc.ProgPointBefore(regalloc.Inst(instUse)),
			Operand: regalloc.Operand{
				VReg: ptrVReg, Kind: regalloc.OperandUse,
				Constraint: regalloc.OperandConstraint{Kind: regalloc.ConstraintAny},
			},
			Weight: 1,
		},
	}

	r := regalloc.CodeRange{
		From: regalloc.ProgPointAfter(regalloc.Inst(instLoad)),
		To:   regalloc.ProgPointAfter(regalloc.Inst(instUse)),
	}

	rangeIdx := env.CreateLiveRange(vidx, r, uses)
	ss := env.CreateSpillSet(regalloc.RegClassInt, regalloc.InvalidPReg)
	env.CreateBundle(ss, []regalloc.LiveRangeListEntry{{Range: r, Index: rangeIdx}}, regalloc.InvalidPReg)

	env.SetSafepoints(vidx, []regalloc.Inst{regalloc.Inst(instCall)})

	if err := env.ProcessBundles(); err != nil {
		fmt.Println("allocation failed:", err)
		return
	}

	for _, b := range env.SpilledBundles() {
		if env.BundleAllocation(b).Kind == regalloc.AllocNone {
			env.AssignAllocation(b, regalloc.AllocationStack(0))
		}
	}

	env.ComputeStackmaps()

	for _, s := range env.SafepointSlots() {
		fmt.Println("safepoint slot:", s.String())
	}

	fmt.Printf("stats: %+v\n", env.Stats)
}

// Inst mirrors regalloc.Inst's underlying type so the demo's named
// instruction constants read naturally; regalloc.Inst itself is used
// for every call into the package.
type Inst = regalloc.Inst
