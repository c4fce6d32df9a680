// Package codegen bridges internal/lir's target-agnostic instruction
// stream into the external contracts internal/regalloc's core consumes
// (Function, CFGInfo, MachineEnv), with a straight-line liveness pass,
// and emits x64 assembly from the resulting allocation. The bridge and
// the liveness pass it runs are deliberately thin: real CFG analysis,
// loop detection, and operand-constraint extraction belong to a full
// compiler pipeline, not to this demo-quality adapter.
package codegen

import (
	"sort"

	"github.com/orizon-lang/ionalloc/internal/lir"
	"github.com/orizon-lang/ionalloc/internal/regalloc"
)

// program is the flattened form of one lir.Function the bridge builds
// liveness over: every instruction across every block gets one flat
// Inst index, in block order, matching regalloc.Inst's "flat index"
// contract.
type program struct {
	insns     []lir.Insn
	instBlock []regalloc.BlockIndex
	blockName []string

	vregIndex map[string]regalloc.VRegIndex
	vregName  []string
}

// function implements regalloc.Function over one flattened program.
type function struct {
	prog *program
}

func (f *function) NumInsts() int { return len(f.prog.insns) }

// RefTypeVRegs is always empty: this bridge's tiny synthetic IR has no
// notion of a reference/pointer type distinct from an integer, so there
// is nothing for the stackmap emitter to report here (spec.md §4.8
// applies to callers whose Function actually tracks ref-typed VRegs).
func (f *function) RefTypeVRegs() []regalloc.VReg { return nil }

// buildProgram flattens fn's blocks into one instruction stream and
// assigns a dense VRegIndex to every distinct "%name" operand it sees,
// in first-appearance order.
func buildProgram(fn *lir.Function) *program {
	p := &program{vregIndex: make(map[string]regalloc.VRegIndex)}

	for bi, bb := range fn.Blocks {
		for _, insn := range bb.Insns {
			p.insns = append(p.insns, insn)
			p.instBlock = append(p.instBlock, regalloc.BlockIndex(bi))
		}

		p.blockName = append(p.blockName, bb.Label)
	}

	for _, insn := range p.insns {
		for _, operand := range operandsOf(insn) {
			p.vregOf(operand.name)
		}
	}

	return p
}

// vregOf returns name's VRegIndex, registering a new one in
// first-appearance order if this is the first time name is seen. The
// empty string and anything not starting with "%" (immediates,
// physical-looking operands, block labels) are not virtual registers.
func (p *program) vregOf(name string) (regalloc.VRegIndex, bool) {
	if len(name) == 0 || name[0] != '%' {
		return regalloc.InvalidVRegIndex, false
	}

	if idx, ok := p.vregIndex[name]; ok {
		return idx, true
	}

	idx := regalloc.VRegIndex(len(p.vregName))
	p.vregIndex[name] = idx
	p.vregName = append(p.vregName, name)

	return idx, true
}

// operandRef names one operand occurrence: which vreg-shaped string it
// is, and whether this occurrence defines or uses it.
type operandRef struct {
	name string
	kind regalloc.OperandKind
}

// operandsOf lists every "%name"-shaped operand an instruction touches,
// in (uses..., defs...) order — matching this package's convention that
// a definition's liveness starts at the instruction that produces it,
// after every value it reads.
func operandsOf(insn lir.Insn) []operandRef {
	switch in := insn.(type) {
	case lir.Mov:
		return []operandRef{{in.Src, regalloc.OperandUse}, {in.Dst, regalloc.OperandDef}}
	case lir.Add:
		return []operandRef{{in.LHS, regalloc.OperandUse}, {in.RHS, regalloc.OperandUse}, {in.Dst, regalloc.OperandDef}}
	case lir.Sub:
		return []operandRef{{in.LHS, regalloc.OperandUse}, {in.RHS, regalloc.OperandUse}, {in.Dst, regalloc.OperandDef}}
	case lir.Mul:
		return []operandRef{{in.LHS, regalloc.OperandUse}, {in.RHS, regalloc.OperandUse}, {in.Dst, regalloc.OperandDef}}
	case lir.Div:
		return []operandRef{{in.LHS, regalloc.OperandUse}, {in.RHS, regalloc.OperandUse}, {in.Dst, regalloc.OperandDef}}
	case lir.Ret:
		return []operandRef{{in.Src, regalloc.OperandUse}}
	case lir.Call:
		refs := make([]operandRef, 0, len(in.Args)+1)
		for _, a := range in.Args {
			refs = append(refs, operandRef{a, regalloc.OperandUse})
		}

		if in.Dst != "" {
			refs = append(refs, operandRef{in.Dst, regalloc.OperandDef})
		}

		return refs
	case lir.Cmp:
		return []operandRef{{in.LHS, regalloc.OperandUse}, {in.RHS, regalloc.OperandUse}, {in.Dst, regalloc.OperandDef}}
	case lir.BrCond:
		return []operandRef{{in.Cond, regalloc.OperandUse}}
	case lir.Alloc:
		return []operandRef{{in.Dst, regalloc.OperandDef}}
	case lir.Load:
		return []operandRef{{in.Addr, regalloc.OperandUse}, {in.Dst, regalloc.OperandDef}}
	case lir.Store:
		return []operandRef{{in.Addr, regalloc.OperandUse}, {in.Val, regalloc.OperandUse}}
	default:
		return nil
	}
}

// buildCFGInfo produces the minimal CFGInfo this bridge supports: every
// block has loop depth 0 (no back-edge/loop analysis is attempted), and
// block_entry is the Before-ProgPoint of each block's first instruction.
func buildCFGInfo(p *program) *regalloc.CFGInfo {
	numBlocks := len(p.blockName)

	cfg := &regalloc.CFGInfo{
		InsnBlock:       p.instBlock,
		ApproxLoopDepth: make([]uint32, numBlocks),
		BlockEntry:      make([]regalloc.ProgPoint, numBlocks),
	}

	firstInst := make([]int, numBlocks)

	for i := range firstInst {
		firstInst[i] = -1
	}

	for i, b := range p.instBlock {
		if firstInst[b.Index()] == -1 {
			firstInst[b.Index()] = i
		}
	}

	for b, inst := range firstInst {
		if inst < 0 {
			continue
		}

		cfg.BlockEntry[b] = regalloc.ProgPointBefore(regalloc.Inst(inst))
	}

	return cfg
}

// vregLiveRange is the straight-line liveness computed for one vreg: the
// span from its first occurrence (a def, almost always) to its last use,
// and the list of Use sites within that span.
type vregLiveRange struct {
	vreg  regalloc.VRegIndex
	from  regalloc.ProgPoint
	to    regalloc.ProgPoint
	uses  []regalloc.Use
}

// buildLiveIntervals computes one straight-line live range per vreg,
// grounded in the donor's retired linear-scan buildLiveIntervals pass:
// a vreg is live from the ProgPoint it is first written (or first read,
// for a value live-in to the flattened stream) through the ProgPoint
// just after its last use. Within a single flattened instruction stream
// this is exact; it does not account for control-flow joins merging
// distinct liveness per predecessor, which is why the bridge is
// documented as straight-line-only (SPEC_FULL.md §11).
func buildLiveIntervals(p *program) []vregLiveRange {
	byVReg := make(map[regalloc.VRegIndex]*vregLiveRange)

	order := make([]regalloc.VRegIndex, 0, len(p.vregName))

	for i, insn := range p.insns {
		inst := regalloc.Inst(i)

		for _, ref := range operandsOf(insn) {
			vreg, ok := p.vregOf(ref.name)
			if !ok {
				continue
			}

			pos := regalloc.ProgPointBefore(inst)
			if ref.kind == regalloc.OperandDef {
				pos = regalloc.ProgPointAfter(inst)
			}

			lr, exists := byVReg[vreg]
			if !exists {
				lr = &vregLiveRange{vreg: vreg, from: pos, to: pos.Next()}
				byVReg[vreg] = lr
				order = append(order, vreg)
			}

			if pos < lr.from {
				lr.from = pos
			}

			if pos.Next() > lr.to {
				lr.to = pos.Next()
			}

			weight := uint32(1)
			if ref.kind == regalloc.OperandDef {
				weight = 2
			}

			lr.uses = append(lr.uses, regalloc.Use{
				Pos: pos,
				Operand: regalloc.Operand{
					VReg:       regalloc.VReg{RegIndex: int32(vreg), Class: regalloc.RegClassInt},
					Kind:       ref.kind,
					Constraint: regalloc.OperandConstraint{Kind: regalloc.ConstraintReg},
				},
				Weight: weight,
			})
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]vregLiveRange, 0, len(order))

	for _, v := range order {
		lr := byVReg[v]

		sort.Slice(lr.uses, func(i, j int) bool { return lr.uses[i].Pos < lr.uses[j].Pos })

		out = append(out, *lr)
	}

	return out
}
