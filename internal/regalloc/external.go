package regalloc

import "github.com/bits-and-blooms/bitset"

// Function is the contract the core consumes from its enclosing
// compiler (spec.md §6). Liveness analysis, CFG analysis, and operand
// metadata extraction are all deliberately out of scope for this
// package (spec.md §1); Function is how that information is handed in.
type Function interface {
	// NumInsts returns the total instruction count of the function.
	NumInsts() int

	// RefTypeVRegs returns every VReg that holds a garbage-collected
	// reference, for the stackmap emitter (spec.md §4.8).
	RefTypeVRegs() []VReg
}

// CFGInfo is pre-computed control-flow metadata the core consumes for
// loop-aware split-point hoisting (spec.md §4.7 step 5) and for the
// loop-depth-scaled move cost of a split candidate.
type CFGInfo struct {
	// InsnBlock maps an instruction index to the BlockIndex containing it.
	InsnBlock []BlockIndex

	// ApproxLoopDepth maps a BlockIndex to an approximate loop nesting
	// depth (0 = outermost).
	ApproxLoopDepth []uint32

	// BlockEntry maps a BlockIndex to the ProgPoint at its first
	// instruction's Before side.
	BlockEntry []ProgPoint
}

// LoopDepthAt returns the approximate loop depth of the block containing
// p's instruction.
func (c *CFGInfo) LoopDepthAt(p ProgPoint) uint32 {
	block := c.InsnBlock[p.Inst().Index()]

	return c.ApproxLoopDepth[block.Index()]
}

// MachineEnv describes the target's physical register file (spec.md
// §6). Per-class register lists are ordered preference lists (e.g.
// caller-saved before callee-saved, or vice versa); StackRegs marks,
// by PReg.Index(), which physical "registers" are actually stack
// locations standing in for a spill class (spec.md §4.7 step 1: a hint
// that names a stack-class PReg must be dropped).
type MachineEnv struct {
	PreferredRegsByClass    [NumRegClasses][]PReg
	NonPreferredRegsByClass [NumRegClasses][]PReg
	StackRegs               *bitset.BitSet
}

// IsStack reports whether p is a stack-class PReg.
func (m *MachineEnv) IsStack(p PReg) bool {
	if m.StackRegs == nil || !p.IsValid() {
		return false
	}

	return m.StackRegs.Test(uint(p.Index()))
}

// RequirementKind enumerates the outcomes compute_requirement can
// produce for a bundle (spec.md §4.7 step 2).
type RequirementKind uint8

const (
	RequirementAny RequirementKind = iota
	RequirementRegister
	RequirementStack
	RequirementFixedReg
	RequirementFixedStack
)

// Requirement is the result of evaluating every use's constraint across a
// bundle's ranges and reconciling them into one overall demand.
type Requirement struct {
	Kind RequirementKind
	Reg  PReg // valid iff Kind is RequirementFixedReg or RequirementFixedStack
}

// RequirementConflictAt signals that a bundle's own uses are mutually
// unsatisfiable (e.g. two incompatible FixedReg constraints within one
// still-unsplit bundle); Point is where process_bundle should split
// first (spec.md §4.7 step 2).
type RequirementConflictAt struct {
	Point ProgPoint
}

func (e *RequirementConflictAt) Error() string {
	return "requirement conflict at " + e.Point.String()
}

// computeRequirement (spec.md §6 "compute_requirement") is implemented
// directly on Env in requirement.go: unlike Function/CFGInfo/MachineEnv,
// it operates entirely on Operand/Use/Constraint data already part of
// this package's own DATA MODEL (spec.md §3), so there is nothing an
// external caller could supply that Env does not already have.
