package regalloc

// RegClass is the register class a VReg or PReg belongs to (integer,
// general purpose vs. floating point, etc.). The core never varies a
// bundle's class across a split: class is fixed per spillset (spec.md §1
// Non-goals).
type RegClass uint8

const (
	RegClassInt RegClass = iota
	RegClassFloat
	NumRegClasses
)

func (c RegClass) String() string {
	switch c {
	case RegClassInt:
		return "int"
	case RegClassFloat:
		return "float"
	default:
		return "unknown-class"
	}
}

// PReg names a physical register: an index unique across all classes
// (it indexes Env.pregs directly) plus its class.
type PReg struct {
	RegIndex int32
	Class    RegClass
}

// InvalidPReg is the sentinel "no register" PReg.
var InvalidPReg = PReg{RegIndex: -1}

// IsValid reports whether p names a real register.
func (p PReg) IsValid() bool { return p.RegIndex >= 0 }

// Index returns a small dense index suitable for indexing Env.pregs and
// bitset.BitSet membership tests. It must be assigned by the same
// MachineEnv that owns p for the whole lifetime of one Env.
func (p PReg) Index() int { return int(p.RegIndex) }

// VReg names a virtual register produced by the liveness analysis that
// feeds the core (spec.md §6, out of scope for this package).
type VReg struct {
	RegIndex int32
	Class    RegClass
}

// Index returns the dense VRegIndex for this VReg.
func (v VReg) Index() VRegIndex { return VRegIndex(v.RegIndex) }

// OperandKind says whether an Operand reads or writes its VReg.
type OperandKind uint8

const (
	OperandUse OperandKind = iota
	OperandDef
)

// OperandConstraintKind enumerates the constraint families of spec.md §3.
type OperandConstraintKind uint8

const (
	ConstraintAny OperandConstraintKind = iota
	ConstraintReg
	ConstraintStack
	ConstraintFixedReg
	ConstraintFixedStack
	ConstraintReuse
)

// OperandConstraint is a tagged union: Kind selects which of Reg /
// ReuseIdx is meaningful.
type OperandConstraint struct {
	Kind     OperandConstraintKind
	Reg      PReg // valid iff Kind is ConstraintFixedReg or ConstraintFixedStack
	ReuseIdx int  // valid iff Kind is ConstraintReuse
}

// Operand is one use or def site of a VReg within an instruction.
type Operand struct {
	VReg       VReg
	Kind       OperandKind
	Constraint OperandConstraint
}

// Use records one Operand occurrence at a ProgPoint, plus the raw weight
// contributed to its LiveRange's spill-weight accumulator (spec.md §3,
// §4.5).
type Use struct {
	Pos      ProgPoint
	Operand  Operand
	Weight   uint32
}

// AllocationKind tags Allocation's payload.
type AllocationKind uint8

const (
	AllocNone AllocationKind = iota
	AllocReg
	AllocStack
)

// SpillSlot is a stack slot index, resolved by the (out-of-scope)
// spill-slot assignment pass from a spillset's Required flag.
type SpillSlot int32

// Allocation is the final placement the core records for a LiveBundle or
// LiveRange: nothing yet, a physical register, or a stack slot.
type Allocation struct {
	Kind  AllocationKind
	Reg   PReg
	Slot  SpillSlot
}

// AllocationReg builds a register Allocation.
func AllocationReg(p PReg) Allocation { return Allocation{Kind: AllocReg, Reg: p} }

// AllocationStack builds a stack-slot Allocation.
func AllocationStack(s SpillSlot) Allocation { return Allocation{Kind: AllocStack, Slot: s} }

// AsReg returns the register and true iff this is a register allocation.
func (a Allocation) AsReg() (PReg, bool) {
	if a.Kind != AllocReg {
		return PReg{}, false
	}

	return a.Reg, true
}

// AsStack returns the slot and true iff this is a stack allocation.
func (a Allocation) AsStack() (SpillSlot, bool) {
	if a.Kind != AllocStack {
		return 0, false
	}

	return a.Slot, true
}
