package codegen

import (
	"fmt"
	"sort"

	"github.com/orizon-lang/ionalloc/internal/lir"
	"github.com/orizon-lang/ionalloc/internal/regalloc"
)

// scratchXMMRegAlloc is reserved out of the floating-point pool as a
// scratch register for spilling an XMM argument to its shadow-space
// stack slot (Win64 ABI), matching the donor emitter's convention.
const scratchXMMRegAlloc = "xmm7"

// x64 GPR pool. rax/rcx/rdx/r8-r11 are Win64-volatile and listed first
// so the allocator reaches for them before disturbing a callee-saved
// register; rbx/rdi/rsi/r12-r15 are callee-saved and only spent when
// pressure demands it. rsp and rbp are never candidates: the bridge
// owns them for the frame.
var (
	intPreferredNames    = []string{"rax", "rcx", "rdx", "r8", "r9", "r10", "r11"}
	intNonPreferredNames = []string{"rbx", "rdi", "rsi", "r12", "r13", "r14", "r15"}

	floatPreferredNames    = []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5"}
	floatNonPreferredNames = []string{"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14"}
)

var calleeSavedRegs = map[string]bool{
	"rbx": true, "rdi": true, "rsi": true,
	"r12": true, "r13": true, "r14": true, "r15": true,
}

// bridge is the allocate-then-emit context built per function: it owns
// the regalloc.Env, the resolved per-vreg location strings, and the
// bookkeeping the x64 emitter needs (spill frame size, callee-saved
// registers actually used).
type bridge struct {
	prog *program
	env  *regalloc.Env

	regName map[int32]string

	locations   map[string]string
	spillSlots  int
	usedCallee  map[string]bool
	summary     []string
}

// buildMachineEnv constructs the physical register file the allocator
// probes against, and a name table back from PReg.RegIndex to its x64
// mnemonic.
func buildMachineEnv() (*regalloc.MachineEnv, map[int32]string) {
	env := &regalloc.MachineEnv{StackRegs: nil}
	names := make(map[int32]string)

	next := int32(0)

	addAll := func(list []string, class regalloc.RegClass, preferred bool) {
		for _, name := range list {
			p := regalloc.PReg{RegIndex: next, Class: class}
			names[next] = name
			next++

			if preferred {
				env.PreferredRegsByClass[class] = append(env.PreferredRegsByClass[class], p)
			} else {
				env.NonPreferredRegsByClass[class] = append(env.NonPreferredRegsByClass[class], p)
			}
		}
	}

	addAll(intPreferredNames, regalloc.RegClassInt, true)
	addAll(intNonPreferredNames, regalloc.RegClassInt, false)
	addAll(floatPreferredNames, regalloc.RegClassFloat, true)
	addAll(floatNonPreferredNames, regalloc.RegClassFloat, false)

	return env, names
}

// classifyVRegs reports the RegClass of every vreg seen in p, inferred
// from Call's ArgClasses/RetClass ("f32"/"f64" mean RegClassFloat;
// everything else, including no information at all, defaults to
// RegClassInt).
func classifyVRegs(p *program) map[regalloc.VRegIndex]regalloc.RegClass {
	classes := make(map[regalloc.VRegIndex]regalloc.RegClass, len(p.vregName))

	isFloat := func(cls string) bool { return cls == "f32" || cls == "f64" }

	markFloat := func(name string) {
		if vreg, ok := p.vregOf(name); ok {
			classes[vreg] = regalloc.RegClassFloat
		}
	}

	for _, insn := range p.insns {
		call, ok := insn.(lir.Call)
		if !ok {
			continue
		}

		for i, arg := range call.Args {
			if i < len(call.ArgClasses) && isFloat(call.ArgClasses[i]) {
				markFloat(arg)
			}
		}

		if call.Dst != "" && isFloat(call.RetClass) {
			markFloat(call.Dst)
		}
	}

	return classes
}

// allocateFunction runs the full bridge pipeline for one lir.Function:
// flatten to a program, classify vregs, build the external contracts,
// drive regalloc.Env through ProcessBundles, run the (out-of-scope,
// bridge-owned) spill-slot assignment pass, and resolve one location
// string per vreg.
func allocateFunction(fn *lir.Function) (*bridge, error) {
	p := buildProgram(fn)
	classes := classifyVRegs(p)
	cfg := buildCFGInfo(p)
	machine, regName := buildMachineEnv()

	env := regalloc.NewEnv(&function{prog: p}, cfg, machine, len(regName))

	for class := regalloc.RegClass(0); class < regalloc.NumRegClasses; class++ {
		for _, preg := range machine.PreferredRegsByClass[class] {
			env.ConfigurePReg(preg, false)
		}

		for _, preg := range machine.NonPreferredRegsByClass[class] {
			env.ConfigurePReg(preg, false)
		}
	}

	for i := range p.vregName {
		vidx := regalloc.VRegIndex(i)

		class := classes[vidx]

		env.CreateVReg(regalloc.VReg{RegIndex: int32(i), Class: class}, false)
	}

	intervals := buildLiveIntervals(p)

	for _, lr := range intervals {
		class := classes[lr.vreg]

		rangeIdx := env.CreateLiveRange(lr.vreg, regalloc.CodeRange{From: lr.from, To: lr.to}, lr.uses)
		ss := env.CreateSpillSet(class, regalloc.InvalidPReg)
		entry := regalloc.LiveRangeListEntry{Range: regalloc.CodeRange{From: lr.from, To: lr.to}, Index: rangeIdx}
		env.CreateBundle(ss, []regalloc.LiveRangeListEntry{entry}, regalloc.InvalidPReg)
	}

	if err := env.ProcessBundles(); err != nil {
		return nil, fmt.Errorf("register allocation failed: %w", err)
	}

	nextSlot := 0
	for _, b := range env.SpilledBundles() {
		if env.BundleAllocation(b).Kind == regalloc.AllocNone {
			env.AssignAllocation(b, regalloc.AllocationStack(regalloc.SpillSlot(nextSlot)))
			nextSlot++
		}
	}

	br := &bridge{
		prog:       p,
		env:        env,
		regName:    regName,
		locations:  make(map[string]string, len(p.vregName)),
		spillSlots: nextSlot,
		usedCallee: make(map[string]bool),
	}

	for i, name := range p.vregName {
		vidx := regalloc.VRegIndex(i)

		ranges := env.VRegLiveRanges(vidx)
		if len(ranges) == 0 {
			br.locations[name] = fmt.Sprintf("qword ptr [rbp-8] ; unallocated %s", name)
			continue
		}

		bundle := env.RangeBundle(ranges[0].Index)
		alloc := env.BundleAllocation(bundle)

		br.locations[name] = br.resolveAllocation(name, alloc)
	}

	br.buildSummary()

	return br, nil
}

// resolveAllocation renders one Allocation as the operand text emitX
// functions splice into an instruction, and records callee-saved usage
// for the prologue/epilogue.
func (b *bridge) resolveAllocation(name string, alloc regalloc.Allocation) string {
	if reg, ok := alloc.AsReg(); ok {
		regName := b.regName[reg.RegIndex]
		if calleeSavedRegs[regName] {
			b.usedCallee[regName] = true
		}

		return regName
	}

	if slot, ok := alloc.AsStack(); ok {
		return fmt.Sprintf("qword ptr [rbp-%d]", (int(slot)+1)*8)
	}

	return fmt.Sprintf("qword ptr [rbp-8] ; unallocated %s", name)
}

// buildSummary renders the "Register Allocation Summary" comment block
// the donor emitter appended after every function, now describing the
// new allocator's decisions: per-vreg location plus the run's Stats.
func (b *bridge) buildSummary() {
	names := append([]string(nil), b.prog.vregName...)
	sort.Strings(names)

	for _, name := range names {
		b.summary = append(b.summary, fmt.Sprintf("%s -> %s", name, b.locations[name]))
	}

	st := b.env.Stats

	b.summary = append(b.summary,
		fmt.Sprintf("bundles processed: %d, reg successes: %d, evictions: %d, spill slots: %d",
			st.ProcessBundleCount, st.ProcessBundleRegSuccessCount, st.EvictBundleEvents, b.spillSlots))

	if mean, stddev, ok := b.env.Stats.SpillWeightSummary(); ok {
		b.summary = append(b.summary, fmt.Sprintf("eviction weight mean=%.1f stddev=%.1f", mean, stddev))
	}
}

// frameSlots returns the number of 8-byte spill slots the function's
// frame must reserve.
func (b *bridge) frameSlots() int { return b.spillSlots }

// calleeSaved returns the callee-saved x64 registers this allocation
// actually placed a value in, sorted for deterministic prologue order.
func (b *bridge) calleeSaved() []string {
	var regs []string
	for name := range b.usedCallee {
		regs = append(regs, name)
	}

	sort.Strings(regs)

	return regs
}

// location returns operand's resolved assembly text: its allocated
// register or spill-slot, or the operand verbatim if it is not a "%"
// vreg (a physical register name or an immediate).
func (b *bridge) location(operand string) string {
	if operand == "" {
		return ""
	}

	if loc, ok := b.locations[operand]; ok {
		return loc
	}

	return operand
}
