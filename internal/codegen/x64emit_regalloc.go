// Package codegen provides enhanced x64 code generation with full register
// allocation, driven by internal/regalloc's backtracking priority allocator
// through the liveness bridge in bridge.go and liveness.go.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	orizonerrors "github.com/orizon-lang/ionalloc/internal/errors"
	"github.com/orizon-lang/ionalloc/internal/lir"
)

// EmitX64WithRegisterAllocation emits optimized x64 assembly using full register allocation
func EmitX64WithRegisterAllocation(m *lir.Module) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "; module %s (with register allocation)\n", m.Name)

	for _, f := range m.Functions {
		if f.Name == "" {
			return "", orizonerrors.NewStandardError(orizonerrors.CategoryValidation, "EMPTY_FUNCTION_NAME",
				"lir.Function.Name must not be empty: it becomes the function's assembly label",
				map[string]interface{}{"module": m.Name})
		}

		asm, err := emitFuncWithRegAlloc(f)
		if err != nil {
			return "", fmt.Errorf("failed to emit function %s: %w", f.Name, err)
		}

		b.WriteString(asm)
	}

	return b.String(), nil
}

// emitFuncWithRegAlloc generates assembly for a function using register allocation
func emitFuncWithRegAlloc(f *lir.Function) (string, error) {
	var funcBuilder strings.Builder

	br, err := allocateFunction(f)
	if err != nil {
		return "", err
	}

	frameSize := int64(br.frameSlots() * 8)

	if rem := frameSize % 16; rem != 0 {
		frameSize += 16 - rem
	}

	funcBuilder.WriteString(fmt.Sprintf("%s:\n", f.Name))
	funcBuilder.WriteString("  push rbp\n")
	funcBuilder.WriteString("  mov rbp, rsp\n")

	savedRegs := br.calleeSaved()
	for _, reg := range savedRegs {
		funcBuilder.WriteString(fmt.Sprintf("  push %s\n", reg))
		frameSize += 8
	}

	if frameSize > 0 {
		funcBuilder.WriteString(fmt.Sprintf("  sub rsp, %d\n", frameSize))
	}

	for _, bb := range f.Blocks {
		if bb.Label != "" {
			funcBuilder.WriteString(fmt.Sprintf("%s:\n", bb.Label))
		}

		for _, instr := range bb.Insns {
			instrAsm, err := emitInstructionWithRegAlloc(instr, br)
			if err != nil {
				return "", fmt.Errorf("failed to emit instruction %v: %w", instr, err)
			}

			funcBuilder.WriteString(instrAsm)
		}
	}

	if frameSize > 0 {
		funcBuilder.WriteString(fmt.Sprintf("  add rsp, %d\n", frameSize))
	}

	for i := len(savedRegs) - 1; i >= 0; i-- {
		funcBuilder.WriteString(fmt.Sprintf("  pop %s\n", savedRegs[i]))
	}

	funcBuilder.WriteString("  pop rbp\n")
	funcBuilder.WriteString("  ret\n\n")

	funcBuilder.WriteString("; Register Allocation Summary:\n")
	for _, line := range br.summary {
		funcBuilder.WriteString(fmt.Sprintf("; %s\n", line))
	}

	funcBuilder.WriteString("\n")

	return funcBuilder.String(), nil
}

// emitInstructionWithRegAlloc generates assembly for a single instruction using register allocation
func emitInstructionWithRegAlloc(instr lir.Insn, br *bridge) (string, error) {
	switch inst := instr.(type) {
	case lir.Mov:
		return emitMov(inst, br)
	case lir.Add:
		return emitBinaryOp(inst.Dst, inst.LHS, inst.RHS, "add", br)
	case lir.Sub:
		return emitBinaryOp(inst.Dst, inst.LHS, inst.RHS, "sub", br)
	case lir.Mul:
		return emitBinaryOp(inst.Dst, inst.LHS, inst.RHS, "imul", br)
	case lir.Div:
		return emitDiv(inst, br)
	case lir.Load:
		return emitLoad(inst, br)
	case lir.Store:
		return emitStore(inst, br)
	case lir.Cmp:
		return emitCmp(inst, br)
	case lir.Br:
		return fmt.Sprintf("  jmp %s\n", inst.Target), nil
	case lir.BrCond:
		return emitBrCond(inst, br)
	case lir.Call:
		return emitCall(inst, br)
	case lir.Ret:
		return emitRet(inst, br)
	case lir.Alloc:
		// Alloca is resolved during register allocation - just emit a comment
		return fmt.Sprintf("  ; alloca %s -> %s\n", inst.Name, inst.Dst), nil
	default:
		if s, ok := any(instr).(fmt.Stringer); ok {
			return fmt.Sprintf("  ; unknown: %s\n", s.String()), nil
		}

		return fmt.Sprintf("  ; unknown op %s\n", instr.Op()), nil
	}
}

// emitMov generates a move instruction with register allocation
func emitMov(inst lir.Mov, br *bridge) (string, error) {
	src := resolveLocation(inst.Src, br)
	dst := resolveLocation(inst.Dst, br)

	if src == dst {
		return "  ; nop (src == dst)\n", nil
	}

	if isMemoryLocation(src) && isMemoryLocation(dst) {
		return fmt.Sprintf("  mov rax, %s\n  mov %s, rax\n", src, dst), nil
	}

	return fmt.Sprintf("  mov %s, %s\n", dst, src), nil
}

// emitBinaryOp generates binary arithmetic operations with register allocation
func emitBinaryOp(dst, lhs, rhs, op string, br *bridge) (string, error) {
	dstLoc := resolveLocation(dst, br)
	lhsLoc := resolveLocation(lhs, br)
	rhsLoc := resolveLocation(rhs, br)

	var result strings.Builder

	if dstLoc != lhsLoc {
		if isMemoryLocation(lhsLoc) && isMemoryLocation(dstLoc) {
			result.WriteString(fmt.Sprintf("  mov rax, %s\n", lhsLoc))
			result.WriteString(fmt.Sprintf("  %s rax, %s\n", op, rhsLoc))
			result.WriteString(fmt.Sprintf("  mov %s, rax\n", dstLoc))
		} else {
			result.WriteString(fmt.Sprintf("  mov %s, %s\n", dstLoc, lhsLoc))
			result.WriteString(fmt.Sprintf("  %s %s, %s\n", op, dstLoc, rhsLoc))
		}
	} else {
		result.WriteString(fmt.Sprintf("  %s %s, %s\n", op, dstLoc, rhsLoc))
	}

	return result.String(), nil
}

// emitDiv generates division instruction with special handling for x64 requirements
func emitDiv(inst lir.Div, br *bridge) (string, error) {
	dstLoc := resolveLocation(inst.Dst, br)
	lhsLoc := resolveLocation(inst.LHS, br)
	rhsLoc := resolveLocation(inst.RHS, br)

	var result strings.Builder

	result.WriteString(fmt.Sprintf("  mov rax, %s\n", lhsLoc))
	result.WriteString("  cqo\n")

	if rhsLoc == "rdx" {
		result.WriteString("  mov r10, rdx\n")
		result.WriteString("  idiv r10\n")
	} else {
		result.WriteString(fmt.Sprintf("  idiv %s\n", rhsLoc))
	}

	if dstLoc != "rax" {
		result.WriteString(fmt.Sprintf("  mov %s, rax\n", dstLoc))
	}

	return result.String(), nil
}

// emitLoad generates load instruction with register allocation
func emitLoad(inst lir.Load, br *bridge) (string, error) {
	dstLoc := resolveLocation(inst.Dst, br)
	addrLoc := resolveLocation(inst.Addr, br)

	switch {
	case isImmediate(inst.Addr):
		return fmt.Sprintf("  mov %s, %s\n", dstLoc, inst.Addr), nil
	case isMemoryLocation(addrLoc):
		return fmt.Sprintf("  mov rax, %s\n  mov %s, qword ptr [rax]\n", addrLoc, dstLoc), nil
	default:
		return fmt.Sprintf("  mov %s, qword ptr [%s]\n", dstLoc, addrLoc), nil
	}
}

// emitStore generates store instruction with register allocation
func emitStore(inst lir.Store, br *bridge) (string, error) {
	addrLoc := resolveLocation(inst.Addr, br)
	valLoc := resolveLocation(inst.Val, br)

	if isMemoryLocation(addrLoc) {
		if isMemoryLocation(valLoc) {
			return fmt.Sprintf("  mov rax, %s\n  mov r10, %s\n  mov qword ptr [rax], r10\n", addrLoc, valLoc), nil
		}

		return fmt.Sprintf("  mov rax, %s\n  mov qword ptr [rax], %s\n", addrLoc, valLoc), nil
	}

	return fmt.Sprintf("  mov qword ptr [%s], %s\n", addrLoc, valLoc), nil
}

// emitCmp generates comparison instruction with register allocation
func emitCmp(inst lir.Cmp, br *bridge) (string, error) {
	dstLoc := resolveLocation(inst.Dst, br)
	lhsLoc := resolveLocation(inst.LHS, br)
	rhsLoc := resolveLocation(inst.RHS, br)

	var result strings.Builder

	if isMemoryLocation(lhsLoc) && isMemoryLocation(rhsLoc) {
		result.WriteString(fmt.Sprintf("  mov rax, %s\n", lhsLoc))
		result.WriteString(fmt.Sprintf("  cmp rax, %s\n", rhsLoc))
	} else {
		result.WriteString(fmt.Sprintf("  cmp %s, %s\n", lhsLoc, rhsLoc))
	}

	setcc := mapCmpToSetccRegAlloc(inst.Pred)
	result.WriteString(fmt.Sprintf("  %s al\n", setcc))
	result.WriteString("  movzx rax, al\n")

	if dstLoc != "rax" {
		result.WriteString(fmt.Sprintf("  mov %s, rax\n", dstLoc))
	}

	return result.String(), nil
}

// emitBrCond generates conditional branch with register allocation
func emitBrCond(inst lir.BrCond, br *bridge) (string, error) {
	condLoc := resolveLocation(inst.Cond, br)

	var result strings.Builder

	if condLoc == "rax" {
		result.WriteString("  test rax, rax\n")
	} else {
		result.WriteString(fmt.Sprintf("  cmp %s, 0\n", condLoc))
	}

	result.WriteString(fmt.Sprintf("  jnz %s\n", inst.True))
	result.WriteString(fmt.Sprintf("  jmp %s\n", inst.False))

	return result.String(), nil
}

// emitCall generates function call with register allocation and Win64 ABI
func emitCall(inst lir.Call, br *bridge) (string, error) {
	var result strings.Builder

	gprRegs := []string{"rcx", "rdx", "r8", "r9"}
	xmmRegs := []string{"xmm0", "xmm1", "xmm2", "xmm3"}

	stackArgs := 0
	if len(inst.Args) > 4 {
		stackArgs = len(inst.Args) - 4
	}

	reserve := int64(32 + stackArgs*8)
	if rem := reserve % 16; rem != 0 {
		reserve += 16 - rem
	}

	if reserve > 0 {
		result.WriteString(fmt.Sprintf("  sub rsp, %d\n", reserve))
	}

	for i := 4; i < len(inst.Args); i++ {
		offset := 32 + (i-4)*8
		argLoc := resolveLocation(inst.Args[i], br)

		cls := ""
		if i < len(inst.ArgClasses) {
			cls = inst.ArgClasses[i]
		}

		if cls == "f32" || cls == "f64" {
			if isMemoryLocation(argLoc) {
				result.WriteString(fmt.Sprintf("  mov rax, %s\n", argLoc))
				result.WriteString(fmt.Sprintf("  movq %s, rax\n", scratchXMMRegAlloc))
			} else {
				result.WriteString(fmt.Sprintf("  movq %s, %s\n", scratchXMMRegAlloc, argLoc))
			}

			if cls == "f32" {
				result.WriteString(fmt.Sprintf("  movss dword ptr [rsp+%d], %s\n", offset, scratchXMMRegAlloc))
			} else {
				result.WriteString(fmt.Sprintf("  movsd qword ptr [rsp+%d], %s\n", offset, scratchXMMRegAlloc))
			}
		} else {
			result.WriteString(fmt.Sprintf("  mov qword ptr [rsp+%d], %s\n", offset, argLoc))
		}
	}

	gprIndex := 0
	xmmIndex := 0

	for i := 0; i < len(inst.Args) && i < 4; i++ {
		argLoc := resolveLocation(inst.Args[i], br)

		cls := ""
		if i < len(inst.ArgClasses) {
			cls = inst.ArgClasses[i]
		}

		if cls == "f32" || cls == "f64" {
			if xmmIndex < len(xmmRegs) {
				targetReg := xmmRegs[xmmIndex]
				if isMemoryLocation(argLoc) {
					result.WriteString(fmt.Sprintf("  mov rax, %s\n", argLoc))
					result.WriteString(fmt.Sprintf("  movq %s, rax\n", targetReg))
				} else {
					result.WriteString(fmt.Sprintf("  movq %s, %s\n", targetReg, argLoc))
				}

				xmmIndex++
			}
		} else if gprIndex < len(gprRegs) {
			targetReg := gprRegs[gprIndex]
			if argLoc != targetReg {
				result.WriteString(fmt.Sprintf("  mov %s, %s\n", targetReg, argLoc))
			}

			gprIndex++
		}
	}

	result.WriteString(fmt.Sprintf("  call %s\n", inst.Callee))

	if reserve > 0 {
		result.WriteString(fmt.Sprintf("  add rsp, %d\n", reserve))
	}

	if inst.Dst != "" {
		dstLoc := resolveLocation(inst.Dst, br)

		if inst.RetClass == "f32" || inst.RetClass == "f64" {
			if dstLoc != "xmm0" {
				result.WriteString(fmt.Sprintf("  movq %s, xmm0\n", dstLoc))
			}
		} else if dstLoc != "rax" {
			result.WriteString(fmt.Sprintf("  mov %s, rax\n", dstLoc))
		}
	}

	return result.String(), nil
}

// emitRet generates return instruction with register allocation
func emitRet(inst lir.Ret, br *bridge) (string, error) {
	if inst.Src != "" {
		srcLoc := resolveLocation(inst.Src, br)
		if srcLoc != "rax" {
			return fmt.Sprintf("  mov rax, %s\n", srcLoc), nil
		}
	}

	return "", nil // Return handled by function epilogue
}

// resolveLocation converts a virtual register or value to its allocated location
func resolveLocation(operand string, br *bridge) string {
	if operand == "" {
		return ""
	}

	if strings.HasPrefix(operand, "%") {
		return br.location(operand)
	}

	// Physical register or immediate value
	return operand
}

// isMemoryLocation checks if a location string represents a memory reference
func isMemoryLocation(loc string) bool {
	return strings.Contains(loc, "[") && strings.Contains(loc, "]")
}

// isImmediate checks if an operand is an immediate value
func isImmediate(operand string) bool {
	_, err := strconv.ParseInt(operand, 10, 64)
	return err == nil
}

// mapCmpToSetccRegAlloc maps LIR comparison predicates to x64 setcc instructions
func mapCmpToSetccRegAlloc(pred string) string {
	switch pred {
	case "eq":
		return "sete"
	case "ne":
		return "setne"
	case "slt":
		return "setl"
	case "sle":
		return "setle"
	case "sgt":
		return "setg"
	case "sge":
		return "setge"
	case "ult":
		return "setb"
	case "ule":
		return "setbe"
	case "ugt":
		return "seta"
	case "uge":
		return "setae"
	default:
		return "sete" // Default fallback
	}
}
