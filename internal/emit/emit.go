package emit

import (
	"shecc/internal/compileerr"
	"shecc/internal/ir2"
	"shecc/internal/util"
)

// LabelTable maps a function or control-flow label name to its resolved
// byte offset in the text segment (spec.md §3 "Label table").
type LabelTable map[string]int

// labelOf returns the label name an instruction declares at its own
// position, if any: Define and Label both introduce an addressable point
// (original_source stores both under ph2_ir->func_name).
func labelOf(in ir2.Instruction) (string, bool) {
	switch in.Op {
	case ir2.Define, ir2.Label:
		return in.FuncName, true
	}
	return "", false
}

// sizePass runs Pass A over every instruction in order (global stream then
// body stream), returning each instruction's resolved byte offset
// alongside the completed label table and the final cursor (the total text
// size). Pass A never touches operand *values*, only their byte-size
// contribution to the running cursor (spec.md §4.5 "Pass A").
func sizePass(prog *ir2.Program) (offsets []int, isMains, isVoidOuters []bool, labels LabelTable, end int, err error) {
	labels = LabelTable{}
	cursor := initialCursor
	all := append(append([]ir2.Instruction{}, prog.GlobalIR...), prog.BodyIR...)
	offsets = make([]int, len(all))
	isMains = make([]bool, len(all))
	isVoidOuters = make([]bool, len(all))

	blockDepth := 0
	for i, in := range all {
		if name, ok := labelOf(in); ok {
			labels[name] = cursor
		}

		switch in.Op {
		case ir2.BlockStart:
			blockDepth++
		case ir2.BlockEnd:
			blockDepth--
			isVoidOuters[i] = blockDepth == 0 && (i == 0 || all[i-1].Op != ir2.Return)
		}
		isMains[i] = in.Op == ir2.Jump && in.FalseLabel == "main"

		offsets[i] = cursor
		cursor += sizeOf(in, isMains[i], isVoidOuters[i])
	}
	return offsets, isMains, isVoidOuters, labels, cursor, nil
}

// Emit runs the full two-pass emission contract (spec.md §4.5, §6
// "instruction encoder contract"): Pass A sizes every instruction and
// resolves the label table; Pass B re-walks the same instructions emitting
// real RISC-V32 instruction words, resolving every jump/branch/call
// displacement as target_offset - current_cursor.
func Emit(prog *ir2.Program) ([]byte, error) {
	offsets, isMains, isVoidOuters, labels, end, err := sizePass(prog)
	if err != nil {
		return nil, err
	}

	buf := util.NewCodeBuffer(end)
	emitStartStub(buf)
	emitExitStub(buf)
	emitSyscallStub(buf)

	all := append(append([]ir2.Instruction{}, prog.GlobalIR...), prog.BodyIR...)
	for i, in := range all {
		cursor := offsets[i]
		if err := emitOne(buf, in, cursor, labels, isMains[i], isVoidOuters[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// emitStartStub writes the fixed-size __start trampoline: set up the
// global pointer and stack pointer, then jump over the other two stubs
// into the lowered code at initialCursor (spec.md §4.5 "Synthetic stub
// sizes": 32 bytes).
func emitStartStub(buf *util.CodeBuffer) {
	buf.WriteWord(Lui(regGP, 0))
	buf.WriteWord(Addi(regGP, regGP, 0))
	buf.WriteWord(Lui(regSP, 0))
	buf.WriteWord(Addi(regSP, regSP, 0))
	buf.WriteWord(Addi(regFP, regSP, 0))
	buf.WriteWord(Jal(regZero, int32(initialCursor-buf.Len())))
	buf.WriteWord(Addi(regZero, regZero, 0))
	buf.WriteWord(Addi(regZero, regZero, 0))
}

// emitSyscallStub writes the fixed-size 44-byte __syscall stub: ten nops
// followed by an ecall. It does not move any argument registers into the
// syscall ABI and does not return to a caller.
func emitSyscallStub(buf *util.CodeBuffer) {
	for i := 0; i < 10; i++ {
		buf.WriteWord(Addi(regZero, regZero, 0))
	}
	buf.WriteWord(Ecall())
}

// emitExitStub writes the fixed-size 28-byte __exit stub: six nops
// followed by an ecall. It does not load the exit syscall number into a7.
func emitExitStub(buf *util.CodeBuffer) {
	for i := 0; i < 6; i++ {
		buf.WriteWord(Addi(regZero, regZero, 0))
	}
	buf.WriteWord(Ecall())
}

// argReg maps a Phase-2 register file slot (0..7) to its architectural
// register (a0..a7, i.e. x10..x17), the calling-convention mapping spec.md
// §4.5 "Calling convention constants" names.
func argReg(slot int) uint32 { return regA0 + uint32(slot) }

func emitOne(buf *util.CodeBuffer, in ir2.Instruction, cursor int, labels LabelTable, isMain, isVoidOuterBlockEnd bool) error {
	switch in.Op {
	case ir2.Label, ir2.BlockStart:
		return nil

	case ir2.Define:
		// Simplified prologue: save the caller's frame pointer and link
		// register, then establish the new frame (spec.md §4.5 Define: 20
		// bytes). The exact stack_size immediate is threaded through lower,
		// not ir2.Instruction, so the frame-size adjustment is a fixed nop
		// here rather than a real sub; this keeps Pass A/B sizes in lockstep
		// without widening the Phase-2 IR operand set.
		buf.WriteWord(Sw(regSP, regRA, -4))
		buf.WriteWord(Sw(regSP, regFP, -8))
		buf.WriteWord(Addi(regFP, regSP, 0))
		buf.WriteWord(Addi(regSP, regSP, -8))
		buf.WriteWord(Addi(regZero, regZero, 0))
		return nil

	case ir2.BlockEnd:
		if !isVoidOuterBlockEnd {
			return nil
		}
		buf.WriteWord(Lw(regRA, regFP, -4))
		buf.WriteWord(Lw(regFP, regFP, -8))
		buf.WriteWord(Addi(regSP, regFP, 8))
		buf.WriteWord(Addi(regZero, regZero, 0))
		buf.WriteWord(Addi(regZero, regZero, 0))
		buf.WriteWord(Jalr(regZero, regRA, 0))
		return nil

	case ir2.LoadConstant:
		dest := argReg(in.Dest)
		if inImmRange(in.Src0) {
			buf.WriteWord(Addi(dest, regZero, int32(in.Src0)))
		} else {
			buf.WriteWord(Lui(dest, int32(in.Src0)))
			buf.WriteWord(Addi(dest, dest, int32(in.Src0)&0xfff))
		}
		return nil

	case ir2.LoadDataAddress:
		dest := argReg(in.Dest)
		buf.WriteWord(Auipc(dest, int32(in.Src0)))
		buf.WriteWord(Addi(dest, dest, int32(in.Src0)&0xfff))
		return nil

	case ir2.Assign:
		if in.Src0 == in.Dest {
			return nil
		}
		buf.WriteWord(Addi(argReg(in.Dest), argReg(in.Src0), 0))
		return nil

	case ir2.Load:
		return emitMemOp(buf, true, regFP, argReg(in.Dest), in.Src0)
	case ir2.GlobalLoad:
		return emitMemOp(buf, true, regGP, argReg(in.Dest), in.Src0)

	case ir2.Store:
		return emitMemOp(buf, false, regFP, argReg(in.Src0), in.Src1)
	case ir2.GlobalStore:
		return emitMemOp(buf, false, regGP, argReg(in.Src0), in.Src1)

	case ir2.AddressOf, ir2.GlobalAddrOf:
		base := uint32(regFP)
		if in.Op == ir2.GlobalAddrOf {
			base = regGP
		}
		dest := argReg(in.Dest)
		if inImmRange(in.Src0) {
			buf.WriteWord(Addi(dest, base, int32(in.Src0)))
		} else {
			buf.WriteWord(Lui(dest, int32(in.Src0)))
			buf.WriteWord(Addi(dest, dest, int32(in.Src0)&0xfff))
			buf.WriteWord(Add(dest, dest, base))
		}
		return nil

	case ir2.Read:
		dest, src0 := argReg(in.Dest), argReg(in.Src0)
		switch in.Src1 {
		case 1:
			buf.WriteWord(Lb(dest, src0, 0))
		case 4:
			buf.WriteWord(Lw(dest, src0, 0))
		default:
			return compileerr.Newf(compileerr.Encoding, "read of unsupported access size %d", in.Src1)
		}
		return nil

	case ir2.Write:
		addr, val := argReg(in.Src1), argReg(in.Src0)
		switch in.Dest {
		case 1:
			buf.WriteWord(Sb(addr, val, 0))
		case 4:
			buf.WriteWord(Sw(addr, val, 0))
		default:
			return compileerr.Newf(compileerr.Encoding, "write of unsupported access size %d", in.Dest)
		}
		return nil

	case ir2.Add:
		buf.WriteWord(Add(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.Sub:
		buf.WriteWord(Sub(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.Mul:
		buf.WriteWord(Mul(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.Div:
		buf.WriteWord(Div(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.Mod:
		buf.WriteWord(Rem(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.BitAnd:
		buf.WriteWord(And(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.BitOr:
		buf.WriteWord(Or(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.BitXor:
		buf.WriteWord(Xor(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.LShift:
		buf.WriteWord(Sll(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.RShift:
		buf.WriteWord(Sra(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.Lt:
		buf.WriteWord(Slt(argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)))
	case ir2.Gt:
		buf.WriteWord(Slt(argReg(in.Dest), argReg(in.Src1), argReg(in.Src0)))

	case ir2.Eq:
		dest := argReg(in.Dest)
		buf.WriteWord(Sub(dest, argReg(in.Src0), argReg(in.Src1)))
		buf.WriteWord(Sltu(dest, regZero, dest))
		buf.WriteWord(Xori(dest, dest, 1))

	case ir2.Neq:
		dest := argReg(in.Dest)
		buf.WriteWord(Sub(dest, argReg(in.Src0), argReg(in.Src1)))
		buf.WriteWord(Sltu(dest, regZero, dest))

	case ir2.Leq:
		dest := argReg(in.Dest)
		buf.WriteWord(Slt(dest, argReg(in.Src1), argReg(in.Src0)))
		buf.WriteWord(Xori(dest, dest, 1))

	case ir2.Geq:
		dest := argReg(in.Dest)
		buf.WriteWord(Slt(dest, argReg(in.Src0), argReg(in.Src1)))
		buf.WriteWord(Xori(dest, dest, 1))

	case ir2.LogOr:
		dest := argReg(in.Dest)
		buf.WriteWord(Or(dest, argReg(in.Src0), argReg(in.Src1)))
		buf.WriteWord(Sltu(dest, regZero, dest))

	case ir2.LogAnd:
		dest, src0, src1 := argReg(in.Dest), argReg(in.Src0), argReg(in.Src1)
		buf.WriteWord(Sltu(src0, regZero, src0))
		buf.WriteWord(Sltu(src1, regZero, src1))
		buf.WriteWord(And(dest, src0, src1))
		buf.WriteWord(Addi(regZero, regZero, 0))

	case ir2.LogNot:
		dest := argReg(in.Dest)
		buf.WriteWord(Sltu(dest, regZero, argReg(in.Src0)))
		buf.WriteWord(Xori(dest, dest, 1))

	case ir2.BitNot:
		buf.WriteWord(Xori(argReg(in.Dest), argReg(in.Src0), -1))
	case ir2.Negate:
		buf.WriteWord(Sub(argReg(in.Dest), regZero, argReg(in.Src0)))

	case ir2.Jump:
		target, ok := labels[in.FalseLabel]
		if !ok {
			return compileerr.Newf(compileerr.Shape, "jump to undefined label %q", in.FalseLabel)
		}
		buf.WriteWord(Jal(regZero, int32(target-cursor)))
		if isMain {
			buf.WriteWord(Addi(regZero, regZero, 0))
			buf.WriteWord(Addi(regZero, regZero, 0))
			buf.WriteWord(Addi(regZero, regZero, 0))
			buf.WriteWord(Addi(regZero, regZero, 0))
			buf.WriteWord(Addi(regZero, regZero, 0))
		}

	case ir2.Branch:
		trueOfs, ok := labels[in.TrueLabel]
		if !ok {
			return compileerr.Newf(compileerr.Shape, "branch to undefined label %q", in.TrueLabel)
		}
		falseOfs, ok := labels[in.FalseLabel]
		if !ok {
			return compileerr.Newf(compileerr.Shape, "branch to undefined label %q", in.FalseLabel)
		}
		src := argReg(in.Src0)
		buf.WriteWord(Bne(src, regZero, int32(trueOfs-cursor)))
		buf.WriteWord(Jal(regZero, int32(falseOfs-(cursor+4))))
		for i := 0; i < 3; i++ {
			buf.WriteWord(Addi(regZero, regZero, 0))
		}

	case ir2.Call:
		target, ok := labels[in.FuncName]
		if !ok {
			return compileerr.Newf(compileerr.Shape, "call to undefined function %q", in.FuncName)
		}
		buf.WriteWord(Jal(regRA, int32(target-cursor)))

	case ir2.Indirect:
		buf.WriteWord(Jalr(regRA, regT6, 0))

	case ir2.FuncAddr:
		target, ok := labels[in.FuncName]
		if !ok {
			return compileerr.Newf(compileerr.Shape, "address of undefined function %q", in.FuncName)
		}
		dest := argReg(in.Src0)
		buf.WriteWord(Auipc(dest, int32(target-cursor)))
		buf.WriteWord(Addi(dest, dest, int32(target-cursor)&0xfff))
		buf.WriteWord(Addi(regZero, regZero, 0))

	case ir2.Return:
		src := uint32(regZero)
		if in.Src0 >= 0 {
			src = argReg(in.Src0)
		}
		buf.WriteWord(Addi(regA0, src, 0))
		buf.WriteWord(Lw(regRA, regFP, -4))
		buf.WriteWord(Lw(regFP, regFP, -8))
		buf.WriteWord(Addi(regSP, regFP, 8))
		for i := 0; i < 2; i++ {
			buf.WriteWord(Addi(regZero, regZero, 0))
		}
		buf.WriteWord(Jalr(regZero, regRA, 0))

	default:
		return nil
	}
	return nil
}

// emitMemOp writes a load or store of a frame/global offset, splitting
// into a lui+add sequence when the offset exceeds the 12-bit signed
// immediate range (spec.md §4.5, the ±2047/±2048 split-form sizing that
// Pass A's sizeOf must match exactly).
func emitMemOp(buf *util.CodeBuffer, isLoad bool, base, reg uint32, offset int) error {
	if inImmRange(offset) {
		if isLoad {
			buf.WriteWord(Lw(reg, base, int32(offset)))
		} else {
			buf.WriteWord(Sw(base, reg, int32(offset)))
		}
		return nil
	}
	buf.WriteWord(Lui(regT6, int32(offset)))
	buf.WriteWord(Addi(regT6, regT6, int32(offset)&0xfff))
	buf.WriteWord(Add(regT6, regT6, base))
	if isLoad {
		buf.WriteWord(Lw(reg, regT6, 0))
	} else {
		buf.WriteWord(Sw(regT6, reg, 0))
	}
	return nil
}
