package emit

import (
	"shecc/internal/ir2"
)

// immMin..immMax is the widest displacement/offset a single I/S-type RISC-V
// instruction can carry: 12 bits, signed (spec.md §3 global invariants,
// "12-bit signed immediate range"). Values outside it require the
// load-upper-immediate-plus-add split form, which costs extra instruction
// words — hence Pass A's size table branching on this range.
const (
	immMin = -2048
	immMax = 2047
)

func inImmRange(v int) bool { return v >= immMin && v <= immMax }

// stubStart, stubExit, stubSyscall are the fixed byte sizes of the three
// synthetic entry/exit/syscall-trampoline stubs emitted ahead of any
// function body (spec.md §4.5 "Synthetic stub sizes").
const (
	stubStart   = 32
	stubExit    = 28
	stubSyscall = 44
)

// initialCursor is Pass A's starting byte offset: the three stubs occupy
// the lowest addresses of the text segment before any lowered function.
const initialCursor = stubStart + stubExit + stubSyscall

// sizeOf returns the number of instruction-word bytes Pass B will emit for
// a single Phase-2 IR instruction, given isMain (whether a Jump's target is
// the entry function, which additionally emits a one-time trampoline) and
// isVoidOuterBlockEnd (whether a BlockEnd closes a function's outermost
// block without a Return immediately before it, which needs an implicit
// return sequence; sizePass decides this from the instruction stream, not
// from the function's return type). This table is the spec's single source
// of truth for instruction sizing and must be kept in exact lockstep with
// Pass B's emitOne switch in emit.go.
func sizeOf(in ir2.Instruction, isMain, isVoidOuterBlockEnd bool) int {
	switch in.Op {
	case ir2.Define:
		return 20
	case ir2.BlockEnd:
		if isVoidOuterBlockEnd {
			return 24
		}
		return 0
	case ir2.Assign:
		if in.Src0 == in.Dest {
			return 0
		}
		return 4
	case ir2.Load, ir2.Store, ir2.GlobalLoad, ir2.GlobalStore:
		if inImmRange(offsetOf(in)) {
			return 4
		}
		return 16
	case ir2.GlobalAddrOf, ir2.AddressOf:
		if inImmRange(in.Src0) {
			return 4
		}
		return 12
	case ir2.Jump:
		if isMain {
			return 24
		}
		return 4
	case ir2.Call, ir2.Read, ir2.Write, ir2.Negate,
		ir2.Add, ir2.Sub, ir2.Mul, ir2.Div, ir2.Mod,
		ir2.Gt, ir2.Lt, ir2.BitAnd, ir2.BitOr, ir2.BitXor, ir2.BitNot,
		ir2.RShift, ir2.LShift, ir2.Indirect:
		return 4
	case ir2.LoadConstant:
		if inImmRange(in.Src0) {
			return 4
		}
		return 8
	case ir2.LoadDataAddress, ir2.Neq, ir2.Geq, ir2.Leq, ir2.LogOr, ir2.LogNot:
		return 8
	case ir2.Eq, ir2.FuncAddr:
		return 12
	case ir2.LogAnd:
		return 16
	case ir2.Branch:
		return 20
	case ir2.Return:
		return 28
	default:
		return 0
	}
}

// offsetOf picks the operand that carries a Load/Store/GlobalLoad/
// GlobalStore's frame/global byte offset: Src0 for loads, Src1 for stores
// (ir2.Instruction field layout, spec.md §3 "Phase-2 IR instruction").
func offsetOf(in ir2.Instruction) int {
	switch in.Op {
	case ir2.Load, ir2.GlobalLoad:
		return in.Src0
	default:
		return in.Src1
	}
}
