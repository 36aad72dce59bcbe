// Package lower implements Phase-2 lowering: it walks a Phase-1 IR program
// already annotated with end-of-life (EOL) information (package liveness)
// and produces Phase-2 IR (package ir2) by running the linear-scan register
// allocator over it (spec.md §4.4). This is the spec's "allocator", and it
// is grounded instruction-for-instruction on
// original_source/src/riscv-codegen.c's code_generate().
package lower

import (
	"shecc/internal/compileerr"
	"shecc/internal/entity"
	"shecc/internal/ir1"
	"shecc/internal/ir2"
)

// t6 is the Phase-2 register operand that names the scratch register
// reserved for indirect-call targets. Package emit maps a register operand
// n to x(10+n), so 21 names x31 (t6), the register its Indirect case jumps
// through; it lies outside the 8 allocatable slots, so the register file
// never hands it out (original_source uses the same raw index 21).
const t6 = 21

// state carries the per-function allocator context threaded through the
// lowering walk: the register file, the entity store, the function whose
// stack frame is being extended, and the program being built.
type state struct {
	store *entity.Store
	regs  *ir2.RegisterFile
	prog  *ir2.Program
	fn    *entity.Function

	argumentIdx int
}

// Lower runs the register allocator over prog (whose body/global IR must
// already carry liveness-annotated variables, see package liveness) and
// returns the Phase-2 IR. The register file is local state, not global
// (spec.md §9 "Register file as explicit state"), but Lower does write
// into store: it assigns every placed variable's Offset and grows each
// function's StackSize, so a second run over the same store starts from
// the already grown frames.
func Lower(store *entity.Store, prog *ir1.Program) (*ir2.Program, error) {
	st := &state{store: store, regs: ir2.NewRegisterFile(), prog: &ir2.Program{}}

	if err := st.lowerGlobals(prog.GlobalIR); err != nil {
		return nil, err
	}

	st.prog.Add(ir2.Instruction{Op: ir2.Jump, FalseLabel: "main"})

	if err := st.lowerBody(prog.BodyIR); err != nil {
		return nil, err
	}

	return st.prog, nil
}

func (st *state) lowerGlobals(body []ir1.Instruction) error {
	globalFn := st.store.GlobalFunc()
	for i, in := range body {
		switch in.Op {
		case ir1.Allocate:
			if err := st.allocateSlot(globalFn, in.Src0, i); err != nil {
				return err
			}
		case ir1.LoadConstant:
			reg, err := st.getDestReg(globalFn, in.Dest, i, -1, -1, false)
			if err != nil {
				return err
			}
			st.prog.AddGlobal(ir2.Instruction{Op: ir2.LoadConstant, Src0: in.Dest.InitVal, Dest: reg})
		case ir1.Assign:
			src0, err := st.getSrcReg(globalFn, in.Src0, -1)
			if err != nil {
				return err
			}
			dest, err := st.getDestReg(globalFn, in.Dest, i, src0, -1, false)
			if err != nil {
				return err
			}
			st.prog.AddGlobal(ir2.Instruction{Op: ir2.Assign, Src0: src0, Dest: dest})
			st.prog.AddGlobal(ir2.Instruction{Op: ir2.GlobalStore, Src0: dest, Src1: in.Dest.Offset})
		default:
			return compileerr.Newf(compileerr.Shape, "unsupported global operation %s", in.Op)
		}
	}
	return nil
}

// allocateSlot assigns a frame offset to a freshly declared variable,
// growing the owning function's stack_size, and (for arrays) emits the
// address-of-plus-store sequence that materializes the array's base
// pointer (original_source's OP_allocat handling, both global and local).
func (st *state) allocateSlot(owner *entity.Function, v *entity.Variable, pc int) error {
	v.Offset = owner.StackSize
	if !v.IsArray() {
		sz, err := st.store.SizeOfVar(v)
		if err != nil {
			return err
		}
		owner.StackSize += sz
		return nil
	}

	base := owner.StackSize
	owner.StackSize += 4

	reg, err := st.getDestReg(owner, v, pc, -1, -1, false)
	if err != nil {
		return err
	}
	op := ir2.AddressOf
	if v.IsGlobal {
		op = ir2.GlobalAddrOf
	}
	st.prog.Add(ir2.Instruction{Op: op, Src0: owner.StackSize, Dest: reg})

	elemSize, err := st.store.SizeOfVar(&entity.Variable{TypeName: v.TypeName, PtrDepth: v.PtrDepth})
	if err != nil {
		return err
	}
	owner.StackSize += elemSize * v.ArraySize

	storeOp := ir2.Store
	if v.IsGlobal {
		storeOp = ir2.GlobalStore
	}
	st.prog.Add(ir2.Instruction{Op: storeOp, Src0: reg, Src1: base})
	return nil
}

func (st *state) lowerBody(body []ir1.Instruction) error {
	for i, in := range body {
		st.regs.Expire(i)

		if i > 0 {
			prev := body[i-1].Op
			if prev == ir1.Call || prev == ir1.Indirect {
				for j := 0; j < ir2.RegCount; j++ {
					st.regs.Release(j)
				}
			}
		}

		if err := st.lowerOne(body, i, in); err != nil {
			return err
		}
	}
	return nil
}

func (st *state) lowerOne(body []ir1.Instruction, i int, in ir1.Instruction) error {
	switch in.Op {
	case ir1.BlockEnd:
		if i == 0 || body[i-1].Op != ir1.Return {
			st.spillUsedRegs(i-1, true)
		}
		st.prog.Add(ir2.Instruction{Op: ir2.BlockEnd})

	case ir1.Define:
		fn := st.store.FindFunc(in.FuncName)
		if fn == nil {
			return compileerr.Newf(compileerr.Shape, "define of unknown function %q", in.FuncName)
		}
		st.fn = fn
		st.prog.Add(ir2.Instruction{Op: ir2.Define, FuncName: in.FuncName})

		if fn.NumParams() > ir2.RegCount {
			return compileerr.Newf(compileerr.Capacity, "function %q takes more than %d parameters", in.FuncName, ir2.RegCount)
		}
		for j := 0; j < ir2.RegCount; j++ {
			if j < fn.NumParams() {
				st.regs.Bind(j, &fn.Params[j], true)
			} else {
				st.regs.Release(j)
			}
		}
		st.spillUsedRegs(-1, false)

	case ir1.Allocate:
		if in.Src0.IsGlobal {
			return compileerr.Newf(compileerr.Shape, "unexpected global allocation %q in function body", in.Src0.Name)
		}
		return st.allocateSlot(st.fn, in.Src0, i)

	case ir1.LoadConstant, ir1.LoadDataAddress:
		reg, err := st.getDestReg(st.fn, in.Dest, i, -1, -1, false)
		if err != nil {
			return err
		}
		st.prog.Add(ir2.Instruction{Op: in.Op, Src0: in.Dest.InitVal, Dest: reg})

	case ir1.Label:
		if i > 0 && body[i-1].Op == ir1.Branch && body[i-1].TrueLabel != in.Label && body[i-1].FalseLabel != in.Label {
			for j := 0; j < ir2.RegCount; j++ {
				st.regs.Release(j)
			}
		}
		if i == 0 || (body[i-1].Op != ir1.Branch && body[i-1].Op != ir1.Jump) {
			st.spillUsedRegs(-1, false)
		}
		st.prog.Add(ir2.Instruction{Op: ir2.Label, FuncName: in.Label})

	case ir1.Jump:
		st.spillUsedRegs(-1, false)
		st.prog.Add(ir2.Instruction{Op: ir2.Jump, FalseLabel: in.JumpTarget})

	case ir1.Branch:
		st.spillUsedRegs(i, false)
		src0, err := st.getSrcReg(st.fn, in.Src0, -1)
		if err != nil {
			return err
		}
		st.prog.Add(ir2.Instruction{Op: ir2.Branch, Src0: src0, TrueLabel: in.TrueLabel, FalseLabel: in.FalseLabel})

	case ir1.Push:
		if st.argumentIdx >= ir2.RegCount {
			return compileerr.Newf(compileerr.Capacity, "call passes more than %d arguments", ir2.RegCount)
		}
		if st.argumentIdx == 0 {
			st.spillUsedRegs(-1, false)
		}
		op := ir2.Load
		if in.Src0.IsGlobal {
			op = ir2.GlobalLoad
		}
		st.prog.Add(ir2.Instruction{Op: op, Src0: in.Src0.Offset, Dest: st.argumentIdx})
		st.argumentIdx++

	case ir1.Call:
		if i == 0 || body[i-1].Op != ir1.Push {
			st.spillUsedRegs(-1, false)
		}
		st.prog.Add(ir2.Instruction{Op: ir2.Call, FuncName: in.FuncName})
		st.argumentIdx = 0

	case ir1.FuncRet:
		reg, err := st.getDestReg(st.fn, in.Dest, i, 0, -1, false)
		if err != nil {
			return err
		}
		st.prog.Add(ir2.Instruction{Op: ir2.Assign, Src0: 0, Dest: reg})

	case ir1.Return:
		st.spillUsedRegs(-1, true)
		src0 := -1
		if in.Src0 != nil {
			var err error
			src0, err = st.getSrcReg(st.fn, in.Src0, -1)
			if err != nil {
				return err
			}
		}
		st.prog.Add(ir2.Instruction{Op: ir2.Return, Src0: src0})

	case ir1.AddressOf:
		return st.lowerAddressOf(st.fn, i, in)

	case ir1.Read:
		src0, err := st.getSrcReg(st.fn, in.Src0, -1)
		if err != nil {
			return err
		}
		dest, err := st.getDestReg(st.fn, in.Dest, i, src0, -1, false)
		if err != nil {
			return err
		}
		st.prog.Add(ir2.Instruction{Op: ir2.Read, Src0: src0, Src1: in.Size, Dest: dest})

	case ir1.Write:
		if !in.Src0.IsFunc {
			st.spillUsedRegs(-1, false)
			src0, err := st.getSrcReg(st.fn, in.Src0, -1)
			if err != nil {
				return err
			}
			src1, err := st.getSrcReg(st.fn, in.Dest, src0)
			if err != nil {
				return err
			}
			st.prog.Add(ir2.Instruction{Op: ir2.Write, Src0: src0, Src1: src1, Dest: in.Size})
		} else {
			src0, err := st.getSrcReg(st.fn, in.Dest, -1)
			if err != nil {
				return err
			}
			// getSrcReg loads whatever in.Dest currently holds (about to be
			// discarded) and binds the slot clean; the FuncAddr below
			// overwrites it with a freshly computed address, so the slot
			// must be marked dirty or spillUsedRegs will never write it back.
			st.regs.MarkDirty(src0)
			st.prog.Add(ir2.Instruction{Op: ir2.FuncAddr, Src0: src0, FuncName: in.Src0.Name})
		}

	case ir1.Indirect:
		if i == 0 || body[i-1].Op != ir1.Push {
			st.spillUsedRegs(-1, false)
		}
		st.prog.Add(ir2.Instruction{Op: ir2.Load, Src0: in.Src0.Offset, Dest: t6})
		st.prog.Add(ir2.Instruction{Op: ir2.Indirect})
		st.argumentIdx = 0

	case ir1.Assign, ir1.Negate, ir1.BitNot, ir1.LogNot:
		src0, err := st.getSrcReg(st.fn, in.Src0, -1)
		if err != nil {
			return err
		}
		dest, err := st.getDestReg(st.fn, in.Dest, i, src0, -1, false)
		if err != nil {
			return err
		}
		st.prog.Add(ir2.Instruction{Op: in.Op, Src0: src0, Dest: dest})

	case ir1.LogAnd:
		src0, err := st.getSrcReg(st.fn, in.Src0, -1)
		if err != nil {
			return err
		}
		src1, err := st.getSrcReg(st.fn, in.Src1, src0)
		if err != nil {
			return err
		}
		dest, err := st.getDestReg(st.fn, in.Dest, i, src0, src1, true)
		if err != nil {
			return err
		}
		st.prog.Add(ir2.Instruction{Op: ir2.LogAnd, Src0: src0, Src1: src1, Dest: dest})

	default:
		if in.Op.IsBinary() {
			src0, err := st.getSrcReg(st.fn, in.Src0, -1)
			if err != nil {
				return err
			}
			src1, err := st.getSrcReg(st.fn, in.Src1, src0)
			if err != nil {
				return err
			}
			dest, err := st.getDestReg(st.fn, in.Dest, i, src0, src1, false)
			if err != nil {
				return err
			}
			st.prog.Add(ir2.Instruction{Op: in.Op, Src0: src0, Src1: src1, Dest: dest})
			return nil
		}
		st.prog.Add(ir2.Instruction{Op: in.Op})
	}
	return nil
}

// lowerAddressOf implements OP_address_of: a variable whose address is
// taken must have a concrete frame slot even if the allocator would
// otherwise keep it purely in a register, and any pending register copy of
// it must be flushed first so a later dereference cannot observe a stale
// value (original_source's comment: "prevent ... obsolete content when
// dereferencing").
func (st *state) lowerAddressOf(fn *entity.Function, pc int, in ir1.Instruction) error {
	ofs := in.Src0.Offset
	if ofs == 0 {
		owner := fn
		if in.Src0.IsGlobal {
			owner = st.store.GlobalFunc()
		}
		ofs = owner.StackSize
		owner.StackSize += 4
		in.Src0.Offset = ofs
	}
	if j := st.regs.Find(in.Src0); j >= 0 && st.regs.Dirty(j) {
		op := ir2.Store
		if in.Src0.IsGlobal {
			op = ir2.GlobalStore
		}
		st.prog.Add(ir2.Instruction{Op: op, Src0: j, Src1: ofs})
	}

	dest, err := st.getDestReg(fn, in.Dest, pc, -1, -1, false)
	if err != nil {
		return err
	}
	op := ir2.AddressOf
	if in.Src0.IsGlobal {
		op = ir2.GlobalAddrOf
	}
	st.prog.Add(ir2.Instruction{Op: op, Src0: ofs, Dest: dest})
	return nil
}

// spillUsedRegs writes every polluted (dirty) register back to its frame
// slot and clears the file, except variables whose EOL equals pc (about to
// expire anyway) which are skipped, and, when globalOnly is set, dirty
// non-global occupants, which are left resident; clean occupants are
// released either way (spec.md §4.4 "spill-victim selection
// / state machine"; original_source spill_used_regs).
func (st *state) spillUsedRegs(pc int, globalOnly bool) {
	for i := 0; i < ir2.RegCount; i++ {
		v := st.regs.Occupant(i)
		if v == nil {
			continue
		}
		if v.EOL == pc {
			continue
		}
		if !st.regs.Dirty(i) {
			st.regs.Release(i)
			continue
		}
		switch {
		case v.IsGlobal:
			st.assignOffset(st.store.GlobalFunc(), v)
			st.prog.Add(ir2.Instruction{Op: ir2.GlobalStore, Src0: i, Src1: v.Offset})
		case !globalOnly:
			st.assignOffset(st.fn, v)
			st.prog.Add(ir2.Instruction{Op: ir2.Store, Src0: i, Src1: v.Offset})
		default:
			continue
		}
		st.regs.Release(i)
	}
}

// assignOffset lazily assigns a frame slot to a variable that the
// allocator is spilling for the first time (offset 0 is the sentinel for
// "unassigned", spec.md §3 Variable).
func (st *state) assignOffset(owner *entity.Function, v *entity.Variable) {
	if v.Offset != 0 {
		return
	}
	v.Offset = owner.StackSize
	owner.StackSize += 4
}

// getSrcReg returns the register slot holding var, loading it from memory
// (spilling a victim first if the file is full) if it is not already
// resident. reserved, if >= 0, is a slot the victim search must not pick
// (spec.md §4.4; original_source get_src_reg).
func (st *state) getSrcReg(fn *entity.Function, v *entity.Variable, reserved int) (int, error) {
	if j := st.regs.Find(v); j >= 0 {
		return j, nil
	}

	if j := st.regs.TryFree(); j >= 0 {
		st.regs.Bind(j, v, false)
		op := ir2.Load
		if v.IsGlobal {
			op = ir2.GlobalLoad
		}
		st.prog.Add(ir2.Instruction{Op: op, Src0: v.Offset, Dest: j})
		return j, nil
	}

	var skip []int
	if reserved >= 0 {
		skip = []int{reserved}
	}
	victim := st.regs.SpillVictim(skip...)
	if victim < 0 {
		return 0, compileerr.Newf(compileerr.Capacity, "register file exhausted with no spill victim")
	}

	occ := st.regs.Occupant(victim)
	if st.regs.Dirty(victim) {
		st.assignOffset(ownerOf(st.store, fn, occ), occ)
		op := ir2.Store
		if occ.IsGlobal {
			op = ir2.GlobalStore
		}
		st.prog.Add(ir2.Instruction{Op: op, Src0: victim, Src1: occ.Offset})
	}

	st.regs.Bind(victim, v, false)
	op := ir2.Load
	if v.IsGlobal {
		op = ir2.GlobalLoad
	}
	st.prog.Add(ir2.Instruction{Op: op, Src0: v.Offset, Dest: victim})
	return victim, nil
}

// getDestReg returns the register slot that will hold a freshly defined
// var, preferring (in order): a slot it already occupies, a free slot, the
// src0/src1 slot if that operand's EOL ends at pc (so the operand and
// result can share a register), and finally a spilled victim
// (original_source get_dest_reg). holdSrc1 excludes src1 from both the
// reuse check and the victim search, needed for OP_log_and's short-circuit
// codegen which must keep src1 live past this instruction.
func (st *state) getDestReg(fn *entity.Function, v *entity.Variable, pc, src0, src1 int, holdSrc1 bool) (int, error) {
	if j := st.regs.Find(v); j >= 0 {
		st.regs.MarkDirty(j)
		return j, nil
	}
	if j := st.regs.TryFree(); j >= 0 {
		st.regs.Bind(j, v, true)
		return j, nil
	}
	if src0 >= 0 {
		if occ := st.regs.Occupant(src0); occ != nil && occ.EOL == pc {
			st.regs.Bind(src0, v, true)
			return src0, nil
		}
	}
	if !holdSrc1 && src1 >= 0 {
		if occ := st.regs.Occupant(src1); occ != nil && occ.EOL == pc {
			st.regs.Bind(src1, v, true)
			return src1, nil
		}
	}

	var skip []int
	if holdSrc1 && src1 >= 0 {
		skip = []int{src1}
	}
	victim := st.regs.SpillVictim(skip...)
	if victim < 0 {
		return 0, compileerr.Newf(compileerr.Capacity, "register file exhausted with no spill victim")
	}

	occ := st.regs.Occupant(victim)
	if st.regs.Dirty(victim) {
		st.assignOffset(ownerOf(st.store, fn, occ), occ)
		op := ir2.Store
		if occ.IsGlobal {
			op = ir2.GlobalStore
		}
		st.prog.Add(ir2.Instruction{Op: op, Src0: victim, Src1: occ.Offset})
	}

	st.regs.Bind(victim, v, true)
	return victim, nil
}

func ownerOf(store *entity.Store, fn *entity.Function, v *entity.Variable) *entity.Function {
	if v.IsGlobal {
		return store.GlobalFunc()
	}
	return fn
}
