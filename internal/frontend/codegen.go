package frontend

import (
	"shecc/internal/compileerr"
	"shecc/internal/entity"
	"shecc/internal/ir1"
)

// newLocalTemp allocates an unnamed compiler-generated variable in the
// current block to hold an intermediate expression result.
func (p *parser) newLocalTemp(base string, ptrDepth int) *entity.Variable {
	p.tempSeq++
	v := entity.Variable{Name: tempName(p.tempSeq), TypeName: base, PtrDepth: ptrDepth, IsGlobal: p.inGlobals}
	return p.appendLocal(v)
}

// declareLocal adds a named variable to the current block (or the global
// block, while parsing file scope), erroring if the block's reserved
// Locals capacity (localsCap) would be exceeded.
func (p *parser) declareLocal(name, base string, ptrDepth, arraySize int) (*entity.Variable, error) {
	b := p.block
	if p.inGlobals {
		b = p.store.GlobalBlock()
	}
	if len(b.Locals) >= cap(b.Locals) {
		return nil, compileerr.Newf(compileerr.Capacity, "block exceeds %d local declarations", localsCap)
	}
	v := entity.Variable{Name: name, TypeName: base, PtrDepth: ptrDepth, ArraySize: arraySize, IsGlobal: p.inGlobals}
	return p.appendLocal(v), nil
}

func (p *parser) appendLocal(v entity.Variable) *entity.Variable {
	b := p.block
	if p.inGlobals || b == nil {
		b = p.store.GlobalBlock()
	}
	b.Locals = append(b.Locals, v)
	return &b.Locals[len(b.Locals)-1]
}

// emit appends an instruction to the body stream, except while parsing
// file scope, when it goes to the global-initializer stream instead
// (package lower's lowerGlobals only understands a small opcode subset
// there; see parseGlobalVar's int-constant path, the only global
// initializer form this grammar supports).
func (p *parser) emit(in ir1.Instruction) int {
	if p.inGlobals {
		return p.prog.AddGlobal(in)
	}
	return p.prog.Add(in)
}

func (p *parser) emitLoadConstant(val int) *entity.Variable {
	tmp := p.newLocalTemp("int", 0)
	tmp.InitVal = val
	p.emit(ir1.Instruction{Op: ir1.LoadConstant, Dest: tmp})
	return tmp
}

func (p *parser) emitBinary(op ir1.Op, a, b *entity.Variable) *entity.Variable {
	dest := p.newLocalTemp("int", 0)
	p.emit(ir1.Instruction{Op: op, Src0: a, Src1: b, Dest: dest})
	return dest
}

func (p *parser) emitUnary(op ir1.Op, a *entity.Variable) *entity.Variable {
	dest := p.newLocalTemp("int", 0)
	p.emit(ir1.Instruction{Op: op, Src0: a, Dest: dest})
	return dest
}

func (p *parser) emitAssignVar(dst, src *entity.Variable) {
	p.emit(ir1.Instruction{Op: ir1.Assign, Src0: src, Dest: dst})
}

func (p *parser) emitAddressOf(v *entity.Variable) *entity.Variable {
	dest := p.newLocalTemp(v.TypeName, v.PtrDepth+1)
	p.emit(ir1.Instruction{Op: ir1.AddressOf, Src0: v, Dest: dest})
	return dest
}

func (p *parser) emitRead(addr *entity.Variable, size int) *entity.Variable {
	dest := p.newLocalTemp("int", 0)
	p.emit(ir1.Instruction{Op: ir1.Read, Src0: addr, Size: size, Dest: dest})
	return dest
}

func (p *parser) emitWrite(val, addr *entity.Variable, size int) {
	p.emit(ir1.Instruction{Op: ir1.Write, Src0: val, Dest: addr, Size: size})
}

// emitOffsetAddr computes base + off (a byte address), the shared
// machinery behind array indexing and struct field access.
func (p *parser) emitOffsetAddr(base *entity.Variable, off int) *entity.Variable {
	if off == 0 {
		return base
	}
	c := p.emitLoadConstant(off)
	return p.emitBinary(ir1.Add, base, c)
}

func (p *parser) newLabel(kind int) string { return p.labs.Next(kind) }

func (p *parser) emitLabel(name string) {
	p.emit(ir1.Instruction{Op: ir1.Label, Label: name})
}

func (p *parser) emitJump(target string) {
	p.emit(ir1.Instruction{Op: ir1.Jump, JumpTarget: target})
}

func (p *parser) emitBranch(cond *entity.Variable, trueLabel, falseLabel string) {
	p.emit(ir1.Instruction{Op: ir1.Branch, Src0: cond, TrueLabel: trueLabel, FalseLabel: falseLabel})
}

// emitCall lowers a direct call by name: every argument is pushed left to
// right, then OP_call, then (for a non-void callee) OP_func_ret captures
// the result out of the implicit return-value slot (package lower's
// FuncRet case).
func (p *parser) emitCall(name string, args []*entity.Variable) (*entity.Variable, error) {
	fn := p.store.FindFunc(name)
	if fn == nil {
		return nil, compileerr.Newf(compileerr.Shape, "call to undeclared function %q", name)
	}
	for _, a := range args {
		p.emit(ir1.Instruction{Op: ir1.Push, Src0: a, ParamNum: len(args)})
	}
	p.emit(ir1.Instruction{Op: ir1.Call, FuncName: name, ParamNum: len(args)})
	if fn.Return.TypeName == "void" && fn.Return.PtrDepth == 0 {
		return nil, nil
	}
	dest := p.newLocalTemp(fn.Return.TypeName, fn.Return.PtrDepth)
	p.emit(ir1.Instruction{Op: ir1.FuncRet, Dest: dest})
	return dest, nil
}

// emitIndirectCall lowers a call through a function-pointer variable
// (package lower's Indirect case, which always reads the pointer from its
// frame slot rather than its register, see internal/lower/lower.go).
func (p *parser) emitIndirectCall(fnVar *entity.Variable, args []*entity.Variable) *entity.Variable {
	for _, a := range args {
		p.emit(ir1.Instruction{Op: ir1.Push, Src0: a, ParamNum: len(args)})
	}
	p.emit(ir1.Instruction{Op: ir1.Indirect, Src0: fnVar})
	dest := p.newLocalTemp("int", 0)
	p.emit(ir1.Instruction{Op: ir1.FuncRet, Dest: dest})
	return dest
}

// funcTag returns a transient, store-less Variable used only as the
// OP_write "value" operand when the value being written is a function's
// address (in.Src0.IsFunc in package lower's Write case), e.g. "f = &g;"
// where g names a function.
func funcTag(name string) *entity.Variable {
	return &entity.Variable{Name: name, IsFunc: true}
}
