package ir2

// Instruction is the single tagged representation for every Phase-2 IR
// instruction (spec.md §3 "Phase-2 IR instruction"), mirroring
// original_source/src/defs.h's ph2_ir_t exactly: Src0/Src1/Dest are
// interpreted per opcode as a register operand (a register file slot
// index 0..7, or 21 for the indirect-call scratch register), a
// frame/global byte offset, an immediate (LoadConstant), an access size
// (Read's Src1, Write's Dest), or -1 (a Return without a value), never as
// a variable reference — lowering (package lower) is the one stage that
// resolves variable references into these integers, via the register file
// model (package ir2's RegisterFile).
type Instruction struct {
	Op Op

	Src0 int
	Src1 int
	Dest int

	FuncName   string // Call/FuncAddr target, Define's function name, or Label's name.
	TrueLabel  string // Branch-taken target.
	FalseLabel string // Branch-not-taken target (also Jump's sole target, stored here).
}

// Program is the Phase-2 IR output of lowering: a global-initializer stream
// and a body stream, matching ir1.Program's shape.
type Program struct {
	GlobalIR []Instruction
	BodyIR   []Instruction
}

// Add appends an instruction to the body stream and returns its index.
func (p *Program) Add(inst Instruction) int {
	p.BodyIR = append(p.BodyIR, inst)
	return len(p.BodyIR) - 1
}

// AddGlobal appends an instruction to the global-initializer stream and
// returns its index.
func (p *Program) AddGlobal(inst Instruction) int {
	p.GlobalIR = append(p.GlobalIR, inst)
	return len(p.GlobalIR) - 1
}
