package emit

import (
	"testing"

	"shecc/internal/ir2"
)

func TestEmitProducesSizeMatchingPassA(t *testing.T) {
	prog := &ir2.Program{
		BodyIR: []ir2.Instruction{
			{Op: ir2.Jump, FalseLabel: "main"},
			{Op: ir2.Define, FuncName: "main"},
			{Op: ir2.BlockStart},
			{Op: ir2.LoadConstant, Src0: 1, Dest: 0},
			{Op: ir2.Return, Src0: 0},
			{Op: ir2.BlockEnd},
		},
	}

	out, err := Emit(prog)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(out)%4 != 0 {
		t.Fatalf("output length %d is not word-aligned", len(out))
	}

	_, _, _, _, end, err := sizePass(prog)
	if err != nil {
		t.Fatalf("sizePass: %v", err)
	}
	if len(out) != end {
		t.Fatalf("Emit produced %d bytes, Pass A predicted %d", len(out), end)
	}
}

func TestEmitRejectsUndefinedJumpTarget(t *testing.T) {
	prog := &ir2.Program{
		BodyIR: []ir2.Instruction{
			{Op: ir2.Jump, FalseLabel: "nowhere"},
		},
	}
	if _, err := Emit(prog); err == nil {
		t.Fatalf("Emit: want error for undefined jump target, got nil")
	}
}

func TestEmitRejectsUnsupportedReadSize(t *testing.T) {
	prog := &ir2.Program{
		BodyIR: []ir2.Instruction{
			{Op: ir2.Read, Dest: 0, Src0: 1, Src1: 2},
		},
	}
	if _, err := Emit(prog); err == nil {
		t.Fatalf("Emit: want error for a read of size 2, got nil")
	}
}

func TestEmitRejectsUnsupportedWriteSize(t *testing.T) {
	prog := &ir2.Program{
		BodyIR: []ir2.Instruction{
			{Op: ir2.Write, Src0: 0, Src1: 1, Dest: 2},
		},
	}
	if _, err := Emit(prog); err == nil {
		t.Fatalf("Emit: want error for a write of size 2, got nil")
	}
}

func TestSizeOfSplitsOnImmediateRange(t *testing.T) {
	small := sizeOf(ir2.Instruction{Op: ir2.Load, Src0: immMax}, false, false)
	large := sizeOf(ir2.Instruction{Op: ir2.Load, Src0: immMax + 1}, false, false)
	if small != 4 {
		t.Fatalf("in-range Load size = %d, want 4", small)
	}
	if large != 16 {
		t.Fatalf("out-of-range Load size = %d, want 16", large)
	}
}
