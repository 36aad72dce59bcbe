package liveness

import (
	"testing"

	"shecc/internal/entity"
	"shecc/internal/ir1"
)

func TestComputeExtendsEOLToLastReference(t *testing.T) {
	x := &entity.Variable{Name: "x"}
	y := &entity.Variable{Name: "y"}
	body := []ir1.Instruction{
		{Op: ir1.Allocate, Dest: x},
		{Op: ir1.Allocate, Dest: y},
		{Op: ir1.Assign, Dest: y, Src0: x},
		{Op: ir1.Return, Src0: y},
	}
	if err := Compute(body); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if x.EOL != 2 {
		t.Fatalf("x.EOL = %d, want 2", x.EOL)
	}
	if y.EOL != 3 {
		t.Fatalf("y.EOL = %d, want 3", y.EOL)
	}
}

func TestComputeGlobalIsForever(t *testing.T) {
	g := &entity.Variable{Name: "g", IsGlobal: true}
	body := []ir1.Instruction{
		{Op: ir1.GlobalLoad, Dest: g},
	}
	if err := Compute(body); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if g.EOL != entity.Forever {
		t.Fatalf("g.EOL = %d, want Forever", g.EOL)
	}
}

func TestComputeExtendsThroughLoopEnd(t *testing.T) {
	x := &entity.Variable{Name: "x"}
	body := []ir1.Instruction{
		{Op: ir1.Allocate, Dest: x},
		{Op: ir1.Label, Label: "_WHEAD_000"},
		{Op: ir1.Assign, Dest: x, Src0: x}, // last textual reference to x
		{Op: ir1.Jump, JumpTarget: "_WHEAD_000"},
		{Op: ir1.Label, Label: "_WEND_000"},
		{Op: ir1.Return},
	}
	if err := Compute(body); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if x.EOL < 4 {
		t.Fatalf("x.EOL = %d, want >= 4 (extended through loop end)", x.EOL)
	}
	if !x.InLoop {
		t.Fatalf("x.InLoop = false, want true")
	}
}
