package lower

import (
	"testing"

	"shecc/internal/entity"
	"shecc/internal/ir1"
	"shecc/internal/ir2"
	"shecc/internal/liveness"
)

func buildSimpleReturn(t *testing.T) (*entity.Store, *ir1.Program) {
	t.Helper()
	store := entity.NewStore(entity.DefaultLimits())
	intType, _ := store.AddNamedType("int", entity.Int)
	intType.Size = 4

	fn, err := store.Func("main")
	if err != nil {
		t.Fatalf("Func: %v", err)
	}
	fn.Return.TypeName = "int"

	x := &entity.Variable{Name: "x", TypeName: "int"}
	prog := ir1.NewProgram(store)
	prog.Add(ir1.Instruction{Op: ir1.Define, FuncName: "main"})
	prog.Add(ir1.Instruction{Op: ir1.BlockStart})
	prog.Add(ir1.Instruction{Op: ir1.Allocate, Src0: x})
	x.InitVal = 1
	prog.Add(ir1.Instruction{Op: ir1.LoadConstant, Dest: x})
	prog.Add(ir1.Instruction{Op: ir1.Return, Src0: x})
	prog.Add(ir1.Instruction{Op: ir1.BlockEnd})

	if err := liveness.Compute(prog.BodyIR); err != nil {
		t.Fatalf("liveness.Compute: %v", err)
	}
	return store, prog
}

func TestLowerSimpleReturn(t *testing.T) {
	store, prog := buildSimpleReturn(t)

	out, err := Lower(store, prog)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var sawDefine, sawReturn bool
	for _, in := range out.BodyIR {
		switch in.Op {
		case ir2.Define:
			sawDefine = true
			if in.FuncName != "main" {
				t.Fatalf("Define.FuncName = %q, want main", in.FuncName)
			}
		case ir2.Return:
			sawReturn = true
			if in.Src0 < 0 {
				t.Fatalf("Return.Src0 = %d, want a valid register", in.Src0)
			}
		}
	}
	if !sawDefine || !sawReturn {
		t.Fatalf("missing Define or Return in lowered body: %+v", out.BodyIR)
	}
}

func TestLowerRejectsTooManyParams(t *testing.T) {
	store := entity.NewStore(entity.DefaultLimits())
	fn, _ := store.Func("f")
	for i := 0; i < ir2.RegCount+1; i++ {
		fn.Params = append(fn.Params, entity.Variable{Name: "p"})
	}
	prog := ir1.NewProgram(store)
	prog.Add(ir1.Instruction{Op: ir1.Define, FuncName: "f"})

	if _, err := Lower(store, prog); err == nil {
		t.Fatalf("Lower: want error for >RegCount params, got nil")
	}
}

func TestLowerRejectsTooManyCallArguments(t *testing.T) {
	store := entity.NewStore(entity.DefaultLimits())
	intType, _ := store.AddNamedType("int", entity.Int)
	intType.Size = 4
	callee, _ := store.Func("f")
	callee.Return.TypeName = "int"
	main, _ := store.Func("main")
	main.Return.TypeName = "int"

	prog := ir1.NewProgram(store)
	prog.Add(ir1.Instruction{Op: ir1.Define, FuncName: "main"})
	prog.Add(ir1.Instruction{Op: ir1.BlockStart})
	for i := 0; i < ir2.RegCount+1; i++ {
		arg := &entity.Variable{Name: "a", TypeName: "int"}
		arg.InitVal = i
		prog.Add(ir1.Instruction{Op: ir1.LoadConstant, Dest: arg})
		prog.Add(ir1.Instruction{Op: ir1.Push, Src0: arg, ParamNum: ir2.RegCount + 1})
	}
	prog.Add(ir1.Instruction{Op: ir1.Call, FuncName: "f", ParamNum: ir2.RegCount + 1})
	prog.Add(ir1.Instruction{Op: ir1.BlockEnd})

	if err := liveness.Compute(prog.BodyIR); err != nil {
		t.Fatalf("liveness.Compute: %v", err)
	}
	if _, err := Lower(store, prog); err == nil {
		t.Fatalf("Lower: want error for a call with >RegCount arguments, got nil")
	}
}
