package frontend

import (
	"testing"

	"shecc/internal/emit"
	"shecc/internal/ir1"
	"shecc/internal/liveness"
	"shecc/internal/lower"
)

// compileToMachineCode drives every stage after Parse, the same sequence
// cmd/shecc's driver runs, and fails the test on any stage error.
func compileToMachineCode(t *testing.T, src string) []byte {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := liveness.Compute(prog.BodyIR); err != nil {
		t.Fatalf("liveness.Compute: %v", err)
	}
	p2, err := lower.Lower(prog.Store, prog)
	if err != nil {
		t.Fatalf("lower.Lower: %v", err)
	}
	code, err := emit.Emit(p2)
	if err != nil {
		t.Fatalf("emit.Emit: %v", err)
	}
	if len(code)%4 != 0 {
		t.Fatalf("emitted code length %d is not word-aligned", len(code))
	}
	return code
}

func TestPipelineEmptyReturn(t *testing.T) {
	compileToMachineCode(t, `int main() { return 0; }`)
}

func TestPipelineLocalArithmetic(t *testing.T) {
	compileToMachineCode(t, `
		int main() {
			int a;
			int b;
			a = 7;
			b = 35;
			return a + b;
		}
	`)
}

func TestPipelineWhileLoop(t *testing.T) {
	compileToMachineCode(t, `
		int main() {
			int s;
			int i;
			s = 0;
			i = 0;
			while (i < 10) {
				s = s + i;
				i = i + 1;
			}
			return s;
		}
	`)
}

func TestPipelineLocalCharArrayInitializer(t *testing.T) {
	prog, err := Parse(`
		int main() {
			char s[4] = "abc";
			return s[1];
		}
	`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := liveness.Compute(prog.BodyIR); err != nil {
		t.Fatalf("liveness.Compute: %v", err)
	}
	if _, err := lower.Lower(prog.Store, prog); err != nil {
		t.Fatalf("lower.Lower: %v", err)
	}
}

func TestPipelineFunctionPointer(t *testing.T) {
	compileToMachineCode(t, `
		int g(int x) {
			return x + 1;
		}
		int main() {
			int (*f)(int);
			f = &g;
			return f(41);
		}
	`)
}

func TestPipelineRecursiveFactorial(t *testing.T) {
	compileToMachineCode(t, `
		int fact(int n) {
			if (n < 2) {
				return 1;
			}
			return n * fact(n - 1);
		}
		int main() {
			return fact(5);
		}
	`)
}

func TestPipelineStructFieldAccess(t *testing.T) {
	compileToMachineCode(t, `
		struct point {
			int x;
			int y;
		};
		int main() {
			struct point p;
			p.x = 3;
			p.y = 4;
			return p.x;
		}
	`)
}

func TestPipelineVoidFunctionImplicitReturn(t *testing.T) {
	compileToMachineCode(t, `
		void noop() {
			int x;
			x = 1;
		}
		int main() {
			noop();
			return 0;
		}
	`)
}

func TestPipelineGlobalVariable(t *testing.T) {
	prog, err := Parse(`
		int counter = 41;
		int main() {
			counter = counter + 1;
			return counter;
		}
	`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var sawGlobalStore bool
	if err := liveness.Compute(prog.BodyIR); err != nil {
		t.Fatalf("liveness.Compute: %v", err)
	}
	p2, err := lower.Lower(prog.Store, prog)
	if err != nil {
		t.Fatalf("lower.Lower: %v", err)
	}
	for _, in := range p2.BodyIR {
		if in.Op == ir1.GlobalStore {
			sawGlobalStore = true
		}
	}
	if !sawGlobalStore {
		t.Fatalf("expected a GlobalStore in lowered body, got: %+v", p2.BodyIR)
	}
}

func TestPipelineGlobalArrayStringInitializerRejected(t *testing.T) {
	_, err := Parse(`char s[4] = "abc"; int main() { return 0; }`)
	if err == nil {
		t.Fatalf("expected an error for a global array string initializer")
	}
}
