// Command shecc compiles a C-subset source file to a RISC-V32 ELF
// executable: frontend.Parse builds Phase-1 IR, package liveness computes
// end-of-life annotations over it, package lower performs register
// allocation into Phase-2 IR, package emit assembles machine code, and
// package elfwriter wraps the result in a loadable image.
package main

import (
	"fmt"
	"os"

	"shecc/internal/elfwriter"
	"shecc/internal/emit"
	"shecc/internal/frontend"
	"shecc/internal/ir1"
	"shecc/internal/liveness"
	"shecc/internal/lower"
	"shecc/internal/util"
)

// run reads src, drives every compiler stage in order, and writes the
// resulting ELF image to opt.Out.
func run(opt util.Options) error {
	src, err := os.ReadFile(opt.Src)
	if err != nil {
		return fmt.Errorf("could not read source code: %s", err)
	}

	prog, err := frontend.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parse error: %s", err)
	}

	if err := liveness.Compute(prog.BodyIR); err != nil {
		return fmt.Errorf("liveness error: %s", err)
	}

	if opt.DumpIR {
		fmt.Fprintln(os.Stderr, "-- globals --")
		ir1.Dump(os.Stderr, prog.GlobalIR)
		fmt.Fprintln(os.Stderr, "-- body --")
		ir1.Dump(os.Stderr, prog.BodyIR)
	}

	p2, err := lower.Lower(prog.Store, prog)
	if err != nil {
		return fmt.Errorf("register allocation error: %s", err)
	}

	code, err := emit.Emit(p2)
	if err != nil {
		return fmt.Errorf("code emission error: %s", err)
	}

	w := elfwriter.New()
	w.AddSymbol("__start", len(code), 0)
	w.WriteCodeBytes(code)
	img, err := w.Finalize(0)
	if err != nil {
		return fmt.Errorf("elf writer error: %s", err)
	}

	if err := os.WriteFile(opt.Out, img, 0755); err != nil {
		return fmt.Errorf("could not write %s: %s", opt.Out, err)
	}

	if opt.Verbose {
		fmt.Fprintf(os.Stderr, "%s: %d bytes\n", opt.Out, len(img))
	}
	return nil
}

func main() {
	opt, err := util.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "shecc: %s\n", err)
		util.Usage()
		os.Exit(1)
	}

	if err := run(opt); err != nil {
		fmt.Fprintf(os.Stderr, "shecc: %s\n", err)
		os.Exit(1)
	}
}
