package ir1

import (
	"fmt"
	"io"

	"shecc/internal/entity"
)

// Dump writes a human-readable listing of body to w, in the teacher's
// String()-per-instruction idiom (grounded on
// original_source/src/globals.c's dump_ph1_ir text shapes). It never
// affects emission (spec.md §7).
func Dump(w io.Writer, body []Instruction) {
	indent := 0
	for _, in := range body {
		switch in.Op {
		case Define:
			fmt.Fprintf(w, "def @%s()\n", in.FuncName)
		case BlockStart:
			fmt.Fprintf(w, "%s{\n", tabs(indent))
			indent++
		case BlockEnd:
			indent--
			fmt.Fprintf(w, "%s}\n", tabs(indent))
		case Allocate:
			fmt.Fprintf(w, "%sallocate %%%s\n", tabs(indent), name(in.Src0))
		case Label:
			fmt.Fprintf(w, "%s:\n", in.Label)
		case Branch:
			fmt.Fprintf(w, "%sbr %%%s, %s, %s\n", tabs(indent), name(in.Src0), in.TrueLabel, in.FalseLabel)
		case Jump:
			fmt.Fprintf(w, "%sj %s\n", tabs(indent), in.JumpTarget)
		case LoadConstant:
			fmt.Fprintf(w, "%sconst %%%s, $%d\n", tabs(indent), name(in.Dest), in.Dest.InitVal)
		case Assign:
			fmt.Fprintf(w, "%s%%%s = %%%s\n", tabs(indent), name(in.Dest), name(in.Src0))
		case Push:
			fmt.Fprintf(w, "%spush %%%s\n", tabs(indent), name(in.Src0))
		case Call:
			fmt.Fprintf(w, "%scall @%s, %d\n", tabs(indent), in.FuncName, in.ParamNum)
		case FuncRet:
			fmt.Fprintf(w, "%sretval %%%s\n", tabs(indent), name(in.Dest))
		case Return:
			if in.Src0 != nil {
				fmt.Fprintf(w, "%sret %%%s\n", tabs(indent), name(in.Src0))
			} else {
				fmt.Fprintf(w, "%sret\n", tabs(indent))
			}
		case AddressOf:
			fmt.Fprintf(w, "%s%%%s = &(%%%s)\n", tabs(indent), name(in.Dest), name(in.Src0))
		case Read:
			fmt.Fprintf(w, "%s%%%s = (%%%s), %d\n", tabs(indent), name(in.Dest), name(in.Src0), in.Size)
		case Write:
			fmt.Fprintf(w, "%s(%%%s) = %%%s, %d\n", tabs(indent), name(in.Dest), name(in.Src0), in.Size)
		case Indirect:
			fmt.Fprintf(w, "%sindirect call @(%%%s)\n", tabs(indent), name(in.Src0))
		default:
			switch {
			case in.Op.IsBinary():
				fmt.Fprintf(w, "%s%%%s = %s %%%s, %%%s\n", tabs(indent), name(in.Dest), in.Op, name(in.Src0), name(in.Src1))
			case in.Op.IsUnary():
				fmt.Fprintf(w, "%s%%%s = %s %%%s\n", tabs(indent), name(in.Dest), in.Op, name(in.Src0))
			}
		}
	}
}

func name(v *entity.Variable) string {
	if v == nil {
		return ""
	}
	return v.Name
}

func tabs(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '\t'
	}
	return string(b)
}
