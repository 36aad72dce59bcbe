// Package liveness computes end-of-life (EOL) indices for every variable
// referenced in a Phase-1 IR body stream (spec.md §4.2). This is a forward
// scan, not a backward dataflow fixpoint (spec.md Non-goals): each operand
// reference simply extends its variable's EOL to (at least) the current
// instruction index, with one refinement for loop bodies, described below.
package liveness

import (
	"shecc/internal/compileerr"
	"shecc/internal/entity"
	"shecc/internal/ir1"
	"shecc/internal/util"
)

// maxLoopDepth bounds the loop-end stack; original_source's loop_lv[] is a
// fixed array of this size (defs.h MAX_NESTING).
const maxLoopDepth = 10

// Compute walks body once and sets every referenced variable's EOL and
// InLoop fields in place. instructions are indexed 0..len(body)-1; a
// variable's EOL is the index of the last instruction (within the current
// loop nesting, see below) that reads or writes it.
//
// Loop-end extension (spec.md §4.2, grounded on
// original_source/src/riscv-codegen.c's loop_lv stack): a variable
// referenced anywhere inside a while-loop body must stay live through the
// loop's closing branch, even if its last textual reference is earlier in
// the loop body, because the loop may re-enter and reread it. We track this
// with a stack of "current loop end index" entries: when the scan enters a
// while loop (signalled by the front-end emitting a Label at
// util.LabelWhileHead and later a matching Label at util.LabelWhileEnd) we
// push the index of the loop's end label; every reference inside extends
// EOL to at least that pushed value, not just to the reference's own index.
func Compute(body []ir1.Instruction) error {
	var loopEnds util.Stack

	// endIndex maps every Label's name to its own instruction index, from a
	// first forward pass; a while-head label finds its loop end by looking
	// up the matching while-end label name (whileEndFor) here.
	endIndex := make(map[string]int)
	for i, in := range body {
		if in.Op == ir1.Label {
			endIndex[in.Label] = i
		}
	}

	for i, in := range body {
		if in.Op == ir1.Label {
			switch {
			case isWhileHead(in.Label):
				end, ok := endIndex[whileEndFor(in.Label)]
				if ok {
					if loopEnds.Size() >= maxLoopDepth {
						return compileerr.Newf(compileerr.Capacity, "loop nesting exceeds %d", maxLoopDepth)
					}
					loopEnds.Push(end)
				}
			case isWhileEnd(in.Label):
				if loopEnds.Size() > 0 {
					loopEnds.Pop()
				}
			}
		}

		limit := i
		if loopEnds.Size() > 0 {
			if top, ok := loopEnds.Peek().(int); ok && top > limit {
				limit = top
			}
		}

		extend(in.Dest, limit)
		extend(in.Src0, limit)
		extend(in.Src1, limit)

		if loopEnds.Size() > 0 {
			markInLoop(in.Dest)
			markInLoop(in.Src0)
			markInLoop(in.Src1)
		}
	}
	return nil
}

func extend(v *entity.Variable, end int) {
	if v == nil {
		return
	}
	if v.IsGlobal {
		v.EOL = entity.Forever
		return
	}
	v.ExtendEOL(end)
}

func markInLoop(v *entity.Variable) {
	if v != nil {
		v.InLoop = true
	}
}

// isWhileHead/isWhileEnd/whileEndFor interpret label names produced by
// util.LabelAllocator's LabelWhileHead/LabelWhileEnd kinds.
func isWhileHead(label string) bool { return hasPrefix(label, "_WHEAD") }
func isWhileEnd(label string) bool  { return hasPrefix(label, "_WEND") }

func whileEndFor(head string) string {
	return "_WEND" + head[len("_WHEAD"):]
}

func hasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}
