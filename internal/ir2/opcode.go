// Package ir2 defines Phase-2 IR: the lowered instruction stream whose
// operands are register/offset slots instead of variable references
// (spec.md §3, §4.4, §6, GLOSSARY). Phase-2 shares its opcode space with
// Phase-1 (original_source/src/defs.h's single opcode_t enum covers both
// phases); ir2.Op is a type alias over ir1.Op so the two IR stages stay in
// lockstep by construction rather than by convention.
package ir2

import "shecc/internal/ir1"

// Op is the Phase-2 opcode type, sharing ir1's closed enum.
type Op = ir1.Op

// Re-exported for callers that only import ir2.
const (
	Define          = ir1.Define
	Allocate        = ir1.Allocate
	Assign          = ir1.Assign
	Store           = ir1.Store
	Load            = ir1.Load
	GlobalStore     = ir1.GlobalStore
	GlobalLoad      = ir1.GlobalLoad
	GlobalAddrOf    = ir1.GlobalAddrOf
	Branch          = ir1.Branch
	FuncRet         = ir1.FuncRet
	FuncAddr        = ir1.FuncAddr
	FuncEntry       = ir1.FuncEntry
	Exit            = ir1.Exit
	Call            = ir1.Call
	Indirect        = ir1.Indirect
	FuncExit        = ir1.FuncExit
	Return          = ir1.Return
	LoadConstant    = ir1.LoadConstant
	LoadDataAddress = ir1.LoadDataAddress
	Push            = ir1.Push
	Pop             = ir1.Pop
	Jump            = ir1.Jump
	Label           = ir1.Label
	Jz              = ir1.Jz
	Jnz             = ir1.Jnz
	BlockStart      = ir1.BlockStart
	BlockEnd        = ir1.BlockEnd
	AddressOf       = ir1.AddressOf
	Read            = ir1.Read
	Write           = ir1.Write
	Add             = ir1.Add
	Sub             = ir1.Sub
	Mul             = ir1.Mul
	Div             = ir1.Div
	Mod             = ir1.Mod
	Ternary         = ir1.Ternary
	LShift          = ir1.LShift
	RShift          = ir1.RShift
	LogAnd          = ir1.LogAnd
	LogOr           = ir1.LogOr
	LogNot          = ir1.LogNot
	Eq              = ir1.Eq
	Neq             = ir1.Neq
	Lt              = ir1.Lt
	Leq             = ir1.Leq
	Gt              = ir1.Gt
	Geq             = ir1.Geq
	BitOr           = ir1.BitOr
	BitAnd          = ir1.BitAnd
	BitXor          = ir1.BitXor
	BitNot          = ir1.BitNot
	Negate          = ir1.Negate
	Syscall         = ir1.Syscall
	Start           = ir1.Start
)
