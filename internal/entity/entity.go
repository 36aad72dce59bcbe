// Package entity provides the arena-allocated tables of functions, blocks,
// types, variables, aliases, and constants that every other core
// component references by pointer or stable index (spec.md §3, §4.1,
// §9 "Cyclic references"). The entity store owns every entity; all other
// components hold borrowed references. Deletion is not supported.
package entity

import "shecc/internal/compileerr"

// Forever is the sentinel end-of-life value assigned to variables with
// static (process-lifetime) storage duration: it outlives any real
// instruction index.
const Forever = 1 << 28

// BaseKind is the built-in type tag carried by every Type.
type BaseKind int

const (
	Void BaseKind = iota
	Int
	Char
	Struct
)

func (k BaseKind) String() string {
	switch k {
	case Void:
		return "void"
	case Int:
		return "int"
	case Char:
		return "char"
	case Struct:
		return "struct"
	default:
		return "unknown"
	}
}

// Variable is the single representation used for globals, locals,
// parameters, and struct fields (spec.md §3 "Variable").
type Variable struct {
	Name      string
	TypeName  string
	PtrDepth  int
	IsFunc    bool
	ArraySize int // 0 means scalar.
	Offset    int // 0 means unassigned.
	InitVal   int
	IsGlobal  bool
	EOL       int
	InLoop    bool
}

// IsArray reports whether the variable was declared with a nonzero
// element count.
func (v *Variable) IsArray() bool { return v.ArraySize > 0 }

// ExtendEOL raises the variable's end-of-life to end if end is later than
// its current EOL. EOL only ever grows (spec.md §3 global invariants).
func (v *Variable) ExtendEOL(end int) {
	if end > v.EOL {
		v.EOL = end
	}
}

// Type describes a named built-in or struct type.
type Type struct {
	Name     string
	BaseKind BaseKind
	Size     int
	Fields   []Variable
}

// Field returns the named field of a struct Type, or nil if absent.
func (t *Type) Field(name string) *Variable {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// Function is a function record; function index 0 (see Store.Funcs[0]) is
// the pseudo "global frame" holding process-lifetime variables, and its
// StackSize is the global data area size.
type Function struct {
	Return    Variable // Name() is stored in Return.Name.
	Params    []Variable
	Variadic  bool
	StackSize int
}

// Name returns the function's name.
func (f *Function) Name() string { return f.Return.Name }

// NumParams returns the number of declared parameters.
func (f *Function) NumParams() int { return len(f.Params) }

// Param returns the named parameter, or nil if absent.
func (f *Function) Param(name string) *Variable {
	for i := range f.Params {
		if f.Params[i].Name == name {
			return &f.Params[i]
		}
	}
	return nil
}

// Block is a node in the lexical block tree. Block 0 (Store.Blocks[0])
// holds global variables; name lookup walks Parent links.
type Block struct {
	Locals     []Variable
	Parent     *Block
	Func       *Function
	LocalsSize int
	Index      int
}

// Local returns the named local variable declared directly in this block
// (not walking Parent), or nil if absent.
func (b *Block) Local(name string) *Variable {
	for i := range b.Locals {
		if b.Locals[i].Name == name {
			return &b.Locals[i]
		}
	}
	return nil
}

// Alias is a #define-style textual substitution.
type Alias struct {
	Name  string
	Value string
}

// Constant is a named integer constant, e.g. an enum member.
type Constant struct {
	Name  string
	Value int
}

// Limits bounds the entity store's arenas. Defaults mirror
// original_source/src/defs.h; a Store can be constructed with smaller
// limits for tests that want to exercise the Capacity error path cheaply.
type Limits struct {
	MaxFuncs     int
	MaxBlocks    int
	MaxTypes     int
	MaxAliases   int
	MaxConstants int
}

// DefaultLimits matches the original shecc's fixed arena sizes.
func DefaultLimits() Limits {
	return Limits{
		MaxFuncs:     256,
		MaxBlocks:    625,
		MaxTypes:     64,
		MaxAliases:   1024,
		MaxConstants: 1024,
	}
}

// Store is the entity arena. It is never freed and supports no deletion.
type Store struct {
	limits Limits

	funcs     []*Function
	blocks    []*Block
	types     []*Type
	aliases   []*Alias
	constants []*Constant
}

// NewStore creates an entity store with the given Limits, pre-populated
// with function index 0 (the global frame) and block index 0 (globals).
func NewStore(limits Limits) *Store {
	s := &Store{limits: limits}
	global := &Function{Return: Variable{Name: "__globals"}, StackSize: 4}
	s.funcs = append(s.funcs, global)
	s.blocks = append(s.blocks, &Block{Func: global, Index: 0})
	return s
}

// Funcs returns every function in declaration order, including index 0.
func (s *Store) Funcs() []*Function { return s.funcs }

// Blocks returns every block in creation order, including index 0.
func (s *Store) Blocks() []*Block { return s.blocks }

// Types returns every declared named type.
func (s *Store) Types() []*Type { return s.types }

// GlobalFunc returns the pseudo global-frame function (index 0).
func (s *Store) GlobalFunc() *Function { return s.funcs[0] }

// GlobalBlock returns the global block (index 0).
func (s *Store) GlobalBlock() *Block { return s.blocks[0] }

// Func returns the function named name, creating it if it does not yet
// exist (the entity store's "find or add" contract, spec.md §4.1).
func (s *Store) Func(name string) (*Function, error) {
	for _, f := range s.funcs {
		if f.Return.Name == name {
			return f, nil
		}
	}
	if len(s.funcs) >= s.limits.MaxFuncs {
		return nil, compileerr.Newf(compileerr.Capacity, "function arena exhausted (max %d)", s.limits.MaxFuncs)
	}
	f := &Function{Return: Variable{Name: name}, StackSize: 4}
	s.funcs = append(s.funcs, f)
	return f, nil
}

// FindFunc returns the named function without creating it, or nil.
func (s *Store) FindFunc(name string) *Function {
	for _, f := range s.funcs {
		if f.Return.Name == name {
			return f
		}
	}
	return nil
}

// AddBlock creates and links a new child block of parent (nil for a
// top-level block of fn).
func (s *Store) AddBlock(parent *Block, fn *Function) (*Block, error) {
	if len(s.blocks) >= s.limits.MaxBlocks {
		return nil, compileerr.Newf(compileerr.Capacity, "block arena exhausted (max %d)", s.limits.MaxBlocks)
	}
	b := &Block{Parent: parent, Func: fn, Index: len(s.blocks)}
	s.blocks = append(s.blocks, b)
	return b, nil
}

// AddNamedType creates a new named Type record.
func (s *Store) AddNamedType(name string, kind BaseKind) (*Type, error) {
	if len(s.types) >= s.limits.MaxTypes {
		return nil, compileerr.Newf(compileerr.Capacity, "type arena exhausted (max %d)", s.limits.MaxTypes)
	}
	t := &Type{Name: name, BaseKind: kind}
	s.types = append(s.types, t)
	return t, nil
}

// FindType returns the named type, or nil if undeclared.
func (s *Store) FindType(name string) *Type {
	for _, t := range s.types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// AddAlias records a #define-style alias, find-or-add by name.
func (s *Store) AddAlias(name, value string) (*Alias, error) {
	for _, a := range s.aliases {
		if a.Name == name {
			a.Value = value
			return a, nil
		}
	}
	if len(s.aliases) >= s.limits.MaxAliases {
		return nil, compileerr.Newf(compileerr.Capacity, "alias arena exhausted (max %d)", s.limits.MaxAliases)
	}
	a := &Alias{Name: name, Value: value}
	s.aliases = append(s.aliases, a)
	return a, nil
}

// FindAlias returns the named alias's value, or "" with ok=false.
func (s *Store) FindAlias(name string) (string, bool) {
	for _, a := range s.aliases {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AddConstant records a named integer constant, find-or-add by name.
func (s *Store) AddConstant(name string, value int) (*Constant, error) {
	for _, c := range s.constants {
		if c.Name == name {
			c.Value = value
			return c, nil
		}
	}
	if len(s.constants) >= s.limits.MaxConstants {
		return nil, compileerr.Newf(compileerr.Capacity, "constant arena exhausted (max %d)", s.limits.MaxConstants)
	}
	c := &Constant{Name: name, Value: value}
	s.constants = append(s.constants, c)
	return c, nil
}

// FindConstant returns the named constant, or nil.
func (s *Store) FindConstant(name string) *Constant {
	for _, c := range s.constants {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindLocal walks block and its Parent links, then the owning function's
// parameters; it does not search the global block (FindVar does)
// (spec.md §3 "Block").
func (s *Store) FindLocal(name string, block *Block) *Variable {
	for b := block; b != nil; b = b.Parent {
		if v := b.Local(name); v != nil {
			return v
		}
	}
	if block != nil && block.Func != nil {
		if v := block.Func.Param(name); v != nil {
			return v
		}
	}
	return nil
}

// FindGlobal returns the named global variable, or nil.
func (s *Store) FindGlobal(name string) *Variable {
	return s.GlobalBlock().Local(name)
}

// FindVar resolves name starting from block, falling back to globals
// (original_source/src/globals.c find_var).
func (s *Store) FindVar(name string, block *Block) *Variable {
	if v := s.FindLocal(name, block); v != nil {
		return v
	}
	return s.FindGlobal(name)
}

// SizeOfVar returns the byte size a variable occupies in its frame:
// pointers and function pointers are pointer-sized; scalars are their
// named type's size; arrays are element size times element count
// (original_source/src/globals.c size_var).
func (s *Store) SizeOfVar(v *Variable) (int, error) {
	if v.PtrDepth > 0 || v.IsFunc {
		return 4, nil
	}
	t := s.FindType(v.TypeName)
	if t == nil {
		return 0, compileerr.Newf(compileerr.Shape, "unknown type %q", v.TypeName)
	}
	if v.ArraySize > 0 {
		return t.Size * v.ArraySize, nil
	}
	return t.Size, nil
}
