package frontend

import (
	"shecc/internal/compileerr"
	"shecc/internal/entity"
	"shecc/internal/ir1"
	"shecc/internal/util"
)

// localsCap is the per-block capacity reserved up front for Locals. Block
// and Function entities hand out *entity.Variable pointers into these
// slices (see entity.Block.Local, entity.Function.Param) that Phase-1 IR
// instructions hold onto for the lifetime of the program; reserving
// capacity once, before any pointer is taken, keeps those pointers stable
// across every later append (a plain append without this guard could
// reallocate the backing array and dangle every instruction already
// emitted against it).
const localsCap = 64

// typeInfo names a declared type together with its pointer depth, the
// parser's working representation of a C type before it is attached to a
// concrete entity.Variable.
type typeInfo struct {
	base     string
	ptrDepth int
}

// parser turns a token stream into a populated entity.Store and a
// complete ir1.Program: there is no intermediate AST (spec.md §1 places
// the surface syntax out of the core's scope; this package exists only so
// cmd/shecc is a runnable pipeline end to end).
type parser struct {
	toks []token
	pos  int

	store *entity.Store
	prog  *ir1.Program
	labs  util.LabelAllocator

	fn        *entity.Function
	block     *entity.Block
	funcPtrs  map[*entity.Variable]bool
	tempSeq   int
	inGlobals bool
}

// Parse lexes and parses src into a complete Phase-1 IR program backed by
// a fresh entity store.
func Parse(src string) (*ir1.Program, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	store := entity.NewStore(entity.DefaultLimits())
	p := &parser{
		toks:     toks,
		store:    store,
		prog:     ir1.NewProgram(store),
		funcPtrs: map[*entity.Variable]bool{},
	}
	if err := p.declarePrimitiveTypes(); err != nil {
		return nil, err
	}
	store.GlobalBlock().Locals = make([]entity.Variable, 0, localsCap)
	if err := p.parseProgram(); err != nil {
		return nil, err
	}
	return p.prog, nil
}

func (p *parser) declarePrimitiveTypes() error {
	specs := []struct {
		name string
		kind entity.BaseKind
		size int
	}{
		{"void", entity.Void, 0},
		{"int", entity.Int, 4},
		{"char", entity.Char, 1},
	}
	for _, s := range specs {
		t, err := p.store.AddNamedType(s.name, s.kind)
		if err != nil {
			return err
		}
		t.Size = s.size
	}
	return nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().typ == tokEOF }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	c := p.cur()
	return c.typ == tokPunct && c.text == s
}

func (p *parser) isKeyword(s string) bool {
	c := p.cur()
	return c.typ == tokKeyword && c.text == s
}

func (p *parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return compileerr.Newf(compileerr.Shape, "line %d: expected %q, got %q", p.cur().line, s, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	c := p.cur()
	if c.typ != tokIdent {
		return "", compileerr.Newf(compileerr.Shape, "line %d: expected identifier, got %q", c.line, c.text)
	}
	p.advance()
	return c.text, nil
}

// isTypeStart reports whether the current token can begin a type
// specifier (int/char/void/struct), used to distinguish a declaration
// statement from an expression statement.
func (p *parser) isTypeStart() bool {
	c := p.cur()
	if c.typ != tokKeyword {
		return false
	}
	return c.text == "int" || c.text == "char" || c.text == "void" || c.text == "struct"
}

// parseTypeSpec consumes a base type name: int, char, void, or struct
// IDENT (the struct must already be declared).
func (p *parser) parseTypeSpec() (string, error) {
	c := p.cur()
	if c.typ != tokKeyword {
		return "", compileerr.Newf(compileerr.Shape, "line %d: expected a type, got %q", c.line, c.text)
	}
	switch c.text {
	case "int", "char", "void":
		p.advance()
		return c.text, nil
	case "struct":
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		return name, nil
	}
	return "", compileerr.Newf(compileerr.Shape, "line %d: expected a type, got %q", c.line, c.text)
}

// parseProgram consumes top-level struct declarations, global variable
// declarations, and function declarations/definitions until EOF.
func (p *parser) parseProgram() error {
	p.inGlobals = true
	for !p.atEOF() {
		if p.isKeyword("struct") && p.peekIsStructDecl() {
			if err := p.parseStructDecl(); err != nil {
				return err
			}
			continue
		}
		if err := p.parseTopLevelDecl(); err != nil {
			return err
		}
	}
	return nil
}

// peekIsStructDecl distinguishes "struct Name { ... };" (a type
// declaration) from "struct Name var;" (a variable declaration using a
// previously declared struct type): the former has '{' right after the
// name.
func (p *parser) peekIsStructDecl() bool {
	if p.toks[p.pos].text != "struct" {
		return false
	}
	i := p.pos + 1
	if i >= len(p.toks) || p.toks[i].typ != tokIdent {
		return false
	}
	i++
	return i < len(p.toks) && p.toks[i].typ == tokPunct && p.toks[i].text == "{"
}

func (p *parser) parseStructDecl() error {
	p.advance() // struct
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	t, err := p.store.AddNamedType(name, entity.Struct)
	if err != nil {
		return err
	}
	offset := 0
	for !p.isPunct("}") {
		base, err := p.parseTypeSpec()
		if err != nil {
			return err
		}
		for {
			ptrDepth := 0
			for p.isPunct("*") {
				p.advance()
				ptrDepth++
			}
			fname, err := p.expectIdent()
			if err != nil {
				return err
			}
			arraySize := 0
			if p.isPunct("[") {
				p.advance()
				arraySize = p.cur().num
				p.advance()
				if err := p.expectPunct("]"); err != nil {
					return err
				}
			}
			field := entity.Variable{Name: fname, TypeName: base, PtrDepth: ptrDepth, ArraySize: arraySize, Offset: offset}
			sz, err := p.store.SizeOfVar(&field)
			if err != nil {
				return err
			}
			t.Fields = append(t.Fields, field)
			offset += sz
			if !p.isPunct(",") {
				break
			}
			p.advance()
		}
		if err := p.expectPunct(";"); err != nil {
			return err
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return err
	}
	t.Size = offset
	return p.expectPunct(";")
}

// parseTopLevelDecl parses "type declarator ( ... )" (a function) or
// "type declarator ;"/"type declarator = init ;" (a global variable),
// including the "(*name)(params)" function-pointer declarator form.
func (p *parser) parseTopLevelDecl() error {
	base, err := p.parseTypeSpec()
	if err != nil {
		return err
	}
	ptrDepth := 0
	for p.isPunct("*") {
		p.advance()
		ptrDepth++
	}

	if p.isPunct("(") {
		name, err := p.parseFuncPointerSuffix()
		if err != nil {
			return err
		}
		if err := p.expectPunct(";"); err != nil {
			return err
		}
		return p.declareFuncPtrVar(base, name)
	}

	name, err := p.expectIdent()
	if err != nil {
		return err
	}

	if p.isPunct("(") {
		return p.parseFuncDecl(base, ptrDepth, name)
	}

	return p.parseGlobalVar(base, ptrDepth, name)
}

// parseFuncPointerSuffix parses the "(*name)(paramTypes)" declarator tail
// shared by function-pointer globals (parseTopLevelDecl) and function-
// pointer locals (parseDeclStmt in statements.go); the parameter types are
// consumed for syntax only, since this grammar does not check call-site
// argument types against a declared signature.
func (p *parser) parseFuncPointerSuffix() (string, error) {
	p.advance() // "("
	if err := p.expectPunct("*"); err != nil {
		return "", err
	}
	name, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if err := p.expectPunct(")"); err != nil {
		return "", err
	}
	if err := p.expectPunct("("); err != nil {
		return "", err
	}
	for !p.isPunct(")") {
		if _, err := p.parseTypeSpec(); err != nil {
			return "", err
		}
		for p.isPunct("*") {
			p.advance()
		}
		if p.cur().typ == tokIdent {
			p.advance()
		}
		if p.isPunct(",") {
			p.advance()
			continue
		}
	}
	p.advance() // ")"
	return name, nil
}

// declareFuncPtrVar records name as a function-pointer-typed variable (in
// the current scope, global or local) and emits its frame allocation.
func (p *parser) declareFuncPtrVar(base, name string) error {
	v, err := p.declareLocal(name, base, 1, 0)
	if err != nil {
		return err
	}
	p.funcPtrs[v] = true
	p.emit(ir1.Instruction{Op: ir1.Allocate, Src0: v})
	return nil
}

func (p *parser) parseGlobalVar(base string, ptrDepth int, name string) error {
	arraySize := 0
	if p.isPunct("[") {
		p.advance()
		arraySize = p.cur().num
		p.advance()
		if err := p.expectPunct("]"); err != nil {
			return err
		}
	}
	v := entity.Variable{Name: name, TypeName: base, PtrDepth: ptrDepth, ArraySize: arraySize, IsGlobal: true}
	p.store.GlobalBlock().Locals = append(p.store.GlobalBlock().Locals, v)
	slot := p.store.FindGlobal(name)
	p.prog.AddGlobal(ir1.Instruction{Op: ir1.Allocate, Src0: slot})

	if p.isPunct("=") {
		p.advance()
		if arraySize > 0 && p.cur().typ == tokString {
			// A global's initializer runs in the global-IR stream
			// (package lower's lowerGlobals), which never reaches the
			// body's per-byte Write sequence a string literal needs; that
			// form is only supported for block-scope arrays (see
			// parseDeclStmt in statements.go).
			return compileerr.Newf(compileerr.Shape, "line %d: global char-array string initializers are not supported", p.cur().line)
		}
		val, err := p.constExpr()
		if err != nil {
			return err
		}
		tmp := p.newGlobalTemp("int", 0)
		tmp.InitVal = val
		p.prog.AddGlobal(ir1.Instruction{Op: ir1.LoadConstant, Dest: tmp})
		p.prog.AddGlobal(ir1.Instruction{Op: ir1.Assign, Src0: tmp, Dest: slot})
	}
	return p.expectPunct(";")
}

// constExpr parses a compile-time integer literal (optionally negated),
// the only form of global initializer this grammar supports.
func (p *parser) constExpr() (int, error) {
	neg := false
	if p.isPunct("-") {
		p.advance()
		neg = true
	}
	c := p.cur()
	if c.typ != tokNumber && c.typ != tokChar {
		return 0, compileerr.Newf(compileerr.Shape, "line %d: expected a constant, got %q", c.line, c.text)
	}
	p.advance()
	v := c.num
	if neg {
		v = -v
	}
	return v, nil
}

func (p *parser) newGlobalTemp(base string, ptrDepth int) *entity.Variable {
	p.tempSeq++
	v := entity.Variable{Name: tempName(p.tempSeq), TypeName: base, PtrDepth: ptrDepth, IsGlobal: true}
	gb := p.store.GlobalBlock()
	gb.Locals = append(gb.Locals, v)
	return &gb.Locals[len(gb.Locals)-1]
}

func tempName(n int) string {
	return "%t" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
