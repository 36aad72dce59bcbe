package frontend

import (
	"shecc/internal/entity"
	"shecc/internal/ir1"
)

// parseFuncDecl parses a function's parameter list and, if a body
// follows, its definition: "type name ( params ) { ... }" or
// "type name ( params ) ;" (a prototype, recorded but not defined).
func (p *parser) parseFuncDecl(base string, ptrDepth int, name string) error {
	p.advance() // "("
	fn, err := p.store.Func(name)
	if err != nil {
		return err
	}
	fn.Return.Name = name
	fn.Return.TypeName = base
	fn.Return.PtrDepth = ptrDepth

	if len(fn.Params) == 0 {
		if err := p.parseParamList(fn); err != nil {
			return err
		}
	} else {
		// Re-declaration (prototype already parsed once): skip to ")".
		depth := 1
		for depth > 0 {
			if p.isPunct("(") {
				depth++
			} else if p.isPunct(")") {
				depth--
			}
			p.advance()
		}
	}

	if p.isPunct(";") {
		p.advance()
		return nil
	}

	return p.parseFuncBody(fn)
}

func (p *parser) parseParamList(fn *entity.Function) error {
	if p.isKeyword("void") && p.toks[p.pos+1].typ == tokPunct && p.toks[p.pos+1].text == ")" {
		p.advance()
		p.advance()
		return nil
	}
	for !p.isPunct(")") {
		base, err := p.parseTypeSpec()
		if err != nil {
			return err
		}
		ptrDepth := 0
		for p.isPunct("*") {
			p.advance()
			ptrDepth++
		}
		pname, err := p.expectIdent()
		if err != nil {
			return err
		}
		fn.Params = append(fn.Params, entity.Variable{Name: pname, TypeName: base, PtrDepth: ptrDepth})
		if p.isPunct(",") {
			p.advance()
			continue
		}
	}
	return p.expectPunct(")")
}

// parseFuncBody parses the "{ ... }" function body, wrapping it in the
// Define/BlockStart/BlockEnd pseudo-instructions package lower and package
// emit both expect (spec.md §4.5 "void outer block-end detection").
func (p *parser) parseFuncBody(fn *entity.Function) error {
	p.inGlobals = false
	p.fn = fn
	block, err := p.store.AddBlock(nil, fn)
	if err != nil {
		return err
	}
	block.Locals = make([]entity.Variable, 0, localsCap)
	p.block = block

	p.emit(ir1.Instruction{Op: ir1.Define, FuncName: fn.Name()})
	p.emit(ir1.Instruction{Op: ir1.BlockStart})

	if err := p.expectPunct("{"); err != nil {
		return err
	}
	for !p.isPunct("}") {
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return err
	}

	p.emit(ir1.Instruction{Op: ir1.BlockEnd})
	p.fn = nil
	p.block = nil
	p.inGlobals = true
	return nil
}

// parseBlock parses a brace-delimited statement list as a nested child
// block (if/while bodies), or, for a single-statement if/while body
// without braces, just that one statement in the current block.
func (p *parser) parseBlock() error {
	if !p.isPunct("{") {
		return p.parseStatement()
	}
	p.advance()
	parent := p.block
	child, err := p.store.AddBlock(parent, p.fn)
	if err != nil {
		return err
	}
	child.Locals = make([]entity.Variable, 0, localsCap)
	p.block = child
	for !p.isPunct("}") {
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
	p.block = parent
	return p.expectPunct("}")
}
