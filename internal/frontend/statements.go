package frontend

import (
	"shecc/internal/compileerr"
	"shecc/internal/entity"
	"shecc/internal/ir1"
	"shecc/internal/util"
)

// parseStatement parses one statement at block scope: a declaration, a
// compound block, if/else, while, return, or an expression statement.
func (p *parser) parseStatement() error {
	switch {
	case p.isPunct("{"):
		return p.parseBlock()
	case p.isTypeStart():
		return p.parseDeclStmt()
	case p.isKeyword("if"):
		return p.parseIfStmt()
	case p.isKeyword("while"):
		return p.parseWhileStmt()
	case p.isKeyword("return"):
		return p.parseReturnStmt()
	case p.isPunct(";"):
		p.advance()
		return nil
	default:
		if _, err := p.parseExpr(); err != nil {
			return err
		}
		return p.expectPunct(";")
	}
}

// parseDeclStmt parses "type declarator (= initializer)? (, declarator
// (= initializer)?)* ;", including the function-pointer declarator form
// and a char-array string-literal initializer.
func (p *parser) parseDeclStmt() error {
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

		if p.isPunct("(") {
			name, err := p.parseFuncPointerSuffix()
			if err != nil {
				return err
			}
			if err := p.declareFuncPtrVar(base, name); err != nil {
				return err
			}
		} else {
			name, err := p.expectIdent()
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
			v, err := p.declareLocal(name, base, ptrDepth, arraySize)
			if err != nil {
				return err
			}
			p.emit(ir1.Instruction{Op: ir1.Allocate, Src0: v})

			if p.isPunct("=") {
				p.advance()
				if arraySize > 0 && p.cur().typ == tokString {
					p.initLocalCharArray(v, arraySize)
				} else {
					val, err := p.parseExpr()
					if err != nil {
						return err
					}
					p.emitAssignVar(v, val)
				}
			}
		}

		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	return p.expectPunct(";")
}

// initLocalCharArray lowers "char name[n] = \"literal\";": once the
// array's Allocate has materialized its base-pointer value (package
// lower's allocateSlot), each source byte (plus a trailing NUL) is written
// through that base pointer at a constant offset.
func (p *parser) initLocalCharArray(arr *entity.Variable, size int) {
	lit := p.cur().text
	p.advance()
	bytes := append([]byte(lit), 0)
	for i := 0; i < size && i < len(bytes); i++ {
		addr := p.emitOffsetAddr(arr, i)
		val := p.emitLoadConstant(int(bytes[i]))
		p.emitWrite(val, addr, 1)
	}
}

// parseIfStmt parses "if ( expr ) stmt (else stmt)?".
func (p *parser) parseIfStmt() error {
	p.advance() // if
	if err := p.expectPunct("("); err != nil {
		return err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}

	if !p.lookaheadHasElse() {
		trueL := p.newLabel(util.LabelIf)
		endL := p.newLabel(util.LabelIfEnd)
		p.emitBranch(cond, trueL, endL)
		p.emitLabel(trueL)
		if err := p.parseBlock(); err != nil {
			return err
		}
		p.emitLabel(endL)
		return nil
	}

	trueL := p.newLabel(util.LabelIf)
	elseL := p.newLabel(util.LabelIfElse)
	endL := p.newLabel(util.LabelIfElseEnd)
	p.emitBranch(cond, trueL, elseL)
	p.emitLabel(trueL)
	if err := p.parseBlock(); err != nil {
		return err
	}
	p.emitJump(endL)
	p.emitLabel(elseL)
	if err := p.expectKeyword("else"); err != nil {
		return err
	}
	if err := p.parseBlock(); err != nil {
		return err
	}
	p.emitLabel(endL)
	return nil
}

// lookaheadHasElse reports whether an "else" clause follows the
// statement about to be parsed, without consuming any tokens: it scans
// forward balancing braces from the current position.
func (p *parser) lookaheadHasElse() bool {
	i := p.pos
	if i >= len(p.toks) {
		return false
	}
	if p.toks[i].typ == tokPunct && p.toks[i].text == "{" {
		depth := 0
		for ; i < len(p.toks); i++ {
			if p.toks[i].typ == tokPunct && p.toks[i].text == "{" {
				depth++
			} else if p.toks[i].typ == tokPunct && p.toks[i].text == "}" {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
		}
	} else {
		for ; i < len(p.toks); i++ {
			if p.toks[i].typ == tokPunct && p.toks[i].text == ";" {
				i++
				break
			}
		}
	}
	return i < len(p.toks) && p.toks[i].typ == tokKeyword && p.toks[i].text == "else"
}

func (p *parser) expectKeyword(s string) error {
	if !p.isKeyword(s) {
		return compileerr.Newf(compileerr.Shape, "line %d: expected %q", p.cur().line, s)
	}
	p.advance()
	return nil
}

// parseWhileStmt parses "while ( expr ) stmt", lowering to the
// head/branch/body/jump/end shape package liveness recognizes by label
// name prefix (internal/liveness/liveness.go isWhileHead/isWhileEnd).
func (p *parser) parseWhileStmt() error {
	p.advance() // while
	headL := p.newLabel(util.LabelWhileHead)
	endL := p.newLabel(util.LabelWhileEnd)

	p.emitLabel(headL)
	if err := p.expectPunct("("); err != nil {
		return err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	bodyL := p.newLabel(util.LabelIf)
	p.emitBranch(cond, bodyL, endL)
	p.emitLabel(bodyL)
	if err := p.parseBlock(); err != nil {
		return err
	}
	p.emitJump(headL)
	p.emitLabel(endL)
	return nil
}

// parseReturnStmt parses "return expr? ;".
func (p *parser) parseReturnStmt() error {
	p.advance() // return
	if p.isPunct(";") {
		p.advance()
		p.emit(ir1.Instruction{Op: ir1.Return})
		return nil
	}
	v, err := p.parseExpr()
	if err != nil {
		return err
	}
	if err := p.expectPunct(";"); err != nil {
		return err
	}
	p.emit(ir1.Instruction{Op: ir1.Return, Src0: v})
	return nil
}
