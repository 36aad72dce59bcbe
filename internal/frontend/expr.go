package frontend

import (
	"shecc/internal/compileerr"
	"shecc/internal/entity"
	"shecc/internal/ir1"
)

// exprResult is the parser's working value for one (sub)expression: the
// Variable its value can currently be read from (val), and, when the
// expression denotes an assignable location, either the Variable it names
// directly (isVar, for plain identifiers and function-pointer locals) or
// the address it was read through (lvAddr/lvSize, for array elements and
// struct fields). funcName/isFuncAddr carry function identity through a
// bare name or "&name" so postfix-call and assignment can recognize them.
type exprResult struct {
	val  *entity.Variable
	isVar  *entity.Variable
	lvAddr *entity.Variable
	lvSize int

	funcName   string
	isFuncAddr bool

	typeName  string
	ptrDepth  int
	arraySize int
}

// parseExpr parses one assignment-expression and returns the Variable its
// value can be read from, the form used everywhere an expression is
// embedded (call arguments, conditions, array subscripts, return values).
func (p *parser) parseExpr() (*entity.Variable, error) {
	r, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	return r.val, nil
}

func (p *parser) parseAssignExpr() (exprResult, error) {
	left, err := p.parseLogicOr()
	if err != nil {
		return exprResult{}, err
	}
	if !p.isPunct("=") {
		return left, nil
	}
	p.advance()
	right, err := p.parseAssignExpr()
	if err != nil {
		return exprResult{}, err
	}

	switch {
	case left.isVar != nil && right.isFuncAddr:
		p.emitWrite(right.val, left.isVar, 0)
		return exprResult{val: right.val, isVar: left.isVar}, nil
	case left.isVar != nil:
		p.emitAssignVar(left.isVar, right.val)
		return exprResult{val: right.val, isVar: left.isVar}, nil
	case left.lvAddr != nil:
		p.emitWrite(right.val, left.lvAddr, left.lvSize)
		return exprResult{val: right.val}, nil
	default:
		return exprResult{}, compileerr.Newf(compileerr.Shape, "left-hand side of assignment is not assignable")
	}
}

func (p *parser) parseLogicOr() (exprResult, error) {
	left, err := p.parseLogicAnd()
	if err != nil {
		return exprResult{}, err
	}
	for p.isPunct("||") {
		p.advance()
		right, err := p.parseLogicAnd()
		if err != nil {
			return exprResult{}, err
		}
		left = exprResult{val: p.emitBinary(ir1.LogOr, left.val, right.val)}
	}
	return left, nil
}

func (p *parser) parseLogicAnd() (exprResult, error) {
	left, err := p.parseEquality()
	if err != nil {
		return exprResult{}, err
	}
	for p.isPunct("&&") {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return exprResult{}, err
		}
		left = exprResult{val: p.emitBinary(ir1.LogAnd, left.val, right.val)}
	}
	return left, nil
}

func (p *parser) parseEquality() (exprResult, error) {
	left, err := p.parseRelational()
	if err != nil {
		return exprResult{}, err
	}
	for p.isPunct("==") || p.isPunct("!=") {
		op := ir1.Eq
		if p.isPunct("!=") {
			op = ir1.Neq
		}
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return exprResult{}, err
		}
		left = exprResult{val: p.emitBinary(op, left.val, right.val)}
	}
	return left, nil
}

func (p *parser) parseRelational() (exprResult, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return exprResult{}, err
	}
	for p.isPunct("<") || p.isPunct(">") || p.isPunct("<=") || p.isPunct(">=") {
		var op ir1.Op
		switch {
		case p.isPunct("<"):
			op = ir1.Lt
		case p.isPunct(">"):
			op = ir1.Gt
		case p.isPunct("<="):
			op = ir1.Leq
		default:
			op = ir1.Geq
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return exprResult{}, err
		}
		left = exprResult{val: p.emitBinary(op, left.val, right.val)}
	}
	return left, nil
}

func (p *parser) parseAdditive() (exprResult, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return exprResult{}, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := ir1.Add
		if p.isPunct("-") {
			op = ir1.Sub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return exprResult{}, err
		}
		left = exprResult{val: p.emitBinary(op, left.val, right.val)}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (exprResult, error) {
	left, err := p.parseUnary()
	if err != nil {
		return exprResult{}, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") {
		var op ir1.Op
		switch {
		case p.isPunct("*"):
			op = ir1.Mul
		case p.isPunct("/"):
			op = ir1.Div
		default:
			op = ir1.Mod
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return exprResult{}, err
		}
		left = exprResult{val: p.emitBinary(op, left.val, right.val)}
	}
	return left, nil
}

// parseUnary parses a unary-minus/logical-not/bitwise-not/address-of/
// dereference operator applied to another unary-expression, or falls
// through to postfix.
func (p *parser) parseUnary() (exprResult, error) {
	switch {
	case p.isPunct("-"):
		p.advance()
		v, err := p.parseUnary()
		if err != nil {
			return exprResult{}, err
		}
		return exprResult{val: p.emitUnary(ir1.Negate, v.val)}, nil
	case p.isPunct("!"):
		p.advance()
		v, err := p.parseUnary()
		if err != nil {
			return exprResult{}, err
		}
		return exprResult{val: p.emitUnary(ir1.LogNot, v.val)}, nil
	case p.isPunct("~"):
		p.advance()
		v, err := p.parseUnary()
		if err != nil {
			return exprResult{}, err
		}
		return exprResult{val: p.emitUnary(ir1.BitNot, v.val)}, nil
	case p.isPunct("&"):
		p.advance()
		return p.parseAddressOf()
	case p.isPunct("*"):
		p.advance()
		v, err := p.parseUnary()
		if err != nil {
			return exprResult{}, err
		}
		return exprResult{
			val:    p.emitRead(v.val, 4),
			lvAddr: v.val,
			lvSize: 4,
		}, nil
	default:
		return p.parsePostfix()
	}
}

// parseAddressOf handles "&name": either the address of a declared
// variable, or, when name identifies a function, the transient function
// tag package lower's Write case recognizes (see codegen.go's funcTag).
func (p *parser) parseAddressOf() (exprResult, error) {
	c := p.cur()
	if c.typ != tokIdent {
		return exprResult{}, compileerr.Newf(compileerr.Shape, "line %d: '&' must be followed by a name", c.line)
	}
	if v := p.store.FindVar(c.text, p.block); v != nil {
		p.advance()
		return exprResult{val: p.emitAddressOf(v), typeName: v.TypeName, ptrDepth: v.PtrDepth + 1}, nil
	}
	if fn := p.store.FindFunc(c.text); fn != nil {
		p.advance()
		return exprResult{val: funcTag(c.text), isFuncAddr: true}, nil
	}
	return exprResult{}, compileerr.Newf(compileerr.Shape, "line %d: undeclared name %q", c.line, c.text)
}

// parsePostfix parses a primary expression followed by any number of call,
// index, and field-access suffixes.
func (p *parser) parsePostfix() (exprResult, error) {
	r, err := p.parsePrimary()
	if err != nil {
		return exprResult{}, err
	}
	for {
		switch {
		case p.isPunct("("):
			r, err = p.parseCallSuffix(r)
			if err != nil {
				return exprResult{}, err
			}
		case p.isPunct("["):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return exprResult{}, err
			}
			if err := p.expectPunct("]"); err != nil {
				return exprResult{}, err
			}
			r, err = p.indexInto(r, idx)
			if err != nil {
				return exprResult{}, err
			}
		case p.isPunct("."):
			p.advance()
			field, err := p.expectIdent()
			if err != nil {
				return exprResult{}, err
			}
			r, err = p.fieldAccess(r, field, false)
			if err != nil {
				return exprResult{}, err
			}
		case p.isPunct("->"):
			p.advance()
			field, err := p.expectIdent()
			if err != nil {
				return exprResult{}, err
			}
			r, err = p.fieldAccess(r, field, true)
			if err != nil {
				return exprResult{}, err
			}
		default:
			return r, nil
		}
	}
}

func (p *parser) parseCallSuffix(callee exprResult) (exprResult, error) {
	p.advance() // "("
	var args []*entity.Variable
	for !p.isPunct(")") {
		v, err := p.parseExpr()
		if err != nil {
			return exprResult{}, err
		}
		args = append(args, v)
		if p.isPunct(",") {
			p.advance()
			continue
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return exprResult{}, err
	}

	if callee.funcName != "" {
		val, err := p.emitCall(callee.funcName, args)
		if err != nil {
			return exprResult{}, err
		}
		return exprResult{val: val}, nil
	}
	if callee.isVar != nil && p.funcPtrs[callee.isVar] {
		return exprResult{val: p.emitIndirectCall(callee.isVar, args)}, nil
	}
	return exprResult{}, compileerr.Newf(compileerr.Shape, "call target is neither a function nor a function pointer")
}

// indexInto lowers base[idx]: the address is base's pointer value plus
// idx scaled by the element's byte size (base itself already holds the
// array's base address, see package lower's allocateSlot for why a local
// array variable reads back as a pointer).
func (p *parser) indexInto(base exprResult, idx *entity.Variable) (exprResult, error) {
	elem := entity.Variable{TypeName: base.typeName}
	elemSize, err := p.store.SizeOfVar(&elem)
	if err != nil {
		return exprResult{}, err
	}
	var addr *entity.Variable
	if elemSize == 1 {
		addr = p.emitBinary(ir1.Add, base.val, idx)
	} else {
		scale := p.emitLoadConstant(elemSize)
		scaled := p.emitBinary(ir1.Mul, idx, scale)
		addr = p.emitBinary(ir1.Add, base.val, scaled)
	}
	return exprResult{
		val:       p.emitRead(addr, elemSize),
		lvAddr:    addr,
		lvSize:    elemSize,
		typeName:  base.typeName,
		ptrDepth:  0,
		arraySize: 0,
	}, nil
}

// fieldAccess lowers base.field (arrow=false, base names a struct
// variable directly) or base->field (arrow=true, base.val already holds
// the struct's address).
func (p *parser) fieldAccess(base exprResult, field string, arrow bool) (exprResult, error) {
	t := p.store.FindType(base.typeName)
	if t == nil || t.BaseKind != entity.Struct {
		return exprResult{}, compileerr.Newf(compileerr.Shape, "%q is not a struct", base.typeName)
	}
	fv := t.Field(field)
	if fv == nil {
		return exprResult{}, compileerr.Newf(compileerr.Shape, "struct %q has no field %q", base.typeName, field)
	}

	var structAddr *entity.Variable
	if arrow {
		structAddr = base.val
	} else if base.isVar != nil {
		structAddr = p.emitAddressOf(base.isVar)
	} else {
		return exprResult{}, compileerr.Newf(compileerr.Shape, "'.' requires a struct variable")
	}

	addr := p.emitOffsetAddr(structAddr, fv.Offset)
	size, err := p.store.SizeOfVar(fv)
	if err != nil {
		return exprResult{}, err
	}
	return exprResult{
		val:      p.emitRead(addr, size),
		lvAddr:   addr,
		lvSize:   size,
		typeName: fv.TypeName,
		ptrDepth: fv.PtrDepth,
	}, nil
}

func (p *parser) parsePrimary() (exprResult, error) {
	c := p.cur()
	switch {
	case c.typ == tokNumber || c.typ == tokChar:
		p.advance()
		return exprResult{val: p.emitLoadConstant(c.num), typeName: "int"}, nil

	case c.typ == tokIdent:
		p.advance()
		if v := p.store.FindVar(c.text, p.block); v != nil {
			return exprResult{
				val: v, isVar: v,
				typeName: v.TypeName, ptrDepth: v.PtrDepth, arraySize: v.ArraySize,
			}, nil
		}
		if fn := p.store.FindFunc(c.text); fn != nil {
			return exprResult{funcName: c.text, typeName: fn.Return.TypeName, ptrDepth: fn.Return.PtrDepth}, nil
		}
		return exprResult{}, compileerr.Newf(compileerr.Shape, "line %d: undeclared identifier %q", c.line, c.text)

	case c.typ == tokPunct && c.text == "(":
		p.advance()
		inner, err := p.parseAssignExpr()
		if err != nil {
			return exprResult{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return exprResult{}, err
		}
		return inner, nil

	default:
		return exprResult{}, compileerr.Newf(compileerr.Shape, "line %d: unexpected token %q", c.line, c.text)
	}
}
