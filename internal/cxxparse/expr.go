package cxxparse

import (
	"strconv"
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
)

var castKeywords = map[string]ast.CastKind{
	"static_cast":      ast.CastStatic,
	"dynamic_cast":     ast.CastDynamic,
	"const_cast":       ast.CastConst,
	"reinterpret_cast": ast.CastReinterpret,
}

// parseExpr is the entry point; C++ assignment-as-expression isn't needed
// here since Assignment is handled at the statement level, so this starts
// at equality/relational precedence.
func (p *Parser) parseExpr() ast.Expression {
	return p.parseEquality()
}

func (p *Parser) parseEquality() ast.Expression {
	left := p.parseRelational()
	for p.checkText("==") || p.checkText("!=") {
		op := ast.BinaryOp(p.advance().Text)
		right := p.parseRelational()
		left = &ast.BinaryOpExpr{baseExpr: baseExpr{left.Loc()}, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseRelational() ast.Expression {
	left := p.parseAdditive()
	for p.checkText("<") || p.checkText("<=") || p.checkText(">") || p.checkText(">=") {
		op := ast.BinaryOp(p.advance().Text)
		right := p.parseAdditive()
		left = &ast.BinaryOpExpr{baseExpr: baseExpr{left.Loc()}, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseUnary()
	for p.checkText("+") || p.checkText("-") {
		op := ast.BinaryOp(p.advance().Text)
		right := p.parseUnary()
		loc := left.Loc()
		if op == ast.OpAdd || op == ast.OpSub {
			if isPointerLikeExpr(left) {
				left = &ast.PointerArithmeticExpr{baseExpr: baseExpr{loc}, Pointer: left, Offset: right}
				continue
			}
		}
		left = &ast.BinaryOpExpr{baseExpr: baseExpr{loc}, Op: op, Left: left, Right: right}
	}
	return left
}

// isPointerLikeExpr is a shallow heuristic (no type environment is
// available at parse time): a dereference, address-of, or array-index
// result is treated as a pointer-arithmetic operand when added/subtracted.
func isPointerLikeExpr(e ast.Expression) bool {
	switch e.(type) {
	case *ast.DereferenceExpr, *ast.AddressOfExpr, *ast.IndexExpr:
		return true
	default:
		return false
	}
}

func (p *Parser) parseUnary() ast.Expression {
	tok := p.cur()
	switch {
	case tok.Text == "*":
		loc := p.advance().Loc
		inner := p.parseUnary()
		return &ast.DereferenceExpr{baseExpr: baseExpr{loc}, Inner: inner}
	case tok.Text == "&":
		loc := p.advance().Loc
		inner := p.parseUnary()
		return &ast.AddressOfExpr{baseExpr: baseExpr{loc}, Inner: inner}
	case tok.Text == "!" || tok.Text == "-":
		p.advance()
		return p.parseUnary()
	case tok.Kind == TokIdent && tok.Text == "std" && p.at(1).Text == "::" && p.at(2).Text == "move":
		loc := tok.Loc
		p.advance()
		p.advance()
		p.advance()
		p.expectText("(")
		inner := p.parseExpr()
		p.expectText(")")
		return &ast.MoveExpr{baseExpr: baseExpr{loc}, Inner: inner}
	case tok.Kind == TokIdent && tok.Text == "new":
		loc := p.advance().Loc
		typeName, _ := p.parseTypeName()
		if p.acceptText("(") {
			for !p.atEOF() && !p.checkText(")") {
				p.parseExpr()
				if !p.acceptText(",") {
					break
				}
			}
			p.expectText(")")
		}
		return &ast.NewExpr{baseExpr: baseExpr{loc}, TypeName: typeName}
	}
	if tok.Kind == TokIdent {
		if kind, known := castKeywords[tok.Text]; known {
			return p.parseNamedCast(kind)
		}
	}
	return p.parseCStyleCastOrPostfix()
}

func (p *Parser) parseNamedCast(kind ast.CastKind) ast.Expression {
	loc := p.advance().Loc
	p.expectText("<")
	typeName := p.consumeUntilMatchingAngle()
	p.expectText("(")
	inner := p.parseExpr()
	p.expectText(")")
	e := &ast.CastExpr{baseExpr: baseExpr{loc}, Kind: kind, TypeName: typeName, Inner: inner}
	return p.parsePostfixTail(e)
}

// consumeUntilMatchingAngle reads the template-argument text of a named
// cast's `<...>`, already past the opening angle; used instead of
// parseTypeName because a cast target may itself be a pointer/reference
// type with punctuation parseTypeName doesn't expect mid-stream.
func (p *Parser) consumeUntilMatchingAngle() string {
	var b strings.Builder
	depth := 1
	for !p.atEOF() && depth > 0 {
		switch p.cur().Text {
		case "<":
			depth++
		case ">":
			depth--
			if depth == 0 {
				p.advance()
				return strings.TrimSpace(b.String())
			}
		}
		b.WriteString(p.cur().Text)
		p.advance()
	}
	return strings.TrimSpace(b.String())
}

// parseCStyleCastOrPostfix disambiguates `(Type*) expr` from a parenthesized
// sub-expression: if the parenthesized content parses as a type followed by
// `)` and is itself followed by something that can start an expression
// (identifier, `(`, `*`, `&`, number), it's treated as a C-style cast.
func (p *Parser) parseCStyleCastOrPostfix() ast.Expression {
	if p.checkText("(") {
		start := p.mark()
		loc := p.cur().Loc
		p.advance()
		if typeName, ok := p.parseTypeName(); ok {
			isPtr := p.acceptText("*")
			for p.acceptText("*") {
			}
			if p.checkText(")") && isCastLookaheadStart(p.at(1)) {
				p.advance() // ")"
				inner := p.parseUnary()
				if isPtr {
					typeName += "*"
				}
				e := ast.Expression(&ast.CastExpr{baseExpr: baseExpr{loc}, Kind: ast.CastCStyle, TypeName: typeName, Inner: inner})
				return p.parsePostfixTail(e)
			}
		}
		p.reset(start)
	}
	return p.parsePostfix()
}

func isCastLookaheadStart(t Token) bool {
	if t.Kind == TokIdent || t.Kind == TokNumber {
		return true
	}
	return t.Text == "(" || t.Text == "*" || t.Text == "&"
}

func (p *Parser) parsePostfix() ast.Expression {
	e := p.parsePrimary()
	return p.parsePostfixTail(e)
}

func (p *Parser) parsePostfixTail(e ast.Expression) ast.Expression {
	for {
		switch {
		case p.checkText("."):
			p.advance()
			field := ""
			if p.cur().Kind == TokIdent {
				field = p.advance().Text
			}
			e = &ast.MemberAccessExpr{baseExpr: baseExpr{e.Loc()}, Object: e, Field: field, Arrow: false}
		case p.checkText("->"):
			p.advance()
			field := ""
			if p.cur().Kind == TokIdent {
				field = p.advance().Text
			}
			e = &ast.MemberAccessExpr{baseExpr: baseExpr{e.Loc()}, Object: e, Field: field, Arrow: true}
		case p.checkText("("):
			e = p.parseCallTail(e)
		case p.checkText("["):
			p.advance()
			idx := p.parseExpr()
			p.expectText("]")
			ie := &ast.IndexExpr{baseExpr: baseExpr{e.Loc()}, Array: e, Index: idx}
			if lit, ok := idx.(*ast.LiteralExpr); ok {
				if n, err := strconv.Atoi(lit.Text); err == nil {
					ie.ConstIndex = n
					ie.IsConstIndex = true
				}
			}
			e = ie
		default:
			return e
		}
	}
}

// parseCallTail builds a FunctionCall from a callee expression (a bare name
// or a member-access chain), splitting the member-access form into
// Receiver+Callee the way every analysis pass expects.
func (p *Parser) parseCallTail(calleeExpr ast.Expression) ast.Expression {
	loc := calleeExpr.Loc()
	p.expectText("(")
	var args []ast.Expression
	for !p.atEOF() && !p.checkText(")") {
		args = append(args, p.parseExpr())
		if !p.acceptText(",") {
			break
		}
	}
	p.expectText(")")

	switch v := calleeExpr.(type) {
	case *ast.MemberAccessExpr:
		return &ast.FunctionCall{baseExpr: baseExpr{loc}, Callee: v.Field, Receiver: v.Object, Args: args, IsMethod: true}
	case *ast.VariableExpr:
		return &ast.FunctionCall{baseExpr: baseExpr{loc}, Callee: v.Path, Args: args, IsMethod: false}
	default:
		return &ast.FunctionCall{baseExpr: baseExpr{loc}, Callee: "", Args: args, IsMethod: false}
	}
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.cur()

	switch tok.Text {
	case "(":
		p.advance()
		e := p.parseExpr()
		p.expectText(")")
		return e
	case "nullptr", "NULL":
		p.advance()
		return &ast.NullptrExpr{baseExpr: baseExpr{tok.Loc}}
	case "this":
		p.advance()
		return &ast.VariableExpr{baseExpr: baseExpr{tok.Loc}, Path: "this"}
	}

	if tok.Kind == TokNumber || tok.Kind == TokString {
		p.advance()
		return &ast.LiteralExpr{baseExpr: baseExpr{tok.Loc}, Text: tok.Text}
	}

	if tok.Kind == TokIdent {
		path := p.parseDottedPath()
		return &ast.VariableExpr{baseExpr: baseExpr{tok.Loc}, Path: path}
	}

	// Unrecognized primary token: consume it so the caller makes progress
	// and return a placeholder literal, never a nil Expression.
	p.advance()
	return &ast.LiteralExpr{baseExpr: baseExpr{tok.Loc}, Text: tok.Text}
}

// parseDottedPath reads a qualified identifier `a::b::c`, used for a bare
// name reference. Explicit template arguments directly before a call
// (`f<T>(x)`) are skipped and not retained on the path; any other `<` is
// left in place for the relational-operator parser.
func (p *Parser) parseDottedPath() string {
	var b strings.Builder
	b.WriteString(p.advance().Text)
	for p.checkText("::") && p.at(1).Kind == TokIdent {
		p.advance()
		b.WriteString("::")
		b.WriteString(p.advance().Text)
	}
	if p.checkText("<") {
		m, depth := p.mark(), 0
		for ok := true; ok && !p.atEOF(); ok = depth > 0 {
			switch t := p.advance(); {
			case t.Text == "<":
				depth++
			case t.Text == ">":
				depth--
			case t.Kind != TokIdent && t.Kind != TokNumber && t.Text != "::" && t.Text != "," && t.Text != "*" && t.Text != "&":
				depth = -1
			}
		}
		if depth != 0 || !p.checkText("(") {
			p.reset(m)
		}
	}
	return b.String()
}
