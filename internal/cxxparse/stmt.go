package cxxparse

import (
	"strconv"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/safety"
)

var typeKeywords = map[string]bool{
	"int": true, "long": true, "short": true, "char": true, "bool": true,
	"float": true, "double": true, "void": true, "unsigned": true,
	"signed": true, "auto": true, "size_t": true, "int32_t": true,
	"int64_t": true, "uint32_t": true, "uint64_t": true, "uint8_t": true,
	"wchar_t": true,
}

// isTypeStart heuristically decides whether the parser's current position
// begins a type (for a variable declaration) rather than an expression
// statement (assignment or a bare call): a known built-in type keyword, a
// `const` or `static` qualifier, or an identifier immediately followed by
// another identifier, "*", "&", "::" (qualified type names), or "<"
// (templated type names).
func (p *Parser) isTypeStart() bool {
	t := p.cur()
	if t.Kind != TokIdent {
		return false
	}
	if typeKeywords[t.Text] || t.Text == "const" || t.Text == "static" {
		return true
	}
	nxt := p.at(1)
	switch nxt.Kind {
	case TokIdent:
		return true
	case TokPunct:
		return nxt.Text == "*" || nxt.Text == "&" || nxt.Text == "::" || nxt.Text == "<"
	}
	return false
}

// isUnsafeBlockAnnotation recognizes an `@unsafe` marker on a bare block
// (not a whole function): the same lexical form internal/safety recognizes
// for a function, applied here to whatever comment precedes a `{`.
func isUnsafeBlockAnnotation(text string) bool {
	mode, has := safety.AnnotationFromComment(text)
	return has && mode == ast.Unsafe
}

// parseBlock parses a braced statement sequence, flattening any `@unsafe {
// ... }` inner block into EnterUnsafeStmt/body/ExitUnsafeStmt in place —
// every analysis pass in this module tracks unsafe regions as a flat
// enter/exit pair rather than nested blocks.
func (p *Parser) parseBlock() []ast.Statement {
	p.expectText("{")
	stmts := p.parseStatementsUntilBrace()
	p.expectText("}")
	return stmts
}

func (p *Parser) parseStatementsUntilBrace() []ast.Statement {
	var stmts []ast.Statement
	for !p.atEOF() && !p.checkText("}") {
		tok := p.cur()
		if tok.Text == "{" && isUnsafeBlockAnnotation(p.commentBefore(tok.Loc.Line)) {
			loc := tok.Loc
			p.advance()
			inner := p.parseStatementsUntilBrace()
			p.expectText("}")
			stmts = append(stmts, &ast.EnterUnsafeStmt{baseStmt: baseStmt{loc}})
			stmts = append(stmts, inner...)
			stmts = append(stmts, &ast.ExitUnsafeStmt{baseStmt: baseStmt{loc}})
			continue
		}
		s := p.parseStatement()
		if s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Statement {
	tok := p.cur()

	if tok.Kind == TokIdent && tok.Text == "if" {
		return p.parseIf()
	}
	if tok.Kind == TokIdent && (tok.Text == "for" || tok.Text == "while") {
		return p.parseLoop()
	}
	if tok.Kind == TokIdent && tok.Text == "return" {
		loc := p.advance().Loc
		var expr ast.Expression
		if !p.checkText(";") {
			expr = p.parseExpr()
		}
		p.expectText(";")
		return &ast.ReturnStmt{baseStmt: baseStmt{loc}, Expr: expr}
	}
	if tok.Text == "{" {
		loc := tok.Loc
		body := p.parseBlock()
		return &ast.BlockStmt{baseStmt: baseStmt{loc}, Body: body}
	}
	if tok.Text == ";" {
		p.advance()
		return nil
	}

	start := p.mark()
	if p.isTypeStart() {
		if decl := p.tryParseVariableDecl(); decl != nil {
			return decl
		}
		p.reset(start)
	}

	return p.parseSimpleStatement()
}

func (p *Parser) tryParseVariableDecl() ast.Statement {
	start := p.mark()
	loc := p.cur().Loc
	isConst := p.acceptText("const")
	p.acceptText("static")

	typeName, ok := p.parseTypeName()
	if !ok {
		p.reset(start)
		return nil
	}
	isPointer := p.acceptText("*")
	isReference := false
	if !isPointer {
		isReference = p.acceptText("&")
	}
	if p.cur().Kind != TokIdent {
		p.reset(start)
		return nil
	}
	name := p.advance().Text

	arraySize := 0
	if p.acceptText("[") {
		if p.cur().Kind == TokNumber {
			if n, err := strconv.Atoi(p.cur().Text); err == nil {
				arraySize = n
			}
		}
		for !p.atEOF() && !p.checkText("]") {
			p.advance()
		}
		p.acceptText("]")
	}

	if isReference {
		if !p.acceptText("=") {
			p.reset(start)
			return nil
		}
		target := p.parseExpr()
		p.expectText(";")
		return &ast.ReferenceBinding{baseStmt: baseStmt{loc}, Name: name, Target: target, IsMutable: !isConst}
	}

	v := &ast.Variable{Name: name, TypeName: typeName, IsPointer: isPointer, IsConst: isConst, SmartPointer: smartPointerKindOf(typeName)}
	var init ast.Expression
	if p.acceptText("=") {
		init = p.parseExpr()
	} else if p.acceptText("{") {
		if !p.checkText("}") {
			init = p.parseExpr()
		}
		p.acceptText("}")
	}
	p.expectText(";")
	return &ast.VariableDecl{baseStmt: baseStmt{loc}, Var: v, Init: init, ArraySize: arraySize}
}

// parseSimpleStatement covers everything left: assignment, a bare call, or
// any other expression statement.
func (p *Parser) parseSimpleStatement() ast.Statement {
	loc := p.cur().Loc
	if p.checkText(";") {
		p.advance()
		return nil
	}
	expr := p.parseExpr()
	if p.acceptText("=") {
		rhs := p.parseExpr()
		p.expectText(";")
		return &ast.Assignment{baseStmt: baseStmt{loc}, LHS: expr, RHS: rhs}
	}
	p.expectText(";")
	if call, ok := expr.(*ast.FunctionCall); ok {
		return &ast.FunctionCallStmt{baseStmt: baseStmt{loc}, Call: call}
	}
	return &ast.ExpressionStatement{baseStmt: baseStmt{loc}, Expr: expr}
}

func (p *Parser) parseIf() ast.Statement {
	loc := p.advance().Loc // "if"
	p.expectText("(")
	cond := p.parseExpr()
	p.expectText(")")
	then := p.parseStatementOrBlock()
	var els []ast.Statement
	if p.cur().Kind == TokIdent && p.cur().Text == "else" {
		p.advance()
		els = p.parseStatementOrBlock()
	}
	return &ast.IfStmt{baseStmt: baseStmt{loc}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseLoop() ast.Statement {
	loc := p.cur().Loc
	isFor := p.advance().Text == "for"
	p.expectText("(")
	var cond ast.Expression
	if isFor {
		// init; cond; step — only the condition matters to the analyses,
		// which treat the whole loop body as executing zero or more times
		// regardless of what the init/step clauses do (spec §4.5.7).
		for !p.atEOF() && !p.checkText(";") {
			p.advance()
		}
		p.acceptText(";")
		if !p.checkText(";") {
			cond = p.parseExpr()
		}
		p.acceptText(";")
		for !p.atEOF() && !p.checkText(")") {
			p.advance()
		}
	} else if !p.checkText(")") {
		cond = p.parseExpr()
	}
	p.expectText(")")
	body := p.parseStatementOrBlock()
	return &ast.LoopStmt{baseStmt: baseStmt{loc}, Cond: cond, Body: body}
}

// parseStatementOrBlock parses either a braced block or a single statement,
// always returning a flat statement slice (a bare `if (x) foo();` has a
// one-element Then, same shape as a braced body).
func (p *Parser) parseStatementOrBlock() []ast.Statement {
	if p.checkText("{") {
		return p.parseBlock()
	}
	s := p.parseStatement()
	if s == nil {
		return nil
	}
	return []ast.Statement{s}
}
