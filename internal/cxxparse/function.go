package cxxparse

import (
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
)

// tryParseMethod recognizes a method declaration inside a class body:
// modifiers, return type (absent for a constructor/destructor), name,
// parameter list, trailing qualifiers (`const`, `override`, `= 0`,
// `= delete`), then either `;` (declaration only) or a `{ ... }` body.
// Returns nil without consuming input if the current position isn't a
// function-shaped declaration.
func (p *Parser) tryParseMethod(c *ast.Class, qualified string) *ast.Function {
	start := p.mark()
	loc := p.cur().Loc

	isVirtual, _, isStatic, _ := p.parseModifiers()

	isDestructor := p.acceptText("~")
	var returnType string
	var name string

	if isDestructor {
		if p.cur().Kind != TokIdent {
			p.reset(start)
			return nil
		}
		name = "~" + p.advance().Text
	} else {
		// Constructor: name matches the class's own (unqualified) name and
		// is directly followed by "(". Otherwise this is `ReturnType name(`.
		className := qualified
		if idx := strings.LastIndex(qualified, "::"); idx >= 0 {
			className = qualified[idx+2:]
		}
		if p.cur().Kind == TokIdent && p.cur().Text == className && p.at(1).Text == "(" {
			name = p.advance().Text
		} else {
			rt, ok := p.parseTypeName()
			if !ok {
				p.reset(start)
				return nil
			}
			for p.acceptText("*") || p.acceptText("&") {
				rt += "&"
			}
			returnType = rt
			if p.cur().Kind != TokIdent {
				p.reset(start)
				return nil
			}
			name = p.advance().Text
		}
	}

	if !p.checkText("(") {
		p.reset(start)
		return nil
	}

	fn := &ast.Function{
		QualifiedName: qualified + "::" + name,
		IsMethod:      true,
		ReceiverType:  qualified,
		ReturnType:    returnType,
		IsVirtual:     isVirtual,
		IsDestructor:  isDestructor,
		IsConstructor: !isDestructor && returnType == "" && name != "~",
		Location:      loc,
	}
	fn.Parameters = p.parseParameterList()

	for {
		switch {
		case p.acceptText("const"):
			fn.MethodQualifier = ast.QualifierConst
		case p.acceptText("override"):
			fn.IsOverride = true
		case p.acceptText("&&"):
			fn.MethodQualifier = ast.QualifierRvalueRef
		case p.acceptText("&"):
			fn.MethodQualifier = ast.QualifierNonConst
		case p.acceptText("noexcept"):
		default:
			goto doneQualifiers
		}
	}
doneQualifiers:
	if fn.MethodQualifier == ast.QualifierNone && !isStatic {
		fn.MethodQualifier = ast.QualifierNonConst
	}

	if p.acceptText("=") {
		if p.acceptText("0") {
			fn.IsPureVirtual = true
			fn.IsVirtual = true
		} else if p.cur().Kind == TokIdent && p.cur().Text == "delete" {
			p.advance()
			fn.IsDeleted = true
		} else if p.cur().Kind == TokIdent && p.cur().Text == "default" {
			p.advance()
		}
	}

	if fn.IsConstructor && p.acceptText(":") {
		fn.MemberInitializers = p.parseMemberInitializerList()
	}

	if mode, has := p.annotationBefore(loc.Line); has {
		fn.Safety = mode
		fn.HasExplicitSafety = true
	}

	if p.checkText("{") {
		fn.Body = p.parseBlock()
	} else {
		p.expectText(";")
	}

	return fn
}

// parseFreeFunction recognizes a non-member function declaration/definition
// at namespace scope. Returns nil (without consuming) if the position
// doesn't look like a function.
func (p *Parser) parseFreeFunction(nsPrefix string, templateParams []string) *ast.Function {
	start := p.mark()
	loc := p.cur().Loc

	_, _, isStatic, _ := p.parseModifiers()
	_ = isStatic

	returnType, ok := p.parseTypeName()
	if !ok {
		p.reset(start)
		return nil
	}
	for p.acceptText("*") || p.acceptText("&") {
		returnType += "&"
	}

	if p.cur().Kind != TokIdent {
		p.reset(start)
		return nil
	}
	name := p.advance().Text
	if !p.checkText("(") {
		p.reset(start)
		return nil
	}

	fn := &ast.Function{
		QualifiedName:  nsPrefix + name,
		ReturnType:     returnType,
		TemplateParams: templateParams,
		Location:       loc,
	}
	fn.Parameters = p.parseParameterList()
	for p.acceptText("noexcept") {
	}

	if mode, has := p.annotationBefore(loc.Line); has {
		fn.Safety = mode
		fn.HasExplicitSafety = true
	}

	if p.checkText("{") {
		fn.Body = p.parseBlock()
	} else {
		p.expectText(";")
	}
	return fn
}

func (p *Parser) parseParameterList() []*ast.Variable {
	p.expectText("(")
	var params []*ast.Variable
	for !p.atEOF() && !p.checkText(")") {
		isConst := p.acceptText("const")
		typeName, ok := p.parseTypeName()
		if !ok {
			p.advance()
			continue
		}
		if p.cur().Kind == TokIdent && p.cur().Text == "const" {
			isConst = true
			p.advance()
		}
		isPointer := p.acceptText("*")
		isReference := false
		if !isPointer {
			isReference = p.acceptText("&&")
			if !isReference {
				isReference = p.acceptText("&")
			}
		}
		name := ""
		if p.cur().Kind == TokIdent {
			name = p.advance().Text
		}
		v := &ast.Variable{
			Name: name, TypeName: typeName, IsPointer: isPointer,
			IsReference: isReference, IsConst: isConst,
			SmartPointer: smartPointerKindOf(typeName),
		}
		if p.acceptText("=") {
			v.DefaultInit = p.parseExpr()
		}
		params = append(params, v)
		if !p.acceptText(",") {
			break
		}
	}
	p.expectText(")")
	return params
}

// parseMemberInitializerList parses `m1(expr1), m2{expr2}` following a
// constructor's `:`.
func (p *Parser) parseMemberInitializerList() []ast.MemberInitializer {
	var inits []ast.MemberInitializer
	for {
		if p.cur().Kind != TokIdent {
			break
		}
		member := p.advance().Text
		var expr ast.Expression
		if p.acceptText("(") || p.acceptText("{") {
			if !p.checkText(")") && !p.checkText("}") {
				expr = p.parseExpr()
			}
			p.acceptText(")")
			p.acceptText("}")
		}
		mi := ast.MemberInitializer{Member: member, Expr: expr}
		if expr != nil {
			mi.IsNullExpr = isNullExpr(expr)
			mi.IsNonNull = !mi.IsNullExpr
		}
		inits = append(inits, mi)
		if !p.acceptText(",") {
			break
		}
	}
	return inits
}

func isNullExpr(e ast.Expression) bool {
	switch v := e.(type) {
	case *ast.NullptrExpr:
		return true
	case *ast.LiteralExpr:
		return v.Text == "0" || v.Text == "NULL"
	default:
		return false
	}
}
