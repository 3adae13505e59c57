package cxxparse

import (
	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/safety"
)

// parseClass parses `class|struct Name [: bases] { members } ;`, deriving
// the structural booleans internal/structural consumes (spec §4.7) from the
// member/method list once the body is fully read.
func (p *Parser) parseClass(nsPrefix string) *ast.Class {
	loc := p.cur().Loc
	annotationComment := p.commentBefore(loc.Line)
	kw := p.advance().Text // "class" or "struct"
	isStruct := kw == "struct"

	name := ""
	if p.cur().Kind == TokIdent {
		name = p.advance().Text
	}
	qualified := nsPrefix + name

	c := &ast.Class{Name: qualified, Location: loc}
	if hasInterfaceAnnotation(annotationComment) {
		c.IsInterface = true
		c.HasExplicitInterface = true
	}
	if mode, has := safety.AnnotationFromComment(annotationComment); has {
		c.Safety = mode
		c.HasExplicitSafety = true
	}

	if p.acceptText(":") {
		c.BaseClasses = p.parseBaseList()
	}

	if !p.acceptText("{") {
		// Forward declaration or something unrecognized; no body to read.
		p.expectText(";")
		return c
	}

	allPureVirtual := true
	sawAnyMethod := false
	sawNonVirtualMethod := false

	for !p.atEOF() && !p.checkText("}") {
		// struct members default to public; access specifiers are parsed
		// and discarded since the analyses don't gate on visibility.
		if p.cur().Kind == TokIdent && (p.cur().Text == "public" || p.cur().Text == "private" || p.cur().Text == "protected") {
			p.advance()
			p.expectText(":")
			continue
		}

		if p.tryParseMember(c, qualified) {
			continue
		}

		method := p.tryParseMethod(c, qualified)
		if method != nil {
			c.Methods = append(c.Methods, method)
			// A constructor carries no virtual dispatch contract and a
			// destructor is judged separately below (HasVirtualDestructor),
			// so neither counts toward "every method is pure virtual" or
			// "has a non-virtual method" — an @interface with only a
			// virtual destructor and pure virtual methods is still pure.
			if !method.IsConstructor && !method.IsDestructor {
				sawAnyMethod = true
				if !method.IsVirtual {
					sawNonVirtualMethod = true
				}
				if !method.IsPureVirtual {
					allPureVirtual = false
				}
			}
			if method.IsDestructor {
				c.HasDestructor = true
				if method.IsVirtual {
					c.HasVirtualDestructor = true
				}
			}
			if method.IsConstructor {
				c.HasUserDefinedConstructor = true
				if len(method.Parameters) == 0 {
					c.HasDefaultConstructor = true
					c.DefaultConstructorDeleted = method.IsDeleted
				}
			}
			continue
		}

		// Unrecognized member-level construct: skip one token.
		p.advance()
	}
	p.expectText("}")
	p.expectText(";")

	c.AllMethodsPureVirtual = sawAnyMethod && allPureVirtual
	c.HasNonVirtualMethods = sawNonVirtualMethod
	if !c.HasUserDefinedConstructor {
		// An implicit default constructor exists unless the class has any
		// user-declared constructor (spec §4.7's non-null pointer-member
		// check treats this as "default-constructible with no initializer").
		c.HasDefaultConstructor = true
	}
	_ = isStruct
	return c
}

func (p *Parser) parseBaseList() []string {
	var bases []string
	for {
		// access-specifier before a base (public/private/protected) is
		// optional and carries no ownership-analysis meaning here.
		if p.cur().Kind == TokIdent && (p.cur().Text == "public" || p.cur().Text == "private" || p.cur().Text == "protected" || p.cur().Text == "virtual") {
			p.advance()
			continue
		}
		name, ok := p.parseTypeName()
		if !ok {
			break
		}
		bases = append(bases, name)
		if !p.acceptText(",") {
			break
		}
	}
	return bases
}

// tryParseMember recognizes a plain data-member declaration: modifiers, a
// type, a name, an optional `= init`, terminated by `;`. Returns false
// (without consuming) if the current position looks like a method instead
// (a `(` follows the declared name).
func (p *Parser) tryParseMember(c *ast.Class, qualified string) bool {
	start := p.mark()
	isVirtual, isMutable, isStatic, isConst := p.parseModifiers()

	typeName, ok := p.parseTypeName()
	if !ok {
		p.reset(start)
		return false
	}

	isPointer := p.acceptText("*")
	isReference := false
	if !isPointer {
		isReference = p.acceptText("&")
	}

	if p.cur().Kind != TokIdent {
		p.reset(start)
		return false
	}
	name := p.cur().Text
	nameLoc := p.cur().Loc

	// Lookahead: a member has no "(" right after its name (that would be a
	// method signature); an array member has "[".
	if p.at(1).Text == "(" {
		p.reset(start)
		return false
	}
	p.advance()

	v := &ast.Variable{
		Name: name, TypeName: typeName, IsPointer: isPointer,
		IsReference: isReference, IsConst: isConst, IsMutable: isMutable,
		IsStatic: isStatic, SmartPointer: smartPointerKindOf(typeName),
		Location: nameLoc,
	}

	if p.acceptText("[") {
		for !p.atEOF() && !p.checkText("]") {
			p.advance()
		}
		p.acceptText("]")
	}

	if p.acceptText("=") {
		v.DefaultInit = p.parseExpr()
	}
	p.expectText(";")

	_ = isVirtual
	_ = qualified
	c.Members = append(c.Members, v)
	return true
}

