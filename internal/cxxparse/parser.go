package cxxparse

import (
	"regexp"
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/safety"
)

var interfacePattern = regexp.MustCompile(`@interface(?:[-:,\s]|\*/|$)`)

// hasInterfaceAnnotation reports whether text carries an `@interface`
// marker, using the same word-boundary discipline as
// safety.AnnotationFromComment (no match inside a longer identifier).
func hasInterfaceAnnotation(text string) bool {
	return interfacePattern.MatchString(text)
}

var modifierKeywords = map[string]bool{
	"virtual": true, "static": true, "inline": true, "explicit": true,
	"mutable": true, "const": true, "friend": true,
}

// Parser consumes a token+comment stream produced by Lexer and builds an
// ast.TranslationUnit. Constructs the grammar doesn't recognize are skipped
// rather than rejected (spec §7: a malformed statement degrades, it never
// aborts the whole unit).
type Parser struct {
	file     string
	tokens   []Token
	comments []Comment
	pos      int
}

// ParseFile tokenizes and parses one translation unit.
func ParseFile(file, src string) *ast.TranslationUnit {
	lx := NewLexer(file, src)
	lx.Run()
	p := &Parser{file: file, tokens: lx.Tokens, comments: lx.Comments}
	return p.parseUnit()
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) at(off int) Token {
	idx := p.pos + off
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) checkText(s string) bool { return p.cur().Text == s }

func (p *Parser) acceptText(s string) bool {
	if p.checkText(s) {
		p.advance()
		return true
	}
	return false
}

// expectText consumes a token matching s, skipping forward to the first
// occurrence of s if the current token doesn't match, so one bad token
// never desynchronizes the rest of the file.
func (p *Parser) expectText(s string) {
	if p.acceptText(s) {
		return
	}
	for !p.atEOF() {
		if p.acceptText(s) {
			return
		}
		p.advance()
	}
}

func (p *Parser) mark() int   { return p.pos }
func (p *Parser) reset(m int) { p.pos = m }

// commentBefore finds the annotation text immediately preceding the
// declaration starting at line: the contiguous run of comments on the
// lines directly above it, ending on line-1, concatenated so a multi-line
// run of `//` comments is searched as one unit. Comments are matched by
// the line they start on, so a block comment spanning several lines is
// not found.
func (p *Parser) commentBefore(line int) string {
	var texts []string
	wantLine := line - 1
	for i := len(p.comments) - 1; i >= 0; i-- {
		c := p.comments[i]
		if c.Loc.Line == wantLine {
			texts = append([]string{c.Text}, texts...)
			wantLine--
			continue
		}
		if c.Loc.Line < wantLine {
			break
		}
	}
	return strings.Join(texts, " ")
}

// annotationBefore resolves the Safe/Unsafe annotation (if any) immediately
// preceding a declaration at line.
func (p *Parser) annotationBefore(line int) (ast.SafetyMode, bool) {
	return safety.AnnotationFromComment(p.commentBefore(line))
}

func (p *Parser) parseUnit() *ast.TranslationUnit {
	tu := &ast.TranslationUnit{File: p.file}
	p.parseItems(tu, "")
	return tu
}

// parseItems parses a sequence of top-level or namespace-body items until
// EOF or a closing brace, prefixing every declared name with nsPrefix.
func (p *Parser) parseItems(tu *ast.TranslationUnit, nsPrefix string) {
	for !p.atEOF() && !p.checkText("}") {
		tok := p.cur()

		if strings.HasPrefix(tok.Text, "#") {
			p.parseInclude(tu, tok)
			continue
		}

		if tok.Kind == TokIdent && tok.Text == "namespace" {
			nsLoc := tok.Loc
			annotationComment := p.commentBefore(nsLoc.Line)
			p.advance()
			name := ""
			if p.cur().Kind == TokIdent {
				name = p.advance().Text
			}
			qualified := nsPrefix + name
			if mode, has := safety.AnnotationFromComment(annotationComment); has {
				if tu.NamespaceAnnotations == nil {
					tu.NamespaceAnnotations = make(map[string]ast.SafetyMode)
				}
				// First annotation for a reopened namespace wins, matching
				// Context.RegisterNamespace's same tie-break.
				if _, seen := tu.NamespaceAnnotations[qualified]; !seen {
					tu.NamespaceAnnotations[qualified] = mode
				}
			}
			p.expectText("{")
			childPrefix := qualified + "::"
			p.parseItems(tu, childPrefix)
			p.expectText("}")
			continue
		}

		var templateParams []string
		if tok.Kind == TokIdent && tok.Text == "template" {
			templateParams = p.parseTemplateHeader()
			tok = p.cur()
		}

		if tok.Kind == TokIdent && (tok.Text == "class" || tok.Text == "struct") {
			c := p.parseClass(nsPrefix)
			tu.Classes = append(tu.Classes, c)
			continue
		}

		fn := p.parseFreeFunction(nsPrefix, templateParams)
		if fn != nil {
			tu.Functions = append(tu.Functions, fn)
			continue
		}

		// Unrecognized top-level token: skip it so a single stray
		// construct doesn't stall the whole file (spec §7).
		p.advance()
	}
}

func (p *Parser) parseInclude(tu *ast.TranslationUnit, tok Token) {
	raw := strings.TrimPrefix(tok.Text, "#")
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "include") {
		rest := strings.TrimSpace(strings.TrimPrefix(raw, "include"))
		quoted := strings.HasPrefix(rest, "\"")
		rest = strings.Trim(rest, "\"<>")
		tu.Includes = append(tu.Includes, ast.Include{Path: rest, IsQuoted: quoted, Location: tok.Loc})
	}
	p.advance()
}

// parseTemplateHeader consumes `template < ... >` and returns the bare
// parameter names (spec: templates are analyzed structurally — pack
// recognition only, no instantiation).
func (p *Parser) parseTemplateHeader() []string {
	p.advance() // "template"
	var params []string
	if !p.acceptText("<") {
		return params
	}
	depth := 1
	for !p.atEOF() && depth > 0 {
		switch p.cur().Text {
		case "<":
			depth++
			p.advance()
		case ">":
			depth--
			p.advance()
		case ",", "typename", "class", "...":
			p.advance()
		default:
			if p.cur().Kind == TokIdent {
				params = append(params, p.cur().Text)
			}
			p.advance()
		}
	}
	return params
}

func (p *Parser) parseModifiers() (isVirtual, isMutable, isStatic, isConst bool) {
	for modifierKeywords[p.cur().Text] {
		switch p.cur().Text {
		case "virtual":
			isVirtual = true
		case "mutable":
			isMutable = true
		case "static":
			isStatic = true
		case "const":
			isConst = true
		}
		p.advance()
	}
	return
}

// parseTypeName consumes a (possibly qualified/templated) type name,
// leaving the cursor on whatever follows (pointer/reference markers or the
// declared name).
func (p *Parser) parseTypeName() (string, bool) {
	if p.cur().Kind != TokIdent {
		return "", false
	}
	var b strings.Builder
	b.WriteString(p.advance().Text)
	for {
		if p.checkText("::") && p.at(1).Kind == TokIdent {
			p.advance()
			b.WriteString("::")
			b.WriteString(p.advance().Text)
			continue
		}
		if p.checkText("<") {
			depth := 0
			b.WriteString("<")
			p.advance()
			depth++
			for !p.atEOF() && depth > 0 {
				switch p.cur().Text {
				case "<":
					depth++
				case ">":
					depth--
				}
				b.WriteString(p.cur().Text)
				p.advance()
			}
			continue
		}
		break
	}
	return b.String(), true
}

func smartPointerKindOf(typeName string) ast.SmartPointerKind {
	switch {
	case strings.HasPrefix(typeName, "unique_ptr") || strings.Contains(typeName, "::unique_ptr"):
		return ast.UniquePtr
	case strings.HasPrefix(typeName, "shared_ptr") || strings.Contains(typeName, "::shared_ptr"):
		return ast.SharedPtr
	case strings.HasPrefix(typeName, "weak_ptr") || strings.Contains(typeName, "::weak_ptr"):
		return ast.WeakPtr
	case strings.HasPrefix(typeName, "Box<") || typeName == "Box":
		return ast.BoxPtr
	case strings.HasPrefix(typeName, "Rc<") || typeName == "Rc":
		return ast.RcPtr
	case strings.HasPrefix(typeName, "Arc<") || typeName == "Arc":
		return ast.ArcPtr
	default:
		return ast.NotSmartPointer
	}
}
