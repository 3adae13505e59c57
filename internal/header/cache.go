// Package header implements the Header Cache (spec §4.3, §6.5): resolves
// #include paths with quoted/angle semantics, parses each header at most
// once, and extracts declared safety and per-type lifetime blocks for
// lookup by qualified name.
package header

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/safety"
)

// declRegexp recognizes a plausible declaration line: optional qualifiers,
// a return/member type, a name, and an opening paren or semicolon — enough
// to associate a pending comment annotation with the name it precedes. This
// mirrors the teacher's own regex-fallback approach to parsing an input
// language with no maintained Go grammar library (see DESIGN.md).
var declRegexp = regexp.MustCompile(`^\s*(?:[\w:<>,\s\*&]+?)\s+([A-Za-z_]\w*)\s*\(`)

var namespaceOpenRegexp = regexp.MustCompile(`^\s*namespace\s+([A-Za-z_]\w*)\s*\{`)
var typeLifetimeOpenRegexp = regexp.MustCompile(`^\s*(?://|\*)?\s*@type_lifetime:\s*([A-Za-z_][\w:]*)\s*\{`)

// Parsed is what one header contributes to the Safety Context and the
// Type-Lifetime Registry.
type Parsed struct {
	Safety        map[string]ast.SafetyMode
	TypeLifetimes map[string]string
}

// Cache is write-once-read-many (spec §5): Parse is idempotent per
// canonical path, and reads never block on concurrent writes because all
// parsing happens before per-function analysis begins.
type Cache struct {
	byPath map[string]*Parsed
	safety map[string]ast.SafetyMode // flattened view across all parsed headers
}

func NewCache() *Cache {
	return &Cache{
		byPath: make(map[string]*Parsed),
		safety: make(map[string]ast.SafetyMode),
	}
}

// ResolveInclude implements spec §6.5: a quoted include is searched first
// relative to the including file's directory, then against user include
// paths; an angle include is searched only against user include paths.
// Unresolved includes are not an error — the caller receives ok=false and
// proceeds with whatever annotations are already available.
func ResolveInclude(includingFile string, inc ast.Include, includePaths []string, exists func(string) bool) (string, bool) {
	if inc.IsQuoted {
		candidate := filepath.Join(filepath.Dir(includingFile), inc.Path)
		if exists(candidate) {
			return filepath.Clean(candidate), true
		}
	}
	for _, dir := range includePaths {
		candidate := filepath.Join(dir, inc.Path)
		if exists(candidate) {
			return filepath.Clean(candidate), true
		}
	}
	return "", false
}

// Parse parses the header at canonicalPath from its source text, unless it
// has already been parsed (dedup by canonical path, spec §4.3). namespace
// nesting is tracked so extracted names are qualified the way entity_safety
// expects them.
func (c *Cache) Parse(canonicalPath, source string) *Parsed {
	if p, ok := c.byPath[canonicalPath]; ok {
		return p
	}
	p := &Parsed{
		Safety:        make(map[string]ast.SafetyMode),
		TypeLifetimes: make(map[string]string),
	}

	var nsStack []string
	var pendingMode ast.SafetyMode
	var pendingExplicit bool

	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		line := scanner.Text()

		if m := typeLifetimeOpenRegexp.FindStringSubmatch(line); m != nil {
			typeName := m[1]
			p.TypeLifetimes[typeName] = consumeBlock(scanner, line)
			pendingExplicit = false
			continue
		}

		if m := namespaceOpenRegexp.FindStringSubmatch(line); m != nil {
			nsStack = append(nsStack, m[1])
			pendingExplicit = false
			continue
		}
		if strings.Contains(line, "}") && len(nsStack) > 0 && !strings.Contains(line, "{") {
			nsStack = nsStack[:len(nsStack)-1]
			continue
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			if mode, found := safety.AnnotationFromComment(line); found {
				pendingMode = mode
				pendingExplicit = true
			}
			continue
		}

		if m := declRegexp.FindStringSubmatch(line); m != nil && pendingExplicit {
			name := m[1]
			if len(nsStack) > 0 {
				name = strings.Join(nsStack, "::") + "::" + name
			}
			p.Safety[name] = pendingMode
			pendingExplicit = false
			continue
		}
		if trimmed != "" {
			pendingExplicit = false
		}
	}

	c.byPath[canonicalPath] = p
	for name, mode := range p.Safety {
		c.safety[name] = mode
	}
	return p
}

// consumeBlock reads lines until a closing brace is found, returning the
// raw text between the braces (exclusive).
func consumeBlock(scanner *bufio.Scanner, openLine string) string {
	var b strings.Builder
	depth := strings.Count(openLine, "{") - strings.Count(openLine, "}")
	for depth > 0 && scanner.Scan() {
		line := scanner.Text()
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth > 0 {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// DeclaredSafety implements safety.Resolver, so a Cache can sit in the
// Safety Context's fallback chain after the External Registry.
func (c *Cache) DeclaredSafety(qualifiedName string) (ast.SafetyMode, bool) {
	mode, ok := c.safety[qualifiedName]
	return mode, ok
}

// TypeLifetime returns the raw @type_lifetime block text for typeName
// across all parsed headers, for internal/lifetime to parse.
func (c *Cache) TypeLifetime(typeName string) (string, bool) {
	for _, p := range c.byPath {
		if block, ok := p.TypeLifetimes[typeName]; ok {
			return block, true
		}
	}
	return "", false
}
