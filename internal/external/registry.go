// Package external implements the External Annotation Registry (spec §4.2):
// user-supplied safety descriptions for entities the AST carries no
// annotation for (standard-library functions and types, third-party APIs).
package external

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/ericfisherdev/rustycheck/internal/ast"
)

// Signature is the free-form per-entity signature text carried alongside a
// declared safety in an @external block (spec §6.4); the core does not
// interpret it beyond making it available for diagnostics/lifetime lookup.
type Signature string

type entry struct {
	pattern  string
	mode     ast.SafetyMode
	sig      Signature
	compiled glob.Glob // nil for exact (non-glob) patterns
}

// Registry holds the whitelist and the name -> (safety, signature) map,
// plus per-type lifetime specs and unsafe-type marks.
type Registry struct {
	whitelist     []entry
	declarations  []entry
	unsafeTypes   map[string]bool
	typeLifetimes map[string]string // type name -> raw @type_lifetime block text
}

func NewRegistry() *Registry {
	return &Registry{
		unsafeTypes:   make(map[string]bool),
		typeLifetimes: make(map[string]string),
	}
}

func isGlobPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

func compile(pattern string) entry {
	e := entry{pattern: pattern}
	if isGlobPattern(pattern) {
		// '.' is treated literally (escaped) per spec §4.2; glob.Compile's
		// default separator set doesn't special-case '.', so compiling the
		// pattern as-is already treats '.' literally — only '*' and '?' are
		// wildcards.
		if g, err := glob.Compile(pattern); err == nil {
			e.compiled = g
		}
	}
	return e
}

// AddWhitelist registers a name-or-pattern entry in the safe-call whitelist
// (spec §6.4's @external_whitelist).
func (r *Registry) AddWhitelist(pattern string) {
	r.whitelist = append(r.whitelist, compile(pattern))
}

// Declare registers a name-or-pattern entry with an explicit declared
// safety and signature (spec §6.4's @external block).
func (r *Registry) Declare(pattern string, mode ast.SafetyMode, sig Signature) {
	e := compile(pattern)
	e.mode = mode
	e.sig = sig
	r.declarations = append(r.declarations, e)
}

// MarkUnsafeType records a type name as carrying unsafe semantics (e.g.
// raw-owning pointer wrappers the registry's author wants flagged).
func (r *Registry) MarkUnsafeType(typeName string) {
	r.unsafeTypes[typeName] = true
}

// SetTypeLifetime stores the raw per-type lifetime block for typeName; the
// Type-Lifetime Registry (internal/lifetime) is responsible for parsing it.
func (r *Registry) SetTypeLifetime(typeName, block string) {
	r.typeLifetimes[typeName] = block
}

func (r *Registry) TypeLifetime(typeName string) (string, bool) {
	block, ok := r.typeLifetimes[typeName]
	return block, ok
}

func (r *Registry) IsUnsafeType(typeName string) bool {
	return r.unsafeTypes[typeName]
}

// unqualifiedTail returns the portion of a "::"-qualified name after the
// last separator, e.g. "A::B::foo" -> "foo".
func unqualifiedTail(name string) string {
	idx := strings.LastIndex(name, "::")
	if idx < 0 {
		return name
	}
	return name[idx+len("::"):]
}

// matches performs the three-layer name matching required by spec §4.2:
// exact qualified name, exact unqualified tail, glob pattern — first match
// wins, checked in that order across the whole entry set, and matching must
// work in both directions (a fully qualified call against an unqualified or
// wildcard registry entry, and an unqualified call against a qualified
// registry entry).
func matches(entries []entry, name string) (entry, bool) {
	tail := unqualifiedTail(name)

	// Layer 1: exact qualified name match.
	for _, e := range entries {
		if e.compiled == nil && e.pattern == name {
			return e, true
		}
	}
	// Layer 2: exact unqualified-tail match — either side's tail, since a
	// registry entry itself may be qualified (e.g. "std::foo") and the call
	// site may use only "foo", or vice versa.
	for _, e := range entries {
		if e.compiled == nil && (e.pattern == tail || unqualifiedTail(e.pattern) == name || unqualifiedTail(e.pattern) == tail) {
			return e, true
		}
	}
	// Layer 3: glob pattern, tried against both the full name and its tail.
	for _, e := range entries {
		if e.compiled == nil {
			continue
		}
		if e.compiled.Match(name) || e.compiled.Match(tail) {
			return e, true
		}
	}
	return entry{}, false
}

// IsWhitelisted reports whether name matches any whitelist entry.
func (r *Registry) IsWhitelisted(name string) bool {
	_, ok := matches(r.whitelist, name)
	return ok
}

// DeclaredSafety resolves name against the @external declarations, in turn
// implementing safety.Resolver so a Registry can sit directly in the Safety
// Context's fallback chain.
func (r *Registry) DeclaredSafety(name string) (ast.SafetyMode, bool) {
	if r.IsWhitelisted(name) {
		return ast.Safe, true
	}
	e, ok := matches(r.declarations, name)
	if !ok {
		return ast.Undeclared, false
	}
	return e.mode, true
}

// Signature returns the free-form signature text registered for name, if
// any explicit @external declaration matched it.
func (r *Registry) Signature(name string) (Signature, bool) {
	e, ok := matches(r.declarations, name)
	if !ok {
		return "", false
	}
	return e.sig, true
}
