package safety

import (
	"fmt"

	"github.com/ericfisherdev/rustycheck/internal/ast"
)

// Resolver is the fallback chain consulted after same-file entity/enclosing
// lookups fail: the External Annotation Registry, then the Header Cache
// (spec §4.1 steps 3-4). Both internal/external and internal/header satisfy
// this interface; Context depends only on the interface to avoid an import
// cycle with either.
type Resolver interface {
	DeclaredSafety(qualifiedName string) (ast.SafetyMode, bool)
}

type entityRecord struct {
	Mode     ast.SafetyMode
	Explicit bool
	File     string
}

type nsKey struct {
	file string
	name string
}

// Context is the Safety Context of spec §4.1: per-entity explicit
// annotations, per-file namespace/class defaults, and a two-stage fallback
// to external/header resolvers.
type Context struct {
	entities  map[string]entityRecord
	enclosing map[nsKey]ast.SafetyMode
	external  Resolver
	header    Resolver
}

// NewContext builds an empty Safety Context. external and header may be nil;
// a nil resolver is simply skipped in the lookup chain.
func NewContext(external, header Resolver) *Context {
	return &Context{
		entities:  make(map[string]entityRecord),
		enclosing: make(map[nsKey]ast.SafetyMode),
		external:  external,
		header:    header,
	}
}

// RegisterNamespace records a same-file namespace/class-level default.
// Per the namespace-redeclaration tie-break (§4.1), the first explicitly
// annotated declaration of (file, name) wins; later redeclarations in the
// same file are silently ignored here (they inherit by virtue of the first
// value staying in place).
func (c *Context) RegisterNamespace(file, name string, mode ast.SafetyMode) {
	key := nsKey{file, name}
	if _, exists := c.enclosing[key]; exists {
		return
	}
	c.enclosing[key] = mode
}

// RegisterEntity records an explicit annotation on a function or class. If
// the same qualified entity was already explicitly annotated with a
// conflicting mode, in the same file or another, RegisterEntity reports the
// conflict instead of silently picking a winner, per the Open Question
// decision recorded in DESIGN.md (reject conflicts as a diagnostic).
func (c *Context) RegisterEntity(qualifiedName, file string, mode ast.SafetyMode, explicit bool) (conflict bool, message string) {
	if !explicit {
		return false, ""
	}
	if rec, ok := c.entities[qualifiedName]; ok && rec.Explicit {
		if rec.Mode != mode {
			return true, fmt.Sprintf(
				"conflicting safety annotation for %q: %s (declared in %s) vs %s (declared in %s)",
				qualifiedName, rec.Mode, rec.File, mode, file,
			)
		}
		return false, ""
	}
	c.entities[qualifiedName] = entityRecord{Mode: mode, Explicit: true, File: file}
	return false, ""
}

// EntitySafety implements spec §4.1's entity_safety lookup order:
// (1) explicit annotation on the entity itself;
// (2) explicit annotation on the same-file enclosing namespace/class,
//
//	innermost first;
//
// (3) the external registry;
// (4) the header cache;
// (5) else Undeclared.
func (c *Context) EntitySafety(qualifiedName, file string, enclosing []string) ast.SafetyMode {
	if rec, ok := c.entities[qualifiedName]; ok && rec.Explicit {
		return rec.Mode
	}
	for _, name := range enclosing {
		if mode, ok := c.enclosing[nsKey{file, name}]; ok {
			return mode
		}
	}
	if c.external != nil {
		if mode, ok := c.external.DeclaredSafety(qualifiedName); ok {
			return mode
		}
	}
	if c.header != nil {
		if mode, ok := c.header.DeclaredSafety(qualifiedName); ok {
			return mode
		}
	}
	return ast.Undeclared
}

// FunctionSafety resolves a function's effective safety: an explicit
// annotation on the function wins outright; otherwise fall back through
// EntitySafety using the function's own declared Safety field only when it
// was parsed from an annotation (HasExplicitSafety), else via the normal
// chain.
func (c *Context) FunctionSafety(fn *ast.Function, file string, enclosing []string) ast.SafetyMode {
	if fn.HasExplicitSafety {
		return fn.Safety
	}
	return c.EntitySafety(fn.QualifiedName, file, enclosing)
}

// ClassSafety resolves a class's effective safety the same way.
func (c *Context) ClassSafety(cls *ast.Class, file string, enclosing []string) ast.SafetyMode {
	if cls.HasExplicitSafety {
		return cls.Safety
	}
	return c.EntitySafety(cls.Name, file, enclosing)
}
