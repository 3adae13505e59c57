package structural

import (
	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
	"github.com/ericfisherdev/rustycheck/internal/external"
)

// CheckMutableFields implements spec §4.7's class-level-only mutable
// prohibition (grounded on mutable_checker.rs): a `mutable` member is an
// error only when the declaring CLASS's own effective safety is Safe.
// A @safe method inside an @unsafe class does not trigger this check, and
// is not consulted at all — mutable_checker.rs never looks at individual
// methods' annotations.
func CheckMutableFields(classes []*ast.Class, classSafetyOf func(*ast.Class) ast.SafetyMode, externalRegistry *external.Registry, sink *diagnostics.Sink) {
	for _, c := range classes {
		if externalRegistry != nil && externalRegistry.IsUnsafeType(c.Name) {
			continue
		}
		if classSafetyOf(c) != ast.Safe {
			continue
		}
		for _, m := range c.Members {
			if m.IsMutable {
				report(sink, m.Location, "mutable field `%s` not allowed in @safe class `%s`; use an explicit unsafe wrapper and @unsafe code for interior mutability", m.Name, c.Name)
			}
		}
	}
}
