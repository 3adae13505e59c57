package structural

import (
	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

func isSmartPointerMember(m *ast.Variable) bool {
	return m.SmartPointer != ast.NotSmartPointer
}

// isNullExpr reports whether e is a nullptr/NULL/0 literal (spec §4.7's
// pointer-member non-null check compares against all three spellings).
func isNullExpr(e ast.Expression) bool {
	switch v := e.(type) {
	case *ast.NullptrExpr:
		return true
	case *ast.LiteralExpr:
		return v.Text == "0" || v.Text == "NULL" || v.Text == "nullptr"
	case *ast.VariableExpr:
		return v.Path == "nullptr" || v.Path == "NULL"
	default:
		return false
	}
}

// extractMemberName resolves an lvalue expression to the member name it
// assigns, for both bare-field (`ptr = ...`) and `this->ptr = ...` /
// `this.ptr = ...` spellings.
func extractMemberName(e ast.Expression) (string, bool) {
	switch v := e.(type) {
	case *ast.VariableExpr:
		return v.Path, true
	case *ast.MemberAccessExpr:
		return v.Field, true
	default:
		return "", false
	}
}

// initializesMember reports whether ctor initializes memberName, checking
// the member-initializer list first and falling back to a body scan for a
// top-level `member = expr` / `this->member = expr` assignment (spec
// SPEC_FULL.md §3.2's decision tree, grounded on
// constructor_initializes_member_with_init_list).
func initializesMember(ctor *ast.Function, memberName string) bool {
	for _, mi := range ctor.MemberInitializers {
		if mi.Member == memberName {
			return true
		}
	}
	for _, st := range ctor.Body {
		if a, ok := st.(*ast.Assignment); ok {
			if name, ok := extractMemberName(a.LHS); ok && name == memberName {
				return true
			}
		}
	}
	return false
}

// allConstructorsInitializeMember implements check_constructors_initialize_member:
// every way of constructing the class must leave memberName non-uninitialized.
func allConstructorsInitializeMember(c *ast.Class, memberName string) bool {
	var ctors []*ast.Function
	for _, m := range c.Methods {
		if m.IsConstructor && !m.IsDeleted {
			ctors = append(ctors, m)
		}
	}

	if c.HasDefaultConstructor && !c.DefaultConstructorDeleted {
		var defaultCtor *ast.Function
		for _, ctor := range ctors {
			if len(ctor.Parameters) == 0 {
				defaultCtor = ctor
				break
			}
		}
		if defaultCtor != nil {
			if !initializesMember(defaultCtor, memberName) {
				return false
			}
		} else if !c.HasUserDefinedConstructor {
			// Implicit default constructor: leaves the pointer uninitialized.
			return false
		}
	}

	if len(ctors) == 0 {
		// No user-defined constructors at all: either no way to construct
		// the class (default deleted, nothing else declared — a compiler
		// error elsewhere, not this check's concern) or the implicit
		// default constructor case already handled above.
		return true
	}

	for _, ctor := range ctors {
		if !initializesMember(ctor, memberName) {
			return false
		}
	}
	return true
}

// CheckPointerMemberSafety implements spec §4.7 / SPEC_FULL.md §3.2: in a
// @safe class, every raw-pointer member (smart pointers are exempt — they
// encode nullability explicitly) must be provably non-null, either via a
// non-null default member initializer or via every constructor assigning
// it a non-null value; explicit null assignments are flagged directly.
func CheckPointerMemberSafety(classes []*ast.Class, classSafetyOf func(*ast.Class) ast.SafetyMode, sink *diagnostics.Sink) {
	for _, c := range classes {
		if classSafetyOf(c) != ast.Safe {
			continue
		}

		for _, m := range c.Members {
			if !m.IsPointer || isSmartPointerMember(m) {
				continue
			}
			if m.DefaultInit != nil {
				if isNullExpr(m.DefaultInit) {
					report(sink, m.Location, "pointer member `%s` of @safe class `%s` cannot be default-initialized to null; use a valid pointer", m.Name, c.Name)
				}
				continue
			}
			if !allConstructorsInitializeMember(c, m.Name) {
				report(sink, m.Location, "pointer member `%s` of @safe class `%s` must be initialized to a non-null value in every constructor", m.Name, c.Name)
			}
		}

		pointerMembers := make(map[string]bool)
		for _, m := range c.Members {
			if m.IsPointer && !isSmartPointerMember(m) {
				pointerMembers[m.Name] = true
			}
		}

		for _, ctor := range c.Methods {
			if !ctor.IsConstructor {
				continue
			}
			checkConstructorForNullptr(ctor, c, pointerMembers, sink)
		}
	}
}

// checkConstructorForNullptr flags a @safe constructor that assigns null to
// a pointer member, whether via the initializer list or a top-level body
// assignment outside an @unsafe region (grounded on
// check_constructor_for_nullptr).
func checkConstructorForNullptr(ctor *ast.Function, c *ast.Class, pointerMembers map[string]bool, sink *diagnostics.Sink) {
	if ctor.Safety != ast.Safe {
		return
	}

	for _, mi := range ctor.MemberInitializers {
		if pointerMembers[mi.Member] && mi.IsNullExpr {
			report(sink, ctor.Location, "constructor `%s::%s` cannot initialize pointer member `%s` to null in its initializer list", c.Name, unqualified(ctor.QualifiedName), mi.Member)
		}
	}

	unsafeDepth := 0
	for _, st := range ctor.Body {
		switch s := st.(type) {
		case *ast.EnterUnsafeStmt:
			unsafeDepth++
		case *ast.ExitUnsafeStmt:
			if unsafeDepth > 0 {
				unsafeDepth--
			}
		case *ast.Assignment:
			if unsafeDepth > 0 {
				continue
			}
			name, ok := extractMemberName(s.LHS)
			if !ok || !pointerMembers[name] || !isNullExpr(s.RHS) {
				continue
			}
			report(sink, s.Loc(), "constructor `%s::%s` cannot assign null to pointer member `%s`", c.Name, unqualified(ctor.QualifiedName), name)
		}
	}
}
