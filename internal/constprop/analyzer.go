// Package constprop implements Const Propagation Through Pointer Members
// (spec §4.9). C++ does not propagate const through a pointer member: given
// `struct Outer { Inner* ptr; }`, a `const Outer*` still lets you call a
// non-const method on `outer->ptr`. In @safe code this package forbids
// exactly that: once an access chain starts from a const pointer/reference
// parameter (or the implicit `this` of a const method), every pointer
// member reached through it is treated as const, and calling a non-const
// operation or assigning through it is a violation — unless the callee is
// itself declared Safe, since a Safe callee is checked on its own terms and
// may legitimately implement interior-mutability discipline. The callee's
// own const-qualification is not looked up: every call through such a
// chain whose callee is not known Safe is reported, const methods included.
package constprop

import (
	"fmt"
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

// normalizeTemplateName strips bracketed template arguments, e.g.
// "rusty::Cell<int>::set" -> "rusty::Cell::set".
func normalizeTemplateName(name string) string {
	var b strings.Builder
	depth := 0
	for _, c := range name {
		switch {
		case c == '<':
			depth++
		case c == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// baseClassName returns the portion of a normalized qualified name before
// the last "::", e.g. "rusty::Cell::set" -> "rusty::Cell".
func baseClassName(name string) (string, bool) {
	normalized := normalizeTemplateName(name)
	idx := strings.LastIndex(normalized, "::")
	if idx < 0 {
		return "", false
	}
	return normalized[:idx], true
}

// BuildSafeFunctionSet collects the qualified names of every function whose
// effective safety is Safe, plus each name's template-stripped form, for
// IsCalleeSafe's fallback matching tiers.
func BuildSafeFunctionSet(functions []*ast.Function, safetyOf func(*ast.Function) ast.SafetyMode) map[string]bool {
	set := make(map[string]bool)
	for _, fn := range functions {
		if safetyOf(fn) != ast.Safe {
			continue
		}
		set[fn.QualifiedName] = true
		if norm := normalizeTemplateName(fn.QualifiedName); norm != fn.QualifiedName {
			set[norm] = true
		}
	}
	return set
}

// IsCalleeSafe reports whether funcName is known Safe, trying three tiers in
// order: an exact match, a template-normalized match, and (for a qualified
// name) a same-method-name-same-base-class match against every known Safe
// function — the fallback a template instantiation's mangled name needs
// when neither of the first two tiers recognizes it.
func IsCalleeSafe(funcName string, safeFunctions map[string]bool) bool {
	if safeFunctions[funcName] {
		return true
	}
	normalized := normalizeTemplateName(funcName)
	if safeFunctions[normalized] {
		return true
	}

	idx := strings.LastIndex(funcName, "::")
	if idx < 0 {
		return false
	}
	methodName := funcName[idx:] // e.g. "::set", keeps the separator
	funcBase, funcHasBase := baseClassName(funcName)
	if !funcHasBase {
		return false
	}
	for safeFunc := range safeFunctions {
		if !strings.HasSuffix(safeFunc, methodName) {
			continue
		}
		if safeBase, ok := baseClassName(safeFunc); ok && safeBase == funcBase {
			return true
		}
	}
	return false
}

func isConstPointerOrRef(v *ast.Variable) bool {
	if (v.IsPointer || v.IsReference) && v.IsConst {
		return true
	}
	lower := strings.ToLower(v.TypeName)
	return strings.HasPrefix(lower, "const ") && (strings.Contains(lower, "*") || strings.Contains(lower, "&"))
}

func findConstVars(fn *ast.Function) map[string]bool {
	vars := make(map[string]bool)
	for _, p := range fn.Parameters {
		if isConstPointerOrRef(p) {
			vars[p.Name] = true
		}
	}
	if fn.IsMethod && fn.MethodQualifier == ast.QualifierConst {
		vars["this"] = true
	}
	return vars
}

// constSourceInChain walks an access-chain expression back to its root,
// returning the name of the const variable it originates from, if any.
func constSourceInChain(e ast.Expression, constVars map[string]bool) (string, bool) {
	switch v := e.(type) {
	case *ast.VariableExpr:
		if constVars[v.Path] {
			return v.Path, true
		}
		return "", false
	case *ast.MemberAccessExpr:
		return constSourceInChain(v.Object, constVars)
	case *ast.DereferenceExpr:
		return constSourceInChain(v.Inner, constVars)
	case *ast.FunctionCall:
		if v.Receiver != nil {
			return constSourceInChain(v.Receiver, constVars)
		}
		return "", false
	default:
		return "", false
	}
}

// Analyzer walks one function body checking every call and assignment
// against the const-propagation rule above.
type Analyzer struct {
	sink          *diagnostics.Sink
	funcName      string
	safeFunctions map[string]bool
	constVars     map[string]bool
	unsafeDepth   int
}

func NewAnalyzer(sink *diagnostics.Sink, funcName string, safeFunctions map[string]bool) *Analyzer {
	return &Analyzer{sink: sink, funcName: funcName, safeFunctions: safeFunctions}
}

func (a *Analyzer) AnalyzeFunction(fn *ast.Function, safety ast.SafetyMode) {
	if safety != ast.Safe {
		return
	}
	a.constVars = findConstVars(fn)
	a.walkBlock(fn.Body)
}

func (a *Analyzer) walkBlock(stmts []ast.Statement) {
	for _, st := range stmts {
		a.walkStmt(st)
	}
}

func (a *Analyzer) walkStmt(st ast.Statement) {
	switch s := st.(type) {
	case *ast.EnterUnsafeStmt:
		a.unsafeDepth++
		return
	case *ast.ExitUnsafeStmt:
		if a.unsafeDepth > 0 {
			a.unsafeDepth--
		}
		return
	}
	if a.unsafeDepth > 0 {
		switch s := st.(type) {
		case *ast.BlockStmt:
			a.walkBlock(s.Body)
		case *ast.IfStmt:
			a.walkBlock(s.Then)
			a.walkBlock(s.Else)
		case *ast.LoopStmt:
			a.walkBlock(s.Body)
		}
		return
	}

	switch s := st.(type) {
	case *ast.FunctionCallStmt:
		a.checkExpr(s.Call)
	case *ast.Assignment:
		a.checkAssignmentTarget(s.LHS, s.Loc())
		a.checkExpr(s.RHS)
	case *ast.ReturnStmt:
		if s.Expr != nil {
			a.checkExpr(s.Expr)
		}
	case *ast.VariableDecl:
		if s.Init != nil {
			a.checkExpr(s.Init)
		}
	case *ast.ReferenceBinding:
		a.checkExpr(s.Target)
	case *ast.IfStmt:
		a.checkExpr(s.Cond)
		a.walkBlock(s.Then)
		a.walkBlock(s.Else)
	case *ast.LoopStmt:
		if s.Cond != nil {
			a.checkExpr(s.Cond)
		}
		a.walkBlock(s.Body)
	case *ast.BlockStmt:
		a.walkBlock(s.Body)
	case *ast.ExpressionStatement:
		a.checkExpr(s.Expr)
	}
}

// checkExpr recursively visits an expression tree, applying the call check
// to every FunctionCall node it finds (not just a statement-level one, a
// deliberate generalization beyond the original's single-statement check so
// that a call nested in an argument or a condition is not missed).
func (a *Analyzer) checkExpr(e ast.Expression) {
	switch v := e.(type) {
	case nil:
		return
	case *ast.FunctionCall:
		a.checkCall(v)
		if v.Receiver != nil {
			a.checkExpr(v.Receiver)
		}
		for _, arg := range v.Args {
			a.checkExpr(arg)
		}
	case *ast.MemberAccessExpr:
		a.checkExpr(v.Object)
	case *ast.DereferenceExpr:
		a.checkExpr(v.Inner)
	case *ast.AddressOfExpr:
		a.checkExpr(v.Inner)
	case *ast.CastExpr:
		a.checkExpr(v.Inner)
	case *ast.MoveExpr:
		a.checkExpr(v.Inner)
	case *ast.BinaryOpExpr:
		a.checkExpr(v.Left)
		a.checkExpr(v.Right)
	case *ast.IndexExpr:
		a.checkExpr(v.Array)
		a.checkExpr(v.Index)
	case *ast.PointerArithmeticExpr:
		a.checkExpr(v.Pointer)
		a.checkExpr(v.Offset)
	}
}

// checkCall implements check_method_call_const_propagation: a call whose
// receiver chain originates at a const variable is a violation unless the
// callee is itself declared Safe.
func (a *Analyzer) checkCall(call *ast.FunctionCall) {
	if call.Receiver == nil {
		return
	}
	constSource, ok := constSourceInChain(call.Receiver, a.constVars)
	if !ok {
		return
	}
	if IsCalleeSafe(call.Callee, a.safeFunctions) {
		return
	}
	a.sink.Report(diagnostics.KindConstPropagation, call.Loc(),
		fmt.Sprintf("calling `%s` through const-propagated path `%s`; const propagates through pointer members in @safe code", call.Callee, constSource),
		a.funcName, constSource, call.Callee)
}

// checkAssignmentTarget implements check_assignment_const_propagation: no
// safe-callee exemption exists for a direct assignment.
func (a *Analyzer) checkAssignmentTarget(lhs ast.Expression, loc ast.Location) {
	constSource, ok := constSourceInChain(lhs, a.constVars)
	if !ok {
		return
	}
	a.sink.Report(diagnostics.KindConstPropagation, loc,
		fmt.Sprintf("cannot assign through const-propagated path `%s`; const propagates through pointer members in @safe code", constSource),
		a.funcName, constSource)
}
