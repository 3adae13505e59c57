// Package callsafety implements the Call-Safety Discipline (spec §4.8): the
// inter-procedural rule connecting the three safety tiers. A Safe caller may
// only call Safe callees (including whitelisted ones, which the Safety
// Context already resolves to Safe) outright; it may call an Unsafe callee
// only from inside a lexical `@unsafe` region; it may never call an
// Undeclared callee. Unsafe and Undeclared callers impose no restriction of
// their own, so analysis is a no-op unless the caller's effective safety is
// Safe.
package callsafety

import (
	"fmt"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

// CalleeResolver resolves a call site's declared/effective safety. The
// driver wires this to the Safety Context's EntitySafety lookup (which
// already falls through to the External Annotation Registry and Header
// Cache, §4.1/§4.2); a whitelisted callee already comes back Safe through
// that chain.
type CalleeResolver func(qualifiedCallee string) ast.SafetyMode

// Analyzer walks one function body, checking every call site reachable from
// it against the call table of spec §4.8.
type Analyzer struct {
	sink     *diagnostics.Sink
	resolve  CalleeResolver
	funcName string

	// templateCallables names parameters whose declared type is itself one
	// of the enclosing function's template parameters: calling through such
	// a name is a call through an as-yet-uninstantiated callable, whose
	// safety obligation transfers to the instantiation site (spec §4.8).
	templateCallables map[string]bool
	unsafeDepth       int
}

func NewAnalyzer(sink *diagnostics.Sink, funcName string, resolve CalleeResolver) *Analyzer {
	return &Analyzer{sink: sink, resolve: resolve, funcName: funcName, templateCallables: make(map[string]bool)}
}

// AnalyzeFunction checks fn's body under effective safety `safety`.
func (a *Analyzer) AnalyzeFunction(fn *ast.Function, safety ast.SafetyMode) {
	if safety != ast.Safe {
		return
	}

	templateParams := make(map[string]bool, len(fn.TemplateParams))
	for _, t := range fn.TemplateParams {
		templateParams[t] = true
	}
	for _, p := range fn.Parameters {
		if templateParams[p.TypeName] {
			a.templateCallables[p.Name] = true
		}
	}

	a.walkBlock(fn.Body)
}

func (a *Analyzer) walkBlock(stmts []ast.Statement) {
	for _, st := range stmts {
		a.walkStmt(st)
	}
}

func (a *Analyzer) report(loc ast.Location, callee string) {
	a.sink.Report(diagnostics.KindCallSafety, loc,
		fmt.Sprintf("`%s` calls `%s`, which has undeclared safety; @safe code may only call @safe or whitelisted callees", a.funcName, callee),
		a.funcName, callee)
}

func (a *Analyzer) reportUnsafeOutsideRegion(loc ast.Location, callee string) {
	a.sink.Report(diagnostics.KindCallSafety, loc,
		fmt.Sprintf("`%s` calls @unsafe function `%s` outside an `@unsafe` block", a.funcName, callee),
		a.funcName, callee)
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
	case *ast.VariableDecl:
		if s.Init != nil {
			a.checkExpr(s.Init)
		}
	case *ast.Assignment:
		a.checkExpr(s.LHS)
		a.checkExpr(s.RHS)
	case *ast.ReferenceBinding:
		a.checkExpr(s.Target)
	case *ast.FunctionCallStmt:
		a.checkCall(s.Call)
	case *ast.ReturnStmt:
		if s.Expr != nil {
			a.checkExpr(s.Expr)
		}
	case *ast.IfStmt:
		a.checkExpr(s.Cond)
		a.walkBlock(s.Then)
		if s.Else != nil {
			a.walkBlock(s.Else)
		}
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

func (a *Analyzer) checkExpr(e ast.Expression) {
	switch v := e.(type) {
	case nil:
		return
	case *ast.FunctionCall:
		a.checkCall(v)
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

// checkCall resolves call.Callee's effective safety and applies the call
// table of spec §4.8.
func (a *Analyzer) checkCall(call *ast.FunctionCall) {
	if call.Receiver != nil {
		a.checkExpr(call.Receiver)
	}
	for _, arg := range call.Args {
		a.checkExpr(arg)
	}

	if !call.IsMethod && a.templateCallables[call.Callee] {
		return
	}

	switch a.resolve(call.Callee) {
	case ast.Safe:
		return
	case ast.Unsafe:
		if a.unsafeDepth == 0 {
			a.reportUnsafeOutsideRegion(call.Loc(), call.Callee)
		}
	default:
		a.report(call.Loc(), call.Callee)
	}
}
