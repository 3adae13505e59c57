package pointersafety

import (
	"fmt"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

// charLikeTypes names pointee types whose pointer arithmetic can produce a
// misaligned address for a stricter-aligned cast target (spec §4.6
// Alignment: "pointer arithmetic on a char-like base").
var charLikeTypes = map[string]bool{
	"char": true, "unsigned char": true, "signed char": true,
	"int8_t": true, "uint8_t": true, "byte": true, "u8": true, "i8": true,
}

// Analyzer drives all six auxiliary pointer-safety passes over one
// function body in a single shared traversal (spec §4.6). It only
// analyzes functions whose effective safety is Safe, mirroring
// original_source's "Only check @safe functions" gate in both
// initialization_tracking.rs and pointer_provenance.rs, generalized here
// to all six passes for a uniform policy.
type Analyzer struct {
	T           *Tracker
	Sink        *diagnostics.Sink
	FuncName    string
	UnsafeDepth int
}

func NewAnalyzer(sink *diagnostics.Sink, funcName string) *Analyzer {
	return &Analyzer{T: NewTracker(), Sink: sink, FuncName: funcName}
}

// AnalyzeFunction is the entry point. It is a no-op unless safety == Safe.
func (a *Analyzer) AnalyzeFunction(fn *ast.Function, safety ast.SafetyMode) {
	if safety != ast.Safe {
		return
	}
	for _, p := range fn.Parameters {
		a.T.Declare(p.Name, true)
		if p.IsPointer || p.IsReference {
			a.T.DeclareNullParam(p.Name)
		}
	}
	a.walkBlock(fn.Body)
}

func (a *Analyzer) walkBlock(stmts []ast.Statement) {
	for _, st := range stmts {
		a.walkStmt(st)
	}
}

func (a *Analyzer) report(loc ast.Location, format string, args ...interface{}) {
	a.Sink.Report(diagnostics.KindPointerSafety, loc, fmt.Sprintf(format, args...), a.FuncName)
}

func (a *Analyzer) walkStmt(st ast.Statement) {
	switch s := st.(type) {
	case *ast.EnterUnsafeStmt:
		a.UnsafeDepth++
		return
	case *ast.ExitUnsafeStmt:
		if a.UnsafeDepth > 0 {
			a.UnsafeDepth--
		}
		return
	}
	if a.UnsafeDepth > 0 {
		// Still need to thread scope discipline even while suppressed.
		switch s := st.(type) {
		case *ast.BlockStmt:
			a.T.EnterScope()
			a.walkBlock(s.Body)
			a.T.ExitScope()
		case *ast.EnterScopeStmt:
			a.T.EnterScope()
		case *ast.ExitScopeStmt:
			a.T.ExitScope()
		}
		return
	}

	switch s := st.(type) {
	case *ast.VariableDecl:
		a.handleVariableDecl(s)
	case *ast.Assignment:
		a.handleAssignment(s)
	case *ast.ReferenceBinding:
		a.handleReferenceBinding(s)
	case *ast.FunctionCallStmt:
		for _, arg := range s.Call.Args {
			a.checkExpr(arg)
		}
	case *ast.ReturnStmt:
		if s.Expr != nil {
			a.checkExpr(s.Expr)
		}
	case *ast.ExpressionStatement:
		a.checkExpr(s.Expr)
	case *ast.IfStmt:
		a.handleIf(s)
	case *ast.LoopStmt:
		if s.Cond != nil {
			a.checkExpr(s.Cond)
		}
		a.T.EnterScope()
		a.walkBlock(s.Body)
		a.T.ExitScope()
	case *ast.BlockStmt:
		a.T.EnterScope()
		a.walkBlock(s.Body)
		a.T.ExitScope()
	case *ast.EnterScopeStmt:
		a.T.EnterScope()
	case *ast.ExitScopeStmt:
		a.T.ExitScope()
	}
}

func (a *Analyzer) handleVariableDecl(s *ast.VariableDecl) {
	name := s.Var.Name
	// A fixed-size array decays to a valid name the moment it is declared
	// (its elements may be individually uninitialized, but that is a
	// per-element concern the Bounds pass does not track).
	initialized := s.Init != nil || s.Var.IsReference || s.ArraySize > 0
	a.T.Declare(name, initialized)

	if s.ArraySize > 0 {
		a.T.DeclareArray(name, s.ArraySize)
		a.T.SetArrayProvenance(name)
	}
	if s.Var.IsPointer {
		a.T.SetAlignSource(name, s.Var.TypeName)
	}

	if s.Init == nil {
		if s.Var.IsPointer {
			a.T.SetMaybeNull(name)
		}
		return
	}
	a.checkExpr(s.Init)
	a.updateFromInit(name, s.Init)
}

func (a *Analyzer) handleAssignment(s *ast.Assignment) {
	a.checkExpr(s.RHS)
	name, ok := extractVarName(s.LHS)
	if !ok {
		return
	}
	a.T.Initialize(name)
	a.updateFromInit(name, s.RHS)
}

func (a *Analyzer) handleReferenceBinding(s *ast.ReferenceBinding) {
	a.checkExpr(s.Target)
	if target, ok := extractVarName(s.Target); ok {
		a.T.SetPointsTo(s.Name, target)
	}
	a.T.Declare(s.Name, true)
}

func (a *Analyzer) handleIf(s *ast.IfStmt) {
	a.checkExpr(s.Cond)

	thenNarrow, elseNarrow := narrowedNullState(s.Cond)

	thenTracker := a.T.Snapshot()
	saved := a.T
	a.T = thenTracker
	for name, st := range thenNarrow {
		a.T.null[name] = st
	}
	a.walkBlock(s.Then)
	afterThen := a.T

	elseTracker := saved.Snapshot()
	a.T = elseTracker
	for name, st := range elseNarrow {
		a.T.null[name] = st
	}
	if s.Else != nil {
		a.walkBlock(s.Else)
	}
	afterElse := a.T

	a.T = JoinBranches(saved, afterThen, afterElse)
}

// narrowedNullState implements spec §4.6's `if (p)` narrowing: when the
// condition is a bare variable, the then-branch sees NonNull and the
// else-branch sees Null. No other condition form is narrowed; the AST has
// no negation node, so no inverse narrowing is applied for `if (!p)`.
func narrowedNullState(cond ast.Expression) (then, els map[string]NullState) {
	then = map[string]NullState{}
	els = map[string]NullState{}
	if c, ok := cond.(*ast.VariableExpr); ok {
		then[c.Path] = NonNull
		els[c.Path] = Null
	}
	return then, els
}

func extractVarName(e ast.Expression) (string, bool) {
	switch v := e.(type) {
	case *ast.VariableExpr:
		return v.Path, true
	case *ast.DereferenceExpr:
		return extractVarName(v.Inner)
	case *ast.CastExpr:
		return extractVarName(v.Inner)
	case *ast.MoveExpr:
		return extractVarName(v.Inner)
	case *ast.PointerArithmeticExpr:
		return extractVarName(v.Pointer)
	default:
		return "", false
	}
}

// updateFromInit tracks provenance and null-state through an initializer
// (grounded on update_provenance_from_expr in pointer_provenance.rs).
func (a *Analyzer) updateFromInit(name string, init ast.Expression) {
	switch v := init.(type) {
	case *ast.AddressOfExpr:
		if target, ok := extractVarName(v.Inner); ok {
			a.T.SetStackProvenance(name, target)
		}
		a.T.SetNonNull(name)
	case *ast.VariableExpr:
		a.T.CopyProvenance(v.Path, name)
		a.T.null[name] = mergeNull(a.T.NullOf(name), a.T.NullOf(v.Path))
	case *ast.NewExpr:
		a.T.SetHeapProvenance(name)
		a.T.SetNonNull(name)
	case *ast.NullptrExpr:
		a.T.SetNull(name)
	case *ast.LiteralExpr:
		a.T.SetNonNull(name)
	case *ast.PointerArithmeticExpr:
		if source, ok := extractVarName(v.Pointer); ok {
			a.T.CopyProvenance(source, name)
			if charLikeTypes[typeNameOfAlignSource(a, source)] {
				a.T.MarkMisaligned(name)
			}
		}
	case *ast.CastExpr:
		a.updateFromInit(name, v.Inner)
		a.checkCast(v)
	default:
	}
}

// typeNameOfAlignSource is a best-effort reverse lookup: the tracker only
// keeps the rank, not the name, so this re-derives char-likeness from the
// rank of a name that has a recorded alignment source. A name with no
// recorded source is never treated as char-like. Rank 1 is shared by
// char-like and unrecognized pointee spellings.
func typeNameOfAlignSource(a *Analyzer, name string) string {
	if a.T.HasAlignSource(name) && a.T.AlignRankOf(name) == 1 {
		return "char"
	}
	return ""
}

func (a *Analyzer) checkExpr(e ast.Expression) {
	switch v := e.(type) {
	case *ast.VariableExpr:
		a.checkUninitRead(v.Path, v.Loc())
	case *ast.AddressOfExpr:
		if name, ok := extractVarName(v.Inner); ok {
			if a.T.InitOf(name) == Uninit {
				a.report(v.Loc(), "taking address of uninitialized variable `%s`", name)
			}
		}
		a.checkExpr(v.Inner)
	case *ast.DereferenceExpr:
		a.checkExpr(v.Inner)
		if name, ok := extractVarName(v.Inner); ok {
			switch a.T.NullOf(name) {
			case Null, MaybeNull:
				a.report(v.Loc(), "dereference of possibly-null pointer `%s`", name)
			}
			if target, ok := a.T.PointsTo(name); ok && a.T.InitOf(target) == Uninit {
				a.report(v.Loc(), "dereferencing pointer to uninitialized variable `%s`", target)
			}
			if a.T.IsMisaligned(name) {
				a.report(v.Loc(), "dereference of pointer `%s` known to be misaligned by pointer arithmetic", name)
			}
		}
	case *ast.BinaryOpExpr:
		a.checkBinaryOpProvenance(v)
		a.checkExpr(v.Left)
		a.checkExpr(v.Right)
	case *ast.FunctionCall:
		for _, arg := range v.Args {
			a.checkExpr(arg)
		}
		if v.Receiver != nil {
			a.checkExpr(v.Receiver)
		}
	case *ast.MemberAccessExpr:
		a.checkExpr(v.Object)
	case *ast.MoveExpr:
		a.checkExpr(v.Inner)
	case *ast.CastExpr:
		a.checkExpr(v.Inner)
		a.checkCast(v)
	case *ast.PointerArithmeticExpr:
		a.checkExpr(v.Pointer)
		a.checkExpr(v.Offset)
	case *ast.IndexExpr:
		a.checkExpr(v.Array)
		a.checkExpr(v.Index)
		a.checkBounds(v)
	}
}

// checkBounds implements spec §4.6 Array bounds: a constant index into a
// declared fixed-size array is checked against its declared size; a
// non-constant index is left unchecked (no runtime value tracking).
func (a *Analyzer) checkBounds(v *ast.IndexExpr) {
	if !v.IsConstIndex {
		return
	}
	name, ok := extractVarName(v.Array)
	if !ok {
		return
	}
	size, ok := a.T.ArraySize(name)
	if !ok {
		return
	}
	if v.ConstIndex < 0 || v.ConstIndex >= size {
		a.report(v.Loc(), "index %d is out of bounds for array `%s` of size %d", v.ConstIndex, name, size)
	}
}

func (a *Analyzer) checkUninitRead(name string, loc ast.Location) {
	switch a.T.InitOf(name) {
	case Uninit:
		a.report(loc, "use of uninitialized variable `%s`", name)
	case MaybeUninit:
		a.report(loc, "use of potentially uninitialized variable `%s`: assign in all branches", name)
	}
}

func (a *Analyzer) checkBinaryOpProvenance(v *ast.BinaryOpExpr) {
	p1, ok1 := extractVarName(v.Left)
	p2, ok2 := extractVarName(v.Right)
	if !ok1 || !ok2 {
		return
	}
	_, haveP1 := a.T.ProvenanceOf(p1)
	_, haveP2 := a.T.ProvenanceOf(p2)
	if !haveP1 || !haveP2 {
		return
	}
	if v.Op == ast.OpSub {
		if !a.T.SameProvenance(p1, p2) {
			a.report(v.Loc(), "pointer subtraction between `%s` and `%s` with different allocations is undefined behavior", p1, p2)
		}
	}
	if v.Op.IsRelational() {
		if !a.T.SameProvenance(p1, p2) {
			a.report(v.Loc(), "relational comparison between pointers `%s` and `%s` with different allocations is undefined behavior", p1, p2)
		}
	}
}

// checkCast implements spec §4.6 Cast safety and Alignment together, since
// both are judged at the same cast-expression site.
func (a *Analyzer) checkCast(c *ast.CastExpr) {
	switch c.Kind {
	case ast.CastReinterpret, ast.CastCStyle, ast.CastConst:
		if a.UnsafeDepth == 0 {
			a.report(c.Loc(), "%s requires an enclosing @unsafe region", c.Kind)
		}
	case ast.CastStatic, ast.CastDynamic:
		// always allowed
	}

	if name, ok := extractVarName(c.Inner); ok && a.T.HasAlignSource(name) {
		fromRank := a.T.AlignRankOf(name)
		toRank := alignRank(c.TypeName)
		if toRank > fromRank {
			a.report(c.Loc(), "cast from `%s` to `%s` narrows alignment from %d to %d bytes", name, c.TypeName, fromRank, toRank)
		}
	}
}
