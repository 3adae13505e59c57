package pointersafety

import (
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loc(line int) ast.Location { return ast.Location{File: "a.cpp", Line: line} }

func varExpr(name string) *ast.VariableExpr { return &ast.VariableExpr{Path: name} }

func safeFn(body []ast.Statement, params ...*ast.Variable) *ast.Function {
	return &ast.Function{QualifiedName: "f", Parameters: params, Body: body, Safety: ast.Safe}
}

func TestAnalyzer_SkipsNonSafeFunctions(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := &ast.Function{
		Body: []ast.Statement{
			&ast.VariableDecl{Var: &ast.Variable{Name: "p"}},
			&ast.ExpressionStatement{Expr: varExpr("p")},
		},
	}
	a.AnalyzeFunction(fn, ast.Undeclared)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_UseOfUninitializedVariable(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "x"}},
		&ast.ExpressionStatement{Expr: varExpr("x")},
	})
	a.AnalyzeFunction(fn, ast.Safe)

	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, diagnostics.KindPointerSafety, vs[0].Kind)
	assert.Contains(t, vs[0].Message, "uninitialized")
}

func TestAnalyzer_InitializedAfterAssignmentNoViolation(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "x"}},
		&ast.Assignment{LHS: varExpr("x"), RHS: &ast.LiteralExpr{Text: "5"}},
		&ast.ExpressionStatement{Expr: varExpr("x")},
	})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

// Uninitialized in one branch and initialized in the other merges to
// MaybeUninit; use after the if must be flagged.
func TestAnalyzer_MaybeUninitializedAfterOneSidedIf(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "x"}},
		&ast.IfStmt{
			Cond: varExpr("cond"),
			Then: []ast.Statement{
				&ast.Assignment{LHS: varExpr("x"), RHS: &ast.LiteralExpr{Text: "1"}},
			},
		},
		&ast.ExpressionStatement{Expr: varExpr("x")},
	})
	a.AnalyzeFunction(fn, ast.Safe)

	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "potentially uninitialized")
}

func TestAnalyzer_InitializedOnBothBranchesNoViolation(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "x"}},
		&ast.IfStmt{
			Cond: varExpr("cond"),
			Then: []ast.Statement{&ast.Assignment{LHS: varExpr("x"), RHS: &ast.LiteralExpr{Text: "1"}}},
			Else: []ast.Statement{&ast.Assignment{LHS: varExpr("x"), RHS: &ast.LiteralExpr{Text: "2"}}},
		},
		&ast.ExpressionStatement{Expr: varExpr("x")},
	})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_NullParamDereferenceFlagged(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.DereferenceExpr{Inner: varExpr("p")}},
	}, &ast.Variable{Name: "p", IsPointer: true})
	a.AnalyzeFunction(fn, ast.Safe)

	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "possibly-null")
}

func TestAnalyzer_NarrowedNonNullDereferenceNotFlagged(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.IfStmt{
			Cond: varExpr("p"),
			Then: []ast.Statement{
				&ast.ExpressionStatement{Expr: &ast.DereferenceExpr{Inner: varExpr("p")}},
			},
		},
	}, &ast.Variable{Name: "p", IsPointer: true})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_AddressOfIsNonNull(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "x"}, Init: &ast.LiteralExpr{Text: "0"}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "p", IsPointer: true}, Init: &ast.AddressOfExpr{Inner: varExpr("x")}},
		&ast.ExpressionStatement{Expr: &ast.DereferenceExpr{Inner: varExpr("p")}},
	})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_PointerSubtractionDifferentAllocations(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "a1"}, Init: &ast.LiteralExpr{Text: "0"}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "a2"}, Init: &ast.LiteralExpr{Text: "0"}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "p1", IsPointer: true}, Init: &ast.AddressOfExpr{Inner: varExpr("a1")}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "p2", IsPointer: true}, Init: &ast.AddressOfExpr{Inner: varExpr("a2")}},
		&ast.ExpressionStatement{Expr: &ast.BinaryOpExpr{Op: ast.OpSub, Left: varExpr("p1"), Right: varExpr("p2")}},
	})
	a.AnalyzeFunction(fn, ast.Safe)

	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "different allocations")
}

func TestAnalyzer_PointerSubtractionSameAllocationNotFlagged(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "a1"}, Init: &ast.LiteralExpr{Text: "0"}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "p1", IsPointer: true}, Init: &ast.AddressOfExpr{Inner: varExpr("a1")}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "p2", IsPointer: true}, Init: varExpr("p1")},
		&ast.ExpressionStatement{Expr: &ast.BinaryOpExpr{Op: ast.OpSub, Left: varExpr("p1"), Right: varExpr("p2")}},
	})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_EqualityComparisonAcrossAllocationsAllowed(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "a1"}, Init: &ast.LiteralExpr{Text: "0"}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "a2"}, Init: &ast.LiteralExpr{Text: "0"}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "p1", IsPointer: true}, Init: &ast.AddressOfExpr{Inner: varExpr("a1")}},
		&ast.VariableDecl{Var: &ast.Variable{Name: "p2", IsPointer: true}, Init: &ast.AddressOfExpr{Inner: varExpr("a2")}},
		&ast.ExpressionStatement{Expr: &ast.BinaryOpExpr{Op: ast.OpEq, Left: varExpr("p1"), Right: varExpr("p2")}},
	})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_ReinterpretCastRequiresUnsafe(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.CastExpr{Kind: ast.CastReinterpret, TypeName: "int*", Inner: varExpr("p")}},
	}, &ast.Variable{Name: "p", IsPointer: true})
	a.AnalyzeFunction(fn, ast.Safe)

	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "@unsafe")
}

func TestAnalyzer_ReinterpretCastInsideUnsafeAllowed(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.EnterUnsafeStmt{},
		&ast.ExpressionStatement{Expr: &ast.CastExpr{Kind: ast.CastReinterpret, TypeName: "int*", Inner: varExpr("p")}},
		&ast.ExitUnsafeStmt{},
	}, &ast.Variable{Name: "p", IsPointer: true})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_StaticCastAlwaysAllowed(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.CastExpr{Kind: ast.CastStatic, TypeName: "double", Inner: varExpr("p")}},
	}, &ast.Variable{Name: "p"})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_AlignmentNarrowingCastFlagged(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "c", IsPointer: true, TypeName: "char"}, Init: &ast.LiteralExpr{Text: "0"}},
		&ast.ExpressionStatement{Expr: &ast.CastExpr{Kind: ast.CastStatic, TypeName: "int", Inner: varExpr("c")}},
	})
	a.AnalyzeFunction(fn, ast.Safe)

	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "narrows alignment")
}

func TestAnalyzer_ConstantIndexOutOfBoundsFlagged(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "arr"}, ArraySize: 4},
		&ast.ExpressionStatement{Expr: &ast.IndexExpr{Array: varExpr("arr"), Index: &ast.LiteralExpr{Text: "4"}, ConstIndex: 4, IsConstIndex: true}},
	})
	a.AnalyzeFunction(fn, ast.Safe)

	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "out of bounds")
}

func TestAnalyzer_ConstantIndexInBoundsNotFlagged(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "arr"}, ArraySize: 4},
		&ast.ExpressionStatement{Expr: &ast.IndexExpr{Array: varExpr("arr"), Index: &ast.LiteralExpr{Text: "0"}, ConstIndex: 0, IsConstIndex: true}},
	})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_NonConstantIndexNotChecked(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "arr"}, ArraySize: 4},
		&ast.VariableDecl{Var: &ast.Variable{Name: "i"}, Init: &ast.LiteralExpr{Text: "9"}},
		&ast.ExpressionStatement{Expr: &ast.IndexExpr{Array: varExpr("arr"), Index: varExpr("i")}},
	})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_SuppressedInsideUnsafeRegion(t *testing.T) {
	sink := diagnostics.NewSink()
	a := NewAnalyzer(sink, "f")
	fn := safeFn([]ast.Statement{
		&ast.VariableDecl{Var: &ast.Variable{Name: "x"}},
		&ast.EnterUnsafeStmt{},
		&ast.ExpressionStatement{Expr: varExpr("x")},
		&ast.ExitUnsafeStmt{},
	})
	a.AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}
