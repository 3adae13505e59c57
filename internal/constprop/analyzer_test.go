package constprop

import (
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTemplateName(t *testing.T) {
	assert.Equal(t, "rusty::Cell::set", normalizeTemplateName("rusty::Cell<int>::set"))
	assert.Equal(t, "plain::name", normalizeTemplateName("plain::name"))
}

func TestIsCalleeSafe_ExactMatch(t *testing.T) {
	safe := map[string]bool{"Outer::mutate": true}
	assert.True(t, IsCalleeSafe("Outer::mutate", safe))
}

func TestIsCalleeSafe_TemplateNormalizedMatch(t *testing.T) {
	safe := map[string]bool{"rusty::Cell::set": true}
	assert.True(t, IsCalleeSafe("rusty::Cell<int>::set", safe))
}

func TestIsCalleeSafe_BaseClassMethodNameFallback(t *testing.T) {
	safe := map[string]bool{"rusty::Cell<int>::set": true}
	assert.True(t, IsCalleeSafe("rusty::Cell<double>::set", safe))
}

func TestIsCalleeSafe_UnrelatedNameNotSafe(t *testing.T) {
	safe := map[string]bool{"Outer::mutate": true}
	assert.False(t, IsCalleeSafe("Inner::mutate", safe))
}

func memberChain(root string, fields ...string) ast.Expression {
	var e ast.Expression = &ast.VariableExpr{Path: root}
	for _, f := range fields {
		e = &ast.MemberAccessExpr{Object: e, Field: f, Arrow: true}
	}
	return e
}

func TestAnalyzer_CallThroughConstParamOnNonSafeCalleeFlagged(t *testing.T) {
	sink := diagnostics.NewSink()
	fn := &ast.Function{
		QualifiedName: "foo",
		Parameters:    []*ast.Variable{{Name: "outer", IsPointer: true, IsConst: true}},
		Body: []ast.Statement{
			&ast.FunctionCallStmt{Call: &ast.FunctionCall{
				Callee:   "Inner::mutate",
				Receiver: memberChain("outer", "ptr"),
			}},
		},
	}

	NewAnalyzer(sink, "foo", map[string]bool{}).AnalyzeFunction(fn, ast.Safe)
	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "const-propagated path")
}

func TestAnalyzer_CallThroughConstParamOnSafeCalleeAllowed(t *testing.T) {
	sink := diagnostics.NewSink()
	fn := &ast.Function{
		QualifiedName: "foo",
		Parameters:    []*ast.Variable{{Name: "outer", IsPointer: true, IsConst: true}},
		Body: []ast.Statement{
			&ast.FunctionCallStmt{Call: &ast.FunctionCall{
				Callee:   "Inner::mutate",
				Receiver: memberChain("outer", "ptr"),
			}},
		},
	}

	safe := map[string]bool{"Inner::mutate": true}
	NewAnalyzer(sink, "foo", safe).AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_CallThroughNonConstParamAllowed(t *testing.T) {
	sink := diagnostics.NewSink()
	fn := &ast.Function{
		QualifiedName: "foo",
		Parameters:    []*ast.Variable{{Name: "outer", IsPointer: true}},
		Body: []ast.Statement{
			&ast.FunctionCallStmt{Call: &ast.FunctionCall{
				Callee:   "Inner::mutate",
				Receiver: memberChain("outer", "ptr"),
			}},
		},
	}

	NewAnalyzer(sink, "foo", map[string]bool{}).AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_ConstMethodThisPropagates(t *testing.T) {
	sink := diagnostics.NewSink()
	fn := &ast.Function{
		QualifiedName:   "Outer::report",
		IsMethod:        true,
		MethodQualifier: ast.QualifierConst,
		Body: []ast.Statement{
			&ast.FunctionCallStmt{Call: &ast.FunctionCall{
				Callee:   "Inner::mutate",
				Receiver: memberChain("this", "ptr"),
			}},
		},
	}

	NewAnalyzer(sink, "Outer::report", map[string]bool{}).AnalyzeFunction(fn, ast.Safe)
	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "this")
}

func TestAnalyzer_AssignmentThroughConstPathFlagged(t *testing.T) {
	sink := diagnostics.NewSink()
	fn := &ast.Function{
		QualifiedName: "foo",
		Parameters:    []*ast.Variable{{Name: "outer", IsReference: true, IsConst: true}},
		Body: []ast.Statement{
			&ast.Assignment{LHS: memberChain("outer", "ptr", "value"), RHS: &ast.LiteralExpr{Text: "1"}},
		},
	}

	NewAnalyzer(sink, "foo", map[string]bool{}).AnalyzeFunction(fn, ast.Safe)
	vs := sink.Violations()
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "cannot assign")
}

func TestAnalyzer_AssignmentThroughConstPathNoSafeCalleeExemption(t *testing.T) {
	sink := diagnostics.NewSink()
	fn := &ast.Function{
		QualifiedName: "foo",
		Parameters:    []*ast.Variable{{Name: "outer", IsReference: true, IsConst: true}},
		Body: []ast.Statement{
			&ast.Assignment{LHS: memberChain("outer", "ptr", "value"), RHS: &ast.LiteralExpr{Text: "1"}},
		},
	}

	// Even with every function marked Safe, a direct assignment still has
	// no exemption — only calls get the safe-callee trust exception.
	NewAnalyzer(sink, "foo", map[string]bool{"anything": true}).AnalyzeFunction(fn, ast.Safe)
	require.Len(t, sink.Violations(), 1)
}

func TestAnalyzer_SuppressedInsideUnsafeRegion(t *testing.T) {
	sink := diagnostics.NewSink()
	fn := &ast.Function{
		QualifiedName: "foo",
		Parameters:    []*ast.Variable{{Name: "outer", IsPointer: true, IsConst: true}},
		Body: []ast.Statement{
			&ast.EnterUnsafeStmt{},
			&ast.FunctionCallStmt{Call: &ast.FunctionCall{Callee: "Inner::mutate", Receiver: memberChain("outer", "ptr")}},
			&ast.ExitUnsafeStmt{},
		},
	}

	NewAnalyzer(sink, "foo", map[string]bool{}).AnalyzeFunction(fn, ast.Safe)
	assert.True(t, sink.Empty())
}

func TestAnalyzer_NotAnalyzedUnlessCallerSafe(t *testing.T) {
	sink := diagnostics.NewSink()
	fn := &ast.Function{
		QualifiedName: "foo",
		Parameters:    []*ast.Variable{{Name: "outer", IsPointer: true, IsConst: true}},
		Body: []ast.Statement{
			&ast.FunctionCallStmt{Call: &ast.FunctionCall{Callee: "Inner::mutate", Receiver: memberChain("outer", "ptr")}},
		},
	}

	NewAnalyzer(sink, "foo", map[string]bool{}).AnalyzeFunction(fn, ast.Undeclared)
	assert.True(t, sink.Empty())
}

func TestBuildSafeFunctionSet_IncludesNormalizedForm(t *testing.T) {
	fns := []*ast.Function{
		{QualifiedName: "rusty::Cell<int>::set", HasExplicitSafety: true, Safety: ast.Safe},
		{QualifiedName: "Other::helper", HasExplicitSafety: true, Safety: ast.Unsafe},
	}
	set := BuildSafeFunctionSet(fns, func(f *ast.Function) ast.SafetyMode { return f.Safety })

	assert.True(t, set["rusty::Cell<int>::set"])
	assert.True(t, set["rusty::Cell::set"])
	assert.False(t, set["Other::helper"])
}
