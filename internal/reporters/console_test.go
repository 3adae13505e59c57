package reporters

import (
	"bytes"
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
	"github.com/stretchr/testify/assert"
)

func TestConsoleReporter_NoViolationsPrintsCleanLine(t *testing.T) {
	var buf bytes.Buffer
	r := &ConsoleReporter{output: &buf}
	err := r.Generate(nil)
	assert.NoError(t, err)
	assert.Equal(t, "no violations found\n", buf.String())
}

func TestConsoleReporter_ViolationsPrintedInSpecFormat(t *testing.T) {
	var buf bytes.Buffer
	r := &ConsoleReporter{output: &buf}
	violations := []diagnostics.Violation{
		{Kind: diagnostics.KindPointerSafety, Location: ast.Location{File: "a.cpp", Line: 4}, Message: "dereference of a possibly-null pointer"},
		{Kind: diagnostics.KindCallSafety, Location: ast.Location{File: "a.cpp", Line: 9}, Message: "call to undeclared entity 'legacy'"},
	}
	err := r.Generate(violations)
	assert.NoError(t, err)
	assert.Equal(t,
		"a.cpp:4 - dereference of a possibly-null pointer\n"+
			"a.cpp:9 - call to undeclared entity 'legacy'\n"+
			"Found 2 violation(s)\n",
		buf.String())
}

func TestConsoleReporter_VerboseAddsKindBreakdown(t *testing.T) {
	var buf bytes.Buffer
	r := &ConsoleReporter{output: &buf, verbose: true}
	violations := []diagnostics.Violation{
		{Kind: diagnostics.KindPointerSafety, Location: ast.Location{File: "a.cpp", Line: 1}, Message: "m1"},
		{Kind: diagnostics.KindPointerSafety, Location: ast.Location{File: "a.cpp", Line: 2}, Message: "m2"},
	}
	err := r.Generate(violations)
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "By kind:")
	assert.Contains(t, buf.String(), string(diagnostics.KindPointerSafety))
}

func TestConsoleReporter_Format(t *testing.T) {
	assert.Equal(t, "console", NewConsoleReporter(false).Format())
}
