package reporters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/config"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONReporter_DisabledIsNoOp(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "out.json")
	r := NewJSONReporter(&config.JSONConfig{Enabled: false, Path: tmp})
	require.NoError(t, r.Generate([]diagnostics.Violation{{Message: "x"}}))
	_, err := os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestJSONReporter_WritesViolations(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "reports", "out.json")
	r := NewJSONReporter(&config.JSONConfig{Enabled: true, Path: tmp, PrettyPrint: true})

	violations := []diagnostics.Violation{
		{Kind: diagnostics.KindBorrowConflict, Location: ast.Location{File: "a.cpp", Line: 3}, Message: "double mutable borrow", Entities: []string{"x"}},
	}
	require.NoError(t, r.Generate(violations))

	data, err := os.ReadFile(tmp)
	require.NoError(t, err)

	var report jsonReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.TotalViolations)
	assert.Equal(t, 1, report.BySeverityKind[string(diagnostics.KindBorrowConflict)])
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "a.cpp", report.Violations[0].File)
	assert.Equal(t, 3, report.Violations[0].Line)
	assert.Equal(t, []string{"x"}, report.Violations[0].Entities)
}

func TestJSONReporter_Format(t *testing.T) {
	assert.Equal(t, "json", NewJSONReporter(nil).Format())
}
