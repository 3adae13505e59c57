package external

import (
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ExactQualifiedMatch(t *testing.T) {
	r := NewRegistry()
	r.Declare("std::move", ast.Safe, "(T&&) -> T")
	mode, ok := r.DeclaredSafety("std::move")
	require.True(t, ok)
	assert.Equal(t, ast.Safe, mode)
}

func TestRegistry_UnqualifiedTailBothDirections(t *testing.T) {
	r := NewRegistry()
	r.Declare("foo", ast.Unsafe, "")
	mode, ok := r.DeclaredSafety("A::B::foo")
	require.True(t, ok)
	assert.Equal(t, ast.Unsafe, mode)

	r2 := NewRegistry()
	r2.Declare("A::B::bar", ast.Safe, "")
	mode2, ok2 := r2.DeclaredSafety("bar")
	require.True(t, ok2)
	assert.Equal(t, ast.Safe, mode2)
}

func TestRegistry_GlobPattern(t *testing.T) {
	r := NewRegistry()
	r.Declare("*::dynamic_pointer_cast", ast.Unsafe, "")
	mode, ok := r.DeclaredSafety("std::dynamic_pointer_cast")
	require.True(t, ok)
	assert.Equal(t, ast.Unsafe, mode, "S9: glob pattern must resolve to unsafe, not undeclared")
}

func TestRegistry_ExactBeatsGlob(t *testing.T) {
	r := NewRegistry()
	r.Declare("*::foo", ast.Unsafe, "")
	r.Declare("ns::foo", ast.Safe, "")
	mode, ok := r.DeclaredSafety("ns::foo")
	require.True(t, ok)
	assert.Equal(t, ast.Safe, mode)
}

func TestRegistry_Whitelist(t *testing.T) {
	r := NewRegistry()
	r.AddWhitelist("std::*")
	assert.True(t, r.IsWhitelisted("std::vector"))
	assert.False(t, r.IsWhitelisted("other::thing"))

	mode, ok := r.DeclaredSafety("std::vector")
	require.True(t, ok)
	assert.Equal(t, ast.Safe, mode, "whitelisted callees count as Safe")
}

func TestRegistry_UnknownNameNotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.DeclaredSafety("nowhere::at::all")
	assert.False(t, ok)
}

func TestRegistry_UnsafeTypeMark(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.IsUnsafeType("RawHandle"))
	r.MarkUnsafeType("RawHandle")
	assert.True(t, r.IsUnsafeType("RawHandle"))
}
