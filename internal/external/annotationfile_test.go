package external

import (
	"testing"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/stretchr/testify/assert"
)

func TestLoadAnnotationFile_DeclaresEntriesAndWhitelist(t *testing.T) {
	text := `
@external: {
    std::*::unwrap: [unsafe, "T unwrap()"]
    memcpy: [unsafe, "void* memcpy(void*, const void*, size_t)"]
}
@external_whitelist: [ "std::string::length", "*::size" ]
`
	reg := NewRegistry()
	LoadAnnotationFile(reg, text)

	mode, ok := reg.DeclaredSafety("std::vector::unwrap")
	assert.True(t, ok)
	assert.Equal(t, ast.Unsafe, mode)

	mode, ok = reg.DeclaredSafety("memcpy")
	assert.True(t, ok)
	assert.Equal(t, ast.Unsafe, mode)

	assert.True(t, reg.IsWhitelisted("std::string::length"))
	assert.True(t, reg.IsWhitelisted("Widget::size"))
}

func TestLoadAnnotationFile_IgnoresTextOutsideBlocks(t *testing.T) {
	text := `
// some unrelated comment
int notAnAnnotation;
`
	reg := NewRegistry()
	LoadAnnotationFile(reg, text)
	_, ok := reg.DeclaredSafety("notAnAnnotation")
	assert.False(t, ok)
}

func TestLoadAnnotationFile_CommentLeadersStripped(t *testing.T) {
	text := `
/*
 * @external: {
 *   legacy_alloc: [unsafe, "void* legacy_alloc(size_t)"]
 * }
 */
`
	reg := NewRegistry()
	LoadAnnotationFile(reg, text)
	mode, ok := reg.DeclaredSafety("legacy_alloc")
	assert.True(t, ok)
	assert.Equal(t, ast.Unsafe, mode)
}
