// Package safety owns the tri-state safety lattice and the Safety Context:
// per-entity, per-file annotation lookup with namespace/class default
// propagation restricted to the declaring file (spec §4.1).
package safety

import (
	"regexp"

	"github.com/ericfisherdev/rustycheck/internal/ast"
)

// annotationPattern matches "@safe" or "@unsafe" followed by end-of-text, a
// separator in {-, :, ,, whitespace}, or a block-comment terminator, and
// rejects word-continuation (so "@safety" never matches "@safe" — I4).
//
// Go's RE2 has no lookahead, so the boundary is matched literally as an
// alternation rather than asserted.
var annotationPattern = regexp.MustCompile(`@(safe|unsafe)(?:[-:,\s]|\*/|$)`)

// AnnotationFromComment implements spec §4.1/§6.2's annotation_from_comment.
// It returns (mode, true) when a recognized token is found, else
// (Undeclared, false). When both @safe and @unsafe appear, the first
// (left-most) token in the text wins.
func AnnotationFromComment(text string) (ast.SafetyMode, bool) {
	loc := annotationPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return ast.Undeclared, false
	}
	word := text[loc[2]:loc[3]]
	if word == "safe" {
		return ast.Safe, true
	}
	return ast.Unsafe, true
}
