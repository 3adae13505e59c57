// Package diagnostics implements the Diagnostics Sink (spec §4.10, §7):
// violation collection with de-duplication, source-order emission, and the
// process exit-status rule (0 iff the sink is empty).
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/ericfisherdev/rustycheck/internal/ast"
)

// Kind is the violation taxonomy of spec §7. Grounded on the teacher's
// models.ViolationType string-enum pattern (internal/models/violation.go).
type Kind string

const (
	KindUseAfterMove          Kind = "use_after_move"
	KindPartialMoveConflict   Kind = "partial_move_conflict"
	KindBorrowConflict        Kind = "borrow_conflict"
	KindMethodQualifier       Kind = "method_qualifier_violation"
	KindCallSafety            Kind = "call_safety_violation"
	KindPointerSafety         Kind = "pointer_safety_violation"
	KindStructural            Kind = "structural_violation"
	KindConstPropagation      Kind = "const_propagation_violation"
)

// PassOrder fixes the tie-break order used when two violations share a
// line (spec §5: "emitted in the pass order listed in §2"), mirroring the
// component order of spec §2.
var PassOrder = map[Kind]int{
	KindUseAfterMove:        5,
	KindPartialMoveConflict: 5,
	KindBorrowConflict:      5,
	KindMethodQualifier:     5,
	KindPointerSafety:       6,
	KindStructural:          7,
	KindCallSafety:          8,
	KindConstPropagation:    9,
}

// Violation is one reported defect: a kind, a location, a human-readable
// message, and the named entities involved ("involved entities" is not
// optional per spec §7 — variable, borrower, caller, callee names).
type Violation struct {
	Kind     Kind
	Location ast.Location
	Message  string
	Entities []string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s - %s", v.Location, v.Message)
}

// Sink collects violations, de-duplicating exact repeats produced by
// re-entry on shared statement walkers.
type Sink struct {
	violations []Violation
	seen       map[string]bool
}

func NewSink() *Sink {
	return &Sink{seen: make(map[string]bool)}
}

func dedupKey(v Violation) string {
	return string(v.Kind) + "|" + v.Location.String() + "|" + fmt.Sprint(v.Location.Column) + "|" + v.Message
}

// Report records a violation unless an identical one (same kind, location,
// and message) was already reported.
func (s *Sink) Report(kind Kind, loc ast.Location, message string, entities ...string) {
	v := Violation{Kind: kind, Location: loc, Message: message, Entities: entities}
	key := dedupKey(v)
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.violations = append(s.violations, v)
}

// Violations returns all reported violations in source order (file, then
// line), breaking ties by the fixed pass order of spec §2 (§5: "ordering").
func (s *Sink) Violations() []Violation {
	out := make([]Violation, len(s.violations))
	copy(out, s.violations)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		return PassOrder[a.Kind] < PassOrder[b.Kind]
	})
	return out
}

// Empty reports whether no violations have been recorded.
func (s *Sink) Empty() bool {
	return len(s.violations) == 0
}

// ExitCode implements spec §6.1: 0 iff the sink is empty, 1 otherwise. A
// fatal parse/IO error is a distinct code decided by the caller, not by the
// sink (the sink only ever reports 0 or 1).
func (s *Sink) ExitCode() int {
	if s.Empty() {
		return 0
	}
	return 1
}
