// Package ownership implements the Ownership & Borrow Core (spec §4.5),
// the largest and central analysis component: per-path ownership state,
// per-path borrow sets with transitive chains, scope-based lifetimes, and
// the method-qualifier receiver-capability discipline.
package ownership

import (
	"fmt"
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

// OwnershipKind is the per-path ownership lattice element of spec §3.
type OwnershipKind int

const (
	Owned OwnershipKind = iota
	Moved
	PartiallyMoved
	Uninit
)

// OwnershipState is one path's ownership entry. MovedFields is populated
// only when Kind == PartiallyMoved.
type OwnershipState struct {
	Kind        OwnershipKind
	MovedFields map[string]bool
}

// BorrowKind distinguishes shared (Immutable) from exclusive (Mutable)
// borrows.
type BorrowKind int

const (
	Immutable BorrowKind = iota
	Mutable
)

func (k BorrowKind) String() string {
	if k == Mutable {
		return "mutable"
	}
	return "immutable"
}

// BorrowRecord is one live borrow of a path.
type BorrowRecord struct {
	Borrower  string
	Kind      BorrowKind
	ScopeDepth int
	Location  ast.Location
}

type scopeFrame struct {
	depth           int
	introducedPaths []Path
}

// State is the per-function analysis state: OwnershipMap, BorrowMap,
// ScopeStack, and UnsafeDepth (spec §3). It is created fresh per function,
// consumed by the ownership pass, and discarded afterward (spec §5).
type State struct {
	Ownership map[Path]OwnershipState
	Borrows   map[Path][]BorrowRecord

	// AliasTarget maps a reference/borrower name to the path it ultimately
	// borrows from. Because transitive borrows resolve to the same
	// AliasTarget entry as their source, chained borrows are recorded
	// directly against the original owning path with no extra bookkeeping
	// (spec §4.5.3).
	AliasTarget map[string]Path

	ScopeDepth  int
	scopeStack  []scopeFrame
	UnsafeDepth int

	// MethodQualifier is QualifierNone for free functions, else the
	// receiver capability governing operations on paths rooted at
	// ReceiverRoot (spec §4.5.6).
	MethodQualifier ast.MethodQualifier
	ReceiverRoot    Path

	// varTypes records the declared type name of root paths, used by the
	// flow walker to resolve a receiver's class for method-lifetime
	// lookups. Best-effort: absent entries simply disable transitive
	// borrow detection for that call.
	varTypes map[Path]string
}

// NewState creates an empty per-function state for a free function.
func NewState() *State {
	return newState(ast.QualifierNone, "")
}

// NewMethodState creates a per-function state for a method with the given
// receiver capability; receiverRoot is the path naming `self`/`this`.
func NewMethodState(qualifier ast.MethodQualifier, receiverRoot Path) *State {
	return newState(qualifier, receiverRoot)
}

func newState(qualifier ast.MethodQualifier, receiverRoot Path) *State {
	return &State{
		Ownership:       make(map[Path]OwnershipState),
		Borrows:         make(map[Path][]BorrowRecord),
		AliasTarget:     make(map[string]Path),
		MethodQualifier: qualifier,
		ReceiverRoot:    receiverRoot,
		varTypes:        make(map[Path]string),
	}
}

// SetType records the declared type name of a root path.
func (s *State) SetType(path Path, typeName string) {
	s.varTypes[path] = typeName
}

// TypeOf returns the declared type name of a root path, or "" if unknown.
func (s *State) TypeOf(path Path) string {
	return s.varTypes[path]
}

// Declare registers a fresh path (parameter or local declaration). Params
// are always initialized; locals are Uninit unless initialized is true.
func (s *State) Declare(path Path, initialized bool) {
	kind := Uninit
	if initialized {
		kind = Owned
	}
	s.Ownership[path] = OwnershipState{Kind: kind}
	if len(s.scopeStack) > 0 {
		top := &s.scopeStack[len(s.scopeStack)-1]
		top.introducedPaths = append(top.introducedPaths, path)
	}
}

// IsAlias reports whether name is a currently bound reference/borrower.
func (s *State) IsAlias(name string) bool {
	_, ok := s.AliasTarget[name]
	return ok
}

// ResolveAlias returns the ultimate path a borrower name refers to, or the
// name itself (as a root path) if it is not a known alias.
func (s *State) ResolveAlias(name string) Path {
	if target, ok := s.AliasTarget[name]; ok {
		return target
	}
	return Path(name)
}

// --- Scope discipline (spec §4.5.5) -------------------------------------

// EnterScope pushes a checkpoint.
func (s *State) EnterScope() {
	s.ScopeDepth++
	s.scopeStack = append(s.scopeStack, scopeFrame{depth: s.ScopeDepth})
}

// ExitScope implements spec §4.5.5: variables introduced in the exiting
// scope are dropped (their ownership entries removed — this cannot fail,
// even if they have live borrows, because borrow lifetimes are tied to the
// *borrower's* scope, not the variable's); any borrower whose ScopeDepth
// equals the exited depth is removed from every borrow set it appears in.
// Calling ExitScope with no matching EnterScope is a no-op (I6: scope-exit
// idempotence).
func (s *State) ExitScope() {
	if len(s.scopeStack) == 0 {
		return
	}
	frame := s.scopeStack[len(s.scopeStack)-1]
	s.scopeStack = s.scopeStack[:len(s.scopeStack)-1]

	for _, p := range frame.introducedPaths {
		delete(s.Ownership, p)
		delete(s.Borrows, p)
	}
	for path, records := range s.Borrows {
		kept := records[:0:0]
		for _, r := range records {
			if r.ScopeDepth != frame.depth {
				kept = append(kept, r)
			} else {
				delete(s.AliasTarget, r.Borrower)
			}
		}
		if len(kept) == 0 {
			delete(s.Borrows, path)
		} else {
			s.Borrows[path] = kept
		}
	}
	s.ScopeDepth = frame.depth - 1
}

// --- Borrow queries -------------------------------------------------------

func (s *State) hasLiveBorrowExact(path Path) bool {
	return len(s.Borrows[path]) > 0
}

func (s *State) hasLiveMutableBorrowExact(path Path) bool {
	for _, r := range s.Borrows[path] {
		if r.Kind == Mutable {
			return true
		}
	}
	return false
}

// hasConflictingBorrow implements the "ancestor/descendant counts too"
// rule (invariant from spec §3: "a borrow on root.f counts as a borrow on
// root for the purpose of can we move root").
func (s *State) hasConflictingBorrow(path Path) (string, bool) {
	if names := s.borrowerNames(path); len(names) > 0 {
		return strings.Join(names, ", "), true
	}
	for p, records := range s.Borrows {
		if len(records) == 0 {
			continue
		}
		if path.IsAncestorOf(p) || p.IsAncestorOf(path) {
			var names []string
			for _, r := range records {
				names = append(names, r.Borrower)
			}
			return strings.Join(names, ", "), true
		}
	}
	return "", false
}

func (s *State) borrowerNames(path Path) []string {
	var names []string
	for _, r := range s.Borrows[path] {
		names = append(names, r.Borrower)
	}
	return names
}

// --- Move semantics (spec §4.5.1) ---------------------------------------

// Move attempts move(P). It reports a diagnostic and returns false if the
// move is disallowed; on success it performs the state transition and
// returns true. Inside an @unsafe region (UnsafeDepth > 0), preconditions
// are not checked and the transition is applied unconditionally (spec:
// "silent in @unsafe").
func (s *State) Move(path Path, borrowerLookupName string, loc ast.Location, sink *diagnostics.Sink) bool {
	if s.UnsafeDepth == 0 {
		if reason, blocked := s.moveBlocked(path, borrowerLookupName); blocked {
			sink.Report(diagnostics.KindUseAfterMove, loc, reason, string(path))
			return false
		}
	}
	s.applyMove(path)
	return true
}

func (s *State) moveBlocked(path Path, name string) (string, bool) {
	if name != "" && s.IsAlias(name) {
		return fmt.Sprintf("cannot move `%s`: references do not own their referent", name), true
	}
	if reason, blocked := s.qualifierBlocksMove(path); blocked {
		return reason, true
	}
	if st, ok := s.Ownership[path]; ok {
		if st.Kind == Moved {
			return fmt.Sprintf("use of moved value `%s`", path), true
		}
		if st.Kind == Uninit {
			return fmt.Sprintf("cannot move uninitialized value `%s`", path), true
		}
	}
	if parent, field, ok := path.Parent(); ok {
		if pst, pok := s.Ownership[parent]; pok {
			if pst.Kind == Moved {
				return fmt.Sprintf("use of moved value `%s`", parent), true
			}
			if pst.Kind == PartiallyMoved && pst.MovedFields[field] {
				return fmt.Sprintf("field `%s` of `%s` was already moved", field, parent), true
			}
		}
	} else if st, ok := s.Ownership[path]; ok && st.Kind == PartiallyMoved && len(st.MovedFields) > 0 {
		var fields []string
		for f := range st.MovedFields {
			fields = append(fields, f)
		}
		return fmt.Sprintf("cannot move `%s`: field(s) %s already moved", path, strings.Join(fields, ", ")), true
	}
	if who, blocked := s.hasConflictingBorrow(path); blocked {
		return fmt.Sprintf("cannot move `%s` while borrowed by `%s`", path, who), true
	}
	return "", false
}

func (s *State) qualifierBlocksMove(path Path) (string, bool) {
	if s.ReceiverRoot == "" {
		return "", false
	}
	if path != s.ReceiverRoot && !s.ReceiverRoot.IsAncestorOf(path) {
		return "", false
	}
	switch s.MethodQualifier {
	case ast.QualifierConst:
		return fmt.Sprintf("cannot move `%s` in a const method", path), true
	case ast.QualifierNonConst:
		if path != s.ReceiverRoot {
			return fmt.Sprintf("cannot move member `%s` through `&mut self` (an &mut cannot deplete its referent)", path), true
		}
		return "", false
	default:
		return "", false
	}
}

func (s *State) applyMove(path Path) {
	s.Ownership[path] = OwnershipState{Kind: Moved}
	if parent, field, ok := path.Parent(); ok {
		pst := s.Ownership[parent]
		if pst.Kind != Moved {
			if pst.MovedFields == nil {
				pst.MovedFields = make(map[string]bool)
			}
			pst.Kind = PartiallyMoved
			pst.MovedFields[field] = true
			s.Ownership[parent] = pst
		}
	}
}

// --- Borrow creation (spec §4.5.2) --------------------------------------

// CreateBorrow attempts `let borrower = &path` (kind Immutable) or
// `&mut path` (kind Mutable). On success it records the borrow and binds
// borrower as an alias of path.
func (s *State) CreateBorrow(borrower string, path Path, kind BorrowKind, loc ast.Location, sink *diagnostics.Sink) bool {
	if s.UnsafeDepth == 0 {
		if reason, blocked := s.borrowBlocked(path, kind); blocked {
			sink.Report(diagnostics.KindBorrowConflict, loc, reason, string(path), borrower)
			return false
		}
	}
	s.Borrows[path] = append(s.Borrows[path], BorrowRecord{
		Borrower:   borrower,
		Kind:       kind,
		ScopeDepth: s.ScopeDepth,
		Location:   loc,
	})
	s.AliasTarget[borrower] = path
	return true
}

func (s *State) borrowBlocked(path Path, kind BorrowKind) (string, bool) {
	if st, ok := s.Ownership[path]; ok {
		if st.Kind == Moved {
			return fmt.Sprintf("cannot borrow `%s`: value was moved", path), true
		}
		if st.Kind == Uninit {
			return fmt.Sprintf("cannot borrow `%s`: value is uninitialized", path), true
		}
	}
	if kind == Mutable {
		if s.ReceiverRoot != "" && (path == s.ReceiverRoot || s.ReceiverRoot.IsAncestorOf(path)) && s.MethodQualifier == ast.QualifierConst {
			return fmt.Sprintf("cannot create mutable borrow of `%s` through a const method", path), true
		}
		if who, blocked := s.hasConflictingBorrow(path); blocked {
			return fmt.Sprintf("cannot mutably borrow `%s`: already borrowed by `%s`", path, who), true
		}
	} else {
		if s.hasLiveMutableBorrowExact(path) {
			who := strings.Join(s.borrowerNames(path), ", ")
			return fmt.Sprintf("cannot immutably borrow `%s`: mutably borrowed by `%s`", path, who), true
		}
		for p, records := range s.Borrows {
			if len(records) == 0 {
				continue
			}
			if (path.IsAncestorOf(p) || p.IsAncestorOf(path)) && hasMutable(records) {
				who := strings.Join(mutableBorrowerNames(records), ", ")
				return fmt.Sprintf("cannot immutably borrow `%s`: mutably borrowed by `%s`", path, who), true
			}
		}
	}
	return "", false
}

func hasMutable(records []BorrowRecord) bool {
	for _, r := range records {
		if r.Kind == Mutable {
			return true
		}
	}
	return false
}

func mutableBorrowerNames(records []BorrowRecord) []string {
	var names []string
	for _, r := range records {
		if r.Kind == Mutable {
			names = append(names, r.Borrower)
		}
	}
	return names
}

// --- Assignment (spec §4.5.4) -------------------------------------------

// Assign implements `P = expr`: it fails if P has any live borrow
// (including on an ancestor or descendant path); otherwise it marks P
// Owned, clearing any prior Moved/PartiallyMoved state (this is the
// revival mechanism behind R1) and discarding stale sub-path entries.
func (s *State) Assign(path Path, loc ast.Location, sink *diagnostics.Sink) bool {
	if s.UnsafeDepth == 0 {
		if who, blocked := s.hasConflictingBorrow(path); blocked {
			sink.Report(diagnostics.KindBorrowConflict, loc,
				fmt.Sprintf("cannot assign to `%s` while borrowed by `%s`", path, who), string(path))
			return false
		}
	}
	s.Ownership[path] = OwnershipState{Kind: Owned}
	prefix := string(path) + "."
	for p := range s.Ownership {
		if strings.HasPrefix(string(p), prefix) {
			delete(s.Ownership, p)
		}
	}
	if parent, field, ok := path.Parent(); ok {
		if pst, pok := s.Ownership[parent]; pok && pst.Kind == PartiallyMoved {
			delete(pst.MovedFields, field)
			if len(pst.MovedFields) == 0 {
				pst.Kind = Owned
			}
			s.Ownership[parent] = pst
		}
	}
	return true
}

// --- Use checking (I1/I2) ------------------------------------------------

// CheckUse reports a use-after-move / partial-move-conflict diagnostic if
// reading path (or an ancestor of it) is currently disallowed. It returns
// false when a violation was reported.
func (s *State) CheckUse(path Path, loc ast.Location, sink *diagnostics.Sink) bool {
	if s.UnsafeDepth > 0 {
		return true
	}
	segments := path.Segments()
	cur := Path(segments[0])
	if st, ok := s.Ownership[cur]; ok && st.Kind == Moved {
		sink.Report(diagnostics.KindUseAfterMove, loc, fmt.Sprintf("use of moved value `%s`", cur), string(cur))
		return false
	}
	for i := 1; i < len(segments); i++ {
		parent := cur
		cur = cur.Join(segments[i])
		if pst, ok := s.Ownership[parent]; ok {
			if pst.Kind == Moved {
				sink.Report(diagnostics.KindUseAfterMove, loc, fmt.Sprintf("use of moved value `%s`", parent), string(parent))
				return false
			}
			if pst.Kind == PartiallyMoved && pst.MovedFields[segments[i]] {
				sink.Report(diagnostics.KindPartialMoveConflict, loc,
					fmt.Sprintf("use of partially moved value: field `%s` of `%s` was moved", segments[i], parent),
					string(cur))
				return false
			}
		}
		if st, ok := s.Ownership[cur]; ok && st.Kind == Moved {
			sink.Report(diagnostics.KindUseAfterMove, loc, fmt.Sprintf("use of moved value `%s`", cur), string(cur))
			return false
		}
	}
	return true
}
