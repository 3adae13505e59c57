package ownership

import (
	"strings"

	gast "github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
	"github.com/ericfisherdev/rustycheck/internal/lifetime"
)

// ExprPath resolves an expression to a symbolic path, when the expression
// is a variable reference or a chain of member accesses/dereferences over
// one. Expressions with no stable path (calls, literals, arithmetic) return
// ok=false — the walker then degrades by skipping path-sensitive tracking
// for that sub-expression, per spec §7's "skip the statement, never crash"
// policy.
func ExprPath(e gast.Expression) (Path, bool) {
	switch v := e.(type) {
	case *gast.VariableExpr:
		return Path(v.Path), true
	case *gast.MemberAccessExpr:
		base, ok := ExprPath(v.Object)
		if !ok {
			return "", false
		}
		return base.Join(v.Field), true
	case *gast.DereferenceExpr:
		return ExprPath(v.Inner)
	case *gast.AddressOfExpr:
		return ExprPath(v.Inner)
	default:
		return "", false
	}
}

func variableName(e gast.Expression) (string, bool) {
	if v, ok := e.(*gast.VariableExpr); ok {
		return v.Path, true
	}
	return "", false
}

func unwrapAddressOf(e gast.Expression) gast.Expression {
	if a, ok := e.(*gast.AddressOfExpr); ok {
		return a.Inner
	}
	return e
}

// Walker drives the Ownership & Borrow Core over one function body,
// emitting diagnostics into sink. It owns no state beyond a reference to
// the per-function State and the (read-only) Type-Lifetime Registry.
type Walker struct {
	State     *State
	Sink      *diagnostics.Sink
	Lifetimes *lifetime.Registry
}

func NewWalker(state *State, sink *diagnostics.Sink, lifetimes *lifetime.Registry) *Walker {
	return &Walker{State: state, Sink: sink, Lifetimes: lifetimes}
}

// resolvePath resolves e to a path, following one level of alias
// indirection at the root (so a borrow of `p` via `r`, then use of
// `r.field`, resolves to `p.field`).
func (w *Walker) resolvePath(e gast.Expression) (Path, bool) {
	p, ok := ExprPath(e)
	if !ok {
		return "", false
	}
	root := p.Root()
	if target, isAlias := w.State.AliasTarget[string(root)]; isAlias {
		rest := strings.TrimPrefix(string(p), string(root))
		return Path(string(target) + rest), true
	}
	return p, true
}

// WalkBlock processes a sequence of statements in order.
func (w *Walker) WalkBlock(stmts []gast.Statement) {
	for _, st := range stmts {
		w.WalkStmt(st)
	}
}

func (w *Walker) WalkStmt(st gast.Statement) {
	switch s := st.(type) {
	case *gast.VariableDecl:
		w.handleVariableDecl(s)
	case *gast.Assignment:
		w.handleAssignment(s)
	case *gast.ReferenceBinding:
		w.handleReferenceBinding(s)
	case *gast.FunctionCallStmt:
		w.handleCall(s.Call, "")
	case *gast.ReturnStmt:
		if s.Expr != nil {
			w.evalRead(s.Expr)
		}
	case *gast.IfStmt:
		w.handleIf(s)
	case *gast.LoopStmt:
		w.handleLoop(s)
	case *gast.BlockStmt:
		w.State.EnterScope()
		w.WalkBlock(s.Body)
		w.State.ExitScope()
	case *gast.EnterScopeStmt:
		w.State.EnterScope()
	case *gast.ExitScopeStmt:
		w.State.ExitScope()
	case *gast.EnterUnsafeStmt:
		w.State.UnsafeDepth++
	case *gast.ExitUnsafeStmt:
		if w.State.UnsafeDepth > 0 {
			w.State.UnsafeDepth--
		}
	case *gast.ExpressionStatement:
		w.evalRead(s.Expr)
	}
}

func (w *Walker) handleVariableDecl(s *gast.VariableDecl) {
	path := Path(s.Var.Name)
	w.State.Declare(path, s.Init != nil)
	if s.Var.TypeName != "" {
		w.State.SetType(path, s.Var.TypeName)
	}
	if s.Init == nil {
		return
	}
	w.evalInitInto(path, s.Init)
}

// evalInitInto handles `T path = init;` at declaration time: a move
// initializer transfers ownership out of its source (spec §4.5.1); an
// address-of initializer for a pointer-typed declaration records a borrow
// the way a reference binding would; a call whose lifetime signature
// self-links its return creates a transitive borrow from the receiver or
// first reference argument (spec §4.5.3).
func (w *Walker) evalInitInto(path Path, init gast.Expression) {
	switch v := init.(type) {
	case *gast.MoveExpr:
		if innerPath, ok := ExprPath(v.Inner); ok {
			name, _ := variableName(v.Inner)
			w.State.Move(innerPath, name, v.Loc(), w.Sink)
		}
	case *gast.AddressOfExpr:
		if target, ok := ExprPath(v.Inner); ok {
			w.State.CreateBorrow(string(path), target, Immutable, v.Loc(), w.Sink)
		}
	case *gast.FunctionCall:
		w.handleCall(v, string(path))
	default:
		w.evalRead(init)
	}
}

func (w *Walker) handleAssignment(s *gast.Assignment) {
	path, ok := w.resolvePath(s.LHS)
	if !ok {
		w.evalRead(s.RHS)
		return
	}
	w.evalInitInto(path, s.RHS)
	w.State.Assign(path, s.Loc(), w.Sink)
}

func (w *Walker) handleReferenceBinding(s *gast.ReferenceBinding) {
	path := Path(s.Name)
	w.State.Declare(path, true)
	target := unwrapAddressOf(s.Target)
	targetPath, ok := w.resolvePath(target)
	if !ok {
		return
	}
	kind := Immutable
	if s.IsMutable {
		kind = Mutable
	}
	w.State.CreateBorrow(s.Name, targetPath, kind, s.Loc(), w.Sink)
}

// handleCall processes a function/method call. assignTo is the path the
// result is bound to ("" for a bare call statement). It checks argument
// reads/moves and, when the callee's lifetime signature self-links its
// return, establishes the appropriate transitive borrow (spec §4.5.3,
// §4.5.6).
func (w *Walker) handleCall(call *gast.FunctionCall, assignTo string) {
	var recvPath Path
	haveRecv := false
	if call.Receiver != nil {
		if p, ok := w.resolvePath(call.Receiver); ok {
			recvPath = p
			haveRecv = true
			w.State.CheckUse(p, call.Loc(), w.Sink)
		}
	}

	for _, arg := range call.Args {
		if mv, ok := arg.(*gast.MoveExpr); ok {
			if innerPath, ok := ExprPath(mv.Inner); ok {
				name, _ := variableName(mv.Inner)
				w.State.Move(innerPath, name, mv.Loc(), w.Sink)
			}
			continue
		}
		w.evalRead(arg)
	}

	if assignTo == "" || w.Lifetimes == nil {
		return
	}

	if call.IsMethod && haveRecv {
		recvType := w.State.TypeOf(recvPath.Root())
		if recvType != "" {
			if l, ok := w.Lifetimes.MethodReturnLifetime(recvType, call.Callee, false); ok && l.IsSelfLinked() {
				kind := Immutable
				if l.IsMutableBorrow() {
					kind = Mutable
				}
				w.State.CreateBorrow(assignTo, recvPath, kind, call.Loc(), w.Sink)
				return
			}
		}
	}

	fl, ok := w.Lifetimes.FunctionLifetime(call.Callee)
	if !ok || len(fl.Params) == 0 || len(call.Args) == 0 {
		return
	}
	if (fl.Return.Kind != lifetime.Ref && fl.Return.Kind != lifetime.MutRef) || fl.Return.Param == "" {
		return
	}
	for i, p := range fl.Params {
		if i >= len(call.Args) {
			break
		}
		if (p.Kind != lifetime.Ref && p.Kind != lifetime.MutRef) || p.Param != fl.Return.Param {
			continue
		}
		argPath, ok := w.resolvePath(call.Args[i])
		if !ok {
			continue
		}
		kind := Immutable
		if fl.Return.Kind == lifetime.MutRef {
			kind = Mutable
		}
		w.State.CreateBorrow(assignTo, argPath, kind, call.Loc(), w.Sink)
		return
	}
}

func (w *Walker) evalRead(e gast.Expression) {
	switch v := e.(type) {
	case *gast.VariableExpr:
		if p, ok := w.resolvePath(v); ok {
			w.State.CheckUse(p, v.Loc(), w.Sink)
		}
	case *gast.MemberAccessExpr:
		if p, ok := w.resolvePath(v); ok {
			w.State.CheckUse(p, v.Loc(), w.Sink)
		} else {
			w.evalRead(v.Object)
		}
	case *gast.DereferenceExpr:
		w.evalRead(v.Inner)
	case *gast.AddressOfExpr:
		w.evalRead(v.Inner)
	case *gast.MoveExpr:
		if innerPath, ok := ExprPath(v.Inner); ok {
			name, _ := variableName(v.Inner)
			w.State.Move(innerPath, name, v.Loc(), w.Sink)
		}
	case *gast.BinaryOpExpr:
		w.evalRead(v.Left)
		w.evalRead(v.Right)
	case *gast.CastExpr:
		w.evalRead(v.Inner)
	case *gast.FunctionCall:
		w.handleCall(v, "")
	case *gast.PointerArithmeticExpr:
		w.evalRead(v.Pointer)
		w.evalRead(v.Offset)
	case *gast.IndexExpr:
		// Array elements have no individually tracked ownership path in
		// this pass (that is the Bounds pass's concern); the array name
		// itself is still checked as a use.
		w.evalRead(v.Array)
		w.evalRead(v.Index)
	}
}

// --- Control flow (spec §4.5.7) -----------------------------------------

func copyOwnership(m map[Path]OwnershipState) map[Path]OwnershipState {
	out := make(map[Path]OwnershipState, len(m))
	for k, v := range m {
		cp := OwnershipState{Kind: v.Kind}
		if v.MovedFields != nil {
			cp.MovedFields = make(map[string]bool, len(v.MovedFields))
			for f := range v.MovedFields {
				cp.MovedFields[f] = true
			}
		}
		out[k] = cp
	}
	return out
}

func rank(k OwnershipKind) int {
	switch k {
	case Moved:
		return 2
	case PartiallyMoved:
		return 1
	default:
		return 0
	}
}

// lub computes the pointwise least-upper-bound of two ownership states
// (spec §4.5.7: "Owned ⊔ Moved = Moved"). Severity order is
// Owned/Uninit < PartiallyMoved < Moved; Uninit vs Owned at equal rank
// resolves to Owned (uninitialized-read soundness is the Init pass's
// responsibility, not this lattice's).
func lub(a, b OwnershipState) OwnershipState {
	ra, rb := rank(a.Kind), rank(b.Kind)
	switch {
	case ra > rb:
		return a
	case rb > ra:
		return b
	case a.Kind == PartiallyMoved: // ra == rb == 1
		merged := make(map[string]bool)
		for f := range a.MovedFields {
			merged[f] = true
		}
		for f := range b.MovedFields {
			merged[f] = true
		}
		return OwnershipState{Kind: PartiallyMoved, MovedFields: merged}
	case a.Kind == Moved:
		return a
	default:
		return OwnershipState{Kind: Owned}
	}
}

func mergeOwnershipMaps(a, b map[Path]OwnershipState) map[Path]OwnershipState {
	out := make(map[Path]OwnershipState, len(a))
	for k, av := range a {
		if bv, ok := b[k]; ok {
			out[k] = lub(av, bv)
		} else {
			out[k] = av
		}
	}
	for k, bv := range b {
		if _, ok := out[k]; !ok {
			out[k] = bv
		}
	}
	return out
}

func (w *Walker) handleIf(s *gast.IfStmt) {
	w.evalRead(s.Cond)

	save := copyOwnership(w.State.Ownership)

	w.State.EnterScope()
	w.WalkBlock(s.Then)
	w.State.ExitScope()
	afterThen := copyOwnership(w.State.Ownership)

	w.State.Ownership = copyOwnership(save)
	var afterElse map[Path]OwnershipState
	if s.Else != nil {
		w.State.EnterScope()
		w.WalkBlock(s.Else)
		w.State.ExitScope()
		afterElse = copyOwnership(w.State.Ownership)
	} else {
		afterElse = copyOwnership(save)
	}

	w.State.Ownership = mergeOwnershipMaps(afterThen, afterElse)
}

// handleLoop implements the bounded-fixpoint approximation documented in
// DESIGN.md's Open Question decisions: the body may execute zero or one
// times, and the post-loop state is their LUB. This is sound for the
// monotone ownership/null/init lattices in use because a further identical
// pass over an already-merged state cannot move it to a lower rank.
func (w *Walker) handleLoop(s *gast.LoopStmt) {
	if s.Cond != nil {
		w.evalRead(s.Cond)
	}
	zero := copyOwnership(w.State.Ownership)

	w.State.EnterScope()
	w.WalkBlock(s.Body)
	w.State.ExitScope()
	one := copyOwnership(w.State.Ownership)

	w.State.Ownership = mergeOwnershipMaps(zero, one)
}
