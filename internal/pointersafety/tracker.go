// Package pointersafety implements the Auxiliary Pointer-Safety Passes
// (spec §4.6): Null, Init, Provenance, Array-bounds, Cast, and Alignment
// checking, all driven by one shared statement walker per spec's explicit
// requirement that they "share the same statement walker skeleton".
//
// Grounded on original_source/src/analysis/initialization_tracking.rs
// (InitTracker: declare/initialize/enter_scope/exit_scope/snapshot/
// merge_branch) and original_source/src/analysis/pointer_provenance.rs
// (ProvenanceTracker: set_*_provenance/copy_provenance/same_provenance);
// Null/Bounds/Cast/Alignment have no original_source file (the Rust
// original does not implement them) and are built from spec.md §4.6
// directly, following the same tracker shape.
package pointersafety

// NullState is the tri-state null lattice of spec §4.6.
type NullState int

const (
	NonNull NullState = iota
	MaybeNull
	Null
)

func mergeNull(a, b NullState) NullState {
	if a == b {
		return a
	}
	return MaybeNull
}

// InitState is the definite-assignment lattice of spec §4.6.
type InitState int

const (
	Init InitState = iota
	Uninit
	MaybeUninit
)

// Merge implements the join `Uninit ⊔ Init = MaybeUninit` (grounded on
// InitState::merge in initialization_tracking.rs).
func (s InitState) Merge(other InitState) InitState {
	if s == other {
		return s
	}
	return MaybeUninit
}

// AllocKind names the provenance origin of a pointer (spec §4.6).
type AllocKind int

const (
	AllocUnknown AllocKind = iota
	AllocStackVar
	AllocArray
	AllocHeap
)

// AllocationID is the unique-per-allocation identity pointer subtraction
// and relational comparison are checked against.
type AllocationID struct {
	Kind    AllocKind
	Name    string
	HeapSeq int
}

func (a AllocationID) equal(b AllocationID) bool {
	return a.Kind == b.Kind && a.Name == b.Name && a.HeapSeq == b.HeapSeq
}

// Tracker holds the per-function lattices for all six passes. Scope
// save/restore is whole-map clone-and-replace (grounded on the original's
// InitTracker/ProvenanceTracker enter_scope/exit_scope), simpler than the
// Ownership & Borrow Core's introduced-path bookkeeping because these
// lattices have no per-path borrow set to thread through.
type Tracker struct {
	null       map[string]NullState
	init       map[string]InitState
	pointsTo   map[string]string
	provenance map[string]AllocationID
	bounds     map[string]int
	alignSize  map[string]int // pointee alignment rank, by pointer/array name
	misaligned map[string]bool

	heapSeq int

	scopeStack []trackerSnapshot
}

type trackerSnapshot struct {
	null       map[string]NullState
	init       map[string]InitState
	pointsTo   map[string]string
	provenance map[string]AllocationID
	bounds     map[string]int
	alignSize  map[string]int
	misaligned map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		null:       make(map[string]NullState),
		init:       make(map[string]InitState),
		pointsTo:   make(map[string]string),
		provenance: make(map[string]AllocationID),
		bounds:     make(map[string]int),
		alignSize:  make(map[string]int),
		misaligned: make(map[string]bool),
	}
}

func cloneNull(m map[string]NullState) map[string]NullState {
	out := make(map[string]NullState, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
func cloneInit(m map[string]InitState) map[string]InitState {
	out := make(map[string]InitState, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
func cloneStr(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
func cloneAlloc(m map[string]AllocationID) map[string]AllocationID {
	out := make(map[string]AllocationID, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
func cloneInt(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
func cloneBool(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EnterScope snapshots every lattice.
func (t *Tracker) EnterScope() {
	t.scopeStack = append(t.scopeStack, trackerSnapshot{
		null:       cloneNull(t.null),
		init:       cloneInit(t.init),
		pointsTo:   cloneStr(t.pointsTo),
		provenance: cloneAlloc(t.provenance),
		bounds:     cloneInt(t.bounds),
		alignSize:  cloneInt(t.alignSize),
		misaligned: cloneBool(t.misaligned),
	})
}

// ExitScope restores the snapshot taken at the matching EnterScope; a call
// with no open scope is a no-op.
func (t *Tracker) ExitScope() {
	n := len(t.scopeStack)
	if n == 0 {
		return
	}
	snap := t.scopeStack[n-1]
	t.scopeStack = t.scopeStack[:n-1]
	t.null, t.init, t.pointsTo = snap.null, snap.init, snap.pointsTo
	t.provenance, t.bounds = snap.provenance, snap.bounds
	t.alignSize, t.misaligned = snap.alignSize, snap.misaligned
}

// Snapshot returns an independent copy for branch analysis (spec §4.6,
// §3's "scoped snapshot + join-on-merge").
func (t *Tracker) Snapshot() *Tracker {
	return &Tracker{
		null:       cloneNull(t.null),
		init:       cloneInit(t.init),
		pointsTo:   cloneStr(t.pointsTo),
		provenance: cloneAlloc(t.provenance),
		bounds:     cloneInt(t.bounds),
		alignSize:  cloneInt(t.alignSize),
		misaligned: cloneBool(t.misaligned),
		heapSeq:    t.heapSeq,
	}
}

// JoinBranches computes the post-if state from the two independent branch
// outcomes directly (pointwise LUB of null/init against each other, not
// against the pre-branch state): this is deliberately NOT the original's
// sequential `merge_branch(then); merge_branch(else)` — applied in
// sequence against a running "current" value, that approach re-merges the
// second branch against the *first branch's already-merged* result rather
// than against the pre-branch state, so two branches that both fully
// initialize a variable can still come out MaybeUninit if the pre-branch
// state was Uninit. Provenance/bounds/alignment are structural facts
// carried forward from the pre-branch tracker unchanged.
func JoinBranches(pre, branchA, branchB *Tracker) *Tracker {
	out := pre.Snapshot()
	out.init = make(map[string]InitState)
	out.null = make(map[string]NullState)

	names := make(map[string]bool)
	for n := range branchA.init {
		names[n] = true
	}
	for n := range branchB.init {
		names[n] = true
	}
	for n := range names {
		out.init[n] = branchA.InitOf(n).Merge(branchB.InitOf(n))
	}

	names = make(map[string]bool)
	for n := range branchA.null {
		names[n] = true
	}
	for n := range branchB.null {
		names[n] = true
	}
	for n := range names {
		out.null[n] = mergeNull(branchA.NullOf(n), branchB.NullOf(n))
	}
	return out
}

// --- Null pass -----------------------------------------------------------

func (t *Tracker) DeclareNullParam(name string) { t.null[name] = MaybeNull }
func (t *Tracker) SetNonNull(name string)       { t.null[name] = NonNull }
func (t *Tracker) SetNull(name string)          { t.null[name] = Null }
func (t *Tracker) SetMaybeNull(name string)     { t.null[name] = MaybeNull }

func (t *Tracker) NullOf(name string) NullState {
	if st, ok := t.null[name]; ok {
		return st
	}
	return NonNull
}

// --- Init pass -------------------------------------------------------------

func (t *Tracker) Declare(name string, initialized bool) {
	if initialized {
		t.init[name] = Init
	} else {
		t.init[name] = Uninit
	}
}

func (t *Tracker) Initialize(name string) { t.init[name] = Init }

func (t *Tracker) InitOf(name string) InitState {
	if st, ok := t.init[name]; ok {
		return st
	}
	return Init
}

func (t *Tracker) SetPointsTo(ptr, target string) { t.pointsTo[ptr] = target }
func (t *Tracker) PointsTo(ptr string) (string, bool) {
	target, ok := t.pointsTo[ptr]
	return target, ok
}

// --- Provenance pass -------------------------------------------------------

func (t *Tracker) SetStackProvenance(ptr, target string) {
	t.provenance[ptr] = AllocationID{Kind: AllocStackVar, Name: target}
}
func (t *Tracker) SetArrayProvenance(name string) {
	t.provenance[name] = AllocationID{Kind: AllocArray, Name: name}
}
func (t *Tracker) SetHeapProvenance(name string) {
	t.provenance[name] = AllocationID{Kind: AllocHeap, HeapSeq: t.heapSeq}
	t.heapSeq++
}
func (t *Tracker) CopyProvenance(from, to string) {
	if id, ok := t.provenance[from]; ok {
		t.provenance[to] = id
	}
}
func (t *Tracker) ProvenanceOf(name string) (AllocationID, bool) {
	id, ok := t.provenance[name]
	return id, ok
}
func (t *Tracker) SameProvenance(a, b string) bool {
	ida, oka := t.provenance[a]
	idb, okb := t.provenance[b]
	if !oka || !okb {
		return false
	}
	return ida.equal(idb)
}

// --- Array bounds ------------------------------------------------------

func (t *Tracker) DeclareArray(name string, size int) { t.bounds[name] = size }
func (t *Tracker) ArraySize(name string) (int, bool) {
	n, ok := t.bounds[name]
	return n, ok
}

// --- Alignment -------------------------------------------------------------

// alignRank is a coarse alignment-strictness ordering by conventional type
// spelling: char-like types are the loosest (rank 1), 8-byte scalar types
// are the strictest tracked (rank 8). Unknown types are treated as rank 1,
// so an unrecognized cast target never counts as stricter than its source.
func alignRank(typeName string) int {
	switch typeName {
	case "char", "unsigned char", "signed char", "int8_t", "uint8_t", "byte", "u8", "i8":
		return 1
	case "short", "unsigned short", "int16_t", "uint16_t", "u16", "i16":
		return 2
	case "int", "unsigned int", "float", "int32_t", "uint32_t", "u32", "i32":
		return 4
	case "long", "unsigned long", "long long", "double", "int64_t", "uint64_t", "u64", "i64", "size_t":
		return 8
	default:
		return 1
	}
}

func (t *Tracker) SetAlignSource(ptr, typeName string) { t.alignSize[ptr] = alignRank(typeName) }
func (t *Tracker) AlignRankOf(ptr string) int {
	if r, ok := t.alignSize[ptr]; ok {
		return r
	}
	return 1
}
func (t *Tracker) HasAlignSource(ptr string) bool {
	_, ok := t.alignSize[ptr]
	return ok
}
func (t *Tracker) MarkMisaligned(ptr string)  { t.misaligned[ptr] = true }
func (t *Tracker) IsMisaligned(ptr string) bool { return t.misaligned[ptr] }
