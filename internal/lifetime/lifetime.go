// Package lifetime implements the Type-Lifetime Registry (spec §4.4, §6.3):
// per-function @lifetime signatures, per-type @type_lifetime blocks, and
// built-in specs for the common container shapes (sequence, map,
// unique-owner pointer) so the Ownership & Borrow Core can tell whether a
// method's return value borrows from its receiver.
package lifetime

import (
	"regexp"
	"strings"
)

// Kind is the lifetime-slot vocabulary of spec §6.3.
type Kind int

const (
	Owned Kind = iota
	SelfRef
	SelfMutRef
	Ref
	MutRef
	ConstPtr
	MutPtr
)

// Lifetime is one slot value; Param is the named lifetime ('a, 'b, ...) for
// Ref/MutRef slots and is empty otherwise.
type Lifetime struct {
	Kind  Kind
	Param string
}

// IsSelfLinked reports whether this lifetime borrows from the method's
// receiver — the case the borrow core must turn into an actual borrow
// record on the receiver's path.
func (l Lifetime) IsSelfLinked() bool {
	return l.Kind == SelfRef || l.Kind == SelfMutRef
}

func (l Lifetime) IsMutableBorrow() bool {
	return l.Kind == SelfMutRef || l.Kind == MutRef || l.Kind == MutPtr
}

// WhereClause is one `L_i: L_j` outlives constraint.
type WhereClause struct {
	Shorter string
	Longer  string
}

// FunctionLifetime is a parsed per-function @lifetime signature.
type FunctionLifetime struct {
	Params []Lifetime
	Return Lifetime
	Where  []WhereClause
}

func parseSlot(s string) Lifetime {
	s = strings.TrimSpace(s)
	switch {
	case s == "&'self mut":
		return Lifetime{Kind: SelfMutRef}
	case s == "&'self":
		return Lifetime{Kind: SelfRef}
	case s == "*const":
		return Lifetime{Kind: ConstPtr}
	case s == "*mut":
		return Lifetime{Kind: MutPtr}
	case s == "owned":
		return Lifetime{Kind: Owned}
	case strings.HasPrefix(s, "&'") && strings.HasSuffix(s, " mut"):
		name := strings.TrimSuffix(strings.TrimPrefix(s, "&'"), " mut")
		return Lifetime{Kind: MutRef, Param: name}
	case strings.HasPrefix(s, "&'"):
		name := strings.TrimPrefix(s, "&'")
		return Lifetime{Kind: Ref, Param: name}
	default:
		return Lifetime{Kind: Owned}
	}
}

var funcLifetimeRegexp = regexp.MustCompile(`@lifetime:\s*\(([^)]*)\)\s*->\s*(.+?)(?:\s+\[?\s*where\s+(.+?)\s*\]?)?\s*$`)

// ParseFunctionLifetime parses a `@lifetime: (...) -> ... [where ...]`
// comment per spec §6.3. ok is false if text contains no such signature.
func ParseFunctionLifetime(text string) (FunctionLifetime, bool) {
	m := funcLifetimeRegexp.FindStringSubmatch(text)
	if m == nil {
		return FunctionLifetime{}, false
	}
	var fl FunctionLifetime
	paramsText := strings.TrimSpace(m[1])
	if paramsText != "" {
		for _, p := range strings.Split(paramsText, ",") {
			fl.Params = append(fl.Params, parseSlot(p))
		}
	}
	fl.Return = parseSlot(m[2])
	if m[3] != "" {
		for _, clause := range strings.Split(m[3], ",") {
			parts := strings.SplitN(clause, ":", 2)
			if len(parts) != 2 {
				continue
			}
			fl.Where = append(fl.Where, WhereClause{
				Shorter: strings.TrimPrefix(strings.TrimSpace(parts[0]), "'"),
				Longer:  strings.TrimPrefix(strings.TrimSpace(parts[1]), "'"),
			})
		}
	}
	return fl, true
}

// MethodLifetime is one entry in a per-type method lifetime table.
type MethodLifetime struct {
	Name     string
	IsConst  bool
	Return   Lifetime
}

// TypeSpec is a parsed `@type_lifetime: Type { ... }` block.
type TypeSpec struct {
	TypeName string
	Methods  map[string]MethodLifetime // keyed by "name" or "name/const"
	Members  map[string]Lifetime       // members and typedefs
}

func methodKey(name string, isConst bool) string {
	if isConst {
		return name + "/const"
	}
	return name
}

var methodLineRegexp = regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s*\(([^)]*)\)\s*(const)?\s*->\s*(.+?)\s*$`)
var memberLineRegexp = regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s*:\s*(.+?)\s*$`)

// ParseTypeSpec parses the body text of a @type_lifetime block (the braces
// already stripped by the caller, e.g. internal/header.Cache.TypeLifetime).
func ParseTypeSpec(typeName, body string) *TypeSpec {
	spec := &TypeSpec{
		TypeName: typeName,
		Methods:  make(map[string]MethodLifetime),
		Members:  make(map[string]Lifetime),
	}
	for _, rawLine := range strings.Split(body, "\n") {
		line := strings.TrimSpace(rawLine)
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := methodLineRegexp.FindStringSubmatch(line); m != nil {
			name := m[1]
			isConst := m[3] == "const"
			ml := MethodLifetime{Name: name, IsConst: isConst, Return: parseSlot(m[4])}
			spec.Methods[methodKey(name, isConst)] = ml
			continue
		}
		if m := memberLineRegexp.FindStringSubmatch(line); m != nil {
			spec.Members[m[1]] = parseSlot(m[2])
		}
	}
	return spec
}

// stripTemplateArgs implements "strip angle-brackets before lookup" for
// template instantiations, e.g. "vector<int>" -> "vector".
func stripTemplateArgs(typeName string) string {
	if idx := strings.IndexByte(typeName, '<'); idx >= 0 {
		return typeName[:idx]
	}
	return typeName
}

// containerCategory classifies a base type name into one of the built-in
// container families spec §4.4 calls out, by the conventional standard
// container/smart-pointer names.
type containerCategory int

const (
	categoryNone containerCategory = iota
	categorySequence
	categoryMap
	categoryUniqueOwner
)

var sequenceNames = map[string]bool{
	"vector": true, "array": true, "deque": true, "list": true,
	"basic_string": true, "string": true, "span": true,
}
var mapNames = map[string]bool{
	"map": true, "unordered_map": true, "multimap": true, "set": true, "unordered_set": true,
}
var uniqueOwnerNames = map[string]bool{
	"unique_ptr": true, "Box": true,
}

func classify(base string) containerCategory {
	switch {
	case sequenceNames[base]:
		return categorySequence
	case mapNames[base]:
		return categoryMap
	case uniqueOwnerNames[base]:
		return categoryUniqueOwner
	default:
		return categoryNone
	}
}

var elementAccessorNames = map[string]bool{
	"at": true, "operator[]": true, "front": true, "back": true, "top": true,
}
var iteratorNames = map[string]bool{"begin": true, "end": true, "cbegin": true, "cend": true, "rbegin": true, "rend": true}
var rawPointerNames = map[string]bool{"data": true, "get": true, "c_str": true}

// builtinMethodLifetime implements spec §4.4's built-in container specs:
// element accessors and begin/end return a self-linked reference whose
// mutability follows the method's own const-ness; release returns Owned;
// raw-pointer accessors return MutPtr/ConstPtr per const-ness.
func builtinMethodLifetime(category containerCategory, methodName string, isConst bool) (Lifetime, bool) {
	if category == categoryNone {
		return Lifetime{}, false
	}
	switch {
	case elementAccessorNames[methodName] && category != categoryUniqueOwner:
		if isConst {
			return Lifetime{Kind: SelfRef}, true
		}
		return Lifetime{Kind: SelfMutRef}, true
	case iteratorNames[methodName] && category != categoryUniqueOwner:
		if isConst || strings.HasPrefix(methodName, "c") {
			return Lifetime{Kind: SelfRef}, true
		}
		return Lifetime{Kind: SelfMutRef}, true
	case methodName == "release" && category == categoryUniqueOwner:
		return Lifetime{Kind: Owned}, true
	case rawPointerNames[methodName]:
		if isConst {
			return Lifetime{Kind: ConstPtr}, true
		}
		return Lifetime{Kind: MutPtr}, true
	}
	return Lifetime{}, false
}

// Registry ties together parsed per-type specs and the built-in container
// fallback.
type Registry struct {
	functions map[string]FunctionLifetime // qualified function name -> signature
	types     map[string]*TypeSpec        // base type name (template-stripped) -> spec
}

func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]FunctionLifetime),
		types:     make(map[string]*TypeSpec),
	}
}

func (r *Registry) RegisterFunction(qualifiedName string, fl FunctionLifetime) {
	r.functions[qualifiedName] = fl
}

func (r *Registry) FunctionLifetime(qualifiedName string) (FunctionLifetime, bool) {
	fl, ok := r.functions[qualifiedName]
	return fl, ok
}

func (r *Registry) RegisterType(spec *TypeSpec) {
	r.types[stripTemplateArgs(spec.TypeName)] = spec
}

// MethodReturnLifetime answers "given a method call on a receiver of this
// type, does the return value borrow from the receiver and with what
// mutability", per spec §4.4's stated purpose. An explicit per-type spec
// takes precedence over the built-in container fallback.
func (r *Registry) MethodReturnLifetime(typeName, methodName string, isConst bool) (Lifetime, bool) {
	base := stripTemplateArgs(typeName)
	if spec, ok := r.types[base]; ok {
		if ml, ok := spec.Methods[methodKey(methodName, isConst)]; ok {
			return ml.Return, true
		}
		if ml, ok := spec.Methods[methodName]; ok {
			return ml.Return, true
		}
	}
	return builtinMethodLifetime(classify(base), methodName, isConst)
}

// MemberLifetime returns the declared lifetime of a member or typedef name
// on typeName, if the type has an explicit @type_lifetime block naming it.
func (r *Registry) MemberLifetime(typeName, memberName string) (Lifetime, bool) {
	base := stripTemplateArgs(typeName)
	spec, ok := r.types[base]
	if !ok {
		return Lifetime{}, false
	}
	l, ok := spec.Members[memberName]
	return l, ok
}
