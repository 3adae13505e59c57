// Package driver orchestrates a whole run: parse every source file,
// populate the Safety Context/External Registry/Header Cache/Lifetime
// Registry once, then run each analysis pass over every function and class
// in the fixed order spec §2 lists, collecting violations into one
// Diagnostics Sink. Grounded on internal/scanner/engine.go's single-pass
// "collect inputs, then drive every analyzer over them" shape.
package driver

import (
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/callsafety"
	"github.com/ericfisherdev/rustycheck/internal/constprop"
	"github.com/ericfisherdev/rustycheck/internal/cxxparse"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
	"github.com/ericfisherdev/rustycheck/internal/external"
	"github.com/ericfisherdev/rustycheck/internal/header"
	"github.com/ericfisherdev/rustycheck/internal/lifetime"
	"github.com/ericfisherdev/rustycheck/internal/ownership"
	"github.com/ericfisherdev/rustycheck/internal/pointersafety"
	"github.com/ericfisherdev/rustycheck/internal/safety"
	"github.com/ericfisherdev/rustycheck/internal/structural"
)

// SourceFile is one translation unit's raw text paired with the path it was
// read from, the only input a Run needs per file.
type SourceFile struct {
	Path string
	Text string
}

// Options configures one Run: include search paths for the Header Cache
// (spec §6.5) and whatever @external_whitelist/@external/@type_lifetime
// blocks the caller has already parsed out of its own config file(s).
type Options struct {
	IncludePaths       []string
	Whitelist          []string
	ExternalDeclared   []ExternalDecl
	TypeLifetimeBlocks map[string]string
	FileExists         func(string) bool
	ReadHeader         func(canonicalPath string) (string, bool)

	// Registry, when non-nil, seeds the run's External Registry instead of
	// starting from an empty one — the CLI uses this to feed in whatever
	// annotation files it has already parsed via external.LoadAnnotationFile
	// before any Whitelist/ExternalDeclared entries on top of it.
	Registry *external.Registry
}

// ExternalDecl is one parsed @external entry.
type ExternalDecl struct {
	Pattern string
	Mode    ast.SafetyMode
	Sig     external.Signature
}

// Result is everything a caller (the CLI, a test) needs after a Run.
type Result struct {
	Sink  *diagnostics.Sink
	Units []*ast.TranslationUnit
}

// Run parses every file, builds the shared registries, and analyzes every
// function/class in every file. It never returns an error for malformed
// input — a pass that can't make sense of a construct simply skips it
// (spec §7) — the only failure mode is a nil/empty files slice producing an
// empty, clean Result.
func Run(files []SourceFile, opts Options) *Result {
	sink := diagnostics.NewSink()
	units := make([]*ast.TranslationUnit, 0, len(files))
	for _, f := range files {
		units = append(units, cxxparse.ParseFile(f.Path, f.Text))
	}

	extReg := buildExternalRegistry(opts)
	lifetimes := lifetime.NewRegistry()
	for typeName, block := range opts.TypeLifetimeBlocks {
		if spec := lifetime.ParseTypeSpec(typeName, block); spec != nil {
			lifetimes.RegisterType(spec)
		}
	}
	headerCache := buildHeaderCache(units, opts, lifetimes)
	ctx := safety.NewContext(extReg, headerCache)

	registerNamespacesAndEntities(ctx, units, sink)

	allClasses := collectAllClasses(units)
	allFunctions := collectAllFunctions(units, allClasses)
	fnFile := make(map[*ast.Function]string, len(allFunctions))
	for _, u := range units {
		for _, fn := range u.Functions {
			fnFile[fn] = u.File
		}
		for _, c := range u.Classes {
			for _, m := range c.Methods {
				fnFile[m] = u.File
			}
		}
	}

	classSafetyOf := func(c *ast.Class) ast.SafetyMode {
		return ctx.ClassSafety(c, classFile(units, c), enclosingChain(c.Name))
	}
	funcSafetyOf := func(fn *ast.Function, file string, enclosing []string) ast.SafetyMode {
		return ctx.FunctionSafety(fn, file, enclosing)
	}

	safeFunctions := constprop.BuildSafeFunctionSet(allFunctions, func(fn *ast.Function) ast.SafetyMode {
		return funcSafetyOf(fn, fnFile[fn], enclosingChain(fn.QualifiedName))
	})

	resolveCallee := func(name string) ast.SafetyMode {
		return ctx.EntitySafety(name, "", nil)
	}

	for _, u := range units {
		for _, c := range u.Classes {
			for _, m := range c.Methods {
				effective := funcSafetyOf(m, u.File, enclosingChain(m.QualifiedName))
				analyzeFunction(m, effective, sink, resolveCallee, safeFunctions, lifetimes, c)
			}
		}
		for _, fn := range u.Functions {
			effective := funcSafetyOf(fn, u.File, enclosingChain(fn.QualifiedName))
			analyzeFunction(fn, effective, sink, resolveCallee, safeFunctions, lifetimes, nil)
		}
	}

	structural.CheckInheritanceSafety(allClasses, classSafetyOf, sink)
	structural.CheckMutableFields(allClasses, classSafetyOf, extReg, sink)
	structural.CheckPointerMemberSafety(allClasses, classSafetyOf, sink)

	return &Result{Sink: sink, Units: units}
}

// analyzeFunction runs the per-function pass sequence (spec §2: ownership &
// borrow core, pointer safety, call-safety discipline, const propagation)
// over one function body, whether a free function or a method.
func analyzeFunction(
	fn *ast.Function,
	effective ast.SafetyMode,
	sink *diagnostics.Sink,
	resolveCallee callsafety.CalleeResolver,
	safeFunctions map[string]bool,
	lifetimes *lifetime.Registry,
	owner *ast.Class,
) {
	fn.Safety = effective

	state := ownership.NewState()
	if fn.IsMethod {
		state = ownership.NewMethodState(fn.MethodQualifier, "this")
		state.Declare("this", true)
		if owner != nil {
			state.SetType("this", owner.Name)
		}
	}
	for _, p := range fn.Parameters {
		path := ownership.Path(p.Name)
		state.Declare(path, true)
		state.SetType(path, p.TypeName)
	}
	ownership.NewWalker(state, sink, lifetimes).WalkBlock(fn.Body)

	pointersafety.NewAnalyzer(sink, fn.QualifiedName).AnalyzeFunction(fn, effective)

	callsafety.NewAnalyzer(sink, fn.QualifiedName, resolveCallee).AnalyzeFunction(fn, effective)

	constprop.NewAnalyzer(sink, fn.QualifiedName, safeFunctions).AnalyzeFunction(fn, effective)
}

func buildExternalRegistry(opts Options) *external.Registry {
	reg := opts.Registry
	if reg == nil {
		reg = external.NewRegistry()
	}
	for _, w := range opts.Whitelist {
		reg.AddWhitelist(w)
	}
	for _, d := range opts.ExternalDeclared {
		reg.Declare(d.Pattern, d.Mode, d.Sig)
	}
	for typeName, block := range opts.TypeLifetimeBlocks {
		reg.SetTypeLifetime(typeName, block)
	}
	return reg
}

// buildHeaderCache resolves every #include across every parsed unit and, for
// whichever resolve to a real file the caller can read, parses it at most
// once (spec §4.3) and folds any @type_lifetime block it carries into
// lifetimes. An unresolved include or a caller with no ReadHeader callback
// simply contributes nothing — spec §6.5's "unresolved includes are
// ignored" posture.
func buildHeaderCache(units []*ast.TranslationUnit, opts Options, lifetimes *lifetime.Registry) *header.Cache {
	cache := header.NewCache()
	exists := opts.FileExists
	if exists == nil {
		exists = func(string) bool { return false }
	}
	if opts.ReadHeader == nil {
		return cache
	}
	for _, u := range units {
		for _, inc := range u.Includes {
			path, ok := header.ResolveInclude(u.File, inc, opts.IncludePaths, exists)
			if !ok {
				continue
			}
			source, ok := opts.ReadHeader(path)
			if !ok {
				continue
			}
			parsed := cache.Parse(path, source)
			for typeName, block := range parsed.TypeLifetimes {
				if spec := lifetime.ParseTypeSpec(typeName, block); spec != nil {
					lifetimes.RegisterType(spec)
				}
			}
		}
	}
	return cache
}

// registerNamespacesAndEntities feeds every explicit function/class safety
// annotation into the Safety Context, reporting RegisterEntity's conflict
// detection as a structural-kind diagnostic (spec's Open Question decision,
// see DESIGN.md: conflicting explicit annotations are a reportable error,
// not a silent last-write-wins).
//
// It also registers every namespace annotation the parser collected, and a
// class's own explicit safety, as enclosing-scope defaults: RegisterNamespace
// keys on the qualified scope name (namespace OR class) so a member with no
// annotation of its own can fall back to whichever enclosing scope's default
// applies, in the same file, innermost first (spec §2's lookup order).
func registerNamespacesAndEntities(ctx *safety.Context, units []*ast.TranslationUnit, sink *diagnostics.Sink) {
	for _, u := range units {
		for name, mode := range u.NamespaceAnnotations {
			ctx.RegisterNamespace(u.File, name, mode)
		}
		for _, c := range u.Classes {
			if c.HasExplicitSafety {
				if conflict, msg := ctx.RegisterEntity(c.Name, u.File, c.Safety, true); conflict {
					sink.Report(diagnostics.KindStructural, c.Location, msg)
				}
				ctx.RegisterNamespace(u.File, c.Name, c.Safety)
			}
			for _, m := range c.Methods {
				if m.HasExplicitSafety {
					if conflict, msg := ctx.RegisterEntity(m.QualifiedName, u.File, m.Safety, true); conflict {
						sink.Report(diagnostics.KindStructural, m.Location, msg)
					}
				}
			}
		}
		for _, fn := range u.Functions {
			if fn.HasExplicitSafety {
				if conflict, msg := ctx.RegisterEntity(fn.QualifiedName, u.File, fn.Safety, true); conflict {
					sink.Report(diagnostics.KindStructural, fn.Location, msg)
				}
			}
		}
	}
}

// enclosingChain derives the innermost-first chain of enclosing scope names
// from a "::"-qualified entity name, by repeatedly dropping the last
// component: "a::b::C::m" yields ["a::b::C", "a::b", "a"]. It works
// uniformly for a method's QualifiedName (whose prefix is its owning class's
// own qualified name, itself namespace-prefixed) and for a free function's
// or a class's own qualified name, since all three are built by the parser
// as nsPrefix-joined strings (cxxparse.parseClass, parseFreeFunction,
// tryParseMethod).
func enclosingChain(qualified string) []string {
	parts := strings.Split(qualified, "::")
	if len(parts) <= 1 {
		return nil
	}
	chain := make([]string, 0, len(parts)-1)
	for i := len(parts) - 1; i > 0; i-- {
		chain = append(chain, strings.Join(parts[:i], "::"))
	}
	return chain
}

func collectAllClasses(units []*ast.TranslationUnit) []*ast.Class {
	var out []*ast.Class
	for _, u := range units {
		out = append(out, u.Classes...)
	}
	return out
}

func collectAllFunctions(units []*ast.TranslationUnit, classes []*ast.Class) []*ast.Function {
	var out []*ast.Function
	for _, u := range units {
		out = append(out, u.Functions...)
	}
	for _, c := range classes {
		out = append(out, c.Methods...)
	}
	return out
}

func classFile(units []*ast.TranslationUnit, target *ast.Class) string {
	for _, u := range units {
		for _, c := range u.Classes {
			if c == target {
				return u.File
			}
		}
	}
	return ""
}
