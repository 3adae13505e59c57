// Package structural implements the Structural Rules family (spec §4.7):
// @interface validation, safe-class inheritance restriction, interface
// method-contract inheritance, the class-level mutable-field prohibition,
// and constructor-path-sensitive pointer-member non-null checking.
//
// Grounded on original_source/src/analysis/inheritance_safety.rs
// (interface/inheritance checks), struct_pointer_safety.rs (pointer-member
// decision tree) and mutable_checker.rs (class-level mutable check).
package structural

import (
	"fmt"
	"strings"

	"github.com/ericfisherdev/rustycheck/internal/ast"
	"github.com/ericfisherdev/rustycheck/internal/diagnostics"
)

func report(sink *diagnostics.Sink, loc ast.Location, format string, args ...interface{}) {
	sink.Report(diagnostics.KindStructural, loc, fmt.Sprintf(format, args...))
}

// CollectInterfaces builds the name -> Class map of every class annotated
// @interface, used by the inheritance and contract checks below.
func CollectInterfaces(classes []*ast.Class) map[string]*ast.Class {
	out := make(map[string]*ast.Class)
	for _, c := range classes {
		if c.IsInterface {
			out[c.Name] = c
		}
	}
	return out
}

// stripTemplateParams strips "<...>" from a base-class spelling, e.g.
// "IContainer<int>" -> "IContainer".
func stripTemplateParams(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		return name[:i]
	}
	return name
}

// ValidateInterface checks that a class declared @interface is truly a
// pure interface: no non-static data members, every method pure virtual,
// a virtual destructor if it has one at all, and no non-virtual methods.
func ValidateInterface(c *ast.Class, sink *diagnostics.Sink) {
	if !c.IsInterface {
		return
	}

	var nonStatic []string
	for _, m := range c.Members {
		if !m.IsStatic {
			nonStatic = append(nonStatic, m.Name)
		}
	}
	if len(nonStatic) > 0 {
		report(sink, c.Location, "@interface `%s` cannot have data members: %s", c.Name, strings.Join(nonStatic, ", "))
	}

	if !c.AllMethodsPureVirtual {
		report(sink, c.Location, "@interface `%s` must have all pure virtual methods (= 0)", c.Name)
	}

	if c.HasDestructor && !c.HasVirtualDestructor {
		report(sink, c.Location, "@interface `%s` must have a virtual destructor", c.Name)
	}

	if c.HasNonVirtualMethods {
		report(sink, c.Location, "@interface `%s` cannot have non-virtual methods", c.Name)
	}
}

// ValidateInterfaceInheritance checks that an @interface only ever extends
// other @interfaces, never a concrete base.
func ValidateInterfaceInheritance(c *ast.Class, interfaces map[string]*ast.Class, sink *diagnostics.Sink) {
	if !c.IsInterface {
		return
	}
	for _, base := range c.BaseClasses {
		baseName := stripTemplateParams(base)
		if _, ok := interfaces[baseName]; ok {
			continue
		}
		if _, ok := interfaces[base]; ok {
			continue
		}
		report(sink, c.Location, "@interface `%s` can only inherit from other @interface classes, not `%s`", c.Name, base)
	}
}

// CheckSafeInheritance checks that a class whose effective safety is Safe
// only inherits from @interface classes (spec §4.7: "inheritance is
// @unsafe by default, except when inheriting from @interface").
func CheckSafeInheritance(c *ast.Class, interfaces map[string]*ast.Class, classSafety ast.SafetyMode, sink *diagnostics.Sink) {
	if classSafety != ast.Safe {
		return
	}
	if len(c.BaseClasses) == 0 {
		return
	}
	for _, base := range c.BaseClasses {
		baseName := stripTemplateParams(base)
		if _, ok := interfaces[baseName]; ok {
			continue
		}
		if _, ok := interfaces[base]; ok {
			continue
		}
		report(sink, c.Location, "in @safe code, class `%s` can only inherit from @interface classes; `%s` is not an @interface — use @unsafe context for regular inheritance", c.Name, base)
	}
}

// isConstructorOrDestructor filters the interface methods the contract
// check does not apply to: constructors and destructors carry no
// overridable safety contract.
func isConstructorOrDestructor(m *ast.Function) bool {
	return m.IsConstructor || m.IsDestructor || strings.HasPrefix(unqualified(m.QualifiedName), "~")
}

func unqualified(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}

// methodEffectiveSafety resolves an interface method's own contract: its
// explicit annotation if it has one, else the enclosing interface's
// effective safety (an interface method with no explicit annotation of its
// own inherits the interface's safety the same way any other method would).
func methodEffectiveSafety(m *ast.Function, interfaceSafety ast.SafetyMode) ast.SafetyMode {
	if m.HasExplicitSafety {
		return m.Safety
	}
	return interfaceSafety
}

// CheckMethodSafetyContracts implements spec §4.7's method-contract
// inheritance in full (the original_source stubs this to a TODO): for
// every method a concrete class overrides from an @interface base, an
// explicit override annotation must match the interface method's effective
// safety; an unannotated override silently inherits it instead.
func CheckMethodSafetyContracts(c *ast.Class, interfaces map[string]*ast.Class, interfaceSafety map[string]ast.SafetyMode, sink *diagnostics.Sink) {
	for _, base := range c.BaseClasses {
		iface, ok := interfaces[stripTemplateParams(base)]
		if !ok {
			iface, ok = interfaces[base]
		}
		if !ok {
			continue
		}
		baseSafety := interfaceSafety[iface.Name]

		for _, ifaceMethod := range iface.Methods {
			if isConstructorOrDestructor(ifaceMethod) {
				continue
			}
			name := unqualified(ifaceMethod.QualifiedName)

			var impl *ast.Function
			for _, m := range c.Methods {
				if unqualified(m.QualifiedName) == name {
					impl = m
					break
				}
			}
			if impl == nil {
				continue
			}

			contract := methodEffectiveSafety(ifaceMethod, baseSafety)
			if impl.HasExplicitSafety && impl.Safety != contract {
				report(sink, impl.Location,
					"method `%s::%s` declares %s but interface `%s` requires %s for this method",
					c.Name, name, impl.Safety, iface.Name, contract)
			}
		}
	}
}

// CheckInheritanceSafety runs every inheritance-family check over the full
// translation unit's classes, mirroring check_inheritance_safety's
// five-step structure.
func CheckInheritanceSafety(classes []*ast.Class, classSafetyOf func(*ast.Class) ast.SafetyMode, sink *diagnostics.Sink) {
	interfaces := CollectInterfaces(classes)

	interfaceSafety := make(map[string]ast.SafetyMode, len(interfaces))
	for name, c := range interfaces {
		interfaceSafety[name] = classSafetyOf(c)
	}

	for _, c := range classes {
		ValidateInterface(c, sink)
	}
	for _, c := range classes {
		ValidateInterfaceInheritance(c, interfaces, sink)
	}
	for _, c := range classes {
		CheckSafeInheritance(c, interfaces, classSafetyOf(c), sink)
	}
	for _, c := range classes {
		CheckMethodSafetyContracts(c, interfaces, interfaceSafety, sink)
	}
}
