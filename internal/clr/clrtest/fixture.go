// Package clrtest builds in-memory code units for tests: a small core library,
// a System.Runtime facade that forwards into it, and a Samples assembly with the
// generic shapes the profiler produces.
package clrtest

import (
	"fmt"

	"jitmanifest/internal"
	"jitmanifest/internal/clr"
)

const (
	CoreLibName = "System.Private.CoreLib"
	RuntimeName = "System.Runtime"
	SamplesName = "Samples"

	CoreLibPath = "/fx/System.Private.CoreLib.dll"
	RuntimePath = "/fx/System.Runtime.dll"
	SamplesPath = "/app/Samples.dll"
)

// Fixture holds the three units. It also serves as a clr.Binder over them.
type Fixture struct {
	CoreLib *clr.CodeUnit
	Runtime *clr.CodeUnit
	Samples *clr.CodeUnit
}

func New() *Fixture {
	core := buildCoreLib()
	return &Fixture{
		CoreLib: core,
		Runtime: buildRuntime(),
		Samples: buildSamples(core),
	}
}

func (f *Fixture) Units() []*clr.CodeUnit {
	return []*clr.CodeUnit{f.CoreLib, f.Runtime, f.Samples}
}

func (f *Fixture) LoadByName(name string) (*clr.CodeUnit, error) {
	for _, unit := range f.Units() {
		if unit.Name() == name {
			return unit, nil
		}
	}
	return nil, fmt.Errorf("assembly %s is not part of the fixture", name)
}

func (f *Fixture) CoreLibrary() string {
	return CoreLibName
}

// Type returns the named type from the unit, panicking when it does not exist.
func (f *Fixture) Type(unit *clr.CodeUnit, fullName string) *clr.Type {
	def, found := unit.TypeByName(fullName)
	if !found {
		panic(fmt.Sprintf("fixture type %s missing from %s", fullName, unit.Name()))
	}
	return def.Type()
}

func (f *Fixture) Core(fullName string) *clr.Type {
	return f.Type(f.CoreLib, fullName)
}

func (f *Fixture) Sample(fullName string) *clr.Type {
	return f.Type(f.Samples, fullName)
}

// Generic closes definition over args, panicking on arity errors.
func Generic(definition *clr.Type, args ...*clr.Type) *clr.Type {
	return internal.Must(definition.MakeGeneric(args...))
}

// Method finds the method or constructor on t with the given name and parameter types.
func Method(t *clr.Type, name string, params ...*clr.Type) *clr.Method {
	members := t.Methods()
	if name == clr.InstanceConstructorName || name == clr.TypeConstructorName {
		members = t.Constructors()
	}
	for _, m := range members {
		if m.Name() != name {
			continue
		}
		got := internal.Must(m.Parameters())
		if clr.IdenticalAll(got, params) {
			return m
		}
	}
	panic(fmt.Sprintf("fixture method %s::%s with %d parameters not found", t, name, len(params)))
}

func buildCoreLib() *clr.CodeUnit {
	b := clr.NewBuilder(clr.Identity{Name: CoreLibName, Version: "8.0.0.0"}, CoreLibPath)

	object := b.DefineType("System", "Object")
	b.DefineType("System", "ValueType")
	void := b.DefineType("System", "Void")
	boolean := b.DefineType("System", "Boolean")
	b.DefineType("System", "Char")
	int32 := b.DefineType("System", "Int32")
	b.DefineType("System", "Int64")
	b.DefineType("System", "Double")
	str := b.DefineType("System", "String")
	b.DefineType("System", "IntPtr")
	b.DefineType("System", "UIntPtr")
	b.DefineType("System", "TypedReference")
	b.DefineType("System", "DateTime")

	b.DefineMethod(object, clr.InstanceConstructorName, 0, 0, clr.Signature{Return: void.Type()})
	b.DefineMethod(object, "ToString", clr.MethodVirtual, 0, clr.Signature{Return: str.Type()})

	nullable := b.DefineType("System", "Nullable`1")
	b.DefineMethod(nullable, clr.InstanceConstructorName, 0, 0, clr.Signature{Return: void.Type(), Params: []*clr.Type{clr.TypeVar(0)}})
	b.DefineMethod(nullable, "GetValueOrDefault", 0, 0, clr.Signature{Return: clr.TypeVar(0)})

	list := b.DefineType("System.Collections.Generic", "List`1")
	b.DefineMethod(list, clr.InstanceConstructorName, 0, 0, clr.Signature{Return: void.Type()})
	b.DefineMethod(list, clr.InstanceConstructorName, 0, 0, clr.Signature{Return: void.Type(), Params: []*clr.Type{int32.Type()}})
	b.DefineMethod(list, "Add", 0, 0, clr.Signature{Return: void.Type(), Params: []*clr.Type{clr.TypeVar(0)}})
	b.DefineMethod(list, "get_Item", clr.MethodSpecialName, 0, clr.Signature{Return: clr.TypeVar(0), Params: []*clr.Type{int32.Type()}})
	b.DefineMethod(list, "ConvertAll", 0, 1, clr.Signature{
		Return: internal.Must(list.Type().MakeGeneric(clr.MethodVar(0))),
		Params: []*clr.Type{clr.MethodVar(0)},
	})

	dictionary := b.DefineType("System.Collections.Generic", "Dictionary`2")
	b.DefineMethod(dictionary, clr.InstanceConstructorName, 0, 0, clr.Signature{Return: void.Type()})
	b.DefineMethod(dictionary, "Add", 0, 0, clr.Signature{Return: void.Type(), Params: []*clr.Type{clr.TypeVar(0), clr.TypeVar(1)}})
	b.DefineMethod(dictionary, "TryGetValue", 0, 0, clr.Signature{Return: boolean.Type(), Params: []*clr.Type{clr.TypeVar(0), clr.ByRef(clr.TypeVar(1))}})

	return b.Unit()
}

func buildRuntime() *clr.CodeUnit {
	b := clr.NewBuilder(clr.Identity{Name: RuntimeName, Version: "8.0.0.0"}, RuntimePath)
	for _, name := range []string{
		"System.Object",
		"System.Void",
		"System.Boolean",
		"System.Int32",
		"System.Int64",
		"System.String",
		"System.DateTime",
		"System.Collections.Generic.List`1",
		"System.Collections.Generic.Dictionary`2",
	} {
		b.Forward(name, CoreLibName)
	}
	return b.Unit()
}

// Samples mirrors the shapes exercised by the profiler's test application: generic
// classes, nested generics, generic methods, constructors and overloads.
func buildSamples(core *clr.CodeUnit) *clr.CodeUnit {
	coreType := func(name string) *clr.Type {
		def, found := core.TypeByName(name)
		if !found {
			panic("core type " + name + " missing")
		}
		return def.Type()
	}
	void := coreType("System.Void")
	int32 := coreType("System.Int32")
	str := coreType("System.String")
	list := coreType("System.Collections.Generic.List`1")
	dictionary := coreType("System.Collections.Generic.Dictionary`2")

	b := clr.NewBuilder(clr.Identity{Name: SamplesName, Version: "1.0.0.0"}, SamplesPath)

	sample := b.DefineType("Samples", "MethodSample")
	b.DefineMethod(sample, clr.InstanceConstructorName, clr.MethodSpecialName, 0, clr.Signature{Return: void})
	b.DefineMethod(sample, clr.InstanceConstructorName, clr.MethodSpecialName, 0, clr.Signature{Return: void, Params: []*clr.Type{int32}})
	b.DefineMethod(sample, "InstanceNoArgs", 0, 0, clr.Signature{Return: void})
	b.DefineMethod(sample, "InstanceWithArgs", 0, 0, clr.Signature{Return: int32, Params: []*clr.Type{str, int32}})
	b.DefineMethod(sample, "StaticNoArgs", clr.MethodStatic, 0, clr.Signature{Return: void})
	b.DefineMethod(sample, "MethodWithNestedGeneric", 0, 0, clr.Signature{
		Return: void,
		Params: []*clr.Type{Generic(dictionary, str, Generic(list, int32))},
	})
	b.DefineMethod(sample, "GenericMethod", 0, 1, clr.Signature{Return: clr.MethodVar(0), Params: []*clr.Type{clr.MethodVar(0)}})
	b.DefineMethod(sample, "GenericWithTypeParam", 0, 1, clr.Signature{Return: void, Params: []*clr.Type{clr.MethodVar(0)}})
	b.DefineMethod(sample, "Compute", clr.MethodStatic, 0, clr.Signature{Return: int32, Params: []*clr.Type{int32}})
	b.DefineMethod(sample, "Fill", 0, 0, clr.Signature{Return: void, Params: []*clr.Type{clr.ByRef(int32), clr.SZArray(str)}})
	b.DefineMethod(sample, clr.TypeConstructorName, clr.MethodStatic|clr.MethodSpecialName, 0, clr.Signature{Return: void})

	generic := b.DefineType("Samples", "SampleGeneric`1")
	b.DefineMethod(generic, clr.InstanceConstructorName, clr.MethodSpecialName, 0, clr.Signature{Return: void})
	b.DefineMethod(generic, "Get", 0, 0, clr.Signature{Return: clr.TypeVar(0)})
	b.DefineMethod(generic, "Convert", 0, 1, clr.Signature{Return: clr.MethodVar(0), Params: []*clr.Type{clr.TypeVar(0), clr.MethodVar(0)}})

	pair := b.DefineType("Samples", "Pair`2")
	b.DefineMethod(pair, clr.InstanceConstructorName, clr.MethodSpecialName, 0, clr.Signature{Return: void, Params: []*clr.Type{clr.TypeVar(0), clr.TypeVar(1)}})
	b.DefineMethod(pair, "Swap", 0, 0, clr.Signature{Return: Generic(pair.Type(), clr.TypeVar(1), clr.TypeVar(0))})

	outer := b.DefineType("Samples", "Outer`1")
	b.DefineMethod(outer, clr.InstanceConstructorName, clr.MethodSpecialName, 0, clr.Signature{Return: void})
	inner := b.DefineNestedType(outer, "Inner`1")
	b.DefineMethod(inner, clr.InstanceConstructorName, clr.MethodSpecialName, 0, clr.Signature{Return: void})
	b.DefineMethod(inner, "DoWork", 0, 1, clr.Signature{
		Return: clr.SZArray(str),
		Params: []*clr.Type{clr.SZArray(int32), clr.TypeVar(1), clr.MethodVar(0)},
	})

	overloads := b.DefineType("Samples", "Overloads")
	b.DefineMethod(overloads, "Pick", clr.MethodStatic, 0, clr.Signature{Return: void, Params: []*clr.Type{int32}})
	b.DefineMethod(overloads, "Pick", clr.MethodStatic, 0, clr.Signature{Return: void, Params: []*clr.Type{str}})
	b.DefineMethod(overloads, "Pick", clr.MethodStatic, 1, clr.Signature{Return: void, Params: []*clr.Type{clr.MethodVar(0)}})
	b.DefineMethod(overloads, "Pick", clr.MethodStatic, 1, clr.Signature{Return: void, Params: []*clr.Type{clr.SZArray(clr.MethodVar(0))}})

	return b.Unit()
}
