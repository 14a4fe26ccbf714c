// Package generation exports a descriptor manifest as Go source, so a program can
// carry its warm-up list without reading a manifest file at run time.
package generation

import (
	"errors"
	"fmt"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/dave/jennifer/jen"

	"jitmanifest/internal/descriptor"
)

const (
	generatedHeader = "Code generated by jitmanifest; DO NOT EDIT."
	typesFileName   = "descriptors.go"
)

var ErrInvalidPackage = errors.New("invalid package name")

type Generator struct {
	Methods     []descriptor.MethodNode
	Assemblies  map[string]struct{}
	PackageName string
	OutputPath  string
}

func NewGenerator(packageName string, outputPath string) (*Generator, error) {
	if !token.IsIdentifier(packageName) || token.IsKeyword(packageName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPackage, packageName)
	}
	return &Generator{
		make([]descriptor.MethodNode, 0),
		make(map[string]struct{}),
		packageName,
		outputPath,
	}, nil
}

func (generator *Generator) RegisterMethod(element descriptor.MethodNode) {
	generator.Methods = append(generator.Methods, element)
	if element.DeclaringType != nil {
		generator.RegisterType(*element.DeclaringType)
	}
	for _, arg := range element.GenericArguments {
		generator.RegisterType(arg)
	}
	for _, param := range element.ParameterTypes {
		generator.RegisterType(param)
	}
}

// RegisterType records the assemblies a type node refers to, including those of its
// generic arguments.
func (generator *Generator) RegisterType(element descriptor.TypeNode) {
	if element.Assembly != "" {
		generator.Assemblies[element.Assembly] = struct{}{}
	}
	for _, arg := range element.GenericArguments {
		generator.RegisterType(arg)
	}
}

// Generate writes the descriptor types and the method list into OutputPath.
func (generator *Generator) Generate() error {
	err := os.MkdirAll(generator.OutputPath, os.ModePerm)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}

	if err := generator.typesFile().Save(filepath.Join(generator.OutputPath, typesFileName)); err != nil {
		return fmt.Errorf("failed to write descriptor types: %w", err)
	}
	if err := generator.methodsFile().Save(filepath.Join(generator.OutputPath, generator.PackageName+".go")); err != nil {
		return fmt.Errorf("failed to write method list: %w", err)
	}
	return nil
}

// Render writes both files into w, types first, as one compilable source file.
func (generator *Generator) Render(w io.Writer) error {
	file := generator.newFile()
	generator.generateTypes(file)
	generator.generateMethods(file)
	return file.Render(w)
}

func (generator *Generator) newFile() *jen.File {
	file := jen.NewFile(generator.PackageName)
	file.HeaderComment(generatedHeader)
	return file
}

func (generator *Generator) typesFile() *jen.File {
	file := generator.newFile()
	generator.generateTypes(file)
	return file
}

func (generator *Generator) methodsFile() *jen.File {
	file := generator.newFile()
	generator.generateMethods(file)
	return file
}

func field(name string, statement *jen.Statement, omitEmpty bool) *jen.Statement {
	tag := name
	if omitEmpty {
		tag += ",omitempty"
	}
	return jen.Id(name).Add(statement).Tag(map[string]string{"json": tag, "yaml": tag})
}

func (generator *Generator) generateTypes(file *jen.File) {
	file.Comment("TypeNode names a type by its reflection full name and the assembly defining it.")
	file.Type().Id("TypeNode").Struct(
		field("Name", jen.String(), false),
		field("Assembly", jen.String(), false),
		field("GenericArguments", jen.Index().Id("TypeNode"), true),
	).Line()

	file.Comment("MethodNode names a method by its declaring type, name and parameter types.")
	file.Type().Id("MethodNode").Struct(
		field("DeclaringType", jen.Op("*").Id("TypeNode"), false),
		field("Name", jen.String(), false),
		field("GenericArguments", jen.Index().Id("TypeNode"), false),
		field("ParameterTypes", jen.Index().Id("TypeNode"), false),
		field("IsConstructor", jen.Bool(), false),
		field("IsStatic", jen.Bool(), false),
	)
}

func (generator *Generator) generateMethods(file *jen.File) {
	assemblies := make([]string, 0, len(generator.Assemblies))
	for name := range generator.Assemblies {
		assemblies = append(assemblies, name)
	}
	slices.Sort(assemblies)

	file.Comment("Assemblies lists every assembly referenced by Methods.")
	file.Var().Id("Assemblies").Op("=").Index().String().ValuesFunc(func(g *jen.Group) {
		for _, name := range assemblies {
			g.Line().Lit(name)
		}
		if len(assemblies) > 0 {
			g.Line()
		}
	}).Line()

	file.Comment("Methods holds the manifest in the order it was recorded.")
	file.Var().Id("Methods").Op("=").Index().Id("MethodNode").ValuesFunc(func(g *jen.Group) {
		for _, method := range generator.Methods {
			g.Line().Add(methodLiteral(method))
		}
		if len(generator.Methods) > 0 {
			g.Line()
		}
	})
}

func methodLiteral(method descriptor.MethodNode) *jen.Statement {
	values := jen.Dict{
		jen.Id("Name"):             jen.Lit(method.Name),
		jen.Id("GenericArguments"): typeList(method.GenericArguments),
		jen.Id("ParameterTypes"):   typeList(method.ParameterTypes),
	}
	if method.DeclaringType != nil {
		values[jen.Id("DeclaringType")] = jen.Op("&").Id("TypeNode").Values(typeValues(*method.DeclaringType))
	}
	if method.IsConstructor {
		values[jen.Id("IsConstructor")] = jen.True()
	}
	if method.IsStatic {
		values[jen.Id("IsStatic")] = jen.True()
	}
	return jen.Values(values)
}

func typeLiteral(element descriptor.TypeNode) *jen.Statement {
	return jen.Values(typeValues(element))
}

func typeValues(element descriptor.TypeNode) jen.Dict {
	values := jen.Dict{
		jen.Id("Name"):     jen.Lit(element.Name),
		jen.Id("Assembly"): jen.Lit(element.Assembly),
	}
	if len(element.GenericArguments) > 0 {
		values[jen.Id("GenericArguments")] = typeList(element.GenericArguments)
	}
	return values
}

func typeList(elements []descriptor.TypeNode) *jen.Statement {
	return jen.Index().Id("TypeNode").ValuesFunc(func(g *jen.Group) {
		for _, element := range elements {
			g.Add(typeLiteral(element))
		}
	})
}
