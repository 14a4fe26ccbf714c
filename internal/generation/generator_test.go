package generation_test

import (
	"bytes"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitmanifest/internal/descriptor"
	"jitmanifest/internal/generation"
)

func manifest() []descriptor.MethodNode {
	return []descriptor.MethodNode{
		{
			DeclaringType: &descriptor.TypeNode{
				Name:             "Samples.SampleGeneric`1",
				Assembly:         "Samples",
				GenericArguments: []descriptor.TypeNode{{Name: "System.Int32", Assembly: "System.Private.CoreLib"}},
			},
			Name:             "Convert",
			GenericArguments: []descriptor.TypeNode{{Name: "Other.Thing", Assembly: "Other"}},
			ParameterTypes: []descriptor.TypeNode{
				{Name: "System.Int32", Assembly: "System.Private.CoreLib"},
				{Name: "Other.Thing", Assembly: "Other"},
			},
		},
		{
			DeclaringType:    &descriptor.TypeNode{Name: "Samples.MethodSample", Assembly: "Samples"},
			Name:             ".cctor",
			GenericArguments: []descriptor.TypeNode{},
			ParameterTypes:   []descriptor.TypeNode{},
			IsConstructor:    true,
			IsStatic:         true,
		},
	}
}

func TestRegisterMethod_CollectsAssemblies(t *testing.T) {
	generator, err := generation.NewGenerator("warmup", t.TempDir())
	require.NoError(t, err)

	for _, m := range manifest() {
		generator.RegisterMethod(m)
	}

	assert.Len(t, generator.Methods, 2)
	assert.Equal(t, map[string]struct{}{"Samples": {}, "System.Private.CoreLib": {}, "Other": {}}, generator.Assemblies)
}

func TestRender(t *testing.T) {
	generator, err := generation.NewGenerator("warmup", "")
	require.NoError(t, err)
	for _, m := range manifest() {
		generator.RegisterMethod(m)
	}

	var buf bytes.Buffer
	require.NoError(t, generator.Render(&buf))
	source := buf.String()

	file, err := parser.ParseFile(token.NewFileSet(), "warmup.go", source, parser.ParseComments)
	require.NoError(t, err, source)
	assert.Equal(t, "warmup", file.Name.Name)

	compact := strings.Join(strings.Fields(source), " ")
	for _, want := range []string{
		"// Code generated by jitmanifest; DO NOT EDIT.",
		"type TypeNode struct",
		"type MethodNode struct",
		"GenericArguments []TypeNode `json:\"GenericArguments,omitempty\" yaml:\"GenericArguments,omitempty\"`",
		"DeclaringType: &TypeNode{",
		`Name: "Samples.SampleGeneric` + "`" + `1"`,
		`Name: ".cctor"`,
		"IsConstructor: true",
		"IsStatic: true",
		`"Other",`,
		`"System.Private.CoreLib",`,
	} {
		assert.Contains(t, compact, want)
	}
	assert.Equal(t, 1, strings.Count(compact, "IsStatic: true"))
}

func TestGenerate_WritesFiles(t *testing.T) {
	out := filepath.Join(t.TempDir(), "warmup")
	generator, err := generation.NewGenerator("warmup", out)
	require.NoError(t, err)
	for _, m := range manifest() {
		generator.RegisterMethod(m)
	}

	require.NoError(t, generator.Generate())

	fset := token.NewFileSet()
	for _, name := range []string{"descriptors.go", "warmup.go"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err, name)
		_, err = parser.ParseFile(fset, name, data, 0)
		assert.NoError(t, err, name)
	}
}

func TestGenerate_EmptyManifest(t *testing.T) {
	generator, err := generation.NewGenerator("warmup", t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, generator.Render(&buf))
	compact := strings.Join(strings.Fields(buf.String()), " ")
	assert.Contains(t, compact, "var Methods = []MethodNode{}")
	assert.Contains(t, compact, "var Assemblies = []string{}")
}

func TestNewGenerator_InvalidPackage(t *testing.T) {
	for _, name := range []string{"", "func", "warm-up", "1st"} {
		_, err := generation.NewGenerator(name, "")
		assert.ErrorIs(t, err, generation.ErrInvalidPackage, name)
	}
}
