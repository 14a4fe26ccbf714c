package metadata_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitmanifest/internal/assembly"
	"jitmanifest/internal/clr"
	"jitmanifest/internal/metadata"
)

func TestSource_Identify(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.dll")
	require.NoError(t, os.WriteFile(text, []byte("not an assembly"), 0o600))

	source := metadata.NewSource()

	_, err := source.Identify(text)
	assert.ErrorIs(t, err, clr.ErrNotCodeUnit)

	_, err = source.Identify(filepath.Join(dir, "missing.dll"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, errors.Is(err, clr.ErrNotCodeUnit))

	_, err = source.Load(text, nil)
	assert.ErrorIs(t, err, clr.ErrNotCodeUnit)
}

// sharedFramework returns the newest installed Microsoft.NETCore.App directory.
func sharedFramework(t *testing.T) string {
	t.Helper()
	home, _ := os.UserHomeDir()
	roots := []string{os.Getenv("DOTNET_ROOT"), "/usr/share/dotnet", "/usr/lib/dotnet", "/usr/local/share/dotnet"}
	if home != "" {
		roots = append(roots, filepath.Join(home, ".dotnet"))
	}
	for _, root := range roots {
		if root == "" {
			continue
		}
		versions, _ := filepath.Glob(filepath.Join(root, "shared", "Microsoft.NETCore.App", "*"))
		if len(versions) == 0 {
			continue
		}
		sort.Strings(versions)
		return versions[len(versions)-1]
	}
	t.Skip("no .NET shared framework installed")
	return ""
}

func TestSource_LoadCoreLibrary(t *testing.T) {
	fx := sharedFramework(t)

	identity, err := metadata.NewSource().Identify(filepath.Join(fx, assembly.DefaultCoreLibrary+".dll"))
	require.NoError(t, err)
	assert.Equal(t, assembly.DefaultCoreLibrary, identity.Name)

	resolver := assembly.NewResolver(metadata.NewSource(), assembly.Options{ProbeDirs: []string{fx}}, nil, nil)
	defer resolver.Close()

	core, err := resolver.LoadByName(assembly.DefaultCoreLibrary)
	require.NoError(t, err)
	assert.Equal(t, assembly.DefaultCoreLibrary, core.Name())

	list, found := core.TypeByName("System.Collections.Generic.List`1")
	require.True(t, found)
	assert.Equal(t, 1, list.Arity())

	dictionary, found := core.TypeByName("System.Collections.Generic.Dictionary`2")
	require.True(t, found)
	var tryGetValue *clr.Method
	for _, m := range dictionary.Type().Methods() {
		if m.Name() == "TryGetValue" {
			tryGetValue = m
			break
		}
	}
	require.NotNil(t, tryGetValue)
	params, err := tryGetValue.Parameters()
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, clr.KindTypeVar, params[0].Kind())
	assert.Equal(t, clr.KindByRef, params[1].Kind())

	ret, err := tryGetValue.ReturnType()
	require.NoError(t, err)
	assert.Equal(t, "System.Boolean", ret.FullName())

	// System.Runtime is a facade forwarding into the core library.
	runtime, err := resolver.LoadByName("System.Runtime")
	require.NoError(t, err)
	int32, err := clr.FindType(resolver, runtime, "System.Int32")
	require.NoError(t, err)
	assert.Same(t, core, int32.Unit())

	types := metadata.Describe(runtime)
	assert.NotEmpty(t, types)
}
