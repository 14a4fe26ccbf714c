package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitmanifest/internal/descriptor"
	"jitmanifest/internal/manifest"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func sampleManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "jitManifest.json")
	nodes := []descriptor.MethodNode{
		{
			DeclaringType:    &descriptor.TypeNode{Name: "Samples.MethodSample", Assembly: "Samples"},
			Name:             "Compute",
			GenericArguments: []descriptor.TypeNode{},
			ParameterTypes:   []descriptor.TypeNode{{Name: "System.Int32", Assembly: "System.Private.CoreLib"}},
			IsStatic:         true,
		},
		{
			Name:             "Orphan",
			GenericArguments: []descriptor.TypeNode{},
			ParameterTypes:   []descriptor.TypeNode{},
		},
	}
	require.NoError(t, manifest.Write(path, "", "", nodes))
	return path
}

func TestParse_MissingLogsStillWritesManifest(t *testing.T) {
	logDir := t.TempDir()
	appDir := t.TempDir()

	out, err := run(t, "", "parse", "--logs", logDir, "--app-dir", appDir)
	require.NoError(t, err)

	assert.Contains(t, out, "[input] JIT file not found")
	assert.Contains(t, out, "[input] Modules file not found")
	assert.Contains(t, out, "[input] Enter3 file not found")
	assert.Contains(t, out, "done: 0 methods written")

	data, err := os.ReadFile(filepath.Join(logDir, "jitManifest.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestParse_InvalidAppDir(t *testing.T) {
	_, err := run(t, "", "parse", "--logs", t.TempDir(), "--app-dir", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "invalid search directory")
}

func TestConvert_ChainPreservesManifest(t *testing.T) {
	dir := t.TempDir()
	source := sampleManifest(t, dir)
	want, err := os.ReadFile(source)
	require.NoError(t, err)

	steps := [][2]string{
		{source, filepath.Join(dir, "manifest.yaml")},
		{filepath.Join(dir, "manifest.yaml"), filepath.Join(dir, "manifest.msgpack")},
		{filepath.Join(dir, "manifest.msgpack"), filepath.Join(dir, "manifest.db")},
		{filepath.Join(dir, "manifest.db"), filepath.Join(dir, "final.json")},
	}
	for _, step := range steps {
		out, err := run(t, "", "convert", step[0], step[1])
		require.NoError(t, err, out)
		assert.Contains(t, out, "converted 2 methods")
	}

	got, err := os.ReadFile(filepath.Join(dir, "final.json"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestConvert_ExplicitFormats(t *testing.T) {
	dir := t.TempDir()
	source := sampleManifest(t, dir)

	_, err := run(t, "", "convert", source, filepath.Join(dir, "out.bin"), "--to", "msgpack", "--run", "fixed")
	require.NoError(t, err)
	nodes, err := manifest.Read(filepath.Join(dir, "out.bin"), manifest.MessagePack)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	_, err = run(t, "", "convert", source, filepath.Join(dir, "out.txt"))
	assert.ErrorIs(t, err, manifest.ErrUnknownFormat)

	_, err = run(t, "", "convert", source, filepath.Join(dir, "out.json"), "--to", "xml")
	assert.ErrorIs(t, err, manifest.ErrUnknownFormat)
}

func TestConvert_ConfiguredFormatOnlyWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	source := sampleManifest(t, dir)
	t.Setenv("JITMANIFEST_MANIFEST_FORMAT", "yaml")

	_, err := run(t, "", "convert", source, filepath.Join(dir, "warmup"))
	require.NoError(t, err)
	nodes, err := manifest.Read(filepath.Join(dir, "warmup"), manifest.YAML)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	_, err = run(t, "", "convert", source, filepath.Join(dir, "warmup.txt"))
	assert.ErrorIs(t, err, manifest.ErrUnknownFormat)
	assert.NoFileExists(t, filepath.Join(dir, "warmup.txt"))
}

func TestDecode_ReportsEveryDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := sampleManifest(t, dir)

	out, err := run(t, "", "decode", path, "--app-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "missing Samples.MethodSample::Compute")
	assert.Contains(t, out, "malformed <nil>::Orphan")
	assert.Contains(t, out, "totalLoaded=2, totalResolved=0")

	_, err = run(t, "", "decode", path, "--app-dir", dir, "--strict")
	assert.ErrorIs(t, err, errUnresolved)
}

func TestGen(t *testing.T) {
	dir := t.TempDir()
	path := sampleManifest(t, dir)
	outDir := filepath.Join(dir, "warmup")

	out, err := run(t, "", "gen", path, "--out", outDir)
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(outDir, "warmup.go"))
	assert.FileExists(t, filepath.Join(outDir, "descriptors.go"))

	_, err = run(t, "n\n", "gen", path, "--out", outDir)
	assert.ErrorIs(t, err, errNotConfirmed)

	require.NoError(t, os.WriteFile(filepath.Join(outDir, "stale.go"), []byte("package warmup\n"), 0o644))
	out, err = run(t, "Y\n", "gen", path, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleaning output directory.")
	assert.NoFileExists(t, filepath.Join(outDir, "stale.go"))

	_, err = run(t, "", "gen", path, "--out", outDir, "--package", "bad-name")
	assert.ErrorContains(t, err, "invalid package name")
}

func TestInspect_NotAnAssembly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.dll")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := run(t, "", "inspect", path)
	assert.Error(t, err)
}

func TestRoot_InvalidConfiguration(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "jitmanifest.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("max_type_depth: -1\n"), 0o644))

	_, err := run(t, "", "--config", cfg, "convert", "a.json", "b.json")
	assert.ErrorContains(t, err, "max_type_depth must be positive")

	_, err = run(t, "", "convert", "a.json", "b.json", "--max-type-depth", "-3")
	assert.ErrorContains(t, err, "max_type_depth must be positive")
}
