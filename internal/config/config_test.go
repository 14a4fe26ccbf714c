package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitmanifest/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jitmanifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Empty(t, cfg.ProbeDirs)
	assert.Equal(t, "System.Private.CoreLib", cfg.CoreLibrary)
	assert.Equal(t, 32, cfg.MaxTypeDepth)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, "json", cfg.Manifest.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
probe_dirs:
  - /usr/share/dotnet/shared/Microsoft.NETCore.App/8.0.0
  - /opt/extra
core_library: mscorlib
max_type_depth: 8
log:
  level: debug
  json: true
manifest:
  format: sqlite
`)

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/usr/share/dotnet/shared/Microsoft.NETCore.App/8.0.0", "/opt/extra"}, cfg.ProbeDirs)
	assert.Equal(t, "mscorlib", cfg.CoreLibrary)
	assert.Equal(t, 8, cfg.MaxTypeDepth)
	assert.Equal(t, config.Log{Level: "debug", JSON: true}, cfg.Log)
	assert.Equal(t, "sqlite", cfg.Manifest.Format)

	opts := cfg.ResolverOptions("/app")
	assert.Equal(t, "/app", opts.AppDir)
	assert.Equal(t, cfg.ProbeDirs, opts.ProbeDirs)
	assert.Equal(t, "mscorlib", opts.CoreLibrary)
}

func TestLoad_DiscoversFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jitmanifest.yaml"), []byte("max_type_depth: 4\n"), 0o644))
	t.Chdir(dir)

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxTypeDepth)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "max_type_depth: 8\nlog:\n  level: debug\n")
	t.Setenv("JITMANIFEST_MAX_TYPE_DEPTH", "12")
	t.Setenv("JITMANIFEST_LOG_LEVEL", "warn")

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxTypeDepth)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"depth", "max_type_depth: 0\n", "max_type_depth must be positive"},
		{"level", "log:\n  level: loud\n", "log.level"},
		{"format", "manifest:\n  format: xml\n", "manifest.format"},
		{"core library", "core_library: ' '\n", "core_library must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(config.New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(config.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
