// Package config loads jitmanifest settings from jitmanifest.yaml, JITMANIFEST_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"jitmanifest/internal/assembly"
	"jitmanifest/internal/manifest"
	"jitmanifest/internal/reconstruct"
)

const (
	EnvPrefix = "JITMANIFEST"
	FileName  = "jitmanifest"
)

// Keys shared with flag bindings.
const (
	KeyProbeDirs      = "probe_dirs"
	KeyCoreLibrary    = "core_library"
	KeyMaxTypeDepth   = "max_type_depth"
	KeyLogLevel       = "log.level"
	KeyLogJSON        = "log.json"
	KeyManifestFormat = "manifest.format"
)

type Config struct {
	ProbeDirs    []string `mapstructure:"probe_dirs"`
	CoreLibrary  string   `mapstructure:"core_library"`
	MaxTypeDepth int      `mapstructure:"max_type_depth"`
	Log          Log      `mapstructure:"log"`
	Manifest     Manifest `mapstructure:"manifest"`
}

type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type Manifest struct {
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults and environment binding in place.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyProbeDirs, []string{})
	v.SetDefault(KeyCoreLibrary, assembly.DefaultCoreLibrary)
	v.SetDefault(KeyMaxTypeDepth, reconstruct.DefaultMaxDepth)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogJSON, false)
	v.SetDefault(KeyManifestFormat, string(manifest.JSON))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file, if any, and decodes the merged settings. An
// explicit file must exist; the default search locations are optional.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MaxTypeDepth <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyMaxTypeDepth, c.MaxTypeDepth))
	}
	if strings.TrimSpace(c.CoreLibrary) == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyCoreLibrary))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyLogLevel, err))
	}
	if _, err := manifest.ParseFormat(c.Manifest.Format); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyManifestFormat, err))
	}
	return errors.Join(errs...)
}

// ResolverOptions maps the settings onto an assembly resolver for appDir.
func (c *Config) ResolverOptions(appDir string) assembly.Options {
	return assembly.Options{
		AppDir:      appDir,
		ProbeDirs:   append([]string(nil), c.ProbeDirs...),
		CoreLibrary: c.CoreLibrary,
	}
}
