package main

import (
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"jitmanifest/internal"
	"jitmanifest/internal/manifest"
)

// bind lets a flag override the configuration key when it is set explicitly.
func bind(v *viper.Viper, flag *pflag.Flag, key string) {
	internal.PanicOnError(v.BindPFlag(key, flag))
}

// manifestFormat resolves the --format flag, falling back to the file extension. The
// configured default applies only to paths without an extension.
func (a *app) manifestFormat(flag, path string) (manifest.Format, error) {
	if flag != "" {
		return manifest.ParseFormat(flag)
	}
	if filepath.Ext(path) == "" {
		return manifest.ParseFormat(a.cfg.Manifest.Format)
	}
	return manifest.FormatOf(path)
}
