package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jitmanifest/internal/diag"
	"jitmanifest/internal/jitlog"
	"jitmanifest/internal/manifest"
	"jitmanifest/internal/session"
)

const (
	jitLogName      = "jit.json"
	modulesLogName  = "modules.json"
	metadataLogName = "enter3.json"
	manifestName    = "jitManifest.json"
)

func newParseCmd(a *app) *cobra.Command {
	var (
		logDir string
		logs   jitlog.LogSet
		appDir string
		output string
		format string
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Reconstruct the compiled methods of a profiling run into a manifest",
		Long: `Reads jit.json, modules.json and enter3.json from the log directory (each can be
overridden), resolves every compiled method against the assemblies of the
application directory and the probe directories, and writes the manifest.
Per-method failures are reported and do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if logs.JIT == "" {
				logs.JIT = filepath.Join(logDir, jitLogName)
			}
			if logs.Modules == "" {
				logs.Modules = filepath.Join(logDir, modulesLogName)
			}
			if logs.Metadata == "" {
				logs.Metadata = filepath.Join(logDir, metadataLogName)
			}
			if output == "" {
				output = filepath.Join(logDir, manifestName)
			}
			outputFormat, err := a.manifestFormat(format, output)
			if err != nil {
				return err
			}

			result, err := session.Parse(logs, appDir, a.sessionOptions())
			if err != nil {
				return err
			}
			if err := manifest.Write(output, outputFormat, result.RunID, result.Nodes); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if list {
				for _, m := range result.Methods {
					fmt.Fprintln(out, m)
				}
			}
			printDiagnostics(out, result.Diagnostics)
			fmt.Fprintf(out, "%s %d methods written to %s (%d diagnostics)\n",
				color.GreenString("done:"), len(result.Nodes), output, result.Diagnostics.Len())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&logDir, "logs", "l", ".", "directory holding the profiler logs")
	flags.StringVar(&logs.JIT, "jit", "", "compiled-method log (default <logs>/jit.json)")
	flags.StringVar(&logs.Modules, "modules", "", "module log (default <logs>/modules.json)")
	flags.StringVar(&logs.Metadata, "metadata", "", "method metadata log (default <logs>/enter3.json)")
	flags.StringVarP(&appDir, "app-dir", "a", "", "directory of the profiled application's assemblies")
	flags.StringVarP(&output, "output", "o", "", "manifest to write (default <logs>/jitManifest.json)")
	flags.StringVarP(&format, "format", "f", "", "manifest format: json, yaml, msgpack or sqlite (default from extension)")
	flags.BoolVar(&list, "list", false, "print the signature of every resolved method")
	return cmd
}

var kindColors = map[diag.Kind]*color.Color{
	diag.KindInput:       color.New(color.FgRed),
	diag.KindCorrelation: color.New(color.FgYellow),
	diag.KindResolution:  color.New(color.FgMagenta),
}

func printDiagnostics(w io.Writer, bag *diag.Bag) {
	for _, d := range bag.Items() {
		c, found := kindColors[d.Kind]
		if !found {
			c = color.New(color.Reset)
		}
		fmt.Fprintf(w, "%s %s\n", c.Sprintf("[%s]", d.Kind), d.Message)
	}
}
