// Command jitmanifest turns JIT profiler logs into a manifest of method descriptors
// and resolves such manifests against another build of the application.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jitmanifest/internal/config"
	"jitmanifest/internal/logging"
	"jitmanifest/internal/session"
)

// app carries the state shared by every command once the root has run its
// persistent pre-run.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
	cfgFile string
	verbose bool
	noColor bool
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "jitmanifest",
		Short:         "Record and replay the methods a .NET program JIT-compiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `jitmanifest reads the logs of a JIT profiling run, reconstructs every compiled
method (closed generic instantiations included) from assembly metadata, and writes
them as version-independent descriptors. The descriptors can be resolved again
against a later build to pre-compile the same methods.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor {
				color.NoColor = true
			}

			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logger, err := logging.New(cfg.Log, a.verbose)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "configuration file (default: ./jitmanifest.yaml or ~/.config/jitmanifest/jitmanifest.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	flags.StringSlice("probe-dir", nil, "framework directory searched for assemblies by name (repeatable)")
	flags.String("core-library", "", "name of the assembly defining the primitive types")
	flags.Int("max-type-depth", 0, "maximum nesting of recorded generic arguments")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "log as JSON")
	bind(a.v, flags.Lookup("probe-dir"), config.KeyProbeDirs)
	bind(a.v, flags.Lookup("core-library"), config.KeyCoreLibrary)
	bind(a.v, flags.Lookup("max-type-depth"), config.KeyMaxTypeDepth)
	bind(a.v, flags.Lookup("log-level"), config.KeyLogLevel)
	bind(a.v, flags.Lookup("log-json"), config.KeyLogJSON)

	root.AddCommand(
		newParseCmd(a),
		newDecodeCmd(a),
		newConvertCmd(a),
		newGenCmd(a),
		newInspectCmd(a),
		newFetchCmd(a),
	)
	return root
}

// sessionOptions maps the loaded configuration onto a resolution session.
func (a *app) sessionOptions() session.Options {
	return session.Options{
		Resolver:     a.cfg.ResolverOptions(""),
		MaxTypeDepth: a.cfg.MaxTypeDepth,
		Logger:       a.logger,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
