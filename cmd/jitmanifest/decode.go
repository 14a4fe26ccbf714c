package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jitmanifest/internal/descriptor"
	"jitmanifest/internal/manifest"
	"jitmanifest/internal/session"
)

var errUnresolved = errors.New("some descriptors could not be resolved")

func newDecodeCmd(a *app) *cobra.Command {
	var (
		appDir string
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "decode <manifest>",
		Short: "Resolve every descriptor of a manifest against an application build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputFormat, err := a.manifestFormat(format, args[0])
			if err != nil {
				return err
			}
			nodes, err := manifest.Read(args[0], inputFormat)
			if err != nil {
				return err
			}

			s, err := session.Open(appDir, a.sessionOptions())
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			resolved := 0
			for _, node := range nodes {
				m, err := s.Resolve(node)
				switch {
				case err == nil:
					resolved++
					fmt.Fprintf(out, "%s %s\n", color.GreenString("ok"), m)
				case errors.Is(err, descriptor.ErrMalformed):
					fmt.Fprintf(out, "%s %s: %v\n", color.RedString("malformed"), node, err)
				default:
					fmt.Fprintf(out, "%s %s: %v\n", color.YellowString("missing"), node, err)
				}
			}

			fmt.Fprintf(out, "totalLoaded=%d, totalResolved=%d\n", len(nodes), resolved)
			if strict && resolved != len(nodes) {
				return fmt.Errorf("%w: %d of %d", errUnresolved, len(nodes)-resolved, len(nodes))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&appDir, "app-dir", "a", "", "directory of the application's assemblies")
	flags.StringVarP(&format, "format", "f", "", "manifest format (default from extension)")
	flags.BoolVar(&strict, "strict", false, "fail when any descriptor cannot be resolved")
	return cmd
}
