package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"jitmanifest/internal/descriptor"
	"jitmanifest/internal/manifest"
)

func newConvertCmd(a *app) *cobra.Command {
	var from, to, runID string

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a manifest between json, yaml, msgpack and sqlite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputFormat, err := a.manifestFormat(from, args[0])
			if err != nil {
				return err
			}
			outputFormat, err := a.manifestFormat(to, args[1])
			if err != nil {
				return err
			}

			var nodes []descriptor.MethodNode
			if runID != "" && inputFormat == manifest.SQLite {
				nodes, err = manifest.ReadRun(args[0], runID)
			} else {
				nodes, err = manifest.Read(args[0], inputFormat)
			}
			if err != nil {
				return err
			}

			if runID == "" {
				runID = uuid.NewString()
			}
			if err := manifest.Write(args[1], outputFormat, runID, nodes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "converted %d methods from %s (%s) to %s (%s)\n", len(nodes), args[0], inputFormat, args[1], outputFormat)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&from, "from", "", "input format (default from extension)")
	flags.StringVar(&to, "to", "", "output format (default from extension)")
	flags.StringVar(&runID, "run", "", "run to read from a sqlite input, and the run ID of a sqlite output")
	return cmd
}
