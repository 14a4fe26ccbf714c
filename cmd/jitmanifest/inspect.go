package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"jitmanifest/internal/metadata"
	"jitmanifest/internal/session"
)

func newInspectCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect <assembly>",
		Short: "List the TypeDef and MethodDef rows of an assembly with their tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			s, err := session.Open(filepath.Dir(path), a.sessionOptions())
			if err != nil {
				return err
			}
			defer s.Close()

			unit, err := s.Load(path)
			if err != nil {
				return err
			}
			types := metadata.Describe(unit)

			out := cmd.OutOrStdout()
			switch output {
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(types)
			case "yaml":
				encoder := yaml.NewEncoder(out)
				encoder.SetIndent(2)
				if err := encoder.Encode(types); err != nil {
					return err
				}
				return encoder.Close()
			case "text":
				fmt.Fprintf(out, "%s\n", unit)
				for _, t := range types {
					fmt.Fprintf(out, "%s %s\n", t.Token, t.Name)
					for _, m := range t.Methods {
						if m.Error != "" {
							fmt.Fprintf(out, "  %s %s: %s\n", m.Token, m.Name, m.Error)
							continue
						}
						fmt.Fprintf(out, "  %s %s\n", m.Token, m.Signature)
					}
				}
				return nil
			}
			return fmt.Errorf("unknown output %q: use text, json or yaml", output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output: text, json or yaml")
	return cmd
}
