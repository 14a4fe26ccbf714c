package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jitmanifest/internal/generation"
	"jitmanifest/internal/manifest"
)

var errNotConfirmed = errors.New("explicit agreement was not given")

func newGenCmd(a *app) *cobra.Command {
	var (
		packageName string
		outputPath  string
		format      string
		forceClean  bool
	)

	cmd := &cobra.Command{
		Use:   "gen <manifest>",
		Short: "Export a manifest as a Go package",
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

			generator, err := generation.NewGenerator(packageName, outputPath)
			if err != nil {
				return err
			}
			if err := clearDirectoryIfNotEmpty(outputPath, forceClean, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			for _, node := range nodes {
				generator.RegisterMethod(node)
			}
			if err := generator.Generate(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "generated package %s with %d methods in %s\n", packageName, len(nodes), outputPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&packageName, "package", "p", "warmup", "name of the generated package")
	flags.StringVarP(&outputPath, "out", "o", "./warmup/", "directory where the generated files are placed")
	flags.StringVarP(&format, "format", "f", "", "manifest format (default from extension)")
	flags.BoolVar(&forceClean, "force", false, "clean a non-empty output directory without asking")
	return cmd
}

// clearDirectoryIfNotEmpty removes the output directory's content, asking first
// unless silent is set. A missing directory is left for the generator to create.
func clearDirectoryIfNotEmpty(path string, silent bool, in io.Reader, out io.Writer) error {
	directory, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer directory.Close()

	_, err = directory.Readdirnames(1)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	if !silent {
		fmt.Fprint(out, "Output directory is not empty. Continuation will result in removing all output files. Proceed? [Y/n] ")
		response, _ := bufio.NewReader(in).ReadString('\n')
		if strings.ToUpper(strings.TrimSpace(response)) != "Y" {
			return errNotConfirmed
		}
	}

	fmt.Fprintln(out, "Cleaning output directory.")
	return os.RemoveAll(path)
}
