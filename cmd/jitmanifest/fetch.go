package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jitmanifest/internal/nuget"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		request nuget.Request
		index   string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "fetch <package-id>",
		Short: "Download reference assemblies from a NuGet feed into a probe directory",
		Long: `Downloads a package such as Microsoft.NETCore.App.Ref and extracts its lib/ and
ref/ assemblies, so descriptors can be resolved against a framework version that is
not installed. Add the output directory to probe_dirs.`,
		Example: "  jitmanifest fetch Microsoft.NETCore.App.Ref --version '~> 8.0' --framework net8.0 --out ./fx/8.0",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request.ID = args[0]
			downloader := nuget.NewDownloader(a.logger)
			downloader.IndexURL = index

			pkg, err := downloader.Download(cmd.Context(), request, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %s %s: %d assemblies in %s\n", pkg.ID, pkg.Version, len(pkg.Assemblies), outDir)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&request.Constraint, "version", "", "version constraint, e.g. '~> 8.0' (default: highest stable)")
	flags.StringVar(&request.Framework, "framework", "", "target framework folder to extract, e.g. net8.0")
	flags.BoolVar(&request.Prerelease, "prerelease", false, "allow prerelease versions")
	flags.StringVar(&index, "source", nuget.DefaultIndex, "NuGet v3 service index")
	flags.StringVarP(&outDir, "out", "o", "./fx", "directory to extract into")
	return cmd
}
