package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"geotagger/internal/artifacts"
)

func newManifestCommand() *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:         "manifest",
		Short:       "Inspect run manifests",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	manifestCmd.AddCommand(newManifestShowCommand())
	return manifestCmd
}

func newManifestShowCommand() *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "show <run-folder|manifest.csv>",
		Short: "Print a run manifest as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := artifacts.ResolveManifest(args[0])
			if err != nil {
				return err
			}
			rows, err := artifacts.ReadManifest(path)
			if err != nil {
				return err
			}

			tbl := newTextTable(path,
				textColumn("Photo"), textColumn("Status"), textColumn("Reason"),
				numericColumn("Lat"), numericColumn("Lon"), numericColumn("PPM"),
				textColumn("Join"),
			)
			for _, r := range rows {
				if failedOnly && r.Status != artifacts.StatusFailed {
					continue
				}
				tbl.add(
					filepath.Base(r.SourcePath),
					r.Status,
					r.Reason,
					optFloat(r.Lat),
					optFloat(r.Lon),
					optFloat(r.PPM),
					r.JoinMethod,
				)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tbl)
			fmt.Fprintln(out, statusLine(artifacts.StatusCounts(rows)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show FAILED rows")
	return cmd
}
