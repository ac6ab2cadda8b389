package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"geotagger/internal/artifacts"
	"geotagger/internal/scan"
	"geotagger/internal/sensor"
)

type scanLogReport struct {
	Path        string `json:"path"`
	Rows        int    `json:"rows"`
	RowsDropped int    `json:"rows_dropped"`
	SkipReason  string `json:"skip_reason,omitempty"`
}

type scanReport struct {
	Photos []string        `json:"photos"`
	Logs   []scanLogReport `json:"logs"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var listPhotos bool

	cmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "List the photos and sensor logs a run would use",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := absInputs(args)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			scanner := scan.Scanner{SkipDirPrefixes: []string{artifacts.RunFolderPrefix}, Logger: logger}
			res, err := scanner.Scan(cmd.Context(), inputs)
			if err != nil {
				return err
			}
			logs, err := sensor.ParseAll(cmd.Context(), res.Logs)
			if err != nil {
				return err
			}

			report := scanReport{Photos: res.Photos, Logs: make([]scanLogReport, 0, len(logs))}
			if report.Photos == nil {
				report.Photos = []string{}
			}
			for _, l := range logs {
				report.Logs = append(report.Logs, scanLogReport{
					Path:        l.Path,
					Rows:        len(l.Records),
					RowsDropped: l.RowsDropped,
					SkipReason:  l.SkipReason,
				})
			}
			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Photos: %d\n", len(report.Photos))
			fmt.Fprintf(out, "Sensor logs: %d\n", len(report.Logs))
			if len(report.Logs) > 0 {
				tbl := newTextTable("Sensor logs",
					textColumn("Log"), numericColumn("Rows"), numericColumn("Dropped"), textColumn("Status"))
				for _, l := range report.Logs {
					status := "ok"
					if l.SkipReason != "" {
						status = "skipped: " + l.SkipReason
					}
					tbl.add(filepath.Base(l.Path), strconv.Itoa(l.Rows), strconv.Itoa(l.RowsDropped), status)
				}
				if len(report.Logs) > 1 {
					tbl.total("Total")
				}
				fmt.Fprintln(out, tbl)
			}
			if listPhotos {
				for _, p := range report.Photos {
					fmt.Fprintln(out, p)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&listPhotos, "photos", false, "List every photo path")
	return cmd
}
