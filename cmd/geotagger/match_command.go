package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"geotagger/internal/artifacts"
	"geotagger/internal/pipeline"
	"geotagger/internal/scan"
	"geotagger/internal/sensor"
	"geotagger/internal/services"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "match <photo> [log...]",
		Short: "Show which sensor log row a photo correlates with",
		Long: "Correlate a single photo without writing anything. When no logs are given,\n" +
			"the photo's folder is scanned for them.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			paths, err := absInputs(args)
			if err != nil {
				return err
			}
			photo := paths[0]
			logs := paths[1:]
			if len(logs) == 0 {
				scanner := scan.Scanner{SkipDirPrefixes: []string{artifacts.RunFolderPrefix}, Logger: logger}
				res, err := scanner.Scan(cmd.Context(), []string{filepath.Dir(photo)})
				if err != nil {
					return err
				}
				logs = res.Logs
			}
			if len(logs) == 0 {
				return services.Wrap(services.ErrNotFound, "match", "find logs", "no sensor logs next to "+filepath.Base(photo), nil)
			}

			opts, err := pipeline.ResolveOptions(cfg, []string{photo})
			if err != nil {
				return err
			}
			idx, err := sensor.Build(cmd.Context(), logs, logger)
			if err != nil {
				return err
			}
			m, cerr := idx.Match(photo, sensor.MatchOptions{MaxDelta: opts.MaxJoinDelta(), PACPrecision: opts.PACPrecision}).Get()
			if cerr != nil {
				return services.Wrap(services.ErrValidation, "match", string(cerr.Kind), cerr.Reason, nil)
			}
			if asJSON {
				return writeJSON(cmd, matchView(photo, m))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Photo:   %s\n", filepath.Base(photo))
			fmt.Fprintf(out, "Method:  %s\n", m.Method)
			fmt.Fprintf(out, "Log:     %s (row %d)\n", m.Record.LogName(), m.Record.Row)
			fmt.Fprintf(out, "Lat:     %s\n", strconv.FormatFloat(m.Record.Lat, 'f', -1, 64))
			fmt.Fprintf(out, "Lon:     %s\n", strconv.FormatFloat(m.Record.Lon, 'f', -1, 64))
			fmt.Fprintf(out, "PPM:     %s\n", strconv.FormatFloat(m.Record.PPM, 'f', -1, 64))
			if m.Method == sensor.JoinTimestamp {
				fmt.Fprintf(out, "Delta:   %s\n", m.Delta)
			}
			if m.PAC != nil {
				fmt.Fprintf(out, "PAC:     %s\n", strconv.FormatFloat(*m.PAC, 'f', -1, 64))
			}
			if m.CaptureTime != "" {
				fmt.Fprintf(out, "Capture: %s\n", m.CaptureTime)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type matchJSON struct {
	Photo        string   `json:"photo"`
	Method       string   `json:"join_method"`
	Log          string   `json:"csv_path"`
	Row          int      `json:"row"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	PPM          float64  `json:"ppm"`
	DeltaSeconds float64  `json:"delta_seconds"`
	PAC          *float64 `json:"pac,omitempty"`
	CaptureTime  string   `json:"capture_time,omitempty"`
	Description  string   `json:"description"`
}

func matchView(photo string, m sensor.Match) matchJSON {
	return matchJSON{
		Photo:        photo,
		Method:       string(m.Method),
		Log:          m.Record.LogPath,
		Row:          m.Record.Row,
		Lat:          m.Record.Lat,
		Lon:          m.Record.Lon,
		PPM:          m.Record.PPM,
		DeltaSeconds: m.Delta.Seconds(),
		PAC:          m.PAC,
		CaptureTime:  m.CaptureTime,
		Description:  m.Description,
	}
}
