package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"geotagger/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and output directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			fmt.Fprintln(out, "System checks:")
			failed := 0
			for _, r := range preflight.RunAll(cfg) {
				kind := statusOK
				if !r.Passed {
					kind = statusError
					failed++
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if cfg.Run.DryRun {
				fmt.Fprintln(out, renderStatusLine("Dry run", statusWarn, "metadata will not be written", colorize))
			}
			if failed > 0 {
				return errors.New("one or more checks failed")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
