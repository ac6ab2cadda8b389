package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validateEncroachment(); err != nil {
		return err
	}
	if err := c.validateSort(); err != nil {
		return err
	}
	if err := c.validateExifTool(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRun() error {
	switch c.Run.Mode {
	case ModeMethane, ModeEncroachment, ModeCombined:
	default:
		return fmt.Errorf("run.mode must be one of %s, %s, %s (got %q)", ModeMethane, ModeEncroachment, ModeCombined, c.Run.Mode)
	}
	if c.Run.MaxJoinDeltaSeconds < 0 {
		return errors.New("run.max_join_delta_seconds must be >= 0")
	}
	if c.Run.PACPrecision < 0 || c.Run.PACPrecision > 10 {
		return errors.New("run.pac_precision must be between 0 and 10")
	}
	if c.Methane.ThresholdPPM < 0 {
		return errors.New("methane.threshold_ppm must be >= 0")
	}
	return nil
}

func (c *Config) validateEncroachment() error {
	if c.Encroachment.RenameEnabled && c.Encroachment.RenameTemplate == "" {
		return errors.New("encroachment.rename_template must be set when encroachment.rename_enabled is true")
	}
	if c.Encroachment.StartIndex < 0 {
		return errors.New("encroachment.start_index must be >= 0")
	}
	if c.Run.Mode == ModeCombined && c.Encroachment.OutputRoot == "" {
		return errors.New("encroachment.output_root must be set when run.mode is combined")
	}
	return nil
}

func (c *Config) validateSort() error {
	for _, edge := range c.Sort.BinEdges {
		if edge < 0 {
			return fmt.Errorf("sort.bin_edges must be >= 0 (got %d)", edge)
		}
	}
	return nil
}

func (c *Config) validateExifTool() error {
	if c.ExifTool.TimeoutSeconds <= 0 {
		return errors.New("exiftool.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}
