package config

import (
	"fmt"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRun()
	c.normalizeSort()
	c.normalizeExifTool()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputRoot, err = expandPath(strings.TrimSpace(c.Paths.OutputRoot)); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Encroachment.OutputRoot, err = expandPath(strings.TrimSpace(c.Encroachment.OutputRoot)); err != nil {
		return fmt.Errorf("encroachment.output_root: %w", err)
	}
	return nil
}

func (c *Config) normalizeRun() {
	c.Run.Mode = strings.ToLower(strings.TrimSpace(c.Run.Mode))
	if c.Run.Mode == "" {
		c.Run.Mode = defaultMode
	}
	c.Encroachment.RenameTemplate = strings.TrimSpace(c.Encroachment.RenameTemplate)
}

// normalizeSort sorts and de-duplicates bin edges so bucket lookup can binary search.
func (c *Config) normalizeSort() {
	edges := slices.Clone(c.Sort.BinEdges)
	slices.Sort(edges)
	c.Sort.BinEdges = slices.Compact(edges)
}

func (c *Config) normalizeExifTool() {
	c.ExifTool.Binary = strings.TrimSpace(c.ExifTool.Binary)
	if c.ExifTool.Binary == "" {
		c.ExifTool.Binary = defaultExifToolBinary
	}
	if c.ExifTool.BatchSize <= 0 {
		c.ExifTool.BatchSize = defaultExifToolBatchSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
