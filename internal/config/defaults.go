package config

const (
	defaultLogDir              = "~/.local/share/geotagger/logs"
	defaultMode                = ModeEncroachment
	defaultMaxJoinDeltaSeconds = 3.0
	defaultPACPrecision        = 2
	defaultMethaneThresholdPPM = 1000
	defaultRenameTemplate      = "{index:04}_{ppm}ppm_{stem}"
	defaultStartIndex          = 1
	defaultExifToolBinary      = "exiftool"
	defaultExifToolBatchSize   = 50
	defaultExifToolTimeout     = 600
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Run: Run{
			Mode:                defaultMode,
			MaxJoinDeltaSeconds: defaultMaxJoinDeltaSeconds,
			PACPrecision:        defaultPACPrecision,
		},
		Methane: Methane{
			ThresholdPPM:  defaultMethaneThresholdPPM,
			CleanedCSV:    true,
			CreateBackups: true,
		},
		Encroachment: Encroachment{
			RenameTemplate: defaultRenameTemplate,
			StartIndex:     defaultStartIndex,
		},
		Sort: Sort{
			BinEdges: []int{0, 1000},
		},
		Flatten: Flatten{
			PruneEmpty: true,
		},
		ExifTool: ExifTool{
			Binary:         defaultExifToolBinary,
			BatchSize:      defaultExifToolBatchSize,
			TimeoutSeconds: defaultExifToolTimeout,
			Verify:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
