// =============================================================================
// Subscription Flow Audit - Configuration Module
// =============================================================================
//
// Loads the run configuration (flowaudit.yaml by default).
//
// CONFIGURATION FILE:
//   input_dir / output_dir / input_archive_dir   working directories
//   sources                                      explicit {file, date} list
//   csv_settings / xlsx_sheet                    export parsing options
//   output_formats / output_name_format          what gets written, and how
//   log_level / log_format                       zap logger settings
//   max_concurrency / progress                   source loading
//   metrics_textfile                             prometheus textfile target
//   archive_inputs / archive_by_date             move sources after a run
//
// Every option has a default, so an empty file is a valid configuration.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout is the layout of source dates in the configuration file.
const DateLayout = "2006-01-02"

// ErrNoSources is returned when a run resolves to zero input sources.
var ErrNoSources = errors.New("no input sources")

// =============================================================================
// OUTPUT FORMATS
// =============================================================================

// Supported output formats.
const (
	FormatJSON     = "json"
	FormatCBOR     = "cbor"
	FormatGraphML  = "graphml"
	FormatXLSX     = "xlsx"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// KnownFormats lists every accepted value of output_formats.
var KnownFormats = []string{FormatJSON, FormatCBOR, FormatGraphML, FormatXLSX, FormatMarkdown, FormatHTML}

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the run configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for exports when Sources is empty.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the generated graph and reports.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives processed sources when ArchiveInputs is set.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// Sources is the explicit list of exports, processed in this order.
	Sources []Source `yaml:"sources"`

	// CSVSettings controls CSV export parsing.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// XLSXSheet is the sheet read from .xlsx exports. Empty means the first.
	XLSXSheet string `yaml:"xlsx_sheet"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputFormats selects the files written per run.
	// Default: ["json"]
	OutputFormats []string `yaml:"output_formats"`

	// OutputNameFormat is the base name of every output file (the extension
	// is appended per format).
	// Placeholders:
	//   {uuid}      - the run id
	//   {timestamp} - run start (YYYYMMDD_HHMMSS)
	//   {date}      - run start (YYYYMMDD)
	//   {run}       - the literal "flow"
	// Default: "{run}_{timestamp}"
	OutputNameFormat string `yaml:"output_name_format"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel: "debug", "info", "warn", "error". Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat: "json" or "console". Default: "json"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds how many sources are parsed at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// MetricsTextfile, when set, receives the run counters in the
	// prometheus text format.
	MetricsTextfile string `yaml:"metrics_textfile"`

	// ArchiveInputs moves every source into InputArchiveDir after a
	// successful run.
	ArchiveInputs bool `yaml:"archive_inputs"`

	// ArchiveByDate files archived sources under YYYY/MM/DD of the run.
	ArchiveByDate bool `yaml:"archive_by_date"`

	// Progress shows a progress bar while sources load.
	Progress bool `yaml:"progress"`
}

// Source is one export and the date it covers.
type Source struct {
	File string `yaml:"file"`

	// Date is formatted as DateLayout. Empty means the file's mtime.
	Date string `yaml:"date"`
}

// ParsedDate returns the source date, or the zero time when unset.
func (s Source) ParsedDate() (time.Time, error) {
	if s.Date == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("source %s: invalid date %q: %w", s.File, s.Date, err)
	}
	return t, nil
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV exports.
type CSVSettings struct {
	// Delimiter separates fields. Accepts a character or "tab", "pipe",
	// "semicolon". Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRows is the number of header rows; multi-row headers are
	// merged with a space. Default: 1
	HeaderRows int `yaml:"header_rows"`

	// DataStartRow is the 1-based row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file.
//
// RETURNS:
//   - A pointer to the Config struct, defaults applied and validated.
//   - An error if the file cannot be read, parsed or validated.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for any unset option.
func applyDefaults(cfg *Config) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.InputArchiveDir == "" {
		cfg.InputArchiveDir = "./input_archive"
	}
	if cfg.CSVSettings.Delimiter == "" {
		cfg.CSVSettings.Delimiter = ","
	}
	if cfg.CSVSettings.HeaderRows == 0 {
		cfg.CSVSettings.HeaderRows = 1
	}
	if cfg.CSVSettings.DataStartRow == 0 {
		cfg.CSVSettings.DataStartRow = cfg.CSVSettings.HeaderRows + 1
	}
	if len(cfg.OutputFormats) == 0 {
		cfg.OutputFormats = []string{FormatJSON}
	}
	if cfg.OutputNameFormat == "" {
		cfg.OutputNameFormat = "{run}_{timestamp}"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
}

// Validate checks option values. It does not touch the filesystem; see
// utils.EnsureDirectories for directory creation.
func (c *Config) Validate() error {
	for i, f := range c.OutputFormats {
		f = strings.ToLower(strings.TrimSpace(f))
		if !isKnownFormat(f) {
			return fmt.Errorf("unknown output format %q (known: %s)", f, strings.Join(KnownFormats, ", "))
		}
		c.OutputFormats[i] = f
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}

	if c.CSVSettings.HeaderRows < 1 {
		return fmt.Errorf("csv_settings.header_rows must be at least 1")
	}
	if c.CSVSettings.DataStartRow <= c.CSVSettings.HeaderRows {
		return fmt.Errorf("csv_settings.data_start_row (%d) must follow the header rows (%d)",
			c.CSVSettings.DataStartRow, c.CSVSettings.HeaderRows)
	}

	for _, s := range c.Sources {
		if s.File == "" {
			return fmt.Errorf("source with empty file")
		}
		if _, err := s.ParsedDate(); err != nil {
			return err
		}
	}
	return nil
}

// Wants reports whether format is among the configured output formats.
func (c *Config) Wants(format string) bool {
	for _, f := range c.OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

func isKnownFormat(f string) bool {
	for _, k := range KnownFormats {
		if k == f {
			return true
		}
	}
	return false
}
