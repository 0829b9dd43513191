package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"matchset/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline" envconfig:"PIPELINE"`
	Tournament TournamentConfig `yaml:"tournament" envconfig:"TOURNAMENT"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// PipelineConfig contains the windowing and merge parameters
type PipelineConfig struct {
	Span             int      `yaml:"span" envconfig:"SPAN" validate:"required,gt=0"`
	IdentifierFields []string `yaml:"identifier_fields" envconfig:"IDENTIFIER_FIELDS" validate:"required,min=1"`
	Concurrency      int      `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"gte=1"`
}

// TournamentConfig carries the injected postseason windows
type TournamentConfig struct {
	Intervals []IntervalConfig `yaml:"intervals" ignored:"true" validate:"dive"`
}

// IntervalConfig is one closed date range in the config file
type IntervalConfig struct {
	Start string `yaml:"start" validate:"required,dateonly"`
	End   string `yaml:"end" validate:"required,dateonly"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	InputDir   string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`
	OutputFile string `yaml:"output_file" envconfig:"OUTPUT_FILE" validate:"required"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig contains OpenTelemetry exporter configuration
type TelemetryConfig struct {
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	MetricsAddr    string  `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Load loads configuration with increasing precedence: built-in defaults,
// then the YAML config file if one exists, then MATCHSET_* environment
// variables.
func Load() (*Config, error) {
	return LoadFromFile(getConfigFilePath())
}

// LoadFromFile is Load with an explicit config file path. An empty path
// skips the file layer.
func LoadFromFile(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	if err := envconfig.Process("MATCHSET", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML file contents onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}

	return nil
}

// newValidator builds the struct validator with the custom date check
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("dateonly", isDateOnly)

	// Use YAML tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// isDateOnly validates a calendar date string in 2006-01-02 form
func isDateOnly(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}

// Validate checks the configuration, including the cross-field interval
// rules the struct tags cannot express.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return err
	}

	if !containsAll(c.Pipeline.IdentifierFields, domain.FieldDate, domain.FieldHome, domain.FieldAway) {
		return fmt.Errorf("identifier_fields must include %q, %q and %q",
			domain.FieldDate, domain.FieldHome, domain.FieldAway)
	}

	intervals, err := c.Tournament.Parse()
	if err != nil {
		return err
	}
	for i := 1; i < len(intervals); i++ {
		prev, cur := intervals[i-1], intervals[i]
		if cur.Start.Before(prev.Start) {
			return fmt.Errorf("tournament intervals must be ordered by start date (interval %d starts before interval %d)", i, i-1)
		}
		if !cur.Start.After(prev.End) {
			return fmt.Errorf("tournament intervals must not overlap (interval %d overlaps interval %d)", i, i-1)
		}
	}

	return nil
}

// Parse converts the configured date strings into domain intervals.
func (tc TournamentConfig) Parse() ([]domain.TournamentInterval, error) {
	intervals := make([]domain.TournamentInterval, 0, len(tc.Intervals))
	for i, ic := range tc.Intervals {
		start, err := time.Parse(time.DateOnly, ic.Start)
		if err != nil {
			return nil, fmt.Errorf("tournament interval %d: invalid start date %q: %w", i, ic.Start, err)
		}
		end, err := time.Parse(time.DateOnly, ic.End)
		if err != nil {
			return nil, fmt.Errorf("tournament interval %d: invalid end date %q: %w", i, ic.End, err)
		}
		interval := domain.TournamentInterval{Start: start, End: end}
		if !interval.IsValid() {
			return nil, fmt.Errorf("tournament interval %d: end %q precedes start %q", i, ic.End, ic.Start)
		}
		intervals = append(intervals, interval)
	}
	return intervals, nil
}

// Span returns the configured window length as a domain span.
func (c *Config) Span() domain.Span {
	return domain.Span(c.Pipeline.Span)
}

// IdentifierSet returns the identifier field names as a lookup set.
func (c *Config) IdentifierSet() map[string]bool {
	set := make(map[string]bool, len(c.Pipeline.IdentifierFields))
	for _, f := range c.Pipeline.IdentifierFields {
		set[f] = true
	}
	return set
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.LogsDir,
		filepath.Dir(c.Paths.OutputFile),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// containsAll reports whether fields contains every name in want
func containsAll(fields []string, want ...string) bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv("MATCHSET_CONFIG"); path != "" {
		return path
	}

	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Span:             10,
			IdentifierFields: []string{domain.FieldDate, domain.FieldHome, domain.FieldAway},
			Concurrency:      1,
		},
		Paths: PathsConfig{
			InputDir:   "data/team_stats",
			OutputFile: "data/training/matchups.csv",
			LogsDir:    "logs",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/matchset.log",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "none",
			SampleRatio:    1.0,
		},
	}
}
