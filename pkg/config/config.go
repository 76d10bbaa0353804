// Package config provides configuration loading and management for rsmetrics.
// It loads configuration from YAML files and RSMETRICS_* environment
// variables and provides default values.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding file values.
// Nested keys join with underscores: RSMETRICS_ANALYSIS_MAXSAMPLE.
const EnvPrefix = "RSMETRICS"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input parameters
	Input struct {
		// Directory is searched for index rasters by the statistics command
		Directory string `yaml:"directory" mapstructure:"directory"`

		// Pattern is the glob matched against file names in Directory
		Pattern string `yaml:"pattern" mapstructure:"pattern"`
	} `yaml:"input" mapstructure:"input"`

	// Analysis parameters
	Analysis struct {
		// MaxSample caps the number of values passed to the normality tests
		MaxSample int `yaml:"maxSample" mapstructure:"maxsample"`

		// Seed makes subsampling reproducible. Zero uses an unseeded source.
		Seed uint64 `yaml:"seed" mapstructure:"seed"`
	} `yaml:"analysis" mapstructure:"analysis"`

	// Output parameters
	Output struct {
		// Directory receives plots, tables and the run manifest. Empty
		// disables every artifact.
		Directory string `yaml:"directory" mapstructure:"directory"`

		// Prefix names the run manifest (<prefix>_metadata.json)
		Prefix string `yaml:"prefix" mapstructure:"prefix"`

		// Plots enables the distribution and comparison figures
		Plots bool `yaml:"plots" mapstructure:"plots"`

		// Quicklook enables the grayscale raster rendering
		Quicklook bool `yaml:"quicklook" mapstructure:"quicklook"`

		// XLSX enables the spreadsheet copy of the comparison table
		XLSX bool `yaml:"xlsx" mapstructure:"xlsx"`

		// Manifest enables the JSON run manifest
		Manifest bool `yaml:"manifest" mapstructure:"manifest"`
	} `yaml:"output" mapstructure:"output"`

	// Logging parameters
	Logging struct {
		// Level is a logrus level name
		Level string `yaml:"level" mapstructure:"level"`

		// Format is "text" or "json"
		Format string `yaml:"format" mapstructure:"format"`
	} `yaml:"logging" mapstructure:"logging"`

	// Metrics parameters
	Metrics struct {
		// Textfile is the node exporter textfile the metrics are written to
		// after a run. Empty disables the export.
		Textfile string `yaml:"textfile" mapstructure:"textfile"`
	} `yaml:"metrics" mapstructure:"metrics"`

	// Database parameters
	Database struct {
		// URL is a Postgres connection string. Empty disables persistence.
		URL string `yaml:"url" mapstructure:"url"`
	} `yaml:"database" mapstructure:"database"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default input parameters
	cfg.Input.Directory = "data/exports"
	cfg.Input.Pattern = "*.tif"

	// Set default analysis parameters
	cfg.Analysis.MaxSample = 5000
	cfg.Analysis.Seed = 0

	// Set default output parameters
	cfg.Output.Directory = "distribution_analysis"
	cfg.Output.Prefix = "rs_metrics"
	cfg.Output.Plots = true
	cfg.Output.Quicklook = true
	cfg.Output.XLSX = true
	cfg.Output.Manifest = true

	// Set default logging parameters
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// LoadConfig loads configuration from a YAML file and the environment.
// Precedence: environment > config file > defaults. If configPath is
// empty or the file doesn't exist, only defaults and environment apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults also register every key, so env overrides reach Unmarshal
	setDefaults(v, DefaultConfig())

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.Analysis.MaxSample < 0 {
		return fmt.Errorf("analysis.maxSample must be non-negative, got %d", c.Analysis.MaxSample)
	}
	if c.Input.Pattern != "" {
		if _, err := filepath.Match(c.Input.Pattern, ""); err != nil {
			return fmt.Errorf("input.pattern %q: %w", c.Input.Pattern, err)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("input.directory", cfg.Input.Directory)
	v.SetDefault("input.pattern", cfg.Input.Pattern)
	v.SetDefault("analysis.maxsample", cfg.Analysis.MaxSample)
	v.SetDefault("analysis.seed", cfg.Analysis.Seed)
	v.SetDefault("output.directory", cfg.Output.Directory)
	v.SetDefault("output.prefix", cfg.Output.Prefix)
	v.SetDefault("output.plots", cfg.Output.Plots)
	v.SetDefault("output.quicklook", cfg.Output.Quicklook)
	v.SetDefault("output.xlsx", cfg.Output.XLSX)
	v.SetDefault("output.manifest", cfg.Output.Manifest)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
	v.SetDefault("database.url", cfg.Database.URL)
}

// fileHeader opens every written configuration file
const fileHeader = `# rsmetrics configuration
# Each key can be overridden by RSMETRICS_<SECTION>_<KEY>, e.g. RSMETRICS_ANALYSIS_MAXSAMPLE.
`

// Write encodes c as YAML to w, preceded by a header naming the
// environment overrides
func (c *Config) Write(w io.Writer) error {
	if _, err := io.WriteString(w, fileHeader); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return enc.Close()
}

// SaveConfig validates cfg and writes it to configPath. The file is written
// to a temporary name and renamed, so a failed write leaves any previous
// file in place.
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(configPath)+".*")
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := cfg.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), configPath); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// InitConfigFile writes the defaults merged with the current RSMETRICS_*
// environment to configPath and returns what was written
func InitConfigFile(configPath string) (*Config, error) {
	cfg, err := LoadConfig("")
	if err != nil {
		return nil, err
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}
