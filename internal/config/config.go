// Package config defines the application configuration, its defaults,
// and validation. Values come from (in increasing precedence) built-in
// defaults, the YAML config file, REGIONGRAPH_* environment variables,
// and command-line flags bound through viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Projection ProjectionConfig `mapstructure:"projection" yaml:"projection"`
	Graph      GraphConfig      `mapstructure:"graph" yaml:"graph"`
	Join       JoinConfig       `mapstructure:"join" yaml:"join"`
	Input      InputConfig      `mapstructure:"input" yaml:"input"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
}

// LoggerConfig configures the zap logger and its optional rotating
// file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ProjectionConfig fixes the viewport the planar frame is fitted to.
// These values participate in the projection parameters, so changing
// them between runs changes every projected coordinate.
type ProjectionConfig struct {
	Width   float64 `mapstructure:"width" yaml:"width"`
	Height  float64 `mapstructure:"height" yaml:"height"`
	Padding float64 `mapstructure:"padding" yaml:"padding"`
}

// GraphConfig controls proximity graph construction.
type GraphConfig struct {
	K      int  `mapstructure:"k" yaml:"k"`
	Mutual bool `mapstructure:"mutual" yaml:"mutual"`
}

// JoinConfig tunes the spatial join engine.
type JoinConfig struct {
	// Concurrency is the worker shard count; <= 0 means GOMAXPROCS.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// InputConfig names the input files and the column/property mappings
// the loaders use. The CSV column defaults mirror the City of Chicago
// open-data exports the tool was built against.
type InputConfig struct {
	Regions    string `mapstructure:"regions" yaml:"regions"`
	Points     string `mapstructure:"points" yaml:"points"`
	IDProperty string `mapstructure:"id_property" yaml:"id_property"`
	GeomColumn string `mapstructure:"geom_column" yaml:"geom_column"`
	LatColumn  string `mapstructure:"lat_column" yaml:"lat_column"`
	LonColumn  string `mapstructure:"lon_column" yaml:"lon_column"`
}

// OutputConfig controls artifact export.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// StoreConfig configures the optional PostgreSQL artifact store. The
// store is enabled by providing a DSN; an empty DSN means file export
// only.
type StoreConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SetDefaults initializes default values for all configuration keys.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "regiongraph")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Projection --
	v.SetDefault("projection.width", 1000.0)
	v.SetDefault("projection.height", 800.0)
	v.SetDefault("projection.padding", 0.05)

	// -- Graph --
	v.SetDefault("graph.k", 5)
	v.SetDefault("graph.mutual", false)

	// -- Join --
	v.SetDefault("join.concurrency", 0)

	// -- Input --
	v.SetDefault("input.id_property", "PRI_NEIGH")
	v.SetDefault("input.geom_column", "the_geom")
	v.SetDefault("input.lat_column", "Latitude")
	v.SetDefault("input.lon_column", "Longitude")

	// -- Output --
	v.SetDefault("output.dir", "out")

	// -- Store --
	v.SetDefault("store.dsn", "")
}

// NewDefaultConfig creates a configuration populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the static defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewFromViper builds and validates a configuration from a viper
// instance that already has file/env/flag sources applied.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Projection.Width <= 0 || c.Projection.Height <= 0 {
		return fmt.Errorf("projection.width and projection.height must be positive")
	}
	if c.Projection.Padding < 0 || c.Projection.Padding >= 1 {
		return fmt.Errorf("projection.padding must be in [0, 1)")
	}
	if c.Graph.K <= 0 {
		return fmt.Errorf("graph.k must be a positive integer")
	}
	return nil
}
