package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/resultsaggregator/pkg/aggregator"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of environment variables overriding config keys.
	EnvPrefix = "AGGREGATOR"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultStaleAfter is the default age after which results are out of date.
	DefaultStaleAfter = aggregator.DefaultStaleAfter

	// DefaultSortBy is the default job ordering.
	DefaultSortBy = string(aggregator.SortByName)
)

// Config is the root configuration for the aggregator.
type Config struct {
	Global      GlobalConfig      `yaml:"global" mapstructure:"global"`
	Aggregation AggregationConfig `yaml:"aggregation" mapstructure:"aggregation"`
	API         APIConfig         `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// AggregationConfig contains the settings passed to every aggregation run.
type AggregationConfig struct {
	// StaleAfter marks job results older than this as out of date. Zero
	// disables the check.
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"`

	// SortBy is one of the aggregator sort keys, matched case-insensitively.
	SortBy string `yaml:"sort_by" mapstructure:"sort_by"`
}

// defaults lists the default value of every scalar key. Registering the
// keys also lets environment variables override keys absent from the files.
var defaults = map[string]any{
	"global.log_level":                          DefaultLogLevel,
	"aggregation.stale_after":                   DefaultStaleAfter,
	"aggregation.sort_by":                       DefaultSortBy,
	"api.server.listen":                         DefaultAPIListen,
	"api.server.cors_origins":                   []string{},
	"api.server.max_body_size":                  DefaultMaxBodySize,
	"api.server.rate_limit.enabled":             false,
	"api.server.rate_limit.requests_per_minute": DefaultRequestsPerMinute,
	"api.auth.basic.enabled":                    false,
}

// Load reads and merges the configuration files in order, applies
// AGGREGATOR_* environment overrides and defaults, and validates the result.
// Without paths only defaults and the environment are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	for i, path := range paths {
		v.SetConfigFile(path)

		read := v.MergeInConfig
		if i == 0 {
			read = v.ReadInConfig
		}

		if err := read(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills values left empty by the files and the environment.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Aggregation.SortBy == "" {
		c.Aggregation.SortBy = DefaultSortBy
	}

	c.API.applyDefaults()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("global.log_level: %w", err)
	}

	if c.Aggregation.StaleAfter < 0 {
		return fmt.Errorf("aggregation.stale_after must not be negative")
	}

	return nil
}

// AggregatorOptions converts the aggregation section into aggregator options.
func (c *Config) AggregatorOptions() aggregator.Options {
	return aggregator.Options{
		StaleAfter: c.Aggregation.StaleAfter,
		SortBy:     aggregator.ParseSortKey(c.Aggregation.SortBy),
	}
}
