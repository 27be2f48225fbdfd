// Package config loads command line configuration from the environment and
// optional .env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/mindex"
	"github.com/hupe1980/mindex/distance"
	"github.com/hupe1980/mindex/resource"
)

// Prefix is the environment variable prefix, e.g. MINDEX_PIVOTS.
const Prefix = "MINDEX"

// Config validation errors
var (
	ErrInvalidPivots          = errors.New("pivots must be positive")
	ErrInvalidMaxLevel        = errors.New("max_level must lie in [1, pivots]")
	ErrInvalidDegree          = errors.New("degree must be at least 2")
	ErrInvalidLeafLimit       = errors.New("leaf_objects_limit must not be negative")
	ErrInvalidMaximumDistance = errors.New("maximum_distance must not be negative")
	ErrInvalidMetric          = errors.New("metric must be l2, l1 or chebyshev")
	ErrInvalidPivotSelection  = errors.New("pivot_selection must be 'random' or 'kmeans'")
	ErrInvalidLogFormat       = errors.New("log_format must be 'json' or 'text'")
	ErrInvalidLogLevel        = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidLimit           = errors.New("resource limits must not be negative")
)

// Config holds the settings of the mindex command.
type Config struct {
	Pivots           int     `envconfig:"PIVOTS" default:"8"`
	MaxLevel         int     `envconfig:"MAX_LEVEL" default:"2"`
	Degree           int     `envconfig:"DEGREE" default:"32"`
	LeafObjectsLimit int     `envconfig:"LEAF_OBJECTS_LIMIT" default:"0"` // 0 selects static clustering
	MaximumDistance  float64 `envconfig:"MAXIMUM_DISTANCE" default:"0"`   // 0 computes it during build
	Metric           string  `envconfig:"METRIC" default:"l2"`
	PivotSelection   string  `envconfig:"PIVOT_SELECTION" default:"random"`
	Seed             int64   `envconfig:"SEED" default:"1"`

	Workers     int `envconfig:"WORKERS" default:"0"`
	Granularity int `envconfig:"GRANULARITY" default:"0"`

	MemoryLimit  int64   `envconfig:"MEMORY_LIMIT" default:"0"`
	MaxWorkers   int64   `envconfig:"MAX_WORKERS" default:"0"`
	DistanceRate float64 `envconfig:"DISTANCE_RATE" default:"0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"warn"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads .env files into the environment and then processes MINDEX_*
// variables. Without files, a .env file in the working directory is used if
// present. Variables already set take precedence over .env entries.
func Load(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c Config) Validate() error {
	if c.Pivots <= 0 {
		return ErrInvalidPivots
	}
	if c.MaxLevel < 1 || c.MaxLevel > c.Pivots {
		return ErrInvalidMaxLevel
	}
	if c.Degree < 2 {
		return ErrInvalidDegree
	}
	if c.LeafObjectsLimit < 0 {
		return ErrInvalidLeafLimit
	}
	if c.MaximumDistance < 0 {
		return ErrInvalidMaximumDistance
	}
	if _, err := distance.ParseMetric(c.Metric); err != nil {
		return ErrInvalidMetric
	}
	if c.PivotSelection != "random" && c.PivotSelection != "kmeans" {
		return ErrInvalidPivotSelection
	}
	if c.MemoryLimit < 0 || c.MaxWorkers < 0 || c.DistanceRate < 0 || c.Workers < 0 || c.Granularity < 0 {
		return ErrInvalidLimit
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return ErrInvalidLogFormat
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, ErrInvalidLogLevel
}

// DistanceFunc returns the vector distance selected by Metric.
func (c Config) DistanceFunc() (distance.Func[[]float64], error) {
	m, err := distance.ParseMetric(c.Metric)
	if err != nil {
		return nil, err
	}
	return distance.Provider(m)
}

// ResourceConfig returns the shared resource limits, or false if none is set.
func (c Config) ResourceConfig() (resource.Config, bool) {
	rc := resource.Config{
		MemoryLimitBytes:    c.MemoryLimit,
		MaxWorkers:          c.MaxWorkers,
		DistanceEvalsPerSec: c.DistanceRate,
	}
	return rc, rc != resource.Config{}
}

// Logger returns a logger writing to w in the configured format and level.
func (c Config) Logger(w io.Writer) (*mindex.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return mindex.NewLogger(slog.NewJSONHandler(w, opts)), nil
	}
	return mindex.NewLogger(slog.NewTextHandler(w, opts)), nil
}

// Options converts the configuration into index options. Pivots, MaxLevel and
// Degree are passed to mindex.New directly.
func (c Config) Options(logger *mindex.Logger, metrics mindex.MetricsCollector) []mindex.Option {
	var opts []mindex.Option
	if c.MaximumDistance > 0 {
		opts = append(opts, mindex.WithMaximumDistance(c.MaximumDistance))
	}
	if c.LeafObjectsLimit > 0 {
		opts = append(opts, mindex.WithDynamicClusters(c.LeafObjectsLimit))
	}
	if c.Workers > 0 {
		opts = append(opts, mindex.WithWorkers(c.Workers))
	}
	if c.Granularity > 0 {
		opts = append(opts, mindex.WithGranularity(c.Granularity))
	}
	if rc, ok := c.ResourceConfig(); ok {
		opts = append(opts, mindex.WithResourceController(resource.NewController(rc)))
	}
	if logger != nil {
		opts = append(opts, mindex.WithLogger(logger))
	}
	if metrics != nil {
		opts = append(opts, mindex.WithMetricsCollector(metrics))
	}
	return opts
}
