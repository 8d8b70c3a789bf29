// Package config holds the run configuration. Values come from TRACESTAT_*
// environment variables and are then overridden by command line flags.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/caarlos0/env/v8"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "TRACESTAT_"

// Output formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatSummary = "summary"
)

// Formats lists the accepted values of Config.Format.
var Formats = []string{FormatText, FormatJSON, FormatSummary}

// Config represents configuration for a tracestat run.
type Config struct {
	Debug         bool   `env:"DEBUG" json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	ReportEvery   uint64 `env:"REPORT_EVERY" envDefault:"100000000" json:"reportEvery" jsonschema:"title=Report Every,description=Print a progress report every N instructions (0 disables)"`
	CacheSize     int    `env:"CACHE_SIZE" envDefault:"65536" json:"cacheSize" jsonschema:"title=Cache Size,description=Number of decoded blocks kept in the block cache (0 disables),minimum=0"`
	ByteHistogram bool   `env:"BYTE_HIST" json:"byteHistogram" jsonschema:"title=Byte Histogram,description=Include per-mnemonic encoded length histograms"`
	Jobs          int    `env:"JOBS" envDefault:"1" json:"jobs" jsonschema:"title=Jobs,description=Trace files processed concurrently,minimum=1"`
	Format        string `env:"FORMAT" envDefault:"text" json:"format" jsonschema:"title=Format,description=Report format,enum=text,enum=json,enum=summary"`
	NoColor       bool   `env:"NO_COLOR" json:"noColor" jsonschema:"title=No Color,description=Disable colored output"`
	FlushOnError  bool   `env:"FLUSH_ON_ERROR" json:"flushOnError" jsonschema:"title=Flush On Error,description=Write the partial report to stderr when a run fails"`
	Top           int    `env:"TOP" envDefault:"10" json:"top" jsonschema:"title=Top,description=Mnemonics listed per category in the summary format,minimum=0"`
	ProfileAddr   string `env:"PROFILE" json:"profileAddr" jsonschema:"title=Profile Address,description=Address for the pprof HTTP listener"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads the configuration from environ instead of the process
// environment when environ is non-nil.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache size must not be negative, got %d", c.CacheSize))
	}
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs must be at least 1, got %d", c.Jobs))
	}
	if !slices.Contains(Formats, c.Format) {
		errs = append(errs, fmt.Errorf("unknown format %q, want one of %v", c.Format, Formats))
	}
	if c.Top < 0 {
		errs = append(errs, fmt.Errorf("top must not be negative, got %d", c.Top))
	}
	return errors.Join(errs...)
}
