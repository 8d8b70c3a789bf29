package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.ReportEvery != 100_000_000 || cfg.CacheSize != 65536 || cfg.Jobs != 1 || cfg.Format != FormatText || cfg.Top != 10 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Debug || cfg.ByteHistogram || cfg.NoColor || cfg.FlushOnError {
		t.Errorf("flags should default to false: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadEnvironment(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"TRACESTAT_REPORT_EVERY": "0",
		"TRACESTAT_CACHE_SIZE":   "12",
		"TRACESTAT_BYTE_HIST":    "true",
		"TRACESTAT_JOBS":         "4",
		"TRACESTAT_FORMAT":       "json",
		"CACHE_SIZE":             "99",
	})
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.ReportEvery != 0 || cfg.CacheSize != 12 || !cfg.ByteHistogram || cfg.Jobs != 4 || cfg.Format != FormatJSON {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := LoadFrom(map[string]string{"TRACESTAT_JOBS": "many"}); err == nil {
		t.Error("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative cache", func(c *Config) { c.CacheSize = -1 }, "cache size"},
		{"zero jobs", func(c *Config) { c.Jobs = 0 }, "jobs"},
		{"bad format", func(c *Config) { c.Format = "csv" }, "unknown format"},
		{"negative top", func(c *Config) { c.Top = -3 }, "top"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(map[string]string{})
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(&cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
