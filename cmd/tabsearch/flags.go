package main

import (
	"strings"

	"github.com/YuminosukeSato/tabsearch/config"
)

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(flags Flags) (config.Config, error) {
	cfg := config.Default()
	if flags.Config != "" {
		var err error
		if cfg, err = config.Load(flags.Config); err != nil {
			return config.Config{}, err
		}
	}
	if flags.NIter > 0 {
		cfg.NIter = flags.NIter
	}
	if flags.CV > 0 {
		cfg.CV = flags.CV
	}
	if flags.Seed >= 0 {
		cfg.Seed = uint64(flags.Seed)
	}
	if flags.Workers != -999 {
		cfg.Workers = flags.Workers
	}
	if flags.Families != "" {
		cfg.Families = nil
		for _, f := range strings.Split(flags.Families, ",") {
			if f = strings.TrimSpace(f); f != "" {
				cfg.Families = append(cfg.Families, f)
			}
		}
	}
	if flags.Results != "" {
		cfg.Results.Dir = flags.Results
	}
	if flags.Plot != "" {
		cfg.Report.Plot = flags.Plot
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	return cfg, cfg.Validate()
}
