package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/inhies/go-bytesize"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/wippyai/movingheap/arena"
	"github.com/wippyai/movingheap/collector"
	"github.com/wippyai/movingheap/errors"
)

// demoConfig is the resolved scenario configuration.
type demoConfig struct {
	ArenaSize   uint64
	SegmentSize uint32
	StepBudget  uint32
	Threshold   uint64
	Roots       int
	Initial     int
	Churn       int
	RetainAbove int64
	Seed        int64
	Background  bool
	LogLevel    string
}

func defaultConfig() demoConfig {
	return demoConfig{
		ArenaSize:   arena.DefaultSize,
		SegmentSize: collector.DefaultSegmentSize,
		StepBudget:  collector.DefaultStepBudget,
		Roots:       50,
		Initial:     1000,
		Churn:       10_000_000,
		RetainAbove: 96,
		Seed:        1,
		LogLevel:    "warn",
	}
}

// fileConfig is the YAML form. Sizes are human readable, e.g. "32MB".
type fileConfig struct {
	ArenaSize   string `yaml:"arena_size"`
	SegmentSize string `yaml:"segment_size"`
	StepBudget  string `yaml:"step_budget"`
	Threshold   string `yaml:"threshold"`
	Roots       *int   `yaml:"roots"`
	Initial     *int   `yaml:"initial"`
	Churn       *int   `yaml:"churn"`
	RetainAbove *int64 `yaml:"retain_above"`
	Seed        *int64 `yaml:"seed"`
	Background  *bool  `yaml:"background"`
	LogLevel    string `yaml:"log_level"`
}

func loadConfig(path string, cfg *demoConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read config file")
	}
	return parseConfig(data, cfg)
}

func parseConfig(data []byte, cfg *demoConfig) error {
	var fc fileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config file")
	}

	var errs error
	if fc.ArenaSize != "" {
		errs = multierr.Append(errs, setSize(&cfg.ArenaSize, "arena_size", fc.ArenaSize))
	}
	if fc.SegmentSize != "" {
		errs = multierr.Append(errs, setSize32(&cfg.SegmentSize, "segment_size", fc.SegmentSize))
	}
	if fc.StepBudget != "" {
		errs = multierr.Append(errs, setSize32(&cfg.StepBudget, "step_budget", fc.StepBudget))
	}
	if fc.Threshold != "" {
		errs = multierr.Append(errs, setSize(&cfg.Threshold, "threshold", fc.Threshold))
	}
	if fc.Roots != nil {
		cfg.Roots = *fc.Roots
	}
	if fc.Initial != nil {
		cfg.Initial = *fc.Initial
	}
	if fc.Churn != nil {
		cfg.Churn = *fc.Churn
	}
	if fc.RetainAbove != nil {
		cfg.RetainAbove = *fc.RetainAbove
	}
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.Background != nil {
		cfg.Background = *fc.Background
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	return errs
}

func parseSize(s string) (uint64, error) {
	b, err := bytesize.Parse(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return uint64(b), nil
}

func setSize(dst *uint64, name, s string) error {
	v, err := parseSize(s)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, fmt.Sprintf("%s: %q", name, s))
	}
	*dst = v
	return nil
}

func setSize32(dst *uint32, name, s string) error {
	var v uint64
	if err := setSize(&v, name, s); err != nil {
		return err
	}
	if v > uint64(^uint32(0)) {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%s: %q exceeds 4GB", name, s))
	}
	*dst = uint32(v)
	return nil
}

func (c demoConfig) validate() error {
	var errs error
	if c.Roots <= 0 {
		errs = multierr.Append(errs, errors.InvalidInput(errors.PhaseConfig, "roots must be positive"))
	}
	if c.Initial < 0 || c.Churn < 0 {
		errs = multierr.Append(errs, errors.InvalidInput(errors.PhaseConfig, "allocation counts must not be negative"))
	}
	return errs
}

func (c demoConfig) collectorConfig() collector.Config {
	return collector.Config{
		SegmentSize: c.SegmentSize,
		StepBudget:  c.StepBudget,
		Threshold:   c.Threshold,
	}
}

func formatSize(n uint64) string {
	return bytesize.New(float64(n)).String()
}
