package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
)

func TestParseConfig(t *testing.T) {
	cfg := defaultConfig()
	data := []byte(`
arena_size: 8MB
segment_size: 16KB
threshold: 1MB
roots: 20
churn: 5000
seed: 7
background: true
log_level: debug
`)
	if err := parseConfig(data, &cfg); err != nil {
		t.Fatalf("parseConfig: %v", err)
	}

	if cfg.ArenaSize != 8<<20 {
		t.Errorf("ArenaSize = %d", cfg.ArenaSize)
	}
	if cfg.SegmentSize != 16<<10 {
		t.Errorf("SegmentSize = %d", cfg.SegmentSize)
	}
	if cfg.Threshold != 1<<20 {
		t.Errorf("Threshold = %d", cfg.Threshold)
	}
	if cfg.Roots != 20 || cfg.Churn != 5000 || cfg.Seed != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Background || cfg.LogLevel != "debug" {
		t.Errorf("background/log level = %v/%q", cfg.Background, cfg.LogLevel)
	}
	if cfg.Initial != 1000 || cfg.RetainAbove != 96 {
		t.Errorf("unset fields lost their defaults: %+v", cfg)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		errs int
	}{
		{"unknown field", "arena: 1MB\n", 1},
		{"bad size", "arena_size: lots\n", 1},
		{"two bad sizes", "arena_size: lots\nsegment_size: some\n", 2},
		{"not yaml", "roots: [\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			err := parseConfig([]byte(tt.data), &cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if n := len(multierr.Errors(err)); n != tt.errs {
				t.Errorf("got %d errors (%v), want %d", n, err, tt.errs)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heapdemo.yaml")
	if err := os.WriteFile(path, []byte("roots: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := defaultConfig()
	if err := loadConfig(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Roots != 5 {
		t.Errorf("Roots = %d", cfg.Roots)
	}

	if err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"32MB", 32 << 20},
		{"64KB", 64 << 10},
		{" 1GB ", 1 << 30},
		{"512B", 512},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSize(tt.in)
			if err != nil {
				t.Fatalf("parseSize(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}

	var small uint32
	if err := setSize32(&small, "segment_size", "8GB"); err == nil {
		t.Error("expected overflow error")
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.Roots = 0
	cfg.Churn = -1
	if n := len(multierr.Errors(cfg.validate())); n != 2 {
		t.Errorf("got %d errors, want 2", n)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
	log, err := newLogger("debug", false)
	if err != nil {
		t.Fatal(err)
	}
	if !log.Core().Enabled(-1) {
		t.Error("debug level not enabled")
	}
}
