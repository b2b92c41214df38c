package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chess-tuner/tuner"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tune.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestParseDefaults(t *testing.T) {
	got, err := Parse("texel", []string{"-dataset", "d.csv", "-schema", "eval.c"}, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := tuner.DefaultConfig()
	if got.Train != want {
		t.Fatalf("train config = %+v, want %+v", got.Train, want)
	}
	if got.Backend != "reference" || got.Out != "texel_scales.json" || got.LogLevel != "info" {
		t.Fatalf("unexpected run defaults: %+v", got)
	}
}

func TestParsePrecedence(t *testing.T) {
	path := writeYAML(t, `
dataset: from_file.csv
schema: eval.c
iters: 50
lr: 0.5
seed: 7
tune_tables: true
`)
	got, err := Parse("texel", []string{"-config", path, "-lr", "0.1", "-dataset", "flag.csv"}, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tests := []struct {
		name string
		ok   bool
	}{
		{"flag overrides file lr", got.Train.LR == 0.1},
		{"flag overrides file dataset", got.Dataset == "flag.csv"},
		{"file overrides default iters", got.Train.Iters == 50},
		{"file overrides default seed", got.Train.Seed == 7},
		{"file sets tune_tables", got.TuneTables},
		{"default kept", got.Train.ValFrac == 0.1},
	}
	for _, tt := range tests {
		if !tt.ok {
			t.Fatalf("%s: got %+v", tt.name, got)
		}
	}
}

func TestLoadFileUnknownKey(t *testing.T) {
	path := writeYAML(t, "itres: 10\n")
	cfg := Default()
	if err := LoadFile(path, &cfg); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Dataset, base.Schema = "d.csv", "eval.c"
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		field string
		edit  func(*Tune)
	}{
		{"dataset", func(c *Tune) { c.Dataset = "" }},
		{"schema", func(c *Tune) { c.Schema = "" }},
		{"backend", func(c *Tune) { c.Backend = "engine" }},
		{"bridge_cmd", func(c *Tune) { c.Backend = "bridge" }},
		{"max_positions", func(c *Tune) { c.MaxPositions = -1 }},
		{"log_level", func(c *Tune) { c.LogLevel = "loud" }},
		{"iters", func(c *Tune) { c.Train.Iters = 0 }},
	}
	for _, tt := range tests {
		c := base
		tt.edit(&c)
		var ce *tuner.ConfigError
		if err := c.Validate(); !errors.As(err, &ce) || ce.Field != tt.field {
			t.Fatalf("%s: err = %v", tt.field, err)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, "warn", true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Int("step", 3).Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"step":3`) {
		t.Fatalf("unexpected log output %q", out)
	}
	if _, err := NewLogger(&buf, "loud", false); err == nil {
		t.Fatalf("expected error for bad level")
	}
}
