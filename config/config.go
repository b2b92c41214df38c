// Package config assembles a tuning run's settings from defaults, an optional
// YAML file and command-line flags, in that order of precedence.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"chess-tuner/features"
	"chess-tuner/tuner"
)

// Tune is everything cmd/texel needs for one run.
type Tune struct {
	Dataset      string `yaml:"dataset"`
	Schema       string `yaml:"schema"`
	Out          string `yaml:"out"`
	Cache        string `yaml:"cache"`
	Backend      string `yaml:"backend"`
	BridgeCmd    string `yaml:"bridge_cmd"`
	MaxPositions int    `yaml:"max_positions"`
	TuneTables   bool   `yaml:"tune_tables"`
	LogLevel     string `yaml:"log_level"`
	LogJSON      bool   `yaml:"log_json"`

	Train tuner.Config `yaml:",inline"`

	ConfigPath string `yaml:"-"`
}

// Default returns the settings used when neither file nor flag says otherwise.
func Default() Tune {
	return Tune{
		Out:      "texel_scales.json",
		Backend:  features.BackendReference,
		LogLevel: "info",
		Train:    tuner.DefaultConfig(),
	}
}

// LoadFile overlays the YAML file at path onto t. Unknown keys are errors.
func LoadFile(path string, t *Tune) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(b, t); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// bind registers every flag on fs with t's current values as defaults.
func bind(fs *flag.FlagSet, t *Tune) {
	fs.StringVar(&t.ConfigPath, "config", t.ConfigPath, "YAML config file; explicit flags override it")
	fs.StringVar(&t.Dataset, "dataset", t.Dataset, "labelled positions (csv, tsv or epd)")
	fs.StringVar(&t.Schema, "schema", t.Schema, "parameter source holding the base values")
	fs.StringVar(&t.Out, "out", t.Out, "where to write the fitted-parameter record")
	fs.StringVar(&t.Cache, "cache", t.Cache, "feature matrix cache file (empty disables caching)")
	fs.StringVar(&t.Backend, "backend", t.Backend, `feature backend: "reference" or "bridge"`)
	fs.StringVar(&t.BridgeCmd, "bridge-cmd", t.BridgeCmd, "command line of the bridge process")
	fs.IntVar(&t.MaxPositions, "max-positions", t.MaxPositions, "cap on positions loaded (0=all)")
	fs.BoolVar(&t.TuneTables, "tune-tables", t.TuneTables, "also fit material and positional table scales")
	fs.StringVar(&t.LogLevel, "log-level", t.LogLevel, "trace, debug, info, warn or error")
	fs.BoolVar(&t.LogJSON, "log-json", t.LogJSON, "log JSON lines instead of console output")

	c := &t.Train
	fs.IntVar(&c.Iters, "iters", c.Iters, "Adam steps")
	fs.Float64Var(&c.LR, "lr", c.LR, "Adam learning rate")
	fs.Float64Var(&c.L2, "l2", c.L2, "L2 pull toward scale 1")
	fs.Float64Var(&c.FixedK, "k", c.FixedK, "fixed logistic slope; 0 searches for it")
	fs.Float64Var(&c.KMin, "k-min", c.KMin, "lower bound of the slope search")
	fs.Float64Var(&c.KMax, "k-max", c.KMax, "upper bound of the slope search")
	fs.IntVar(&c.KSearchIters, "k-search-iters", c.KSearchIters, "golden-section iterations")
	fs.Float64Var(&c.ScaleMin, "scale-min", c.ScaleMin, "lower clip for every scale")
	fs.Float64Var(&c.ScaleMax, "scale-max", c.ScaleMax, "upper clip for every scale")
	fs.Float64Var(&c.ValFrac, "val-frac", c.ValFrac, "fraction of positions held out for validation")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "shuffle seed for the train/validation split")
	fs.IntVar(&c.LogEvery, "log-every", c.LogEvery, "validation and progress interval in steps")
}

// Parse resolves args into a Tune. When -config names a file, the file is
// loaded over the defaults and the flags given explicitly are applied on top.
func Parse(name string, args []string, output io.Writer) (Tune, error) {
	t := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	bind(fs, &t)
	if err := fs.Parse(args); err != nil {
		return Tune{}, err
	}
	if t.ConfigPath == "" {
		return t, t.Validate()
	}

	merged := Default()
	if err := LoadFile(t.ConfigPath, &merged); err != nil {
		return Tune{}, err
	}
	explicit := flag.NewFlagSet(name, flag.ContinueOnError)
	explicit.SetOutput(io.Discard)
	bind(explicit, &merged)
	if err := explicit.Parse(args); err != nil {
		return Tune{}, err
	}
	return merged, merged.Validate()
}

// Validate checks the run-level settings and then the training ones.
func (t Tune) Validate() error {
	if t.Dataset == "" {
		return &tuner.ConfigError{Field: "dataset", Reason: "is required"}
	}
	if t.Schema == "" {
		return &tuner.ConfigError{Field: "schema", Reason: "is required"}
	}
	if t.Out == "" {
		return &tuner.ConfigError{Field: "out", Reason: "is required"}
	}
	switch t.Backend {
	case features.BackendReference:
	case features.BackendBridge:
		if t.BridgeCmd == "" {
			return &tuner.ConfigError{Field: "bridge_cmd", Reason: "is required for the bridge backend"}
		}
	default:
		return &tuner.ConfigError{Field: "backend", Reason: fmt.Sprintf("%q is not reference or bridge", t.Backend)}
	}
	if t.MaxPositions < 0 {
		return &tuner.ConfigError{Field: "max_positions", Reason: "must be >= 0"}
	}
	if _, err := zerolog.ParseLevel(t.LogLevel); err != nil {
		return &tuner.ConfigError{Field: "log_level", Reason: err.Error()}
	}
	return t.Train.Validate()
}
