// tuner/types.go
package tuner

import "fmt"

// Config controls slope calibration and scale fitting.
type Config struct {
	Iters        int     `yaml:"iters" json:"iters"`
	LR           float64 `yaml:"lr" json:"lr"`
	L2           float64 `yaml:"l2" json:"l2"`
	KMin         float64 `yaml:"k_min" json:"k_min"`
	KMax         float64 `yaml:"k_max" json:"k_max"`
	KSearchIters int     `yaml:"k_search_iters" json:"k_search_iters"`
	FixedK       float64 `yaml:"k" json:"k,omitempty"` // > 0 skips the slope search
	ScaleMin     float64 `yaml:"scale_min" json:"scale_min"`
	ScaleMax     float64 `yaml:"scale_max" json:"scale_max"`
	ValFrac      float64 `yaml:"val_frac" json:"val_frac"`
	Seed         int64   `yaml:"seed" json:"seed"`
	LogEvery     int     `yaml:"log_every" json:"log_every"`
}

// DefaultConfig returns the settings the tuner has always shipped with.
func DefaultConfig() Config {
	return Config{
		Iters:        400,
		LR:           0.02,
		L2:           1e-4,
		KMin:         1e-4,
		KMax:         0.02,
		KSearchIters: 60,
		ScaleMin:     0,
		ScaleMax:     3,
		ValFrac:      0.1,
		Seed:         42,
		LogEvery:     20,
	}
}

// Validate rejects unusable settings before any data is touched.
func (c Config) Validate() error {
	bad := func(field, format string, args ...any) error {
		return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	switch {
	case c.FixedK < 0:
		return bad("k", "must not be negative, got %g", c.FixedK)
	case c.KMin <= 0:
		return bad("k_min", "must be positive, got %g", c.KMin)
	case c.KMin >= c.KMax:
		return bad("k_max", "must exceed k_min (%g >= %g)", c.KMin, c.KMax)
	case c.KSearchIters <= 0:
		return bad("k_search_iters", "must be positive, got %d", c.KSearchIters)
	case c.ScaleMin > c.ScaleMax:
		return bad("scale_max", "must not be below scale_min (%g < %g)", c.ScaleMax, c.ScaleMin)
	case c.ValFrac < 0 || c.ValFrac >= 1:
		return bad("val_frac", "must be in [0,1), got %g", c.ValFrac)
	case c.Iters <= 0:
		return bad("iters", "must be positive, got %d", c.Iters)
	case c.LR <= 0:
		return bad("lr", "must be positive, got %g", c.LR)
	case c.L2 < 0:
		return bad("l2", "must not be negative, got %g", c.L2)
	}
	return nil
}

// Checkpoint is one validation measurement during fitting.
type Checkpoint struct {
	Iter     int     `json:"iter"`
	Loss     float64 `json:"loss"`
	TrainMSE float64 `json:"train_mse"`
	ValMSE   float64 `json:"val_mse"`
}

// Result is what Train produces.
type Result struct {
	Columns []string
	Scales  []float64 // best-validation scales, aligned with Columns
	K       float64
	KMethod string

	NumPositions, NumTrain, NumVal int

	InitialTrainMSE, InitialValMSE float64
	BestTrainMSE, BestValMSE       float64
	BestIter                       int
	Checkpoints                    []Checkpoint
}

// Scale returns the fitted scale of a column, or 1 if it was not tuned.
func (r *Result) Scale(name string) float64 {
	for i, c := range r.Columns {
		if c == name {
			return r.Scales[i]
		}
	}
	return 1
}
