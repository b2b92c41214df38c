package tuner

import "fmt"

// ConfigError reports an invalid training setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// SplitError reports a dataset too small for the requested validation fraction.
type SplitError struct {
	N       int
	ValN    int
	ValFrac float64
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("validation fraction %g leaves no training rows (%d positions, %d held out)", e.ValFrac, e.N, e.ValN)
}
