package features

import "fmt"

// ExtractionError reports a malformed or incomplete extraction result.
type ExtractionError struct {
	Backend string
	Reason  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract (%s): %s", e.Backend, e.Reason)
}

// ProcessError reports a bridge process that exited unsuccessfully.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("bridge %q exited with status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}
