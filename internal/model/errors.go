package model

import "fmt"

// ConfigurationError reports invalid run inputs: malformed mnemonic files,
// inconsistent segment parameters, missing files, bad patterns. It is raised
// before any Evaluator call and never recovered.
type ConfigurationError struct {
	msg string
	err error
}

// NewConfigurationError builds a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

// WrapConfigurationError builds a ConfigurationError around an underlying
// cause.
func WrapConfigurationError(err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...), err: err}
}

func (e *ConfigurationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.msg, e.err)
	}
	return "configuration: " + e.msg
}

func (e *ConfigurationError) Unwrap() error { return e.err }

// StateError reports an illegal Program Model transition: removing a line
// that is already removed or unknown, or restoring one that is not removed.
// It indicates a logic bug in the driving algorithm and is always fatal.
type StateError struct {
	Op string
	ID CodelineID
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: illegal %s of codeline %s", e.Op, e.ID)
}

// FatalEvaluationError aborts the run when consecutive evaluation failures
// exceed the configured ceiling. The last known-good program and the decision
// log up to this point remain valid.
type FatalEvaluationError struct {
	Consecutive int
	Ceiling     int
	Last        EvaluationResult
}

func (e *FatalEvaluationError) Error() string {
	return fmt.Sprintf("evaluation: %d consecutive failures exceed ceiling %d (last: %s in %s: %s)",
		e.Consecutive, e.Ceiling, e.Last.Status, e.Last.Phase, e.Last.Diagnostic)
}
