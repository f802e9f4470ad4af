package scriptrun

import (
	"fmt"

	"github.com/jward/scriptrun/internal/engine"
)

// EngineNotFoundError reports that no registered engine matches a key. While
// executing discovered files it only causes the file to be skipped; for the
// inline script it is fatal.
type EngineNotFoundError = engine.NotFoundError

// ScriptEvaluationError reports that an engine raised an error while
// evaluating a source. It is always fatal.
type ScriptEvaluationError struct {
	// Source is the script file path, or InlineSource.
	Source string
	// Key is the engine key the source was evaluated with.
	Key string
	Err error
}

func (e *ScriptEvaluationError) Error() string {
	return fmt.Sprintf("error evaluating %s with engine %q: %v", e.Source, e.Key, e.Err)
}

func (e *ScriptEvaluationError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an unusable configuration value.
type ConfigurationError struct {
	Option string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Option, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Option, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ExecutionError is the single failure returned by Runner.Execute. Err holds
// the original cause: an *EngineNotFoundError, *ScriptEvaluationError,
// *ConfigurationError, a context error or an I/O error.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return "scriptrun: execution failed: " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
