package scriptrun

import (
	"errors"
	"time"
)

// Disposition is what happened to one script source.
type Disposition int

const (
	Executed Disposition = iota
	Skipped
	Failed
)

func (d Disposition) String() string {
	switch d {
	case Executed:
		return "executed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome records the result of handling one script source. The run loop
// branches on Disposition: Skipped continues with the next file, Failed ends
// the run.
type Outcome struct {
	Source      string
	Key         string
	Disposition Disposition
	Reason      string
	Err         error
	Duration    time.Duration
}

// classify maps the error from resolving or evaluating source into an
// Outcome. A missing engine is skippable; every other error, including any
// evaluation error, is fatal.
func classify(source, key string, err error) Outcome {
	out := Outcome{Source: source, Key: key}
	var (
		evalErr  *ScriptEvaluationError
		notFound *EngineNotFoundError
	)
	switch {
	case err == nil:
		out.Disposition = Executed
	case errors.As(err, &evalErr):
		out.Disposition = Failed
		out.Reason = err.Error()
		out.Err = err
	case errors.As(err, &notFound):
		out.Disposition = Skipped
		out.Reason = err.Error()
		out.Err = err
	default:
		out.Disposition = Failed
		out.Reason = err.Error()
		out.Err = err
	}
	return out
}

// fatal promotes a Skipped outcome to Failed. Used where no fallback exists.
func (o Outcome) fatal() Outcome {
	if o.Disposition == Skipped {
		o.Disposition = Failed
	}
	return o
}
