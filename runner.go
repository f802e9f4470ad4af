package scriptrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jward/scriptrun/internal/discovery"
	"github.com/jward/scriptrun/internal/engine"
)

// State is the Runner's position in its run.
type State int

const (
	StateIdle State = iota
	StateDiscovering
	StateExecutingFiles
	StateExecutingInline
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateExecutingFiles:
		return "executing-files"
	case StateExecutingInline:
		return "executing-inline"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Recorder receives the progress of a run. The journal implements it.
type Recorder interface {
	BeginRun(ctx context.Context, runID, execution string, started time.Time) error
	RecordOutcome(ctx context.Context, runID string, seq int, o Outcome) error
	FinishRun(ctx context.Context, runID string, finished time.Time, runErr error) error
}

// Runner discovers script files, evaluates each through the engine keyed by
// its extension, then evaluates the inline script. A Runner owns its engine
// cache and runs once; scripts sharing a key share one engine and its
// bindings for the whole run. Engines stay open after Execute so their
// bindings can be read; call Close to release them.
type Runner struct {
	project  *Project
	cfg      Config
	registry *Registry
	cache    *Cache
	ownCache bool
	logger   *slog.Logger
	recorder Recorder
	label    string

	runID    string
	state    State
	outcomes []Outcome
}

// Option configures a Runner.
type Option func(*Runner)

// WithRegistry sets the engine registry. Defaults to DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(rn *Runner) {
		rn.registry = r
	}
}

// WithCache hands the Runner a pre-built engine cache. The caller is then
// responsible for its creation-time bindings; the project property settings
// of Config are not applied.
func WithCache(c *Cache) Option {
	return func(rn *Runner) {
		rn.cache = c
	}
}

// WithLogger sets the logger for warnings and progress.
func WithLogger(l *slog.Logger) Option {
	return func(rn *Runner) {
		rn.logger = l
	}
}

// WithRecorder reports every outcome of the run to rec.
func WithRecorder(rec Recorder) Option {
	return func(rn *Runner) {
		rn.recorder = rec
	}
}

// WithLabel names the execution in logs and the journal.
func WithLabel(label string) Option {
	return func(rn *Runner) {
		rn.label = label
	}
}

// New creates a Runner for project with cfg. project may be nil, in which
// case there are no script source roots and no project binding value.
func New(project *Project, cfg Config, opts ...Option) *Runner {
	r := &Runner{
		project: project,
		cfg:     cfg,
		label:   "default",
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.registry == nil {
		r.registry = DefaultRegistry(r.logger)
	}
	if r.cache == nil {
		var bindings []Binding
		if cfg.PassProjectAsProperty {
			bindings = append(bindings, Binding{Name: cfg.projectPropertyName(), Value: project})
		}
		r.cache = engine.NewCache(r.registry, bindings...)
		r.ownCache = true
	}
	r.logger = r.logger.With("run_id", r.runID, "execution", r.label)
	return r
}

// Close releases the engines of a cache the Runner created. A cache passed
// with WithCache belongs to the caller and is left open.
func (r *Runner) Close() error {
	if !r.ownCache {
		return nil
	}
	return r.cache.Close()
}

// RunID returns the identifier attached to this run's logs and journal rows.
func (r *Runner) RunID() string { return r.runID }

// State returns the current state.
func (r *Runner) State() State { return r.state }

// Outcomes returns one entry per script handled so far, in order.
func (r *Runner) Outcomes() []Outcome {
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Engine returns the cached engine for key, letting callers inspect the
// bindings left behind by a run.
func (r *Runner) Engine(key string) (Engine, bool) {
	return r.cache.Get(key)
}

// Discover returns the script files this Runner would execute, without
// executing anything.
func (r *Runner) Discover() ([]ScriptFile, error) {
	files, err := discovery.Discover(r.project.SourceRoots(), r.cfg.Filter(), r.logger)
	if err != nil {
		var perr *discovery.PatternError
		if errors.As(err, &perr) {
			return nil, &ConfigurationError{Option: "includes/excludes", Reason: "bad glob pattern", Err: err}
		}
		return nil, err
	}
	return files, nil
}

// Execute performs the run. Discovered files execute first, in order; a file
// whose extension has no engine is skipped with a warning. The inline script,
// if configured, runs last. Any other failure stops the run and is returned
// as an *ExecutionError.
func (r *Runner) Execute(ctx context.Context) (err error) {
	if r.state != StateIdle {
		return fmt.Errorf("scriptrun: runner already used (state %s)", r.state)
	}

	started := time.Now()
	if r.recorder != nil {
		if rerr := r.recorder.BeginRun(ctx, r.runID, r.label, started); rerr != nil {
			r.logger.Warn("journal: begin run", "error", rerr)
		}
		defer func() {
			if rerr := r.recorder.FinishRun(context.WithoutCancel(ctx), r.runID, time.Now(), err); rerr != nil {
				r.logger.Warn("journal: finish run", "error", rerr)
			}
		}()
	}

	r.state = StateDiscovering
	files, err := r.Discover()
	if err != nil {
		return r.fail(err)
	}

	r.state = StateExecutingFiles
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}
		out := r.executeFile(ctx, f)
		r.record(ctx, out)

		switch out.Disposition {
		case Skipped:
			r.logger.Warn("no engine for script, skipping", "file", f.Path, "key", f.Key)
			continue
		case Failed:
			return r.fail(out.Err)
		}
	}

	if r.cfg.Script != "" {
		r.state = StateExecutingInline
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}
		out := r.executeInline(ctx)
		r.record(ctx, out)
		if out.Disposition == Failed {
			return r.fail(out.Err)
		}
	}

	r.state = StateDone
	r.logger.Info("run complete", "scripts", len(r.outcomes), "engines", r.cache.Len(), "duration", time.Since(started))
	return nil
}

func (r *Runner) executeFile(ctx context.Context, f ScriptFile) Outcome {
	start := time.Now()
	eng, err := r.cache.GetOrCreate(f.Key, engine.KindExtension)
	if err != nil {
		return classify(f.Path, f.Key, err)
	}

	src, err := os.ReadFile(f.Path)
	if err != nil {
		return classify(f.Path, f.Key, fmt.Errorf("scriptrun: read %s: %w", f.Path, err))
	}

	r.logger.Info("executing script", "file", f.Path, "key", f.Key)
	err = r.eval(ctx, eng, f.Path, f.Key, string(src))
	out := classify(f.Path, f.Key, err)
	out.Duration = time.Since(start)
	return out
}

func (r *Runner) executeInline(ctx context.Context) Outcome {
	start := time.Now()
	key, kind, ok := r.cfg.InlineSelector()
	if !ok {
		return classify(InlineSource, "", errLanguageRequired())
	}

	eng, err := r.cache.GetOrCreate(key, kind)
	if err != nil {
		// The inline script was explicitly requested and has no fallback.
		return classify(InlineSource, key, err).fatal()
	}

	r.logger.Info("executing inline script", "key", key, "kind", kind)
	err = r.eval(ctx, eng, InlineSource, key, r.cfg.Script)
	out := classify(InlineSource, key, err)
	out.Duration = time.Since(start)
	return out
}

func (r *Runner) eval(ctx context.Context, eng Engine, source, key, src string) error {
	if err := eng.Eval(ctx, source, src); err != nil {
		return &ScriptEvaluationError{Source: source, Key: key, Err: err}
	}
	return nil
}

func (r *Runner) record(ctx context.Context, out Outcome) {
	r.outcomes = append(r.outcomes, out)
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordOutcome(ctx, r.runID, len(r.outcomes), out); err != nil {
		r.logger.Warn("journal: record outcome", "source", out.Source, "error", err)
	}
}

func (r *Runner) fail(err error) error {
	r.state = StateFailed
	r.logger.Error("run failed", "error", err)
	return &ExecutionError{Err: err}
}
