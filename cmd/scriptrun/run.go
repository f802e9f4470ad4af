package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/scriptrun"
	"github.com/jward/scriptrun/internal/config"
	"github.com/jward/scriptrun/internal/journal"
	"github.com/jward/scriptrun/internal/watch"
)

// defaultJournalPath is relative to the descriptor's directory.
const defaultJournalPath = ".scriptrun/journal.db"

var (
	flagExecution string
	flagJournal   string
	flagWatch     bool
	flagDebounce  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run the executions of a build descriptor",
	Long:  "Loads the build descriptor (default scriptrun.hcl) and runs each execution in file order. Discovered script files run first, then the inline script. The first failing execution stops the command.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagExecution, "execution", "", "run only the execution with this id")
	runCmd.Flags().StringVar(&flagJournal, "journal", defaultJournalPath, "run journal database path (empty disables the journal)")
	runCmd.Flags().BoolVar(&flagWatch, "watch", false, "re-run when files under the script source roots change")
	runCmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultDebounce, "quiet window before a watched change triggers a run")
}

func runRun(cmd *cobra.Command, args []string) error {
	d, err := loadDescriptor(args)
	if err != nil {
		return err
	}
	execs, err := selectExecutions(d, flagExecution)
	if err != nil {
		return err
	}

	var rec scriptrun.Recorder
	if flagJournal != "" {
		store, err := openJournal(resolveJournalPath(d, flagJournal))
		if err != nil {
			return err
		}
		defer store.Close()
		rec = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := runExecutions(ctx, d.Project, execs, rec)
	if !flagWatch {
		return runErr
	}
	if runErr != nil {
		logger.Error("initial run failed, watching for changes", "error", runErr)
	}
	return watchAndRun(ctx, d.Project, execs, rec)
}

// runExecutions runs each execution with a fresh Runner, stopping at the
// first failure.
func runExecutions(ctx context.Context, project *scriptrun.Project, execs []config.Execution, rec scriptrun.Recorder) error {
	for _, e := range execs {
		opts := []scriptrun.Option{
			scriptrun.WithLogger(logger),
			scriptrun.WithLabel(e.ID),
		}
		if rec != nil {
			opts = append(opts, scriptrun.WithRecorder(rec))
		}
		r := scriptrun.New(project, e.Config, opts...)
		err := r.Execute(ctx)
		printOutcomes(e.ID, r.Outcomes())
		if cerr := r.Close(); cerr != nil {
			logger.Warn("closing engines", "execution", e.ID, "error", cerr)
		}
		if err != nil {
			return fmt.Errorf("execution %q: %w", e.ID, err)
		}
	}
	return nil
}

func watchAndRun(ctx context.Context, project *scriptrun.Project, execs []config.Execution, rec scriptrun.Recorder) error {
	w, err := watch.New(watch.WithLogger(logger), watch.WithDebounce(flagDebounce))
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range project.SourceRoots() {
		if err := w.AddRoot(root); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "Watching %d root(s), press Ctrl-C to stop\n", len(w.Roots()))

	return w.Run(ctx, func(ctx context.Context, paths []string) {
		if err := runExecutions(ctx, project, execs, rec); err != nil {
			logger.Error("run failed", "error", err)
		}
	})
}

// printOutcomes writes a one-line summary per handled script to stderr.
func printOutcomes(id string, outcomes []scriptrun.Outcome) {
	for _, o := range outcomes {
		line := fmt.Sprintf("[%s] %-8s %s", id, o.Disposition, o.Source)
		if o.Reason != "" {
			line += ": " + o.Reason
		}
		fmt.Fprintln(os.Stderr, line)
	}
}

// loadDescriptor loads the descriptor named by args, or scriptrun.hcl.
func loadDescriptor(args []string) (*config.Descriptor, error) {
	path := config.DefaultFile
	if len(args) > 0 {
		path = args[0]
	}
	return config.Load(path)
}

// selectExecutions returns every execution, or only the one named id.
func selectExecutions(d *config.Descriptor, id string) ([]config.Execution, error) {
	if id == "" {
		if len(d.Executions) == 0 {
			return nil, fmt.Errorf("%s declares no executions", d.Path)
		}
		return d.Executions, nil
	}
	e, ok := d.Execution(id)
	if !ok {
		return nil, fmt.Errorf("execution %q not found in %s", id, d.Path)
	}
	return []config.Execution{e}, nil
}

// resolveJournalPath anchors a relative journal path at the descriptor's
// directory.
func resolveJournalPath(d *config.Descriptor, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(d.Path), path)
}

func openJournal(path string) (*journal.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return journal.Open(path)
}
