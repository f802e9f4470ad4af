package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/scriptrun"
	"github.com/jward/scriptrun/internal/config"
	"github.com/jward/scriptrun/internal/syntax"
)

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Dry-run a build descriptor",
	Long:  "Lists the scripts each execution would run, the engine each resolves to, and any syntax errors found by parsing them. Nothing is evaluated.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&flagExecution, "execution", "", "check only the execution with this id")
}

func runCheck(cmd *cobra.Command, args []string) error {
	d, err := loadDescriptor(args)
	if err != nil {
		return outputError("check", err)
	}
	execs, err := selectExecutions(d, flagExecution)
	if err != nil {
		return outputError("check", err)
	}

	registry := scriptrun.DefaultRegistry(logger)
	var report []CLICheckExecution
	failed := false
	for _, e := range execs {
		ce, err := checkExecution(cmd.Context(), registry, d.Project, e)
		if err != nil {
			return outputError("check", err)
		}
		report = append(report, ce)
		failed = failed || ce.hasProblems()
	}

	if err := outputResult(CLIResult{Command: "check", Results: report}); err != nil {
		return err
	}
	if failed {
		errorHandled = true
		return fmt.Errorf("check found problems")
	}
	return nil
}

func checkExecution(ctx context.Context, registry *scriptrun.Registry, project *scriptrun.Project, e config.Execution) (CLICheckExecution, error) {
	r := scriptrun.New(project, e.Config, scriptrun.WithRegistry(registry), scriptrun.WithLogger(logger), scriptrun.WithLabel(e.ID))
	files, err := r.Discover()
	if err != nil {
		return CLICheckExecution{}, fmt.Errorf("execution %q: %w", e.ID, err)
	}

	ce := CLICheckExecution{ID: e.ID, Files: []CLICheckedScript{}}
	for _, f := range files {
		src, err := os.ReadFile(f.Path)
		if err != nil {
			return CLICheckExecution{}, fmt.Errorf("reading %s: %w", f.Path, err)
		}
		ce.Files = append(ce.Files, checkScript(ctx, registry, f.Path, f.Key, scriptrun.KindExtension, src))
	}

	if e.Config.Script != "" {
		key, kind, _ := e.Config.InlineSelector()
		cs := checkScript(ctx, registry, scriptrun.InlineSource, key, kind, []byte(e.Config.Script))
		ce.Inline = &cs
	}
	return ce, nil
}

// checkScript resolves the engine for key without instantiating it, then
// parses src if a grammar is bundled for that engine.
func checkScript(ctx context.Context, registry *scriptrun.Registry, source, key string, kind scriptrun.EngineKind, src []byte) CLICheckedScript {
	cs := CLICheckedScript{Source: source, Key: key}
	fac, ok := registry.Lookup(key, kind)
	if !ok {
		cs.Status = statusNoEngine
		return cs
	}
	cs.Engine = fac.Name
	if !syntax.Supported(fac.Name) {
		cs.Status = statusUnchecked
		return cs
	}

	diags, err := syntax.Check(ctx, fac.Name, src)
	if err != nil {
		cs.Status = statusUnchecked
		logger.Warn("syntax check failed", "source", source, "error", err)
		return cs
	}
	cs.Diagnostics = diags
	cs.Status = statusOK
	if len(diags) > 0 {
		cs.Status = statusSyntaxError
	}
	return cs
}

// hasProblems reports syntax errors anywhere, or an inline script without an
// engine. Files without an engine are skipped at run time and do not count.
func (ce CLICheckExecution) hasProblems() bool {
	for _, f := range ce.Files {
		if f.Status == statusSyntaxError {
			return true
		}
	}
	if ce.Inline != nil {
		return ce.Inline.Status == statusSyntaxError || ce.Inline.Status == statusNoEngine
	}
	return false
}
