package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLICheckExecution:
		formatCheckText(w, v)
	case []CLIEngine:
		formatEnginesText(w, v)
	case []CLIRun:
		formatRunsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// formatCheckText prints one block per execution, one line per script, and
// the diagnostics indented below their script.
func formatCheckText(w io.Writer, execs []CLICheckExecution) {
	for i, e := range execs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Execution %s\n", e.ID)
		scripts := e.Files
		if e.Inline != nil {
			scripts = append(scripts[:len(scripts):len(scripts)], *e.Inline)
		}
		if len(scripts) == 0 {
			fmt.Fprintln(w, "  (no scripts)")
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, s := range scripts {
			engine := s.Engine
			if engine == "" {
				engine = "-"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", s.Status, engine, s.Source)
		}
		tw.Flush()
		for _, s := range scripts {
			for _, d := range s.Diagnostics {
				fmt.Fprintf(w, "  %s:%s\n", s.Source, d)
			}
		}
	}
}

// formatEnginesText formats CLIEngine results as aligned columns.
func formatEnginesText(w io.Writer, engines []CLIEngine) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENGINE\tEXTENSIONS\tNAMES\tSYNTAX")
	for _, e := range engines {
		syntax := "no"
		if e.Syntax {
			syntax = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Name, strings.Join(e.Extensions, ","), strings.Join(e.Names, ","), syntax)
	}
	tw.Flush()
}

// formatRunsText formats CLIRun results as aligned columns, each run
// followed by its scripts.
func formatRunsText(w io.Writer, runs []CLIRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tEXECUTION\tSTARTED\tSTATUS\tSCRIPTS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Execution, r.StartedAt, r.Status, len(r.Scripts))
		for _, s := range r.Scripts {
			detail := s.Source
			if s.Reason != "" {
				detail += " (" + s.Reason + ")"
			}
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%dms\n", s.Seq, s.Key, detail, s.Disposition, s.DurationMS)
		}
		if r.Error != "" {
			fmt.Fprintf(tw, "  error\t%s\t\t\t\n", r.Error)
		}
	}
	tw.Flush()
}
