package main

import "github.com/jward/scriptrun/internal/syntax"

// CLIResult is the top-level JSON envelope for the check, engines and
// history commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// Check statuses.
const (
	statusOK          = "ok"
	statusNoEngine    = "no-engine"
	statusSyntaxError = "syntax-error"
	statusUnchecked   = "unchecked"
)

// CLICheckExecution is the dry-run report for one execution.
type CLICheckExecution struct {
	ID     string             `json:"id"`
	Files  []CLICheckedScript `json:"files"`
	Inline *CLICheckedScript  `json:"inline,omitempty"`
}

// CLICheckedScript is the dry-run report for one script.
type CLICheckedScript struct {
	Source      string              `json:"source"`
	Key         string              `json:"key"`
	Engine      string              `json:"engine,omitempty"`
	Status      string              `json:"status"`
	Diagnostics []syntax.Diagnostic `json:"diagnostics,omitempty"`
}

// CLIEngine describes one registered engine.
type CLIEngine struct {
	Name       string   `json:"name"`
	Names      []string `json:"names"`
	Extensions []string `json:"extensions"`
	MimeTypes  []string `json:"mime_types"`
	Syntax     bool     `json:"syntax_check"`
}

// CLIRun is one journal run with its script outcomes.
type CLIRun struct {
	ID         string         `json:"id"`
	Execution  string         `json:"execution"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Scripts    []CLIScriptRun `json:"scripts,omitempty"`
}

// CLIScriptRun is one recorded script outcome.
type CLIScriptRun struct {
	Seq         int    `json:"seq"`
	Source      string `json:"source"`
	Key         string `json:"key"`
	Disposition string `json:"disposition"`
	Reason      string `json:"reason,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}
