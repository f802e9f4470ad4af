// Package scriptrun runs a project's script files through embedded scripting
// engines. It discovers files under the project's script source roots,
// filters them with include and exclude glob patterns, evaluates each file
// with the engine registered for its extension, and finally evaluates an
// optional inline script.
//
// # Engines
//
// Three engines are built in: JavaScript (goja), Lua (gopher-lua) and Risor.
// An engine is found by one of three keys, see [EngineKind]:
//
//   - extension, e.g. "js", "lua", "risor" (used for discovered files)
//   - language name, e.g. "javascript"
//   - MIME type, e.g. "application/javascript"
//
// Within one run a key maps to exactly one engine instance, so globals set by
// one script are visible to every later script with the same key.
//
// # Usage
//
//	project := &scriptrun.Project{
//		Name:              "demo",
//		BaseDir:           "/path/to/project",
//		ScriptSourceRoots: []string{"src/main/scripts"},
//	}
//	r := scriptrun.New(project, scriptrun.Config{
//		Includes:              []string{"**/*.js"},
//		Language:              "javascript",
//		Script:                "executed = true",
//		PassProjectAsProperty: true,
//	}, scriptrun.WithLogger(logger))
//	if err := r.Execute(ctx); err != nil { ... }
//
//	e, _ := r.Engine("javascript")
//	v, ok := e.Get("executed")
//
// # Failure policy
//
// A discovered file whose extension has no engine is skipped with a warning.
// Everything else ends the run with an [*ExecutionError]: a script that
// raises, an inline script whose engine cannot be found, an inline script
// with no language configured, or a cancelled context.
//
// The cmd/scriptrun command drives the same Runner from an HCL build
// descriptor and can record runs in a SQLite journal.
package scriptrun
