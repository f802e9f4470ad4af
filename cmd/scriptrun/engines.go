package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/scriptrun"
	"github.com/jward/scriptrun/internal/syntax"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the built-in script engines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return outputResult(CLIResult{Command: "engines", Results: listEngines(scriptrun.DefaultRegistry(logger))})
	},
}

func listEngines(registry *scriptrun.Registry) []CLIEngine {
	var out []CLIEngine
	for _, f := range registry.Factories() {
		out = append(out, CLIEngine{
			Name:       f.Name,
			Names:      f.Names,
			Extensions: f.Extensions,
			MimeTypes:  f.MimeTypes,
			Syntax:     syntax.Supported(f.Name),
		})
	}
	return out
}
