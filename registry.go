package scriptrun

import (
	"log/slog"

	"github.com/jward/scriptrun/internal/engine"
	"github.com/jward/scriptrun/internal/engine/jsengine"
	"github.com/jward/scriptrun/internal/engine/luaengine"
	"github.com/jward/scriptrun/internal/engine/risorengine"
)

// DefaultRegistry returns a new registry holding the built-in engines:
// JavaScript, Lua and Risor. Script console output goes to logger.
func DefaultRegistry(logger *slog.Logger) *Registry {
	return engine.NewRegistry(
		jsengine.Factory(logger),
		luaengine.Factory(),
		risorengine.Factory(logger),
	)
}
