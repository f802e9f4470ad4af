package scriptrun

import (
	"github.com/jward/scriptrun/internal/discovery"
	"github.com/jward/scriptrun/internal/engine"
)

// Public type aliases for internal types used in the Runner API.
// These are Go type aliases (=): identical to the internal types at compile
// time, so external consumers need no conversion.

type Engine = engine.Engine
type EngineFactory = engine.Factory
type EngineKind = engine.Kind
type Registry = engine.Registry
type Cache = engine.Cache
type Binding = engine.Binding
type ScriptFile = discovery.File

const (
	KindExtension = engine.KindExtension
	KindName      = engine.KindName
	KindMimeType  = engine.KindMimeType
)

// NewRegistry creates a registry from the given engine factories.
func NewRegistry(factories ...EngineFactory) *Registry {
	return engine.NewRegistry(factories...)
}

// NewCache creates an engine cache backed by r.
func NewCache(r *Registry, bindings ...Binding) *Cache {
	return engine.NewCache(r, bindings...)
}
