package engine

import (
	"fmt"
	"slices"
)

// Registry resolves keys to newly constructed engines. It never caches: every
// successful Resolve returns a fresh Engine. Memoization is the Cache's job.
type Registry struct {
	factories []Factory
}

// NewRegistry creates a Registry holding the given factories. Registration
// order is lookup order: the first factory whose identifiers contain the key
// wins.
func NewRegistry(factories ...Factory) *Registry {
	r := &Registry{}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// Register appends a factory.
func (r *Registry) Register(f Factory) {
	r.factories = append(r.factories, f)
}

// Factories returns the registered factories in lookup order.
func (r *Registry) Factories() []Factory {
	return slices.Clone(r.factories)
}

// Lookup returns the factory matching key without constructing an engine.
func (r *Registry) Lookup(key string, kind Kind) (Factory, bool) {
	if key == "" {
		return Factory{}, false
	}
	for _, f := range r.factories {
		if slices.Contains(f.Keys(kind), key) {
			return f, true
		}
	}
	return Factory{}, false
}

// Resolve constructs a new engine for key. It returns *NotFoundError when no
// factory matches; a constructor failure is returned as a plain error so that
// callers can tell the two apart.
func (r *Registry) Resolve(key string, kind Kind) (Engine, error) {
	f, ok := r.Lookup(key, kind)
	if !ok {
		return nil, &NotFoundError{Key: key, Kind: kind}
	}
	e, err := f.New()
	if err != nil {
		return nil, fmt.Errorf("engine: create %s engine: %w", f.Name, err)
	}
	return e, nil
}
