package engine

import (
	"errors"
	"fmt"
	"io"
)

// Binding is a named value injected into every engine the Cache creates.
type Binding struct {
	Name  string
	Value any
}

// Cache memoizes at most one Engine per key for the duration of a run.
//
// Later evaluations rely on state accumulated by earlier ones, so a key is
// resolved through the Registry only once. Bindings are applied when an
// engine is created and never again. A Cache is not safe for concurrent use.
type Cache struct {
	registry *Registry
	bindings []Binding
	engines  map[string]Engine
	keys     []string
}

// NewCache creates an empty Cache backed by r. Each binding is put into every
// engine at creation time.
func NewCache(r *Registry, bindings ...Binding) *Cache {
	return &Cache{
		registry: r,
		bindings: bindings,
		engines:  make(map[string]Engine),
	}
}

// GetOrCreate returns the engine cached under key, resolving it through the
// Registry with the given kind on a miss. The returned error is a
// *NotFoundError when no engine matches.
func (c *Cache) GetOrCreate(key string, kind Kind) (Engine, error) {
	if e, ok := c.engines[key]; ok {
		return e, nil
	}
	if key == "" {
		return nil, &NotFoundError{Key: key, Kind: kind}
	}

	e, err := c.registry.Resolve(key, kind)
	if err != nil {
		return nil, err
	}
	for _, b := range c.bindings {
		if err := e.Put(b.Name, b.Value); err != nil {
			return nil, fmt.Errorf("engine: bind %q: %w", b.Name, err)
		}
	}

	c.engines[key] = e
	c.keys = append(c.keys, key)
	return e, nil
}

// Get returns the engine cached under key, if any.
func (c *Cache) Get(key string) (Engine, bool) {
	e, ok := c.engines[key]
	return e, ok
}

// Keys returns the cached keys in creation order.
func (c *Cache) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of cached engines.
func (c *Cache) Len() int {
	return len(c.engines)
}

// Close releases every cached engine that implements io.Closer and empties
// the Cache. Errors from individual engines are joined.
func (c *Cache) Close() error {
	var errs []error
	for _, key := range c.keys {
		if cl, ok := c.engines[key].(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("engine: close %q: %w", key, err))
			}
		}
	}
	clear(c.engines)
	c.keys = nil
	return errors.Join(errs...)
}
