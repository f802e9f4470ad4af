// Package engine defines the interpreter abstraction used by scriptrun: an
// Engine evaluates source text against a binding table that persists for the
// life of the Engine. The Registry maps a key (extension, language name or
// MIME type) to a fresh Engine, and the Cache memoizes one Engine per key for
// the duration of a run.
package engine

import (
	"context"
	"fmt"
)

// Engine is a stateful interpreter instance.
//
// The binding table is shared by every evaluation performed through the same
// Engine: a script evaluated earlier can set state that a later script reads.
type Engine interface {
	// Eval evaluates src. name labels the source in error messages; it is a
	// file path for discovered scripts and "<inline>" for the inline script.
	Eval(ctx context.Context, name, src string) error

	// Put binds value under name in the binding table.
	Put(name string, value any) error

	// Get returns the value bound under name. ok is false when the name was
	// never bound, which is distinct from a bound nil or undefined value.
	Get(name string) (value any, ok bool)
}

// Kind selects which identifier list of a Factory a key is matched against.
type Kind int

const (
	KindExtension Kind = iota
	KindName
	KindMimeType
)

func (k Kind) String() string {
	switch k {
	case KindExtension:
		return "extension"
	case KindName:
		return "language"
	case KindMimeType:
		return "mimeType"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Factory describes an engine implementation and how to construct it.
type Factory struct {
	// Name is the canonical engine name, e.g. "javascript".
	Name string

	Names      []string
	Extensions []string
	MimeTypes  []string

	// New constructs an Engine with an empty binding table.
	New func() (Engine, error)
}

// Keys returns the identifier list matched for kind.
func (f Factory) Keys(kind Kind) []string {
	switch kind {
	case KindExtension:
		return f.Extensions
	case KindName:
		return f.Names
	case KindMimeType:
		return f.MimeTypes
	default:
		return nil
	}
}

// NotFoundError reports that no registered engine matches a key.
type NotFoundError struct {
	Key  string
	Kind Kind
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("no engine with empty %s has been found", e.Kind)
	}
	return fmt.Sprintf("no engine with %s %q has been found", e.Kind, e.Key)
}
