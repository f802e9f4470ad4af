// Package jsengine provides a JavaScript engine backed by goja.
package jsengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"

	"github.com/jward/scriptrun/internal/engine"
)

// Name is the canonical engine name.
const Name = "javascript"

// Factory returns the registry descriptor for the JavaScript engine.
func Factory(logger *slog.Logger) engine.Factory {
	return engine.Factory{
		Name:       Name,
		Names:      []string{"javascript", "JavaScript", "js", "ecmascript", "ECMAScript"},
		Extensions: []string{"js", "mjs"},
		MimeTypes: []string{
			"application/javascript",
			"application/ecmascript",
			"text/javascript",
			"text/ecmascript",
		},
		New: func() (engine.Engine, error) {
			return New(logger), nil
		},
	}
}

// Engine is a goja runtime whose global object is the binding table.
type Engine struct {
	vm *goja.Runtime
}

// New creates a JavaScript engine. Go struct fields and methods are exposed
// to scripts under their json tag names, or uncapitalized.
func New(logger *slog.Logger) *Engine {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	_ = vm.Set("console", engine.NewConsole(logger, Name))
	return &Engine{vm: vm}
}

// Eval compiles and runs src in the engine's global scope. A cancelled ctx
// interrupts the running script.
func (e *Engine) Eval(ctx context.Context, name, src string) error {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return fmt.Errorf("jsengine: compile %s: %w", name, err)
	}

	stop := e.watch(ctx)
	_, err = e.vm.RunProgram(prog)
	stop()

	if err != nil {
		return fmt.Errorf("jsengine: run %s: %w", name, err)
	}
	return nil
}

// watch interrupts the VM when ctx is done. The returned func must be called
// once the run completes; it leaves the VM ready for the next evaluation.
func (e *Engine) watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		wg.Wait()
		e.vm.ClearInterrupt()
	}
}

func (e *Engine) Put(name string, value any) error {
	if err := e.vm.Set(name, value); err != nil {
		return fmt.Errorf("jsengine: set %s: %w", name, err)
	}
	return nil
}

// Get returns the exported Go value of a global. A declared but undefined
// variable is present with a nil value.
func (e *Engine) Get(name string) (any, bool) {
	v := e.vm.Get(name)
	if v == nil {
		return nil, false
	}
	return v.Export(), true
}
