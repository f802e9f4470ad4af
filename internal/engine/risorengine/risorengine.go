// Package risorengine provides a Risor engine.
//
// Every Risor evaluation runs in a fresh VM, so the binding table lives on
// the Go side. Each Eval exposes the current bindings as globals and, once
// the script finishes, copies its top-level variables back into the table.
// A first script can declare a variable with := and later scripts update it
// with =. Functions are not carried over; share them with import. Three host
// functions are always present and cannot be rebound:
//
//	put(name, value)   bind value under name for later scripts
//	get(name)          read a binding (nil when absent)
//	log.Info(msg)      structured log line (also Warn, Error)
//
// import statements resolve .risor files relative to the evaluated file.
package risorengine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
	"github.com/risor-io/risor/vm"

	"github.com/jward/scriptrun/internal/engine"
)

// Name is the canonical engine name.
const Name = "risor"

// InlineLabel is the source name used for sources that are not files; imports
// are not resolved for them.
const InlineLabel = "<inline>"

// Factory returns the registry descriptor for the Risor engine.
func Factory(logger *slog.Logger) engine.Factory {
	return engine.Factory{
		Name:       Name,
		Names:      []string{"risor", "Risor"},
		Extensions: []string{"risor", "rsr"},
		MimeTypes:  []string{"text/x-risor", "application/x-risor"},
		New: func() (engine.Engine, error) {
			return New(logger), nil
		},
	}
}

// Engine keeps the binding table between Risor evaluations.
type Engine struct {
	bindings map[string]any
	console  *engine.Console
	// written holds the names set through put during the current Eval.
	written map[string]bool
}

// New creates a Risor engine with an empty binding table.
func New(logger *slog.Logger) *Engine {
	return &Engine{
		bindings: make(map[string]any),
		console:  engine.NewConsole(logger, Name),
	}
}

// reserved names the host functions every script sees.
var reserved = map[string]bool{"put": true, "get": true, "log": true}

// defaultGlobals is the set of builtins and modules Risor adds to every VM.
var defaultGlobals = sync.OnceValue(func() map[string]bool {
	names := make(map[string]bool)
	for _, n := range risor.NewConfig().GlobalNames() {
		names[n] = true
	}
	return names
})

// Eval runs src with all current bindings as globals, then stores the
// script's top-level variables back into the binding table.
func (e *Engine) Eval(ctx context.Context, name, src string) error {
	e.written = make(map[string]bool)

	inputs, err := object.AsObjects(e.buildGlobals())
	if err != nil {
		return fmt.Errorf("risorengine: script %s: bindings: %w", name, err)
	}

	var opts []risor.Option
	for n, val := range inputs {
		opts = append(opts, risor.WithGlobal(n, val))
	}
	if imp := buildImporter(name, inputs); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}
	var parseOpts []parser.Option
	if name != "" && name != InlineLabel {
		opts = append(opts, risor.WithFilename(name))
		parseOpts = append(parseOpts, parser.WithFile(name))
	}
	cfg := risor.NewConfig(opts...)

	prog, err := parser.Parse(ctx, src, parseOpts...)
	if err != nil {
		return fmt.Errorf("risorengine: script %s: %w", name, err)
	}
	code, err := compiler.Compile(prog, cfg.CompilerOpts()...)
	if err != nil {
		return fmt.Errorf("risorengine: script %s: %w", name, err)
	}
	machine := vm.New(code, cfg.VMOpts()...)
	if err := machine.Run(ctx); err != nil {
		return fmt.Errorf("risorengine: script %s: %w", name, err)
	}
	e.capture(machine, inputs)
	return nil
}

// capture copies the VM's top-level variables into the binding table. Names
// written with put during this run win over the variable of the same name.
// Risor's own builtins and modules are only copied when they shadow a
// binding. A binding the script did not reassign keeps its original Go value.
func (e *Engine) capture(machine *vm.VirtualMachine, inputs map[string]object.Object) {
	defaults := defaultGlobals()
	for _, n := range machine.GlobalNames() {
		if reserved[n] || e.written[n] {
			continue
		}
		_, bound := e.bindings[n]
		if defaults[n] && !bound {
			continue
		}
		obj, err := machine.Get(n)
		if err != nil || obj == nil {
			continue
		}
		switch obj.(type) {
		case *object.Function:
			// Compiled functions only run in the VM that loaded them.
			continue
		case *object.Builtin, *object.Module:
			if !bound {
				continue
			}
		}
		if in, ok := inputs[n]; ok && in == obj && !isContainer(obj) {
			continue
		}
		e.bindings[n] = fromObject(obj)
	}
}

// isContainer reports whether obj can be changed in place by a script.
func isContainer(obj object.Object) bool {
	switch obj.(type) {
	case *object.List, *object.Map, *object.Set:
		return true
	}
	return false
}

// Put binds value under name. The host function names are reserved.
func (e *Engine) Put(name string, value any) error {
	if reserved[name] {
		return fmt.Errorf("risorengine: %q is reserved for a host function", name)
	}
	e.bindings[name] = value
	return nil
}

func (e *Engine) Get(name string) (any, bool) {
	v, ok := e.bindings[name]
	return v, ok
}

// Names returns the bound names, sorted.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.bindings))
	for n := range e.bindings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) buildGlobals() map[string]any {
	globals := make(map[string]any, len(e.bindings)+len(reserved))
	for k, v := range e.bindings {
		globals[k] = toGlobal(v)
	}
	globals["put"] = e.makePutFn()
	globals["get"] = e.makeGetFn()
	globals["log"] = mustProxy(e.console)
	return globals
}

// buildImporter resolves imports from the directory holding the evaluated
// file. Returns nil for inline sources.
func buildImporter(name string, globals map[string]object.Object) importer.Importer {
	if name == "" || name == InlineLabel {
		return nil
	}
	globalNames := make([]string, 0, len(globals)+len(defaultGlobals()))
	for n := range globals {
		globalNames = append(globalNames, n)
	}
	for n := range defaultGlobals() {
		if _, ok := globals[n]; !ok {
			globalNames = append(globalNames, n)
		}
	}
	return importer.NewLocalImporter(importer.LocalImporterOptions{
		GlobalNames: globalNames,
		SourceDir:   filepath.Dir(name),
		Extensions:  []string{".risor"},
	})
}

// toGlobal passes plain values through for Risor to convert and wraps
// anything else in a proxy so scripts can reach its fields and methods.
func toGlobal(v any) any {
	switch v.(type) {
	case nil:
		return object.Nil
	case object.Object, bool, string, int, int64, float64,
		[]string, []any, map[string]string, map[string]any:
		return v
	default:
		if p, err := object.NewProxy(v); err == nil {
			return p
		}
		return v
	}
}

// makePutFn creates the "put" host function.
//
// put(name, value) → nil
func (e *Engine) makePutFn() *object.Builtin {
	return object.NewBuiltin("put", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("put", 2, len(args))
		}
		nameStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("put: name must be a string, got %s", args[0].Type())
		}
		n := nameStr.Value()
		if reserved[n] {
			return object.Errorf("put: %q is reserved", n)
		}
		e.bindings[n] = fromObject(args[1])
		e.written[n] = true
		return object.Nil
	})
}

// makeGetFn creates the "get" host function.
//
// get(name) → value or nil
func (e *Engine) makeGetFn() *object.Builtin {
	return object.NewBuiltin("get", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("get", 1, len(args))
		}
		nameStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("get: name must be a string, got %s", args[0].Type())
		}
		v, found := e.bindings[nameStr.Value()]
		if !found || v == nil {
			return object.Nil
		}
		if obj, ok := toGlobal(v).(object.Object); ok {
			return obj
		}
		return object.FromGoType(v)
	})
}

// fromObject converts a script value to its Go form. Proxies unwrap to the
// Go value they wrap.
func fromObject(obj object.Object) any {
	if obj == object.Nil {
		return nil
	}
	return obj.Interface()
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("risorengine: proxy error: %v", err))
	}
	return p
}
