// Package luaengine provides a Lua 5.1 engine backed by gopher-lua.
package luaengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/jward/scriptrun/internal/engine"
)

// Name is the canonical engine name.
const Name = "lua"

// Factory returns the registry descriptor for the Lua engine.
func Factory() engine.Factory {
	return engine.Factory{
		Name:       Name,
		Names:      []string{"lua", "Lua"},
		Extensions: []string{"lua"},
		MimeTypes:  []string{"text/x-lua", "application/x-lua"},
		New: func() (engine.Engine, error) {
			return New(), nil
		},
	}
}

// Engine wraps one lua.LState; Lua globals are the binding table.
type Engine struct {
	L      *lua.LState
	closed bool
}

// New creates a Lua engine with the standard libraries opened.
func New() *Engine {
	return &Engine{L: lua.NewState()}
}

// Close releases the Lua state. The engine must not be used afterwards.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.L.Close()
	return nil
}

// Eval loads src as a chunk named name and calls it.
func (e *Engine) Eval(ctx context.Context, name, src string) error {
	fn, err := e.L.Load(strings.NewReader(src), name)
	if err != nil {
		return fmt.Errorf("luaengine: load %s: %w", name, err)
	}

	if ctx.Done() != nil {
		e.L.SetContext(ctx)
		defer e.L.RemoveContext()
	}

	defer e.L.SetTop(0)
	e.L.Push(fn)
	if err := e.L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("luaengine: run %s: %w", name, err)
	}
	return nil
}

func (e *Engine) Put(name string, value any) error {
	e.L.SetGlobal(name, toLua(e.L, value))
	return nil
}

// Get returns the Go value of a global. Lua cannot tell an unset global from
// one assigned nil, so both report absent.
func (e *Engine) Get(name string) (any, bool) {
	lv := e.L.GetGlobal(name)
	if lv == lua.LNil {
		return nil, false
	}
	return fromLua(lv), true
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case []string:
		tb := L.NewTable()
		for i, s := range v {
			L.RawSetInt(tb, i+1, lua.LString(s))
		}
		return tb
	case []any:
		tb := L.NewTable()
		for i, item := range v {
			L.RawSetInt(tb, i+1, toLua(L, item))
		}
		return tb
	case map[string]string:
		tb := L.NewTable()
		for k, s := range v {
			L.SetField(tb, k, lua.LString(s))
		}
		return tb
	case map[string]any:
		tb := L.NewTable()
		for k, item := range v {
			L.SetField(tb, k, toLua(L, item))
		}
		return tb
	default:
		// Structs such as the project are exposed as tables keyed by their
		// json names. Values without a JSON form stay opaque userdata.
		if plain, ok := jsonValue(v); ok {
			return toLua(L, plain)
		}
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

// jsonValue converts v to its generic JSON form (map[string]any, []any or a
// scalar).
func jsonValue(v any) (any, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var plain any
	if err := json.Unmarshal(b, &plain); err != nil {
		return nil, false
	}
	return plain, true
}

func fromLua(lv lua.LValue) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if n := v.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(v.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		v.ForEach(func(k, val lua.LValue) {
			out[k.String()] = fromLua(val)
		})
		return out
	default:
		if lv == lua.LNil {
			return nil
		}
		return lv.String()
	}
}
