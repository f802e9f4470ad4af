package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapEngine is an in-memory Engine whose Eval records the sources it saw.
type mapEngine struct {
	vars  map[string]any
	evals []string
}

func (m *mapEngine) Eval(_ context.Context, name, _ string) error {
	m.evals = append(m.evals, name)
	return nil
}

func (m *mapEngine) Put(name string, value any) error {
	m.vars[name] = value
	return nil
}

func (m *mapEngine) Get(name string) (any, bool) {
	v, ok := m.vars[name]
	return v, ok
}

// countingFactory returns a factory and a pointer to its construction count.
func countingFactory(name string, exts, names, mimes []string) (Factory, *int) {
	n := 0
	return Factory{
		Name:       name,
		Names:      names,
		Extensions: exts,
		MimeTypes:  mimes,
		New: func() (Engine, error) {
			n++
			return &mapEngine{vars: map[string]any{}}, nil
		},
	}, &n
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "extension", KindExtension.String())
	assert.Equal(t, "language", KindName.String())
	assert.Equal(t, "mimeType", KindMimeType.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestNotFoundError_Message(t *testing.T) {
	err := &NotFoundError{Key: "py", Kind: KindExtension}
	assert.Equal(t, `no engine with extension "py" has been found`, err.Error())
	assert.Equal(t, "no engine with empty language has been found", (&NotFoundError{Kind: KindName}).Error())
}

func TestRegistry_ResolveByKind(t *testing.T) {
	f, n := countingFactory("test", []string{"t"}, []string{"test"}, []string{"text/x-test"})
	r := NewRegistry(f)

	for _, tc := range []struct {
		key  string
		kind Kind
	}{
		{"t", KindExtension},
		{"test", KindName},
		{"text/x-test", KindMimeType},
	} {
		e, err := r.Resolve(tc.key, tc.kind)
		require.NoError(t, err, tc.key)
		assert.NotNil(t, e)
	}
	assert.Equal(t, 3, *n, "registry must not cache")

	// A name is not an extension.
	_, err := r.Resolve("test", KindExtension)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "test", nf.Key)
	assert.Equal(t, KindExtension, nf.Kind)
}

func TestRegistry_CaseSensitive(t *testing.T) {
	f, _ := countingFactory("test", []string{"js"}, nil, nil)
	r := NewRegistry(f)
	_, ok := r.Lookup("JS", KindExtension)
	assert.False(t, ok)
}

func TestRegistry_FirstRegisteredWins(t *testing.T) {
	a, na := countingFactory("a", []string{"x"}, nil, nil)
	b, nb := countingFactory("b", []string{"x"}, nil, nil)
	r := NewRegistry(a, b)

	f, ok := r.Lookup("x", KindExtension)
	require.True(t, ok)
	assert.Equal(t, "a", f.Name)
	assert.Equal(t, 0, *na, "lookup must not construct")

	_, err := r.Resolve("x", KindExtension)
	require.NoError(t, err)
	assert.Equal(t, 1, *na)
	assert.Equal(t, 0, *nb)
}

func TestRegistry_EmptyKey(t *testing.T) {
	f, _ := countingFactory("test", []string{""}, nil, nil)
	r := NewRegistry(f)
	_, ok := r.Lookup("", KindExtension)
	assert.False(t, ok)
}

func TestRegistry_ConstructorFailureIsNotNotFound(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(Factory{
		Name:       "broken",
		Extensions: []string{"b"},
		New:        func() (Engine, error) { return nil, boom },
	})
	_, err := r.Resolve("b", KindExtension)
	require.ErrorIs(t, err, boom)

	var nf *NotFoundError
	assert.False(t, errors.As(err, &nf))
}

func TestRegistry_FactoriesIsACopy(t *testing.T) {
	f, _ := countingFactory("test", []string{"t"}, nil, nil)
	r := NewRegistry(f)
	fs := r.Factories()
	fs[0].Name = "changed"
	assert.Equal(t, "test", r.Factories()[0].Name)
}

func TestCache_OneEnginePerKey(t *testing.T) {
	f, n := countingFactory("test", []string{"t"}, []string{"test"}, nil)
	c := NewCache(NewRegistry(f))

	e1, err := c.GetOrCreate("t", KindExtension)
	require.NoError(t, err)
	e2, err := c.GetOrCreate("t", KindExtension)
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, *n)

	// A different key for the same factory is a different handle.
	e3, err := c.GetOrCreate("test", KindName)
	require.NoError(t, err)
	assert.NotSame(t, e1, e3)
	assert.Equal(t, 2, *n)
	assert.Equal(t, []string{"t", "test"}, c.Keys())
	assert.Equal(t, 2, c.Len())
}

func TestCache_BindingsAppliedOnceAtCreation(t *testing.T) {
	f, _ := countingFactory("test", []string{"t"}, nil, nil)
	project := &struct{ Name string }{Name: "demo"}
	c := NewCache(NewRegistry(f), Binding{Name: "project", Value: project})

	e, err := c.GetOrCreate("t", KindExtension)
	require.NoError(t, err)
	v, ok := e.Get("project")
	require.True(t, ok)
	assert.Same(t, project, v)

	// A script overwriting the binding is not undone by a later lookup.
	require.NoError(t, e.Put("project", "replaced"))
	e, err = c.GetOrCreate("t", KindExtension)
	require.NoError(t, err)
	v, _ = e.Get("project")
	assert.Equal(t, "replaced", v)
}

func TestCache_MissIsNotCached(t *testing.T) {
	c := NewCache(NewRegistry())
	_, err := c.GetOrCreate("py", KindExtension)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get("py")
	assert.False(t, ok)
}

func TestCache_EmptyKey(t *testing.T) {
	f, n := countingFactory("test", []string{""}, nil, nil)
	c := NewCache(NewRegistry(f))
	_, err := c.GetOrCreate("", KindExtension)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 0, *n)
}

// closingEngine is a mapEngine that records Close calls.
type closingEngine struct {
	mapEngine
	closed int
	err    error
}

func (c *closingEngine) Close() error {
	c.closed++
	return c.err
}

func TestCache_Close(t *testing.T) {
	var made []*closingEngine
	closing := Factory{
		Name:       "closing",
		Extensions: []string{"c", "d"},
		New: func() (Engine, error) {
			e := &closingEngine{mapEngine: mapEngine{vars: map[string]any{}}}
			if len(made) == 1 {
				e.err = errors.New("busy")
			}
			made = append(made, e)
			return e, nil
		},
	}
	plain, _ := countingFactory("plain", []string{"p"}, nil, nil)
	c := NewCache(NewRegistry(closing, plain))

	for _, key := range []string{"c", "d", "p"} {
		_, err := c.GetOrCreate(key, KindExtension)
		require.NoError(t, err)
	}

	err := c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `engine: close "d": busy`)
	require.Len(t, made, 2)
	assert.Equal(t, 1, made[0].closed)
	assert.Equal(t, 1, made[1].closed)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())

	// Nothing left to close.
	require.NoError(t, c.Close())
	assert.Equal(t, 1, made[0].closed)
}
