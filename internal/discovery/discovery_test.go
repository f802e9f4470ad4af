package discovery

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestTree creates files (slash-separated, root-relative) under a temp
// root and returns the root.
func newTestTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("// "+rel), 0o644))
	}
	return root
}

func rels(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Rel)
	}
	return out
}

func TestDiscover_LexicalOrder(t *testing.T) {
	root := newTestTree(t, "l1/l2/l2-2.js", "l1/l2/l2-1.js", "l1/l1-1.js", "l0-1.js")

	files, err := Discover([]string{root}, Filter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"l0-1.js", "l1/l1-1.js", "l1/l2/l2-1.js", "l1/l2/l2-2.js"}, rels(files))

	f := files[1]
	assert.Equal(t, root, f.Root)
	assert.Equal(t, filepath.Join(root, "l1", "l1-1.js"), f.Path)
	assert.Equal(t, "js", f.Key)
}

func TestDiscover_IncludeExclude(t *testing.T) {
	root := newTestTree(t, "a.js", "b.lua", "skip/c.js", "deep/skip/d.js", "README")

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"default includes all", Filter{}, []string{"README", "a.js", "b.lua", "deep/skip/d.js", "skip/c.js"}},
		{"extension", Filter{Includes: []string{"**/*.js"}}, []string{"a.js", "deep/skip/d.js", "skip/c.js"}},
		{"single segment star", Filter{Includes: []string{"*.js"}}, []string{"a.js"}},
		{"exclude dir", Filter{Includes: []string{"**/*.js"}, Excludes: []string{"skip/**"}}, []string{"a.js", "deep/skip/d.js"}},
		{"exclude wins", Filter{Includes: []string{"a.js"}, Excludes: []string{"a.js"}}, nil},
		{"trailing slash", Filter{Excludes: []string{"deep/"}}, []string{"README", "a.js", "b.lua", "skip/c.js"}},
		{"backslash", Filter{Includes: []string{`skip\*.js`}}, []string{"skip/c.js"}},
		{"case sensitive", Filter{Includes: []string{"*.JS"}}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files, err := Discover([]string{root}, tc.filter, nil)
			require.NoError(t, err)
			if tc.want == nil {
				assert.Empty(t, files)
				return
			}
			assert.Equal(t, tc.want, rels(files))
		})
	}
}

func TestDiscover_RootsInOrderWithDuplicates(t *testing.T) {
	a := newTestTree(t, "z.js")
	b := newTestTree(t, "a.js")

	files, err := Discover([]string{a, b, a}, Filter{}, nil)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, a, files[0].Root)
	assert.Equal(t, b, files[1].Root)
	assert.Equal(t, a, files[2].Root)
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
}

func TestDiscover_FollowsSymlinks(t *testing.T) {
	base := newTestTree(t, "scripts/main.js", "shared/x.js", "shared/nested/y.js")
	root := filepath.Join(base, "scripts")
	symlink(t, filepath.Join("..", "shared"), filepath.Join(root, "lib"))
	symlink(t, filepath.Join("..", "shared"), filepath.Join(root, "tools.js"))
	symlink(t, "main.js", filepath.Join(root, "alias.js"))
	symlink(t, "missing.js", filepath.Join(root, "broken.js"))
	symlink(t, ".", filepath.Join(root, "loop"))
	symlink(t, filepath.Join("..", "scripts"), filepath.Join(base, "shared", "back"))

	files, err := Discover([]string{root}, Filter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"alias.js",
		"lib/nested/y.js",
		"lib/x.js",
		"main.js",
		"tools.js/nested/y.js",
		"tools.js/x.js",
	}, rels(files))

	for _, f := range files {
		assert.Equal(t, "js", f.Key, f.Rel)
		info, err := os.Stat(f.Path)
		require.NoError(t, err)
		assert.True(t, info.Mode().IsRegular(), f.Rel)
	}
	assert.Equal(t, filepath.Join(root, "lib", "x.js"), files[2].Path)
}

func TestDiscover_SymlinkedRoot(t *testing.T) {
	base := newTestTree(t, "real/a.js")
	link := filepath.Join(base, "linked")
	symlink(t, "real", link)

	files, err := Discover([]string{link}, Filter{}, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.js", files[0].Rel)
	assert.Equal(t, filepath.Join(link, "a.js"), files[0].Path)
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	assert.True(t, within(sep+"a", sep+"a"))
	assert.True(t, within(filepath.Join(sep+"a", "b"), sep+"a"))
	assert.False(t, within(sep+"ab", sep+"a"))
	assert.True(t, within(sep+"a", sep))
}

func TestDiscover_MissingRootWarns(t *testing.T) {
	root := newTestTree(t, "a.js")
	notDir := filepath.Join(root, "a.js")
	missing := filepath.Join(root, "nope")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	files, err := Discover([]string{missing, notDir, root}, Filter{}, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js"}, rels(files))
	assert.Contains(t, buf.String(), "does not exist")
	assert.Contains(t, buf.String(), "not a directory")
}

func TestDiscover_NoRoots(t *testing.T) {
	files, err := Discover(nil, Filter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_BadPattern(t *testing.T) {
	_, err := Discover([]string{t.TempDir()}, Filter{Excludes: []string{"[oops"}}, nil)
	var perr *PatternError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "[oops", perr.Pattern)
	assert.ErrorIs(t, err, doublestar.ErrBadPattern)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a/b/**", Normalize(`a\b\`))
	assert.Equal(t, "**/*.js", Normalize("**/*.js"))
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, "js", KeyFor("dir/a.js"))
	assert.Equal(t, "JS", KeyFor("A.JS"))
	assert.Equal(t, "", KeyFor("Makefile"))
	assert.Equal(t, "gz", KeyFor("x.tar.gz"))
}
