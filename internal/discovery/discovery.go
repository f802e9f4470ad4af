// Package discovery turns script source roots and include/exclude glob
// patterns into the ordered list of script files to execute.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIncludes matches every file under a root.
var DefaultIncludes = []string{"**"}

// Filter selects files by their root-relative, slash-separated path. Patterns
// use doublestar syntax: * within a segment, ** across segments. Matching is
// case-sensitive. Empty Includes means DefaultIncludes.
type Filter struct {
	Includes []string
	Excludes []string
}

// File is a discovered script.
type File struct {
	// Root is the source root the file was found under, as configured.
	Root string
	// Rel is the root-relative path with forward slashes.
	Rel string
	// Path is Root joined with Rel.
	Path string
	// Key is the file extension without the leading dot; empty when the
	// file has no extension.
	Key string
}

// PatternError reports an include or exclude pattern doublestar rejects.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q", e.Pattern)
}

func (e *PatternError) Unwrap() error {
	return doublestar.ErrBadPattern
}

// Normalize rewrites a pattern the way directory scanners conventionally
// read it: backslashes become slashes and a trailing slash matches
// everything below that directory.
func Normalize(pattern string) string {
	p := strings.ReplaceAll(pattern, `\`, "/")
	if strings.HasSuffix(p, "/") {
		p += "**"
	}
	return p
}

// Compile normalizes and validates the filter's patterns.
func (f Filter) Compile() (Filter, error) {
	includes := f.Includes
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	out := Filter{
		Includes: make([]string, 0, len(includes)),
		Excludes: make([]string, 0, len(f.Excludes)),
	}
	for _, p := range includes {
		n := Normalize(p)
		if !doublestar.ValidatePattern(n) {
			return Filter{}, &PatternError{Pattern: p}
		}
		out.Includes = append(out.Includes, n)
	}
	for _, p := range f.Excludes {
		n := Normalize(p)
		if !doublestar.ValidatePattern(n) {
			return Filter{}, &PatternError{Pattern: p}
		}
		out.Excludes = append(out.Excludes, n)
	}
	return out, nil
}

// Match reports whether rel is included and not excluded. f must have been
// produced by Compile.
func (f Filter) Match(rel string) bool {
	included := false
	for _, p := range f.Includes {
		if doublestar.MatchUnvalidated(p, rel) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, p := range f.Excludes {
		if doublestar.MatchUnvalidated(p, rel) {
			return false
		}
	}
	return true
}

// Discover scans each root in order and returns the matching files. Roots
// that do not exist or are not directories are logged and skipped. Within a
// root, files come in lexical walk order. Symbolic links to files and
// directories are followed; only regular files are returned. The same file
// reachable from two roots is returned twice.
func Discover(roots []string, filter Filter, logger *slog.Logger) ([]File, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	compiled, err := filter.Compile()
	if err != nil {
		return nil, err
	}

	var files []File
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("script source root does not exist, skipping", "root", root)
				continue
			}
			return nil, fmt.Errorf("discovery: stat %s: %w", root, err)
		}
		if !info.IsDir() {
			logger.Warn("script source root is not a directory, skipping", "root", root)
			continue
		}

		found, err := scanRoot(root, compiled, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("scanned script source root", "root", root, "files", len(found))
		files = append(files, found...)
	}
	return files, nil
}

// scanner walks one root, following symbolic links to files and directories.
type scanner struct {
	root   string
	filter Filter
	logger *slog.Logger
	// active holds the resolved directories on the current walk path.
	active map[string]bool
	files  []File
}

func scanRoot(root string, filter Filter, logger *slog.Logger) ([]File, error) {
	s := &scanner{root: root, filter: filter, logger: logger, active: make(map[string]bool)}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve %s: %w", root, err)
	}
	if err := s.walk(resolved, ""); err != nil {
		return nil, fmt.Errorf("discovery: walk %s: %w", root, err)
	}
	return s.files, nil
}

// walk scans the resolved directory dir, reporting its files under the
// root-relative prefix.
func (s *scanner) walk(dir, prefix string) error {
	s.active[dir] = true
	defer delete(s.active, dir)

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if prefix != "" {
			rel = prefix + "/" + rel
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return s.follow(path, rel)
		case d.Type().IsRegular():
			s.add(rel)
		}
		return nil
	})
}

// follow handles a symbolic link found at path. Broken links, links to
// anything but a regular file or directory, and links that lead back into a
// directory being walked are skipped.
func (s *scanner) follow(path, rel string) error {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Debug("skipping unresolvable link", "path", path, "error", err)
		return nil
	}
	if info.Mode().IsRegular() {
		s.add(rel)
		return nil
	}
	if !info.IsDir() {
		return nil
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		s.logger.Debug("skipping unresolvable link", "path", path, "error", err)
		return nil
	}
	if s.active[target] || within(filepath.Dir(path), target) {
		s.logger.Debug("skipping directory link cycle", "path", path, "target", target)
		return nil
	}
	return s.walk(target, rel)
}

func (s *scanner) add(rel string) {
	if !s.filter.Match(rel) {
		return
	}
	s.files = append(s.files, File{
		Root: s.root,
		Rel:  rel,
		Path: filepath.Join(s.root, filepath.FromSlash(rel)),
		Key:  KeyFor(rel),
	})
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

// KeyFor returns the engine key for a file name: its extension without the
// dot. Case is preserved.
func KeyFor(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}
