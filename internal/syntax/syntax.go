// Package syntax checks script sources for syntax errors with tree-sitter,
// without evaluating them. It backs the dry-run check command.
package syntax

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/lua"
)

// engineToGrammar maps canonical engine names to tree-sitter grammars.
// Lazily initialized on first call via sync.Once.
var (
	engineToGrammar map[string]*sitter.Language
	grammarsOnce    sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		engineToGrammar = map[string]*sitter.Language{
			"javascript": javascript.GetLanguage(),
			"lua":        lua.GetLanguage(),
		}
	})
}

// GrammarFor returns the grammar for a canonical engine name. Returns
// (nil, false) when no grammar is bundled for it.
func GrammarFor(engineName string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := engineToGrammar[engineName]
	return l, ok
}

// Supported reports whether sources for engineName can be checked.
func Supported(engineName string) bool {
	_, ok := GrammarFor(engineName)
	return ok
}

// Diagnostic is one syntax problem. Line and Column are 1-based.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// Check parses src with the grammar for engineName and returns one diagnostic
// per error or missing node. A clean source yields no diagnostics.
func Check(ctx context.Context, engineName string, src []byte) ([]Diagnostic, error) {
	lang, ok := GrammarFor(engineName)
	if !ok {
		return nil, fmt.Errorf("syntax: no grammar for engine %q", engineName)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("syntax: parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}
	var diags []Diagnostic
	collect(root, src, &diags)
	return diags, nil
}

// collect walks only subtrees that contain errors.
func collect(n *sitter.Node, src []byte, diags *[]Diagnostic) {
	switch {
	case n.IsMissing():
		*diags = append(*diags, diagnosticAt(n, fmt.Sprintf("missing %s", n.Type())))
		return
	case n.Type() == "ERROR":
		*diags = append(*diags, diagnosticAt(n, fmt.Sprintf("unexpected %q", excerpt(n.Content(src)))))
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && (child.HasError() || child.IsMissing()) {
			collect(child, src, diags)
		}
	}
}

func diagnosticAt(n *sitter.Node, msg string) Diagnostic {
	p := n.StartPoint()
	return Diagnostic{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Message: msg}
}

// excerpt shortens s to at most maxLen bytes, cutting on a rune boundary.
func excerpt(s string) string {
	const maxLen = 24
	if len(s) <= maxLen {
		return s
	}
	n := maxLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
