package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// ParseError reports a file the grammar could not fully parse. Merging or
// auditing on top of a broken tree would misattribute symbols, so parsing
// is all-or-nothing.
type ParseError struct {
	Path string
	Line int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: syntax error", e.Path, e.Line)
}

// Parser turns Python source into a Store. It holds the grammar only; each
// ParseFile call uses a fresh tree-sitter parser, so a Parser is safe to
// share across goroutines.
type Parser struct {
	lang *sitter.Language
}

func New() *Parser {
	return &Parser{lang: sitter.NewLanguage(tree_sitter_python.Language())}
}

func (p *Parser) ParseFile(path string, content []byte) (*Store, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, &ParseError{Path: path, Line: 1}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &ParseError{Path: path, Line: firstErrorLine(root)}
	}

	return build(root, content, path), nil
}

func firstErrorLine(node *sitter.Node) int {
	if node.IsError() || node.IsMissing() {
		return int(node.StartPosition().Row) + 1
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if line := firstErrorLine(node.Child(i)); line > 0 {
			return line
		}
	}
	return 0
}
