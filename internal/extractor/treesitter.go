package extractor

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/robert-at-pretension-io/acpu2opp/internal/patterns"
)

// TreeSitterLocator finds blocks by parsing the source with the C grammar and
// keeping the top-level initializer lists whose declaration header has the
// struct acpu_level table shape. Rows are still tokenized lexically.
type TreeSitterLocator struct {
	parser *sitter.Parser
	header *regexp.Regexp
}

// NewTreeSitterLocator creates a locator backed by tree-sitter-c.
func NewTreeSitterLocator(set *patterns.Set) *TreeSitterLocator {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	return &TreeSitterLocator{
		parser: parser,
		header: set.Header,
	}
}

// Locate parses src and returns every table block in source order.
func (l *TreeSitterLocator) Locate(src []byte) ([]Block, error) {
	tree, err := l.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	var blocks []Block
	l.walk(tree.RootNode(), src, &blocks)
	return blocks, nil
}

// Tree returns the S-expression of the parsed source, for debugging.
func (l *TreeSitterLocator) Tree(src []byte) (string, error) {
	tree, err := l.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return "", fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()
	return tree.RootNode().String(), nil
}

func (l *TreeSitterLocator) walk(node *sitter.Node, src []byte, blocks *[]Block) {
	if node == nil {
		return
	}

	if node.Type() == "initializer_list" {
		if b, ok := l.block(node, src); ok {
			*blocks = append(*blocks, b)
		}
		// Nested lists are rows, never tables.
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		l.walk(node.Child(i), src, blocks)
	}
}

func (l *TreeSitterLocator) block(node *sitter.Node, src []byte) (Block, bool) {
	start, end := int(node.StartByte()), int(node.EndByte())
	if end-start < 2 || src[start] != '{' || src[end-1] != '}' {
		return Block{}, false
	}

	headStart := declarationStart(src, start)
	m := l.header.FindSubmatchIndex(src[headStart:start])
	if m == nil {
		return Block{}, false
	}

	return Block{
		Name: string(src[headStart+m[2] : headStart+m[3]]),
		Body: string(src[start+1 : end-1]),
		Line: 1 + bytes.Count(src[:headStart+m[0]], []byte("\n")),
	}, true
}

// declarationStart scans back from an opening brace to the end of the
// previous statement or block.
func declarationStart(src []byte, brace int) int {
	i := bytes.LastIndexAny(src[:brace], ";}")
	return i + 1
}
