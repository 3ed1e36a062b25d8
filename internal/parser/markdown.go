package parser

import (
	"bytes"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor handles Markdown files using goldmark. Markup is dropped;
// each top-level block becomes one paragraph.
type MarkdownExtractor struct{}

func (p *MarkdownExtractor) Extract(r io.Reader) (string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var b blocks
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		b.add(extractText(n, src))
	}
	return b.String(), nil
}

// extractText gets the text content of a goldmark AST node. Leaf blocks
// such as code blocks carry their text in Lines; everything else in inline
// children.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	switch v := n.(type) {
	case *ast.Text:
		buf.Write(v.Value(src))
		if v.HardLineBreak() || v.SoftLineBreak() {
			buf.WriteByte('\n')
		}
		return buf.String()
	case *ast.String:
		return string(v.Value)
	}

	if !n.HasChildren() && n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return buf.String()
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if buf.Len() > 0 && c.Type() == ast.TypeBlock {
			buf.WriteByte('\n')
		}
		buf.WriteString(extractText(c, src))
	}
	return buf.String()
}
