package importer

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownImporter handles Markdown files using goldmark.
type MarkdownImporter struct{}

func (p *MarkdownImporter) Import(r io.Reader, filename string) (block.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return block.Document{}, err
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))
	w := &mdWalker{src: src, b: newBuilder(filename)}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n, block.Paragraph())
	}
	return w.b.doc, nil
}

type mdWalker struct {
	src []byte
	b   *builder
}

var (
	quoteStyle = block.Style{Kind: block.StyleParagraph, Name: "blockquote"}
	codeStyle  = block.Style{Kind: block.StyleParagraph, Name: "code"}
)

func (w *mdWalker) block(n ast.Node, style block.Style) {
	switch node := n.(type) {
	case *ast.Heading:
		var in inline
		w.inlines(&in, node)
		w.b.heading(node.Level, &in)
	case *ast.Paragraph, *ast.TextBlock:
		if img, ok := soleImage(n); ok {
			w.b.image(string(img.Destination), w.altText(img))
			return
		}
		var in inline
		w.inlines(&in, n)
		w.b.text(style, &in)
	case *ast.List:
		w.list(node, 1)
	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c, quoteStyle)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		w.b.plain(codeStyle, w.lines(n))
	}
	// Thematic breaks and raw HTML blocks carry no article text.
}

func (w *mdWalker) list(l *ast.List, depth int) {
	listType := "bullet"
	if l.IsOrdered() {
		listType = "number"
	}
	style := block.Style{Kind: block.StyleListItem, Level: depth, ListType: listType}
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if nested, ok := c.(*ast.List); ok {
				w.list(nested, depth+1)
				continue
			}
			w.block(c, style)
		}
	}
}

func (w *mdWalker) inlines(in *inline, n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			in.add(string(node.Segment.Value(w.src)))
			if node.HardLineBreak() {
				in.add("\n")
			} else if node.SoftLineBreak() {
				in.add(" ")
			}
		case *ast.String:
			in.add(string(node.Value))
		case *ast.CodeSpan:
			pop := in.push("code")
			w.inlines(in, node)
			pop()
		case *ast.Emphasis:
			mark := "em"
			if node.Level >= 2 {
				mark = "strong"
			}
			pop := in.push(mark)
			w.inlines(in, node)
			pop()
		case *ast.Link:
			pop := in.link(string(node.Destination))
			w.inlines(in, node)
			pop()
		case *ast.AutoLink:
			pop := in.link(string(node.URL(w.src)))
			in.add(string(node.Label(w.src)))
			pop()
		case *ast.Image:
			in.add(w.altText(node))
		case *ast.RawHTML:
		default:
			w.inlines(in, c)
		}
	}
}

func (w *mdWalker) altText(img *ast.Image) string {
	var in inline
	w.inlines(&in, img)
	return in.plain()
}

func (w *mdWalker) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(w.src))
	}
	return strings.TrimRight(buf.String(), "\n")
}

func soleImage(n ast.Node) (*ast.Image, bool) {
	if n.ChildCount() != 1 {
		return nil, false
	}
	img, ok := n.FirstChild().(*ast.Image)
	return img, ok
}
