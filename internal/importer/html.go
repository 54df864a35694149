package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLImporter handles HTML files.
type HTMLImporter struct{}

func (p *HTMLImporter) Import(r io.Reader, filename string) (block.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return block.Document{}, fmt.Errorf("parse html: %w", err)
	}

	b := newBuilder(filename)
	if title := findTitle(root); title != "" {
		b.doc.Title = title
		b.titleTaken = true
	}

	w := &htmlWalker{b: b}
	if body := findElement(root, atom.Body); body != nil {
		w.walk(body, block.Paragraph())
	} else {
		w.walk(root, block.Paragraph())
	}
	return b.doc, nil
}

type htmlWalker struct {
	b *builder
}

func (w *htmlWalker) walk(n *html.Node, style block.Style) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c, style)
	}
}

func (w *htmlWalker) node(n *html.Node, style block.Style) {
	if n.Type != html.ElementNode {
		return
	}
	if level := headingLevel(n.DataAtom); level > 0 {
		var in inline
		htmlInlines(&in, n)
		w.b.heading(level, &in)
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header:
		return
	case atom.P:
		if img := soleImg(n); img != nil {
			w.b.image(attr(img, "src"), attr(img, "alt"))
			return
		}
		var in inline
		htmlInlines(&in, n)
		w.b.text(style, &in)
	case atom.Img:
		w.b.image(attr(n, "src"), attr(n, "alt"))
	case atom.Ul, atom.Ol:
		w.list(n, 1)
	case atom.Blockquote:
		if hasBlockChildren(n) {
			w.walk(n, quoteStyle)
			return
		}
		var in inline
		htmlInlines(&in, n)
		w.b.text(quoteStyle, &in)
	case atom.Pre:
		w.b.plain(codeStyle, strings.TrimRight(textContent(n), "\n"))
	default:
		w.walk(n, style)
	}
}

func (w *htmlWalker) list(l *html.Node, depth int) {
	listType := "bullet"
	if l.DataAtom == atom.Ol {
		listType = "number"
	}
	style := block.Style{Kind: block.StyleListItem, Level: depth, ListType: listType}
	for li := l.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		var in inline
		var nested []*html.Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				nested = append(nested, c)
				continue
			}
			htmlInline(&in, c)
		}
		w.b.text(style, &in)
		for _, sub := range nested {
			w.list(sub, depth+1)
		}
	}
}

func htmlInlines(in *inline, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		htmlInline(in, c)
	}
}

func htmlInline(in *inline, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		in.add(collapseSpace(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}
	switch n.DataAtom {
	case atom.Script, atom.Style:
	case atom.Br:
		in.add("\n")
	case atom.Em, atom.I:
		pop := in.push("em")
		htmlInlines(in, n)
		pop()
	case atom.Strong, atom.B:
		pop := in.push("strong")
		htmlInlines(in, n)
		pop()
	case atom.Code:
		pop := in.push("code")
		htmlInlines(in, n)
		pop()
	case atom.A:
		pop := in.link(attr(n, "href"))
		htmlInlines(in, n)
		pop()
	case atom.Img:
		in.add(attr(n, "alt"))
	default:
		htmlInlines(in, n)
	}
}

// collapseSpace folds whitespace runs to one space, keeping a single
// leading or trailing space where the input had one.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if strings.TrimLeft(s, " \t\r\n") != s {
		out = " " + out
	}
	if strings.TrimRight(s, " \t\r\n") != s {
		out += " "
	}
	return out
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

func hasBlockChildren(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.P, atom.Ul, atom.Ol, atom.Pre, atom.Div:
			return true
		}
	}
	return false
}

// soleImg returns the only element child of n when it is an <img> and
// there is no other text.
func soleImg(n *html.Node) *html.Node {
	var img *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return nil
			}
		case html.ElementNode:
			if c.DataAtom != atom.Img || img != nil {
				return nil
			}
			img = c
		}
	}
	return img
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if t := findElement(n, atom.Title); t != nil {
		return strings.TrimSpace(textContent(t))
	}
	return ""
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
