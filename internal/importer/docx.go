package importer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/fumiama/go-docx"
)

// DOCXImporter handles .docx drafts.
type DOCXImporter struct{}

func (p *DOCXImporter) Import(r io.Reader, filename string) (block.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return block.Document{}, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return block.Document{}, fmt.Errorf("parse docx: %w", err)
	}
	return fromDocx(doc, filename), nil
}

func fromDocx(doc *docx.Docx, filename string) block.Document {
	b := newBuilder(filename)
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		var in inline
		docxInlines(&in, doc, para)

		style := paragraphStyle(para)
		switch {
		case style == "title":
			if t := strings.TrimSpace(in.plain()); t != "" && !b.titleTaken {
				b.doc.Title = t
				b.titleTaken = true
			}
		case docxHeadingLevel(style) > 0:
			b.heading(docxHeadingLevel(style), &in)
		case para.Properties != nil && para.Properties.NumProperties != nil:
			b.text(block.Style{Kind: block.StyleListItem, Level: docxListLevel(para), ListType: "bullet"}, &in)
		case strings.HasPrefix(style, "listnumber"):
			b.text(block.Style{Kind: block.StyleListItem, Level: 1, ListType: "number"}, &in)
		case strings.HasPrefix(style, "list"):
			b.text(block.ListItem(1), &in)
		case style == "quote" || style == "intensequote":
			b.text(quoteStyle, &in)
		default:
			b.text(block.Paragraph(), &in)
		}
	}
	return b.doc
}

// paragraphStyle returns the lowercased style ID with spaces removed,
// so "Heading 1" and "Heading1" compare equal.
func paragraphStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
}

func docxHeadingLevel(style string) int {
	rest, ok := strings.CutPrefix(style, "heading")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}

func docxListLevel(para *docx.Paragraph) int {
	num := para.Properties.NumProperties
	if num.Ilvl == nil {
		return 1
	}
	n, err := strconv.Atoi(num.Ilvl.Val)
	if err != nil || n < 0 {
		return 1
	}
	return n + 1
}

func docxInlines(in *inline, doc *docx.Docx, para *docx.Paragraph) {
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			docxRun(in, c)
		case *docx.Hyperlink:
			href, err := doc.ReferTarget(c.ID)
			if err != nil {
				// internal bookmark anchors have no relationship target
				docxRun(in, &c.Run)
				continue
			}
			pop := in.link(href)
			if len(c.Run.Children) == 0 {
				in.add(c.Run.InstrText) // links written by AddLink carry their text here
			}
			docxRun(in, &c.Run)
			pop()
		}
	}
}

func docxRun(in *inline, run *docx.Run) {
	var pops []func()
	if rp := run.RunProperties; rp != nil {
		if rp.Bold != nil {
			pops = append(pops, in.push("strong"))
		}
		if rp.Italic != nil {
			pops = append(pops, in.push("em"))
		}
	}
	for _, rc := range run.Children {
		if t, ok := rc.(*docx.Text); ok {
			in.add(t.Text)
		}
	}
	for i := len(pops) - 1; i >= 0; i-- {
		pops[i]()
	}
}
