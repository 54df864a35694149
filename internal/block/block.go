package block

import (
	"encoding/json"
	"slices"
	"strings"
)

// Document is one article: metadata plus its ordered block sequence.
type Document struct {
	ID       string  // Store identifier
	Title    string  // Article title
	Slug     string  // URL slug
	Category string  // Free-form category label as stored
	Blocks   []Block // Render order
}

// Block is one unit of a document. The concrete type is one of
// *TextBlock, *ImageBlock, *EmbedBlock or *OpaqueBlock.
type Block interface {
	Key() string
	isBlock()
}

// StyleKind distinguishes the text block variants.
type StyleKind int

const (
	StyleParagraph StyleKind = iota
	StyleHeading
	StyleListItem
)

// Style is the block-level style of a TextBlock. Level is the heading
// level (1-6) for headings and the nesting depth (1+) for list items.
type Style struct {
	Kind     StyleKind
	Level    int
	ListType string // "bullet" or "number" for list items
	Name     string // Stored style name for non-normal paragraphs, e.g. "blockquote"
}

// Paragraph returns the normal text style.
func Paragraph() Style { return Style{Kind: StyleParagraph} }

// Heading returns a heading style of the given level.
func Heading(level int) Style { return Style{Kind: StyleHeading, Level: level} }

// ListItem returns a bullet list item style at the given depth.
func ListItem(level int) Style { return Style{Kind: StyleListItem, Level: level, ListType: "bullet"} }

// Span is a run of text carrying mark references. Marks either name a
// MarkDef key on the enclosing block or a decorator such as "strong".
type Span struct {
	Key   string
	Text  string
	Marks []string

	Raw json.RawMessage // inline objects other than text spans, kept verbatim
}

// MarkDef is a block-scoped annotation referenced by span marks.
type MarkDef struct {
	Key    string
	Kind   string // "link" for hyperlinks
	Target string // href for links

	Raw json.RawMessage // non-link definitions round-trip verbatim
}

// IsLink reports whether the definition is a hyperlink.
func (m MarkDef) IsLink() bool { return m.Kind == "link" }

// TextBlock is a paragraph, heading or list item.
type TextBlock struct {
	ID       string
	Style    Style
	Spans    []Span
	MarkDefs []MarkDef
}

// ImageBlock references an uploaded asset.
type ImageBlock struct {
	ID       string
	AssetRef string
	Alt      string
}

// EmbedBlock is the canonical representation of an inserted offer.
// Bundled lists further offer keys merged into the same card.
type EmbedBlock struct {
	ID       string
	Provider string
	OfferKey string
	Bundled  []string
	Markup   string
}

// OpaqueBlock is a block of a type this package does not model. It is
// carried through transforms untouched.
type OpaqueBlock struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

func (b *TextBlock) Key() string   { return b.ID }
func (b *ImageBlock) Key() string  { return b.ID }
func (b *EmbedBlock) Key() string  { return b.ID }
func (b *OpaqueBlock) Key() string { return b.ID }

func (*TextBlock) isBlock()   {}
func (*ImageBlock) isBlock()  {}
func (*EmbedBlock) isBlock()  {}
func (*OpaqueBlock) isBlock() {}

// OfferKeys returns every offer key the embed references, primary first.
func (b *EmbedBlock) OfferKeys() []string {
	if b.OfferKey == "" {
		return append([]string(nil), b.Bundled...)
	}
	return append([]string{b.OfferKey}, b.Bundled...)
}

// PlainText concatenates the block's span text.
func (b *TextBlock) PlainText() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// IsHeading reports whether the block is a heading.
func (b *TextBlock) IsHeading() bool { return b.Style.Kind == StyleHeading }

// IsParagraph reports whether the block is normal body text.
func (b *TextBlock) IsParagraph() bool { return b.Style.Kind == StyleParagraph }

// IsListItem reports whether the block is a list item.
func (b *TextBlock) IsListItem() bool { return b.Style.Kind == StyleListItem }

// MarkDefByKey returns the definition with the given key.
func (b *TextBlock) MarkDefByKey(key string) (MarkDef, bool) {
	for _, m := range b.MarkDefs {
		if m.Key == key {
			return m, true
		}
	}
	return MarkDef{}, false
}

// Clone returns a deep copy of b.
func Clone(b Block) Block {
	switch v := b.(type) {
	case *TextBlock:
		c := *v
		c.Spans = slices.Clone(v.Spans)
		for i := range c.Spans {
			c.Spans[i].Marks = slices.Clone(c.Spans[i].Marks)
			c.Spans[i].Raw = slices.Clone(c.Spans[i].Raw)
		}
		c.MarkDefs = slices.Clone(v.MarkDefs)
		return &c
	case *ImageBlock:
		c := *v
		return &c
	case *EmbedBlock:
		c := *v
		c.Bundled = slices.Clone(v.Bundled)
		return &c
	case *OpaqueBlock:
		c := *v
		c.Raw = slices.Clone(v.Raw)
		return &c
	}
	return b
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	c := d
	c.Blocks = slices.Clone(d.Blocks)
	for i, b := range c.Blocks {
		c.Blocks[i] = Clone(b)
	}
	return c
}

// PlainText flattens every text block (headings, paragraphs and list
// items alike) into newline-separated plain text.
func (d Document) PlainText() string {
	var sb strings.Builder
	for _, b := range d.Blocks {
		tb, ok := b.(*TextBlock)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(tb.PlainText())
	}
	return sb.String()
}

// Embeds returns the embed blocks in document order.
func (d Document) Embeds() []*EmbedBlock {
	var out []*EmbedBlock
	for _, b := range d.Blocks {
		if e, ok := b.(*EmbedBlock); ok {
			out = append(out, e)
		}
	}
	return out
}

// IndexOf returns the index of the block with the given key, or -1.
func (d Document) IndexOf(key string) int {
	for i, b := range d.Blocks {
		if b.Key() == key {
			return i
		}
	}
	return -1
}
