package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/dgallion1/offersplice/internal/block"
)

// Importer converts a draft file into a block document.
type Importer interface {
	Import(r io.Reader, filename string) (block.Document, error)
}

// SupportedExtensions lists file extensions this service can import.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate importer for a filename.
func ForFile(filename string) (Importer, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextImporter{}, nil
	case ".md", ".markdown":
		return &MarkdownImporter{}, nil
	case ".html", ".htm":
		return &HTMLImporter{}, nil
	case ".pdf":
		return &PDFImporter{}, nil
	case ".docx":
		return &DOCXImporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Stem returns the filename without directory or extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return sb.String()
}

// builder accumulates blocks with deterministic keys seeded by the
// document ID and block position.
type builder struct {
	doc   block.Document
	taken map[string]bool

	// first h1 seen before any other block becomes the title
	titleTaken bool
}

func newBuilder(filename string) *builder {
	stem := Stem(filename)
	slug := Slugify(stem)
	return &builder{
		doc:   block.Document{ID: slug, Title: stem, Slug: slug},
		taken: make(map[string]bool),
	}
}

func (b *builder) nextKey() string {
	return block.UniqueKey(b.taken, b.doc.ID, "block", strconv.Itoa(len(b.doc.Blocks)))
}

// heading emits a heading, or takes it as the document title when it
// is a leading h1.
func (b *builder) heading(level int, in *inline) {
	if level == 1 && !b.titleTaken && len(b.doc.Blocks) == 0 {
		if t := strings.TrimSpace(in.plain()); t != "" {
			b.doc.Title = t
			b.titleTaken = true
			return
		}
	}
	b.text(block.Heading(level), in)
}

// text emits a text block unless the inline content is blank.
func (b *builder) text(style block.Style, in *inline) {
	spans, defs := in.finish()
	if len(spans) == 0 {
		return
	}
	key := b.nextKey()
	for i := range spans {
		spans[i].Key = block.NewKey(key, "span", strconv.Itoa(i))
	}
	b.doc.Blocks = append(b.doc.Blocks, &block.TextBlock{ID: key, Style: style, Spans: spans, MarkDefs: defs})
}

func (b *builder) plain(style block.Style, text string) {
	var in inline
	in.add(text)
	b.text(style, &in)
}

func (b *builder) image(src, alt string) {
	if src == "" {
		return
	}
	b.doc.Blocks = append(b.doc.Blocks, &block.ImageBlock{ID: b.nextKey(), AssetRef: src, Alt: strings.TrimSpace(alt)})
}

// inline collects spans for one text block. Adjacent text with the same
// marks is merged.
type inline struct {
	spans []block.Span
	defs  []block.MarkDef
	marks []string
}

// push applies a mark to text added until the returned func is called.
func (in *inline) push(mark string) func() {
	in.marks = append(in.marks, mark)
	n := len(in.marks)
	return func() { in.marks = in.marks[:n-1] }
}

// link registers a link definition and pushes its mark.
func (in *inline) link(href string) func() {
	href = strings.TrimSpace(href)
	if href == "" {
		return func() {}
	}
	key := block.NewKey("link", href, strconv.Itoa(len(in.defs)))
	in.defs = append(in.defs, block.MarkDef{Key: key, Kind: block.TypeLink, Target: href})
	return in.push(key)
}

func (in *inline) add(text string) {
	if text == "" {
		return
	}
	if n := len(in.spans); n > 0 && slices.Equal(in.spans[n-1].Marks, in.marks) {
		in.spans[n-1].Text += text
		return
	}
	var marks []string
	if len(in.marks) > 0 {
		marks = append(marks, in.marks...)
	}
	in.spans = append(in.spans, block.Span{Text: text, Marks: marks})
}

func (in *inline) plain() string {
	var sb strings.Builder
	for _, s := range in.spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// finish trims the outer whitespace and drops empty spans and unused
// link definitions.
func (in *inline) finish() ([]block.Span, []block.MarkDef) {
	spans := in.spans
	for len(spans) > 0 {
		spans[0].Text = strings.TrimLeftFunc(spans[0].Text, unicode.IsSpace)
		if spans[0].Text != "" {
			break
		}
		spans = spans[1:]
	}
	for len(spans) > 0 {
		last := len(spans) - 1
		spans[last].Text = strings.TrimRightFunc(spans[last].Text, unicode.IsSpace)
		if spans[last].Text != "" {
			break
		}
		spans = spans[:last]
	}
	if len(spans) == 0 {
		return nil, nil
	}
	used := make(map[string]bool)
	for _, s := range spans {
		for _, m := range s.Marks {
			used[m] = true
		}
	}
	var defs []block.MarkDef
	for _, d := range in.defs {
		if used[d.Key] {
			defs = append(defs, d)
		}
	}
	return spans, defs
}

// paragraphs splits text on blank lines. Lines within a paragraph keep
// their newline separators.
func paragraphs(text string) []string {
	var out []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}
