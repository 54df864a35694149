package block

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire type names used in the stored block JSON.
const (
	TypeText  = "block"
	TypeImage = "image"
	TypeEmbed = "offerEmbed"
	TypeSpan  = "span"
	TypeLink  = "link"
)

type wireHead struct {
	Type string `json:"_type"`
	Key  string `json:"_key"`
}

type wireSpan struct {
	Type  string   `json:"_type"`
	Key   string   `json:"_key"`
	Text  string   `json:"text"`
	Marks []string `json:"marks"`
}

type wireMarkDef struct {
	Type string `json:"_type"`
	Key  string `json:"_key"`
	Href string `json:"href,omitempty"`
}

type wireAsset struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

type wireBlock struct {
	Type string `json:"_type"`
	Key  string `json:"_key"`

	// text
	Style    string            `json:"style,omitempty"`
	ListItem string            `json:"listItem,omitempty"`
	Level    int               `json:"level,omitempty"`
	Children []json.RawMessage `json:"children,omitempty"`
	MarkDefs []json.RawMessage `json:"markDefs,omitempty"`

	// image
	Asset *wireAsset `json:"asset,omitempty"`
	Alt   string     `json:"alt,omitempty"`

	// embed
	Provider string   `json:"provider,omitempty"`
	OfferKey string   `json:"offerKey,omitempty"`
	Bundled  []string `json:"bundledOfferKeys,omitempty"`
	HTML     string   `json:"html,omitempty"`
}

type wireDocument struct {
	ID       string            `json:"_id"`
	Title    string            `json:"title"`
	Slug     string            `json:"slug,omitempty"`
	Category string            `json:"category,omitempty"`
	Body     []json.RawMessage `json:"body"`
}

// MarshalBlocks encodes a block sequence in the stored JSON form.
func MarshalBlocks(blocks []Block) ([]byte, error) {
	raw, err := encodeBlocks(blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// UnmarshalBlocks decodes a stored block sequence. Unknown block types
// become OpaqueBlocks.
func UnmarshalBlocks(data []byte) ([]Block, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	return decodeBlocks(raw)
}

// MarshalJSON encodes the document with its body in the stored form.
func (d Document) MarshalJSON() ([]byte, error) {
	body, err := encodeBlocks(d.Blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireDocument{
		ID:       d.ID,
		Title:    d.Title,
		Slug:     d.Slug,
		Category: d.Category,
		Body:     body,
	})
}

// UnmarshalJSON decodes a stored document.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	blocks, err := decodeBlocks(w.Body)
	if err != nil {
		return err
	}
	*d = Document{ID: w.ID, Title: w.Title, Slug: w.Slug, Category: w.Category, Blocks: blocks}
	return nil
}

func encodeBlocks(blocks []Block) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(blocks))
	for i, b := range blocks {
		raw, err := encodeBlock(b)
		if err != nil {
			return nil, fmt.Errorf("encode block %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func encodeBlock(b Block) (json.RawMessage, error) {
	switch v := b.(type) {
	case *TextBlock:
		w := wireBlock{Type: TypeText, Key: v.ID, Style: styleName(v.Style)}
		if v.IsListItem() {
			w.ListItem = v.Style.ListType
			if w.ListItem == "" {
				w.ListItem = "bullet"
			}
			w.Level = v.Style.Level
		}
		w.Children = make([]json.RawMessage, 0, len(v.Spans))
		for _, s := range v.Spans {
			if s.Raw != nil {
				w.Children = append(w.Children, s.Raw)
				continue
			}
			marks := s.Marks
			if marks == nil {
				marks = []string{}
			}
			raw, err := json.Marshal(wireSpan{Type: TypeSpan, Key: s.Key, Text: s.Text, Marks: marks})
			if err != nil {
				return nil, err
			}
			w.Children = append(w.Children, raw)
		}
		w.MarkDefs = make([]json.RawMessage, 0, len(v.MarkDefs))
		for _, m := range v.MarkDefs {
			if m.Raw != nil {
				w.MarkDefs = append(w.MarkDefs, m.Raw)
				continue
			}
			raw, err := json.Marshal(wireMarkDef{Type: m.Kind, Key: m.Key, Href: m.Target})
			if err != nil {
				return nil, err
			}
			w.MarkDefs = append(w.MarkDefs, raw)
		}
		return marshalText(w)
	case *ImageBlock:
		return json.Marshal(wireBlock{
			Type:  TypeImage,
			Key:   v.ID,
			Asset: &wireAsset{Type: "reference", Ref: v.AssetRef},
			Alt:   v.Alt,
		})
	case *EmbedBlock:
		return json.Marshal(wireBlock{
			Type:     TypeEmbed,
			Key:      v.ID,
			Provider: v.Provider,
			OfferKey: v.OfferKey,
			Bundled:  v.Bundled,
			HTML:     v.Markup,
		})
	case *OpaqueBlock:
		return v.Raw, nil
	}
	return nil, fmt.Errorf("unknown block type %T", b)
}

// marshalText always emits children and markDefs, even when empty.
func marshalText(w wireBlock) (json.RawMessage, error) {
	type textWire struct {
		Type     string            `json:"_type"`
		Key      string            `json:"_key"`
		Style    string            `json:"style"`
		ListItem string            `json:"listItem,omitempty"`
		Level    int               `json:"level,omitempty"`
		Children []json.RawMessage `json:"children"`
		MarkDefs []json.RawMessage `json:"markDefs"`
	}
	return json.Marshal(textWire{
		Type:     w.Type,
		Key:      w.Key,
		Style:    w.Style,
		ListItem: w.ListItem,
		Level:    w.Level,
		Children: w.Children,
		MarkDefs: w.MarkDefs,
	})
}

func decodeBlocks(raw []json.RawMessage) ([]Block, error) {
	blocks := make([]Block, 0, len(raw))
	for i, r := range raw {
		b, err := decodeBlock(r)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func decodeBlock(raw json.RawMessage) (Block, error) {
	var head wireHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case TypeText, TypeImage, TypeEmbed:
	case "":
		return nil, fmt.Errorf("missing _type")
	default:
		return &OpaqueBlock{ID: head.Key, Type: head.Type, Raw: raw}, nil
	}

	var w wireBlock
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	switch w.Type {
	case TypeText:
		tb := &TextBlock{ID: w.Key, Style: parseStyle(w.Style, w.ListItem, w.Level)}
		for _, c := range w.Children {
			var head wireHead
			if err := json.Unmarshal(c, &head); err != nil {
				return nil, fmt.Errorf("span: %w", err)
			}
			if head.Type != TypeSpan {
				tb.Spans = append(tb.Spans, Span{Key: head.Key, Raw: c})
				continue
			}
			var s wireSpan
			if err := json.Unmarshal(c, &s); err != nil {
				return nil, fmt.Errorf("span: %w", err)
			}
			var marks []string
			if len(s.Marks) > 0 {
				marks = s.Marks
			}
			tb.Spans = append(tb.Spans, Span{Key: s.Key, Text: s.Text, Marks: marks})
		}
		for _, m := range w.MarkDefs {
			var md wireMarkDef
			if err := json.Unmarshal(m, &md); err != nil {
				var head wireHead
				if err := json.Unmarshal(m, &head); err != nil {
					return nil, fmt.Errorf("mark def: %w", err)
				}
				tb.MarkDefs = append(tb.MarkDefs, MarkDef{Key: head.Key, Kind: head.Type, Raw: m})
				continue
			}
			if md.Type == TypeLink {
				tb.MarkDefs = append(tb.MarkDefs, MarkDef{Key: md.Key, Kind: md.Type, Target: md.Href})
				continue
			}
			tb.MarkDefs = append(tb.MarkDefs, MarkDef{Key: md.Key, Kind: md.Type, Raw: m})
		}
		return tb, nil
	case TypeImage:
		ib := &ImageBlock{ID: w.Key, Alt: w.Alt}
		if w.Asset != nil {
			ib.AssetRef = w.Asset.Ref
		}
		return ib, nil
	case TypeEmbed:
		return &EmbedBlock{
			ID:       w.Key,
			Provider: w.Provider,
			OfferKey: w.OfferKey,
			Bundled:  w.Bundled,
			Markup:   w.HTML,
		}, nil
	}
	return nil, fmt.Errorf("unhandled block type %q", w.Type)
}

func styleName(s Style) string {
	if s.Kind == StyleHeading {
		return "h" + strconv.Itoa(s.Level)
	}
	if s.Name != "" {
		return s.Name
	}
	return "normal"
}

func parseStyle(name, listItem string, level int) Style {
	if listItem != "" {
		if level <= 0 {
			level = 1
		}
		return Style{Kind: StyleListItem, Level: level, ListType: listItem}
	}
	if len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
		return Heading(int(name[1] - '0'))
	}
	if name == "normal" || name == "" {
		return Paragraph()
	}
	return Style{Kind: StyleParagraph, Name: name}
}
