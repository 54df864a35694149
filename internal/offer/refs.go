package offer

import "github.com/dgallion1/offersplice/internal/block"

// Ref is one place a document references an offer.
type Ref struct {
	Key      string
	BlockKey string
	Index    int
	Inline   bool // a legacy link mark rather than an embed
}

// Refs is the set of offer references found in a document.
type Refs struct {
	List []Ref
	keys map[string]bool
}

// ScanRefs finds every offer a document already references: embed offer
// keys (including bundled keys), embeds without keys whose markup links
// resolve to an offer, and legacy inline link marks whose target resolves
// to an offer.
func ScanRefs(doc block.Document, reg *Registry) Refs {
	r := Refs{keys: make(map[string]bool)}
	add := func(key, blockKey string, idx int, inline bool) {
		r.List = append(r.List, Ref{Key: key, BlockKey: blockKey, Index: idx, Inline: inline})
		r.keys[key] = true
	}
	for i, b := range doc.Blocks {
		switch v := b.(type) {
		case *block.EmbedBlock:
			keys := v.OfferKeys()
			if len(keys) == 0 {
				info := block.ParseMarkup(v.Markup)
				keys = info.OfferKeys
				for _, t := range info.Targets {
					if o, ok := reg.LookupURL(t); ok {
						keys = append(keys, o.Key)
					}
				}
			}
			seen := make(map[string]bool)
			for _, k := range keys {
				if !seen[k] {
					seen[k] = true
					add(k, v.ID, i, false)
				}
			}
		case *block.TextBlock:
			for _, m := range v.MarkDefs {
				if !m.IsLink() {
					continue
				}
				if o, ok := reg.LookupURL(m.Target); ok {
					add(o.Key, v.ID, i, true)
				}
			}
		case *block.ImageBlock, *block.OpaqueBlock:
		}
	}
	return r
}

// Has reports whether the document references key anywhere.
func (r Refs) Has(key string) bool { return r.keys[key] }

// Keys returns the distinct referenced keys in first-seen order.
func (r Refs) Keys() []string {
	seen := make(map[string]bool, len(r.keys))
	var out []string
	for _, ref := range r.List {
		if !seen[ref.Key] {
			seen[ref.Key] = true
			out = append(out, ref.Key)
		}
	}
	return out
}

// LimitedCount counts distinct embedded keys whose offer is Limited.
// Inline link marks do not take a slot.
func (r Refs) LimitedCount(reg *Registry) int {
	seen := make(map[string]bool)
	n := 0
	for _, ref := range r.List {
		if ref.Inline || seen[ref.Key] {
			continue
		}
		seen[ref.Key] = true
		if o, ok := reg.Get(ref.Key); ok && o.Category == Limited {
			n++
		}
	}
	return n
}
