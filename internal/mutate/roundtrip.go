package mutate

import (
	"slices"
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/offer"
	"github.com/dgallion1/offersplice/internal/synth"
)

// Restore converts legacy inline offer links into canonical CTA+embed
// pairs. For every text block carrying a link mark whose target resolves
// to an offer, the mark is stripped, spans left empty are dropped, the
// block itself is dropped when nothing but the link text remained, and the
// pair is emitted in its place. A link to an offer that is already
// embedded is stripped without a new pair. Links to inactive offers, and
// Limited links once the quota is full, stay inline.
func (a *Applier) Restore(doc block.Document) (block.Document, Report) {
	var rep Report
	embedded := make(map[string]bool)
	limited := 0
	for _, ref := range offer.ScanRefs(doc, a.Registry).List {
		if ref.Inline || embedded[ref.Key] {
			continue
		}
		embedded[ref.Key] = true
		if o, ok := a.Registry.Get(ref.Key); ok && o.Category == offer.Limited {
			limited++
		}
	}

	taken := doc.KeySet()
	out := make([]block.Block, 0, len(doc.Blocks))
	changed := false
	for i, b := range doc.Blocks {
		tb, ok := b.(*block.TextBlock)
		if !ok {
			out = append(out, b)
			continue
		}

		strip := make(map[string]bool) // mark keys to remove
		var restored []offer.Offer
		for _, m := range tb.MarkDefs {
			if !m.IsLink() {
				continue
			}
			o, ok := a.Registry.LookupURL(m.Target)
			if !ok {
				continue
			}
			switch {
			case embedded[o.Key]:
				strip[m.Key] = true
				rep.add(ActionStripped, o.Key, "already embedded")
			case !o.Active:
				rep.add(ActionSkipped, o.Key, "offer inactive")
			case o.Category == offer.Limited && limited >= a.limitedMax():
				rep.add(ActionSkipped, o.Key, "limited quota full")
			default:
				strip[m.Key] = true
				embedded[o.Key] = true
				if o.Category == offer.Limited {
					limited++
				}
				restored = append(restored, o)
				rep.add(ActionRestored, o.Key, "")
			}
		}
		if len(strip) == 0 {
			out = append(out, b)
			continue
		}
		changed = true

		if kept, ok := stripMarks(tb, strip); ok {
			out = append(out, kept)
		} else {
			delete(taken, tb.ID)
		}
		ctx := a.context(doc, doc.Blocks, i)
		for _, g := range a.Synth.Build(restored, ctx, taken) {
			out = append(out, g.Blocks...)
		}
	}
	if !changed {
		return doc, rep
	}
	res := doc
	res.Blocks = out
	return res, rep
}

// stripMarks returns a copy of tb without the given mark definitions. When
// all of the block's visible text carried one of those marks, the block is
// reported as gone (false).
func stripMarks(tb *block.TextBlock, strip map[string]bool) (*block.TextBlock, bool) {
	linkOnly := true
	for _, s := range tb.Spans {
		if s.Raw != nil {
			linkOnly = false
			continue
		}
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		if !slices.ContainsFunc(s.Marks, func(m string) bool { return strip[m] }) {
			linkOnly = false
		}
	}
	if linkOnly {
		return nil, false
	}

	c := block.Clone(tb).(*block.TextBlock)
	c.MarkDefs = slices.DeleteFunc(c.MarkDefs, func(m block.MarkDef) bool { return strip[m.Key] })
	spans := c.Spans[:0]
	for _, s := range c.Spans {
		s.Marks = slices.DeleteFunc(s.Marks, func(m string) bool { return strip[m] })
		if len(s.Marks) == 0 {
			s.Marks = nil
		}
		if s.Raw == nil && s.Text == "" {
			continue
		}
		spans = append(spans, s)
	}
	c.Spans = spans
	return c, true
}

// Revert converts embeds back into inline link paragraphs, one per offer
// key, dropping the synthesized CTA block that precedes each embed. With
// no keys every keyed embed is reverted; otherwise only embeds referencing
// one of keys. Embeds without offer keys are left alone.
func (a *Applier) Revert(doc block.Document, keys []string) (block.Document, Report) {
	var rep Report
	want := func(e *block.EmbedBlock) bool {
		ek := e.OfferKeys()
		if len(ek) == 0 {
			return false
		}
		if len(keys) == 0 {
			return true
		}
		return slices.ContainsFunc(ek, func(k string) bool { return slices.Contains(keys, k) })
	}

	taken := doc.KeySet()
	out := make([]block.Block, 0, len(doc.Blocks))
	changed := false
	for i, b := range doc.Blocks {
		e, ok := b.(*block.EmbedBlock)
		if !ok || !want(e) {
			out = append(out, b)
			continue
		}
		changed = true
		delete(taken, e.ID)
		if n := len(out); n > 0 && synth.IsCTAFor(out[n-1], e) {
			delete(taken, out[n-1].Key())
			out = out[:n-1]
		}
		ctx := a.context(doc, doc.Blocks, i)
		out = append(out, a.inlineBlocks(e, ctx, taken, &rep)...)
	}
	if !changed {
		return doc, rep
	}
	res := doc
	res.Blocks = out
	return res, rep
}

// inlineBlocks renders one inline link paragraph per key of e. Keys the
// registry no longer knows fall back to the matching link in the markup.
func (a *Applier) inlineBlocks(e *block.EmbedBlock, ctx synth.Context, taken map[string]bool, rep *Report) []block.Block {
	keys := e.OfferKeys()
	info := block.ParseMarkup(e.Markup)
	var out []block.Block
	for i, k := range keys {
		o, ok := a.Registry.Get(k)
		if !ok {
			if len(info.Targets) != len(keys) {
				rep.add(ActionRemoved, k, "unknown offer without link")
				continue
			}
			o = offer.Offer{Key: k, Category: offer.Unlimited, DisplayName: k, URL: info.Targets[i]}
		}
		out = append(out, a.Synth.Inline(o, ctx, taken))
		rep.add(ActionReverted, k, "")
	}
	return out
}
