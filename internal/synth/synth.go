package synth

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/offer"
)

// DefaultProvider is the embed provider name for offers without one.
const DefaultProvider = "offer"

// Group is the CTA block and embed block presenting one offer, or several
// same-family offers merged into one card.
type Group struct {
	Keys   []string
	Blocks []block.Block
}

// Synthesizer turns chosen offers into blocks.
type Synthesizer struct {
	Templates Templates
}

// New returns a Synthesizer with the default templates.
func New() *Synthesizer {
	return &Synthesizer{Templates: DefaultTemplates()}
}

// Build produces one group per offer, in order, except that Unlimited
// offers sharing a non-empty family are merged into a single group placed
// where the first of them would have been. New block keys are reserved in
// taken.
func (s *Synthesizer) Build(offers []offer.Offer, c Context, taken map[string]bool) []Group {
	var order [][]offer.Offer
	family := make(map[string]int)
	for _, o := range offers {
		if o.IsUnlimited() && o.Family != "" {
			if i, ok := family[o.Family]; ok {
				order[i] = append(order[i], o)
				continue
			}
			family[o.Family] = len(order)
		}
		order = append(order, []offer.Offer{o})
	}

	groups := make([]Group, 0, len(order))
	for _, members := range order {
		groups = append(groups, s.group(members, c, taken))
	}
	return groups
}

func (s *Synthesizer) group(members []offer.Offer, c Context, taken map[string]bool) Group {
	keys := make([]string, 0, len(members))
	for _, o := range members {
		keys = append(keys, o.Key)
	}
	seed := strings.Join(keys, "+")

	text := s.Templates.CTA(members[0], c)
	if len(members) > 1 {
		text = s.Templates.MergedCTA(members, c)
	}
	cta := &block.TextBlock{
		ID:    block.UniqueKey(taken, "cta", seed),
		Style: block.Paragraph(),
		Spans: []block.Span{{Key: block.NewKey("cta-span", seed), Text: text}},
	}

	provider := members[0].Provider
	if provider == "" {
		provider = DefaultProvider
	}
	embed := &block.EmbedBlock{
		ID:       block.UniqueKey(taken, "embed", seed),
		Provider: provider,
		OfferKey: keys[0],
		Markup:   RenderMarkup(members),
	}
	if len(keys) > 1 {
		embed.Bundled = keys[1:]
	}
	return Group{Keys: keys, Blocks: []block.Block{cta, embed}}
}

// IsCTAFor reports whether b is the synthesized CTA block of the embed.
// The block key may carry a collision suffix, so the CTA is recognised by
// its single span, whose key is never decollided.
func IsCTAFor(b block.Block, e *block.EmbedBlock) bool {
	tb, ok := b.(*block.TextBlock)
	if !ok || len(tb.Spans) != 1 {
		return false
	}
	return tb.Spans[0].Key == block.NewKey("cta-span", strings.Join(e.OfferKeys(), "+"))
}

// IsInlineFor reports whether tb is the inline paragraph Inline built for
// the offer key.
func IsInlineFor(tb *block.TextBlock, key string) bool {
	return tb.ID == block.NewKey("inline", key)
}

// Inline builds the legacy inline form of an offer: one paragraph whose
// whole text is the CTA sentence linked to the offer URL.
func (s *Synthesizer) Inline(o offer.Offer, c Context, taken map[string]bool) *block.TextBlock {
	linkKey := block.NewKey("link", o.Key)
	return &block.TextBlock{
		ID:    block.UniqueKey(taken, "inline", o.Key),
		Style: block.Paragraph(),
		Spans: []block.Span{{
			Key:   block.NewKey("inline-span", o.Key),
			Text:  s.Templates.CTA(o, c),
			Marks: []string{linkKey},
		}},
		MarkDefs: []block.MarkDef{{Key: linkKey, Kind: block.TypeLink, Target: o.URL}},
	}
}

// RenderMarkup renders the offer card HTML for one or more offers.
func RenderMarkup(offers []offer.Offer) string {
	if len(offers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(offers))
	for _, o := range offers {
		keys = append(keys, o.Key)
	}
	card := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "class", Val: "offer-card"},
			{Key: "data-offer-key", Val: keys[0]},
		},
	}
	if len(keys) > 1 {
		card.Attr = append(card.Attr, html.Attribute{Key: "data-offer-keys", Val: strings.Join(keys, " ")})
	}
	for _, o := range offers {
		a := &html.Node{
			Type:     html.ElementNode,
			Data:     "a",
			DataAtom: atom.A,
			Attr: []html.Attribute{
				{Key: "href", Val: o.URL},
				{Key: "rel", Val: "nofollow sponsored noopener"},
				{Key: "target", Val: "_blank"},
			},
		}
		a.AppendChild(&html.Node{Type: html.TextNode, Data: o.DisplayName})
		card.AppendChild(a)
	}

	var sb strings.Builder
	if err := html.Render(&sb, card); err != nil {
		return ""
	}
	return sb.String()
}
