// Package synth builds the blocks that present an offer in an article.
package synth

import (
	"strings"

	"github.com/dgallion1/offersplice/internal/offer"
)

// Context is what a CTA template may look at besides the offer itself.
type Context struct {
	Heading string // nearest heading before the insertion point
	Title   string // article title
}

// CTAFunc renders the call-to-action sentence for one offer. It must be a
// pure function of its arguments.
type CTAFunc func(o offer.Offer, c Context) string

// MergedFunc renders the call-to-action sentence for a merged card.
type MergedFunc func(offers []offer.Offer, c Context) string

// Templates is the CTA strategy map. Lookup order: ByKey, the offer's
// CTAOverride, ByCategory, Fallback.
type Templates struct {
	ByKey      map[string]CTAFunc
	ByCategory map[offer.Category]CTAFunc
	Fallback   CTAFunc
	Merged     MergedFunc
}

// DefaultTemplates returns the category and generic templates used when
// nothing more specific is registered.
func DefaultTemplates() Templates {
	return Templates{
		ByKey: map[string]CTAFunc{},
		ByCategory: map[offer.Category]CTAFunc{
			offer.Limited: func(o offer.Offer, c Context) string {
				if c.Heading != "" {
					return "「" + c.Heading + "」で迷ったら、" + o.DisplayName + "に相談してみるのがおすすめです。"
				}
				return o.DisplayName + "の無料相談は以下から申し込めます。"
			},
			offer.Unlimited: func(o offer.Offer, c Context) string {
				return o.DisplayName + "で関連アイテムをチェックしてみてください。"
			},
		},
		Fallback: func(o offer.Offer, c Context) string {
			return o.DisplayName + "の詳細はこちら。"
		},
		Merged: func(offers []offer.Offer, c Context) string {
			names := make([]string, 0, len(offers))
			for _, o := range offers {
				names = append(names, o.DisplayName)
			}
			return strings.Join(names, "・") + "で関連アイテムをまとめてチェックできます。"
		},
	}
}

// CTA renders the call-to-action sentence for o. It never returns "".
func (t Templates) CTA(o offer.Offer, c Context) string {
	if f, ok := t.ByKey[o.Key]; ok && f != nil {
		if s := f(o, c); s != "" {
			return s
		}
	}
	if o.CTAOverride != "" {
		return Expand(o.CTAOverride, o, c)
	}
	if f, ok := t.ByCategory[o.Category]; ok && f != nil {
		if s := f(o, c); s != "" {
			return s
		}
	}
	if t.Fallback != nil {
		if s := t.Fallback(o, c); s != "" {
			return s
		}
	}
	return o.DisplayName
}

// MergedCTA renders the sentence for a merged card.
func (t Templates) MergedCTA(offers []offer.Offer, c Context) string {
	if t.Merged != nil {
		if s := t.Merged(offers, c); s != "" {
			return s
		}
	}
	parts := make([]string, 0, len(offers))
	for _, o := range offers {
		parts = append(parts, t.CTA(o, c))
	}
	return strings.Join(parts, " ")
}

// Expand fills {name}, {heading} and {title} in a catalogue template.
func Expand(tmpl string, o offer.Offer, c Context) string {
	return strings.NewReplacer(
		"{name}", o.DisplayName,
		"{heading}", c.Heading,
		"{title}", c.Title,
	).Replace(tmpl)
}
