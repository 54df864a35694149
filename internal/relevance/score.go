// Package relevance ranks catalogue offers against an article and picks
// the ones that may be inserted.
package relevance

import (
	"sort"
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/offer"
)

// Suggestion is an offer with its keyword score.
type Suggestion struct {
	Offer offer.Offer
	Score int
}

// Scorer ranks active offers by keyword containment. A nil Classifier
// never allows offers that require a main item.
type Scorer struct {
	Registry   *offer.Registry
	Classifier offer.MainItemClassifier
}

// Score counts the distinct keywords of o that occur in text. text must
// already be lowercased.
func Score(text string, o offer.Offer) int {
	seen := make(map[string]bool, len(o.Keywords))
	n := 0
	for _, kw := range o.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// Suggest returns the active offers scoring above zero against the title
// and body text, highest first. Equal scores keep catalogue order.
func (s *Scorer) Suggest(doc block.Document) []Suggestion {
	body := doc.PlainText()
	text := strings.ToLower(doc.Title + "\n" + body)
	gate := newGate(s.Classifier, doc.Title, body)

	var out []Suggestion
	for _, o := range s.Registry.Active() {
		score := Score(text, o)
		if score == 0 {
			continue
		}
		if o.RequiresMainItem && !gate.allow() {
			continue
		}
		out = append(out, Suggestion{Offer: o, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// gate evaluates the main-item classifier at most once per document.
type gate struct {
	c           offer.MainItemClassifier
	title, body string
	done, ok    bool
}

func newGate(c offer.MainItemClassifier, title, body string) *gate {
	return &gate{c: c, title: title, body: body}
}

func (g *gate) allow() bool {
	if !g.done {
		g.done = true
		g.ok = g.c != nil && g.c.HasConcreteMainItem(g.title, g.body)
	}
	return g.ok
}
