package relevance

import (
	"errors"
	"slices"
	"strings"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/offer"
)

// DefaultLimitedMax is the per-document quota for Limited offers.
const DefaultLimitedMax = 2

// ErrNoCandidate means no offer survived scoring, quota and fallback.
var ErrNoCandidate = errors.New("no eligible offer")

// Selection is an offer chosen for insertion.
type Selection struct {
	Offer       offer.Offer
	Score       int
	IsUnlimited bool
	Fallback    bool // chosen by the topical fallback list
}

// Allocator applies quotas, de-duplication and the preferred-key filter to
// a ranked suggestion list.
type Allocator struct {
	Registry   *offer.Registry
	Fallbacks  []offer.FallbackRule
	Normalizer offer.CategoryNormalizer
	Classifier offer.MainItemClassifier
	LimitedMax int // 0 means DefaultLimitedMax
}

// Request is the input to Allocate.
type Request struct {
	Doc         block.Document
	Suggestions []Suggestion
	Existing    offer.Refs
	Preferred   []string
}

// Allocate selects offers for insertion. When nothing is selected, no
// preferred keys were given and no suggested offer is already in the
// document, score-0 candidates from the fallback list get one more pass.
// It returns ErrNoCandidate when the result is empty.
func (a *Allocator) Allocate(req Request) ([]Selection, error) {
	limit := a.LimitedMax
	if limit <= 0 {
		limit = DefaultLimitedMax
	}
	remaining := max(0, limit-req.Existing.LimitedCount(a.Registry))

	selected := a.pick(req.Suggestions, req.Existing, req.Preferred, remaining, false)
	if len(selected) == 0 && len(req.Preferred) == 0 && !anyReferenced(req.Suggestions, req.Existing) {
		selected = a.pick(a.fallbackCandidates(req.Doc), req.Existing, nil, remaining, true)
	}
	if len(selected) == 0 {
		return nil, ErrNoCandidate
	}
	return selected, nil
}

func (a *Allocator) pick(cands []Suggestion, existing offer.Refs, preferred []string, remaining int, fallback bool) []Selection {
	var out []Selection
	taken := make(map[string]bool)
	for _, c := range cands {
		key := c.Offer.Key
		if existing.Has(key) || taken[key] {
			continue
		}
		if len(preferred) > 0 && !slices.Contains(preferred, key) {
			continue
		}
		limited := c.Offer.Category == offer.Limited
		if limited && remaining <= 0 {
			continue
		}
		taken[key] = true
		out = append(out, Selection{
			Offer:       c.Offer,
			Score:       c.Score,
			IsUnlimited: !limited,
			Fallback:    fallback,
		})
		if limited {
			remaining--
		}
	}
	return out
}

// anyReferenced reports whether the document already carries one of the
// suggested offers. The fallback list must not top up such a document, or
// a second run would add what the first one did not.
func anyReferenced(cands []Suggestion, existing offer.Refs) bool {
	for _, c := range cands {
		if existing.Has(c.Offer.Key) {
			return true
		}
	}
	return false
}

// fallbackCandidates lists the offers of every matching fallback rule in
// rule order, as zero-score suggestions.
func (a *Allocator) fallbackCandidates(doc block.Document) []Suggestion {
	if len(a.Fallbacks) == 0 {
		return nil
	}
	body := doc.PlainText()
	fields := map[string]string{
		"title":    strings.ToLower(doc.Title),
		"body":     strings.ToLower(body),
		"slug":     strings.ToLower(doc.Slug),
		"category": a.normalize(doc.Category),
	}
	gate := newGate(a.Classifier, doc.Title, body)

	var out []Suggestion
	seen := make(map[string]bool)
	for _, rule := range a.Fallbacks {
		if !a.ruleMatches(rule, fields) {
			continue
		}
		for _, key := range rule.Offers {
			o, ok := a.Registry.Get(key)
			if !ok || !o.Active || seen[key] {
				continue
			}
			if o.RequiresMainItem && !gate.allow() {
				continue
			}
			seen[key] = true
			out = append(out, Suggestion{Offer: o})
		}
	}
	return out
}

func (a *Allocator) ruleMatches(rule offer.FallbackRule, fields map[string]string) bool {
	names := rule.Fields
	if len(names) == 0 {
		names = []string{"title", "body", "slug", "category"}
	}
	for _, needle := range rule.Match {
		n := strings.ToLower(strings.TrimSpace(needle))
		if n == "" {
			continue
		}
		for _, name := range names {
			v := fields[name]
			if strings.Contains(v, n) {
				return true
			}
			if name == "category" && v != "" && a.normalize(needle) == v {
				return true
			}
		}
	}
	return false
}

func (a *Allocator) normalize(label string) string {
	if a.Normalizer == nil {
		return strings.ToLower(strings.TrimSpace(label))
	}
	return a.Normalizer.Normalize(label)
}
