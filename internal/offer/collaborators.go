package offer

import "strings"

// CategoryNormalizer maps historical or free-form category labels to a
// canonical label.
type CategoryNormalizer interface {
	Normalize(label string) string
}

// AliasNormalizer is a table-driven CategoryNormalizer. Labels without an
// entry normalize to their trimmed lowercase form.
type AliasNormalizer struct {
	canon map[string]string
}

// NewAliasNormalizer builds a normalizer from canonical label -> aliases.
func NewAliasNormalizer(table map[string][]string) *AliasNormalizer {
	n := &AliasNormalizer{canon: make(map[string]string)}
	for canonical, aliases := range table {
		c := strings.ToLower(strings.TrimSpace(canonical))
		n.canon[c] = c
		for _, a := range aliases {
			n.canon[strings.ToLower(strings.TrimSpace(a))] = c
		}
	}
	return n
}

func (n *AliasNormalizer) Normalize(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if n != nil {
		if c, ok := n.canon[l]; ok {
			return c
		}
	}
	return l
}

// MainItemClassifier decides whether an article is about a concrete main
// item. Offers with RequiresMainItem are only suggested when it says yes.
type MainItemClassifier interface {
	HasConcreteMainItem(title, body string) bool
}

// ClassifierFunc adapts a function to MainItemClassifier.
type ClassifierFunc func(title, body string) bool

func (f ClassifierFunc) HasConcreteMainItem(title, body string) bool { return f(title, body) }

// MarkerClassifier says yes when the title or body contains any marker.
type MarkerClassifier struct {
	Markers []string
}

func (c MarkerClassifier) HasConcreteMainItem(title, body string) bool {
	text := strings.ToLower(title + "\n" + body)
	for _, m := range c.Markers {
		if m != "" && strings.Contains(text, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
