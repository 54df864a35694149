package block

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkupInfo is what can be recovered from an embed's rendered markup.
type MarkupInfo struct {
	OfferKeys []string // from data-offer-key / data-offer-keys attributes
	Targets   []string // anchor hrefs in document order
}

// ParseMarkup extracts offer keys and link targets from embed markup.
// Malformed markup yields whatever could be recovered.
func ParseMarkup(markup string) MarkupInfo {
	var info MarkupInfo
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return info
	}
	seen := make(map[string]bool)
	addKey := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			info.OfferKeys = append(info.OfferKeys, k)
		}
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				switch a.Key {
				case "data-offer-key":
					addKey(strings.TrimSpace(a.Val))
				case "data-offer-keys":
					for _, k := range strings.Fields(a.Val) {
						addKey(k)
					}
				case "href":
					if n.Data == "a" && strings.TrimSpace(a.Val) != "" {
						info.Targets = append(info.Targets, strings.TrimSpace(a.Val))
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return info
}
