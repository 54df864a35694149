package offer

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a link target to a comparison form that ignores
// scheme, host case, default ports, trailing slashes, fragments and query
// parameter order.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	} else if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
	}
	host := strings.ToLower(u.Hostname())
	if p := u.Port(); p != "" && p != "80" && p != "443" {
		host += ":" + p
	}
	out := host + strings.TrimRight(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		out += "?" + u.Query().Encode()
	}
	return out
}

// SameURL reports whether two link targets normalize to the same form.
func SameURL(a, b string) bool {
	return NormalizeURL(a) == NormalizeURL(b)
}
