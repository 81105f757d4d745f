package custodial

import (
	"regexp"
	"strings"
)

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// JoinURL joins a base URL with relative path segments and collapses any
// doubled slashes after the scheme.
func JoinURL(base string, parts ...string) string {
	scheme := ""
	rest := strings.TrimSpace(base)
	if i := strings.Index(rest, "://"); i >= 0 {
		scheme, rest = rest[:i+3], rest[i+3:]
	}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rest += "/" + p
	}
	return scheme + repeatedSlashes.ReplaceAllString(rest, "/")
}
