package custodial

import (
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
)

const (
	slugFallback   = "user"
	slugSuffixSize = 8
)

var (
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugInvalid    = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashes     = regexp.MustCompile(`-+`)
	slugIDInvalid  = regexp.MustCompile(`[^a-z0-9]`)
)

// Slugify derives a public profile slug from a display name and user id.
// Non-ASCII letters are transliterated before stripping so "José" becomes
// "jose" rather than "jos".
func Slugify(displayName, userID string) string {
	s := strings.ToLower(unidecode.Unidecode(displayName))
	s = slugWhitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = slugFallback
	}
	return s + "-" + slugSuffix(userID)
}

func slugSuffix(userID string) string {
	id := slugIDInvalid.ReplaceAllString(strings.ToLower(userID), "")
	if len(id) > slugSuffixSize {
		id = id[len(id)-slugSuffixSize:]
	}
	return id
}
