package hygiene

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	yearRe    = regexp.MustCompile(`202[0-9]`)
	nonWordRe = regexp.MustCompile(`[^\w\s]`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// stopWords are generic competition nouns that drift between editions of the
// same event and therefore carry no identity.
var stopWords = map[string]struct{}{
	"competition": {}, "contest": {}, "challenge": {}, "olympiad": {},
	"hackathon": {}, "hack": {}, "round": {}, "preliminary": {},
	"prelim": {}, "qualifier": {}, "final": {}, "finals": {},
	"global": {}, "national": {}, "international": {}, "annual": {},
	"regional": {}, "state": {}, "world": {}, "championship": {},
	"us": {}, "usa": {},
}

// NormalizeTitle maps a raw competition title to its canonical comparison
// key: lowercased, year tokens and punctuation stripped, whitespace
// collapsed, stop words removed. A title made only of noise yields "".
func NormalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = yearRe.ReplaceAllString(s, "")
	s = nonWordRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, w := range fields {
		if _, stop := stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// CanonicalHost extracts the canonicalized hostname from a URL: lowercased,
// leading "www." stripped. Bare domains are accepted by assuming https.
// Returns "" for empty or unparseable input.
func CanonicalHost(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(ensureScheme(rawURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// ensureScheme prepends https:// when a stored URL is a bare domain.
func ensureScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "https://" + rawURL
}
