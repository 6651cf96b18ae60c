package signal

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const snippetRadius = 120

// matcher finds the tracked brand in free text by case-insensitive substring.
type matcher struct {
	needles []string
}

func newMatcher(domain, brandName string) matcher {
	var needles []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		for _, n := range needles {
			if n == s {
				return
			}
		}
		needles = append(needles, s)
	}

	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://")
	d = strings.TrimRight(d, "/")
	add(d)
	add(strings.TrimPrefix(d, "www."))
	if !strings.HasPrefix(d, "www.") && d != "" {
		add("www." + d)
	}
	add(brandName)
	return matcher{needles: needles}
}

// find returns the rune offset and rune length of the earliest match, or -1.
func (m matcher) find(text string) (int, int) {
	if len(m.needles) == 0 || text == "" {
		return -1, 0
	}
	lowered := lowerRunes(text)
	best, bestLen := -1, 0
	for _, n := range m.needles {
		idx := strings.Index(lowered, n)
		if idx < 0 {
			continue
		}
		pos := utf8.RuneCountInString(lowered[:idx])
		if best < 0 || pos < best {
			best, bestLen = pos, utf8.RuneCountInString(n)
		}
	}
	return best, bestLen
}

func (m matcher) match(text string) bool {
	pos, _ := m.find(text)
	return pos >= 0
}

// lowerRunes lower-cases rune by rune so rune offsets line up with the input.
func lowerRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// contextSnippet cuts about snippetRadius runes either side of [pos, pos+n)
// and collapses whitespace.
func contextSnippet(text string, pos, n int) string {
	runes := []rune(text)
	if pos < 0 || pos >= len(runes) {
		return ""
	}
	start := max(pos-snippetRadius, 0)
	end := min(pos+n+snippetRadius, len(runes))

	snippet := strings.Join(strings.Fields(string(runes[start:end])), " ")
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(runes) {
		snippet += "…"
	}
	return snippet
}
