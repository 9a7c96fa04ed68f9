package section

import (
	"strconv"
	"strings"
	"unicode"
)

// Slugger produces GitHub-style anchors, de-duplicated within one document.
type Slugger struct {
	seen map[string]int
}

func NewSlugger() *Slugger {
	return &Slugger{seen: make(map[string]int)}
}

func (s *Slugger) Slug(value string) string {
	base := slugify(value)
	slug := base
	for {
		count, ok := s.seen[slug]
		if !ok {
			break
		}
		s.seen[slug] = count + 1
		slug = base + "-" + strconv.Itoa(count+1)
	}
	s.seen[slug] = 0
	return slug
}

func slugify(value string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r == ' ':
			sb.WriteByte('-')
		case r == '-' || r == '_':
			sb.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
