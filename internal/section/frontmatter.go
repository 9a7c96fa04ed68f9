package section

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtractFrontmatter removes a leading YAML block delimited by "---" lines and
// returns the remaining body with the decoded fields. Malformed YAML is still
// removed from the body but yields no fields.
func ExtractFrontmatter(markdown string) (string, map[string]interface{}) {
	src := strings.TrimPrefix(markdown, "\ufeff")
	first, rest, ok := cutLine(src)
	if !ok || strings.TrimSpace(first) != "---" {
		return markdown, nil
	}
	var block []string
	for {
		line, next, more := cutLine(rest)
		trimmed := strings.TrimSpace(line)
		if trimmed == "---" || trimmed == "..." {
			return next, decodeFrontmatter(strings.Join(block, "\n"))
		}
		if !more {
			return markdown, nil
		}
		block = append(block, line)
		rest = next
	}
}

func cutLine(s string) (string, string, bool) {
	if s == "" {
		return "", "", false
	}
	idx := strings.IndexByte(s, '\n')
	if idx < 0 {
		return strings.TrimSuffix(s, "\r"), "", true
	}
	return strings.TrimSuffix(s[:idx], "\r"), s[idx+1:], true
}

func decodeFrontmatter(raw string) map[string]interface{} {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
