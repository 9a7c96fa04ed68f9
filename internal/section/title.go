package section

import (
	"fmt"
	"path"
	"strings"
)

// InferTitle picks a document title: frontmatter title first, then the first
// lead heading, then the file name without its extension.
func InferTitle(frontmatter map[string]interface{}, leadHeading, fileName string) string {
	if v, ok := frontmatter["title"]; ok && v != nil {
		if title := strings.TrimSpace(fmt.Sprint(v)); title != "" {
			return title
		}
	}
	if title := strings.TrimSpace(leadHeading); title != "" {
		return title
	}
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
