package convert

import (
	"context"
	"unicode/utf8"
)

func convertMarkdown(_ context.Context, content string, _ Options) (string, error) {
	if !utf8.ValidString(content) {
		return "", ErrParse
	}
	return content, nil
}
