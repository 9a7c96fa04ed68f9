// Package convert normalizes supported source formats into canonical Markdown.
package convert

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type ContentType string

const (
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeMDX      ContentType = "mdx"
	ContentTypeMarkdoc  ContentType = "markdoc"
	ContentTypeRST      ContentType = "rst"
	ContentTypeHTML     ContentType = "html"
	ContentTypeText     ContentType = "text"
)

var ErrParse = errors.New("parse failure")

// Options tune conversion. Selectors only apply to HTML input.
type Options struct {
	IncludeSelectors string
	ExcludeSelectors string
}

type converterFunc func(ctx context.Context, content string, opts Options) (string, error)

var converters = map[ContentType]converterFunc{
	ContentTypeMarkdown: convertMarkdown,
	ContentTypeMDX:      convertMDX,
	ContentTypeMarkdoc:  convertMarkdoc,
	ContentTypeRST:      convertRST,
	ContentTypeHTML:     convertHTML,
	ContentTypeText:     convertText,
}

var extensionTypes = map[string]ContentType{
	".md":       ContentTypeMarkdown,
	".markdown": ContentTypeMarkdown,
	".mdx":      ContentTypeMDX,
	".mdoc":     ContentTypeMarkdoc,
	".markdoc":  ContentTypeMarkdoc,
	".rst":      ContentTypeRST,
	".html":     ContentTypeHTML,
	".htm":      ContentTypeHTML,
	".txt":      ContentTypeText,
}

func ParseContentType(value string) (ContentType, bool) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := converters[ct]
	return ct, ok
}

// DetectContentType returns the override when it names a supported type and
// otherwise derives the type from the path extension, defaulting to text.
func DetectContentType(filePath, override string) ContentType {
	if ct, ok := ParseContentType(override); ok {
		return ct
	}
	if ct, ok := extensionTypes[strings.ToLower(path.Ext(filePath))]; ok {
		return ct
	}
	return ContentTypeText
}

// Convert renders content of the given type as Markdown. Parse failures are
// not returned: the document is treated as empty instead.
func Convert(ctx context.Context, content string, ct ContentType, opts Options) (string, error) {
	fn, ok := converters[ct]
	if !ok {
		return "", fmt.Errorf("unsupported content type: %s", ct)
	}
	out, err := fn(ctx, content, opts)
	if err != nil {
		if errors.Is(err, ErrParse) {
			logutil.GetLogger(ctx).Warn("content could not be parsed, treating as empty",
				zap.String("content_type", string(ct)), zap.Error(err))
			return "", nil
		}
		return "", err
	}
	return out, nil
}

func convertText(_ context.Context, content string, _ Options) (string, error) {
	return content, nil
}
