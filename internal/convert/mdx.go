package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var errUnbalancedExpression = errors.New("unbalanced expression braces")

// convertMDX removes ESM statements and JavaScript expressions. JSX tags are
// left in place and travel through the Markdown pipeline as raw HTML. When
// the document cannot be cleaned it is read as plain Markdown instead.
func convertMDX(ctx context.Context, content string, opts Options) (string, error) {
	out, err := stripMDX(content)
	if err == nil {
		return out, nil
	}
	logutil.GetLogger(ctx).Debug("mdx cleanup failed, fallback to markdown", zap.Error(err))
	out, err = convertMarkdown(ctx, content, opts)
	if err != nil {
		return "", fmt.Errorf("%w: mdx: %v", ErrParse, err)
	}
	return out, nil
}

func stripMDX(content string) (string, error) {
	var (
		sb       strings.Builder
		depth    int
		inESM    bool
		fence    string
		lineNo   int
		lastOpen int
	)
	for _, line := range strings.SplitAfter(content, "\n") {
		lineNo++
		trimmed := strings.TrimSpace(line)
		if fence != "" {
			sb.WriteString(line)
			if strings.HasPrefix(strings.TrimLeft(line, " "), fence) && strings.Trim(trimmed, fence[:1]) == "" {
				fence = ""
			}
			continue
		}
		if inESM {
			if trimmed == "" {
				inESM = false
				sb.WriteString(line)
			}
			continue
		}
		if depth == 0 {
			if marker := fenceMarker(line); marker != "" {
				fence = marker
				sb.WriteString(line)
				continue
			}
			if strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "export ") {
				inESM = true
				continue
			}
		}
		for i := 0; i < len(line); i++ {
			c := line[i]
			switch {
			case c == '\\' && depth == 0 && i+1 < len(line) && (line[i+1] == '{' || line[i+1] == '}'):
				sb.WriteByte(line[i+1])
				i++
			case c == '`' && depth == 0:
				span := codeSpanAt(line, i)
				sb.WriteString(span)
				i += len(span) - 1
			case c == '{':
				if depth == 0 {
					lastOpen = lineNo
				}
				depth++
			case c == '}':
				if depth == 0 {
					return "", fmt.Errorf("%w: stray '}' on line %d", errUnbalancedExpression, lineNo)
				}
				depth--
			case depth == 0:
				sb.WriteByte(c)
			}
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("%w: '{' on line %d is never closed", errUnbalancedExpression, lastOpen)
	}
	return sb.String(), nil
}

// fenceMarker returns the backtick or tilde run opening a fenced code block.
func fenceMarker(line string) string {
	s := strings.TrimLeft(line, " ")
	if len(line)-len(s) > 3 {
		return ""
	}
	for _, ch := range []byte{'`', '~'} {
		n := 0
		for n < len(s) && s[n] == ch {
			n++
		}
		if n >= 3 {
			return s[:n]
		}
	}
	return ""
}

// codeSpanAt returns the inline code span starting at i, or just the
// backtick run when the span is never closed on this line.
func codeSpanAt(line string, i int) string {
	n := 0
	for i+n < len(line) && line[i+n] == '`' {
		n++
	}
	run := line[i : i+n]
	rest := line[i+n:]
	for j := 0; j < len(rest); {
		k := strings.Index(rest[j:], run)
		if k < 0 {
			break
		}
		start := j + k
		end := start + n
		if end < len(rest) && rest[end] == '`' {
			for end < len(rest) && rest[end] == '`' {
				end++
			}
			j = end
			continue
		}
		return line[i : i+n+end]
	}
	return run
}
