// Package chunker splits section content into pieces bounded by a character budget.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/docembed/internal/model"
)

const DefaultMaxLength = 1800

// Chunk splits content into pieces shorter than maxLength by greedily packing
// whole lines. A line that alone reaches maxLength is cut at word boundaries
// into pieces of at most maxLength characters.
func Chunk(content string, maxLength int) []string {
	if maxLength <= 0 || textLen(content) < maxLength {
		return []string{content}
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0
	open := false

	flush := func() {
		if !open {
			return
		}
		if strings.TrimSpace(buf.String()) != "" {
			chunks = append(chunks, buf.String())
		}
		buf.Reset()
		bufLen = 0
		open = false
	}

	for _, line := range strings.Split(content, "\n") {
		n := textLen(line)
		if n >= maxLength {
			flush()
			chunks = append(chunks, splitLine(line, maxLength)...)
			continue
		}
		next := n
		if open {
			next = bufLen + 1 + n
			if next >= maxLength {
				flush()
				next = n
			}
		}
		if open {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		bufLen = next
		open = true
	}
	flush()
	return chunks
}

// splitLine packs the words of line into pieces of at most maxLength
// characters. Words are never cut unless a single word is longer than maxLength.
func splitLine(line string, maxLength int) []string {
	var pieces []string
	var buf strings.Builder
	bufLen := 0
	for _, word := range strings.Fields(line) {
		n := textLen(word)
		if n > maxLength {
			if bufLen > 0 {
				pieces = append(pieces, buf.String())
				buf.Reset()
				bufLen = 0
			}
			pieces = append(pieces, splitRunes(word, maxLength)...)
			continue
		}
		if bufLen > 0 && bufLen+1+n > maxLength {
			pieces = append(pieces, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(word)
		bufLen += n
	}
	if bufLen > 0 {
		pieces = append(pieces, buf.String())
	}
	return pieces
}

func splitRunes(word string, maxLength int) []string {
	runes := []rune(word)
	pieces := make([]string, 0, len(runes)/maxLength+1)
	for start := 0; start < len(runes); start += maxLength {
		end := start + maxLength
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

// SplitSections chunks every section. When a section yields several chunks
// only the first keeps the lead heading.
func SplitSections(sections []model.Section, maxLength int) []model.Section {
	out := make([]model.Section, 0, len(sections))
	for _, section := range sections {
		for i, piece := range Chunk(section.Content, maxLength) {
			chunk := model.Section{Content: piece}
			if i == 0 {
				chunk.LeadHeading = section.LeadHeading
			}
			out = append(out, chunk)
		}
	}
	return out
}

func textLen(s string) int {
	return utf8.RuneCountInString(s)
}
