// Package tokenizer estimates how many model tokens a piece of text costs.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const DefaultCharsPerToken = 4

type Tokenizer interface {
	Count(text string) int
}

type heuristic struct {
	charsPerToken int
}

// NewHeuristic returns a tokenizer that charges one token per charsPerToken
// characters, rounding up. Non-empty text always costs at least one token.
func NewHeuristic(charsPerToken int) Tokenizer {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &heuristic{charsPerToken: charsPerToken}
}

func (h *heuristic) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + h.charsPerToken - 1) / h.charsPerToken
}

type Config struct {
	Kind          string
	CharsPerToken int
	Encoding      string
}

func New(cfg Config) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "heuristic":
		return NewHeuristic(cfg.CharsPerToken), nil
	case "tiktoken":
		return NewTiktoken(cfg.Encoding)
	default:
		return nil, fmt.Errorf("unsupported tokenizer: %s", cfg.Kind)
	}
}
