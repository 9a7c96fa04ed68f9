package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

type bpe struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads a BPE encoding. The ranks file is fetched on first use
// unless a local loader was installed with tiktoken.SetBpeLoader.
func NewTiktoken(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &bpe{enc: enc}, nil
}

func (b *bpe) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(b.enc.EncodeOrdinary(text))
}
