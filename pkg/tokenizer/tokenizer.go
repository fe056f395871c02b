package tokenizer

import (
	"strings"
	"unicode"
)

// CountTokens gives a rough subword token estimate for SentencePiece-style
// vocabularies, including the end-of-sequence token.
func CountTokens(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	punct := 0
	for _, r := range text {
		if unicode.IsPunct(r) {
			punct++
		}
	}
	return len(words)*4/3 + punct + 1
}

// Fits reports whether text is estimated to fit within limit tokens.
// A non-positive limit means unbounded.
func Fits(text string, limit int) bool {
	return limit <= 0 || CountTokens(text) <= limit
}
