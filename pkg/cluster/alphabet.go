package cluster

import (
	"unicode"
)

// Alphabet is the ordered set of symbols clusters are named with.
type Alphabet []rune

// DefaultAlphabet holds every letter from U+0021 to U+024F in code point
// order: ASCII and Latin-1 letters followed by Latin Extended-A/B.
// Whitespace, punctuation and the tokenizer's U+2581 marker are excluded.
var DefaultAlphabet = letters(0x21, 0x24F)

func letters(lo, hi rune) Alphabet {
	var a Alphabet
	for r := lo; r <= hi; r++ {
		if unicode.IsLetter(r) {
			a = append(a, r)
		}
	}
	return a
}

// allocator hands out alphabet symbols in order.
type allocator struct {
	alphabet Alphabet
	next     int
}

func (a *allocator) alloc() (ID, error) {
	if a.next >= len(a.alphabet) {
		return 0, ErrAlphabetExhausted
	}
	id := ID(a.alphabet[a.next])
	a.next++
	return id, nil
}
