package peptide

import (
	"strings"

	"github.com/pkg/errors"
)

// The vocabulary is the first 27 symbols of the alphabet string: the start
// marker, the end marker and the residue letters A..Y. Z does not fit in the
// 27 ids and is deliberately absent, matching the upstream vocabulary.
const (
	alphabet  = "^.ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	VocabSize = 27

	StartID = 0
	EndID   = 1
)

var symbolIDs = buildSymbolIDs()

func buildSymbolIDs() map[string]int {
	var ids = make(map[string]int, VocabSize)
	for i := 0; i < VocabSize; i++ {
		ids[string(alphabet[i])] = i
	}
	return ids
}

// Symbols returns the vocabulary in id order.
func Symbols() []string {
	var symbols = make([]string, VocabSize)
	for i := 0; i < VocabSize; i++ {
		symbols[i] = string(alphabet[i])
	}
	return symbols
}

// Encode converts a whitespace-delimited residue string into integer tokens,
// wrapping it with the start and end markers. A plain sequence of L residues
// encodes to L+2 tokens. Symbols outside the vocabulary are errors.
func Encode(seq string) ([]int, error) {
	var wrapped = "^ " + seq + " ."
	var parts = strings.Split(wrapped, " ")
	var tokens = make([]int, 0, len(parts))
	for _, sym := range parts {
		id, ok := symbolIDs[sym]
		if !ok {
			return nil, errors.Errorf("unknown symbol %q in sequence %q", sym, seq)
		}
		tokens = append(tokens, id)
	}
	return tokens, nil
}

// Decode maps tokens back to their whitespace-delimited symbols.
func Decode(tokens []int) (string, error) {
	var parts = make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t < 0 || t >= VocabSize {
			return "", errors.Errorf("token %d out of vocabulary range", t)
		}
		parts = append(parts, string(alphabet[t]))
	}
	return strings.Join(parts, " "), nil
}

// Spaced converts a compact residue string like "MKV" to the
// whitespace-delimited form Encode expects.
func Spaced(seq string) string {
	var b strings.Builder
	for i, r := range seq {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Pad extends tokens to length n with the end marker. Longer sequences are
// returned unchanged.
func Pad(tokens []int, n int) []int {
	if len(tokens) >= n {
		return tokens
	}
	var padded = make([]int, n)
	copy(padded, tokens)
	for i := len(tokens); i < n; i++ {
		padded[i] = EndID
	}
	return padded
}
