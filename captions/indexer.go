package captions

import (
	"regexp"
	"strings"

	"github.com/Noofbiz/inpaintdata/vocab"
	"github.com/pkg/errors"
)

// wordPattern matches runs of word characters, unicode included; non-ASCII
// runes are stripped from each run afterwards.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}\p{Mn}_]+`)

// Tokenize lower-cases caption and splits it into ASCII words, the same way
// the vocabulary tables were built.
func Tokenize(caption string) []string {
	runs := wordPattern.FindAllString(strings.ToLower(caption), -1)
	tokens := make([]string, 0, len(runs))
	for _, run := range runs {
		var b strings.Builder
		for _, r := range run {
			if r < 0x80 {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
		}
	}
	return tokens
}

// Encoded is a caption as a fixed-length index sequence.
type Encoded struct {
	// Indices always has exactly MaxLength entries, padded with vocab.PadIndex.
	Indices []int32
	// Length is the number of real tokens, at most MaxLength.
	Length int
}

// Indexer encodes captions against a vocabulary table.
type Indexer struct {
	table     *vocab.Table
	maxLength int
}

// NewIndexer returns an Indexer producing sequences of maxLength entries.
func NewIndexer(table *vocab.Table, maxLength int) (*Indexer, error) {
	if table == nil {
		return nil, errors.New("nil vocabulary table")
	}
	if maxLength <= 0 {
		return nil, errors.Errorf("max length must be positive, got %d", maxLength)
	}
	return &Indexer{table: table, maxLength: maxLength}, nil
}

// MaxLength returns the fixed output length.
func (ix *Indexer) MaxLength() int {
	return ix.maxLength
}

// Encode tokenizes caption and maps each known word to its index. Unknown
// words are dropped. Longer captions keep their first MaxLength words.
func (ix *Indexer) Encode(caption string) Encoded {
	out := Encoded{Indices: make([]int32, ix.maxLength)}
	for _, tok := range Tokenize(caption) {
		id, ok := ix.table.Index(tok)
		if !ok {
			continue
		}
		if out.Length == ix.maxLength {
			break
		}
		out.Indices[out.Length] = int32(id)
		out.Length++
	}
	for i := out.Length; i < ix.maxLength; i++ {
		out.Indices[i] = vocab.PadIndex
	}
	return out
}
