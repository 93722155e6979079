// Package vocab holds the fixed word/index table used to encode captions.
//
// A Table is loaded once and never mutated afterwards, so it can be shared
// freely between the workers of a batch loader.
package vocab

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PadIndex is reserved for padding and is never produced for a real word.
const PadIndex = 0

// ErrInvalid is returned when a vocabulary file can't be turned into a Table.
var ErrInvalid = errors.New("invalid vocabulary")

// Table is an immutable bidirectional word<->index mapping.
type Table struct {
	ixToWord map[int]string
	wordToIx map[string]int
}

// File is the gob layout of a vocabulary file.
type File struct {
	IxToWord map[int]string
	WordToIx map[string]int
}

// New builds a Table from the two mappings. Either mapping may be nil, in
// which case it is derived from the other one. The inputs are copied.
func New(ixToWord map[int]string, wordToIx map[string]int) (*Table, error) {
	if len(ixToWord) == 0 && len(wordToIx) == 0 {
		return nil, errors.Wrap(ErrInvalid, "both mappings are empty")
	}
	t := &Table{
		ixToWord: make(map[int]string, max(len(ixToWord), len(wordToIx))),
		wordToIx: make(map[string]int, max(len(ixToWord), len(wordToIx))),
	}
	for ix, w := range ixToWord {
		t.ixToWord[ix] = w
	}
	for w, ix := range wordToIx {
		t.wordToIx[w] = ix
	}
	if len(wordToIx) == 0 {
		for ix, w := range ixToWord {
			t.wordToIx[w] = ix
		}
	}
	if len(ixToWord) == 0 {
		for w, ix := range wordToIx {
			t.ixToWord[ix] = w
		}
	}
	for w, ix := range t.wordToIx {
		if ix < 0 {
			return nil, errors.Wrapf(ErrInvalid, "word %q has negative index %d", w, ix)
		}
	}
	return t, nil
}

// Index returns the index of word.
func (t *Table) Index(word string) (int, bool) {
	ix, ok := t.wordToIx[word]
	return ix, ok
}

// Word returns the word stored at index ix.
func (t *Table) Word(ix int) (string, bool) {
	w, ok := t.ixToWord[ix]
	return w, ok
}

// Size returns the number of words in the table.
func (t *Table) Size() int {
	return len(t.wordToIx)
}

// Load reads a vocabulary file. Files ending in ".gob" are decoded as File,
// anything else as JSON. Two JSON layouts are understood:
//
//	{"ixtoword": {"0": "<end>", ...}, "wordtoix": {"<end>": 0, ...}, ...}
//	[train_captions, test_captions, ixtoword, wordtoix, n_words]
//
// Every other field in the file is ignored.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary %s", path)
	}
	if strings.EqualFold(filepath.Ext(path), ".gob") {
		var f File
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
			return nil, errors.Wrapf(ErrInvalid, "decode gob %s: %v", path, err)
		}
		return New(f.IxToWord, f.WordToIx)
	}

	data = bytes.TrimSpace(data)
	var ixRaw, wordRaw json.RawMessage
	switch {
	case len(data) > 0 && data[0] == '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil {
			return nil, errors.Wrapf(ErrInvalid, "decode %s: %v", path, err)
		}
		if len(parts) < 4 {
			return nil, errors.Wrapf(ErrInvalid, "%s: expected at least 4 elements, got %d", path, len(parts))
		}
		ixRaw, wordRaw = parts[2], parts[3]
	default:
		var obj struct {
			IxToWord json.RawMessage `json:"ixtoword"`
			WordToIx json.RawMessage `json:"wordtoix"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, errors.Wrapf(ErrInvalid, "decode %s: %v", path, err)
		}
		ixRaw, wordRaw = obj.IxToWord, obj.WordToIx
	}

	ixToWord, err := decodeIxToWord(ixRaw)
	if err != nil {
		return nil, errors.WithMessagef(err, "vocabulary %s", path)
	}
	var wordToIx map[string]int
	if len(wordRaw) > 0 && string(wordRaw) != "null" {
		if err := json.Unmarshal(wordRaw, &wordToIx); err != nil {
			return nil, errors.Wrapf(ErrInvalid, "%s: wordtoix: %v", path, err)
		}
	}
	return New(ixToWord, wordToIx)
}

// decodeIxToWord accepts either an object keyed by stringified indices or a
// plain list of words.
func decodeIxToWord(raw json.RawMessage) (map[int]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var words []string
		if err := json.Unmarshal(raw, &words); err != nil {
			return nil, errors.Wrapf(ErrInvalid, "ixtoword: %v", err)
		}
		m := make(map[int]string, len(words))
		for i, w := range words {
			m[i] = w
		}
		return m, nil
	}
	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "ixtoword: %v", err)
	}
	m := make(map[int]string, len(byKey))
	for k, w := range byKey {
		ix, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "ixtoword key %q is not an integer", k)
		}
		m[ix] = w
	}
	return m, nil
}
