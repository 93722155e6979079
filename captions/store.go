// Package captions loads caption files and turns caption strings into
// fixed-length index sequences.
package captions

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ErrLookup is returned when no caption can be selected for an image.
var ErrLookup = errors.New("caption lookup failed")

// Entry is the caption record of one image: either a single caption or an
// ordered list of captions.
type Entry struct {
	Captions []string
	Single   bool
}

// UnmarshalJSON accepts either a JSON string or a list of strings.
func (e *Entry) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = Entry{Captions: []string{s}, Single: true}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.Wrap(err, "caption entry must be a string or a list of strings")
	}
	*e = Entry{Captions: list}
	return nil
}

// OverflowPolicy decides what happens when a caption ordinal is past the end
// of an image's caption list.
type OverflowPolicy int

const (
	// Wrap takes the ordinal modulo the list length.
	Wrap OverflowPolicy = iota
	// Strict fails the lookup with ErrLookup.
	Strict
)

func (p OverflowPolicy) String() string {
	switch p {
	case Wrap:
		return "wrap"
	case Strict:
		return "strict"
	}
	return "unknown"
}

// ParseOverflowPolicy parses "wrap" or "strict". The empty string means Wrap.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wrap":
		return Wrap, nil
	case "strict":
		return Strict, nil
	}
	return Wrap, errors.Errorf("unknown caption overflow policy %q", s)
}

// Store maps image basenames to their captions. Read-only after Load.
type Store struct {
	entries map[string]Entry
}

// NewStore wraps an already decoded set of entries.
func NewStore(entries map[string]Entry) *Store {
	return &Store{entries: entries}
}

// Load reads a JSON object mapping image basename to a caption string or a
// list of caption strings.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open caption file %s", path)
	}
	defer f.Close()

	var entries map[string]Entry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, errors.Wrapf(err, "failed to decode caption file %s", path)
	}
	return &Store{entries: entries}, nil
}

// Len returns the number of images with captions.
func (s *Store) Len() int {
	return len(s.entries)
}

// Entry returns the caption record of the named image.
func (s *Store) Entry(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Select returns the caption for (name, ordinal). A single-caption entry is
// returned regardless of ordinal.
func (s *Store) Select(name string, ordinal int, policy OverflowPolicy) (string, error) {
	e, ok := s.entries[name]
	if !ok {
		return "", errors.Wrapf(ErrLookup, "no captions for image %q", name)
	}
	if e.Single {
		return e.Captions[0], nil
	}
	n := len(e.Captions)
	if n == 0 {
		return "", errors.Wrapf(ErrLookup, "empty caption list for image %q", name)
	}
	if ordinal < 0 || ordinal >= n {
		if policy == Strict {
			return "", errors.Wrapf(ErrLookup, "caption %d requested for image %q which has %d", ordinal, name, n)
		}
		ordinal = ((ordinal % n) + n) % n
	}
	return e.Captions[ordinal], nil
}

// NumCaptionsFor derives the number of captions per image from the caption
// file path: COCO style sources carry 5, Places style sources 1, everything
// else (CUB, Oxford flowers) 10.
func NumCaptionsFor(captionPath string) int {
	name := strings.ToLower(captionPath)
	switch {
	case strings.Contains(name, "coco"):
		return 5
	case strings.Contains(name, "place"):
		return 1
	default:
		return 10
	}
}
