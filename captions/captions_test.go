package captions

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Noofbiz/inpaintdata/vocab"
)

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func testTable(t *testing.T) *vocab.Table {
	t.Helper()
	tbl, err := vocab.New(nil, map[string]int{"<end>": 0, "a": 1, "cat": 2, "sits": 3, "on": 4, "the": 5, "mat": 6})
	if err != nil {
		t.Fatalf("vocab.New failed: %v", err)
	}
	return tbl
}

func TestStore_LoadAndSelect(t *testing.T) {
	p := filepath.Join(t.TempDir(), "captions.json")
	writeJSON(t, p, `{"a.jpg": ["first", "second", "third"], "b.jpg": "only one"}`)

	s, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}

	for ordinal, want := range []string{"first", "second", "third"} {
		got, err := s.Select("a.jpg", ordinal, Strict)
		if err != nil {
			t.Fatalf("Select(a.jpg, %d) error: %v", ordinal, err)
		}
		if got != want {
			t.Fatalf("Select(a.jpg, %d) = %q, want %q", ordinal, got, want)
		}
	}

	// Single captions ignore the ordinal.
	for _, ordinal := range []int{0, 3, 9} {
		got, err := s.Select("b.jpg", ordinal, Strict)
		if err != nil || got != "only one" {
			t.Fatalf("Select(b.jpg, %d) = %q, %v", ordinal, got, err)
		}
	}
}

func TestStore_Overflow(t *testing.T) {
	s := NewStore(map[string]Entry{"x.png": {Captions: []string{"c0", "c1"}}})

	got, err := s.Select("x.png", 5, Wrap)
	if err != nil {
		t.Fatalf("wrap select failed: %v", err)
	}
	if got != "c1" {
		t.Fatalf("wrap select = %q, want c1", got)
	}

	if _, err := s.Select("x.png", 2, Strict); !errors.Is(err, ErrLookup) {
		t.Fatalf("strict select: expected ErrLookup, got %v", err)
	}
}

func TestStore_UnknownAndEmpty(t *testing.T) {
	s := NewStore(map[string]Entry{"empty.png": {}})
	if _, err := s.Select("missing.png", 0, Wrap); !errors.Is(err, ErrLookup) {
		t.Fatalf("expected ErrLookup for unknown image, got %v", err)
	}
	if _, err := s.Select("empty.png", 0, Wrap); !errors.Is(err, ErrLookup) {
		t.Fatalf("expected ErrLookup for empty list, got %v", err)
	}
}

func TestStore_LoadRejectsBadEntries(t *testing.T) {
	p := filepath.Join(t.TempDir(), "captions.json")
	writeJSON(t, p, `{"a.jpg": 42}`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for numeric caption entry")
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	for in, want := range map[string]OverflowPolicy{"": Wrap, "wrap": Wrap, "STRICT": Strict} {
		got, err := ParseOverflowPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseOverflowPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseOverflowPolicy("clamp"); err == nil {
		t.Errorf("expected error for unknown policy")
	}
}

func TestNumCaptionsFor(t *testing.T) {
	cases := map[string]int{
		"data/coco/captions.json":       5,
		"data/COCO_captions.json":       5,
		"data/places2/captions.json":    1,
		"data/cub_200/captions.json":    10,
		"data/flowers/text_c10.json":    10,
		"/datasets/Place365/train.json": 1,
	}
	for path, want := range cases {
		if got := NumCaptionsFor(path); got != want {
			t.Errorf("NumCaptionsFor(%q) = %d, want %d", path, got, want)
		}
	}
}

func TestLoadCategories(t *testing.T) {
	dir := t.TempDir()
	cateImage := filepath.Join(dir, "cate_image.json")
	imageCate := filepath.Join(dir, "image_cate.json")
	writeJSON(t, cateImage, `{"bird": ["a.jpg", "b.jpg"], "cat": ["c.jpg"]}`)
	writeJSON(t, imageCate, `{"a.jpg": "bird", "b.jpg": "bird", "c.jpg": "cat"}`)

	c, err := LoadCategories(cateImage, imageCate)
	if err != nil {
		t.Fatalf("LoadCategories failed: %v", err)
	}
	if c.NumCategories() != 2 {
		t.Fatalf("expected 2 categories, got %d", c.NumCategories())
	}

	writeJSON(t, imageCate, `{"a.jpg": "cat"}`)
	if _, err := LoadCategories(cateImage, imageCate); err == nil {
		t.Fatalf("expected error for inconsistent category files")
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("A Cat, sits... on the naïve mat!")
	want := []string{"a", "cat", "sits", "on", "the", "nave", "mat"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestIndexer_ShortCaption(t *testing.T) {
	ix, err := NewIndexer(testTable(t), 5)
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}
	enc := ix.Encode("a cat sits")
	want := []int32{1, 2, 3, vocab.PadIndex, vocab.PadIndex}
	if !reflect.DeepEqual(enc.Indices, want) {
		t.Fatalf("Encode indices = %v, want %v", enc.Indices, want)
	}
	if enc.Length != 3 {
		t.Fatalf("Encode length = %d, want 3", enc.Length)
	}
}

func TestIndexer_TruncatesAndDropsUnknown(t *testing.T) {
	ix, err := NewIndexer(testTable(t), 4)
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}
	enc := ix.Encode("a fluffy cat sits on the mat")
	want := []int32{1, 2, 3, 4}
	if !reflect.DeepEqual(enc.Indices, want) {
		t.Fatalf("Encode indices = %v, want %v", enc.Indices, want)
	}
	if enc.Length != 4 {
		t.Fatalf("Encode length = %d, want 4", enc.Length)
	}
}

func TestIndexer_Deterministic(t *testing.T) {
	ix, err := NewIndexer(testTable(t), 8)
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}
	const caption = "the cat sits on the mat"
	first := ix.Encode(caption)
	for range 5 {
		again := ix.Encode(caption)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Encode not deterministic: %v vs %v", first, again)
		}
		if len(again.Indices) != ix.MaxLength() {
			t.Fatalf("expected %d indices, got %d", ix.MaxLength(), len(again.Indices))
		}
	}
}

func TestNewIndexer_Invalid(t *testing.T) {
	if _, err := NewIndexer(testTable(t), 0); err == nil {
		t.Fatalf("expected error for zero max length")
	}
	if _, err := NewIndexer(nil, 3); err == nil {
		t.Fatalf("expected error for nil table")
	}
}
