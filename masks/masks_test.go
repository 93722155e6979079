package masks

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/inpaintdata/transform"
)

// writeMaskPNG writes a w x h image whose left half is black (occluded) and
// right half white.
func writeMaskPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func makePool(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	pool := make([]string, n)
	for i := range pool {
		pool[i] = filepath.Join(dir, "mask_"+string(rune('a'+i))+".png")
		writeMaskPNG(t, pool[i], 90, 70)
	}
	return pool
}

func assertBinary(t *testing.T, m *Mask, w, h int) {
	t.Helper()
	if m.Width != w || m.Height != h || len(m.Data) != w*h {
		t.Fatalf("mask %s has size %dx%d (%d values), want %dx%d", m.Type, m.Width, m.Height, len(m.Data), w, h)
	}
	for i, v := range m.Data {
		if v != 0 && v != 1 {
			t.Fatalf("mask %s value %d = %v, want 0 or 1", m.Type, i, v)
		}
	}
}

func TestCenterMask_Geometry(t *testing.T) {
	g, err := NewGenerator(Config{Types: []Type{Center}})
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	for seed := int64(0); seed < 5; seed++ {
		m, err := g.Generate(rand.New(rand.NewSource(seed)), 64, 64, int(seed))
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				want := float32(0)
				if x >= 16 && x < 48 && y >= 16 && y < 48 {
					want = 1
				}
				if got := m.At(x, y); got != want {
					t.Fatalf("seed %d: At(%d,%d) = %v, want %v", seed, x, y, got, want)
				}
			}
		}
	}
}

func TestCenterMask_NonSquare(t *testing.T) {
	m := CenterMask(40, 20, 0.5)
	if got, want := m.Coverage(), 0.25; got != want {
		t.Fatalf("coverage = %v, want %v", got, want)
	}
	if m.At(10, 5) != 1 || m.At(29, 14) != 1 || m.At(9, 5) != 0 || m.At(30, 14) != 0 {
		t.Fatalf("unexpected centre rectangle bounds")
	}
}

func TestGenerate_AllStrategiesBinary(t *testing.T) {
	pool := makePool(t, 2)
	for _, typ := range []Type{Center, RandomRegular, RandomIrregular, ExternalFile} {
		for _, train := range []bool{true, false} {
			g, err := NewGenerator(Config{Types: []Type{typ}, Width: 96, Height: 80, Pool: pool, IsTrain: train})
			if err != nil {
				t.Fatalf("%s: NewGenerator failed: %v", typ, err)
			}
			for seed := int64(0); seed < 6; seed++ {
				m, err := g.Generate(rand.New(rand.NewSource(seed)), 96, 80, int(seed))
				if err != nil {
					t.Fatalf("%s: Generate failed: %v", typ, err)
				}
				if m.Type != typ {
					t.Fatalf("Type = %s, want %s", m.Type, typ)
				}
				assertBinary(t, m, 96, 80)
			}
		}
	}
}

func TestRandomRegularMask_Occludes(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		m := RandomRegularMask(rand.New(rand.NewSource(seed)), 64, 48)
		if m.Coverage() == 0 {
			t.Fatalf("seed %d: empty regular mask", seed)
		}
	}
}

func TestRandomIrregularMask_Deterministic(t *testing.T) {
	a := RandomIrregularMask(rand.New(rand.NewSource(7)), 64, 64)
	b := RandomIrregularMask(rand.New(rand.NewSource(7)), 64, 64)
	if a.Coverage() == 0 {
		t.Fatalf("empty irregular mask")
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("irregular masks with the same seed differ at %d", i)
		}
	}
}

func TestExternalFile_EvalDeterministic(t *testing.T) {
	pool := makePool(t, 3)
	g, err := NewGenerator(Config{Types: []Type{ExternalFile}, Pool: pool})
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	for index := 0; index < 7; index++ {
		for seed := int64(0); seed < 3; seed++ {
			m, err := g.Generate(rand.New(rand.NewSource(seed)), 32, 32, index)
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if want := pool[index%len(pool)]; m.Source != want {
				t.Fatalf("index %d: Source = %s, want %s", index, m.Source, want)
			}
			if m.Coverage() == 0 {
				t.Fatalf("index %d: external mask has no occluded pixels", index)
			}
		}
	}
}

func TestExternalFile_TrainVaries(t *testing.T) {
	pool := makePool(t, 3)
	g, err := NewGenerator(Config{Types: []Type{ExternalFile}, Pool: pool, IsTrain: true})
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	seen := map[string]bool{}
	for seed := int64(0); seed < 30; seed++ {
		m, err := g.Generate(rand.New(rand.NewSource(seed)), 32, 32, 0)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		seen[m.Source] = true
	}
	if len(seen) < 2 {
		t.Fatalf("training picked a single mask file over 30 draws: %v", seen)
	}
}

func TestExternalFile_ReleasesHandle(t *testing.T) {
	pool := makePool(t, 1)
	if _, err := ExternalFileMask(rand.New(rand.NewSource(1)), pool[0], 16, 16, transform.DecodeOptions{}); err != nil {
		t.Fatalf("ExternalFileMask failed: %v", err)
	}
	renamed := pool[0] + ".moved"
	if err := os.Rename(pool[0], renamed); err != nil {
		t.Fatalf("rename after success failed: %v", err)
	}

	bad := filepath.Join(filepath.Dir(pool[0]), "bad.png")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ExternalFileMask(rand.New(rand.NewSource(1)), bad, 16, 16, transform.DecodeOptions{})
	if !errors.Is(err, transform.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if err := os.Remove(bad); err != nil {
		t.Fatalf("remove after failure failed: %v", err)
	}
}

func TestNewGenerator_Invalid(t *testing.T) {
	cases := map[string]Config{
		"empty":           {},
		"unknown type":    {Types: []Type{Type(9)}},
		"external pool":   {Types: []Type{Center, ExternalFile}},
		"small irregular": {Types: []Type{RandomIrregular}, Width: 32, Height: 32},
		"fraction":        {Types: []Type{Center}, CenterFraction: 1.5},
	}
	for name, cfg := range cases {
		if _, err := NewGenerator(cfg); !errors.Is(err, ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", name, err)
		}
	}
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"center":         Center,
		"Random-Regular": RandomRegular,
		"irregular":      RandomIrregular,
		"external-file":  ExternalFile,
		"3":              ExternalFile,
		" 1 ":            RandomRegular,
	}
	for in, want := range cases {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "4", "-1", "square"} {
		if _, err := ParseType(in); err == nil {
			t.Errorf("ParseType(%q): expected error", in)
		}
	}

	types, err := ParseTypes("center, 2,external")
	if err != nil {
		t.Fatalf("ParseTypes failed: %v", err)
	}
	if got := FormatTypes(types); got != "center,irregular,external" {
		t.Fatalf("FormatTypes = %q", got)
	}
}

func TestType_JSON(t *testing.T) {
	var got []Type
	if err := json.Unmarshal([]byte(`["regular", 0, "external"]`), &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(got) != 3 || got[0] != RandomRegular || got[1] != Center || got[2] != ExternalFile {
		t.Fatalf("unexpected types %v", got)
	}
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(b) != `["regular","center","external"]` {
		t.Fatalf("Marshal = %s", b)
	}
}
