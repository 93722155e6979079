package datasets

import (
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
)

func newLoader(t *testing.T, ds Dataset, cfg LoaderConfig) *Loader {
	t.Helper()
	l, err := NewLoader(ds, cfg)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	return l
}

// drainEpoch reads batches until io.EOF and returns the sorted flat indices.
func drainEpoch(t *testing.T, l *Loader) (indices []int, sizes []int) {
	t.Helper()
	for {
		b, err := l.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		indices = append(indices, b.Indices...)
		sizes = append(sizes, b.Size)
	}
	sort.Ints(indices)
	return indices, sizes
}

func TestLoader_Epochs(t *testing.T) {
	ds := newDataset(t, makeFixture(t))
	l := newLoader(t, ds, LoaderConfig{BatchSize: 2, Workers: 3, Shuffle: true, Seed: 11})
	if l.NumBatches() != 2 {
		t.Fatalf("NumBatches = %d, want 2", l.NumBatches())
	}

	got, sizes := drainEpoch(t, l)
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Fatalf("epoch 0 batch sizes %v, want [2 1]", sizes)
	}
	if want := []int{0, 1, 2}; !equalInts(got, want) {
		t.Fatalf("epoch 0 indices %v, want %v", got, want)
	}
	// Stays exhausted until Reset.
	if _, err := l.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after the epoch, got %v", err)
	}

	l.Reset()
	if l.Epoch() != 1 {
		t.Fatalf("Epoch = %d after Reset, want 1", l.Epoch())
	}
	got, _ = drainEpoch(t, l)
	if want := []int{3, 4, 5}; !equalInts(got, want) {
		t.Fatalf("epoch 1 indices %v, want %v", got, want)
	}
}

func TestLoader_NoShuffleOrder(t *testing.T) {
	ds := newDataset(t, makeFixture(t))
	l := newLoader(t, ds, LoaderConfig{BatchSize: 3, Workers: 2})
	b, err := l.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	for i, idx := range b.Indices {
		if idx != i {
			t.Fatalf("unshuffled batch indices %v", b.Indices)
		}
	}
}

func TestLoader_InfiniteAndDropIncomplete(t *testing.T) {
	ds := newDataset(t, makeFixture(t))
	l := newLoader(t, ds, LoaderConfig{BatchSize: 2, Infinite: true, DropIncomplete: true, Seed: 3})
	seen := map[int]bool{}
	for range 6 {
		b, err := l.Next()
		if err != nil {
			t.Fatalf("Next error on infinite loader: %v", err)
		}
		if b.Size != 2 {
			t.Fatalf("incomplete batch of %d yielded", b.Size)
		}
		for _, idx := range b.Indices {
			seen[idx/ds.Len()] = true
		}
	}
	if l.Epoch() < 5 || len(seen) < 5 {
		t.Fatalf("infinite loader did not advance epochs: epoch %d, seen %v", l.Epoch(), seen)
	}
}

func TestLoader_Yield(t *testing.T) {
	ds := newDataset(t, makeFixture(t))
	l := newLoader(t, ds, LoaderConfig{BatchSize: 2, Seed: 5, Shuffle: true})
	if l.Name() != ds.Name() {
		t.Fatalf("Name = %q", l.Name())
	}
	spec, inputs, labels, err := l.Yield()
	if err != nil {
		t.Fatalf("Yield error: %v", err)
	}
	if spec != l {
		t.Fatalf("spec should be the loader")
	}
	if len(inputs) != 4 || len(labels) != 1 {
		t.Fatalf("Yield returned %d inputs and %d labels", len(inputs), len(labels))
	}
	checks := []struct {
		dtype dtypes.DType
		dims  []int
	}{
		{dtypes.Float32, []int{2, 16, 16, 3}},
		{dtypes.Float32, []int{2, 16, 16, 1}},
		{dtypes.Int32, []int{2, 5}},
		{dtypes.Int32, []int{2}},
	}
	for i, c := range checks {
		if err := inputs[i].Shape().Check(c.dtype, c.dims...); err != nil {
			t.Fatalf("input %d: %v", i, err)
		}
	}
	if err := labels[0].Shape().Check(dtypes.Float32, 2, 16, 16, 3); err != nil {
		t.Fatalf("label: %v", err)
	}

	if _, _, _, err := l.Yield(); err != nil {
		t.Fatalf("second Yield error: %v", err)
	}
	if _, _, _, err := l.Yield(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLoader_Prefetch(t *testing.T) {
	ds := newDataset(t, makeFixture(t))
	l := newLoader(t, ds, LoaderConfig{BatchSize: 1, Seed: 9, Shuffle: true})
	pds := Prefetch(l)
	defer pds.Done()
	var n int
	for {
		_, inputs, _, err := pds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("prefetched Yield error: %v", err)
		}
		if err := inputs[0].Shape().Check(dtypes.Float32, 1, 16, 16, 3); err != nil {
			t.Fatalf("prefetched images: %v", err)
		}
		n++
	}
	if n != ds.Len() {
		t.Fatalf("prefetch yielded %d batches, want %d", n, ds.Len())
	}
}

func TestLoader_FetchErrorPropagates(t *testing.T) {
	o := makeFixture(t)
	writeFile(t, o.CaptionFile, `{"img0.png": ["a cat"]}`)
	ds := newDataset(t, o)
	l := newLoader(t, ds, LoaderConfig{BatchSize: 3, Workers: 3})
	_, err := l.Next()
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Stage != StageCaption {
		t.Fatalf("expected caption FetchError, got %v", err)
	}
}

func TestLoader_FetchErrorIsSticky(t *testing.T) {
	o := makeFixture(t)
	writeFile(t, o.CaptionFile, `{"img0.png": ["a cat"]}`)
	ds := newDataset(t, o)
	l := newLoader(t, ds, LoaderConfig{BatchSize: 1, Workers: 1})
	if _, err := l.Next(); err != nil {
		t.Fatalf("index 0 is captioned, got %v", err)
	}
	_, first := l.Next()
	if first == nil {
		t.Fatalf("expected an error for the uncaptioned img1")
	}
	for range 3 {
		if _, err := l.Next(); err != first {
			t.Fatalf("Next after a failure = %v, want %v", err, first)
		}
	}
	if l.Err() != first {
		t.Fatalf("Err = %v, want %v", l.Err(), first)
	}
	l.Reset()
	if l.Err() != nil {
		t.Fatalf("Reset should clear the error, got %v", l.Err())
	}
}

func TestLoader_PrefetchErrorPropagates(t *testing.T) {
	o := makeFixture(t)
	writeFile(t, o.CaptionFile, `{"img0.png": ["a cat"]}`)
	ds := newDataset(t, o)
	l := newLoader(t, ds, LoaderConfig{BatchSize: 1, Workers: 1})
	pds := Prefetch(l)
	defer pds.Done()

	for range 10 {
		_, inputs, _, err := pds.Yield()
		if err == nil {
			if len(inputs) != 4 {
				t.Fatalf("Yield returned %d inputs without an error", len(inputs))
			}
			continue
		}
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Stage != StageCaption || fe.Index == 0 {
			t.Fatalf("expected caption FetchError for an uncaptioned image, got %v", err)
		}
		if _, _, _, again := pds.Yield(); again == nil {
			t.Fatalf("error not reported again after the prefetch stopped")
		}
		return
	}
	t.Fatalf("fetch error never surfaced through the prefetched dataset")
}

func TestNewLoader_Invalid(t *testing.T) {
	ds := newDataset(t, makeFixture(t))
	for _, cfg := range []LoaderConfig{
		{BatchSize: 0},
		{BatchSize: 2, Workers: -1},
		{BatchSize: 4, DropIncomplete: true},
	} {
		if _, err := NewLoader(ds, cfg); !errors.Is(err, ErrConfig) {
			t.Errorf("%+v: expected ErrConfig, got %v", cfg, err)
		}
	}
}

func TestMakeBatch(t *testing.T) {
	ds := newDataset(t, makeFixture(t))
	samples, err := ds.Batch([]int{0, 4})
	if err != nil {
		t.Fatalf("Batch error: %v", err)
	}
	b, err := MakeBatch(samples)
	if err != nil {
		t.Fatalf("MakeBatch error: %v", err)
	}
	if b.Size != 2 || b.Lengths[0] != 2 || b.Lengths[1] != 1 || b.Captions[5] != 3 {
		t.Fatalf("unexpected batch %+v", b)
	}
	if b.Memory() != uint64(4*(2*16*16*3+2*16*16+2*5+2)) {
		t.Fatalf("Memory = %d", b.Memory())
	}
	shapes := b.Shapes()
	if len(shapes) != 4 || shapes[0].Dimensions[3] != 3 || shapes[2].DType != dtypes.Int32 {
		t.Fatalf("unexpected shapes %v", shapes)
	}

	samples[1].Width = 8
	if _, err := MakeBatch(samples); err == nil {
		t.Fatalf("expected error for inconsistent sizes")
	}
	if _, err := MakeBatch(nil); err == nil {
		t.Fatalf("expected error for an empty batch")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
