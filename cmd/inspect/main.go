// Command inspect loads an inpainting dataset, walks its batches and reports
// what the training loop would see: sizes, mask coverage per mask type and
// caption lengths. It writes histograms of both and can dump the first masks
// as PNG files.
//
// Usage:
//
//	go run ./cmd/inspect -config data.json -batches 20 -out plots -dump 8
//
// Options given on the command line override those in the -config file.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/inpaintdata/datasets"
	"github.com/Noofbiz/inpaintdata/masks"
	"github.com/Noofbiz/inpaintdata/options"
)

// stats accumulates per-batch observations.
type stats struct {
	samples  int
	bytes    uint64
	coverage map[masks.Type][]float64
	lengths  []float64
	dumped   int
}

func main() {
	klog.InitFlags(nil)
	configPath := flag.String("config", "", "JSON options file (flags override its values)")
	numBatches := flag.Int("batches", 0, "number of batches to inspect (0 = one full epoch)")
	outDir := flag.String("out", "plots", "output directory for histograms and mask dumps")
	dump := flag.Int("dump", 0, "number of masks to write as PNG files")
	bins := flag.Int("bins", 20, "histogram bins")
	cli := options.Defaults()
	cli.RegisterFlags(flag.CommandLine)
	flag.Parse()
	defer klog.Flush()

	opts := cli
	if *configPath != "" {
		var err error
		if opts, err = options.LoadJSON(*configPath); err != nil {
			klog.Exitf("failed to load options: %v", err)
		}
		options.ApplyFlags(&opts, &cli, flag.CommandLine)
	}

	runID := uuid.New()
	runDir := filepath.Join(*outDir, runID.String())
	klog.Infof("inspect run %s, writing to %s", runID, runDir)

	ds, err := datasets.NewInpaintingDataset(opts)
	if err != nil {
		klog.Exitf("failed to open dataset: %v", err)
	}
	loader, err := datasets.NewLoader(ds, datasets.LoaderConfigFrom(opts))
	if err != nil {
		klog.Exitf("failed to create loader: %v", err)
	}

	total := *numBatches
	if total <= 0 {
		total = loader.NumBatches()
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		klog.Exitf("failed to create output directory: %v", err)
	}

	st := &stats{coverage: make(map[masks.Type][]float64)}
	start := time.Now()
	bar := progressbar.Default(int64(total), "inspecting batches")
	for range total {
		batch, err := loader.Next()
		if err == io.EOF {
			loader.Reset()
			if batch, err = loader.Next(); err != nil {
				klog.Exitf("failed to read batch after reset: %v", err)
			}
		} else if err != nil {
			klog.Exitf("failed to read batch: %v", err)
		}
		st.add(batch)
		if st.dumped < *dump {
			if err := st.dumpMasks(runDir, batch, *dump); err != nil {
				klog.Exitf("failed to dump masks: %v", err)
			}
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	elapsed := time.Since(start)

	fmt.Printf("\n%s: %s images x %d captions (%s samples per pass over every caption)\n",
		ds.Name(), humanize.Comma(int64(ds.Len())), ds.NumCaptions(),
		humanize.Comma(int64(ds.Len()*ds.NumCaptions())))
	fmt.Printf("inspected %s samples in %d batches (%s of tensors) in %s, %.1f samples/s\n",
		humanize.Comma(int64(st.samples)), total, humanize.Bytes(st.bytes),
		elapsed.Round(time.Millisecond), float64(st.samples)/elapsed.Seconds())
	st.report()

	if err := plotHistograms(runDir, st, *bins); err != nil {
		klog.Exitf("failed to plot histograms: %v", err)
	}
	klog.Infof("histograms written to %s", runDir)
}

func (st *stats) add(b *datasets.Batch) {
	st.samples += b.Size
	st.bytes += b.Memory()
	for i := range b.Size {
		st.coverage[b.MaskTypes[i]] = append(st.coverage[b.MaskTypes[i]], b.Coverage[i])
		st.lengths = append(st.lengths, float64(b.Lengths[i]))
	}
}

func (st *stats) types() []masks.Type {
	types := make([]masks.Type, 0, len(st.coverage))
	for t := range st.coverage {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (st *stats) report() {
	for _, t := range st.types() {
		vals := st.coverage[t]
		lo, hi, mean := summarize(vals)
		fmt.Printf("  mask %-9s n=%-6d coverage mean %.3f min %.3f max %.3f\n", t, len(vals), mean, lo, hi)
	}
	lo, hi, mean := summarize(st.lengths)
	fmt.Printf("  caption length mean %.2f min %.0f max %.0f\n", mean, lo, hi)
}

func summarize(vals []float64) (lo, hi, mean float64) {
	if len(vals) == 0 {
		return 0, 0, 0
	}
	lo, hi = vals[0], vals[0]
	var sum float64
	for _, v := range vals {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += v
	}
	return lo, hi, sum / float64(len(vals))
}

// dumpMasks writes masks of b as mask_<index>_<type>.png until limit masks
// have been written in total.
func (st *stats) dumpMasks(dir string, b *datasets.Batch, limit int) error {
	pixels := b.Height * b.Width
	for i := 0; i < b.Size && st.dumped < limit; i++ {
		m := &masks.Mask{
			Width:  b.Width,
			Height: b.Height,
			Data:   b.Masks[i*pixels : (i+1)*pixels],
			Type:   b.MaskTypes[i],
		}
		path := filepath.Join(dir, fmt.Sprintf("mask_%06d_%s.png", b.Indices[i], m.Type))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := png.Encode(f, m.Gray()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		st.dumped++
	}
	return nil
}

var histColors = []color.RGBA{
	{R: 20, G: 80, B: 200, A: 200},
	{R: 200, G: 30, B: 30, A: 200},
	{R: 40, G: 150, B: 40, A: 200},
	{R: 120, G: 120, B: 120, A: 200},
}

// plotHistograms writes coverage.png (one histogram per mask type) and
// caption_lengths.png.
func plotHistograms(outDir string, st *stats, bins int) error {
	p := plot.New()
	p.Title.Text = "Mask coverage by mask type"
	p.X.Label.Text = "occluded fraction"
	p.Y.Label.Text = "samples"
	for _, t := range st.types() {
		vals := st.coverage[t]
		h, err := plotter.NewHist(plotter.Values(vals), bins)
		if err != nil {
			return err
		}
		h.FillColor = histColors[int(t)%len(histColors)]
		h.LineStyle.Width = vg.Points(0.5)
		p.Add(h)
		p.Legend.Add(t.String(), h)
	}
	p.Add(plotter.NewGrid())
	p.X.Min = 0
	p.X.Max = 1
	if err := p.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "coverage.png")); err != nil {
		return err
	}

	if len(st.lengths) == 0 {
		return nil
	}
	lp := plot.New()
	lp.Title.Text = "Caption lengths"
	lp.X.Label.Text = "tokens"
	lp.Y.Label.Text = "samples"
	h, err := plotter.NewHist(plotter.Values(st.lengths), bins)
	if err != nil {
		return err
	}
	h.FillColor = histColors[0]
	lp.Add(h)
	lp.Add(plotter.NewGrid())
	return lp.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "caption_lengths.png"))
}
