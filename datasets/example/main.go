package main

// Example command that demonstrates opening an inpainting dataset from a JSON
// options file, assembling a small batch and converting it into gomlx
// tensors, then feeding the same data through the loader as a train.Dataset.
//
// Images are loaded lazily: only paths are kept in memory and every sample
// opens, decodes and closes its image file when it is fetched.
//
// Usage:
//   go run ./datasets/example -config data.json

import (
	"flag"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/inpaintdata/datasets"
	"github.com/Noofbiz/inpaintdata/options"
)

func main() {
	klog.InitFlags(nil)
	configPath := flag.String("config", "data.json", "JSON options file")
	flag.Parse()
	defer klog.Flush()

	opts, err := options.LoadJSON(*configPath)
	if err != nil {
		klog.Exitf("failed to load options: %v", err)
	}
	ds, err := datasets.NewInpaintingDataset(opts)
	if err != nil {
		klog.Exitf("failed to open dataset: %v", err)
	}
	fmt.Printf("%s: %d images, %d captions each\n", ds.Name(), ds.Len(), ds.NumCaptions())

	// Prepare a small batch (first N examples)
	n := min(opts.BatchSize, ds.Len())
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}
	fmt.Printf("Loading batch of %d samples...\n", n)
	samples, err := ds.Batch(indices)
	if err != nil {
		klog.Exitf("failed to build batch: %v", err)
	}
	batch, err := datasets.MakeBatch(samples)
	if err != nil {
		klog.Exitf("failed to pack batch: %v", err)
	}
	images, occlusion, captions, lengths := batch.ToGomlxTensors()
	fmt.Printf("Created tensors (%s):\n", humanize.Bytes(batch.Memory()))
	fmt.Printf("  images:   %s\n", images.Shape())
	fmt.Printf("  masks:    %s\n", occlusion.Shape())
	fmt.Printf("  captions: %s\n", captions.Shape())
	fmt.Printf("  lengths:  %s\n", lengths.Shape())
	first := samples[0]
	fmt.Printf("  first sample: %s, mask %s (%.1f%% occluded), caption %q -> %v\n",
		first.ImagePath, first.Mask.Type, 100*first.Mask.Coverage(), first.Caption,
		first.CaptionIndices[:first.CaptionLength])

	// The loader plugs into gomlx training loops as a train.Dataset.
	loader, err := datasets.NewLoader(ds, datasets.LoaderConfigFrom(opts))
	if err != nil {
		klog.Exitf("failed to create loader: %v", err)
	}
	var trainDS train.Dataset = loader
	if opts.Prefetch {
		prefetched := datasets.Prefetch(loader)
		defer prefetched.Done()
		trainDS = prefetched
	}
	var batches int
	for {
		_, inputs, _, err := trainDS.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			klog.Exitf("failed to yield: %v", err)
		}
		batches++
		if batches == 1 {
			fmt.Printf("First yielded batch: images %s\n", inputs[0].Shape())
		}
	}
	fmt.Printf("One epoch: %d batches (prefetch=%v)\n", batches, opts.Prefetch)
}
