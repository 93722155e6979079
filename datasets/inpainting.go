package datasets

import (
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/inpaintdata/captions"
	"github.com/Noofbiz/inpaintdata/masks"
	"github.com/Noofbiz/inpaintdata/options"
	"github.com/Noofbiz/inpaintdata/transform"
	"github.com/Noofbiz/inpaintdata/vocab"
)

// Sample is one assembled training example. It is built fresh by every
// Example call and owned by the caller.
type Sample struct {
	// Index is the flat index the sample was fetched with.
	Index          int
	ImageOrdinal   int
	CaptionOrdinal int
	ImagePath      string

	Width, Height int
	// Image holds Height*Width*3 RGB values in [0, 1], row-major.
	Image []float32
	Mask  *masks.Mask

	Caption        string
	CaptionIndices []int32
	CaptionLength  int
}

// InpaintingDataset lazily assembles samples from a list of image paths.
type InpaintingDataset struct {
	opts options.Options

	imagePaths  []string
	numCaptions int

	vocab      *vocab.Table
	captions   *captions.Store
	categories *captions.Categories
	indexer    *captions.Indexer
	overflow   captions.OverflowPolicy

	pipeline  *transform.Pipeline
	masks     *masks.Generator
	decodeOpt transform.DecodeOptions
}

// NewInpaintingDataset validates opts and loads every resource a fetch needs:
// the image and mask listings, vocabulary, captions and, when configured,
// the category files. Failures are *ConfigError.
func NewInpaintingDataset(opts options.Options) (*InpaintingDataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	ds := &InpaintingDataset{
		opts:        opts,
		numCaptions: opts.CaptionsPerImage(),
		decodeOpt:   opts.DecodeOptions(),
	}

	var err error
	if ds.imagePaths, err = MakeDataset(opts.ImgFile); err != nil {
		return nil, &ConfigError{Err: errors.WithMessage(err, "listing images")}
	}
	if len(ds.imagePaths) == 0 {
		return nil, &ConfigError{Err: errors.Errorf("no images found at %s", opts.ImgFile)}
	}

	var pool []string
	if opts.HasMaskPool() {
		if pool, err = MakeDataset(opts.MaskFile); err != nil {
			return nil, &ConfigError{Err: errors.WithMessage(err, "listing masks")}
		}
	}

	if ds.vocab, err = vocab.Load(opts.VocabFile); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if ds.captions, err = captions.Load(opts.CaptionFile); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if opts.CateImageFile != "" {
		if ds.categories, err = captions.LoadCategories(opts.CateImageFile, opts.ImageCateFile); err != nil {
			return nil, &ConfigError{Err: err}
		}
	}
	if ds.indexer, err = captions.NewIndexer(ds.vocab, opts.MaxLength); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if ds.overflow, err = captions.ParseOverflowPolicy(opts.CaptionOverflow); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if ds.pipeline, err = transform.NewPipeline(opts.PipelineConfig()); err != nil {
		return nil, &ConfigError{Err: err}
	}
	fine := opts.FineSize.Point()
	ds.masks, err = masks.NewGenerator(masks.Config{
		Types:          opts.MaskType,
		Width:          fine.X,
		Height:         fine.Y,
		CenterFraction: opts.CenterFraction,
		Pool:           pool,
		IsTrain:        opts.IsTrain,
		Decode:         ds.decodeOpt,
	})
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	klog.Infof("%s: %s images x %d captions, vocabulary of %s words, %d captioned images, masks %s (pool of %d)",
		ds.Name(), humanize.Comma(int64(len(ds.imagePaths))), ds.numCaptions,
		humanize.Comma(int64(ds.vocab.Size())), ds.captions.Len(),
		masks.FormatTypes(opts.MaskType), len(pool))
	if ds.categories != nil {
		klog.V(1).Infof("%s: %d categories loaded (not used for sampling)", ds.Name(), ds.categories.NumCategories())
	}
	return ds, nil
}

// Name returns the name of the dataset.
func (ds *InpaintingDataset) Name() string {
	return "inpainting dataset"
}

// Len returns the number of source images.
func (ds *InpaintingDataset) Len() int {
	return len(ds.imagePaths)
}

// NumCaptions returns the number of captions per image.
func (ds *InpaintingDataset) NumCaptions() int {
	return ds.numCaptions
}

// ImagePaths returns the sorted image listing.
func (ds *InpaintingDataset) ImagePaths() []string {
	return append([]string(nil), ds.imagePaths...)
}

// Vocabulary returns the vocabulary captions are encoded against.
func (ds *InpaintingDataset) Vocabulary() *vocab.Table {
	return ds.vocab
}

// Categories returns the category index, or nil when none was configured.
func (ds *InpaintingDataset) Categories() *captions.Categories {
	return ds.categories
}

// Options returns the options the dataset was built with.
func (ds *InpaintingDataset) Options() options.Options {
	return ds.opts
}

// Example assembles the sample at flat index i. Any i >= 0 is valid; errors
// are *FetchError naming i and the failing stage.
func (ds *InpaintingDataset) Example(i int) (*Sample, error) {
	if i < 0 {
		return nil, &FetchError{Index: i, Stage: StageIndex, Err: errors.Wrapf(ErrIndex, "index %d is negative", i)}
	}
	imgOrd, capOrd := MapIndex(i, len(ds.imagePaths), ds.numCaptions)
	path := ds.imagePaths[imgOrd]
	rng := sampleRand(ds.opts.Seed, i)

	src, err := transform.LoadRGB(path, ds.decodeOpt)
	if err != nil {
		return nil, &FetchError{Index: i, Stage: StageImage, Path: path, Err: err}
	}
	img, err := ds.pipeline.Apply(rng, src)
	if err != nil {
		return nil, &FetchError{Index: i, Stage: StageImage, Path: path, Err: errors.Wrapf(ErrConfig, "transform: %v", err)}
	}
	b := img.Bounds()

	mask, err := ds.masks.Generate(rng, b.Dx(), b.Dy(), i)
	if err != nil {
		if !errors.Is(err, ErrDecode) {
			err = errors.Wrapf(ErrConfig, "%v", err)
		}
		return nil, &FetchError{Index: i, Stage: StageMask, Path: path, Err: err}
	}

	caption, err := ds.captions.Select(filepath.Base(path), capOrd, ds.overflow)
	if err != nil {
		return nil, &FetchError{Index: i, Stage: StageCaption, Path: path, Err: err}
	}
	enc := ds.indexer.Encode(caption)

	return &Sample{
		Index:          i,
		ImageOrdinal:   imgOrd,
		CaptionOrdinal: capOrd,
		ImagePath:      path,
		Width:          b.Dx(),
		Height:         b.Dy(),
		Image:          transform.ToFloat32(img),
		Mask:           mask,
		Caption:        caption,
		CaptionIndices: enc.Indices,
		CaptionLength:  enc.Length,
	}, nil
}

// Batch assembles the samples at indices sequentially.
func (ds *InpaintingDataset) Batch(indices []int) ([]*Sample, error) {
	samples := make([]*Sample, len(indices))
	for pos, idx := range indices {
		s, err := ds.Example(idx)
		if err != nil {
			return nil, err
		}
		samples[pos] = s
	}
	return samples, nil
}
