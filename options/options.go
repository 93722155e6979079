// Package options holds the configuration of an inpainting dataset: where the
// images, masks and text resources live, how images are transformed and how
// the loader batches samples. Options come from a JSON file, command-line
// flags, or both (flags win).
package options

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Noofbiz/inpaintdata/captions"
	"github.com/Noofbiz/inpaintdata/masks"
	"github.com/Noofbiz/inpaintdata/transform"
)

// ErrConfig classifies invalid or incomplete configuration.
var ErrConfig = errors.New("invalid configuration")

// Size is an image size given as (height, width).
type Size [2]int

// Point converts s to an image.Point (X = width, Y = height).
func (s Size) Point() image.Point {
	return image.Pt(s[1], s[0])
}

func (s Size) String() string {
	return fmt.Sprintf("%d,%d", s[0], s[1])
}

// Set parses "H,W" or a single "S" meaning S x S.
func (s *Size) Set(v string) error {
	parts := strings.Split(v, ",")
	if len(parts) > 2 {
		return errors.Errorf("size %q: want H,W or S", v)
	}
	var out Size
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return errors.Wrapf(err, "size %q", v)
		}
		out[i] = n
	}
	if len(parts) == 1 {
		out[1] = out[0]
	}
	*s = out
	return nil
}

// MaskTypes is a flag.Value over a comma separated list of mask types.
type MaskTypes []masks.Type

func (m *MaskTypes) String() string {
	if m == nil {
		return ""
	}
	return masks.FormatTypes(*m)
}

func (m *MaskTypes) Set(v string) error {
	types, err := masks.ParseTypes(v)
	if err != nil {
		return err
	}
	*m = types
	return nil
}

// Options configures an inpainting dataset and its loader.
type Options struct {
	// ImgFile is a directory, list file (.flist/.txt) or glob of training images.
	ImgFile string `json:"img_file"`
	// MaskFile locates external masks; "" or "none" disables the pool.
	MaskFile string `json:"mask_file"`

	MaskType MaskTypes `json:"mask_type"`
	IsTrain  bool      `json:"is_train"`

	FineSize     Size   `json:"fine_size"`
	LoadSize     Size   `json:"load_size"`
	ResizeOrCrop string `json:"resize_or_crop"`
	NoFlip       bool   `json:"no_flip"`
	NoRotation   bool   `json:"no_rotation"`
	NoAugment    bool   `json:"no_augment"`

	Jitter          transform.Jitter `json:"jitter"`
	RotationDegrees float64          `json:"rotation_degrees"`
	CenterFraction  float64          `json:"center_fraction"`

	// Text resources.
	MaxLength     int    `json:"max_length"`
	VocabFile     string `json:"vocab_file"`
	CaptionFile   string `json:"caption_file"`
	CateImageFile string `json:"cate_image_file"`
	ImageCateFile string `json:"image_cate_file"`
	// NumCaptions is the number of captions per image; 0 derives it from
	// CaptionFile.
	NumCaptions     int    `json:"num_captions"`
	CaptionOverflow string `json:"caption_overflow"`

	AllowTruncated bool `json:"allow_truncated"`

	// Loader.
	BatchSize int   `json:"batch_size"`
	NThreads  int   `json:"n_threads"`
	NoShuffle bool  `json:"no_shuffle"`
	Seed      int64 `json:"seed"`
	Prefetch  bool  `json:"prefetch"`
}

// Defaults returns the default options.
func Defaults() Options {
	return Options{
		MaskFile:        "none",
		MaskType:        MaskTypes{masks.Center, masks.RandomRegular, masks.RandomIrregular},
		IsTrain:         true,
		FineSize:        Size{256, 256},
		LoadSize:        Size{266, 266},
		ResizeOrCrop:    transform.ResizeAndCrop,
		RotationDegrees: 3,
		CenterFraction:  masks.DefaultCenterFraction,
		MaxLength:       18,
		CaptionOverflow: captions.Wrap.String(),
		BatchSize:       8,
		NThreads:        runtime.NumCPU(),
	}
}

// LoadJSON reads options from path on top of Defaults. Unknown fields are
// rejected.
func LoadJSON(path string) (Options, error) {
	opts := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrapf(err, "reading options %s", path)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return opts, errors.Wrapf(ErrConfig, "parsing options %s: %v", path, err)
	}
	return opts, nil
}

// RegisterFlags binds every option to a flag of fs, using the current values
// of o as defaults.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.ImgFile, "img_file", o.ImgFile, "training images: directory, .flist/.txt list or glob")
	fs.StringVar(&o.MaskFile, "mask_file", o.MaskFile, "external mask images: directory, list or glob ('none' disables)")
	fs.Var(&o.MaskType, "mask_type", "comma separated mask types: center, regular, irregular, external (or 0-3)")
	fs.BoolVar(&o.IsTrain, "is_train", o.IsTrain, "training mode (random crops, augmentation, random mask files)")
	fs.Var(&o.FineSize, "fine_size", "final image size H,W")
	fs.Var(&o.LoadSize, "load_size", "size H,W images are resized to before cropping")
	fs.StringVar(&o.ResizeOrCrop, "resize_or_crop", o.ResizeOrCrop, "training resize mode: resize_and_crop, crop or none")
	fs.BoolVar(&o.NoFlip, "no_flip", o.NoFlip, "disable random horizontal flips")
	fs.BoolVar(&o.NoRotation, "no_rotation", o.NoRotation, "disable random rotation")
	fs.BoolVar(&o.NoAugment, "no_augment", o.NoAugment, "disable colour jitter")
	fs.Float64Var(&o.Jitter.Brightness, "jitter_brightness", o.Jitter.Brightness, "brightness jitter strength")
	fs.Float64Var(&o.Jitter.Contrast, "jitter_contrast", o.Jitter.Contrast, "contrast jitter strength")
	fs.Float64Var(&o.Jitter.Saturation, "jitter_saturation", o.Jitter.Saturation, "saturation jitter strength")
	fs.Float64Var(&o.RotationDegrees, "rotation_degrees", o.RotationDegrees, "random rotation bound in degrees")
	fs.Float64Var(&o.CenterFraction, "center_fraction", o.CenterFraction, "side of the center mask relative to the image")
	fs.IntVar(&o.MaxLength, "max_length", o.MaxLength, "caption length in tokens")
	fs.StringVar(&o.VocabFile, "vocab_file", o.VocabFile, "vocabulary file (.json or .gob)")
	fs.StringVar(&o.CaptionFile, "caption_file", o.CaptionFile, "caption JSON file")
	fs.StringVar(&o.CateImageFile, "cate_image_file", o.CateImageFile, "category to images JSON file (optional)")
	fs.StringVar(&o.ImageCateFile, "image_cate_file", o.ImageCateFile, "image to category JSON file (optional)")
	fs.IntVar(&o.NumCaptions, "num_captions", o.NumCaptions, "captions per image (0 derives it from the caption file name)")
	fs.StringVar(&o.CaptionOverflow, "caption_overflow", o.CaptionOverflow, "caption ordinal overflow policy: wrap or strict")
	fs.BoolVar(&o.AllowTruncated, "allow_truncated", o.AllowTruncated, "accept truncated image files")
	fs.IntVar(&o.BatchSize, "batch_size", o.BatchSize, "samples per batch")
	fs.IntVar(&o.NThreads, "n_threads", o.NThreads, "parallel sample fetches")
	fs.BoolVar(&o.NoShuffle, "no_shuffle", o.NoShuffle, "keep sample order")
	fs.Int64Var(&o.Seed, "seed", o.Seed, "random seed (0 seeds from the clock)")
	fs.BoolVar(&o.Prefetch, "prefetch", o.Prefetch, "prepare batches in the background")
}

// ApplyFlags copies into dst the options whose flags were set explicitly on
// fs. src must be the Options fs was registered on.
func ApplyFlags(dst, src *Options, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "img_file":
			dst.ImgFile = src.ImgFile
		case "mask_file":
			dst.MaskFile = src.MaskFile
		case "mask_type":
			dst.MaskType = src.MaskType
		case "is_train":
			dst.IsTrain = src.IsTrain
		case "fine_size":
			dst.FineSize = src.FineSize
		case "load_size":
			dst.LoadSize = src.LoadSize
		case "resize_or_crop":
			dst.ResizeOrCrop = src.ResizeOrCrop
		case "no_flip":
			dst.NoFlip = src.NoFlip
		case "no_rotation":
			dst.NoRotation = src.NoRotation
		case "no_augment":
			dst.NoAugment = src.NoAugment
		case "jitter_brightness":
			dst.Jitter.Brightness = src.Jitter.Brightness
		case "jitter_contrast":
			dst.Jitter.Contrast = src.Jitter.Contrast
		case "jitter_saturation":
			dst.Jitter.Saturation = src.Jitter.Saturation
		case "rotation_degrees":
			dst.RotationDegrees = src.RotationDegrees
		case "center_fraction":
			dst.CenterFraction = src.CenterFraction
		case "max_length":
			dst.MaxLength = src.MaxLength
		case "vocab_file":
			dst.VocabFile = src.VocabFile
		case "caption_file":
			dst.CaptionFile = src.CaptionFile
		case "cate_image_file":
			dst.CateImageFile = src.CateImageFile
		case "image_cate_file":
			dst.ImageCateFile = src.ImageCateFile
		case "num_captions":
			dst.NumCaptions = src.NumCaptions
		case "caption_overflow":
			dst.CaptionOverflow = src.CaptionOverflow
		case "allow_truncated":
			dst.AllowTruncated = src.AllowTruncated
		case "batch_size":
			dst.BatchSize = src.BatchSize
		case "n_threads":
			dst.NThreads = src.NThreads
		case "no_shuffle":
			dst.NoShuffle = src.NoShuffle
		case "seed":
			dst.Seed = src.Seed
		case "prefetch":
			dst.Prefetch = src.Prefetch
		}
	})
}

// HasMaskPool reports whether an external mask source is configured.
func (o *Options) HasMaskPool() bool {
	return o.MaskFile != "" && o.MaskFile != "none"
}

// CaptionsPerImage returns NumCaptions, or the count derived from the caption
// file name when NumCaptions is 0.
func (o *Options) CaptionsPerImage() int {
	if o.NumCaptions > 0 {
		return o.NumCaptions
	}
	return captions.NumCaptionsFor(o.CaptionFile)
}

// Validate reports the first problem found in o. Errors match ErrConfig.
func (o *Options) Validate() error {
	switch {
	case o.ImgFile == "":
		return errors.Wrap(ErrConfig, "img_file is required")
	case o.VocabFile == "":
		return errors.Wrap(ErrConfig, "vocab_file is required")
	case o.CaptionFile == "":
		return errors.Wrap(ErrConfig, "caption_file is required")
	case len(o.MaskType) == 0:
		return errors.Wrap(ErrConfig, "mask_type must name at least one mask type")
	case o.FineSize[0] <= 0 || o.FineSize[1] <= 0:
		return errors.Wrapf(ErrConfig, "fine_size must be positive, got %v", o.FineSize)
	case o.MaxLength <= 0:
		return errors.Wrapf(ErrConfig, "max_length must be positive, got %d", o.MaxLength)
	case o.NumCaptions < 0:
		return errors.Wrapf(ErrConfig, "num_captions must not be negative, got %d", o.NumCaptions)
	case o.BatchSize <= 0:
		return errors.Wrapf(ErrConfig, "batch_size must be positive, got %d", o.BatchSize)
	case o.NThreads < 0:
		return errors.Wrapf(ErrConfig, "n_threads must not be negative, got %d", o.NThreads)
	case o.RotationDegrees < 0:
		return errors.Wrapf(ErrConfig, "rotation_degrees must not be negative, got %g", o.RotationDegrees)
	}
	for _, t := range o.MaskType {
		if !t.Valid() {
			return errors.Wrapf(ErrConfig, "invalid mask type %d", int(t))
		}
		if t == masks.ExternalFile && !o.HasMaskPool() {
			return errors.Wrap(ErrConfig, "mask_type external requires mask_file")
		}
	}
	if (o.CateImageFile == "") != (o.ImageCateFile == "") {
		return errors.Wrap(ErrConfig, "cate_image_file and image_cate_file must be set together")
	}
	if _, err := captions.ParseOverflowPolicy(o.CaptionOverflow); err != nil {
		return errors.Wrapf(ErrConfig, "caption_overflow: %v", err)
	}
	if _, err := transform.NewPipeline(o.PipelineConfig()); err != nil {
		return errors.Wrapf(ErrConfig, "image pipeline: %v", err)
	}
	return nil
}

// PipelineConfig returns the image pipeline configuration.
func (o *Options) PipelineConfig() transform.Config {
	return transform.Config{
		IsTrain:         o.IsTrain,
		LoadSize:        o.LoadSize.Point(),
		FineSize:        o.FineSize.Point(),
		ResizeOrCrop:    o.ResizeOrCrop,
		NoAugment:       o.NoAugment,
		NoFlip:          o.NoFlip,
		NoRotation:      o.NoRotation,
		Jitter:          o.Jitter,
		RotationDegrees: o.RotationDegrees,
	}
}

// DecodeOptions returns the image decoder options.
func (o *Options) DecodeOptions() transform.DecodeOptions {
	return transform.DecodeOptions{AllowTruncated: o.AllowTruncated}
}
