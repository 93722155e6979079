package transform

import (
	"image"
	"image/color"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Resize/crop modes used in training.
const (
	ResizeAndCrop = "resize_and_crop"
	CropOnly      = "crop"
	NoResize      = "none"
)

// Jitter holds colour jitter strengths; each factor is drawn uniformly from
// [max(0, 1-v), 1+v]. Zero disables the adjustment.
type Jitter struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
}

// Config describes the image pipeline. Sizes are width (X) by height (Y).
type Config struct {
	IsTrain bool

	// LoadSize is the intermediate size images are resized to before the
	// random crop in resize_and_crop mode.
	LoadSize image.Point
	// FineSize is the final size of every yielded image.
	FineSize image.Point

	ResizeOrCrop string

	NoAugment  bool
	NoFlip     bool
	NoRotation bool

	Jitter Jitter

	// RotationDegrees bounds the random rotation, in both directions.
	RotationDegrees float64
}

// Pipeline turns decoded images into fixed-size training inputs.
type Pipeline struct {
	cfg Config
}

// NewPipeline validates cfg and returns a Pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.FineSize.X <= 0 || cfg.FineSize.Y <= 0 {
		return nil, errors.Errorf("fine size must be positive, got %v", cfg.FineSize)
	}
	switch cfg.ResizeOrCrop {
	case "":
		cfg.ResizeOrCrop = ResizeAndCrop
	case ResizeAndCrop, CropOnly, NoResize:
	default:
		return nil, errors.Errorf("unknown resize_or_crop mode %q", cfg.ResizeOrCrop)
	}
	if cfg.IsTrain && cfg.ResizeOrCrop == ResizeAndCrop {
		if cfg.LoadSize.X < cfg.FineSize.X || cfg.LoadSize.Y < cfg.FineSize.Y {
			return nil, errors.Errorf("load size %v smaller than fine size %v", cfg.LoadSize, cfg.FineSize)
		}
	}
	return &Pipeline{cfg: cfg}, nil
}

// Config returns the validated configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Apply runs the pipeline on img, drawing every random decision from rng.
func (p *Pipeline) Apply(rng *rand.Rand, img image.Image) (*image.NRGBA, error) {
	cfg := p.cfg
	if !cfg.IsTrain {
		return imaging.Resize(img, cfg.FineSize.X, cfg.FineSize.Y, imaging.Linear), nil
	}

	out := imaging.Clone(img)
	switch cfg.ResizeOrCrop {
	case ResizeAndCrop:
		out = imaging.Resize(out, cfg.LoadSize.X, cfg.LoadSize.Y, imaging.Linear)
		fallthrough
	case CropOnly:
		var err error
		if out, err = randomCrop(rng, out, cfg.FineSize); err != nil {
			return nil, err
		}
	}
	if !cfg.NoAugment {
		out = jitter(rng, out, cfg.Jitter)
	}
	if !cfg.NoFlip && rng.Intn(2) == 0 {
		out = imaging.FlipH(out)
	}
	if !cfg.NoRotation && cfg.RotationDegrees > 0 {
		out = RotateKeepSize(out, uniform(rng, -cfg.RotationDegrees, cfg.RotationDegrees))
	}
	return out, nil
}

// RotateKeepSize rotates img counter-clockwise by angle degrees around its
// centre, fills uncovered corners with black and keeps the original size.
func RotateKeepSize(img image.Image, angle float64) *image.NRGBA {
	b := img.Bounds()
	rotated := imaging.Rotate(img, angle, color.Black)
	return imaging.CropCenter(rotated, b.Dx(), b.Dy())
}

func randomCrop(rng *rand.Rand, img *image.NRGBA, size image.Point) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Dx() < size.X || b.Dy() < size.Y {
		return nil, errors.Errorf("image %dx%d smaller than crop %dx%d", b.Dx(), b.Dy(), size.X, size.Y)
	}
	x := rng.Intn(b.Dx() - size.X + 1)
	y := rng.Intn(b.Dy() - size.Y + 1)
	return imaging.Crop(img, image.Rect(x, y, x+size.X, y+size.Y)), nil
}

func jitter(rng *rand.Rand, img *image.NRGBA, j Jitter) *image.NRGBA {
	if j.Brightness > 0 {
		img = imaging.AdjustBrightness(img, percent(rng, j.Brightness))
	}
	if j.Contrast > 0 {
		img = imaging.AdjustContrast(img, percent(rng, j.Contrast))
	}
	if j.Saturation > 0 {
		img = imaging.AdjustSaturation(img, percent(rng, j.Saturation))
	}
	return img
}

// percent draws a jitter factor and converts it to imaging's -100..100 scale.
func percent(rng *rand.Rand, strength float64) float64 {
	f := uniform(rng, max(0, 1-strength), 1+strength)
	return min(100, max(-100, (f-1)*100))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// ToFloat32 flattens img into a height x width x 3 buffer with values in
// [0, 1], row-major.
func ToFloat32(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, 0, w*h*3)
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[off : off+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			out = append(out, float32(px[0])/255, float32(px[1])/255, float32(px[2])/255)
		}
	}
	return out
}
