package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/Noofbiz/inpaintdata/masks"
)

// Batch stores a batch of samples in flat contiguous buffers.
type Batch struct {
	Size          int
	Height, Width int
	MaxLength     int

	// Images is shaped [Size, Height, Width, 3].
	Images []float32
	// Masks is shaped [Size, Height, Width, 1].
	Masks []float32
	// Captions is shaped [Size, MaxLength].
	Captions []int32
	// Lengths is shaped [Size].
	Lengths []int32

	// Per-sample bookkeeping.
	Indices    []int
	ImagePaths []string
	MaskTypes  []masks.Type
	Coverage   []float64
}

// MakeBatch flattens samples into a Batch. All samples must share the image
// size and caption length.
func MakeBatch(samples []*Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty batch")
	}
	first := samples[0]
	b := &Batch{
		Size:      len(samples),
		Height:    first.Height,
		Width:     first.Width,
		MaxLength: len(first.CaptionIndices),
	}
	pixels := b.Height * b.Width
	b.Images = make([]float32, b.Size*pixels*3)
	b.Masks = make([]float32, b.Size*pixels)
	b.Captions = make([]int32, b.Size*b.MaxLength)
	b.Lengths = make([]int32, b.Size)
	b.Indices = make([]int, b.Size)
	b.ImagePaths = make([]string, b.Size)
	b.MaskTypes = make([]masks.Type, b.Size)
	b.Coverage = make([]float64, b.Size)

	for i, s := range samples {
		if s.Height != b.Height || s.Width != b.Width || len(s.Image) != pixels*3 {
			return nil, errors.Errorf("inconsistent image size at example %d: expected %dx%d, got %dx%d",
				i, b.Width, b.Height, s.Width, s.Height)
		}
		if s.Mask == nil || len(s.Mask.Data) != pixels {
			return nil, errors.Errorf("inconsistent mask at example %d", i)
		}
		if len(s.CaptionIndices) != b.MaxLength {
			return nil, errors.Errorf("inconsistent caption length at example %d: expected %d, got %d",
				i, b.MaxLength, len(s.CaptionIndices))
		}
		copy(b.Images[i*pixels*3:], s.Image)
		copy(b.Masks[i*pixels:], s.Mask.Data)
		copy(b.Captions[i*b.MaxLength:], s.CaptionIndices)
		b.Lengths[i] = int32(s.CaptionLength)
		b.Indices[i] = s.Index
		b.ImagePaths[i] = s.ImagePath
		b.MaskTypes[i] = s.Mask.Type
		b.Coverage[i] = s.Mask.Coverage()
	}
	return b, nil
}

// ToGomlxTensors converts the batch into gomlx tensors: images
// [B, H, W, 3], masks [B, H, W, 1], captions [B, L] and lengths [B].
func (b *Batch) ToGomlxTensors() (images, occlusion, captions, lengths *tensors.Tensor) {
	images = tensors.FromFlatDataAndDimensions(b.Images, b.Size, b.Height, b.Width, 3)
	occlusion = tensors.FromFlatDataAndDimensions(b.Masks, b.Size, b.Height, b.Width, 1)
	captions = tensors.FromFlatDataAndDimensions(b.Captions, b.Size, b.MaxLength)
	lengths = tensors.FromFlatDataAndDimensions(b.Lengths, b.Size)
	return
}

// Shapes returns the shapes of the tensors built by ToGomlxTensors, in the
// same order.
func (b *Batch) Shapes() []shapes.Shape {
	return []shapes.Shape{
		shapes.Make(dtypes.Float32, b.Size, b.Height, b.Width, 3),
		shapes.Make(dtypes.Float32, b.Size, b.Height, b.Width, 1),
		shapes.Make(dtypes.Int32, b.Size, b.MaxLength),
		shapes.Make(dtypes.Int32, b.Size),
	}
}

// Memory returns the size in bytes of the batch buffers.
func (b *Batch) Memory() uint64 {
	return uint64(4 * (len(b.Images) + len(b.Masks) + len(b.Captions) + len(b.Lengths)))
}
