// Package datasets assembles captioned inpainting samples and batches them
// for gomlx training loops.
//
// An InpaintingDataset over N images with C captions per image addresses
// samples by a flat index i: the image is i mod N and the caption is
// (i div N) mod C. Len reports N; indices at or beyond N address later
// captions of the same images, so a loader that walks epoch e over
// e*N .. e*N+N-1 visits every caption of every image over C epochs.
//
// Layout and intended usage:
//
// InpaintingDataset
//   - Stores image paths only; each Example opens, decodes, transforms and
//     closes its image, generates a mask and encodes a caption.
//   - Example is safe for concurrent use and, when a seed is configured, a
//     pure function of its index.
//
// Loader
//   - Shuffles per epoch, fans fetches out over worker goroutines and packs
//     the results into a Batch, handed to gomlx through train.Dataset.
package datasets

import (
	"github.com/Noofbiz/inpaintdata/captions"
	"github.com/Noofbiz/inpaintdata/options"
	"github.com/Noofbiz/inpaintdata/transform"
	"github.com/pkg/errors"
)

// Dataset is the per-index view of a sample source consumed by Loader.
type Dataset interface {
	Name() string
	Len() int
	Example(i int) (*Sample, error)
}

// Error classes. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	// ErrConfig marks construction failures: bad options, missing resources.
	ErrConfig = options.ErrConfig
	// ErrLookup marks an image without a usable caption.
	ErrLookup = captions.ErrLookup
	// ErrDecode marks an unreadable or corrupt image or mask file.
	ErrDecode = transform.ErrDecode
	// ErrIndex marks a flat index outside the dataset domain.
	ErrIndex = errors.New("sample index out of range")
)
