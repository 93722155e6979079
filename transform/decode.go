// Package transform decodes source images and applies the train/eval image
// pipeline (resize, crop, colour jitter, flip, rotation, to-tensor).
package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode classifies unreadable or corrupt image files.
var ErrDecode = errors.New("image decode failed")

// DecodeError reports which file failed to decode.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) hold for every DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// DecodeOptions configures the decoder.
type DecodeOptions struct {
	// AllowTruncated accepts JPEG and non-interlaced PNG files whose data
	// ends early. The missing part of the image decodes as black.
	AllowTruncated bool
}

// Decode reads a full image from r.
func Decode(r io.Reader, opts DecodeOptions) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil || !opts.AllowTruncated {
		return img, err
	}
	completed, ok := completeTruncated(data)
	if !ok {
		return nil, err
	}
	img, _, cerr := image.Decode(bytes.NewReader(completed))
	if cerr != nil {
		return nil, err
	}
	return img, nil
}

// LoadRGB opens path, decodes it and returns an opaque RGB copy. The file is
// closed before LoadRGB returns, whatever the outcome.
func LoadRGB(path string, opts DecodeOptions) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, err := Decode(f, opts)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return ToRGB(img), nil
}

// ToRGB copies img into an NRGBA image with every pixel opaque, dropping any
// alpha channel the way an RGB conversion does.
func ToRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
