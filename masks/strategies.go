package masks

import (
	"image/color"
	"math"
	"math/rand"

	"git.sr.ht/~sbinet/gg"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/Noofbiz/inpaintdata/transform"
)

// MinIrregularSize is the smallest side RandomIrregular can draw on.
const MinIrregularSize = 64

// Brush stroke parameters of RandomIrregular.
const (
	minStrokes     = 16
	maxStrokes     = 64
	minStrokeWidth = 4
	maxStrokeWidth = 20
)

// External mask augmentation bounds.
const externalRotationDegrees = 10

// randInt returns a uniform integer in [lo, hi]. It returns lo when hi < lo.
func randInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// CenterMask occludes a rectangle centred in a w x h image whose sides are
// fraction of the image sides.
func CenterMask(w, h int, fraction float64) *Mask {
	m := newMask(w, h, Center)
	mw := int(math.Round(float64(w) * fraction))
	mh := int(math.Round(float64(h) * fraction))
	x0 := (w - mw) / 2
	y0 := (h - mh) / 2
	m.fillRect(x0, y0, x0+mw, y0+mh)
	return m
}

// RandomRegularMask occludes 1 to 5 random rectangles. With n rectangles
// their top-left corners stay within the first n/(n+1) of each side and each
// side spans at least 1/(n+7) of the image.
func RandomRegularMask(rng *rand.Rand, w, h int) *Mask {
	m := newMask(w, h, RandomRegular)
	n := randInt(rng, 1, 5)
	limX := w - w/(n+1)
	limY := h - h/(n+1)
	for range n {
		x := randInt(rng, 0, limX)
		y := randInt(rng, 0, limY)
		dx := randInt(rng, w/(n+7), w-x)
		dy := randInt(rng, h/(n+7), h-y)
		m.fillRect(x, y, x+dx, y+dy)
	}
	return m
}

// RandomIrregularMask draws 16 to 64 random strokes: lines (60%), filled
// discs (20%) and rotated elliptical arcs (20%), 4 to 20 pixels wide.
// Both sides must be at least MinIrregularSize; NewGenerator enforces it.
func RandomIrregularMask(rng *rand.Rand, w, h int) *Mask {
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	n := randInt(rng, minStrokes, maxStrokes)
	for range n {
		kind := rng.Float64()
		switch {
		case kind < 0.6:
			x1, y1 := randInt(rng, 1, w), randInt(rng, 1, h)
			x2, y2 := randInt(rng, 1, w), randInt(rng, 1, h)
			dc.SetLineWidth(float64(randInt(rng, minStrokeWidth, maxStrokeWidth)))
			dc.DrawLine(float64(x1), float64(y1), float64(x2), float64(y2))
			dc.Stroke()
		case kind < 0.8:
			x, y := randInt(rng, 1, w), randInt(rng, 1, h)
			dc.DrawCircle(float64(x), float64(y), float64(randInt(rng, minStrokeWidth, maxStrokeWidth)))
			dc.Fill()
		default:
			x, y := float64(randInt(rng, 1, w)), float64(randInt(rng, 1, h))
			rx, ry := float64(randInt(rng, 1, w)), float64(randInt(rng, 1, h))
			rot := radians(float64(randInt(rng, 3, 180)))
			start := radians(float64(randInt(rng, 3, 180)))
			end := radians(float64(randInt(rng, 3, 180)))
			dc.Push()
			dc.RotateAbout(rot, x, y)
			dc.SetLineWidth(float64(randInt(rng, minStrokeWidth, maxStrokeWidth)))
			dc.DrawEllipticalArc(x, y, rx, ry, start, end)
			dc.Stroke()
			dc.Pop()
		}
	}
	return fromImage(dc.Image(), RandomIrregular, func(c color.Color) bool {
		_, _, _, a := c.RGBA()
		return a >= 0x8000
	})
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ExternalFileMask loads the mask image at path, flips it horizontally half
// of the time, rotates it by up to 10 degrees either way, centre-crops it to a
// square on its smaller side and resizes it to w x h. Pixels that end up
// exactly black are occluded. The file is closed before returning.
func ExternalFileMask(rng *rand.Rand, path string, w, h int, opts transform.DecodeOptions) (*Mask, error) {
	src, err := transform.LoadRGB(path, opts)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())

	img := src
	if rng.Intn(2) == 0 {
		img = imaging.FlipH(img)
	}
	angle := -externalRotationDegrees + rng.Float64()*2*externalRotationDegrees
	img = transform.RotateKeepSize(img, angle)
	img = imaging.CropCenter(img, side, side)
	resized := resize.Resize(uint(w), uint(h), img, resize.Bilinear)

	m := fromImage(resized, ExternalFile, func(c color.Color) bool {
		r, g, bl, _ := c.RGBA()
		return r == 0 && g == 0 && bl == 0
	})
	m.Source = path
	return m, nil
}
