package masks

import (
	"image"
	"image/color"
)

// Mask is a binary occlusion map stored row-major, one value per pixel.
type Mask struct {
	Width, Height int
	// Data holds Width*Height values, each 0 (kept) or 1 (occluded).
	Data []float32

	// Type is the strategy that produced the mask.
	Type Type
	// Source is the mask file used by the ExternalFile strategy.
	Source string
}

func newMask(w, h int, t Type) *Mask {
	return &Mask{Width: w, Height: h, Data: make([]float32, w*h), Type: t}
}

// At returns the value at (x, y).
func (m *Mask) At(x, y int) float32 {
	return m.Data[y*m.Width+x]
}

// fillRect occludes [x0,x1) x [y0,y1), clipped to the mask.
func (m *Mask) fillRect(x0, y0, x1, y1 int) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, m.Width), min(y1, m.Height)
	for y := y0; y < y1; y++ {
		row := m.Data[y*m.Width : (y+1)*m.Width]
		for x := x0; x < x1; x++ {
			row[x] = 1
		}
	}
}

// Coverage returns the occluded fraction of the mask.
func (m *Mask) Coverage() float64 {
	if len(m.Data) == 0 {
		return 0
	}
	var n int
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return float64(n) / float64(len(m.Data))
}

// Gray renders the mask with occluded pixels white.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Data {
		if v != 0 {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// fromImage occludes every pixel for which occluded returns true.
func fromImage(img image.Image, t Type, occluded func(color.Color) bool) *Mask {
	b := img.Bounds()
	m := newMask(b.Dx(), b.Dy(), t)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if occluded(img.At(b.Min.X+x, b.Min.Y+y)) {
				m.Data[y*m.Width+x] = 1
			}
		}
	}
	return m
}
