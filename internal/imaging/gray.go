package imaging

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Geometry shared between issuance and verification. The stamp is composited
// at StampFraction of the shorter dimension in the bottom-right corner, and
// every fingerprint masks out the MaskFraction corner region so the stamp's
// own pixels never influence the fingerprint. Both sides must read these
// constants; re-deriving the geometry independently would make legitimate
// documents fail as modified.
const (
	MaskFraction  = 0.30
	StampFraction = 0.18
	VisualSize    = 256
	PHashSize     = 8
)

// Grayscale converts an image to 8-bit luma using the ITU-R 601-2 weights.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()],
				g.Pix[(y+b.Min.Y-g.Rect.Min.Y)*g.Stride+(b.Min.X-g.Rect.Min.X):])
		}
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			r >>= 8
			g >>= 8
			bl >>= 8
			l := (299*r + 587*g + 114*bl + 500) / 1000
			out.Pix[y*out.Stride+x] = uint8(l)
		}
	}
	return out
}

// MaskStampCorner fills the bottom-right stamp region with a constant value.
func MaskStampCorner(g *image.Gray, fill uint8) {
	w := g.Rect.Dx()
	h := g.Rect.Dy()
	side := w
	if h < w {
		side = h
	}
	stamp := int(float64(side) * MaskFraction)
	for y := h - stamp; y < h; y++ {
		if y < 0 {
			continue
		}
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x := w - stamp; x < w; x++ {
			if x < 0 {
				continue
			}
			row[x] = fill
		}
	}
}

func scaleGray(src *image.Gray, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func meanStd(pix []uint8) (float64, float64) {
	if len(pix) == 0 {
		return 0, 0
	}
	var sum float64
	for _, p := range pix {
		sum += float64(p)
	}
	mean := sum / float64(len(pix))
	var sq float64
	for _, p := range pix {
		d := float64(p) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(pix)))
}
