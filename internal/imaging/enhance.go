package imaging

import (
	"image"
)

// enhanceContrastGray interpolates between a uniform mean-gray image and the
// original, mirroring the behavior documents were fingerprinted with at
// issuance. factor 1.0 is a no-op, 2.0 doubles the spread around the mean.
func enhanceContrastGray(g *image.Gray, factor float64) {
	w := g.Rect.Dx()
	h := g.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}
	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += float64(g.Pix[y*g.Stride+x])
		}
	}
	mean := sum / float64(w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*g.Stride + x
			v := mean + factor*(float64(g.Pix[i])-mean)
			g.Pix[i] = clampByte(v)
		}
	}
}

// PreprocessPhoto normalizes ordinary phone-camera variance before physical
// fingerprinting: mild contrast (x1.3) then mild sharpening (x1.2).
// Side-effect free; any failure returns the input unchanged.
func PreprocessPhoto(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	src := image.NewRGBA(image.Rect(0, 0, w, h))
	var lumaSum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := src.PixOffset(x, y)
			src.Pix[i+0] = uint8(r >> 8)
			src.Pix[i+1] = uint8(g >> 8)
			src.Pix[i+2] = uint8(bl >> 8)
			src.Pix[i+3] = uint8(a >> 8)
			lumaSum += float64((299*(r>>8) + 587*(g>>8) + 114*(bl>>8)) / 1000)
		}
	}
	mean := lumaSum / float64(w*h)

	// Contrast: blend toward the mean-gray degenerate image.
	const contrast = 1.3
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := mean + contrast*(float64(src.Pix[i+c])-mean)
			src.Pix[i+c] = clampByte(v)
		}
	}

	// Sharpness: blend away from a 3x3 smoothed degenerate image.
	const sharpness = 1.2
	smooth := smoothRGBA(src)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(smooth.Pix[i+c]) + sharpness*(float64(src.Pix[i+c])-float64(smooth.Pix[i+c]))
			out.Pix[i+c] = clampByte(v)
		}
		out.Pix[i+3] = src.Pix[i+3]
	}
	return out
}

// smoothRGBA applies the 3x3 smoothing kernel (1,1,1 / 1,5,1 / 1,1,1)/13
// with edge replication.
func smoothRGBA(src *image.RGBA) *image.RGBA {
	w := src.Rect.Dx()
	h := src.Rect.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	kernel := [3][3]int{{1, 1, 1}, {1, 5, 1}, {1, 1, 1}}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				acc := 0
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						sx := clampInt(x+kx, 0, w-1)
						sy := clampInt(y+ky, 0, h-1)
						acc += kernel[ky+1][kx+1] * int(src.Pix[src.PixOffset(sx, sy)+c])
					}
				}
				out.Pix[out.PixOffset(x, y)+c] = uint8((acc + 6) / 13)
			}
			out.Pix[out.PixOffset(x, y)+3] = src.Pix[src.PixOffset(x, y)+3]
		}
	}
	return out
}

// AdaptiveEqualize performs CLAHE-style contrast-limited adaptive histogram
// equalization over a fixed tile grid, with bilinear interpolation between
// neighboring tile mappings. Used by the QR locator's second decode pass to
// recover codes from unevenly lit printed captures.
func AdaptiveEqualize(g *image.Gray, clipLimit float64, gridX, gridY int) *image.Gray {
	w := g.Rect.Dx()
	h := g.Rect.Dy()
	if w < gridX || h < gridY || gridX <= 0 || gridY <= 0 {
		return g
	}
	tileW := (w + gridX - 1) / gridX
	tileH := (h + gridY - 1) / gridY

	luts := make([][256]uint8, gridX*gridY)
	for ty := 0; ty < gridY; ty++ {
		for tx := 0; tx < gridX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := minInt(x0+tileW, w), minInt(y0+tileH, h)
			luts[ty*gridX+tx] = tileLUT(g, x0, y0, x1, y1, clipLimit)
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		// Fractional tile coordinates centered on tile midpoints.
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := clampInt(int(fy), 0, gridY-1)
		ty1 := clampInt(ty0+1, 0, gridY-1)
		wy := fy - float64(ty0)
		if wy < 0 {
			wy = 0
		}
		if wy > 1 {
			wy = 1
		}
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := clampInt(int(fx), 0, gridX-1)
			tx1 := clampInt(tx0+1, 0, gridX-1)
			wx := fx - float64(tx0)
			if wx < 0 {
				wx = 0
			}
			if wx > 1 {
				wx = 1
			}
			p := g.Pix[y*g.Stride+x]
			v00 := float64(luts[ty0*gridX+tx0][p])
			v01 := float64(luts[ty0*gridX+tx1][p])
			v10 := float64(luts[ty1*gridX+tx0][p])
			v11 := float64(luts[ty1*gridX+tx1][p])
			top := v00 + wx*(v01-v00)
			bot := v10 + wx*(v11-v10)
			out.Pix[y*out.Stride+x] = clampByte(top + wy*(bot-top))
		}
	}
	return out
}

func tileLUT(g *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[g.Pix[y*g.Stride+x]]++
			n++
		}
	}
	var lut [256]uint8
	if n == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	// Clip the histogram and redistribute the excess uniformly.
	clip := int(clipLimit * float64(n) / 256.0)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	share := excess / 256
	for i := range hist {
		hist[i] += share
	}

	cum := 0
	scale := 255.0 / float64(n)
	for i := range hist {
		cum += hist[i]
		lut[i] = clampByte(float64(cum) * scale)
	}
	return lut
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
