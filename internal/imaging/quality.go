package imaging

import (
	"fmt"
	"image"

	"github.com/docshield/docshield-backend/internal/config"
)

// CheckPhotoQuality decides whether a captured photo is sharp and bright
// enough for similarity comparison. A blurry or badly lit frame would score
// low on perceptual similarity and be misreported as forgery, so such frames
// are rejected up front. Fails open: quality checking must never block a
// verification path entirely.
func CheckPhotoQuality(img image.Image, t config.Tuning) (bool, string) {
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return true, "Quality check skipped: image too small"
	}
	gray := Grayscale(img)
	blurVariance := laplacianVariance(gray)
	mean, _ := meanStd(gray.Pix[:gray.Rect.Dx()*gray.Rect.Dy()])

	score := 100
	if blurVariance < t.BlurThreshold {
		score -= 30
	}
	if blurVariance < t.SevereBlurThreshold {
		score -= 30
	}
	if mean < t.BrightnessMin || mean > t.BrightnessMax {
		score -= 20
	}
	ok := score >= t.QualityMinScore
	msg := fmt.Sprintf("Quality: %d%% (blur: %.1f, brightness: %.1f)", score, blurVariance, mean)
	return ok, msg
}

// laplacianVariance measures sharpness as the variance of the 4-neighbor
// Laplacian response over interior pixels. Flat frames score near zero;
// text-bearing documents score well above the blur threshold.
func laplacianVariance(g *image.Gray) float64 {
	w := g.Rect.Dx()
	h := g.Rect.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	n := (w - 2) * (h - 2)
	responses := make([]float64, 0, n)
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := int(g.Pix[y*g.Stride+x])
			r := int(g.Pix[y*g.Stride+x-1]) +
				int(g.Pix[y*g.Stride+x+1]) +
				int(g.Pix[(y-1)*g.Stride+x]) +
				int(g.Pix[(y+1)*g.Stride+x]) -
				4*c
			f := float64(r)
			responses = append(responses, f)
			sum += f
		}
	}
	mean := sum / float64(n)
	var sq float64
	for _, r := range responses {
		d := r - mean
		sq += d * d
	}
	return sq / float64(n)
}
