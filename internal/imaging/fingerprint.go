package imaging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"github.com/docshield/docshield-backend/internal/config"
	"github.com/docshield/docshield-backend/internal/domain"
)

// HashBytes is the exact-content identity of the untouched source file.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VisualFingerprint hashes the rendered document pixels with the stamp corner
// masked out. Any pixel change outside the masked region changes the hash
// completely, so it only serves byte-for-byte digital-copy comparison and is
// not tolerant of recompression or photographic noise.
func VisualFingerprint(img image.Image) string {
	gray := Grayscale(img)
	MaskStampCorner(gray, 128)
	thumb := scaleGray(gray, VisualSize, VisualSize)
	sum := sha256.Sum256(thumb.Pix)
	return hex.EncodeToString(sum[:])
}

// PerceptualHash packs an 8x8 mean-threshold bitmap into 64 bits, LSB-first
// in row-major order. It survives mild compression, resizing and lighting
// shifts. On internal failure it degrades to the visual fingerprint's first
// 16 hex chars so the caller always gets a 16-char value.
func PerceptualHash(img image.Image) string {
	h, err := perceptualHash64(img)
	if err != nil {
		return VisualFingerprint(img)[:16]
	}
	return h
}

func perceptualHash64(img image.Image) (string, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return "", fmt.Errorf("degenerate image %dx%d", b.Dx(), b.Dy())
	}
	gray := Grayscale(img)
	MaskStampCorner(gray, 128)
	small := scaleGray(gray, PHashSize, PHashSize)

	var sum float64
	for _, p := range small.Pix {
		sum += float64(p)
	}
	avg := sum / float64(len(small.Pix))

	var h uint64
	for i, p := range small.Pix {
		if float64(p) > avg {
			h |= 1 << uint(i)
		}
	}
	return fmt.Sprintf("%016x", h), nil
}

// ComparePerceptualHash returns the Hamming similarity of two 64-bit hashes
// in [0,1]. Missing or malformed hashes score 0.
func ComparePerceptualHash(h1, h2 string) float64 {
	if len(h1) < 16 || len(h2) < 16 {
		return 0.0
	}
	a, err := strconv.ParseUint(h1[:16], 16, 64)
	if err != nil {
		return 0.0
	}
	b, err := strconv.ParseUint(h2[:16], 16, 64)
	if err != nil {
		return 0.0
	}
	dist := bits.OnesCount64(a ^ b)
	return float64(64-dist) / 64.0
}

// ExtractTextFeatures computes the coarse layout/contrast signature: boost
// contrast so text regions separate from background, mask the stamp corner to
// white, then take intensity statistics plus the aspect ratio. Returns nil
// for degenerate input.
func ExtractTextFeatures(img image.Image) *domain.TextFeatures {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	gray := Grayscale(img)
	enhanceContrastGray(gray, 2.0)
	MaskStampCorner(gray, 255)

	mean, std := meanStd(gray.Pix[:w*h])
	return &domain.TextFeatures{
		MeanIntensity: mean,
		StdIntensity:  std,
		SizeRatio:     float64(w) / float64(h),
		PixelCount:    w * h,
	}
}

// CompareTextFeatures scores two signatures in [0,1] via clamped min/max
// ratios. The mean and std components carry empirical boosts compensating
// for systematic photographic dimming. A missing side returns a neutral 0.5
// so photographic conditions alone never veto a match.
func CompareTextFeatures(stored, uploaded *domain.TextFeatures, t config.Tuning) float64 {
	if stored == nil || uploaded == nil {
		return 0.5
	}
	var scores []float64
	if stored.MeanIntensity > 0 && uploaded.MeanIntensity > 0 {
		r := ratioMinMax(stored.MeanIntensity, uploaded.MeanIntensity)
		scores = append(scores, clamp1(r*t.MeanIntensityBoost))
	}
	if stored.StdIntensity > 0 && uploaded.StdIntensity > 0 {
		r := ratioMinMax(stored.StdIntensity, uploaded.StdIntensity)
		scores = append(scores, clamp1(r*t.StdIntensityBoost))
	}
	if stored.SizeRatio > 0 && uploaded.SizeRatio > 0 {
		scores = append(scores, ratioMinMax(stored.SizeRatio, uploaded.SizeRatio))
	}
	if len(scores) == 0 {
		return 0.5
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func ratioMinMax(a, b float64) float64 {
	if a > b {
		a, b = b, a
	}
	return a / b
}

func clamp1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
