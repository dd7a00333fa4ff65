package imaging

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/docshield/docshield-backend/internal/config"
	"github.com/docshield/docshield-backend/internal/domain"
)

// testDocImage builds a deterministic document-like image: white background
// with dark horizontal bands standing in for text lines.
func testDocImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255)
			if (y/10)%3 == 1 && x > w/10 && x < w-w/10 {
				v = 30
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestHashBytesDeterministic(t *testing.T) {
	data := []byte("certificate of completion")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Fatalf("same bytes hashed differently: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 == HashBytes([]byte("certificate of completioN")) {
		t.Fatalf("distinct bytes produced identical hash")
	}
}

func TestVisualFingerprintIgnoresStampCorner(t *testing.T) {
	base := testDocImage(200, 200)
	ref := VisualFingerprint(base)

	// The bottom-right 30% corner is masked out, so changes there must not
	// affect the fingerprint.
	stamped := testDocImage(200, 200)
	for y := 150; y < 200; y++ {
		for x := 150; x < 200; x++ {
			stamped.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	if got := VisualFingerprint(stamped); got != ref {
		t.Fatalf("fingerprint changed after stamp-corner edit: %s vs %s", got, ref)
	}

	// A change anywhere else must change the fingerprint.
	edited := testDocImage(200, 200)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			edited.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	if got := VisualFingerprint(edited); got == ref {
		t.Fatalf("fingerprint unchanged after content edit")
	}
}

func TestPerceptualHashFormat(t *testing.T) {
	h := PerceptualHash(testDocImage(200, 160))
	if len(h) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", h)
	}
	if strings.ToLower(h) != h {
		t.Fatalf("expected lowercase hex, got %q", h)
	}
}

func TestPerceptualHashStableUnderResize(t *testing.T) {
	small := testDocImage(200, 160)
	// 2x pixel replication: same content, double the resolution.
	large := image.NewRGBA(image.Rect(0, 0, 400, 320))
	for y := 0; y < 320; y++ {
		for x := 0; x < 400; x++ {
			large.Set(x, y, small.At(x/2, y/2))
		}
	}
	h1 := PerceptualHash(small)
	h2 := PerceptualHash(large)
	if sim := ComparePerceptualHash(h1, h2); sim < 0.9 {
		t.Fatalf("resized copy scored %.3f, want >= 0.9", sim)
	}
}

func TestComparePerceptualHash(t *testing.T) {
	if sim := ComparePerceptualHash("0123456789abcdef", "0123456789abcdef"); sim != 1.0 {
		t.Fatalf("identical hashes scored %.3f", sim)
	}
	// 4 differing bits out of 64.
	if sim := ComparePerceptualHash("0000000000000000", "000000000000000f"); sim != 60.0/64.0 {
		t.Fatalf("4-bit distance scored %.4f, want %.4f", sim, 60.0/64.0)
	}
	// Symmetric.
	a, b := "00ff00ff00ff00ff", "ff00ff00ff00ff00"
	if ComparePerceptualHash(a, b) != ComparePerceptualHash(b, a) {
		t.Fatalf("comparison is not symmetric")
	}
	if sim := ComparePerceptualHash(a, b); sim != 0.0 {
		t.Fatalf("fully inverted hashes scored %.3f, want 0", sim)
	}
	// Malformed inputs score zero, never panic.
	if sim := ComparePerceptualHash("not-hex-not-hex!", "0000000000000000"); sim != 0.0 {
		t.Fatalf("malformed hash scored %.3f", sim)
	}
	if sim := ComparePerceptualHash("", "0000000000000000"); sim != 0.0 {
		t.Fatalf("empty hash scored %.3f", sim)
	}
}

func TestExtractTextFeatures(t *testing.T) {
	tf := ExtractTextFeatures(testDocImage(300, 200))
	if tf == nil {
		t.Fatalf("expected features for valid image")
	}
	if tf.PixelCount != 300*200 {
		t.Fatalf("pixel count %d, want %d", tf.PixelCount, 300*200)
	}
	if tf.SizeRatio != 1.5 {
		t.Fatalf("size ratio %.3f, want 1.5", tf.SizeRatio)
	}
	if tf.MeanIntensity <= 0 || tf.MeanIntensity > 255 {
		t.Fatalf("mean intensity %.1f out of range", tf.MeanIntensity)
	}
	if tf.StdIntensity <= 0 {
		t.Fatalf("expected nonzero std for banded image, got %.3f", tf.StdIntensity)
	}
}

func TestCompareTextFeatures(t *testing.T) {
	tuning := config.DefaultTuning()

	tf := &domain.TextFeatures{MeanIntensity: 180, StdIntensity: 40, SizeRatio: 1.5, PixelCount: 60000}
	if got := CompareTextFeatures(tf, tf, tuning); got != 1.0 {
		t.Fatalf("identical features scored %.3f, want 1.0 after boost clamp", got)
	}

	// Missing side is neutral, not a veto.
	if got := CompareTextFeatures(nil, tf, tuning); got != 0.5 {
		t.Fatalf("nil stored scored %.3f, want 0.5", got)
	}
	if got := CompareTextFeatures(tf, nil, tuning); got != 0.5 {
		t.Fatalf("nil uploaded scored %.3f, want 0.5", got)
	}

	// A dimmer photo of the same document still scores well.
	dim := &domain.TextFeatures{MeanIntensity: 150, StdIntensity: 33, SizeRatio: 1.5, PixelCount: 40000}
	if got := CompareTextFeatures(tf, dim, tuning); got < 0.9 {
		t.Fatalf("dimmed features scored %.3f, want >= 0.9", got)
	}

	// A very different layout scores low.
	other := &domain.TextFeatures{MeanIntensity: 40, StdIntensity: 5, SizeRatio: 0.4, PixelCount: 40000}
	if got := CompareTextFeatures(tf, other, tuning); got > 0.6 {
		t.Fatalf("mismatched features scored %.3f, want <= 0.6", got)
	}
}
