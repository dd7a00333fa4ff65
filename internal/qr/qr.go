// Package qr wraps barcode symbol encode/decode behind the two operations
// the pipelines need: render a payload into a stampable image, and pull a
// payload back out of an arbitrary document frame.
package qr

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"

	"github.com/docshield/docshield-backend/internal/imaging"
)

const (
	claheClipLimit = 2.0
	claheGridSize  = 8
)

// Render encodes a payload as a QR symbol image at medium error correction,
// sized to sizePx on a side.
func Render(payload string, sizePx int) (image.Image, error) {
	code, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}
	return code.Image(sizePx), nil
}

// Locate extracts a QR payload string from a document scan or camera frame.
// Two passes only: a direct decode handles clean digital renders, and one
// adaptive-contrast retry recovers printed or photographed copies with
// uneven lighting. Perspective skew and noise tolerance is the symbol
// decoder's job.
func Locate(img image.Image) (string, bool) {
	gray := imaging.Grayscale(img)
	if text, ok := decodeFrame(gray); ok {
		return text, true
	}
	enhanced := imaging.AdaptiveEqualize(gray, claheClipLimit, claheGridSize, claheGridSize)
	return decodeFrame(enhanced)
}

func decodeFrame(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	reader := zxqrcode.NewQRCodeReader()
	result, err := reader.Decode(bmp, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
	if err != nil || result == nil {
		return "", false
	}
	text := result.GetText()
	if text == "" {
		return "", false
	}
	return text, true
}
