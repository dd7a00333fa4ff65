package imaging

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultPDFRenderDPI is the rasterization density for single-page PDF
// sources. 150 DPI keeps fingerprints stable while staying cheap to hash.
const DefaultPDFRenderDPI = 150

// DecodeDocument turns uploaded document bytes into a raster image. PDF
// sources are rasterized at their first page; everything else goes through
// the registered raster codecs (PNG, JPEG, BMP, TIFF). Unsupported or
// unreadable input is a fatal error for the call.
func DecodeDocument(data []byte, filename string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return renderPDFFirstPage(data, DefaultPDFRenderDPI)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %q: %w", filename, err)
	}
	return img, nil
}

func renderPDFFirstPage(data []byte, dpi float64) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	if doc.NumPage() < 1 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("rasterize pdf page: %w", err)
	}
	return img, nil
}
