package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/sync/errgroup"

	"github.com/docshield/docshield-backend/internal/data/repos"
	"github.com/docshield/docshield-backend/internal/domain"
	"github.com/docshield/docshield-backend/internal/imaging"
	"github.com/docshield/docshield-backend/internal/platform/logger"
	"github.com/docshield/docshield-backend/internal/qr"
	"github.com/docshield/docshield-backend/internal/token"
)

const (
	stampMargin   = 10
	stampLabelH   = 16
	stampCaption  = "SECURITY QR - Scan to verify"
	qrRenderSize  = 300
	captionPtSize = 10
)

type IssueRequest struct {
	DocID      string
	HolderName string
	DocType    string
	IssueDate  string
	ExpiryDate string
	Additional string

	FileName string
	Data     []byte
}

type IssueResult struct {
	Record *domain.DocumentRecord
	// StampedPNG is the secured document with the QR stamp composited in.
	StampedPNG []byte
}

type IssuerService interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
}

type issuerService struct {
	log        *logger.Logger
	docs       repos.DocumentRepo
	verifyBase string
	fontFace   font.Face
}

// NewIssuerService builds the issuance pipeline. verifyBase is the public
// URL phones land on when they scan a stamp. An optional STAMP_FONT env var
// points at a TTF for the stamp caption; without it the renderer's built-in
// face is used.
func NewIssuerService(log *logger.Logger, docs repos.DocumentRepo, verifyBase string) (IssuerService, error) {
	serviceLog := log.With("service", "IssuerService")

	var face font.Face
	if fontPath := strings.TrimSpace(os.Getenv("STAMP_FONT")); fontPath != "" {
		loaded, err := loadFontFace(fontPath, captionPtSize)
		if err != nil {
			return nil, fmt.Errorf("could not load stamp font: %w", err)
		}
		face = loaded
		serviceLog.Info("Loaded stamp caption font", "font", fontPath)
	}

	return &issuerService{
		log:        serviceLog,
		docs:       docs,
		verifyBase: strings.TrimRight(verifyBase, "/"),
		fontFace:   face,
	}, nil
}

func (s *issuerService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("issue: empty source document")
	}
	if req.HolderName == "" || req.DocType == "" || req.IssueDate == "" {
		return nil, fmt.Errorf("issue: holder_name, doc_type and issue_date are required")
	}
	docID := strings.TrimSpace(req.DocID)
	if docID == "" {
		docID = "DOC-" + uuid.NewString()
	}

	fileHash := imaging.HashBytes(req.Data)
	boundHash := token.MakeBoundHash(docID, req.HolderName, req.DocType, req.IssueDate, fileHash)
	verifyURL := token.BuildVerifyURL(s.verifyBase, docID, boundHash)

	qrImg, err := qr.Render(verifyURL, qrRenderSize)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", docID, err)
	}

	baseImg, err := imaging.DecodeDocument(req.Data, req.FileName)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", docID, err)
	}

	stamped := s.stampDocument(baseImg, qrImg)

	var pngBuf bytes.Buffer
	if err := gg.NewContextForImage(stamped).EncodePNG(&pngBuf); err != nil {
		return nil, fmt.Errorf("issue %s: encode stamped document: %w", docID, err)
	}

	// Fingerprint the stamped output, not the source: the stamp is part of
	// the document from now on, and the corner mask keeps the stamp's own
	// pixels out of every fingerprint.
	var (
		visualHash     string
		perceptualHash string
		textFeatures   *domain.TextFeatures
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		visualHash = imaging.VisualFingerprint(stamped)
		return nil
	})
	g.Go(func() error {
		perceptualHash = imaging.PerceptualHash(stamped)
		return nil
	})
	g.Go(func() error {
		textFeatures = imaging.ExtractTextFeatures(stamped)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("issue %s: fingerprint stamped document: %w", docID, err)
	}

	rec := &domain.DocumentRecord{
		DocID:          docID,
		HolderName:     req.HolderName,
		DocType:        req.DocType,
		IssueDate:      req.IssueDate,
		ExpiryDate:     req.ExpiryDate,
		Additional:     req.Additional,
		FileHash:       fileHash,
		VisualHash:     visualHash,
		PerceptualHash: perceptualHash,
		BoundHash:      boundHash,
		VerifyURL:      verifyURL,
	}
	if err := rec.SetTextFeatures(textFeatures); err != nil {
		return nil, fmt.Errorf("issue %s: encode text features: %w", docID, err)
	}

	if err := s.docs.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("issue %s: save registry record: %w", docID, err)
	}

	s.log.Info("Issued secured document",
		"doc_id", docID, "doc_type", req.DocType, "file_hash", fileHash[:12])

	return &IssueResult{Record: rec, StampedPNG: pngBuf.Bytes()}, nil
}

// stampDocument composites the QR with a white backing plate, a thin gray
// border and a caption into the bottom-right corner, at StampFraction of the
// shorter document dimension. The placement must match the fingerprint mask
// geometry exactly; both come from the imaging package constants.
func (s *issuerService) stampDocument(doc image.Image, qrImg image.Image) image.Image {
	b := doc.Bounds()
	bw, bh := b.Dx(), b.Dy()
	side := bw
	if bh < bw {
		side = bh
	}
	qrSize := int(float64(side) * imaging.StampFraction)
	boxW := qrSize + stampMargin*2
	boxH := qrSize + stampMargin*2 + stampLabelH

	scaledQR := image.NewRGBA(image.Rect(0, 0, qrSize, qrSize))
	draw.NearestNeighbor.Scale(scaledQR, scaledQR.Bounds(), qrImg, qrImg.Bounds(), draw.Src, nil)

	dc := gg.NewContextForImage(doc)
	bx := float64(bw - boxW - stampMargin)
	by := float64(bh - boxH - stampMargin)

	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(bx, by, float64(boxW), float64(boxH))
	dc.Fill()
	dc.SetRGB255(160, 160, 160)
	dc.SetLineWidth(1)
	dc.DrawRectangle(bx, by, float64(boxW), float64(boxH))
	dc.Stroke()

	dc.DrawImage(scaledQR, int(bx)+stampMargin, int(by)+stampMargin)

	if s.fontFace != nil {
		dc.SetFontFace(s.fontFace)
	}
	dc.SetRGB255(80, 80, 80)
	dc.DrawString(stampCaption, bx+4, by+float64(qrSize+stampMargin+stampLabelH-4))

	return dc.Image()
}

func loadFontFace(path string, points float64) (font.Face, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: points}), nil
}
