package services

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/docshield/docshield-backend/internal/domain"
	"github.com/docshield/docshield-backend/internal/imaging"
	"github.com/docshield/docshield-backend/internal/token"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, docImage(w, h)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestIssuer(t *testing.T, repo *memRepo) IssuerService {
	t.Helper()
	issuer, err := NewIssuerService(testLogger(t), repo, "https://verify.example.com")
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	return issuer
}

func TestIssueCreatesRegistryRecord(t *testing.T) {
	repo := newMemRepo()
	issuer := newTestIssuer(t, repo)
	ctx := context.Background()
	data := encodePNG(t, 600, 400)

	result, err := issuer.Issue(ctx, IssueRequest{
		DocID:      "DOC-100",
		HolderName: "Ada Lovelace",
		DocType:    "Diploma",
		IssueDate:  "2026-01-15",
		FileName:   "diploma.png",
		Data:       data,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := result.Record
	if rec.DocID != "DOC-100" {
		t.Fatalf("doc_id %q", rec.DocID)
	}
	if rec.FileHash != imaging.HashBytes(data) {
		t.Fatalf("file hash mismatch")
	}
	wantHash := token.MakeBoundHash("DOC-100", "Ada Lovelace", "Diploma", "2026-01-15", rec.FileHash)
	if rec.BoundHash != wantHash {
		t.Fatalf("bound hash %q, want %q", rec.BoundHash, wantHash)
	}
	if !strings.Contains(rec.VerifyURL, "verify=DOC-100") || !strings.Contains(rec.VerifyURL, "hash="+rec.BoundHash) {
		t.Fatalf("verify URL %q missing identifiers", rec.VerifyURL)
	}
	if rec.VisualHash == "" || len(rec.PerceptualHash) != 16 {
		t.Fatalf("fingerprints not populated: %+v", rec)
	}
	if rec.GetTextFeatures() == nil {
		t.Fatalf("text features not populated")
	}

	stored, err := repo.FindByID(ctx, "DOC-100")
	if err != nil || stored == nil {
		t.Fatalf("record not in registry: %v", err)
	}
	if stored.BoundHash != rec.BoundHash {
		t.Fatalf("stored record differs")
	}
}

func TestIssueGeneratesDocID(t *testing.T) {
	issuer := newTestIssuer(t, newMemRepo())
	result, err := issuer.Issue(context.Background(), IssueRequest{
		HolderName: "Ada Lovelace",
		DocType:    "Diploma",
		IssueDate:  "2026-01-15",
		FileName:   "diploma.png",
		Data:       encodePNG(t, 400, 300),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(result.Record.DocID, "DOC-") || len(result.Record.DocID) < 10 {
		t.Fatalf("generated doc_id %q", result.Record.DocID)
	}
}

func TestIssueRejectsMissingMetadata(t *testing.T) {
	issuer := newTestIssuer(t, newMemRepo())
	_, err := issuer.Issue(context.Background(), IssueRequest{
		HolderName: "Ada Lovelace",
		FileName:   "diploma.png",
		Data:       encodePNG(t, 400, 300),
	})
	if err == nil {
		t.Fatalf("expected error for missing doc_type and issue_date")
	}
	if _, err := issuer.Issue(context.Background(), IssueRequest{HolderName: "A", DocType: "T", IssueDate: "D"}); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestIssuedDocumentVerifiesAuthentic(t *testing.T) {
	repo := newMemRepo()
	issuer := newTestIssuer(t, repo)
	ctx := context.Background()

	result, err := issuer.Issue(ctx, IssueRequest{
		DocID:      "DOC-RT",
		HolderName: "Ada Lovelace",
		DocType:    "Diploma",
		IssueDate:  "2026-01-15",
		FileName:   "diploma.png",
		Data:       encodePNG(t, 600, 400),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// The stamped PNG is what the holder keeps; re-uploading it must verify
	// as a pixel-perfect digital copy.
	stamped, err := png.Decode(bytes.NewReader(result.StampedPNG))
	if err != nil {
		t.Fatalf("decode stamped: %v", err)
	}
	if stamped.Bounds().Dx() != 600 || stamped.Bounds().Dy() != 400 {
		t.Fatalf("stamp changed document dimensions: %v", stamped.Bounds())
	}

	v := newTestVerifier(t, repo)
	res, err := v.VerifyDocument(ctx, stamped, false, result.Record.DocID, result.Record.BoundHash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid || res.Verdict != domain.VerdictAuthentic || res.Confidence != 1.0 {
		t.Fatalf("issued document did not verify: %+v", res)
	}
}

func TestIssuedDocumentHitsExactVisualFastPath(t *testing.T) {
	repo := newMemRepo()
	issuer := newTestIssuer(t, repo)
	ctx := context.Background()

	result, err := issuer.Issue(ctx, IssueRequest{
		DocID:      "DOC-FP",
		HolderName: "Ada Lovelace",
		DocType:    "Diploma",
		IssueDate:  "2026-01-15",
		FileName:   "diploma.png",
		Data:       encodePNG(t, 600, 400),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	stamped, err := png.Decode(bytes.NewReader(result.StampedPNG))
	if err != nil {
		t.Fatalf("decode stamped: %v", err)
	}

	// The camera path must recognize a pixel-perfect re-upload of the
	// issued file via the exact visual match, scoring a full 1.0 rather
	// than a near-miss perceptual score.
	v := newTestVerifier(t, repo)
	res, err := v.VerifyWithImage(ctx, stamped, result.Record.DocID, result.Record.BoundHash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Valid || res.Verdict != domain.VerdictAuthentic {
		t.Fatalf("exact re-upload gave %+v", res)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("exact re-upload scored %.4f, want 1.0", res.Confidence)
	}
}
