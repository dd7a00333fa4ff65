package services

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/docshield/docshield-backend/internal/config"
	"github.com/docshield/docshield-backend/internal/data/repos"
	"github.com/docshield/docshield-backend/internal/domain"
	"github.com/docshield/docshield-backend/internal/imaging"
	"github.com/docshield/docshield-backend/internal/platform/logger"
	"github.com/docshield/docshield-backend/internal/qr"
	"github.com/docshield/docshield-backend/internal/token"
)

// VerifierService runs uploaded or photographed documents through the tiered
// verification pipeline and resolves them to a terminal verdict.
type VerifierService interface {
	// VerifyDocument verifies a decoded document image. isPhysical selects
	// the photo pipeline (preprocessing, quality gate, perceptual
	// comparison) over the exact digital pipeline. docIDHint and hashHint,
	// when non-empty, stand in for an undetectable QR payload.
	VerifyDocument(ctx context.Context, img image.Image, isPhysical bool, docIDHint, hashHint string) (*domain.VerificationResult, error)

	// VerifyByID checks a scanned QR payload against the registry without
	// any image evidence.
	VerifyByID(ctx context.Context, docID, qrHash string) (*domain.VerificationResult, error)

	// VerifyWithImage is the camera capture path: the client already parsed
	// the QR on-device and sends the frame plus the decoded doc_id and hash.
	VerifyWithImage(ctx context.Context, img image.Image, docID, qrHash string) (*domain.VerificationResult, error)
}

type verifierService struct {
	log    *logger.Logger
	docs   repos.DocumentRepo
	tuning config.Tuning
}

func NewVerifierService(log *logger.Logger, docs repos.DocumentRepo, tuning config.Tuning) VerifierService {
	return &verifierService{
		log:    log.With("service", "VerifierService"),
		docs:   docs,
		tuning: tuning,
	}
}

func (s *verifierService) VerifyDocument(ctx context.Context, img image.Image, isPhysical bool, docIDHint, hashHint string) (*domain.VerificationResult, error) {
	docID, qrHash := s.resolveIdentity(img, docIDHint, hashHint)
	if docID == "" {
		return &domain.VerificationResult{
			Valid:   false,
			Verdict: domain.VerdictNoQRFound,
			Message: "Could not detect a QR code in this document. Make sure the document has a DocShield QR stamp.",
		}, nil
	}

	rec, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &domain.VerificationResult{
			Valid:   false,
			Verdict: domain.VerdictNotInRegistry,
			Message: fmt.Sprintf("Document ID '%s' was not found in the registry. This document may be fraudulent or was issued elsewhere.", docID),
		}, nil
	}

	if qrHash != "" && qrHash != expectedBoundHash(rec) {
		return &domain.VerificationResult{
			Valid:    false,
			Verdict:  domain.VerdictTampered,
			Message:  "QR code hash does not match registry. This document has been tampered with or forged.",
			Document: rec,
		}, nil
	}

	if isPhysical {
		// The gate judges the frame as captured; preprocessing happens only
		// afterwards, so its contrast and sharpen boosts cannot talk a
		// blurry capture past the blur threshold.
		if ok, qualityMsg := imaging.CheckPhotoQuality(img, s.tuning); !ok {
			return &domain.VerificationResult{
				Valid:    false,
				Verdict:  domain.VerdictPoorQuality,
				Message:  fmt.Sprintf("Photo quality too low for reliable verification. %s. Please retake with better lighting.", qualityMsg),
				Document: rec,
			}, nil
		}
		return s.comparePhysical(imaging.PreprocessPhoto(img), rec), nil
	}
	return s.compareDigital(img, rec), nil
}

func (s *verifierService) VerifyByID(ctx context.Context, docID, qrHash string) (*domain.VerificationResult, error) {
	rec, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &domain.VerificationResult{
			Valid:   false,
			Verdict: domain.VerdictNotInRegistry,
			Message: fmt.Sprintf("Document ID '%s' not found in registry.", docID),
		}, nil
	}
	if qrHash != "" && qrHash != expectedBoundHash(rec) {
		return &domain.VerificationResult{
			Valid:    false,
			Verdict:  domain.VerdictTampered,
			Message:  "Hash mismatch. Document may have been forged.",
			Document: rec,
		}, nil
	}
	return &domain.VerificationResult{
		Valid:      true,
		Verdict:    domain.VerdictAuthentic,
		Message:    "Document ID and hash verified against registry.",
		Document:   rec,
		Confidence: 1.0,
	}, nil
}

func (s *verifierService) VerifyWithImage(ctx context.Context, img image.Image, docID, qrHash string) (*domain.VerificationResult, error) {
	rec, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &domain.VerificationResult{
			Valid:   false,
			Verdict: domain.VerdictNotInRegistry,
			Message: fmt.Sprintf("Document ID '%s' not found in registry.", docID),
		}, nil
	}
	if qrHash != "" && qrHash != expectedBoundHash(rec) {
		return &domain.VerificationResult{
			Valid:    false,
			Verdict:  domain.VerdictTampered,
			Message:  "Hash mismatch. Document may have been forged.",
			Document: rec,
		}, nil
	}

	// Exact visual fast path: a pristine screenshot or re-upload of the
	// issued file short-circuits the perceptual comparison. The frame is
	// hashed as received; issuance fingerprints the stamped output without
	// preprocessing, so any normalization here would break the match.
	if rec.VisualHash != "" && imaging.VisualFingerprint(img) == rec.VisualHash {
		return &domain.VerificationResult{
			Valid:      true,
			Verdict:    domain.VerdictAuthentic,
			Message:    "Document is genuine. Exact match with original on file.",
			Document:   rec,
			Confidence: 1.0,
		}, nil
	}

	if rec.PerceptualHash != "" {
		return s.comparePhysical(img, rec), nil
	}

	// Legacy record with no image fingerprints: the hash check above is all
	// the evidence there is.
	return &domain.VerificationResult{
		Valid:      true,
		Verdict:    domain.VerdictAuthentic,
		Message:    "Document ID and hash verified against registry.",
		Document:   rec,
		Confidence: 0.95,
	}, nil
}

// expectedBoundHash recomputes the token from the record's binding fields.
// The stored bound_hash column is not trusted for validation: a registry row
// edited without re-issuing must fail against the hash printed in the stamp.
func expectedBoundHash(rec *domain.DocumentRecord) string {
	return token.MakeBoundHash(rec.DocID, rec.HolderName, rec.DocType, rec.IssueDate, rec.FileHash)
}

// resolveIdentity pulls doc_id and bound hash out of the stamp QR.
// Caller-supplied hints fill each field the payload failed to supply, field
// by field: a legacy payload carrying only a doc_id must not swallow a hash
// hint, or token validation gets skipped for exactly the documents that
// carry older stamps.
func (s *verifierService) resolveIdentity(img image.Image, docIDHint, hashHint string) (string, string) {
	docID := strings.TrimSpace(docIDHint)
	hash := strings.TrimSpace(hashHint)

	payload, found := qr.Locate(img)
	if found {
		parsed := token.ParsePayload(payload)
		if parsed.Kind == token.PayloadUnparseable {
			s.log.Debug("QR payload did not parse", "payload", truncate(payload, 80))
		} else {
			if parsed.DocID != "" {
				docID = parsed.DocID
			}
			if parsed.Hash != "" {
				hash = parsed.Hash
			}
		}
	}
	return docID, hash
}

// compareDigital is the exact pipeline: a digital copy either matches the
// issued file pixel for pixel or it has been altered. A record with no
// stored visual hash can never match, which is the point: digital mode has
// no softer evidence to fall back on.
func (s *verifierService) compareDigital(img image.Image, rec *domain.DocumentRecord) *domain.VerificationResult {
	if imaging.VisualFingerprint(img) == rec.VisualHash {
		return &domain.VerificationResult{
			Valid:      true,
			Verdict:    domain.VerdictAuthentic,
			Message:    "Digital document is genuine. Pixel-perfect match confirmed.",
			Document:   rec,
			Confidence: 1.0,
		}
	}
	return &domain.VerificationResult{
		Valid:    false,
		Verdict:  domain.VerdictModified,
		Message:  "Document has been digitally altered since issuance.",
		Document: rec,
	}
}

// comparePhysical scores a photographed document against the stored
// fingerprints: perceptual similarity weighted against text features, with a
// legacy exact-hash path for records issued before perceptual hashing.
func (s *verifierService) comparePhysical(img image.Image, rec *domain.DocumentRecord) *domain.VerificationResult {
	if rec.PerceptualHash == "" {
		// Legacy record: only the exact visual hash exists.
		if rec.VisualHash != "" && imaging.VisualFingerprint(img) == rec.VisualHash {
			return &domain.VerificationResult{
				Valid:      true,
				Verdict:    domain.VerdictAuthentic,
				Message:    "Document is genuine.",
				Document:   rec,
				Confidence: 1.0,
			}
		}
		return &domain.VerificationResult{
			Valid:    false,
			Verdict:  domain.VerdictContentMismatch,
			Message:  "Document content does not match original.",
			Document: rec,
		}
	}

	perceptual := imaging.ComparePerceptualHash(rec.PerceptualHash, imaging.PerceptualHash(img))
	textScore := imaging.CompareTextFeatures(rec.GetTextFeatures(), imaging.ExtractTextFeatures(img), s.tuning)
	confidence := s.tuning.PerceptualWeight*perceptual + s.tuning.TextWeight*textScore

	s.log.Debug("Physical comparison",
		"doc_id", rec.DocID, "perceptual", perceptual, "text", textScore, "confidence", confidence)

	if confidence >= s.tuning.ConfidenceThreshold {
		return &domain.VerificationResult{
			Valid:      true,
			Verdict:    domain.VerdictAuthentic,
			Message:    "Document is genuine. Content matches original on file.",
			Document:   rec,
			Confidence: confidence,
		}
	}
	return &domain.VerificationResult{
		Valid:      false,
		Verdict:    domain.VerdictContentMismatch,
		Message:    fmt.Sprintf("Document content does not match original (%.0f%% similarity). Possible substitution or forgery.", confidence*100),
		Document:   rec,
		Confidence: confidence,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
