package handlers

import (
	"errors"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docshield/docshield-backend/internal/data/repos"
	"github.com/docshield/docshield-backend/internal/domain"
	"github.com/docshield/docshield-backend/internal/http/response"
	"github.com/docshield/docshield-backend/internal/imaging"
	"github.com/docshield/docshield-backend/internal/platform/logger"
	"github.com/docshield/docshield-backend/internal/services"
)

type VerifyHandler struct {
	log      *logger.Logger
	verifier services.VerifierService
}

func NewVerifyHandler(log *logger.Logger, verifier services.VerifierService) *VerifyHandler {
	return &VerifyHandler{
		log:      log.With("handler", "VerifyHandler"),
		verifier: verifier,
	}
}

type verifyIDRequest struct {
	DocID string `json:"doc_id" form:"doc_id"`
	Hash  string `json:"hash" form:"hash"`
}

// VerifyByID checks a scanned QR payload without image evidence.
func (h *VerifyHandler) VerifyByID(c *gin.Context) {
	var req verifyIDRequest
	if err := c.ShouldBind(&req); err != nil {
		response.RespondVerdict(c, http.StatusBadRequest, domain.VerdictNoID, "No document ID provided.")
		return
	}
	req.DocID = strings.TrimSpace(req.DocID)
	if req.DocID == "" {
		response.RespondVerdict(c, http.StatusBadRequest, domain.VerdictNoID, "No document ID provided.")
		return
	}

	result, err := h.verifier.VerifyByID(c.Request.Context(), req.DocID, strings.TrimSpace(req.Hash))
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// VerifyUpload verifies an uploaded file, either a pristine digital copy or a
// photo/scan of a printed document when the physical flag is set.
func (h *VerifyHandler) VerifyUpload(c *gin.Context) {
	img, filename, ok := h.readImageField(c, "file", domain.VerdictNoFile, "No file provided for verification.")
	if !ok {
		return
	}

	isPhysical := parseBoolField(c.PostForm("physical"))
	docIDHint := strings.TrimSpace(c.PostForm("doc_id"))
	hashHint := strings.TrimSpace(c.PostForm("hash"))

	h.log.Debug("Verifying upload", "file", filename, "physical", isPhysical)

	result, err := h.verifier.VerifyDocument(c.Request.Context(), img, isPhysical, docIDHint, hashHint)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// VerifyWithImage is the camera path: the client decoded the QR on-device and
// sends the captured frame plus doc_id and hash.
func (h *VerifyHandler) VerifyWithImage(c *gin.Context) {
	docID := strings.TrimSpace(c.PostForm("doc_id"))
	if docID == "" {
		response.RespondVerdict(c, http.StatusBadRequest, domain.VerdictNoID, "No document ID provided.")
		return
	}

	img, _, ok := h.readImageField(c, "file", domain.VerdictNoImage, "No captured image provided.")
	if !ok {
		return
	}

	result, err := h.verifier.VerifyWithImage(c.Request.Context(), img, docID, strings.TrimSpace(c.PostForm("hash")))
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// readImageField pulls a multipart upload out of the request and decodes it
// into an image, writing the appropriate verdict response on failure.
func (h *VerifyHandler) readImageField(c *gin.Context, field string, missingVerdict domain.Verdict, missingMsg string) (image.Image, string, bool) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		response.RespondVerdict(c, http.StatusBadRequest, missingVerdict, missingMsg)
		return nil, "", false
	}
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		response.RespondVerdict(c, http.StatusBadRequest, missingVerdict, missingMsg)
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil || len(data) == 0 {
		response.RespondVerdict(c, http.StatusBadRequest, missingVerdict, missingMsg)
		return nil, "", false
	}

	img, err := imaging.DecodeDocument(data, header.Filename)
	if err != nil {
		h.log.Warn("Could not decode uploaded document", "file", header.Filename, "error", err)
		response.RespondVerdict(c, http.StatusBadRequest, domain.VerdictError,
			"Could not read the uploaded file as an image or PDF.")
		return nil, "", false
	}
	return img, header.Filename, true
}

func (h *VerifyHandler) respondEngineError(c *gin.Context, err error) {
	if errors.Is(err, repos.ErrRegistryUnavailable) {
		response.RespondVerdict(c, http.StatusServiceUnavailable, domain.VerdictError,
			"Verification registry is temporarily unavailable. Try again shortly.")
		return
	}
	h.log.Error("Verification failed", "error", err)
	response.RespondVerdict(c, http.StatusInternalServerError, domain.VerdictError,
		"Verification failed due to an internal error.")
}

func parseBoolField(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
