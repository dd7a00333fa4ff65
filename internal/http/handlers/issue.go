package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docshield/docshield-backend/internal/data/repos"
	"github.com/docshield/docshield-backend/internal/http/response"
	"github.com/docshield/docshield-backend/internal/platform/logger"
	"github.com/docshield/docshield-backend/internal/services"
)

const maxUploadBytes = 32 << 20

type IssueHandler struct {
	log    *logger.Logger
	issuer services.IssuerService
}

func NewIssueHandler(log *logger.Logger, issuer services.IssuerService) *IssueHandler {
	return &IssueHandler{
		log:    log.With("handler", "IssueHandler"),
		issuer: issuer,
	}
}

type issueResponse struct {
	Success   bool   `json:"success"`
	DocID     string `json:"doc_id"`
	Hash      string `json:"hash"`
	VerifyURL string `json:"verify_url"`
	FileName  string `json:"file_name"`
	FileData  string `json:"file_data"` // base64 PNG of the stamped document
}

// Issue accepts a document plus its metadata and returns the QR-stamped copy
// alongside the registry identifiers.
func (h *IssueHandler) Issue(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", errors.New("no document file provided"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	if len(data) > maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("document exceeds %d bytes", maxUploadBytes))
		return
	}

	req := services.IssueRequest{
		DocID:      c.PostForm("doc_id"),
		HolderName: c.PostForm("holder_name"),
		DocType:    c.PostForm("doc_type"),
		IssueDate:  c.PostForm("issue_date"),
		ExpiryDate: c.PostForm("expiry_date"),
		Additional: c.PostForm("additional"),
		FileName:   header.Filename,
		Data:       data,
	}

	result, err := h.issuer.Issue(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, repos.ErrRegistryUnavailable) {
			response.RespondError(c, http.StatusServiceUnavailable, "registry_unavailable", err)
			return
		}
		if strings.Contains(err.Error(), "required") || strings.Contains(err.Error(), "empty source") {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		h.log.Error("Issuance failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "issue_failed", err)
		return
	}

	response.RespondOK(c, issueResponse{
		Success:   true,
		DocID:     result.Record.DocID,
		Hash:      result.Record.BoundHash,
		VerifyURL: result.Record.VerifyURL,
		FileName:  fmt.Sprintf("secured_%s.png", result.Record.DocID),
		FileData:  base64.StdEncoding.EncodeToString(result.StampedPNG),
	})
}
