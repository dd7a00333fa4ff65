package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docshield/docshield-backend/internal/data/repos"
	"github.com/docshield/docshield-backend/internal/http/response"
	"github.com/docshield/docshield-backend/internal/platform/logger"
)

type RegistryHandler struct {
	log  *logger.Logger
	docs repos.DocumentRepo
}

func NewRegistryHandler(log *logger.Logger, docs repos.DocumentRepo) *RegistryHandler {
	return &RegistryHandler{
		log:  log.With("handler", "RegistryHandler"),
		docs: docs,
	}
}

type registrySummary struct {
	DocID      string    `json:"doc_id"`
	HolderName string    `json:"holder_name"`
	DocType    string    `json:"doc_type"`
	IssueDate  string    `json:"issue_date"`
	IssuedAt   time.Time `json:"timestamp"`
}

type registryResponse struct {
	Count     int               `json:"count"`
	Storage   string            `json:"storage"`
	Documents []registrySummary `json:"documents"`
}

// List returns issuance summaries for every registered document, newest
// first. Fingerprints and bound hashes stay server-side.
func (h *RegistryHandler) List(c *gin.Context) {
	records, err := h.docs.ListAll(c.Request.Context())
	if err != nil {
		if errors.Is(err, repos.ErrRegistryUnavailable) {
			response.RespondError(c, http.StatusServiceUnavailable, "registry_unavailable", err)
			return
		}
		h.log.Error("Registry listing failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "registry_list_failed", err)
		return
	}

	summaries := make([]registrySummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, registrySummary{
			DocID:      rec.DocID,
			HolderName: rec.HolderName,
			DocType:    rec.DocType,
			IssueDate:  rec.IssueDate,
			IssuedAt:   rec.IssuedAt,
		})
	}

	response.RespondOK(c, registryResponse{
		Count:     len(summaries),
		Storage:   h.docs.Backend(),
		Documents: summaries,
	})
}

// DocInfo returns a single record's metadata plus its verify URL, used by the
// frontend when re-rendering a QR for an already issued document.
func (h *RegistryHandler) DocInfo(c *gin.Context) {
	docID := strings.TrimSpace(c.Query("id"))
	if docID == "" {
		docID = strings.TrimSpace(c.Query("doc_id"))
	}
	if docID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_doc_id", errors.New("no document ID provided"))
		return
	}

	rec, err := h.docs.FindByID(c.Request.Context(), docID)
	if err != nil {
		if errors.Is(err, repos.ErrRegistryUnavailable) {
			response.RespondError(c, http.StatusServiceUnavailable, "registry_unavailable", err)
			return
		}
		h.log.Error("Doc info lookup failed", "doc_id", docID, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "doc_info_failed", err)
		return
	}
	if rec == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("document not found"))
		return
	}
	response.RespondOK(c, rec)
}
