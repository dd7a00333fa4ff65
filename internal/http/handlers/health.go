package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docshield/docshield-backend/internal/data/repos"
)

type HealthHandler struct {
	docs repos.DocumentRepo
}

func NewHealthHandler(docs repos.DocumentRepo) *HealthHandler {
	return &HealthHandler{docs: docs}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"storage": h.docs.Backend(),
	})
}
