package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/docshield/docshield-backend/internal/http/handlers"
	httpMW "github.com/docshield/docshield-backend/internal/http/middleware"
	"github.com/docshield/docshield-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	IssueHandler    *httpH.IssueHandler
	VerifyHandler   *httpH.VerifyHandler
	RegistryHandler *httpH.RegistryHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.IssueHandler != nil {
			api.POST("/issue", cfg.IssueHandler.Issue)
		}

		if cfg.VerifyHandler != nil {
			api.POST("/verify-id", cfg.VerifyHandler.VerifyByID)
			api.POST("/verify-upload", cfg.VerifyHandler.VerifyUpload)
			api.POST("/verify-with-image", cfg.VerifyHandler.VerifyWithImage)
		}

		if cfg.RegistryHandler != nil {
			api.GET("/doc-info", cfg.RegistryHandler.DocInfo)
			api.GET("/registry", cfg.RegistryHandler.List)
		}
	}

	return r
}
