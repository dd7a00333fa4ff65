package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docshield/docshield-backend/internal/domain"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondVerdict writes a bare verification result for request-shape problems
// (missing id, missing file) so clients see the same envelope for every
// verification outcome.
func RespondVerdict(c *gin.Context, status int, verdict domain.Verdict, message string) {
	c.JSON(status, domain.VerificationResult{
		Valid:   false,
		Verdict: verdict,
		Message: message,
	})
}
