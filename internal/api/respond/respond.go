package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insightloop/reportd/internal/pkg/apperr"
)

// Error writes an error response with the status implied by the error's kind
func Error(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"detail": err.Error()})
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
