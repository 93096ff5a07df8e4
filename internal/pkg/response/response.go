package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the uniform error envelope. Message stays human readable,
// Details may carry the technical cause, never a stack trace.
type ErrorBody struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

func Fail(c *gin.Context, status int, code int, kind, message string) {
	FailDetail(c, status, code, kind, message, "")
}

func FailDetail(c *gin.Context, status int, code int, kind, message, details string) {
	c.JSON(status, ErrorBody{
		Success: false,
		Code:    code,
		Error:   kind,
		Message: message,
		Details: details,
	})
}
