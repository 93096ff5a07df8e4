package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/osick/knowledge-mcp/internal/pkg/errcode"
	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/pkg/response"
)

// handleError maps the error taxonomy onto HTTP statuses. The message
// stays generic per kind; the cause travels in details.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case appErr.IsChunking(err):
		response.FailDetail(c, http.StatusBadRequest, errcode.ErrChunking, "chunking_error", "invalid input text or chunking parameters", err.Error())
	case appErr.IsEmbedding(err):
		response.FailDetail(c, http.StatusInternalServerError, errcode.ErrEmbedding, "embedding_error", "embedding provider failure", err.Error())
	case appErr.IsVectorStore(err):
		response.FailDetail(c, http.StatusInternalServerError, errcode.ErrVectorStore, "vector_store_error", "vector store failure", err.Error())
	case appErr.IsNotFound(err):
		response.Fail(c, http.StatusNotFound, errcode.ErrNotFound, "not_found", "not found")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Fail(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, appErr.ErrInvalid):
		response.FailDetail(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid", "invalid request", err.Error())
	default:
		response.Fail(c, http.StatusInternalServerError, errcode.ErrUnknown, "internal", "internal error")
	}
}
