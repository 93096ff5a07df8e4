package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osick/knowledge-mcp/internal/pkg/errcode"
	"github.com/osick/knowledge-mcp/internal/pkg/response"
	"github.com/osick/knowledge-mcp/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) Get(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		response.Fail(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid", "document id required")
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), c.Query("collection_name"), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	body := gin.H{
		"success":         true,
		"document_id":     doc.DocID,
		"collection_name": doc.Collection,
		"found":           doc.Found,
		"text":            nil,
		"metadata":        nil,
	}
	if doc.Found {
		body["text"] = doc.Text
		body["metadata"] = doc.Metadata
	}
	response.OK(c, body)
}
