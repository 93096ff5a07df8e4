package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/osick/knowledge-mcp/internal/pkg/response"
	"github.com/osick/knowledge-mcp/internal/service"
)

type CollectionHandler struct {
	collections *service.CollectionService
}

func NewCollectionHandler(collections *service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collections: collections}
}

func (h *CollectionHandler) List(c *gin.Context) {
	names, err := h.collections.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	response.OK(c, gin.H{
		"success":     true,
		"collections": names,
		"count":       len(names),
	})
}
