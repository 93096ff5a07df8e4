package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osick/knowledge-mcp/internal/pkg/errcode"
	"github.com/osick/knowledge-mcp/internal/pkg/response"
	"github.com/osick/knowledge-mcp/internal/service"
)

type IngestHandler struct {
	ingest *service.IngestService
}

func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

type ingestRequest struct {
	Text           string                 `json:"text"`
	CollectionName string                 `json:"collection_name"`
	Metadata       map[string]interface{} `json:"metadata"`
}

type ingestSourceRequest struct {
	SourceKey      string                 `json:"source_key"`
	CollectionName string                 `json:"collection_name"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid", "invalid request body")
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), req.Text, req.CollectionName, req.Metadata)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{
		"success":        true,
		"doc_id":         result.DocID,
		"chunks_created": result.ChunksCreated,
		"chunk_ids":      result.ChunkIDs,
		"chunks":         result.Chunks,
	})
}

func (h *IngestHandler) IngestSource(c *gin.Context) {
	var req ingestSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid", "invalid request body")
		return
	}
	result, err := h.ingest.IngestSource(c.Request.Context(), req.SourceKey, req.CollectionName, req.Metadata)
	if err != nil {
		handleError(c, err)
		return
	}
	response.OK(c, gin.H{
		"success":        true,
		"doc_id":         result.DocID,
		"chunks_created": result.ChunksCreated,
		"chunk_ids":      result.ChunkIDs,
		"chunks":         result.Chunks,
	})
}
