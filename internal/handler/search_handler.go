package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/osick/knowledge-mcp/internal/model"
	"github.com/osick/knowledge-mcp/internal/pkg/errcode"
	"github.com/osick/knowledge-mcp/internal/pkg/response"
	"github.com/osick/knowledge-mcp/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query          string                 `json:"query"`
	CollectionName string                 `json:"collection_name"`
	Limit          int                    `json:"limit"`
	ScoreThreshold float64                `json:"score_threshold"`
	Filter         map[string]interface{} `json:"filter"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid", "invalid request body")
		return
	}
	collection := req.CollectionName
	if strings.TrimSpace(collection) == "" {
		collection = h.search.DefaultCollection()
	}
	results, err := h.search.Search(c.Request.Context(), req.Query, collection, req.Limit, req.ScoreThreshold, req.Filter)
	if err != nil {
		handleError(c, err)
		return
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	response.OK(c, gin.H{
		"success":         true,
		"query":           req.Query,
		"collection_name": collection,
		"results":         results,
		"count":           len(results),
	})
}
