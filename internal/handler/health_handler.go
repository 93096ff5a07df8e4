package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osick/knowledge-mcp/internal/service"
)

type HealthHandler struct {
	health *service.HealthService
}

func NewHealthHandler(health *service.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

func (h *HealthHandler) Check(c *gin.Context) {
	health := h.health.Check(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":   health.Status,
		"services": health.Services,
	})
}
