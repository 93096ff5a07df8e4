package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/osick/knowledge-mcp/internal/middleware"
)

type RouterDeps struct {
	Ingest      *IngestHandler
	Search      *SearchHandler
	Collections *CollectionHandler
	Documents   *DocumentHandler
	Health      *HealthHandler
	APIKey      string
}

// RegisterRoutes wires the HTTP surface. Health stays outside the auth
// group so probes work without credentials.
func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Check)

	authGroup := api.Group("")
	authGroup.Use(middleware.APIKeyAuth(deps.APIKey))
	authGroup.POST("/ingest", deps.Ingest.Ingest)
	authGroup.POST("/ingest_source", deps.Ingest.IngestSource)
	authGroup.POST("/search", deps.Search.Search)
	authGroup.GET("/collections", deps.Collections.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
}
