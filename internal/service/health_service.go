package service

import (
	"context"
	"time"

	"github.com/osick/knowledge-mcp/internal/chunker"
	"github.com/osick/knowledge-mcp/internal/embedding"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

const healthCheckTimeout = 5 * time.Second

type HealthService struct {
	splitter chunker.Splitter
	embedder embedding.IEmbedder
	store    vectorstore.Store
}

func NewHealthService(splitter chunker.Splitter, embedder embedding.IEmbedder, store vectorstore.Store) *HealthService {
	return &HealthService{splitter: splitter, embedder: embedder, store: store}
}

type Health struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Check probes the vector store with a cheap list call; the chunker
// and embedder are in-process and only checked for presence.
func (s *HealthService) Check(ctx context.Context) *Health {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	services := map[string]string{
		"chunker":  componentStatus(s.splitter != nil),
		"embedder": componentStatus(s.embedder != nil),
	}
	if s.store == nil {
		services["vector_store"] = "unavailable"
	} else if _, err := s.store.ListCollections(ctx); err != nil {
		services["vector_store"] = "error: " + err.Error()
	} else {
		services["vector_store"] = "ok"
	}

	status := "healthy"
	for _, v := range services {
		if v != "ok" {
			status = "degraded"
			break
		}
	}
	return &Health{Status: status, Services: services}
}

func componentStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "unavailable"
}
