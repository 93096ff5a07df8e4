package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/osick/knowledge-mcp/internal/embedding"
	"github.com/osick/knowledge-mcp/internal/model"
	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

type SearchService struct {
	embedder          embedding.IEmbedder
	store             vectorstore.Store
	defaultCollection string
	maxLimit          int
}

func NewSearchService(embedder embedding.IEmbedder, store vectorstore.Store, defaultCollection string, maxLimit int) *SearchService {
	return &SearchService{
		embedder:          embedder,
		store:             store,
		defaultCollection: defaultCollection,
		maxLimit:          maxLimit,
	}
}

// Search embeds the query and returns the store's ranking untouched.
// A collection that was never created yields an empty result set.
func (s *SearchService) Search(ctx context.Context, query, collection string, limit int, threshold float64, filter map[string]interface{}) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	if collection = strings.TrimSpace(collection); collection == "" {
		collection = s.defaultCollection
	}
	limit = vectorstore.ClampLimit(limit, s.maxLimit)

	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := s.store.Search(ctx, collection, vector, vectorstore.SearchOptions{
		Limit:          limit,
		ScoreThreshold: threshold,
		Filter:         filter,
	})
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("similarity search",
		zap.String("collection", collection),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (s *SearchService) DefaultCollection() string {
	return s.defaultCollection
}
