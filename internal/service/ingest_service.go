package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/osick/knowledge-mcp/internal/chunker"
	"github.com/osick/knowledge-mcp/internal/embedding"
	"github.com/osick/knowledge-mcp/internal/model"
	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/source"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

// IngestService runs the chunk -> embed -> upsert pipeline. Each call
// mints a fresh doc_id, so re-ingesting the same text stores a second
// copy under a new document.
type IngestService struct {
	splitter          chunker.Splitter
	embedder          embedding.IEmbedder
	store             vectorstore.Store
	sources           source.Store
	collections       *CollectionService
	defaultCollection string
}

func NewIngestService(splitter chunker.Splitter, embedder embedding.IEmbedder, store vectorstore.Store, sources source.Store, collections *CollectionService, defaultCollection string) *IngestService {
	return &IngestService{
		splitter:          splitter,
		embedder:          embedder,
		store:             store,
		sources:           sources,
		collections:       collections,
		defaultCollection: defaultCollection,
	}
}

type IngestedChunk struct {
	Index int    `json:"chunk_index"`
	Text  string `json:"chunk_text"`
	ID    string `json:"chunk_id"`
}

type IngestResult struct {
	DocID         string          `json:"doc_id"`
	Collection    string          `json:"collection_name"`
	ChunksCreated int             `json:"chunks_created"`
	ChunkIDs      []string        `json:"chunk_ids"`
	Chunks        []IngestedChunk `json:"chunks"`
}

func (s *IngestService) Ingest(ctx context.Context, text, collection string, metadata map[string]interface{}) (*IngestResult, error) {
	collection = s.resolveCollection(collection)
	logger := logutil.GetLogger(ctx).With(zap.String("collection", collection))

	chunks, err := s.splitter.Split(text)
	if err != nil {
		return nil, err
	}
	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, err
	}

	docID := newDocID()
	ingestedAt := time.Now().UTC().Format(time.RFC3339)
	points := make([]model.Point, 0, len(chunks))
	result := &IngestResult{
		DocID:      docID,
		Collection: collection,
		ChunkIDs:   make([]string, 0, len(chunks)),
		Chunks:     make([]IngestedChunk, 0, len(chunks)),
	}
	for i, chunk := range chunks {
		id := newPointID()
		points = append(points, model.Point{
			ID:     id,
			Vector: vectors[i],
			Payload: model.Payload{
				DocID:      docID,
				ChunkIndex: i,
				Text:       chunk,
				Metadata:   mergeMetadata(metadata, ingestedAt),
			},
		})
		result.ChunkIDs = append(result.ChunkIDs, id)
		result.Chunks = append(result.Chunks, IngestedChunk{Index: i, Text: chunk, ID: id})
	}

	dim := len(vectors[0])
	if err := s.store.EnsureCollection(ctx, collection, dim); err != nil {
		return nil, err
	}
	if s.collections != nil {
		s.collections.remember(collection, dim)
	}
	if _, err := s.store.Upsert(ctx, collection, points); err != nil {
		return nil, err
	}
	result.ChunksCreated = len(points)
	logger.Info("document ingested",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(points)),
		zap.Int("dimension", dim),
	)
	return result, nil
}

// IngestSource pulls the document body from the configured source
// store and ingests it; the key is recorded in the chunk metadata.
func (s *IngestService) IngestSource(ctx context.Context, key, collection string, metadata map[string]interface{}) (*IngestResult, error) {
	if s.sources == nil {
		return nil, fmt.Errorf("%w: no ingestion source configured", appErr.ErrInvalid)
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: source key is required", appErr.ErrInvalid)
	}
	data, err := source.ReadAll(ctx, s.sources, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read source %q: %v", appErr.ErrInvalid, key, err)
	}
	merged := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["source"] = key
	return s.Ingest(ctx, string(data), collection, merged)
}

func (s *IngestService) resolveCollection(collection string) string {
	if strings.TrimSpace(collection) == "" {
		return s.defaultCollection
	}
	return collection
}

func mergeMetadata(metadata map[string]interface{}, ingestedAt string) map[string]interface{} {
	merged := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["ingested_at"] = ingestedAt
	return merged
}
