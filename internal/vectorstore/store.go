package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/osick/knowledge-mcp/internal/config"
	"github.com/osick/knowledge-mcp/internal/model"
)

// SearchOptions narrows a similarity search. Filter entries are
// conjunctive exact-match constraints on flattened payload keys.
type SearchOptions struct {
	Limit          int
	ScoreThreshold float64
	Filter         map[string]interface{}
}

// Store is the capability interface over a vector database. Backends
// are selected at construction time through the registry; a missing
// collection on read yields empty results, not an error.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collection string, points []model.Point) ([]string, error)
	Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]model.SearchResult, error)
	GetByID(ctx context.Context, collection, id string) (*model.Point, error)
	ListByDoc(ctx context.Context, collection, docID string) ([]model.Point, error)
	ListCollections(ctx context.Context) ([]string, error)
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VectorStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if key == "" {
		return nil, fmt.Errorf("vector_store.backend is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store backend: %s", cfg.Backend)
	}
	return factory(cfg.Data)
}

// DefaultSearchLimit applies when a caller does not ask for a result
// count of its own.
const DefaultSearchLimit = 5

// ClampLimit forces a requested result count into [1, max], reading a
// missing or non-positive request as the default.
func ClampLimit(limit, max int) int {
	if limit < 1 {
		limit = DefaultSearchLimit
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
