package service

import (
	"context"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

// CollectionService lists collections and keeps an advisory cache of
// dimensions observed during ingestion. The cache is informational
// only; the store stays the authority on dimension conflicts.
type CollectionService struct {
	store vectorstore.Store
	dims  sync.Map // collection name -> int
}

func NewCollectionService(store vectorstore.Store) *CollectionService {
	return &CollectionService{store: store}
}

func (s *CollectionService) List(ctx context.Context) ([]string, error) {
	return s.store.ListCollections(ctx)
}

// Dimension reports the last dimension seen for a collection, if any.
func (s *CollectionService) Dimension(name string) (int, bool) {
	v, ok := s.dims.Load(name)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

func (s *CollectionService) remember(name string, dim int) {
	s.dims.Store(name, dim)
}

// Refresh drops cache entries for collections the store no longer has.
func (s *CollectionService) Refresh(ctx context.Context) error {
	names, err := s.store.ListCollections(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]struct{}, len(names))
	for _, name := range names {
		existing[name] = struct{}{}
	}
	dropped := 0
	s.dims.Range(func(key, _ interface{}) bool {
		if _, ok := existing[key.(string)]; !ok {
			s.dims.Delete(key)
			dropped++
		}
		return true
	})
	logutil.GetLogger(ctx).Debug("collection cache refreshed",
		zap.Int("collections", len(names)),
		zap.Int("dropped", dropped),
	)
	return nil
}
