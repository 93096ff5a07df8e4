package job

import (
	"context"

	"github.com/osick/knowledge-mcp/internal/service"
)

// CollectionRefreshJob keeps the advisory dimension cache in sync with
// the collections that actually exist in the vector store.
type CollectionRefreshJob struct {
	collections *service.CollectionService
}

func NewCollectionRefreshJob(collections *service.CollectionService) *CollectionRefreshJob {
	return &CollectionRefreshJob{collections: collections}
}

func (j *CollectionRefreshJob) Name() string {
	return "collection_refresh"
}

func (j *CollectionRefreshJob) Run(ctx context.Context) error {
	if j.collections == nil {
		return nil
	}
	return j.collections.Refresh(ctx)
}
