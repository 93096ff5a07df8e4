package service

import (
	"context"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

// DocumentService rebuilds an ingested document from its stored
// chunks. Adjacent chunks may repeat up to maxOverlap trailing runes,
// so concatenation strips the longest shared boundary first.
type DocumentService struct {
	store             vectorstore.Store
	defaultCollection string
	maxOverlap        int
}

func NewDocumentService(store vectorstore.Store, defaultCollection string, maxOverlap int) *DocumentService {
	return &DocumentService{store: store, defaultCollection: defaultCollection, maxOverlap: maxOverlap}
}

type Document struct {
	DocID      string
	Collection string
	Text       string
	Metadata   map[string]interface{}
	Found      bool
}

func (s *DocumentService) Get(ctx context.Context, collection, docID string) (*Document, error) {
	if collection = strings.TrimSpace(collection); collection == "" {
		collection = s.defaultCollection
	}
	doc := &Document{DocID: docID, Collection: collection}

	points, err := s.store.ListByDoc(ctx, collection, docID)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return doc, nil
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Payload.ChunkIndex < points[j].Payload.ChunkIndex
	})

	var b strings.Builder
	for i, p := range points {
		chunk := p.Payload.Text
		if i > 0 {
			chunk = chunk[sharedBoundary(b.String(), chunk, s.maxOverlap):]
		}
		b.WriteString(chunk)
	}
	doc.Text = b.String()
	doc.Metadata = points[0].Payload.Metadata
	doc.Found = true
	logutil.GetLogger(ctx).Debug("document reconstructed",
		zap.String("doc_id", docID),
		zap.String("collection", collection),
		zap.Int("chunks", len(points)),
	)
	return doc, nil
}

// sharedBoundary returns the byte length of the longest prefix of next
// (at most max runes) that is also a suffix of acc.
func sharedBoundary(acc, next string, max int) int {
	runes := []rune(next)
	if len(runes) > max {
		runes = runes[:max]
	}
	for n := len(runes); n > 0; n-- {
		prefix := string(runes[:n])
		if strings.HasSuffix(acc, prefix) {
			return len(prefix)
		}
	}
	return 0
}
