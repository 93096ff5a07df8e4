package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/osick/knowledge-mcp/internal/model"
	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
)

// Storage is a brute-force cosine-similarity store. It backs tests and
// single-node development setups; data does not survive a restart.
type Storage struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dim    int
	points []model.Point
}

func init() {
	vectorstore.Register("memory", func(args interface{}) (vectorstore.Store, error) {
		return NewStorage(), nil
	})
}

func NewStorage() *Storage {
	return &Storage{collections: make(map[string]*collection)}
}

func (s *Storage) EnsureCollection(ctx context.Context, name string, dim int) error {
	if name == "" || dim <= 0 {
		return appErr.VectorStore(nil, "invalid collection %q with dimension %d", name, dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		if col.dim != dim {
			return appErr.VectorStore(nil, "collection %q has dimension %d, want %d", name, col.dim, dim)
		}
		return nil
	}
	s.collections[name] = &collection{dim: dim}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, name string, points []model.Point) ([]string, error) {
	if len(points) == 0 {
		return nil, appErr.VectorStore(nil, "no points to upsert")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, appErr.VectorStore(nil, "collection %q does not exist", name)
	}
	for _, p := range points {
		if len(p.Vector) != col.dim {
			return nil, appErr.VectorStore(nil, "vector dimension %d does not match collection %q dimension %d", len(p.Vector), name, col.dim)
		}
	}
	ids := make([]string, 0, len(points))
	for _, p := range points {
		replaced := false
		for i := range col.points {
			if col.points[i].ID == p.ID {
				col.points[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			col.points = append(col.points, p)
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (s *Storage) Search(ctx context.Context, name string, vector []float32, opts vectorstore.SearchOptions) ([]model.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = vectorstore.DefaultSearchLimit
	}
	results := make([]model.SearchResult, 0, len(col.points))
	for _, p := range col.points {
		if !matches(p.Payload, opts.Filter) {
			continue
		}
		score := cosineSimilarity(vector, p.Vector)
		if score < opts.ScoreThreshold {
			continue
		}
		results = append(results, model.SearchResult{
			ID:       p.ID,
			Score:    score,
			Text:     p.Payload.Text,
			Metadata: resultMetadata(p.Payload),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Storage) GetByID(ctx context.Context, name, id string) (*model.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	for i := range col.points {
		if col.points[i].ID == id {
			p := col.points[i]
			return &p, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *Storage) ListByDoc(ctx context.Context, name, docID string) ([]model.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	var out []model.Point
	for _, p := range col.points {
		if p.Payload.DocID == docID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Storage) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func matches(p model.Payload, filter map[string]interface{}) bool {
	if len(filter) == 0 {
		return true
	}
	flat := p.Flatten()
	for k, want := range filter {
		got, ok := flat[k]
		if !ok || fmtValue(got) != fmtValue(want) {
			return false
		}
	}
	return true
}

// fmtValue normalizes JSON-decoded scalars so 3 and 3.0 compare equal.
func fmtValue(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func resultMetadata(p model.Payload) map[string]interface{} {
	meta := make(map[string]interface{}, len(p.Metadata)+2)
	for k, v := range p.Metadata {
		meta[k] = v
	}
	meta[model.PayloadKeyDocID] = p.DocID
	meta[model.PayloadKeyChunkIndex] = p.ChunkIndex
	return meta
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
