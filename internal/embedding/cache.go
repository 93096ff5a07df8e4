package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// WrapLRUCache memoizes vectors per model+text so re-ingested or
// repeated query texts skip the provider round trip.
func WrapLRUCache(e IEmbedder, size int, ttl time.Duration) IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func (l *lruEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(l.next.ModelName(), text)
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit")
		return cloneVector(cached), nil
	}
	vector, err := l.next.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneVector(vector))
	return vector, nil
}

func (l *lruEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if cached, ok := l.cache.Get(cacheKey(l.next.ModelName(), text)); ok {
			vectors[i] = cloneVector(cached)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 && len(texts) > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit for full batch", zap.Int("texts", len(texts)))
		return vectors, nil
	}
	if len(texts) == 0 {
		// delegate so the validation error stays in one place
		return l.next.EmbedBatch(ctx, texts)
	}
	fresh, err := l.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, i := range missingIdx {
		vectors[i] = fresh[j]
		l.cache.Add(cacheKey(l.next.ModelName(), texts[i]), cloneVector(fresh[j]))
	}
	return vectors, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
