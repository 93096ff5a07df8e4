package embedding

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/pkg/retry"
)

// stubProvider derives each vector from the text itself so order can be
// verified after concurrent reassembly.
type stubProvider struct {
	mu        sync.Mutex
	calls     int
	batchMax  int
	failTimes int
	failWith  error
}

func (s *stubProvider) Name() string {
	return "stub"
}

func (s *stubProvider) MaxBatchSize() int {
	if s.batchMax > 0 {
		return s.batchMax
	}
	return 64
}

func (s *stubProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	shouldFail := s.failTimes > 0
	if shouldFail {
		s.failTimes--
	}
	s.mu.Unlock()
	if shouldFail {
		return nil, s.failWith
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		n, _ := strconv.Atoi(strings.TrimPrefix(text, "t"))
		out[i] = []float32{float32(n), 1}
	}
	return out, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastRetry(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		MinBackoff:  time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	provider := &stubProvider{}
	e := NewEmbedder(provider, Options{
		Model:          "test-model",
		BatchSize:      4,
		MaxConcurrency: 3,
		Retry:          fastRetry(1),
	})

	vectors, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		require.Equal(t, float32(i), v[0], "vector %d out of order", i)
	}
	// 25 texts at batch size 4 means 7 provider calls
	require.Equal(t, 7, provider.callCount())
}

func TestEmbedBatchRejectsEmptyInput(t *testing.T) {
	e := NewEmbedder(&stubProvider{}, Options{Model: "m", Retry: fastRetry(1)})

	_, err := e.EmbedBatch(context.Background(), nil)
	require.Error(t, err)
	require.True(t, appErr.IsEmbedding(err))

	_, err = e.EmbedBatch(context.Background(), []string{"ok", "   "})
	require.Error(t, err)
	require.True(t, appErr.IsEmbedding(err))
}

func TestEmbedBatchRetriesTransientFaults(t *testing.T) {
	provider := &stubProvider{
		failTimes: 2,
		failWith:  &ProviderError{Status: 503, Message: "unavailable"},
	}
	e := NewEmbedder(provider, Options{Model: "m", Retry: fastRetry(3)})

	vectors, err := e.EmbedBatch(context.Background(), []string{"t7"})
	require.NoError(t, err)
	require.Equal(t, float32(7), vectors[0][0])
	require.Equal(t, 3, provider.callCount())
}

func TestEmbedBatchDoesNotRetryPermanentFaults(t *testing.T) {
	provider := &stubProvider{
		failTimes: 10,
		failWith:  &ProviderError{Status: 401, Message: "bad key"},
	}
	e := NewEmbedder(provider, Options{Model: "m", Retry: fastRetry(5)})

	_, err := e.EmbedBatch(context.Background(), []string{"t1"})
	require.Error(t, err)
	require.True(t, appErr.IsEmbedding(err))
	require.Contains(t, err.Error(), "bad key")
	require.Equal(t, 1, provider.callCount())
}

func TestEmbedBatchSurfacesLastCauseAfterExhaustion(t *testing.T) {
	provider := &stubProvider{
		failTimes: 10,
		failWith:  &ProviderError{Status: 500, Message: "boom"},
	}
	e := NewEmbedder(provider, Options{Model: "m", Retry: fastRetry(2)})

	_, err := e.EmbedBatch(context.Background(), []string{"t1"})
	require.Error(t, err)
	require.True(t, appErr.IsEmbedding(err))
	require.Contains(t, err.Error(), "boom")
	require.Equal(t, 2, provider.callCount())
}

func TestEmbedOneDelegatesToBatch(t *testing.T) {
	e := NewEmbedder(&stubProvider{}, Options{Model: "m", Retry: fastRetry(1)})
	vector, err := e.EmbedOne(context.Background(), "t3")
	require.NoError(t, err)
	require.Equal(t, []float32{3, 1}, vector)
}

func TestLRUCacheAvoidsRepeatCalls(t *testing.T) {
	provider := &stubProvider{}
	e := WrapLRUCache(NewEmbedder(provider, Options{Model: "m", Retry: fastRetry(1)}), 128, time.Minute)

	first, err := e.EmbedOne(context.Background(), "t5")
	require.NoError(t, err)
	second, err := e.EmbedOne(context.Background(), "t5")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, provider.callCount())
}

func TestLRUCachePartialBatchHit(t *testing.T) {
	provider := &stubProvider{}
	e := WrapLRUCache(NewEmbedder(provider, Options{Model: "m", Retry: fastRetry(1)}), 128, time.Minute)

	_, err := e.EmbedBatch(context.Background(), []string{"t1", "t2"})
	require.NoError(t, err)
	require.Equal(t, 1, provider.callCount())

	vectors, err := e.EmbedBatch(context.Background(), []string{"t1", "t3", "t2"})
	require.NoError(t, err)
	require.Equal(t, 2, provider.callCount())
	require.Equal(t, float32(1), vectors[0][0])
	require.Equal(t, float32(3), vectors[1][0])
	require.Equal(t, float32(2), vectors[2][0])
}
