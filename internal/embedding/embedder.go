package embedding

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	appErr "github.com/osick/knowledge-mcp/internal/pkg/errors"
	"github.com/osick/knowledge-mcp/internal/pkg/retry"
)

// IEmbedder turns texts into vectors. Batch output matches input length
// and order.
type IEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

type Options struct {
	Model          string
	BatchSize      int
	MaxConcurrency int
	Timeout        time.Duration
	RatePerSecond  float64
	Retry          retry.Policy
}

type embedder struct {
	provider Provider
	opts     Options
	limiter  *rate.Limiter
}

func NewEmbedder(p Provider, opts Options) IEmbedder {
	if opts.BatchSize <= 0 || opts.BatchSize > p.MaxBatchSize() {
		opts.BatchSize = p.MaxBatchSize()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return &embedder{provider: p, opts: opts, limiter: limiter}
}

func (e *embedder) ModelName() string {
	return e.opts.Model
}

func (e *embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, appErr.Embedding(nil, "no texts to embed")
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, appErr.Embedding(nil, "text at index %d is empty", i)
		}
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := start + e.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	logutil.GetLogger(ctx).Debug("embedding batch",
		zap.Int("texts", len(texts)),
		zap.Int("sub_batches", len(batches)),
		zap.String("model", e.opts.Model),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(texts))
	sem := make(chan struct{}, e.opts.MaxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, b := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(b batch) {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := e.callProvider(ctx, b.texts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				return
			}
			copy(vectors[b.start:], out)
		}(b)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, appErr.Embedding(firstErr, "embed %d texts with %s", len(texts), e.provider.Name())
	}
	return vectors, nil
}

// callProvider wraps one provider round trip in the rate limiter, the
// per-attempt timeout and the retry policy. Only transient faults
// (timeouts, 429, 5xx) are retried.
func (e *embedder) callProvider(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
		vectors, err := e.provider.EmbedBatch(callCtx, e.opts.Model, texts)
		if err != nil {
			if transient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		out = vectors
		return nil
	})
	return out, err
}

func transient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		// network-level faults (timeouts, refused connections) are worth
		// another attempt; everything else is not
		return true
	}
	return false
}
