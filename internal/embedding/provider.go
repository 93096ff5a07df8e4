package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider is a remote embedding backend. EmbedBatch must return one
// vector per input text, in input order.
type Provider interface {
	Name() string
	MaxBatchSize() int
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// ProviderError carries the provider's HTTP-equivalent status so the
// caller can tell transient faults from permanent ones.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: status=%d: %s", e.Status, e.Message)
}

func (e *ProviderError) Transient() bool {
	return e.Status == 429 || e.Status >= 500
}

type ProviderFactory func(args interface{}) (Provider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

func decodeArgs(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode provider config: %w", err)
	}
	return nil
}
