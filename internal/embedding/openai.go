package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIBatchSize = 2048
)

type openAIConfig struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	BatchSize int    `json:"batch_size"`
}

// openAIProvider speaks the OpenAI-compatible /embeddings wire format,
// which also covers Azure OpenAI and local gateways.
type openAIProvider struct {
	apiKey    string
	baseURL   string
	batchSize int
	client    *http.Client
}

func init() {
	Register("openai", createOpenAIProvider)
}

func createOpenAIProvider(args interface{}) (Provider, error) {
	cfg := &openAIConfig{}
	if err := decodeArgs(args, cfg); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api_key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultOpenAIBatchSize
	}
	return &openAIProvider{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		batchSize: cfg.BatchSize,
		client:    http.DefaultClient,
	}, nil
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) MaxBatchSize() int {
	return p.batchSize
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *openAIProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	endpoint := strings.TrimRight(p.baseURL, "/") + "/embeddings"
	reqBody := openAIEmbedRequest{Model: model, Input: texts}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
		}
	}
	var out openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(out.Data))
	}
	vectors := make([][]float32, len(texts))
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
	}
	return vectors, nil
}
