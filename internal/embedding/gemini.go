package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiBatchSize = 100

type geminiConfig struct {
	APIKey    string `json:"api_key"`
	TaskType  string `json:"task_type"`
	BatchSize int    `json:"batch_size"`
}

type geminiProvider struct {
	apiKey    string
	taskType  string
	batchSize int
}

func init() {
	Register("gemini", createGeminiProvider)
}

func createGeminiProvider(args interface{}) (Provider, error) {
	cfg := &geminiConfig{}
	if err := decodeArgs(args, cfg); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultGeminiBatchSize
	}
	return &geminiProvider{
		apiKey:    cfg.APIKey,
		taskType:  cfg.TaskType,
		batchSize: cfg.BatchSize,
	}, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) MaxBatchSize() int {
	return p.batchSize
}

func (p *geminiProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	var config *genai.EmbedContentConfig
	if p.taskType != "" {
		config = &genai.EmbedContentConfig{TaskType: p.taskType}
	}
	resp, err := client.Models.EmbedContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), got)
	}
	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}
