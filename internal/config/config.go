package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int               `json:"port"`
	APIKey      string            `json:"api_key"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	Chunking    ChunkingConfig    `json:"chunking"`
	Embedding   EmbeddingConfig   `json:"embedding"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	Source      SourceConfig      `json:"source"`
	Jobs        JobsConfig        `json:"jobs"`
}

type ChunkingConfig struct {
	Size     int    `json:"size"`
	Overlap  int    `json:"overlap"`
	Splitter string `json:"splitter"`
}

type EmbeddingConfig struct {
	Provider           string      `json:"provider"`
	Model              string      `json:"model"`
	Dimension          int         `json:"dimension"`
	BatchSize          int         `json:"batch_size"`
	MaxConcurrency     int         `json:"max_concurrency"`
	TimeoutSeconds     int         `json:"timeout_seconds"`
	RateLimitPerSecond float64     `json:"rate_limit_per_second"`
	Retry              RetryConfig `json:"retry"`
	Cache              CacheConfig `json:"cache"`
	Data               interface{} `json:"data"`
}

type RetryConfig struct {
	MaxAttempts  int `json:"max_attempts"`
	BackoffMinMS int `json:"backoff_min_ms"`
	BackoffMaxMS int `json:"backoff_max_ms"`
}

type CacheConfig struct {
	Size       int `json:"size"`
	TTLMinutes int `json:"ttl_minutes"`
}

type VectorStoreConfig struct {
	Backend           string      `json:"backend"`
	DefaultCollection string      `json:"default_collection"`
	MaxSearchLimit    int         `json:"max_search_limit"`
	Data              interface{} `json:"data"`
}

type SourceConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	CollectionRefreshSpec string `json:"collection_refresh_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	// seed sentinels so an explicit zero in the file survives decoding
	cfg := Config{Chunking: ChunkingConfig{Overlap: -1}}
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 512
	}
	if cfg.Chunking.Overlap < 0 {
		cfg.Chunking.Overlap = 50
	}
	if cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return nil, fmt.Errorf("chunking.overlap must be smaller than chunking.size")
	}
	if cfg.Chunking.Splitter == "" {
		cfg.Chunking.Splitter = "recursive"
	}
	if cfg.Embedding.Provider == "" {
		return nil, fmt.Errorf("embedding.provider is required")
	}
	if cfg.Embedding.Model == "" {
		return nil, fmt.Errorf("embedding.model is required")
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.MaxConcurrency == 0 {
		cfg.Embedding.MaxConcurrency = 4
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Embedding.Retry.MaxAttempts == 0 {
		cfg.Embedding.Retry.MaxAttempts = 3
	}
	if cfg.Embedding.Retry.BackoffMinMS == 0 {
		cfg.Embedding.Retry.BackoffMinMS = 200
	}
	if cfg.Embedding.Retry.BackoffMaxMS == 0 {
		cfg.Embedding.Retry.BackoffMaxMS = 5000
	}
	if cfg.VectorStore.Backend == "" {
		return nil, fmt.Errorf("vector_store.backend is required")
	}
	if cfg.VectorStore.DefaultCollection == "" {
		cfg.VectorStore.DefaultCollection = "default"
	}
	if cfg.VectorStore.MaxSearchLimit == 0 {
		cfg.VectorStore.MaxSearchLimit = 50
	}
	if cfg.Jobs.CollectionRefreshSpec == "" {
		cfg.Jobs.CollectionRefreshSpec = "*/10 * * * *"
	}
	return &cfg, nil
}
