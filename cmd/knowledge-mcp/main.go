package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/osick/knowledge-mcp/internal/chunker"
	"github.com/osick/knowledge-mcp/internal/config"
	"github.com/osick/knowledge-mcp/internal/embedding"
	"github.com/osick/knowledge-mcp/internal/handler"
	"github.com/osick/knowledge-mcp/internal/job"
	"github.com/osick/knowledge-mcp/internal/middleware"
	"github.com/osick/knowledge-mcp/internal/pkg/retry"
	"github.com/osick/knowledge-mcp/internal/schedule"
	"github.com/osick/knowledge-mcp/internal/service"
	"github.com/osick/knowledge-mcp/internal/source"
	"github.com/osick/knowledge-mcp/internal/vectorstore"
	_ "github.com/osick/knowledge-mcp/internal/vectorstore/memory"
	_ "github.com/osick/knowledge-mcp/internal/vectorstore/pgvector"
	_ "github.com/osick/knowledge-mcp/internal/vectorstore/qdrant"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "knowledge-mcp",
		Short: "knowledge base ingestion and semantic search server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildEmbedder(cfg *config.Config) (embedding.IEmbedder, error) {
	provider, err := embedding.NewProvider(cfg.Embedding.Provider, cfg.Embedding.Data)
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	embedder := embedding.NewEmbedder(provider, embedding.Options{
		Model:          cfg.Embedding.Model,
		BatchSize:      cfg.Embedding.BatchSize,
		MaxConcurrency: cfg.Embedding.MaxConcurrency,
		Timeout:        time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		RatePerSecond:  cfg.Embedding.RateLimitPerSecond,
		Retry: retry.Policy{
			MaxAttempts: cfg.Embedding.Retry.MaxAttempts,
			MinBackoff:  time.Duration(cfg.Embedding.Retry.BackoffMinMS) * time.Millisecond,
			MaxBackoff:  time.Duration(cfg.Embedding.Retry.BackoffMaxMS) * time.Millisecond,
		},
	})
	if cfg.Embedding.Cache.Size > 0 {
		embedder = embedding.WrapLRUCache(embedder, cfg.Embedding.Cache.Size, time.Duration(cfg.Embedding.Cache.TTLMinutes)*time.Minute)
	}
	return embedder, nil
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	store, err := vectorstore.New(cfg.VectorStore)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	var splitter chunker.Splitter
	switch cfg.Chunking.Splitter {
	case "", "recursive":
		splitter = chunker.NewRecursive(cfg.Chunking.Size, cfg.Chunking.Overlap)
	case "markdown":
		splitter = chunker.NewMarkdown(cfg.Chunking.Size, cfg.Chunking.Overlap)
	default:
		return fmt.Errorf("unsupported chunking splitter: %s", cfg.Chunking.Splitter)
	}
	var sources source.Store
	if cfg.Source.Type != "" {
		sources, err = source.New(cfg.Source)
		if err != nil {
			return fmt.Errorf("init ingestion source: %w", err)
		}
	}

	collectionService := service.NewCollectionService(store)
	ingestService := service.NewIngestService(splitter, embedder, store, sources, collectionService, cfg.VectorStore.DefaultCollection)
	searchService := service.NewSearchService(embedder, store, cfg.VectorStore.DefaultCollection, cfg.VectorStore.MaxSearchLimit)
	documentService := service.NewDocumentService(store, cfg.VectorStore.DefaultCollection, cfg.Chunking.Overlap)
	healthService := service.NewHealthService(splitter, embedder, store)

	deps := handler.RouterDeps{
		Ingest:      handler.NewIngestHandler(ingestService),
		Search:      handler.NewSearchHandler(searchService),
		Collections: handler.NewCollectionHandler(collectionService),
		Documents:   handler.NewDocumentHandler(documentService),
		Health:      handler.NewHealthHandler(healthService),
		APIKey:      cfg.APIKey,
	}

	engine, err := webapi.NewEngine(
		"/",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewCollectionRefreshJob(collectionService), cfg.Jobs.CollectionRefreshSpec); err != nil {
		return fmt.Errorf("schedule collection refresh: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
