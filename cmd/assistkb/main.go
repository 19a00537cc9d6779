package main

import (
	"context"
	"database/sql"
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

	"github.com/zlynx/assistkb/internal/ai"
	"github.com/zlynx/assistkb/internal/config"
	"github.com/zlynx/assistkb/internal/db"
	"github.com/zlynx/assistkb/internal/embedcache"
	"github.com/zlynx/assistkb/internal/filestore"
	"github.com/zlynx/assistkb/internal/handler"
	"github.com/zlynx/assistkb/internal/job"
	"github.com/zlynx/assistkb/internal/middleware"
	"github.com/zlynx/assistkb/internal/repo"
	"github.com/zlynx/assistkb/internal/schedule"
	"github.com/zlynx/assistkb/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "assistkb",
		Short: "assistkb knowledge base server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run assistkb server",
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

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildAIStack(cfg *config.Config, cacheRepo *repo.EmbeddingCacheRepo) (ai.IGenerator, ai.IEmbedder, *ai.BatchEmbedder, error) {
	var generators []ai.GeneratorEntry
	var embedders []ai.EmbedderEntry
	for _, pc := range cfg.AI.Providers {
		provider, err := ai.NewProvider(pc.Name, pc.Data)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init ai provider %s: %w", pc.Name, err)
		}
		if cfg.AI.GenerateModel != "" {
			generators = append(generators, ai.GeneratorEntry{
				Name:      pc.Name,
				Generator: ai.NewGenerator(provider, cfg.AI.GenerateModel),
			})
		}
		embedders = append(embedders, ai.EmbedderEntry{
			Name:     pc.Name,
			Embedder: ai.NewEmbedder(provider, cfg.AI.EmbedModel),
		})
	}
	generator := ai.NewGroupGenerator(generators)
	embedder := ai.NewGroupEmbedder(embedders)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLHours)*time.Hour)
	batch := ai.NewBatchEmbedder(embedder, ai.BatchConfig{
		BatchSize: cfg.AI.EmbedBatchSize,
		Delay:     time.Duration(cfg.AI.EmbedDelayMS) * time.Millisecond,
		MaxChars:  cfg.AI.EmbedMaxChars,
	})
	return generator, embedder, batch, nil
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.Int("embed_dim", cfg.AI.EmbedDim),
	)

	assistantRepo := repo.NewAssistantRepo(database)
	documentRepo := repo.NewDocumentRepo(database)
	chunkRepo := repo.NewChunkRepo(database, cfg.AI.EmbedDim)
	cacheRepo := repo.NewEmbeddingCacheRepo(database)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	generator, embedder, batchEmbedder, err := buildAIStack(cfg, cacheRepo)
	if err != nil {
		return err
	}

	ingestService := service.NewIngestService(chunkRepo, documentRepo, batchEmbedder, store, cfg.Extract, cfg.Chunk, cfg.AI.EmbedDim)
	assistantService := service.NewAssistantService(assistantRepo, ingestService)
	documentService := service.NewDocumentService(documentRepo)
	retrievalService := service.NewRetrievalService(embedder, generator, chunkRepo, documentRepo, cfg.Retrieval)

	deps := handler.RouterDeps{
		Assistants: handler.NewAssistantHandler(assistantService),
		Documents:  handler.NewDocumentHandler(assistantService, ingestService, documentService),
		Query:      handler.NewQueryHandler(assistantService, retrievalService),
		JWTSecret:  []byte(cfg.JWTSecret),
		RateWindow: time.Duration(cfg.RateLimitMS) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Jobs.CacheKeepDays), cfg.Jobs.CacheCleanupSpec); err != nil {
		return fmt.Errorf("schedule cache cleanup: %w", err)
	}
	staleAge := time.Duration(cfg.Jobs.StaleIngestMinutes) * time.Minute
	if err := scheduler.AddJob(job.NewStaleIngestCleanupJob(documentRepo, chunkRepo, store, staleAge), cfg.Jobs.StaleIngestSpec); err != nil {
		return fmt.Errorf("schedule stale ingest cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
