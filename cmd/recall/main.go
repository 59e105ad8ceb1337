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

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/config"
	"github.com/xxxsen/recall/internal/db"
	"github.com/xxxsen/recall/internal/embedcache"
	"github.com/xxxsen/recall/internal/handler"
	"github.com/xxxsen/recall/internal/job"
	"github.com/xxxsen/recall/internal/middleware"
	"github.com/xxxsen/recall/internal/repo"
	"github.com/xxxsen/recall/internal/schedule"
	"github.com/xxxsen/recall/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "recall",
		Short: "recall retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run recall server",
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

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildEmbedder(cfg *config.Config) (ai.IEmbedder, error) {
	if cfg.AI.Provider == "" {
		return nil, nil
	}
	provider, err := ai.NewEmbedProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, err
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.EmbedModel)
	return embedcache.WrapLruCacheToEmbedder(embedder, 10000, 2*time.Hour), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.Int("vector_dim", cfg.Retrieval.VectorDim),
	)

	chunkRepo := repo.NewChunkRepo(conn)
	entityRepo := repo.NewEntityRepo(conn)
	relRepo := repo.NewRelationshipRepo(conn)
	mentionRepo := repo.NewMentionRepo(conn)
	factRepo := repo.NewFactRepo(conn)
	categoryRepo := repo.NewCategoryRepo(conn)
	memoryRepo := repo.NewMemoryRepo(conn)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	searchService := service.NewSearchService(chunkRepo, cfg.Retrieval)
	graphService := service.NewGraphService(entityRepo, relRepo, factRepo, cfg.Retrieval)
	memoryService := service.NewMemoryService(memoryRepo, categoryRepo, cfg.Retrieval)
	ingestService := service.NewIngestService(chunkRepo, entityRepo, relRepo, mentionRepo, factRepo, embedder, cfg.Retrieval)

	deps := handler.RouterDeps{
		Search:   handler.NewSearchHandler(searchService),
		Graph:    handler.NewGraphHandler(graphService),
		Memories: handler.NewMemoryHandler(memoryService),
		Ingest:   handler.NewIngestHandler(ingestService),
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewMemoryExpiryJob(memoryService), cfg.Jobs.MemorySweepSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewMemoryRescoreJob(memoryService), cfg.Jobs.MemoryRescoreSpec); err != nil {
		return err
	}
	if embedder != nil {
		if err := scheduler.AddJob(job.NewEmbeddingBackfillJob(ingestService, cfg.Jobs.BackfillBatch), cfg.Jobs.EmbeddingBackfillSpec); err != nil {
			return err
		}
	}

	extra := []gin.HandlerFunc{
		middleware.CORS(cfg.CORSAllow),
		gzip.Gzip(gzip.DefaultCompression),
	}
	if cfg.RateWindow > 0 {
		extra = append(extra, middleware.RateLimit(time.Duration(cfg.RateWindow)*time.Millisecond))
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(extra...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
