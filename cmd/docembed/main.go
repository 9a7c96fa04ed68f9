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

	"github.com/xxxsen/docembed/internal/ai"
	"github.com/xxxsen/docembed/internal/config"
	"github.com/xxxsen/docembed/internal/db"
	"github.com/xxxsen/docembed/internal/embedcache"
	"github.com/xxxsen/docembed/internal/handler"
	"github.com/xxxsen/docembed/internal/ingest"
	"github.com/xxxsen/docembed/internal/job"
	"github.com/xxxsen/docembed/internal/middleware"
	"github.com/xxxsen/docembed/internal/model"
	"github.com/xxxsen/docembed/internal/quota"
	"github.com/xxxsen/docembed/internal/repo"
	"github.com/xxxsen/docembed/internal/retry"
	"github.com/xxxsen/docembed/internal/schedule"
	"github.com/xxxsen/docembed/internal/service"
	"github.com/xxxsen/docembed/internal/source"
	"github.com/xxxsen/docembed/internal/tokenizer"
	"github.com/xxxsen/docembed/internal/trainer"
)

const trainRequestWindow = 5 * time.Second

func main() {
	var configPath string
	var sourceID string

	rootCmd := &cobra.Command{
		Use:   "docembed",
		Short: "document ingestion and embedding service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the job-control server and scheduled trainings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.db.Close()
			return runServer(a)
		},
	}
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "ingest one source and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceID == "" {
				return fmt.Errorf("--source is required")
			}
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.db.Close()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				a.training.CancelAll()
			}()
			result, err := a.training.Train(context.Background(), sourceID)
			if err != nil {
				return err
			}
			printSummary(cmd, result)
			if result.Failed > 0 || len(result.Errors) > 0 {
				return fmt.Errorf("%d file(s) failed", result.Failed)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	trainCmd.Flags().StringVar(&sourceID, "source", "", "id of the source to ingest")
	rootCmd.AddCommand(runCmd, trainCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	db       *sql.DB
	training *service.TrainingService
	cache    *repo.EmbeddingCacheRepo
}

func setup(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath), zap.Int("sources", len(cfg.Sources)))

	conn, err := db.Open(context.Background(), cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(context.Background(), conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	tk, err := tokenizer.New(tokenizer.Config{
		Kind:          cfg.Ingest.Tokenizer,
		CharsPerToken: cfg.Ingest.CharsPerToken,
		Encoding:      cfg.Ingest.TiktokenEncoding,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)
	embedder, err := buildEmbedder(cfg.Embedding, tk, cacheRepo)
	if err != nil {
		conn.Close()
		return nil, err
	}

	store := repo.NewStore(conn)
	usage := repo.NewUsageRepo(conn)
	processor := ingest.NewProcessor(store, embedder, tk, ingest.Options{
		MaxChunkChars:   cfg.Ingest.MaxChunkChars,
		MinContentChars: cfg.Ingest.MinContentChars,
	})
	runner := trainer.New(processor, store, trainer.Options{
		Concurrency: cfg.Ingest.Concurrency,
		Allowance: quota.NewConfigAllowanceProvider(quota.PlanConfig{
			DefaultPlanTokens: cfg.Quota.DefaultPlanTokens,
			Teams:             cfg.Quota.Teams,
		}, usage),
		Usage: usage,
	})
	return &app{
		cfg:      cfg,
		db:       conn,
		training: service.NewTrainingService(runner, cfg.Sources, source.New),
		cache:    cacheRepo,
	}, nil
}

// buildEmbedder stacks providers, fallback, throttling, retries and caches.
func buildEmbedder(cfg config.EmbeddingConfig, tk tokenizer.Tokenizer, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		provider, err := ai.NewEmbedProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", pc.Name, err)
		}
		e := ai.NewEmbedder(provider, pc.Model, ai.EmbedderOptions{Dimensions: cfg.Dimensions, Tokenizer: tk})
		entries = append(entries, ai.EmbedderEntry{
			Name:     pc.Name,
			Embedder: ai.WrapTimeout(e, time.Duration(cfg.Timeout)*time.Second),
		})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}
	embedder = ai.WrapRateLimit(embedder, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	embedder = ai.WrapRetry(embedder, retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		Jitter:      cfg.Retry.Jitter,
	})
	if cfg.Cache.DBEnabled {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	if cfg.Cache.LRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Cache.LRUSize, time.Duration(cfg.Cache.LRUTTLSeconds)*time.Second)
	}
	return embedder, nil
}

func runServer(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	for _, src := range a.cfg.Sources {
		if src.Cron == "" {
			continue
		}
		if err := scheduler.AddJob(job.NewSourceTrainingJob(a.training, src.ID), src.Cron); err != nil {
			return fmt.Errorf("schedule source %s: %w", src.ID, err)
		}
	}
	if a.cfg.Embedding.Cache.DBEnabled {
		cleanup := job.NewEmbeddingCacheCleanupJob(a.cache, a.cfg.Embedding.Cache.MaxAgeDays)
		if err := scheduler.AddJob(cleanup, a.cfg.EmbeddingCacheCleanupCron); err != nil {
			return fmt.Errorf("schedule cache cleanup: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if a.cfg.Port > 0 {
		deps := handler.RouterDeps{
			Training:   handler.NewTrainingHandler(a.training),
			TrainLimit: trainRequestWindow,
		}
		addr := fmt.Sprintf("0.0.0.0:%d", a.cfg.Port)
		engine, err := webapi.NewEngine(
			"/api/v1",
			addr,
			webapi.WithRegister(func(group *gin.RouterGroup) {
				handler.RegisterRoutes(group, deps)
			}),
			webapi.WithExtraMiddlewares(
				middleware.RequestID(),
				middleware.CORS(),
				gzip.Gzip(gzip.DefaultCompression),
			),
		)
		if err != nil {
			return fmt.Errorf("init web engine: %w", err)
		}
		logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
		go func() {
			if err := engine.Run(); err != nil && err != http.ErrServerClosed {
				logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	a.training.CancelAll()
	a.training.Wait()
	return nil
}

func printSummary(cmd *cobra.Command, j *model.TrainingJob) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job %s source %s: %d files, %d processed, %d skipped, %d failed",
		j.ID, j.SourceID, j.Total, j.Processed, j.Skipped, j.Failed)
	if j.Cancelled {
		fmt.Fprint(out, " (cancelled)")
	}
	fmt.Fprintln(out)
	for _, fe := range j.Errors {
		if fe.ErrorID != "" {
			fmt.Fprintf(out, "  %s: [%s] %s\n", fe.Path, fe.ErrorID, fe.Message)
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", fe.Path, fe.Message)
	}
	for _, w := range j.Warnings {
		fmt.Fprintf(out, "  warning %s: %s\n", w.Path, w.Message)
	}
}
