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
	goredis "github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/brunoamorim39/greasemonkey-ai/internal/ai"
	"github.com/brunoamorim39/greasemonkey-ai/internal/config"
	"github.com/brunoamorim39/greasemonkey-ai/internal/db"
	"github.com/brunoamorim39/greasemonkey-ai/internal/embedcache"
	"github.com/brunoamorim39/greasemonkey-ai/internal/filestore"
	"github.com/brunoamorim39/greasemonkey-ai/internal/handler"
	"github.com/brunoamorim39/greasemonkey-ai/internal/job"
	"github.com/brunoamorim39/greasemonkey-ai/internal/middleware"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/repo"
	"github.com/brunoamorim39/greasemonkey-ai/internal/retrieval"
	"github.com/brunoamorim39/greasemonkey-ai/internal/schedule"
	"github.com/brunoamorim39/greasemonkey-ai/internal/service"
)

type app struct {
	db         *sql.DB
	rdb        goredis.UniversalClient
	embedCache *repo.EmbeddingCacheRepo

	resolver  *service.TierResolver
	ledger    *service.UsageLedger
	quota     *service.QuotaEnforcer
	reporter  *service.UsageReporter
	documents *service.DocumentService
	garage    *service.GarageService
	search    *service.SearchService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	a := &app{db: conn, embedCache: repo.NewEmbeddingCacheRepo(conn)}
	if err := a.wire(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *config.Config) error {
	logger := logutil.GetLogger(ctx)
	userRepo := repo.NewUserRepo(a.db)
	docRepo := repo.NewDocumentRepo(a.db)
	vehicleRepo := repo.NewVehicleRepo(a.db)

	usageStore, err := a.buildUsageStore(ctx, cfg)
	if err != nil {
		return err
	}
	embedder, err := a.buildEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	index, err := buildIndex(cfg, a.db)
	if err != nil {
		return err
	}
	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	logger.Info("components ready",
		zap.String("usage_store", cfg.Usage.Store),
		zap.String("index", index.Name()),
		zap.String("file_store", files.Type()),
		zap.String("embedder", embedder.ModelName()),
	)

	calendar := model.NewUsageCalendar(cfg.Usage.Location())
	a.resolver = service.NewTierResolver(userRepo, repo.NewOverrideRepo(a.db), time.Duration(cfg.Usage.OverrideTTLHours)*time.Hour)
	a.ledger = service.NewUsageLedger(usageStore, calendar, cfg.Usage.MonthlySource, time.Duration(cfg.Usage.RecordTimeoutMilli)*time.Millisecond)
	a.quota = service.NewQuotaEnforcer(a.resolver, a.ledger, docRepo, vehicleRepo)
	a.reporter = service.NewUsageReporter(a.resolver, a.ledger, docRepo, vehicleRepo)
	a.documents = service.NewDocumentService(docRepo, index, embedder, ai.NewChunker(cfg.Retrieval.ChunkTokens, cfg.Retrieval.ChunkOverlapTokens), files, a.quota, a.ledger)
	a.garage = service.NewGarageService(vehicleRepo, a.quota, a.ledger)
	engine := retrieval.NewEngine(embedder, index,
		retrieval.WithYearTolerance(cfg.Retrieval.Tolerance()),
		retrieval.WithLimits(cfg.Retrieval.DefaultLimit, cfg.Retrieval.MaxLimit),
	)
	a.search = service.NewSearchService(engine, a.garage, a.ledger)
	return nil
}

func (a *app) buildUsageStore(ctx context.Context, cfg *config.Config) (service.IUsageStore, error) {
	if cfg.Usage.Store != config.UsageStoreRedis {
		return repo.NewUsageRepo(a.db), nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.rdb = rdb
	return repo.NewUsageRedisRepo(rdb, cfg.Redis.Prefix), nil
}

// buildEmbedder chains the configured providers in order. Without providers
// the deterministic hash embedder is used, which is only good for development.
func (a *app) buildEmbedder(ctx context.Context, cfg *config.Config) (ai.IEmbedder, error) {
	timeout := time.Duration(cfg.Embed.TimeoutSeconds) * time.Second
	entries := make([]ai.EmbedderEntry, 0, len(cfg.Embed.Providers))
	for _, p := range cfg.Embed.Providers {
		provider, err := ai.NewEmbedProvider(p.Provider, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", p.Name, err)
		}
		var e ai.IEmbedder = ai.WithTimeout(ai.NewEmbedder(provider, p.Model), timeout)
		if cfg.Embed.DBCache {
			e = embedcache.WrapDBCacheToEmbedder(e, a.embedCache)
		}
		entries = append(entries, ai.EmbedderEntry{Name: p.Name, Embedder: e})
	}
	if len(entries) == 0 {
		logutil.GetLogger(ctx).Warn("no embed provider configured, using hash embedder")
		provider, err := ai.NewEmbedProvider("hash", nil)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ai.EmbedderEntry{Name: "hash", Embedder: ai.NewEmbedder(provider, "dev")})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if cfg.Embed.LRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Embed.LRUSize, time.Duration(cfg.Embed.LRUTTLSeconds)*time.Second)
	}
	return embedder, nil
}

func buildIndex(cfg *config.Config, conn *sql.DB) (retrieval.Store, error) {
	switch cfg.Retrieval.Index {
	case config.IndexQdrant:
		idx, err := retrieval.NewQdrantIndex(retrieval.QdrantConfig{
			URL:     cfg.Retrieval.Qdrant.URL,
			APIKey:  cfg.Retrieval.Qdrant.APIKey,
			Timeout: cfg.Retrieval.Qdrant.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("init qdrant index: %w", err)
		}
		return idx, nil
	case config.IndexMemory:
		return retrieval.NewMemoryIndex(), nil
	}
	return repo.NewChunkRepo(conn), nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func runServer(cfg *config.Config, a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logutil.GetLogger(ctx)

	scheduler := schedule.NewCronScheduler()
	rollup := job.NewUsageRollupJob(a.ledger)
	if err := scheduler.AddJob(rollup, cfg.Schedule.UsageRollup); err != nil {
		return fmt.Errorf("schedule %s: %w", rollup.Name(), err)
	}
	cleanup := job.NewEmbeddingCacheCleanupJob(a.embedCache, cfg.Embed.CacheMaxAgeDays)
	if err := scheduler.AddJob(cleanup, cfg.Schedule.EmbeddingCacheCleanup); err != nil {
		return fmt.Errorf("schedule %s: %w", cleanup.Name(), err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	go func() {
		if err := scheduler.Trigger(ctx, rollup.Name()); err != nil {
			logger.Warn("startup usage rollup failed", zap.Error(err))
		}
	}()

	deps := handler.RouterDeps{
		Tiers:        handler.NewTierHandler(a.resolver),
		Usage:        handler.NewUsageHandler(a.ledger, a.quota, a.reporter),
		Search:       handler.NewSearchHandler(a.search),
		Documents:    handler.NewDocumentHandler(a.documents, cfg.MaxUploadBytes),
		Vehicles:     handler.NewVehicleHandler(a.garage),
		JWTSecret:    []byte(cfg.JWTSecret),
		AdminKeyHash: cfg.AdminAPIKeyHash,
		RateLimitGap: cfg.RateLimitGap(),
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logger.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	return nil
}
