package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ultrathink/discovery-web/internal/cache"
	"github.com/ultrathink/discovery-web/internal/client"
	"github.com/ultrathink/discovery-web/internal/config"
	"github.com/ultrathink/discovery-web/internal/domain"
	"github.com/ultrathink/discovery-web/internal/handler"
	"github.com/ultrathink/discovery-web/internal/persist"
	"github.com/ultrathink/discovery-web/internal/service"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/pkg/database"
	pkglog "github.com/ultrathink/discovery-web/pkg/log"
	"github.com/ultrathink/discovery-web/pkg/pubsub"
	"github.com/ultrathink/discovery-web/pkg/storage"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: "discovery-web",
	})
	logger := pkglog.L()

	logger.Info().Str("version", version).Str("addr", cfg.Addr()).
		Str("persist_type", cfg.Persist.Type).
		Str("storage_type", cfg.Storage.Type).Str("events_driver", cfg.Events.Driver).
		Msg("starting discovery web")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize Redis when any component uses it
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	// Initialize persistence
	kv, err := initPersist(cfg, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize persistence")
	}
	defer kv.Close()
	logger.Info().Str("type", cfg.Persist.Type).Msg("persistence initialized")

	// Initialize event bus
	bus, err := initEvents(cfg, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize event bus")
	}
	defer bus.Close()

	// Initialize export storage
	store, err := initStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	logger.Info().Msg("storage initialized successfully")

	// Initialize clients
	orch := client.NewOrchestrator(cfg.Orchestrator.BaseURL, cfg.Orchestrator.Timeout)
	pubmed := client.NewPubMed(client.PubMedConfig{
		BaseURL: cfg.PubMed.BaseURL,
		Timeout: cfg.PubMed.Timeout,
		APIKey:  cfg.PubMed.APIKey,
		Tool:    cfg.PubMed.Tool,
		Email:   cfg.PubMed.Email,
	})
	chembl := client.NewChEMBL(cfg.ChEMBL.BaseURL, cfg.ChEMBL.Timeout)
	logger.Info().Str("orchestrator", orch.BaseURL()).Msg("clients initialized")

	// Initialize caches
	ttl, size := cfg.SearchCache.TTL, cfg.SearchCache.MaxSize
	articleCache := cache.New[[]domain.Article](ttl, size, cache.WithName("pubmed"), cache.WithLogger(logger))
	compoundCache := cache.New[[]domain.Compound](ttl, size, cache.WithName("chembl"), cache.WithLogger(logger))
	structureCache := cache.New[domain.Structure3D](ttl, size, cache.WithName("structure"), cache.WithLogger(logger))

	var (
		articleL2   *cache.RedisCache[[]domain.Article]
		compoundL2  *cache.RedisCache[[]domain.Compound]
		structureL2 *cache.RedisCache[domain.Structure3D]
	)
	if cfg.SearchCache.L2 {
		prefix := cfg.SearchCache.KeyPrefix
		articleL2 = cache.NewRedisCache[[]domain.Article](rdb, prefix, ttl)
		compoundL2 = cache.NewRedisCache[[]domain.Compound](rdb, prefix, ttl)
		structureL2 = cache.NewRedisCache[domain.Structure3D](rdb, prefix, ttl)
		logger.Info().Str("prefix", prefix).Msg("redis cache level enabled")
	}

	// Initialize session manager
	sessions := session.NewManager(kv, bus, session.Config{
		IdleTTL:       cfg.Session.IdleTTL,
		SweepInterval: cfg.Session.SweepInterval,
	})
	go sessions.Run(ctx)

	// Initialize services
	discoverySvc := service.NewDiscoveryService(orch, sessions)
	proteinSvc := service.NewProteinService(orch)
	evolutionSvc := service.NewEvolutionService(orch)
	dockingSvc := service.NewDockingService(cfg.Docking.Delay)
	statusSvc := service.NewStatusService(orch)
	structureSvc := service.NewStructureService(orch, structureCache, structureL2)
	literatureSvc := service.NewLiteratureService(pubmed, kv, articleCache, articleL2, service.LiteratureConfig{
		DefaultMax:  cfg.PubMed.MaxResults,
		AbstractTTL: cfg.PubMed.AbstractTTL,
	})
	compoundSvc := service.NewCompoundService(chembl, compoundCache, compoundL2, service.CompoundConfig{
		DefaultLimit:     cfg.ChEMBL.Limit,
		DefaultThreshold: cfg.ChEMBL.SimilarityThreshold,
	})
	searchSvc := service.NewSearchService(literatureSvc, compoundSvc)
	exportSvc := service.NewExportService(store)

	// Initialize handlers
	sessionMW := handler.NewSessionMiddleware(sessions, cfg.Session.CookieName, cfg.Session.SecureCookie)
	healthHandler := handler.NewHealthHandler(version, sessions, literatureSvc, compoundSvc, structureSvc)
	pipelineHandler := handler.NewPipelineHandler(sessionMW, discoverySvc, proteinSvc, evolutionSvc, dockingSvc, statusSvc)
	searchHandler := handler.NewSearchHandler(searchSvc, literatureSvc, compoundSvc)
	artifactHandler := handler.NewArtifactHandler(sessionMW, exportSvc, structureSvc)
	eventsHandler := handler.NewEventsHandler(sessionMW, bus)

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(handler.Recovery())
	r.Use(pkglog.GinMiddleware(logger, handler.HealthPath))
	r.Use(handler.CORS(cfg.Server.AllowOrigins))

	// Register routes
	healthHandler.RegisterRoutes(r)
	pipelineHandler.RegisterRoutes(r)
	searchHandler.RegisterRoutes(r)
	artifactHandler.RegisterRoutes(r)
	eventsHandler.RegisterRoutes(r)

	if local, ok := store.(*storage.LocalStorage); ok {
		r.StaticFS(local.URLPrefix(), gin.Dir(local.BasePath(), false))
	}
	if cfg.Web.StaticDir != "" {
		r.NoRoute(handler.StaticFiles(cfg.Web.StaticDir))
		logger.Info().Str("dir", cfg.Web.StaticDir).Msg("serving front end")
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("discovery web listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down discovery web")
	stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("discovery web stopped")
}

// initPersist creates the key-value backend for saved session blobs.
func initPersist(cfg *config.Config, rdb *redis.Client) (persist.KV, error) {
	switch cfg.Persist.Type {
	case "memory":
		return persist.NewMemoryKV(), nil
	case "redis":
		return persist.NewRedisKV(rdb, cfg.Persist.KeyPrefix), nil
	case "sql":
		database.LogConfig(pkglog.L(), &cfg.Database)
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, err
		}
		return persist.NewSQLKV(db)
	default:
		return nil, fmt.Errorf("unsupported persist type: %s", cfg.Persist.Type)
	}
}

// initEvents creates the store-change bus, sharing the Redis client when
// one is open.
func initEvents(cfg *config.Config, rdb *redis.Client) (pubsub.PubSub, error) {
	if cfg.Events.Driver == "redis" && rdb != nil {
		return pubsub.NewRedisPubSubFromClient(rdb, cfg.PubSub().Buffer), nil
	}
	return pubsub.NewPubSub(cfg.PubSub())
}

// initStorage initializes the storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
			PublicURL:       cfg.Storage.S3.PublicURL,
			KeyPrefix:       cfg.Storage.S3.KeyPrefix,
		})
	case "local":
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath:  cfg.Storage.Local.BasePath,
			URLPrefix: cfg.Storage.Local.URLPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
