package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"genstudio-backend/internal/config"
	"genstudio-backend/internal/domain/model"
	"genstudio-backend/internal/domain/ports/vendor"
	pg "genstudio-backend/internal/infra/db/postgres"
	"genstudio-backend/internal/infra/i18n"
	"genstudio-backend/internal/infra/logging"
	"genstudio-backend/internal/infra/metrics"
	red "genstudio-backend/internal/infra/redis"
	"genstudio-backend/internal/infra/retrieval"
	"genstudio-backend/internal/infra/storage"
	"genstudio-backend/internal/infra/vendors/fal"
	"genstudio-backend/internal/infra/vendors/gemini"
	"genstudio-backend/internal/infra/web"
	"genstudio-backend/internal/infra/worker"
	"genstudio-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	cancelStore := red.NewCancelStore(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool, tm)
	sessionRepo := pg.NewSessionRepo(pool)
	messageRepo := pg.NewMessageRepo(pool)
	imageRepo := pg.NewImageRecordRepo(pool)
	docRepo := pg.NewDocumentRepo(pool, tm)

	// ---- Retrieval ----
	memStore, err := retrieval.NewOpenAIStore(cfg.AI.OpenAIKey, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("retrieval store")
	}
	builder, err := usecase.NewContextBuilder(memStore, 0, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("context builder")
	}

	// ---- Vendors (fal first, direct Gemini as chat fallback) ----
	var chatVendor vendor.ChatVendor
	var speechVendor vendor.SpeechVendor
	registryImages := func(*vendor.Registry) {}

	if cfg.AI.FalKey != "" {
		falClient, err := fal.NewClient(cfg.AI.FalKey, cfg.AI.FalBaseURL, cfg.AI.Debug, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("fal client")
		}
		normalizer := fal.NewNormalizer(0, logger)
		chatVendor = fal.NewChatAdapter(falClient)
		speechVendor = fal.NewTTSAdapter(falClient)
		registryImages = func(r *vendor.Registry) {
			r.RegisterImage(vendor.ModelImagen4, fal.NewImagen4Adapter(falClient))
			r.RegisterImage(vendor.ModelFluxUltra, fal.NewFluxUltraAdapter(falClient))
			r.RegisterImage(vendor.ModelKling, fal.NewKlingAdapter(falClient, normalizer))
			r.RegisterImage(vendor.ModelGemini3Pro, fal.NewGemini3ProAdapter(falClient))
			r.RegisterImage(vendor.ModelGemini3ProEdit, fal.NewGemini3ProEditAdapter(falClient, normalizer))
			r.RegisterImage(vendor.ModelNanoBanana, fal.NewNanoBananaAdapter(falClient))
			r.RegisterImage(vendor.ModelNanoBananaEdit, fal.NewNanoBananaEditAdapter(falClient, normalizer))
		}
		logger.Info().Msg("vendor: fal")
	} else {
		chatVendor, err = gemini.NewChatAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultChatModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		logger.Info().Msg("vendor: gemini (chat only, image and speech disabled)")
	}
	registry := vendor.NewRegistry(chatVendor, speechVendor)
	registryImages(registry)

	// ---- Translations ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "ko")
	if err != nil {
		logger.Fatal().Err(err).Msg("translator")
	}

	// ---- Use cases ----
	executor := usecase.NewExecutor(
		jobRepo, sessionRepo, messageRepo, imageRepo, docRepo,
		registry, builder, memStore, cancelStore, tm, translator, logger,
	)
	jobUC := usecase.NewJobUseCase(jobRepo, sessionRepo, messageRepo, imageRepo, cancelStore, tm, registry, usecase.EnqueueDefaults{
		ChatModel:  cfg.AI.DefaultChatModel,
		ImageModel: cfg.AI.DefaultImageModel,
	})
	speechUC := usecase.NewSpeechUseCase(registry)

	blobStore, err := storage.NewHTTPBlobStore(cfg.Storage.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("blob store")
	}
	ingestUC := usecase.NewIngestUseCase(docRepo, blobStore, storage.NewPlainTextExtractor(), memStore, logger)

	// ---- Workers ----
	metrics.MustRegister()
	genPool := worker.NewPool(cfg.Worker.ChatWorkers+cfg.Worker.ImageWorkers, logger)
	genPool.Start(ctx)
	ingestPool := worker.NewPool(cfg.Worker.IngestWorkers, logger)
	ingestPool.Start(ctx)

	jobProc := worker.NewJobProcessor(
		jobRepo, executor, genPool,
		[]model.JobKind{model.JobKindChat, model.JobKindImage},
		cfg.Worker.PollInterval, logger,
	)
	go jobProc.Run(ctx)

	ingestProc := worker.NewIngestProcessor(docRepo, ingestUC, ingestPool, cfg.Worker.PollInterval, logger)
	go ingestProc.Run(ctx)

	go reportPoolStats(ctx, pool)

	// ---- HTTP ----
	var auth *web.AuthManager
	if cfg.Server.JWTSecret != "" {
		auth = web.NewAuthManager(cfg.Server.JWTSecret, 0)
	}
	server := web.NewServer(jobUC, speechUC, rateLimiter, auth, cfg.Server.RatePerMinute, logger)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	cancel()
	genPool.Stop()
	ingestPool.Stop()
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
